// Package workspace manages the on-disk layout of version folders.
//
// A workspace root holds one folder per version (v0.00, v1.00, v1.01 ...)
// plus the meta folders _init, _pre and _post. Folder names that do not parse
// as a version are ignored. Mutating operations are not safe for concurrent
// use on the same root; callers serialize them.
package workspace

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"

	"github.com/satishbabariya/schemaver/migrate"
)

// Meta folders. They are executed by the executor but never tracked.
const (
	InitDir = "_init"
	PreDir  = "_pre"
	PostDir = "_post"
)

// ScriptExt is the extension of script files, matched case-insensitively.
const ScriptExt = ".sql"

const readme = `# schemaver workspace

Each ` + "`vMAJOR.MINOR`" + ` folder holds the scripts of one version. Scripts run
in file name order, files at the folder root first, then each subfolder.

| Folder | Runs |
|--------|------|
| ` + "`_init`" + ` | once, when the database has no applied version |
| ` + "`_pre`" + `  | before the pending versions of every run |
| ` + "`v0.00`" + ` | baseline version |
| ` + "`_post`" + ` | after the pending versions of every run |

Batches inside a script are separated by a line containing only ` + "`GO`" + `.
Placeholders written ` + "`${KEY}`" + ` are replaced with ` + "`--token KEY=VALUE`" + `.

Create the next version with ` + "`schemaver vnext`" + ` and apply with
` + "`schemaver run`" + `.
`

const gitignore = `.plugins/
*.log
`

// Workspace is a version folder tree rooted at Root.
type Workspace struct {
	fs     afero.Fs
	root   string
	logger *slog.Logger
}

// New returns a workspace over fs. A nil logger discards.
func New(fs afero.Fs, root string, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Workspace{
		fs:     fs,
		root:   root,
		logger: logger.With("component", "workspace"),
	}
}

// Root returns the workspace root path.
func (w *Workspace) Root() string { return w.root }

// Fs returns the filesystem the workspace reads from.
func (w *Workspace) Fs() afero.Fs { return w.fs }

// Init creates the baseline structure. Existing folders and files are left
// untouched, so calling Init on an initialized root is a no-op.
func (w *Workspace) Init() error {
	for _, dir := range []string{"", InitDir, PreDir, migrate.Version{}.String(), PostDir} {
		path := filepath.Join(w.root, dir)
		if err := w.fs.MkdirAll(path, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", path)
		}
	}

	files := []struct {
		name    string
		content string
	}{
		{"README.md", readme},
		{".gitignore", gitignore},
	}
	for _, f := range files {
		path := filepath.Join(w.root, f.name)
		created, err := w.writeIfMissing(path, f.content)
		if err != nil {
			return err
		}
		if created {
			w.logger.Debug("created file", "path", path)
		}
	}

	w.logger.Info("workspace initialized", "root", w.root)
	return nil
}

// Readme returns the content of the workspace README.
func (w *Workspace) Readme() (string, error) {
	b, err := afero.ReadFile(w.fs, filepath.Join(w.root, "README.md"))
	if err != nil {
		return "", errors.Wrap(err, "failed to read README.md")
	}
	return string(b), nil
}

// Versions returns the version folders of the root in ascending order.
func (w *Workspace) Versions() ([]migrate.Version, error) {
	entries, err := afero.ReadDir(w.fs, w.root)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read workspace %s", w.root)
	}

	seen := make(map[migrate.Version]string)
	var versions []migrate.Version
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		v, err := migrate.ParseVersion(e.Name())
		if err != nil {
			continue
		}
		if prev, ok := seen[v]; ok {
			return nil, errors.Mark(
				errors.Newf("folders %q and %q both name version %s", prev, e.Name(), v),
				migrate.ErrDuplicateVersion)
		}
		seen[v] = e.Name()
		versions = append(versions, v)
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].Less(versions[j]) })
	return versions, nil
}

// LatestVersion returns the highest local version.
func (w *Workspace) LatestVersion() (migrate.Version, error) {
	versions, err := w.Versions()
	if err != nil {
		return migrate.Version{}, err
	}
	latest, ok := migrate.MaxVersion(versions)
	if !ok {
		return migrate.Version{}, errors.WithHint(
			errors.Mark(errors.Newf("no version folder in %s", w.root), migrate.ErrNotFound),
			"run 'schemaver init' to create the workspace")
	}
	return latest, nil
}

// NextMajorVersion creates the folder for the next major version. When file
// is not empty an empty script of that name is created inside it.
func (w *Workspace) NextMajorVersion(file string) (migrate.Version, error) {
	return w.next(migrate.Version.NextMajor, file)
}

// NextMinorVersion creates the folder for the next minor version.
func (w *Workspace) NextMinorVersion(file string) (migrate.Version, error) {
	return w.next(migrate.Version.NextMinor, file)
}

func (w *Workspace) next(step func(migrate.Version) migrate.Version, file string) (migrate.Version, error) {
	latest, err := w.LatestVersion()
	if err != nil {
		return migrate.Version{}, err
	}
	v := step(latest)

	dir := filepath.Join(w.root, v.String())
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return migrate.Version{}, errors.Wrapf(err, "failed to create %s", dir)
	}

	if file != "" {
		name := filepath.Base(file)
		if !strings.EqualFold(filepath.Ext(name), ScriptExt) {
			name += ScriptExt
		}
		if _, err := w.writeIfMissing(filepath.Join(dir, name), ""); err != nil {
			return migrate.Version{}, err
		}
	}

	w.logger.Info("created version", "version", v.String(), "dir", dir)
	return v, nil
}

// VersionDir returns the folder path of v. The folder is looked up by parsed
// identifier, so v1.0 resolves for v1.00. ErrNotFound if it does not exist.
func (w *Workspace) VersionDir(v migrate.Version) (string, error) {
	entries, err := afero.ReadDir(w.fs, w.root)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read workspace %s", w.root)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if pv, err := migrate.ParseVersion(e.Name()); err == nil && pv == v {
			return filepath.Join(w.root, e.Name()), nil
		}
	}
	return "", errors.Mark(errors.Newf("version folder %s not found in %s", v, w.root), migrate.ErrNotFound)
}

// MetaDir returns the path of a meta folder and whether it exists.
func (w *Workspace) MetaDir(name string) (string, bool) {
	path := filepath.Join(w.root, name)
	ok, err := afero.DirExists(w.fs, path)
	return path, err == nil && ok
}

// Scripts lists the script files under dir: files at the root of dir first
// in name order, then each subfolder the same way.
func (w *Workspace) Scripts(dir string) ([]string, error) {
	entries, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Mark(errors.Wrapf(err, "script folder %s", dir), migrate.ErrNotFound)
		}
		return nil, errors.Wrapf(err, "failed to read %s", dir)
	}

	var (
		files   []string
		subdirs []string
	)
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		switch {
		case e.IsDir():
			subdirs = append(subdirs, path)
		case strings.EqualFold(filepath.Ext(e.Name()), ScriptExt):
			files = append(files, path)
		}
	}
	sort.Strings(files)
	sort.Strings(subdirs)

	for _, sub := range subdirs {
		nested, err := w.Scripts(sub)
		if err != nil {
			return nil, err
		}
		files = append(files, nested...)
	}
	return files, nil
}

// ReadScript returns the content of a script file.
func (w *Workspace) ReadScript(path string) (string, error) {
	b, err := afero.ReadFile(w.fs, path)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read script %s", path)
	}
	return string(b), nil
}

// Rel returns path relative to the workspace root, for display.
func (w *Workspace) Rel(path string) string {
	if rel, err := filepath.Rel(w.root, path); err == nil {
		return filepath.ToSlash(rel)
	}
	return path
}

func (w *Workspace) writeIfMissing(path, content string) (bool, error) {
	exists, err := afero.Exists(w.fs, path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to stat %s", path)
	}
	if exists {
		return false, nil
	}
	if err := afero.WriteFile(w.fs, path, []byte(content), 0o644); err != nil {
		return false, errors.Wrapf(err, "failed to write %s", path)
	}
	return true, nil
}
