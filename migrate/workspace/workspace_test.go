package workspace

import (
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/schemaver/migrate"
)

const root = "/work/db"

func newWorkspace(t *testing.T) (*Workspace, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	return New(fs, root, nil), fs
}

func TestInit(t *testing.T) {
	ws, fs := newWorkspace(t)
	require.NoError(t, ws.Init())

	for _, dir := range []string{InitDir, PreDir, "v0.00", PostDir} {
		ok, err := afero.DirExists(fs, filepath.Join(root, dir))
		require.NoError(t, err)
		assert.True(t, ok, dir)
	}
	readme, err := ws.Readme()
	require.NoError(t, err)
	assert.Contains(t, readme, "schemaver workspace")

	latest, err := ws.LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, migrate.Version{}, latest)
}

func TestInitIsIdempotent(t *testing.T) {
	ws, fs := newWorkspace(t)
	require.NoError(t, ws.Init())

	custom := filepath.Join(root, "README.md")
	require.NoError(t, afero.WriteFile(fs, custom, []byte("mine"), 0o644))
	_, err := ws.NextMajorVersion("")
	require.NoError(t, err)

	require.NoError(t, ws.Init())

	b, err := afero.ReadFile(fs, custom)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(b))

	versions, err := ws.Versions()
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestVersions(t *testing.T) {
	ws, fs := newWorkspace(t)
	for _, dir := range []string{"v1.10", "v1.02", "v10.00", "v2.00", "_pre", "notes", "v3"} {
		require.NoError(t, fs.MkdirAll(filepath.Join(root, dir), 0o755))
	}
	require.NoError(t, afero.WriteFile(fs, filepath.Join(root, "v9.00"), []byte("file, not dir"), 0o644))

	versions, err := ws.Versions()
	require.NoError(t, err)

	var names []string
	for _, v := range versions {
		names = append(names, v.String())
	}
	assert.Equal(t, []string{"v1.02", "v1.10", "v2.00", "v10.00"}, names)

	latest, err := ws.LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, "v10.00", latest.String())
}

func TestVersionsDuplicate(t *testing.T) {
	ws, fs := newWorkspace(t)
	require.NoError(t, fs.MkdirAll(filepath.Join(root, "v1.0"), 0o755))
	require.NoError(t, fs.MkdirAll(filepath.Join(root, "v1.00"), 0o755))

	_, err := ws.Versions()
	assert.True(t, errors.Is(err, migrate.ErrDuplicateVersion))
}

func TestLatestVersionNotFound(t *testing.T) {
	ws, fs := newWorkspace(t)
	require.NoError(t, fs.MkdirAll(filepath.Join(root, "_init"), 0o755))

	_, err := ws.LatestVersion()
	assert.True(t, migrate.IsNotFound(err))
	assert.Contains(t, errors.FlattenHints(err), "schemaver init")

	_, err = ws.NextMinorVersion("")
	assert.True(t, migrate.IsNotFound(err))
}

func TestNextVersions(t *testing.T) {
	ws, fs := newWorkspace(t)
	require.NoError(t, ws.Init())

	v, err := ws.NextMajorVersion("")
	require.NoError(t, err)
	assert.Equal(t, "v1.00", v.String())

	v, err = ws.NextMinorVersion("add_users")
	require.NoError(t, err)
	assert.Equal(t, "v1.01", v.String())
	ok, err := afero.Exists(fs, filepath.Join(root, "v1.01", "add_users.sql"))
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = ws.NextMinorVersion("seed.SQL")
	require.NoError(t, err)
	assert.Equal(t, "v1.02", v.String())
	ok, err = afero.Exists(fs, filepath.Join(root, "v1.02", "seed.SQL"))
	require.NoError(t, err)
	assert.True(t, ok)

	v, err = ws.NextMajorVersion("")
	require.NoError(t, err)
	assert.Equal(t, "v2.00", v.String())
}

func TestScriptsOrder(t *testing.T) {
	ws, fs := newWorkspace(t)
	dir := filepath.Join(root, "v1.00")
	files := []string{
		"b.sql",
		"a.sql",
		"README.md",
		"c.SQL",
		"01_tables/z.sql",
		"01_tables/y.sql",
		"00_schemas/x.sql",
		"00_schemas/nested/w.sql",
	}
	for _, f := range files {
		path := filepath.Join(dir, f)
		require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, afero.WriteFile(fs, path, []byte("SELECT 1"), 0o644))
	}

	scripts, err := ws.Scripts(dir)
	require.NoError(t, err)

	var rel []string
	for _, s := range scripts {
		rel = append(rel, ws.Rel(s))
	}
	assert.Equal(t, []string{
		"v1.00/a.sql",
		"v1.00/b.sql",
		"v1.00/c.SQL",
		"v1.00/00_schemas/x.sql",
		"v1.00/00_schemas/nested/w.sql",
		"v1.00/01_tables/y.sql",
		"v1.00/01_tables/z.sql",
	}, rel)

	content, err := ws.ReadScript(scripts[0])
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", content)
}

func TestVersionDir(t *testing.T) {
	ws, fs := newWorkspace(t)
	require.NoError(t, fs.MkdirAll(filepath.Join(root, "v1.0"), 0o755))

	dir, err := ws.VersionDir(migrate.MustParseVersion("v1.00"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "v1.0"), dir)

	_, err = ws.VersionDir(migrate.MustParseVersion("v2.00"))
	assert.True(t, migrate.IsNotFound(err))

	_, err = ws.Scripts(filepath.Join(root, "v2.00"))
	assert.True(t, migrate.IsNotFound(err))
}

func TestMetaDir(t *testing.T) {
	ws, _ := newWorkspace(t)
	_, ok := ws.MetaDir(PreDir)
	assert.False(t, ok)

	require.NoError(t, ws.Init())
	path, ok := ws.MetaDir(PreDir)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, PreDir), path)
}
