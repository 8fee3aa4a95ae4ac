// Package provider resolves a platform name to a DataService: one of the
// built-in adapters, or a plugin binary started as a subprocess.
package provider

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/schemaver/migrate"
	"github.com/satishbabariya/schemaver/migrate/dataservice"
	"github.com/satishbabariya/schemaver/migrate/dataservice/cockroachdb"
	"github.com/satishbabariya/schemaver/migrate/dataservice/mysql"
	"github.com/satishbabariya/schemaver/migrate/dataservice/postgresql"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlbase"
	"github.com/satishbabariya/schemaver/migrate/dataservice/sqlserver"
	"github.com/satishbabariya/schemaver/migrate/plugin"
)

const (
	// PluginsEnv overrides the plugin directory.
	PluginsEnv = "SCHEMAVER_PLUGINS"

	// PluginsDirName is the plugin directory under the working directory.
	PluginsDirName = ".plugins"

	// BinaryPrefix precedes the platform name in a plugin binary name.
	BinaryPrefix = "schemaver-"

	// ManifestFile optionally sits next to a plugin binary.
	ManifestFile = "plugin.json"
)

// Constructor builds a built-in data service.
type Constructor func(sqlbase.Options) (dataservice.DataService, error)

func wrap[T dataservice.DataService](fn func(sqlbase.Options) (T, error)) Constructor {
	return func(opts sqlbase.Options) (dataservice.DataService, error) {
		return fn(opts)
	}
}

var builtins = map[string]Constructor{
	dataservice.SQLServer:   wrap(sqlserver.New),
	dataservice.PostgreSQL:  wrap(postgresql.New),
	dataservice.MySQL:       wrap(mysql.New),
	dataservice.MariaDB:     wrap(mysql.NewMariaDB),
	dataservice.CockroachDB: wrap(cockroachdb.New),
}

// Manifest describes a plugin binary.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	HostVersion string `json:"hostVersion"`
}

// Options configures a Loader.
type Options struct {
	// PluginsDir overrides the plugin location. A binary is looked up in
	// PluginsDir itself, then in PluginsDir/{platform}.
	PluginsDir string

	// WorkDir is the process working directory. Its .plugins folder is
	// searched first.
	WorkDir string

	// WorkspaceDir is the workspace root. Its .plugins folder is searched
	// after WorkDir's when the two differ.
	WorkspaceDir string

	// HostVersion is checked against a manifest's hostVersion constraint.
	HostVersion string

	// TrackingTable is passed to built-in adapters.
	TrackingTable string

	Logger *slog.Logger
}

type loaded struct {
	client *goplugin.Client
	svc    dataservice.DataService
}

// Loader resolves platforms. Plugins are started once and stay loaded until
// Close; callers must not Close while a DataService call is in flight.
type Loader struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	plugins map[string]*loaded
}

// NewLoader returns a Loader.
func NewLoader(opts Options) *Loader {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			opts.WorkDir = wd
		}
	}
	return &Loader{
		opts:    opts,
		logger:  logger.With("component", "provider"),
		plugins: make(map[string]*loaded),
	}
}

// Resolve returns the data service for platform.
func (l *Loader) Resolve(platform string) (dataservice.DataService, error) {
	name := strings.ToLower(strings.TrimSpace(platform))
	if name == "" {
		return nil, errors.Mark(errors.New("no platform given"), migrate.ErrUnsupportedPlatform)
	}

	if ctor, ok := builtins[name]; ok {
		l.logger.Debug("using built-in adapter", "platform", name)
		return ctor(sqlbase.Options{
			TrackingTable: l.opts.TrackingTable,
			Logger:        l.opts.Logger,
		})
	}
	return l.loadPlugin(name)
}

// BinaryName returns the plugin executable name for platform.
func BinaryName(platform string) string {
	name := BinaryPrefix + platform
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	return name
}

// PluginDirs returns the folders searched for platform's binary, in order.
func (l *Loader) PluginDirs(platform string) []string {
	if l.opts.PluginsDir != "" {
		return []string{l.opts.PluginsDir, filepath.Join(l.opts.PluginsDir, platform)}
	}
	var dirs []string
	for _, root := range l.pluginRoots() {
		dirs = append(dirs, filepath.Join(root, platform))
	}
	return dirs
}

// pluginRoots returns the conventional .plugins folders, in search order.
func (l *Loader) pluginRoots() []string {
	roots := []string{filepath.Join(l.opts.WorkDir, PluginsDirName)}
	if ws := l.opts.WorkspaceDir; ws != "" && filepath.Clean(ws) != filepath.Clean(l.opts.WorkDir) {
		roots = append(roots, filepath.Join(ws, PluginsDirName))
	}
	return roots
}

func (l *Loader) findBinary(platform string) (dir, path string, ok bool) {
	for _, d := range l.PluginDirs(platform) {
		p := filepath.Join(d, BinaryName(platform))
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return d, p, true
		}
	}
	return "", "", false
}

func (l *Loader) loadPlugin(name string) (dataservice.DataService, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.plugins[name]; ok {
		return p.svc, nil
	}

	dir, bin, ok := l.findBinary(name)
	if !ok {
		return nil, errors.WithHintf(
			errors.Mark(errors.Newf("platform %q is not built in and no plugin was found", name), migrate.ErrUnsupportedPlatform),
			"place %s in %s", BinaryName(name), strings.Join(l.PluginDirs(name), " or "))
	}

	manifest, err := readManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, errors.Mark(err, migrate.ErrUnsupportedPlatform)
	}
	if manifest != nil {
		if err := l.checkManifest(name, manifest); err != nil {
			return nil, errors.Mark(err, migrate.ErrUnsupportedPlatform)
		}
	}

	l.logger.Info("starting plugin", "platform", name, "binary", bin)

	cmd := exec.Command(bin)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), plugin.LogLevelEnv+"="+l.hclogLevel().String())

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  plugin.Handshake,
		Plugins:          plugin.PluginSet(name),
		Cmd:              cmd,
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "plugin." + name,
			Level:  l.hclogLevel(),
			Output: os.Stderr,
		}),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, errors.Mark(errors.Wrapf(err, "failed to start plugin %q", name), migrate.ErrUnsupportedPlatform)
	}
	raw, err := rpcClient.Dispense(name)
	if err != nil {
		client.Kill()
		return nil, errors.Mark(errors.Wrapf(err, "plugin %q does not serve platform %q", bin, name), migrate.ErrUnsupportedPlatform)
	}
	svc, ok := raw.(dataservice.DataService)
	if !ok {
		client.Kill()
		return nil, errors.Mark(errors.Newf("plugin %q dispensed %T", name, raw), migrate.ErrUnsupportedPlatform)
	}
	if svc.Platform() != name {
		client.Kill()
		return nil, errors.Mark(errors.Newf("plugin %q serves platform %q", name, svc.Platform()), migrate.ErrUnsupportedPlatform)
	}

	l.plugins[name] = &loaded{client: client, svc: svc}
	l.logger.Debug("plugin loaded", "platform", name)
	return svc, nil
}

func (l *Loader) hclogLevel() hclog.Level {
	ctx := context.Background()
	switch {
	case l.logger.Enabled(ctx, slog.LevelDebug):
		return hclog.Debug
	case l.logger.Enabled(ctx, slog.LevelInfo):
		return hclog.Info
	default:
		return hclog.Warn
	}
}

func readManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrapf(err, "invalid manifest %s", path)
	}
	return &m, nil
}

func (l *Loader) checkManifest(platform string, m *Manifest) error {
	if m.Name != "" && !strings.EqualFold(m.Name, platform) {
		return errors.Newf("manifest names platform %q, expected %q", m.Name, platform)
	}
	if m.HostVersion == "" {
		return nil
	}
	constraint, err := version.NewConstraint(m.HostVersion)
	if err != nil {
		return errors.Wrapf(err, "invalid hostVersion constraint %q", m.HostVersion)
	}
	host, err := version.NewVersion(l.opts.HostVersion)
	if err != nil {
		l.logger.Debug("skipping host version check", "host", l.opts.HostVersion, "constraint", m.HostVersion)
		return nil
	}
	if !constraint.Check(host) {
		return errors.Newf("plugin %s %s requires schemaver %s, running %s",
			platform, m.Version, m.HostVersion, host)
	}
	return nil
}

// Platforms lists built-in platforms followed by discovered plugins.
func (l *Loader) Platforms() []PlatformInfo {
	var out []PlatformInfo
	for _, name := range dataservice.Builtins {
		out = append(out, PlatformInfo{Name: name, Builtin: true})
	}

	roots := l.pluginRoots()
	if l.opts.PluginsDir != "" {
		roots = []string{l.opts.PluginsDir}
	}

	seen := make(map[string]bool)
	var found []PlatformInfo
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			if !e.IsDir() {
				name = strings.TrimSuffix(strings.TrimPrefix(name, BinaryPrefix), ".exe")
				if !strings.HasPrefix(e.Name(), BinaryPrefix) {
					continue
				}
			}
			if seen[name] || builtins[name] != nil {
				continue
			}
			dir, bin, ok := l.findBinary(name)
			if !ok {
				continue
			}
			info := PlatformInfo{Name: name, Path: bin}
			if m, err := readManifest(filepath.Join(dir, ManifestFile)); err == nil && m != nil {
				info.Version = m.Version
			}
			seen[name] = true
			found = append(found, info)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return append(out, found...)
}

// PlatformInfo describes a resolvable platform.
type PlatformInfo struct {
	Name    string
	Builtin bool
	Path    string
	Version string
}

// Close kills every plugin process started by the loader.
func (l *Loader) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, p := range l.plugins {
		p.client.Kill()
		l.logger.Debug("plugin stopped", "platform", name)
	}
	l.plugins = make(map[string]*loaded)
}
