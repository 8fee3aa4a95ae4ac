package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/satishbabariya/schemaver/migrate/history"
)

// Keys double as flag names. The matching environment variable is the key
// upper-cased with dashes replaced, prefixed SCHEMAVER_.
const (
	KeyPath              = "path"
	KeyPlatform          = "platform"
	KeyConnectionString  = "connection-string"
	KeyTargetVersion     = "target-version"
	KeyToken             = "token"
	KeyAutoCreateDB      = "auto-create-db"
	KeyPluginsPath       = "plugins-path"
	KeyTrackingTable     = "tracking-table"
	KeyDebug             = "debug"
	KeyTelemetryEndpoint = "telemetry-endpoint"
	KeyTelemetryDisabled = "telemetry-disabled"
)

const (
	EnvPrefix  = "SCHEMAVER"
	ConfigName = ".schemaver"

	// DefaultPlatform is used when no platform is configured.
	DefaultPlatform = "sqlserver"
)

// Config holds the settings of one CLI invocation.
type Config struct {
	Path              string
	Platform          string
	ConnectionString  string
	TargetVersion     string
	Tokens            []string
	AutoCreateDB      bool
	PluginsPath       string
	TrackingTable     string
	Debug             bool
	TelemetryEndpoint string

	// File is the config file that was read, if any.
	File string
}

// Load resolves the configuration. Precedence, highest first: flags bound
// into v, environment (including .env and .env.local in dir), the config
// file, defaults. An explicit configFile must exist; otherwise a missing
// .schemaver.yaml is not an error.
func Load(fs afero.Fs, v *viper.Viper, dir, configFile string) (*Config, error) {
	if err := loadDotEnv(fs, dir); err != nil {
		return nil, err
	}

	v.SetFs(fs)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyPluginsPath, EnvPrefix+"_PLUGINS_PATH", EnvPrefix+"_PLUGINS")

	v.SetDefault(KeyPath, dir)
	v.SetDefault(KeyPlatform, DefaultPlatform)
	v.SetDefault(KeyTrackingTable, history.DefaultTable)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "schemaver"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	cfg := &Config{
		Path:             v.GetString(KeyPath),
		Platform:         strings.ToLower(strings.TrimSpace(v.GetString(KeyPlatform))),
		ConnectionString: v.GetString(KeyConnectionString),
		TargetVersion:    v.GetString(KeyTargetVersion),
		Tokens:           v.GetStringSlice(KeyToken),
		AutoCreateDB:     v.GetBool(KeyAutoCreateDB),
		PluginsPath:      v.GetString(KeyPluginsPath),
		TrackingTable:    v.GetString(KeyTrackingTable),
		Debug:            v.GetBool(KeyDebug),
		File:             v.ConfigFileUsed(),
	}
	if !v.GetBool(KeyTelemetryDisabled) {
		cfg.TelemetryEndpoint = v.GetString(KeyTelemetryEndpoint)
	}
	if cfg.Path != "" && !filepath.IsAbs(cfg.Path) {
		cfg.Path = filepath.Join(dir, cfg.Path)
	}
	return cfg, nil
}

// loadDotEnv applies .env without overriding variables already set, then
// .env.local, which wins over everything.
func loadDotEnv(fs afero.Fs, dir string) error {
	for _, f := range []struct {
		name      string
		overwrite bool
	}{
		{".env", false},
		{".env.local", true},
	} {
		path := filepath.Join(dir, f.name)
		file, err := fs.Open(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "failed to open %s", path)
		}
		values, err := godotenv.Parse(file)
		file.Close()
		if err != nil {
			return errors.Wrapf(err, "failed to parse %s", path)
		}
		for k, val := range values {
			if !f.overwrite && os.Getenv(k) != "" {
				continue
			}
			if err := os.Setenv(k, val); err != nil {
				return errors.Wrapf(err, "failed to set %s", k)
			}
		}
	}
	return nil
}

// SaveConfig writes the file-backed settings to path.
func SaveConfig(fs afero.Fs, cfg *Config, path string) error {
	v := viper.New()
	v.SetFs(fs)
	v.Set(KeyPlatform, cfg.Platform)
	v.Set(KeyTrackingTable, cfg.TrackingTable)
	if cfg.PluginsPath != "" {
		v.Set(KeyPluginsPath, cfg.PluginsPath)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", filepath.Dir(path))
	}
	return v.WriteConfigAs(path)
}
