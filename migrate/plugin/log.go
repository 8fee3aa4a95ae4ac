package plugin

import (
	"io"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// NewLogger returns a slog logger for use inside a plugin process. Records
// are written as hclog JSON lines on w (normally os.Stderr), which the host's
// go-plugin client parses and re-emits through its own logger at the
// original level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) > 0 {
				return a
			}
			switch a.Key {
			case slog.MessageKey:
				a.Key = "@message"
			case slog.TimeKey:
				a.Key = "@timestamp"
			case slog.LevelKey:
				a.Key = "@level"
				if lvl, ok := a.Value.Any().(slog.Level); ok {
					a.Value = slog.StringValue(HCLogLevel(lvl).String())
				}
			}
			return a
		},
	}))
}

// HCLogLevel maps a slog level to the closest hclog level.
func HCLogLevel(l slog.Level) hclog.Level {
	switch {
	case l < slog.LevelDebug:
		return hclog.Trace
	case l < slog.LevelInfo:
		return hclog.Debug
	case l < slog.LevelWarn:
		return hclog.Info
	case l < slog.LevelError:
		return hclog.Warn
	default:
		return hclog.Error
	}
}

// LevelFromEnv parses an hclog level name such as "debug", as set by the
// host in the plugin environment. Unknown names yield slog.LevelInfo.
func LevelFromEnv(name string) slog.Level {
	switch hclog.LevelFromString(strings.TrimSpace(name)) {
	case hclog.Trace, hclog.Debug:
		return slog.LevelDebug
	case hclog.Warn:
		return slog.LevelWarn
	case hclog.Error:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogLevelEnv is set by the host on every plugin process.
const LogLevelEnv = "SCHEMAVER_PLUGIN_LOG_LEVEL"
