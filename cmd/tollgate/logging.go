package main

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"

	"github.com/sagarc03/tollgate/config"
)

// setupLogging installs the default slog logger. Production writes JSON
// lines with a UTC "ts" field; anything else gets colored tint output.
// Both go to stderr so command output on stdout stays clean.
func setupLogging(cfg config.LogConfig) {
	prod := cfg.Env == "prod" || cfg.Env == "production"

	level := logLevel(cfg.Level, prod)
	slog.SetDefault(slog.New(logHandler(os.Stderr, level, prod)))

	log.SetFlags(0)
	log.SetOutput(slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo).Writer())
}

func logHandler(w io.Writer, level slog.Level, prod bool) slog.Handler {
	if !prod {
		return tint.NewHandler(w, &tint.Options{
			Level:      level,
			AddSource:  true,
			TimeFormat: "15:04:05.000",
		})
	}

	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key != slog.TimeKey {
				return a
			}
			return slog.String("ts", a.Value.Time().UTC().Format(time.RFC3339Nano))
		},
	})
}

// logLevel parses name, defaulting to debug in development and info in
// production. Unknown names fall back to info.
func logLevel(name string, prod bool) slog.Level {
	name = strings.TrimSpace(name)
	if name == "" {
		if prod {
			return slog.LevelInfo
		}
		return slog.LevelDebug
	}
	if strings.EqualFold(name, "warning") {
		name = "warn"
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
