package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

// SetupLogger builds the root logger for the given environment.
// Local runs log text to stdout at debug level; dev and prod log
// json to a file under logDir (dev additionally mirrors to stdout).
func SetupLogger(env string, logDir string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envDev, envProd:
		level := slog.LevelDebug
		if env == envProd {
			level = slog.LevelInfo
		}

		var out io.Writer = os.Stdout
		file, err := os.OpenFile(
			filepath.Join(logDir, "agentdesk.log"),
			os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644,
		)
		if err == nil {
			if env == envDev {
				out = io.MultiWriter(file, os.Stdout)
			} else {
				out = file
			}
		}

		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	default:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	return log
}
