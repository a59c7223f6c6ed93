package config

import (
	"io"
	log "log/slog"

	"github.com/lmittmann/tint"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// SetupLogger installs a tint handler as the default logger. Unknown levels
// mean info.
func SetupLogger(w io.Writer, level string) {
	log.SetDefault(log.New(tint.NewHandler(w, &tint.Options{
		Level:      logLevelMap[level],
		TimeFormat: "15:04:05.000",
	})))
}
