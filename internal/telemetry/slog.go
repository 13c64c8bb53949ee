package telemetry

import (
	"log/slog"
	"os"
	"strings"
)

// redactedKeys are attribute names whose values never reach the logs. The
// server holds users' plaintext Gemini keys and passwords in memory between
// unseal and use; a careless log call must not be able to persist one.
var redactedKeys = map[string]bool{
	"api_key":    true,
	"password":   true,
	"credential": true,
	"passphrase": true,
	"token":      true,
}

// SetupLogger configures the global slog default logger based on the supplied format and level
// strings read from application configuration (WT_LOGGING_FORMAT / WT_LOGGING_LEVEL).
//
// format: "json"  → JSONHandler (machine readable; recommended for production)
//
//	anything else → TextHandler (human readable; suitable for local development)
//
// level: "debug", "info", "warn", "error" (case-insensitive); defaults to "info".
//
// The configured logger is installed as the default so all slog.Info/Warn/Error calls elsewhere
// in the application automatically use it without needing to carry a *slog.Logger in context.
// Attributes named after credential material (api_key, password, ...) are redacted
// at every level, including debug.
func SetupLogger(format, level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   lvl == slog.LevelDebug, // include file:line only when debugging
		ReplaceAttr: redactSecrets,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler).With("service", "wandertale"))
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}

// redactSecrets blanks any attribute whose key names credential material.
func redactSecrets(groups []string, a slog.Attr) slog.Attr {
	if redactedKeys[a.Key] {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}
