package telemetry

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// level backs the installed handler so SetLevel can change verbosity after startup.
var level = new(slog.LevelVar)

// ParseLevel maps a configured level name to a slog.Level; unknown names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger installs the global slog logger.
//
// format "json" selects the JSON handler; anything else selects the text handler.
// level is one of debug, info, warn, error (case-insensitive) and defaults to info.
func SetupLogger(format, levelName string) {
	setupLogger(os.Stdout, format, levelName)
}

func setupLogger(w io.Writer, format, levelName string) {
	lvl := ParseLevel(levelName)
	level.Set(lvl)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialised", "format", format, "level", lvl.String())
}

// SetLevel changes the level of the logger installed by SetupLogger.
func SetLevel(levelName string) {
	lvl := ParseLevel(levelName)
	if level.Level() == lvl {
		return
	}
	level.Set(lvl)
	slog.Info("log level changed", "level", lvl.String())
}

// Level reports the current level of the installed logger.
func Level() slog.Level {
	return level.Level()
}
