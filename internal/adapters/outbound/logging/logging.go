package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Environment variables that override the level chosen by the caller.
const (
	EnvLogLevel = "REFLECTSONAR_LOG_LEVEL"
	EnvDebug    = "REFLECTSONAR_DEBUG"
)

// New returns a console logger writing to w. Verbose runs log progress at
// info level, quiet runs only warnings and errors.
func New(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.InfoLevel
	}
	level = LevelFromEnv(level)

	return zerolog.New(consoleWriter(w)).With().Timestamp().Logger().Level(level)
}

// LevelFromEnv applies REFLECTSONAR_DEBUG and REFLECTSONAR_LOG_LEVEL on top of def.
func LevelFromEnv(def zerolog.Level) zerolog.Level {
	if v := strings.TrimSpace(os.Getenv(EnvDebug)); v != "" && v != "0" && !strings.EqualFold(v, "false") {
		return zerolog.TraceLevel
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		if lvl, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			return lvl
		}
	}
	return def
}

func consoleWriter(w io.Writer) zerolog.ConsoleWriter {
	return zerolog.NewConsoleWriter(func(cw *zerolog.ConsoleWriter) {
		cw.Out = w
		cw.NoColor = true
		cw.TimeFormat = time.TimeOnly
		cw.PartsOrder = []string{
			zerolog.TimestampFieldName,
			zerolog.LevelFieldName,
			"step",
			zerolog.MessageFieldName,
		}
		cw.FieldsExclude = []string{"step"}
	})
}
