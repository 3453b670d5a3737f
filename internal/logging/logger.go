// Package logging configures the global zerolog logger and the cold-start
// summary event.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LevelEnv names the variable that sets the log level.
const LevelEnv = "LOG_LEVEL"

// Init initializes the global logger. LOG_LEVEL selects debug, info, warn or
// error (default info). Lambda gets JSON lines for CloudWatch; everywhere
// else gets the human-readable console writer on stderr.
func Init() {
	InitWithWriter(nil)
}

// InitWithWriter is Init with an explicit output. A nil writer picks the
// default for the environment. zerolog.Ctx falls back to the global logger
// for contexts that carry none.
func InitWithWriter(w io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(os.Getenv(LevelEnv)))
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if w == nil {
		if onLambda() {
			w = os.Stdout
		} else {
			w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
		}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &log.Logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func onLambda() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}
