package utils

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// InitLogger writes human-readable logs to stderr. When stderr is not a
// terminal (service, pipe) it switches to JSON lines.
func InitLogger(debug bool) {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	SetLogOutput(os.Stderr)
}

func GetLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

func SetLogOutput(w io.Writer) {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.DateTime,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}
