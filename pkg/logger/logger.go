package logger

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global zerolog logger. Development gets a console writer
// at debug level; every other environment gets JSON at info level.
// log.Ctx falls back to the global logger outside of requests.
func Init(env, service string) {
	zerolog.DefaultContextLogger = &log.Logger

	if env == "development" {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).
			With().Timestamp().Caller().Str("service", service).Logger().
			Level(zerolog.DebugLevel)
		return
	}
	log.Logger = zerolog.New(os.Stdout).
		With().Timestamp().Str("service", service).Logger().
		Level(zerolog.InfoLevel)
}
