package util

import (
	"strings"

	"github.com/rs/zerolog"
)

// Logger forwards the log lines of a badger database to zerolog. Badger
// info lines are logged at debug level.
type Logger struct {
	log zerolog.Logger
}

func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		log: logger.With().
			Str("component", "substate_db").
			Str("backend", "badger").
			Logger(),
	}
}

func (l *Logger) Errorf(msg string, args ...interface{}) {
	l.log.Error().Msgf(trim(msg), args...)
}

func (l *Logger) Warningf(msg string, args ...interface{}) {
	l.log.Warn().Msgf(trim(msg), args...)
}

func (l *Logger) Infof(msg string, args ...interface{}) {
	l.log.Debug().Msgf(trim(msg), args...)
}

func (l *Logger) Debugf(msg string, args ...interface{}) {
	l.log.Trace().Msgf(trim(msg), args...)
}

// badger terminates its messages with a new line
func trim(msg string) string {
	return strings.TrimSuffix(msg, "\n")
}
