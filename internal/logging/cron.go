package logging

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger adapts zerolog to the cron.Logger interface.
type cronLogger struct {
	log zerolog.Logger
}

// NewCronLogger returns a cron.Logger that writes through the given zerolog
// logger.
func NewCronLogger(log zerolog.Logger) cron.Logger {
	return &cronLogger{log: log}
}

func (c *cronLogger) Info(msg string, keysAndValues ...any) {
	c.event(c.log.Debug(), keysAndValues).Msg(msg)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.event(c.log.Error().Err(err), keysAndValues).Msg(msg)
}

func (c *cronLogger) event(ev *zerolog.Event, keysAndValues []any) *zerolog.Event {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, keysAndValues[i+1])
	}
	return ev
}
