package bus

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/okian/standings/pkg/logger"
)

// watermillLogger routes watermill's logs into our logger.
type watermillLogger struct {
	log logger.Logger
}

// NewWatermillLogger adapts l to watermill.LoggerAdapter. Trace goes to Debug.
func NewWatermillLogger(l logger.Logger) watermill.LoggerAdapter {
	return &watermillLogger{log: l.Named("watermill")}
}

func fields(f watermill.LogFields) []logger.Field {
	out := make([]logger.Field, 0, len(f))
	for k, v := range f {
		out = append(out, logger.Any(k, v))
	}
	return out
}

func (w *watermillLogger) Error(msg string, err error, f watermill.LogFields) {
	w.log.Error(context.Background(), msg, append(fields(f), logger.Error(err))...)
}

func (w *watermillLogger) Info(msg string, f watermill.LogFields) {
	w.log.Info(context.Background(), msg, fields(f)...)
}

func (w *watermillLogger) Debug(msg string, f watermill.LogFields) {
	w.log.Debug(context.Background(), msg, fields(f)...)
}

func (w *watermillLogger) Trace(msg string, f watermill.LogFields) {
	w.log.Debug(context.Background(), msg, fields(f)...)
}

func (w *watermillLogger) With(f watermill.LogFields) watermill.LoggerAdapter {
	return &watermillLogger{log: w.log.With(fields(f)...)}
}
