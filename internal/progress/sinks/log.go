package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/siteclone/internal/progress"
)

// LogSink emits one structured log line per observation.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each observation in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Observation) error {
	for _, obs := range batch {
		fields := []zap.Field{
			zap.String("token", obs.Token),
			zap.String("request_id", obs.RequestID),
			zap.String("stage", string(obs.Stage)),
			zap.String("kind", string(obs.Kind)),
			zap.String("phase", obs.Phase),
			zap.Int64("pages", obs.Pages),
			zap.Int64("files", obs.Files),
			zap.String("text", obs.Text),
		}
		if obs.Filename != "" {
			fields = append(fields, zap.String("filename", obs.Filename))
		}
		if obs.Style == progress.StyleError {
			s.logger.Warn("progress observation", fields...)
			continue
		}
		s.logger.Info("progress observation", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
