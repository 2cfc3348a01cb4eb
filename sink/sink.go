// Package sink defines the collaborators that receive batches of readings from
// the runner. Storage and transport backends live in subpackages.
package sink

import (
	"context"

	emulator "github.com/synaptecltd/sensorsim"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sink receives batches of readings. Implementations must not keep the slice.
type Sink interface {
	Write(ctx context.Context, readings []emulator.Reading) error
	Close() error
}

// Multi writes every batch to all of its sinks. A failing sink does not stop
// the others; their errors are combined.
type Multi []Sink

func (m Multi) Write(ctx context.Context, readings []emulator.Reading) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Write(ctx, readings))
	}
	return err
}

func (m Multi) Close() error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Close())
	}
	return err
}

// Log writes a summary of every batch to a zap logger, and each reading at
// debug level.
type Log struct {
	logger *zap.Logger
}

func NewLog(logger *zap.Logger) *Log {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Log{logger: logger.Named("sink")}
}

func (l *Log) Write(_ context.Context, readings []emulator.Reading) error {
	if len(readings) == 0 {
		return nil
	}
	l.logger.Info("readings",
		zap.Int("count", len(readings)),
		zap.Time("first", readings[0].Timestamp),
		zap.Time("last", readings[len(readings)-1].Timestamp))

	if !l.logger.Core().Enabled(zap.DebugLevel) {
		return nil
	}
	for _, r := range readings {
		l.logger.Debug("reading",
			zap.String("sensor_id", r.SensorID),
			zap.String("category", string(r.Category)),
			zap.Float64("value", r.Value),
			zap.String("unit", r.Unit),
			zap.Time("timestamp", r.Timestamp))
	}
	return nil
}

// Close flushes the logger. Sync errors on terminals are ignored.
func (l *Log) Close() error {
	_ = l.logger.Sync()
	return nil
}
