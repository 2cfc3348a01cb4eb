package emulator

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Runner modes.
const (
	Batch      = "batch"      // advance simulated time without sleeping
	Continuous = "continuous" // tick on the wall clock
)

const (
	DefaultBatchSize   = 1000
	DefaultStatusEvery = 10 // cycles
	DefaultDemoEvery   = 20 // cycles
)

// Writer receives batches of readings. Storage and transport sinks implement it.
type Writer interface {
	Write(ctx context.Context, readings []Reading) error
}

// TickObserver is notified after every fleet tick, e.g. to update metrics.
type TickObserver interface {
	ObserveTick(readings int, elapsed time.Duration, activeAnomalies int)
}

// RunnerParams configures a Runner. These map onto the fields of Runner.
type RunnerParams struct {
	Mode       string        `mapstructure:"mode"`
	Interval   time.Duration `mapstructure:"interval"`   // between ticks, simulated or wall clock
	Start      time.Time     `mapstructure:"start"`      // batch only
	End        time.Time     `mapstructure:"end"`        // batch only, inclusive
	Iterations int           `mapstructure:"iterations"` // 0 for no limit
	Duration   time.Duration `mapstructure:"duration"`   // continuous only, 0 for no limit
	BatchSize  int           `mapstructure:"batch_size"`
	Demo       bool          `mapstructure:"demo"`
}

// Summary reports what a run produced.
type Summary struct {
	Cycles            int
	Readings          int
	InjectedAnomalies int // random and forced
	ForcedAnomalies   int // demo events
	ActiveAnomalies   int // at the end of the run
	WriteFailures     int
}

// Runner is the driver loop advancing a fleet in fixed steps and handing the
// readings to writers. Cancellation is checked once per tick.
type Runner struct {
	fleet *Fleet

	mode       string
	interval   time.Duration
	start, end time.Time
	iterations int
	duration   time.Duration
	batchSize  int
	demo       bool

	writers  []Writer
	observer TickObserver
	logger   *zap.Logger
	clock    func() time.Time

	summary Summary
	pending []Reading
}

type RunnerOption func(*Runner)

// WithWriters adds writers receiving every batch.
func WithWriters(w ...Writer) RunnerOption {
	return func(r *Runner) { r.writers = append(r.writers, w...) }
}

func WithTickObserver(o TickObserver) RunnerOption {
	return func(r *Runner) { r.observer = o }
}

func WithRunnerLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithRunnerClock sets the wall clock used in continuous mode.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.clock = now }
}

// Returns a Runner with the requested parameters, checking for invalid values.
func NewRunner(fleet *Fleet, params RunnerParams, opts ...RunnerOption) (*Runner, error) {
	if fleet == nil {
		return nil, errors.New("fleet is required")
	}
	r := &Runner{
		fleet:      fleet,
		start:      params.Start,
		end:        params.End,
		iterations: params.Iterations,
		duration:   params.Duration,
		demo:       params.Demo,
		logger:     zap.NewNop(),
		clock:      time.Now,
	}

	// Invalid values checked by setters
	if err := r.SetMode(params.Mode); err != nil {
		return nil, err
	}
	if err := r.SetInterval(params.Interval); err != nil {
		return nil, err
	}
	if err := r.SetBatchSize(params.BatchSize); err != nil {
		return nil, err
	}
	if params.Iterations < 0 {
		return nil, errors.New("iterations must be greater than or equal to 0")
	}
	if r.mode == Batch {
		if r.start.IsZero() {
			return nil, errors.New("batch mode needs a start time")
		}
		if r.end.IsZero() && r.iterations == 0 {
			return nil, errors.New("batch mode needs an end time or an iteration limit")
		}
		if !r.end.IsZero() && r.end.Before(r.start) {
			return nil, errors.New("end must not be before start")
		}
	}

	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Sets the run mode. Empty selects continuous.
func (r *Runner) SetMode(mode string) error {
	switch mode {
	case "":
		r.mode = Continuous
	case Batch, Continuous:
		r.mode = mode
	default:
		return errors.New("mode must be batch or continuous")
	}
	return nil
}

// Sets the tick interval if interval > 0.
func (r *Runner) SetInterval(interval time.Duration) error {
	if interval <= 0 {
		return errors.New("interval must be greater than 0")
	}
	r.interval = interval
	return nil
}

// Sets the flush batch size. Zero selects the default.
func (r *Runner) SetBatchSize(n int) error {
	if n < 0 {
		return errors.New("batch size must be greater than or equal to 0")
	}
	if n == 0 {
		n = DefaultBatchSize
	}
	r.batchSize = n
	return nil
}

func (r *Runner) GetMode() string { return r.mode }

func (r *Runner) GetInterval() time.Duration { return r.interval }

func (r *Runner) GetBatchSize() int { return r.batchSize }

// Run drives the fleet until the configured limit is reached or ctx is done.
// Cancellation is a normal stop.
func (r *Runner) Run(ctx context.Context) Summary {
	injected := r.fleet.Controller().Injector().Injected()
	r.logger.Info("run started",
		zap.String("mode", r.mode),
		zap.Duration("interval", r.interval),
		zap.Int("units", r.fleet.Len()),
		zap.Bool("demo", r.demo))

	if r.mode == Batch {
		r.runBatch(ctx)
	} else {
		r.runContinuous(ctx)
	}
	r.flush(context.WithoutCancel(ctx))

	inj := r.fleet.Controller().Injector()
	r.summary.ActiveAnomalies = inj.ActiveCount()
	r.summary.InjectedAnomalies = int(inj.Injected() - injected)
	r.logger.Info("run finished",
		zap.Int("cycles", r.summary.Cycles),
		zap.Int("readings", r.summary.Readings),
		zap.Int("anomalies_injected", r.summary.InjectedAnomalies),
		zap.Int("write_failures", r.summary.WriteFailures))
	return r.summary
}

func (r *Runner) runBatch(ctx context.Context) {
	for now := r.start; r.end.IsZero() || !now.After(r.end); now = now.Add(r.interval) {
		if ctx.Err() != nil || r.limitReached() {
			return
		}
		r.cycle(ctx, now)
	}
}

func (r *Runner) runContinuous(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	began := r.clock()
	for {
		if r.limitReached() || (r.duration > 0 && r.clock().Sub(began) >= r.duration) {
			return
		}
		r.cycle(ctx, r.clock())
		r.flush(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Runner) limitReached() bool {
	return r.iterations > 0 && r.summary.Cycles >= r.iterations
}

// cycle runs one tick plus the per-cycle demo and status bookkeeping.
func (r *Runner) cycle(ctx context.Context, now time.Time) {
	began := time.Now()
	readings := r.fleet.Tick(now)
	elapsed := time.Since(began)

	r.summary.Cycles++
	r.summary.Readings += len(readings)
	r.pending = append(r.pending, readings...)
	if len(r.pending) >= r.batchSize {
		r.flush(ctx)
	}

	if r.demo && r.summary.Cycles%DefaultDemoEvery == 0 {
		if id, typ, ok := r.fleet.StartDemoEvent(); ok {
			r.summary.ForcedAnomalies++
			r.logger.Info("demo anomaly forced", zap.String("sensor_id", id), zap.String("type", typ))
		}
	}

	active := r.fleet.Controller().Injector().ActiveBySensor()
	if r.observer != nil {
		r.observer.ObserveTick(len(readings), elapsed, len(active))
	}

	if r.summary.Cycles%DefaultStatusEvery == 0 {
		r.logger.Info("status",
			zap.Int("cycle", r.summary.Cycles),
			zap.Int("readings", r.summary.Readings),
			zap.Int("active_anomalies", len(active)))
		for id, a := range active {
			r.logger.Info("active anomaly",
				zap.String("sensor_id", id),
				zap.String("type", a.Type),
				zap.Int("remaining", a.RemainingDuration))
		}
	}
}

// flush hands pending readings to every writer in chunks of batchSize. Write
// failures are logged and counted; the run continues.
func (r *Runner) flush(ctx context.Context) {
	for len(r.pending) > 0 {
		n := min(len(r.pending), r.batchSize)
		batch := r.pending[:n]
		for _, w := range r.writers {
			if err := w.Write(ctx, batch); err != nil {
				r.summary.WriteFailures++
				r.logger.Error("writing readings", zap.Int("count", len(batch)), zap.Error(err))
			}
		}
		r.pending = r.pending[n:]
	}
	r.pending = nil
}
