package anomaly

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/synaptecltd/sensorsim/sensor"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit     = 1000
	defaultHistoryRetention = 24 * time.Hour
)

// Observer is notified of anomaly lifecycle events, e.g. to update metrics.
type Observer interface {
	AnomalyInjected(category, typ string)
	AnomalyEnded(category, typ string)
}

// Injector tracks at most one active anomaly per sensor id and a bounded log
// of past injections. It is safe for concurrent use.
type Injector struct {
	mu       sync.Mutex
	catalog  Catalog
	active   map[string]*Anomaly
	history  []HistoryEntry
	injected uint64

	historyLimit     int
	historyRetention time.Duration
	now              func() time.Time
	logger           *zap.Logger
	observer         Observer
}

type Option func(*Injector)

// WithCatalog replaces the built-in catalog.
func WithCatalog(c Catalog) Option {
	return func(i *Injector) { i.catalog = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(i *Injector) { i.logger = l }
}

// WithClock sets the time source used for start times and history pruning.
func WithClock(now func() time.Time) Option {
	return func(i *Injector) { i.now = now }
}

// WithHistoryLimit bounds the number of retained history entries.
func WithHistoryLimit(n int) Option {
	return func(i *Injector) {
		if n > 0 {
			i.historyLimit = n
		}
	}
}

// WithHistoryRetention sets the age after which history entries are pruned.
func WithHistoryRetention(d time.Duration) Option {
	return func(i *Injector) {
		if d > 0 {
			i.historyRetention = d
		}
	}
}

func WithObserver(o Observer) Option {
	return func(i *Injector) { i.observer = o }
}

// NewInjector returns an injector using the default catalog unless overridden.
func NewInjector(opts ...Option) *Injector {
	i := &Injector{
		catalog:          DefaultCatalog(),
		active:           make(map[string]*Anomaly),
		historyLimit:     defaultHistoryLimit,
		historyRetention: defaultHistoryRetention,
		now:              time.Now,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Catalog returns the catalog the injector draws from.
func (i *Injector) Catalog() Catalog { return i.catalog }

// ShouldInject reports whether a new anomaly should start for the sensor: false
// while one is active, otherwise true with probability rate.
func (i *Injector) ShouldInject(r *rand.Rand, sensorID string, rate float64) bool {
	i.mu.Lock()
	_, busy := i.active[sensorID]
	i.mu.Unlock()

	if busy {
		return false
	}
	return r.Float64() < rate
}

// Inject starts an anomaly on the sensor. An empty typ picks uniformly from the
// category's catalog entries. Unknown categories or types return an error
// wrapping ErrUnknownCategory or ErrUnknownType and leave state unchanged.
func (i *Injector) Inject(r *rand.Rand, sensorID, category, typ string) (Anomaly, error) {
	return i.inject(r, sensorID, category, typ, 0)
}

// ForceInject is Inject with an explicit type and, when duration > 0, a fixed
// duration in ticks overriding the catalog's range for this call only.
func (i *Injector) ForceInject(r *rand.Rand, sensorID, category, typ string, duration int) (Anomaly, error) {
	if typ == "" {
		return Anomaly{}, fmt.Errorf("%w: empty type", ErrUnknownType)
	}
	return i.inject(r, sensorID, category, typ, duration)
}

func (i *Injector) inject(r *rand.Rand, sensorID, category, typ string, duration int) (Anomaly, error) {
	key := Key(category)

	if typ == "" {
		types := i.catalog.Types(key)
		if len(types) == 0 {
			return Anomaly{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
		}
		typ = types[r.IntN(len(types))]
	}

	pattern, err := i.catalog.Lookup(key, typ)
	if err != nil {
		return Anomaly{}, err
	}

	a := newAnomaly(r, pattern, sensorID, key, typ, duration)

	i.mu.Lock()
	a.StartedAt = i.now()
	prev, replaced := i.active[sensorID]
	i.active[sensorID] = a
	i.injected++
	i.appendHistory(a.historyEntry())
	out := *a
	i.mu.Unlock()

	if replaced {
		i.logger.Info("anomaly replaced",
			zap.String("sensor_id", sensorID),
			zap.String("previous", prev.Type),
			zap.String("type", typ))
		if i.observer != nil {
			i.observer.AnomalyEnded(prev.Category, prev.Type)
		}
	}

	i.logger.Info("anomaly injected",
		zap.String("sensor_id", sensorID),
		zap.String("category", key),
		zap.String("type", typ),
		zap.Int("duration", a.TotalDuration),
		zap.Stringer("anomaly_id", a.ID))
	if i.observer != nil {
		i.observer.AnomalyInjected(key, typ)
	}
	return out, nil
}

// newAnomaly draws the payload and duration from the pattern. A duration > 0
// overrides the pattern's range.
func newAnomaly(r *rand.Rand, p *Pattern, sensorID, category, typ string, duration int) *Anomaly {
	a := &Anomaly{
		ID:       uuid.New(),
		SensorID: sensorID,
		Category: category,
		Type:     typ,
		shape:    p.shape,
	}

	if lo, hi, ok := p.GetRange(); ok {
		a.Magnitude = f64(lo + r.Float64()*(hi-lo))
	}
	if v, ok := p.GetValue(); ok {
		a.FixedValue = f64(v)
	}
	if rate, ok := p.GetRate(); ok {
		a.Rate = f64(rate * (0.5 + r.Float64()*1.5))
	}
	if off, ok := p.GetOffset(); ok {
		a.Offset = f64(off * (0.5 + r.Float64()))
	}
	if amp, freq, ok := p.GetOscillation(); ok {
		a.Amplitude = f64(amp)
		a.Frequency = f64(freq)
	}

	if duration <= 0 {
		lo, hi := p.GetDurationRange()
		duration = lo + r.IntN(hi-lo+1)
	}
	a.TotalDuration = duration
	a.RemainingDuration = duration
	return a
}

func (i *Injector) appendHistory(e HistoryEntry) {
	i.history = append(i.history, e)
	if over := len(i.history) - i.historyLimit; over > 0 {
		i.history = append(i.history[:0], i.history[over:]...)
	}
}

// Apply returns the clean value transformed by the sensor's active anomaly, or
// the clean value unchanged when none is active. Call once per tick per sensor,
// before UpdateSensor.
func (i *Injector) Apply(r *rand.Rand, sensorID string, clean float64, kind sensor.Kind) float64 {
	i.mu.Lock()
	defer i.mu.Unlock()

	a, ok := i.active[sensorID]
	if !ok {
		return clean
	}
	return a.transform(r, clean, kind)
}

// UpdateSensor ages the sensor's active anomaly by one tick, removing it when
// no ticks remain.
func (i *Injector) UpdateSensor(sensorID string) {
	i.mu.Lock()
	a, ok := i.active[sensorID]
	var ended *Anomaly
	if ok {
		a.RemainingDuration--
		if a.RemainingDuration <= 0 {
			delete(i.active, sensorID)
			ended = a
		}
	}
	i.mu.Unlock()

	if ended != nil {
		i.ended(ended)
	}
}

// Update ages every active anomaly by one tick.
func (i *Injector) Update() {
	var ended []*Anomaly

	i.mu.Lock()
	for id, a := range i.active {
		a.RemainingDuration--
		if a.RemainingDuration <= 0 {
			delete(i.active, id)
			ended = append(ended, a)
		}
	}
	i.mu.Unlock()

	for _, a := range ended {
		i.ended(a)
	}
}

func (i *Injector) ended(a *Anomaly) {
	i.logger.Info("anomaly ended",
		zap.String("sensor_id", a.SensorID),
		zap.String("type", a.Type),
		zap.Stringer("anomaly_id", a.ID))
	if i.observer != nil {
		i.observer.AnomalyEnded(a.Category, a.Type)
	}
}

// Active returns a copy of the sensor's active anomaly.
func (i *Injector) Active(sensorID string) (Anomaly, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	a, ok := i.active[sensorID]
	if !ok {
		return Anomaly{}, false
	}
	return *a, true
}

// Injected returns the number of anomalies injected since creation.
func (i *Injector) Injected() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.injected
}

// ActiveCount returns the number of sensors with an active anomaly.
func (i *Injector) ActiveCount() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.active)
}

// ActiveBySensor summarises every active anomaly keyed by sensor id.
func (i *Injector) ActiveBySensor() map[string]ActiveSummary {
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make(map[string]ActiveSummary, len(i.active))
	for id, a := range i.active {
		out[id] = a.summary()
	}
	return out
}

// History returns the entries started within window of now, oldest first.
// Entries older than the retention period are pruned.
func (i *Injector) History(window time.Duration) []HistoryEntry {
	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	retained := now.Add(-i.historyRetention)
	keep := i.history[:0]
	for _, e := range i.history {
		if e.StartedAt.After(retained) {
			keep = append(keep, e)
		}
	}
	i.history = keep

	cutoff := now.Add(-window)
	out := []HistoryEntry{}
	for _, e := range i.history {
		if e.StartedAt.After(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// ClearAll drops every active anomaly and returns how many were dropped.
// History is left untouched.
func (i *Injector) ClearAll() int {
	i.mu.Lock()
	cleared := i.active
	i.active = make(map[string]*Anomaly)
	i.mu.Unlock()

	if i.observer != nil {
		for _, a := range cleared {
			i.observer.AnomalyEnded(a.Category, a.Type)
		}
	}
	i.logger.Info("anomalies cleared", zap.Int("count", len(cleared)))
	return len(cleared)
}
