package anomaly

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/synaptecltd/sensorsim/mathfuncs"
	"go.uber.org/zap"
)

const (
	RecentWindow = time.Hour // history window reported by Status
	DefaultRate  = 0.02      // per-tick injection probability when none is given
)

// Controller is the operator surface over an Injector: it holds whether random
// injection is enabled and at what per-tick rate. Forced anomalies and anomalies
// already active are applied regardless of the enabled flag.
type Controller struct {
	injector *Injector
	logger   *zap.Logger

	mu      sync.RWMutex
	enabled bool
	rate    float64

	rngMu sync.Mutex
	rng   *rand.Rand // for operator calls that have no tick rng
}

// NewController returns a disabled controller over injector. r is used for
// draws made on behalf of operator calls.
func NewController(injector *Injector, r *rand.Rand, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{injector: injector, rng: r, logger: logger}
}

func (c *Controller) Injector() *Injector { return c.injector }

// Enable turns random injection on with a per-tick rate clamped to [0, 1].
func (c *Controller) Enable(rate float64) {
	rate = mathfuncs.Clamp(rate, 0, 1)

	c.mu.Lock()
	c.enabled = true
	c.rate = rate
	c.mu.Unlock()

	c.logger.Info("anomaly injection enabled", zap.Float64("rate", rate))
}

// Disable turns random injection off. Active anomalies run to completion.
func (c *Controller) Disable() {
	c.mu.Lock()
	c.enabled = false
	c.mu.Unlock()

	c.logger.Info("anomaly injection disabled")
}

// Enabled returns whether random injection is on and its rate.
func (c *Controller) Enabled() (bool, float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled, c.rate
}

// MaybeInject starts a random anomaly on the sensor when injection is enabled
// and the injector's draw succeeds. It reports whether one was started.
func (c *Controller) MaybeInject(r *rand.Rand, sensorID, category string) bool {
	enabled, rate := c.Enabled()
	if !enabled || !c.injector.ShouldInject(r, sensorID, rate) {
		return false
	}
	_, err := c.injector.Inject(r, sensorID, category, "")
	return err == nil
}

// ForceInject starts the named anomaly on the sensor for duration ticks. It
// returns false when the category or type is unknown.
func (c *Controller) ForceInject(sensorID, category, typ string, duration int) bool {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	if _, err := c.injector.ForceInject(c.rng, sensorID, category, typ, duration); err != nil {
		c.logger.Warn("forced anomaly rejected",
			zap.String("sensor_id", sensorID),
			zap.Error(err))
		return false
	}
	return true
}

// Status reports the enabled state, active anomalies and the last hour of history.
func (c *Controller) Status() Status {
	enabled, rate := c.Enabled()
	active := c.injector.ActiveBySensor()
	return Status{
		Enabled:        enabled,
		Rate:           rate,
		ActiveCount:    len(active),
		ActiveBySensor: active,
		RecentHistory:  c.injector.History(RecentWindow),
	}
}

// ClearAll drops every active anomaly and returns how many were dropped.
func (c *Controller) ClearAll() int {
	return c.injector.ClearAll()
}
