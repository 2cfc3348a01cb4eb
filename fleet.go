package emulator

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/synaptecltd/sensorsim/anomaly"
	"github.com/synaptecltd/sensorsim/sensor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultCategories is the order units are created in. Each fan_rpm unit is
// followed by a paired fan_digital unit.
var DefaultCategories = []sensor.Category{sensor.Oven, sensor.Heater, sensor.Lamp, sensor.FanRPM, sensor.PM}

// Fleet owns a set of units and drives one tick across all of them per
// timestamp. It is safe for concurrent use.
type Fleet struct {
	mu    sync.Mutex
	units []*Unit
	// tick phases: derived units read their source after it has ticked
	independent []int
	derived     []int

	controller  *anomaly.Controller
	parallelism int
	logger      *zap.Logger
	rng         *rand.Rand // fleet-level draws: locations, demo events
}

type fleetOptions struct {
	seed        uint64
	parallelism int
	controller  *anomaly.Controller
	injectorOps []anomaly.Option
	logger      *zap.Logger
	location    sensor.Location
	categories  []sensor.Category
}

type FleetOption func(*fleetOptions)

// WithSeed fixes the random source. Zero seeds from the wall clock.
func WithSeed(seed uint64) FleetOption {
	return func(o *fleetOptions) { o.seed = seed }
}

// WithParallelism spreads each tick phase across k workers.
func WithParallelism(k int) FleetOption {
	return func(o *fleetOptions) { o.parallelism = k }
}

// WithController uses an existing anomaly controller instead of a new one.
func WithController(c *anomaly.Controller) FleetOption {
	return func(o *fleetOptions) { o.controller = c }
}

// WithInjectorOptions configures the injector the fleet creates when no
// controller is given.
func WithInjectorOptions(opts ...anomaly.Option) FleetOption {
	return func(o *fleetOptions) { o.injectorOps = append(o.injectorOps, opts...) }
}

func WithFleetLogger(l *zap.Logger) FleetOption {
	return func(o *fleetOptions) { o.logger = l }
}

// WithLocation pins every unit to loc instead of drawing one per unit.
func WithLocation(loc sensor.Location) FleetOption {
	return func(o *fleetOptions) { o.location = loc }
}

// WithCategories replaces the category cycle.
func WithCategories(c ...sensor.Category) FleetOption {
	return func(o *fleetOptions) { o.categories = c }
}

// NewFleet builds n units cycling through the category list. Every fan_rpm
// unit gets a paired fan_digital unit, so the fleet may hold more than n units.
func NewFleet(n int, opts ...FleetOption) (*Fleet, error) {
	if n <= 0 {
		return nil, errors.New("fleet size must be greater than 0")
	}

	o := fleetOptions{
		parallelism: 1,
		logger:      zap.NewNop(),
		categories:  DefaultCategories,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if len(o.categories) == 0 {
		return nil, errors.New("no categories")
	}
	if o.seed == 0 {
		o.seed = uint64(time.Now().UnixNano())
	}
	if o.parallelism < 1 {
		o.parallelism = 1
	}

	f := &Fleet{
		parallelism: o.parallelism,
		logger:      o.logger,
		rng:         rand.New(rand.NewPCG(o.seed, ^uint64(0))),
		controller:  o.controller,
	}
	if f.controller == nil {
		injOpts := append([]anomaly.Option{anomaly.WithLogger(o.logger)}, o.injectorOps...)
		f.controller = anomaly.NewController(
			anomaly.NewInjector(injOpts...),
			rand.New(rand.NewPCG(o.seed, ^uint64(0)-1)),
			o.logger,
		)
	}

	for i := 0; i < n; i++ {
		c := o.categories[i%len(o.categories)]
		loc := o.location
		if loc == "" {
			loc = sensor.Locations[f.rng.IntN(len(sensor.Locations))]
		}

		u, err := f.add(c, loc, o.seed)
		if err != nil {
			return nil, err
		}

		if c == sensor.FanRPM {
			d := f.addDigitalFan(loc, o.seed, len(f.units)-1)
			f.logger.Debug("paired digital fan",
				zap.String("rpm_sensor", u.ID),
				zap.String("digital_sensor", d.ID))
		}
	}

	f.logger.Info("fleet created",
		zap.Int("units", len(f.units)),
		zap.Int("parallelism", f.parallelism),
		zap.Uint64("seed", o.seed))
	return f, nil
}

func (f *Fleet) unitRng(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, uint64(len(f.units))))
}

func (f *Fleet) add(c sensor.Category, loc sensor.Location, seed uint64) (*Unit, error) {
	r := f.unitRng(seed)
	sim, err := sensor.New(c, loc, r)
	if err != nil {
		return nil, fmt.Errorf("creating %s unit: %w", c, err)
	}
	return f.push(NewUnit("", sim, loc, r)), nil
}

func (f *Fleet) addDigitalFan(loc sensor.Location, seed uint64, pair int) *Unit {
	r := f.unitRng(seed)
	return f.push(NewUnit("", sensor.NewDigitalFan(loc, pair), loc, r))
}

func (f *Fleet) push(u *Unit) *Unit {
	idx := len(f.units)
	f.units = append(f.units, u)
	if _, ok := u.sim.(sensor.Derived); ok {
		f.derived = append(f.derived, idx)
	} else {
		f.independent = append(f.independent, idx)
	}
	return u
}

// Controller returns the anomaly controller shared by every unit.
func (f *Fleet) Controller() *anomaly.Controller { return f.controller }

// Len returns the number of units.
func (f *Fleet) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.units)
}

// Units returns the fleet's units. They must not be ticked outside the fleet.
func (f *Fleet) Units() []*Unit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Unit(nil), f.units...)
}

// Tick drives every unit once at now and returns one reading per unit in unit
// order. Independent units tick first, then derived units read the value
// their source reported in this tick.
func (f *Fleet) Tick(now time.Time) []Reading {
	f.mu.Lock()
	defer f.mu.Unlock()

	readings := make([]Reading, len(f.units))
	f.runPhase(f.independent, now, readings)

	for _, idx := range f.derived {
		d := f.units[idx].sim.(sensor.Derived)
		d.Feed(f.sourceValue(d.Pair()))
	}
	f.runPhase(f.derived, now, readings)
	return readings
}

// sourceValue returns the last reported value of the unit at idx, treating a
// missing or not yet ticked unit as 0.
func (f *Fleet) sourceValue(idx int) float64 {
	if idx < 0 || idx >= len(f.units) {
		return 0
	}
	if v := f.units[idx].LastValue; v != nil {
		return *v
	}
	return 0
}

func (f *Fleet) runPhase(indexes []int, now time.Time, readings []Reading) {
	if f.parallelism <= 1 || len(indexes) < 2 {
		for _, idx := range indexes {
			readings[idx] = f.units[idx].Tick(now, f.controller)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(f.parallelism)
	for _, idx := range indexes {
		g.Go(func() error {
			readings[idx] = f.units[idx].Tick(now, f.controller)
			return nil
		})
	}
	_ = g.Wait() // unit ticks never fail
}

// UnitSnapshot describes one unit for status reports.
type UnitSnapshot struct {
	ID           string          `json:"id"`
	Category     sensor.Category `json:"category"`
	Location     sensor.Location `json:"location"`
	Type         sensor.Kind     `json:"type"`
	Unit         string          `json:"unit"`
	Mode         string          `json:"mode"`
	LastValue    *float64        `json:"last_value"`
	ReadingCount uint64          `json:"reading_count"`
}

// Snapshot returns the current state of every unit.
func (f *Fleet) Snapshot() []UnitSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]UnitSnapshot, 0, len(f.units))
	for _, u := range f.units {
		var last *float64
		if u.LastValue != nil {
			v := *u.LastValue
			last = &v
		}
		out = append(out, UnitSnapshot{
			ID:           u.ID,
			Category:     u.Category,
			Location:     u.Location,
			Type:         u.Kind,
			Unit:         u.UnitLabel,
			Mode:         u.Mode(),
			LastValue:    last,
			ReadingCount: u.ReadingCount,
		})
	}
	return out
}
