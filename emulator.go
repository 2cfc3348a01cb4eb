// Package emulator drives a fleet of simulated IoT sensors tick by tick,
// routing every clean value through the anomaly injector before clamping it
// to the sensor's physical bounds.
package emulator

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/synaptecltd/sensorsim/anomaly"
	"github.com/synaptecltd/sensorsim/mathfuncs"
	"github.com/synaptecltd/sensorsim/sensor"
)

// DemoEventDuration is the number of ticks a demo anomaly lasts.
const DemoEventDuration = 10

// DemoEvents is the anomaly type forced per catalog key in demo mode.
var DemoEvents = map[string]string{
	"oven":   anomaly.Spike,
	"pm":     anomaly.PollutionSpike,
	"fan":    anomaly.Stall,
	"lamp":   anomaly.Flicker,
	"heater": anomaly.Oscillation,
}

// Reading is one sensor value at one timestamp.
type Reading struct {
	SensorID  string          `json:"sensor_id"`
	Timestamp time.Time       `json:"timestamp"`
	Category  sensor.Category `json:"category"`
	Type      sensor.Kind     `json:"type"`
	Value     float64         `json:"value"`
	Unit      string          `json:"unit"`
	Location  sensor.Location `json:"location"`
}

// Unit wraps a simulator with its identity and reading state. A unit is
// mutated only by its own Tick.
type Unit struct {
	ID        string
	Category  sensor.Category
	Location  sensor.Location
	Kind      sensor.Kind
	UnitLabel string
	Min, Max  float64

	LastValue    *float64 // nil before the first tick
	ReadingCount uint64

	sim sensor.Simulator
	r   *rand.Rand
}

// NewUnit wraps sim. An empty id is replaced by a generated one.
func NewUnit(id string, sim sensor.Simulator, loc sensor.Location, r *rand.Rand) *Unit {
	if id == "" {
		id = NewSensorID(sim.Category(), loc)
	}
	min, max := sim.Bounds()
	return &Unit{
		ID:        id,
		Category:  sim.Category(),
		Location:  loc,
		Kind:      sim.Category().Kind(),
		UnitLabel: sim.Unit(),
		Min:       min,
		Max:       max,
		sim:       sim,
		r:         r,
	}
}

// NewSensorID returns an id of the form <category>-<location>-<8 hex chars>.
func NewSensorID(c sensor.Category, loc sensor.Location) string {
	return fmt.Sprintf("%s-%s-%s", c, loc, uuid.NewString()[:8])
}

// Simulator returns the unit's state machine.
func (u *Unit) Simulator() sensor.Simulator { return u.sim }

// Mode returns the simulator's current operating state.
func (u *Unit) Mode() string { return u.sim.Mode() }

// Tick produces the unit's reading for now. With a controller, random
// injection may start an anomaly, and any active anomaly is applied and aged
// by one tick.
func (u *Unit) Tick(now time.Time, ctrl *anomaly.Controller) Reading {
	value := u.sim.Step(u.r, now)

	if ctrl != nil {
		ctrl.MaybeInject(u.r, u.ID, string(u.Category))
		inj := ctrl.Injector()
		value = inj.Apply(u.r, u.ID, value, u.Kind)
		inj.UpdateSensor(u.ID)
	}

	value = mathfuncs.Clamp(value, u.Min, u.Max)
	u.LastValue = &value
	u.ReadingCount++

	return Reading{
		SensorID:  u.ID,
		Timestamp: now,
		Category:  u.Category,
		Type:      u.Kind,
		Value:     value,
		Unit:      u.UnitLabel,
		Location:  u.Location,
	}
}

// StartDemoEvent forces the demo anomaly of a randomly chosen unit whose
// category has one. It returns the unit id and anomaly type, or false when no
// unit qualifies.
func (f *Fleet) StartDemoEvent() (string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var candidates []*Unit
	for _, u := range f.units {
		if _, ok := DemoEvents[u.Category.CatalogKey()]; ok {
			candidates = append(candidates, u)
		}
	}
	if len(candidates) == 0 {
		return "", "", false
	}

	u := candidates[f.rng.IntN(len(candidates))]
	typ := DemoEvents[u.Category.CatalogKey()]
	if !f.controller.ForceInject(u.ID, string(u.Category), typ, DemoEventDuration) {
		return "", "", false
	}
	return u.ID, typ, true
}
