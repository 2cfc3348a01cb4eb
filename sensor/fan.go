package sensor

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/synaptecltd/sensorsim/mathfuncs"
)

// Fan modes.
const (
	FanStopped      = "stopped"
	FanAccelerating = "accelerating"
	FanDecelerating = "decelerating"
	FanSteady       = "steady"

	FanOff      = "off"
	FanOn       = "on"
	FanOverride = "override"
)

const (
	rpmMax = 1200.0

	// RunningRPM is the speed above which a fan counts as running.
	RunningRPM = 10.0
)

var fanHours = businessHours{
	Restaurant:  {10, 23},
	Supermarket: {7, 22},
	Factory:     {6, 18},
}

// speedLadders are the discrete speed levels per location.
var speedLadders = map[Location][]float64{
	Restaurant:  {0, 200, 400, 600, 800, 1000}, // kitchen exhaust
	Supermarket: {0, 150, 300, 500, 700, 900},  // HVAC circulation
	Factory:     {0, 300, 500, 700, 900, 1200}, // industrial ventilation
}

// RPMFanSensor simulates a fan tachometer with motor-like acceleration.
type RPMFanSensor struct {
	Location Location

	acceleration float64 // rpm per tick
	deceleration float64
	levels       []float64
	level        int
	target       float64
	vibration    float64
	mode         string

	value   float64
	started bool
}

// NewRPMFan returns an RPM fan sensor at loc, initially stopped.
func NewRPMFan(loc Location, r *rand.Rand) *RPMFanSensor {
	levels, ok := speedLadders[loc]
	if !ok {
		levels = speedLadders[Restaurant]
	}
	return &RPMFanSensor{
		Location:     loc,
		acceleration: uniform(r, 15, 25),
		deceleration: uniform(r, 20, 30),
		levels:       levels,
		mode:         FanStopped,
	}
}

func (f *RPMFanSensor) Category() Category         { return FanRPM }
func (f *RPMFanSensor) Unit() string               { return "rpm" }
func (f *RPMFanSensor) Bounds() (float64, float64) { return 0, rpmMax }
func (f *RPMFanSensor) Mode() string               { return f.mode }

// Target returns the speed the fan is moving toward.
func (f *RPMFanSensor) Target() float64 { return f.target }

// Step advances the fan by one tick.
func (f *RPMFanSensor) Step(r *rand.Rand, now time.Time) float64 {
	if !f.started {
		f.started = true
		return 0
	}

	hour := now.Hour()
	if r.Float64() < 0.1 {
		f.level = f.demandLevel(r, hour, fanHours.open(f.Location, hour))
		f.target = f.levels[f.level]
	}

	rpm := f.value
	diff := f.target - rpm

	switch {
	case math.Abs(diff) <= 10:
		f.mode = FanSteady
	case diff > 0:
		// slow startup, fast mid-range, tapering at high speed
		rate := f.acceleration * 0.8
		if rpm < 100 {
			rate = f.acceleration * 0.6
		} else if rpm < 300 {
			rate = f.acceleration * 1.2
		}
		rpm = math.Min(f.target, rpm+uniform(r, rate*0.8, rate*1.2))
		f.mode = FanAccelerating
	default:
		rate := f.deceleration
		if rpm > 800 {
			rate *= 1.3 // air resistance
		}
		rpm = math.Max(f.target, rpm-uniform(r, rate*0.8, rate*1.2))
		f.mode = FanDecelerating
	}

	if rpm > 0 {
		f.vibration = math.Min(15, rpm/80+uniform(r, 0, 5))
		rpm += uniform(r, -f.vibration, f.vibration)

		// bearing wear, imbalance
		if r.Float64() < 0.01 {
			rpm += uniform(r, -20, 20)
		}
	}

	// cogging at very low speed
	if rpm > 0 && rpm < 50 {
		rpm += uniform(r, -10, 10)
	}

	f.value = mathfuncs.Clamp(rpm, 0, rpmMax)
	if f.value == 0 && f.target == 0 {
		f.mode = FanStopped
	}
	return f.value
}

func (f *RPMFanSensor) demandLevel(r *rand.Rand, hour int, business bool) int {
	if !business {
		return choice(r, 0, 1)
	}
	switch f.Location {
	case Restaurant:
		if hourOneOf(hour, 11, 12, 13, 18, 19, 20, 21) {
			return choice(r, 3, 4, 5)
		}
		return choice(r, 1, 2, 3)
	case Supermarket:
		if hourOneOf(hour, 10, 11, 17, 18, 19) {
			return choice(r, 2, 3, 4)
		}
		return choice(r, 1, 2)
	case Factory:
		if hourOneOf(hour, 8, 9, 10, 14, 15, 16) {
			return choice(r, 3, 4, 5)
		}
		return choice(r, 2, 3)
	}
	return choice(r, 1, 2, 3)
}

// DigitalFanSensor reports the on/off state of a fan, following the speed of
// its paired RPM sensor with start-up and shut-down lag.
type DigitalFanSensor struct {
	Location Location

	pair    int
	rpm     float64
	on      bool
	started bool

	startupTicks  int
	startupDelay  int // drawn when the fan is first seen running
	shutdownTicks int
	shutdownDelay int // drawn when the fan is first seen stopped
	override      bool
	overrideTicks int
	overrideFor   int
}

// NewDigitalFan returns a digital fan sensor reading the unit at index pair.
// A negative pair leaves the sensor unpaired, treating the fan as stopped.
func NewDigitalFan(loc Location, pair int) *DigitalFanSensor {
	return &DigitalFanSensor{Location: loc, pair: pair}
}

func (d *DigitalFanSensor) Category() Category         { return FanDigital }
func (d *DigitalFanSensor) Unit() string               { return "io" }
func (d *DigitalFanSensor) Bounds() (float64, float64) { return 0, 1 }
func (d *DigitalFanSensor) Pair() int                  { return d.pair }

// SetPair links the sensor to the unit at index pair.
func (d *DigitalFanSensor) SetPair(pair int) { d.pair = pair }

// Feed records the paired fan's latest rpm.
func (d *DigitalFanSensor) Feed(rpm float64) { d.rpm = rpm }

func (d *DigitalFanSensor) Mode() string {
	switch {
	case d.override:
		return FanOverride
	case d.on:
		return FanOn
	}
	return FanOff
}

// Step advances the digital fan by one tick and returns 0 or 1.
func (d *DigitalFanSensor) Step(r *rand.Rand, _ time.Time) float64 {
	if !d.started {
		d.started = true
		return 0
	}

	// manual override holds the current state
	if d.override {
		d.overrideTicks++
		if d.overrideTicks > d.overrideFor {
			d.override = false
			d.overrideTicks = 0
		}
		return d.output()
	}

	if d.rpm > RunningRPM {
		d.shutdownTicks = 0
		if d.on {
			return 1
		}
		if d.startupTicks == 0 {
			d.startupDelay = intBetween(r, 1, 3)
		}
		d.startupTicks++
		if d.startupTicks > d.startupDelay {
			d.startupTicks = 0
			d.on = true
		}
		return d.output()
	}

	d.startupTicks = 0
	if d.on {
		if d.shutdownTicks == 0 {
			d.shutdownDelay = intBetween(r, 1, 5)
		}
		d.shutdownTicks++
		if d.shutdownTicks > d.shutdownDelay {
			d.shutdownTicks = 0
			d.on = false
		}
		return d.output()
	}

	// unexplained manual switch-on (testing, maintenance)
	if r.Float64() < 0.02 {
		d.override = true
		d.overrideTicks = 0
		d.overrideFor = intBetween(r, 10, 50)
		d.on = true
	}
	return d.output()
}

func (d *DigitalFanSensor) output() float64 {
	if d.on {
		return 1
	}
	return 0
}
