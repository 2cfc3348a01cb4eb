package sensor

import (
	"math/rand/v2"
	"time"
)

// Lamp states.
const (
	LampOff = "off"
	LampOn  = "on"
)

var lampHours = businessHours{
	Restaurant:  {11, 24},
	Supermarket: {8, 22},
	Factory:     {6, 18},
}

// LampSensor simulates a digital lamp driven by opening hours, darkness and
// motion-detected occupancy.
type LampSensor struct {
	Location Location

	on            bool
	onTicks       int
	offTicks      int
	occupied      bool
	motionTimeout int
	scheduledOn   bool
	started       bool
}

// NewLamp returns a lamp sensor at loc, initially off.
func NewLamp(loc Location) *LampSensor {
	return &LampSensor{Location: loc}
}

func (l *LampSensor) Category() Category         { return Lamp }
func (l *LampSensor) Unit() string               { return "io" }
func (l *LampSensor) Bounds() (float64, float64) { return 0, 1 }

func (l *LampSensor) Mode() string {
	if l.on {
		return LampOn
	}
	return LampOff
}

// Occupied reports whether motion is currently detected.
func (l *LampSensor) Occupied() bool { return l.occupied }

// Step advances the lamp by one tick and returns 0 or 1.
func (l *LampSensor) Step(r *rand.Rand, now time.Time) float64 {
	if !l.started {
		l.started = true
		return 0
	}

	hour := now.Hour()
	business := lampHours.open(l.Location, hour)
	dark := hourIn(hour, 18, 7)

	l.updateOccupancy(r, business)
	l.scheduledOn = business || (dark && l.occupied)

	if l.on {
		l.onTicks++
		l.offTicks = 0
		if l.shouldTurnOff(r, business) {
			l.on = false
		}
	} else {
		l.offTicks++
		l.onTicks = 0
		if l.shouldTurnOn(r, business, hour) && l.offTicks > intBetween(r, 1, 10) {
			l.on = true
		}
	}
	return l.output()
}

func (l *LampSensor) output() float64 {
	if l.on {
		return 1
	}
	return 0
}

func (l *LampSensor) shouldTurnOn(r *rand.Rand, business bool, hour int) bool {
	turnOn := false
	if l.scheduledOn {
		if business {
			turnOn = r.Float64() < 0.8
		} else if l.occupied {
			turnOn = r.Float64() < 0.6
		}
	}

	switch l.Location {
	case Restaurant: // security ambient lighting
		if !business && r.Float64() < 0.1 {
			turnOn = true
		}
	case Supermarket: // night restocking and cleaning
		if hourIn(hour, 22, 7) && r.Float64() < 0.3 {
			turnOn = true
		}
	case Factory: // emergency lighting
		if !business && r.Float64() < 0.05 {
			turnOn = true
		}
	}
	return turnOn
}

func (l *LampSensor) shouldTurnOff(r *rand.Rand, business bool) bool {
	turnOff := false
	if !l.scheduledOn {
		if !business && !l.occupied {
			turnOff = r.Float64() < 0.7
		} else if l.motionTimeout > 10 {
			turnOff = r.Float64() < 0.8
		}
	}

	// energy saving even while open
	if business && l.onTicks > intBetween(r, 30, 180) && r.Float64() < 0.1 {
		turnOff = true
	}

	switch l.Location {
	case Restaurant: // unused sections
		if business && r.Float64() < 0.05 {
			turnOff = true
		}
	case Supermarket: // section-based control
		if business && l.onTicks > 60 && r.Float64() < 0.1 {
			turnOff = true
		}
	}
	return turnOff
}

func (l *LampSensor) updateOccupancy(r *rand.Rand, business bool) {
	if business {
		l.occupied = r.Float64() < 0.9
		if l.occupied {
			l.motionTimeout = 0
		} else {
			l.motionTimeout++
		}
		return
	}

	if l.occupied {
		l.motionTimeout++
		if l.motionTimeout > intBetween(r, 5, 20) {
			l.occupied = false
			l.motionTimeout = 0
		}
		return
	}
	// security rounds, cleaning crews
	if r.Float64() < 0.1 {
		l.occupied = true
		l.motionTimeout = 0
	}
}
