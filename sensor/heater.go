package sensor

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/synaptecltd/sensorsim/mathfuncs"
)

// Heater operating modes.
const (
	HeaterOff         = "off"
	HeaterHeating     = "heating"
	HeaterMaintaining = "maintaining"
	HeaterEco         = "eco_mode"
)

const (
	heaterMin = 5.0
	heaterMax = 180.0

	heaterDeadband     = 3.0 // thermostat tolerance around target
	heaterEcoEfficency = 0.7
	heaterEcoAfter     = 30 // ticks maintaining outside business hours before eco mode
)

var heaterHours = businessHours{
	Restaurant:  {9, 24},
	Supermarket: {7, 22},
	Factory:     {6, 18},
}

// HeaterSensor simulates a space heater under thermostat control.
type HeaterSensor struct {
	Location Location

	heatingRate float64
	coolingRate float64

	mode      string
	target    float64
	modeTicks int
	eco       bool

	value   float64
	started bool
}

// NewHeater returns a heater sensor at loc.
func NewHeater(loc Location, r *rand.Rand) *HeaterSensor {
	return &HeaterSensor{
		Location:    loc,
		heatingRate: uniform(r, 5, 10),
		coolingRate: uniform(r, 2, 4),
		mode:        HeaterOff,
		target:      20,
	}
}

func (h *HeaterSensor) Category() Category         { return Heater }
func (h *HeaterSensor) Unit() string               { return "C" }
func (h *HeaterSensor) Bounds() (float64, float64) { return heaterMin, heaterMax }
func (h *HeaterSensor) Mode() string               { return h.mode }

// Eco reports whether reduced heating efficiency is in effect.
func (h *HeaterSensor) Eco() bool { return h.eco }

// Step advances the heater thermostat by one tick.
func (h *HeaterSensor) Step(r *rand.Rand, now time.Time) float64 {
	if !h.started {
		h.started = true
		h.mode = HeaterOff
		h.value = h.ambient(r)
		return h.value
	}

	h.modeTicks++
	hour := now.Hour()
	business := heaterHours.open(h.Location, hour)

	switch {
	case business:
		h.target = h.comfort(r)
		if h.mode != HeaterEco {
			h.eco = false
		}
	case hourIn(hour, 22, 6):
		h.target = h.comfort(r) - 5
		h.eco = true
	default:
		h.target = h.ambient(r) + 5
		h.eco = true
	}

	t := h.value
	diff := t - h.target

	switch h.mode {
	case HeaterOff:
		if diff < -heaterDeadband {
			h.enter(HeaterHeating)
		} else {
			t = h.naturalCooling(r, t)
		}

	case HeaterHeating:
		if diff > heaterDeadband {
			h.enter(HeaterMaintaining)
		} else {
			t += h.heatGain(r)
		}

	case HeaterMaintaining:
		switch {
		case diff < -heaterDeadband:
			h.enter(HeaterHeating)
		case !business && h.modeTicks > heaterEcoAfter:
			h.enter(HeaterEco)
		default:
			t = h.maintain(r, t)
		}

	case HeaterEco:
		if business {
			h.eco = false
			h.enter(HeaterHeating)
			break
		}
		// frost protection only
		if floor := h.ambient(r); t < floor {
			t += uniform(r, 0.5, 2.0)
		} else {
			t = h.naturalCooling(r, t)
		}
	}

	h.value = mathfuncs.Clamp(t, heaterMin, heaterMax)
	return h.value
}

func (h *HeaterSensor) enter(mode string) {
	h.mode = mode
	h.modeTicks = 0
}

func (h *HeaterSensor) heatGain(r *rand.Rand) float64 {
	rate := h.heatingRate
	if h.eco {
		rate *= heaterEcoEfficency
	}
	return uniform(r, rate*0.8, rate*1.2)
}

// naturalCooling applies Newton-style heat loss toward ambient.
func (h *HeaterSensor) naturalCooling(r *rand.Rand, t float64) float64 {
	ambient := h.ambient(r)
	gap := t - ambient
	if gap <= 1 {
		return ambient + uniform(r, -1, 1)
	}
	rate := h.coolingRate * math.Min(1.5, gap/20)
	return t - uniform(r, rate*0.5, rate*1.2)
}

func (h *HeaterSensor) maintain(r *rand.Rand, t float64) float64 {
	variance := 1.0
	if h.eco {
		variance = 2.0
	}
	drift := -(t - h.target) * 0.1
	return t + uniform(r, -variance, variance) + drift
}

func (h *HeaterSensor) ambient(r *rand.Rand) float64 {
	base := 18.0
	switch h.Location {
	case Restaurant:
		base = uniform(r, 16, 22)
	case Supermarket:
		base = uniform(r, 18, 24)
	case Factory:
		base = uniform(r, 12, 20)
	}
	return base + uniform(r, -3, 3)
}

func (h *HeaterSensor) comfort(r *rand.Rand) float64 {
	switch h.Location {
	case Restaurant:
		return uniform(r, 22, 26)
	case Supermarket:
		return uniform(r, 20, 24)
	case Factory:
		return uniform(r, 18, 22)
	}
	return 22
}
