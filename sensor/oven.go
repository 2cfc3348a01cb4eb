package sensor

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/synaptecltd/sensorsim/mathfuncs"
)

// Oven operating modes.
const (
	OvenOff         = "off"
	OvenPreheating  = "preheating"
	OvenCooking     = "cooking"
	OvenCooling     = "cooling"
	OvenMaintenance = "maintenance"
)

const (
	ovenMin = 15.0
	ovenMax = 350.0

	ovenPreheatBand      = 15.0 // preheating ends within this distance of target
	ovenCooledBelow      = 80.0 // cooling ends below this temperature
	ovenMaintenanceAfter = 50   // ticks since last maintenance before another is allowed
)

var ovenHours = businessHours{
	Restaurant:  {10, 23},
	Supermarket: {6, 22}, // bakery section
	Factory:     {6, 18},
}

// OvenSensor simulates an industrial oven temperature sensor cycling through
// off, preheating, cooking, cooling and occasional maintenance.
type OvenSensor struct {
	Location Location

	heatingRate float64 // degrees per tick at full power
	coolingRate float64 // degrees per tick when cooling

	mode         string
	target       float64
	modeTicks    int
	startAfter   int // ticks to stay off before a start is considered
	cookTicks    int // cooking duration drawn on entry to cooking
	cleanTicks   int // maintenance duration drawn on entry to maintenance
	maintainAt   int // completed cycles that trigger maintenance
	cycles       int
	sinceService int

	value   float64
	started bool
}

// NewOven returns an oven sensor at loc with randomised heating characteristics.
func NewOven(loc Location, r *rand.Rand) *OvenSensor {
	return &OvenSensor{
		Location:    loc,
		heatingRate: uniform(r, 8, 15),
		coolingRate: uniform(r, 3, 6),
		mode:        OvenOff,
		target:      25,
		startAfter:  intBetween(r, 10, 60),
		maintainAt:  intBetween(r, 8, 15),
	}
}

func (o *OvenSensor) Category() Category         { return Oven }
func (o *OvenSensor) Unit() string               { return "C" }
func (o *OvenSensor) Bounds() (float64, float64) { return ovenMin, ovenMax }
func (o *OvenSensor) Mode() string               { return o.mode }

// Target returns the temperature the oven is currently heading for.
func (o *OvenSensor) Target() float64 { return o.target }

// Step advances the oven state machine by one tick.
func (o *OvenSensor) Step(r *rand.Rand, now time.Time) float64 {
	if !o.started {
		o.started = true
		o.mode = OvenOff
		o.value = uniform(r, 20, 25) // room temperature start
		return o.value
	}

	o.modeTicks++
	o.transition(r, now)
	o.sinceService++

	o.value = mathfuncs.Clamp(o.next(r), ovenMin, ovenMax)
	return o.value
}

func (o *OvenSensor) enter(mode string) {
	o.mode = mode
	o.modeTicks = 0
}

func (o *OvenSensor) transition(r *rand.Rand, now time.Time) {
	switch o.mode {
	case OvenOff:
		p := 0.03
		if ovenHours.open(o.Location, now.Hour()) {
			p = 0.15
		}
		if o.modeTicks > o.startAfter && r.Float64() < p {
			o.target = o.cookingTemperature(r)
			o.enter(OvenPreheating)
		}
	case OvenPreheating:
		if math.Abs(o.value-o.target) < ovenPreheatBand {
			o.cookTicks = o.cookingDuration(r)
			o.enter(OvenCooking)
		}
	case OvenCooking:
		if o.modeTicks > o.cookTicks {
			o.cycles++
			o.enter(OvenCooling)
		}
	case OvenCooling:
		if o.value >= ovenCooledBelow {
			return
		}
		if o.cycles > o.maintainAt && o.sinceService > ovenMaintenanceAfter {
			o.cycles = 0
			o.sinceService = 0
			o.maintainAt = intBetween(r, 8, 15)
			o.cleanTicks = intBetween(r, 15, 30)
			o.target = uniform(r, 200, 250)
			o.enter(OvenMaintenance)
			return
		}
		o.startAfter = intBetween(r, 10, 60)
		o.enter(OvenOff)
	case OvenMaintenance:
		if o.modeTicks > o.cleanTicks {
			o.startAfter = intBetween(r, 10, 60)
			o.enter(OvenOff)
		}
	}
}

func (o *OvenSensor) next(r *rand.Rand) float64 {
	t := o.value

	switch o.mode {
	case OvenOff:
		ambient := o.ambient(r)
		if t > ambient+2 {
			return math.Max(ambient, t-uniform(r, 0.5, 2.0))
		}
		return ambient + uniform(r, -1, 1)

	case OvenPreheating:
		// heating slows as the gap to target closes
		if t < o.target {
			rate := o.heatingRate * math.Min(1.0, (o.target-t)/100)
			t += uniform(r, rate*0.8, rate*1.2)
		}
		return math.Min(o.target+10, t)

	case OvenCooking:
		band := 5.0
		if o.Location == Restaurant {
			band = 8.0
		}
		switch {
		case t < o.target-band:
			return t + uniform(r, 2, 8) // element on
		case t > o.target+band:
			return t - uniform(r, 1, 4) // heat loss
		default:
			return t + uniform(r, -band, band)
		}

	case OvenCooling:
		rate := o.coolingRate
		if t > 150 {
			rate *= 1.5
		} else if t < 100 {
			rate *= 0.7
		}
		return t - uniform(r, rate*0.8, rate*1.2)

	case OvenMaintenance:
		if o.modeTicks < 5 {
			return t + uniform(r, 5, 15)
		}
		return o.target + uniform(r, -10, 10)
	}
	return t
}

func (o *OvenSensor) cookingTemperature(r *rand.Rand) float64 {
	switch o.Location {
	case Restaurant:
		return choice(r, 180.0, 200, 220, 250, 280, 300)
	case Supermarket:
		return choice(r, 160.0, 180, 200, 220)
	case Factory:
		return choice(r, 120.0, 150, 180, 200, 250)
	}
	return 200
}

func (o *OvenSensor) cookingDuration(r *rand.Rand) int {
	switch o.Location {
	case Restaurant:
		return intBetween(r, 15, 90)
	case Supermarket:
		return intBetween(r, 30, 120)
	case Factory:
		return intBetween(r, 60, 180)
	}
	return 60
}

func (o *OvenSensor) ambient(r *rand.Rand) float64 {
	switch o.Location {
	case Restaurant:
		return uniform(r, 22, 28)
	case Supermarket:
		return uniform(r, 18, 24)
	case Factory:
		return uniform(r, 15, 30)
	}
	return 22
}
