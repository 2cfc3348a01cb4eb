// Package sensor holds the per-category state machines that produce clean,
// physically plausible sensor values one tick at a time.
package sensor

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Category identifies the kind of equipment a sensor observes.
type Category string

const (
	Oven       Category = "oven"
	Heater     Category = "heater"
	Lamp       Category = "lamp"
	FanDigital Category = "fan_digital"
	FanRPM     Category = "fan_rpm"
	PM         Category = "pm"
)

// Categories lists every known category in fleet construction order.
var Categories = []Category{Oven, Heater, Lamp, FanRPM, FanDigital, PM}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case Oven, Heater, Lamp, FanDigital, FanRPM, PM:
		return true
	}
	return false
}

// Kind returns whether readings of this category are analog or digital.
func (c Category) Kind() Kind {
	if c == Lamp || c == FanDigital {
		return Digital
	}
	return Analog
}

// CatalogKey returns the anomaly catalog key for the category. Both fan
// categories share the "fan" entries.
func (c Category) CatalogKey() string {
	if c == FanDigital || c == FanRPM {
		return "fan"
	}
	return string(c)
}

// Kind is the signal type of a reading.
type Kind string

const (
	Analog  Kind = "analog"
	Digital Kind = "digital"
)

// Location is the kind of site a sensor is installed at.
type Location string

const (
	Restaurant  Location = "restaurant"
	Supermarket Location = "supermarket"
	Factory     Location = "factory"
)

// Locations lists every known location.
var Locations = []Location{Restaurant, Supermarket, Factory}

// ParseLocation converts a string to a Location.
func ParseLocation(s string) (Location, error) {
	for _, l := range Locations {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown location %q", s)
}

// Simulator produces the clean value of one sensor per tick.
type Simulator interface {
	Category() Category
	Unit() string
	Bounds() (min, max float64)
	Mode() string                             // current operating state of the state machine
	Step(r *rand.Rand, now time.Time) float64 // next clean value, before anomalies and clamping
}

// Derived is a Simulator whose value follows another unit of the fleet.
type Derived interface {
	Simulator
	Pair() int           // index of the source unit in the fleet, -1 when unpaired
	Feed(source float64) // latest reported value of the source unit, called before Step
}

// New returns the simulator for a category. The digital fan is created unpaired.
func New(c Category, loc Location, r *rand.Rand) (Simulator, error) {
	switch c {
	case Oven:
		return NewOven(loc, r), nil
	case Heater:
		return NewHeater(loc, r), nil
	case Lamp:
		return NewLamp(loc), nil
	case FanRPM:
		return NewRPMFan(loc, r), nil
	case FanDigital:
		return NewDigitalFan(loc, -1), nil
	case PM:
		return NewPM(loc, r), nil
	}
	return nil, fmt.Errorf("unknown sensor category %q", c)
}

// uniform returns a value in [lo, hi).
func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}

// intBetween returns an integer in [lo, hi].
func intBetween(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.IntN(hi-lo+1)
}

func choice[T any](r *rand.Rand, items ...T) T {
	return items[r.IntN(len(items))]
}

// hourIn reports whether hour lies in [from, to). Windows with from > to wrap
// past midnight.
func hourIn(hour, from, to int) bool {
	if from <= to {
		return hour >= from && hour < to
	}
	return hour >= from || hour < to
}

func hourOneOf(hour int, hours ...int) bool {
	for _, h := range hours {
		if h == hour {
			return true
		}
	}
	return false
}

// businessHours holds the [open, close) hour window per location.
type businessHours map[Location][2]int

func (b businessHours) open(loc Location, hour int) bool {
	w, ok := b[loc]
	if !ok {
		return false
	}
	return hourIn(hour, w[0], w[1])
}
