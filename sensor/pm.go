package sensor

import (
	"math/rand/v2"
	"time"

	"github.com/synaptecltd/sensorsim/mathfuncs"
)

// PM modes.
const (
	PMNormal  = "normal"
	PMPeak    = "peak_activity"
	PMExtreme = "extreme_event"
	PMWeather = "weather_event"
)

const (
	pmMax = 300.0 // top of the "very poor" band

	pmRelaxation   = 0.1
	pmExtremeProb  = 0.05
	pmWeatherProb  = 0.02
	pmWeatherLow   = 1.5
	pmWeatherHigh  = 3.0
	pmInitialNoise = 2.0
)

var pmHours = businessHours{
	Restaurant:  {10, 24},
	Supermarket: {7, 22},
	Factory:     {6, 18},
}

var pmPeakHours = map[Location][]int{
	Restaurant:  {11, 12, 13, 18, 19, 20, 21}, // meal preparation
	Supermarket: {9, 10, 11, 17, 18, 19, 20},
	Factory:     {7, 8, 9, 10, 13, 14, 15, 16}, // production shifts
}

// activity holds the peak-hour increase for a location: a spike with
// probability spikeProb, otherwise a regular increase.
type activity struct {
	spikeProb           float64
	spikeLow, spikeHi   float64
	normalLow, normalHi float64
}

var pmActivity = map[Location]activity{
	Restaurant:  {spikeProb: 0.25, spikeLow: 20, spikeHi: 60, normalLow: 5, normalHi: 15},
	Factory:     {spikeProb: 0.30, spikeLow: 30, spikeHi: 80, normalLow: 8, normalHi: 20},
	Supermarket: {normalLow: 2, normalHi: 8},
}

// extreme events per location; locations without an entry have none.
var pmExtremes = map[Location][2]float64{
	Restaurant: {50, 120}, // burnt food, grease fire
	Factory:    {80, 150}, // equipment malfunction
}

// PMSensor simulates a PM2.5 particulate matter sensor.
type PMSensor struct {
	Location Location

	baseline float64
	mode     string

	value   float64
	started bool
}

// NewPM returns a PM sensor at loc with a location-dependent baseline.
func NewPM(loc Location, r *rand.Rand) *PMSensor {
	return &PMSensor{
		Location: loc,
		baseline: pmBaseline(r, loc),
		mode:     PMNormal,
	}
}

func (p *PMSensor) Category() Category         { return PM }
func (p *PMSensor) Unit() string               { return "ug/m3" }
func (p *PMSensor) Bounds() (float64, float64) { return 0, pmMax }
func (p *PMSensor) Mode() string               { return p.mode }

// Baseline returns the level the sensor relaxes toward.
func (p *PMSensor) Baseline() float64 { return p.baseline }

// Step advances the sensor by one tick.
func (p *PMSensor) Step(r *rand.Rand, now time.Time) float64 {
	if !p.started {
		p.started = true
		p.mode = PMNormal
		p.value = mathfuncs.Clamp(p.baseline+uniform(r, -pmInitialNoise, pmInitialNoise), 0, pmMax)
		return p.value
	}

	hour := now.Hour()
	pm := mathfuncs.Approach(p.value, p.baseline, pmRelaxation)

	if hourOneOf(hour, pmPeakHours[p.Location]...) {
		p.mode = PMPeak
		a := pmActivity[p.Location]
		if a.spikeProb > 0 && r.Float64() < a.spikeProb {
			pm += uniform(r, a.spikeLow, a.spikeHi)
		} else {
			pm += uniform(r, a.normalLow, a.normalHi)
		}
	} else {
		p.mode = PMNormal
		switch {
		case pm > p.baseline && pmHours.open(p.Location, hour):
			pm -= uniform(r, 3, 8) // HVAC filtration
		case pm > p.baseline:
			pm -= uniform(r, 1, 5) // natural settling
		default:
			pm += uniform(r, -3, 3)
		}
	}

	if r.Float64() < pmExtremeProb {
		if span, ok := pmExtremes[p.Location]; ok {
			pm += uniform(r, span[0], span[1])
			p.mode = PMExtreme
		}
	}

	if r.Float64() < pmWeatherProb {
		pm *= uniform(r, pmWeatherLow, pmWeatherHigh)
		p.mode = PMWeather
	}

	p.value = mathfuncs.Clamp(pm, 0, pmMax)
	return p.value
}

func pmBaseline(r *rand.Rand, loc Location) float64 {
	switch loc {
	case Restaurant:
		return uniform(r, 30, 45)
	case Supermarket:
		return uniform(r, 15, 28)
	case Factory:
		return uniform(r, 55, 75)
	}
	return 25
}
