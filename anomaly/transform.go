package anomaly

import (
	"math"
	"math/rand/v2"

	"github.com/synaptecltd/sensorsim/sensor"
)

var knownTypes = map[string]bool{
	Spike: true, PollutionSpike: true, DustStorm: true, Overspeed: true,
	Drop: true, Drift: true, SensorDrift: true, Oscillation: true, Vibration: true,
	Flicker: true, Stuck: true, StuckOn: true, Stall: true, CalibrationError: true,
}

// transform returns clean corrupted by the anomaly and advances its phase where
// the type is oscillatory.
func (a *Anomaly) transform(r *rand.Rand, clean float64, kind sensor.Kind) float64 {
	switch a.Type {
	case Spike, PollutionSpike, DustStorm, Overspeed:
		return clean + value(a.Magnitude)

	case Drop:
		return math.Max(0, clean+value(a.Magnitude))

	case Drift, SensorDrift:
		// linear ramp from 0 to the full rate over the anomaly's life
		return clean + value(a.Rate)*a.Progress()

	case Oscillation:
		if a.shape == nil || a.Frequency == nil || *a.Frequency <= 0 {
			return clean
		}
		v := clean + a.shape(a.Phase, value(a.Amplitude), 1 / *a.Frequency)
		a.Phase++
		return v

	case Vibration:
		noise := -1 + 2*r.Float64()
		v := clean + value(a.Amplitude)*noise*math.Sin(a.Phase*value(a.Frequency))
		a.Phase++
		return v

	case Flicker:
		if kind != sensor.Digital {
			return clean
		}
		return float64(r.IntN(2))

	case Stuck, StuckOn, Stall:
		if a.FixedValue == nil {
			return clean
		}
		return *a.FixedValue

	case CalibrationError:
		return clean + value(a.Offset)
	}
	return clean
}

func value(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
