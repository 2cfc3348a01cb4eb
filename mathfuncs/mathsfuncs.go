package mathfuncs

import (
	"errors"
	"math"
)

// A mathematical function y=f(t,A,T). Takes amplitude, A, and period, T,
// as inputs and returns the value of the function at time, t.
type MathsFunction func(t, A, T float64) float64

// ErrUnknownFunction is returned when a function name is not registered.
var ErrUnknownFunction = errors.New("maths function not found")

// A map between string name and MathsFunction pairs
var mathsFunctions = map[string]MathsFunction{
	"linear":                 linearRamp,
	"sine":                   Sine,
	"cosine":                 cosineWave,
	"exponential_decay":      exponentialDecay,
	"exponential_decay_full": exponentialDecaySaturated,
	"parabolic":              parabolicRamp,
	"step":                   stepFunction,
	"square":                 squareWave,
	"sawtooth":               sawtoothWave,
	"triangle":               triangleWave,
	"flat":                   flat,
}

// GetMathsFunctionNames returns the registered function names in no particular order.
func GetMathsFunctionNames() []string {
	names := make([]string, 0, len(mathsFunctions))
	for name := range mathsFunctions {
		names = append(names, name)
	}
	return names
}

// Returns the named function.
func GetFunctionFromName(name string) (MathsFunction, error) {
	fn, ok := mathsFunctions[name]
	if !ok {
		return nil, ErrUnknownFunction
	}
	return fn, nil
}

// Progress returns the elapsed fraction of a window of total ticks with remaining ticks left,
// 0 at the start and 1 when nothing remains. A non-positive total yields 1.
func Progress(remaining, total int) float64 {
	if total <= 0 {
		return 1
	}
	return 1 - float64(remaining)/float64(total)
}

// Approach moves current toward target by fraction k of the gap (0 < k <= 1).
func Approach(current, target, k float64) float64 {
	return current + (target-current)*k
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Returns a linear ramp y=(A/T)*t where A is the magnitude of the ramp, T is
// its duration, and t is elapsed time.
func linearRamp(t, A, T float64) float64 {
	m := A / T // slope of the ramp
	return m * t
}

// Returns a sine wave y = A*sin(2π * t / PeriodDuration)
// PeriodDuration defines the cycle length.
func Sine(t, A, PeriodDuration float64) float64 {
	if PeriodDuration <= 0 {
		return 0
	}
	return A * math.Sin(2*math.Pi*t/PeriodDuration)
}

// Returns a cosine wave y=A*cos(2*pi*t/T) where A is the amplitude,
// T is the period, and t is elapsed time.
func cosineWave(t, A, T float64) float64 {
	return A * math.Cos(2*math.Pi*t/T)
}

// Returns an exponential decay y=A*exp(-t/T) where A is the amplitude,
// T is the time constant, and t is elapsed time.
func exponentialDecay(t, A, T float64) float64 {
	return A * math.Exp(-t/T)
}

// Returns a saturating rise y=A*(1-exp(-t/T)).
func exponentialDecaySaturated(t, A, T float64) float64 {
	return A * (1 - math.Exp(-t/T))
}

// Returns a parabolic ramp of amplitude A every period T.
func parabolicRamp(t, A, T float64) float64 {
	return A * (t / T) * (t / T) // faster power of two compared to math.Pow(t/T, 2)
}

// Returns a step function of amplitude A every period T.
func stepFunction(t, A, T float64) float64 {
	if math.Mod(t, T) < T/2 {
		return 0
	}
	return A
}

// Returns a square wave y=A if sin(2*pi*t/T) >= 0, else -A.
// where A is the amplitude, T is the period, and t is elapsed time.
func squareWave(t, A, T float64) float64 {
	if math.Sin(2*math.Pi*t/T) >= 0 {
		return A
	}
	return -A
}

// Returns a sawtooth wave y=(2*A/pi)*atan(tan(pi*t/T)),
// where A is the amplitude, T is the period, and t is elapsed time.
func sawtoothWave(t, A, T float64) float64 {
	return (2 * A / math.Pi) * math.Atan(math.Tan(math.Pi*t/T))
}

// Returns a triangle wave between -A and A with period T, starting at 0 and rising.
func triangleWave(t, A, T float64) float64 {
	return (2 * A / math.Pi) * math.Asin(math.Sin(2*math.Pi*t/T))
}

// flat returns a constant value equal to A (amplitude),
// independent of time t or period T.
func flat(_, A, _ float64) float64 {
	return A
}
