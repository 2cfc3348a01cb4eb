package anomaly

import (
	"errors"
	"fmt"

	"github.com/synaptecltd/sensorsim/mathfuncs"
)

const (
	defaultMinDuration = 30 // ticks, used when a pattern has no duration range
	defaultMaxDuration = 150
	defaultShape       = "sine"
)

// Pattern is the archetype of one anomaly type for one catalog category.
// Setters and getters are provided for private fields to allow for error checking.
type Pattern struct {
	min, max  *float64 // magnitude range
	value     *float64 // fixed replacement value
	rate      *float64 // drift rate at full progress
	offset    *float64 // calibration offset
	amplitude *float64
	frequency *float64

	shapeName   string                  // name of the oscillation shape in mathfuncs
	shape       mathfuncs.MathsFunction // set internally from shapeName
	minDuration int                     // ticks
	maxDuration int                     // ticks
}

// Parameters used to request a pattern. These map onto the fields of Pattern.
type PatternParams struct {
	Min       *float64 `yaml:"min,omitempty" mapstructure:"min"`
	Max       *float64 `yaml:"max,omitempty" mapstructure:"max"`
	Value     *float64 `yaml:"value,omitempty" mapstructure:"value"`
	Rate      *float64 `yaml:"rate,omitempty" mapstructure:"rate"`
	Offset    *float64 `yaml:"offset,omitempty" mapstructure:"offset"`
	Amplitude *float64 `yaml:"amplitude,omitempty" mapstructure:"amplitude"`
	Frequency *float64 `yaml:"frequency,omitempty" mapstructure:"frequency"` // cycles per tick
	Shape     string   `yaml:"shape,omitempty" mapstructure:"shape"`         // mathfuncs name, default sine
	Duration  []int    `yaml:"duration,omitempty" mapstructure:"duration"`   // [min, max] ticks
}

// Returns a Pattern with the requested parameters, checking for invalid values.
func NewPattern(params PatternParams) (*Pattern, error) {
	p := &Pattern{
		value:  params.Value,
		rate:   params.Rate,
		offset: params.Offset,
	}

	if err := p.SetRange(params.Min, params.Max); err != nil {
		return nil, err
	}
	if err := p.SetOscillation(params.Amplitude, params.Frequency); err != nil {
		return nil, err
	}
	if err := p.SetShapeByName(params.Shape); err != nil {
		return nil, err
	}
	if err := p.SetDuration(params.Duration); err != nil {
		return nil, err
	}
	return p, nil
}

// mustPattern is NewPattern for the built-in catalog.
func mustPattern(params PatternParams) *Pattern {
	p, err := NewPattern(params)
	if err != nil {
		panic(err)
	}
	return p
}

// Sets the magnitude range. Both bounds must be given together, with min <= max.
func (p *Pattern) SetRange(min, max *float64) error {
	if (min == nil) != (max == nil) {
		return errors.New("min and max must be set together")
	}
	if min != nil && *min > *max {
		return fmt.Errorf("min %v is greater than max %v", *min, *max)
	}
	p.min, p.max = min, max
	return nil
}

// Sets the oscillation amplitude and frequency. Both must be given together.
func (p *Pattern) SetOscillation(amplitude, frequency *float64) error {
	if (amplitude == nil) != (frequency == nil) {
		return errors.New("amplitude and frequency must be set together")
	}
	if frequency != nil && *frequency <= 0 {
		return errors.New("frequency must be greater than 0")
	}
	p.amplitude, p.frequency = amplitude, frequency
	return nil
}

// Sets the oscillation shape by mathfuncs name. Empty selects sine.
func (p *Pattern) SetShapeByName(name string) error {
	if name == "" {
		name = defaultShape
	}
	fn, err := mathfuncs.GetFunctionFromName(name)
	if err != nil {
		return fmt.Errorf("shape %q: %w", name, err)
	}
	p.shapeName = name
	p.shape = fn
	return nil
}

// Sets the duration range in ticks from a [min, max] pair. An empty pair selects
// the default range.
func (p *Pattern) SetDuration(d []int) error {
	if len(d) == 0 {
		p.minDuration, p.maxDuration = defaultMinDuration, defaultMaxDuration
		return nil
	}
	if len(d) != 2 {
		return fmt.Errorf("duration must be a [min, max] pair, got %d values", len(d))
	}
	if d[0] < 1 || d[1] < d[0] {
		return fmt.Errorf("invalid duration range [%d, %d]", d[0], d[1])
	}
	p.minDuration, p.maxDuration = d[0], d[1]
	return nil
}

// Returns the magnitude range and whether the pattern defines one.
func (p *Pattern) GetRange() (min, max float64, ok bool) {
	if p.min == nil {
		return 0, 0, false
	}
	return *p.min, *p.max, true
}

// Returns the fixed value and whether the pattern defines one.
func (p *Pattern) GetValue() (float64, bool) { return deref(p.value) }

// Returns the base drift rate and whether the pattern defines one.
func (p *Pattern) GetRate() (float64, bool) { return deref(p.rate) }

// Returns the base offset and whether the pattern defines one.
func (p *Pattern) GetOffset() (float64, bool) { return deref(p.offset) }

// Returns the oscillation amplitude and frequency and whether the pattern defines them.
func (p *Pattern) GetOscillation() (amplitude, frequency float64, ok bool) {
	if p.amplitude == nil {
		return 0, 0, false
	}
	return *p.amplitude, *p.frequency, true
}

func (p *Pattern) GetShapeName() string { return p.shapeName }

// Returns the duration range in ticks.
func (p *Pattern) GetDurationRange() (min, max int) {
	return p.minDuration, p.maxDuration
}

// Params returns the parameters the pattern was built from.
func (p *Pattern) Params() PatternParams {
	params := PatternParams{
		Min:       p.min,
		Max:       p.max,
		Value:     p.value,
		Rate:      p.rate,
		Offset:    p.offset,
		Amplitude: p.amplitude,
		Frequency: p.frequency,
		Duration:  []int{p.minDuration, p.maxDuration},
	}
	if p.amplitude != nil {
		params.Shape = p.shapeName
	}
	return params
}

func deref(v *float64) (float64, bool) {
	if v == nil {
		return 0, false
	}
	return *v, true
}

func f64(v float64) *float64 { return &v }
