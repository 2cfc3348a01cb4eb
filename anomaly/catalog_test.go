package anomaly_test

import (
	"errors"
	"testing"

	"github.com/synaptecltd/sensorsim/anomaly"
	"gopkg.in/yaml.v2"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"
)

func TestDefaultCatalogTypes(t *testing.T) {
	catalog := anomaly.DefaultCatalog()

	assert.DeepEqual(t, catalog.Types("oven"), []string{"drift", "drop", "oscillation", "spike"})
	assert.DeepEqual(t, catalog.Types("lamp"), []string{"flicker", "stuck", "stuck_on"})
	assert.DeepEqual(t, catalog.Types("fan_rpm"), catalog.Types("fan"))
	assert.DeepEqual(t, catalog.Types("fan_digital"), catalog.Types("fan"))
	assert.Assert(t, is.Len(catalog.Types("pm"), 4))
	assert.Assert(t, catalog.Types("fridge") == nil)
	assert.NilError(t, catalog.Validate())
}

func TestDefaultCatalogParameters(t *testing.T) {
	catalog := anomaly.DefaultCatalog()

	p, err := catalog.Lookup("pm", anomaly.DustStorm)
	assert.NilError(t, err)
	min, max, ok := p.GetRange()
	assert.Assert(t, ok)
	assert.Equal(t, min, 100.0)
	assert.Equal(t, max, 250.0)
	lo, hi := p.GetDurationRange()
	assert.Equal(t, lo, 120)
	assert.Equal(t, hi, 1080)

	p, err = catalog.Lookup("oven", anomaly.Oscillation)
	assert.NilError(t, err)
	amp, freq, ok := p.GetOscillation()
	assert.Assert(t, ok)
	assert.Equal(t, amp, 15.0)
	assert.Equal(t, freq, 0.3)
	assert.Equal(t, p.GetShapeName(), "sine")

	_, err = catalog.Lookup("lamp", anomaly.Spike)
	assert.Assert(t, errors.Is(err, anomaly.ErrUnknownType))
	_, err = catalog.Lookup("fridge", anomaly.Spike)
	assert.Assert(t, errors.Is(err, anomaly.ErrUnknownCategory))
}

func TestNewPatternValidation(t *testing.T) {
	one, two := 1.0, 2.0
	zero := 0.0

	testcases := []struct {
		name   string
		params anomaly.PatternParams
		errMsg string
	}{
		{"min without max", anomaly.PatternParams{Min: &one}, "min and max must be set together"},
		{"min above max", anomaly.PatternParams{Min: &two, Max: &one}, "greater than max"},
		{"amplitude without frequency", anomaly.PatternParams{Amplitude: &one}, "amplitude and frequency"},
		{"zero frequency", anomaly.PatternParams{Amplitude: &one, Frequency: &zero}, "frequency must be greater than 0"},
		{"unknown shape", anomaly.PatternParams{Shape: "zigzag"}, "maths function not found"},
		{"single duration", anomaly.PatternParams{Duration: []int{5}}, "[min, max] pair"},
		{"inverted duration", anomaly.PatternParams{Duration: []int{10, 5}}, "invalid duration range"},
		{"zero duration", anomaly.PatternParams{Duration: []int{0, 5}}, "invalid duration range"},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := anomaly.NewPattern(tc.params)
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}
}

func TestNewPatternDefaultDuration(t *testing.T) {
	p, err := anomaly.NewPattern(anomaly.PatternParams{})
	assert.NilError(t, err)
	lo, hi := p.GetDurationRange()
	assert.Equal(t, lo, 30)
	assert.Equal(t, hi, 150)
}

func TestLoadCatalog(t *testing.T) {
	file := fs.NewFile(t, "catalog", fs.WithContent(`
oven:
  spike:
    min: 10
    max: 20
    duration: [1, 2]
  oscillation:
    amplitude: 5
    frequency: 0.25
    shape: square
lamp:
  flicker:
`))

	catalog, err := anomaly.LoadCatalog(file.Path())
	assert.NilError(t, err)

	// oven replaced, other categories keep their defaults
	assert.DeepEqual(t, catalog.Types("oven"), []string{"oscillation", "spike"})
	assert.DeepEqual(t, catalog.Types("lamp"), []string{"flicker"})
	assert.DeepEqual(t, catalog.Types("pm"), anomaly.DefaultCatalog().Types("pm"))

	p, err := catalog.Lookup("oven", anomaly.Spike)
	assert.NilError(t, err)
	min, max, _ := p.GetRange()
	assert.Equal(t, min, 10.0)
	assert.Equal(t, max, 20.0)

	p, err = catalog.Lookup("oven", anomaly.Oscillation)
	assert.NilError(t, err)
	assert.Equal(t, p.GetShapeName(), "square")

	p, err = catalog.Lookup("lamp", anomaly.Flicker)
	assert.NilError(t, err)
	lo, hi := p.GetDurationRange()
	assert.Equal(t, lo, 30)
	assert.Equal(t, hi, 150)
}

func TestLoadCatalogRejectsBadInput(t *testing.T) {
	testcases := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"unknown key", "oven:\n  spike:\n    minimum: 3\n", "invalid keys: minimum"},
		{"unknown category", "fridge:\n  spike:\n    min: 1\n    max: 2\n", "unknown anomaly category"},
		{"unknown type", "oven:\n  melt:\n    value: 1\n", "unknown anomaly type"},
		{"invalid range", "pm:\n  dust_storm:\n    min: 5\n    max: 1\n", "greater than max"},
		{"not a map", "- oven\n- lamp\n", "parsing catalog"},
	}

	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			file := fs.NewFile(t, "catalog", fs.WithContent(tc.content))
			_, err := anomaly.LoadCatalog(file.Path())
			assert.ErrorContains(t, err, tc.errMsg)
		})
	}

	_, err := anomaly.LoadCatalog("/does/not/exist.yaml")
	assert.ErrorContains(t, err, "reading catalog")
}

func TestCatalogYAMLRoundTrip(t *testing.T) {
	out, err := yaml.Marshal(anomaly.DefaultCatalog())
	assert.NilError(t, err)

	var back anomaly.Catalog
	assert.NilError(t, yaml.Unmarshal(out, &back))
	for key := range anomaly.DefaultCatalog() {
		assert.DeepEqual(t, back.Types(key), anomaly.DefaultCatalog().Types(key))
	}

	p, err := back.Lookup("pm", anomaly.CalibrationError)
	assert.NilError(t, err)
	off, ok := p.GetOffset()
	assert.Assert(t, ok)
	assert.Equal(t, off, 25.0)
}
