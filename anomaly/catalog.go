package anomaly

import (
	"fmt"
	"os"
	"sort"

	"github.com/synaptecltd/sensorsim/sensor"
	"gopkg.in/yaml.v2"
)

// Catalog maps a category key to the anomaly patterns legal for it. It is
// read-only once built.
type Catalog map[string]map[string]*Pattern

// catalogKeys are the category keys a catalog may hold.
var catalogKeys = map[string]bool{"oven": true, "heater": true, "lamp": true, "fan": true, "pm": true}

// DefaultCatalog returns the built-in anomaly catalog.
func DefaultCatalog() Catalog {
	d := func(lo, hi int) []int { return []int{lo, hi} }

	return Catalog{
		"oven": {
			Spike:       mustPattern(PatternParams{Min: f64(50), Max: f64(100), Duration: d(12, 48)}),
			Drop:        mustPattern(PatternParams{Min: f64(-30), Max: f64(-10), Duration: d(18, 60)}),
			Drift:       mustPattern(PatternParams{Rate: f64(2.0), Duration: d(60, 180)}),
			Oscillation: mustPattern(PatternParams{Amplitude: f64(15), Frequency: f64(0.3), Duration: d(30, 90)}),
		},
		"heater": {
			Spike:       mustPattern(PatternParams{Min: f64(30), Max: f64(70), Duration: d(18, 72)}),
			Drop:        mustPattern(PatternParams{Min: f64(-20), Max: f64(-5), Duration: d(30, 90)}),
			Drift:       mustPattern(PatternParams{Rate: f64(1.5), Duration: d(90, 270)}),
			Oscillation: mustPattern(PatternParams{Amplitude: f64(10), Frequency: f64(0.2), Duration: d(48, 120)}),
		},
		"lamp": {
			Flicker: mustPattern(PatternParams{Duration: d(30, 120)}),
			Stuck:   mustPattern(PatternParams{Value: f64(0), Duration: d(60, 360)}),
			StuckOn: mustPattern(PatternParams{Value: f64(1), Duration: d(90, 720)}),
		},
		"fan": {
			Spike:     mustPattern(PatternParams{Min: f64(200), Max: f64(500), Duration: d(18, 60)}),
			Stall:     mustPattern(PatternParams{Value: f64(0), Duration: d(30, 180)}),
			Vibration: mustPattern(PatternParams{Amplitude: f64(50), Frequency: f64(0.5), Duration: d(60, 150)}),
			Overspeed: mustPattern(PatternParams{Min: f64(300), Max: f64(800), Duration: d(12, 90)}),
			Flicker:   mustPattern(PatternParams{Duration: d(30, 120)}),
		},
		"pm": {
			PollutionSpike:   mustPattern(PatternParams{Min: f64(50), Max: f64(150), Duration: d(60, 360)}),
			SensorDrift:      mustPattern(PatternParams{Rate: f64(3.0), Duration: d(180, 720)}),
			CalibrationError: mustPattern(PatternParams{Offset: f64(25), Duration: d(360, 1800)}),
			DustStorm:        mustPattern(PatternParams{Min: f64(100), Max: f64(250), Duration: d(120, 1080)}),
		},
	}
}

// Key resolves a sensor category or catalog key to its catalog key.
func Key(category string) string {
	if c := sensor.Category(category); c.Valid() {
		return c.CatalogKey()
	}
	return category
}

// Types returns the anomaly types of a category in sorted order, or nil when the
// category is unknown.
func (c Catalog) Types(category string) []string {
	patterns, ok := c[Key(category)]
	if !ok {
		return nil
	}
	types := make([]string, 0, len(patterns))
	for t := range patterns {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Lookup returns the pattern for a category and type.
func (c Catalog) Lookup(category, typ string) (*Pattern, error) {
	patterns, ok := c[Key(category)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	p, ok := patterns[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q for category %q", ErrUnknownType, typ, category)
	}
	return p, nil
}

// Validate checks that every category key and type is one the injector can apply.
func (c Catalog) Validate() error {
	for key, patterns := range c {
		if !catalogKeys[key] {
			return fmt.Errorf("%w: %q", ErrUnknownCategory, key)
		}
		for typ := range patterns {
			if !knownTypes[typ] {
				return fmt.Errorf("%w: %q for category %q", ErrUnknownType, typ, key)
			}
		}
	}
	return nil
}

// LoadCatalog reads a YAML catalog file. Categories present in the file replace
// the built-in entries for that category; others keep their defaults.
func LoadCatalog(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	loaded := Catalog{}
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("parsing catalog %s: %w", path, err)
	}
	if err := loaded.Validate(); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}

	catalog := DefaultCatalog()
	for key, patterns := range loaded {
		catalog[key] = patterns
	}
	return catalog, nil
}

// MarshalYAML writes the catalog in the same layout LoadCatalog reads.
func (c Catalog) MarshalYAML() (interface{}, error) {
	out := make(map[string]map[string]PatternParams, len(c))
	for key, patterns := range c {
		out[key] = make(map[string]PatternParams, len(patterns))
		for typ, p := range patterns {
			out[key][typ] = p.Params()
		}
	}
	return out, nil
}
