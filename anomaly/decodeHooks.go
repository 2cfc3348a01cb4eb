package anomaly

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Unmarshals a yaml catalog of the form category -> type -> pattern parameters.
func (c *Catalog) UnmarshalYAML(unmarshal func(interface{}) error) error {
	// Temporary structure to unmarshal the yaml file
	var raw map[string]map[string]map[string]interface{}
	if err := unmarshal(&raw); err != nil {
		return err
	}

	decodeHook, err := GetDecodeHook()
	if err != nil {
		return err
	}

	var out Catalog
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: decodeHook,
		Result:     &out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(raw); err != nil {
		return err
	}

	*c = out
	return nil
}

// Returns a decodeHook function that builds Patterns through NewPattern when
// decoding with mapstructure. This supports configuration solutions like
// spf13/viper that use mapstructure to unmarshal yaml files.
func GetDecodeHook() (mapstructure.DecodeHookFunc, error) {
	decodeHook := func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(Pattern{}) && t != reflect.TypeOf(&Pattern{}) {
			// not a pattern: return the data as is (default behaviour)
			return data, nil
		}

		m, ok := toStringMap(data)
		if !ok {
			// already decoded, e.g. a *Pattern
			return data, nil
		}

		var params PatternParams
		if err := patternParamsDecodeHookFunc(&params, m); err != nil {
			return nil, err
		}
		// Use constructor to create the Pattern for its error checking
		return NewPattern(params)
	}

	return decodeHook, nil
}

// Use mapstructure to unmarshal data into pattern params, rejecting unknown keys.
func patternParamsDecodeHookFunc(params *PatternParams, m map[string]interface{}) error {
	decoderConfig := &mapstructure.DecoderConfig{
		ErrorUnused: true,
		Result:      params,
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return err
	}
	if err := decoder.Decode(m); err != nil {
		return fmt.Errorf("decoding pattern: %w", err)
	}
	return nil
}

// yaml.v2 produces map[interface{}]interface{} for nested maps, while other
// parsers produce map[string]interface{}; both are accepted.
func toStringMap(data interface{}) (map[string]interface{}, bool) {
	switch m := data.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, true
	case nil:
		return map[string]interface{}{}, true
	}
	return nil, false
}
