package decode

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Options customise Decode.
type Options struct {
	// WeaklyTypedInput lets "123" become an int and 1.0 an int64.
	WeaklyTypedInput bool
	// TagName selects the struct tag; default "mapstructure".
	TagName string
}

func DefaultOptions() Options {
	return Options{WeaklyTypedInput: true, TagName: "mapstructure"}
}

func WithWeaklyTypedInput(v bool) Options {
	o := DefaultOptions()
	o.WeaklyTypedInput = v
	return o
}

// Into decodes m onto out. Keys missing from m leave the matching fields
// untouched, so out can carry defaults.
func Into(m map[string]any, out any, opts ...Options) error {
	if m == nil {
		return fmt.Errorf("map is nil")
	}
	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}
	if cfg.TagName == "" {
		cfg.TagName = "mapstructure"
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          cfg.TagName,
		Result:           out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			floatToIntHook(),
			sliceAnyToSliceStringHook(),
			jsonRawStringToMapHook(),
		),
	})
	if err != nil {
		return fmt.Errorf("new decoder: %w", err)
	}
	if err := dec.Decode(m); err != nil {
		return fmt.Errorf("decode struct: %w", err)
	}
	return nil
}

// Map decodes m into a fresh T.
func Map[T any](m map[string]any, opts ...Options) (*T, error) {
	var out T
	if err := Into(m, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// YAML parses a YAML document into a generic map.
func YAML(data []byte) (map[string]any, error) {
	m := map[string]any{}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return m, nil
}

// ReadString reads a string field.
func ReadString(m map[string]any, key string) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", fmt.Errorf("missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %q not string (got %T)", key, v)
	}
	return s, nil
}

// ReadInt64 accepts float64, int kinds, json.Number and numeric strings.
func ReadInt64(m map[string]any, key string) (int64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		return 0, fmt.Errorf("missing field %q", key)
	}
	switch t := v.(type) {
	case float64:
		return int64(t), nil
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case json.Number:
		return t.Int64()
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("field %q string parse int64: %w", key, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("field %q type %T not number", key, v)
	}
}

func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.Float64 {
			return data, nil
		}
		switch to {
		case reflect.Int:
			return int(data.(float64)), nil
		case reflect.Int32:
			return int32(data.(float64)), nil
		case reflect.Int64:
			return int64(data.(float64)), nil
		}
		return data, nil
	}
}

func sliceAnyToSliceStringHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Slice || to != reflect.TypeOf([]string(nil)) {
			return data, nil
		}
		src, ok := data.([]any)
		if !ok {
			return data, nil
		}
		out := make([]string, 0, len(src))
		for _, it := range src {
			switch v := it.(type) {
			case string:
				out = append(out, v)
			case json.Number:
				out = append(out, v.String())
			default:
				b, _ := json.Marshal(v)
				out = append(out, string(b))
			}
		}
		return out, nil
	}
}

// jsonRawStringToMapHook turns nested JSON strings into maps.
func jsonRawStringToMapHook() mapstructure.DecodeHookFunc {
	return func(from, to reflect.Kind, data any) (any, error) {
		if from != reflect.String || to != reflect.Map {
			return data, nil
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(data.(string)), &m); err == nil {
			return m, nil
		}
		return data, nil
	}
}
