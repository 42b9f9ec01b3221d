package container

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Setter is implemented by config structs that fill in their own defaults
// after decoding.
type Setter interface {
	ApplyDefaults()
}

// Validator is implemented by config structs that check themselves after
// defaults are applied.
type Validator interface {
	Validate() error
}

// Decode decodes args into target, a pointer to a struct. Unknown keys are
// rejected, scalar strings are weakly converted ("10" to 10, "true" to true)
// and durations accept strings like "250ms". Setter and Validator are honored
// in that order.
func Decode(args map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		TagName:          "mapstructure",
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result: target,
	})
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if err := dec.Decode(args); err != nil {
		return err
	}

	if s, ok := target.(Setter); ok {
		s.ApplyDefaults()
	}
	if v, ok := target.(Validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Provide adapts a typed builder into a Factory. The arguments are decoded
// into a fresh C; decoding or validation failures surface as
// KindInvalidArgs, builder failures as KindBuild.
func Provide[C any, T any](build func(cfg C) (T, error)) Factory {
	return func(args map[string]any) (any, error) {
		var cfg C
		if err := Decode(args, &cfg); err != nil {
			return nil, InvalidArgs(err)
		}
		v, err := build(cfg)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}
