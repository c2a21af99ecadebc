package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode copies the configuration into out, a pointer to a struct.
// Fields are matched on their `config` tag, falling back to a
// case-insensitive field name. Strings are converted to numbers, booleans
// and durations ("30s") as needed, so values from the environment decode
// into typed fields.
//
// Example:
//
//	type storeConfig struct {
//	    Kind string        `config:"kind"`
//	    TTL  time.Duration `config:"ttl"`
//	}
//	var sc storeConfig
//	err := cfg.Sub("store").Decode(&sc)
func (c Config) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "config",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("create decoder: %w", err)
	}
	if err := dec.Decode(c.data); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}
