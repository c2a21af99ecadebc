/*
Package config provides type-safe configuration extraction from map[string]any.

# Overview

config wraps a map[string]any and provides typed accessor methods that handle
missing keys and type mismatches gracefully by returning default values.
This is useful for extracting configuration values from YAML/JSON structures
without verbose type assertions and nil checks.

# Basic Usage

Create a Config from any map and extract values with defaults:

	cfg := config.New(map[string]any{
	    "store": map[string]any{"kind": "redis", "ttl": "30m", "db": 2},
	    "metrics": true,
	})

	ttl := cfg.Duration("store.ttl", 0)      // 30m
	db := cfg.Int("store.db", 0)             // 2
	metrics := cfg.Bool("metrics", false)    // true
	path := cfg.String("store.path", "x.db") // "x.db"

# Type Coercion

Duration handles multiple input types:
  - string: parsed with time.ParseDuration ("30s", "1h30m")
  - int/float64: interpreted as seconds
  - time.Duration: used directly

Int and Bool handle reasonable conversions:
  - int from float64 (whole numbers only)
  - int and bool from strings, so environment values work

All methods return the default value if:
  - The key is missing
  - The value cannot be converted to the requested type
  - The conversion would lose precision (e.g., float to int with fraction)

# File Loading

Load configuration from YAML or JSON files:

	cfg, err := config.FromFile("config.yaml")
	if err != nil {
	    log.Fatal(err)
	}

	// Or load from bytes
	cfg, err = config.FromYAML(yamlBytes)
	cfg, err = config.FromJSON(jsonBytes)

# Nested Keys and Layering

Keys may be dotted paths into nested sections, and Sub returns a section:

	kind := cfg.String("store.kind", "memory")
	storeCfg := cfg.Sub("store")

Merge layers one Config over another. FromEnv maps prefixed environment
variables onto keys, with "__" separating levels, and Load combines a
file with the environment:

	cfg, err := config.Load("stategraph.yaml", "STATEGRAPH_")
	// STATEGRAPH_STORE__KIND=sqlite overrides store.kind

# Decoding

Decode fills a struct using `config` tags, converting strings to
numbers, booleans and durations:

	var opts struct {
	    MaxSteps int `config:"max_steps"`
	}
	err := cfg.Decode(&opts)

# Thread Safety

Config is safe for concurrent read access. The underlying map is not
modified after creation. However, if the original map is modified
externally, behavior is undefined.
*/
package config
