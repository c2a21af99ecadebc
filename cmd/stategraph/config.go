package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
)

// envPrefix marks environment variables read as configuration,
// e.g. STATEGRAPH_STORE__KIND=redis.
const envPrefix = "STATEGRAPH_"

type logConfig struct {
	Level  string `config:"level"`
	Format string `config:"format"`
}

// loadConfig layers path (optional), STATEGRAPH_* variables and then
// overrides, last one winning.
func loadConfig(path string, overrides map[string]any) (config.Config, error) {
	cfg, err := config.Load(path, envPrefix)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg.Merge(config.New(overrides)), nil
}

// openStore opens the store described by the "store" section.
func openStore(cfg config.Config) (checkpoint.Store, error) {
	kind := cfg.String("kind", "sqlite")
	switch strings.ToLower(kind) {
	case "memory":
		return checkpoint.NewMemoryStore(), nil
	case "sqlite":
		return checkpoint.NewSQLiteStore(cfg.String("path", "stategraph.db"))
	case "redis":
		var opts []checkpoint.RedisOption
		if prefix := cfg.String("prefix", ""); prefix != "" {
			opts = append(opts, checkpoint.WithPrefix(prefix))
		}
		if ttl := cfg.Duration("ttl", 0); ttl > 0 {
			opts = append(opts, checkpoint.WithTTL(ttl))
		}
		return checkpoint.NewRedisStore(
			cfg.String("addr", "localhost:6379"),
			cfg.String("password", ""),
			cfg.Int("db", 0),
			opts...,
		), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q (want memory, sqlite or redis)", kind)
	}
}

// decodeLog reads the "log" section over the defaults.
func decodeLog(cfg config.Config) (logConfig, error) {
	lc := logConfig{Level: "warn", Format: "text"}
	if err := cfg.Decode(&lc); err != nil {
		return lc, fmt.Errorf("log config: %w", err)
	}
	return lc, nil
}

func newLogger(cfg logConfig, w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", cfg.Format)
	}
}
