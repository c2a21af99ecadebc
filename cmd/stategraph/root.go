package main

import (
	"errors"
	"log/slog"

	"github.com/randalmurphal/stategraph/pkg/stategraph"
	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/config"
	"github.com/spf13/cobra"
)

// app holds what every command shares once flags and config are resolved.
type app struct {
	cfg      config.Config
	maxSteps int
	logger   *slog.Logger
	store    checkpoint.Store
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "stategraph",
		Short:         "Run and inspect graph workflows",
		Long:          `stategraph runs the example workflows on the stategraph engine, checkpointing every step so threads can be continued, resumed and inspected later.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "Config file (YAML or JSON)")
	flags.String("store", "", "Checkpoint store: memory, sqlite or redis")
	flags.String("db", "", "SQLite database path")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.Int("max-steps", 0, "Step limit per invocation (0 for none)")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.setup(cmd)
	}
	root.PersistentPostRunE = func(*cobra.Command, []string) error {
		return a.close()
	}

	root.AddCommand(
		newCounterCmd(a),
		newReviewCmd(a),
		newChatCmd(a),
		newStateCmd(a),
		newGraphCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	flags := cmd.Flags()
	path, _ := flags.GetString("config")

	store := map[string]any{}
	overrides := map[string]any{"store": store}
	if flags.Changed("store") {
		store["kind"], _ = flags.GetString("store")
	}
	if flags.Changed("db") {
		store["path"], _ = flags.GetString("db")
	}
	if flags.Changed("log-level") {
		level, _ := flags.GetString("log-level")
		overrides["log"] = map[string]any{"level": level}
	}
	if flags.Changed("max-steps") {
		overrides["max_steps"], _ = flags.GetInt("max-steps")
	}

	cfg, err := loadConfig(path, overrides)
	if err != nil {
		return err
	}
	maxSteps := cfg.Int("max_steps", 0)
	if maxSteps < 0 {
		return errors.New("max-steps cannot be negative")
	}

	lc, err := decodeLog(cfg.Sub("log"))
	if err != nil {
		return err
	}
	logger, err := newLogger(lc, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.maxSteps = maxSteps
	a.logger = logger
	return nil
}

// openStore opens the configured store on first use.
func (a *app) openStore() (checkpoint.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	sc := a.cfg.Sub("store")
	store, err := openStore(sc)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("checkpoint store opened", slog.String("kind", sc.String("kind", "sqlite")))
	a.store = store
	return store, nil
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// context returns an execution context for cmd carrying the app logger.
func (a *app) context(cmd *cobra.Command) stategraph.Context {
	return stategraph.NewContext(cmd.Context(), stategraph.WithLogger(a.logger))
}

// runOptions returns the options shared by every run on threadID.
func (a *app) runOptions(threadID string) []stategraph.RunOption {
	opts := []stategraph.RunOption{
		stategraph.WithObservabilityLogger(a.logger),
		stategraph.WithMetrics(a.cfg.Bool("metrics", false)),
		stategraph.WithTracing(a.cfg.Bool("tracing", false)),
	}
	if a.maxSteps > 0 {
		opts = append(opts, stategraph.WithMaxSteps(a.maxSteps))
	}
	if threadID != "" && a.store != nil {
		opts = append(opts, stategraph.WithCheckpointing(a.store), stategraph.WithThreadID(threadID))
	}
	return opts
}
