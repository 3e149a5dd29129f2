package main

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/rxdi/cache/cache"
	"github.com/rxdi/cache/config"
	"github.com/rxdi/cache/logger"
	"github.com/rxdi/cache/store"
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

type app struct {
	cfg      config.Config
	logger   logger.Logger
	store    store.Store
	registry *cache.Registry
}

type appKey struct{}

func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}

// flagOrConfig prefers an explicitly set flag, then the loaded config value.
func flagOrConfig(cmd *cobra.Command, flag string, fromConfig string) string {
	if cmd.Flags().Changed(flag) {
		v, _ := cmd.Flags().GetString(flag)
		return v
	}
	return fromConfig
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "cachectl",
		Short:         "Inspect and manipulate a persisted layer cache",
		Version:       Version + " (" + Commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			envFile, _ := cmd.Flags().GetString("env-file")
			cfg, err := config.LoadWithEnvFile(configFile, envFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("driver") {
				v, _ := cmd.Flags().GetString("driver")
				cfg.Store.Driver = store.Driver(v)
			}
			cfg.Store.Path = flagOrConfig(cmd, "path", cfg.Store.Path)
			cfg.Store.RedisURL = flagOrConfig(cmd, "redis-url", cfg.Store.RedisURL)
			cfg.LogLevel = flagOrConfig(cmd, "log-level", cfg.LogLevel)
			cfg.LogFormat = flagOrConfig(cmd, "log-format", cfg.LogFormat)
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), cfg, cfg.Logger())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return appFrom(cmd).Close()
		},
	}
	flags := root.PersistentFlags()
	flags.String("config", "cachectl.yaml", "path to the YAML config file")
	flags.String("env-file", ".env", "dotenv file with CACHE_* overrides")
	flags.String("driver", "", "store driver: memory, sqlite or redis")
	flags.String("path", "", "sqlite database path")
	flags.String("redis-url", "", "redis connection URL")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error, none")
	flags.String("log-format", "", "log format: console or json")

	root.AddCommand(
		newPutCommand(),
		newGetCommand(),
		newRemoveCommand(),
		newLayersCommand(),
		newFlushCommand(),
		newFetchCommand(),
		newWatchCommand(),
	)
	return root
}

func openApp(ctx context.Context, cfg config.Config, log logger.Logger) (*app, error) {
	s, err := store.Open(ctx, cfg.StoreConfig())
	if err != nil {
		return nil, errors.Wrap(err, "open store")
	}
	r := cache.NewRegistry(ctx,
		cache.WithStore(s),
		cache.WithLayerConfig(cfg.LayerConfig()),
		cache.WithLogger(log),
		cache.WithQueryTimeout(cfg.StoreConfig().QueryTimeout),
	)
	log.Debug("registry ready, persistent=%v, %d layers", r.Persistent(), len(r.Layers()))
	return &app{cfg: cfg, logger: log, store: s, registry: r}, nil
}

func (a *app) Close() error {
	return errors.CombineErrors(a.registry.Close(), a.store.Close())
}
