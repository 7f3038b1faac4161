// Package cmd defines the CLI commands of the poesie executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/app"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/builder"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/config"
	"github.com/djfrancesco/poesie-francaise-scraper/internal/logging"
)

// closeTimeout bounds the shutdown of the run's services.
const closeTimeout = 10 * time.Second

// appKeyType is the key for storing the Runner in the context.
type appKeyType string

const (
	appKey    appKeyType = "app"
	configKey appKeyType = "config"
)

// Runner is what the subcommands need from the application. *app.App
// satisfies it; tests inject a mock.
type Runner interface {
	Run(ctx context.Context, step app.Step, rebuild bool) (builder.Summary, error)
	Logger() *zap.Logger
	Close(ctx context.Context) error
}

// newApp is the application factory, replaced in tests.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (Runner, error) {
	return app.Build(ctx, cfg, logger)
}

type rootOptions struct {
	cfgFile string
	poets   []string
}

// NewRootCmd creates the root command and its subcommands.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "poesie",
		Short: "Builds a tabular corpus of the poems published on poesie-francaise.fr.",
		Long: `poesie walks the author index of poesie-francaise.fr, follows every
poet's paginated listing and stores one row per poem (title, author,
collection, normalized text) in SQLite or PostgreSQL.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}
			if len(opts.poets) > 0 {
				cfg.Builder.Poets = opts.poets
			}

			logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
			if err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			zap.ReplaceGlobals(logger)

			runner, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, runner)
			ctx = context.WithValue(ctx, configKey, cfg)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return closeRunner(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (YAML, TOML or JSON)")
	cmd.PersistentFlags().StringSliceVar(&opts.poets, "poet", nil, "restrict the poem build to these poet slugs")

	cmd.AddCommand(newPoetsCmd(), newPoemsCmd(), newAllCmd())
	return cmd
}

func resolveApp(ctx context.Context) (Runner, error) {
	runner, ok := ctx.Value(appKey).(Runner)
	if !ok || runner == nil {
		return nil, errors.New("application services not initialized")
	}
	return runner, nil
}

func resolveConfig(ctx context.Context) config.Config {
	cfg, _ := ctx.Value(configKey).(config.Config)
	return cfg
}

func closeRunner(ctx context.Context) error {
	runner, err := resolveApp(ctx)
	if err != nil {
		return nil
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
	defer cancel()
	logger := runner.Logger()
	if err := runner.Close(closeCtx); err != nil {
		logger.Warn("error closing application services", zap.Error(err))
	}
	_ = logger.Sync()
	return nil
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
