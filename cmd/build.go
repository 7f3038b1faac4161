package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/djfrancesco/poesie-francaise-scraper/internal/app"
)

func newPoetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poets",
		Short: "Fetch the author index and replace the poets table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStep(cmd, app.StepPoets, false)
		},
	}
}

func newPoemsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poems",
		Short: "Rebuild the poems table from the stored poets",
		Long: `Reads the poets table written by "poets", walks each poet's listing
and replaces the poems table. Poems are written in batches so an
interrupted run keeps what it already parsed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStep(cmd, app.StepPoems, false)
		},
	}
}

func newAllCmd() *cobra.Command {
	var rebuild bool
	cmd := &cobra.Command{
		Use:   "all",
		Short: "Run the poets then the poems step",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("rebuild") {
				rebuild = resolveConfig(cmd.Context()).Builder.Rebuild
			}
			return runStep(cmd, app.StepAll, rebuild)
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild", true, "drop the whole store before building")
	return cmd
}

func runStep(cmd *cobra.Command, step app.Step, rebuild bool) error {
	runner, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := runner.Logger()

	sum, err := runner.Run(cmd.Context(), step, rebuild)
	if err != nil {
		// cobra skips the post-run hooks when RunE fails.
		_ = closeRunner(cmd.Context())
		if errors.Is(err, context.Canceled) {
			logger.Warn("run interrupted", zap.String("step", string(step)), zap.Int("poems", sum.Poems))
		}
		return fmt.Errorf("run %s: %w", step, err)
	}

	logger.Info("step finished",
		zap.String("step", string(step)),
		zap.Int("poets_in_roster", sum.PoetsInRoster),
		zap.Int("poets", sum.Poets),
		zap.Int("poems", sum.Poems),
		zap.Int("poems_skipped", sum.PoemsSkipped),
		zap.Int("mismatches", sum.Mismatches),
	)
	return nil
}
