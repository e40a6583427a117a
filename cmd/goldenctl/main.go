package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"golden-seed/app"
	"golden-seed/config"
	"golden-seed/services"
)

func main() {
	if err := newRootCmd(loadApp, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

type appLoader func(ctx context.Context) (*app.App, error)

func loadApp(ctx context.Context) (*app.App, error) {
	logging, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config load error: %w", err)
	}
	return app.New(ctx, cfg, logging)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newRootCmd builds the command tree. Every subcommand runs one pipeline
// stage synchronously and prints its result as JSON.
func newRootCmd(load appLoader, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:          "goldenctl",
		Short:        "Run golden seed pipeline stages from the command line",
		SilenceUsage: true,
	}

	run := func(fn func(ctx context.Context, a *app.App) (any, error)) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			a, err := load(ctx)
			if err != nil {
				return err
			}
			res, err := fn(ctx, a)
			if err != nil {
				return err
			}
			return printJSON(out, res)
		}
	}

	collect := &cobra.Command{
		Use:   "collect",
		Short: "Harvest raw candidates from the trials registry",
	}
	indication := collect.Flags().String("cancer-type", "", "indication to search for (required)")
	targets := collect.Flags().StringSlice("targets", nil, "optional target names")
	limit := collect.Flags().Int("limit", 50, "maximum number of studies")
	collect.RunE = run(func(ctx context.Context, a *app.App) (any, error) {
		return a.Collector.Run(ctx, services.CollectRequest{Indication: *indication, Targets: *targets, Limit: *limit})
	})

	extract := &cobra.Command{
		Use:   "extract [candidate-id...]",
		Short: "Classify candidates and create seeds or proposals",
	}
	processAll := extract.Flags().Bool("all", false, "process unclassified candidates")
	extractLimit := extract.Flags().Int("limit", 0, "maximum candidates with --all")
	extract.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *app.App) (any, error) {
			return a.Extractor.Run(ctx, services.ExtractRequest{CandidateIDs: args, ProcessAll: *processAll, Limit: *extractLimit})
		})(cmd, args)
	}

	chemistry := &cobra.Command{
		Use:   "chemistry seed-id...",
		Short: "Resolve payload, linker and antibody structures for seeds",
		Args:  cobra.MinimumNArgs(1),
	}
	mode := chemistry.Flags().String("mode", services.ModeAll, "payload, linker, antibody or all")
	chemistry.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *app.App) (any, error) {
			return a.Chemistry.Run(ctx, services.ChemistryRequest{SeedIDs: args, Mode: *mode})
		})(cmd, args)
	}

	approve := &cobra.Command{
		Use:   "approve review-id",
		Short: "Approve a pending review proposal",
		Args:  cobra.ExactArgs(1),
	}
	approver := approve.Flags().String("by", "goldenctl", "reviewer identity")
	approveComment := approve.Flags().String("comment", "", "review comment")
	approve.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *app.App) (any, error) {
			return a.Review.Approve(ctx, args[0], *approver, *approveComment)
		})(cmd, args)
	}

	reject := &cobra.Command{
		Use:   "reject review-id",
		Short: "Reject a pending review proposal",
		Args:  cobra.ExactArgs(1),
	}
	rejecter := reject.Flags().String("by", "goldenctl", "reviewer identity")
	rejectComment := reject.Flags().String("comment", "", "review comment")
	reject.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *app.App) (any, error) {
			return a.Review.Reject(ctx, args[0], *rejecter, *rejectComment)
		})(cmd, args)
	}

	promote := &cobra.Command{
		Use:   "promote seed-id...",
		Short: "Promote seeds that pass every gate into final snapshots",
		Args:  cobra.MinimumNArgs(1),
	}
	promoter := promote.Flags().String("by", "goldenctl", "promoter identity")
	promote.RunE = func(cmd *cobra.Command, args []string) error {
		return run(func(ctx context.Context, a *app.App) (any, error) {
			return a.Promotion.Promote(ctx, args, *promoter)
		})(cmd, args)
	}

	trend := &cobra.Command{
		Use:   "trend",
		Short: "Show validation pass-rate trend",
	}
	runs := trend.Flags().Int("runs", 50, "number of validation runs")
	trend.RunE = run(func(ctx context.Context, a *app.App) (any, error) {
		return a.Trend.Trend(ctx, *runs)
	})

	root.AddCommand(collect, extract, chemistry, approve, reject, promote, trend)
	return root
}
