package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/fetch"
	"github.com/jonathan/webfont-splitter/internal/observability"
	"github.com/jonathan/webfont-splitter/internal/planner"
	"github.com/jonathan/webfont-splitter/internal/refdata"
	"github.com/jonathan/webfont-splitter/internal/repertoire"
	"github.com/jonathan/webfont-splitter/internal/types"
)

var planCommand = &cobra.Command{
	Use:   "plan <font>...",
	Short: "Print the subset plan for fonts without building anything",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPlanCmd,
}

var (
	planReferenceData     string
	planResidualChunkSize int
	planMinBucketSize     int
	planPreload           string
	planAll               bool
	planJSON              bool
)

func init() {
	planCommand.Flags().StringVar(&planReferenceData, "reference-data", refdata.BundledRef, "Reference dataset: \"bundled\", a file or a URL")
	planCommand.Flags().IntVar(&planResidualChunkSize, "residual-chunk-size", planner.DefaultResidualChunkSize, "Maximum codepoints per unclassified subset")
	planCommand.Flags().IntVar(&planMinBucketSize, "min-bucket-size", 0, "Skip reference buckets smaller than this")
	planCommand.Flags().StringVar(&planPreload, "preload", "", "unicode-range merged into the first subset")
	planCommand.Flags().BoolVar(&planAll, "all", false, "List every bucket instead of the first few")
	planCommand.Flags().BoolVar(&planJSON, "json", false, "Print the plan as JSON")

	rootCmd.AddCommand(planCommand)
}

type planOutput struct {
	Font    *types.FontRepertoire `json:"font"`
	Buckets []types.SubsetBucket  `json:"buckets"`
}

func runPlanCmd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ds, err := refdata.Load(ctx, planReferenceData, fetch.NewCachedFetcher("", nil))
	if err != nil {
		return err
	}

	opts := planner.Options{
		ResidualChunkSize: planResidualChunkSize,
		MinBucketSize:     planMinBucketSize,
	}
	if planPreload != "" {
		opts.Preload, err = charset.Parse(planPreload)
		if err != nil {
			return fmt.Errorf("invalid --preload: %w", err)
		}
	}

	var plans []planOutput
	for _, path := range args {
		rep, _, err := repertoire.Read(path, nil)
		if err != nil {
			return err
		}
		buckets, err := planner.Plan(rep, ds.Buckets, opts)
		if err != nil {
			return err
		}
		plans = append(plans, planOutput{Font: rep, Buckets: buckets})
	}

	out := cmd.OutOrStdout()
	if planJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plans)
	}

	printer := observability.NewPrinter(out)
	if planAll {
		printer.Limit = -1
	}
	for _, p := range plans {
		printer.PrintPlan(p.Font, p.Buckets)
	}
	return nil
}
