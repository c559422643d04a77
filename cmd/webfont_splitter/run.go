package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/webfont-splitter/internal/config"
	"github.com/jonathan/webfont-splitter/internal/observability"
	"github.com/jonathan/webfont-splitter/internal/pipeline"
)

var runCommand = &cobra.Command{
	Use:   "run [fonts...]",
	Short: "Split fonts, store the WOFF2 subsets and write the stylesheet",
	Long: `Runs the whole pipeline: read -> plan -> subset -> encode -> store -> emit.

Fonts are local paths, http(s) URLs or the reserved name "fallback". Configuration can
be loaded from a JSON or YAML file using --config; command-line flags override it.`,
	RunE: runSplitCmd,
}

var (
	runConfigPath        string
	runFonts             []string
	runMode              = modeValue(config.ModeBasic)
	runWebroot           string
	runReferenceData     string
	runFallbackDir       string
	runIncludeFamilies   []string
	runExcludeFamilies   []string
	runStoreDir          string
	runBaseURI           string
	runCSSOut            string
	runCSSAppend         bool
	runCacheDir          string
	runResidualChunkSize int
	runMinBucketSize     int
	runPreload           string
	runQuality           int
	runWindow            int
	runSubsetter         string
	runCompressor        string
	runWorkers           int
	runStrictFonts       bool
	runFailFast          bool
	runIgnoreSelectors   []string
	runDatabaseURL       string
	runVerbose           bool
	runAllowFailures     bool
	runJSON              bool
)

func init() {
	// Config file flag (processed first)
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to a JSON or YAML config file (values can be overridden by other flags)")

	runCommand.Flags().StringSliceVarP(&runFonts, "font", "f", nil, "Font to split (repeatable; positional arguments work too)")
	runCommand.Flags().Var(&runMode, "mode", "basic or static")
	runCommand.Flags().StringVarP(&runWebroot, "webroot", "w", "", "Static site root; implies --mode static")
	runCommand.Flags().StringVar(&runReferenceData, "reference-data", "", "Reference dataset: \"bundled\", a file or a URL")
	runCommand.Flags().StringVar(&runFallbackDir, "fallback-dir", "", "Directory holding fallback source fonts")
	runCommand.Flags().StringSliceVar(&runIncludeFamilies, "include-family", nil, "Only process fonts of this family (repeatable)")
	runCommand.Flags().StringSliceVar(&runExcludeFamilies, "exclude-family", nil, "Skip fonts of this family (repeatable)")
	runCommand.Flags().StringVarP(&runStoreDir, "store", "s", "", "Store directory")
	runCommand.Flags().StringVar(&runBaseURI, "base-uri", "", "Public URI prefix of the store")
	runCommand.Flags().StringVarP(&runCSSOut, "css-out", "o", "", "Where to write the stylesheet")
	runCommand.Flags().BoolVar(&runCSSAppend, "append", false, "Append the stylesheet to --css-out instead of replacing it")
	runCommand.Flags().StringVar(&runCacheDir, "cache-dir", "", "Download cache directory (empty disables caching)")
	runCommand.Flags().IntVar(&runResidualChunkSize, "residual-chunk-size", 0, "Maximum codepoints per unclassified subset")
	runCommand.Flags().IntVar(&runMinBucketSize, "min-bucket-size", 0, "Skip reference buckets smaller than this for a font")
	runCommand.Flags().StringVar(&runPreload, "preload", "", "unicode-range merged into each font's first subset")
	runCommand.Flags().IntVar(&runQuality, "quality", 0, "Brotli quality (0-11)")
	runCommand.Flags().IntVar(&runWindow, "window", 0, "Brotli window bits (10-24)")
	runCommand.Flags().StringVar(&runSubsetter, "subsetter", "", "Subsetting engine: native or hb-subset")
	runCommand.Flags().StringVar(&runCompressor, "compressor", "", "WOFF2 engine: woff2 or woff2_compress")
	runCommand.Flags().IntVarP(&runWorkers, "workers", "j", 0, "Concurrent fonts and subsets (default: number of CPUs)")
	runCommand.Flags().BoolVar(&runStrictFonts, "strict-fonts", false, "Drop a font entirely when any of its subsets fails")
	runCommand.Flags().BoolVar(&runFailFast, "fail-fast", false, "Abort the run on the first failure")
	runCommand.Flags().StringSliceVar(&runIgnoreSelectors, "ignore-selector", nil, "CSS selector whose text is not counted (repeatable)")
	runCommand.Flags().StringVar(&runDatabaseURL, "db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print detailed debug information")
	runCommand.Flags().BoolVar(&runAllowFailures, "allow-failures", false, "Exit 0 even when some fonts or subsets failed")
	runCommand.Flags().BoolVar(&runJSON, "json", false, "Print the run summary as JSON")

	rootCmd.AddCommand(runCommand)
}

// resolveConfig layers defaults, the config file and changed flags
func resolveConfig(cmd *cobra.Command, args []string) (config.Config, error) {
	var cfg config.Config
	if runConfigPath != "" {
		loaded, err := config.LoadConfig(runConfigPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}

	flags := cmd.Flags()
	if flags.Changed("font") || len(args) > 0 {
		cfg.Fonts = append(append([]string{}, runFonts...), args...)
	}
	if flags.Changed("mode") {
		cfg.Mode = string(runMode)
	}
	if flags.Changed("webroot") {
		cfg.Webroot = runWebroot
		if !flags.Changed("mode") {
			cfg.Mode = config.ModeStatic
		}
	}
	if flags.Changed("reference-data") {
		cfg.ReferenceData = runReferenceData
	}
	if flags.Changed("fallback-dir") {
		cfg.FallbackDir = runFallbackDir
	}
	if flags.Changed("include-family") {
		cfg.IncludeFamilies = runIncludeFamilies
	}
	if flags.Changed("exclude-family") {
		cfg.ExcludeFamilies = runExcludeFamilies
	}
	if flags.Changed("store") {
		cfg.StoreDir = runStoreDir
	}
	if flags.Changed("base-uri") {
		cfg.BaseURI = runBaseURI
	}
	if flags.Changed("css-out") {
		cfg.CSSOut = runCSSOut
	}
	if flags.Changed("append") {
		cfg.CSSAppend = runCSSAppend
	}
	if flags.Changed("cache-dir") {
		cfg.CacheDir = runCacheDir
	}
	if flags.Changed("residual-chunk-size") {
		cfg.ResidualChunkSize = runResidualChunkSize
	}
	if flags.Changed("min-bucket-size") {
		cfg.MinBucketSize = runMinBucketSize
	}
	if flags.Changed("preload") {
		cfg.Preload = runPreload
	}
	if flags.Changed("quality") {
		cfg.Quality = config.Int(runQuality)
	}
	if flags.Changed("window") {
		cfg.Window = runWindow
	}
	if flags.Changed("subsetter") {
		cfg.Subsetter = runSubsetter
	}
	if flags.Changed("compressor") {
		cfg.Compressor = runCompressor
	}
	if flags.Changed("workers") {
		cfg.Workers = runWorkers
	}
	if flags.Changed("strict-fonts") {
		cfg.StrictFonts = runStrictFonts
	}
	if flags.Changed("fail-fast") {
		cfg.FailFast = runFailFast
	}
	if flags.Changed("ignore-selector") {
		cfg.IgnoreSelectors = runIgnoreSelectors
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = runDatabaseURL
	}
	if flags.Changed("verbose") {
		cfg.Verbose = runVerbose
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	cfg = cfg.MergeWithDefaults(config.Defaults())

	if len(cfg.Fonts) == 0 {
		return cfg, fmt.Errorf("no fonts given: pass them as arguments, with --font or in the config file")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runSplitCmd(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync() //nolint:errcheck

	opts, err := pipeline.NewRunOptions(cfg, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DatabaseURL != "" {
		database, err := openDatabase(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		opts.Mirror = database
		opts.Recorder = database
		logger.Debug("mirroring store entries to database")
	}

	if !runJSON {
		stderr := cmd.ErrOrStderr()
		opts.OnProgress = func(event pipeline.ProgressEvent) {
			switch event.Step {
			case pipeline.StepBucket:
				if !cfg.Verbose {
					return
				}
			case pipeline.StepComplete:
				return
			}
			fmt.Fprintf(stderr, "[%s] %s\n", event.Step, event.Message) //nolint:errcheck
		}
	}

	res, err := pipeline.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Summary); err != nil {
			return err
		}
	} else {
		printer := observability.NewPrinter(out)
		if cfg.Verbose {
			for _, f := range res.Fonts {
				printer.PrintPlan(f.Repertoire, f.Buckets)
			}
		}
		printer.PrintRunSummary(&res.Summary)
		printer.PrintDiagnostics(res.Diagnostics)
		if cfg.CSSOut != "" && cfg.CSSAppend {
			fmt.Fprintf(out, "Stylesheet appended to %s\n", cfg.CSSOut) //nolint:errcheck
		} else if cfg.CSSOut != "" {
			fmt.Fprintf(out, "Stylesheet written to %s\n", cfg.CSSOut) //nolint:errcheck
		}
	}

	if n := len(res.Diagnostics); n > 0 && !runAllowFailures {
		logger.Debug("run finished with failures", zap.Int("count", n))
		return fmt.Errorf("%d failure(s); rerun with --allow-failures to accept a partial result", n)
	}
	return nil
}
