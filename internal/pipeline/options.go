package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/webfont-splitter/internal/config"
	"github.com/jonathan/webfont-splitter/internal/db"
	"github.com/jonathan/webfont-splitter/internal/encoder"
	"github.com/jonathan/webfont-splitter/internal/fetch"
	"github.com/jonathan/webfont-splitter/internal/planner"
	"github.com/jonathan/webfont-splitter/internal/store"
	"github.com/jonathan/webfont-splitter/internal/subsetter"
)

// Fetcher retrieves remote fonts and reference datasets
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Recorder keeps a log of runs, e.g. in Postgres
type Recorder interface {
	CreateRun(ctx context.Context, id uuid.UUID, mode string, fonts []string) error
	CompleteRun(ctx context.Context, id uuid.UUID, outcome db.RunOutcome) error
}

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	Fonts         []string
	Mode          string
	Webroot       string
	ReferenceData string
	FallbackDir   string

	StoreDir string
	BaseURI  string
	// CSSOut receives the full stylesheet when set.
	CSSOut string
	// CSSAppend adds the stylesheet to the end of CSSOut instead of
	// replacing it. Page fragments are always rewritten.
	CSSAppend bool

	// Family filters, compared case-insensitively. Exclusion wins.
	IncludeFamilies []string
	ExcludeFamilies []string

	Planner    planner.Options
	Subsetter  subsetter.Subsetter
	Compressor encoder.Compressor
	// EngineKey identifies the engines and their settings in memo keys.
	EngineKey string

	Workers         int
	StrictFonts     bool
	FailFast        bool
	IgnoreSelectors []string

	Fetcher    Fetcher
	Mirror     store.Mirror
	Recorder   Recorder
	Logger     *zap.Logger
	OnProgress ProgressCallback
}

// NewRunOptions translates a validated configuration into run options. The
// mirror and recorder are left for the caller, which owns the database.
func NewRunOptions(cfg config.Config, logger *zap.Logger) (RunOptions, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	preload, err := cfg.PreloadSet()
	if err != nil {
		return RunOptions{}, fmt.Errorf("invalid preload range: %w", err)
	}

	var sub subsetter.Subsetter
	switch cfg.Subsetter {
	case "", config.SubsetterNative:
		sub = subsetter.Native{}
	case config.SubsetterHB:
		sub = subsetter.HBSubset{}
	default:
		return RunOptions{}, fmt.Errorf("unknown subsetter %q", cfg.Subsetter)
	}

	var comp encoder.Compressor
	switch cfg.Compressor {
	case "", config.CompressorNative:
		w := encoder.NewWOFF2()
		if cfg.Quality != nil {
			w.Quality = *cfg.Quality
		}
		if cfg.Window > 0 {
			w.Window = cfg.Window
		}
		comp = w
	case config.CompressorWoff2CC:
		comp = encoder.Woff2Compress{}
	default:
		return RunOptions{}, fmt.Errorf("unknown compressor %q", cfg.Compressor)
	}

	fetcherConfig := fetch.DefaultCachedFetcherConfig()
	fetcherConfig.Logger = logger

	return RunOptions{
		Fonts:           cfg.Fonts,
		Mode:            cfg.Mode,
		Webroot:         cfg.Webroot,
		ReferenceData:   cfg.ReferenceData,
		FallbackDir:     cfg.FallbackDir,
		StoreDir:        cfg.StoreDir,
		BaseURI:         cfg.BaseURI,
		CSSOut:          cfg.CSSOut,
		CSSAppend:       cfg.CSSAppend,
		IncludeFamilies: cfg.IncludeFamilies,
		ExcludeFamilies: cfg.ExcludeFamilies,
		Planner: planner.Options{
			ResidualChunkSize: cfg.ResidualChunkSize,
			MinBucketSize:     cfg.MinBucketSize,
			Preload:           preload,
		},
		Subsetter:       sub,
		Compressor:      comp,
		EngineKey:       engineKey(cfg),
		Workers:         cfg.Workers,
		StrictFonts:     cfg.StrictFonts,
		FailFast:        cfg.FailFast,
		IgnoreSelectors: cfg.IgnoreSelectors,
		Fetcher:         fetch.NewCachedFetcher(cfg.CacheDir, fetcherConfig),
		Logger:          logger,
	}, nil
}

func engineKey(cfg config.Config) string {
	sub := cfg.Subsetter
	if sub == "" {
		sub = config.SubsetterNative
	}
	comp := cfg.Compressor
	if comp == "" {
		comp = config.CompressorNative
	}
	if comp == config.CompressorNative {
		w := encoder.NewWOFF2()
		if cfg.Quality != nil {
			w.Quality = *cfg.Quality
		}
		if cfg.Window > 0 {
			w.Window = cfg.Window
		}
		return fmt.Sprintf("%s|%s:q%d:w%d", sub, comp, w.Quality, w.Window)
	}
	return sub + "|" + comp
}

func (o *RunOptions) engineKey() string {
	if o.EngineKey != "" {
		return o.EngineKey
	}
	return fmt.Sprintf("%T|%T", o.Subsetter, o.Compressor)
}
