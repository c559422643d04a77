// Package pipeline provides the high-level orchestration of a run: reference
// data, the store, the optional webroot scan, per-font planning and bucket
// builds, and stylesheet emission.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/webfont-splitter/internal/config"
	"github.com/jonathan/webfont-splitter/internal/db"
	"github.com/jonathan/webfont-splitter/internal/encoder"
	"github.com/jonathan/webfont-splitter/internal/refdata"
	"github.com/jonathan/webfont-splitter/internal/store"
	"github.com/jonathan/webfont-splitter/internal/stylesheet"
	"github.com/jonathan/webfont-splitter/internal/subsetter"
	"github.com/jonathan/webfont-splitter/internal/types"
	"github.com/jonathan/webfont-splitter/internal/usage"
)

// FragmentSuffix is appended to a page's base name for its stylesheet fragment
const FragmentSuffix = ".fonts.css"

// FontResult holds everything one font produced
type FontResult struct {
	Repertoire *types.FontRepertoire
	Buckets    []types.SubsetBucket
	// Artifacts are the successful buckets in index order; Entries is parallel.
	Artifacts []*types.SubsetArtifact
	Entries   []types.StoreEntry
	Abandoned bool
	Summary   types.FontSummary
}

// Result is the outcome of a run
type Result struct {
	RunID       uuid.UUID
	Fonts       []*FontResult
	Pages       []types.GlyphUsageSet
	Stylesheet  *types.StylesheetDocument
	CSS         string
	Diagnostics []types.Diagnostic
	// Skipped holds the IDs of fonts excluded by the family filters.
	Skipped     []string
	Summary     types.RunSummary
}

type runner struct {
	opts     *RunOptions
	runID    uuid.UUID
	logger   *zap.Logger
	progress *progress
	recorder Recorder
	dataset  *refdata.Dataset
	store    *store.Store
}

// Run executes the pipeline. Per-font and per-bucket failures become
// diagnostics on the result; only run-level failures (reference data, store,
// webroot scan, output files, cancellation, fail-fast) return an error.
func Run(ctx context.Context, opts RunOptions) (*Result, error) {
	started := time.Now()
	if err := applyDefaults(&opts); err != nil {
		return nil, err
	}

	runID := uuid.New()
	r := &runner{
		opts:     &opts,
		runID:    runID,
		logger:   opts.Logger.With(zap.String("run_id", runID.String())),
		progress: &progress{runID: runID.String(), fn: opts.OnProgress},
		recorder: opts.Recorder,
	}

	r.progress.emit(ProgressEvent{
		Step:    StepStart,
		Message: fmt.Sprintf("Starting %s run with %d fonts", opts.Mode, len(opts.Fonts)),
	})

	if r.recorder != nil {
		if err := r.recorder.CreateRun(ctx, runID, opts.Mode, opts.Fonts); err != nil {
			r.logger.Warn("failed to record run, continuing without run log", zap.Error(err))
			r.recorder = nil
		}
	}

	ds, err := refdata.Load(ctx, opts.ReferenceData, opts.Fetcher)
	if err != nil {
		return nil, r.fail(ctx, fmt.Errorf("failed to load reference data: %w", err))
	}
	r.dataset = ds
	r.progress.emit(ProgressEvent{
		Step:    StepReferenceData,
		Message: fmt.Sprintf("Loaded reference data %s (%d buckets)", ds.Name, len(ds.Buckets)),
	})

	st, err := store.Open(opts.StoreDir, opts.BaseURI, store.Options{Logger: r.logger, Mirror: opts.Mirror})
	if err != nil {
		return nil, r.fail(ctx, err)
	}
	r.store = st

	var pages []types.GlyphUsageSet
	if opts.Mode == config.ModeStatic {
		pages, err = usage.ScanWebroot(ctx, opts.Webroot, usage.ScanOptions{
			IgnoreSelectors: opts.IgnoreSelectors,
			Logger:          r.logger,
		})
		if err != nil {
			_ = st.Close()
			return nil, r.fail(ctx, err)
		}
		r.progress.emit(ProgressEvent{
			Step:    StepScan,
			Message: fmt.Sprintf("Scanned %d pages", len(pages)),
		})
	}

	perRef := make([]refOutcome, len(opts.Fonts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i, ref := range opts.Fonts {
		g.Go(func() error {
			out, err := r.processRef(gctx, ref)
			perRef[i] = out
			return err
		})
	}
	runErr := g.Wait()
	if runErr == nil {
		runErr = ctx.Err()
	}
	if runErr != nil {
		_ = st.Close()
		return nil, r.fail(ctx, runErr)
	}

	res := &Result{RunID: runID, Pages: pages}
	for _, out := range perRef {
		res.Fonts = append(res.Fonts, out.fonts...)
		res.Diagnostics = append(res.Diagnostics, out.diagnostics...)
		res.Skipped = append(res.Skipped, out.skipped...)
	}

	var emitted []stylesheet.Emitted
	for _, f := range res.Fonts {
		if f.Abandoned {
			continue
		}
		for i, art := range f.Artifacts {
			emitted = append(emitted, stylesheet.Emitted{
				Font:     f.Repertoire,
				Artifact: art,
				URI:      st.UriFor(f.Entries[i]),
			})
		}
	}

	var relevance stylesheet.PageRelevance
	if opts.Mode == config.ModeStatic {
		relevance = pageRelevance(res.Fonts, pages)
	}
	res.Stylesheet = stylesheet.Emit(emitted, relevance)
	res.CSS = stylesheet.RenderString(res.Stylesheet.Rules)

	if err := r.writeOutputs(res); err != nil {
		_ = st.Close()
		return nil, r.fail(ctx, err)
	}
	r.progress.emit(ProgressEvent{
		Step:    StepEmit,
		Message: fmt.Sprintf("Emitted %d rules", len(res.Stylesheet.Rules)),
	})

	if err := st.Close(); err != nil {
		res.Diagnostics = append(res.Diagnostics, diagnose("", opts.StoreDir, "", err))
	}

	res.Summary = r.summarize(res, time.Since(started))
	r.complete(ctx, res)
	r.progress.emit(ProgressEvent{
		Step:    StepComplete,
		Message: fmt.Sprintf("Run complete: %d subsets, %d failures", res.Summary.Subsets, len(res.Diagnostics)),
		Content: res.Summary,
	})
	return res, nil
}

func applyDefaults(opts *RunOptions) error {
	if len(opts.Fonts) == 0 {
		return errors.New("no fonts given")
	}
	if opts.Mode == "" {
		opts.Mode = config.ModeBasic
	}
	if opts.Mode != config.ModeBasic && opts.Mode != config.ModeStatic {
		return fmt.Errorf("unknown mode %q", opts.Mode)
	}
	if opts.Mode == config.ModeStatic && opts.Webroot == "" {
		return errors.New("static mode requires a webroot")
	}
	if opts.StoreDir == "" {
		return errors.New("no store directory given")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Subsetter == nil {
		opts.Subsetter = subsetter.Native{}
	}
	if opts.Compressor == nil {
		opts.Compressor = encoder.NewWOFF2()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}
	return nil
}

// failFast returns err only when the run should abort on it
func (r *runner) failFast(err error) error {
	if r.opts.FailFast {
		return err
	}
	return nil
}

func (r *runner) fail(ctx context.Context, err error) error {
	r.logger.Error("run failed", zap.Error(err))
	if r.recorder != nil {
		outcome := db.RunOutcome{
			Status:  db.RunStatusFailed,
			Summary: map[string]string{"error": err.Error()},
		}
		if rerr := r.recorder.CompleteRun(context.WithoutCancel(ctx), r.runID, outcome); rerr != nil {
			r.logger.Warn("failed to record run outcome", zap.Error(rerr))
		}
	}
	return err
}

func (r *runner) complete(ctx context.Context, res *Result) {
	r.logger.Info("run complete",
		zap.Int("subsets", res.Summary.Subsets),
		zap.Int("written", res.Summary.Written),
		zap.Int("cache_hits", res.Summary.CacheHits),
		zap.Int("diagnostics", len(res.Diagnostics)),
		zap.Duration("duration", res.Summary.Duration))

	if r.recorder == nil {
		return
	}
	outcome := db.RunOutcome{
		Status:      db.StatusFor(nil, len(res.Diagnostics)),
		Subsets:     res.Summary.Subsets,
		Diagnostics: len(res.Diagnostics),
		Summary:     res.Summary,
	}
	if err := r.recorder.CompleteRun(context.WithoutCancel(ctx), r.runID, outcome); err != nil {
		r.logger.Warn("failed to record run outcome", zap.Error(err))
	}
}

func (r *runner) summarize(res *Result, elapsed time.Duration) types.RunSummary {
	s := types.RunSummary{
		RunID:       res.RunID.String(),
		Mode:        r.opts.Mode,
		Pages:       len(res.Pages),
		Written:     int(r.store.Writes()),
		Skipped:     res.Skipped,
		Diagnostics: res.Diagnostics,
		Duration:    elapsed,
	}
	for _, f := range res.Fonts {
		s.Fonts = append(s.Fonts, f.Summary)
		if f.Abandoned {
			continue
		}
		s.Subsets += f.Summary.Subsets
		s.CacheHits += f.Summary.Reused
		s.TotalBytes += f.Summary.TotalBytes
	}
	return s
}

// pageRelevance evaluates RelevantBuckets once per (font, page) pair
func pageRelevance(fonts []*FontResult, pages []types.GlyphUsageSet) stylesheet.PageRelevance {
	rel := make(stylesheet.PageRelevance, len(pages))
	for _, p := range pages {
		rel[p.Page] = make(map[string]usage.IndexSet)
	}
	for _, f := range fonts {
		if f.Abandoned {
			continue
		}
		for page, set := range usage.Relevance(f.Buckets, pages) {
			rel[page][f.Repertoire.ID] = set
		}
	}
	return rel
}

// FragmentPath returns where the stylesheet fragment of a page is written
func FragmentPath(webroot, page string) string {
	base := strings.TrimSuffix(page, path.Ext(page))
	return filepath.Join(webroot, filepath.FromSlash(base+FragmentSuffix))
}

func (r *runner) writeOutputs(res *Result) error {
	if r.opts.CSSOut != "" {
		write := writeFile
		if r.opts.CSSAppend {
			write = appendFile
		}
		if err := write(r.opts.CSSOut, res.CSS); err != nil {
			return fmt.Errorf("failed to write stylesheet %s: %w", r.opts.CSSOut, err)
		}
	}
	if r.opts.Mode != config.ModeStatic {
		return nil
	}
	for _, page := range stylesheet.Pages(res.Stylesheet) {
		dst := FragmentPath(r.opts.Webroot, page)
		if err := writeFile(dst, stylesheet.RenderString(res.Stylesheet.Pages[page])); err != nil {
			return fmt.Errorf("failed to write page stylesheet %s: %w", dst, err)
		}
	}
	return nil
}

func writeFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// appendFile adds content after whatever path already holds
func appendFile(path, content string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
