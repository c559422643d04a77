package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/webfont-splitter/internal/encoder"
	"github.com/jonathan/webfont-splitter/internal/fallback"
	"github.com/jonathan/webfont-splitter/internal/fetch"
	"github.com/jonathan/webfont-splitter/internal/planner"
	"github.com/jonathan/webfont-splitter/internal/repertoire"
	"github.com/jonathan/webfont-splitter/internal/store"
	"github.com/jonathan/webfont-splitter/internal/subsetter"
	"github.com/jonathan/webfont-splitter/internal/types"
)

// refOutcome collects what one entry of RunOptions.Fonts produced. The
// reserved fallback reference expands to several fonts.
type refOutcome struct {
	fonts       []*FontResult
	diagnostics []types.Diagnostic
	// skipped lists fonts left out by the family filters.
	skipped []string
}

type bucketOutcome struct {
	artifact *types.SubsetArtifact
	entry    types.StoreEntry
	err      error
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func (r *runner) processRef(ctx context.Context, ref string) (refOutcome, error) {
	var out refOutcome

	if fallback.IsReserved(ref) {
		return r.processFallback(ctx, ref)
	}

	rep, src, err := r.readFont(ctx, ref)
	if err != nil {
		r.logger.Warn("failed to read font", zap.String("font", ref), zap.Error(err))
		out.diagnostics = append(out.diagnostics, diagnose(ref, ref, "", err))
		return out, r.failFast(err)
	}
	if !r.familyAllowed(rep.Family) {
		r.logger.Info("skipping font filtered by family", zap.String("font", ref), zap.String("family", rep.Family))
		out.skipped = append(out.skipped, rep.ID)
		return out, nil
	}

	fr, diags, err := r.processFont(ctx, rep, src)
	out.fonts = append(out.fonts, fr)
	out.diagnostics = append(out.diagnostics, diags...)
	return out, err
}

func (r *runner) processFallback(ctx context.Context, ref string) (refOutcome, error) {
	var out refOutcome
	r.progress.emit(ProgressEvent{
		Step:    StepFont,
		FontID:  fallback.ReservedID,
		Message: "Resolving fallback sources",
	})

	loader := &fallback.DirLoader{Dir: r.opts.FallbackDir}
	if r.opts.Fetcher != nil {
		loader.Fetcher = r.opts.Fetcher
	}
	fb, err := fallback.Resolve(ctx, loader)
	if fb != nil {
		out.diagnostics = append(out.diagnostics, fb.Diagnostics...)
	}
	if err != nil {
		out.diagnostics = append(out.diagnostics, diagnose(fallback.ReservedID, ref, "", err))
		return out, r.failFast(err)
	}
	if len(fb.Diagnostics) > 0 && r.opts.FailFast {
		return out, fmt.Errorf("fallback source %s: %s", fb.Diagnostics[0].Source, fb.Diagnostics[0].Message)
	}
	r.logger.Info("resolved fallback",
		zap.Int("sources", len(fb.Fonts)),
		zap.Int("uncovered", fb.Uncovered.Len()))

	for _, resolved := range fb.Fonts {
		if !r.familyAllowed(resolved.Repertoire.Family) {
			r.logger.Info("skipping fallback source filtered by family", zap.String("family", resolved.Repertoire.Family))
			out.skipped = append(out.skipped, resolved.Repertoire.ID)
			continue
		}
		fr, diags, err := r.processFont(ctx, resolved.Repertoire, resolved.Font)
		out.fonts = append(out.fonts, fr)
		out.diagnostics = append(out.diagnostics, diags...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// familyAllowed applies IncludeFamilies then ExcludeFamilies, ignoring case.
// An empty include list admits every family.
func (r *runner) familyAllowed(family string) bool {
	if len(r.opts.IncludeFamilies) > 0 && !containsFold(r.opts.IncludeFamilies, family) {
		return false
	}
	return !containsFold(r.opts.ExcludeFamilies, family)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), s) {
			return true
		}
	}
	return false
}

func (r *runner) readFont(ctx context.Context, ref string) (*types.FontRepertoire, *repertoire.Source, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if !isRemote(ref) {
		return repertoire.Read(ref, nil)
	}
	if r.opts.Fetcher == nil {
		return nil, nil, &fetch.Error{URL: ref, Message: "no fetcher configured for remote fonts"}
	}
	data, err := r.opts.Fetcher.Fetch(ctx, ref)
	if err != nil {
		return nil, nil, err
	}
	return repertoire.ReadBytes(ref, data, nil)
}

// processFont plans one font and builds its buckets concurrently. The
// returned error is non-nil only under fail-fast.
func (r *runner) processFont(ctx context.Context, rep *types.FontRepertoire, src *repertoire.Source) (*FontResult, []types.Diagnostic, error) {
	logger := r.logger.With(zap.String("font_id", rep.ID))
	fr := &FontResult{
		Repertoire: rep,
		Summary: types.FontSummary{
			FontID: rep.ID,
			Family: rep.Family,
			Source: rep.Source,
		},
	}
	r.progress.emit(ProgressEvent{
		Step:    StepFont,
		FontID:  rep.ID,
		Message: fmt.Sprintf("Read %s (%d codepoints)", rep.Family, rep.Coverage.Len()),
		Content: rep,
	})

	buckets, err := planner.Plan(rep, r.dataset.Buckets, r.opts.Planner)
	if err != nil {
		logger.Warn("planning failed", zap.Error(err))
		fr.Abandoned = true
		fr.Summary.Abandoned = true
		return fr, []types.Diagnostic{diagnose(rep.ID, rep.Source, "", err)}, r.failFast(err)
	}
	fr.Buckets = buckets
	fr.Summary.Buckets = len(buckets)
	r.progress.emit(ProgressEvent{
		Step:    StepPlan,
		FontID:  rep.ID,
		Message: fmt.Sprintf("Planned %d buckets", len(buckets)),
		Content: buckets,
	})

	outcomes := make([]bucketOutcome, len(buckets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i, bucket := range buckets {
		g.Go(func() error {
			art, entry, err := r.buildBucket(gctx, rep, src, bucket)
			outcomes[i] = bucketOutcome{artifact: art, entry: entry, err: err}
			if err != nil {
				logger.Warn("bucket failed", zap.String("bucket", bucket.Name), zap.Error(err))
				return r.failFast(err)
			}
			return nil
		})
	}
	groupErr := g.Wait()

	var diags []types.Diagnostic
	for i, o := range outcomes {
		if o.err != nil {
			diags = append(diags, diagnose(rep.ID, rep.Source, buckets[i].Name, o.err))
			fr.Summary.Failed++
			continue
		}
		if o.artifact == nil {
			continue
		}
		fr.Artifacts = append(fr.Artifacts, o.artifact)
		fr.Entries = append(fr.Entries, o.entry)
		fr.Summary.Subsets++
		fr.Summary.TotalBytes += o.entry.Size
		if o.artifact.Reused {
			fr.Summary.Reused++
		}
	}
	if groupErr != nil {
		return fr, diags, groupErr
	}

	if fr.Summary.Failed > 0 && r.opts.StrictFonts {
		logger.Warn("abandoning font after bucket failures", zap.Int("failed", fr.Summary.Failed))
		fr.Abandoned = true
		fr.Summary.Abandoned = true
	}
	return fr, diags, nil
}

// buildBucket produces the stored WOFF2 for one bucket, reusing the entry
// remembered from an earlier run when the inputs are unchanged.
func (r *runner) buildBucket(ctx context.Context, rep *types.FontRepertoire, src *repertoire.Source, bucket types.SubsetBucket) (*types.SubsetArtifact, types.StoreEntry, error) {
	key := store.MemoKey(src.Digest, bucket.Codepoints.String(), r.opts.engineKey())

	entry, hit, err := r.store.Reuse(ctx, key)
	if err != nil {
		return nil, types.StoreEntry{}, err
	}
	if hit {
		r.progress.emit(ProgressEvent{
			Step:    StepBucket,
			FontID:  rep.ID,
			Bucket:  bucket.Name,
			Message: "Reused " + entry.FileName,
		})
		return &types.SubsetArtifact{
			FontID: rep.ID,
			Bucket: bucket,
			Hash:   entry.Hash,
			Reused: true,
		}, entry, nil
	}

	art, err := subsetter.Build(ctx, r.opts.Subsetter, rep.ID, src, bucket)
	if err != nil {
		return nil, types.StoreEntry{}, err
	}
	art.Compressed, err = encoder.Encode(ctx, r.opts.Compressor, art.FontBytes)
	if err != nil {
		return nil, types.StoreEntry{}, err
	}
	entry, err = r.store.Put(ctx, art.Compressed)
	if err != nil {
		return nil, types.StoreEntry{}, err
	}
	art.Hash = entry.Hash
	r.store.Remember(key, entry.Hash)

	r.progress.emit(ProgressEvent{
		Step:    StepBucket,
		FontID:  rep.ID,
		Bucket:  bucket.Name,
		Message: fmt.Sprintf("Stored %s (%d bytes)", entry.FileName, entry.Size),
	})
	return art, entry, nil
}
