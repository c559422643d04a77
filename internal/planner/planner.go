// Package planner partitions a font's coverage into disjoint subset buckets
// along a prioritized reference dataset.
package planner

import (
	"fmt"
	"sort"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/types"
)

// DefaultResidualChunkSize bounds the size of each unclassified bucket
const DefaultResidualChunkSize = 200

// PreloadSuffix marks the bucket that absorbed the preload codepoints
const PreloadSuffix = "+pl"

// Options tunes planning. The zero value disables residual chunking,
// rejection and preloading.
type Options struct {
	// ResidualChunkSize splits the residual into chunks of at most this many
	// codepoints, named misc1, misc2, ... Zero keeps a single residual bucket.
	ResidualChunkSize int
	// MinBucketSize rejects reference buckets whose intersection with the
	// font is smaller; their codepoints fall through to the residual.
	MinBucketSize int
	// Preload codepoints are moved into the first emitted bucket.
	Preload *charset.Set
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{ResidualChunkSize: DefaultResidualChunkSize}
}

// Plan assigns every codepoint of rep's coverage to exactly one bucket. Defs
// are processed by ascending priority, input order breaking ties, and the
// first matching def claims a codepoint. The result is deterministic for
// identical inputs.
func Plan(rep *types.FontRepertoire, defs []types.PriorityBucketDef, opts Options) ([]types.SubsetBucket, error) {
	if err := validateDefs(rep.ID, defs); err != nil {
		return nil, err
	}

	remaining := rep.Coverage.Clone()
	if remaining.IsEmpty() {
		return nil, nil
	}

	var preload *charset.Set
	if opts.Preload != nil {
		preload = remaining.Intersect(opts.Preload)
		remaining.RemoveSet(preload)
	}

	ordered := make([]types.PriorityBucketDef, len(defs))
	copy(ordered, defs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	var buckets []types.SubsetBucket
	for _, def := range ordered {
		if remaining.IsEmpty() {
			break
		}
		claimed := remaining.Intersect(def.Codepoints)
		if claimed.IsEmpty() || claimed.Len() < opts.MinBucketSize {
			continue
		}
		remaining.RemoveSet(claimed)
		buckets = append(buckets, types.SubsetBucket{
			Name:       def.Name,
			Priority:   def.Priority,
			Codepoints: claimed,
		})
	}

	if !remaining.IsEmpty() {
		residualPriority := 0
		if n := len(ordered); n > 0 {
			residualPriority = ordered[n-1].Priority + 1
		}
		chunks := remaining.Chunk(opts.ResidualChunkSize)
		for i, chunk := range chunks {
			name := types.ResidualBucketName
			if len(chunks) > 1 {
				name = fmt.Sprintf("misc%d", i+1)
			}
			buckets = append(buckets, types.SubsetBucket{
				Name:       name,
				Priority:   residualPriority,
				Residual:   true,
				Codepoints: chunk,
			})
		}
	}

	if preload != nil && !preload.IsEmpty() {
		if len(buckets) == 0 {
			buckets = append(buckets, types.SubsetBucket{Name: "preload", Codepoints: charset.New()})
		}
		buckets[0].Codepoints.AddSet(preload)
		buckets[0].Name += PreloadSuffix
	}

	for i := range buckets {
		buckets[i].Index = i
	}
	return buckets, nil
}

func validateDefs(fontID string, defs []types.PriorityBucketDef) error {
	seen := make(map[string]struct{}, len(defs))
	for i, def := range defs {
		if def.Name == "" {
			return &PlanningError{FontID: fontID, Message: fmt.Sprintf("reference bucket %d has no name", i)}
		}
		if _, dup := seen[def.Name]; dup {
			return &PlanningError{FontID: fontID, Bucket: def.Name, Message: "duplicate bucket name"}
		}
		seen[def.Name] = struct{}{}
		if def.Codepoints == nil {
			return &PlanningError{FontID: fontID, Bucket: def.Name, Message: "bucket has no codepoint set"}
		}
		if def.Codepoints.Max() > charset.MaxCodepoint {
			return &PlanningError{FontID: fontID, Bucket: def.Name, Message: "codepoint beyond U+10FFFF"}
		}
		if def.Codepoints.Intersects(surrogates) {
			return &PlanningError{FontID: fontID, Bucket: def.Name, Message: "bucket contains surrogate codepoints"}
		}
	}
	return nil
}

var surrogates = charset.FromRange(0xD800, 0xDFFF)
