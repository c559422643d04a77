// Package usage decides which subset buckets each page of a static site needs.
package usage

import (
	"sort"

	"github.com/jonathan/webfont-splitter/internal/types"
)

// IndexSet is a set of bucket indexes
type IndexSet map[int]struct{}

// Has reports whether idx is in the set
func (s IndexSet) Has(idx int) bool {
	_, ok := s[idx]
	return ok
}

// Sorted returns the indexes in ascending order
func (s IndexSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for idx := range s {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// RelevantBuckets returns the index of every bucket whose codepoints
// intersect the page's usage
func RelevantBuckets(buckets []types.SubsetBucket, usage types.GlyphUsageSet) IndexSet {
	out := make(IndexSet)
	for _, b := range buckets {
		if b.Codepoints.Intersects(usage.Codepoints) {
			out[b.Index] = struct{}{}
		}
	}
	return out
}

// AllBuckets marks every bucket relevant; used in basic mode
func AllBuckets(buckets []types.SubsetBucket) IndexSet {
	out := make(IndexSet, len(buckets))
	for _, b := range buckets {
		out[b.Index] = struct{}{}
	}
	return out
}

// Relevance evaluates RelevantBuckets for one font against every page
func Relevance(buckets []types.SubsetBucket, pages []types.GlyphUsageSet) map[string]IndexSet {
	out := make(map[string]IndexSet, len(pages))
	for _, page := range pages {
		out[page.Page] = RelevantBuckets(buckets, page)
	}
	return out
}
