package types

import "time"

// FontSummary reports what one font contributed to a run
type FontSummary struct {
	FontID     string `json:"font_id"`
	Family     string `json:"family"`
	Source     string `json:"source"`
	Buckets    int    `json:"buckets"`
	Subsets    int    `json:"subsets"`
	Reused     int    `json:"reused"`
	Failed     int    `json:"failed"`
	TotalBytes int64  `json:"total_bytes"`
	Abandoned  bool   `json:"abandoned,omitempty"`
}

// RunSummary is the overview printed and recorded at the end of a run
type RunSummary struct {
	RunID       string        `json:"run_id"`
	Mode        string        `json:"mode"`
	Fonts       []FontSummary `json:"fonts"`
	Subsets     int           `json:"subsets"`
	Written     int           `json:"written"`
	CacheHits   int           `json:"cache_hits"`
	TotalBytes  int64         `json:"total_bytes"`
	Pages       int           `json:"pages,omitempty"`
	Skipped     []string      `json:"skipped,omitempty"`
	Diagnostics []Diagnostic  `json:"diagnostics,omitempty"`
	Duration    time.Duration `json:"duration"`
}
