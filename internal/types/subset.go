package types

import (
	"time"

	"github.com/jonathan/webfont-splitter/internal/charset"
)

// ResidualBucketName names the bucket holding coverage outside the reference dataset
const ResidualBucketName = "unclassified"

// PriorityBucketDef is one entry of a reference dataset
type PriorityBucketDef struct {
	Name       string       `json:"name"`
	Priority   int          `json:"priority"`
	Codepoints *charset.Set `json:"codepoints"`
}

// SubsetBucket is a disjoint slice of a font's coverage shipped as one webfont file
type SubsetBucket struct {
	Index      int          `json:"index"`
	Name       string       `json:"name"`
	Priority   int          `json:"priority"`
	Residual   bool         `json:"residual,omitempty"`
	Codepoints *charset.Set `json:"codepoints"`
}

// GlyphUsageSet is the set of codepoints rendered by one page
type GlyphUsageSet struct {
	Page       string       `json:"page"`
	Codepoints *charset.Set `json:"codepoints"`
}

// SubsetArtifact is the result of building and encoding one bucket
type SubsetArtifact struct {
	FontID     string       `json:"font_id"`
	Bucket     SubsetBucket `json:"bucket"`
	FontBytes  []byte       `json:"-"`
	Compressed []byte       `json:"-"`
	Hash       string       `json:"hash"`
	Reused     bool         `json:"reused,omitempty"`
}

// StoreEntry maps a content hash to a stored file
type StoreEntry struct {
	Hash      string    `json:"hash"`
	FileName  string    `json:"file_name"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	RefCount  int       `json:"ref_count"`
	CreatedAt time.Time `json:"created_at"`
}
