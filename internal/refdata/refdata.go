// Package refdata loads the prioritized codepoint buckets the planner splits
// fonts along. Datasets come from the bundled JSON, a JSON file, or a
// compressed binary data package, locally or over HTTP.
package refdata

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/schemas"
	"github.com/jonathan/webfont-splitter/internal/types"
	embedded "github.com/jonathan/webfont-splitter/schemas"
)

// BundledRef selects the dataset compiled into the binary
const BundledRef = "bundled"

//go:embed data/subsets.json
var bundledJSON []byte

// Dataset is an ordered list of priority bucket definitions
type Dataset struct {
	Name    string
	Version int
	Buckets []types.PriorityBucketDef
}

// Fetcher retrieves remote datasets
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type document struct {
	Name    string           `json:"name"`
	Version int              `json:"version,omitempty"`
	Buckets []documentBucket `json:"buckets"`
}

type documentBucket struct {
	Name         string `json:"name"`
	Priority     int    `json:"priority"`
	UnicodeRange string `json:"unicode_range"`
}

var (
	bundledOnce sync.Once
	bundled     *Dataset
	bundledErr  error
)

// Bundled returns the dataset embedded in the binary. Callers must not
// modify it.
func Bundled() (*Dataset, error) {
	bundledOnce.Do(func() {
		bundled, bundledErr = Parse(BundledRef, bundledJSON)
	})
	return bundled, bundledErr
}

// Parse decodes a JSON dataset after checking it against the reference data schema
func Parse(ref string, data []byte) (*Dataset, error) {
	if err := schemas.Validate(embedded.ReferenceData, data); err != nil {
		return nil, &Error{Ref: ref, Message: "invalid dataset", Cause: err}
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &Error{Ref: ref, Message: "failed to parse dataset JSON", Cause: err}
	}

	ds := &Dataset{
		Name:    doc.Name,
		Version: doc.Version,
		Buckets: make([]types.PriorityBucketDef, 0, len(doc.Buckets)),
	}
	for _, b := range doc.Buckets {
		set, err := charset.Parse(b.UnicodeRange)
		if err != nil {
			return nil, &Error{
				Ref:     ref,
				Message: fmt.Sprintf("bucket %q has an invalid unicode_range", b.Name),
				Cause:   err,
			}
		}
		ds.Buckets = append(ds.Buckets, types.PriorityBucketDef{
			Name:       b.Name,
			Priority:   b.Priority,
			Codepoints: set,
		})
	}
	return ds, nil
}

// MarshalJSON writes the dataset in the same document form Parse reads
func (ds *Dataset) MarshalJSON() ([]byte, error) {
	doc := document{Name: ds.Name, Version: ds.Version, Buckets: make([]documentBucket, len(ds.Buckets))}
	for i, b := range ds.Buckets {
		doc.Buckets[i] = documentBucket{Name: b.Name, Priority: b.Priority, UnicodeRange: b.Codepoints.String()}
	}
	return json.Marshal(doc)
}

// Load resolves a dataset reference: "" or "bundled", an http(s) URL fetched
// through f, or a local file. Files and URLs may hold JSON or a data package.
func Load(ctx context.Context, ref string, f Fetcher) (*Dataset, error) {
	if ref == "" || ref == BundledRef {
		return Bundled()
	}

	var data []byte
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		if f == nil {
			return nil, &Error{Ref: ref, Message: "no fetcher configured for remote dataset"}
		}
		var err error
		data, err = f.Fetch(ctx, ref)
		if err != nil {
			return nil, &Error{Ref: ref, Message: "failed to fetch dataset", Cause: err}
		}
	} else {
		var err error
		data, err = os.ReadFile(ref)
		if err != nil {
			return nil, &Error{Ref: ref, Message: "failed to read dataset", Cause: err}
		}
	}

	if IsPackage(data) {
		return DecodePackage(ref, data)
	}
	return Parse(ref, bytes.TrimSpace(data))
}
