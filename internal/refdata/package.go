package refdata

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/jonathan/webfont-splitter/internal/charset"
	"github.com/jonathan/webfont-splitter/internal/compress"
	"github.com/jonathan/webfont-splitter/internal/types"
)

// Data packages are "WFSP", a format version byte, then a compress frame
// holding the CBOR encoded dataset with roaring bitmaps for codepoints.
var packageMagic = []byte("WFSP")

const packageVersion = 1

type packageDoc struct {
	Name    string          `cbor:"1,keyasint"`
	Version int             `cbor:"2,keyasint,omitempty"`
	Buckets []packageBucket `cbor:"3,keyasint"`
}

type packageBucket struct {
	Name     string `cbor:"1,keyasint"`
	Priority int    `cbor:"2,keyasint"`
	Bitmap   []byte `cbor:"3,keyasint"`
}

var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("refdata: cbor encoder initialization failed: " + err.Error())
	}
}

// IsPackage reports whether data starts with the data package magic
func IsPackage(data []byte) bool {
	return bytes.HasPrefix(data, packageMagic)
}

// EncodePackage serializes a dataset as a compressed data package. The
// output is deterministic for a given dataset and tag.
func EncodePackage(ds *Dataset, tag compress.Tag) ([]byte, error) {
	doc := packageDoc{
		Name:    ds.Name,
		Version: ds.Version,
		Buckets: make([]packageBucket, 0, len(ds.Buckets)),
	}
	for _, b := range ds.Buckets {
		bm, err := b.Codepoints.MarshalBinary()
		if err != nil {
			return nil, &Error{Ref: ds.Name, Message: "failed to encode bucket " + b.Name, Cause: err}
		}
		doc.Buckets = append(doc.Buckets, packageBucket{Name: b.Name, Priority: b.Priority, Bitmap: bm})
	}

	raw, err := encMode.Marshal(doc)
	if err != nil {
		return nil, &Error{Ref: ds.Name, Message: "failed to encode package", Cause: err}
	}
	frame, err := compress.Pack(raw, tag)
	if err != nil {
		return nil, &Error{Ref: ds.Name, Message: "failed to compress package", Cause: err}
	}

	out := make([]byte, 0, len(packageMagic)+1+len(frame))
	out = append(out, packageMagic...)
	out = append(out, packageVersion)
	return append(out, frame...), nil
}

// DecodePackage reads a data package written by EncodePackage
func DecodePackage(ref string, data []byte) (*Dataset, error) {
	if !IsPackage(data) || len(data) < len(packageMagic)+1 {
		return nil, &Error{Ref: ref, Message: "not a data package"}
	}
	if v := data[len(packageMagic)]; v != packageVersion {
		return nil, &Error{Ref: ref, Message: fmt.Sprintf("unsupported package version %d", v)}
	}

	raw, _, err := compress.Unpack(data[len(packageMagic)+1:])
	if err != nil {
		return nil, &Error{Ref: ref, Message: "failed to decompress package", Cause: err}
	}

	var doc packageDoc
	if err := cbor.Unmarshal(raw, &doc); err != nil {
		return nil, &Error{Ref: ref, Message: "failed to decode package", Cause: err}
	}

	ds := &Dataset{
		Name:    doc.Name,
		Version: doc.Version,
		Buckets: make([]types.PriorityBucketDef, 0, len(doc.Buckets)),
	}
	for _, b := range doc.Buckets {
		set := charset.New()
		if err := set.UnmarshalBinary(b.Bitmap); err != nil {
			return nil, &Error{Ref: ref, Message: "bucket " + b.Name + " has a corrupt bitmap", Cause: err}
		}
		ds.Buckets = append(ds.Buckets, types.PriorityBucketDef{
			Name:       b.Name,
			Priority:   b.Priority,
			Codepoints: set,
		})
	}
	return ds, nil
}
