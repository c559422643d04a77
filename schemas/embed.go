// Package schemas embeds the JSON Schemas for the documents the tool reads.
package schemas

import "embed"

// Schema file names
const (
	ReferenceData    = "reference_data.schema.json"
	FallbackManifest = "fallback_manifest.schema.json"
	Config           = "config.schema.json"
)

//go:embed *.schema.json
var FS embed.FS
