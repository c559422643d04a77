package types

// FontFaceRule is one @font-face rule
type FontFaceRule struct {
	FontID       string     `json:"font_id"`
	BucketIndex  int        `json:"bucket_index"`
	BucketName   string     `json:"bucket_name"`
	Family       string     `json:"family"`
	Style        FontStyle  `json:"style"`
	Weight       FontWeight `json:"weight"`
	UnicodeRange string     `json:"unicode_range"`
	URI          string     `json:"uri"`
}

// StylesheetDocument is the terminal output of a run
type StylesheetDocument struct {
	Rules []FontFaceRule            `json:"rules"`
	Pages map[string][]FontFaceRule `json:"pages,omitempty"`
}

// Diagnostic stages
const (
	StageRead     = "read"
	StagePlan     = "plan"
	StageSubset   = "subset"
	StageEncode   = "encode"
	StageStore    = "store"
	StageFallback = "fallback"
	StageScan     = "scan"
	StageEmit     = "emit"
)

// Diagnostic reports one failure surfaced to the caller
type Diagnostic struct {
	FontID  string `json:"font_id"`
	Source  string `json:"source,omitempty"`
	Bucket  string `json:"bucket,omitempty"`
	Stage   string `json:"stage"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}
