package subsetter

import "fmt"

// ErrorKind classifies a subsetting failure
type ErrorKind string

const (
	// EmptyResult means the engine produced a font that maps no codepoints.
	EmptyResult ErrorKind = "EmptyResult"
	// EngineFailure covers every lower-level failure of the engine.
	EngineFailure ErrorKind = "EngineFailure"
)

// SubsettingError reports a failed bucket build. It is fatal for that
// bucket only.
type SubsettingError struct {
	Kind    ErrorKind
	FontID  string
	Bucket  string
	Message string
	Cause   error
}

func (e *SubsettingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("subsetting error (%s) for %s bucket %s: %s: %v", e.Kind, e.FontID, e.Bucket, e.Message, e.Cause)
	}
	return fmt.Sprintf("subsetting error (%s) for %s bucket %s: %s", e.Kind, e.FontID, e.Bucket, e.Message)
}

func (e *SubsettingError) Unwrap() error {
	return e.Cause
}
