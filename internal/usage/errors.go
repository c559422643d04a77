package usage

import "fmt"

// Error represents a failure to scan a page or stylesheet
type Error struct {
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("usage scan error for %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("usage scan error for %s: %s", e.Path, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
