package fallback

import "fmt"

// Error represents a failure to load the manifest or a fallback source
type Error struct {
	Source  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fallback %s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("fallback %s: %s", e.Source, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
