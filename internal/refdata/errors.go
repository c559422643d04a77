package refdata

import "fmt"

// Error represents a failure to load or decode a reference dataset
type Error struct {
	Ref     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("reference data %s: %s: %v", e.Ref, e.Message, e.Cause)
	}
	return fmt.Sprintf("reference data %s: %s", e.Ref, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
