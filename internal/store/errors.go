package store

import "fmt"

// Error represents an I/O failure in the store. Existing entries are never
// left corrupted by a failed operation.
type Error struct {
	Op      string
	Path    string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("store %s %s: %s", e.Op, e.Path, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}
