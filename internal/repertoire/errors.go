// Package repertoire reads the codepoint coverage and metadata of source fonts.
package repertoire

import "fmt"

// Error represents a failure to read or parse a source font
type Error struct {
	Source  string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("repertoire error for %s: %s: %v", e.Source, e.Message, e.Cause)
	}
	return fmt.Sprintf("repertoire error for %s: %s", e.Source, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
