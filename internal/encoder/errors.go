package encoder

import "fmt"

// ErrorKind classifies an encoding failure
type ErrorKind string

// CompressionFailure covers every codec error
const CompressionFailure ErrorKind = "CompressionFailure"

// EncodingError reports a failed compression. It is fatal for the subset
// being encoded only.
type EncodingError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *EncodingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("encoding error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("encoding error (%s): %s", e.Kind, e.Message)
}

func (e *EncodingError) Unwrap() error {
	return e.Cause
}
