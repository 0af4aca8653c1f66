package models

import (
	"errors"
	"fmt"
)

// ErrValidation classifies malformed caller input. ValidationError matches it
// with errors.Is so the web layer can map it to 400 without type switches.
var ErrValidation = errors.New("validation failed")

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// SourceError wraps a failure to read counters from the host.
type SourceError struct {
	Op  string
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("counter source %s: %v", e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }
