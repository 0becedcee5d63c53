package structured

import (
	"fmt"

	"github.com/rotisserie/eris"
)

// ErrorKind classifies why an extraction produced no value.
type ErrorKind int

const (
	// ServiceFailure means the extraction service kept failing.
	ServiceFailure ErrorKind = iota
	// Unparseable means the service answered but no reply could be decoded.
	Unparseable
	// Canceled means the context ended first.
	Canceled
)

func (k ErrorKind) String() string {
	switch k {
	case ServiceFailure:
		return "service_failure"
	case Unparseable:
		return "unparseable"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// ExtractionError is returned by Extract when every attempt failed.
type ExtractionError struct {
	Kind     ErrorKind
	Attempts int
	Cause    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("structured: %s after %d attempt(s): %v", e.Kind, e.Attempts, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// errUnparseable marks an attempt whose reply matched no parse strategy.
var errUnparseable = eris.New("structured: reply not parseable")
