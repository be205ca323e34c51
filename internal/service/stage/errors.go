package stage

import (
	"errors"
	"fmt"
)

// Name identifies one of the three remote pipeline stages.
type Name string

const (
	Recognition Name = "recognition"
	Generation  Name = "generation"
	Synthesis   Name = "synthesis"
)

// TransportError marks a failure to obtain a usable response from a
// stage: connection errors, timeouts, non-success statuses and garbled
// bodies. Only these failures are worth retrying.
type TransportError struct {
	Stage Name
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s stage transport failure: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a transport-level stage failure.
func IsTransient(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// UnavailableError reports that a stage kept failing at the transport
// level until every retry attempt was spent.
type UnavailableError struct {
	Stage    Name
	Attempts int
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s stage unavailable after %d attempts: %v", e.Stage, e.Attempts, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err is a stage-unavailable failure.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}
