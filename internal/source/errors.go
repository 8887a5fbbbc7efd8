package source

import (
	"errors"
	"fmt"
)

var (
	// ErrAcquisition marks a failure to acquire a source's resource at
	// initialization. It is permanent: the source is never retried.
	ErrAcquisition = errors.New("acquisition failed")

	// ErrRead marks a failed measurement. It is transient and only costs
	// the current polling cycle.
	ErrRead = errors.New("read failed")

	// ErrNoUpstreamData is returned by a derived sampler when one of its
	// upstream sources had nothing to drain. It is not a failure.
	ErrNoUpstreamData = errors.New("no upstream data")

	// ErrNotReady is returned by Run for a source that did not initialize.
	ErrNotReady = errors.New("source not ready")

	// ErrAlreadyRunning is returned by Run when the polling loop is active.
	ErrAlreadyRunning = errors.New("polling loop already running")
)

// AcquisitionError reports why a source could not be initialized.
type AcquisitionError struct {
	Source string
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Source, ErrAcquisition, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrAcquisition) match.
func (e *AcquisitionError) Is(target error) bool { return target == ErrAcquisition }

// ReadError reports a failed measurement.
type ReadError struct {
	Source string
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Source, ErrRead, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrRead) match.
func (e *ReadError) Is(target error) bool { return target == ErrRead }
