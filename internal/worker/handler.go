package worker

import (
	"context"
	"errors"
)

// JobHandler runs one job type. A recovered job starts over from the
// beginning, so Handle must tolerate running twice for the same payload.
type JobHandler interface {
	// Type matches the job_type column.
	Type() string

	// Handle decodes payload and does the work. Return NewPermanentError for
	// failures a retry cannot fix, such as an undecodable payload.
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError marks a failure that is not retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// NewPermanentError wraps err so the job is failed without rescheduling.
func NewPermanentError(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err wraps a PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
