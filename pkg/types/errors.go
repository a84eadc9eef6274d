package types

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed caller input, such as a consistency score
// outside [0,100].
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a missing entity by kind and identifier.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// StateConflictError reports a mutation against a locked frame or an illegal
// actor status transition.
type StateConflictError struct {
	Reason string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("state conflict: %s", e.Reason)
}

// UpstreamServiceError wraps a failure from an external collaborator, tagged
// with the collaborator name.
type UpstreamServiceError struct {
	Service string
	Err     error
}

func (e *UpstreamServiceError) Error() string {
	return fmt.Sprintf("upstream service %s failed: %v", e.Service, e.Err)
}

func (e *UpstreamServiceError) Unwrap() error { return e.Err }

// PartialBatchFailure marks a batch generation that completed with a mix of
// successes and failures. The per-item result list carries the detail; this
// error only signals that the batch was not all-success.
type PartialBatchFailure struct {
	Total  int
	Failed int
}

func (e *PartialBatchFailure) Error() string {
	return fmt.Sprintf("batch completed with %d/%d failures", e.Failed, e.Total)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsStateConflict reports whether err is (or wraps) a StateConflictError.
func IsStateConflict(err error) bool {
	var sc *StateConflictError
	return errors.As(err, &sc)
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsUpstream reports whether err is (or wraps) an UpstreamServiceError.
func IsUpstream(err error) bool {
	var ue *UpstreamServiceError
	return errors.As(err, &ue)
}
