// Package transition implements the task-transition engine: per-item
// configuration resolution, authorization, status computation, cascades,
// and the single batch commit at the end of a run.
package transition

import (
	"errors"
	"fmt"
)

// Kind classifies a per-item failure.
type Kind string

const (
	KindConfigMissing         Kind = "config_missing"
	KindConfigEmpty           Kind = "config_empty"
	KindStatusInvalid         Kind = "status_invalid"
	KindRoleAssignmentInvalid Kind = "role_assignment_invalid"
	KindAuthorizationDenied   Kind = "authorization_denied"
	KindFileMissingMandatory  Kind = "file_missing_mandatory"
	KindCopyFailure           Kind = "copy_failure"
	KindLinkedRecordNotFound  Kind = "linked_record_not_found"
	KindStoreUnavailable      Kind = "store_unavailable"
	KindFatal                 Kind = "fatal"
)

// ItemError is a classified per-item failure. Its message is what lands in
// the outcome report's reason column.
type ItemError struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *ItemError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.Err)
	}
	return e.Reason
}

func (e *ItemError) Unwrap() error { return e.Err }

// Errf builds a classified item error.
func Errf(kind Kind, format string, args ...any) *ItemError {
	return &ItemError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error, keeping it unwrappable.
func Wrap(kind Kind, err error, reason string) *ItemError {
	return &ItemError{Kind: kind, Reason: reason, Err: err}
}

// KindOf extracts the failure kind, defaulting to KindFatal for
// unclassified errors.
func KindOf(err error) Kind {
	var ie *ItemError
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindFatal
}
