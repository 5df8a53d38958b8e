// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for engine failure classes
var (
	ErrValidationFailed    = errors.New("validation failed")
	ErrResolutionFailed    = errors.New("resolution failed")
	ErrOSCommandFailed     = errors.New("os command failed")
	ErrRollbackFailed      = errors.New("rollback failed")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrBusy                = errors.New("mutation already in flight")
	ErrStaleState          = errors.New("live state changed since plan was computed")
	ErrSnapshotNotFound    = errors.New("snapshot not found")
	ErrUnsupportedPlatform = errors.New("route table access not supported on this platform")
)

// ResolutionKind classifies why a symbolic route field could not be resolved.
type ResolutionKind string

const (
	InterfaceNotFound    ResolutionKind = "interface-not-found"
	InvalidFormat        ResolutionKind = "invalid-format"
	NameResolutionFailed ResolutionKind = "name-resolution-failed"
	GatewayOffLink       ResolutionKind = "gateway-off-link"
)

// ResolutionError reports a per-route resolution failure. Routes that fail
// resolution are excluded from the plan and flagged; they never abort the
// whole plan.
type ResolutionError struct {
	Kind   ResolutionKind
	Field  string // "interface", "gateway", or "destination"
	Value  string
	Reason string
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("cannot resolve %s %q: %s", e.Field, e.Value, e.Kind)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

func (e *ResolutionError) Unwrap() error {
	return ErrResolutionFailed
}

// NewResolutionError creates a resolution error
func NewResolutionError(kind ResolutionKind, field, value, reason string) *ResolutionError {
	return &ResolutionError{Kind: kind, Field: field, Value: value, Reason: reason}
}

// OSCommandKind classifies an OS route-table mutation failure.
type OSCommandKind string

const (
	OSRejected OSCommandKind = "rejected"
	OSTimeout  OSCommandKind = "timeout"
)

// OSCommandError reports a route-table mutation rejected by the OS.
// DuringRollback marks failures encountered while restoring a snapshot,
// the single most severe error class the system reports.
type OSCommandError struct {
	Kind           OSCommandKind
	Operation      string // "add" or "delete"
	Route          string // canonical route key
	Reason         string // OS-reported reason
	DuringRollback bool
}

func (e *OSCommandError) Error() string {
	msg := fmt.Sprintf("route %s %s failed: %s", e.Operation, e.Route, e.Reason)
	if e.Kind == OSTimeout {
		msg = fmt.Sprintf("route %s %s timed out", e.Operation, e.Route)
	}
	if e.DuringRollback {
		msg = "during rollback: " + msg
	}
	return msg
}

func (e *OSCommandError) Unwrap() error {
	if e.DuringRollback {
		return ErrRollbackFailed
	}
	return ErrOSCommandFailed
}

// ApplyError reports a session-level apply precondition failure.
// Kind is ErrBusy or ErrStaleState.
type ApplyError struct {
	Kind   error
	Detail string
}

func (e *ApplyError) Error() string {
	if e.Detail != "" {
		return e.Kind.Error() + ": " + e.Detail
	}
	return e.Kind.Error()
}

func (e *ApplyError) Unwrap() error {
	return e.Kind
}

// RollbackError reports a failed snapshot restore. It is never retried
// silently; callers must surface it with guidance that manual intervention
// is required.
type RollbackError struct {
	SnapshotID string
	Cause      error
}

func (e *RollbackError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("rollback to snapshot %s failed", e.SnapshotID)
	}
	return fmt.Sprintf("rollback to snapshot %s failed: %v", e.SnapshotID, e.Cause)
}

func (e *RollbackError) Unwrap() error {
	if e.Cause != nil && errors.Is(e.Cause, ErrSnapshotNotFound) {
		return ErrSnapshotNotFound
	}
	return ErrRollbackFailed
}

// PermissionError blocks a mutating session before it starts.
type PermissionError struct {
	Operation string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s requires administrative privilege", e.Operation)
}

func (e *PermissionError) Unwrap() error {
	return ErrPermissionDenied
}

// ValidationError represents one or more profile validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}
