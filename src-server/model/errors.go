package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("record not found")

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Op  string
	Msg string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func NewValidationError(op, format string, args ...any) *ValidationError {
	return &ValidationError{Op: op, Msg: fmt.Sprintf(format, args...)}
}

// ConflictError names the resource and the booking that already holds it.
type ConflictError struct {
	Dimension          Dimension
	ResourceKey        string
	ResourceName       string
	ConflictingEventID string
	ConflictingBooking string
	ConflictingSubject string
	Start              time.Time
	End                time.Time
}

func (e *ConflictError) Error() string {
	name := e.ResourceName
	if name == "" {
		name = e.ResourceKey
	}
	return fmt.Sprintf("%s %q is already booked by %q from %s to %s",
		e.Dimension, name, e.ConflictingSubject,
		e.Start.UTC().Format(time.RFC3339), e.End.UTC().Format(time.RFC3339))
}

type PermissionError struct {
	Op      string
	UserID  string
	EventID string
	Reason  string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("%s: user %s may not modify event %s: %s", e.Op, e.UserID, e.EventID, e.Reason)
}

// ExternalResourceError wraps a virtual-meeting provider failure.
type ExternalResourceError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ExternalResourceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ExternalResourceError) Unwrap() error {
	return e.Err
}

// SyncInconsistencyError is raised when a parent or child record that sync
// expects is missing. It is logged and repaired, never shown to end users.
type SyncInconsistencyError struct {
	EventID   string
	BookingID string
	Msg       string
}

func (e *SyncInconsistencyError) Error() string {
	sb := strings.Builder{}
	sb.WriteString(e.Msg)
	if e.EventID != "" {
		sb.WriteString(" | event: " + e.EventID)
	}
	if e.BookingID != "" {
		sb.WriteString(" | booking: " + e.BookingID)
	}
	return sb.String()
}
