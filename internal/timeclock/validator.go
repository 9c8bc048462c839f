// Package timeclock enforces the business invariants on time-tracking
// records: bounded duration, bounded edit window, no overlapping intervals
// and a single active entry per user.
package timeclock

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
)

// Code identifies a validation failure for API clients.
type Code string

const (
	CodeNonPositiveDuration Code = "non_positive_duration"
	CodeExceedsMaxDuration  Code = "exceeds_max_duration"
	CodeFutureTime          Code = "future_time"
	CodeNotesTooLong        Code = "notes_too_long"
	CodeOverlaps            Code = "overlaps"
	CodeOutsideEditWindow   Code = "outside_edit_window"
	CodeActiveEntryExists   Code = "active_entry_exists"
)

// ValidationError is an expected, recoverable outcome surfaced to the caller
// for user-facing messaging; it is never treated as a fault.
type ValidationError struct {
	Code      Code               `json:"code"`
	Message   string             `json:"message"`
	Conflicts []models.TimeEntry `json:"conflicts,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("timeclock: %s: %s", e.Code, e.Message)
}

func invalid(code Code, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Rules holds the tunable validation bounds.
type Rules struct {
	MaxDuration           time.Duration
	MaxNotesLength        int
	EditWindow            time.Duration
	ActiveStartEditWindow time.Duration
}

func DefaultRules() Rules {
	return Rules{
		MaxDuration:           24 * time.Hour,
		MaxNotesLength:        500,
		EditWindow:            30 * 24 * time.Hour,
		ActiveStartEditWindow: 48 * time.Hour,
	}
}

// ValidateInterval checks a proposed [start, end) interval against the
// duration and future-time bounds.
func (r Rules) ValidateInterval(start, end, now time.Time) error {
	if !end.After(start) {
		return invalid(CodeNonPositiveDuration, "end time must be after start time")
	}
	if end.Sub(start) > r.MaxDuration {
		return invalid(CodeExceedsMaxDuration, "entry exceeds the maximum duration of %s", r.MaxDuration)
	}
	if end.After(now) {
		return invalid(CodeFutureTime, "end time is in the future")
	}
	return nil
}

// ValidateNotes bounds note length; empty notes are always valid.
func (r Rules) ValidateNotes(text string) error {
	if utf8.RuneCountInString(text) > r.MaxNotesLength {
		return invalid(CodeNotesTooLong, "notes exceed %d characters", r.MaxNotesLength)
	}
	return nil
}

// CanMutate reports whether the owner may still edit or delete the entry:
// not active, and within the rolling edit window from creation.
func (r Rules) CanMutate(entry *models.TimeEntry, now time.Time) bool {
	if entry.Status == models.StatusActive {
		return false
	}
	return now.Sub(entry.CreatedAt) <= r.EditWindow
}

// CanEditActiveStart reports whether an active entry's start time may still
// be corrected in place, without requiring completion first.
func (r Rules) CanEditActiveStart(entry *models.TimeEntry, proposedStart, now time.Time) error {
	if proposedStart.After(now) {
		return invalid(CodeFutureTime, "start time is in the future")
	}
	if now.Sub(entry.CreatedAt) > r.ActiveStartEditWindow {
		return invalid(CodeOutsideEditWindow, "active entry is older than the %s correction window", r.ActiveStartEditWindow)
	}
	return nil
}

// Overlaps performs the half-open interval overlap test: intervals that
// merely touch at an endpoint do not overlap.
func Overlaps(startA, endA, startB, endB time.Time) bool {
	return startA.Before(endB) && endA.After(startB)
}
