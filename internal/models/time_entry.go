package models

import "time"

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// TimeEntry is one clock-in/clock-out record (or a manually entered
// equivalent) for one user. EndTime is nil while the entry is active.
type TimeEntry struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID string     `json:"organization_id"`
	StartTime      time.Time  `json:"start_time"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Status         string     `json:"status"`
	SessionRef     string     `json:"session_ref,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Duration returns the worked duration, zero while the entry is active.
func (e *TimeEntry) Duration() time.Duration {
	if e.EndTime == nil {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}
