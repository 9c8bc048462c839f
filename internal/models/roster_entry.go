package models

import "time"

// RosterEntry is one subject row on a shoot roster. ImageNumbers and Notes
// are the collaboratively edited fields guarded by field locks.
type RosterEntry struct {
	ID             string    `json:"id"`
	ShootID        string    `json:"shoot_id"`
	OrganizationID string    `json:"organization_id"`
	SubjectName    string    `json:"subject_name"`
	GroupName      string    `json:"group_name"`
	ImageNumbers   string    `json:"image_numbers"`
	Notes          string    `json:"notes"`
	UpdatedAt      time.Time `json:"updated_at"`
}
