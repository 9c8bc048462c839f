package models

import "time"

// Lock represents exclusive editing rights over one editable field within one
// container (e.g. one roster entry inside one shoot). At most one unexpired
// lock may exist per (ContainerID, FieldOwnerID) pair; a lock past ExpiresAt
// is treated as absent by every reader until swept.
type Lock struct {
	ContainerID       string    `json:"container_id"`
	FieldOwnerID      string    `json:"field_owner_id"`
	HolderID          string    `json:"holder_id"`
	HolderDisplayName string    `json:"holder_display_name"`
	AcquiredAt        time.Time `json:"acquired_at"`
	ExpiresAt         time.Time `json:"expires_at"`
}

// Key returns the composite lock key within its container collection.
func (l *Lock) Key() string {
	return l.ContainerID + ":" + l.FieldOwnerID
}

// ExpiredAt reports whether the lock is past its lease at the given instant.
func (l *Lock) ExpiredAt(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}
