package timeclock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
)

var (
	// ErrEntryNotFound is returned by repositories for a missing entry.
	ErrEntryNotFound = errors.New("timeclock: entry not found")

	// ErrNoActiveEntry is returned by ClockOut with nothing to close.
	ErrNoActiveEntry = errors.New("timeclock: no active entry")

	// ErrNotOwner is returned when a caller touches someone else's entry.
	ErrNotOwner = errors.New("timeclock: entry belongs to another user")
)

// Repository is the persistence surface the service needs. The production
// implementation is Postgres; tests use an in-memory fake.
type Repository interface {
	GetByID(ctx context.Context, id string) (*models.TimeEntry, error)
	// GetActive returns the user's active entry, or (nil, nil) if none.
	GetActive(ctx context.Context, userID string) (*models.TimeEntry, error)
	// FindOverlapping returns completed entries for the user whose
	// [start_time, end_time) interval overlaps [start, end), excluding
	// excludeID, ordered by start time.
	FindOverlapping(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]models.TimeEntry, error)
	Insert(ctx context.Context, entry *models.TimeEntry) error
	Update(ctx context.Context, entry *models.TimeEntry) error
	Delete(ctx context.Context, id string) error
	ListByUser(ctx context.Context, userID string, from, to time.Time) ([]models.TimeEntry, error)
	// ListActive returns every active entry across all users, ordered by
	// start time.
	ListActive(ctx context.Context) ([]models.TimeEntry, error)
}

// Service runs the time-entry state machine: none → active (clock-in) →
// completed (clock-out) → mutated/deleted within the edit window. Every
// transition consults the validator before any write reaches the store.
type Service struct {
	repo  Repository
	rules Rules
	now   func() time.Time
}

func NewService(repo Repository, rules Rules) *Service {
	return &Service{repo: repo, rules: rules, now: time.Now}
}

// WithClock overrides the wall clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ClockIn opens a new active entry, guarded by the one-active-entry rule.
func (s *Service) ClockIn(ctx context.Context, userID, orgID, sessionRef, notes string) (*models.TimeEntry, error) {
	if err := s.rules.ValidateNotes(notes); err != nil {
		return nil, err
	}

	active, err := s.repo.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, invalid(CodeActiveEntryExists, "an active entry already exists for this user")
	}

	now := s.now()
	entry := &models.TimeEntry{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: orgID,
		StartTime:      now,
		Status:         models.StatusActive,
		SessionRef:     sessionRef,
		Notes:          notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ClockOut completes the user's active entry at the current time, guarded by
// the interval and overlap checks.
func (s *Service) ClockOut(ctx context.Context, userID, notes string) (*models.TimeEntry, error) {
	active, err := s.repo.GetActive(ctx, userID)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNoActiveEntry
	}

	now := s.now()
	if err := s.rules.ValidateInterval(active.StartTime, now, now); err != nil {
		return nil, err
	}
	if notes != "" {
		if err := s.rules.ValidateNotes(notes); err != nil {
			return nil, err
		}
		active.Notes = notes
	}

	conflicts, err := s.repo.FindOverlapping(ctx, userID, active.StartTime, now, active.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &ValidationError{Code: CodeOverlaps, Message: "entry overlaps existing entries", Conflicts: conflicts}
	}

	end := now
	active.EndTime = &end
	active.Status = models.StatusCompleted
	active.UpdatedAt = now
	if err := s.repo.Update(ctx, active); err != nil {
		return nil, err
	}
	return active, nil
}

// CreateManual records a completed entry with caller-supplied times.
func (s *Service) CreateManual(ctx context.Context, userID, orgID string, start, end time.Time, notes string) (*models.TimeEntry, error) {
	now := s.now()
	if err := s.rules.ValidateInterval(start, end, now); err != nil {
		return nil, err
	}
	if err := s.rules.ValidateNotes(notes); err != nil {
		return nil, err
	}

	conflicts, err := s.repo.FindOverlapping(ctx, userID, start, end, "")
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &ValidationError{Code: CodeOverlaps, Message: "entry overlaps existing entries", Conflicts: conflicts}
	}

	entry := &models.TimeEntry{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: orgID,
		StartTime:      start,
		EndTime:        &end,
		Status:         models.StatusCompleted,
		Notes:          notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateEntry rewrites a completed entry's interval and notes within the
// owner's edit window.
func (s *Service) UpdateEntry(ctx context.Context, userID, entryID string, start, end time.Time, notes string) (*models.TimeEntry, error) {
	entry, err := s.ownedEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if !s.rules.CanMutate(entry, now) {
		return nil, invalid(CodeOutsideEditWindow, "entry can no longer be edited")
	}
	if err := s.rules.ValidateInterval(start, end, now); err != nil {
		return nil, err
	}
	if err := s.rules.ValidateNotes(notes); err != nil {
		return nil, err
	}

	conflicts, err := s.repo.FindOverlapping(ctx, userID, start, end, entry.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &ValidationError{Code: CodeOverlaps, Message: "entry overlaps existing entries", Conflicts: conflicts}
	}

	entry.StartTime = start
	entry.EndTime = &end
	entry.Notes = notes
	entry.UpdatedAt = now
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// EditActiveStart corrects the start time of an active entry in place,
// within the short active-correction window.
func (s *Service) EditActiveStart(ctx context.Context, userID, entryID string, proposedStart time.Time) (*models.TimeEntry, error) {
	entry, err := s.ownedEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.StatusActive {
		return nil, invalid(CodeOutsideEditWindow, "start correction only applies to the active entry")
	}

	now := s.now()
	if err := s.rules.CanEditActiveStart(entry, proposedStart, now); err != nil {
		return nil, err
	}

	conflicts, err := s.repo.FindOverlapping(ctx, userID, proposedStart, now, entry.ID)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		return nil, &ValidationError{Code: CodeOverlaps, Message: "corrected start overlaps existing entries", Conflicts: conflicts}
	}

	entry.StartTime = proposedStart
	entry.UpdatedAt = now
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteEntry removes a completed entry within the owner's edit window.
func (s *Service) DeleteEntry(ctx context.Context, userID, entryID string) error {
	entry, err := s.ownedEntry(ctx, userID, entryID)
	if err != nil {
		return err
	}
	if !s.rules.CanMutate(entry, s.now()) {
		return invalid(CodeOutsideEditWindow, "entry can no longer be deleted")
	}
	return s.repo.Delete(ctx, entry.ID)
}

// AbortActive discards the user's active entry without completing it. The
// client may choose not to expose this path at all.
func (s *Service) AbortActive(ctx context.Context, userID string) error {
	active, err := s.repo.GetActive(ctx, userID)
	if err != nil {
		return err
	}
	if active == nil {
		return ErrNoActiveEntry
	}
	return s.repo.Delete(ctx, active.ID)
}

// ActiveEntry returns the user's active entry, or nil.
func (s *Service) ActiveEntry(ctx context.Context, userID string) (*models.TimeEntry, error) {
	return s.repo.GetActive(ctx, userID)
}

// ListEntries returns the user's entries with start times in [from, to).
func (s *Service) ListEntries(ctx context.Context, userID string, from, to time.Time) ([]models.TimeEntry, error) {
	return s.repo.ListByUser(ctx, userID, from, to)
}

// ActiveEntries returns every active entry across users, for the admin view.
func (s *Service) ActiveEntries(ctx context.Context) ([]models.TimeEntry, error) {
	return s.repo.ListActive(ctx)
}

// ForceComplete closes an active entry administratively, capping the worked
// duration at MaxDuration. This is the escape hatch for entries left active
// past the maximum duration, which the normal clock-out guards would reject
// forever; the interval and overlap checks are intentionally bypassed.
func (s *Service) ForceComplete(ctx context.Context, entryID string) (*models.TimeEntry, error) {
	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Status != models.StatusActive {
		return nil, ErrNoActiveEntry
	}

	now := s.now()
	end := now
	if end.Sub(entry.StartTime) > s.rules.MaxDuration {
		end = entry.StartTime.Add(s.rules.MaxDuration)
	}
	entry.EndTime = &end
	entry.Status = models.StatusCompleted
	entry.UpdatedAt = now
	if err := s.repo.Update(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// FindOverlaps exposes the overlap query for pre-commit checks in clients.
func (s *Service) FindOverlaps(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]models.TimeEntry, error) {
	return s.repo.FindOverlapping(ctx, userID, start, end, excludeID)
}

func (s *Service) ownedEntry(ctx context.Context, userID, entryID string) (*models.TimeEntry, error) {
	entry, err := s.repo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.UserID != userID {
		return nil, ErrNotOwner
	}
	return entry, nil
}
