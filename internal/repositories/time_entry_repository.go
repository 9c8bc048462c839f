package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
	"github.com/Jsunwilke/employeeapp-sub001/internal/timeclock"
)

// TimeEntryRepository is the Postgres implementation of timeclock.Repository.
type TimeEntryRepository struct {
	db *sql.DB
}

func NewTimeEntryRepository(db *sql.DB) *TimeEntryRepository {
	return &TimeEntryRepository{db: db}
}

const entryColumns = `id, user_id, organization_id, start_time, end_time, status, session_ref, notes, created_at, updated_at`

func (r *TimeEntryRepository) GetByID(ctx context.Context, id string) (*models.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM time_entries WHERE id = $1
	`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, timeclock.ErrEntryNotFound
	}
	return entry, err
}

func (r *TimeEntryRepository) GetActive(ctx context.Context, userID string) (*models.TimeEntry, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+`
		FROM time_entries WHERE user_id = $1 AND status = 'active'
	`, userID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// FindOverlapping uses the half-open overlap test start < other.end AND
// end > other.start, so entries touching at an endpoint do not conflict.
func (r *TimeEntryRepository) FindOverlapping(ctx context.Context, userID string, start, end time.Time, excludeID string) ([]models.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM time_entries
		WHERE user_id = $1
		  AND status = 'completed'
		  AND start_time < $3
		  AND end_time > $2
		  AND ($4 = '' OR id <> $4)
		ORDER BY start_time
	`, userID, start, end, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *TimeEntryRepository) Insert(ctx context.Context, entry *models.TimeEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO time_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, entry.ID, entry.UserID, entry.OrganizationID, entry.StartTime, entry.EndTime,
		entry.Status, nullable(entry.SessionRef), entry.Notes, entry.CreatedAt, entry.UpdatedAt)
	return err
}

func (r *TimeEntryRepository) Update(ctx context.Context, entry *models.TimeEntry) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE time_entries
		SET start_time = $2, end_time = $3, status = $4, notes = $5, updated_at = $6
		WHERE id = $1
	`, entry.ID, entry.StartTime, entry.EndTime, entry.Status, entry.Notes, entry.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeclock.ErrEntryNotFound
	}
	return nil
}

func (r *TimeEntryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return timeclock.ErrEntryNotFound
	}
	return nil
}

func (r *TimeEntryRepository) ListByUser(ctx context.Context, userID string, from, to time.Time) ([]models.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM time_entries
		WHERE user_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time DESC
	`, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (r *TimeEntryRepository) ListActive(ctx context.Context) ([]models.TimeEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM time_entries
		WHERE status = 'active'
		ORDER BY start_time
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*models.TimeEntry, error) {
	var entry models.TimeEntry
	var endTime sql.NullTime
	var sessionRef sql.NullString
	err := row.Scan(&entry.ID, &entry.UserID, &entry.OrganizationID, &entry.StartTime,
		&endTime, &entry.Status, &sessionRef, &entry.Notes, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if endTime.Valid {
		t := endTime.Time
		entry.EndTime = &t
	}
	entry.SessionRef = sessionRef.String
	return &entry, nil
}

func collectEntries(rows *sql.Rows) ([]models.TimeEntry, error) {
	var entries []models.TimeEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
