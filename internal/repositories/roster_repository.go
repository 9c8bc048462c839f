package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
)

// ErrRosterEntryNotFound is returned for a missing roster entry.
var ErrRosterEntryNotFound = errors.New("repositories: roster entry not found")

// editableFields maps API field names onto roster columns. Only these
// columns can be written through the autosave path.
var editableFields = map[string]string{
	"image_numbers": "image_numbers",
	"notes":         "notes",
}

// RosterRepository persists shoot roster entries, the write target of
// autosave sessions.
type RosterRepository struct {
	db *sql.DB
}

func NewRosterRepository(db *sql.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

func (r *RosterRepository) ListByShoot(ctx context.Context, shootID string) ([]models.RosterEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, shoot_id, organization_id, subject_name, group_name, image_numbers, notes, updated_at
		FROM roster_entries
		WHERE shoot_id = $1
		ORDER BY subject_name, id
	`, shootID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.RosterEntry
	for rows.Next() {
		var e models.RosterEntry
		if err := rows.Scan(&e.ID, &e.ShootID, &e.OrganizationID, &e.SubjectName,
			&e.GroupName, &e.ImageNumbers, &e.Notes, &e.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *RosterRepository) GetField(ctx context.Context, entryID, field string) (string, error) {
	column, ok := editableFields[field]
	if !ok {
		return "", fmt.Errorf("repositories: field %q is not editable", field)
	}

	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT `+column+` FROM roster_entries WHERE id = $1`, entryID).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRosterEntryNotFound
	}
	return value, err
}

// UpdateField writes one editable field. This is the autosave write path.
func (r *RosterRepository) UpdateField(ctx context.Context, entryID, field, value string) error {
	column, ok := editableFields[field]
	if !ok {
		return fmt.Errorf("repositories: field %q is not editable", field)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE roster_entries SET `+column+` = $2, updated_at = $3 WHERE id = $1`,
		entryID, value, time.Now())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRosterEntryNotFound
	}
	return nil
}

// BulkInsert loads imported roster rows inside one transaction.
func (r *RosterRepository) BulkInsert(ctx context.Context, entries []models.RosterEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO roster_entries (id, shoot_id, organization_id, subject_name, group_name, image_numbers, notes, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, e.ID, e.ShootID, e.OrganizationID, e.SubjectName, e.GroupName, e.ImageNumbers, e.Notes, e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert roster row %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}
