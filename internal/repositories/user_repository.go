package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Jsunwilke/employeeapp-sub001/internal/models"
)

var ErrUserNotFound = errors.New("repositories: user not found")

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, string, error) {
	var u models.User
	var passwordHash string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, organization_id, role, password_hash, created_at
		FROM users WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.DisplayName, &u.OrganizationID, &u.Role, &passwordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrUserNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return &u, passwordHash, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, organization_id, role, created_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Username, &u.DisplayName, &u.OrganizationID, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, username, displayName, passwordHash, orgID string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, display_name, password_hash, organization_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, username, display_name, organization_id, role, created_at
	`, username, displayName, passwordHash, orgID).Scan(
		&u.ID, &u.Username, &u.DisplayName, &u.OrganizationID, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
