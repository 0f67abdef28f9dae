// Package user manages user profiles and their persistence.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// User is a profile record; AvatarURL points at the current profile picture.
type User struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	FullName  *string   `json:"fullName,omitempty"`
	AvatarURL *string   `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrNotFound is returned when a user does not exist.
var ErrNotFound = errors.New("user not found")

// Repository handles all user database operations.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository with the given connection pool.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByID fetches a user by their UUID.
func (r *Repository) GetByID(ctx context.Context, id string) (*User, error) {
	u := &User{}
	err := r.db.QueryRow(ctx,
		`SELECT id, phone, full_name, avatar_url, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	).Scan(&u.ID, &u.Phone, &u.FullName, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// SetAvatarURL stores url as the user's avatar and returns the updated user
// together with the URL it replaced ("" when there was none).
// Covered only by integration tests against a live PostgreSQL.
func (r *Repository) SetAvatarURL(ctx context.Context, id, url string) (*User, string, error) {
	u := &User{}
	var previous *string
	err := r.db.QueryRow(ctx,
		`UPDATE users u
		 SET avatar_url = $2, updated_at = NOW()
		 FROM (SELECT id, avatar_url FROM users WHERE id = $1 FOR UPDATE) prev
		 WHERE u.id = prev.id
		 RETURNING prev.avatar_url, u.id, u.phone, u.full_name, u.avatar_url, u.created_at, u.updated_at`,
		id, url,
	).Scan(&previous, &u.ID, &u.Phone, &u.FullName, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("set avatar url: %w", err)
	}

	if previous == nil {
		return u, "", nil
	}
	return u, *previous, nil
}
