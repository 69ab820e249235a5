// profile_repository.go implements ProfileRepository, read-only lookups against the
// profiles table owned by the identity subsystem.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/clubroom/clubroom/internal/db/models"
)

// ProfileRepository handles read-only queries over profiles
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// SearchByEmail returns up to limit profiles whose email contains partial, ignoring case.
// LIKE wildcards in partial are matched literally.
func (r *ProfileRepository) SearchByEmail(ctx context.Context, partial string, limit int) ([]models.Profile, error) {
	query := `
		SELECT id, name, email, phone
		FROM profiles
		WHERE email ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY email
		LIMIT $2
	`

	profiles := make([]models.Profile, 0)
	if err := r.db.SelectContext(ctx, &profiles, query, escapeLike(partial), limit); err != nil {
		return nil, fmt.Errorf("failed to search profiles: %w", err)
	}
	return profiles, nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.GetContext(ctx, &p, `SELECT id, name, email, phone FROM profiles WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}
