// club_repository.go implements ClubRepository, providing the club row operations used by
// club creation (including its compensations) and the club info lookup.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clubroom/clubroom/internal/db/models"
)

const clubColumns = `id, name, description, location, thumbnail_url, thumbnail_updated_at,
		created_by, created_at, updated_at`

// ClubRepository handles database operations for clubs
type ClubRepository struct {
	db *sql.DB
}

// NewClubRepository creates a new club repository
func NewClubRepository(db *sql.DB) *ClubRepository {
	return &ClubRepository{db: db}
}

func scanClub(row rowScanner) (*models.Club, error) {
	club := &models.Club{}
	err := row.Scan(
		&club.ID,
		&club.Name,
		&club.Description,
		&club.Location,
		&club.ThumbnailURL,
		&club.ThumbnailUpdatedAt,
		&club.CreatedBy,
		&club.CreatedAt,
		&club.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return club, nil
}

// Create inserts a club and fills in its generated id and timestamps
func (r *ClubRepository) Create(ctx context.Context, club *models.Club) error {
	query := `
		INSERT INTO clubs (name, description, location, created_by)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query, club.Name, club.Description, club.Location, club.CreatedBy).Scan(
		&club.ID,
		&club.CreatedAt,
		&club.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create club: %w", err)
	}

	return nil
}

// GetByID retrieves a club by ID
func (r *ClubRepository) GetByID(ctx context.Context, id string) (*models.Club, error) {
	query := `SELECT ` + clubColumns + ` FROM clubs WHERE id = $1`

	club, err := scanClub(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get club: %w", err)
	}

	return club, nil
}

// UpdateThumbnail records the public URL of a freshly uploaded thumbnail.
// Returns (nil, nil) if the club no longer exists.
func (r *ClubRepository) UpdateThumbnail(ctx context.Context, id, url string, updatedAt time.Time) (*models.Club, error) {
	query := `
		UPDATE clubs
		SET thumbnail_url = $2, thumbnail_updated_at = $3, updated_at = $3
		WHERE id = $1
		RETURNING ` + clubColumns

	club, err := scanClub(r.db.QueryRowContext(ctx, query, id, url, updatedAt))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update club thumbnail: %w", err)
	}

	return club, nil
}

// Delete removes a club. Deleting a club that does not exist is not an error.
func (r *ClubRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM clubs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete club: %w", err)
	}
	return nil
}
