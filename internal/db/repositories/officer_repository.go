// officer_repository.go implements OfficerRepository over the per-club officer title catalog.
package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// OfficerRepository handles database operations for club officer titles
type OfficerRepository struct {
	db *sqlx.DB
}

// NewOfficerRepository creates a new officer catalog repository
func NewOfficerRepository(db *sqlx.DB) *OfficerRepository {
	return &OfficerRepository{db: db}
}

// ListTitles returns the officer titles configured for a club in display order
func (r *OfficerRepository) ListTitles(ctx context.Context, clubID string) ([]string, error) {
	titles := make([]string, 0)
	query := `SELECT title FROM club_officers WHERE club_id = $1 ORDER BY ord, title`
	if err := r.db.SelectContext(ctx, &titles, query, clubID); err != nil {
		return nil, fmt.Errorf("failed to list officer titles: %w", err)
	}
	return titles, nil
}
