// member_repository.go implements MemberRepository, covering club membership rows: the
// caller's club list, the roster, invitations, and position/graduation updates.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/clubroom/clubroom/internal/db/models"
)

const memberColumns = `id, club_id, profile_id, role, officer_title, status, graduate, ord,
		invited_at, joined_at, created_at, updated_at`

// MemberRepository handles database operations for club memberships
type MemberRepository struct {
	db *sql.DB
}

// NewMemberRepository creates a new membership repository
func NewMemberRepository(db *sql.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

func scanMember(row rowScanner, extra ...any) (*models.ClubMember, error) {
	m := &models.ClubMember{}
	dest := []any{
		&m.ID,
		&m.ClubID,
		&m.ProfileID,
		&m.Role,
		&m.OfficerTitle,
		&m.Status,
		&m.Graduate,
		&m.Ord,
		&m.InvitedAt,
		&m.JoinedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return m, nil
}

// ListActiveClubsForProfile returns the clubs a profile actively belongs to, ordered by
// the profile's ord, each with its count of active members
func (r *MemberRepository) ListActiveClubsForProfile(ctx context.Context, profileID string) ([]models.ClubSummary, error) {
	query := `
		SELECT c.id, c.name, c.description, c.location, c.thumbnail_url,
			COALESCE((
				SELECT COUNT(*) FROM club_members cm
				WHERE cm.club_id = c.id AND cm.status = 'active'
			), 0) AS members,
			m.ord
		FROM club_members m
		JOIN clubs c ON c.id = m.club_id
		WHERE m.profile_id = $1 AND m.status = 'active'
		ORDER BY m.ord ASC
	`

	rows, err := r.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clubs: %w", err)
	}
	defer rows.Close()

	clubs := make([]models.ClubSummary, 0)
	for rows.Next() {
		var c models.ClubSummary
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Location, &c.ThumbnailURL, &c.Members, &c.Ord); err != nil {
			return nil, fmt.Errorf("failed to scan club: %w", err)
		}
		clubs = append(clubs, c)
	}

	return clubs, rows.Err()
}

// Create inserts a membership row and fills in its generated id and timestamps
func (r *MemberRepository) Create(ctx context.Context, m *models.ClubMember) error {
	query := `
		INSERT INTO club_members (
			club_id, profile_id, role, officer_title, status, graduate, ord, invited_at, joined_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		m.ClubID, m.ProfileID, m.Role, m.OfficerTitle, m.Status, m.Graduate, m.Ord, m.InvitedAt, m.JoinedAt,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}

	return nil
}

// DeleteByClub removes every membership row of a club
func (r *MemberRepository) DeleteByClub(ctx context.Context, clubID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM club_members WHERE club_id = $1`, clubID)
	if err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}
	return nil
}

// GetByClubAndProfile retrieves the membership row for a (club, profile) pair in any status
func (r *MemberRepository) GetByClubAndProfile(ctx context.Context, clubID, profileID string) (*models.ClubMember, error) {
	query := `SELECT ` + memberColumns + ` FROM club_members WHERE club_id = $1 AND profile_id = $2`

	m, err := scanMember(r.db.QueryRowContext(ctx, query, clubID, profileID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return m, nil
}

// ListActiveWithProfiles returns the active members of a club joined with their profiles, by ord
func (r *MemberRepository) ListActiveWithProfiles(ctx context.Context, clubID string) ([]models.MemberWithProfile, error) {
	query := `
		SELECT m.id, m.club_id, m.profile_id, m.role, m.officer_title, m.status, m.graduate, m.ord,
			m.invited_at, m.joined_at, m.created_at, m.updated_at,
			p.name, p.email, p.phone
		FROM club_members m
		JOIN profiles p ON p.id = m.profile_id
		WHERE m.club_id = $1 AND m.status = 'active'
		ORDER BY m.ord ASC
	`

	rows, err := r.db.QueryContext(ctx, query, clubID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]models.MemberWithProfile, 0)
	for rows.Next() {
		var mp models.MemberWithProfile
		m, err := scanMember(rows, &mp.Name, &mp.Email, &mp.Phone)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		mp.ClubMember = *m
		members = append(members, mp)
	}

	return members, rows.Err()
}

// StatusesForProfiles returns the membership status of each given profile that has a
// row in the club. Profiles without a row are absent from the map.
func (r *MemberRepository) StatusesForProfiles(ctx context.Context, clubID string, profileIDs []string) (map[string]models.MemberStatus, error) {
	statuses := make(map[string]models.MemberStatus, len(profileIDs))
	if len(profileIDs) == 0 {
		return statuses, nil
	}

	query := `SELECT profile_id, status FROM club_members WHERE club_id = $1 AND profile_id = ANY($2)`

	rows, err := r.db.QueryContext(ctx, query, clubID, pq.Array(profileIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to look up memberships: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var profileID string
		var status models.MemberStatus
		if err := rows.Scan(&profileID, &status); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		statuses[profileID] = status
	}

	return statuses, rows.Err()
}

// NextOrd returns one more than the highest ord in the club, or 1 for an empty club.
// The value is not reserved; two concurrent callers can observe the same ord.
func (r *MemberRepository) NextOrd(ctx context.Context, clubID string) (int, error) {
	var next int
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(ord), 0) + 1 FROM club_members WHERE club_id = $1`, clubID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("failed to compute next ord: %w", err)
	}
	return next, nil
}

// ListPendingInvitations returns a profile's pending invitations, newest first
func (r *MemberRepository) ListPendingInvitations(ctx context.Context, profileID string) ([]models.PendingInvitation, error) {
	query := `
		SELECT m.id, m.club_id, c.name, c.thumbnail_url, COALESCE(m.invited_at, m.created_at)
		FROM club_members m
		JOIN clubs c ON c.id = m.club_id
		WHERE m.profile_id = $1 AND m.status = 'pending'
		ORDER BY m.invited_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, profileID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	invitations := make([]models.PendingInvitation, 0)
	for rows.Next() {
		var inv models.PendingInvitation
		if err := rows.Scan(&inv.ID, &inv.ClubID, &inv.ClubName, &inv.ThumbnailURL, &inv.InvitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}

	return invitations, rows.Err()
}

// AcceptInvitation activates a pending invitation owned by profileID.
// Returns (nil, nil) if no such pending invitation exists.
func (r *MemberRepository) AcceptInvitation(ctx context.Context, id, profileID string) (*models.ClubMember, error) {
	query := `
		UPDATE club_members
		SET status = 'active', joined_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND profile_id = $2 AND status = 'pending'
		RETURNING ` + memberColumns

	m, err := scanMember(r.db.QueryRowContext(ctx, query, id, profileID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to accept invitation: %w", err)
	}

	return m, nil
}

// DeleteInvitation removes a pending invitation owned by profileID and returns the removed row.
// Returns (nil, nil) if no such pending invitation exists.
func (r *MemberRepository) DeleteInvitation(ctx context.Context, id, profileID string) (*models.ClubMember, error) {
	query := `
		DELETE FROM club_members
		WHERE id = $1 AND profile_id = $2 AND status = 'pending'
		RETURNING ` + memberColumns

	m, err := scanMember(r.db.QueryRowContext(ctx, query, id, profileID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to reject invitation: %w", err)
	}

	return m, nil
}

// MemberUpdate carries the optional fields of a position/graduation change
type MemberUpdate struct {
	Position *models.Position
	Graduate *bool
}

// UpdateActiveMember applies u to the active membership of (clubID, profileID) and returns
// the updated row joined with the member's profile. Returns (nil, nil) if there is no
// active membership.
func (r *MemberRepository) UpdateActiveMember(ctx context.Context, clubID, profileID string, u MemberUpdate) (*models.MemberWithProfile, error) {
	var role sql.NullString
	var title *string
	if u.Position != nil {
		var rl models.Role
		rl, title = u.Position.Columns()
		role = sql.NullString{String: string(rl), Valid: true}
	}

	query := `
		WITH updated AS (
			UPDATE club_members
			SET role = COALESCE($3, role),
				officer_title = CASE WHEN $3::text IS NULL THEN officer_title ELSE $4 END,
				graduate = COALESCE($5, graduate),
				updated_at = NOW()
			WHERE club_id = $1 AND profile_id = $2 AND status = 'active'
			RETURNING ` + memberColumns + `
		)
		SELECT u.id, u.club_id, u.profile_id, u.role, u.officer_title, u.status, u.graduate, u.ord,
			u.invited_at, u.joined_at, u.created_at, u.updated_at,
			p.name, p.email, p.phone
		FROM updated u
		JOIN profiles p ON p.id = u.profile_id
	`

	var mp models.MemberWithProfile
	m, err := scanMember(r.db.QueryRowContext(ctx, query, clubID, profileID, role, title, u.Graduate),
		&mp.Name, &mp.Email, &mp.Phone)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update member: %w", err)
	}
	mp.ClubMember = *m

	return &mp, nil
}
