// Package clubs implements the /api/club endpoints: club listing and creation, club
// info, the member roster, member search, invitations, the officer catalog and
// position/graduation updates.
package clubs

import (
	"database/sql"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/clubroom/clubroom/internal/config"
	"github.com/clubroom/clubroom/internal/db/repositories"
	"github.com/clubroom/clubroom/internal/middleware"
	"github.com/clubroom/clubroom/internal/notify"
	"github.com/clubroom/clubroom/internal/services"
	"github.com/clubroom/clubroom/internal/storage"
)

const searchLimit = 10

// ClubHandlers handles the club membership endpoints
type ClubHandlers struct {
	cfg         *config.Config
	clubRepo    *repositories.ClubRepository
	memberRepo  *repositories.MemberRepository
	profileRepo *repositories.ProfileRepository
	officerRepo *repositories.OfficerRepository
	creator     *services.ClubCreator
	notifier    *notify.Notifier
}

// NewClubHandlers creates a new ClubHandlers instance. notifier may be nil.
func NewClubHandlers(cfg *config.Config, db *sql.DB, storageBackend storage.Storage, notifier *notify.Notifier) *ClubHandlers {
	dbx := sqlx.NewDb(db, "postgres")
	clubRepo := repositories.NewClubRepository(db)
	memberRepo := repositories.NewMemberRepository(db)

	return &ClubHandlers{
		cfg:         cfg,
		clubRepo:    clubRepo,
		memberRepo:  memberRepo,
		profileRepo: repositories.NewProfileRepository(dbx),
		officerRepo: repositories.NewOfficerRepository(dbx),
		creator:     services.NewClubCreator(clubRepo, memberRepo, storageBackend),
		notifier:    notifier,
	}
}

// resolveProfileID returns the caller's profile id. The verified identity set by the
// auth middleware always wins. Client-supplied values (query, path, then body) are
// only consulted when auth.allow_identity_fallback is enabled.
func (h *ClubHandlers) resolveProfileID(c *gin.Context, route, bodyValue string) string {
	if id := middleware.ProfileID(c); id != "" {
		return id
	}
	if !h.cfg.Auth.AllowIdentityFallback {
		return ""
	}

	for _, candidate := range []struct{ source, value string }{
		{"query", c.Query("profile_id")},
		{"path", c.Param("profile_id")},
		{"body", bodyValue},
	} {
		if v := strings.TrimSpace(candidate.value); v != "" {
			slog.Warn("using client-supplied profile_id",
				"route", route,
				"source", candidate.source,
				"profile_id", v,
				"client_ip", c.ClientIP())
			return v
		}
	}
	return ""
}

// isUUID reports whether s can name a row. Ids that are not UUIDs cannot match
// anything, so handlers answer them as "not found" without querying.
func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
