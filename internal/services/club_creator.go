// Package services implements business flows that span more than one repository or
// external system. ClubCreator, for example, inserts a club, stores its thumbnail in
// object storage and records the founding membership, undoing earlier steps when a
// later one fails.
package services

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/clubroom/clubroom/internal/db/models"
	"github.com/clubroom/clubroom/internal/storage"
	"github.com/clubroom/clubroom/internal/telemetry"
)

// compensationTimeout bounds each rollback step. Rollback runs detached from the request
// context so a disconnected client cannot interrupt it.
const compensationTimeout = 10 * time.Second

// ClubStore is the subset of ClubRepository used by club creation
type ClubStore interface {
	Create(ctx context.Context, club *models.Club) error
	UpdateThumbnail(ctx context.Context, id, url string, updatedAt time.Time) (*models.Club, error)
	Delete(ctx context.Context, id string) error
}

// MembershipStore is the subset of MemberRepository used by club creation
type MembershipStore interface {
	Create(ctx context.Context, m *models.ClubMember) error
	DeleteByClub(ctx context.Context, clubID string) error
}

// ThumbnailInput is an uploaded image and its declared MIME type
type ThumbnailInput struct {
	Data        []byte
	ContentType string
}

// CreateClubInput holds the fields of a new club
type CreateClubInput struct {
	Name        string
	Description *string
	Location    *string
	CreatedBy   string
	Thumbnail   *ThumbnailInput
}

// CreateClubResult is the persisted club and the creator's membership
type CreateClubResult struct {
	Club       *models.Club
	Membership *models.ClubMember
}

// ThumbnailUploadError reports a failed thumbnail upload
type ThumbnailUploadError struct {
	Err error
}

func (e *ThumbnailUploadError) Error() string {
	return "썸네일 업로드 실패: " + e.Err.Error()
}

func (e *ThumbnailUploadError) Unwrap() error { return e.Err }

// ClubCreator runs the club creation saga
type ClubCreator struct {
	clubs   ClubStore
	members MembershipStore
	storage storage.Storage
	now     func() time.Time
}

// NewClubCreator creates a new club creator
func NewClubCreator(clubs ClubStore, members MembershipStore, storageBackend storage.Storage) *ClubCreator {
	return &ClubCreator{
		clubs:   clubs,
		members: members,
		storage: storageBackend,
		now:     time.Now,
	}
}

// ThumbnailExtension maps a thumbnail MIME type to the stored file extension
func ThumbnailExtension(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	default:
		return "jpg"
	}
}

// ThumbnailContentType is the MIME type a thumbnail is stored with. It follows the
// stored extension, never the client's declared type.
func ThumbnailContentType(contentType string) string {
	switch ThumbnailExtension(contentType) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// ThumbnailKey is the storage key of a club's thumbnail
func ThumbnailKey(clubID, contentType string) string {
	return fmt.Sprintf("clubs/%s/thumbnail.%s", clubID, ThumbnailExtension(contentType))
}

// Create inserts the club, uploads the optional thumbnail and adds the creator as
// president. On failure every completed step is compensated in reverse order and the
// original error is returned.
func (cc *ClubCreator) Create(ctx context.Context, in CreateClubInput) (res *CreateClubResult, err error) {
	s := &saga{}
	defer func() {
		if err != nil {
			s.rollback(ctx)
		}
	}()

	club := &models.Club{
		Name:        in.Name,
		Description: in.Description,
		Location:    in.Location,
		CreatedBy:   in.CreatedBy,
	}
	if err := cc.clubs.Create(ctx, club); err != nil {
		return nil, err
	}
	clubID := club.ID
	s.add("club", func(ctx context.Context) error {
		return cc.clubs.Delete(ctx, clubID)
	})

	if in.Thumbnail != nil && len(in.Thumbnail.Data) > 0 {
		updated, err := cc.attachThumbnail(ctx, s, clubID, in.Thumbnail)
		if err != nil {
			return nil, err
		}
		club = updated
	}

	now := cc.now()
	membership := &models.ClubMember{
		ClubID:    clubID,
		ProfileID: in.CreatedBy,
		Status:    models.StatusActive,
		Ord:       1,
		JoinedAt:  &now,
	}
	membership.SetPosition(models.PresidentPosition())

	s.add("memberships", func(ctx context.Context) error {
		return cc.members.DeleteByClub(ctx, clubID)
	})
	if err := cc.members.Create(ctx, membership); err != nil {
		return nil, err
	}

	telemetry.ClubsCreatedTotal.WithLabelValues(strconv.FormatBool(in.Thumbnail != nil && len(in.Thumbnail.Data) > 0)).Inc()
	slog.Info("club created", "club_id", clubID, "created_by", in.CreatedBy)

	return &CreateClubResult{Club: club, Membership: membership}, nil
}

func (cc *ClubCreator) attachThumbnail(ctx context.Context, s *saga, clubID string, thumb *ThumbnailInput) (*models.Club, error) {
	key := ThumbnailKey(clubID, thumb.ContentType)
	backend := cc.storage.Backend()

	_, err := cc.storage.Upload(ctx, key, bytes.NewReader(thumb.Data), int64(len(thumb.Data)), ThumbnailContentType(thumb.ContentType))
	if err != nil {
		telemetry.ThumbnailUploadsTotal.WithLabelValues(backend, "error").Inc()
		return nil, &ThumbnailUploadError{Err: err}
	}
	telemetry.ThumbnailUploadsTotal.WithLabelValues(backend, "ok").Inc()

	s.add("thumbnail", func(ctx context.Context) error {
		return cc.storage.Delete(ctx, key)
	})

	club, err := cc.clubs.UpdateThumbnail(ctx, clubID, cc.storage.PublicURL(key), cc.now())
	if err != nil {
		return nil, err
	}
	if club == nil {
		return nil, fmt.Errorf("club %s disappeared before its thumbnail was recorded", clubID)
	}
	return club, nil
}

type compensation struct {
	step string
	undo func(context.Context) error
}

// saga collects compensations for completed steps
type saga struct {
	steps []compensation
}

func (s *saga) add(step string, undo func(context.Context) error) {
	s.steps = append(s.steps, compensation{step: step, undo: undo})
}

// rollback runs every compensation, newest first. Failures are logged and counted
// and do not stop the remaining compensations.
func (s *saga) rollback(ctx context.Context) {
	base := context.WithoutCancel(ctx)
	for i := len(s.steps) - 1; i >= 0; i-- {
		c := s.steps[i]
		stepCtx, cancel := context.WithTimeout(base, compensationTimeout)
		err := c.undo(stepCtx)
		cancel()

		if err != nil {
			telemetry.ClubCreationCompensationsTotal.WithLabelValues(c.step, "error").Inc()
			slog.Error("club creation compensation failed", "step", c.step, "error", err)
			continue
		}
		telemetry.ClubCreationCompensationsTotal.WithLabelValues(c.step, "ok").Inc()
		slog.Warn("club creation compensated", "step", c.step)
	}
}
