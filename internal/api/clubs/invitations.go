// invitations.go implements invitation creation, the caller's invitation inbox and
// accepting or rejecting an invitation.
package clubs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/clubroom/clubroom/internal/db"
	"github.com/clubroom/clubroom/internal/db/models"
	"github.com/clubroom/clubroom/internal/notify"
	"github.com/clubroom/clubroom/internal/telemetry"
)

const (
	msgInviteFieldsRequired  = "clubId와 profileId가 필요합니다."
	msgAlreadyInvited        = "이미 초대된 사용자입니다."
	msgAlreadyMember         = "이미 가입된 회원입니다."
	msgRespondFieldsRequired = "invitationId, action, profile_id가 필요합니다."
	msgInvalidAction         = "action은 accept 또는 reject 이어야 합니다."
	msgInvitationNotFound    = "초대를 찾을 수 없습니다."
	msgInvitationAccepted    = "초대를 수락했습니다."
	msgInvitationRejected    = "초대를 거절했습니다."
	msgInvalidBody           = "요청 본문이 올바른 JSON이 아닙니다."
)

const (
	actionAccept = "accept"
	actionReject = "reject"
)

const invitationLookupTimeout = 5 * time.Second

type inviteRequest struct {
	ClubID    string `json:"clubId"`
	ProfileID string `json:"profileId"`
}

type respondInvitationRequest struct {
	Action    string `json:"action"`
	ProfileID string `json:"profile_id"`
}

// @Summary      Invite a profile
// @Description  Creates a pending membership with the next ord in the club.
// @Tags         Invitations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      201  {object}  map[string]interface{}  "invitation"
// @Failure      400  {object}  map[string]interface{}  "Missing fields, already invited or already a member"
// @Router       /api/club/invite [post]
// InviteHandler invites a profile into a club
// POST /api/club/invite
func (h *ClubHandlers) InviteHandler() gin.HandlerFunc {
	const route = "POST /api/club/invite"
	return func(c *gin.Context) {
		var req inviteRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.ClubID == "" || req.ProfileID == "" {
			respondError(c, route, invalid(msgInviteFieldsRequired))
			return
		}
		if !isUUID(req.ClubID) || !isUUID(req.ProfileID) {
			respondError(c, route, invalid(msgInviteFieldsRequired))
			return
		}

		ctx := c.Request.Context()
		existing, err := h.memberRepo.GetByClubAndProfile(ctx, req.ClubID, req.ProfileID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if existing != nil {
			if existing.Status == models.StatusActive {
				respondError(c, route, conflict(msgAlreadyMember))
			} else {
				respondError(c, route, conflict(msgAlreadyInvited))
			}
			return
		}

		ord, err := h.memberRepo.NextOrd(ctx, req.ClubID)
		if err != nil {
			respondError(c, route, err)
			return
		}

		now := time.Now()
		invitation := &models.ClubMember{
			ClubID:    req.ClubID,
			ProfileID: req.ProfileID,
			Status:    models.StatusPending,
			Graduate:  false,
			Ord:       ord,
			InvitedAt: &now,
		}
		invitation.SetPosition(models.MemberPosition())

		if err := h.memberRepo.Create(ctx, invitation); err != nil {
			// A concurrent invite for the same pair lost the race on unique(club_id, profile_id).
			if db.IsUniqueViolation(err) {
				respondError(c, route, conflict(msgAlreadyInvited))
				return
			}
			respondError(c, route, err)
			return
		}

		telemetry.InvitationsTotal.WithLabelValues("created").Inc()
		h.notifyInvitation(ctx, invitation)

		c.JSON(http.StatusCreated, gin.H{"invitation": invitation})
	}
}

// notifyInvitation looks up the invitee's email and the club name for the invitation
// email. Lookup failures only skip the email.
func (h *ClubHandlers) notifyInvitation(ctx context.Context, inv *models.ClubMember) {
	if h.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invitationLookupTimeout)
	defer cancel()

	profile, err := h.profileRepo.GetByID(ctx, inv.ProfileID)
	if err != nil || profile == nil {
		slog.Warn("skipping invitation email: invitee lookup failed", "profile_id", inv.ProfileID, "error", err)
		return
	}
	club, err := h.clubRepo.GetByID(ctx, inv.ClubID)
	if err != nil || club == nil {
		slog.Warn("skipping invitation email: club lookup failed", "club_id", inv.ClubID, "error", err)
		return
	}

	h.notifier.InvitationCreated(notify.Invitation{
		To:          profile.Email,
		InviteeName: profile.Name,
		ClubName:    club.Name,
	})
}

// @Summary      List my invitations
// @Description  Pending invitations addressed to the caller, newest first.
// @Tags         Invitations
// @Security     Bearer
// @Produce      json
// @Success      200  {array}   models.PendingInvitation
// @Failure      400  {object}  map[string]interface{}  "profile_id missing"
// @Router       /api/club/invitations [get]
// ListInvitationsHandler lists the caller's pending invitations
// GET /api/club/invitations
func (h *ClubHandlers) ListInvitationsHandler() gin.HandlerFunc {
	const route = "GET /api/club/invitations"
	return func(c *gin.Context) {
		profileID := h.resolveProfileID(c, route, "")
		if profileID == "" {
			respondError(c, route, invalid(msgProfileIDRequired))
			return
		}
		if !isUUID(profileID) {
			c.JSON(http.StatusOK, []models.PendingInvitation{})
			return
		}

		invitations, err := h.memberRepo.ListPendingInvitations(c.Request.Context(), profileID)
		if err != nil {
			respondError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, invitations)
	}
}

// @Summary      Accept or reject an invitation
// @Tags         Invitations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        invitationId  path  string  true  "Invitation (membership) ID"
// @Success      200  {object}  map[string]interface{}  "message, membership|invitation"
// @Failure      400  {object}  map[string]interface{}  "Malformed body, missing fields or invalid action"
// @Failure      404  {object}  map[string]interface{}  "Invitation not found"
// @Router       /api/club/invitations/{invitationId} [patch]
// RespondInvitationHandler accepts or rejects one of the caller's pending invitations
// PATCH /api/club/invitations/:invitationId
func (h *ClubHandlers) RespondInvitationHandler() gin.HandlerFunc {
	const route = "PATCH /api/club/invitations/:invitationId"
	return func(c *gin.Context) {
		invitationID := c.Param("invitationId")

		var req respondInvitationRequest
		// An empty body is reported as missing fields below.
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, route, invalid(msgInvalidBody))
			return
		}

		profileID := h.resolveProfileID(c, route, req.ProfileID)
		if invitationID == "" || req.Action == "" || profileID == "" {
			respondError(c, route, invalid(msgRespondFieldsRequired))
			return
		}
		if req.Action != actionAccept && req.Action != actionReject {
			respondError(c, route, invalid(msgInvalidAction))
			return
		}
		if !isUUID(invitationID) || !isUUID(profileID) {
			respondError(c, route, notFound(msgInvitationNotFound))
			return
		}

		ctx := c.Request.Context()
		if req.Action == actionAccept {
			membership, err := h.memberRepo.AcceptInvitation(ctx, invitationID, profileID)
			if err != nil {
				respondError(c, route, err)
				return
			}
			if membership == nil {
				respondError(c, route, notFound(msgInvitationNotFound))
				return
			}
			telemetry.InvitationsTotal.WithLabelValues("accepted").Inc()
			c.JSON(http.StatusOK, gin.H{"message": msgInvitationAccepted, "membership": membership})
			return
		}

		removed, err := h.memberRepo.DeleteInvitation(ctx, invitationID, profileID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if removed == nil {
			respondError(c, route, notFound(msgInvitationNotFound))
			return
		}
		telemetry.InvitationsTotal.WithLabelValues("rejected").Inc()
		c.JSON(http.StatusOK, gin.H{"message": msgInvitationRejected, "invitation": removed})
	}
}
