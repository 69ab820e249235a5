// members.go implements the member roster, the email member search and the
// position/graduation update.
package clubs

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clubroom/clubroom/internal/db/models"
	"github.com/clubroom/clubroom/internal/db/repositories"
)

const (
	msgSearchFieldsRequired = "email과 clubId가 필요합니다."
	msgMemberIDsRequired    = "clubId와 profileId가 필요합니다."
	msgUpdateFieldRequired  = "position 또는 graduation 값이 필요합니다."
	msgMemberNotFound       = "회원을 찾을 수 없습니다."
	msgPresidentDemotion    = "회장은 일반 회원으로 변경할 수 없습니다."
)

// MemberView is the roster projection of an active member
type MemberView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Position    string  `json:"position"`
	Graduation  string  `json:"graduation"`
	Phone       *string `json:"phone"`
	Email       string  `json:"email"`
	IsMe        bool    `json:"isMe"`
	IsPresident bool    `json:"isPresident"`
}

// Roster groups a club's active members for display
type Roster struct {
	Officers  []MemberView `json:"officers"`
	Members   []MemberView `json:"members"`
	Graduates []MemberView `json:"graduates"`
}

// SearchResult is a profile matched by email, flagged with any existing membership
type SearchResult struct {
	ID      string               `json:"id"`
	Name    string               `json:"name"`
	Email   string               `json:"email"`
	Phone   *string              `json:"phone"`
	Invited bool                 `json:"invited"`
	Status  *models.MemberStatus `json:"status"`
}

type updatePositionRequest struct {
	ClubID     string  `json:"clubId"`
	ProfileID  string  `json:"profileId"`
	Position   *string `json:"position"`
	Graduation *string `json:"graduation"`
}

func memberView(m *models.MemberWithProfile, callerID string) MemberView {
	pos := m.Position()
	return MemberView{
		ID:          m.ProfileID,
		Name:        m.Name,
		Position:    pos.Label(),
		Graduation:  models.GraduationLabel(m.Graduate),
		Phone:       m.Phone,
		Email:       m.Email,
		IsMe:        callerID != "" && m.ProfileID == callerID,
		IsPresident: pos.IsPresident(),
	}
}

// buildRoster classifies members: leadership into officers, then plain members by
// graduation status. Input order (ord) is preserved within each group.
func buildRoster(members []models.MemberWithProfile, callerID string) Roster {
	roster := Roster{
		Officers:  []MemberView{},
		Members:   []MemberView{},
		Graduates: []MemberView{},
	}
	for i := range members {
		m := &members[i]
		view := memberView(m, callerID)
		switch {
		case m.Position().IsOfficer():
			roster.Officers = append(roster.Officers, view)
		case m.Graduate:
			roster.Graduates = append(roster.Graduates, view)
		default:
			roster.Members = append(roster.Members, view)
		}
	}
	return roster
}

// @Summary      Member roster
// @Description  Active members of a club grouped into officers, members and graduates.
// @Tags         Members
// @Security     Bearer
// @Produce      json
// @Param        clubId  query  string  true  "Club ID"
// @Success      200  {object}  Roster
// @Failure      400  {object}  map[string]interface{}  "clubId missing"
// @Router       /api/club/members [get]
// ListMembersHandler returns the roster of a club
// GET /api/club/members?clubId=
func (h *ClubHandlers) ListMembersHandler() gin.HandlerFunc {
	const route = "GET /api/club/members"
	return func(c *gin.Context) {
		clubID := c.Query("clubId")
		if clubID == "" {
			respondError(c, route, invalid(msgClubIDRequired))
			return
		}
		callerID := h.resolveProfileID(c, route, "")

		if !isUUID(clubID) {
			c.JSON(http.StatusOK, buildRoster(nil, callerID))
			return
		}

		members, err := h.memberRepo.ListActiveWithProfiles(c.Request.Context(), clubID)
		if err != nil {
			respondError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, buildRoster(members, callerID))
	}
}

// @Summary      Search profiles by email
// @Description  Case-insensitive partial email match (max 10), flagged with existing membership in the club.
// @Tags         Members
// @Security     Bearer
// @Produce      json
// @Param        email   query  string  true  "Partial email"
// @Param        clubId  query  string  true  "Club ID"
// @Success      200  {array}   SearchResult
// @Failure      400  {object}  map[string]interface{}  "email or clubId missing"
// @Router       /api/club/search-users [get]
// SearchUsersHandler finds invitation candidates by email
// GET /api/club/search-users?email=&clubId=
func (h *ClubHandlers) SearchUsersHandler() gin.HandlerFunc {
	const route = "GET /api/club/search-users"
	return func(c *gin.Context) {
		email := strings.TrimSpace(c.Query("email"))
		clubID := c.Query("clubId")
		if email == "" || clubID == "" {
			respondError(c, route, invalid(msgSearchFieldsRequired))
			return
		}

		ctx := c.Request.Context()
		profiles, err := h.profileRepo.SearchByEmail(ctx, email, searchLimit)
		if err != nil {
			respondError(c, route, err)
			return
		}

		statuses := map[string]models.MemberStatus{}
		if len(profiles) > 0 && isUUID(clubID) {
			ids := make([]string, len(profiles))
			for i, p := range profiles {
				ids[i] = p.ID
			}
			statuses, err = h.memberRepo.StatusesForProfiles(ctx, clubID, ids)
			if err != nil {
				respondError(c, route, err)
				return
			}
		}

		results := make([]SearchResult, len(profiles))
		for i, p := range profiles {
			results[i] = SearchResult{
				ID:    p.ID,
				Name:  p.Name,
				Email: p.Email,
				Phone: p.Phone,
			}
			if status, ok := statuses[p.ID]; ok {
				results[i].Invited = true
				results[i].Status = &status
			}
		}

		c.JSON(http.StatusOK, results)
	}
}

// @Summary      Update position or graduation
// @Description  Sets a member's position label ("회장", "일반" or an officer title) and/or graduation label ("졸업"/"재학").
// @Tags         Members
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Success      200  {object}  MemberView
// @Failure      400  {object}  map[string]interface{}  "Missing fields or president demotion"
// @Failure      404  {object}  map[string]interface{}  "Active member not found"
// @Router       /api/club/positions-graduation [patch]
// UpdatePositionGraduationHandler changes a member's position and graduation status
// PATCH /api/club/positions-graduation
func (h *ClubHandlers) UpdatePositionGraduationHandler() gin.HandlerFunc {
	const route = "PATCH /api/club/positions-graduation"
	return func(c *gin.Context) {
		var req updatePositionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, route, invalid(msgMemberIDsRequired))
			return
		}
		if req.ClubID == "" || req.ProfileID == "" {
			respondError(c, route, invalid(msgMemberIDsRequired))
			return
		}

		var update repositories.MemberUpdate
		if label := trimmed(req.Position); label != "" {
			pos := models.PositionFromLabel(label)
			update.Position = &pos
		}
		if label := trimmed(req.Graduation); label != "" {
			graduate := models.GraduateFromLabel(label)
			update.Graduate = &graduate
		}
		if update.Position == nil && update.Graduate == nil {
			respondError(c, route, invalid(msgUpdateFieldRequired))
			return
		}

		if !isUUID(req.ClubID) || !isUUID(req.ProfileID) {
			respondError(c, route, notFound(msgMemberNotFound))
			return
		}

		ctx := c.Request.Context()
		current, err := h.memberRepo.GetByClubAndProfile(ctx, req.ClubID, req.ProfileID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if current == nil || current.Status != models.StatusActive {
			respondError(c, route, notFound(msgMemberNotFound))
			return
		}

		if update.Position != nil && current.Position().IsPresident() &&
			update.Position.Role() == models.RoleMember {
			respondError(c, route, conflict(msgPresidentDemotion))
			return
		}

		updated, err := h.memberRepo.UpdateActiveMember(ctx, req.ClubID, req.ProfileID, update)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if updated == nil {
			respondError(c, route, notFound(msgMemberNotFound))
			return
		}

		c.JSON(http.StatusOK, memberView(updated, h.resolveProfileID(c, route, "")))
	}
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
