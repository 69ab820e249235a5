// officers.go implements the per-club officer title catalog.
package clubs

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Officer titles
// @Description  Officer titles configured for a club, in catalog order.
// @Tags         Members
// @Security     Bearer
// @Produce      json
// @Param        clubId  query  string  true  "Club ID"
// @Success      200  {array}   string
// @Failure      400  {object}  map[string]interface{}  "clubId missing"
// @Router       /api/club/officers [get]
// ListOfficersHandler returns the officer title catalog of a club
// GET /api/club/officers?clubId=
func (h *ClubHandlers) ListOfficersHandler() gin.HandlerFunc {
	const route = "GET /api/club/officers"
	return func(c *gin.Context) {
		clubID := c.Query("clubId")
		if clubID == "" {
			respondError(c, route, invalid(msgClubIDRequired))
			return
		}
		if !isUUID(clubID) {
			c.JSON(http.StatusOK, []string{})
			return
		}

		titles, err := h.officerRepo.ListTitles(c.Request.Context(), clubID)
		if err != nil {
			respondError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, titles)
	}
}

// RegisterRoutes mounts the club endpoints on group. upload runs only ahead of club
// creation.
func (h *ClubHandlers) RegisterRoutes(group *gin.RouterGroup, upload gin.HandlerFunc) {
	group.GET("", h.ListClubsHandler())
	group.GET("/", h.ListClubsHandler())
	group.POST("", upload, h.CreateClubHandler())
	group.POST("/", upload, h.CreateClubHandler())
	group.GET("/info", h.GetClubInfoHandler())
	group.GET("/members", h.ListMembersHandler())
	group.GET("/search-users", h.SearchUsersHandler())
	group.POST("/invite", h.InviteHandler())
	group.GET("/invitations", h.ListInvitationsHandler())
	group.PATCH("/invitations/:invitationId", h.RespondInvitationHandler())
	group.GET("/officers", h.ListOfficersHandler())
	group.PATCH("/positions-graduation", h.UpdatePositionGraduationHandler())
}
