// clubs.go implements club listing, club creation and the club info lookup.
package clubs

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clubroom/clubroom/internal/db/models"
	"github.com/clubroom/clubroom/internal/middleware"
	"github.com/clubroom/clubroom/internal/services"
)

const (
	msgProfileIDRequired    = "profile_id가 필요합니다."
	msgCreateFieldsRequired = "name과 profile_id가 필요합니다."
	msgClubIDRequired       = "clubId가 필요합니다."
	msgClubNotFound         = "동아리를 찾을 수 없습니다."
)

type createClubRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Location    *string `json:"location"`
	ProfileID   string  `json:"profile_id"`
}

// @Summary      List my clubs
// @Description  Clubs the caller actively belongs to, ordered by the caller's ord.
// @Tags         Clubs
// @Security     Bearer
// @Produce      json
// @Success      200  {array}   models.ClubSummary
// @Failure      400  {object}  map[string]interface{}  "profile_id missing"
// @Failure      500  {object}  map[string]interface{}  "Internal server error"
// @Router       /api/club [get]
// ListClubsHandler lists the caller's active clubs
// GET /api/club
func (h *ClubHandlers) ListClubsHandler() gin.HandlerFunc {
	const route = "GET /api/club"
	return func(c *gin.Context) {
		profileID := h.resolveProfileID(c, route, "")
		if profileID == "" {
			respondError(c, route, invalid(msgProfileIDRequired))
			return
		}

		if !isUUID(profileID) {
			c.JSON(http.StatusOK, []models.ClubSummary{})
			return
		}

		clubs, err := h.memberRepo.ListActiveClubsForProfile(c.Request.Context(), profileID)
		if err != nil {
			respondError(c, route, err)
			return
		}

		c.JSON(http.StatusOK, clubs)
	}
}

// @Summary      Create club
// @Description  Creates a club with an optional thumbnail and makes the caller its president.
// @Tags         Clubs
// @Security     Bearer
// @Accept       multipart/form-data
// @Accept       json
// @Produce      json
// @Param        name         formData  string  true   "Club name"
// @Param        description  formData  string  false  "Description"
// @Param        location     formData  string  false  "Location"
// @Param        thumbnail    formData  file    false  "Thumbnail image"
// @Success      201  {object}  map[string]interface{}  "club, membership"
// @Failure      400  {object}  map[string]interface{}  "Missing name or identity, or thumbnail too large"
// @Failure      500  {object}  map[string]interface{}  "Thumbnail upload or database failure"
// @Router       /api/club [post]
// CreateClubHandler creates a club
// POST /api/club
func (h *ClubHandlers) CreateClubHandler() gin.HandlerFunc {
	const route = "POST /api/club"
	return func(c *gin.Context) {
		var req createClubRequest
		if c.ContentType() == "application/json" {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondError(c, route, invalid(msgCreateFieldsRequired))
				return
			}
		} else {
			req.Name = c.PostForm("name")
			req.Description = optionalForm(c, "description")
			req.Location = optionalForm(c, "location")
			req.ProfileID = c.PostForm("profile_id")
		}

		name := strings.TrimSpace(req.Name)
		profileID := h.resolveProfileID(c, route, req.ProfileID)
		if name == "" || profileID == "" {
			respondError(c, route, invalid(msgCreateFieldsRequired))
			return
		}

		in := services.CreateClubInput{
			Name:        name,
			Description: emptyToNil(req.Description),
			Location:    emptyToNil(req.Location),
			CreatedBy:   profileID,
		}
		if thumb := middleware.UploadedThumbnail(c); thumb != nil {
			in.Thumbnail = &services.ThumbnailInput{Data: thumb.Data, ContentType: thumb.ContentType}
		}

		res, err := h.creator.Create(c.Request.Context(), in)
		if err != nil {
			respondError(c, route, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"club":       res.Club,
			"membership": res.Membership,
		})
	}
}

// @Summary      Club info
// @Tags         Clubs
// @Security     Bearer
// @Produce      json
// @Param        clubId  query  string  true  "Club ID"
// @Success      200  {object}  map[string]interface{}  "name, thumbnail_url"
// @Failure      400  {object}  map[string]interface{}  "clubId missing"
// @Failure      404  {object}  map[string]interface{}  "Club not found"
// @Router       /api/club/info [get]
// GetClubInfoHandler returns a club's name and thumbnail
// GET /api/club/info?clubId=
func (h *ClubHandlers) GetClubInfoHandler() gin.HandlerFunc {
	const route = "GET /api/club/info"
	return func(c *gin.Context) {
		clubID := c.Query("clubId")
		if clubID == "" {
			respondError(c, route, invalid(msgClubIDRequired))
			return
		}

		if !isUUID(clubID) {
			respondError(c, route, notFound(msgClubNotFound))
			return
		}

		club, err := h.clubRepo.GetByID(c.Request.Context(), clubID)
		if err != nil {
			respondError(c, route, err)
			return
		}
		if club == nil {
			respondError(c, route, notFound(msgClubNotFound))
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"name":          club.Name,
			"thumbnail_url": club.ThumbnailURL,
		})
	}
}

func optionalForm(c *gin.Context, key string) *string {
	v, ok := c.GetPostForm(key)
	if !ok {
		return nil
	}
	return &v
}

// emptyToNil stores blank optional text as NULL
func emptyToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
