package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plaetorius/streambet/internal/api/middleware"
	"github.com/plaetorius/streambet/internal/domain"
	"github.com/plaetorius/streambet/internal/service"
)

// AuthHandler serves wallet session endpoints. There is no password flow:
// identity comes from the connected wallet and a sync upserts the profile.
type AuthHandler struct {
	profileSvc *service.ProfileService
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(profileSvc *service.ProfileService) *AuthHandler {
	return &AuthHandler{profileSvc: profileSvc}
}

// Sync godoc
// POST /api/auth/sync
// Body: {"walletAddress":"0xabc...","username":"alice"}
func (h *AuthHandler) Sync(c *gin.Context) {
	var body service.SyncRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	resp, err := h.profileSvc.Sync(c.Request.Context(), body)
	if err != nil {
		if domain.IsValidation(err) {
			respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not sync profile")
		return
	}
	respondSuccess(c, http.StatusOK, resp)
}

// Me godoc
// GET /api/me [session]
func (h *AuthHandler) Me(c *gin.Context) {
	profileID := middleware.GetProfileID(c)

	profile, err := h.profileSvc.GetByID(c.Request.Context(), profileID)
	if err != nil {
		if domain.IsNotFound(err) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", "profile not found")
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "could not fetch profile")
		return
	}
	respondSuccess(c, http.StatusOK, profile)
}
