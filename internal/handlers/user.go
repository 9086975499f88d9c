package handlers

import (
	"net/http"

	"escrow-market/internal/models"
	"escrow-market/internal/services"

	"github.com/gin-gonic/gin"
)

// UserHandler handles user-related endpoints
type UserHandler struct {
	userService  *services.UserService
	adminService *services.AdminService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *services.UserService, adminService *services.AdminService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		adminService: adminService,
	}
}

// GetProfile returns the current user's profile
// GET /api/user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	user, err := h.userService.GetUserByID(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"user": user}
	if h.adminService != nil && h.adminService.IsSupport(c.Request.Context(), userID) {
		resp["role"] = "support"
	}
	c.JSON(http.StatusOK, resp)
}

// UpdateProfile changes name and phone
// PUT /api/user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// Search finds counterparties by username or name
// GET /api/users/search?q=
func (h *UserHandler) Search(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	users, err := h.userService.Search(c.Request.Context(), c.Query("q"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// GetPublicProfile returns another member's public profile
// GET /api/users/:username
func (h *UserHandler) GetPublicProfile(c *gin.Context) {
	profile, err := h.userService.GetPublicProfile(c.Request.Context(), c.Param("username"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": profile})
}
