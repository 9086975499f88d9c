package handlers

import (
	"net/http"
	"strconv"

	"escrow-market/internal/models"
	"escrow-market/internal/services"

	"github.com/gin-gonic/gin"
)

// AdminHandler serves the support staff console
type AdminHandler struct {
	adminService   *services.AdminService
	disputeService *services.DisputeService
}

func NewAdminHandler(adminService *services.AdminService, disputeService *services.DisputeService) *AdminHandler {
	return &AdminHandler{
		adminService:   adminService,
		disputeService: disputeService,
	}
}

// SupportMiddleware checks if user is support staff
func (h *AdminHandler) SupportMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			c.Abort()
			return
		}

		admin, err := h.adminService.GetAdminByUserID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Support access required"})
			c.Abort()
			return
		}

		c.Set("admin_id", admin.ID)
		c.Set("admin_role", admin.Role)
		c.Next()
	}
}

// SuperAdminMiddleware checks if user is super admin
func (h *AdminHandler) SuperAdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("admin_role")
		if !exists || role != models.AdminRoleSuperAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "Super admin access required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUsers returns all users
// GET /api/admin/users?search=
func (h *AdminHandler) GetUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	search := c.Query("search")

	users, total, err := h.adminService.ListUsers(c.Request.Context(), search, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    users,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// VerifyUser sets or clears a member's verified badge
// POST /api/admin/users/:id/verify
func (h *AdminHandler) VerifyUser(c *gin.Context) {
	staffID, ok := currentUser(c)
	if !ok {
		return
	}
	userID, ok := uintParam(c, "id")
	if !ok {
		return
	}

	req := models.VerifyUserRequest{Verified: true}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	user, err := h.adminService.SetVerified(c.Request.Context(), staffID, userID, req.Verified)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    user,
	})
}

// GrantRole makes a member support staff
// POST /api/admin/staff
func (h *AdminHandler) GrantRole(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Role     string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	admin, err := h.adminService.GrantRole(c.Request.Context(), req.Username, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    admin,
	})
}

// GetAdminLogs returns admin activity logs
// GET /api/admin/logs
func (h *AdminHandler) GetAdminLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	logs, err := h.adminService.GetAdminLogs(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    logs,
		"count":   len(logs),
	})
}

// GetActivity returns status history for a deal, dispute or transaction
// GET /api/admin/activity?related_type=deal&related_id=...
func (h *AdminHandler) GetActivity(c *gin.Context) {
	relatedType := c.Query("related_type")
	relatedID := c.Query("related_id")
	if relatedType == "" || relatedID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "related_type and related_id are required"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	entries, err := h.adminService.GetActivity(c.Request.Context(), relatedType, relatedID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    entries,
		"count":   len(entries),
	})
}

// GetDisputes returns the dispute queue
// GET /api/admin/disputes?status=open
func (h *AdminHandler) GetDisputes(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	status := models.DisputeStatus(c.Query("status"))

	disputes, total, err := h.disputeService.ListAll(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    disputes,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

// ResolveDispute closes a dispute with release, refund or reject
// POST /api/admin/disputes/:id/resolve
func (h *AdminHandler) ResolveDispute(c *gin.Context) {
	staffID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	dispute, err := h.disputeService.Resolve(c.Request.Context(), id, staffID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    dispute,
	})
}
