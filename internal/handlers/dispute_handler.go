package handlers

import (
	"net/http"

	"escrow-market/internal/models"
	"escrow-market/internal/services"

	"github.com/gin-gonic/gin"
)

// DisputeHandler handles disputes raised by deal parties
type DisputeHandler struct {
	disputeService *services.DisputeService
	adminService   *services.AdminService
}

func NewDisputeHandler(disputeService *services.DisputeService, adminService *services.AdminService) *DisputeHandler {
	return &DisputeHandler{disputeService: disputeService, adminService: adminService}
}

// RaiseDispute POST /api/deals/:id/dispute
func (h *DisputeHandler) RaiseDispute(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	dealID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req models.RaiseDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	dispute, err := h.disputeService.Raise(c.Request.Context(), dealID, userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"dispute": dispute})
}

// ListDisputes returns disputes on the caller's deals
// GET /api/disputes
func (h *DisputeHandler) ListDisputes(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	disputes, err := h.disputeService.ListForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// GetDispute GET /api/disputes/:id
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	isSupport := h.adminService != nil && h.adminService.IsSupport(c.Request.Context(), userID)
	dispute, err := h.disputeService.Get(c.Request.Context(), id, userID, isSupport)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"dispute": dispute})
}
