package handlers

import (
	"context"
	"net/http"

	"escrow-market/internal/models"
	"escrow-market/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const idempotencyHeader = "Idempotency-Key"

// DealHandler handles the deal lifecycle endpoints
type DealHandler struct {
	dealService  *services.DealService
	adminService *services.AdminService
}

func NewDealHandler(dealService *services.DealService, adminService *services.AdminService) *DealHandler {
	return &DealHandler{dealService: dealService, adminService: adminService}
}

type reasonRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// CreateDeal opens a deal with the caller as buyer
// POST /api/deals
func (h *DealHandler) CreateDeal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.CreateDealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	deal, err := h.dealService.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"deal": deal})
}

// ListDeals returns the caller's deals for a tab
// GET /api/deals?tab=active|completed|disputed|closed|all
func (h *DealHandler) ListDeals(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	deals, err := h.dealService.List(c.Request.Context(), userID, c.Query("tab"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"deals":  deals,
		"limit":  limit,
		"offset": offset,
	})
}

// GetDeal returns a deal with its timeline. Support staff may view any deal.
// GET /api/deals/:id
func (h *DealHandler) GetDeal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	dealID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	isSupport := h.adminService != nil && h.adminService.IsSupport(c.Request.Context(), userID)
	deal, err := h.dealService.GetDetail(c.Request.Context(), dealID, userID, isSupport)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": deal})
}

// PreviewInvite shows an open deal behind an invite code
// GET /api/deals/invite/:code
func (h *DealHandler) PreviewInvite(c *gin.Context) {
	invite, err := h.dealService.PreviewInvite(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invite": invite})
}

// AcceptInvite makes the caller the seller and accepts the deal
// POST /api/deals/invite/:code/accept
func (h *DealHandler) AcceptInvite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	deal, err := h.dealService.AcceptInvite(c.Request.Context(), c.Param("code"), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": deal})
}

// Accept POST /api/deals/:id/accept
func (h *DealHandler) Accept(c *gin.Context) {
	h.simpleAction(c, h.dealService.Accept)
}

// Complete POST /api/deals/:id/complete
func (h *DealHandler) Complete(c *gin.Context) {
	h.simpleAction(c, h.dealService.Complete)
}

// Reject POST /api/deals/:id/reject
func (h *DealHandler) Reject(c *gin.Context) {
	h.reasonAction(c, h.dealService.Reject)
}

// Cancel POST /api/deals/:id/cancel
func (h *DealHandler) Cancel(c *gin.Context) {
	h.reasonAction(c, h.dealService.Cancel)
}

// Pay moves the deal total from the buyer's wallet into escrow. Clients send
// an Idempotency-Key header so a retried request never charges twice.
// POST /api/deals/:id/pay
func (h *DealHandler) Pay(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	dealID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	deal, err := h.dealService.Pay(c.Request.Context(), dealID, userID, c.GetHeader(idempotencyHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": deal})
}

type dealAction func(ctx context.Context, dealID uuid.UUID, userID uint) (*models.DealView, error)

type dealReasonAction func(ctx context.Context, dealID uuid.UUID, userID uint, reason string) (*models.DealView, error)

func (h *DealHandler) simpleAction(c *gin.Context, fn dealAction) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	dealID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	deal, err := fn(c.Request.Context(), dealID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": deal})
}

func (h *DealHandler) reasonAction(c *gin.Context, fn dealReasonAction) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	dealID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	// the body is optional
	var req reasonRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	deal, err := fn(c.Request.Context(), dealID, userID, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deal": deal})
}
