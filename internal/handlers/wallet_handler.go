package handlers

import (
	"crypto/subtle"
	"net/http"

	"escrow-market/internal/models"
	"escrow-market/internal/services"

	"github.com/gin-gonic/gin"
)

const webhookSecretHeader = "X-Webhook-Secret"

// WalletHandler handles wallet balance, mobile-money transfers and the
// provider webhook
type WalletHandler struct {
	walletService *services.WalletService
	webhookSecret string
}

func NewWalletHandler(walletService *services.WalletService, webhookSecret string) *WalletHandler {
	return &WalletHandler{walletService: walletService, webhookSecret: webhookSecret}
}

// GetWallet GET /api/wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	summary, err := h.walletService.Summary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": summary})
}

// GetTransactions GET /api/wallet/transactions?type=&limit=&offset=
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	limit, offset := pagination(c)

	txns, total, err := h.walletService.Transactions(c.Request.Context(), userID, c.Query("type"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": txns,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

// TopUp starts a mobile-money deposit
// POST /api/wallet/topup
func (h *WalletHandler) TopUp(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	txn, err := h.walletService.TopUp(c.Request.Context(), userID, req, c.GetHeader(idempotencyHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"transaction": txn})
}

// Withdraw debits the wallet and starts a mobile-money payout
// POST /api/wallet/withdraw
func (h *WalletHandler) Withdraw(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	txn, err := h.walletService.Withdraw(c.Request.Context(), userID, req, c.GetHeader(idempotencyHeader))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"transaction": txn})
}

// MobileMoneyWebhook settles a pending transfer. The provider authenticates
// with a shared secret header.
// POST /api/webhooks/mobile-money
func (h *WalletHandler) MobileMoneyWebhook(c *gin.Context) {
	secret := c.GetHeader(webhookSecretHeader)
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.webhookSecret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	var cb models.ProviderCallback
	if err := c.ShouldBindJSON(&cb); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.walletService.HandleProviderCallback(c.Request.Context(), cb)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
