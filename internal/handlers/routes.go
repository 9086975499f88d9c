package handlers

import (
	"net/http"
	"time"

	"escrow-market/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handlers bundles every HTTP handler the router needs
type Handlers struct {
	Auth      *AuthHandler
	User      *UserHandler
	Deal      *DealHandler
	Dispute   *DisputeHandler
	Wallet    *WalletHandler
	Chat      *ChatHandler
	Dashboard *DashboardHandler
	Admin     *AdminHandler
}

// RegisterRoutes mounts the API on router
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Authentication routes (public)
	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/signup", h.Auth.Signup)
		authRoutes.POST("/login", h.Auth.Login)
		authRoutes.POST("/logout", h.Auth.Logout)
	}

	// Authenticated /auth/me route
	authProtected := router.Group("/auth")
	authProtected.Use(auth.AuthMiddleware())
	{
		authProtected.GET("/me", h.Auth.GetMe)
	}

	// Legacy signup path kept for older clients
	router.POST("/api/save-user", h.Auth.Signup)

	// Provider callbacks authenticate with a shared secret, not a JWT
	router.POST("/api/webhooks/mobile-money", h.Wallet.MobileMoneyWebhook)

	// API routes (protected)
	api := router.Group("/api")
	api.Use(auth.AuthMiddleware())
	{
		// User endpoints
		userRoutes := api.Group("/user")
		{
			userRoutes.GET("/profile", h.User.GetProfile)
			userRoutes.PUT("/profile", h.User.UpdateProfile)
		}
		api.GET("/users/search", h.User.Search)
		api.GET("/users/:username", h.User.GetPublicProfile)

		api.GET("/dashboard", h.Dashboard.GetDashboard)

		// Deal endpoints - invite routes must come before :id routes
		deals := api.Group("/deals")
		{
			deals.POST("", h.Deal.CreateDeal)
			deals.GET("", h.Deal.ListDeals)
			deals.GET("/invite/:code", h.Deal.PreviewInvite)
			deals.POST("/invite/:code/accept", h.Deal.AcceptInvite)
			deals.GET("/:id", h.Deal.GetDeal)
			deals.POST("/:id/accept", h.Deal.Accept)
			deals.POST("/:id/reject", h.Deal.Reject)
			deals.POST("/:id/cancel", h.Deal.Cancel)
			deals.POST("/:id/pay", h.Deal.Pay)
			deals.POST("/:id/complete", h.Deal.Complete)
			deals.POST("/:id/dispute", h.Dispute.RaiseDispute)
		}

		api.GET("/disputes", h.Dispute.ListDisputes)
		api.GET("/disputes/:id", h.Dispute.GetDispute)

		// Wallet endpoints
		wallet := api.Group("/wallet")
		{
			wallet.GET("", h.Wallet.GetWallet)
			wallet.GET("/transactions", h.Wallet.GetTransactions)
			wallet.POST("/topup", h.Wallet.TopUp)
			wallet.POST("/withdraw", h.Wallet.Withdraw)
		}

		// Chat and notifications
		api.POST("/messages", h.Chat.SendMessage)
		api.GET("/messages/conversations", h.Chat.GetConversations)
		api.GET("/messages/:userId", h.Chat.GetConversation)
		api.GET("/notifications", h.Chat.GetNotifications)
		api.POST("/notifications/read-all", h.Chat.MarkAllNotificationsRead)
		api.POST("/notifications/:id/read", h.Chat.MarkNotificationRead)

		// Support staff endpoints
		admin := api.Group("/admin")
		admin.Use(h.Admin.SupportMiddleware())
		{
			admin.GET("/users", h.Admin.GetUsers)
			admin.POST("/users/:id/verify", h.Admin.VerifyUser)
			admin.GET("/logs", h.Admin.GetAdminLogs)
			admin.GET("/activity", h.Admin.GetActivity)
			admin.GET("/disputes", h.Admin.GetDisputes)
			admin.POST("/disputes/:id/resolve", h.Admin.ResolveDispute)
			admin.POST("/staff", h.Admin.SuperAdminMiddleware(), h.Admin.GrantRole)
		}
	}
}
