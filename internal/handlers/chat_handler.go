package handlers

import (
	"net/http"
	"strconv"

	"escrow-market/internal/models"
	"escrow-market/internal/services"

	"github.com/gin-gonic/gin"
)

// ChatHandler handles direct messages and the notification inbox
type ChatHandler struct {
	chatService         *services.ChatService
	notificationService *services.NotificationService
}

func NewChatHandler(chatService *services.ChatService, notificationService *services.NotificationService) *ChatHandler {
	return &ChatHandler{chatService: chatService, notificationService: notificationService}
}

// SendMessage POST /api/messages
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req models.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	msg, err := h.chatService.Send(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// GetConversations GET /api/messages/conversations
func (h *ChatHandler) GetConversations(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	convs, err := h.chatService.Conversations(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

// GetConversation returns the thread with another user and marks it read
// GET /api/messages/:userId
func (h *ChatHandler) GetConversation(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	otherID, ok := uintParam(c, "userId")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	msgs, err := h.chatService.Conversation(c.Request.Context(), userID, otherID, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// GetNotifications GET /api/notifications?unread=true
func (h *ChatHandler) GetNotifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	unreadOnly := c.Query("unread") == "true"
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	ctx := c.Request.Context()
	list, err := h.notificationService.List(ctx, userID, unreadOnly, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	unread, err := h.notificationService.UnreadCount(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"unread":        unread,
	})
}

// MarkNotificationRead POST /api/notifications/:id/read
func (h *ChatHandler) MarkNotificationRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.notificationService.MarkRead(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllNotificationsRead POST /api/notifications/read-all
func (h *ChatHandler) MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	n, err := h.notificationService.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}
