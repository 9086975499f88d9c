package services

import (
	"context"

	"escrow-market/internal/models"
	"escrow-market/internal/repository"

	"github.com/google/uuid"
)

// NotificationService handles the notification inbox
type NotificationService struct {
	repo *repository.Repository
}

func NewNotificationService(repo *repository.Repository) *NotificationService {
	return &NotificationService{repo: repo}
}

// List returns the user's notifications, newest first
func (s *NotificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit int) ([]models.Notification, error) {
	return s.repo.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead marks one notification as read
func (s *NotificationService) MarkRead(ctx context.Context, userID uint, id uuid.UUID) error {
	return mapRepoError(s.repo.MarkNotificationRead(ctx, userID, id))
}

// MarkAllRead marks every notification as read and returns how many changed
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllNotificationsRead(ctx, userID)
}

// UnreadCount counts unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnreadNotifications(ctx, userID)
}

// notify writes a notification on the caller's transaction so it commits or
// rolls back with the event that caused it.
func notify(ctx context.Context, tx *repository.Repository, userID uint, dealID *uuid.UUID,
	typ models.NotificationType, title, body string) error {

	return tx.CreateNotification(ctx, &models.Notification{
		UserID: userID,
		DealID: dealID,
		Type:   typ,
		Title:  title,
		Body:   body,
	})
}
