package repository

import (
	"context"

	"escrow-market/internal/models"
)

// CreateMessage stores a chat message
func (r *Repository) CreateMessage(ctx context.Context, msg *models.Message) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

// ListConversation returns messages exchanged between two users, oldest first
func (r *Repository) ListConversation(ctx context.Context, a, b uint, limit int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)", a, b, b, a).
		Order("created_at DESC").
		Limit(clampLimit(limit, 100, 500)).
		Find(&msgs).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// MarkConversationRead marks everything from sender to reader as read
func (r *Repository) MarkConversationRead(ctx context.Context, reader, sender uint) error {
	return r.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND read = ?", reader, sender, false).
		Update("read", true).Error
}

// LatestMessagePerCounterparty returns the newest message of every thread
// the user takes part in, newest thread first. Messages sharing a thread's
// latest timestamp may all be returned; callers keep the first.
func (r *Repository) LatestMessagePerCounterparty(ctx context.Context, userID uint) ([]models.Message, error) {
	const counterparty = "CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END"

	latest := r.db.Model(&models.Message{}).
		Select(counterparty+" AS counterparty_id, MAX(created_at) AS last_at", userID).
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Group("counterparty_id")

	var msgs []models.Message
	err := r.db.WithContext(ctx).Table("messages AS m").
		Select("m.*").
		Joins("JOIN (?) AS l ON l.counterparty_id = CASE WHEN m.sender_id = ? THEN m.receiver_id ELSE m.sender_id END AND l.last_at = m.created_at",
			latest, userID).
		Where("m.sender_id = ? OR m.receiver_id = ?", userID, userID).
		Order("m.created_at DESC").
		Find(&msgs).Error
	return msgs, err
}

// UnreadMessagesBySender counts unread incoming messages per sender
func (r *Repository) UnreadMessagesBySender(ctx context.Context, userID uint) (map[uint]int64, error) {
	var rows []struct {
		SenderID uint
		Count    int64
	}
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND read = ?", userID, false).
		Group("sender_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]int64, len(rows))
	for _, row := range rows {
		out[row.SenderID] = row.Count
	}
	return out, nil
}

// CountUnreadMessages counts all unread incoming messages
func (r *Repository) CountUnreadMessages(ctx context.Context, userID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND read = ?", userID, false).
		Count(&n).Error
	return n, err
}
