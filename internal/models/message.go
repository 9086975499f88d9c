package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is a chat line between two members, optionally about a deal
type Message struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SenderID   uint       `gorm:"not null;index" json:"sender_id"`
	ReceiverID uint       `gorm:"not null;index" json:"receiver_id"`
	DealID     *uuid.UUID `gorm:"type:uuid;index" json:"deal_id,omitempty"`
	Text       string     `gorm:"type:text;not null" json:"text"`
	Read       bool       `gorm:"not null;default:false" json:"read"`
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

type SendMessageRequest struct {
	ReceiverID uint       `json:"receiver_id" binding:"required"`
	DealID     *uuid.UUID `json:"deal_id"`
	Text       string     `json:"text" binding:"required,max=4000"`
}

// Conversation summarises the thread with one counterparty.
type Conversation struct {
	Counterparty PublicProfile `json:"counterparty"`
	LastMessage  Message       `json:"last_message"`
	UnreadCount  int64         `json:"unread_count"`
}

type NotificationType string

const (
	NotificationDealInvite    NotificationType = "deal_invite"
	NotificationDealUpdate    NotificationType = "deal_update"
	NotificationDisputeUpdate NotificationType = "dispute_update"
	NotificationWalletUpdate  NotificationType = "wallet_update"
)

// Notification informs a user about something that happened on their account
type Notification struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uint             `gorm:"not null;index" json:"user_id"`
	DealID    *uuid.UUID       `gorm:"type:uuid" json:"deal_id,omitempty"`
	Type      NotificationType `gorm:"size:32;not null" json:"type"`
	Title     string           `gorm:"size:255;not null" json:"title"`
	Body      string           `gorm:"type:text" json:"body"`
	Read      bool             `gorm:"not null;default:false;index" json:"read"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
