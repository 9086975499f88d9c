package services

import (
	"context"
	"sort"
	"strings"

	"escrow-market/internal/models"
	"escrow-market/internal/repository"
)

const maxMessageLength = 4000

// ChatService handles direct messages between members
type ChatService struct {
	repo *repository.Repository
}

func NewChatService(repo *repository.Repository) *ChatService {
	return &ChatService{repo: repo}
}

// Send stores a message from senderID. When a deal is referenced, both users
// must be its parties.
func (s *ChatService) Send(ctx context.Context, senderID uint, req models.SendMessageRequest) (*models.Message, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, invalidInput("message text is required")
	}
	if len(text) > maxMessageLength {
		return nil, invalidInput("message is longer than %d characters", maxMessageLength)
	}
	if req.ReceiverID == senderID {
		return nil, invalidInput("you cannot message yourself")
	}
	if _, err := s.repo.GetUserByID(ctx, req.ReceiverID); err != nil {
		return nil, mapRepoError(err)
	}

	if req.DealID != nil {
		deal, err := s.repo.GetDeal(ctx, *req.DealID)
		if err != nil {
			return nil, mapRepoError(err)
		}
		_, senderIn := deal.RoleOf(senderID)
		_, receiverIn := deal.RoleOf(req.ReceiverID)
		if !senderIn || !receiverIn {
			return nil, ErrForbidden
		}
	}

	msg := &models.Message{
		SenderID:   senderID,
		ReceiverID: req.ReceiverID,
		DealID:     req.DealID,
		Text:       text,
	}
	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Conversations lists one entry per counterparty, most recent first
func (s *ChatService) Conversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	msgs, err := s.repo.LatestMessagePerCounterparty(ctx, userID)
	if err != nil {
		return nil, err
	}
	unread, err := s.repo.UnreadMessagesBySender(ctx, userID)
	if err != nil {
		return nil, err
	}

	latest := make(map[uint]models.Message)
	var order []uint
	for _, m := range msgs {
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}
		if _, seen := latest[other]; seen {
			continue
		}
		latest[other] = m
		order = append(order, other)
	}

	users, err := s.repo.GetUsersByIDs(ctx, order)
	if err != nil {
		return nil, err
	}

	out := make([]models.Conversation, 0, len(order))
	for _, id := range order {
		u, ok := users[id]
		if !ok {
			continue
		}
		out = append(out, models.Conversation{
			Counterparty: u.Public(),
			LastMessage:  latest[id],
			UnreadCount:  unread[id],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessage.CreatedAt.After(out[j].LastMessage.CreatedAt)
	})
	return out, nil
}

// Conversation returns the thread with otherID and marks incoming messages read
func (s *ChatService) Conversation(ctx context.Context, userID, otherID uint, limit int) ([]models.Message, error) {
	if _, err := s.repo.GetUserByID(ctx, otherID); err != nil {
		return nil, mapRepoError(err)
	}
	msgs, err := s.repo.ListConversation(ctx, userID, otherID, limit)
	if err != nil {
		return nil, err
	}
	if err := s.repo.MarkConversationRead(ctx, userID, otherID); err != nil {
		return nil, err
	}
	return msgs, nil
}
