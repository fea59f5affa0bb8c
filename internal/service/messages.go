package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"homebids/internal/models"
)

//// Conversations

// conversation loads the thread between a mission owner and one bidding
// contractor, after checking that actor is one of the two.
func (s *Service) conversation(ctx context.Context, actor models.Actor, key models.ConversationKey) (models.Conversation, error) {
	switch actor.Role {
	case models.RoleContractor:
		if actor.Id != key.ContractorId {
			return models.Conversation{}, models.ErrForbidden
		}
	case models.RoleHomeowner:
	default:
		return models.Conversation{}, models.ErrForbidden
	}

	mission, err := s.repo.GetMission(ctx, key.MissionId)
	if err != nil {
		return models.Conversation{}, err
	}
	if actor.IsHomeowner() && mission.OwnerId != actor.Id {
		return models.Conversation{}, models.ErrForbidden
	}

	bid, err := s.repo.GetBidByPair(ctx, key.MissionId, key.ContractorId)
	if err != nil {
		return models.Conversation{}, err
	}

	messages, err := s.repo.GetMessages(ctx, key.MissionId, key.ContractorId)
	if err != nil {
		return models.Conversation{}, err
	}

	conv := models.Conversation{
		MissionId:    key.MissionId,
		ContractorId: key.ContractorId,
		HomeownerId:  mission.OwnerId,
		BidStatus:    bid.Status,
		Messages:     messages,
	}
	if conv.Messages == nil {
		conv.Messages = []models.Message{}
	}
	conv.Derive()
	return conv, nil
}

func (s *Service) GetConversation(ctx context.Context, actor models.Actor, key models.ConversationKey) (models.Conversation, error) {
	conv, err := s.conversation(ctx, actor, key)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("service.Service.GetConversation: %w", err)
	}
	return conv, nil
}

// CanSend reports whether actor may post the next message, along with the
// messages the answer was derived from.
func (s *Service) CanSend(ctx context.Context, actor models.Actor, key models.ConversationKey) (bool, []models.Message, error) {
	conv, err := s.conversation(ctx, actor, key)
	if err != nil {
		return false, nil, fmt.Errorf("service.Service.CanSend: %w", err)
	}
	return conv.CanSendAs(actor.Role), conv.Messages, nil
}

// SendMessage posts content as actor. The gate is evaluated again under the
// bid row lock when the message is stored.
func (s *Service) SendMessage(ctx context.Context, actor models.Actor, key models.ConversationKey, content string) (msg models.Message, err error) {
	defer func() {
		label := resultLabel(err)
		if errors.Is(err, models.ErrMessageLimitReached) {
			label = "limited"
		}
		messagesSent.WithLabelValues(label).Inc()
	}()

	content = strings.TrimSpace(content)
	if len(content) == 0 {
		return models.Message{}, fmt.Errorf("service.Service.SendMessage: %w: empty message", models.ErrInvalidInput)
	}

	_, err = s.conversation(ctx, actor, key)
	if err != nil {
		return models.Message{}, fmt.Errorf("service.Service.SendMessage: %w", err)
	}

	msg, err = s.repo.SendMessage(ctx, models.Message{
		MissionId:    key.MissionId,
		ContractorId: key.ContractorId,
		SenderId:     actor.Id,
		SenderRole:   actor.Role,
		Content:      content,
	})
	if err != nil {
		return models.Message{}, fmt.Errorf("service.Service.SendMessage: %w", err)
	}
	return msg, nil
}

// MarkRead stamps the counterpart's unread messages as read by actor.
func (s *Service) MarkRead(ctx context.Context, actor models.Actor, key models.ConversationKey) (int64, error) {
	_, err := s.conversation(ctx, actor, key)
	if err != nil {
		return 0, fmt.Errorf("service.Service.MarkRead: %w", err)
	}

	n, err := s.repo.MarkMessagesRead(ctx, key.MissionId, key.ContractorId, actor.Role)
	if err != nil {
		return 0, fmt.Errorf("service.Service.MarkRead: %w", err)
	}
	return n, nil
}
