package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Broadcaster fans a message history out to every connected client
type Broadcaster interface {
	Broadcast(messages []models.Message)
}

// ChatService owns the append-only message log
type ChatService struct {
	store          store.Store
	broadcaster    Broadcaster
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewChatService creates a new chat service
func NewChatService(store store.Store, broadcaster Broadcaster, eventPublisher EventPublisher) *ChatService {
	return &ChatService{
		store:          store,
		broadcaster:    broadcaster,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// PostMessage appends a message and broadcasts the full updated history.
// A blank author is rejected; otherwise the author is stored as sent.
func (s *ChatService) PostMessage(ctx context.Context, author, body string) (*models.Message, error) {
	ctx, span := util.StartSpan(ctx, "ChatService.PostMessage")
	defer span.End()

	if strings.TrimSpace(author) == "" {
		util.ChatMessagesRejectedTotal.WithLabelValues("empty_user").Inc()
		return nil, validationf("user is required")
	}

	msg := &models.Message{User: author, Message: body}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	util.ChatMessagesTotal.Inc()

	history, err := s.store.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load message history: %w", err)
	}
	s.broadcaster.Broadcast(history)

	event := &models.ChatMessagePostedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeChatMessagePosted,
			Timestamp: time.Now(),
		},
		MessageID: msg.ID,
		User:      msg.User,
		Seq:       msg.Seq,
	}
	if err := s.eventPublisher.PublishChatMessagePosted(ctx, event); err != nil {
		s.logger.Error("Failed to publish ChatMessagePosted event", zap.Error(err))
	}

	return msg, nil
}

// History returns every message in creation order
func (s *ChatService) History(ctx context.Context) ([]models.Message, error) {
	ctx, span := util.StartSpan(ctx, "ChatService.History")
	defer span.End()

	messages, err := s.store.ListMessages(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load message history: %w", err)
	}
	return messages, nil
}
