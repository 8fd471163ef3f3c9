package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
	"github.com/DevRickLin/chat-moderator/internal/biz/usecase"
)

// IngestService is the entry point for inbound messages and admin actions
type IngestService struct {
	buffer    *usecase.MessageBuffer
	chatState repo.ChatStateRepo
	reviews   *usecase.ModerationReviewManager
	logger    zerolog.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	buffer *usecase.MessageBuffer,
	chatState repo.ChatStateRepo,
	reviews *usecase.ModerationReviewManager,
	logger zerolog.Logger,
) *IngestService {
	return &IngestService{
		buffer:    buffer,
		chatState: chatState,
		reviews:   reviews,
		logger:    logger.With().Str("component", "ingest").Logger(),
	}
}

// HandleMessage buffers a group message for the next batch.
// Messages without text are ignored.
func (s *IngestService) HandleMessage(ctx context.Context, msg domain.BufferedMessage) error {
	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	if err := s.buffer.Add(msg); err != nil {
		if errors.Is(err, domain.ErrBufferFull) {
			s.logger.Warn().Int64("chat_id", msg.ChatID).Int64("message_id", msg.MessageID).Msg("buffer full, message rejected")
		}
		return err
	}
	s.logger.Debug().Int64("chat_id", msg.ChatID).Int64("message_id", msg.MessageID).Msg("message buffered")
	return nil
}

// ResetChat clears the chat's pending messages and persisted state
func (s *IngestService) ResetChat(ctx context.Context, chatID int64) error {
	s.buffer.Clear(chatID)
	if s.chatState == nil {
		return nil
	}
	if err := s.chatState.ClearChat(ctx, chatID); err != nil {
		return fmt.Errorf("clear chat %d: %w", chatID, err)
	}
	s.logger.Info().Int64("chat_id", chatID).Msg("chat state reset")
	return nil
}

// HandleReviewDecision forwards an admin decision to the review workflow
func (s *IngestService) HandleReviewDecision(ctx context.Context, ev domain.ReviewDecisionEvent) (domain.ReviewOutcome, error) {
	if s.reviews == nil {
		return domain.ReviewOutcome{RequestID: ev.RequestID, State: domain.ReviewExpired}, nil
	}
	return s.reviews.HandleDecision(ctx, ev)
}

// PendingReviews lists open review requests, chatID 0 means all chats
func (s *IngestService) PendingReviews(ctx context.Context, chatID int64) ([]*domain.ReviewRequest, error) {
	if s.reviews == nil {
		return nil, nil
	}
	return s.reviews.ListPending(ctx, chatID)
}

// BufferSummary reports pending message counts per chat
func (s *IngestService) BufferSummary() []domain.BufferSummary {
	return s.buffer.Summary()
}
