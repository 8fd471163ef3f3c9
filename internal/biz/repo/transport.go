package repo

import (
	"context"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// ModerationExecutor carries out moderation events in the chat
type ModerationExecutor interface {
	ExecuteModeration(ctx context.Context, event domain.ModerationEvent) error
}

// Responder posts agent replies
type Responder interface {
	SendResponse(ctx context.Context, event domain.AgentResponseEvent) error
}

// TypingNotifier shows or clears the typing hint
type TypingNotifier interface {
	TypingStarted(ctx context.Context, chatID int64)
	TypingStopped(ctx context.Context, chatID int64)
}

// ReviewAnnouncer posts a review prompt and returns its message id
type ReviewAnnouncer interface {
	AnnounceReview(ctx context.Context, req *domain.ReviewRequest) (announcementMsgID int64, err error)
	// ReviewClosed updates the announcement once a request reaches a terminal state
	ReviewClosed(ctx context.Context, req *domain.ReviewRequest, state domain.ReviewState) error
}
