package repo

import (
	"context"
	"time"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// BufferRepo persists pending-buffer snapshots
type BufferRepo interface {
	SaveSnapshot(ctx context.Context, state domain.BufferState, ttl time.Duration) error
	LoadSnapshot(ctx context.Context) (domain.BufferState, error)
}

// HistoryRepo persists the ordered per-chat history
type HistoryRepo interface {
	Load(ctx context.Context, chatID int64) ([]domain.StoredHistoryEntry, error)
	Save(ctx context.Context, chatID int64, entries []domain.StoredHistoryEntry, ttl time.Duration) error
}

// ChatStateRepo drops persisted state for a chat
type ChatStateRepo interface {
	ClearChat(ctx context.Context, chatID int64) error
}

// ReviewRepo persists review requests and their announcement correlation
type ReviewRepo interface {
	Save(ctx context.Context, req *domain.ReviewRequest) error
	Get(ctx context.Context, id string) (*domain.ReviewRequest, error)
	FindByAnnouncement(ctx context.Context, chatID, announcementMsgID int64) (*domain.ReviewRequest, error)
	LinkAnnouncement(ctx context.Context, req *domain.ReviewRequest) error
	Delete(ctx context.Context, req *domain.ReviewRequest) error
	List(ctx context.Context) ([]*domain.ReviewRequest, error)
}
