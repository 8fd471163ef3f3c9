package data

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

// historyRepo stores each chat's history as one JSON list
type historyRepo struct {
	store repo.StateStore
}

// NewHistoryRepo creates a history repository
func NewHistoryRepo(store repo.StateStore) repo.HistoryRepo {
	return &historyRepo{store: store}
}

func (r *historyRepo) Load(ctx context.Context, chatID int64) ([]domain.StoredHistoryEntry, error) {
	data, ok, err := r.store.Get(ctx, historyKey(chatID))
	if err != nil || !ok {
		return nil, err
	}
	var entries []domain.StoredHistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode history for chat %d: %w", chatID, err)
	}
	return entries, nil
}

func (r *historyRepo) Save(ctx context.Context, chatID int64, entries []domain.StoredHistoryEntry, ttl time.Duration) error {
	if len(entries) == 0 {
		return r.store.Delete(ctx, historyKey(chatID))
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to encode history for chat %d: %w", chatID, err)
	}
	return r.store.Set(ctx, historyKey(chatID), data, ttl)
}
