package data

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

const (
	bufferPrefix         = "buffer:"
	historyPrefix        = "history:"
	reviewPrefix         = "review:req:"
	reviewAnnouncePrefix = "review:ann:"
)

func bufferKey(chatID int64) string  { return bufferPrefix + strconv.FormatInt(chatID, 10) }
func historyKey(chatID int64) string { return historyPrefix + strconv.FormatInt(chatID, 10) }

// bufferRepo persists buffer snapshots, one key per chat
type bufferRepo struct {
	store repo.StateStore
}

// NewBufferRepo creates a buffer snapshot repository
func NewBufferRepo(store repo.StateStore) repo.BufferRepo {
	return &bufferRepo{store: store}
}

// SaveSnapshot writes every chat in state and drops snapshots of chats that are now empty
func (r *bufferRepo) SaveSnapshot(ctx context.Context, state domain.BufferState, ttl time.Duration) error {
	existing, err := r.store.Keys(ctx, bufferPrefix)
	if err != nil {
		return fmt.Errorf("list buffer snapshots: %w", err)
	}

	var stale []string
	for _, k := range existing {
		id, err := strconv.ParseInt(strings.TrimPrefix(k, bufferPrefix), 10, 64)
		if err != nil || len(state[id]) == 0 {
			stale = append(stale, k)
		}
	}
	if err := r.store.Delete(ctx, stale...); err != nil {
		return fmt.Errorf("drop stale buffer snapshots: %w", err)
	}

	for chatID, msgs := range state {
		if len(msgs) == 0 {
			continue
		}
		data, err := json.Marshal(msgs)
		if err != nil {
			return fmt.Errorf("failed to encode buffer for chat %d: %w", chatID, err)
		}
		if err := r.store.Set(ctx, bufferKey(chatID), data, ttl); err != nil {
			return err
		}
	}
	return nil
}

// LoadSnapshot reads every persisted chat buffer, skipping undecodable ones
func (r *bufferRepo) LoadSnapshot(ctx context.Context) (domain.BufferState, error) {
	keys, err := r.store.Keys(ctx, bufferPrefix)
	if err != nil {
		return nil, fmt.Errorf("list buffer snapshots: %w", err)
	}

	state := make(domain.BufferState, len(keys))
	for _, k := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(k, bufferPrefix), 10, 64)
		if err != nil {
			continue
		}
		data, ok, err := r.store.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		var msgs []domain.BufferedMessage
		if err := json.Unmarshal(data, &msgs); err != nil {
			continue
		}
		state[id] = msgs
	}
	return state, nil
}

// chatStateRepo clears everything persisted for a chat
type chatStateRepo struct {
	store repo.StateStore
}

// NewChatStateRepo creates a chat state repository
func NewChatStateRepo(store repo.StateStore) repo.ChatStateRepo {
	return &chatStateRepo{store: store}
}

// ClearChat drops the buffer snapshot and history in one Delete
func (r *chatStateRepo) ClearChat(ctx context.Context, chatID int64) error {
	return r.store.Delete(ctx, bufferKey(chatID), historyKey(chatID))
}
