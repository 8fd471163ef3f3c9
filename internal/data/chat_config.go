package data

import (
	"context"
	"sync"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

// ChatConfigDefaults apply to chats without an explicit entry
type ChatConfigDefaults struct {
	Enabled bool
	Spec    *domain.PromptSpec
}

// StaticChatConfigRepo serves chat configuration loaded from file.
// Replace swaps the whole set when the file changes.
type StaticChatConfigRepo struct {
	mu       sync.RWMutex
	chats    map[int64]domain.ChatConfig
	defaults ChatConfigDefaults
}

// NewStaticChatConfigRepo creates a chat config repository from fixed entries
func NewStaticChatConfigRepo(chats []domain.ChatConfig, defaults ChatConfigDefaults) *StaticChatConfigRepo {
	r := &StaticChatConfigRepo{}
	r.Replace(chats, defaults)
	return r
}

// Replace installs a new set of chat entries
func (r *StaticChatConfigRepo) Replace(chats []domain.ChatConfig, defaults ChatConfigDefaults) {
	m := make(map[int64]domain.ChatConfig, len(chats))
	for _, c := range chats {
		m[c.ChatID] = c
	}
	r.mu.Lock()
	r.chats = m
	r.defaults = defaults
	r.mu.Unlock()
}

func (r *StaticChatConfigRepo) GetChatConfig(ctx context.Context, chatID int64) (*domain.ChatConfig, error) {
	r.mu.RLock()
	cfg, ok := r.chats[chatID]
	defaults := r.defaults
	r.mu.RUnlock()

	if !ok {
		cfg = domain.ChatConfig{ChatID: chatID, GroupAgentEnabled: defaults.Enabled}
	}
	if cfg.Spec == nil {
		cfg.Spec = defaults.Spec
	}
	return &cfg, nil
}

var _ repo.ChatConfigRepo = (*StaticChatConfigRepo)(nil)
