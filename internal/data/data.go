package data

import (
	"context"
	"fmt"

	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

// StoreConfig selects and locates the state store backend
type StoreConfig struct {
	Backend string // sqlite, postgres or memory
	DBPath  string
	DSN     string
}

// Store is a repo.StateStore that can drop expired rows
type Store interface {
	repo.StateStore
	PurgeExpired(ctx context.Context) (int64, error)
}

// NewStateStore opens the configured backend
func NewStateStore(cfg StoreConfig) (Store, error) {
	switch cfg.Backend {
	case "", string(DialectSQLite):
		s, err := NewSQLiteStateStore(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case string(DialectPostgres):
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres state store requires a DSN")
		}
		s, err := NewPostgresStateStore(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStateStore(), nil
	default:
		return nil, fmt.Errorf("unknown state store backend %q", cfg.Backend)
	}
}

// Repositories contains all repositories
type Repositories struct {
	Store     Store
	Buffer    repo.BufferRepo
	History   repo.HistoryRepo
	ChatState repo.ChatStateRepo
	Review    repo.ReviewRepo
}

// NewRepositories creates all repositories on top of one state store
func NewRepositories(store Store) *Repositories {
	return &Repositories{
		Store:     store,
		Buffer:    NewBufferRepo(store),
		History:   NewHistoryRepo(store),
		ChatState: NewChatStateRepo(store),
		Review:    NewReviewRepo(store),
	}
}
