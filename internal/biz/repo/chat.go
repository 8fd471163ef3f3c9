package repo

import (
	"context"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// ChatConfigRepo looks up per-chat configuration
type ChatConfigRepo interface {
	GetChatConfig(ctx context.Context, chatID int64) (*domain.ChatConfig, error)
}

// AdminLookup lists the admins of a chat
type AdminLookup interface {
	ListAdmins(ctx context.Context, chatID int64) ([]domain.ChatAdmin, error)
}
