package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

type adminCacheEntry struct {
	admins  []domain.ChatAdmin
	fetched time.Time
}

// ListAdmins returns the human administrators of a chat, cached for AdminCacheTTL
func (c *Client) ListAdmins(ctx context.Context, chatID int64) ([]domain.ChatAdmin, error) {
	c.adminsMu.Lock()
	entry, ok := c.admins[chatID]
	c.adminsMu.Unlock()
	if ok && c.now().Sub(entry.fetched) < c.config.AdminCacheTTL {
		return entry.admins, nil
	}

	members, err := c.bot.GetChatAdministrators(ctx, &telego.GetChatAdministratorsParams{ChatID: tu.ID(chatID)})
	if err != nil {
		if ok {
			// stale list beats none
			return entry.admins, nil
		}
		return nil, fmt.Errorf("get chat administrators: %w", err)
	}

	admins := make([]domain.ChatAdmin, 0, len(members))
	for _, m := range members {
		u := m.MemberUser()
		if u.IsBot {
			continue
		}
		admins = append(admins, domain.ChatAdmin{UserID: u.ID, Username: u.Username, FirstName: u.FirstName})
	}

	c.adminsMu.Lock()
	c.admins[chatID] = adminCacheEntry{admins: admins, fetched: c.now()}
	c.adminsMu.Unlock()
	return admins, nil
}

func (c *Client) isAdmin(ctx context.Context, chatID, userID int64) bool {
	admins, err := c.ListAdmins(ctx, chatID)
	if err != nil {
		c.logger.Debug().Err(err).Int64("chat_id", chatID).Msg("admin lookup failed")
		return false
	}
	for _, a := range admins {
		if a.UserID == userID {
			return true
		}
	}
	return false
}
