package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

// Telegram treats restrictions shorter than 30 seconds as permanent
const minRestrictSeconds = 30

func mutedPermissions() telego.ChatPermissions {
	f := false
	return telego.ChatPermissions{
		CanSendMessages:       &f,
		CanSendAudios:         &f,
		CanSendDocuments:      &f,
		CanSendPhotos:         &f,
		CanSendVideos:         &f,
		CanSendVideoNotes:     &f,
		CanSendVoiceNotes:     &f,
		CanSendPolls:          &f,
		CanSendOtherMessages:  &f,
		CanAddWebPagePreviews: &f,
	}
}

func unmutedPermissions() telego.ChatPermissions {
	t := true
	return telego.ChatPermissions{
		CanSendMessages:       &t,
		CanSendAudios:         &t,
		CanSendDocuments:      &t,
		CanSendPhotos:         &t,
		CanSendVideos:         &t,
		CanSendVideoNotes:     &t,
		CanSendVoiceNotes:     &t,
		CanSendPolls:          &t,
		CanSendOtherMessages:  &t,
		CanAddWebPagePreviews: &t,
	}
}

// untilDate returns the unix time a restriction ends, 0 for permanent
func (c *Client) untilDate(minutes int) int64 {
	if minutes <= 0 {
		return 0
	}
	d := time.Duration(minutes) * time.Minute
	if d < minRestrictSeconds*time.Second {
		d = minRestrictSeconds * time.Second
	}
	return c.now().Add(d).Unix()
}

// ExecuteModeration runs every action of the event, continuing past failures
func (c *Client) ExecuteModeration(ctx context.Context, event domain.ModerationEvent) error {
	var errs []error
	for _, a := range event.Actions {
		if err := c.executeAction(ctx, event.ChatID, a); err != nil {
			c.logger.Warn().Err(err).
				Int64("chat_id", event.ChatID).
				Str("kind", string(a.Kind)).
				Int64("user_id", a.UserID).
				Msg("moderation action failed")
			errs = append(errs, fmt.Errorf("%s: %w", a.Kind, err))
			continue
		}
		c.logger.Info().
			Int64("chat_id", event.ChatID).
			Str("kind", string(a.Kind)).
			Int64("user_id", a.UserID).
			Msg("moderation action executed")
	}
	return errors.Join(errs...)
}

func (c *Client) executeAction(ctx context.Context, chatID int64, a domain.Action) error {
	chat := tu.ID(chatID)

	switch a.Kind {
	case domain.KindDeleteMessage:
		if a.MessageID == 0 {
			return errors.New("no message to delete")
		}
		return c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{ChatID: chat, MessageID: int(a.MessageID)})

	case domain.KindWarnUser:
		text := a.Text
		if text == "" {
			text = c.config.Strings.DefaultWarning
		}
		if text == "" {
			return nil
		}
		msg := tu.Message(chat, text)
		if a.TriggerMessageID != 0 {
			msg = msg.WithReplyParameters(&telego.ReplyParameters{
				MessageID:                int(a.TriggerMessageID),
				AllowSendingWithoutReply: true,
			})
		}
		_, err := c.bot.SendMessage(ctx, msg)
		return err

	case domain.KindMuteUser:
		return c.bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
			ChatID:      chat,
			UserID:      a.UserID,
			Permissions: mutedPermissions(),
			UntilDate:   c.untilDate(a.DurationMinutes),
		})

	case domain.KindUnmuteUser:
		return c.bot.RestrictChatMember(ctx, &telego.RestrictChatMemberParams{
			ChatID:      chat,
			UserID:      a.UserID,
			Permissions: unmutedPermissions(),
		})

	case domain.KindKickUser:
		// a kick is a ban lifted right away so the user can rejoin
		if err := c.bot.BanChatMember(ctx, &telego.BanChatMemberParams{ChatID: chat, UserID: a.UserID}); err != nil {
			return err
		}
		return c.bot.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{ChatID: chat, UserID: a.UserID, OnlyIfBanned: true})

	case domain.KindBanUser:
		return c.bot.BanChatMember(ctx, &telego.BanChatMemberParams{
			ChatID:    chat,
			UserID:    a.UserID,
			UntilDate: c.untilDate(a.DurationMinutes),
		})

	case domain.KindUnbanUser:
		return c.bot.UnbanChatMember(ctx, &telego.UnbanChatMemberParams{ChatID: chat, UserID: a.UserID, OnlyIfBanned: true})
	}
	return fmt.Errorf("unsupported action %q", a.Kind)
}

// SendResponse posts the agent reply, threaded to the triggering message
func (c *Client) SendResponse(ctx context.Context, event domain.AgentResponseEvent) error {
	msg := tu.Message(tu.ID(event.ChatID), event.Text)
	if event.ReplyToMessageID != 0 {
		msg = msg.WithReplyParameters(&telego.ReplyParameters{
			MessageID:                int(event.ReplyToMessageID),
			AllowSendingWithoutReply: true,
		})
	}
	if _, err := c.bot.SendMessage(ctx, msg); err != nil {
		return fmt.Errorf("send response: %w", err)
	}
	return nil
}

// TypingStarted shows the typing hint
func (c *Client) TypingStarted(ctx context.Context, chatID int64) {
	_ = c.bot.SendChatAction(ctx, tu.ChatAction(tu.ID(chatID), telego.ChatActionTyping))
}

// TypingStopped is a no-op: the hint clears on its own or when a message is sent
func (c *Client) TypingStopped(ctx context.Context, chatID int64) {}

var (
	_ repo.ModerationExecutor = (*Client)(nil)
	_ repo.Responder          = (*Client)(nil)
	_ repo.TypingNotifier     = (*Client)(nil)
	_ repo.ReviewAnnouncer    = (*Client)(nil)
	_ repo.AdminLookup        = (*Client)(nil)
)
