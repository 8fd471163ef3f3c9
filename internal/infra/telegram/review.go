package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

const (
	callbackPrefix  = "rv:"
	callbackApprove = "a"
	callbackReject  = "r"
)

func callbackData(approve bool, requestID string) string {
	verb := callbackReject
	if approve {
		verb = callbackApprove
	}
	return callbackPrefix + verb + ":" + requestID
}

// parseCallbackData decodes "rv:a:<id>" and "rv:r:<id>"
func parseCallbackData(data string) (approve bool, requestID string, ok bool) {
	rest, found := strings.CutPrefix(data, callbackPrefix)
	if !found {
		return false, "", false
	}
	verb, id, found := strings.Cut(rest, ":")
	if !found || id == "" {
		return false, "", false
	}
	switch verb {
	case callbackApprove:
		return true, id, true
	case callbackReject:
		return false, id, true
	}
	return false, "", false
}

func (c *Client) announcementText(req *domain.ReviewRequest) string {
	tmpl := c.config.Strings.ReviewAnnouncement
	if tmpl == "" {
		tmpl = "{{mentions}} review required: {{action}}\n{{context}}"
	}
	action := string(req.Decision.Action)
	if req.Decision.DurationMinutes > 0 {
		action = fmt.Sprintf("%s (%d min)", action, req.Decision.DurationMinutes)
	}
	r := strings.NewReplacer(
		"{{mentions}}", strings.Join(req.AdminMentions, " "),
		"{{action}}", action,
		"{{context}}", req.MessageContext,
	)
	return strings.TrimSpace(r.Replace(tmpl))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// AnnounceReview posts the review prompt with approve/reject buttons
func (c *Client) AnnounceReview(ctx context.Context, req *domain.ReviewRequest) (int64, error) {
	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(orDefault(c.config.Strings.ReviewApprove, "Approve")).WithCallbackData(callbackData(true, req.ID)),
			tu.InlineKeyboardButton(orDefault(c.config.Strings.ReviewReject, "Reject")).WithCallbackData(callbackData(false, req.ID)),
		),
	)
	msg := tu.Message(tu.ID(req.ChatID), c.announcementText(req)).WithReplyMarkup(keyboard)
	if req.Decision.MessageID != 0 {
		msg = msg.WithReplyParameters(&telego.ReplyParameters{
			MessageID:                int(req.Decision.MessageID),
			AllowSendingWithoutReply: true,
		})
	}

	sent, err := c.bot.SendMessage(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("send review announcement: %w", err)
	}
	return int64(sent.MessageID), nil
}

func (c *Client) stateText(state domain.ReviewState) string {
	switch state {
	case domain.ReviewApproved:
		return orDefault(c.config.Strings.ReviewApproved, "Approved.")
	case domain.ReviewRejected:
		return orDefault(c.config.Strings.ReviewRejected, "Rejected.")
	default:
		return orDefault(c.config.Strings.ReviewExpired, "Review expired.")
	}
}

// ReviewClosed replaces the announcement buttons with the final state
func (c *Client) ReviewClosed(ctx context.Context, req *domain.ReviewRequest, state domain.ReviewState) error {
	if req.AnnouncementMessageID == 0 {
		return nil
	}
	_, err := c.bot.EditMessageText(ctx, &telego.EditMessageTextParams{
		ChatID:    tu.ID(req.ChatID),
		MessageID: int(req.AnnouncementMessageID),
		Text:      c.announcementText(req) + "\n\n" + c.stateText(state),
	})
	if err != nil {
		return fmt.Errorf("edit review announcement: %w", err)
	}
	return nil
}

func (c *Client) handleCallbackQuery(ctx context.Context, q *telego.CallbackQuery) {
	approve, id, ok := parseCallbackData(q.Data)
	if !ok || c.handler == nil || q.Message == nil {
		return
	}

	chatID := q.Message.GetChat().ID
	ev := domain.ReviewDecisionEvent{
		ChatID:                chatID,
		RequestID:             id,
		AnnouncementMessageID: int64(q.Message.GetMessageID()),
		Approved:              approve,
		DeciderUserID:         q.From.ID,
	}

	var answer string
	if !c.isAdmin(ctx, chatID, q.From.ID) {
		answer = "Only chat administrators can decide."
	} else {
		outcome, err := c.handler.HandleReviewDecision(ctx, ev)
		answer = c.decisionAnswer(outcome, err)
		if err != nil && !errors.Is(err, domain.ErrNotAuthorized) && !errors.Is(err, domain.ErrReviewClosed) {
			c.logger.Error().Err(err).Str("review_id", id).Int64("chat_id", chatID).Msg("review decision failed")
		}
	}

	if err := c.bot.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: q.ID,
		Text:            answer,
	}); err != nil {
		c.logger.Debug().Err(err).Msg("failed to answer callback query")
	}
}

func (c *Client) decisionAnswer(outcome domain.ReviewOutcome, err error) string {
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		return "Only chat administrators can decide."
	case errors.Is(err, domain.ErrReviewClosed):
		return "Already decided."
	case err != nil:
		return "Failed, try again."
	}
	return c.stateText(outcome.State)
}
