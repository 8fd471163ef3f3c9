package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mymmrac/telego"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// botAPI is the subset of *telego.Bot the client uses
type botAPI interface {
	Username() string
	UpdatesViaLongPolling(ctx context.Context, params *telego.GetUpdatesParams, options ...telego.LongPollingOption) (<-chan telego.Update, error)
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	EditMessageText(ctx context.Context, params *telego.EditMessageTextParams) (*telego.Message, error)
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
	SendChatAction(ctx context.Context, params *telego.SendChatActionParams) error
	RestrictChatMember(ctx context.Context, params *telego.RestrictChatMemberParams) error
	BanChatMember(ctx context.Context, params *telego.BanChatMemberParams) error
	UnbanChatMember(ctx context.Context, params *telego.UnbanChatMemberParams) error
	GetChatAdministrators(ctx context.Context, params *telego.GetChatAdministratorsParams) ([]telego.ChatMember, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
}

// Handler receives converted updates
type Handler interface {
	HandleMessage(ctx context.Context, msg domain.BufferedMessage) error
	HandleReviewDecision(ctx context.Context, ev domain.ReviewDecisionEvent) (domain.ReviewOutcome, error)
}

// Config contains Telegram client configuration
type Config struct {
	Token         string
	Proxy         string
	AdminCacheTTL time.Duration
	Strings       domain.CannedStrings
}

// Client is the Telegram bot client.
// It implements the moderation executor, responder, typing notifier,
// review announcer and admin lookup ports.
type Client struct {
	bot     botAPI
	config  Config
	logger  zerolog.Logger
	handler Handler
	now     func() time.Time

	adminsMu sync.Mutex
	admins   map[int64]adminCacheEntry
	seen     *seenCache

	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a new Telegram client
func NewClient(config Config, logger zerolog.Logger) (*Client, error) {
	var opts []telego.BotOption
	if config.Proxy != "" {
		proxyURL, err := url.Parse(config.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", config.Proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	}

	bot, err := telego.NewBot(config.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newClient(bot, config, logger), nil
}

func newClient(bot botAPI, config Config, logger zerolog.Logger) *Client {
	if config.AdminCacheTTL <= 0 {
		config.AdminCacheTTL = 10 * time.Minute
	}
	return &Client{
		bot:    bot,
		config: config,
		logger: logger.With().Str("component", "telegram").Logger(),
		now:    time.Now,
		admins: make(map[int64]adminCacheEntry),
		seen:   newSeenCache(),
	}
}

// Start begins long polling and dispatches updates to handler
func (c *Client) Start(ctx context.Context, handler Handler) error {
	c.handler = handler

	pollCtx, cancel := context.WithCancel(ctx)
	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("start long polling: %w", err)
	}
	c.cancel = cancel
	c.done = make(chan struct{})

	c.logger.Info().Str("username", c.bot.Username()).Msg("telegram bot connected")

	go func() {
		defer close(c.done)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					c.logger.Info().Msg("telegram updates channel closed")
					return
				}
				c.dispatch(pollCtx, update)
			}
		}
	}()
	return nil
}

// Stop cancels long polling and waits for the dispatch loop to exit
func (c *Client) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.logger.Info().Msg("telegram bot stopped")
}

func (c *Client) dispatch(ctx context.Context, update telego.Update) {
	switch {
	case update.Message != nil:
		c.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		c.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (c *Client) handleMessage(ctx context.Context, m *telego.Message) {
	msg, ok := toBufferedMessage(m)
	if !ok || c.handler == nil {
		return
	}
	if !c.seen.firstSeen(messageKey{chatID: msg.ChatID, messageID: msg.MessageID}, c.now()) {
		c.logger.Debug().Int64("chat_id", msg.ChatID).Int64("message_id", msg.MessageID).Msg("duplicate message ignored")
		return
	}
	msg.IsAdmin = c.isAdmin(ctx, msg.ChatID, msg.UserID)

	if err := c.handler.HandleMessage(ctx, msg); err != nil {
		c.logger.Warn().Err(err).
			Int64("chat_id", msg.ChatID).
			Int64("message_id", msg.MessageID).
			Msg("failed to buffer message")
	}
}

func isGroupChat(chat telego.Chat) bool {
	return chat.Type == "group" || chat.Type == "supergroup"
}

// toBufferedMessage converts a group text or caption message, ok is false for anything else
func toBufferedMessage(m *telego.Message) (domain.BufferedMessage, bool) {
	if m == nil || m.From == nil || m.From.IsBot || !isGroupChat(m.Chat) {
		return domain.BufferedMessage{}, false
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if strings.TrimSpace(text) == "" {
		return domain.BufferedMessage{}, false
	}

	msg := domain.BufferedMessage{
		ChatID:    m.Chat.ID,
		UserID:    m.From.ID,
		MessageID: int64(m.MessageID),
		Text:      text,
		Timestamp: time.Unix(m.Date, 0).UTC(),
		Username:  m.From.Username,
		FirstName: m.From.FirstName,
	}
	if r := m.ReplyToMessage; r != nil {
		msg.ReplyToMessageID = int64(r.MessageID)
		if r.From != nil {
			msg.ReplyToUserID = r.From.ID
		}
	}
	return msg, true
}
