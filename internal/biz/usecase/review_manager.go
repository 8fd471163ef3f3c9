package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

// ReviewConfig contains review workflow configuration
type ReviewConfig struct {
	TTL                 time.Duration // How long admins have to decide
	MaxAnnounceAttempts int           // Announcement attempts before a pending request is left to expire
}

// DefaultReviewConfig returns default review configuration
func DefaultReviewConfig() ReviewConfig {
	return ReviewConfig{
		TTL:                 24 * time.Hour,
		MaxAnnounceAttempts: 5,
	}
}

// ModerationReviewManager runs the pending -> prompted -> approved/rejected/expired workflow
type ModerationReviewManager struct {
	store     repo.ReviewRepo
	announcer repo.ReviewAnnouncer
	executor  repo.ModerationExecutor
	config    ReviewConfig
	logger    zerolog.Logger

	mu         sync.Mutex
	announcing map[string]struct{}
	now        func() time.Time
	newID      func() string
}

// NewModerationReviewManager creates a review manager.
// announcer and executor may be nil when no transport is attached.
func NewModerationReviewManager(
	store repo.ReviewRepo,
	announcer repo.ReviewAnnouncer,
	executor repo.ModerationExecutor,
	config ReviewConfig,
	logger zerolog.Logger,
) *ModerationReviewManager {
	return &ModerationReviewManager{
		store:     store,
		announcer: announcer,
		executor:  executor,
		config:    config,
		logger:     logger.With().Str("component", "review").Logger(),
		announcing: make(map[string]struct{}),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// EnqueueRequests persists requests as pending and announces them.
// Announcement failures leave the request pending for RetryUnannounced.
func (m *ModerationReviewManager) EnqueueRequests(ctx context.Context, requests []domain.ReviewRequest) ([]domain.ReviewRequest, error) {
	stored, err := m.savePending(ctx, requests)
	for i := range stored {
		m.announce(ctx, &stored[i])
	}
	return stored, err
}

func (m *ModerationReviewManager) savePending(ctx context.Context, requests []domain.ReviewRequest) ([]domain.ReviewRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	stored := make([]domain.ReviewRequest, 0, len(requests))
	var errs []error
	for _, r := range requests {
		req := r
		if req.ID == "" {
			req.ID = m.newID()
		}
		ttl := m.config.TTL
		if req.TTLSeconds > 0 {
			ttl = time.Duration(req.TTLSeconds) * time.Second
		}
		req.TTLSeconds = int(ttl / time.Second)
		req.State = domain.ReviewPending
		req.CreatedAt = now
		req.ExpiresAt = now.Add(ttl)

		if err := m.store.Save(ctx, &req); err != nil {
			errs = append(errs, fmt.Errorf("save review %s: %w", req.ID, err))
			continue
		}
		m.logger.Info().
			Str("review_id", req.ID).
			Int64("chat_id", req.ChatID).
			Str("action", string(req.Decision.Action)).
			Int64("user_id", req.Decision.UserID).
			Msg("review request enqueued")
		stored = append(stored, req)
	}
	return stored, errors.Join(errs...)
}

// HandlePromptSent marks a request as prompted and records the announcement correlation
func (m *ModerationReviewManager) HandlePromptSent(ctx context.Context, ev domain.ReviewPromptSentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, err := m.store.Get(ctx, ev.RequestID)
	if err != nil {
		return err
	}
	return m.markPromptedLocked(ctx, req, ev.AnnouncementMessageID)
}

// HandleDecision applies an admin decision.
// Missing or expired requests report ReviewExpired with no side effect.
func (m *ModerationReviewManager) HandleDecision(ctx context.Context, ev domain.ReviewDecisionEvent) (domain.ReviewOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, err := m.resolve(ctx, ev)
	if errors.Is(err, domain.ErrReviewNotFound) {
		return domain.ReviewOutcome{RequestID: ev.RequestID, State: domain.ReviewExpired}, nil
	}
	if err != nil {
		return domain.ReviewOutcome{}, err
	}

	outcome := domain.ReviewOutcome{RequestID: req.ID, State: req.State}
	if req.IsExpired(m.now()) {
		m.closeLocked(ctx, req, domain.ReviewExpired)
		outcome.State = domain.ReviewExpired
		return outcome, nil
	}
	if req.State.IsTerminal() {
		return outcome, domain.ErrReviewClosed
	}
	if !req.CanDecide(ev.DeciderUserID) {
		return outcome, domain.ErrNotAuthorized
	}

	if !ev.Approved {
		m.closeLocked(ctx, req, domain.ReviewRejected)
		outcome.State = domain.ReviewRejected
		m.logger.Info().Str("review_id", req.ID).Int64("decider", ev.DeciderUserID).Msg("review rejected")
		return outcome, nil
	}

	action, ok := domain.ActionFromDecision(req.Decision)
	if ok && m.executor != nil {
		event := domain.ModerationEvent{ChatID: req.ChatID, Actions: []domain.Action{action}}
		if err := m.executor.ExecuteModeration(ctx, event); err != nil {
			// request stays open so the admin can retry
			return outcome, fmt.Errorf("execute approved review %s: %w", req.ID, err)
		}
		outcome.Executed = true
	}
	m.closeLocked(ctx, req, domain.ReviewApproved)
	outcome.State = domain.ReviewApproved
	m.logger.Info().
		Str("review_id", req.ID).
		Int64("decider", ev.DeciderUserID).
		Bool("executed", outcome.Executed).
		Msg("review approved")
	return outcome, nil
}

// RetryUnannounced expires overdue requests and re-announces pending ones.
// It returns the number of requests announced.
func (m *ModerationReviewManager) RetryUnannounced(ctx context.Context) (int, error) {
	retry, err := m.sweep(ctx)
	if err != nil {
		return 0, err
	}

	announced := 0
	for _, req := range retry {
		if m.announce(ctx, req) {
			announced++
		}
	}
	return announced, nil
}

// sweep closes expired requests and returns the pending ones still worth announcing
func (m *ModerationReviewManager) sweep(ctx context.Context) ([]*domain.ReviewRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reqs, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	now := m.now()
	var retry []*domain.ReviewRequest
	for _, req := range reqs {
		switch {
		case req.IsExpired(now):
			m.closeLocked(ctx, req, domain.ReviewExpired)
		case req.State == domain.ReviewPending && req.AnnounceAttempts < m.config.MaxAnnounceAttempts:
			retry = append(retry, req)
		}
	}
	return retry, nil
}

// ListPending returns open requests ordered by creation time, chatID 0 means all chats
func (m *ModerationReviewManager) ListPending(ctx context.Context, chatID int64) ([]*domain.ReviewRequest, error) {
	reqs, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}

	now := m.now()
	out := make([]*domain.ReviewRequest, 0, len(reqs))
	for _, r := range reqs {
		if r.State.IsTerminal() || r.IsExpired(now) {
			continue
		}
		if chatID != 0 && r.ChatID != chatID {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *ModerationReviewManager) resolve(ctx context.Context, ev domain.ReviewDecisionEvent) (*domain.ReviewRequest, error) {
	if ev.RequestID != "" {
		req, err := m.store.Get(ctx, ev.RequestID)
		if err != nil {
			return nil, err
		}
		if ev.ChatID != 0 && req.ChatID != ev.ChatID {
			return nil, domain.ErrReviewNotFound
		}
		return req, nil
	}
	if ev.AnnouncementMessageID == 0 {
		return nil, domain.ErrReviewNotFound
	}
	return m.store.FindByAnnouncement(ctx, ev.ChatID, ev.AnnouncementMessageID)
}

// announce posts the request outside the lock so decisions on other requests
// are not held up by the transport. It reports whether the announcement was posted.
func (m *ModerationReviewManager) announce(ctx context.Context, req *domain.ReviewRequest) bool {
	if m.announcer == nil {
		return false
	}

	m.mu.Lock()
	if _, busy := m.announcing[req.ID]; busy {
		m.mu.Unlock()
		return false
	}
	m.announcing[req.ID] = struct{}{}
	m.mu.Unlock()

	msgID, sendErr := m.announcer.AnnounceReview(ctx, req)

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.announcing, req.ID)

	current, err := m.store.Get(ctx, req.ID)
	if err != nil || current.State.IsTerminal() {
		// closed while the announcement was in flight
		m.logger.Debug().Str("review_id", req.ID).Msg("review closed during announcement")
		return false
	}
	current.AnnounceAttempts++
	defer func() { *req = *current }()

	if sendErr != nil {
		m.logger.Warn().Err(sendErr).
			Str("review_id", current.ID).
			Int("attempt", current.AnnounceAttempts).
			Msg("review announcement failed")
		if err := m.store.Save(ctx, current); err != nil {
			m.logger.Error().Err(err).Str("review_id", current.ID).Msg("failed to save review")
		}
		return false
	}

	if err := m.markPromptedLocked(ctx, current, msgID); err != nil {
		m.logger.Error().Err(err).Str("review_id", current.ID).Msg("failed to record announcement")
	}
	return true
}

func (m *ModerationReviewManager) markPromptedLocked(ctx context.Context, req *domain.ReviewRequest, announcementMsgID int64) error {
	if req.State != domain.ReviewPending && req.State != domain.ReviewPrompted {
		return domain.ErrReviewClosed
	}
	req.State = domain.ReviewPrompted
	req.AnnouncementMessageID = announcementMsgID
	if err := m.store.Save(ctx, req); err != nil {
		return fmt.Errorf("save review %s: %w", req.ID, err)
	}
	if announcementMsgID != 0 {
		if err := m.store.LinkAnnouncement(ctx, req); err != nil {
			return fmt.Errorf("link announcement for %s: %w", req.ID, err)
		}
	}
	return nil
}

// closeLocked drops a request that reached a terminal state
func (m *ModerationReviewManager) closeLocked(ctx context.Context, req *domain.ReviewRequest, state domain.ReviewState) {
	prompted := req.AnnouncementMessageID != 0
	req.State = state
	if err := m.store.Delete(ctx, req); err != nil {
		m.logger.Error().Err(err).Str("review_id", req.ID).Msg("failed to delete review")
	}
	if prompted && m.announcer != nil {
		if err := m.announcer.ReviewClosed(ctx, req, state); err != nil {
			m.logger.Warn().Err(err).Str("review_id", req.ID).Msg("failed to update review announcement")
		}
	}
}
