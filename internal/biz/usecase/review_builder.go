package usecase

import (
	"fmt"
	"strings"
	"time"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

const maxReviewContextChars = 300

// ReviewRequestBuilder separates kick/ban decisions from the ones executed immediately
type ReviewRequestBuilder struct {
	ttl time.Duration
}

// NewReviewRequestBuilder creates a new review request builder
func NewReviewRequestBuilder(ttl time.Duration) *ReviewRequestBuilder {
	return &ReviewRequestBuilder{ttl: ttl}
}

// Build returns one request per gated decision plus every other decision in batch order
func (b *ReviewRequestBuilder) Build(chatID int64, resolutions []domain.AgentResolution, admins []domain.ChatAdmin) ([]domain.ReviewRequest, []domain.ModerationDecision) {
	var (
		requests  []domain.ReviewRequest
		immediate []domain.ModerationDecision
	)

	mentions := make([]string, 0, len(admins))
	adminIDs := make([]int64, 0, len(admins))
	for _, a := range admins {
		if m := a.Mention(); m != "" {
			mentions = append(mentions, m)
		}
		adminIDs = append(adminIDs, a.UserID)
	}

	for _, res := range resolutions {
		for _, d := range res.Moderation {
			if !d.Action.RequiresReview() {
				immediate = append(immediate, d)
				continue
			}
			requests = append(requests, domain.ReviewRequest{
				ChatID:         chatID,
				Decision:       d,
				MessageContext: reviewContext(res.Message, d),
				AdminMentions:  append([]string(nil), mentions...),
				AdminUserIDs:   append([]int64(nil), adminIDs...),
				TTLSeconds:     int(b.ttl / time.Second),
				State:          domain.ReviewPending,
			})
		}
	}
	return requests, immediate
}

func reviewContext(msg domain.BufferedMessage, d domain.ModerationDecision) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (id %d): %s", msg.DisplayName(), msg.UserID, truncateRunes(strings.TrimSpace(msg.Text), maxReviewContextChars))
	if d.UserID != 0 && d.UserID != msg.UserID {
		fmt.Fprintf(&sb, "\ntarget user: %d", d.UserID)
	}
	if d.DurationMinutes > 0 {
		fmt.Fprintf(&sb, "\nduration: %d min", d.DurationMinutes)
	}
	return sb.String()
}

// ImmediateEvent converts decisions into one moderation event, nil when nothing is actionable
func ImmediateEvent(chatID int64, decisions []domain.ModerationDecision) *domain.ModerationEvent {
	ev := &domain.ModerationEvent{ChatID: chatID}
	for _, d := range decisions {
		if a, ok := domain.ActionFromDecision(d); ok {
			ev.Actions = append(ev.Actions, a)
		}
	}
	if len(ev.Actions) == 0 {
		return nil
	}
	return ev
}
