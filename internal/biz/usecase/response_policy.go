package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// ResponsePolicyConfig contains response selection configuration
type ResponsePolicyConfig struct {
	MaxLength int                         // Max reply length in characters (0 = no limit)
	Priority  []domain.ClassificationType // Earlier types win
}

// DefaultResponsePolicyConfig returns default response selection configuration
func DefaultResponsePolicyConfig() ResponsePolicyConfig {
	return ResponsePolicyConfig{
		MaxLength: 1000,
		Priority: []domain.ClassificationType{
			domain.ClassificationBotMention,
			domain.ClassificationViolation,
			domain.ClassificationNormal,
		},
	}
}

// ResponsePolicy picks at most one reply per batch
type ResponsePolicy struct {
	config ResponsePolicyConfig
}

// NewResponsePolicy creates a new response policy
func NewResponsePolicy(config ResponsePolicyConfig) *ResponsePolicy {
	return &ResponsePolicy{config: config}
}

// Select returns the highest-priority eligible reply, ties go to the earliest message
func (p *ResponsePolicy) Select(chatID int64, messages []domain.BufferedMessage, results []domain.ClassificationResult) *domain.AgentResponseDecision {
	byID := make(map[int64]domain.ClassificationResult, len(results))
	for _, r := range results {
		if _, ok := byID[r.MessageID]; !ok {
			byID[r.MessageID] = r
		}
	}

	var (
		best     *domain.AgentResponseDecision
		bestRank int
	)
	for _, msg := range messages {
		r, ok := byID[msg.MessageID]
		if !ok || !r.Classification.RequiresResponse {
			continue
		}
		text := strings.TrimSpace(r.ResponseText)
		if text == "" {
			continue
		}
		rank := p.rank(r.Classification.Type)
		if best != nil && rank >= bestRank {
			continue
		}
		best = &domain.AgentResponseDecision{
			ChatID:           chatID,
			MessageID:        msg.MessageID,
			Text:             truncateRunes(text, p.config.MaxLength),
			ReplyToMessageID: msg.MessageID,
		}
		bestRank = rank
	}
	return best
}

func (p *ResponsePolicy) rank(t domain.ClassificationType) int {
	for i, pt := range p.config.Priority {
		if pt == t {
			return i
		}
	}
	return len(p.config.Priority)
}

// truncateRunes cuts s to max characters, marking the cut with an ellipsis
func truncateRunes(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max == 1 {
		return string(runes[:1])
	}
	return strings.TrimRightFunc(string(runes[:max-1]), func(r rune) bool { return r == ' ' }) + "…"
}
