package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

// Classifier calls the AI provider with bounded retry and parses its output
type Classifier struct {
	provider repo.AIProvider
	policy   RetryPolicy
	parser   *ResponseParser
	logger   zerolog.Logger
}

// NewClassifier creates a new classifier
func NewClassifier(provider repo.AIProvider, policy RetryPolicy, parser *ResponseParser, logger zerolog.Logger) *Classifier {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if parser == nil {
		parser = NewResponseParser()
	}
	return &Classifier{
		provider: provider,
		policy:   policy,
		parser:   parser,
		logger:   logger.With().Str("component", "classifier").Logger(),
	}
}

// ClassifyWithRetry returns an empty batch when every attempt fails or ctx is done
func (c *Classifier) ClassifyWithRetry(ctx context.Context, req repo.ClassifyRequest, allowed map[int64]struct{}) domain.ParsedBatch {
	empty := domain.ParsedBatch{Results: []domain.ClassificationResult{}}

	for attempt := 1; ; attempt++ {
		resp, err := c.provider.ClassifyBatch(ctx, req)
		if err == nil {
			if resp == nil {
				return empty
			}
			results := c.parser.Parse(resp.Text, allowed)
			ev := c.logger.Debug().Int64("chat_id", req.ChatID).Int("attempt", attempt).Int("results", len(results))
			if resp.Usage != nil {
				ev = ev.Int("total_tokens", resp.Usage.TotalTokens)
			}
			ev.Msg("batch classified")
			return domain.ParsedBatch{Results: results}
		}

		decision := c.policy.Decide(attempt, err)
		c.logger.Warn().Err(err).
			Int64("chat_id", req.ChatID).
			Int("attempt", attempt).
			Bool("retry", decision.ShouldRetry).
			Msg("classifier call failed")
		if !decision.ShouldRetry {
			return empty
		}
		if !sleepCtx(ctx, decision.Delay) {
			return empty
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
