package biz

import (
	"github.com/rs/zerolog"

	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
	"github.com/DevRickLin/chat-moderator/internal/biz/usecase"
)

// Options configures the usecase layer
type Options struct {
	Buffer     usecase.BufferConfig
	Retry      usecase.RetryPolicy
	Moderation usecase.ModerationPolicyConfig
	Response   usecase.ResponsePolicyConfig
	Review     usecase.ReviewConfig
}

// Usecases contains all usecases
type Usecases struct {
	Buffer       *usecase.MessageBuffer
	Classifier   *usecase.Classifier
	Assembler    *usecase.PromptAssembler
	Orchestrator *usecase.DecisionOrchestrator
	ReviewBuild  *usecase.ReviewRequestBuilder
	Reviews      *usecase.ModerationReviewManager
}

// NewUsecases builds the usecase layer.
// announcer and executor may be nil when no transport is attached.
func NewUsecases(
	opts Options,
	provider repo.AIProvider,
	reviewRepo repo.ReviewRepo,
	announcer repo.ReviewAnnouncer,
	executor repo.ModerationExecutor,
	logger zerolog.Logger,
) *Usecases {
	return &Usecases{
		Buffer:     usecase.NewMessageBuffer(nil, opts.Buffer),
		Classifier: usecase.NewClassifier(provider, opts.Retry, usecase.NewResponseParser(), logger),
		Assembler:  usecase.NewPromptAssembler(),
		Orchestrator: usecase.NewDecisionOrchestrator(
			usecase.NewModerationPolicy(opts.Moderation),
			usecase.NewResponsePolicy(opts.Response),
		),
		ReviewBuild: usecase.NewReviewRequestBuilder(opts.Review.TTL),
		Reviews:     usecase.NewModerationReviewManager(reviewRepo, announcer, executor, opts.Review, logger),
	}
}
