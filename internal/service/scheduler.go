package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
	"github.com/DevRickLin/chat-moderator/internal/biz/usecase"
)

// SchedulerConfig contains batch processing configuration
type SchedulerConfig struct {
	BatchInterval       time.Duration
	MaxBatchSize        int
	MaxConcurrentChats  int
	PromptBudgetChars   int
	HistoryBudgetChars  int
	HistoryTTL          time.Duration
	BufferTTL           time.Duration
	ReviewSweepInterval time.Duration
	PurgeInterval       time.Duration
}

// DefaultSchedulerConfig returns default scheduler configuration
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		BatchInterval:       5 * time.Second,
		MaxBatchSize:        20,
		MaxConcurrentChats:  4,
		PromptBudgetChars:   24000,
		HistoryBudgetChars:  12000,
		HistoryTTL:          72 * time.Hour,
		BufferTTL:           24 * time.Hour,
		ReviewSweepInterval: time.Minute,
		PurgeInterval:       6 * time.Hour,
	}
}

// Purger drops expired state, implemented by the state store
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// SchedulerDeps wires the scheduler to its collaborators.
// Executor, Responder, Typing, Admins, Reviews and Purger may be nil.
type SchedulerDeps struct {
	Buffer       *usecase.MessageBuffer
	BufferRepo   repo.BufferRepo
	HistoryRepo  repo.HistoryRepo
	ChatConfigs  repo.ChatConfigRepo
	Admins       repo.AdminLookup
	Classifier   *usecase.Classifier
	Assembler    *usecase.PromptAssembler
	Orchestrator *usecase.DecisionOrchestrator
	ReviewBuild  *usecase.ReviewRequestBuilder
	Reviews      *usecase.ModerationReviewManager
	Executor     repo.ModerationExecutor
	Responder    repo.Responder
	Typing       repo.TypingNotifier
	Purger       Purger
}

// BatchProcessingScheduler drains chat buffers into classifier batches on a ticker
type BatchProcessingScheduler struct {
	deps   SchedulerDeps
	config SchedulerConfig
	logger zerolog.Logger
	now    func() time.Time

	procMu     sync.Mutex
	processing map[int64]struct{}

	// workers runs ticker-dispatched batches, bounded by MaxConcurrentChats
	workers errgroup.Group
	flushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBatchProcessingScheduler creates a new batch scheduler
func NewBatchProcessingScheduler(deps SchedulerDeps, config SchedulerConfig, logger zerolog.Logger) *BatchProcessingScheduler {
	if config.MaxBatchSize <= 0 {
		config.MaxBatchSize = 1
	}
	if config.MaxConcurrentChats <= 0 {
		config.MaxConcurrentChats = 1
	}
	if config.PromptBudgetChars <= 0 {
		config.PromptBudgetChars = DefaultSchedulerConfig().PromptBudgetChars
	}
	if config.HistoryBudgetChars <= 0 || config.HistoryBudgetChars > config.PromptBudgetChars {
		config.HistoryBudgetChars = config.PromptBudgetChars
	}
	s := &BatchProcessingScheduler{
		deps:       deps,
		config:     config,
		logger:     logger.With().Str("component", "scheduler").Logger(),
		now:        time.Now,
		processing: make(map[int64]struct{}),
	}
	s.workers.SetLimit(config.MaxConcurrentChats)
	return s
}

// Start restores the buffer snapshot and starts the background loops
func (s *BatchProcessingScheduler) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.restore(s.ctx)

	s.wg.Add(1)
	go s.batchLoop()
	if s.deps.Reviews != nil && s.config.ReviewSweepInterval > 0 {
		s.wg.Add(1)
		go s.every(s.config.ReviewSweepInterval, s.sweepReviews)
	}
	if s.deps.Purger != nil && s.config.PurgeInterval > 0 {
		s.wg.Add(1)
		go s.every(s.config.PurgeInterval, s.purge)
	}

	s.logger.Info().Dur("interval", s.config.BatchInterval).Msg("scheduler started")
}

// Stop stops the loops, waits for in-flight batches and flushes the buffer snapshot
func (s *BatchProcessingScheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	_ = s.workers.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.FlushSnapshot(ctx); err != nil {
		s.logger.Error().Err(err).Msg("failed to flush buffer snapshot")
	}
	s.logger.Info().Msg("scheduler stopped")
}

func (s *BatchProcessingScheduler) batchLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.BatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(s.ctx)
		}
	}
}

func (s *BatchProcessingScheduler) every(interval time.Duration, fn func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			fn(s.ctx)
		}
	}
}

func (s *BatchProcessingScheduler) restore(ctx context.Context) {
	if s.deps.BufferRepo == nil {
		return
	}
	state, err := s.deps.BufferRepo.LoadSnapshot(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load buffer snapshot, starting empty")
		return
	}
	s.deps.Buffer.Restore(state)
	if len(state) > 0 {
		s.logger.Info().Int("chats", len(state)).Msg("buffer snapshot restored")
	}
}

// FlushSnapshot persists the current buffer contents
func (s *BatchProcessingScheduler) FlushSnapshot(ctx context.Context) error {
	if s.deps.BufferRepo == nil {
		return nil
	}
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	return s.deps.BufferRepo.SaveSnapshot(ctx, s.deps.Buffer.Snapshot(), s.config.BufferTTL)
}

func (s *BatchProcessingScheduler) flush(ctx context.Context) {
	if err := s.FlushSnapshot(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to save buffer snapshot")
	}
}

// dispatch hands idle chats with pending messages to the worker pool and returns
// without waiting. Busy chats, and chats that find the pool full, wait for a later tick.
func (s *BatchProcessingScheduler) dispatch(ctx context.Context) int {
	ctx = context.WithoutCancel(ctx)

	started := 0
	for _, chatID := range s.deps.Buffer.ChatIDs() {
		if !s.acquire(chatID) {
			continue
		}
		chatID := chatID
		ok := s.workers.TryGo(func() error {
			defer s.release(chatID)
			s.runChat(ctx, chatID)
			s.flush(ctx)
			return nil
		})
		if !ok {
			s.release(chatID)
			break
		}
		started++
	}
	return started
}

// RunCycle processes every chat with pending messages once.
// Chats already in flight are skipped. It returns when all started batches finish.
func (s *BatchProcessingScheduler) RunCycle(ctx context.Context) {
	// batches run to completion even when the scheduler is stopping
	ctx = context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(s.config.MaxConcurrentChats)

	for _, chatID := range s.deps.Buffer.ChatIDs() {
		if !s.acquire(chatID) {
			continue
		}
		chatID := chatID
		g.Go(func() error {
			defer s.release(chatID)
			s.runChat(ctx, chatID)
			return nil
		})
	}
	_ = g.Wait()

	s.flush(ctx)
}

func (s *BatchProcessingScheduler) acquire(chatID int64) bool {
	s.procMu.Lock()
	defer s.procMu.Unlock()
	if _, busy := s.processing[chatID]; busy {
		return false
	}
	s.processing[chatID] = struct{}{}
	return true
}

func (s *BatchProcessingScheduler) release(chatID int64) {
	s.procMu.Lock()
	delete(s.processing, chatID)
	s.procMu.Unlock()
}

// runChat contains per-chat failures
func (s *BatchProcessingScheduler) runChat(ctx context.Context, chatID int64) {
	log := s.logger.With().Int64("chat_id", chatID).Logger()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("batch processing panicked")
		}
	}()
	if err := s.processChat(ctx, chatID, log); err != nil {
		log.Error().Err(err).Msg("batch processing failed")
	}
}

func (s *BatchProcessingScheduler) processChat(ctx context.Context, chatID int64, log zerolog.Logger) error {
	pending := s.deps.Buffer.Pending(chatID)
	if len(pending) == 0 {
		return nil
	}

	cfg, err := s.deps.ChatConfigs.GetChatConfig(ctx, chatID)
	if err != nil {
		// messages stay buffered for the next tick
		return fmt.Errorf("chat config: %w", err)
	}
	if cfg == nil || !cfg.GroupAgentEnabled {
		s.deps.Buffer.Remove(chatID, messageIDs(pending))
		log.Debug().Int("dropped", len(pending)).Msg("group agent disabled, buffer drained")
		return nil
	}

	batch := pending
	if len(batch) > s.config.MaxBatchSize {
		batch = batch[:s.config.MaxBatchSize]
	}
	// removed before the provider call: a batch is attempted at most once
	s.deps.Buffer.Remove(chatID, messageIDs(batch))

	if s.deps.Typing != nil {
		s.deps.Typing.TypingStarted(ctx, chatID)
		defer s.deps.Typing.TypingStopped(ctx, chatID)
	}

	history, err := s.deps.HistoryRepo.Load(ctx, chatID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to load history, continuing without it")
		history = nil
	}

	var admins []domain.ChatAdmin
	if s.deps.Admins != nil {
		admins, err = s.deps.Admins.ListAdmins(ctx, chatID)
		if err != nil {
			log.Warn().Err(err).Msg("failed to list admins")
			admins = nil
		}
	}

	in := usecase.PromptInput{
		Spec:     cfg.Spec,
		Context:  usecase.PromptContext{Admins: admins},
		Messages: batch,
	}
	in.History = s.fitHistory(in, history)
	prompt := s.deps.Assembler.BuildPrompt(in)

	parsed := s.deps.Classifier.ClassifyWithRetry(ctx, repo.ClassifyRequest{
		ChatID: chatID,
		Prompt: prompt,
		APIKey: cfg.ProviderAPIKey,
		Model:  cfg.ProviderModel,
	}, usecase.MessageIDSet(batch))

	resolutions := s.deps.Orchestrator.BuildResolutions(chatID, batch, parsed.Results)

	var reviews []domain.ReviewRequest
	var immediate []domain.ModerationDecision
	if s.deps.ReviewBuild != nil {
		reviews, immediate = s.deps.ReviewBuild.Build(chatID, resolutions, admins)
	} else {
		for _, r := range resolutions {
			immediate = append(immediate, r.Moderation...)
		}
	}

	if ev := usecase.ImmediateEvent(chatID, immediate); ev != nil && s.deps.Executor != nil {
		if err := s.deps.Executor.ExecuteModeration(ctx, *ev); err != nil {
			log.Error().Err(err).Int("actions", len(ev.Actions)).Msg("failed to execute moderation")
		}
	}

	if resp := usecase.SelectedResponse(resolutions); resp != nil && s.deps.Responder != nil {
		err := s.deps.Responder.SendResponse(ctx, domain.AgentResponseEvent{
			ChatID:           chatID,
			Text:             resp.Text,
			ReplyToMessageID: resp.ReplyToMessageID,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to send response")
		}
	}

	if len(reviews) > 0 && s.deps.Reviews != nil {
		if _, err := s.deps.Reviews.EnqueueRequests(ctx, reviews); err != nil {
			log.Error().Err(err).Msg("failed to enqueue review requests")
		}
	}

	s.saveHistory(ctx, chatID, history, resolutions, log)

	log.Info().
		Int("messages", len(batch)).
		Int("results", len(parsed.Results)).
		Int("reviews", len(reviews)).
		Msg("batch processed")
	return nil
}

// fitHistory trims history so the whole prompt stays within PromptBudgetChars
func (s *BatchProcessingScheduler) fitHistory(in usecase.PromptInput, history []domain.StoredHistoryEntry) []domain.StoredHistoryEntry {
	if len(history) == 0 {
		return history
	}

	in.History = nil
	overhead := usecase.PromptLength(s.deps.Assembler.BuildPrompt(in))
	budget := s.config.PromptBudgetChars - overhead
	if budget <= 0 {
		return nil
	}

	sizer := func(entries []domain.StoredHistoryEntry) int {
		return s.deps.Assembler.HistorySize(in.Spec, entries)
	}
	reduced := usecase.ReduceHistory(history, budget, sizer)
	if sizer(reduced) > budget {
		return nil
	}
	return reduced
}

func (s *BatchProcessingScheduler) saveHistory(ctx context.Context, chatID int64, existing []domain.StoredHistoryEntry, resolutions []domain.AgentResolution, log zerolog.Logger) {
	now := s.now()
	added := make([]domain.StoredHistoryEntry, 0, len(resolutions))
	for _, r := range resolutions {
		added = append(added, domain.NewHistoryEntry(r, now))
	}

	merged := usecase.ReduceHistory(usecase.MergeHistory(existing, added), s.config.HistoryBudgetChars, usecase.JSONHistorySize)
	if usecase.JSONHistorySize(merged) > s.config.HistoryBudgetChars {
		// a single oversized entry is not kept
		merged = nil
	}
	if err := s.deps.HistoryRepo.Save(ctx, chatID, merged, s.config.HistoryTTL); err != nil {
		log.Error().Err(err).Msg("failed to save history")
	}
}

func (s *BatchProcessingScheduler) sweepReviews(ctx context.Context) {
	n, err := s.deps.Reviews.RetryUnannounced(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("review sweep failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int("announced", n).Msg("pending reviews announced")
	}
}

func (s *BatchProcessingScheduler) purge(ctx context.Context) {
	n, err := s.deps.Purger.PurgeExpired(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("state purge failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("removed", n).Msg("expired state purged")
	}
}

func messageIDs(msgs []domain.BufferedMessage) []int64 {
	ids := make([]int64, len(msgs))
	for i, m := range msgs {
		ids[i] = m.MessageID
	}
	return ids
}
