package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/DevRickLin/chat-moderator/internal/api"
	"github.com/DevRickLin/chat-moderator/internal/biz"
	"github.com/DevRickLin/chat-moderator/internal/conf"
	"github.com/DevRickLin/chat-moderator/internal/data"
	"github.com/DevRickLin/chat-moderator/internal/infra/telegram"
	"github.com/DevRickLin/chat-moderator/internal/service"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the moderation service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, watch, log)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", true, "reload chats config when the file changes")
	return cmd
}

func runServe(ctx context.Context, cfg *conf.Config, watch bool, log zerolog.Logger) error {
	spec, specPath, err := conf.LoadPromptSpec(cfg.PromptsConfigPath)
	if err != nil {
		return err
	}
	if specPath == "" {
		log.Info().Msg("no prompts.yaml found, using built-in prompt")
	} else {
		log.Info().Str("path", specPath).Msg("prompts loaded")
	}

	chatsCfg, chatsPath, err := conf.LoadChatsConfig(cfg.ChatsConfigPath)
	if err != nil {
		return err
	}
	chats, err := chatsCfg.ToChatConfigs(spec)
	if err != nil {
		return err
	}
	chatConfigs := data.NewStaticChatConfigRepo(chats, data.ChatConfigDefaults{Enabled: chatsCfg.DefaultEnabled, Spec: spec})
	log.Info().Int("chats", len(chats)).Bool("default_enabled", chatsCfg.DefaultEnabled).Msg("chat config loaded")

	// Initialize repository layer
	store, err := data.NewStateStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer store.Close()
	repos := data.NewRepositories(store)
	log.Info().Str("backend", backendName(cfg.Store.Backend)).Msg("state store opened")

	tg, err := telegram.NewClient(telegram.Config{
		Token:         cfg.Telegram.Token,
		Proxy:         cfg.Telegram.Proxy,
		AdminCacheTTL: cfg.Telegram.AdminCacheTTL,
		Strings:       spec.Strings,
	}, log)
	if err != nil {
		return err
	}
	provider := data.NewOpenAIProvider(cfg.ToOpenAIConfig(), data.NewModelRotator(cfg.OpenAI.Models))

	// Initialize usecase layer
	uc := biz.NewUsecases(biz.Options{
		Buffer:     cfg.Buffer,
		Retry:      cfg.Retry,
		Moderation: cfg.ToModerationPolicyConfig(spec),
		Response:   cfg.ToResponsePolicyConfig(),
		Review:     cfg.Review,
	}, provider, repos.Review, tg, tg, log)

	// Initialize service layer
	scheduler := service.NewBatchProcessingScheduler(service.SchedulerDeps{
		Buffer:       uc.Buffer,
		BufferRepo:   repos.Buffer,
		HistoryRepo:  repos.History,
		ChatConfigs:  chatConfigs,
		Admins:       tg,
		Classifier:   uc.Classifier,
		Assembler:    uc.Assembler,
		Orchestrator: uc.Orchestrator,
		ReviewBuild:  uc.ReviewBuild,
		Reviews:      uc.Reviews,
		Executor:     tg,
		Responder:    tg,
		Typing:       tg,
		Purger:       store,
	}, cfg.Scheduler, log)
	ingest := service.NewIngestService(uc.Buffer, repos.ChatState, uc.Reviews, log)

	scheduler.Start(ctx)
	defer scheduler.Stop()

	if err := tg.Start(ctx, ingest); err != nil {
		return err
	}
	defer tg.Stop()

	apiServer := api.NewServer(ingest, cfg.AdminAPI.Port, log)
	apiErr := make(chan error, 1)
	go func() {
		apiErr <- apiServer.Start()
	}()

	if watch && chatsPath != "" {
		go func() {
			err := conf.WatchChatsConfig(ctx, chatsPath, func(c *conf.ChatsConfig) {
				updated, err := c.ToChatConfigs(spec)
				if err != nil {
					log.Warn().Err(err).Msg("chats config rejected")
					return
				}
				chatConfigs.Replace(updated, data.ChatConfigDefaults{Enabled: c.DefaultEnabled, Spec: spec})
			}, log)
			if err != nil {
				log.Warn().Err(err).Msg("chats config watch stopped")
			}
		}()
	}

	log.Info().Str("version", Version).Msg("moderator running")

	select {
	case <-ctx.Done():
	case err := <-apiErr:
		if err != nil {
			log.Error().Err(err).Msg("admin api failed")
		}
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Stop(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("admin api shutdown")
	}
	return nil
}

func backendName(b string) string {
	if b == "" {
		return "sqlite"
	}
	return b
}
