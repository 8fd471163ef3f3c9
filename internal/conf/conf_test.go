package conf

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/usecase"
)

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("OPENAI_API_KEY", "key")
	t.Setenv("OPENAI_MODELS", " m1, ,m2 ")
	t.Setenv("BATCH_INTERVAL_MS", "1500")
	t.Setenv("MAX_BATCH_SIZE", "7")
	t.Setenv("HISTORY_TTL_HOURS", "5")
	t.Setenv("REVIEW_TTL_SECONDS", "90")
	t.Setenv("RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("BUFFER_OVERFLOW", "reject_new")
	t.Setenv("ADMIN_API_PORT", "7000")
	t.Setenv("ADMIN_API_URL", "")

	cfg := LoadFromEnv()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []string{"m1", "m2"}, cfg.OpenAI.Models)
	assert.Equal(t, 1500*time.Millisecond, cfg.Scheduler.BatchInterval)
	assert.Equal(t, 7, cfg.Scheduler.MaxBatchSize)
	assert.Equal(t, 5*time.Hour, cfg.Scheduler.HistoryTTL)
	assert.Equal(t, 90*time.Second, cfg.Review.TTL)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, domain.OverflowRejectNew, cfg.Buffer.Overflow)
	assert.Equal(t, "http://127.0.0.1:7000", cfg.AdminAPI.URL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnvBudgetsFromEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("OPENAI_API_KEY", "key")
	t.Setenv("OPENAI_MODELS", "m1")
	t.Setenv("PROMPT_BUDGET_CHARS", "0")

	cfg := LoadFromEnv()
	var cerr *ConfigError
	require.ErrorAs(t, cfg.Validate(), &cerr)
	assert.Equal(t, "PROMPT_BUDGET_CHARS", cerr.Field)
}

func TestLoadFromEnvInvalidNumberKeepsDefault(t *testing.T) {
	t.Setenv("MAX_BATCH_SIZE", "many")
	cfg := LoadFromEnv()
	assert.Equal(t, 20, cfg.Scheduler.MaxBatchSize)
}

func TestValidate(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	t.Setenv("OPENAI_API_KEY", "key")
	t.Setenv("OPENAI_MODELS", "m1")
	t.Setenv("STATE_STORE", "")
	t.Setenv("BUFFER_OVERFLOW", "")
	t.Setenv("PROMPT_BUDGET_CHARS", "")
	t.Setenv("HISTORY_BUDGET_CHARS", "")

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "TELEGRAM_BOT_TOKEN"},
		{"missing models", func(c *Config) { c.OpenAI.Models = nil }, "OPENAI_MODELS"},
		{"postgres without dsn", func(c *Config) { c.Store.Backend = "postgres" }, "STATE_DSN"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "redis" }, "STATE_STORE"},
		{"unknown overflow", func(c *Config) { c.Buffer.Overflow = "spill" }, "BUFFER_OVERFLOW"},
		{"zero attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }, "RETRY_MAX_ATTEMPTS"},
		{"zero prompt budget", func(c *Config) { c.Scheduler.PromptBudgetChars = 0 }, "PROMPT_BUDGET_CHARS"},
		{"zero history budget", func(c *Config) { c.Scheduler.HistoryBudgetChars = 0 }, "HISTORY_BUDGET_CHARS"},
		{"history budget over prompt budget", func(c *Config) {
			c.Scheduler.PromptBudgetChars = 1000
			c.Scheduler.HistoryBudgetChars = 2000
		}, "HISTORY_BUDGET_CHARS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadFromEnv()
			tt.mutate(cfg)
			err := cfg.Validate()
			var cerr *ConfigError
			require.True(t, errors.As(err, &cerr))
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadPromptSpec(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "prompts.yaml", `
persona: "strict moderator"
output:
  format: compact
strings:
  default_warning: "behave"
`)

	spec, loaded, err := LoadPromptSpec(p)
	require.NoError(t, err)
	assert.Equal(t, p, loaded)
	assert.Equal(t, "strict moderator", spec.Persona)
	assert.Equal(t, domain.OutputCompact, spec.Output.Format)
	assert.Equal(t, "behave", spec.Strings.DefaultWarning)

	defaults := usecase.DefaultPromptSpec()
	assert.Equal(t, defaults.Constraints, spec.Constraints)
	assert.Equal(t, defaults.Strings.ReviewApprove, spec.Strings.ReviewApprove)
}

func TestLoadPromptSpecErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := LoadPromptSpec(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "bad.yaml", "output:\n  format: xml\n")
	_, _, err = LoadPromptSpec(bad)
	assert.ErrorContains(t, err, "unknown output format")
}

func TestLoadChatsConfig(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "chats.yaml", `
default_enabled: false
chats:
  - chat_id: -1001
    title: main
    enabled: true
    provider_model: gpt-x
    prompt:
      persona: "friendly"
  - chat_id: -1002
    enabled: false
`)

	cfg, _, err := LoadChatsConfig(p)
	require.NoError(t, err)
	require.Len(t, cfg.Chats, 2)

	base := usecase.DefaultPromptSpec()
	chats, err := cfg.ToChatConfigs(base)
	require.NoError(t, err)
	require.Len(t, chats, 2)

	assert.True(t, chats[0].GroupAgentEnabled)
	assert.Equal(t, "gpt-x", chats[0].ProviderModel)
	require.NotNil(t, chats[0].Spec)
	assert.Equal(t, "friendly", chats[0].Spec.Persona)
	assert.Equal(t, base.Strings.DefaultWarning, chats[0].Spec.Strings.DefaultWarning)
	assert.Nil(t, chats[1].Spec)
}

func TestLoadChatsConfigRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "chats.yaml", "chats:\n  - chat_id: 1\n  - chat_id: 1\n")
	_, _, err := LoadChatsConfig(p)
	assert.ErrorContains(t, err, "duplicate chat_id")
}

func TestWatchChatsConfig(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "chats.yaml", "chats:\n  - chat_id: 1\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reloaded := make(chan *ChatsConfig, 1)
	done := make(chan error, 1)
	go func() {
		done <- WatchChatsConfig(ctx, p, func(c *ChatsConfig) {
			select {
			case reloaded <- c:
			default:
			}
		}, zerolog.Nop())
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	writeFile(t, dir, "chats.yaml", "chats:\n  - chat_id: 1\n  - chat_id: 2\n")

	select {
	case c := <-reloaded:
		assert.Len(t, c.Chats, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("config was not reloaded")
	}

	cancel()
	require.NoError(t, <-done)
}
