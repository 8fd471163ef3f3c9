package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/usecase"
	"github.com/DevRickLin/chat-moderator/internal/data"
	"github.com/DevRickLin/chat-moderator/internal/service"
)

const defaultAdminAPIPort = 9876

// Config represents application configuration
type Config struct {
	Telegram  TelegramConfig
	OpenAI    OpenAIConfig
	Store     data.StoreConfig
	Scheduler service.SchedulerConfig
	Buffer    usecase.BufferConfig
	Retry     usecase.FixedRetryPolicy
	Review    usecase.ReviewConfig

	ResponseMaxLength int
	MaxMuteMinutes    int

	PromptsConfigPath string
	ChatsConfigPath   string

	AdminAPI AdminAPIConfig
	Log      LogConfig
}

// TelegramConfig contains Telegram bot configuration
type TelegramConfig struct {
	Token         string
	Proxy         string
	AdminCacheTTL time.Duration
}

// OpenAIConfig contains classifier provider configuration
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Models            []string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// AdminAPIConfig locates the local admin HTTP API
type AdminAPIConfig struct {
	Port int
	URL  string // used by the mcp command
}

// LogConfig contains logger configuration
type LogConfig struct {
	Level  string
	Pretty bool
}

// LoadFromEnv loads configuration from environment variables.
// Callers load .env first.
func LoadFromEnv() *Config {
	sched := service.DefaultSchedulerConfig()
	sched.BatchInterval = envMillis("BATCH_INTERVAL_MS", sched.BatchInterval)
	sched.MaxBatchSize = envInt("MAX_BATCH_SIZE", sched.MaxBatchSize)
	sched.MaxConcurrentChats = envInt("MAX_CONCURRENT_CHATS", sched.MaxConcurrentChats)
	sched.PromptBudgetChars = envInt("PROMPT_BUDGET_CHARS", sched.PromptBudgetChars)
	sched.HistoryBudgetChars = envInt("HISTORY_BUDGET_CHARS", sched.HistoryBudgetChars)
	sched.HistoryTTL = envHours("HISTORY_TTL_HOURS", sched.HistoryTTL)
	sched.BufferTTL = envHours("BUFFER_TTL_HOURS", sched.BufferTTL)
	sched.ReviewSweepInterval = envSeconds("REVIEW_SWEEP_SECONDS", sched.ReviewSweepInterval)

	buffer := usecase.DefaultBufferConfig()
	buffer.MaxPerChat = envInt("BUFFER_MAX_PER_CHAT", buffer.MaxPerChat)
	if val := os.Getenv("BUFFER_OVERFLOW"); val != "" {
		buffer.Overflow = domain.OverflowPolicy(val)
	}

	retry := usecase.DefaultRetryPolicy()
	retry.MaxAttempts = envInt("RETRY_MAX_ATTEMPTS", retry.MaxAttempts)
	retry.Delay = envMillis("RETRY_DELAY_MS", retry.Delay)

	review := usecase.DefaultReviewConfig()
	review.TTL = envSeconds("REVIEW_TTL_SECONDS", review.TTL)

	provider := data.DefaultOpenAIConfig()
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = provider.BaseURL
	}
	rps := provider.RequestsPerSecond
	if val := os.Getenv("OPENAI_RPS"); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			rps = parsed
		}
	}

	// State DB path
	dbPath := os.Getenv("STATE_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".chat-moderator", "state.db")
	}

	port := envInt("ADMIN_API_PORT", defaultAdminAPIPort)
	apiURL := os.Getenv("ADMIN_API_URL")
	if apiURL == "" {
		apiURL = fmt.Sprintf("http://127.0.0.1:%d", port)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		Telegram: TelegramConfig{
			Token:         os.Getenv("TELEGRAM_BOT_TOKEN"),
			Proxy:         os.Getenv("TELEGRAM_PROXY"),
			AdminCacheTTL: time.Duration(envInt("ADMIN_CACHE_MINUTES", 10)) * time.Minute,
		},
		OpenAI: OpenAIConfig{
			APIKey:            os.Getenv("OPENAI_API_KEY"),
			BaseURL:           baseURL,
			Models:            splitList(os.Getenv("OPENAI_MODELS")),
			RequestsPerSecond: rps,
			Timeout:           envSeconds("OPENAI_TIMEOUT_SECONDS", provider.Timeout),
		},
		Store: data.StoreConfig{
			Backend: os.Getenv("STATE_STORE"),
			DBPath:  dbPath,
			DSN:     os.Getenv("STATE_DSN"),
		},
		Scheduler:         sched,
		Buffer:            buffer,
		Retry:             retry,
		Review:            review,
		ResponseMaxLength: envInt("RESPONSE_MAX_LENGTH", usecase.DefaultResponsePolicyConfig().MaxLength),
		MaxMuteMinutes:    envInt("MAX_MUTE_MINUTES", usecase.DefaultModerationPolicyConfig().MaxMuteMinutes),
		PromptsConfigPath: os.Getenv("PROMPTS_CONFIG_PATH"),
		ChatsConfigPath:   os.Getenv("CHATS_CONFIG_PATH"),
		AdminAPI: AdminAPIConfig{
			Port: port,
			URL:  apiURL,
		},
		Log: LogConfig{
			Level:  logLevel,
			Pretty: os.Getenv("LOG_PRETTY") == "true",
		},
	}
}

// ToOpenAIConfig converts to provider configuration
func (c *Config) ToOpenAIConfig() data.OpenAIConfig {
	cfg := data.DefaultOpenAIConfig()
	cfg.APIKey = c.OpenAI.APIKey
	cfg.BaseURL = c.OpenAI.BaseURL
	cfg.RequestsPerSecond = c.OpenAI.RequestsPerSecond
	cfg.Timeout = c.OpenAI.Timeout
	return cfg
}

// ToModerationPolicyConfig converts to moderation policy configuration
func (c *Config) ToModerationPolicyConfig(spec *domain.PromptSpec) usecase.ModerationPolicyConfig {
	cfg := usecase.DefaultModerationPolicyConfig()
	cfg.MaxMuteMinutes = c.MaxMuteMinutes
	if spec != nil && spec.Strings.DefaultWarning != "" {
		cfg.DefaultWarning = spec.Strings.DefaultWarning
	}
	return cfg
}

// ToResponsePolicyConfig converts to response policy configuration
func (c *Config) ToResponsePolicyConfig() usecase.ResponsePolicyConfig {
	cfg := usecase.DefaultResponsePolicyConfig()
	cfg.MaxLength = c.ResponseMaxLength
	return cfg
}

// Validate validates the configuration needed by the serve command
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return &ConfigError{Field: "TELEGRAM_BOT_TOKEN", Message: "required"}
	}
	if c.OpenAI.APIKey == "" {
		return &ConfigError{Field: "OPENAI_API_KEY", Message: "required"}
	}
	if len(c.OpenAI.Models) == 0 {
		return &ConfigError{Field: "OPENAI_MODELS", Message: "at least one model is required"}
	}
	switch c.Store.Backend {
	case "", "sqlite", "memory":
	case "postgres":
		if c.Store.DSN == "" {
			return &ConfigError{Field: "STATE_DSN", Message: "required for postgres"}
		}
	default:
		return &ConfigError{Field: "STATE_STORE", Message: fmt.Sprintf("unknown backend %q", c.Store.Backend)}
	}
	switch c.Buffer.Overflow {
	case domain.OverflowDropOldest, domain.OverflowRejectNew:
	default:
		return &ConfigError{Field: "BUFFER_OVERFLOW", Message: fmt.Sprintf("unknown policy %q", c.Buffer.Overflow)}
	}
	if c.Scheduler.BatchInterval <= 0 {
		return &ConfigError{Field: "BATCH_INTERVAL_MS", Message: "must be positive"}
	}
	if c.Scheduler.MaxBatchSize <= 0 {
		return &ConfigError{Field: "MAX_BATCH_SIZE", Message: "must be positive"}
	}
	if c.Scheduler.PromptBudgetChars <= 0 {
		return &ConfigError{Field: "PROMPT_BUDGET_CHARS", Message: "must be positive"}
	}
	if c.Scheduler.HistoryBudgetChars <= 0 {
		return &ConfigError{Field: "HISTORY_BUDGET_CHARS", Message: "must be positive"}
	}
	if c.Scheduler.HistoryBudgetChars > c.Scheduler.PromptBudgetChars {
		return &ConfigError{Field: "HISTORY_BUDGET_CHARS", Message: "must not exceed PROMPT_BUDGET_CHARS"}
	}
	if c.Retry.MaxAttempts < 1 {
		return &ConfigError{Field: "RETRY_MAX_ATTEMPTS", Message: "must be at least 1"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func envInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func envMillis(key string, def time.Duration) time.Duration {
	return time.Duration(envInt(key, int(def/time.Millisecond))) * time.Millisecond
}

func envSeconds(key string, def time.Duration) time.Duration {
	return time.Duration(envInt(key, int(def/time.Second))) * time.Second
}

func envHours(key string, def time.Duration) time.Duration {
	return time.Duration(envInt(key, int(def/time.Hour))) * time.Hour
}

func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
