package data

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

// ModelRotator hands out models round-robin. One instance is shared per provider.
type ModelRotator struct {
	models []string
	next   atomic.Uint64
}

// NewModelRotator creates a rotator over models, empty names are skipped
func NewModelRotator(models []string) *ModelRotator {
	r := &ModelRotator{}
	for _, m := range models {
		if m != "" {
			r.models = append(r.models, m)
		}
	}
	return r
}

// Next returns the next model, "" when none are configured
func (r *ModelRotator) Next() string {
	if r == nil || len(r.models) == 0 {
		return ""
	}
	n := r.next.Add(1) - 1
	return r.models[n%uint64(len(r.models))]
}

// OpenAIConfig contains OpenAI-compatible provider configuration
type OpenAIConfig struct {
	APIKey            string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64 // 0 = unlimited
	Temperature       float32
	MaxTokens         int
	JSONMode          bool
}

// DefaultOpenAIConfig returns default provider configuration
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		BaseURL:           "https://api.openai.com/v1",
		Timeout:           60 * time.Second,
		RequestsPerSecond: 2,
		Temperature:       0.1,
		MaxTokens:         2048,
		JSONMode:          true,
	}
}

// OpenAIProvider implements repo.AIProvider against any OpenAI-compatible endpoint
type OpenAIProvider struct {
	config  OpenAIConfig
	rotator *ModelRotator
	limiter *rate.Limiter

	mu      sync.Mutex
	clients map[string]*openai.Client // by API key
}

// NewOpenAIProvider creates a provider, rotator supplies the model for each call
func NewOpenAIProvider(config OpenAIConfig, rotator *ModelRotator) *OpenAIProvider {
	p := &OpenAIProvider{
		config:  config,
		rotator: rotator,
		clients: make(map[string]*openai.Client),
	}
	if config.RequestsPerSecond > 0 {
		burst := int(config.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), burst)
	}
	return p
}

func (p *OpenAIProvider) client(apiKey string) *openai.Client {
	if apiKey == "" {
		apiKey = p.config.APIKey
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[apiKey]; ok {
		return c
	}
	cfg := openai.DefaultConfig(apiKey)
	if p.config.BaseURL != "" {
		cfg.BaseURL = p.config.BaseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: p.config.Timeout}
	c := openai.NewClientWithConfig(cfg)
	p.clients[apiKey] = c
	return c
}

// ClassifyBatch sends the prompt as a single user message
func (p *OpenAIProvider) ClassifyBatch(ctx context.Context, req repo.ClassifyRequest) (*repo.ClassifyResponse, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	model := req.Model
	if model == "" {
		model = p.rotator.Next()
	}
	if model == "" {
		return nil, fmt.Errorf("no model configured")
	}

	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	chatReq := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		Temperature: p.config.Temperature,
		MaxTokens:   p.config.MaxTokens,
	}
	if p.config.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client(req.APIKey).CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion (%s): %w", model, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices")
	}

	return &repo.ClassifyResponse{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: &repo.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

var _ repo.AIProvider = (*OpenAIProvider)(nil)
