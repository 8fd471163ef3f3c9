package repo

import "context"

// ClassifyRequest is one classifier call for a chat batch
type ClassifyRequest struct {
	ChatID int64
	Prompt string
	// Optional per-chat provider overrides
	APIKey string
	Model  string
}

// Usage is the token accounting reported by the provider
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ClassifyResponse is the raw model output
type ClassifyResponse struct {
	Text  string
	Model string
	Usage *Usage
}

// AIProvider calls the external classifier.
// It must return an error on transport or HTTP failure.
type AIProvider interface {
	ClassifyBatch(ctx context.Context, req ClassifyRequest) (*ClassifyResponse, error)
}
