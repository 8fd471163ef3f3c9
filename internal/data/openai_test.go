package data

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

func TestModelRotator(t *testing.T) {
	r := NewModelRotator([]string{"a", "", "b"})
	assert.Equal(t, []string{"a", "b", "a"}, []string{r.Next(), r.Next(), r.Next()})

	assert.Equal(t, "", NewModelRotator(nil).Next())
}

func TestOpenAIProviderClassify(t *testing.T) {
	var gotModels []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		gotModels = append(gotModels, body.Model)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","model":"` + body.Model + `",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"results\":[]}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`))
	}))
	defer srv.Close()

	cfg := DefaultOpenAIConfig()
	cfg.BaseURL = srv.URL
	cfg.APIKey = "test"
	cfg.RequestsPerSecond = 0
	cfg.Timeout = 5 * time.Second
	p := NewOpenAIProvider(cfg, NewModelRotator([]string{"m1", "m2"}))

	ctx := context.Background()
	resp, err := p.ClassifyBatch(ctx, repo.ClassifyRequest{ChatID: 1, Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, `{"results":[]}`, resp.Text)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 13, resp.Usage.TotalTokens)

	_, err = p.ClassifyBatch(ctx, repo.ClassifyRequest{ChatID: 1, Prompt: "hi"})
	require.NoError(t, err)
	_, err = p.ClassifyBatch(ctx, repo.ClassifyRequest{ChatID: 1, Prompt: "hi", Model: "override"})
	require.NoError(t, err)

	assert.Equal(t, []string{"m1", "m2", "override"}, gotModels)
}

func TestOpenAIProviderHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	cfg := DefaultOpenAIConfig()
	cfg.BaseURL = srv.URL
	cfg.RequestsPerSecond = 0
	p := NewOpenAIProvider(cfg, NewModelRotator([]string{"m"}))

	_, err := p.ClassifyBatch(context.Background(), repo.ClassifyRequest{Prompt: "x"})
	assert.Error(t, err)
}

func TestOpenAIProviderNoModel(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{}, NewModelRotator(nil))
	_, err := p.ClassifyBatch(context.Background(), repo.ClassifyRequest{Prompt: "x"})
	assert.Error(t, err)
}
