package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

func newTestServer(t *testing.T, h http.HandlerFunc) *Server {
	t.Helper()
	api := httptest.NewServer(h)
	t.Cleanup(api.Close)
	return NewServer(NewClient(api.URL), "test", zerolog.Nop())
}

func TestListReviews(t *testing.T) {
	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/reviews", r.URL.Path)
		assert.Equal(t, "-100", r.URL.Query().Get("chat_id"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"reviews": []domain.ReviewRequest{{
				ID:             "r1",
				ChatID:         -100,
				Decision:       domain.ModerationDecision{UserID: 42, Action: domain.ActionBan, DurationMinutes: 60},
				MessageContext: "spam link",
				State:          domain.ReviewPrompted,
				ExpiresAt:      expires,
			}},
		})
	})

	_, out, err := s.listReviews(context.Background(), nil, ListReviewsInput{ChatID: -100})
	require.NoError(t, err)
	require.Empty(t, out.Error)
	require.Len(t, out.Reviews, 1)

	got := out.Reviews[0]
	assert.Equal(t, "r1", got.ID)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, domain.ActionBan, got.Action)
	assert.Equal(t, 60, got.Minutes)
	assert.Equal(t, "spam link", got.Context)
	assert.Equal(t, "2026-01-02 03:04:05Z", got.ExpiresAt)
}

func TestDecideReview(t *testing.T) {
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/reviews/r1/decision":
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, true, body["approve"])
			assert.Equal(t, float64(7), body["decider_user_id"])
			json.NewEncoder(w).Encode(map[string]interface{}{
				"outcome": domain.ReviewOutcome{RequestID: "r1", State: domain.ReviewApproved, Executed: true},
			})
		case "/api/reviews/r2/decision":
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": domain.ErrNotAuthorized.Error()})
		default:
			http.NotFound(w, r)
		}
	})

	_, out, err := s.decideReview(context.Background(), nil, DecideReviewInput{RequestID: "r1", Approve: true, DeciderUserID: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewApproved, out.State)
	assert.True(t, out.Executed)

	_, out, err = s.decideReview(context.Background(), nil, DecideReviewInput{RequestID: "r2", DeciderUserID: 7})
	require.NoError(t, err)
	assert.Contains(t, out.Error, "HTTP 403")
	assert.Contains(t, out.Error, domain.ErrNotAuthorized.Error())

	_, out, err = s.decideReview(context.Background(), nil, DecideReviewInput{})
	require.NoError(t, err)
	assert.Equal(t, "request_id is required", out.Error)
}

func TestBufferSummaryAndReset(t *testing.T) {
	var resetPath string
	s := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/buffer/summary":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"chats": []domain.BufferSummary{{ChatID: -1, MessageCount: 4}},
			})
		case r.Method == http.MethodPost:
			resetPath = r.URL.Path
			json.NewEncoder(w).Encode(map[string]interface{}{"ok": true})
		default:
			http.NotFound(w, r)
		}
	})

	_, sum, err := s.bufferSummary(context.Background(), nil, BufferSummaryInput{})
	require.NoError(t, err)
	require.Len(t, sum.Chats, 1)
	assert.Equal(t, 4, sum.Chats[0].MessageCount)

	_, reset, err := s.resetChat(context.Background(), nil, ResetChatInput{ChatID: -1})
	require.NoError(t, err)
	assert.True(t, reset.Success)
	assert.Equal(t, "/api/chats/-1/reset", resetPath)

	_, reset, err = s.resetChat(context.Background(), nil, ResetChatInput{})
	require.NoError(t, err)
	assert.False(t, reset.Success)
}

func TestClientUnreachable(t *testing.T) {
	api := httptest.NewServer(http.NotFoundHandler())
	api.Close()
	s := NewServer(NewClient(api.URL), "test", zerolog.Nop())

	_, out, err := s.bufferSummary(context.Background(), nil, BufferSummaryInput{})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Error)
}
