package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

type mockAdmin struct {
	mock.Mock
}

func (m *mockAdmin) BufferSummary() []domain.BufferSummary {
	return m.Called().Get(0).([]domain.BufferSummary)
}

func (m *mockAdmin) PendingReviews(ctx context.Context, chatID int64) ([]*domain.ReviewRequest, error) {
	args := m.Called(ctx, chatID)
	if res := args.Get(0); res != nil {
		return res.([]*domain.ReviewRequest), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAdmin) HandleReviewDecision(ctx context.Context, ev domain.ReviewDecisionEvent) (domain.ReviewOutcome, error) {
	args := m.Called(ctx, ev)
	return args.Get(0).(domain.ReviewOutcome), args.Error(1)
}

func (m *mockAdmin) ResetChat(ctx context.Context, chatID int64) error {
	return m.Called(ctx, chatID).Error(0)
}

func serve(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	s.Routes().ServeHTTP(rr, req)
	return rr
}

func TestServer(t *testing.T) {
	admin := new(mockAdmin)
	s := NewServer(admin, 0, zerolog.Nop())

	t.Run("Health Check", func(t *testing.T) {
		rr := serve(t, s, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Buffer Summary", func(t *testing.T) {
		admin.On("BufferSummary").Return([]domain.BufferSummary{{ChatID: -1, MessageCount: 3}}).Once()

		rr := serve(t, s, http.MethodGet, "/api/buffer/summary", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Chats []domain.BufferSummary `json:"chats"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Len(t, resp.Chats, 1)
		assert.Equal(t, 3, resp.Chats[0].MessageCount)
	})

	t.Run("List Reviews", func(t *testing.T) {
		admin.On("PendingReviews", mock.Anything, int64(-5)).
			Return([]*domain.ReviewRequest{{ID: "r1", ChatID: -5, State: domain.ReviewPrompted}}, nil).Once()

		rr := serve(t, s, http.MethodGet, "/api/reviews?chat_id=-5", nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Reviews []domain.ReviewRequest `json:"reviews"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		require.Len(t, resp.Reviews, 1)
		assert.Equal(t, "r1", resp.Reviews[0].ID)

		rr = serve(t, s, http.MethodGet, "/api/reviews?chat_id=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Decision", func(t *testing.T) {
		ev := domain.ReviewDecisionEvent{RequestID: "r1", Approved: true, DeciderUserID: 9}
		admin.On("HandleReviewDecision", mock.Anything, ev).
			Return(domain.ReviewOutcome{RequestID: "r1", State: domain.ReviewApproved, Executed: true}, nil).Once()

		rr := serve(t, s, http.MethodPost, "/api/reviews/r1/decision", DecisionRequest{Approve: true, DeciderUserID: 9})
		require.Equal(t, http.StatusOK, rr.Code)
		var resp struct {
			Outcome domain.ReviewOutcome `json:"outcome"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
		assert.Equal(t, domain.ReviewApproved, resp.Outcome.State)
		assert.True(t, resp.Outcome.Executed)
	})

	t.Run("Decision Forbidden", func(t *testing.T) {
		ev := domain.ReviewDecisionEvent{RequestID: "r2", DeciderUserID: 1}
		admin.On("HandleReviewDecision", mock.Anything, ev).
			Return(domain.ReviewOutcome{RequestID: "r2"}, domain.ErrNotAuthorized).Once()

		rr := serve(t, s, http.MethodPost, "/api/reviews/r2/decision", DecisionRequest{DeciderUserID: 1})
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("Reset", func(t *testing.T) {
		admin.On("ResetChat", mock.Anything, int64(-7)).Return(nil).Once()

		rr := serve(t, s, http.MethodPost, "/api/chats/-7/reset", nil)
		assert.Equal(t, http.StatusOK, rr.Code)

		rr = serve(t, s, http.MethodPost, "/api/chats/x/reset", nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	admin.AssertExpectations(t)
}
