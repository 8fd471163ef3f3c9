package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// AdminService is what the admin API exposes, implemented by service.IngestService
type AdminService interface {
	BufferSummary() []domain.BufferSummary
	PendingReviews(ctx context.Context, chatID int64) ([]*domain.ReviewRequest, error)
	HandleReviewDecision(ctx context.Context, ev domain.ReviewDecisionEvent) (domain.ReviewOutcome, error)
	ResetChat(ctx context.Context, chatID int64) error
}

// DecisionRequest is the body of a review decision call
type DecisionRequest struct {
	Approve       bool  `json:"approve"`
	DeciderUserID int64 `json:"decider_user_id"`
}

// Server provides the local admin HTTP API used by the MCP server
type Server struct {
	admin  AdminService
	logger zerolog.Logger
	server *http.Server
	port   int
}

// NewServer creates a new API server bound to 127.0.0.1:port
func NewServer(admin AdminService, port int, logger zerolog.Logger) *Server {
	s := &Server{
		admin:  admin,
		logger: logger.With().Str("component", "api").Logger(),
		port:   port,
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", port),
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Routes returns the API router
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/buffer/summary", s.handleBufferSummary)
		r.Get("/reviews", s.handleListReviews)
		r.Post("/reviews/{reviewID}/decision", s.handleDecision)
		r.Post("/chats/{chatID}/reset", s.handleReset)
	})
	return r
}

// Start serves until Stop is called
func (s *Server) Start() error {
	s.logger.Info().Int("port", s.port).Msg("admin api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleBufferSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"chats": s.admin.BufferSummary()})
}

func (s *Server) handleListReviews(w http.ResponseWriter, r *http.Request) {
	var chatID int64
	if v := r.URL.Query().Get("chat_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid chat_id: %w", err))
			return
		}
		chatID = id
	}

	reviews, err := s.admin.PendingReviews(r.Context(), chatID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if reviews == nil {
		reviews = []*domain.ReviewRequest{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"reviews": reviews})
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	var req DecisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}

	outcome, err := s.admin.HandleReviewDecision(r.Context(), domain.ReviewDecisionEvent{
		RequestID:     chi.URLParam(r, "reviewID"),
		Approved:      req.Approve,
		DeciderUserID: req.DeciderUserID,
	})
	switch {
	case errors.Is(err, domain.ErrNotAuthorized):
		s.writeError(w, http.StatusForbidden, err)
		return
	case errors.Is(err, domain.ErrReviewClosed):
		s.writeError(w, http.StatusConflict, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"outcome": outcome})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid chat id: %w", err))
		return
	}
	if err := s.admin.ResetChat(r.Context(), chatID); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "chat_id": chatID})
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Debug().Err(err).Msg("failed to write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
