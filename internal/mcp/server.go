package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// Server exposes moderation admin tools over MCP
type Server struct {
	server *mcp.Server
	client *Client
	logger zerolog.Logger
}

// NewServer creates the MCP server and registers its tools
func NewServer(client *Client, version string, logger zerolog.Logger) *Server {
	s := &Server{
		server: mcp.NewServer(&mcp.Implementation{
			Name:    "chat-moderator",
			Version: version,
		}, nil),
		client: client,
		logger: logger.With().Str("component", "mcp").Logger(),
	}
	s.registerTools()
	return s
}

// Run serves MCP over stdio until the client disconnects or ctx is done
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Msg("mcp server running on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "moderation_buffer_summary",
		Description: "Show how many messages are waiting for moderation in each chat.",
	}, s.bufferSummary)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "moderation_list_reviews",
		Description: "List kick and ban decisions waiting for admin approval.",
	}, s.listReviews)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "moderation_decide_review",
		Description: "Approve or reject a pending kick or ban. The decider must be an admin of the chat.",
	}, s.decideReview)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "moderation_reset_chat",
		Description: "Drop buffered messages and conversation history of a chat.",
	}, s.resetChat)
}

// BufferSummaryInput is empty - no input needed
type BufferSummaryInput struct{}

// BufferSummaryOutput lists buffered chats
type BufferSummaryOutput struct {
	Chats []domain.BufferSummary `json:"chats"`
	Error string                 `json:"error,omitempty"`
}

func (s *Server) bufferSummary(ctx context.Context, req *mcp.CallToolRequest, input BufferSummaryInput) (*mcp.CallToolResult, BufferSummaryOutput, error) {
	chats, err := s.client.BufferSummary(ctx)
	if err != nil {
		return nil, BufferSummaryOutput{Error: err.Error()}, nil
	}
	if chats == nil {
		chats = []domain.BufferSummary{}
	}
	return nil, BufferSummaryOutput{Chats: chats}, nil
}

// ListReviewsInput filters reviews by chat
type ListReviewsInput struct {
	ChatID int64 `json:"chat_id,omitempty" jsonschema:"Telegram chat ID to filter by, omit for all chats"`
}

// ReviewSummary is the agent-facing view of a review request
type ReviewSummary struct {
	ID        string                  `json:"id"`
	ChatID    int64                   `json:"chat_id"`
	UserID    int64                   `json:"user_id"`
	Action    domain.ModerationAction `json:"action"`
	Minutes   int                     `json:"duration_minutes,omitempty"`
	Context   string                  `json:"context,omitempty"`
	State     domain.ReviewState      `json:"state"`
	ExpiresAt string                  `json:"expires_at"`
}

// ListReviewsOutput lists open reviews
type ListReviewsOutput struct {
	Reviews []ReviewSummary `json:"reviews"`
	Error   string          `json:"error,omitempty"`
}

func (s *Server) listReviews(ctx context.Context, req *mcp.CallToolRequest, input ListReviewsInput) (*mcp.CallToolResult, ListReviewsOutput, error) {
	reviews, err := s.client.ListReviews(ctx, input.ChatID)
	if err != nil {
		return nil, ListReviewsOutput{Error: err.Error()}, nil
	}

	out := ListReviewsOutput{Reviews: make([]ReviewSummary, 0, len(reviews))}
	for _, r := range reviews {
		out.Reviews = append(out.Reviews, ReviewSummary{
			ID:        r.ID,
			ChatID:    r.ChatID,
			UserID:    r.Decision.UserID,
			Action:    r.Decision.Action,
			Minutes:   r.Decision.DurationMinutes,
			Context:   r.MessageContext,
			State:     r.State,
			ExpiresAt: r.ExpiresAt.Format("2006-01-02 15:04:05Z07:00"),
		})
	}
	return nil, out, nil
}

// DecideReviewInput is the input for moderation_decide_review
type DecideReviewInput struct {
	RequestID     string `json:"request_id" jsonschema:"ID of the review request"`
	Approve       bool   `json:"approve" jsonschema:"true to execute the action, false to reject it"`
	DeciderUserID int64  `json:"decider_user_id" jsonschema:"Telegram user ID of the admin taking the decision"`
}

// DecideReviewOutput reports the resulting review state
type DecideReviewOutput struct {
	State    domain.ReviewState `json:"state,omitempty"`
	Executed bool               `json:"executed"`
	Error    string             `json:"error,omitempty"`
}

func (s *Server) decideReview(ctx context.Context, req *mcp.CallToolRequest, input DecideReviewInput) (*mcp.CallToolResult, DecideReviewOutput, error) {
	if input.RequestID == "" {
		return nil, DecideReviewOutput{Error: "request_id is required"}, nil
	}
	outcome, err := s.client.DecideReview(ctx, input.RequestID, input.Approve, input.DeciderUserID)
	if err != nil {
		return nil, DecideReviewOutput{Error: err.Error()}, nil
	}
	s.logger.Info().
		Str("request_id", input.RequestID).
		Str("state", string(outcome.State)).
		Int64("decider", input.DeciderUserID).
		Msg("review decided via mcp")
	return nil, DecideReviewOutput{State: outcome.State, Executed: outcome.Executed}, nil
}

// ResetChatInput is the input for moderation_reset_chat
type ResetChatInput struct {
	ChatID int64 `json:"chat_id" jsonschema:"Telegram chat ID to reset"`
}

// ResetChatOutput reports whether the reset succeeded
type ResetChatOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) resetChat(ctx context.Context, req *mcp.CallToolRequest, input ResetChatInput) (*mcp.CallToolResult, ResetChatOutput, error) {
	if input.ChatID == 0 {
		return nil, ResetChatOutput{Error: "chat_id is required"}, nil
	}
	if err := s.client.ResetChat(ctx, input.ChatID); err != nil {
		return nil, ResetChatOutput{Error: err.Error()}, nil
	}
	return nil, ResetChatOutput{Success: true}, nil
}
