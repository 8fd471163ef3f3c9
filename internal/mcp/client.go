package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

// Client is the HTTP client for the moderator admin API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new admin API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// BufferSummary gets pending message counts per chat
func (c *Client) BufferSummary(ctx context.Context) ([]domain.BufferSummary, error) {
	var result struct {
		Chats []domain.BufferSummary `json:"chats"`
	}
	if err := c.get(ctx, "/api/buffer/summary", &result); err != nil {
		return nil, err
	}
	return result.Chats, nil
}

// ListReviews gets open review requests, chatID 0 lists every chat
func (c *Client) ListReviews(ctx context.Context, chatID int64) ([]domain.ReviewRequest, error) {
	path := "/api/reviews"
	if chatID != 0 {
		path += "?chat_id=" + url.QueryEscape(strconv.FormatInt(chatID, 10))
	}
	var result struct {
		Reviews []domain.ReviewRequest `json:"reviews"`
	}
	if err := c.get(ctx, path, &result); err != nil {
		return nil, err
	}
	return result.Reviews, nil
}

// DecideReview approves or rejects a review request on behalf of deciderUserID
func (c *Client) DecideReview(ctx context.Context, requestID string, approve bool, deciderUserID int64) (domain.ReviewOutcome, error) {
	body := map[string]interface{}{
		"approve":         approve,
		"decider_user_id": deciderUserID,
	}
	var result struct {
		Outcome domain.ReviewOutcome `json:"outcome"`
	}
	if err := c.post(ctx, fmt.Sprintf("/api/reviews/%s/decision", url.PathEscape(requestID)), body, &result); err != nil {
		return domain.ReviewOutcome{}, err
	}
	return result.Outcome, nil
}

// ResetChat clears buffered messages and stored state of a chat
func (c *Client) ResetChat(ctx context.Context, chatID int64) error {
	return c.post(ctx, fmt.Sprintf("/api/chats/%d/reset", chatID), nil, nil)
}

// ============ HTTP Helpers ============

func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(req, result)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, result interface{}) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, result)
}

func (c *Client) do(req *http.Request, result interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP %s failed: %w", req.Method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
