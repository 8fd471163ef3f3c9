package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
	"github.com/DevRickLin/chat-moderator/internal/biz/repo"
)

func reviewKey(id string) string { return reviewPrefix + id }

func announceKey(chatID, msgID int64) string {
	return fmt.Sprintf("%s%d:%d", reviewAnnouncePrefix, chatID, msgID)
}

// reviewRepo keeps review records until their ExpiresAt
type reviewRepo struct {
	store repo.StateStore
	now   func() time.Time
}

// NewReviewRepo creates a review repository
func NewReviewRepo(store repo.StateStore) repo.ReviewRepo {
	return &reviewRepo{store: store, now: time.Now}
}

func (r *reviewRepo) ttl(req *domain.ReviewRequest) time.Duration {
	if req.ExpiresAt.IsZero() {
		return 0
	}
	ttl := req.ExpiresAt.Sub(r.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	return ttl
}

func (r *reviewRepo) Save(ctx context.Context, req *domain.ReviewRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode review %s: %w", req.ID, err)
	}
	return r.store.Set(ctx, reviewKey(req.ID), data, r.ttl(req))
}

func (r *reviewRepo) Get(ctx context.Context, id string) (*domain.ReviewRequest, error) {
	data, ok, err := r.store.Get(ctx, reviewKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	var req domain.ReviewRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode review %s: %w", id, err)
	}
	return &req, nil
}

func (r *reviewRepo) FindByAnnouncement(ctx context.Context, chatID, announcementMsgID int64) (*domain.ReviewRequest, error) {
	data, ok, err := r.store.Get(ctx, announceKey(chatID, announcementMsgID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	return r.Get(ctx, string(data))
}

func (r *reviewRepo) LinkAnnouncement(ctx context.Context, req *domain.ReviewRequest) error {
	return r.store.Set(ctx, announceKey(req.ChatID, req.AnnouncementMessageID), []byte(req.ID), r.ttl(req))
}

func (r *reviewRepo) Delete(ctx context.Context, req *domain.ReviewRequest) error {
	keys := []string{reviewKey(req.ID)}
	if req.AnnouncementMessageID != 0 {
		keys = append(keys, announceKey(req.ChatID, req.AnnouncementMessageID))
	}
	return r.store.Delete(ctx, keys...)
}

func (r *reviewRepo) List(ctx context.Context) ([]*domain.ReviewRequest, error) {
	keys, err := r.store.Keys(ctx, reviewPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.ReviewRequest, 0, len(keys))
	for _, k := range keys {
		req, err := r.Get(ctx, strings.TrimPrefix(k, reviewPrefix))
		if errors.Is(err, domain.ErrReviewNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}
