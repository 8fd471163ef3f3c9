package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DevRickLin/chat-moderator/internal/biz/domain"
)

type memReviewRepo struct {
	reqs map[string]domain.ReviewRequest
	ann  map[string]string
}

func newMemReviewRepo() *memReviewRepo {
	return &memReviewRepo{reqs: map[string]domain.ReviewRequest{}, ann: map[string]string{}}
}

func annKey(chatID, msgID int64) string { return fmt.Sprintf("%d:%d", chatID, msgID) }

func (r *memReviewRepo) Save(ctx context.Context, req *domain.ReviewRequest) error {
	r.reqs[req.ID] = *req
	return nil
}

func (r *memReviewRepo) Get(ctx context.Context, id string) (*domain.ReviewRequest, error) {
	req, ok := r.reqs[id]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	return &req, nil
}

func (r *memReviewRepo) FindByAnnouncement(ctx context.Context, chatID, msgID int64) (*domain.ReviewRequest, error) {
	id, ok := r.ann[annKey(chatID, msgID)]
	if !ok {
		return nil, domain.ErrReviewNotFound
	}
	return r.Get(ctx, id)
}

func (r *memReviewRepo) LinkAnnouncement(ctx context.Context, req *domain.ReviewRequest) error {
	r.ann[annKey(req.ChatID, req.AnnouncementMessageID)] = req.ID
	return nil
}

func (r *memReviewRepo) Delete(ctx context.Context, req *domain.ReviewRequest) error {
	delete(r.reqs, req.ID)
	delete(r.ann, annKey(req.ChatID, req.AnnouncementMessageID))
	return nil
}

func (r *memReviewRepo) List(ctx context.Context) ([]*domain.ReviewRequest, error) {
	out := make([]*domain.ReviewRequest, 0, len(r.reqs))
	for _, req := range r.reqs {
		cp := req
		out = append(out, &cp)
	}
	return out, nil
}

type fakeAnnouncer struct {
	fail   bool
	nextID int64
	closed []domain.ReviewState

	// when set, AnnounceReview signals entered and waits on gate
	entered chan struct{}
	gate    chan struct{}
}

func (a *fakeAnnouncer) AnnounceReview(ctx context.Context, req *domain.ReviewRequest) (int64, error) {
	if a.gate != nil {
		a.entered <- struct{}{}
		<-a.gate
	}
	if a.fail {
		return 0, errors.New("send failed")
	}
	a.nextID++
	return 9000 + a.nextID, nil
}

func (a *fakeAnnouncer) ReviewClosed(ctx context.Context, req *domain.ReviewRequest, state domain.ReviewState) error {
	a.closed = append(a.closed, state)
	return nil
}

type recordingExecutor struct {
	events []domain.ModerationEvent
}

func (e *recordingExecutor) ExecuteModeration(ctx context.Context, ev domain.ModerationEvent) error {
	e.events = append(e.events, ev)
	return nil
}

func TestReviewBuilderGatesOnlyKickAndBan(t *testing.T) {
	b := NewReviewRequestBuilder(time.Hour)
	resolutions := []domain.AgentResolution{
		{Message: msg(1, 1, "a"), Moderation: []domain.ModerationDecision{{MessageID: 1, UserID: 11, Action: domain.ActionDelete, TargetMessageID: 1}}},
		{Message: msg(1, 2, "b"), Moderation: []domain.ModerationDecision{{MessageID: 2, UserID: 12, Action: domain.ActionKick}}},
		{Message: msg(1, 3, "c"), Moderation: []domain.ModerationDecision{{MessageID: 3, UserID: 13, Action: domain.ActionBan}}},
		{Message: msg(1, 4, "d"), Moderation: []domain.ModerationDecision{{MessageID: 4, UserID: 14, Action: domain.ActionMute, DurationMinutes: 5}}},
	}
	admins := []domain.ChatAdmin{{UserID: 1, Username: "boss"}, {UserID: 2, FirstName: "Ann"}}

	reqs, immediate := b.Build(1, resolutions, admins)
	require.Len(t, reqs, 2)
	assert.Equal(t, domain.ActionKick, reqs[0].Decision.Action)
	assert.Equal(t, domain.ActionBan, reqs[1].Decision.Action)
	assert.Equal(t, []string{"@boss", "Ann"}, reqs[0].AdminMentions)
	assert.Equal(t, 3600, reqs[0].TTLSeconds)
	assert.Contains(t, reqs[0].MessageContext, "b")

	require.Len(t, immediate, 2)
	ev := ImmediateEvent(1, immediate)
	require.NotNil(t, ev)
	for _, a := range ev.Actions {
		assert.NotEqual(t, domain.KindKickUser, a.Kind)
		assert.NotEqual(t, domain.KindBanUser, a.Kind)
	}
}

func newTestReviewManager(announcer *fakeAnnouncer, exec *recordingExecutor) (*ModerationReviewManager, *memReviewRepo) {
	store := newMemReviewRepo()
	m := NewModerationReviewManager(store, announcer, exec, ReviewConfig{TTL: time.Hour, MaxAnnounceAttempts: 3}, zerolog.Nop())
	n := 0
	m.newID = func() string { n++; return fmt.Sprintf("rv-%d", n) }
	return m, store
}

func kickRequest() domain.ReviewRequest {
	return domain.ReviewRequest{
		ChatID:       1,
		Decision:     domain.ModerationDecision{MessageID: 5, UserID: 50, Action: domain.ActionKick},
		AdminUserIDs: []int64{7},
	}
}

func TestReviewApproveExecutesDecision(t *testing.T) {
	ann := &fakeAnnouncer{}
	exec := &recordingExecutor{}
	m, store := newTestReviewManager(ann, exec)
	ctx := context.Background()

	stored, err := m.EnqueueRequests(ctx, []domain.ReviewRequest{kickRequest()})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.ReviewPrompted, stored[0].State)
	assert.Equal(t, int64(9001), stored[0].AnnouncementMessageID)

	out, err := m.HandleDecision(ctx, domain.ReviewDecisionEvent{ChatID: 1, AnnouncementMessageID: 9001, Approved: true, DeciderUserID: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewApproved, out.State)
	assert.True(t, out.Executed)

	require.Len(t, exec.events, 1)
	assert.Equal(t, domain.KindKickUser, exec.events[0].Actions[0].Kind)
	assert.Equal(t, int64(50), exec.events[0].Actions[0].UserID)
	assert.Empty(t, store.reqs)
	assert.Equal(t, []domain.ReviewState{domain.ReviewApproved}, ann.closed)
}

func TestReviewRejectHasNoSideEffect(t *testing.T) {
	exec := &recordingExecutor{}
	m, store := newTestReviewManager(&fakeAnnouncer{}, exec)
	ctx := context.Background()

	stored, err := m.EnqueueRequests(ctx, []domain.ReviewRequest{kickRequest()})
	require.NoError(t, err)

	out, err := m.HandleDecision(ctx, domain.ReviewDecisionEvent{RequestID: stored[0].ID, Approved: false, DeciderUserID: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewRejected, out.State)
	assert.Empty(t, exec.events)
	assert.Empty(t, store.reqs)
}

func TestReviewRejectsNonAdmin(t *testing.T) {
	exec := &recordingExecutor{}
	m, store := newTestReviewManager(&fakeAnnouncer{}, exec)
	ctx := context.Background()

	stored, err := m.EnqueueRequests(ctx, []domain.ReviewRequest{kickRequest()})
	require.NoError(t, err)

	_, err = m.HandleDecision(ctx, domain.ReviewDecisionEvent{RequestID: stored[0].ID, Approved: true, DeciderUserID: 99})
	assert.ErrorIs(t, err, domain.ErrNotAuthorized)
	assert.Empty(t, exec.events)
	assert.Len(t, store.reqs, 1)
}

func TestReviewExpiredDiscarded(t *testing.T) {
	exec := &recordingExecutor{}
	m, store := newTestReviewManager(&fakeAnnouncer{}, exec)
	ctx := context.Background()

	stored, err := m.EnqueueRequests(ctx, []domain.ReviewRequest{kickRequest()})
	require.NoError(t, err)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	out, err := m.HandleDecision(ctx, domain.ReviewDecisionEvent{RequestID: stored[0].ID, Approved: true, DeciderUserID: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewExpired, out.State)
	assert.Empty(t, exec.events)
	assert.Empty(t, store.reqs)

	out, err = m.HandleDecision(ctx, domain.ReviewDecisionEvent{RequestID: "missing", Approved: true})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewExpired, out.State)
}

func TestReviewRetryUnannounced(t *testing.T) {
	ann := &fakeAnnouncer{fail: true}
	m, store := newTestReviewManager(ann, &recordingExecutor{})
	ctx := context.Background()

	stored, err := m.EnqueueRequests(ctx, []domain.ReviewRequest{kickRequest()})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewPending, stored[0].State)

	pending, err := m.ListPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	ann.fail = false
	n, err := m.RetryUnannounced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, domain.ReviewPrompted, store.reqs[stored[0].ID].State)
	assert.Equal(t, 2, store.reqs[stored[0].ID].AnnounceAttempts)

	m.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	n, err = m.RetryUnannounced(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.reqs)
	assert.Equal(t, []domain.ReviewState{domain.ReviewExpired}, ann.closed)
}

func TestReviewDecisionNotBlockedBySlowAnnouncement(t *testing.T) {
	ann := &fakeAnnouncer{}
	exec := &recordingExecutor{}
	m, store := newTestReviewManager(ann, exec)
	ctx := context.Background()

	first, err := m.EnqueueRequests(ctx, []domain.ReviewRequest{kickRequest()})
	require.NoError(t, err)
	require.Equal(t, domain.ReviewPrompted, first[0].State)

	ann.entered = make(chan struct{})
	ann.gate = make(chan struct{})
	done := make(chan []domain.ReviewRequest)
	go func() {
		second, _ := m.EnqueueRequests(ctx, []domain.ReviewRequest{kickRequest()})
		done <- second
	}()
	<-ann.entered

	decided := make(chan domain.ReviewOutcome)
	go func() {
		out, _ := m.HandleDecision(ctx, domain.ReviewDecisionEvent{RequestID: first[0].ID, Approved: true, DeciderUserID: 7})
		decided <- out
	}()

	select {
	case out := <-decided:
		assert.Equal(t, domain.ReviewApproved, out.State)
	case <-time.After(2 * time.Second):
		t.Fatal("decision waited for an unrelated announcement")
	}

	close(ann.gate)
	second := <-done
	require.Len(t, second, 1)
	assert.Equal(t, domain.ReviewPrompted, second[0].State)
	assert.Equal(t, domain.ReviewPrompted, store.reqs[second[0].ID].State)
	require.Len(t, exec.events, 1)
}

func TestReviewClosedDuringAnnouncementStaysClosed(t *testing.T) {
	ann := &fakeAnnouncer{entered: make(chan struct{}), gate: make(chan struct{})}
	m, store := newTestReviewManager(ann, &recordingExecutor{})
	ctx := context.Background()

	done := make(chan []domain.ReviewRequest)
	go func() {
		stored, _ := m.EnqueueRequests(ctx, []domain.ReviewRequest{kickRequest()})
		done <- stored
	}()
	<-ann.entered

	out, err := m.HandleDecision(ctx, domain.ReviewDecisionEvent{RequestID: "rv-1", Approved: false, DeciderUserID: 7})
	require.NoError(t, err)
	assert.Equal(t, domain.ReviewRejected, out.State)

	close(ann.gate)
	<-done
	assert.Empty(t, store.reqs)
	assert.Empty(t, store.ann)
}
