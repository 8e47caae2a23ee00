package match

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turumi/turumi-match/internal/identity"
)

func eventTypes(events []WatchEvent) []WatchEventType {
	out := make([]WatchEventType, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Type)
	}
	return out
}

func TestWatcherFirstPollIsBaseline(t *testing.T) {
	repo := &fakeRepo{records: []Record{
		{ID: "a", FromUser: 2, ToUser: 1, Status: StatusPending},
		{ID: "b", FromUser: 1, ToUser: 3, Status: StatusMatched},
	}}
	w := NewWatcher(repo, identity.Static(alice), time.Minute, nil, nil)

	events, err := w.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWatcherReportsChanges(t *testing.T) {
	repo := &fakeRepo{records: []Record{
		{ID: "a", FromUser: 1, ToUser: 2, Status: StatusPending},
	}}
	var seen []WatchEvent
	w := NewWatcher(repo, identity.Static(alice), time.Minute, func(ev WatchEvent) {
		seen = append(seen, ev)
	}, nil)
	ctx := context.Background()

	_, err := w.Poll(ctx)
	require.NoError(t, err)

	repo.records[0].Status = StatusMatched
	repo.records = append(repo.records,
		Record{ID: "c", FromUser: 4, ToUser: 1, Status: StatusPending},
		Record{ID: "d", FromUser: 1, ToUser: 5, Status: StatusPending},
		Record{ID: "e", FromUser: 6, ToUser: 7, Status: StatusPending},
	)

	events, err := w.Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, []WatchEventType{EventNewMatch, EventIncomingLike}, eventTypes(events))
	assert.Equal(t, int64(2), events[0].Other)
	assert.Equal(t, int64(4), events[1].Other)
	assert.Equal(t, events, seen)

	events, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestWatcherReportsDoublePendingOnce(t *testing.T) {
	repo := &fakeRepo{records: []Record{
		{ID: "a", FromUser: 1, ToUser: 2, Status: StatusPending},
		{ID: "b", FromUser: 2, ToUser: 1, Status: StatusPending},
	}}
	w := NewWatcher(repo, identity.Static(alice), time.Minute, nil, nil)
	ctx := context.Background()

	events, err := w.Poll(ctx)
	require.NoError(t, err)
	require.Equal(t, []WatchEventType{EventDoublePending}, eventTypes(events))
	assert.Equal(t, int64(2), events[0].Other)
	assert.Equal(t, ID("b"), events[0].Record.ID)

	events, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	// Resolving the pair through a like clears the report.
	out, err := NewReconciler(repo, nil).Like(ctx, alice, 2)
	require.NoError(t, err)
	require.Equal(t, Matched, out.Kind)

	events, err = w.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []WatchEventType{EventNewMatch}, eventTypes(events))
}

func TestWatcherWithoutSession(t *testing.T) {
	repo := &fakeRepo{}
	w := NewWatcher(repo, identity.Static{}, time.Minute, nil, nil)

	_, err := w.Poll(context.Background())
	assert.ErrorIs(t, err, ErrAuth)
	assert.Zero(t, repo.listCalls)
}

func TestWatcherRunStopsOnCancel(t *testing.T) {
	repo := &fakeRepo{listErr: &RequestError{Kind: ErrTransport, Op: opList, Err: errors.New("down")}}
	w := NewWatcher(repo, identity.Static(alice), 10*time.Millisecond, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, repo.listCalls, 1)
}

func TestWatcherDefaultsNonPositiveInterval(t *testing.T) {
	for _, interval := range []time.Duration{0, -time.Second} {
		w := NewWatcher(&fakeRepo{}, identity.Static(alice), interval, nil, nil)
		assert.Equal(t, DefaultWatchInterval, w.interval)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.NotPanics(t, func() { _ = w.Run(ctx) })
	}
}
