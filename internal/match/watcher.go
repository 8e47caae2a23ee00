// internal/match/watcher.go

package match

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/identity"
)

// WatchEventType classifies a change seen between two polls.
type WatchEventType string

const (
	EventNewMatch      WatchEventType = "new_match"
	EventIncomingLike  WatchEventType = "incoming_like"
	EventDoublePending WatchEventType = "double_pending"
)

// WatchEvent is emitted by the Watcher. Other is the counterpart user.
type WatchEvent struct {
	Type   WatchEventType
	Other  int64
	Record Record
}

// Watcher polls the store and reports changes for the current user. It
// shares only the Repository with the Reconciler and never writes.
type Watcher struct {
	repo     Repository
	provider identity.Provider
	interval time.Duration
	logger   *zap.Logger
	onEvent  func(WatchEvent)

	mu       sync.Mutex
	baseline bool
	prev     map[ID]Record
	doubles  map[pairKey]bool
}

type pairKey struct {
	lo, hi int64
}

func keyOf(a, b int64) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// DefaultWatchInterval replaces a non-positive poll interval.
const DefaultWatchInterval = 15 * time.Second

func NewWatcher(repo Repository, provider identity.Provider, interval time.Duration, onEvent func(WatchEvent), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	if onEvent == nil {
		onEvent = func(WatchEvent) {}
	}
	return &Watcher{
		repo:     repo,
		provider: provider,
		interval: interval,
		logger:   logger,
		onEvent:  onEvent,
		prev:     map[ID]Record{},
		doubles:  map[pairKey]bool{},
	}
}

// Run polls until ctx is cancelled. Poll errors are logged, not returned.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (w *Watcher) tick(ctx context.Context) {
	if _, err := w.Poll(ctx); err != nil {
		watchErrorsTotal.Inc()
		w.logger.Warn("match poll failed", zap.String("kind", kindLabel(err)), zap.Error(err))
	}
}

// Poll fetches one snapshot, diffs it against the previous one and emits
// the resulting events. The first poll only records a baseline, apart from
// double-pending pairs which are reported whenever first seen.
func (w *Watcher) Poll(ctx context.Context) ([]WatchEvent, error) {
	id, err := w.provider.Current(ctx)
	if err != nil {
		return nil, authError("watch", err)
	}
	all, err := w.repo.ListMatches(ctx, id)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	events := w.diff(id.UserID, all)
	w.mu.Unlock()

	for _, ev := range events {
		watchEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		w.onEvent(ev)
	}
	return events, nil
}

func (w *Watcher) diff(me int64, all []Record) []WatchEvent {
	var events []WatchEvent
	current := make(map[ID]Record, len(all))
	pending := map[pairKey]map[int64]Record{}
	matched := map[pairKey]bool{}

	for _, r := range all {
		if !r.Involves(me) {
			continue
		}
		current[r.ID] = r
		k := keyOf(r.FromUser, r.ToUser)

		switch r.Status {
		case StatusMatched:
			matched[k] = true
		case StatusPending:
			if pending[k] == nil {
				pending[k] = map[int64]Record{}
			}
			pending[k][r.FromUser] = r
		}

		if !w.baseline {
			continue
		}
		old, seen := w.prev[r.ID]
		switch {
		case r.Status == StatusMatched && (!seen || old.Status != StatusMatched):
			events = append(events, WatchEvent{Type: EventNewMatch, Other: r.Counterpart(me), Record: r})
		case r.Status == StatusPending && r.ToUser == me && !seen:
			events = append(events, WatchEvent{Type: EventIncomingLike, Other: r.FromUser, Record: r})
		}
	}

	doubles := map[pairKey]bool{}
	for k, dirs := range pending {
		if len(dirs) < 2 || matched[k] {
			continue
		}
		doubles[k] = true
		if w.doubles[k] {
			continue
		}
		other := k.lo
		if other == me {
			other = k.hi
		}
		events = append(events, WatchEvent{Type: EventDoublePending, Other: other, Record: dirs[other]})
	}

	w.prev = current
	w.doubles = doubles
	w.baseline = true
	return events
}
