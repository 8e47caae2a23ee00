// internal/match/service.go

package match

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/turumi/turumi-match/internal/identity"
)

const opReconcile = "reconcile"

// Reconciler turns like events into at most one write against the store.
// It keeps no state between calls and is safe for concurrent use.
type Reconciler struct {
	repo   Repository
	logger *zap.Logger
	now    func() time.Time
}

func NewReconciler(repo Repository, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{repo: repo, logger: logger, now: time.Now}
}

// Like reconciles "the caller likes target".
func (s *Reconciler) Like(ctx context.Context, id identity.Identity, target int64) (*Outcome, error) {
	return s.Reconcile(ctx, id, LikeEvent{Actor: id.UserID, Target: target})
}

// Reconcile decides from a fresh snapshot whether ev confirms a reverse
// pending like, is already recorded, or needs a new pending record.
func (s *Reconciler) Reconcile(ctx context.Context, id identity.Identity, ev LikeEvent) (*Outcome, error) {
	outcome, err := s.reconcile(ctx, id, ev)
	if err != nil {
		recordError(err)
		s.logger.Warn("reconciliation failed",
			zap.Int64("actor", ev.Actor),
			zap.Int64("target", ev.Target),
			zap.String("kind", kindLabel(err)),
			zap.Error(err),
		)
		return nil, err
	}

	recordOutcome(outcome.Kind)
	s.logger.Info("reconciled like",
		zap.Int64("actor", ev.Actor),
		zap.Int64("target", ev.Target),
		zap.String("outcome", outcome.Kind.String()),
		zap.String("match_id", string(outcome.Record.ID)),
	)
	return outcome, nil
}

func (s *Reconciler) reconcile(ctx context.Context, id identity.Identity, ev LikeEvent) (*Outcome, error) {
	if err := id.Check(s.now()); err != nil {
		return nil, identityError(opReconcile, id, err)
	}
	if err := validateEvent(id, ev); err != nil {
		return nil, err
	}

	all, err := s.repo.ListMatches(ctx, id)
	if err != nil {
		return nil, err
	}

	// Reverse-pending must be checked first: it also satisfies the
	// existence check below.
	if rec, ok := findReversePending(all, ev); ok {
		confirmed, err := s.repo.ConfirmMatch(ctx, rec.ID, id)
		if err != nil {
			return nil, err
		}
		return &Outcome{Kind: Matched, Record: *confirmed}, nil
	}

	if rec, ok := findExisting(all, ev); ok {
		return &Outcome{Kind: AlreadyExists, Record: rec}, nil
	}

	created, err := s.repo.CreatePendingMatch(ctx, id, ev.Target)
	if err != nil {
		return nil, err
	}
	return &Outcome{Kind: PendingCreated, Record: *created}, nil
}

func validateEvent(id identity.Identity, ev LikeEvent) error {
	switch {
	case ev.Actor != id.UserID:
		return fmt.Errorf("%w: actor %d is not the session user %d", ErrInvalidLike, ev.Actor, id.UserID)
	case ev.Target <= 0:
		return fmt.Errorf("%w: target %d", ErrInvalidLike, ev.Target)
	case ev.Target == ev.Actor:
		return fmt.Errorf("%w: cannot like yourself", ErrInvalidLike)
	}
	return nil
}

// findReversePending finds target -> actor in Pending.
func findReversePending(all []Record, ev LikeEvent) (Record, bool) {
	for _, r := range all {
		if r.FromUser == ev.Target && r.ToUser == ev.Actor && r.Status == StatusPending {
			return r, true
		}
	}
	return Record{}, false
}

// findExisting finds any Pending or Matched record for the pair, preferring
// a Matched one.
func findExisting(all []Record, ev LikeEvent) (Record, bool) {
	var (
		pending Record
		found   bool
	)
	for _, r := range all {
		if !r.Between(ev.Actor, ev.Target) {
			continue
		}
		switch r.Status {
		case StatusMatched:
			return r, true
		case StatusPending:
			if !found {
				pending, found = r, true
			}
		}
	}
	return pending, found
}
