package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/boddenberg/finanzo-go/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Remote session
// ============================================================

// AttachRemote makes later mutations mirror to the remote store as sess.
func (s *Store) AttachRemote(sess *domain.RemoteSession) {
	s.session.Store(sess)
}

// DetachRemote stops mirroring. Writes already dispatched still run.
func (s *Store) DetachRemote() {
	s.session.Store(nil)
}

// RemoteSession is the session mirror writes run as, nil when offline.
func (s *Store) RemoteSession() *domain.RemoteSession {
	return s.session.Load()
}

// Wait blocks until every dispatched mirror write has finished.
func (s *Store) Wait() {
	s.inflight.Wait()
}

// ============================================================
// Mirror writes
// ============================================================

// mirror dispatches one best-effort remote write. It never reports an
// error: failures are logged, counted and queued in the outbox.
// Writes reach the remote in the order mirror was called; each one waits
// for the previous to finish.
func (s *Store) mirror(ctx context.Context, entity, op, rowID string, payload any) {
	sess := s.session.Load()
	if s.remote == nil || sess == nil {
		return
	}

	w := domain.PendingWrite{
		ID:       uuid.NewString(),
		UserID:   sess.UserID,
		Entity:   entity,
		Op:       op,
		RowID:    rowID,
		QueuedAt: s.now(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			s.logger.Error("mirror: cannot encode payload", zap.String("entity", entity), zap.Error(err))
			return
		}
		w.Payload = raw
	}

	s.chainMu.Lock()
	prev := s.tail
	done := make(chan struct{})
	s.tail = done
	s.chainMu.Unlock()

	ctx = context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer close(done)
		if prev != nil {
			<-prev
		}

		wctx, cancel := context.WithTimeout(ctx, s.opts.MirrorTimeout)
		defer cancel()
		if err := s.bulkhead.Acquire(wctx); err != nil {
			s.metrics.RecordMirrorWrite(w.Entity, w.Op, "queued")
			s.enqueue(ctx, w)
			return
		}
		defer s.bulkhead.Release()
		s.dispatch(wctx, sess, w)
	}()
}

func (s *Store) dispatch(ctx context.Context, sess *domain.RemoteSession, w domain.PendingWrite) {
	ctx, span := tracer.Start(ctx, "Store.mirror")
	defer span.End()
	span.SetAttributes(
		attribute.String("mirror.entity", w.Entity),
		attribute.String("mirror.op", w.Op),
	)

	octx := context.WithoutCancel(ctx)
	s.outboxMu.Lock()
	defer s.outboxMu.Unlock()
	pending := s.loadOutbox(octx)

	// a row whose insert never reached the remote has nothing to delete
	if w.Op == domain.OpDelete {
		if kept := withoutInsertOf(pending, w); len(kept) < len(pending) {
			s.saveOutbox(octx, kept)
			s.metrics.RecordMirrorWrite(w.Entity, w.Op, "skipped")
			return
		}
	}

	// later writes wait behind the user's queued ones so replay keeps order
	if slices.ContainsFunc(pending, func(p domain.PendingWrite) bool { return ownedBy(p, sess.UserID) }) {
		s.metrics.RecordMirrorWrite(w.Entity, w.Op, "queued")
		s.saveOutbox(octx, append(pending, w))
		return
	}

	err := s.apply(ctx, sess, w)
	switch {
	case err == nil:
		s.metrics.RecordMirrorWrite(w.Entity, w.Op, "ok")
	case rejected(err):
		s.metrics.RecordMirrorWrite(w.Entity, w.Op, "rejected")
		s.logger.Error("mirror write rejected by remote, dropping",
			zap.String("entity", w.Entity),
			zap.String("op", w.Op),
			zap.String("row_id", w.RowID),
			zap.Error(err),
		)
	default:
		s.metrics.RecordMirrorWrite(w.Entity, w.Op, "failed")
		s.logger.Warn("mirror write failed, queued for replay",
			zap.String("entity", w.Entity),
			zap.String("op", w.Op),
			zap.String("row_id", w.RowID),
			zap.Error(err),
		)
		w.Attempts++
		s.saveOutbox(octx, append(pending, w))
	}
}

// apply performs w against the remote store.
func (s *Store) apply(ctx context.Context, sess *domain.RemoteSession, w domain.PendingWrite) error {
	switch w.Entity + "/" + w.Op {
	case domain.EntityTransactions + "/" + domain.OpInsert:
		var t domain.Transaction
		if err := json.Unmarshal(w.Payload, &t); err != nil {
			return &domain.ErrValidation{Field: "payload", Message: err.Error()}
		}
		return s.remote.InsertTransaction(ctx, sess, t)
	case domain.EntityTransactions + "/" + domain.OpDelete:
		return s.remote.DeleteTransaction(ctx, sess, w.RowID)

	case domain.EntityEnergyBills + "/" + domain.OpInsert:
		var b domain.EnergyBill
		if err := json.Unmarshal(w.Payload, &b); err != nil {
			return &domain.ErrValidation{Field: "payload", Message: err.Error()}
		}
		return s.remote.InsertEnergyBill(ctx, sess, b)
	case domain.EntityEnergyBills + "/" + domain.OpDelete:
		return s.remote.DeleteEnergyBill(ctx, sess, w.RowID)

	case domain.EntityCategories + "/" + domain.OpInsert:
		var c domain.Category
		if err := json.Unmarshal(w.Payload, &c); err != nil {
			return &domain.ErrValidation{Field: "payload", Message: err.Error()}
		}
		return s.remote.InsertCategory(ctx, sess, c)
	case domain.EntityCategories + "/" + domain.OpDelete:
		return s.remote.DeleteCategory(ctx, sess, w.RowID)

	case domain.EntityProfiles + "/" + domain.OpUpdate:
		var p struct {
			Theme domain.Theme `json:"theme"`
		}
		if err := json.Unmarshal(w.Payload, &p); err != nil {
			return &domain.ErrValidation{Field: "payload", Message: err.Error()}
		}
		return s.remote.UpdateProfileTheme(ctx, sess, p.Theme)
	}
	return &domain.ErrValidation{Field: "entity", Message: fmt.Sprintf("unknown mirror write %s/%s", w.Entity, w.Op)}
}

// rejected reports failures that replaying cannot fix.
func rejected(err error) bool {
	var v *domain.ErrValidation
	return errors.As(err, &v)
}

// SeedRemoteCategories mirrors the built-in categories to a remote account
// that has none yet, so transactions filed under them keep their category
// after the next remote load.
func (s *Store) SeedRemoteCategories(ctx context.Context) {
	for _, c := range domain.DefaultCategories() {
		s.mirror(ctx, domain.EntityCategories, domain.OpInsert, c.ID, c)
	}
}

// MirrorTheme sends the theme preference to the remote profile.
func (s *Store) MirrorTheme(ctx context.Context, theme domain.Theme) {
	sess := s.session.Load()
	if sess == nil {
		return
	}
	s.mirror(ctx, domain.EntityProfiles, domain.OpUpdate, sess.UserID, map[string]domain.Theme{"theme": theme})
}

// ============================================================
// Outbox
// ============================================================

func (s *Store) loadOutbox(ctx context.Context) []domain.PendingWrite {
	var pending []domain.PendingWrite
	s.readJSON(ctx, keyOutbox, &pending)
	return pending
}

func (s *Store) saveOutbox(ctx context.Context, pending []domain.PendingWrite) {
	s.metrics.SetOutboxPending(len(pending))
	if len(pending) == 0 {
		if err := s.local.Delete(ctx, keyOutbox); err != nil {
			s.logger.Error("outbox: clear failed", zap.Error(err))
		}
		return
	}
	_ = s.persist(ctx, keyOutbox, pending)
}

func (s *Store) enqueue(ctx context.Context, w domain.PendingWrite) {
	s.outboxMu.Lock()
	defer s.outboxMu.Unlock()
	s.saveOutbox(ctx, append(s.loadOutbox(ctx), w))
}

// withoutInsertOf drops the queued insert of the row del deletes.
func withoutInsertOf(pending []domain.PendingWrite, del domain.PendingWrite) []domain.PendingWrite {
	return without(pending, func(p domain.PendingWrite) bool {
		return p.Entity == del.Entity && p.Op == domain.OpInsert && p.RowID == del.RowID && p.UserID == del.UserID
	})
}

// ownedBy reports whether w is replayed by userID's session. Entries
// queued before writes carried a user belong to whoever flushes first.
func ownedBy(w domain.PendingWrite, userID string) bool {
	return w.UserID == "" || w.UserID == userID
}

// PendingWrites lists the outbox in replay order.
func (s *Store) PendingWrites(ctx context.Context) []domain.PendingWrite {
	s.outboxMu.Lock()
	defer s.outboxMu.Unlock()
	return s.loadOutbox(ctx)
}

// FlushOutbox replays, in order, the queued writes of the attached
// session's user. Replay stops at the first entry that fails again, so
// nothing overtakes it; rejected entries are dropped. Other users'
// entries wait for their own session.
// It returns how many were replayed.
func (s *Store) FlushOutbox(ctx context.Context) int {
	sess := s.session.Load()
	if s.remote == nil || sess == nil {
		return 0
	}

	ctx, span := tracer.Start(ctx, "Store.FlushOutbox")
	defer span.End()

	s.outboxMu.Lock()
	defer s.outboxMu.Unlock()

	pending := s.loadOutbox(ctx)
	if len(pending) == 0 {
		s.metrics.SetOutboxPending(0)
		return 0
	}

	var (
		remaining []domain.PendingWrite
		replayed  int
		stalled   bool
	)
	for i, w := range pending {
		if ctx.Err() != nil {
			remaining = append(remaining, pending[i:]...)
			break
		}
		if stalled || !ownedBy(w, sess.UserID) {
			remaining = append(remaining, w)
			continue
		}
		err := s.apply(ctx, sess, w)
		switch {
		case err == nil:
			replayed++
			s.metrics.RecordMirrorWrite(w.Entity, w.Op, "ok")
		case rejected(err):
			s.metrics.RecordMirrorWrite(w.Entity, w.Op, "rejected")
			s.logger.Error("outbox: entry rejected, dropping", zap.String("id", w.ID), zap.Error(err))
		default:
			w.Attempts++
			remaining = append(remaining, w)
			stalled = true
			s.logger.Warn("outbox: replay failed, holding the rest", zap.String("id", w.ID), zap.Error(err))
		}
	}

	s.saveOutbox(context.WithoutCancel(ctx), remaining)
	s.metrics.AddOutboxReplayed(replayed)
	span.SetAttributes(attribute.Int("outbox.replayed", replayed), attribute.Int("outbox.remaining", len(remaining)))
	s.logger.Info("outbox flushed", zap.Int("replayed", replayed), zap.Int("remaining", len(remaining)))
	return replayed
}
