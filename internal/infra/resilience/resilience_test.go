package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/infra/resilience"
)

var fastRetry = resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond}

func TestRetryWithBackoff_RecoversAfterTransientFailures(t *testing.T) {
	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), fastRetry, func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestRetryWithBackoff_ReturnsLastError(t *testing.T) {
	cfg := resilience.Config{MaxRetries: 2, InitialBackoff: time.Millisecond}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), cfg, func() error {
		calls++
		return errors.New("supabase returned status 503")
	})

	if err == nil || err.Error() != "supabase returned status 503" {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 1 call plus 2 retries, got %d", calls)
	}
}

func TestRetryWithBackoff_PermanentStopsImmediately(t *testing.T) {
	notFound := &domain.ErrNotFound{Resource: "profile", ID: "u1"}

	calls := 0
	err := resilience.RetryWithBackoff(context.Background(), fastRetry, func() error {
		calls++
		return resilience.Permanent(notFound)
	})

	if calls != 1 {
		t.Errorf("expected a single call, got %d", calls)
	}
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected the unwrapped ErrNotFound, got %v", err)
	}
	if resilience.IsPermanent(err) {
		t.Error("permanent marker should be stripped from the returned error")
	}
}

func TestRetryWithBackoff_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := resilience.RetryWithBackoff(ctx, resilience.Config{MaxRetries: 5, InitialBackoff: time.Second}, func() error {
		t.Fatal("fn must not run with a cancelled context")
		return nil
	})

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExecute_OpenBreakerBecomesErrCircuitOpen(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test")
	boom := errors.New("boom")

	for i := 0; i < 5; i++ {
		_ = resilience.Execute(cb, "supabase", func() error { return boom })
	}

	err := resilience.Execute(cb, "supabase", func() error { return nil })
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if open.Service != "supabase" {
		t.Errorf("unexpected service %q", open.Service)
	}
}

func TestExecute_ClientErrorsDoNotTrip(t *testing.T) {
	cb := resilience.NewCircuitBreaker("test")

	for i := 0; i < 10; i++ {
		err := resilience.Execute(cb, "supabase", func() error {
			return &domain.ErrUnauthorized{Message: "invalid token"}
		})
		var un *domain.ErrUnauthorized
		if !errors.As(err, &un) {
			t.Fatalf("call %d: expected ErrUnauthorized, got %v", i, err)
		}
	}
}

func TestBulkhead_AcquireRelease(t *testing.T) {
	bh := resilience.NewBulkhead(2)

	for i := 0; i < 2; i++ {
		if err := bh.Acquire(context.Background()); err != nil {
			t.Fatalf("expected acquire, got %v", err)
		}
	}
	if bh.InUse() != 2 {
		t.Fatalf("expected 2 slots in use, got %d", bh.InUse())
	}

	// full: a bounded wait must give up
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := bh.Acquire(ctx); err == nil {
		t.Fatal("expected timeout on third acquire")
	}

	bh.Release()
	if err := bh.Acquire(context.Background()); err != nil {
		t.Fatalf("expected acquire after release, got %v", err)
	}
}
