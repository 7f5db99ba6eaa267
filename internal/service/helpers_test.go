package service_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/infra/localstore"
	"github.com/boddenberg/finanzo-go/internal/infra/observability"
	"github.com/boddenberg/finanzo-go/internal/infra/resilience"
	"github.com/boddenberg/finanzo-go/internal/infra/supabase"
	"github.com/boddenberg/finanzo-go/internal/infra/supabase/supabasetest"
	"github.com/boddenberg/finanzo-go/internal/port"
	"github.com/boddenberg/finanzo-go/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var testAdmin = domain.NewAccount{
	Email:    "admin@finanzo.local",
	Name:     "Administrador",
	Password: "admin123",
	Role:     domain.RoleAdmin,
}

func newStore(t *testing.T, local port.LocalCache, remote port.RemoteStore, m *observability.Metrics) *service.Store {
	t.Helper()
	if m == nil {
		m = observability.NewMetrics()
	}
	s := service.NewStore(
		local,
		remote,
		resilience.NewBulkhead(4),
		service.StoreOptions{MirrorTimeout: 2 * time.Second, BcryptCost: bcrypt.MinCost},
		m,
		zap.NewNop(),
	)
	t.Cleanup(s.Wait)
	return s
}

func newRemote(t *testing.T) (*supabase.Client, *supabasetest.Server) {
	t.Helper()
	srv := supabasetest.New()
	t.Cleanup(srv.Close)

	c := supabase.NewClient(
		&http.Client{Timeout: 2 * time.Second},
		srv.URL,
		supabasetest.AnonKey,
		resilience.NewCircuitBreaker("supabase-test"),
		resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond},
		zap.NewNop(),
	)
	return c, srv
}

func signIn(t *testing.T, c *supabase.Client, srv *supabasetest.Server, email string) *domain.RemoteSession {
	t.Helper()
	srv.AddUser(email, "s3cret", "Ana")
	sess, err := c.SignInWithPassword(context.Background(), email, "s3cret")
	require.NoError(t, err)
	return sess
}

func tx(desc string, amount float64, date string, typ domain.TransactionType) domain.Transaction {
	return domain.Transaction{Description: desc, Amount: amount, Date: date, CategoryID: "4", Type: typ}
}

// brokenCache fails every write while broken is set.
type brokenCache struct {
	*localstore.Memory

	mu     sync.Mutex
	broken bool
}

func newBrokenCache() *brokenCache {
	return &brokenCache{Memory: localstore.NewMemory()}
}

func (b *brokenCache) Break(v bool) {
	b.mu.Lock()
	b.broken = v
	b.mu.Unlock()
}

func (b *brokenCache) Set(ctx context.Context, key, value string) error {
	b.mu.Lock()
	broken := b.broken
	b.mu.Unlock()
	if broken {
		return errors.New("disk full")
	}
	return b.Memory.Set(ctx, key, value)
}

// recordingRemote keeps rows in memory and logs calls in arrival order.
// Only the transaction and category writes are implemented.
type recordingRemote struct {
	port.RemoteStore

	insertDelay time.Duration

	mu    sync.Mutex
	down  bool
	calls []string
	rows  map[string]bool
}

func newRecordingRemote() *recordingRemote {
	return &recordingRemote{rows: make(map[string]bool)}
}

func (r *recordingRemote) SetDown(v bool) {
	r.mu.Lock()
	r.down = v
	r.mu.Unlock()
}

func (r *recordingRemote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recordingRemote) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rows[id]
}

func (r *recordingRemote) InsertTransaction(_ context.Context, _ *domain.RemoteSession, t domain.Transaction) error {
	time.Sleep(r.insertDelay)
	return r.record("insert transaction", t.ID, true)
}

func (r *recordingRemote) DeleteTransaction(_ context.Context, _ *domain.RemoteSession, id string) error {
	return r.record("delete transaction", id, false)
}

func (r *recordingRemote) InsertCategory(_ context.Context, _ *domain.RemoteSession, c domain.Category) error {
	return r.record("insert category", c.ID, true)
}

func (r *recordingRemote) record(call, id string, present bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return &domain.ErrExternalService{Service: "recording", Err: errors.New("unavailable")}
	}
	r.calls = append(r.calls, call)
	if present {
		r.rows[id] = true
	} else {
		delete(r.rows, id)
	}
	return nil
}
