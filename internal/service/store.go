package service

import (
	"context"
	"math"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/infra/observability"
	"github.com/boddenberg/finanzo-go/internal/infra/resilience"
	"github.com/boddenberg/finanzo-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var tracer = otel.Tracer("service/store")

// snapshot is one immutable version of the canonical collections.
// Slices are never modified after the snapshot is published.
type snapshot struct {
	transactions []domain.Transaction
	categories   []domain.Category
	bills        []domain.EnergyBill
	accounts     []domain.UserAccount
}

func (s *snapshot) clone() *snapshot {
	c := *s
	return &c
}

// StoreOptions tunes the synchronizer.
type StoreOptions struct {
	MirrorTimeout time.Duration
	BcryptCost    int
}

// Store owns the canonical state and keeps the local cache and the
// remote store in step with it. Readers never block; writers are
// serialized.
type Store struct {
	mu    sync.Mutex // serializes writers and their local-cache writes
	state atomic.Pointer[snapshot]

	local   port.LocalCache
	remote  port.RemoteStore // nil when the hosted backend is off
	session atomic.Pointer[domain.RemoteSession]

	bulkhead *resilience.Bulkhead
	inflight sync.WaitGroup
	chainMu  sync.Mutex
	tail     chan struct{} // closed when the latest mirror write is done
	outboxMu sync.Mutex

	opts    StoreOptions
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewStore creates a store holding the built-in categories and nothing
// else until it is loaded.
func NewStore(
	local port.LocalCache,
	remote port.RemoteStore,
	bulkhead *resilience.Bulkhead,
	opts StoreOptions,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Store {
	if opts.MirrorTimeout <= 0 {
		opts.MirrorTimeout = 10 * time.Second
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	s := &Store{
		local:    local,
		remote:   remote,
		bulkhead: bulkhead,
		opts:     opts,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
	}
	s.state.Store(&snapshot{categories: domain.DefaultCategories()})
	return s
}

// ============================================================
// Reads
// ============================================================

func (s *Store) Transactions() []domain.Transaction {
	return slices.Clone(s.state.Load().transactions)
}

func (s *Store) Categories() []domain.Category {
	return slices.Clone(s.state.Load().categories)
}

func (s *Store) EnergyBills() []domain.EnergyBill {
	return slices.Clone(s.state.Load().bills)
}

// Accounts lists the registry without credentials.
func (s *Store) Accounts() []domain.UserProfile {
	return profiles(s.state.Load().accounts)
}

// Account looks up one registry entry by e-mail.
func (s *Store) Account(email string) (domain.UserAccount, bool) {
	email = domain.NormalizeEmail(email)
	for _, a := range s.state.Load().accounts {
		if a.Email == email {
			return a, true
		}
	}
	return domain.UserAccount{}, false
}

// Authenticate checks a password against the local registry.
func (s *Store) Authenticate(email, password string) (domain.UserAccount, bool) {
	acc, ok := s.Account(email)
	if !ok || acc.PasswordHash == "" {
		return domain.UserAccount{}, false
	}
	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return domain.UserAccount{}, false
	}
	return acc, true
}

// ============================================================
// Transactions
// ============================================================

// AddTransaction prepends t, so the collection stays newest-first.
func (s *Store) AddTransaction(ctx context.Context, t domain.Transaction) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.AddTransaction")
	defer span.End()

	if err := validateTransaction(&t); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	span.SetAttributes(attribute.String("transaction.id", t.ID))

	next, err := s.commit(ctx, keyTransactions, func(n *snapshot) any {
		n.transactions = prepend(n.transactions, t)
		return n.transactions
	})
	s.mirror(ctx, domain.EntityTransactions, domain.OpInsert, t.ID, t)
	return slices.Clone(next.transactions), err
}

func (s *Store) DeleteTransaction(ctx context.Context, id string) ([]domain.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteTransaction")
	defer span.End()
	span.SetAttributes(attribute.String("transaction.id", id))

	next, err := s.commit(ctx, keyTransactions, func(n *snapshot) any {
		n.transactions = without(n.transactions, func(t domain.Transaction) bool { return t.ID == id })
		return n.transactions
	})
	s.mirror(ctx, domain.EntityTransactions, domain.OpDelete, id, nil)
	return slices.Clone(next.transactions), err
}

// ============================================================
// Energy bills
// ============================================================

// AddEnergyBill prepends b, so the collection stays newest-first.
func (s *Store) AddEnergyBill(ctx context.Context, b domain.EnergyBill) ([]domain.EnergyBill, error) {
	ctx, span := tracer.Start(ctx, "Store.AddEnergyBill")
	defer span.End()

	if err := validateEnergyBill(&b); err != nil {
		return nil, err
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	next, err := s.commit(ctx, keyEnergy, func(n *snapshot) any {
		n.bills = prepend(n.bills, b)
		return n.bills
	})
	s.mirror(ctx, domain.EntityEnergyBills, domain.OpInsert, b.ID, b)
	return slices.Clone(next.bills), err
}

func (s *Store) DeleteEnergyBill(ctx context.Context, id string) ([]domain.EnergyBill, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteEnergyBill")
	defer span.End()

	next, err := s.commit(ctx, keyEnergy, func(n *snapshot) any {
		n.bills = without(n.bills, func(b domain.EnergyBill) bool { return b.ID == id })
		return n.bills
	})
	s.mirror(ctx, domain.EntityEnergyBills, domain.OpDelete, id, nil)
	return slices.Clone(next.bills), err
}

// ============================================================
// Categories
// ============================================================

// AddCategory appends c.
func (s *Store) AddCategory(ctx context.Context, c domain.Category) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Store.AddCategory")
	defer span.End()

	if err := validateCategory(&c); err != nil {
		return nil, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}

	next, err := s.commit(ctx, keyCategories, func(n *snapshot) any {
		n.categories = appendCopy(n.categories, c)
		return n.categories
	})
	s.mirror(ctx, domain.EntityCategories, domain.OpInsert, c.ID, c)
	return slices.Clone(next.categories), err
}

// DeleteCategory leaves transactions pointing at id untouched; they
// resolve to no category from then on.
func (s *Store) DeleteCategory(ctx context.Context, id string) ([]domain.Category, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteCategory")
	defer span.End()

	next, err := s.commit(ctx, keyCategories, func(n *snapshot) any {
		n.categories = without(n.categories, func(c domain.Category) bool { return c.ID == id })
		return n.categories
	})
	s.mirror(ctx, domain.EntityCategories, domain.OpDelete, id, nil)
	return slices.Clone(next.categories), err
}

// ============================================================
// Accounts (local only, never mirrored)
// ============================================================

// AddAccount registers a local account with a bcrypt hash of the password.
func (s *Store) AddAccount(ctx context.Context, req domain.NewAccount) ([]domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Store.AddAccount")
	defer span.End()

	acc, err := s.newAccount(req)
	if err != nil {
		return nil, err
	}

	var conflict bool
	next, err := s.commit(ctx, keyAccounts, func(n *snapshot) any {
		for _, a := range n.accounts {
			if a.Email == acc.Email {
				conflict = true
				return nil
			}
		}
		n.accounts = appendCopy(n.accounts, acc)
		return n.accounts
	})
	if conflict {
		return nil, &domain.ErrConflict{Message: "Este e-mail já está cadastrado."}
	}

	s.logger.Info("account added", zap.String("email", acc.Email), zap.String("role", string(acc.Role)))
	return profiles(next.accounts), err
}

// DeleteAccount removes an account by e-mail. Callers enforce who may
// delete whom.
func (s *Store) DeleteAccount(ctx context.Context, email string) ([]domain.UserProfile, error) {
	ctx, span := tracer.Start(ctx, "Store.DeleteAccount")
	defer span.End()

	email = domain.NormalizeEmail(email)
	next, err := s.commit(ctx, keyAccounts, func(n *snapshot) any {
		n.accounts = without(n.accounts, func(a domain.UserAccount) bool { return a.Email == email })
		return n.accounts
	})
	return profiles(next.accounts), err
}

func (s *Store) newAccount(req domain.NewAccount) (domain.UserAccount, error) {
	email := domain.NormalizeEmail(req.Email)
	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		return domain.UserAccount{}, &domain.ErrValidation{Field: "name", Message: "obrigatório"}
	case email == "" || !strings.Contains(email, "@"):
		return domain.UserAccount{}, &domain.ErrValidation{Field: "email", Message: "e-mail inválido"}
	case req.Password == "":
		return domain.UserAccount{}, &domain.ErrValidation{Field: "password", Message: "obrigatório"}
	}

	role := req.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return domain.UserAccount{}, &domain.ErrValidation{Field: "role", Message: "use admin ou user"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.opts.BcryptCost)
	if err != nil {
		return domain.UserAccount{}, &domain.ErrValidation{Field: "password", Message: err.Error()}
	}
	return domain.UserAccount{Email: email, Name: name, PasswordHash: string(hash), Role: role}, nil
}

// ============================================================
// Commit: memory swap + local write
// ============================================================

// commit applies change to a copy of the current snapshot, publishes it
// and writes the collection change returns to key. A nil return means
// change decided not to modify anything. The published snapshot stands
// even when the local write fails; that error is returned.
func (s *Store) commit(ctx context.Context, key string, change func(n *snapshot) any) (*snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Load().clone()
	coll := change(next)
	if coll == nil {
		return s.state.Load(), nil
	}
	s.state.Store(next)

	return next, s.persist(ctx, key, coll)
}

// ============================================================
// Validation
// ============================================================

func validateTransaction(t *domain.Transaction) error {
	t.Description = strings.TrimSpace(t.Description)
	if t.Description == "" {
		return &domain.ErrValidation{Field: "description", Message: "obrigatório"}
	}
	if !positive(t.Amount) {
		return &domain.ErrValidation{Field: "amount", Message: "deve ser maior que zero"}
	}
	if !t.Type.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "use INCOME ou EXPENSE"}
	}
	if _, err := time.Parse(domain.DateLayout, t.Date); err != nil {
		return &domain.ErrValidation{Field: "date", Message: "use AAAA-MM-DD"}
	}
	return nil
}

func validateEnergyBill(b *domain.EnergyBill) error {
	b.Period = strings.TrimSpace(b.Period)
	if b.Period == "" {
		return &domain.ErrValidation{Field: "period", Message: "obrigatório"}
	}
	if !nonNegative(b.KWh) {
		return &domain.ErrValidation{Field: "kwh", Message: "não pode ser negativo"}
	}
	if !nonNegative(b.ProviderATotal) || !nonNegative(b.ProviderBTotal) {
		return &domain.ErrValidation{Field: "total", Message: "não pode ser negativo"}
	}
	return nil
}

func validateCategory(c *domain.Category) error {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		return &domain.ErrValidation{Field: "name", Message: "obrigatório"}
	}
	if !c.Type.Valid() {
		return &domain.ErrValidation{Field: "type", Message: "use INCOME ou EXPENSE"}
	}
	c.Color = domain.ParseCategoryColor(string(c.Color))
	if c.Icon == "" {
		c.Icon = "Tag"
	}
	return nil
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

// ============================================================
// Copy-on-write slice helpers
// ============================================================

func prepend[T any](s []T, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, v)
	return append(out, s...)
}

func appendCopy[T any](s []T, v T) []T {
	out := make([]T, 0, len(s)+1)
	out = append(out, s...)
	return append(out, v)
}

func without[T any](s []T, drop func(T) bool) []T {
	out := make([]T, 0, len(s))
	for _, v := range s {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}

func profiles(accs []domain.UserAccount) []domain.UserProfile {
	out := make([]domain.UserProfile, 0, len(accs))
	for _, a := range accs {
		out = append(out, a.Profile())
	}
	return out
}
