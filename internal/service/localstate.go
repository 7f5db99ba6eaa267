package service

import (
	"context"
	"encoding/json"

	"github.com/boddenberg/finanzo-go/internal/domain"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Local cache keys.
const (
	keyPrefix       = "finanzo_"
	keyUser         = keyPrefix + "user"
	keySession      = keyPrefix + "session"
	keyTransactions = keyPrefix + "transactions"
	keyEnergy       = keyPrefix + "energy"
	keyCategories   = keyPrefix + "categories"
	keyAccounts     = keyPrefix + "accounts"
	keyTheme        = keyPrefix + "theme"
	keyOutbox       = keyPrefix + "outbox"
)

// persist overwrites key with the JSON form of v.
func (s *Store) persist(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err == nil {
		err = s.local.Set(ctx, key, string(data))
	}
	if err != nil {
		s.metrics.IncrLocalWriteError(key)
		s.logger.Error("local cache write failed", zap.String("key", key), zap.Error(err))
		return &domain.ErrLocalCache{Key: key, Err: err}
	}
	return nil
}

// readJSON decodes key into dst. A missing key reports false; so does an
// unreadable value, which is logged and then ignored.
func (s *Store) readJSON(ctx context.Context, key string, dst any) bool {
	raw, ok, err := s.local.Get(ctx, key)
	if err != nil {
		s.logger.Warn("local cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.Warn("local cache value is corrupt, ignoring", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// LoadLocal replaces the ledger collections with what the local cache
// holds. Categories fall back to the built-in set when never saved.
func (s *Store) LoadLocal(ctx context.Context) {
	ctx, span := tracer.Start(ctx, "Store.LoadLocal")
	defer span.End()

	var (
		txs   []domain.Transaction
		bills []domain.EnergyBill
		cats  []domain.Category
	)
	s.readJSON(ctx, keyTransactions, &txs)
	s.readJSON(ctx, keyEnergy, &bills)
	if !s.readJSON(ctx, keyCategories, &cats) {
		cats = domain.DefaultCategories()
	}

	s.mu.Lock()
	next := s.state.Load().clone()
	next.transactions = nonNil(txs)
	next.bills = nonNil(bills)
	next.categories = nonNil(cats)
	s.state.Store(next)
	s.mu.Unlock()

	s.logger.Info("state loaded from local cache",
		zap.Int("transactions", len(txs)),
		zap.Int("energy_bills", len(bills)),
		zap.Int("categories", len(cats)),
	)
}

// Adopt replaces the ledger collections with data fetched from the
// remote store and writes them through to the local cache. An empty
// category list means the user never created any; the built-in set is
// used.
func (s *Store) Adopt(ctx context.Context, txs []domain.Transaction, bills []domain.EnergyBill, cats []domain.Category) {
	ctx, span := tracer.Start(ctx, "Store.Adopt")
	defer span.End()

	if len(cats) == 0 {
		cats = domain.DefaultCategories()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Load().clone()
	next.transactions = nonNil(txs)
	next.bills = nonNil(bills)
	next.categories = cats
	s.state.Store(next)

	// failures are logged by persist; the remote copy is still authoritative
	_ = s.persist(ctx, keyTransactions, next.transactions)
	_ = s.persist(ctx, keyEnergy, next.bills)
	_ = s.persist(ctx, keyCategories, next.categories)
}

// LoadAccounts reads the account registry. On first run the registry is
// seeded with admin and saved at once. Entries still carrying a plain
// password are re-saved hashed.
func (s *Store) LoadAccounts(ctx context.Context, admin domain.NewAccount) error {
	ctx, span := tracer.Start(ctx, "Store.LoadAccounts")
	defer span.End()

	var accs []domain.UserAccount
	changed := false

	if !s.readJSON(ctx, keyAccounts, &accs) {
		if admin.Role == "" {
			admin.Role = domain.RoleAdmin
		}
		seed, err := s.newAccount(admin)
		if err != nil {
			return err
		}
		accs = []domain.UserAccount{seed}
		changed = true
		s.logger.Info("account registry seeded", zap.String("email", seed.Email))
	}

	for i := range accs {
		accs[i].Email = domain.NormalizeEmail(accs[i].Email)
		if accs[i].LegacyPassword == "" {
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(accs[i].LegacyPassword), s.opts.BcryptCost)
		if err != nil {
			return err
		}
		accs[i].PasswordHash = string(hash)
		accs[i].LegacyPassword = ""
		changed = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state.Load().clone()
	next.accounts = accs
	s.state.Store(next)

	if changed {
		return s.persist(ctx, keyAccounts, accs)
	}
	return nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
