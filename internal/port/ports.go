// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service
// layer from the local cache and the hosted backend.
package port

import (
	"context"

	"github.com/boddenberg/finanzo-go/internal/domain"
)

// LocalCache is the durable key/value store that survives restarts.
// Get reports ok=false for a missing key.
type LocalCache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// RemoteAuth is the hosted authentication service.
type RemoteAuth interface {
	SignInWithPassword(ctx context.Context, email, password string) (*domain.RemoteSession, error)
	GetUser(ctx context.Context, accessToken string) (*domain.RemoteUser, error)
	RefreshSession(ctx context.Context, refreshToken string) (*domain.RemoteSession, error)
	SignOut(ctx context.Context, accessToken string) error
}

// RemoteStore is the hosted database. Every call is scoped to the user
// that owns the session.
type RemoteStore interface {
	// Profiles
	GetProfile(ctx context.Context, sess *domain.RemoteSession) (*domain.RemoteProfile, error)
	UpdateProfileTheme(ctx context.Context, sess *domain.RemoteSession, theme domain.Theme) error

	// Transactions
	ListTransactions(ctx context.Context, sess *domain.RemoteSession) ([]domain.Transaction, error)
	InsertTransaction(ctx context.Context, sess *domain.RemoteSession, t domain.Transaction) error
	DeleteTransaction(ctx context.Context, sess *domain.RemoteSession, id string) error

	// Energy bills
	ListEnergyBills(ctx context.Context, sess *domain.RemoteSession) ([]domain.EnergyBill, error)
	InsertEnergyBill(ctx context.Context, sess *domain.RemoteSession, b domain.EnergyBill) error
	DeleteEnergyBill(ctx context.Context, sess *domain.RemoteSession, id string) error

	// Categories
	ListCategories(ctx context.Context, sess *domain.RemoteSession) ([]domain.Category, error)
	InsertCategory(ctx context.Context, sess *domain.RemoteSession, c domain.Category) error
	DeleteCategory(ctx context.Context, sess *domain.RemoteSession, id string) error
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// Pinger is implemented by dependencies that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}
