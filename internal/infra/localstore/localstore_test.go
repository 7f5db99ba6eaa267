package localstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/boddenberg/finanzo-go/internal/infra/localstore"
	"github.com/boddenberg/finanzo-go/internal/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type kvStore interface {
	port.LocalCache
	Keys(ctx context.Context) ([]string, error)
}

func stores(t *testing.T) map[string]kvStore {
	t.Helper()

	sq, err := localstore.OpenSQLite(context.Background(), ":memory:", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sq.Close() })

	return map[string]kvStore{
		"sqlite": sq,
		"memory": localstore.NewMemory(),
	}
}

func TestLocalCache_GetSetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, ok, err := s.Get(ctx, "finanzo_theme")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.Set(ctx, "finanzo_theme", "light"))
			require.NoError(t, s.Set(ctx, "finanzo_theme", "dark"))

			v, ok, err := s.Get(ctx, "finanzo_theme")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "dark", v)

			require.NoError(t, s.Set(ctx, "finanzo_user", `{"email":"a@b.c"}`))
			keys, err := s.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"finanzo_theme", "finanzo_user"}, keys)

			require.NoError(t, s.Delete(ctx, "finanzo_theme"))
			_, ok, err = s.Get(ctx, "finanzo_theme")
			require.NoError(t, err)
			assert.False(t, ok)

			// deleting a missing key is not an error
			require.NoError(t, s.Delete(ctx, "finanzo_theme"))
		})
	}
}

func TestSQLite_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "finanzo.db")

	s, err := localstore.OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "finanzo_transactions", `[{"id":"1"}]`))
	require.NoError(t, s.Close())

	// migrations are idempotent
	s, err = localstore.OpenSQLite(ctx, path, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	v, ok, err := s.Get(ctx, "finanzo_transactions")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, v)
	assert.NoError(t, s.Ping(ctx))
}
