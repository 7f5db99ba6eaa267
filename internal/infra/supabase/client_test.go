package supabase_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/infra/resilience"
	"github.com/boddenberg/finanzo-go/internal/infra/supabase"
	"github.com/boddenberg/finanzo-go/internal/infra/supabase/supabasetest"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T) (*supabase.Client, *supabasetest.Server) {
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

func signIn(t *testing.T, c *supabase.Client, srv *supabasetest.Server) *domain.RemoteSession {
	t.Helper()
	srv.AddUser("ana@finanzo.app", "s3cret", "Ana")
	sess, err := c.SignInWithPassword(context.Background(), "ana@finanzo.app", "s3cret")
	require.NoError(t, err)
	return sess
}

func TestSignInWithPassword(t *testing.T) {
	c, srv := newClient(t)
	id := srv.AddUser("ana@finanzo.app", "s3cret", "Ana")

	sess, err := c.SignInWithPassword(context.Background(), "ana@finanzo.app", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, id, sess.UserID)
	assert.Equal(t, "ana@finanzo.app", sess.Email)
	assert.NotEmpty(t, sess.AccessToken)
	assert.NotEmpty(t, sess.RefreshToken)
	assert.False(t, sess.Expired(time.Now()))

	_, err = c.SignInWithPassword(context.Background(), "ana@finanzo.app", "wrong")
	var un *domain.ErrUnauthorized
	require.ErrorAs(t, err, &un)
}

func TestGetUser_AndRefresh(t *testing.T) {
	c, srv := newClient(t)
	sess := signIn(t, c, srv)
	ctx := context.Background()

	u, err := c.GetUser(ctx, sess.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, u.ID)

	srv.ExpireAccessTokens()
	_, err = c.GetUser(ctx, sess.AccessToken)
	var un *domain.ErrUnauthorized
	require.ErrorAs(t, err, &un)

	fresh, err := c.RefreshSession(ctx, sess.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, sess.AccessToken, fresh.AccessToken)

	u, err = c.GetUser(ctx, fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, sess.UserID, u.ID)
}

func TestGetProfile(t *testing.T) {
	c, srv := newClient(t)
	sess := signIn(t, c, srv)
	ctx := context.Background()

	p, err := c.GetProfile(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, domain.ThemeLight, p.Theme)

	require.NoError(t, c.UpdateProfileTheme(ctx, sess, domain.ThemeDark))
	p, err = c.GetProfile(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, domain.ThemeDark, p.Theme)

	srv.DropProfile(sess.UserID)
	_, err = c.GetProfile(ctx, sess)
	var nf *domain.ErrNotFound
	require.ErrorAs(t, err, &nf)
}

func TestTransactions_RoundTrip(t *testing.T) {
	c, srv := newClient(t)
	sess := signIn(t, c, srv)
	ctx := context.Background()

	catID := uuid.NewString()
	older := domain.Transaction{ID: uuid.NewString(), Description: "Aluguel", Amount: 1500, Date: "2024-02-05", CategoryID: catID, Type: domain.Expense}
	newer := domain.Transaction{ID: uuid.NewString(), Description: "Salário", Amount: 5000, Date: "2024-03-01", CategoryID: "1", Type: domain.Income}
	require.NoError(t, c.InsertTransaction(ctx, sess, older))
	require.NoError(t, c.InsertTransaction(ctx, sess, newer))

	// another user's row is invisible
	srv.Seed("transactions", map[string]any{"id": uuid.NewString(), "user_id": uuid.NewString(), "date": "2024-03-09", "type": "INCOME"})

	txs, err := c.ListTransactions(ctx, sess)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, newer.ID, txs[0].ID, "newest first")
	assert.Equal(t, "1", txs[0].CategoryID, "built-in reference survives the round trip")
	assert.Equal(t, catID, txs[1].CategoryID)
	assert.Equal(t, 1500.0, txs[1].Amount)

	require.NoError(t, c.DeleteTransaction(ctx, sess, older.ID))
	// deleting again is fine
	require.NoError(t, c.DeleteTransaction(ctx, sess, older.ID))

	txs, err = c.ListTransactions(ctx, sess)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, newer.ID, txs[0].ID)
}

func TestEnergyBills_RoundTrip(t *testing.T) {
	c, srv := newClient(t)
	sess := signIn(t, c, srv)
	ctx := context.Background()

	bill := domain.EnergyBill{ID: uuid.NewString(), Period: "Mar/2024", KWh: 450, ProviderATotal: 300, ProviderBTotal: 210, DiscountApplied: true}
	require.NoError(t, c.InsertEnergyBill(ctx, sess, bill))

	rows := srv.Rows("energy_bills")
	require.Len(t, rows, 1)
	assert.Equal(t, "Mar/2024", rows[0]["month_year"])
	assert.Equal(t, 300.0, rows[0]["cpfl_total"])

	bills, err := c.ListEnergyBills(ctx, sess)
	require.NoError(t, err)
	require.Len(t, bills, 1)
	assert.Equal(t, bill, bills[0])
	assert.InDelta(t, 90.0, bills[0].Savings(), 1e-9)

	require.NoError(t, c.DeleteEnergyBill(ctx, sess, bill.ID))
	bills, err = c.ListEnergyBills(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, bills)
}

func TestCategories_LegacyColor(t *testing.T) {
	c, srv := newClient(t)
	sess := signIn(t, c, srv)
	ctx := context.Background()

	srv.Seed("categories", map[string]any{
		"id": uuid.NewString(), "user_id": sess.UserID, "name": "Pets", "icon": "Dog", "color": "text-rose-500", "type": "EXPENSE",
	})
	require.NoError(t, c.InsertCategory(ctx, sess, domain.Category{
		ID: uuid.NewString(), Name: "Bônus", Icon: "Gift", Color: domain.ColorViolet, Type: domain.Income,
	}))

	cats, err := c.ListCategories(ctx, sess)
	require.NoError(t, err)
	require.Len(t, cats, 2)
	assert.Equal(t, domain.ColorRose, cats[0].Color)
	assert.Equal(t, domain.ColorViolet, cats[1].Color)
}

func TestCategories_BuiltinIDsMapToStableUUIDs(t *testing.T) {
	c, srv := newClient(t)
	sess := signIn(t, c, srv)
	ctx := context.Background()

	food := domain.DefaultCategories()[3]
	require.NoError(t, c.InsertCategory(ctx, sess, food))
	require.NoError(t, c.InsertTransaction(ctx, sess, domain.Transaction{
		ID: uuid.NewString(), Description: "Mercado", Amount: 80, Date: "2024-03-02", CategoryID: food.ID, Type: domain.Expense,
	}))
	require.NoError(t, c.InsertTransaction(ctx, sess, domain.Transaction{
		ID: uuid.NewString(), Description: "Avulso", Amount: 5, Date: "2024-03-01", CategoryID: "gone", Type: domain.Expense,
	}))

	catRows := srv.Rows("categories")
	require.Len(t, catRows, 1)
	remoteID, _ := catRows[0]["id"].(string)
	_, err := uuid.Parse(remoteID)
	require.NoError(t, err, "built-in ids are stored as uuids")

	txRows := srv.Rows("transactions")
	assert.Equal(t, remoteID, txRows[0]["category_id"])
	assert.Nil(t, txRows[1]["category_id"], "unknown non-uuid references are dropped")

	cats, err := c.ListCategories(ctx, sess)
	require.NoError(t, err)
	require.Len(t, cats, 1)
	assert.Equal(t, food, cats[0])

	txs, err := c.ListTransactions(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, food.ID, txs[0].CategoryID)

	// another user gets a different remote id for the same built-in
	other := srv.AddUser("bia@finanzo.app", "s3cret", "Bia")
	otherSess, err := c.SignInWithPassword(ctx, "bia@finanzo.app", "s3cret")
	require.NoError(t, err)
	require.Equal(t, other, otherSess.UserID)
	require.NoError(t, c.InsertCategory(ctx, otherSess, food))
	assert.NotEqual(t, remoteID, srv.Rows("categories")[1]["id"])

	require.NoError(t, c.DeleteCategory(ctx, sess, food.ID))
	cats, err = c.ListCategories(ctx, sess)
	require.NoError(t, err)
	assert.Empty(t, cats)
}

func TestWrite_FailureIsExternalServiceError(t *testing.T) {
	c, srv := newClient(t)
	sess := signIn(t, c, srv)
	srv.FailWrites(true)

	err := c.InsertTransaction(context.Background(), sess, domain.Transaction{ID: uuid.NewString(), Type: domain.Income, Date: "2024-03-01"})
	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "supabase/transactions", ext.Service)
}

func TestRead_RetriesThenFails(t *testing.T) {
	c, srv := newClient(t)
	sess := signIn(t, c, srv)
	srv.FailReads(true)

	_, err := c.ListTransactions(context.Background(), sess)
	require.Error(t, err)

	var gets int
	for _, r := range srv.Requests() {
		if r == "GET /rest/v1/transactions" {
			gets++
		}
	}
	assert.Equal(t, 2, gets, "one attempt plus one retry")
}

func TestSignOut(t *testing.T) {
	c, srv := newClient(t)
	sess := signIn(t, c, srv)
	ctx := context.Background()

	require.NoError(t, c.SignOut(ctx, sess.AccessToken))

	_, err := c.GetUser(ctx, sess.AccessToken)
	var un *domain.ErrUnauthorized
	assert.True(t, errors.As(err, &un))
}
