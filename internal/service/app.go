package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/finanzo-go/internal/domain"
	"github.com/boddenberg/finanzo-go/internal/infra/observability"
	"github.com/boddenberg/finanzo-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var appTracer = otel.Tracer("service/app")

// Init sources, as reported in metrics.
const (
	sourceRemote = "remote"
	sourceLocal  = "local"
)

var errNoSavedSession = errors.New("no saved remote session")

// AppConfig holds the root controller settings.
type AppConfig struct {
	InitTimeout time.Duration
	Admin       domain.NewAccount // seeded into an empty account registry
}

// App is the root controller of one dashboard session. It owns the
// Store and the UI state around it.
type App struct {
	store  *Store
	local  port.LocalCache
	auth   port.RemoteAuth  // nil when the hosted backend is off
	remote port.RemoteStore // nil when the hosted backend is off
	users  port.Cache[*domain.RemoteUser]

	cfg     AppConfig
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	session domain.Session
}

// NewApp creates the controller. Pass nil auth and remote to run on the
// local cache alone.
func NewApp(
	store *Store,
	local port.LocalCache,
	auth port.RemoteAuth,
	remote port.RemoteStore,
	users port.Cache[*domain.RemoteUser],
	cfg AppConfig,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *App {
	if cfg.InitTimeout <= 0 {
		cfg.InitTimeout = 10 * time.Second
	}
	return &App{
		store:   store,
		local:   local,
		auth:    auth,
		remote:  remote,
		users:   users,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
		session: domain.Session{
			View:    domain.ViewDashboard,
			Theme:   domain.ThemeLight,
			Loading: true,
		},
	}
}

func (a *App) remoteEnabled() bool {
	return a.auth != nil && a.remote != nil
}

// Store exposes the synchronizer for ledger mutations.
func (a *App) Store() *Store {
	return a.store
}

// ============================================================
// Init
// ============================================================

// Init loads the state once per process. Remote failures are logged and
// the local cache is used instead; Init itself never fails.
func (a *App) Init(ctx context.Context) {
	ctx, span := appTracer.Start(ctx, "App.Init")
	defer span.End()

	start := a.now()
	theme, themeSaved := a.savedTheme(ctx)
	source := sourceLocal

	var user *domain.UserProfile
	if a.remoteEnabled() {
		rctx, cancel := context.WithTimeout(ctx, a.cfg.InitTimeout)
		u, err := a.initRemote(rctx)
		cancel()
		switch {
		case err == nil:
			source = sourceRemote
			user = &u
		case errors.Is(err, errNoSavedSession):
			a.logger.Debug("init: no saved remote session")
		default:
			a.logger.Warn("init: remote unavailable, using local cache", zap.Error(err))
			a.holdOffline(ctx)
		}
	}

	if source == sourceLocal {
		a.store.LoadLocal(ctx)
		var saved domain.UserProfile
		if a.store.readJSON(ctx, keyUser, &saved) && saved.Email != "" {
			user = &saved
		}
	}

	if err := a.store.LoadAccounts(ctx, a.cfg.Admin); err != nil {
		a.logger.Error("init: account registry", zap.Error(err))
	}

	a.mu.Lock()
	if user != nil {
		a.session.Authenticated = true
		a.session.User = user
		// a remote profile follows the user across devices; locally the
		// last explicit choice wins
		if user.Theme.Valid() && (source == sourceRemote || !themeSaved) {
			theme = user.Theme
		}
	}
	a.session.Theme = theme
	a.session.Remote = source == sourceRemote
	a.session.Loading = false
	a.mu.Unlock()

	d := a.now().Sub(start)
	a.metrics.RecordInit(source, d)
	span.SetAttributes(attribute.String("init.source", source))
	a.logger.Info("init complete",
		zap.String("source", source),
		zap.Bool("authenticated", user != nil),
		zap.Duration("duration", d),
	)
}

// holdOffline keeps the saved session attached while the remote is
// unreachable, so writes made meanwhile are queued under its user and
// replayed before the next remote load replaces the ledger.
func (a *App) holdOffline(ctx context.Context) {
	var saved domain.RemoteSession
	if a.store.readJSON(ctx, keySession, &saved) && saved.UserID != "" {
		a.store.AttachRemote(&saved)
		return
	}
	a.store.DetachRemote()
}

func (a *App) initRemote(ctx context.Context) (domain.UserProfile, error) {
	sess, err := a.resolveSession(ctx)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return a.adoptRemote(ctx, sess)
}

// resolveSession turns the saved token pair into a live session, refreshing
// it when the access token has expired or is rejected.
func (a *App) resolveSession(ctx context.Context) (*domain.RemoteSession, error) {
	var saved domain.RemoteSession
	if !a.store.readJSON(ctx, keySession, &saved) || saved.AccessToken == "" {
		return nil, errNoSavedSession
	}
	if saved.Expired(a.now()) {
		return a.refresh(ctx, &saved)
	}

	user, err := a.lookupUser(ctx, saved.AccessToken)
	if err != nil {
		var unauth *domain.ErrUnauthorized
		if errors.As(err, &unauth) {
			return a.refresh(ctx, &saved)
		}
		return nil, err
	}
	saved.UserID = user.ID
	saved.Email = user.Email
	return &saved, nil
}

func (a *App) refresh(ctx context.Context, saved *domain.RemoteSession) (*domain.RemoteSession, error) {
	sess, err := a.auth.RefreshSession(ctx, saved.RefreshToken)
	if err != nil {
		var unauth *domain.ErrUnauthorized
		if errors.As(err, &unauth) {
			// the refresh token is dead too
			a.forget(ctx, keySession)
		}
		return nil, fmt.Errorf("refresh session: %w", err)
	}
	a.users.Delete(saved.AccessToken)
	_ = a.store.persist(ctx, keySession, sess)
	return sess, nil
}

// lookupUser resolves an access token, going through the token cache.
func (a *App) lookupUser(ctx context.Context, accessToken string) (*domain.RemoteUser, error) {
	if u, ok := a.users.Get(accessToken); ok {
		a.metrics.IncrCacheHit("session")
		return u, nil
	}
	a.metrics.IncrCacheMiss("session")

	u, err := a.auth.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	a.users.Set(accessToken, u)
	return u, nil
}

// adoptRemote attaches sess, replays queued writes and replaces the ledger
// with the user's remote rows. A user without a profile row is treated as
// a failure.
func (a *App) adoptRemote(ctx context.Context, sess *domain.RemoteSession) (domain.UserProfile, error) {
	profile, err := a.remote.GetProfile(ctx, sess)
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get profile: %w", err)
	}

	a.store.AttachRemote(sess)
	a.store.FlushOutbox(ctx)

	var (
		txs   []domain.Transaction
		bills []domain.EnergyBill
		cats  []domain.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = a.remote.ListTransactions(gctx, sess)
		return err
	})
	g.Go(func() error {
		var err error
		bills, err = a.remote.ListEnergyBills(gctx, sess)
		return err
	})
	g.Go(func() error {
		var err error
		cats, err = a.remote.ListCategories(gctx, sess)
		return err
	})
	if err := g.Wait(); err != nil {
		a.store.DetachRemote()
		return domain.UserProfile{}, fmt.Errorf("load remote data: %w", err)
	}
	a.store.Adopt(ctx, txs, bills, cats)
	if len(cats) == 0 {
		a.store.SeedRemoteCategories(ctx)
	}

	user := domain.UserProfile{
		Email: domain.NormalizeEmail(sess.Email),
		Name:  profile.Name,
		Role:  profile.Role,
		Theme: profile.Theme,
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	_ = a.store.persist(ctx, keyUser, user)

	a.logger.Info("remote data loaded",
		zap.String("user_id", sess.UserID),
		zap.Int("transactions", len(txs)),
		zap.Int("energy_bills", len(bills)),
		zap.Int("categories", len(cats)),
	)
	return user, nil
}

func (a *App) savedTheme(ctx context.Context) (domain.Theme, bool) {
	raw, ok, err := a.local.Get(ctx, keyTheme)
	if err != nil {
		a.logger.Warn("local cache read failed", zap.String("key", keyTheme), zap.Error(err))
	}
	if t := domain.Theme(raw); ok && t.Valid() {
		return t, true
	}
	return domain.ThemeLight, false
}

func (a *App) forget(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := a.local.Delete(ctx, k); err != nil {
			a.logger.Error("local cache delete failed", zap.String("key", k), zap.Error(err))
		}
	}
}

// ============================================================
// Login / Logout
// ============================================================

// Login checks the local registry first and then, when configured, the
// hosted auth service. A failed login changes nothing.
func (a *App) Login(ctx context.Context, req domain.LoginRequest) (domain.UserProfile, error) {
	ctx, span := appTracer.Start(ctx, "App.Login")
	defer span.End()

	email := domain.NormalizeEmail(req.Email)
	span.SetAttributes(attribute.String("email", email))

	if acc, ok := a.store.Authenticate(email, req.Password); ok {
		user := acc.Profile()
		a.establish(ctx, user, false)
		a.metrics.IncrLogin(sourceLocal, "ok")
		a.logger.Info("login", zap.String("email", email), zap.String("method", sourceLocal))
		return user, nil
	}

	if a.remoteEnabled() {
		user, err := a.remoteLogin(ctx, email, req.Password)
		var unauth *domain.ErrUnauthorized
		switch {
		case err == nil:
			a.metrics.IncrLogin(sourceRemote, "ok")
			a.logger.Info("login", zap.String("email", email), zap.String("method", sourceRemote))
			return user, nil
		case !errors.As(err, &unauth):
			a.metrics.IncrLogin(sourceRemote, "error")
			a.logger.Error("login: remote sign-in failed", zap.String("email", email), zap.Error(err))
			return domain.UserProfile{}, err
		}
	}

	a.metrics.IncrLogin(sourceLocal, "failed")
	a.logger.Warn("login: invalid credentials", zap.String("email", email))
	return domain.UserProfile{}, &domain.ErrUnauthorized{Message: "Credenciais inválidas."}
}

func (a *App) remoteLogin(ctx context.Context, email, password string) (domain.UserProfile, error) {
	sess, err := a.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		return domain.UserProfile{}, err
	}

	user, err := a.adoptRemote(ctx, sess)
	if err != nil {
		if serr := a.auth.SignOut(context.WithoutCancel(ctx), sess.AccessToken); serr != nil {
			a.logger.Warn("login: sign-out after failed load", zap.Error(serr))
		}
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return domain.UserProfile{}, &domain.ErrUnauthorized{Message: "Perfil não encontrado."}
		}
		return domain.UserProfile{}, err
	}

	a.users.Set(sess.AccessToken, &domain.RemoteUser{ID: sess.UserID, Email: sess.Email})
	_ = a.store.persist(ctx, keySession, sess)
	a.establish(ctx, user, true)
	return user, nil
}

func (a *App) establish(ctx context.Context, user domain.UserProfile, remote bool) {
	_ = a.store.persist(ctx, keyUser, user)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.Authenticated = true
	a.session.User = &user
	a.session.Remote = remote
	if user.Theme.Valid() {
		a.session.Theme = user.Theme
	}
}

// Logout ends the session. Remote sign-out is best effort.
func (a *App) Logout(ctx context.Context) {
	ctx, span := appTracer.Start(ctx, "App.Logout")
	defer span.End()

	sess := a.store.RemoteSession()
	a.store.DetachRemote()
	if sess != nil && a.auth != nil {
		a.users.Delete(sess.AccessToken)
		if err := a.auth.SignOut(ctx, sess.AccessToken); err != nil {
			a.logger.Warn("logout: remote sign-out failed", zap.Error(err))
		}
	}

	a.mu.Lock()
	email := ""
	if a.session.User != nil {
		email = a.session.User.Email
	}
	a.session.Authenticated = false
	a.session.User = nil
	a.session.Remote = false
	a.session.Period = nil
	a.session.View = domain.ViewDashboard
	a.mu.Unlock()

	a.forget(ctx, keyUser, keySession)
	a.logger.Info("logout", zap.String("email", email))
}

// ============================================================
// Session state
// ============================================================

// Session returns a copy of the UI state.
func (a *App) Session() domain.Session {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session.Clone()
}

// CurrentUser is the logged-in user, if any.
func (a *App) CurrentUser() (domain.UserProfile, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.session.Authenticated || a.session.User == nil {
		return domain.UserProfile{}, false
	}
	return *a.session.User, true
}

// SelectPeriod scopes the dashboard to p, or to every period when p is
// nil, and switches to the dashboard view.
func (a *App) SelectPeriod(p *domain.Period) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p == nil {
		a.session.Period = nil
	} else {
		v := *p
		a.session.Period = &v
	}
	a.session.View = domain.ViewDashboard
}

func (a *App) ShowHistory() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.session.View = domain.ViewHistory
}

// SetTheme stores the preference locally and mirrors it to the remote
// profile when a session is attached.
func (a *App) SetTheme(ctx context.Context, theme domain.Theme) error {
	if !theme.Valid() {
		return &domain.ErrValidation{Field: "theme", Message: "use light ou dark"}
	}

	a.mu.Lock()
	a.session.Theme = theme
	var user *domain.UserProfile
	if a.session.User != nil {
		a.session.User.Theme = theme
		u := *a.session.User
		user = &u
	}
	a.mu.Unlock()

	a.store.MirrorTheme(ctx, theme)
	if err := a.local.Set(ctx, keyTheme, string(theme)); err != nil {
		a.metrics.IncrLocalWriteError(keyTheme)
		a.logger.Error("local cache write failed", zap.String("key", keyTheme), zap.Error(err))
		return &domain.ErrLocalCache{Key: keyTheme, Err: err}
	}
	// the saved profile's theme wins at the next Init
	if user != nil {
		return a.store.persist(ctx, keyUser, user)
	}
	return nil
}

func (a *App) period() *domain.Period {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session.Period == nil {
		return nil
	}
	p := *a.session.Period
	return &p
}

// ============================================================
// Views
// ============================================================

// Dashboard aggregates the selected period.
func (a *App) Dashboard(now time.Time) domain.Dashboard {
	return BuildDashboard(a.store.Transactions(), a.store.Categories(), a.store.EnergyBills(), a.period(), now)
}

// History rolls up every period, ignoring the selection.
func (a *App) History() []domain.PeriodSummary {
	return HistoryRollup(a.store.Transactions())
}

// VisibleTransactions lists the transactions of the selected period,
// optionally one type only.
func (a *App) VisibleTransactions(typ domain.TransactionType) []domain.Transaction {
	return FilterByType(FilterByPeriod(a.store.Transactions(), a.period()), typ)
}

func (a *App) EnergySummary() domain.EnergySummary {
	return SummarizeEnergy(a.store.EnergyBills())
}

// ============================================================
// Accounts (administrators only)
// ============================================================

func (a *App) Accounts() ([]domain.UserProfile, error) {
	if _, err := a.requireAdmin("listar contas"); err != nil {
		return nil, err
	}
	return a.store.Accounts(), nil
}

func (a *App) AddAccount(ctx context.Context, req domain.NewAccount) ([]domain.UserProfile, error) {
	if _, err := a.requireAdmin("cadastrar contas"); err != nil {
		return nil, err
	}
	return a.store.AddAccount(ctx, req)
}

// DeleteAccount removes another account. The logged-in account cannot
// delete itself.
func (a *App) DeleteAccount(ctx context.Context, email string) ([]domain.UserProfile, error) {
	me, err := a.requireAdmin("excluir contas")
	if err != nil {
		return nil, err
	}
	email = domain.NormalizeEmail(email)
	if email == me.Email {
		return nil, &domain.ErrForbidden{Action: "Você não pode excluir a sua própria conta."}
	}
	if _, ok := a.store.Account(email); !ok {
		return nil, &domain.ErrNotFound{Resource: "account", ID: email}
	}
	return a.store.DeleteAccount(ctx, email)
}

func (a *App) requireAdmin(action string) (domain.UserProfile, error) {
	me, ok := a.CurrentUser()
	if !ok {
		return domain.UserProfile{}, &domain.ErrUnauthorized{Message: "Faça login para continuar."}
	}
	if me.Role != domain.RoleAdmin {
		return domain.UserProfile{}, &domain.ErrForbidden{Action: action}
	}
	return me, nil
}

// DefaultEntryDate is the date offered for a new transaction: the first
// day of the selected period, or today when none is selected.
func (a *App) DefaultEntryDate(now time.Time) string {
	if p := a.period(); p != nil {
		return p.FirstDay()
	}
	return now.Format(domain.DateLayout)
}

// SyncOutbox replays queued mirror writes, refreshing the remote session
// first when its access token has expired. It is driven by a schedule.
func (a *App) SyncOutbox(ctx context.Context) int {
	sess := a.store.RemoteSession()
	if sess == nil || !a.remoteEnabled() {
		return 0
	}
	if sess.Expired(a.now()) {
		fresh, err := a.refresh(ctx, sess)
		if err != nil {
			a.logger.Warn("outbox: session refresh failed", zap.Error(err))
			return 0
		}
		a.store.AttachRemote(fresh)
	}
	return a.store.FlushOutbox(ctx)
}
