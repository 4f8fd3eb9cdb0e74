// Package httpapi is the console's HTTP surface: session endpoints, the
// typed pass-through to the platform API, and the health/metrics plumbing.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"sync"

	"payloom.io/internal/backend"
	"payloom.io/internal/cache"
	"payloom.io/internal/kyc"
	"payloom.io/internal/obs"
	"payloom.io/internal/session"
)

// ReadyProbe reports readiness (session store reachable when configured).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Config wires the API dependencies.
type Config struct {
	Version    string
	Backend    *backend.Client
	Sessions   *session.Manager
	Cache      *cache.Cache
	ReadyProbe ReadyProbe

	// SecureCookies marks session cookies Secure; off only for local dev.
	SecureCookies bool
	CookieDomain  string
}

// API is the HTTP layer.
type API struct {
	mux     *http.ServeMux
	cfg     Config
	api     *backend.Client
	mgr     *session.Manager
	cache   *cache.Cache
	pollers *pollerRegistry
}

func New(cfg Config) *API {
	a := &API{
		mux:     http.NewServeMux(),
		cfg:     cfg,
		api:     cfg.Backend,
		mgr:     cfg.Sessions,
		cache:   cfg.Cache,
		pollers: newPollerRegistry(),
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// session lifecycle
	a.mux.HandleFunc("/v1/session/login", a.handleLogin)
	a.mux.HandleFunc("/v1/session/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/session/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/session/me", a.handleMe)
	a.mux.HandleFunc("/v1/session/profile", a.handleProfile)

	// onboarding
	a.mux.HandleFunc("/v1/onboarding/status", a.handleOnboardingStatus)
	a.mux.HandleFunc("/v1/onboarding/organization", a.handleOnboardingOrganization)
	a.mux.HandleFunc("/v1/onboarding/profile-review", a.handleOnboardingProfileReview)
	a.mux.HandleFunc("/v1/onboarding/kyc", a.handleOnboardingKYC)
	a.mux.HandleFunc("/v1/onboarding/payout", a.handleOnboardingPayout)
	a.mux.HandleFunc("/v1/onboarding/complete", a.handleOnboardingComplete)

	// verification
	a.mux.HandleFunc("/v1/kyc/documents", a.handleKYCDocuments)
	a.mux.HandleFunc("/v1/kyc/status", a.handleKYCStatus)
	a.mux.HandleFunc("/v1/kyc/status/stream", a.handleKYCStream)

	// roles and members
	a.mux.HandleFunc("/v1/roles", a.handleRolesCollection)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/permissions", a.handlePermissionCatalog)
	a.mux.HandleFunc("/v1/users", a.handleMembers)
	a.mux.HandleFunc("/v1/users/", a.handleMemberRoles)

	// transactions
	a.mux.HandleFunc("/v1/transactions", a.handleTransactions)
	a.mux.HandleFunc("/v1/transactions/export", a.handleTransactionExport)
	a.mux.HandleFunc("/v1/transactions/", a.handleTransactionResource)

	// disbursements
	a.mux.HandleFunc("/v1/disbursements", a.handleDisbursements)
	a.mux.HandleFunc("/v1/disbursements/", a.handleDisbursementResource)
	a.mux.HandleFunc("/v1/payout-accounts", a.handlePayoutAccounts)
	a.mux.HandleFunc("/v1/banks", a.handleBanks)

	// payment pages
	a.mux.HandleFunc("/v1/payment-pages", a.handlePaymentPagesCollection)
	a.mux.HandleFunc("/v1/payment-pages/quote", a.handlePaymentPageQuote)
	a.mux.HandleFunc("/v1/payment-pages/", a.handlePaymentPageResource)

	// notifications
	a.mux.HandleFunc("/v1/notifications/preferences", a.handleNotificationPreferences)
	a.mux.HandleFunc("/v1/notifications/preferences/bulk", a.handleNotificationBulk)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withSession(a.mux)
	h = RateLimit(h, 40, 20)
	h = MaxBodyBytes(h, 16<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// pollerRegistry keeps one status poller per session for the SSE stream.
type pollerRegistry struct {
	mu      sync.Mutex
	pollers map[string]*pollerEntry
}

type pollerEntry struct {
	poller *kyc.Poller
	cancel context.CancelFunc
}

func newPollerRegistry() *pollerRegistry {
	return &pollerRegistry{pollers: make(map[string]*pollerEntry)}
}

func (r *pollerRegistry) get(sessionID string, start func() (*kyc.Poller, context.CancelFunc)) *kyc.Poller {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.pollers[sessionID]; ok {
		return e.poller
	}
	p, cancel := start()
	r.pollers[sessionID] = &pollerEntry{poller: p, cancel: cancel}
	return p
}

// remove clears a session's entry after its poller stopped on its own.
// The pointer match keeps a late exit from evicting a replacement poller
// that a newer subscribe already registered.
func (r *pollerRegistry) remove(sessionID string, p *kyc.Poller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.pollers[sessionID]; ok && e.poller == p {
		e.cancel()
		delete(r.pollers, sessionID)
	}
}

func (r *pollerRegistry) drop(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.pollers[sessionID]; ok {
		e.cancel()
		delete(r.pollers, sessionID)
	}
}
