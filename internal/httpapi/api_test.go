package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"payloom.io/internal/backend"
	"payloom.io/internal/cache"
	"payloom.io/internal/kyc"
	"payloom.io/internal/session"
)

// platformStub fakes the upstream platform API with just enough state for
// the console flows under test.
type platformStub struct {
	mu       sync.Mutex
	tokens   map[string]string // access token -> email
	refresh  map[string]string // refresh token -> email
	seq      int
	txHits   atomic.Int64
	meHits   atomic.Int64
	statuses map[string]any // onboarding status payload
}

func permissionsFor(email string) []string {
	if email == "viewer@example.com" {
		return []string{"view-transactions"}
	}
	return []string{
		"view-transactions", "export-transactions",
		"view-disbursements", "manage-disbursements",
		"manage-payment-pages", "submit-kyc",
		"manage-roles", "manage-users", "manage-notifications",
	}
}

func (p *platformStub) issue(email string) (access, refreshToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	access = fmt.Sprintf("access-%d", p.seq)
	refreshToken = fmt.Sprintf("refresh-%d", p.seq)
	p.tokens[access] = email
	p.refresh[refreshToken] = email
	return access, refreshToken
}

func (p *platformStub) emailForToken(r *http.Request) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	token := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(token) <= len(prefix) {
		return "", false
	}
	email, ok := p.tokens[token[len(prefix):]]
	return email, ok
}

func (p *platformStub) revokeToken(access string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.tokens, access)
}

func userPayload(email string) map[string]any {
	return map[string]any{
		"id":          "usr_" + email,
		"name":        "Test User",
		"email":       email,
		"permissions": permissionsFor(email),
		"organizations": []map[string]any{{
			"id": "org_1", "name": "Acme", "type": "corporate", "country": "NG",
			"kyc_status": "pending",
			"vendors":    []map[string]any{{"id": "ven_1", "name": "Acme", "slug": "acme"}},
		}},
	}
}

func newPlatformStub(t *testing.T) (*platformStub, *httptest.Server) {
	t.Helper()
	p := &platformStub{
		tokens:  make(map[string]string),
		refresh: make(map[string]string),
		statuses: map[string]any{
			"current_step": 1, "completed_steps": []int{}, "complete": false,
		},
	}

	mux := http.NewServeMux()
	ok := func(w http.ResponseWriter, data any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
	}
	fail := func(w http.ResponseWriter, status int, code, msg string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": false, "error": map[string]string{"code": code, "message": msg},
		})
	}
	authed := func(w http.ResponseWriter, r *http.Request) (string, bool) {
		email, okTok := p.emailForToken(r)
		if !okTok {
			fail(w, http.StatusUnauthorized, "token_expired", "token expired")
			return "", false
		}
		return email, true
	}

	handleMethod(mux, "POST", "/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "correct" {
			fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
			return
		}
		access, refreshToken := p.issue(req.Email)
		ok(w, map[string]any{
			"access_token":  access,
			"refresh_token": refreshToken,
			"expires_at":    time.Now().Add(15 * time.Minute).UTC().Format(time.RFC3339),
			"user":          userPayload(req.Email),
		})
	})
	handleMethod(mux, "POST", "/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		p.mu.Lock()
		email, okTok := p.refresh[req.RefreshToken]
		if okTok {
			delete(p.refresh, req.RefreshToken)
		}
		p.mu.Unlock()
		if !okTok {
			fail(w, http.StatusUnauthorized, "invalid_refresh", "refresh token not recognized")
			return
		}
		access, refreshToken := p.issue(email)
		ok(w, map[string]any{
			"access_token":  access,
			"refresh_token": refreshToken,
			"expires_at":    time.Now().Add(15 * time.Minute).UTC().Format(time.RFC3339),
		})
	})
	handleMethod(mux, "GET", "/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		email, okTok := authed(w, r)
		if !okTok {
			return
		}
		p.meHits.Add(1)
		ok(w, userPayload(email))
	})
	handleMethod(mux, "POST", "/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		ok(w, map[string]any{})
	})

	handleMethod(mux, "GET", "/api/v1/transactions", func(w http.ResponseWriter, r *http.Request) {
		if _, okTok := authed(w, r); !okTok {
			return
		}
		p.txHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{
				"id": "tx_1", "reference": "REF-1", "status": "success",
				"currency": "NGN", "amount": 250_000, "fee": 2_500, "net_amount": 247_500,
			}},
			"meta": map[string]int{"current_page": 1, "per_page": 25, "total": 1, "last_page": 1, "from": 1, "to": 1},
		})
	})
	handleMethod(mux, "GET", "/api/v1/transactions/export", func(w http.ResponseWriter, r *http.Request) {
		if _, okTok := authed(w, r); !okTok {
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="transactions.csv"`)
		_, _ = w.Write([]byte("id,amount\ntx_1,250000\n"))
	})

	handleMethod(mux, "GET", "/api/v1/onboarding/status", func(w http.ResponseWriter, r *http.Request) {
		if _, okTok := authed(w, r); !okTok {
			return
		}
		p.mu.Lock()
		status := p.statuses
		p.mu.Unlock()
		ok(w, status)
	})
	handleMethod(mux, "POST", "/api/v1/onboarding/organization", func(w http.ResponseWriter, r *http.Request) {
		if _, okTok := authed(w, r); !okTok {
			return
		}
		p.mu.Lock()
		p.statuses = map[string]any{"current_step": 2, "completed_steps": []int{1}, "complete": false}
		status := p.statuses
		p.mu.Unlock()
		ok(w, status)
	})
	handleMethod(mux, "POST", "/api/v1/onboarding/profile-review", func(w http.ResponseWriter, r *http.Request) {
		if _, okTok := authed(w, r); !okTok {
			return
		}
		p.mu.Lock()
		p.statuses = map[string]any{"current_step": 3, "completed_steps": []int{1, 2}, "complete": false}
		status := p.statuses
		p.mu.Unlock()
		ok(w, status)
	})

	handleMethod(mux, "GET", "/api/v1/kyc/status", func(w http.ResponseWriter, r *http.Request) {
		if _, okTok := authed(w, r); !okTok {
			return
		}
		ok(w, map[string]any{"status": "in_review"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return p, srv
}

// handleMethod registers h for path, rejecting other methods with 405 as the
// Go 1.22+ "METHOD /path" mux patterns would.
func handleMethod(mux *http.ServeMux, method, path string, h http.HandlerFunc) {
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}

// consoleClient drives the console server carrying cookies between calls.
type consoleClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func newConsole(t *testing.T) (*consoleClient, *platformStub) {
	t.Helper()
	t.Setenv("PAYLOOM_SESSION_SECRET", "test-secret")
	session.ResetSecretForTests()
	t.Cleanup(session.ResetSecretForTests)

	stub, upstream := newPlatformStub(t)
	api, err := backend.New(upstream.URL)
	if err != nil {
		t.Fatalf("backend.New: %v", err)
	}
	c := cache.New()
	mgr := session.NewManager(session.NewMemoryStore(), api, c)
	srv := httptest.NewServer(New(Config{
		Version:  "test",
		Backend:  api,
		Sessions: mgr,
		Cache:    c,
	}).Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &consoleClient{
		t:    t,
		base: srv.URL,
		http: &http.Client{Jar: jar},
	}, stub
}

func (c *consoleClient) do(method, path string, body any) *http.Response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func (c *consoleClient) login(email string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/session/login", map[string]string{
		"email": email, "password": "correct",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(resp.Body)
		c.t.Fatalf("login status %d: %s", resp.StatusCode, payload)
	}
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	var out T
	if err := json.Unmarshal(envelope.Data, &out); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return out
}

func TestLoginSetsSessionCookies(t *testing.T) {
	c, _ := newConsole(t)
	resp := c.do(http.MethodPost, "/v1/session/login", map[string]string{
		"email": "admin@example.com", "password": "correct",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	names := map[string]bool{}
	for _, ck := range resp.Cookies() {
		names[ck.Name] = true
		if ck.Name == sessionCookie && !ck.HttpOnly {
			t.Fatal("session cookie must be HttpOnly")
		}
	}
	for _, want := range []string{sessionCookie, tokenCookie, tokenExpiryCookie} {
		if !names[want] {
			t.Fatalf("missing cookie %q (got %v)", want, names)
		}
	}
}

func TestLoginBadCredentials(t *testing.T) {
	c, _ := newConsole(t)
	resp := c.do(http.MethodPost, "/v1/session/login", map[string]string{
		"email": "admin@example.com", "password": "wrong",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMeRequiresSession(t *testing.T) {
	c, _ := newConsole(t)
	resp := c.do(http.MethodGet, "/v1/session/me", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestMeReturnsUserProjection(t *testing.T) {
	c, _ := newConsole(t)
	c.login("admin@example.com")

	resp := c.do(http.MethodGet, "/v1/session/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	user := decodeBody[map[string]any](t, resp)
	if user["email"] != "admin@example.com" {
		t.Fatalf("user = %v", user)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	c, _ := newConsole(t)
	c.login("admin@example.com")

	resp := c.do(http.MethodPost, "/v1/session/logout", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d", resp.StatusCode)
	}

	resp = c.do(http.MethodGet, "/v1/session/me", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d, want 401", resp.StatusCode)
	}
}

func TestExpiredAccessTokenIsRefreshedTransparently(t *testing.T) {
	c, stub := newConsole(t)
	c.login("admin@example.com")

	// Kill the access token upstream; the refresh token stays valid, so
	// the console should rotate the pair and serve the request anyway.
	stub.mu.Lock()
	var access string
	for tok := range stub.tokens {
		access = tok
	}
	stub.mu.Unlock()
	stub.revokeToken(access)

	resp := c.do(http.MethodGet, "/v1/session/me", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 after transparent refresh", resp.StatusCode)
	}
	user := decodeBody[map[string]any](t, resp)
	if user["email"] != "admin@example.com" {
		t.Fatalf("user = %v", user)
	}
}

func TestKYCStreamSurvivesTokenRotation(t *testing.T) {
	c, stub := newConsole(t)
	c.login("admin@example.com")

	// Expire the access token upstream before the poller ever runs; the
	// refresh token stays valid, so the background poll must rotate the
	// pair through the session store and keep streaming.
	stub.mu.Lock()
	var access string
	for tok := range stub.tokens {
		access = tok
	}
	stub.mu.Unlock()
	stub.revokeToken(access)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/kyc/status/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var update kyc.Update
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &update); err != nil {
			t.Fatalf("decode update: %v", err)
		}
		break
	}
	if update.Status != kyc.Status("in_review") {
		t.Fatalf("update = %+v", update)
	}
	cancel()

	resp = c.do(http.MethodPost, "/v1/session/logout", nil)
	resp.Body.Close()
}

func TestPollerRegistryRestartsAfterRemove(t *testing.T) {
	reg := newPollerRegistry()
	var starts int
	start := func() (*kyc.Poller, context.CancelFunc) {
		starts++
		p := kyc.NewPoller(func(context.Context) (kyc.Status, error) { return "", nil })
		return p, func() {}
	}

	p1 := reg.get("sess-1", start)
	if reg.get("sess-1", start) != p1 {
		t.Fatal("expected the running poller to be reused")
	}

	// A poller that stopped on its own is removed; the next subscribe
	// must start a fresh one instead of handing out the dead instance.
	reg.remove("sess-1", p1)
	p2 := reg.get("sess-1", start)
	if p2 == p1 {
		t.Fatal("expected a fresh poller after removal")
	}
	if starts != 2 {
		t.Fatalf("starts = %d, want 2", starts)
	}

	// A late exit of the old poller must not evict its replacement.
	reg.remove("sess-1", p1)
	if reg.get("sess-1", start) != p2 {
		t.Fatal("stale removal evicted the active poller")
	}
}

func TestHealthAndInfoArePublic(t *testing.T) {
	c, _ := newConsole(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.do(http.MethodGet, path, nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
}
