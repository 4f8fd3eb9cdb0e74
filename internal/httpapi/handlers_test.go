package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
)

func readError(t *testing.T, resp *http.Response) (code, message string) {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return envelope.Error.Code, envelope.Error.Message
}

func TestPermissionGuardForbidsExport(t *testing.T) {
	c, _ := newConsole(t)
	c.login("viewer@example.com")

	resp := c.do(http.MethodGet, "/v1/transactions/export", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	code, msg := readError(t, resp)
	if code != "forbidden" {
		t.Fatalf("code = %q", code)
	}
	if !strings.Contains(msg, "export-transactions") {
		t.Fatalf("message should name the permission, got %q", msg)
	}
}

func TestExportStreamsAttachment(t *testing.T) {
	c, _ := newConsole(t)
	c.login("admin@example.com")

	resp := c.do(http.MethodGet, "/v1/transactions/export?format=csv", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Fatalf("disposition = %q", got)
	}
	payload, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(payload), "tx_1") {
		t.Fatalf("unexpected export body: %s", payload)
	}
}

func TestTransactionsViewerCanList(t *testing.T) {
	c, _ := newConsole(t)
	c.login("viewer@example.com")

	resp := c.do(http.MethodGet, "/v1/transactions", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var envelope struct {
		Data []map[string]any `json:"data"`
		Meta map[string]any   `json:"meta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data) != 1 || envelope.Data[0]["reference"] != "REF-1" {
		t.Fatalf("data = %v", envelope.Data)
	}
	if envelope.Meta["total"] != float64(1) {
		t.Fatalf("meta = %v", envelope.Meta)
	}
}

func TestTransactionsListIsCachedPerQuery(t *testing.T) {
	c, stub := newConsole(t)
	c.login("admin@example.com")

	for i := 0; i < 3; i++ {
		resp := c.do(http.MethodGet, "/v1/transactions?page=1", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
	}
	if hits := stub.txHits.Load(); hits != 1 {
		t.Fatalf("upstream hits = %d, want 1 (cached)", hits)
	}

	// A different query string is a different cache entry.
	resp := c.do(http.MethodGet, "/v1/transactions?page=2", nil)
	resp.Body.Close()
	if hits := stub.txHits.Load(); hits != 2 {
		t.Fatalf("upstream hits = %d, want 2", hits)
	}
}

func TestOnboardingStepGate(t *testing.T) {
	c, _ := newConsole(t)
	c.login("admin@example.com")

	// Step 2 is locked until step 1 completes.
	resp := c.do(http.MethodPost, "/v1/onboarding/profile-review", map[string]any{})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if code, _ := readError(t, resp); code != "step_locked" {
		t.Fatalf("code = %q", code)
	}

	resp = c.do(http.MethodPost, "/v1/onboarding/organization", map[string]any{
		"name": "Acme", "type": "corporate", "country": "NG",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("organization status = %d", resp.StatusCode)
	}

	resp = c.do(http.MethodPost, "/v1/onboarding/profile-review", map[string]any{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile-review after step 1 = %d, want 200", resp.StatusCode)
	}
}

func TestOnboardingCompleteRequiresAllSteps(t *testing.T) {
	c, _ := newConsole(t)
	c.login("admin@example.com")

	resp := c.do(http.MethodPost, "/v1/onboarding/complete", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if code, _ := readError(t, resp); code != "steps_incomplete" {
		t.Fatalf("code = %q", code)
	}
}

func TestQuotePreviewArithmetic(t *testing.T) {
	c, _ := newConsole(t)
	c.login("admin@example.com")

	cases := []struct {
		name    string
		body    map[string]any
		pays    float64
		gets    float64
		fee     float64
		wantErr bool
	}{
		{
			name: "vendor absorbs fee",
			body: map[string]any{"amount": 100_000, "currency": "ngn", "rate_bps": 150, "include_fees": false},
			pays: 100_000, gets: 98_500, fee: 1_500,
		},
		{
			name: "fee passed to customer",
			body: map[string]any{"amount": 100_000, "currency": "NGN", "rate_bps": 150, "include_fees": true},
			pays: 101_500, gets: 100_000, fee: 1_500,
		},
		{
			name: "rounds half up",
			body: map[string]any{"amount": 333, "currency": "USD", "rate_bps": 150, "include_fees": false},
			pays: 333, gets: 328, fee: 5,
		},
		{
			name:    "zero amount rejected",
			body:    map[string]any{"amount": 0, "currency": "USD", "rate_bps": 150},
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := c.do(http.MethodPost, "/v1/payment-pages/quote", tc.body)
			if tc.wantErr {
				defer resp.Body.Close()
				if resp.StatusCode != http.StatusBadRequest {
					t.Fatalf("status = %d, want 400", resp.StatusCode)
				}
				return
			}
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			quote := decodeBody[map[string]any](t, resp)
			if quote["customer_pays"] != tc.pays || quote["vendor_receives"] != tc.gets || quote["fee"] != tc.fee {
				t.Fatalf("quote = %v", quote)
			}
			if want := strings.ToUpper(tc.body["currency"].(string)); quote["currency"] != want {
				t.Fatalf("currency = %v, want %s", quote["currency"], want)
			}
		})
	}
}

func TestMethodNotAllowedSetsAllowHeader(t *testing.T) {
	c, _ := newConsole(t)
	c.login("admin@example.com")

	resp := c.do(http.MethodDelete, "/v1/transactions", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", resp.StatusCode)
	}
	if allow := resp.Header.Get("Allow"); !strings.Contains(allow, http.MethodGet) {
		t.Fatalf("Allow = %q", allow)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	c, _ := newConsole(t)
	c.login("admin@example.com")

	resp := c.do(http.MethodGet, "/v1/nope", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestUpdateProfileRefreshesProjection(t *testing.T) {
	c, _ := newConsole(t)
	c.login("admin@example.com")

	resp := c.do(http.MethodPut, "/v1/session/profile", map[string]any{
		"name": "Renamed",
	})
	defer resp.Body.Close()
	// The stub has no profile route; the console must surface the upstream
	// 404 rather than swallow it.
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 passthrough", resp.StatusCode)
	}
}
