package httpapi

import (
	"context"
	"net/http"
	"strings"

	"payloom.io/internal/access"
	"payloom.io/internal/audit"
	"payloom.io/internal/backend"
	"payloom.io/internal/cache"
)

func (a *API) handleDisbursements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requirePermission(w, r, access.PermViewDisbursements); !ok {
		return
	}
	page, per := pageParams(r)
	filter := backend.DisbursementFilter{
		Status: r.URL.Query().Get("status"),
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Per:    per,
	}
	items, meta, err := a.api.Disbursements.List(r.Context(), filter)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writePage(w, items, meta)
}

func (a *API) handleDisbursementResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id := trimResourceID(r.URL.Path, "/v1/disbursements/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	if _, ok := a.requirePermission(w, r, access.PermViewDisbursements); !ok {
		return
	}
	d, err := a.api.Disbursements.Get(r.Context(), id)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

func (a *API) handlePayoutAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPayoutAccounts(w, r)
	case http.MethodPost:
		a.createPayoutAccount(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listPayoutAccounts(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.PermManageDisbursements); !ok {
		return
	}
	accounts, err := a.api.Disbursements.PayoutAccounts(r.Context())
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, accounts)
}

func (a *API) createPayoutAccount(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.PermManageDisbursements); !ok {
		return
	}
	var req backend.PayoutAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	acct, err := a.api.Disbursements.CreatePayoutAccount(r.Context(), req)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "payout_account.create", map[string]any{
		"bank_code": req.BankCode,
	})
	writeData(w, http.StatusCreated, acct)
}

func (a *API) handleBanks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireSession(w, r); !ok {
		return
	}
	country := strings.ToUpper(r.URL.Query().Get("country"))
	// The bank directory barely changes; cache it for the long haul.
	key := cache.Key("banks", country)
	banks, err := cache.Fetch(r.Context(), a.cache, key, cache.TTLReference, func(ctx context.Context) ([]backend.Bank, error) {
		return a.api.Disbursements.Banks(ctx, country)
	})
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, banks)
}
