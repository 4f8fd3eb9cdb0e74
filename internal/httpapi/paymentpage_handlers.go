package httpapi

import (
	"net/http"
	"strings"

	"payloom.io/internal/access"
	"payloom.io/internal/audit"
	"payloom.io/internal/backend"
	"payloom.io/internal/fees"
)

func (a *API) handlePaymentPagesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listPaymentPages(w, r)
	case http.MethodPost:
		a.createPaymentPage(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listPaymentPages(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.PermManagePaymentPages); !ok {
		return
	}
	page, per := pageParams(r)
	pages, meta, err := a.api.PaymentPages.List(r.Context(), page, per)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writePage(w, pages, meta)
}

func (a *API) createPaymentPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.PermManagePaymentPages); !ok {
		return
	}
	var req backend.PaymentPageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	page, err := a.api.PaymentPages.Create(r.Context(), req)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "payment_page.create", map[string]any{"page_id": page.ID})
	writeData(w, http.StatusCreated, page)
}

func (a *API) handlePaymentPageResource(w http.ResponseWriter, r *http.Request) {
	id := trimResourceID(r.URL.Path, "/v1/payment-pages/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getPaymentPage(w, r, id)
	case http.MethodPut:
		a.updatePaymentPage(w, r, id)
	case http.MethodDelete:
		a.deletePaymentPage(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) getPaymentPage(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requirePermission(w, r, access.PermManagePaymentPages); !ok {
		return
	}
	page, err := a.api.PaymentPages.Get(r.Context(), id)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, page)
}

func (a *API) updatePaymentPage(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requirePermission(w, r, access.PermManagePaymentPages); !ok {
		return
	}
	var req backend.PaymentPageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	page, err := a.api.PaymentPages.Update(r.Context(), id, req)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "payment_page.update", map[string]any{"page_id": id})
	writeData(w, http.StatusOK, page)
}

func (a *API) deletePaymentPage(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requirePermission(w, r, access.PermManagePaymentPages); !ok {
		return
	}
	if err := a.api.PaymentPages.Delete(r.Context(), id); err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "payment_page.delete", map[string]any{"page_id": id})
	writeData(w, http.StatusOK, map[string]any{"deleted": true})
}

type quoteRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	RateBps     int64  `json:"rate_bps"`
	IncludeFees bool   `json:"include_fees"`
}

// handlePaymentPageQuote previews the fee split for a page before it is
// created. Pure arithmetic in minor units; nothing goes upstream.
func (a *API) handlePaymentPageQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.requirePermission(w, r, access.PermManagePaymentPages); !ok {
		return
	}
	var req quoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	quote, err := fees.Compute(req.Amount, req.RateBps, req.IncludeFees)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	quote.Currency = strings.ToUpper(req.Currency)
	writeData(w, http.StatusOK, quote)
}
