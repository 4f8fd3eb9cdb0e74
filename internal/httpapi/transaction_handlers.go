package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"payloom.io/internal/access"
	"payloom.io/internal/audit"
	"payloom.io/internal/backend"
	"payloom.io/internal/cache"
)

func transactionFilter(r *http.Request) backend.TransactionFilter {
	q := r.URL.Query()
	page, per := pageParams(r)
	f := backend.TransactionFilter{
		Status:   q.Get("status"),
		Currency: strings.ToUpper(q.Get("currency")),
		Search:   q.Get("search"),
		Page:     page,
		Per:      per,
	}
	if from, err := time.Parse("2006-01-02", q.Get("from")); err == nil {
		f.From = from
	}
	if to, err := time.Parse("2006-01-02", q.Get("to")); err == nil {
		f.To = to
	}
	return f
}

func (a *API) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	_, ok := a.requirePermission(w, r, access.PermViewTransactions)
	if !ok {
		return
	}
	rec, _ := a.requireSession(w, r)
	filter := transactionFilter(r)

	// Short TTL: listings must pick up settlement changes quickly.
	key := cache.Key("transactions", rec.ID, r.URL.RawQuery)
	type page struct {
		Items []backend.Transaction
		Meta  backend.Meta
	}
	result, err := cache.Fetch(r.Context(), a.cache, key, cache.TTLTransactions, func(ctx context.Context) (page, error) {
		items, meta, err := a.api.Transactions.List(ctx, filter)
		return page{Items: items, Meta: meta}, err
	})
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writePage(w, result.Items, result.Meta)
}

func (a *API) handleTransactionResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id := trimResourceID(r.URL.Path, "/v1/transactions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "not_found", "resource not found")
		return
	}
	if _, ok := a.requirePermission(w, r, access.PermViewTransactions); !ok {
		return
	}
	tx, err := a.api.Transactions.Get(r.Context(), id)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, tx)
}

// handleTransactionExport streams the backend-rendered report through. Any
// upstream failure keeps the backend's own message so the operator sees the
// real reason (range too wide, too many rows).
func (a *API) handleTransactionExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requirePermission(w, r, access.PermExportTransactions); !ok {
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	export, err := a.api.Transactions.Export(r.Context(), transactionFilter(r), format)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "transactions.export", map[string]any{
		"format": format, "bytes": len(export.Content),
	})

	contentType := export.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	fileName := export.FileName
	if fileName == "" {
		fileName = "transactions-export." + format
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(export.Content)
}
