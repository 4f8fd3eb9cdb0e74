package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"payloom.io/internal/access"
	"payloom.io/internal/audit"
	"payloom.io/internal/backend"
	"payloom.io/internal/kyc"
)

func (a *API) handleKYCDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listKYCDocuments(w, r)
	case http.MethodPost:
		a.submitKYCDocuments(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) listKYCDocuments(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.PermSubmitKYC); !ok {
		return
	}
	page, per := pageParams(r)
	filter := backend.DocumentFilter{
		Status: kyc.DocumentStatus(r.URL.Query().Get("status")),
		Type:   kyc.DocumentType(r.URL.Query().Get("type")),
		Page:   page,
		Per:    per,
	}
	docs, meta, err := a.api.KYC.Documents(r.Context(), filter)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writePage(w, docs, meta)
}

func (a *API) submitKYCDocuments(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requirePermission(w, r, access.PermSubmitKYC); !ok {
		return
	}
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", "multipart form expected")
		return
	}
	form := r.MultipartForm
	defer func() { _ = form.RemoveAll() }()

	var uploads []kyc.Upload
	for i, header := range form.File["documents"] {
		docType := ""
		if types := form.Value["types"]; i < len(types) {
			docType = types[i]
		}
		f, err := header.Open()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "unreadable upload: "+header.Filename)
			return
		}
		content, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "invalid_request", "unreadable upload: "+header.Filename)
			return
		}
		uploads = append(uploads, kyc.Upload{
			Type:     kyc.DocumentType(docType),
			FileName: header.Filename,
			Content:  content,
		})
	}
	if err := kyc.ValidateUploads(uploads); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	docs, err := a.api.KYC.Submit(r.Context(), uploads)
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	audit.LogEvent(r.Context(), "kyc.documents_submitted", map[string]any{
		"count": len(uploads),
	})
	writeData(w, http.StatusCreated, docs)
}

func (a *API) handleKYCStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.requireSession(w, r); !ok {
		return
	}
	status, err := a.api.KYC.Status(r.Context())
	if err != nil {
		handleBackendError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]any{"status": status})
}

// handleKYCStream pushes verification status changes over SSE while a
// review is in flight. One poller runs per session regardless of how many
// tabs subscribe.
func (a *API) handleKYCStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rec, ok := a.requireSession(w, r)
	if !ok {
		return
	}

	flusher, okFlush := w.(http.Flusher)
	if !okFlush {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	poller := a.pollers.get(rec.ID, func() (*kyc.Poller, context.CancelFunc) {
		runCtx, cancel := context.WithCancel(context.Background())
		runCtx = backend.ContextWithTokenSource(runCtx, &pollerTokenSource{
			mgr:       a.mgr,
			sessionID: rec.ID,
		})
		p := kyc.NewPoller(func(ctx context.Context) (kyc.Status, error) {
			status, err := a.api.KYC.Status(ctx)
			if errors.Is(err, backend.ErrSessionExpired) {
				cancel()
			}
			return status, err
		})
		go func() {
			p.Run(runCtx)
			// Whatever stopped the poller (terminal status, dead session),
			// the next subscribe starts a fresh one.
			a.pollers.remove(rec.ID, p)
		}()
		return p, cancel
	})

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ch := poller.Subscribe(ctx)

	// Send an initial comment to establish the stream
	_, _ = w.Write([]byte(": stream started\n\n"))
	flusher.Flush()

	for update := range ch {
		payload, err := json.Marshal(update)
		if err != nil {
			continue
		}
		_, _ = w.Write([]byte("data: "))
		_, _ = w.Write(payload)
		_, _ = w.Write([]byte("\n\n"))
		flusher.Flush()
	}
}
