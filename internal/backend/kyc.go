package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"payloom.io/internal/kyc"
)

// KYCService wraps the verification endpoints. Document status and
// rejection reasons are backend-owned: nothing in this package (or its
// callers) writes to those fields.
type KYCService struct {
	c *Client
}

// DocumentFilter narrows the document listing.
type DocumentFilter struct {
	Status kyc.DocumentStatus
	Type   kyc.DocumentType
	Page   int
	Per    int
}

func (f DocumentFilter) values() url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if f.Page > 0 {
		q.Set("page", fmt.Sprint(f.Page))
	}
	if f.Per > 0 {
		q.Set("per_page", fmt.Sprint(f.Per))
	}
	return q
}

// Documents lists the organization's submitted documents.
func (s *KYCService) Documents(ctx context.Context, filter DocumentFilter) ([]kyc.Document, Meta, error) {
	var docs []kyc.Document
	var meta Meta
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/kyc/documents",
		query:    filter.values(),
		out:      &docs,
		meta:     &meta,
		resource: "kyc.documents",
	})
	return docs, meta, err
}

// Status fetches the organization's overall verification status.
func (s *KYCService) Status(ctx context.Context) (kyc.Status, error) {
	var payload struct {
		Status          kyc.Status `json:"status"`
		RejectionReason string     `json:"rejection_reason"`
	}
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/kyc/status",
		out:      &payload,
		resource: "kyc.status",
	})
	return payload.Status, err
}

// Submit uploads a batch of documents as one multipart request. The batch
// is validated locally first so a malformed file never costs a round trip.
func (s *KYCService) Submit(ctx context.Context, uploads []kyc.Upload) ([]kyc.Document, error) {
	if err := kyc.ValidateUploads(uploads); err != nil {
		return nil, err
	}
	files := make([]filePart, 0, len(uploads))
	fields := make(map[string]string, len(uploads))
	for i, up := range uploads {
		field := fmt.Sprintf("documents[%d]", i)
		files = append(files, filePart{field: field, name: up.FileName, content: up.Content})
		fields[fmt.Sprintf("types[%d]", i)] = string(up.Type)
	}
	var docs []kyc.Document
	if err := s.c.doMultipart(ctx, "/api/v1/kyc/documents", "kyc.submit", fields, files, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
