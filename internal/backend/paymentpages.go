package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// PaymentPageService wraps hosted payment page management.
type PaymentPageService struct {
	c *Client
}

// PaymentPage is a hosted checkout page. Amount is minor units; zero with
// FixedAmount false means the customer picks the amount.
type PaymentPage struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Slug        string    `json:"slug"`
	URL         string    `json:"url"`
	Currency    string    `json:"currency"`
	Amount      int64     `json:"amount"`
	FixedAmount bool      `json:"fixed_amount"`
	IncludeFees bool      `json:"include_fees"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// PaymentPageRequest creates or updates a page.
type PaymentPageRequest struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Currency    string `json:"currency"`
	Amount      int64  `json:"amount,omitempty"`
	FixedAmount bool   `json:"fixed_amount"`
	IncludeFees bool   `json:"include_fees"`
	Active      bool   `json:"active"`
}

// List returns the organization's pages.
func (s *PaymentPageService) List(ctx context.Context, page, per int) ([]PaymentPage, Meta, error) {
	var pages []PaymentPage
	var meta Meta
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/payment-pages",
		query:    pageQuery(page, per),
		out:      &pages,
		meta:     &meta,
		resource: "payment_pages.list",
	})
	return pages, meta, err
}

// Get fetches one page by id.
func (s *PaymentPageService) Get(ctx context.Context, id string) (PaymentPage, error) {
	var p PaymentPage
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/payment-pages/" + url.PathEscape(id),
		out:      &p,
		resource: "payment_pages.get",
	})
	return p, err
}

// Create adds a page. The backend assigns slug and URL.
func (s *PaymentPageService) Create(ctx context.Context, req PaymentPageRequest) (PaymentPage, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return PaymentPage{}, errors.New("backend: page title is required")
	}
	if req.FixedAmount && req.Amount <= 0 {
		return PaymentPage{}, errors.New("backend: fixed-amount page needs a positive amount")
	}
	var p PaymentPage
	err := s.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/v1/payment-pages",
		body:     req,
		out:      &p,
		resource: "payment_pages.create",
	})
	return p, err
}

// Update modifies an existing page.
func (s *PaymentPageService) Update(ctx context.Context, id string, req PaymentPageRequest) (PaymentPage, error) {
	var p PaymentPage
	err := s.c.do(ctx, request{
		method:   http.MethodPut,
		path:     "/api/v1/payment-pages/" + url.PathEscape(id),
		body:     req,
		out:      &p,
		resource: "payment_pages.update",
	})
	return p, err
}

// Delete removes a page. Existing links to it stop resolving upstream.
func (s *PaymentPageService) Delete(ctx context.Context, id string) error {
	return s.c.do(ctx, request{
		method:   http.MethodDelete,
		path:     "/api/v1/payment-pages/" + url.PathEscape(id),
		resource: "payment_pages.delete",
	})
}
