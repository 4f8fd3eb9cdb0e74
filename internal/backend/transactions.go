package backend

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// TransactionService wraps the read-only transaction endpoints. Amounts are
// minor units straight off the wire; the console never recomputes them.
type TransactionService struct {
	c *Client
}

// Transaction is a display projection of a payment. Amount, Fee and
// NetAmount are backend-computed and carried through untouched.
type Transaction struct {
	ID        string    `json:"id"`
	Reference string    `json:"reference"`
	Status    string    `json:"status"`
	Currency  string    `json:"currency"`
	Amount    int64     `json:"amount"`
	Fee       int64     `json:"fee"`
	NetAmount int64     `json:"net_amount"`
	Channel   string    `json:"channel"`
	Customer  string    `json:"customer_email"`
	CreatedAt time.Time `json:"created_at"`
}

// TransactionFilter narrows the transaction listing. Zero values are
// omitted from the query.
type TransactionFilter struct {
	Status   string
	Currency string
	Search   string
	From     time.Time
	To       time.Time
	Page     int
	Per      int
}

func (f TransactionFilter) values() url.Values {
	q := pageQuery(f.Page, f.Per)
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Currency != "" {
		q.Set("currency", f.Currency)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.Format("2006-01-02"))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.Format("2006-01-02"))
	}
	return q
}

// List returns a filtered, paginated transaction page.
func (s *TransactionService) List(ctx context.Context, filter TransactionFilter) ([]Transaction, Meta, error) {
	var txs []Transaction
	var meta Meta
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/transactions",
		query:    filter.values(),
		out:      &txs,
		meta:     &meta,
		resource: "transactions.list",
	})
	return txs, meta, err
}

// Get fetches one transaction by id.
func (s *TransactionService) Get(ctx context.Context, id string) (Transaction, error) {
	var tx Transaction
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/transactions/" + url.PathEscape(id),
		out:      &tx,
		resource: "transactions.get",
	})
	return tx, err
}

// Export streams a report for the filtered set. The backend renders the
// file; failures keep the backend's own message so the caller can surface
// it verbatim.
func (s *TransactionService) Export(ctx context.Context, filter TransactionFilter, format string) (Export, error) {
	q := filter.values()
	if format != "" {
		q.Set("format", format)
	}
	return s.c.doExport(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/transactions/export",
		query:    q,
		resource: "transactions.export",
	})
}
