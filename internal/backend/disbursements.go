package backend

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DisbursementService wraps payouts, payout accounts and the bank
// directory.
type DisbursementService struct {
	c *Client
}

// Disbursement is a payout to a vendor's settlement account.
type Disbursement struct {
	ID            string    `json:"id"`
	Reference     string    `json:"reference"`
	Status        string    `json:"status"`
	Currency      string    `json:"currency"`
	Amount        int64     `json:"amount"`
	Fee           int64     `json:"fee"`
	AccountName   string    `json:"account_name"`
	AccountNumber string    `json:"account_number"`
	BankName      string    `json:"bank_name"`
	FailureReason string    `json:"failure_reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// DisbursementFilter narrows the payout listing.
type DisbursementFilter struct {
	Status string
	Search string
	Page   int
	Per    int
}

func (f DisbursementFilter) values() url.Values {
	q := pageQuery(f.Page, f.Per)
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	return q
}

// List returns a filtered, paginated payout page.
func (s *DisbursementService) List(ctx context.Context, filter DisbursementFilter) ([]Disbursement, Meta, error) {
	var items []Disbursement
	var meta Meta
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/disbursements",
		query:    filter.values(),
		out:      &items,
		meta:     &meta,
		resource: "disbursements.list",
	})
	return items, meta, err
}

// Get fetches one payout by id.
func (s *DisbursementService) Get(ctx context.Context, id string) (Disbursement, error) {
	var d Disbursement
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/disbursements/" + url.PathEscape(id),
		out:      &d,
		resource: "disbursements.get",
	})
	return d, err
}

// PayoutAccount is a registered settlement destination.
type PayoutAccount struct {
	ID            string    `json:"id"`
	BankCode      string    `json:"bank_code"`
	BankName      string    `json:"bank_name"`
	AccountNumber string    `json:"account_number"`
	AccountName   string    `json:"account_name"`
	Currency      string    `json:"currency"`
	Default       bool      `json:"is_default"`
	CreatedAt     time.Time `json:"created_at"`
}

// PayoutAccounts lists the organization's settlement destinations.
func (s *DisbursementService) PayoutAccounts(ctx context.Context) ([]PayoutAccount, error) {
	var accounts []PayoutAccount
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/payout-accounts",
		out:      &accounts,
		resource: "payout_accounts.list",
	})
	return accounts, err
}

// CreatePayoutAccount registers a settlement destination. The request is
// sent with an Idempotency-Key so a retried submission cannot register the
// account twice.
func (s *DisbursementService) CreatePayoutAccount(ctx context.Context, req PayoutAccountRequest) (PayoutAccount, error) {
	if strings.TrimSpace(req.BankCode) == "" || strings.TrimSpace(req.AccountNumber) == "" {
		return PayoutAccount{}, errors.New("backend: bank_code and account_number are required")
	}
	var acct PayoutAccount
	err := s.c.do(ctx, request{
		method:   http.MethodPost,
		path:     "/api/v1/payout-accounts",
		body:     req,
		headers:  map[string]string{"Idempotency-Key": uuid.NewString()},
		out:      &acct,
		resource: "payout_accounts.create",
	})
	return acct, err
}

// Bank is one entry of the bank directory. The directory changes rarely and
// is a prime candidate for the long reference cache TTL.
type Bank struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Country string `json:"country"`
}

// Banks returns the bank directory for the given country.
func (s *DisbursementService) Banks(ctx context.Context, country string) ([]Bank, error) {
	q := url.Values{}
	if country != "" {
		q.Set("country", country)
	}
	var banks []Bank
	err := s.c.do(ctx, request{
		method:   http.MethodGet,
		path:     "/api/v1/banks",
		query:    q,
		out:      &banks,
		resource: "banks.list",
	})
	return banks, err
}
