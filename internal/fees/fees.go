// Package fees computes the display-only fee preview shown on payment page
// forms. Authoritative fee amounts always come from the backend; this quote
// exists so the form can show the split before anything is saved.
package fees

import "errors"

var (
	ErrInvalidAmount = errors.New("fees: amount must be > 0")
	ErrInvalidRate   = errors.New("fees: rate must be between 0 and 10000 basis points")
)

// Quote is a fee split in minor units. No floats.
type Quote struct {
	Amount         int64  `json:"amount"`
	Fee            int64  `json:"fee"`
	CustomerPays   int64  `json:"customer_pays"`
	VendorReceives int64  `json:"vendor_receives"`
	Currency       string `json:"currency,omitempty"`
}

// Compute splits an amount against a platform fee expressed in basis
// points (10% == 1000 bps). The fee is rounded half-up to the minor unit.
//
// When includeFeesInAmount is false the vendor absorbs the fee: the
// customer pays the listed amount and the vendor receives amount - fee.
// When true the fee is passed on: the customer pays amount + fee and the
// vendor receives the full amount.
func Compute(amount int64, rateBps int64, includeFeesInAmount bool) (Quote, error) {
	if amount <= 0 {
		return Quote{}, ErrInvalidAmount
	}
	if rateBps < 0 || rateBps > 10_000 {
		return Quote{}, ErrInvalidRate
	}

	fee := (amount*rateBps + 5_000) / 10_000

	q := Quote{Amount: amount, Fee: fee}
	if includeFeesInAmount {
		q.CustomerPays = amount + fee
		q.VendorReceives = amount
	} else {
		q.CustomerPays = amount
		q.VendorReceives = amount - fee
	}
	return q, nil
}
