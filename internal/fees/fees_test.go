package fees

import "testing"

func TestComputeVendorAbsorbsFee(t *testing.T) {
	// 100.00 at 10%, vendor pays the fee.
	q, err := Compute(10_000, 1_000, false)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if q.Fee != 1_000 {
		t.Fatalf("fee = %d, want 1000", q.Fee)
	}
	if q.CustomerPays != 10_000 {
		t.Fatalf("customer pays = %d, want 10000", q.CustomerPays)
	}
	if q.VendorReceives != 9_000 {
		t.Fatalf("vendor receives = %d, want 9000", q.VendorReceives)
	}
}

func TestComputeCustomerPaysFee(t *testing.T) {
	q, err := Compute(10_000, 1_000, true)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if q.Fee != 1_000 {
		t.Fatalf("fee = %d, want 1000", q.Fee)
	}
	if q.CustomerPays != 11_000 {
		t.Fatalf("customer pays = %d, want 11000", q.CustomerPays)
	}
	if q.VendorReceives != 10_000 {
		t.Fatalf("vendor receives = %d, want 10000", q.VendorReceives)
	}
}

func TestComputeRoundsHalfUp(t *testing.T) {
	// 0.25 at 2.5% -> 0.625 minor units of fee -> rounds to 1.
	q, err := Compute(25, 250, false)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if q.Fee != 1 {
		t.Fatalf("fee = %d, want 1", q.Fee)
	}
	if q.VendorReceives != 24 {
		t.Fatalf("vendor receives = %d, want 24", q.VendorReceives)
	}

	// 0.24 at 2.5% -> 0.6 -> rounds to 1; 0.16 at 2.5% -> 0.4 -> rounds to 0.
	if q, _ = Compute(16, 250, false); q.Fee != 0 {
		t.Fatalf("fee = %d, want 0", q.Fee)
	}
}

func TestComputeRejectsBadInput(t *testing.T) {
	if _, err := Compute(0, 1_000, false); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := Compute(-5, 1_000, false); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := Compute(100, -1, false); err != ErrInvalidRate {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
	if _, err := Compute(100, 10_001, false); err != ErrInvalidRate {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
}

func TestComputeZeroRate(t *testing.T) {
	q, err := Compute(5_000, 0, false)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if q.Fee != 0 || q.CustomerPays != 5_000 || q.VendorReceives != 5_000 {
		t.Fatalf("unexpected quote: %+v", q)
	}
}
