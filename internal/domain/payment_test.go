package domain

import (
	"errors"
	"testing"
)

func TestApplyCharge(t *testing.T) {
	policy := PaymentPolicy{PartialPercent: 60}
	const price = int64(10_000_000)

	tests := []struct {
		name       string
		current    *CoursePayment
		amount     int64
		wantErr    error
		wantPaid   int64
		wantStatus PaymentStatus
		wantNew    bool
	}{
		{
			name:       "first partial installment creates partial record",
			amount:     6_000_000,
			wantPaid:   6_000_000,
			wantStatus: PaymentStatusPartial,
			wantNew:    true,
		},
		{
			name:       "full price creates completed record",
			amount:     price,
			wantPaid:   price,
			wantStatus: PaymentStatusCompleted,
			wantNew:    true,
		},
		{
			name:       "remaining balance completes payment",
			current:    &CoursePayment{AmountPayable: price, AmountPaid: 6_000_000},
			amount:     4_000_000,
			wantPaid:   price,
			wantStatus: PaymentStatusCompleted,
		},
		{
			name:    "charge on completed payment is overpayment",
			current: &CoursePayment{AmountPayable: price, AmountPaid: price},
			amount:  4_000_000,
			wantErr: ErrOverpayment,
		},
		{
			name:    "full price after partial is overpayment",
			current: &CoursePayment{AmountPayable: price, AmountPaid: 6_000_000},
			amount:  price,
			wantErr: ErrOverpayment,
		},
		{
			name:    "second partial installment below remaining is rejected",
			current: &CoursePayment{AmountPayable: price, AmountPaid: 6_000_000, Status: PaymentStatusPartial},
			amount:  3_000_000,
			wantErr: ErrInvalidPaymentAmount,
		},
		{
			name:    "arbitrary amount is rejected",
			amount:  1_234_500,
			wantErr: ErrInvalidPaymentAmount,
		},
		{
			name:    "zero amount is rejected",
			amount:  0,
			wantErr: ErrInvalidPaymentAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ApplyCharge(tt.current, price, tt.amount, policy)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected error %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.AmountPaid != tt.wantPaid {
				t.Fatalf("expected amount paid %d, got %d", tt.wantPaid, got.AmountPaid)
			}
			if got.Status != tt.wantStatus {
				t.Fatalf("expected status %q, got %q", tt.wantStatus, got.Status)
			}
			if got.Created != tt.wantNew {
				t.Fatalf("expected created=%t, got %t", tt.wantNew, got.Created)
			}
			if got.AmountPaid > got.AmountPayable {
				t.Fatalf("amount paid %d exceeds payable %d", got.AmountPaid, got.AmountPayable)
			}
		})
	}
}

func TestApplyChargeRepeatedInstallmentAtLowPercent(t *testing.T) {
	policy := PaymentPolicy{PartialPercent: 40}
	const price = int64(100_000)

	first, err := ApplyCharge(nil, price, 40_000, policy)
	if err != nil {
		t.Fatalf("first installment: %v", err)
	}
	current := &CoursePayment{AmountPayable: first.AmountPayable, AmountPaid: first.AmountPaid, Status: first.Status}

	if _, err := ApplyCharge(current, price, 40_000, policy); !errors.Is(err, ErrInvalidPaymentAmount) {
		t.Fatalf("expected a repeated installment to be rejected, got %v", err)
	}

	final, err := ApplyCharge(current, price, 60_000, policy)
	if err != nil {
		t.Fatalf("remaining balance: %v", err)
	}
	if final.AmountPaid != price || final.Status != PaymentStatusCompleted {
		t.Fatalf("unexpected outcome %+v", final)
	}
}

func TestCheckoutAmount(t *testing.T) {
	policy := PaymentPolicy{PartialPercent: 60}

	if got := policy.CheckoutAmount(10_000_000, nil, PaymentStructurePart); got != 6_000_000 {
		t.Fatalf("expected partial checkout 6000000, got %d", got)
	}
	if got := policy.CheckoutAmount(10_000_000, nil, PaymentStructureFull); got != 10_000_000 {
		t.Fatalf("expected full checkout 10000000, got %d", got)
	}
	existing := &CoursePayment{AmountPayable: 10_000_000, AmountPaid: 6_000_000}
	if got := policy.CheckoutAmount(10_000_000, existing, PaymentStructureFull); got != 4_000_000 {
		t.Fatalf("expected remaining checkout 4000000, got %d", got)
	}
}

func TestParsePaymentStructureAcceptsHalfAlias(t *testing.T) {
	got, ok := ParsePaymentStructure("Half")
	if !ok || got != PaymentStructurePart {
		t.Fatalf("expected half to map to part, got %q ok=%t", got, ok)
	}
	if _, ok := ParsePaymentStructure("weekly"); ok {
		t.Fatalf("expected unknown structure to be rejected")
	}
}
