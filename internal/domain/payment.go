/**
 * @description
 * Course payment model and its state machine. A course payment is one
 * enrollment obligation owned by a student; every gateway-confirmed charge is
 * appended to its transaction trail. ApplyCharge is the single place where the
 * accepted amounts and the resulting status are decided.
 */

package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PaymentStatus tracks how much of a course obligation has been settled.
type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "unpaid"
	PaymentStatusPartial   PaymentStatus = "partial"
	PaymentStatusCompleted PaymentStatus = "completed"
)

// PaymentStructure is the installment plan chosen at checkout.
type PaymentStructure string

const (
	PaymentStructureFull PaymentStructure = "full"
	PaymentStructurePart PaymentStructure = "part"
)

// ParsePaymentStructure accepts "half" as a legacy alias for "part".
func ParsePaymentStructure(raw string) (PaymentStructure, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "full":
		return PaymentStructureFull, true
	case "part", "half", "partial":
		return PaymentStructurePart, true
	default:
		return "", false
	}
}

// LearningMode is how the student attends the course.
type LearningMode string

const (
	LearningModeOnsite  LearningMode = "onsite"
	LearningModeVirtual LearningMode = "virtual"
)

func ParseLearningMode(raw string) (LearningMode, bool) {
	mode := LearningMode(strings.ToLower(strings.TrimSpace(raw)))
	return mode, mode == LearningModeOnsite || mode == LearningModeVirtual
}

var (
	ErrInvalidPaymentAmount = errors.New("invalid payment amount")
	ErrOverpayment          = errors.New("payment exceeds remaining balance")
)

// CoursePayment is one enrollment obligation.
type CoursePayment struct {
	ID               uuid.UUID            `json:"id"`
	StudentID        uuid.UUID            `json:"student_id"`
	CourseID         uuid.UUID            `json:"course_id"`
	AmountPayable    int64                `json:"amount_payable"`
	AmountPaid       int64                `json:"amount_paid"`
	Status           PaymentStatus        `json:"payment_status"`
	PaymentStructure PaymentStructure     `json:"payment_structure,omitempty"`
	LearningMode     LearningMode         `json:"learning_mode,omitempty"`
	Transactions     []PaymentTransaction `json:"transactions,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// Remaining is the amount still owed.
func (p *CoursePayment) Remaining() int64 {
	remaining := p.AmountPayable - p.AmountPaid
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PaymentTransaction is a gateway-confirmed charge applied to a course payment.
type PaymentTransaction struct {
	ID              uuid.UUID `json:"id"`
	CoursePaymentID uuid.UUID `json:"course_payment_id"`
	StudentID       uuid.UUID `json:"student_id"`
	Reference       string    `json:"reference"`
	Amount          int64     `json:"amount"`
	GatewayStatus   string    `json:"status"`
	TransactionDate time.Time `json:"transaction_date"`
}

// PaymentPolicy holds the configured installment rules.
type PaymentPolicy struct {
	PartialPercent float64
}

// PartialAmount is the first-installment amount for a course price.
func (p PaymentPolicy) PartialAmount(price int64) int64 {
	return int64(math.Round(float64(price) * p.PartialPercent / 100))
}

// CheckoutAmount is what a student is asked to pay for the next charge.
// An existing obligation is always settled by its remaining balance.
func (p PaymentPolicy) CheckoutAmount(price int64, existing *CoursePayment, structure PaymentStructure) int64 {
	if existing != nil {
		return existing.Remaining()
	}
	if structure == PaymentStructurePart {
		return p.PartialAmount(price)
	}
	return price
}

// DerivePaymentStatus maps paid/payable onto a status.
func DerivePaymentStatus(paid, payable int64) PaymentStatus {
	switch {
	case paid <= 0:
		return PaymentStatusUnpaid
	case paid >= payable:
		return PaymentStatusCompleted
	default:
		return PaymentStatusPartial
	}
}

// ChargeOutcome is the state a course payment moves to after a charge.
type ChargeOutcome struct {
	Created       bool
	AmountPayable int64
	AmountPaid    int64
	Status        PaymentStatus
}

// ApplyCharge validates amount against the obligation and returns the next
// state. current is nil when the student has no record for the course yet.
// The first charge must be the full price or the partial installment; every
// later charge must be exactly the remaining balance. Anything above the
// remaining balance is an overpayment.
func ApplyCharge(current *CoursePayment, price int64, amount int64, policy PaymentPolicy) (ChargeOutcome, error) {
	if amount <= 0 {
		return ChargeOutcome{}, fmt.Errorf("%w: amount must be positive", ErrInvalidPaymentAmount)
	}

	payable := price
	var paid int64
	if current != nil {
		payable = current.AmountPayable
		paid = current.AmountPaid
	}
	remaining := payable - paid
	if remaining < 0 {
		remaining = 0
	}

	if amount > remaining {
		return ChargeOutcome{}, fmt.Errorf("%w: amount %d, remaining %d", ErrOverpayment, amount, remaining)
	}
	if current == nil {
		if amount != price && amount != policy.PartialAmount(price) {
			return ChargeOutcome{}, fmt.Errorf("%w: expected %d or %d, got %d",
				ErrInvalidPaymentAmount, price, policy.PartialAmount(price), amount)
		}
	} else if amount != remaining {
		return ChargeOutcome{}, fmt.Errorf("%w: expected remaining balance %d, got %d",
			ErrInvalidPaymentAmount, remaining, amount)
	}

	newPaid := paid + amount
	return ChargeOutcome{
		Created:       current == nil,
		AmountPayable: payable,
		AmountPaid:    newPaid,
		Status:        DerivePaymentStatus(newPaid, payable),
	}, nil
}
