package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Commission is a marketer earning tied to one student charge.
type Commission struct {
	ID           uuid.UUID `json:"id"`
	MarketerID   uuid.UUID `json:"marketer_id"`
	StudentID    uuid.UUID `json:"student_id"`
	Reference    string    `json:"reference"`
	AmountEarned int64     `json:"amount_earned"`
	PaymentDate  time.Time `json:"payment_date"`
}

// Earning is the one-time referral bonus credited to a student.
type Earning struct {
	ID           uuid.UUID `json:"id"`
	StudentID    uuid.UUID `json:"student_id"`
	Reference    string    `json:"reference"`
	AmountEarned int64     `json:"amount_earned"`
	PaymentDate  time.Time `json:"payment_date"`
}

// CommissionPolicy computes marketer commission on a charge.
type CommissionPolicy struct {
	Percent float64
}

func (p CommissionPolicy) Compute(amount int64) int64 {
	if amount <= 0 || p.Percent <= 0 {
		return 0
	}
	return int64(math.Round(float64(amount) * p.Percent / 100))
}

// ReferredStudent is a dashboard row for a marketer.
type ReferredStudent struct {
	ID          uuid.UUID       `json:"id"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Email       string          `json:"email"`
	PhoneNumber string          `json:"phone_number"`
	Location    string          `json:"location"`
	CreatedAt   time.Time       `json:"created_at"`
	Payments    []CoursePayment `json:"payments"`
}

// MarketerDashboard summarises a marketer's referrals and earnings.
type MarketerDashboard struct {
	Marketer         Marketer          `json:"marketer"`
	ReferredStudents []ReferredStudent `json:"referred_students"`
	Commissions      []Commission      `json:"commissions"`
}
