package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/Zymoclassic/eduplat/internal/store"
	"github.com/google/uuid"
)

// CommissionAccruer credits referring marketers.
type CommissionAccruer interface {
	Accrue(ctx context.Context, studentID uuid.UUID, amount int64, reference string) (*domain.Commission, error)
}

// CommissionService credits a percentage of every reconciled student payment
// to the student's referrer, at most once per (student, reference).
type CommissionService struct {
	repo     store.Repository
	policy   domain.CommissionPolicy
	notifier Notifier
	now      func() time.Time
}

func NewCommissionService(repo store.Repository, percent int64, notifier Notifier) *CommissionService {
	return &CommissionService{
		repo:     repo,
		policy:   domain.CommissionPolicy{Percent: float64(percent)},
		notifier: notifier,
		now:      time.Now,
	}
}

// Accrue returns the recorded commission, or nil when there is nothing to
// credit (no referrer, zero commission, or already accrued).
func (s *CommissionService) Accrue(ctx context.Context, studentID uuid.UUID, amount int64, reference string) (*domain.Commission, error) {
	student, err := s.repo.FindStudentByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, store.ErrStudentNotFound) {
			return nil, notFoundError("student not found")
		}
		return nil, fmt.Errorf("load student: %w", err)
	}
	if student.ReferrerID == nil {
		return nil, nil
	}

	earned := s.policy.Compute(amount)
	if earned <= 0 {
		return nil, nil
	}

	commission := domain.Commission{
		ID:           uuid.New(),
		MarketerID:   *student.ReferrerID,
		StudentID:    studentID,
		Reference:    reference,
		AmountEarned: earned,
		PaymentDate:  s.now(),
	}
	created, err := s.repo.RecordCommission(ctx, commission)
	if err != nil {
		return nil, fmt.Errorf("record commission: %w", err)
	}
	if !created {
		log.Printf("level=info component=commission msg=\"commission already accrued\" student_id=%s reference=%s", studentID, reference)
		return nil, nil
	}

	log.Printf("level=info component=commission msg=\"commission accrued\" marketer_id=%s student_id=%s reference=%s amount=%d",
		commission.MarketerID, studentID, reference, earned)

	if s.notifier != nil {
		s.notifier.Notify(ctx, Notice{
			Recipient: domain.AccountRef{Kind: domain.AccountKindMarketer, ID: commission.MarketerID},
			Title:     "Commission earned",
			Message:   fmt.Sprintf("You earned %s from a payment by %s.", FormatNaira(earned), student.FullName()),
			Type:      domain.NotificationTypeInfo,
			Metadata:  map[string]string{"reference": reference, "student_id": studentID.String()},
		})
	}
	return &commission, nil
}

// FormatNaira renders kobo as a naira amount, e.g. 2000000 -> "₦20,000.00".
func FormatNaira(kobo int64) string {
	sign := ""
	if kobo < 0 {
		sign = "-"
		kobo = -kobo
	}
	whole := fmt.Sprintf("%d", kobo/100)
	var grouped []byte
	for i, digit := range []byte(whole) {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, digit)
	}
	return fmt.Sprintf("%s₦%s.%02d", sign, grouped, kobo%100)
}
