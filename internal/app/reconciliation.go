/**
 * @description
 * Payment reconciliation engine. Turns a signed gateway webhook into ledger
 * changes: the course payment record, the one-time referral bonus, the
 * referrer's commission and the follow-up notifications.
 *
 * Idempotency is anchored on the (student, reference) pair. A redelivered
 * webhook is acknowledged without touching amountPaid or balances; commission
 * accrual is re-attempted on redelivery since it is itself idempotent and a
 * previous attempt may have failed after the payment committed.
 *
 * @dependencies
 * - internal/store: transactional ledger writes.
 */

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/Zymoclassic/eduplat/internal/store"
	"github.com/Zymoclassic/eduplat/pkg/mailer"
	"github.com/google/uuid"
)

type WebhookOutcome string

const (
	WebhookIgnored   WebhookOutcome = "ignored"
	WebhookDuplicate WebhookOutcome = "duplicate"
	WebhookApplied   WebhookOutcome = "applied"
)

type WebhookResult struct {
	Outcome       WebhookOutcome       `json:"outcome"`
	Reference     string               `json:"reference,omitempty"`
	PaymentStatus domain.PaymentStatus `json:"payment_status,omitempty"`
	AmountPaid    int64                `json:"amount_paid,omitempty"`
	AmountPayable int64                `json:"amount_payable,omitempty"`
	BonusCredited bool                 `json:"bonus_credited,omitempty"`
}

type ReconciliationConfig struct {
	WebhookSecret         string
	PartialPaymentPercent int64
	ReferralBonusKobo     int64
}

type ReconciliationEngine struct {
	repo          store.Repository
	commissions   CommissionAccruer
	notifier      Notifier
	secret        string
	policy        domain.PaymentPolicy
	referralBonus int64
	now           func() time.Time
}

func NewReconciliationEngine(repo store.Repository, commissions CommissionAccruer, notifier Notifier, cfg ReconciliationConfig) *ReconciliationEngine {
	return &ReconciliationEngine{
		repo:          repo,
		commissions:   commissions,
		notifier:      notifier,
		secret:        cfg.WebhookSecret,
		policy:        domain.PaymentPolicy{PartialPercent: float64(cfg.PartialPaymentPercent)},
		referralBonus: cfg.ReferralBonusKobo,
		now:           time.Now,
	}
}

// HandleWebhook authenticates the raw body before parsing it.
func (e *ReconciliationEngine) HandleWebhook(ctx context.Context, body []byte, signature string) (*WebhookResult, error) {
	if !VerifyWebhookSignature(e.secret, body, signature) {
		return nil, newError(ErrUnauthorized, "invalid webhook signature")
	}

	var event domain.PaymentWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, validationError("malformed webhook payload")
	}

	if event.Event != domain.ChargeSuccessEvent {
		log.Printf("level=info component=reconciliation msg=\"ignoring webhook event\" event=%s reference=%s", event.Event, event.Data.Reference)
		return &WebhookResult{Outcome: WebhookIgnored, Reference: event.Data.Reference}, nil
	}
	return e.Reconcile(ctx, event.Data)
}

// Reconcile applies one successful charge.
func (e *ReconciliationEngine) Reconcile(ctx context.Context, data domain.PaymentWebhookData) (*WebhookResult, error) {
	reference := strings.TrimSpace(data.Reference)
	email := strings.ToLower(strings.TrimSpace(data.Customer.Email))
	if reference == "" {
		return nil, validationError("payment reference is required")
	}
	if email == "" {
		return nil, validationError("customer email is required")
	}
	if data.Amount <= 0 {
		return nil, validationError("payment amount must be positive")
	}

	metadata, err := data.ParseMetadata()
	if err != nil {
		return nil, validationError("malformed payment metadata")
	}
	if strings.TrimSpace(metadata.CourseID) == "" {
		return nil, validationError("metadata.courseId is required")
	}

	student, err := e.repo.FindStudentByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrStudentNotFound) {
			return nil, notFoundError("student not found")
		}
		return nil, fmt.Errorf("find student: %w", err)
	}

	duplicate, err := e.repo.HasPaymentTransaction(ctx, student.Ref.ID, reference)
	if err != nil {
		return nil, fmt.Errorf("check duplicate reference: %w", err)
	}
	if duplicate {
		return e.acknowledgeDuplicate(ctx, student, data.Amount, reference)
	}

	courseID, err := uuid.Parse(strings.TrimSpace(metadata.CourseID))
	if err != nil {
		return nil, notFoundError("course not found")
	}
	course, err := e.repo.FindCourseByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, store.ErrCourseNotFound) {
			return nil, notFoundError("course not found")
		}
		return nil, fmt.Errorf("find course: %w", err)
	}

	structure, _ := domain.ParsePaymentStructure(metadata.PaymentStructure)
	mode, _ := domain.ParseLearningMode(metadata.LearningMode)

	result, err := e.repo.ApplyCoursePayment(ctx, store.ApplyCoursePaymentParams{
		StudentID:        student.Ref.ID,
		Course:           *course,
		Reference:        reference,
		Amount:           data.Amount,
		GatewayStatus:    gatewayStatus(data.Status),
		PaymentStructure: structure,
		LearningMode:     mode,
		Policy:           e.policy,
		ReferralBonus:    e.referralBonus,
		PaidAt:           e.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateTransaction):
			return e.acknowledgeDuplicate(ctx, student, data.Amount, reference)
		case errors.Is(err, domain.ErrOverpayment):
			return nil, wrapError(ErrOverpayment, err, "payment exceeds the remaining balance for this course")
		case errors.Is(err, domain.ErrInvalidPaymentAmount):
			return nil, wrapError(ErrValidation, err, "payment amount must be the course price or the partial installment, then exactly the remaining balance")
		case errors.Is(err, store.ErrStudentNotFound):
			return nil, notFoundError("student not found")
		}
		return nil, fmt.Errorf("apply course payment: %w", err)
	}

	log.Printf("level=info component=reconciliation msg=\"payment reconciled\" student_id=%s course_id=%s reference=%s amount=%d status=%s bonus=%t",
		student.Ref.ID, course.ID, reference, data.Amount, result.Outcome.Status, result.BonusCredited)

	if e.commissions != nil {
		if _, err := e.commissions.Accrue(ctx, student.Ref.ID, data.Amount, reference); err != nil {
			// The payment is committed; a redelivery re-runs accrual.
			return nil, fmt.Errorf("accrue commission: %w", err)
		}
	}

	e.notifyPayment(ctx, student, course, reference, data.Amount, result)

	return &WebhookResult{
		Outcome:       WebhookApplied,
		Reference:     reference,
		PaymentStatus: result.Outcome.Status,
		AmountPaid:    result.Outcome.AmountPaid,
		AmountPayable: result.Outcome.AmountPayable,
		BonusCredited: result.BonusCredited,
	}, nil
}

func (e *ReconciliationEngine) acknowledgeDuplicate(ctx context.Context, student *domain.Student, amount int64, reference string) (*WebhookResult, error) {
	log.Printf("level=info component=reconciliation msg=\"duplicate webhook acknowledged\" student_id=%s reference=%s", student.Ref.ID, reference)
	if e.commissions != nil {
		if _, err := e.commissions.Accrue(ctx, student.Ref.ID, amount, reference); err != nil {
			return nil, fmt.Errorf("accrue commission on redelivery: %w", err)
		}
	}
	return &WebhookResult{Outcome: WebhookDuplicate, Reference: reference}, nil
}

func (e *ReconciliationEngine) notifyPayment(ctx context.Context, student *domain.Student, course *domain.Course, reference string, amount int64, result *store.ApplyCoursePaymentResult) {
	if e.notifier == nil {
		return
	}

	e.notifier.Notify(ctx, Notice{
		Recipient: student.Ref,
		Title:     "Payment received",
		Message: fmt.Sprintf("Your payment of %s for %s was received. Status: %s.",
			FormatNaira(amount), course.Title, result.Outcome.Status),
		Type:     domain.NotificationTypeInfo,
		Metadata: map[string]string{"reference": reference, "course_id": course.ID.String()},
		Email: &domain.EmailMessage{
			To:       student.Email,
			Subject:  "Payment confirmation",
			Template: mailer.TemplatePaymentReceipt,
			Data: map[string]string{
				"Name":      student.FirstName,
				"Amount":    FormatNaira(amount),
				"Course":    course.Title,
				"Reference": reference,
				"Status":    string(result.Outcome.Status),
			},
		},
	})

	if result.BonusCredited && result.ReferrerID != nil {
		e.notifier.Notify(ctx, Notice{
			Recipient: domain.AccountRef{Kind: domain.AccountKindMarketer, ID: *result.ReferrerID},
			Title:     "Referral enrolled",
			Message: fmt.Sprintf("%s, whom you referred, made a first payment and received a %s sign-up bonus.",
				student.FullName(), FormatNaira(result.BonusAmount)),
			Type:     domain.NotificationTypeInfo,
			Metadata: map[string]string{"reference": reference, "student_id": student.Ref.ID.String()},
		})
	}
}

func gatewayStatus(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return "success"
	}
	return status
}
