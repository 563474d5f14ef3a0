package app

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/google/uuid"
)

const testWebhookSecret = "sk_test_secret"

func newTestEngine(repo *repoStub, notifier Notifier) *ReconciliationEngine {
	commissions := NewCommissionService(repo, 15, notifier)
	return NewReconciliationEngine(repo, commissions, notifier, ReconciliationConfig{
		WebhookSecret:         testWebhookSecret,
		PartialPaymentPercent: 60,
		ReferralBonusKobo:     2000000,
	})
}

func chargeBody(t *testing.T, event, reference, email string, amount int64, courseID uuid.UUID) []byte {
	t.Helper()
	metadata, err := json.Marshal(domain.PaymentMetadata{CourseID: courseID.String(), PaymentStructure: "part", LearningMode: "virtual"})
	if err != nil {
		t.Fatalf("marshal metadata: %v", err)
	}
	body, err := json.Marshal(domain.PaymentWebhookEvent{
		Event: event,
		Data: domain.PaymentWebhookData{
			Reference: reference,
			Amount:    amount,
			Status:    "success",
			Customer:  domain.PaymentCustomer{Email: email},
			Metadata:  metadata,
		},
	})
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return body
}

func deliver(t *testing.T, engine *ReconciliationEngine, body []byte) (*WebhookResult, error) {
	t.Helper()
	return engine.HandleWebhook(context.Background(), body, SignWebhookBody(testWebhookSecret, body))
}

func TestHandleWebhookRejectsBadSignature(t *testing.T) {
	repo := newRepoStub()
	engine := newTestEngine(repo, nil)
	body := chargeBody(t, domain.ChargeSuccessEvent, "ref-1", "ada@example.com", 100, uuid.New())

	_, err := engine.HandleWebhook(context.Background(), body, SignWebhookBody("other-secret", body))
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(repo.transactions) != 0 {
		t.Fatalf("expected no ledger writes, got %d", len(repo.transactions))
	}
}

func TestHandleWebhookIgnoresOtherEvents(t *testing.T) {
	repo := newRepoStub()
	engine := newTestEngine(repo, nil)
	body := chargeBody(t, "transfer.success", "ref-1", "ada@example.com", 100, uuid.New())

	result, err := deliver(t, engine, body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != WebhookIgnored {
		t.Fatalf("expected ignored, got %s", result.Outcome)
	}
}

func TestReconcileFirstPartialPaymentCreditsBonusAndCommission(t *testing.T) {
	repo := newRepoStub()
	marketer := repo.addMarketer()
	student := repo.addStudent("ada@example.com", ptrUUID(marketer.Ref.ID))
	course := repo.addCourse(10000000)
	notifier := &recordingNotifier{}
	engine := newTestEngine(repo, notifier)

	result, err := deliver(t, engine, chargeBody(t, domain.ChargeSuccessEvent, "ref-1", "ada@example.com", 6000000, course.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outcome != WebhookApplied || result.PaymentStatus != domain.PaymentStatusPartial {
		t.Fatalf("expected applied partial, got %+v", result)
	}
	if !result.BonusCredited {
		t.Fatalf("expected referral bonus on first payment")
	}
	if student.Balance != 2000000 {
		t.Fatalf("expected student balance 2000000, got %d", student.Balance)
	}
	commission, ok := repo.commissions[student.Ref.ID.String()+"/ref-1"]
	if !ok {
		t.Fatalf("expected commission to be recorded")
	}
	if commission.AmountEarned != 900000 || commission.MarketerID != marketer.Ref.ID {
		t.Fatalf("unexpected commission %+v", commission)
	}

	want := map[string]bool{"Commission earned": true, "Payment received": true, "Referral enrolled": true}
	for _, title := range notifier.titles() {
		delete(want, title)
	}
	if len(want) != 0 {
		t.Fatalf("missing notifications %v, got %v", want, notifier.titles())
	}
}

func TestReconcileSecondPaymentCompletesWithoutSecondBonus(t *testing.T) {
	repo := newRepoStub()
	marketer := repo.addMarketer()
	student := repo.addStudent("ada@example.com", ptrUUID(marketer.Ref.ID))
	course := repo.addCourse(10000000)
	engine := newTestEngine(repo, nil)

	if _, err := deliver(t, engine, chargeBody(t, domain.ChargeSuccessEvent, "ref-1", "ada@example.com", 6000000, course.ID)); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	result, err := deliver(t, engine, chargeBody(t, domain.ChargeSuccessEvent, "ref-2", "ada@example.com", 4000000, course.ID))
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if result.PaymentStatus != domain.PaymentStatusCompleted || result.AmountPaid != 10000000 {
		t.Fatalf("expected completed at 10000000, got %+v", result)
	}
	if result.BonusCredited {
		t.Fatalf("bonus must only be credited once")
	}
	if student.Balance != 2000000 {
		t.Fatalf("expected balance unchanged at 2000000, got %d", student.Balance)
	}
	if len(repo.commissions) != 2 {
		t.Fatalf("expected a commission per reference, got %d", len(repo.commissions))
	}
}

func TestReconcileDuplicateDeliveryIsIdempotent(t *testing.T) {
	repo := newRepoStub()
	marketer := repo.addMarketer()
	repo.addStudent("ada@example.com", ptrUUID(marketer.Ref.ID))
	course := repo.addCourse(10000000)
	engine := newTestEngine(repo, nil)
	body := chargeBody(t, domain.ChargeSuccessEvent, "ref-1", "ada@example.com", 10000000, course.ID)

	if _, err := deliver(t, engine, body); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := deliver(t, engine, body)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Outcome != WebhookDuplicate {
		t.Fatalf("expected duplicate, got %s", result.Outcome)
	}
	if got := repo.payments[course.ID].AmountPaid; got != 10000000 {
		t.Fatalf("expected amount paid unchanged, got %d", got)
	}
	if len(repo.commissions) != 1 {
		t.Fatalf("expected exactly one commission, got %d", len(repo.commissions))
	}
}

func TestReconcileRedeliveryRepairsFailedCommission(t *testing.T) {
	repo := newRepoStub()
	marketer := repo.addMarketer()
	repo.addStudent("ada@example.com", ptrUUID(marketer.Ref.ID))
	course := repo.addCourse(10000000)
	engine := newTestEngine(repo, nil)
	body := chargeBody(t, domain.ChargeSuccessEvent, "ref-1", "ada@example.com", 10000000, course.ID)

	repo.recordErr = errors.New("connection reset")
	if _, err := deliver(t, engine, body); err == nil {
		t.Fatalf("expected commission failure to surface")
	}
	repo.recordErr = nil

	result, err := deliver(t, engine, body)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if result.Outcome != WebhookDuplicate {
		t.Fatalf("expected duplicate, got %s", result.Outcome)
	}
	if len(repo.commissions) != 1 {
		t.Fatalf("expected commission to be repaired, got %d", len(repo.commissions))
	}
}

func TestReconcileRejectsOverpayment(t *testing.T) {
	repo := newRepoStub()
	repo.addStudent("ada@example.com", nil)
	course := repo.addCourse(10000000)
	engine := newTestEngine(repo, nil)

	if _, err := deliver(t, engine, chargeBody(t, domain.ChargeSuccessEvent, "ref-1", "ada@example.com", 6000000, course.ID)); err != nil {
		t.Fatalf("first payment: %v", err)
	}
	_, err := deliver(t, engine, chargeBody(t, domain.ChargeSuccessEvent, "ref-2", "ada@example.com", 6000000, course.ID))
	if !errors.Is(err, ErrOverpayment) {
		t.Fatalf("expected overpayment, got %v", err)
	}
	if got := repo.payments[course.ID].AmountPaid; got != 6000000 {
		t.Fatalf("expected amount paid to stay at 6000000, got %d", got)
	}
}

func TestReconcileRejectsRepeatedInstallment(t *testing.T) {
	repo := newRepoStub()
	repo.addStudent("ada@example.com", nil)
	course := repo.addCourse(100000)
	engine := NewReconciliationEngine(repo, NewCommissionService(repo, 15, nil), nil, ReconciliationConfig{
		WebhookSecret:         testWebhookSecret,
		PartialPaymentPercent: 40,
	})

	if _, err := deliver(t, engine, chargeBody(t, domain.ChargeSuccessEvent, "ref-1", "ada@example.com", 40000, course.ID)); err != nil {
		t.Fatalf("first installment: %v", err)
	}
	if _, err := deliver(t, engine, chargeBody(t, domain.ChargeSuccessEvent, "ref-2", "ada@example.com", 40000, course.ID)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected a repeated installment to be rejected, got %v", err)
	}
	if got := repo.payments[course.ID].AmountPaid; got != 40000 {
		t.Fatalf("expected amount paid to stay at 40000, got %d", got)
	}

	result, err := deliver(t, engine, chargeBody(t, domain.ChargeSuccessEvent, "ref-3", "ada@example.com", 60000, course.ID))
	if err != nil {
		t.Fatalf("remaining balance: %v", err)
	}
	if result.PaymentStatus != domain.PaymentStatusCompleted {
		t.Fatalf("expected completed, got %+v", result)
	}
}

func TestReconcileWithoutReferrerSkipsBonusAndCommission(t *testing.T) {
	repo := newRepoStub()
	student := repo.addStudent("ada@example.com", nil)
	course := repo.addCourse(10000000)
	engine := newTestEngine(repo, nil)

	result, err := deliver(t, engine, chargeBody(t, domain.ChargeSuccessEvent, "ref-1", "ada@example.com", 10000000, course.ID))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.BonusCredited || student.Balance != 0 {
		t.Fatalf("expected no bonus without a referrer")
	}
	if len(repo.commissions) != 0 {
		t.Fatalf("expected no commission without a referrer")
	}
}

func TestReconcileValidation(t *testing.T) {
	repo := newRepoStub()
	repo.addStudent("ada@example.com", nil)
	course := repo.addCourse(10000000)
	engine := newTestEngine(repo, nil)

	tests := []struct {
		name    string
		data    domain.PaymentWebhookData
		wantErr error
	}{
		{
			name:    "missing reference",
			data:    domain.PaymentWebhookData{Amount: 100, Customer: domain.PaymentCustomer{Email: "ada@example.com"}},
			wantErr: ErrValidation,
		},
		{
			name:    "missing course id",
			data:    domain.PaymentWebhookData{Reference: "r", Amount: 100, Customer: domain.PaymentCustomer{Email: "ada@example.com"}},
			wantErr: ErrValidation,
		},
		{
			name: "unknown student",
			data: domain.PaymentWebhookData{
				Reference: "r", Amount: 100,
				Customer: domain.PaymentCustomer{Email: "nobody@example.com"},
				Metadata: json.RawMessage(`{"courseId":"` + course.ID.String() + `"}`),
			},
			wantErr: ErrNotFound,
		},
		{
			name: "unknown course",
			data: domain.PaymentWebhookData{
				Reference: "r", Amount: 100,
				Customer: domain.PaymentCustomer{Email: "ada@example.com"},
				Metadata: json.RawMessage(`{"courseId":"` + uuid.NewString() + `"}`),
			},
			wantErr: ErrNotFound,
		},
		{
			name: "arbitrary amount",
			data: domain.PaymentWebhookData{
				Reference: "r", Amount: 1234,
				Customer: domain.PaymentCustomer{Email: "ada@example.com"},
				Metadata: json.RawMessage(`{"courseId":"` + course.ID.String() + `"}`),
			},
			wantErr: ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Reconcile(context.Background(), tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}
