/**
 * @description
 * Checkout against the payment gateway. Initialize only decides the amount and
 * hands the student to the hosted page; ledger changes happen exclusively in
 * the webhook reconciliation path.
 *
 * @dependencies
 * - pkg/paystackclient: gateway HTTP client.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/Zymoclassic/eduplat/internal/store"
	"github.com/Zymoclassic/eduplat/pkg/paystackclient"
	"github.com/google/uuid"
)

// PaymentGateway is the subset of the gateway client used at checkout.
type PaymentGateway interface {
	InitializeTransaction(ctx context.Context, payload paystackclient.InitializeRequest) (*paystackclient.InitializeResponse, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystackclient.VerifyResponse, error)
}

type InitializePaymentInput struct {
	CourseID         uuid.UUID
	PaymentStructure string
	LearningMode     string
}

type CheckoutSession struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code,omitempty"`
	Reference        string `json:"reference"`
	Amount           int64  `json:"amount"`
}

type PaymentVerification struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	PaidAt    string `json:"paid_at,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

type PaymentConfig struct {
	PartialPaymentPercent int64
	CallbackURL           string
}

type PaymentService struct {
	repo        store.Repository
	gateway     PaymentGateway
	policy      domain.PaymentPolicy
	callbackURL string
}

func NewPaymentService(repo store.Repository, gateway PaymentGateway, cfg PaymentConfig) *PaymentService {
	return &PaymentService{
		repo:        repo,
		gateway:     gateway,
		policy:      domain.PaymentPolicy{PartialPercent: float64(cfg.PartialPaymentPercent)},
		callbackURL: cfg.CallbackURL,
	}
}

// Initialize starts a checkout for the next installment of a course.
func (s *PaymentService) Initialize(ctx context.Context, studentID uuid.UUID, in InitializePaymentInput) (*CheckoutSession, error) {
	structure, ok := domain.ParsePaymentStructure(in.PaymentStructure)
	if !ok {
		return nil, validationError("paymentStructure must be full or part")
	}
	mode, ok := domain.ParseLearningMode(in.LearningMode)
	if !ok {
		return nil, validationError("learningMode must be onsite or virtual")
	}

	student, err := s.repo.FindStudentByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, store.ErrStudentNotFound) {
			return nil, notFoundError("student not found")
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	course, err := s.repo.FindCourseByID(ctx, in.CourseID)
	if err != nil {
		return nil, mapCourseError(err)
	}

	existing, err := s.repo.FindCoursePayment(ctx, studentID, course.ID)
	if err != nil {
		if !errors.Is(err, store.ErrCoursePaymentNotFound) {
			return nil, fmt.Errorf("find course payment: %w", err)
		}
		existing = nil
	}
	if existing != nil && existing.Status == domain.PaymentStatusCompleted {
		return nil, newError(ErrConflict, "course is already fully paid")
	}

	amount := s.policy.CheckoutAmount(course.Price, existing, structure)
	if amount <= 0 {
		return nil, validationError("nothing left to pay for this course")
	}

	resp, err := s.gateway.InitializeTransaction(ctx, paystackclient.InitializeRequest{
		Email:       student.Email,
		Amount:      amount,
		CallbackURL: s.callbackURL,
		Metadata: domain.PaymentMetadata{
			CourseID:         course.ID.String(),
			PaymentStructure: string(structure),
			LearningMode:     string(mode),
		},
	})
	if err != nil {
		return nil, wrapError(ErrExternalService, err, "payment gateway is unavailable, try again later")
	}

	log.Printf("level=info component=payments msg=\"checkout initialized\" student_id=%s course_id=%s amount=%d reference=%s", studentID, course.ID, amount, resp.Data.Reference)
	return &CheckoutSession{
		AuthorizationURL: resp.Data.AuthorizationURL,
		AccessCode:       resp.Data.AccessCode,
		Reference:        resp.Data.Reference,
		Amount:           amount,
	}, nil
}

// Verify reports the gateway's view of a reference owned by the student. It
// never changes the ledger. References charged to another customer are
// reported as not found.
func (s *PaymentService) Verify(ctx context.Context, studentID uuid.UUID, reference string) (*PaymentVerification, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, validationError("reference is required")
	}
	student, err := s.repo.FindStudentByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, store.ErrStudentNotFound) {
			return nil, notFoundError("student not found")
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	resp, err := s.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		var apiErr *paystackclient.ErrorResponse
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return nil, notFoundError("transaction not found")
		}
		return nil, wrapError(ErrExternalService, err, "payment gateway is unavailable, try again later")
	}
	if !strings.EqualFold(strings.TrimSpace(resp.Data.Customer.Email), strings.TrimSpace(student.Email)) {
		log.Printf("level=warn component=payments msg=\"verify for foreign reference\" student_id=%s reference=%s", studentID, reference)
		return nil, notFoundError("transaction not found")
	}
	return &PaymentVerification{
		Reference: resp.Data.Reference,
		Status:    resp.Data.Status,
		Amount:    resp.Data.Amount,
		PaidAt:    resp.Data.PaidAt,
		Channel:   resp.Data.Channel,
	}, nil
}

func (s *PaymentService) EnrolledCourses(ctx context.Context, studentID uuid.UUID) ([]domain.EnrolledCourse, error) {
	courses, err := s.repo.ListEnrolledCourses(ctx, studentID)
	if err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return courses, nil
}
