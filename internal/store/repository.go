/**
 * @description
 * Repository contracts for the enrollment platform. Account-generic operations
 * are grouped behind AccountStore so that withdrawal and wallet flows can act on
 * either a student or a marketer through a domain.AccountRef without knowing
 * which table backs it.
 *
 * @dependencies
 * - github.com/google/uuid: identifiers.
 * - internal/domain: entity models.
 */

package store

import (
	"context"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/google/uuid"
)

// AccountStore is the capability shared by both account variants.
type AccountStore interface {
	FindAccount(ctx context.Context, ref domain.AccountRef) (*domain.Account, error)
	FindAccountByEmail(ctx context.Context, kind domain.AccountKind, email string) (*domain.Account, error)
	CreditBalance(ctx context.Context, ref domain.AccountRef, amount int64) error
	DebitBalance(ctx context.Context, ref domain.AccountRef, amount int64) error
	MarkEmailVerified(ctx context.Context, ref domain.AccountRef) error
	UpdatePasswordHash(ctx context.Context, ref domain.AccountRef, hash string) error
	SetInitialPINHash(ctx context.Context, ref domain.AccountRef, hash string) error
	UpdatePINHash(ctx context.Context, ref domain.AccountRef, hash string) error
	UpdateBankDetails(ctx context.Context, ref domain.AccountRef, details domain.BankDetails) error
	UpdateProfile(ctx context.Context, ref domain.AccountRef, update domain.ProfileUpdate) error
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	AccountStore

	// Identity
	EmailRegistered(ctx context.Context, email string) (bool, error)
	CreateStudent(ctx context.Context, student *domain.Student) error
	CreateMarketer(ctx context.Context, marketer *domain.Marketer) error
	FindStudentByID(ctx context.Context, studentID uuid.UUID) (*domain.Student, error)
	FindStudentByEmail(ctx context.Context, email string) (*domain.Student, error)
	FindMarketerByID(ctx context.Context, marketerID uuid.UUID) (*domain.Marketer, error)
	FindMarketerByCode(ctx context.Context, code string) (*domain.Marketer, error)
	ListStudents(ctx context.Context) ([]domain.Student, error)
	ListMarketers(ctx context.Context) ([]domain.Marketer, error)

	// One-time tokens (OTP, password reset, PIN reset)
	SaveToken(ctx context.Context, token domain.OneTimeToken) error
	FindToken(ctx context.Context, ref domain.AccountRef, purpose domain.TokenPurpose) (*domain.OneTimeToken, error)
	DeleteToken(ctx context.Context, ref domain.AccountRef, purpose domain.TokenPurpose) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	// Courses
	ListCourses(ctx context.Context, publishedOnly bool) ([]domain.Course, error)
	FindCourseByID(ctx context.Context, courseID uuid.UUID) (*domain.Course, error)
	CreateCourse(ctx context.Context, course *domain.Course) error
	UpdateCourse(ctx context.Context, courseID uuid.UUID, update domain.CourseUpdate) (*domain.Course, error)
	DeleteCourse(ctx context.Context, courseID uuid.UUID) error

	// Course payments
	HasPaymentTransaction(ctx context.Context, studentID uuid.UUID, reference string) (bool, error)
	FindCoursePayment(ctx context.Context, studentID, courseID uuid.UUID) (*domain.CoursePayment, error)
	ApplyCoursePayment(ctx context.Context, params ApplyCoursePaymentParams) (*ApplyCoursePaymentResult, error)
	ListEnrolledCourses(ctx context.Context, studentID uuid.UUID) ([]domain.EnrolledCourse, error)

	// Commissions and marketer dashboard
	RecordCommission(ctx context.Context, commission domain.Commission) (bool, error)
	ListCommissions(ctx context.Context, marketerID uuid.UUID) ([]domain.Commission, error)
	ListReferredStudents(ctx context.Context, marketerID uuid.UUID) ([]domain.ReferredStudent, error)

	// Withdrawals
	CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error
	FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error)
	FindWithdrawalByReference(ctx context.Context, owner domain.AccountRef, reference string) (*domain.Withdrawal, error)
	VerifyWithdrawal(ctx context.Context, withdrawalID uuid.UUID, now time.Time) (*domain.Withdrawal, error)
	DecideWithdrawal(ctx context.Context, withdrawalID uuid.UUID, action domain.WithdrawalAction) (*domain.Withdrawal, error)
	DeleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID) error
	DeleteExpiredWithdrawals(ctx context.Context, now time.Time) (int64, error)
	ListWithdrawalHistory(ctx context.Context, ref domain.AccountRef) ([]domain.WithdrawalHistoryEntry, error)
	ListAdminWithdrawals(ctx context.Context, status *domain.WithdrawalStatus) ([]domain.AdminWithdrawal, error)

	// In-app notifications
	CreateNotification(ctx context.Context, notification *domain.Notification) error
	ListNotifications(ctx context.Context, recipient domain.AccountRef, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, recipient domain.AccountRef, notificationID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, recipient domain.AccountRef) (int64, error)
}

// ApplyCoursePaymentParams carries one gateway-confirmed charge into the
// course payment ledger.
type ApplyCoursePaymentParams struct {
	StudentID        uuid.UUID
	Course           domain.Course
	Reference        string
	Amount           int64
	GatewayStatus    string
	PaymentStructure domain.PaymentStructure
	LearningMode     domain.LearningMode
	Policy           domain.PaymentPolicy
	ReferralBonus    int64
	PaidAt           time.Time
}

// ApplyCoursePaymentResult reports what a reconciled charge changed.
type ApplyCoursePaymentResult struct {
	Payment       domain.CoursePayment
	Outcome       domain.ChargeOutcome
	ReferrerID    *uuid.UUID
	BonusCredited bool
	BonusAmount   int64
}
