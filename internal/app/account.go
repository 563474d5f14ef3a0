package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/Zymoclassic/eduplat/internal/store"
	"github.com/google/uuid"
)

type AccountService struct {
	repo     store.Repository
	notifier Notifier
	now      func() time.Time
}

func NewAccountService(repo store.Repository, notifier Notifier) *AccountService {
	return &AccountService{repo: repo, notifier: notifier, now: time.Now}
}

func (s *AccountService) StudentProfile(ctx context.Context, studentID uuid.UUID) (*domain.Student, error) {
	student, err := s.repo.FindStudentByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, store.ErrStudentNotFound) {
			return nil, notFoundError("student not found")
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return student, nil
}

func (s *AccountService) MarketerProfile(ctx context.Context, marketerID uuid.UUID) (*domain.Marketer, error) {
	marketer, err := s.repo.FindMarketerByID(ctx, marketerID)
	if err != nil {
		if errors.Is(err, store.ErrMarketerNotFound) {
			return nil, notFoundError("marketer not found")
		}
		return nil, fmt.Errorf("find marketer: %w", err)
	}
	return marketer, nil
}

func (s *AccountService) UpdateStudentProfile(ctx context.Context, studentID uuid.UUID, update domain.ProfileUpdate) (*domain.Student, error) {
	if err := s.updateProfile(ctx, domain.AccountRef{Kind: domain.AccountKindStudent, ID: studentID}, update); err != nil {
		return nil, err
	}
	return s.StudentProfile(ctx, studentID)
}

func (s *AccountService) UpdateMarketerProfile(ctx context.Context, marketerID uuid.UUID, update domain.ProfileUpdate) (*domain.Marketer, error) {
	if err := s.updateProfile(ctx, domain.AccountRef{Kind: domain.AccountKindMarketer, ID: marketerID}, update); err != nil {
		return nil, err
	}
	return s.MarketerProfile(ctx, marketerID)
}

// updateProfile trims every provided field. Names may not be blanked; phone
// number and location may be cleared.
func (s *AccountService) updateProfile(ctx context.Context, ref domain.AccountRef, update domain.ProfileUpdate) error {
	if update.Empty() {
		return validationError("provide at least one of firstName, lastName, phoneNumber or location")
	}
	for _, field := range []*string{update.FirstName, update.LastName, update.PhoneNumber, update.Location} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}
	if update.FirstName != nil && *update.FirstName == "" {
		return validationError("firstName cannot be blank")
	}
	if update.LastName != nil && *update.LastName == "" {
		return validationError("lastName cannot be blank")
	}

	if err := s.repo.UpdateProfile(ctx, ref, update); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return notFoundError("account not found")
		}
		return fmt.Errorf("update profile: %w", err)
	}
	log.Printf("level=info component=accounts msg=\"profile updated\" account=%s", ref)
	return nil
}

func (s *AccountService) ListStudents(ctx context.Context) ([]domain.Student, error) {
	students, err := s.repo.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	if students == nil {
		students = []domain.Student{}
	}
	return students, nil
}

func (s *AccountService) ListMarketers(ctx context.Context) ([]domain.Marketer, error) {
	marketers, err := s.repo.ListMarketers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list marketers: %w", err)
	}
	if marketers == nil {
		marketers = []domain.Marketer{}
	}
	return marketers, nil
}

// SendNotificationInput is an admin-authored in-app message.
type SendNotificationInput struct {
	Recipient domain.AccountRef
	Title     string
	Message   string
	Type      string
}

// SendNotification delivers an admin message to one account through the
// notifier, which stores it and publishes it for real-time fan-out.
func (s *AccountService) SendNotification(ctx context.Context, in SendNotificationInput) error {
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)
	if title == "" || message == "" {
		return validationError("title and message are required")
	}
	kind := domain.NotificationType(strings.ToLower(strings.TrimSpace(in.Type)))
	switch kind {
	case "":
		kind = domain.NotificationTypeInfo
	case domain.NotificationTypeInfo, domain.NotificationTypeAlert, domain.NotificationTypeMessage:
	default:
		return validationError("type must be info, alert or message")
	}

	if _, err := s.repo.FindAccount(ctx, in.Recipient); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) || errors.Is(err, store.ErrUnknownAccountKind) {
			return notFoundError("recipient not found")
		}
		return fmt.Errorf("find recipient: %w", err)
	}
	if s.notifier == nil {
		return fmt.Errorf("send notification: no notifier configured")
	}

	s.notifier.Notify(ctx, Notice{
		Recipient: in.Recipient,
		Title:     title,
		Message:   message,
		Type:      kind,
	})
	log.Printf("level=info component=accounts msg=\"admin notification sent\" recipient=%s type=%s", in.Recipient, kind)
	return nil
}

// Dashboard lists a marketer's referred students with their course payments
// and the commission trail.
func (s *AccountService) Dashboard(ctx context.Context, marketerID uuid.UUID) (*domain.MarketerDashboard, error) {
	marketer, err := s.repo.FindMarketerByID(ctx, marketerID)
	if err != nil {
		if errors.Is(err, store.ErrMarketerNotFound) {
			return nil, notFoundError("marketer not found")
		}
		return nil, fmt.Errorf("find marketer: %w", err)
	}
	students, err := s.repo.ListReferredStudents(ctx, marketerID)
	if err != nil {
		return nil, fmt.Errorf("list referred students: %w", err)
	}
	commissions, err := s.repo.ListCommissions(ctx, marketerID)
	if err != nil {
		return nil, fmt.Errorf("list commissions: %w", err)
	}
	if students == nil {
		students = []domain.ReferredStudent{}
	}
	if commissions == nil {
		commissions = []domain.Commission{}
	}
	return &domain.MarketerDashboard{
		Marketer:         *marketer,
		ReferredStudents: students,
		Commissions:      commissions,
	}, nil
}

func (s *AccountService) Notifications(ctx context.Context, ref domain.AccountRef, limit int) ([]domain.Notification, error) {
	items, err := s.repo.ListNotifications(ctx, ref, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return items, nil
}

func (s *AccountService) MarkNotificationRead(ctx context.Context, ref domain.AccountRef, notificationID uuid.UUID) error {
	if err := s.repo.MarkNotificationRead(ctx, ref, notificationID); err != nil {
		if errors.Is(err, store.ErrNotificationNotFound) {
			return notFoundError("notification not found")
		}
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

func (s *AccountService) MarkAllNotificationsRead(ctx context.Context, ref domain.AccountRef) (int64, error) {
	n, err := s.repo.MarkAllNotificationsRead(ctx, ref)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

// PurgeExpiredTokens removes OTP and reset codes past their expiry.
func (s *AccountService) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredTokens(ctx, s.now())
}
