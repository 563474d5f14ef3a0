/**
 * @description
 * Withdrawal orchestration over the domain state machine:
 *   request (no debit) -> verify with PIN (debit) -> admin approve | reject.
 * Status guards and balance changes are enforced again inside the store
 * transaction, so concurrent verify or decide calls let exactly one through.
 */

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

type WithdrawalConfig struct {
	MinAmountKobo        int64
	Expiry               time.Duration
	PINAttemptsPerMinute int
}

type WithdrawalService struct {
	repo     store.Repository
	notifier Notifier
	cfg      WithdrawalConfig
	pinGuard pinAttemptGuard
	now      func() time.Time
}

func NewWithdrawalService(repo store.Repository, notifier Notifier, cfg WithdrawalConfig) *WithdrawalService {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 24 * time.Hour
	}
	return &WithdrawalService{
		repo:     repo,
		notifier: notifier,
		cfg:      cfg,
		pinGuard: pinAttemptGuard{perMin: cfg.PINAttemptsPerMinute},
		now:      time.Now,
	}
}

// SetRateLimiter enables distributed PIN attempt throttling.
func (s *WithdrawalService) SetRateLimiter(limiter RateLimiter) {
	s.pinGuard.limiter = limiter
}

// Request records the intent to withdraw. The balance is checked but not debited.
func (s *WithdrawalService) Request(ctx context.Context, owner domain.AccountRef, amount int64) (*domain.Withdrawal, error) {
	if amount < s.cfg.MinAmountKobo {
		return nil, validationError("cannot withdraw less than %s", FormatNaira(s.cfg.MinAmountKobo))
	}

	account, err := s.repo.FindAccount(ctx, owner)
	if err != nil {
		return nil, mapAccountLookupError(err)
	}
	if !account.BankDetails.Complete() {
		return nil, validationError("bank details are missing, update them before requesting a withdrawal")
	}
	if account.Balance < amount {
		return nil, validationError("insufficient balance")
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.Expiry)
	withdrawal := &domain.Withdrawal{
		ID:            uuid.New(),
		Account:       owner,
		Amount:        amount,
		Status:        domain.WithdrawalStatusPendingVerification,
		Reference:     newWithdrawalReference(now),
		RequestedAt:   now,
		ExpiresAt:     &expiresAt,
		BankName:      account.BankDetails.BankName,
		AccountNumber: account.BankDetails.AccountNumber,
		AccountName:   account.BankDetails.AccountName,
	}
	if err := s.repo.CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, fmt.Errorf("create withdrawal: %w", err)
	}

	log.Printf("level=info component=withdrawal msg=\"withdrawal requested\" account=%s reference=%s amount=%d", owner, withdrawal.Reference, amount)
	return withdrawal, nil
}

// Verify checks the PIN and commits the funds.
func (s *WithdrawalService) Verify(ctx context.Context, owner domain.AccountRef, reference, pin string) (*domain.Withdrawal, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" || pin == "" {
		return nil, validationError("reference and PIN are required")
	}

	withdrawal, err := s.repo.FindWithdrawalByReference(ctx, owner, reference)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrWithdrawalNotFound):
			return nil, notFoundError("withdrawal request not found")
		case errors.Is(err, store.ErrWithdrawalExpired):
			return nil, validationError("this withdrawal request has expired")
		}
		return nil, fmt.Errorf("find withdrawal: %w", err)
	}

	now := s.now()
	if withdrawal.Expired(now) {
		if err := s.repo.DeleteWithdrawal(ctx, withdrawal.ID); err != nil && !errors.Is(err, store.ErrWithdrawalNotFound) {
			log.Printf("level=warn component=withdrawal msg=\"failed to delete expired withdrawal\" reference=%s err=%v", reference, err)
		}
		return nil, validationError("this withdrawal request has expired")
	}
	if withdrawal.Status != domain.WithdrawalStatusPendingVerification {
		return nil, newError(ErrConflict, "this withdrawal has already been verified")
	}

	account, err := s.repo.FindAccount(ctx, owner)
	if err != nil {
		return nil, mapAccountLookupError(err)
	}
	if !account.HasPIN() {
		return nil, newError(ErrForbidden, "set a wallet PIN before verifying withdrawals")
	}
	if err := s.pinGuard.check(ctx, owner); err != nil {
		return nil, err
	}
	if !secretMatches(*account.PINHash, pin) {
		return nil, newError(ErrUnauthorized, "invalid PIN")
	}

	verified, err := s.repo.VerifyWithdrawal(ctx, withdrawal.ID, now)
	if err != nil {
		return nil, mapWithdrawalTransitionError(err)
	}

	log.Printf("level=info component=withdrawal msg=\"withdrawal verified\" account=%s reference=%s amount=%d", owner, reference, verified.Amount)

	if s.notifier != nil {
		s.notifier.Notify(ctx, Notice{
			Recipient: owner,
			Title:     "Withdrawal initiated",
			Message: fmt.Sprintf("Hello %s, you initiated a withdrawal of %s. Your payment will arrive shortly.",
				account.FirstName, FormatNaira(verified.Amount)),
			Type:     domain.NotificationTypeMessage,
			Metadata: map[string]string{"reference": verified.Reference},
		})
	}
	return verified, nil
}

// Decide applies an admin decision ("approved" or "rejected") to a pending withdrawal.
func (s *WithdrawalService) Decide(ctx context.Context, withdrawalID uuid.UUID, status string) (*domain.Withdrawal, error) {
	action, ok := domain.ParseWithdrawalDecision(status)
	if !ok {
		return nil, validationError("invalid status, expected approved or rejected")
	}

	decided, err := s.repo.DecideWithdrawal(ctx, withdrawalID, action)
	if err != nil {
		return nil, mapWithdrawalTransitionError(err)
	}

	log.Printf("level=info component=withdrawal msg=\"withdrawal decided\" withdrawal_id=%s status=%s amount=%d", withdrawalID, decided.Status, decided.Amount)

	if s.notifier != nil {
		name := ""
		if account, err := s.repo.FindAccount(ctx, decided.Account); err == nil {
			name = account.FirstName
		}
		s.notifier.Notify(ctx, Notice{
			Recipient: decided.Account,
			Title:     "Withdrawal " + string(decided.Status),
			Message: strings.TrimSpace(fmt.Sprintf("Hello %s, your withdrawal request of %s has been %s.",
				name, FormatNaira(decided.Amount), decided.Status)),
			Type:     domain.NotificationTypeMessage,
			Metadata: map[string]string{"reference": decided.Reference},
		})
	}
	return decided, nil
}

func (s *WithdrawalService) History(ctx context.Context, owner domain.AccountRef) ([]domain.WithdrawalHistoryEntry, error) {
	entries, err := s.repo.ListWithdrawalHistory(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list withdrawal history: %w", err)
	}
	return entries, nil
}

func (s *WithdrawalService) AdminList(ctx context.Context, status string) ([]domain.AdminWithdrawal, error) {
	var filter *domain.WithdrawalStatus
	if trimmed := strings.TrimSpace(status); trimmed != "" {
		value := domain.WithdrawalStatus(trimmed)
		switch value {
		case domain.WithdrawalStatusPendingVerification, domain.WithdrawalStatusPending,
			domain.WithdrawalStatusApproved, domain.WithdrawalStatusRejected:
			filter = &value
		default:
			return nil, validationError("unknown withdrawal status %q", trimmed)
		}
	}
	items, err := s.repo.ListAdminWithdrawals(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	return items, nil
}

// ExpireStale deletes unverified requests past their expiry.
func (s *WithdrawalService) ExpireStale(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredWithdrawals(ctx, s.now())
}

func newWithdrawalReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("WD-%d-%s", now.UnixMilli(), suffix)
}

func mapAccountLookupError(err error) error {
	if errors.Is(err, store.ErrAccountNotFound) {
		return notFoundError("account not found")
	}
	return fmt.Errorf("find account: %w", err)
}

func mapWithdrawalTransitionError(err error) error {
	switch {
	case errors.Is(err, store.ErrWithdrawalNotFound):
		return notFoundError("withdrawal not found")
	case errors.Is(err, store.ErrWithdrawalExpired):
		return validationError("this withdrawal request has expired")
	case errors.Is(err, store.ErrInsufficientFunds):
		return validationError("insufficient balance")
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, store.ErrStaleTransition):
		return wrapError(ErrConflict, err, "withdrawal already processed")
	case errors.Is(err, store.ErrAccountNotFound):
		return notFoundError("account not found")
	}
	return fmt.Errorf("withdrawal transition: %w", err)
}
