package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/Zymoclassic/eduplat/internal/store"
	"github.com/Zymoclassic/eduplat/pkg/mailer"
)

type WalletConfig struct {
	PINResetTTL          time.Duration
	PINAttemptsPerMinute int
}

// WalletBalance is what an account sees on its wallet screen.
type WalletBalance struct {
	Balance        int64               `json:"balance"`
	TotalWithdrawn int64               `json:"total_withdrawn"`
	BankDetails    *domain.BankDetails `json:"bank_details,omitempty"`
}

type WalletService struct {
	repo        store.Repository
	email       EmailSender
	pinResetTTL time.Duration
	pinGuard    pinAttemptGuard
	now         func() time.Time
}

func NewWalletService(repo store.Repository, email EmailSender, cfg WalletConfig) *WalletService {
	if cfg.PINResetTTL <= 0 {
		cfg.PINResetTTL = 15 * time.Minute
	}
	return &WalletService{
		repo:        repo,
		email:       email,
		pinResetTTL: cfg.PINResetTTL,
		pinGuard:    pinAttemptGuard{perMin: cfg.PINAttemptsPerMinute},
		now:         time.Now,
	}
}

// SetRateLimiter enables distributed PIN attempt throttling for ChangePIN.
func (s *WalletService) SetRateLimiter(limiter RateLimiter) {
	s.pinGuard.limiter = limiter
}

// Balance is only visible once the wallet PIN has been set.
func (s *WalletService) Balance(ctx context.Context, ref domain.AccountRef) (*WalletBalance, error) {
	account, err := s.repo.FindAccount(ctx, ref)
	if err != nil {
		return nil, mapAccountLookupError(err)
	}
	if !account.HasPIN() {
		return nil, newError(ErrForbidden, "set a wallet PIN to view your balance")
	}
	return &WalletBalance{
		Balance:        account.Balance,
		TotalWithdrawn: account.TotalWithdrawn,
		BankDetails:    account.BankDetails,
	}, nil
}

func (s *WalletService) SetPIN(ctx context.Context, ref domain.AccountRef, pin, confirm string) error {
	if err := checkNewPIN(pin, confirm); err != nil {
		return err
	}
	hash, err := hashSecret(pin)
	if err != nil {
		return err
	}
	if err := s.repo.SetInitialPINHash(ctx, ref, hash); err != nil {
		switch {
		case errors.Is(err, store.ErrPINAlreadySet):
			return newError(ErrConflict, "PIN already set, use change PIN instead")
		case errors.Is(err, store.ErrAccountNotFound):
			return notFoundError("account not found")
		}
		return fmt.Errorf("set pin: %w", err)
	}
	log.Printf("level=info component=wallet msg=\"pin set\" account=%s", ref)
	return nil
}

func (s *WalletService) ChangePIN(ctx context.Context, ref domain.AccountRef, oldPIN, newPIN, confirm string) error {
	account, err := s.repo.FindAccount(ctx, ref)
	if err != nil {
		return mapAccountLookupError(err)
	}
	if !account.HasPIN() {
		return newError(ErrForbidden, "no PIN set yet")
	}
	if err := s.pinGuard.check(ctx, ref); err != nil {
		return err
	}
	if !secretMatches(*account.PINHash, oldPIN) {
		return newError(ErrUnauthorized, "old PIN is incorrect")
	}
	if err := checkNewPIN(newPIN, confirm); err != nil {
		return err
	}
	return s.storePIN(ctx, ref, newPIN)
}

// RequestPINReset emails a reset code. The code is stored only once the
// email has been handed off.
func (s *WalletService) RequestPINReset(ctx context.Context, ref domain.AccountRef) error {
	account, err := s.repo.FindAccount(ctx, ref)
	if err != nil {
		return mapAccountLookupError(err)
	}
	if s.email == nil {
		return newError(ErrExternalService, "email delivery is not available")
	}
	code, err := numericCode(otpLength)
	if err != nil {
		return err
	}

	err = s.email.SendEmail(ctx, domain.EmailMessage{
		To:       account.Email,
		Subject:  "Reset your wallet PIN",
		Template: mailer.TemplatePINReset,
		Data: map[string]string{
			"Name":      account.FirstName,
			"Code":      code,
			"ExpiresIn": strconv.Itoa(int(s.pinResetTTL / time.Minute)),
		},
	})
	if err != nil {
		return wrapError(ErrExternalService, err, "could not send PIN reset email")
	}

	token := domain.OneTimeToken{
		Account:   ref,
		Purpose:   domain.TokenPurposePINReset,
		Token:     code,
		ExpiresAt: s.now().Add(s.pinResetTTL),
	}
	if err := s.repo.SaveToken(ctx, token); err != nil {
		return fmt.Errorf("save pin reset token: %w", err)
	}
	return nil
}

func (s *WalletService) VerifyPINResetToken(ctx context.Context, ref domain.AccountRef, code string) error {
	_, err := checkOneTimeToken(ctx, s.repo, ref, domain.TokenPurposePINReset, code, s.now())
	return err
}

func (s *WalletService) ResetPIN(ctx context.Context, ref domain.AccountRef, code, newPIN, confirm string) error {
	if err := checkNewPIN(newPIN, confirm); err != nil {
		return err
	}
	if _, err := checkOneTimeToken(ctx, s.repo, ref, domain.TokenPurposePINReset, code, s.now()); err != nil {
		return err
	}
	if err := s.storePIN(ctx, ref, newPIN); err != nil {
		return err
	}
	if err := s.repo.DeleteToken(ctx, ref, domain.TokenPurposePINReset); err != nil {
		log.Printf("level=warn component=wallet msg=\"failed to clear pin reset token\" account=%s err=%v", ref, err)
	}
	return nil
}

func (s *WalletService) ListBanks() []string {
	return domain.SupportedBanks()
}

func (s *WalletService) SaveBankDetails(ctx context.Context, ref domain.AccountRef, details domain.BankDetails) (*domain.BankDetails, error) {
	details.AccountName = strings.TrimSpace(details.AccountName)
	details.AccountNumber = strings.TrimSpace(details.AccountNumber)
	details.BankName = strings.TrimSpace(details.BankName)

	if details.AccountName == "" {
		return nil, validationError("account name is required")
	}
	if !domain.ValidAccountNumber(details.AccountNumber) {
		return nil, validationError("account number must be %d digits", domain.AccountNumberLength)
	}
	if !domain.IsSupportedBank(details.BankName) {
		return nil, validationError("unsupported bank %q", details.BankName)
	}
	if err := s.repo.UpdateBankDetails(ctx, ref, details); err != nil {
		return nil, mapAccountLookupError(err)
	}
	return &details, nil
}

func (s *WalletService) storePIN(ctx context.Context, ref domain.AccountRef, pin string) error {
	hash, err := hashSecret(pin)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePINHash(ctx, ref, hash); err != nil {
		return mapAccountLookupError(err)
	}
	return nil
}

func checkNewPIN(pin, confirm string) error {
	if !validPIN(pin) {
		return validationError("PIN must be exactly %d digits", pinLength)
	}
	if pin != confirm {
		return validationError("PINs do not match")
	}
	return nil
}
