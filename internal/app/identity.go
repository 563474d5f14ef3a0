/**
 * @description
 * Sign-up, email verification, login and password recovery for students and
 * marketers. A student signing up with a marketer code is bound to that
 * marketer permanently; the binding drives the referral bonus and commissions.
 *
 * @dependencies
 * - golang.org/x/crypto/bcrypt (via credentials.go): password hashing.
 */

package app

import (
	"context"
	"crypto/subtle"
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

const marketerCodeAttempts = 5

type SignUpInput struct {
	FirstName       string
	LastName        string
	Email           string
	Password        string
	ConfirmPassword string
	PhoneNumber     string
	Location        string
	UserType        string
	ReferrerCode    string
}

type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   *domain.Account `json:"account"`
}

type IdentityConfig struct {
	OTPTTL time.Duration
}

type IdentityService struct {
	repo   store.Repository
	tokens *TokenIssuer
	email  EmailSender
	otpTTL time.Duration
	now    func() time.Time
}

func NewIdentityService(repo store.Repository, tokens *TokenIssuer, email EmailSender, cfg IdentityConfig) *IdentityService {
	if cfg.OTPTTL <= 0 {
		cfg.OTPTTL = 10 * time.Minute
	}
	return &IdentityService{repo: repo, tokens: tokens, email: email, otpTTL: cfg.OTPTTL, now: time.Now}
}

// SignUp registers an unverified account and emails a verification code.
func (s *IdentityService) SignUp(ctx context.Context, in SignUpInput) (*domain.Account, error) {
	kind, ok := domain.ParseAccountKind(in.UserType)
	if !ok {
		return nil, validationError("userType must be student or marketer")
	}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, validationError("first name, last name and email are required")
	}
	if err := checkNewPassword(in.Password, in.ConfirmPassword); err != nil {
		return nil, err
	}

	taken, err := s.repo.EmailRegistered(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, newError(ErrConflict, "email already registered")
	}

	hash, err := hashSecret(in.Password)
	if err != nil {
		return nil, err
	}
	base := domain.Account{
		Ref:          domain.AccountRef{Kind: kind},
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Email:        email,
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		Location:     strings.TrimSpace(in.Location),
		PasswordHash: hash,
	}

	var account *domain.Account
	switch kind {
	case domain.AccountKindStudent:
		account, err = s.createStudent(ctx, base, in.ReferrerCode)
	case domain.AccountKindMarketer:
		account, err = s.createMarketer(ctx, base)
	}
	if err != nil {
		return nil, err
	}

	if err := s.issueCode(ctx, account, domain.TokenPurposeEmailVerification); err != nil {
		log.Printf("level=warn component=identity msg=\"verification code not delivered at signup\" account=%s err=%v", account.Ref, err)
	}
	log.Printf("level=info component=identity msg=\"account created\" account=%s", account.Ref)
	return account, nil
}

func (s *IdentityService) createStudent(ctx context.Context, base domain.Account, referrerCode string) (*domain.Account, error) {
	student := &domain.Student{Account: base}
	if code := strings.TrimSpace(referrerCode); code != "" {
		marketer, err := s.repo.FindMarketerByCode(ctx, code)
		if err != nil {
			if errors.Is(err, store.ErrMarketerNotFound) {
				return nil, validationError("invalid referrer code")
			}
			return nil, fmt.Errorf("find referrer: %w", err)
		}
		referrerID := marketer.Ref.ID
		student.ReferrerID = &referrerID
	}
	if err := s.repo.CreateStudent(ctx, student); err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, newError(ErrConflict, "email already registered")
		}
		return nil, fmt.Errorf("create student: %w", err)
	}
	return &student.Account, nil
}

func (s *IdentityService) createMarketer(ctx context.Context, base domain.Account) (*domain.Account, error) {
	for attempt := 0; attempt < marketerCodeAttempts; attempt++ {
		code, err := numericCode(marketerCodeLen)
		if err != nil {
			return nil, err
		}
		marketer := &domain.Marketer{Account: base, MarketerCode: code}
		err = s.repo.CreateMarketer(ctx, marketer)
		switch {
		case err == nil:
			return &marketer.Account, nil
		case errors.Is(err, store.ErrMarketerCodeTaken):
			continue
		case errors.Is(err, store.ErrEmailTaken):
			return nil, newError(ErrConflict, "email already registered")
		default:
			return nil, fmt.Errorf("create marketer: %w", err)
		}
	}
	return nil, errors.New("could not allocate a unique marketer code")
}

func (s *IdentityService) VerifyEmail(ctx context.Context, userType, email, code string) error {
	account, err := s.lookup(ctx, userType, email)
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return nil
	}
	if err := s.consumeCode(ctx, account.Ref, domain.TokenPurposeEmailVerification, code); err != nil {
		return err
	}
	if err := s.repo.MarkEmailVerified(ctx, account.Ref); err != nil {
		return fmt.Errorf("mark email verified: %w", err)
	}
	return nil
}

func (s *IdentityService) ResendVerification(ctx context.Context, userType, email string) error {
	account, err := s.lookup(ctx, userType, email)
	if err != nil {
		return err
	}
	if account.EmailVerified {
		return validationError("email is already verified")
	}
	if err := s.issueCode(ctx, account, domain.TokenPurposeEmailVerification); err != nil {
		return wrapError(ErrExternalService, err, "could not send verification email")
	}
	return nil
}

// Login issues a bearer token. Unverified accounts get a fresh code instead.
func (s *IdentityService) Login(ctx context.Context, userType, email, password string) (*LoginResult, error) {
	kind, ok := domain.ParseAccountKind(userType)
	if !ok {
		return nil, validationError("userType must be student or marketer")
	}
	account, err := s.repo.FindAccountByEmail(ctx, kind, email)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, newError(ErrUnauthorized, "invalid email or password")
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	if !secretMatches(account.PasswordHash, password) {
		return nil, newError(ErrUnauthorized, "invalid email or password")
	}
	if !account.EmailVerified {
		if err := s.issueCode(ctx, account, domain.TokenPurposeEmailVerification); err != nil {
			log.Printf("level=warn component=identity msg=\"verification code not delivered at login\" account=%s err=%v", account.Ref, err)
		}
		return nil, newError(ErrForbidden, "email not verified, a new verification code has been sent")
	}

	token, expiresAt, err := s.tokens.Issue(account)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: account}, nil
}

func (s *IdentityService) ForgotPassword(ctx context.Context, userType, email string) error {
	account, err := s.lookup(ctx, userType, email)
	if err != nil {
		return err
	}
	if err := s.issueCode(ctx, account, domain.TokenPurposePasswordReset); err != nil {
		return wrapError(ErrExternalService, err, "could not send password reset email")
	}
	return nil
}

// VerifyPasswordResetCode checks a reset code without consuming it.
func (s *IdentityService) VerifyPasswordResetCode(ctx context.Context, userType, email, code string) error {
	account, err := s.lookup(ctx, userType, email)
	if err != nil {
		return err
	}
	_, err = s.checkCode(ctx, account.Ref, domain.TokenPurposePasswordReset, code)
	return err
}

func (s *IdentityService) ResetPassword(ctx context.Context, userType, email, code, password, confirm string) error {
	account, err := s.lookup(ctx, userType, email)
	if err != nil {
		return err
	}
	if err := checkNewPassword(password, confirm); err != nil {
		return err
	}
	if err := s.consumeCode(ctx, account.Ref, domain.TokenPurposePasswordReset, code); err != nil {
		return err
	}
	hash, err := hashSecret(password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, account.Ref, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *IdentityService) ChangePassword(ctx context.Context, ref domain.AccountRef, oldPassword, newPassword, confirm string) error {
	account, err := s.repo.FindAccount(ctx, ref)
	if err != nil {
		return mapAccountLookupError(err)
	}
	if !secretMatches(account.PasswordHash, oldPassword) {
		return newError(ErrUnauthorized, "current password is incorrect")
	}
	if err := checkNewPassword(newPassword, confirm); err != nil {
		return err
	}
	hash, err := hashSecret(newPassword)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePasswordHash(ctx, ref, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *IdentityService) lookup(ctx context.Context, userType, email string) (*domain.Account, error) {
	kind, ok := domain.ParseAccountKind(userType)
	if !ok {
		return nil, validationError("userType must be student or marketer")
	}
	account, err := s.repo.FindAccountByEmail(ctx, kind, email)
	if err != nil {
		return nil, mapAccountLookupError(err)
	}
	return account, nil
}

// issueCode stores a fresh code and emails it.
func (s *IdentityService) issueCode(ctx context.Context, account *domain.Account, purpose domain.TokenPurpose) error {
	code, err := numericCode(otpLength)
	if err != nil {
		return err
	}
	token := domain.OneTimeToken{
		Account:   account.Ref,
		Purpose:   purpose,
		Token:     code,
		ExpiresAt: s.now().Add(s.otpTTL),
	}
	if err := s.repo.SaveToken(ctx, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	if s.email == nil {
		return errors.New("no email sender configured")
	}

	template, subject := mailer.TemplateVerifyEmail, "Verify your email"
	if purpose == domain.TokenPurposePasswordReset {
		template, subject = mailer.TemplatePasswordReset, "Reset your password"
	}
	return s.email.SendEmail(ctx, domain.EmailMessage{
		To:       account.Email,
		Subject:  subject,
		Template: template,
		Data: map[string]string{
			"Name":      account.FirstName,
			"Code":      code,
			"ExpiresIn": strconv.Itoa(int(s.otpTTL / time.Minute)),
		},
	})
}

func (s *IdentityService) checkCode(ctx context.Context, ref domain.AccountRef, purpose domain.TokenPurpose, code string) (*domain.OneTimeToken, error) {
	return checkOneTimeToken(ctx, s.repo, ref, purpose, code, s.now())
}

func (s *IdentityService) consumeCode(ctx context.Context, ref domain.AccountRef, purpose domain.TokenPurpose, code string) error {
	if _, err := s.checkCode(ctx, ref, purpose, code); err != nil {
		return err
	}
	if err := s.repo.DeleteToken(ctx, ref, purpose); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

type tokenReader interface {
	FindToken(ctx context.Context, ref domain.AccountRef, purpose domain.TokenPurpose) (*domain.OneTimeToken, error)
}

func checkOneTimeToken(ctx context.Context, repo tokenReader, ref domain.AccountRef, purpose domain.TokenPurpose, code string, now time.Time) (*domain.OneTimeToken, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, validationError("code is required")
	}
	token, err := repo.FindToken(ctx, ref, purpose)
	if err != nil {
		if errors.Is(err, store.ErrTokenNotFound) {
			return nil, validationError("invalid or expired code")
		}
		return nil, fmt.Errorf("find token: %w", err)
	}
	if token.Expired(now) {
		return nil, validationError("invalid or expired code")
	}
	if subtle.ConstantTimeCompare([]byte(token.Token), []byte(code)) != 1 {
		return nil, validationError("invalid or expired code")
	}
	return token, nil
}

func checkNewPassword(password, confirm string) error {
	if len(password) < minPasswordLength {
		return validationError("password must be at least %d characters", minPasswordLength)
	}
	if password != confirm {
		return validationError("passwords do not match")
	}
	return nil
}
