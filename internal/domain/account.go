/**
 * @description
 * Account models shared by students and marketers. Both variants carry a
 * balance, a withdrawal accumulator, an optional payout destination and a
 * secondary PIN credential. Withdrawals and notifications point at an account
 * through AccountRef instead of guessing which table an ID belongs to.
 *
 * @dependencies
 * - github.com/google/uuid: account identifiers.
 */

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountKind discriminates the two account variants.
type AccountKind string

const (
	AccountKindStudent  AccountKind = "student"
	AccountKindMarketer AccountKind = "marketer"
)

// ParseAccountKind normalizes user input such as "Student" or " marketer ".
func ParseAccountKind(raw string) (AccountKind, bool) {
	kind := AccountKind(strings.ToLower(strings.TrimSpace(raw)))
	return kind, kind.Valid()
}

func (k AccountKind) Valid() bool {
	return k == AccountKindStudent || k == AccountKindMarketer
}

// AccountRef is a tagged reference to either a student or a marketer.
type AccountRef struct {
	Kind AccountKind `json:"kind"`
	ID   uuid.UUID   `json:"id"`
}

func (r AccountRef) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.ID)
}

// BankDetails is the payout destination used by withdrawals.
type BankDetails struct {
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
}

// Complete reports whether every payout field is present.
func (b *BankDetails) Complete() bool {
	if b == nil {
		return false
	}
	return strings.TrimSpace(b.AccountName) != "" &&
		strings.TrimSpace(b.AccountNumber) != "" &&
		strings.TrimSpace(b.BankName) != ""
}

// Account holds the fields common to students and marketers.
type Account struct {
	Ref            AccountRef   `json:"ref"`
	FirstName      string       `json:"first_name"`
	LastName       string       `json:"last_name"`
	Email          string       `json:"email"`
	PhoneNumber    string       `json:"phone_number"`
	Location       string       `json:"location"`
	EmailVerified  bool         `json:"email_verified"`
	PasswordHash   string       `json:"-"`
	PINHash        *string      `json:"-"`
	Balance        int64        `json:"balance"`
	TotalWithdrawn int64        `json:"total_withdrawn"`
	BankDetails    *BankDetails `json:"bank_details,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// HasPIN reports whether the secondary credential has been set.
func (a *Account) HasPIN() bool {
	return a.PINHash != nil && *a.PINHash != ""
}

func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Student is an account that enrolls in courses and may have a referrer.
type Student struct {
	Account
	ReferrerID *uuid.UUID `json:"referrer_id,omitempty"`
}

// Marketer is an account that refers students and earns commission.
type Marketer struct {
	Account
	MarketerCode string `json:"marketer_code"`
}

// ProfileUpdate holds the self-service profile fields. Email, balance,
// referrer and credentials have their own flows and are never set here.
type ProfileUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	Location    *string `json:"location,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.PhoneNumber == nil && u.Location == nil
}

// TokenPurpose scopes a one-time token to a single flow.
type TokenPurpose string

const (
	TokenPurposeEmailVerification TokenPurpose = "email_verification"
	TokenPurposePasswordReset     TokenPurpose = "password_reset"
	TokenPurposePINReset          TokenPurpose = "pin_reset"
)

// OneTimeToken is an emailed code with an expiry.
type OneTimeToken struct {
	Account   AccountRef   `json:"account"`
	Purpose   TokenPurpose `json:"purpose"`
	Token     string       `json:"-"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Expired reports whether the token can no longer be redeemed.
func (t *OneTimeToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
