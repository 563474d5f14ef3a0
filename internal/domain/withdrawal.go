/**
 * @description
 * Withdrawal model and state machine.
 *
 *   pendingVerification --verify--> pending --approve--> approved
 *                                          \--reject---> rejected
 *
 * NextWithdrawalStatus is the only transition function; the store applies the
 * result with a compare-and-swap on the previous status.
 */

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type WithdrawalStatus string

const (
	WithdrawalStatusPendingVerification WithdrawalStatus = "pendingVerification"
	WithdrawalStatusPending             WithdrawalStatus = "pending"
	WithdrawalStatusApproved            WithdrawalStatus = "approved"
	WithdrawalStatusRejected            WithdrawalStatus = "rejected"
)

// Terminal reports whether no further transition is possible.
func (s WithdrawalStatus) Terminal() bool {
	return s == WithdrawalStatusApproved || s == WithdrawalStatusRejected
}

type WithdrawalAction string

const (
	WithdrawalActionVerify  WithdrawalAction = "verify"
	WithdrawalActionApprove WithdrawalAction = "approve"
	WithdrawalActionReject  WithdrawalAction = "reject"
)

// ErrInvalidTransition is returned for any move the state machine does not allow.
var ErrInvalidTransition = errors.New("invalid withdrawal transition")

var withdrawalTransitions = map[WithdrawalStatus]map[WithdrawalAction]WithdrawalStatus{
	WithdrawalStatusPendingVerification: {
		WithdrawalActionVerify: WithdrawalStatusPending,
	},
	WithdrawalStatusPending: {
		WithdrawalActionApprove: WithdrawalStatusApproved,
		WithdrawalActionReject:  WithdrawalStatusRejected,
	},
}

// NextWithdrawalStatus returns the status reached by applying action to current.
func NextWithdrawalStatus(current WithdrawalStatus, action WithdrawalAction) (WithdrawalStatus, error) {
	next, ok := withdrawalTransitions[current][action]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a %s withdrawal", ErrInvalidTransition, action, current)
	}
	return next, nil
}

// ParseWithdrawalDecision maps an admin status value onto an action.
func ParseWithdrawalDecision(status string) (WithdrawalAction, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case string(WithdrawalStatusApproved):
		return WithdrawalActionApprove, true
	case string(WithdrawalStatusRejected):
		return WithdrawalActionReject, true
	default:
		return "", false
	}
}

// Withdrawal is the authoritative record of a payout request.
type Withdrawal struct {
	ID            uuid.UUID        `json:"id"`
	Account       AccountRef       `json:"account"`
	Amount        int64            `json:"amount"`
	Status        WithdrawalStatus `json:"status"`
	Reference     string           `json:"reference"`
	RequestedAt   time.Time        `json:"requested_at"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
	VerifiedAt    *time.Time       `json:"verified_at,omitempty"`
	ProcessedAt   *time.Time       `json:"processed_at,omitempty"`
	BankName      string           `json:"bank_name"`
	AccountNumber string           `json:"account_number"`
	AccountName   string           `json:"account_name"`
}

// Expired reports whether an unverified request has outlived its window. The
// window is closed at expires_at itself, matching the store sweep.
func (w *Withdrawal) Expired(now time.Time) bool {
	if w.Status != WithdrawalStatusPendingVerification || w.ExpiresAt == nil {
		return false
	}
	return !now.Before(*w.ExpiresAt)
}

// WithdrawalHistoryEntry mirrors a withdrawal on the owning account.
type WithdrawalHistoryEntry struct {
	WithdrawalID uuid.UUID        `json:"withdrawal_id"`
	Amount       int64            `json:"amount"`
	Status       WithdrawalStatus `json:"status"`
	ProcessedAt  *time.Time       `json:"processed_at,omitempty"`
}

// AdminWithdrawal is a withdrawal joined with the requesting account's identity.
type AdminWithdrawal struct {
	Withdrawal
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}
