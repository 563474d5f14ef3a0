/**
 * @description
 * Scheduled job implementations. Each job runs one idempotent sweep with its
 * own timeout; errors are logged and the next tick retries.
 */
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

const jobTimeout = 2 * time.Minute

// WithdrawalExpirer deletes unverified withdrawal requests past their expiry.
type WithdrawalExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// TokenPurger deletes expired one-time codes.
type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	withdrawals WithdrawalExpirer
	tokens      TokenPurger
	logger      *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(withdrawals WithdrawalExpirer, tokens TokenPurger, logger *slog.Logger) *Jobs {
	return &Jobs{withdrawals: withdrawals, tokens: tokens, logger: logger}
}

// ExpireStaleWithdrawals removes pendingVerification requests nobody verified.
// No balance was debited for them, so deletion is the whole cleanup.
func (j *Jobs) ExpireStaleWithdrawals() {
	j.logger.Info("starting withdrawal expiry job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := j.withdrawals.ExpireStale(ctx)
	if err != nil {
		j.logger.Error("failed to expire stale withdrawals", "error", err)
		return
	}
	j.logger.Info("withdrawal expiry job finished", "removed", removed)
}

// PurgeExpiredTokens clears OTP, password reset and PIN reset codes.
func (j *Jobs) PurgeExpiredTokens() {
	j.logger.Info("starting token purge job")
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := j.tokens.PurgeExpiredTokens(ctx)
	if err != nil {
		j.logger.Error("failed to purge expired tokens", "error", err)
		return
	}
	j.logger.Info("token purge job finished", "removed", removed)
}
