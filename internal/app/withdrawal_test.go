package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/Zymoclassic/eduplat/internal/store"
	"github.com/google/uuid"
)

type limiterStub struct {
	count int
	err   error
}

func (l *limiterStub) ConsumeRateLimit(_ context.Context, _, _ string, _ int, _ time.Duration) (int, int, error) {
	l.count++
	return l.count, 42, l.err
}

func walletAccount(t *testing.T, repo *repoStub, balance int64, pin string) *domain.Account {
	t.Helper()
	account := repo.addMarketer()
	account.Balance = balance
	account.BankDetails = &domain.BankDetails{AccountName: "Musa Bello", AccountNumber: "0123456789", BankName: "Access Bank"}
	if pin != "" {
		hash, err := hashSecret(pin)
		if err != nil {
			t.Fatalf("hash pin: %v", err)
		}
		account.PINHash = &hash
	}
	return account
}

func newTestWithdrawals(repo *repoStub, notifier Notifier) *WithdrawalService {
	return NewWithdrawalService(repo, notifier, WithdrawalConfig{MinAmountKobo: 50000, Expiry: 24 * time.Hour, PINAttemptsPerMinute: 3})
}

func TestWithdrawalRequestValidation(t *testing.T) {
	tests := []struct {
		name    string
		balance int64
		amount  int64
		noBank  bool
		wantErr error
	}{
		{name: "below minimum", balance: 100000, amount: 49999, wantErr: ErrValidation},
		{name: "missing bank details", balance: 100000, amount: 50000, noBank: true, wantErr: ErrValidation},
		{name: "insufficient balance", balance: 40000, amount: 50000, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepoStub()
			account := walletAccount(t, repo, tt.balance, "")
			if tt.noBank {
				account.BankDetails = nil
			}
			svc := newTestWithdrawals(repo, nil)

			_, err := svc.Request(context.Background(), account.Ref, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if len(repo.withdrawals) != 0 {
				t.Fatalf("expected no withdrawal to be stored")
			}
		})
	}
}

func TestWithdrawalRequestDoesNotDebit(t *testing.T) {
	repo := newRepoStub()
	account := walletAccount(t, repo, 100000, "")
	svc := newTestWithdrawals(repo, nil)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	w, err := svc.Request(context.Background(), account.Ref, 60000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Status != domain.WithdrawalStatusPendingVerification {
		t.Fatalf("expected pendingVerification, got %s", w.Status)
	}
	if w.ExpiresAt == nil || !w.ExpiresAt.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("expected expiry 24h after request, got %v", w.ExpiresAt)
	}
	if w.BankName != "Access Bank" || w.AccountNumber != "0123456789" {
		t.Fatalf("expected bank details snapshot, got %+v", w)
	}
	if account.Balance != 100000 {
		t.Fatalf("expected balance untouched, got %d", account.Balance)
	}
}

func TestWithdrawalLifecycle(t *testing.T) {
	tests := []struct {
		name               string
		decision           string
		wantStatus         domain.WithdrawalStatus
		wantBalance        int64
		wantTotalWithdrawn int64
	}{
		{name: "approve", decision: "approved", wantStatus: domain.WithdrawalStatusApproved, wantBalance: 40000, wantTotalWithdrawn: 60000},
		{name: "reject refunds", decision: "rejected", wantStatus: domain.WithdrawalStatusRejected, wantBalance: 100000, wantTotalWithdrawn: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newRepoStub()
			account := walletAccount(t, repo, 100000, "1234")
			notifier := &recordingNotifier{}
			svc := newTestWithdrawals(repo, notifier)
			ctx := context.Background()

			w, err := svc.Request(ctx, account.Ref, 60000)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			verified, err := svc.Verify(ctx, account.Ref, w.Reference, "1234")
			if err != nil {
				t.Fatalf("verify: %v", err)
			}
			if verified.Status != domain.WithdrawalStatusPending {
				t.Fatalf("expected pending after verify, got %s", verified.Status)
			}
			if account.Balance != 40000 {
				t.Fatalf("expected debit at verify, got balance %d", account.Balance)
			}

			decided, err := svc.Decide(ctx, w.ID, tt.decision)
			if err != nil {
				t.Fatalf("decide: %v", err)
			}
			if decided.Status != tt.wantStatus || decided.ProcessedAt == nil {
				t.Fatalf("expected %s with processedAt, got %+v", tt.wantStatus, decided)
			}
			if account.Balance != tt.wantBalance || account.TotalWithdrawn != tt.wantTotalWithdrawn {
				t.Fatalf("expected balance=%d total=%d, got balance=%d total=%d",
					tt.wantBalance, tt.wantTotalWithdrawn, account.Balance, account.TotalWithdrawn)
			}

			if _, err := svc.Decide(ctx, w.ID, "approved"); !errors.Is(err, ErrConflict) {
				t.Fatalf("expected second decision to conflict, got %v", err)
			}

			titles := notifier.titles()
			if len(titles) != 2 || titles[0] != "Withdrawal initiated" {
				t.Fatalf("unexpected notifications %v", titles)
			}
		})
	}
}

func TestWithdrawalVerifyRejectsWrongPIN(t *testing.T) {
	repo := newRepoStub()
	account := walletAccount(t, repo, 100000, "1234")
	svc := newTestWithdrawals(repo, nil)
	ctx := context.Background()

	w, err := svc.Request(ctx, account.Ref, 60000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Verify(ctx, account.Ref, w.Reference, "9999"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if account.Balance != 100000 {
		t.Fatalf("expected no debit on wrong PIN, got %d", account.Balance)
	}
}

func TestWithdrawalVerifyTwiceConflicts(t *testing.T) {
	repo := newRepoStub()
	account := walletAccount(t, repo, 200000, "1234")
	svc := newTestWithdrawals(repo, nil)
	ctx := context.Background()

	w, err := svc.Request(ctx, account.Ref, 60000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Verify(ctx, account.Ref, w.Reference, "1234"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if _, err := svc.Verify(ctx, account.Ref, w.Reference, "1234"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict on second verify, got %v", err)
	}
	if account.Balance != 140000 {
		t.Fatalf("expected a single debit, got balance %d", account.Balance)
	}
}

func TestWithdrawalVerifyExpiredDeletesRequest(t *testing.T) {
	repo := newRepoStub()
	account := walletAccount(t, repo, 100000, "1234")
	svc := newTestWithdrawals(repo, nil)
	ctx := context.Background()
	start := time.Now()
	svc.now = func() time.Time { return start }

	w, err := svc.Request(ctx, account.Ref, 60000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	svc.now = func() time.Time { return start.Add(25 * time.Hour) }

	if _, err := svc.Verify(ctx, account.Ref, w.Reference, "1234"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for expired request, got %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != w.ID {
		t.Fatalf("expected expired request to be deleted, got %v", repo.deleted)
	}
	if account.Balance != 100000 {
		t.Fatalf("expected no debit, got %d", account.Balance)
	}
}

func TestWithdrawalVerifyExpiredAtLookup(t *testing.T) {
	repo := newRepoStub()
	account := walletAccount(t, repo, 100000, "1234")
	svc := newTestWithdrawals(repo, nil)
	ctx := context.Background()

	w, err := svc.Request(ctx, account.Ref, 60000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	repo.lookupErr = store.ErrWithdrawalExpired

	_, err = svc.Verify(ctx, account.Ref, w.Reference, "1234")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for expired request, got %v", err)
	}
	if PublicMessage(err) != "this withdrawal request has expired" {
		t.Fatalf("unexpected message %q", PublicMessage(err))
	}
	if account.Balance != 100000 {
		t.Fatalf("expected no debit, got %d", account.Balance)
	}
}

func TestWithdrawalVerifyWithoutPINForbidden(t *testing.T) {
	repo := newRepoStub()
	account := walletAccount(t, repo, 100000, "")
	svc := newTestWithdrawals(repo, nil)
	ctx := context.Background()

	w, err := svc.Request(ctx, account.Ref, 60000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if _, err := svc.Verify(ctx, account.Ref, w.Reference, "1234"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestWithdrawalVerifyThrottlesPINAttempts(t *testing.T) {
	repo := newRepoStub()
	account := walletAccount(t, repo, 100000, "1234")
	svc := newTestWithdrawals(repo, nil)
	svc.SetRateLimiter(&limiterStub{count: 3})
	ctx := context.Background()

	w, err := svc.Request(ctx, account.Ref, 60000)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	_, err = svc.Verify(ctx, account.Ref, w.Reference, "1234")
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limited, got %v", err)
	}
	var appErr *Error
	if !errors.As(err, &appErr) || appErr.RetryAfter != 42 {
		t.Fatalf("expected retry-after 42, got %+v", appErr)
	}
}

func TestWithdrawalPINGuardFailsOpen(t *testing.T) {
	guard := pinAttemptGuard{limiter: &limiterStub{err: errors.New("redis down")}, perMin: 1}
	ref := domain.AccountRef{Kind: domain.AccountKindStudent}
	if err := guard.check(context.Background(), ref); err != nil {
		t.Fatalf("expected limiter outage to allow the attempt, got %v", err)
	}
}

func TestWithdrawalDecideRejectsUnknownStatus(t *testing.T) {
	svc := newTestWithdrawals(newRepoStub(), nil)
	if _, err := svc.Decide(context.Background(), uuid.Nil, "pending"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestWithdrawalReferenceFormat(t *testing.T) {
	ref := newWithdrawalReference(time.UnixMilli(1700000000000))
	if len(ref) != len("WD-1700000000000-")+8 || ref[:17] != "WD-1700000000000-" {
		t.Fatalf("unexpected reference %q", ref)
	}
}
