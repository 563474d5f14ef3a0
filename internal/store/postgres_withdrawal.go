package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, account_kind, account_id, amount, status, reference, requested_at,
	expires_at, verified_at, processed_at, bank_name, account_number, account_name`

// expiredWithdrawalCondition matches unverified requests past their expiry.
// Reads treat such rows as gone even before the sweep deletes them.
func expiredWithdrawalCondition(alias string) string {
	prefix := ""
	if alias != "" {
		prefix = alias + "."
	}
	return fmt.Sprintf("(%[1]sstatus = '%[2]s' AND %[1]sexpires_at IS NOT NULL AND %[1]sexpires_at <= NOW())",
		prefix, domain.WithdrawalStatusPendingVerification)
}

var (
	findWithdrawalByReferenceSQL = fmt.Sprintf(`
		SELECT %s, %s FROM withdrawals
		WHERE reference = $1 AND account_kind = $2 AND account_id = $3
	`, withdrawalColumns, expiredWithdrawalCondition(""))

	lockWithdrawalSQL = fmt.Sprintf("SELECT %s FROM withdrawals WHERE id = $1 FOR UPDATE", withdrawalColumns)

	adminWithdrawalsSQL = fmt.Sprintf(`
		SELECT %s, COALESCE(s.first_name, m.first_name, ''), COALESCE(s.last_name, m.last_name, ''), COALESCE(s.email, m.email, '')
		FROM withdrawals w
		LEFT JOIN students s ON w.account_kind = 'student' AND s.id = w.account_id
		LEFT JOIN marketers m ON w.account_kind = 'marketer' AND m.id = w.account_id
		WHERE ($1::text IS NULL OR w.status = $1) AND NOT %s
		ORDER BY w.requested_at DESC
	`, prefixColumns("w", withdrawalColumns), expiredWithdrawalCondition("w"))
)

// Transitions are compare-and-swap on the status read under the row lock; a
// zero row count means another writer moved the request first.
const (
	verifyWithdrawalSQL = `
		UPDATE withdrawals
		SET status = $2, verified_at = $3, expires_at = NULL
		WHERE id = $1 AND status = $4
	`
	decideWithdrawalSQL = `
		UPDATE withdrawals
		SET status = $2, processed_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING processed_at
	`
	deleteExpiredWithdrawalsSQL = `
		DELETE FROM withdrawals
		WHERE status = $1 AND expires_at IS NOT NULL AND expires_at <= $2
	`
)

func scanWithdrawal(row pgx.Row, extra ...any) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	dest := []any{
		&w.ID, &w.Account.Kind, &w.Account.ID, &w.Amount, &w.Status, &w.Reference, &w.RequestedAt,
		&w.ExpiresAt, &w.VerifiedAt, &w.ProcessedAt, &w.BankName, &w.AccountNumber, &w.AccountName,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWithdrawal records a request in pendingVerification. No funds move here.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, withdrawal *domain.Withdrawal) error {
	if withdrawal.ID == uuid.Nil {
		withdrawal.ID = uuid.New()
	}
	return r.db.QueryRow(ctx, `
		INSERT INTO withdrawals (id, account_kind, account_id, amount, status, reference, expires_at, bank_name, account_number, account_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING requested_at
	`, withdrawal.ID, withdrawal.Account.Kind, withdrawal.Account.ID, withdrawal.Amount, withdrawal.Status,
		withdrawal.Reference, withdrawal.ExpiresAt, withdrawal.BankName, withdrawal.AccountNumber, withdrawal.AccountName,
	).Scan(&withdrawal.RequestedAt)
}

func (r *PostgresRepository) FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM withdrawals WHERE id = $1", withdrawalColumns), withdrawalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return w, nil
}

// FindWithdrawalByReference only matches requests owned by owner. An
// unverified request past its expiry yields ErrWithdrawalExpired.
func (r *PostgresRepository) FindWithdrawalByReference(ctx context.Context, owner domain.AccountRef, reference string) (*domain.Withdrawal, error) {
	var expired bool
	w, err := scanWithdrawal(r.db.QueryRow(ctx, findWithdrawalByReferenceSQL, reference, owner.Kind, owner.ID), &expired)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	if expired {
		return nil, ErrWithdrawalExpired
	}
	return w, nil
}

// VerifyWithdrawal moves a request from pendingVerification to pending and
// debits the owning account in one transaction. The debit is guarded so the
// balance cannot go negative.
func (r *PostgresRepository) VerifyWithdrawal(ctx context.Context, withdrawalID uuid.UUID, now time.Time) (*domain.Withdrawal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := lockWithdrawal(ctx, tx, withdrawalID)
	if err != nil {
		return nil, err
	}
	if w.Expired(now) {
		return nil, ErrWithdrawalExpired
	}
	next, err := domain.NextWithdrawalStatus(w.Status, domain.WithdrawalActionVerify)
	if err != nil {
		return nil, err
	}

	if err := debitBalance(ctx, tx, w.Account, w.Amount); err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx, verifyWithdrawalSQL, w.ID, next, now, w.Status)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrStaleTransition
	}
	w.Status = next
	w.VerifiedAt = &now
	w.ExpiresAt = nil

	if err := upsertWithdrawalHistory(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

// DecideWithdrawal applies an admin approve or reject to a pending request.
// Approval accumulates total_withdrawn; rejection refunds the held amount.
func (r *PostgresRepository) DecideWithdrawal(ctx context.Context, withdrawalID uuid.UUID, action domain.WithdrawalAction) (*domain.Withdrawal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	w, err := lockWithdrawal(ctx, tx, withdrawalID)
	if err != nil {
		return nil, err
	}
	next, err := domain.NextWithdrawalStatus(w.Status, action)
	if err != nil {
		return nil, err
	}

	table, err := accountTable(w.Account.Kind)
	if err != nil {
		return nil, err
	}
	var ledgerUpdate string
	switch next {
	case domain.WithdrawalStatusApproved:
		ledgerUpdate = fmt.Sprintf("UPDATE %s SET total_withdrawn = total_withdrawn + $1, updated_at = NOW() WHERE id = $2", table)
	case domain.WithdrawalStatusRejected:
		ledgerUpdate = fmt.Sprintf("UPDATE %s SET balance = balance + $1, updated_at = NOW() WHERE id = $2", table)
	}
	tag, err := tx.Exec(ctx, ledgerUpdate, w.Amount, w.Account.ID)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrAccountNotFound
	}

	var processedAt time.Time
	err = tx.QueryRow(ctx, decideWithdrawalSQL, w.ID, next, w.Status).Scan(&processedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaleTransition
		}
		return nil, err
	}
	w.Status = next
	w.ProcessedAt = &processedAt

	if err := upsertWithdrawalHistory(ctx, tx, w); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return w, nil
}

func lockWithdrawal(ctx context.Context, tx pgx.Tx, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(tx.QueryRow(ctx, lockWithdrawalSQL, withdrawalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return w, nil
}

func upsertWithdrawalHistory(ctx context.Context, q queryer, w *domain.Withdrawal) error {
	_, err := q.Exec(ctx, `
		INSERT INTO withdrawal_history (withdrawal_id, account_kind, account_id, amount, status, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (withdrawal_id)
		DO UPDATE SET status = EXCLUDED.status, processed_at = EXCLUDED.processed_at
	`, w.ID, w.Account.Kind, w.Account.ID, w.Amount, w.Status, w.ProcessedAt)
	return err
}

// DeleteWithdrawal removes an unverified request.
func (r *PostgresRepository) DeleteWithdrawal(ctx context.Context, withdrawalID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		DELETE FROM withdrawals WHERE id = $1 AND status = $2
	`, withdrawalID, domain.WithdrawalStatusPendingVerification)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWithdrawalNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpiredWithdrawals(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, deleteExpiredWithdrawalsSQL, domain.WithdrawalStatusPendingVerification, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) ListWithdrawalHistory(ctx context.Context, ref domain.AccountRef) ([]domain.WithdrawalHistoryEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT withdrawal_id, amount, status, processed_at
		FROM withdrawal_history
		WHERE account_kind = $1 AND account_id = $2
		ORDER BY created_at DESC
	`, ref.Kind, ref.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []domain.WithdrawalHistoryEntry{}
	for rows.Next() {
		var entry domain.WithdrawalHistoryEntry
		if err := rows.Scan(&entry.WithdrawalID, &entry.Amount, &entry.Status, &entry.ProcessedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ListAdminWithdrawals joins each request with its owner's identity. Expired
// unverified requests are left out.
func (r *PostgresRepository) ListAdminWithdrawals(ctx context.Context, status *domain.WithdrawalStatus) ([]domain.AdminWithdrawal, error) {
	var filter *string
	if status != nil {
		value := string(*status)
		filter = &value
	}
	rows, err := r.db.Query(ctx, adminWithdrawalsSQL, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []domain.AdminWithdrawal{}
	for rows.Next() {
		var item domain.AdminWithdrawal
		w, err := scanWithdrawal(rows, &item.FirstName, &item.LastName, &item.Email)
		if err != nil {
			return nil, err
		}
		item.Withdrawal = *w
		items = append(items, item)
	}
	return items, rows.Err()
}
