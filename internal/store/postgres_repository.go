package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrStudentNotFound       = errors.New("student not found")
	ErrMarketerNotFound      = errors.New("marketer not found")
	ErrEmailTaken            = errors.New("email already registered")
	ErrMarketerCodeTaken     = errors.New("marketer code already in use")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrPINAlreadySet         = errors.New("pin already set")
	ErrTokenNotFound         = errors.New("token not found")
	ErrCourseNotFound        = errors.New("course not found")
	ErrCourseTitleTaken      = errors.New("course title already exists")
	ErrCoursePaymentNotFound = errors.New("course payment not found")
	ErrDuplicateTransaction  = errors.New("payment reference already applied")
	ErrWithdrawalNotFound    = errors.New("withdrawal not found")
	ErrWithdrawalExpired     = errors.New("withdrawal request expired")
	ErrStaleTransition       = errors.New("withdrawal changed concurrently")
	ErrNotificationNotFound  = errors.New("notification not found")
	ErrUnknownAccountKind    = errors.New("unknown account kind")
)

// PostgresRepository is the PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// queryer is satisfied by both the pool and an open transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func accountTable(kind domain.AccountKind) (string, error) {
	switch kind {
	case domain.AccountKindStudent:
		return "students", nil
	case domain.AccountKindMarketer:
		return "marketers", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAccountKind, kind)
	}
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

const accountColumns = `id, first_name, last_name, email, phone_number, location, email_verified,
	password_hash, pin_hash, balance, total_withdrawn, bank_name, account_number, account_name,
	created_at, updated_at`

func scanAccount(row pgx.Row, kind domain.AccountKind, extra ...any) (*domain.Account, error) {
	var (
		account                             domain.Account
		bankName, accountNumber, holderName *string
	)
	dest := []any{
		&account.Ref.ID, &account.FirstName, &account.LastName, &account.Email, &account.PhoneNumber,
		&account.Location, &account.EmailVerified, &account.PasswordHash, &account.PINHash,
		&account.Balance, &account.TotalWithdrawn, &bankName, &accountNumber, &holderName,
		&account.CreatedAt, &account.UpdatedAt,
	}
	dest = append(dest, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	account.Ref.Kind = kind
	if bankName != nil || accountNumber != nil || holderName != nil {
		account.BankDetails = &domain.BankDetails{
			BankName:      deref(bankName),
			AccountNumber: deref(accountNumber),
			AccountName:   deref(holderName),
		}
	}
	return &account, nil
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// FindAccount loads the shared account view for either variant.
func (r *PostgresRepository) FindAccount(ctx context.Context, ref domain.AccountRef) (*domain.Account, error) {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", accountColumns, table)
	account, err := scanAccount(r.db.QueryRow(ctx, query, ref.ID), ref.Kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

func (r *PostgresRepository) FindAccountByEmail(ctx context.Context, kind domain.AccountKind, email string) (*domain.Account, error) {
	table, err := accountTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE email = $1", accountColumns, table)
	account, err := scanAccount(r.db.QueryRow(ctx, query, normalizeEmail(email)), kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// CreditBalance performs an atomic relative credit.
func (r *PostgresRepository) CreditBalance(ctx context.Context, ref domain.AccountRef, amount int64) error {
	return creditBalance(ctx, r.db, ref, amount)
}

func creditBalance(ctx context.Context, q queryer, ref domain.AccountRef, amount int64) error {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx, fmt.Sprintf("UPDATE %s SET balance = balance + $1, updated_at = NOW() WHERE id = $2", table), amount, ref.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// DebitBalance performs an atomic guarded debit; it never drives a balance negative.
func (r *PostgresRepository) DebitBalance(ctx context.Context, ref domain.AccountRef, amount int64) error {
	return debitBalance(ctx, r.db, ref, amount)
}

func debitBalance(ctx context.Context, q queryer, ref domain.AccountRef, amount int64) error {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return err
	}
	tag, err := q.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET balance = balance - $1, updated_at = NOW() WHERE id = $2 AND balance >= $1", table),
		amount, ref.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", table), ref.ID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return ErrInsufficientFunds
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, ref domain.AccountRef) error {
	return r.updateAccountColumn(ctx, ref, "email_verified = TRUE")
}

func (r *PostgresRepository) UpdatePasswordHash(ctx context.Context, ref domain.AccountRef, hash string) error {
	return r.updateAccountColumn(ctx, ref, "password_hash = $2", hash)
}

func (r *PostgresRepository) UpdatePINHash(ctx context.Context, ref domain.AccountRef, hash string) error {
	return r.updateAccountColumn(ctx, ref, "pin_hash = $2", hash)
}

// SetInitialPINHash stores a PIN only when none exists yet.
func (r *PostgresRepository) SetInitialPINHash(ctx context.Context, ref domain.AccountRef, hash string) error {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx,
		fmt.Sprintf("UPDATE %s SET pin_hash = $2, updated_at = NOW() WHERE id = $1 AND pin_hash IS NULL", table),
		ref.ID, hash,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := r.FindAccount(ctx, ref); err != nil {
		return err
	}
	return ErrPINAlreadySet
}

func (r *PostgresRepository) UpdateBankDetails(ctx context.Context, ref domain.AccountRef, details domain.BankDetails) error {
	return r.updateAccountColumn(ctx, ref, "bank_name = $2, account_number = $3, account_name = $4",
		strings.TrimSpace(details.BankName), strings.TrimSpace(details.AccountNumber), strings.TrimSpace(details.AccountName))
}

func (r *PostgresRepository) updateAccountColumn(ctx context.Context, ref domain.AccountRef, assignment string, args ...any) error {
	table, err := accountTable(ref.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE %s SET %s, updated_at = NOW() WHERE id = $1", table, assignment)
	tag, err := r.db.Exec(ctx, query, append([]any{ref.ID}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// EmailRegistered reports whether either account table already holds email.
func (r *PostgresRepository) EmailRegistered(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM students WHERE email = $1)
		    OR EXISTS (SELECT 1 FROM marketers WHERE email = $1)
	`, normalizeEmail(email)).Scan(&exists)
	return exists, err
}

// CreateStudent inserts the student and, when referred, appends them to the
// marketer's referred list in the same transaction.
func (r *PostgresRepository) CreateStudent(ctx context.Context, student *domain.Student) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if student.Ref.ID == uuid.Nil {
		student.Ref.ID = uuid.New()
	}
	student.Ref.Kind = domain.AccountKindStudent
	student.Email = normalizeEmail(student.Email)

	err = tx.QueryRow(ctx, `
		INSERT INTO students (id, first_name, last_name, email, phone_number, location, password_hash, email_verified, referrer_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, student.Ref.ID, student.FirstName, student.LastName, student.Email, student.PhoneNumber,
		student.Location, student.PasswordHash, student.EmailVerified, student.ReferrerID,
	).Scan(&student.CreatedAt, &student.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "students_email_key") {
			return ErrEmailTaken
		}
		return err
	}

	if student.ReferrerID != nil {
		_, err = tx.Exec(ctx, `
			INSERT INTO marketer_referred_students (marketer_id, student_id)
			VALUES ($1, $2)
			ON CONFLICT (marketer_id, student_id) DO NOTHING
		`, *student.ReferrerID, student.Ref.ID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) CreateMarketer(ctx context.Context, marketer *domain.Marketer) error {
	if marketer.Ref.ID == uuid.Nil {
		marketer.Ref.ID = uuid.New()
	}
	marketer.Ref.Kind = domain.AccountKindMarketer
	marketer.Email = normalizeEmail(marketer.Email)

	err := r.db.QueryRow(ctx, `
		INSERT INTO marketers (id, first_name, last_name, email, phone_number, location, password_hash, email_verified, marketer_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`, marketer.Ref.ID, marketer.FirstName, marketer.LastName, marketer.Email, marketer.PhoneNumber,
		marketer.Location, marketer.PasswordHash, marketer.EmailVerified, marketer.MarketerCode,
	).Scan(&marketer.CreatedAt, &marketer.UpdatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err, "marketers_email_key"):
			return ErrEmailTaken
		case isUniqueViolation(err, "marketers_marketer_code_key"):
			return ErrMarketerCodeTaken
		}
		return err
	}
	return nil
}

func (r *PostgresRepository) FindStudentByID(ctx context.Context, studentID uuid.UUID) (*domain.Student, error) {
	return r.findStudent(ctx, "id = $1", studentID)
}

func (r *PostgresRepository) FindStudentByEmail(ctx context.Context, email string) (*domain.Student, error) {
	return r.findStudent(ctx, "email = $1", normalizeEmail(email))
}

func (r *PostgresRepository) findStudent(ctx context.Context, where string, arg any) (*domain.Student, error) {
	var referrerID *uuid.UUID
	query := fmt.Sprintf("SELECT %s, referrer_id FROM students WHERE %s", accountColumns, where)
	account, err := scanAccount(r.db.QueryRow(ctx, query, arg), domain.AccountKindStudent, &referrerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return &domain.Student{Account: *account, ReferrerID: referrerID}, nil
}

func (r *PostgresRepository) FindMarketerByID(ctx context.Context, marketerID uuid.UUID) (*domain.Marketer, error) {
	return r.findMarketer(ctx, "id = $1", marketerID)
}

func (r *PostgresRepository) FindMarketerByCode(ctx context.Context, code string) (*domain.Marketer, error) {
	return r.findMarketer(ctx, "marketer_code = $1", strings.TrimSpace(code))
}

func (r *PostgresRepository) findMarketer(ctx context.Context, where string, arg any) (*domain.Marketer, error) {
	var code string
	query := fmt.Sprintf("SELECT %s, marketer_code FROM marketers WHERE %s", accountColumns, where)
	account, err := scanAccount(r.db.QueryRow(ctx, query, arg), domain.AccountKindMarketer, &code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMarketerNotFound
		}
		return nil, err
	}
	return &domain.Marketer{Account: *account, MarketerCode: code}, nil
}

// ListStudents returns every student, newest first.
func (r *PostgresRepository) ListStudents(ctx context.Context) ([]domain.Student, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf("SELECT %s, referrer_id FROM students ORDER BY created_at DESC", accountColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	students := []domain.Student{}
	for rows.Next() {
		var referrerID *uuid.UUID
		account, err := scanAccount(rows, domain.AccountKindStudent, &referrerID)
		if err != nil {
			return nil, err
		}
		students = append(students, domain.Student{Account: *account, ReferrerID: referrerID})
	}
	return students, rows.Err()
}

// ListMarketers returns every marketer, newest first.
func (r *PostgresRepository) ListMarketers(ctx context.Context) ([]domain.Marketer, error) {
	rows, err := r.db.Query(ctx, fmt.Sprintf("SELECT %s, marketer_code FROM marketers ORDER BY created_at DESC", accountColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	marketers := []domain.Marketer{}
	for rows.Next() {
		var code string
		account, err := scanAccount(rows, domain.AccountKindMarketer, &code)
		if err != nil {
			return nil, err
		}
		marketers = append(marketers, domain.Marketer{Account: *account, MarketerCode: code})
	}
	return marketers, rows.Err()
}

// UpdateProfile applies the non-nil fields of update. Only the four profile
// columns are ever written.
func (r *PostgresRepository) UpdateProfile(ctx context.Context, ref domain.AccountRef, update domain.ProfileUpdate) error {
	sets, args := profileAssignments(update)
	if len(sets) == 0 {
		return nil
	}
	return r.updateAccountColumn(ctx, ref, strings.Join(sets, ", "), args...)
}

// profileAssignments numbers placeholders from $2; $1 is the account id.
func profileAssignments(update domain.ProfileUpdate) ([]string, []any) {
	var (
		sets []string
		args []any
	)
	for _, field := range []struct {
		column string
		value  *string
	}{
		{"first_name", update.FirstName},
		{"last_name", update.LastName},
		{"phone_number", update.PhoneNumber},
		{"location", update.Location},
	} {
		if field.value == nil {
			continue
		}
		args = append(args, strings.TrimSpace(*field.value))
		sets = append(sets, fmt.Sprintf("%s = $%d", field.column, len(args)+1))
	}
	return sets, args
}

// SaveToken replaces any outstanding token of the same purpose.
func (r *PostgresRepository) SaveToken(ctx context.Context, token domain.OneTimeToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO account_tokens (account_kind, account_id, purpose, token, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account_kind, account_id, purpose)
		DO UPDATE SET token = EXCLUDED.token, expires_at = EXCLUDED.expires_at, created_at = NOW()
	`, token.Account.Kind, token.Account.ID, token.Purpose, token.Token, token.ExpiresAt)
	return err
}

func (r *PostgresRepository) FindToken(ctx context.Context, ref domain.AccountRef, purpose domain.TokenPurpose) (*domain.OneTimeToken, error) {
	token := domain.OneTimeToken{Account: ref, Purpose: purpose}
	err := r.db.QueryRow(ctx, `
		SELECT token, expires_at FROM account_tokens
		WHERE account_kind = $1 AND account_id = $2 AND purpose = $3
	`, ref.Kind, ref.ID, purpose).Scan(&token.Token, &token.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	return &token, nil
}

func (r *PostgresRepository) DeleteToken(ctx context.Context, ref domain.AccountRef, purpose domain.TokenPurpose) error {
	_, err := r.db.Exec(ctx, `
		DELETE FROM account_tokens WHERE account_kind = $1 AND account_id = $2 AND purpose = $3
	`, ref.Kind, ref.ID, purpose)
	return err
}

func (r *PostgresRepository) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM account_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
