package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *PostgresRepository) HasPaymentTransaction(ctx context.Context, studentID uuid.UUID, reference string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, paymentReferenceSeenSQL, studentID, reference).Scan(&exists)
	return exists, err
}

const coursePaymentColumns = `id, student_id, course_id, amount_payable, amount_paid, status,
	payment_structure, learning_mode, created_at, updated_at`

// Reconciliation locks the student row before anything else so deliveries for
// one student apply one at a time.
const (
	lockStudentForPaymentSQL = "SELECT referrer_id FROM students WHERE id = $1 FOR UPDATE"
	paymentReferenceSeenSQL  = `
		SELECT EXISTS (SELECT 1 FROM payment_transactions WHERE student_id = $1 AND reference = $2)
	`
	insertPaymentTransactionSQL = `
		INSERT INTO payment_transactions (id, course_payment_id, student_id, reference, amount, gateway_status, transaction_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (student_id, reference) DO NOTHING
	`
	insertReferralBonusSQL = `
		INSERT INTO student_earnings (id, student_id, reference, amount_earned, payment_date)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id) DO NOTHING
	`
)

var lockCoursePaymentSQL = fmt.Sprintf(
	"SELECT %s FROM course_payments WHERE student_id = $1 AND course_id = $2 FOR UPDATE", coursePaymentColumns)

func scanCoursePayment(row pgx.Row) (*domain.CoursePayment, error) {
	var payment domain.CoursePayment
	err := row.Scan(
		&payment.ID, &payment.StudentID, &payment.CourseID, &payment.AmountPayable, &payment.AmountPaid,
		&payment.Status, &payment.PaymentStructure, &payment.LearningMode, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *PostgresRepository) FindCoursePayment(ctx context.Context, studentID, courseID uuid.UUID) (*domain.CoursePayment, error) {
	payment, err := scanCoursePayment(r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM course_payments WHERE student_id = $1 AND course_id = $2", coursePaymentColumns),
		studentID, courseID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCoursePaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// ApplyCoursePayment reconciles one charge inside a single transaction. The
// student row is locked first so concurrent deliveries for the same student
// serialize; the (student_id, reference) unique key is the idempotency
// witness, and the per-student earnings key bounds the referral bonus to one.
func (r *PostgresRepository) ApplyCoursePayment(ctx context.Context, params ApplyCoursePaymentParams) (*ApplyCoursePaymentResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var referrerID *uuid.UUID
	err = tx.QueryRow(ctx, lockStudentForPaymentSQL, params.StudentID).Scan(&referrerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}

	var duplicate bool
	if err := tx.QueryRow(ctx, paymentReferenceSeenSQL, params.StudentID, params.Reference).Scan(&duplicate); err != nil {
		return nil, err
	}
	if duplicate {
		return nil, ErrDuplicateTransaction
	}

	current, err := scanCoursePayment(tx.QueryRow(ctx, lockCoursePaymentSQL, params.StudentID, params.Course.ID))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	outcome, err := domain.ApplyCharge(current, params.Course.Price, params.Amount, params.Policy)
	if err != nil {
		return nil, err
	}

	var payment *domain.CoursePayment
	if current == nil {
		payment, err = scanCoursePayment(tx.QueryRow(ctx, fmt.Sprintf(`
			INSERT INTO course_payments (id, student_id, course_id, amount_payable, amount_paid, status, payment_structure, learning_mode)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING %s
		`, coursePaymentColumns),
			uuid.New(), params.StudentID, params.Course.ID, outcome.AmountPayable, outcome.AmountPaid,
			outcome.Status, params.PaymentStructure, params.LearningMode,
		))
	} else {
		payment, err = scanCoursePayment(tx.QueryRow(ctx, fmt.Sprintf(`
			UPDATE course_payments
			SET amount_paid = amount_paid + $2, status = $3, updated_at = NOW()
			WHERE id = $1
			RETURNING %s
		`, coursePaymentColumns), current.ID, params.Amount, outcome.Status))
	}
	if err != nil {
		return nil, err
	}

	transaction := domain.PaymentTransaction{
		ID:              uuid.New(),
		CoursePaymentID: payment.ID,
		StudentID:       params.StudentID,
		Reference:       params.Reference,
		Amount:          params.Amount,
		GatewayStatus:   params.GatewayStatus,
		TransactionDate: params.PaidAt,
	}
	tag, err := tx.Exec(ctx, insertPaymentTransactionSQL,
		transaction.ID, transaction.CoursePaymentID, transaction.StudentID, transaction.Reference,
		transaction.Amount, transaction.GatewayStatus, transaction.TransactionDate)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrDuplicateTransaction
	}
	payment.Transactions = []domain.PaymentTransaction{transaction}

	result := &ApplyCoursePaymentResult{
		Payment:    *payment,
		Outcome:    outcome,
		ReferrerID: referrerID,
	}

	if outcome.Created && referrerID != nil && params.ReferralBonus > 0 {
		tag, err := tx.Exec(ctx, insertReferralBonusSQL, uuid.New(), params.StudentID, params.Reference, params.ReferralBonus, params.PaidAt)
		if err != nil {
			return nil, err
		}
		if tag.RowsAffected() == 1 {
			ref := domain.AccountRef{Kind: domain.AccountKindStudent, ID: params.StudentID}
			if err := creditBalance(ctx, tx, ref, params.ReferralBonus); err != nil {
				return nil, err
			}
			result.BonusCredited = true
			result.BonusAmount = params.ReferralBonus
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) ListEnrolledCourses(ctx context.Context, studentID uuid.UUID) ([]domain.EnrolledCourse, error) {
	rows, err := r.db.Query(ctx, `
		SELECT c.id, c.title, c.description, c.price, c.durations,
		       cp.amount_paid, cp.amount_payable, cp.status, cp.learning_mode
		FROM course_payments cp
		JOIN courses c ON c.id = cp.course_id
		WHERE cp.student_id = $1
		ORDER BY cp.created_at DESC
	`, studentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var courses []domain.EnrolledCourse
	for rows.Next() {
		var course domain.EnrolledCourse
		if err := rows.Scan(
			&course.CourseID, &course.Title, &course.Description, &course.Price, &course.Durations,
			&course.AmountPaid, &course.AmountPayable, &course.PaymentStatus, &course.LearningMode,
		); err != nil {
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, rows.Err()
}

// RecordCommission appends a commission entry and credits the marketer. It
// reports false when the (student, reference) pair was already accrued.
func (r *PostgresRepository) RecordCommission(ctx context.Context, commission domain.Commission) (bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback(ctx)

	if commission.ID == uuid.Nil {
		commission.ID = uuid.New()
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO marketer_commissions (id, marketer_id, student_id, reference, amount_earned, payment_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, reference) DO NOTHING
	`, commission.ID, commission.MarketerID, commission.StudentID, commission.Reference,
		commission.AmountEarned, commission.PaymentDate)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	ref := domain.AccountRef{Kind: domain.AccountKindMarketer, ID: commission.MarketerID}
	if err := creditBalance(ctx, tx, ref, commission.AmountEarned); err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, ErrMarketerNotFound
		}
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) ListCommissions(ctx context.Context, marketerID uuid.UUID) ([]domain.Commission, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, marketer_id, student_id, reference, amount_earned, payment_date
		FROM marketer_commissions
		WHERE marketer_id = $1
		ORDER BY payment_date DESC
	`, marketerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commissions []domain.Commission
	for rows.Next() {
		var c domain.Commission
		if err := rows.Scan(&c.ID, &c.MarketerID, &c.StudentID, &c.Reference, &c.AmountEarned, &c.PaymentDate); err != nil {
			return nil, err
		}
		commissions = append(commissions, c)
	}
	return commissions, rows.Err()
}

// ListReferredStudents returns the marketer's referred students with their
// course payments attached.
func (r *PostgresRepository) ListReferredStudents(ctx context.Context, marketerID uuid.UUID) ([]domain.ReferredStudent, error) {
	rows, err := r.db.Query(ctx, `
		SELECT s.id, s.first_name, s.last_name, s.email, s.phone_number, s.location, s.created_at
		FROM marketer_referred_students mrs
		JOIN students s ON s.id = mrs.student_id
		WHERE mrs.marketer_id = $1
		ORDER BY mrs.created_at DESC
	`, marketerID)
	if err != nil {
		return nil, err
	}

	var students []domain.ReferredStudent
	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var s domain.ReferredStudent
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.PhoneNumber, &s.Location, &s.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		s.Payments = []domain.CoursePayment{}
		index[s.ID] = len(students)
		students = append(students, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(students) == 0 {
		return students, nil
	}

	paymentRows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s FROM course_payments
		WHERE student_id IN (SELECT student_id FROM marketer_referred_students WHERE marketer_id = $1)
		ORDER BY created_at
	`, coursePaymentColumns), marketerID)
	if err != nil {
		return nil, err
	}
	defer paymentRows.Close()

	for paymentRows.Next() {
		payment, err := scanCoursePayment(paymentRows)
		if err != nil {
			return nil, err
		}
		if i, ok := index[payment.StudentID]; ok {
			students[i].Payments = append(students[i].Payments, *payment)
		}
	}
	return students, paymentRows.Err()
}
