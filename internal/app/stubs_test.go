package app

import (
	"context"
	"sync"
	"time"

	"github.com/Zymoclassic/eduplat/internal/domain"
	"github.com/Zymoclassic/eduplat/internal/store"
	"github.com/google/uuid"
)

// repoStub embeds store.Repository so each test only overrides what it calls.
type repoStub struct {
	store.Repository

	mu sync.Mutex

	accounts map[domain.AccountRef]*domain.Account
	students map[uuid.UUID]*domain.Student
	courses  map[uuid.UUID]*domain.Course
	tokens   map[string]domain.OneTimeToken

	transactions map[string]bool
	payments     map[uuid.UUID]*domain.CoursePayment
	commissions  map[string]domain.Commission
	withdrawals  map[uuid.UUID]*domain.Withdrawal

	applyErr   error
	bonusGiven map[uuid.UUID]bool
	recordErr  error
	deleted    []uuid.UUID
	lookupErr  error
}

func newRepoStub() *repoStub {
	return &repoStub{
		accounts:     map[domain.AccountRef]*domain.Account{},
		students:     map[uuid.UUID]*domain.Student{},
		courses:      map[uuid.UUID]*domain.Course{},
		tokens:       map[string]domain.OneTimeToken{},
		transactions: map[string]bool{},
		payments:     map[uuid.UUID]*domain.CoursePayment{},
		commissions:  map[string]domain.Commission{},
		withdrawals:  map[uuid.UUID]*domain.Withdrawal{},
		bonusGiven:   map[uuid.UUID]bool{},
	}
}

func (r *repoStub) addStudent(email string, referrer *uuid.UUID) *domain.Student {
	s := &domain.Student{
		Account: domain.Account{
			Ref:       domain.AccountRef{Kind: domain.AccountKindStudent, ID: uuid.New()},
			FirstName: "Ada",
			LastName:  "Obi",
			Email:     email,
		},
		ReferrerID: referrer,
	}
	r.students[s.Ref.ID] = s
	r.accounts[s.Ref] = &s.Account
	return s
}

func (r *repoStub) addMarketer() *domain.Account {
	a := &domain.Account{
		Ref:       domain.AccountRef{Kind: domain.AccountKindMarketer, ID: uuid.New()},
		FirstName: "Musa",
		Email:     "musa@example.com",
	}
	r.accounts[a.Ref] = a
	return a
}

func (r *repoStub) addCourse(price int64) *domain.Course {
	c := &domain.Course{ID: uuid.New(), Title: "Data Analysis", Price: price, IsPublished: true}
	r.courses[c.ID] = c
	return c
}

func tokenKey(ref domain.AccountRef, purpose domain.TokenPurpose) string {
	return ref.String() + "/" + string(purpose)
}

func (r *repoStub) FindAccount(_ context.Context, ref domain.AccountRef) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[ref]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *repoStub) FindAccountByEmail(_ context.Context, kind domain.AccountKind, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ref, a := range r.accounts {
		if ref.Kind == kind && a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrAccountNotFound
}

func (r *repoStub) EmailRegistered(_ context.Context, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *repoStub) CreateStudent(_ context.Context, student *domain.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	student.Ref.ID = uuid.New()
	r.students[student.Ref.ID] = student
	r.accounts[student.Ref] = &student.Account
	return nil
}

func (r *repoStub) CreateMarketer(_ context.Context, marketer *domain.Marketer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	marketer.Ref.ID = uuid.New()
	r.accounts[marketer.Ref] = &marketer.Account
	return nil
}

func (r *repoStub) FindMarketerByCode(_ context.Context, code string) (*domain.Marketer, error) {
	if code == "123456" {
		return &domain.Marketer{
			Account:      domain.Account{Ref: domain.AccountRef{Kind: domain.AccountKindMarketer, ID: uuid.MustParse("11111111-1111-1111-1111-111111111111")}},
			MarketerCode: code,
		}, nil
	}
	return nil, store.ErrMarketerNotFound
}

func (r *repoStub) MarkEmailVerified(_ context.Context, ref domain.AccountRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[ref]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.EmailVerified = true
	return nil
}

func (r *repoStub) UpdatePasswordHash(_ context.Context, ref domain.AccountRef, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[ref]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.PasswordHash = hash
	return nil
}

func (r *repoStub) SetInitialPINHash(_ context.Context, ref domain.AccountRef, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[ref]
	if !ok {
		return store.ErrAccountNotFound
	}
	if a.PINHash != nil {
		return store.ErrPINAlreadySet
	}
	a.PINHash = &hash
	return nil
}

func (r *repoStub) UpdatePINHash(_ context.Context, ref domain.AccountRef, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[ref]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.PINHash = &hash
	return nil
}

func (r *repoStub) UpdateBankDetails(_ context.Context, ref domain.AccountRef, details domain.BankDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[ref]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.BankDetails = &details
	return nil
}

func (r *repoStub) SaveToken(_ context.Context, token domain.OneTimeToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[tokenKey(token.Account, token.Purpose)] = token
	return nil
}

func (r *repoStub) FindToken(_ context.Context, ref domain.AccountRef, purpose domain.TokenPurpose) (*domain.OneTimeToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[tokenKey(ref, purpose)]
	if !ok {
		return nil, store.ErrTokenNotFound
	}
	return &t, nil
}

func (r *repoStub) DeleteToken(_ context.Context, ref domain.AccountRef, purpose domain.TokenPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, tokenKey(ref, purpose))
	return nil
}

func (r *repoStub) FindStudentByID(_ context.Context, id uuid.UUID) (*domain.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.students[id]
	if !ok {
		return nil, store.ErrStudentNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *repoStub) FindStudentByEmail(_ context.Context, email string) (*domain.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.students {
		if s.Email == email {
			cp := *s
			return &cp, nil
		}
	}
	return nil, store.ErrStudentNotFound
}

func (r *repoStub) FindCourseByID(_ context.Context, id uuid.UUID) (*domain.Course, error) {
	c, ok := r.courses[id]
	if !ok {
		return nil, store.ErrCourseNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *repoStub) HasPaymentTransaction(_ context.Context, studentID uuid.UUID, reference string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.transactions[studentID.String()+"/"+reference], nil
}

func (r *repoStub) FindCoursePayment(_ context.Context, studentID, courseID uuid.UUID) (*domain.CoursePayment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[courseID]
	if !ok || p.StudentID != studentID {
		return nil, store.ErrCoursePaymentNotFound
	}
	cp := *p
	return &cp, nil
}

// ApplyCoursePayment mirrors the transactional store: duplicate check, state
// machine, ledger write and one-time bonus.
func (r *repoStub) ApplyCoursePayment(_ context.Context, params store.ApplyCoursePaymentParams) (*store.ApplyCoursePaymentResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.applyErr != nil {
		return nil, r.applyErr
	}
	key := params.StudentID.String() + "/" + params.Reference
	if r.transactions[key] {
		return nil, store.ErrDuplicateTransaction
	}
	student := r.students[params.StudentID]

	current := r.payments[params.Course.ID]
	outcome, err := domain.ApplyCharge(current, params.Course.Price, params.Amount, params.Policy)
	if err != nil {
		return nil, err
	}
	if current == nil {
		current = &domain.CoursePayment{ID: uuid.New(), StudentID: params.StudentID, CourseID: params.Course.ID}
		r.payments[params.Course.ID] = current
	}
	current.AmountPayable = outcome.AmountPayable
	current.AmountPaid = outcome.AmountPaid
	current.Status = outcome.Status
	r.transactions[key] = true

	result := &store.ApplyCoursePaymentResult{Payment: *current, Outcome: outcome, ReferrerID: student.ReferrerID}
	if outcome.Created && student.ReferrerID != nil && params.ReferralBonus > 0 && !r.bonusGiven[student.Ref.ID] {
		r.bonusGiven[student.Ref.ID] = true
		student.Balance += params.ReferralBonus
		result.BonusCredited = true
		result.BonusAmount = params.ReferralBonus
	}
	return result, nil
}

func (r *repoStub) RecordCommission(_ context.Context, c domain.Commission) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recordErr != nil {
		return false, r.recordErr
	}
	key := c.StudentID.String() + "/" + c.Reference
	if _, ok := r.commissions[key]; ok {
		return false, nil
	}
	r.commissions[key] = c
	return true, nil
}

func (r *repoStub) FindWithdrawalByReference(_ context.Context, owner domain.AccountRef, reference string) (*domain.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	for _, w := range r.withdrawals {
		if w.Account == owner && w.Reference == reference {
			cp := *w
			return &cp, nil
		}
	}
	return nil, store.ErrWithdrawalNotFound
}

func (r *repoStub) CreateWithdrawal(_ context.Context, w *domain.Withdrawal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.withdrawals[w.ID] = &cp
	return nil
}

func (r *repoStub) DeleteWithdrawal(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.withdrawals, id)
	r.deleted = append(r.deleted, id)
	return nil
}

// VerifyWithdrawal and DecideWithdrawal apply the same guarded balance moves
// as the store transaction.
func (r *repoStub) VerifyWithdrawal(_ context.Context, id uuid.UUID, now time.Time) (*domain.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	next, err := domain.NextWithdrawalStatus(w.Status, domain.WithdrawalActionVerify)
	if err != nil {
		return nil, err
	}
	account := r.accounts[w.Account]
	if account.Balance < w.Amount {
		return nil, store.ErrInsufficientFunds
	}
	account.Balance -= w.Amount
	w.Status = next
	w.VerifiedAt = &now
	w.ExpiresAt = nil
	cp := *w
	return &cp, nil
}

func (r *repoStub) DecideWithdrawal(_ context.Context, id uuid.UUID, action domain.WithdrawalAction) (*domain.Withdrawal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.withdrawals[id]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	next, err := domain.NextWithdrawalStatus(w.Status, action)
	if err != nil {
		return nil, err
	}
	account := r.accounts[w.Account]
	if next == domain.WithdrawalStatusApproved {
		account.TotalWithdrawn += w.Amount
	} else {
		account.Balance += w.Amount
	}
	now := time.Now()
	w.Status = next
	w.ProcessedAt = &now
	cp := *w
	return &cp, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []Notice
}

func (n *recordingNotifier) Notify(_ context.Context, notice Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.notices))
	for _, notice := range n.notices {
		out = append(out, notice.Title)
	}
	return out
}

type recordingEmailSender struct {
	mu   sync.Mutex
	sent []domain.EmailMessage
	err  error
}

func (s *recordingEmailSender) SendEmail(_ context.Context, msg domain.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingEmailSender) last() domain.EmailMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		return domain.EmailMessage{}
	}
	return s.sent[len(s.sent)-1]
}

func ptrUUID(id uuid.UUID) *uuid.UUID {
	return &id
}
