package lending

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"microlend/internal/domain"
	"microlend/internal/realtime"
	pkgerrors "microlend/pkg/errors"
	"microlend/pkg/logger"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

type mockClientRepo struct{ mock.Mock }

func (m *mockClientRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}
func (m *mockClientRepo) List(ctx context.Context, search string, limit, offset int) ([]*domain.Client, error) {
	args := m.Called(ctx, search, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Client), args.Error(1)
}
func (m *mockClientRepo) Update(ctx context.Context, c *domain.Client) error {
	return m.Called(ctx, c).Error(0)
}
func (m *mockClientRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockLoanRepo struct{ mock.Mock }

func (m *mockLoanRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}
func (m *mockLoanRepo) List(ctx context.Context, status domain.LoanStatus, limit, offset int) ([]*domain.Loan, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}
func (m *mockLoanRepo) ListAll(ctx context.Context) ([]domain.Loan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Loan), args.Error(1)
}
func (m *mockLoanRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Loan, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Loan), args.Error(1)
}
func (m *mockLoanRepo) CountActiveByClient(ctx context.Context, clientID uuid.UUID) (int, error) {
	args := m.Called(ctx, clientID)
	return args.Int(0), args.Error(1)
}
func (m *mockLoanRepo) Update(ctx context.Context, l *domain.Loan) error {
	return m.Called(ctx, l).Error(0)
}
func (m *mockLoanRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LoanStatus) error {
	return m.Called(ctx, id, status).Error(0)
}
func (m *mockLoanRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockRequestRepo struct{ mock.Mock }

func (m *mockRequestRepo) Create(ctx context.Context, r *domain.LoanRequest) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockRequestRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanRequest), args.Error(1)
}
func (m *mockRequestRepo) List(ctx context.Context, status domain.RequestStatus, limit, offset int) ([]*domain.LoanRequest, error) {
	args := m.Called(ctx, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.LoanRequest), args.Error(1)
}
func (m *mockRequestRepo) FindLatestByIDNumber(ctx context.Context, n string) (*domain.LoanRequest, error) {
	args := m.Called(ctx, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LoanRequest), args.Error(1)
}
func (m *mockRequestRepo) ExistsOpenByIDNumber(ctx context.Context, n string) (bool, error) {
	args := m.Called(ctx, n)
	return args.Bool(0), args.Error(1)
}
func (m *mockRequestRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.RequestStatus) error {
	return m.Called(ctx, id, from, to).Error(0)
}
func (m *mockRequestRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockAccountingRepo struct{ mock.Mock }

func (m *mockAccountingRepo) Create(ctx context.Context, e *domain.AccountingEntry) error {
	return m.Called(ctx, e).Error(0)
}
func (m *mockAccountingRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.AccountingEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.AccountingEntry), args.Error(1)
}
func (m *mockAccountingRepo) Update(ctx context.Context, e *domain.AccountingEntry) error {
	return m.Called(ctx, e).Error(0)
}
func (m *mockAccountingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockMetaRepo struct{ mock.Mock }

func (m *mockMetaRepo) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}
func (m *mockMetaRepo) Set(ctx context.Context, key, value string) error {
	return m.Called(ctx, key, value).Error(0)
}

type mockProcedures struct{ mock.Mock }

func (m *mockProcedures) ApproveRequest(ctx context.Context, requestID uuid.UUID, build func(req *domain.LoanRequest, clientID uuid.UUID) (*domain.Loan, error)) (*domain.Client, *domain.Loan, error) {
	args := m.Called(ctx, requestID, build)
	var client *domain.Client
	var loan *domain.Loan
	if args.Get(0) != nil {
		client = args.Get(0).(*domain.Client)
	}
	if args.Get(1) != nil {
		loan = args.Get(1).(*domain.Loan)
	}
	return client, loan, args.Error(2)
}
func (m *mockProcedures) CreateClientAndLoan(ctx context.Context, client *domain.Client, loan *domain.Loan) (*domain.Client, error) {
	args := m.Called(ctx, client, loan)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Client), args.Error(1)
}
func (m *mockProcedures) RegisterPayment(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Loan), args.Error(1)
}

// fakeFileStore is an in-memory FileStore; failKey makes one Put fail to
// exercise the all-or-nothing upload path.
type fakeFileStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	failKey string
}

func newFakeFileStore() *fakeFileStore {
	return &fakeFileStore{files: make(map[string][]byte)}
}

func (f *fakeFileStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failKey != "" && strings.Contains(key, f.failKey) {
		return "", fmt.Errorf("disk full")
	}
	f.files[key] = data
	return f.URL(key), nil
}

func (f *fakeFileStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[key]
	if !ok {
		return nil, pkgerrors.ErrFileNotFound
	}
	return data, nil
}

func (f *fakeFileStore) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

func (f *fakeFileStore) DeletePrefix(ctx context.Context, prefix string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.files {
		if strings.HasPrefix(key, prefix) {
			delete(f.files, key)
		}
	}
	return nil
}

func (f *fakeFileStore) URL(key string) string { return "http://files.test/" + key }

func (f *fakeFileStore) KeyFromURL(url string) string {
	return strings.TrimPrefix(url, "http://files.test/")
}

func (f *fakeFileStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

// fakeFeed records published events in order.
type fakeFeed struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (f *fakeFeed) Publish(ev realtime.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeFeed) byEntity(entity realtime.Entity, kind realtime.EventType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ev := range f.events {
		if ev.Entity == entity && ev.Type == kind {
			n++
		}
	}
	return n
}

type fakeNotifier struct {
	mu       sync.Mutex
	subjects []string
}

func (f *fakeNotifier) Enabled() bool { return true }

func (f *fakeNotifier) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subjects = append(f.subjects, subject)
	return nil
}

type fakeContracts struct{}

func (fakeContracts) Contract(client *domain.Client, loan *domain.Loan, signature []byte) ([]byte, error) {
	return []byte("%PDF-fake"), nil
}

type testEnv struct {
	clients    *mockClientRepo
	loans      *mockLoanRepo
	requests   *mockRequestRepo
	accounting *mockAccountingRepo
	meta       *mockMetaRepo
	procedures *mockProcedures
	files      *fakeFileStore
	feed       *fakeFeed
	notifier   *fakeNotifier
	svc        *Service
}

func newTestEnv() *testEnv {
	env := &testEnv{
		clients:    new(mockClientRepo),
		loans:      new(mockLoanRepo),
		requests:   new(mockRequestRepo),
		accounting: new(mockAccountingRepo),
		meta:       new(mockMetaRepo),
		procedures: new(mockProcedures),
		files:      newFakeFileStore(),
		feed:       new(fakeFeed),
		notifier:   new(fakeNotifier),
	}
	env.svc = NewService(
		env.clients, env.loans, env.requests, env.accounting, env.meta,
		env.procedures, env.files, env.feed, fakeContracts{}, env.notifier,
		logger.NewNop(),
		Config{DefaultAnnualRatePercent: d("96"), NotifyTo: "office@example.com"},
	)
	return env
}

func submitInput() *SubmitRequestInput {
	return &SubmitRequestInput{
		Name:       "Marta Diaz",
		IDNumber:   "V-12345678",
		Phone:      "+58 412 5550123",
		Address:    "Calle 5, Barquisimeto",
		Amount:     d("1000"),
		TermMonths: 12,
		IDFront:    Upload{Name: "front.jpg", Data: []byte("f")},
		IDBack:     Upload{Name: "back.jpg", Data: []byte("b")},
		Signature:  Upload{Name: "sig.png", Data: []byte("s")},
	}
}

func TestSubmitRequest(t *testing.T) {
	env := newTestEnv()
	env.requests.On("ExistsOpenByIDNumber", mock.Anything, "V-12345678").Return(false, nil)
	env.requests.On("Create", mock.Anything, mock.MatchedBy(func(req *domain.LoanRequest) bool {
		return req.Status == domain.RequestStatusPending &&
			req.IDFrontURL != nil && req.IDBackURL != nil && req.SignatureURL != nil
	})).Return(nil)

	req, err := env.svc.SubmitRequest(context.Background(), submitInput())
	require.NoError(t, err)

	assert.Equal(t, 3, env.files.count())
	assert.Contains(t, *req.IDFrontURL, "requests/"+req.ID.String()+"/id_front.jpg")
	assert.Equal(t, 1, env.feed.byEntity(realtime.EntityRequest, realtime.EventCreated))
	assert.Contains(t, env.notifier.subjects, "New loan request")
	env.requests.AssertExpectations(t)
}

func TestSubmitRequestDuplicate(t *testing.T) {
	env := newTestEnv()
	env.requests.On("ExistsOpenByIDNumber", mock.Anything, "V-12345678").Return(true, nil)

	_, err := env.svc.SubmitRequest(context.Background(), submitInput())
	assert.ErrorIs(t, err, pkgerrors.ErrDuplicateRequest)
	assert.Zero(t, env.files.count(), "no documents may be stored for a rejected duplicate")
}

func TestSubmitRequestUploadFailureRollsBack(t *testing.T) {
	env := newTestEnv()
	env.files.failKey = "signature"
	env.requests.On("ExistsOpenByIDNumber", mock.Anything, "V-12345678").Return(false, nil)

	_, err := env.svc.SubmitRequest(context.Background(), submitInput())
	require.Error(t, err)

	assert.Zero(t, env.files.count(), "earlier uploads must be removed when one fails")
	env.requests.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Zero(t, env.feed.byEntity(realtime.EntityRequest, realtime.EventCreated))
}

func TestSubmitRequestMissingDocument(t *testing.T) {
	env := newTestEnv()
	env.requests.On("ExistsOpenByIDNumber", mock.Anything, "V-12345678").Return(false, nil)

	input := submitInput()
	input.Signature = Upload{}

	_, err := env.svc.SubmitRequest(context.Background(), input)
	assert.ErrorIs(t, err, pkgerrors.ErrFileUploadFailed)
	assert.Zero(t, env.files.count())
}

func TestReviewRequestAlreadyTaken(t *testing.T) {
	env := newTestEnv()
	id := uuid.New()
	env.requests.On("TransitionStatus", mock.Anything, id, domain.RequestStatusPending, domain.RequestStatusUnderReview).
		Return(pkgerrors.ErrRequestAlreadyTaken)

	_, err := env.svc.ReviewRequest(context.Background(), id)
	assert.ErrorIs(t, err, pkgerrors.ErrRequestAlreadyTaken)
}

func TestApproveRequestComputesFiguresServerSide(t *testing.T) {
	env := newTestEnv()
	requestID := uuid.New()
	clientID := uuid.New()
	sigURL := "http://files.test/requests/" + requestID.String() + "/signature.png"

	env.meta.On("Get", mock.Anything, domain.MetaKeyAnnualRate).Return("", pkgerrors.ErrMetaNotFound)
	env.loans.On("Update", mock.Anything, mock.Anything).Return(nil)

	approvedLoan := &domain.Loan{
		ID:         uuid.New(),
		ClientID:   clientID,
		Amount:     d("1000"),
		TermMonths: 12,
		Status:     domain.LoanStatusPending,
	}

	// The procedures mock drives the build callback the way the real
	// transaction would, with the request row read under lock.
	env.procedures.On("ApproveRequest", mock.Anything, requestID, mock.Anything).
		Return(&domain.Client{ID: clientID, Name: "Marta Diaz"}, approvedLoan, nil).
		Run(func(args mock.Arguments) {
			build := args.Get(2).(func(*domain.LoanRequest, uuid.UUID) (*domain.Loan, error))
			loan, err := build(&domain.LoanRequest{
				ID:           requestID,
				Amount:       d("1000"),
				TermMonths:   12,
				SignatureURL: &sigURL,
				Status:       domain.RequestStatusUnderReview,
			}, clientID)
			require.NoError(t, err)

			// 96% APR over 12 months: the annuity figures, not whatever the
			// client sent.
			payment, _ := loan.MonthlyPayment.Float64()
			assert.InDelta(t, 132.695, payment, 0.001)
			require.NotNil(t, loan.TotalRepayment)
			assert.Equal(t, domain.LoanStatusPending, loan.Status)
			assert.Equal(t, clientID, loan.ClientID)
			assert.Equal(t, &sigURL, loan.SignatureURL)
		})

	client, _, err := env.svc.ApproveRequest(context.Background(), requestID)
	require.NoError(t, err)
	assert.Equal(t, clientID, client.ID)

	assert.Equal(t, 1, env.feed.byEntity(realtime.EntityClient, realtime.EventCreated))
	assert.Equal(t, 1, env.feed.byEntity(realtime.EntityRequest, realtime.EventDeleted))
	env.procedures.AssertExpectations(t)
}

func TestDenyRequestDirectFromPending(t *testing.T) {
	env := newTestEnv()
	id := uuid.New()
	env.requests.On("FindByID", mock.Anything, id).Return(&domain.LoanRequest{
		ID:     id,
		Status: domain.RequestStatusPending,
	}, nil)
	env.requests.On("Delete", mock.Anything, id).Return(nil)

	// Review is optional, a pending request can be denied on the spot.
	require.NoError(t, env.svc.DenyRequest(context.Background(), id))
	assert.Equal(t, 1, env.feed.byEntity(realtime.EntityRequest, realtime.EventDeleted))
}

func TestDenyRequestRemovesDocuments(t *testing.T) {
	env := newTestEnv()
	id := uuid.New()
	_, err := env.files.Put(context.Background(), "requests/"+id.String()+"/id_front.jpg", []byte("f"))
	require.NoError(t, err)

	env.requests.On("FindByID", mock.Anything, id).Return(&domain.LoanRequest{
		ID:     id,
		Status: domain.RequestStatusUnderReview,
	}, nil)
	env.requests.On("Delete", mock.Anything, id).Return(nil)

	require.NoError(t, env.svc.DenyRequest(context.Background(), id))
	assert.Zero(t, env.files.count())
	assert.Equal(t, 1, env.feed.byEntity(realtime.EntityRequest, realtime.EventDeleted))
}

func TestRegisterPaymentSettlesLoan(t *testing.T) {
	env := newTestEnv()
	loanID := uuid.New()
	settled := &domain.Loan{
		ID:           loanID,
		TermMonths:   12,
		PaymentsMade: 12,
		Status:       domain.LoanStatusPaid,
	}
	env.procedures.On("RegisterPayment", mock.Anything, loanID).Return(settled, nil)

	loan, err := env.svc.RegisterPayment(context.Background(), loanID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPaid, loan.Status)
	assert.Equal(t, 1, env.feed.byEntity(realtime.EntityLoan, realtime.EventUpdated))
	assert.Contains(t, env.notifier.subjects, "Loan settled")
}

func TestRegisterPaymentOnPaidLoan(t *testing.T) {
	env := newTestEnv()
	loanID := uuid.New()
	env.procedures.On("RegisterPayment", mock.Anything, loanID).Return(nil, pkgerrors.ErrLoanAlreadyPaid)

	_, err := env.svc.RegisterPayment(context.Background(), loanID)
	assert.ErrorIs(t, err, pkgerrors.ErrLoanAlreadyPaid)
}

func TestDeleteClientWithActiveLoans(t *testing.T) {
	env := newTestEnv()
	clientID := uuid.New()
	env.loans.On("CountActiveByClient", mock.Anything, clientID).Return(2, nil)

	err := env.svc.DeleteClient(context.Background(), clientID)
	assert.ErrorIs(t, err, pkgerrors.ErrClientHasActiveLoans)
	env.clients.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestIsOverdue(t *testing.T) {
	start := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)
	loan := &domain.Loan{StartDate: start, Status: domain.LoanStatusPending, PaymentsMade: 0}

	// First installment is due Feb 15.
	assert.False(t, IsOverdue(loan, time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)))
	assert.True(t, IsOverdue(loan, time.Date(2026, time.February, 16, 0, 0, 0, 0, time.UTC)))

	// One payment made: next due Mar 15.
	loan.PaymentsMade = 1
	assert.False(t, IsOverdue(loan, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, IsOverdue(loan, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))

	// Paid loans are never overdue.
	loan.Status = domain.LoanStatusPaid
	assert.False(t, IsOverdue(loan, time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestEffectiveStatusFlipsBothWays(t *testing.T) {
	start := time.Date(2026, time.January, 15, 0, 0, 0, 0, time.UTC)

	// Stored overdue, but the borrower has caught up: reports pending.
	caughtUp := &domain.Loan{StartDate: start, Status: domain.LoanStatusOverdue, PaymentsMade: 3}
	assert.Equal(t, domain.LoanStatusPending,
		EffectiveStatus(caughtUp, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)))

	// Stored pending, due date passed: reports overdue.
	behind := &domain.Loan{StartDate: start, Status: domain.LoanStatusPending, PaymentsMade: 0}
	assert.Equal(t, domain.LoanStatusOverdue,
		EffectiveStatus(behind, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)))

	// Paid is sticky.
	paid := &domain.Loan{StartDate: start, Status: domain.LoanStatusPaid, PaymentsMade: 10}
	assert.Equal(t, domain.LoanStatusPaid,
		EffectiveStatus(paid, time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestGetLoanReportsDerivedStatus(t *testing.T) {
	env := newTestEnv()
	loanID := uuid.New()

	// The sweep marked the loan, then payments caught up; the read must
	// not keep serving the stale stored status.
	env.loans.On("FindByID", mock.Anything, loanID).Return(&domain.Loan{
		ID:           loanID,
		Status:       domain.LoanStatusOverdue,
		StartDate:    time.Now().UTC(),
		PaymentsMade: 0,
		TermMonths:   10,
	}, nil)

	loan, err := env.svc.GetLoan(context.Background(), loanID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPending, loan.Status)
}

func TestSetLoanStatusClosesIndefiniteLoan(t *testing.T) {
	env := newTestEnv()
	loanID := uuid.New()
	env.loans.On("FindByID", mock.Anything, loanID).Return(&domain.Loan{
		ID:           loanID,
		TermMonths:   0,
		PaymentsMade: 18,
		Status:       domain.LoanStatusPending,
	}, nil)
	env.loans.On("UpdateStatus", mock.Anything, loanID, domain.LoanStatusPaid).Return(nil)

	loan, err := env.svc.SetLoanStatus(context.Background(), loanID, domain.LoanStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusPaid, loan.Status)
	assert.Equal(t, 1, env.feed.byEntity(realtime.EntityLoan, realtime.EventUpdated))
}

func TestSetLoanStatusRejectsManualSettleOfTermLoan(t *testing.T) {
	env := newTestEnv()
	loanID := uuid.New()
	env.loans.On("FindByID", mock.Anything, loanID).Return(&domain.Loan{
		ID:           loanID,
		TermMonths:   12,
		PaymentsMade: 5,
		Status:       domain.LoanStatusPending,
	}, nil)

	_, err := env.svc.SetLoanStatus(context.Background(), loanID, domain.LoanStatusPaid)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidStatusChange)
	env.loans.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestSweepOverdueWalksFullBook(t *testing.T) {
	env := newTestEnv()
	now := time.Now().UTC()
	late := domain.Loan{
		ID:        uuid.New(),
		Status:    domain.LoanStatusPending,
		StartDate: now.AddDate(0, -3, 0),
	}
	current := domain.Loan{
		ID:        uuid.New(),
		Status:    domain.LoanStatusPending,
		StartDate: now.AddDate(0, 0, -5),
	}
	alreadyMarked := domain.Loan{
		ID:        uuid.New(),
		Status:    domain.LoanStatusOverdue,
		StartDate: now.AddDate(0, -6, 0),
	}
	settled := domain.Loan{
		ID:        uuid.New(),
		Status:    domain.LoanStatusPaid,
		StartDate: now.AddDate(-1, 0, 0),
	}

	// The sweep reads the unpaginated book; a paged read would strand the
	// oldest loans past the first page.
	env.loans.On("ListAll", mock.Anything).
		Return([]domain.Loan{late, current, alreadyMarked, settled}, nil)
	env.loans.On("UpdateStatus", mock.Anything, late.ID, domain.LoanStatusOverdue).Return(nil)

	marked, err := env.svc.SweepOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	env.loans.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	env.loans.AssertNotCalled(t, "UpdateStatus", mock.Anything, current.ID, mock.Anything)
	env.loans.AssertNotCalled(t, "UpdateStatus", mock.Anything, alreadyMarked.ID, mock.Anything)
}

func TestAnnualRatePrefersMeta(t *testing.T) {
	env := newTestEnv()
	env.meta.On("Get", mock.Anything, domain.MetaKeyAnnualRate).Return("48", nil)

	rate := env.svc.AnnualRate(context.Background())
	assert.True(t, d("48").Equal(rate))
}

func TestAnnualRateFallsBackOnMalformedMeta(t *testing.T) {
	env := newTestEnv()
	env.meta.On("Get", mock.Anything, domain.MetaKeyAnnualRate).Return("ninety-six", nil)

	rate := env.svc.AnnualRate(context.Background())
	assert.True(t, d("96").Equal(rate))
}

func TestCreateEntryRejectsNonPositiveAmount(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.CreateEntry(context.Background(), &CreateEntryInput{
		Type:        domain.EntryTypeIncome,
		Amount:      d("-5"),
		Description: "bad entry",
	}, uuid.New())
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidLoanInput)
}

func TestCreateEntryPublishes(t *testing.T) {
	env := newTestEnv()
	env.accounting.On("Create", mock.Anything, mock.MatchedBy(func(e *domain.AccountingEntry) bool {
		return e.Type == domain.EntryTypeCapitalInjection && e.CreatedBy != nil
	})).Return(nil)

	entry, err := env.svc.CreateEntry(context.Background(), &CreateEntryInput{
		Type:        domain.EntryTypeCapitalInjection,
		Amount:      d("5000"),
		Description: "owner top-up",
	}, uuid.New())
	require.NoError(t, err)
	assert.False(t, entry.EntryDate.IsZero())
	assert.Equal(t, 1, env.feed.byEntity(realtime.EntityEntry, realtime.EventCreated))
}

func TestUpdateEntryRewritesLedgerLine(t *testing.T) {
	env := newTestEnv()
	entryID := uuid.New()
	author := uuid.New()
	env.accounting.On("FindByID", mock.Anything, entryID).Return(&domain.AccountingEntry{
		ID:          entryID,
		Type:        domain.EntryTypeIncome,
		Amount:      d("100"),
		Description: "typo",
		CreatedBy:   &author,
	}, nil)
	env.accounting.On("Update", mock.Anything, mock.MatchedBy(func(e *domain.AccountingEntry) bool {
		return e.ID == entryID && e.Type == domain.EntryTypeExpense && e.Amount.Equal(d("150"))
	})).Return(nil)

	entry, err := env.svc.UpdateEntry(context.Background(), entryID, &CreateEntryInput{
		Type:        domain.EntryTypeExpense,
		Amount:      d("150"),
		Description: "office rent",
	})
	require.NoError(t, err)
	assert.Equal(t, "office rent", entry.Description)
	// Edits keep the original author on record.
	assert.Equal(t, &author, entry.CreatedBy)
	assert.Equal(t, 1, env.feed.byEntity(realtime.EntityEntry, realtime.EventUpdated))
}

func TestLookupRequestStatus(t *testing.T) {
	env := newTestEnv()
	env.requests.On("FindLatestByIDNumber", mock.Anything, "V-12345678").Return(&domain.LoanRequest{
		ID:          uuid.New(),
		Name:        "Marta Diaz",
		Status:      domain.RequestStatusUnderReview,
		RequestDate: time.Now(),
	}, nil)

	view, err := env.svc.LookupRequestStatus(context.Background(), "V-12345678")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusUnderReview, view.Status)
}

func TestArchiveLoanRemovesContract(t *testing.T) {
	env := newTestEnv()
	loanID := uuid.New()
	contractKey := "contracts/" + loanID.String() + ".pdf"
	url, err := env.files.Put(context.Background(), contractKey, []byte("%PDF-"))
	require.NoError(t, err)

	env.loans.On("FindByID", mock.Anything, loanID).Return(&domain.Loan{
		ID:             loanID,
		ContractPDFURL: &url,
	}, nil)
	env.loans.On("Delete", mock.Anything, loanID).Return(nil)

	require.NoError(t, env.svc.ArchiveLoan(context.Background(), loanID))
	assert.Zero(t, env.files.count())
	assert.Equal(t, 1, env.feed.byEntity(realtime.EntityLoan, realtime.EventDeleted))
}
