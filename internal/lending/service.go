// Package lending implements the back-office workflows: loan request
// intake and review, origination, payment registration, portfolio status
// and the accounting ledger.
package lending

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"microlend/internal/domain"
	"microlend/internal/finance"
	"microlend/internal/realtime"
	"microlend/pkg/logger"
)

// ClientRepository is the client persistence the service depends on.
// Client rows are only ever created inside the origination procedures, so
// there is no Create here.
type ClientRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Client, error)
	List(ctx context.Context, search string, limit, offset int) ([]*domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LoanRepository is the loan persistence the service depends on.
type LoanRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	List(ctx context.Context, status domain.LoanStatus, limit, offset int) ([]*domain.Loan, error)
	ListAll(ctx context.Context) ([]domain.Loan, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Loan, error)
	CountActiveByClient(ctx context.Context, clientID uuid.UUID) (int, error)
	Update(ctx context.Context, loan *domain.Loan) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LoanStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RequestRepository is the loan request persistence the service depends on.
type RequestRepository interface {
	Create(ctx context.Context, req *domain.LoanRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.LoanRequest, error)
	List(ctx context.Context, status domain.RequestStatus, limit, offset int) ([]*domain.LoanRequest, error)
	FindLatestByIDNumber(ctx context.Context, idNumber string) (*domain.LoanRequest, error)
	ExistsOpenByIDNumber(ctx context.Context, idNumber string) (bool, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.RequestStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// AccountingRepository is the ledger persistence the service depends on.
type AccountingRepository interface {
	Create(ctx context.Context, entry *domain.AccountingEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.AccountingEntry, error)
	Update(ctx context.Context, entry *domain.AccountingEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MetaRepository reads and writes app-level settings.
type MetaRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// TxProcedures are the multi-table writes that must land atomically.
type TxProcedures interface {
	ApproveRequest(ctx context.Context, requestID uuid.UUID, build func(req *domain.LoanRequest, clientID uuid.UUID) (*domain.Loan, error)) (*domain.Client, *domain.Loan, error)
	CreateClientAndLoan(ctx context.Context, client *domain.Client, loan *domain.Loan) (*domain.Client, error)
	RegisterPayment(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error)
}

// FileStore holds applicant documents and generated PDFs.
type FileStore interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error
	URL(key string) string
	KeyFromURL(url string) string
}

// Publisher pushes change events to the realtime feed.
type Publisher interface {
	Publish(ev realtime.Event)
}

// ContractRenderer produces the signed contract PDF for a new loan.
type ContractRenderer interface {
	Contract(client *domain.Client, loan *domain.Loan, signature []byte) ([]byte, error)
}

// Notifier sends operational emails. Notifications are best effort and
// never fail the underlying operation.
type Notifier interface {
	Enabled() bool
	Send(to, subject, body string) error
}

// Service wires the lending workflows together.
type Service struct {
	clients    ClientRepository
	loans      LoanRepository
	requests   RequestRepository
	accounting AccountingRepository
	meta       MetaRepository
	procedures TxProcedures
	files      FileStore
	feed       Publisher
	contracts  ContractRenderer
	notifier   Notifier
	logger     logger.Logger

	defaultAnnualRate decimal.Decimal
	notifyTo          string
}

type Config struct {
	DefaultAnnualRatePercent decimal.Decimal
	NotifyTo                 string
}

func NewService(
	clients ClientRepository,
	loans LoanRepository,
	requests RequestRepository,
	accounting AccountingRepository,
	meta MetaRepository,
	procedures TxProcedures,
	files FileStore,
	feed Publisher,
	contracts ContractRenderer,
	notifier Notifier,
	log logger.Logger,
	cfg Config,
) *Service {
	return &Service{
		clients:           clients,
		loans:             loans,
		requests:          requests,
		accounting:        accounting,
		meta:              meta,
		procedures:        procedures,
		files:             files,
		feed:              feed,
		contracts:         contracts,
		notifier:          notifier,
		logger:            log,
		defaultAnnualRate: cfg.DefaultAnnualRatePercent,
		notifyTo:          cfg.NotifyTo,
	}
}

// AnnualRate returns the configured annual interest rate, preferring the
// value stored in app meta over the deployment default.
func (s *Service) AnnualRate(ctx context.Context) decimal.Decimal {
	raw, err := s.meta.Get(ctx, domain.MetaKeyAnnualRate)
	if err == nil {
		if rate, perr := decimal.NewFromString(raw); perr == nil && !rate.IsNegative() {
			return rate
		}
		s.logger.Warn("Ignoring malformed annual rate in app meta", map[string]interface{}{
			"value": raw,
		})
	}
	return s.defaultAnnualRate
}

// Quote computes payment figures for a prospective loan without persisting
// anything.
func (s *Service) Quote(ctx context.Context, amount decimal.Decimal, termMonths int) (*finance.LoanParameters, error) {
	return finance.CalculateLoanParameters(amount, termMonths, s.AnnualRate(ctx))
}

// SolveTerm finds the shortest whole-month term whose payment fits the
// requested monthly budget.
func (s *Service) SolveTerm(ctx context.Context, amount, targetPayment decimal.Decimal) (*finance.TermSolution, error) {
	monthlyRate := s.AnnualRate(ctx).Div(decimal.NewFromInt(12))
	return finance.SolveTermForDesiredPayment(amount, monthlyRate, targetPayment, nowUTC())
}

func (s *Service) notify(subject, body string) {
	if s.notifier == nil || !s.notifier.Enabled() || s.notifyTo == "" {
		return
	}
	if err := s.notifier.Send(s.notifyTo, subject, body); err != nil {
		s.logger.Warn("Notification email failed", map[string]interface{}{
			"subject": subject,
			"error":   err.Error(),
		})
	}
}

func (s *Service) publish(ev realtime.Event) {
	if s.feed != nil {
		s.feed.Publish(ev)
	}
}
