package lending

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"microlend/internal/domain"
	"microlend/internal/finance"
	"microlend/internal/realtime"
	"microlend/pkg/errors"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// CreateLoanInput originates a loan for a walk-in borrower, creating the
// client record when the document number is new.
type CreateLoanInput struct {
	Name       string          `json:"name" validate:"required,min=2,max=120"`
	IDNumber   string          `json:"id_number" validate:"required,id_number"`
	Phone      string          `json:"phone" validate:"required,min=7,max=20"`
	Email      string          `json:"email" validate:"omitempty,email"`
	Address    string          `json:"address" validate:"required,min=5,max=250"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	TermMonths int             `json:"term_months" validate:"gte=0,lte=120"`
}

// CreateClientAndLoan originates a loan directly from the back office.
// Payment figures come from the amortization engine, never from the
// request payload.
func (s *Service) CreateClientAndLoan(ctx context.Context, input *CreateLoanInput) (*domain.Client, *domain.Loan, error) {
	annualRate := s.AnnualRate(ctx)
	params, err := finance.CalculateLoanParameters(input.Amount, input.TermMonths, annualRate)
	if err != nil {
		return nil, nil, err
	}

	now := nowUTC()
	client := &domain.Client{
		ID:        uuid.New(),
		Name:      input.Name,
		IDNumber:  input.IDNumber,
		Phone:     input.Phone,
		Email:     input.Email,
		Address:   input.Address,
		JoinDate:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	loan := &domain.Loan{
		ID:             uuid.New(),
		ClientID:       client.ID,
		Amount:         input.Amount,
		InterestRate:   annualRate,
		TermMonths:     input.TermMonths,
		StartDate:      now,
		Status:         domain.LoanStatusPending,
		MonthlyPayment: params.MonthlyPayment,
		TotalRepayment: params.TotalRepayment,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	client, err = s.procedures.CreateClientAndLoan(ctx, client, loan)
	if err != nil {
		return nil, nil, err
	}

	s.attachContract(ctx, client, loan)

	s.logger.Info("Loan originated", map[string]interface{}{
		"client_id": client.ID.String(),
		"loan_id":   loan.ID.String(),
		"amount":    loan.Amount.String(),
	})

	s.publish(realtime.ClientCreated(client))
	s.publish(realtime.LoanCreated(loan))

	return client, loan, nil
}

// RegisterPayment records one received installment. It is not idempotent:
// every call counts a real payment, and paying a settled loan is an error.
func (s *Service) RegisterPayment(ctx context.Context, loanID uuid.UUID) (*domain.Loan, error) {
	loan, err := s.procedures.RegisterPayment(ctx, loanID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment registered", map[string]interface{}{
		"loan_id":       loan.ID.String(),
		"payments_made": loan.PaymentsMade,
		"status":        string(loan.Status),
	})

	s.publish(realtime.LoanUpdated(loan))

	if loan.Status == domain.LoanStatusPaid {
		s.notify("Loan settled",
			fmt.Sprintf("Loan %s is fully repaid after %d payments.", loan.ID, loan.PaymentsMade))
	}

	return loan, nil
}

// IsOverdue derives whether a loan has missed an installment as of now:
// the borrower is late once the due date of the next expected payment has
// passed. Paid loans are never overdue.
func IsOverdue(loan *domain.Loan, now time.Time) bool {
	if loan.Status == domain.LoanStatusPaid {
		return false
	}
	nextDue := finance.AddMonths(loan.StartDate, loan.PaymentsMade+1)
	return now.After(nextDue)
}

// EffectiveStatus is the status a loan reports right now. Paid is sticky;
// pending and overdue flip both ways off the due date comparison, whatever
// the stored column says.
func EffectiveStatus(loan *domain.Loan, now time.Time) domain.LoanStatus {
	if loan.Status == domain.LoanStatusPaid {
		return domain.LoanStatusPaid
	}
	if IsOverdue(loan, now) {
		return domain.LoanStatusOverdue
	}
	return domain.LoanStatusPending
}

// SweepOverdue walks the whole book, unpaginated, and materializes the
// overdue flag for loans whose next payment date has passed. Reads do not
// depend on it; they derive the status themselves. It returns the number
// of loans marked.
func (s *Service) SweepOverdue(ctx context.Context) (int, error) {
	book, err := s.loans.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	now := nowUTC()
	marked := 0
	for i := range book {
		loan := &book[i]
		if loan.Status != domain.LoanStatusPending || !IsOverdue(loan, now) {
			continue
		}
		if err := s.loans.UpdateStatus(ctx, loan.ID, domain.LoanStatusOverdue); err != nil {
			s.logger.Error("Failed to mark loan overdue", map[string]interface{}{
				"loan_id": loan.ID.String(),
				"error":   err.Error(),
			})
			continue
		}
		loan.Status = domain.LoanStatusOverdue
		s.publish(realtime.LoanUpdated(loan))
		marked++
	}

	if marked > 0 {
		s.logger.Info("Overdue sweep finished", map[string]interface{}{
			"marked": marked,
		})
	}

	return marked, nil
}

// GetLoan returns one loan with its status derived as of now.
func (s *Service) GetLoan(ctx context.Context, id uuid.UUID) (*domain.Loan, error) {
	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	loan.Status = EffectiveStatus(loan, nowUTC())
	return loan, nil
}

// ListLoans returns loans, optionally filtered by status. The filter
// matches the stored column; each returned row still reports its derived
// status.
func (s *Service) ListLoans(ctx context.Context, status domain.LoanStatus, limit, offset int) ([]*domain.Loan, error) {
	loans, err := s.loans.List(ctx, status, limit, offset)
	if err != nil {
		return nil, err
	}
	now := nowUTC()
	for _, loan := range loans {
		loan.Status = EffectiveStatus(loan, now)
	}
	return loans, nil
}

// SetLoanStatus applies a manual status edit. Indefinite loans have no
// terminal payment count, so closing one is exactly this edit. Term loans
// settle through payment registration only; moving one into or out of
// paid by hand is rejected.
func (s *Service) SetLoanStatus(ctx context.Context, id uuid.UUID, status domain.LoanStatus) (*domain.Loan, error) {
	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch status {
	case domain.LoanStatusPending, domain.LoanStatusOverdue, domain.LoanStatusPaid:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", errors.ErrInvalidLoanInput, status)
	}
	if !loan.Indefinite() &&
		(status == domain.LoanStatusPaid) != (loan.Status == domain.LoanStatusPaid) {
		return nil, errors.ErrInvalidStatusChange
	}

	if err := s.loans.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	loan.Status = status
	loan.UpdatedAt = nowUTC()
	s.publish(realtime.LoanUpdated(loan))

	s.logger.Info("Loan status edited", map[string]interface{}{
		"loan_id": id.String(),
		"status":  string(status),
	})

	return loan, nil
}

// Schedule renders the full amortization schedule for a term loan, from
// the first period.
func (s *Service) Schedule(ctx context.Context, loanID uuid.UUID) ([]finance.ScheduleRow, error) {
	loan, err := s.loans.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if loan.Indefinite() {
		return nil, fmt.Errorf("%w: indefinite loans have no fixed schedule", errors.ErrInvalidLoanInput)
	}

	monthlyRate := loan.InterestRate.Div(decimal.NewFromInt(12))
	return finance.BuildSchedule(loan.Amount, monthlyRate, loan.MonthlyPayment, loan.TermMonths, loan.StartDate), nil
}

// ArchiveLoan removes a loan and its generated contract. The row is gone
// for good; the UI asks for confirmation, not this service.
func (s *Service) ArchiveLoan(ctx context.Context, id uuid.UUID) error {
	loan, err := s.loans.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.loans.Delete(ctx, id); err != nil {
		return err
	}

	if loan.ContractPDFURL != nil {
		if key := s.files.KeyFromURL(*loan.ContractPDFURL); key != "" {
			if err := s.files.Delete(ctx, key); err != nil {
				s.logger.Warn("Failed to remove contract file", map[string]interface{}{
					"loan_id": id.String(),
					"error":   err.Error(),
				})
			}
		}
	}

	s.publish(realtime.LoanDeleted(id))

	s.logger.Info("Loan archived", map[string]interface{}{
		"loan_id": id.String(),
	})

	return nil
}
