package lending

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"microlend/internal/domain"
	"microlend/internal/finance"
	"microlend/internal/realtime"
	"microlend/pkg/errors"
)

// Upload is one applicant document received with a request.
type Upload struct {
	Name string // file name as sent by the client, used for its extension
	Data []byte
}

// SubmitRequestInput is the public intake payload. All three documents are
// required; the request is only created once every upload has landed.
type SubmitRequestInput struct {
	Name       string          `json:"name" validate:"required,min=2,max=120"`
	IDNumber   string          `json:"id_number" validate:"required,id_number"`
	Phone      string          `json:"phone" validate:"required,min=7,max=20"`
	Email      string          `json:"email" validate:"omitempty,email"`
	Address    string          `json:"address" validate:"required,min=5,max=250"`
	Amount     decimal.Decimal `json:"amount" validate:"required"`
	TermMonths int             `json:"term_months" validate:"gte=0,lte=120"`

	IDFront   Upload `json:"-"`
	IDBack    Upload `json:"-"`
	Signature Upload `json:"-"`
}

// SubmitRequest files a new loan request from the public intake form.
// Document uploads are all-or-nothing: if any of the three fails, the ones
// already stored are removed and no request row is written.
func (s *Service) SubmitRequest(ctx context.Context, input *SubmitRequestInput) (*domain.LoanRequest, error) {
	if !input.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", errors.ErrInvalidLoanInput)
	}

	exists, err := s.requests.ExistsOpenByIDNumber(ctx, input.IDNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.ErrDuplicateRequest
	}

	id := uuid.New()
	prefix := "requests/" + id.String()

	now := time.Now().UTC()
	req := &domain.LoanRequest{
		ID:          id,
		Name:        strings.TrimSpace(input.Name),
		IDNumber:    strings.TrimSpace(input.IDNumber),
		Phone:       strings.TrimSpace(input.Phone),
		Email:       strings.TrimSpace(input.Email),
		Address:     strings.TrimSpace(input.Address),
		Amount:      input.Amount,
		TermMonths:  input.TermMonths,
		Status:      domain.RequestStatusPending,
		RequestDate: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	uploads := []struct {
		slot   string
		upload Upload
		target **string
	}{
		{"id_front", input.IDFront, &req.IDFrontURL},
		{"id_back", input.IDBack, &req.IDBackURL},
		{"signature", input.Signature, &req.SignatureURL},
	}

	for _, u := range uploads {
		if len(u.upload.Data) == 0 {
			s.cleanupRequestFiles(ctx, prefix)
			return nil, fmt.Errorf("%w: missing %s document", errors.ErrFileUploadFailed, u.slot)
		}
		key := prefix + "/" + u.slot + extensionOf(u.upload.Name)
		url, err := s.files.Put(ctx, key, u.upload.Data)
		if err != nil {
			s.cleanupRequestFiles(ctx, prefix)
			return nil, errors.Wrap(err, "failed to store "+u.slot)
		}
		*u.target = &url
	}

	if err := s.requests.Create(ctx, req); err != nil {
		s.cleanupRequestFiles(ctx, prefix)
		return nil, err
	}

	s.logger.Info("Loan request submitted", map[string]interface{}{
		"request_id": req.ID.String(),
		"amount":     req.Amount.String(),
		"term":       req.TermMonths,
	})

	s.publish(realtime.RequestCreated(req))
	s.notify("New loan request",
		fmt.Sprintf("%s requested %s over %d months.", req.Name, req.Amount.StringFixed(2), req.TermMonths))

	return req, nil
}

// ReviewRequest claims a pending request for review. A second reviewer
// hitting the same request gets ErrRequestAlreadyTaken.
func (s *Service) ReviewRequest(ctx context.Context, id uuid.UUID) (*domain.LoanRequest, error) {
	err := s.requests.TransitionStatus(ctx, id, domain.RequestStatusPending, domain.RequestStatusUnderReview)
	if err != nil {
		return nil, err
	}

	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.publish(realtime.RequestUpdated(req))
	return req, nil
}

// ApproveRequest turns a request into a client and an active loan.
// Review is optional, so pending requests qualify too. The payment
// figures are recomputed server side from the current rate; whatever a
// tampered client submitted is ignored.
func (s *Service) ApproveRequest(ctx context.Context, id uuid.UUID) (*domain.Client, *domain.Loan, error) {
	annualRate := s.AnnualRate(ctx)

	client, loan, err := s.procedures.ApproveRequest(ctx, id, func(req *domain.LoanRequest, clientID uuid.UUID) (*domain.Loan, error) {
		params, err := finance.CalculateLoanParameters(req.Amount, req.TermMonths, annualRate)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		return &domain.Loan{
			ID:             uuid.New(),
			ClientID:       clientID,
			Amount:         req.Amount,
			InterestRate:   annualRate,
			TermMonths:     req.TermMonths,
			StartDate:      now,
			Status:         domain.LoanStatusPending,
			MonthlyPayment: params.MonthlyPayment,
			TotalRepayment: params.TotalRepayment,
			SignatureURL:   req.SignatureURL,
			CreatedAt:      now,
			UpdatedAt:      now,
		}, nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.attachContract(ctx, client, loan)

	s.logger.Info("Loan request approved", map[string]interface{}{
		"request_id": id.String(),
		"client_id":  client.ID.String(),
		"loan_id":    loan.ID.String(),
	})

	s.publish(realtime.ClientCreated(client))
	s.publish(realtime.LoanCreated(loan))
	s.publish(realtime.RequestDeleted(id))
	s.notify("Loan approved",
		fmt.Sprintf("Loan of %s for %s was approved.", loan.Amount.StringFixed(2), client.Name))

	return client, loan, nil
}

// DenyRequest removes a request along with its stored documents. Review
// is optional: pending requests can be denied directly.
func (s *Service) DenyRequest(ctx context.Context, id uuid.UUID) error {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return err
	}
	switch req.Status {
	case domain.RequestStatusPending, domain.RequestStatusUnderReview:
	default:
		return errors.ErrInvalidStatusChange
	}

	if err := s.requests.Delete(ctx, id); err != nil {
		return err
	}

	s.cleanupRequestFiles(ctx, "requests/"+id.String())
	s.publish(realtime.RequestDeleted(id))

	s.logger.Info("Loan request denied", map[string]interface{}{
		"request_id": id.String(),
	})

	return nil
}

// RequestStatusView is the public lookup response. It deliberately leaks
// nothing beyond the applicant's own status.
type RequestStatusView struct {
	Status      domain.RequestStatus `json:"status"`
	RequestDate time.Time            `json:"request_date"`
}

// LookupRequestStatus lets an applicant check the newest request filed
// under their document number.
func (s *Service) LookupRequestStatus(ctx context.Context, idNumber string) (*RequestStatusView, error) {
	req, err := s.requests.FindLatestByIDNumber(ctx, idNumber)
	if err != nil {
		return nil, err
	}

	return &RequestStatusView{
		Status:      req.Status,
		RequestDate: req.RequestDate,
	}, nil
}

// ListRequests returns requests for the back office.
func (s *Service) ListRequests(ctx context.Context, status domain.RequestStatus, limit, offset int) ([]*domain.LoanRequest, error) {
	return s.requests.List(ctx, status, limit, offset)
}

func (s *Service) cleanupRequestFiles(ctx context.Context, prefix string) {
	if err := s.files.DeletePrefix(ctx, prefix); err != nil {
		s.logger.Warn("Failed to clean up request documents", map[string]interface{}{
			"prefix": prefix,
			"error":  err.Error(),
		})
	}
}

func (s *Service) attachContract(ctx context.Context, client *domain.Client, loan *domain.Loan) {
	if s.contracts == nil {
		return
	}

	var signature []byte
	if loan.SignatureURL != nil {
		if key := s.files.KeyFromURL(*loan.SignatureURL); key != "" {
			if data, err := s.files.Get(ctx, key); err == nil {
				signature = data
			}
		}
	}

	pdf, err := s.contracts.Contract(client, loan, signature)
	if err != nil {
		s.logger.Error("Contract rendering failed", map[string]interface{}{
			"loan_id": loan.ID.String(),
			"error":   err.Error(),
		})
		return
	}

	url, err := s.files.Put(ctx, "contracts/"+loan.ID.String()+".pdf", pdf)
	if err != nil {
		s.logger.Error("Failed to store contract", map[string]interface{}{
			"loan_id": loan.ID.String(),
			"error":   err.Error(),
		})
		return
	}

	loan.ContractPDFURL = &url
	if err := s.loans.Update(ctx, loan); err != nil {
		s.logger.Error("Failed to attach contract to loan", map[string]interface{}{
			"loan_id": loan.ID.String(),
			"error":   err.Error(),
		})
	}
}

func extensionOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.ToLower(name[i:])
	}
	return ".png"
}
