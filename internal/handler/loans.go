package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"microlend/internal/domain"
	"microlend/internal/lending"
	"microlend/pkg/logger"
	"microlend/pkg/validator"
)

type LoanHandler struct {
	service   *lending.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewLoanHandler(service *lending.Service, val *validator.Validator, log logger.Logger) *LoanHandler {
	return &LoanHandler{service: service, validator: val, logger: log}
}

// List returns loans, optionally filtered by status.
func (h *LoanHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 100)
	status := domain.LoanStatus(r.URL.Query().Get("status"))

	loans, err := h.service.ListLoans(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list loans", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch loans")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"loans":  loans,
		"limit":  limit,
		"offset": offset,
	})
}

// Get returns a single loan.
func (h *LoanHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid loan ID")
		return
	}

	loan, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, loan)
}

// Create originates a loan directly from the back office, creating the
// client when the ID number is new.
func (h *LoanHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input lending.CreateLoanInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&input); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	client, loan, err := h.service.CreateClientAndLoan(r.Context(), &input)
	if err != nil {
		h.logger.Error("Loan origination failed", map[string]interface{}{"error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"client": client,
		"loan":   loan,
	})
}

// RegisterPayment records one monthly payment against a loan.
func (h *LoanHandler) RegisterPayment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid loan ID")
		return
	}

	loan, err := h.service.RegisterPayment(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, loan)
}

// UpdateStatus applies a manual status edit, the only way an
// interest-only loan gets closed.
func (h *LoanHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid loan ID")
		return
	}

	var req struct {
		Status domain.LoanStatus `json:"status" validate:"required,oneof=pending paid overdue"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	loan, err := h.service.SetLoanStatus(r.Context(), id, req.Status)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, loan)
}

// Schedule returns the amortization schedule for a term loan.
func (h *LoanHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid loan ID")
		return
	}

	rows, err := h.service.Schedule(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"schedule": rows})
}

// Archive removes a settled loan and its stored contract.
func (h *LoanHandler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid loan ID")
		return
	}

	if err := h.service.ArchiveLoan(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Loan archived"})
}

// Quote computes payment figures for a prospective loan without
// persisting anything.
func (h *LoanHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount     decimal.Decimal `json:"amount" validate:"required"`
		TermMonths int             `json:"term_months" validate:"gte=0,lte=120"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	params, err := h.service.Quote(r.Context(), req.Amount, req.TermMonths)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, params)
}

// SolveTerm finds the shortest term whose monthly payment fits the
// applicant's budget.
func (h *LoanHandler) SolveTerm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount        decimal.Decimal `json:"amount" validate:"required"`
		TargetPayment decimal.Decimal `json:"target_payment" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	solution, err := h.service.SolveTerm(r.Context(), req.Amount, req.TargetPayment)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, solution)
}
