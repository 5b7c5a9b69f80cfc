package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"microlend/internal/domain"
	"microlend/internal/lending"
	"microlend/internal/middleware"
	"microlend/internal/realtime"
	"microlend/pkg/logger"
	"microlend/pkg/validator"
)

type AccountingHandler struct {
	service   *lending.Service
	store     *realtime.Store
	validator *validator.Validator
	logger    logger.Logger
}

func NewAccountingHandler(service *lending.Service, store *realtime.Store, val *validator.Validator, log logger.Logger) *AccountingHandler {
	return &AccountingHandler{service: service, store: store, validator: val, logger: log}
}

// ListEntries returns the ledger, newest first, optionally filtered by
// entry type. Reads are served from the in-memory store.
func (h *AccountingHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	entryType := domain.EntryType(r.URL.Query().Get("type"))

	entries := h.store.Entries()
	if entryType != "" {
		filtered := entries[:0:0]
		for _, e := range entries {
			if e.Type == entryType {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

// CreateEntry records a manual ledger line.
func (h *AccountingHandler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := middleware.OperatorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var input lending.CreateEntryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&input); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	entry, err := h.service.CreateEntry(r.Context(), &input, operatorID)
	if err != nil {
		h.logger.Error("Failed to create accounting entry", map[string]interface{}{"error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, entry)
}

// UpdateEntry edits a ledger line in place.
func (h *AccountingHandler) UpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid entry ID")
		return
	}

	var input lending.CreateEntryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&input); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	entry, err := h.service.UpdateEntry(r.Context(), id, &input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, entry)
}

// DeleteEntry removes a ledger line.
func (h *AccountingHandler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid entry ID")
		return
	}

	if err := h.service.DeleteEntry(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Entry deleted"})
}

// SetInitialCapital stores the business's starting capital (admin only).
func (h *AccountingHandler) SetInitialCapital(w http.ResponseWriter, r *http.Request) {
	h.setMetaAmount(w, r, h.service.SetInitialCapital, "Initial capital updated")
}

// SetAnnualRate stores the annual interest rate applied to new loans
// (admin only).
func (h *AccountingHandler) SetAnnualRate(w http.ResponseWriter, r *http.Request) {
	h.setMetaAmount(w, r, h.service.SetAnnualRate, "Annual interest rate updated")
}

func (h *AccountingHandler) setMetaAmount(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, v decimal.Decimal) error, message string) {
	var req struct {
		Value decimal.Decimal `json:"value" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	if err := fn(r.Context(), req.Value); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}
