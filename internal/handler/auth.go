package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"microlend/internal/auth"
	"microlend/internal/middleware"
	"microlend/pkg/logger"
	"microlend/pkg/validator"
)

type AuthHandler struct {
	service   *auth.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewAuthHandler(service *auth.Service, val *validator.Validator, log logger.Logger) *AuthHandler {
	return &AuthHandler{service: service, validator: val, logger: log}
}

// Login authenticates an operator and issues a JWT. Operators with TOTP
// enabled must include the current code.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	resp, err := h.service.Login(r.Context(), &req)
	if err != nil {
		h.logger.Warn("Login failed", map[string]interface{}{"email": req.Email, "error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// CreateOperator registers a new back-office account (admin only).
func (h *AuthHandler) CreateOperator(w http.ResponseWriter, r *http.Request) {
	var req auth.CreateOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	op, err := h.service.CreateOperator(r.Context(), &req)
	if err != nil {
		h.logger.Error("Failed to create operator", map[string]interface{}{"email": req.Email, "error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, op)
}

// SetupTOTP provisions a new TOTP secret for the authenticated operator.
// The secret stays disabled until the first code is verified.
func (h *AuthHandler) SetupTOTP(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := middleware.OperatorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	resp, err := h.service.SetupTOTP(r.Context(), operatorID)
	if err != nil {
		h.logger.Error("TOTP setup failed", map[string]interface{}{"operator_id": operatorID.String(), "error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// EnableTOTP turns on two-factor login after verifying the first code.
func (h *AuthHandler) EnableTOTP(w http.ResponseWriter, r *http.Request) {
	h.toggleTOTP(w, r, h.service.EnableTOTP, "Two-factor authentication enabled")
}

// DisableTOTP turns off two-factor login. A valid current code is required.
func (h *AuthHandler) DisableTOTP(w http.ResponseWriter, r *http.Request) {
	h.toggleTOTP(w, r, h.service.DisableTOTP, "Two-factor authentication disabled")
}

// ChangePassword updates the authenticated operator's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	operatorID, ok := middleware.OperatorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,min=8"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	if err := h.service.ChangePassword(r.Context(), operatorID, req.CurrentPassword, req.NewPassword); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

func (h *AuthHandler) toggleTOTP(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID, code string) error, message string) {
	operatorID, ok := middleware.OperatorIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		Code string `json:"code" validate:"required,len=6"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	if err := fn(r.Context(), operatorID, req.Code); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": message})
}
