package handler

import (
	"encoding/json"
	"net/http"

	"microlend/internal/assist"
	"microlend/pkg/logger"
	"microlend/pkg/validator"
)

type AssistHandler struct {
	client    assist.Client
	validator *validator.Validator
	logger    logger.Logger
}

func NewAssistHandler(client assist.Client, val *validator.Validator, log logger.Logger) *AssistHandler {
	return &AssistHandler{client: client, validator: val, logger: log}
}

// Draft asks the configured text model to draft a client-facing message,
// such as a payment reminder. Returns 503 when no model is configured.
func (h *AssistHandler) Draft(w http.ResponseWriter, r *http.Request) {
	if !h.client.Enabled() {
		respondError(w, http.StatusServiceUnavailable, "Drafting assistant is not configured")
		return
	}

	var req struct {
		Prompt string `json:"prompt" validate:"required,min=4,max=2000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	text, err := h.client.Draft(r.Context(), req.Prompt)
	if err != nil {
		h.logger.Error("Assistant draft failed", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusBadGateway, "Assistant request failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"text": text})
}
