package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"microlend/internal/lending"
	"microlend/pkg/logger"
	"microlend/pkg/validator"
)

type ClientHandler struct {
	service   *lending.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewClientHandler(service *lending.Service, val *validator.Validator, log logger.Logger) *ClientHandler {
	return &ClientHandler{service: service, validator: val, logger: log}
}

// List returns clients, optionally filtered by a search term over name,
// ID number and phone.
func (h *ClientHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 50)
	search := strings.TrimSpace(r.URL.Query().Get("search"))

	clients, err := h.service.ListClients(r.Context(), search, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list clients", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch clients")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"clients": clients,
		"limit":   limit,
		"offset":  offset,
	})
}

// Get returns a client together with their loans.
func (h *ClientHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid client ID")
		return
	}

	view, err := h.service.GetClient(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// Update edits a client's contact details. The ID number is immutable.
func (h *ClientHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid client ID")
		return
	}

	var input lending.UpdateClientInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := h.validator.ValidateStructured(&input); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	client, err := h.service.UpdateClient(r.Context(), id, &input)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, client)
}

// Delete removes a client. Clients with unpaid loans cannot be deleted.
func (h *ClientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid client ID")
		return
	}

	if err := h.service.DeleteClient(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Client deleted"})
}
