// Package handler exposes the HTTP API for the lending back office.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	apperrors "microlend/pkg/errors"
)

// paginationParams reads limit/offset query parameters with a default
// page size.
func paginationParams(r *http.Request, defaultLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}

func atoiField(v string) (int, error) {
	return strconv.Atoi(v)
}

// respondJSON responds with JSON.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError responds with an error message.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondValidationErrors responds with field-level validation errors.
func respondValidationErrors(w http.ResponseWriter, errs map[string]string) {
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{"errors": errs})
}

// respondServiceError maps service errors to HTTP responses. Unknown
// errors become a generic 500 so internals never leak to callers.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errorIsAny(err,
		apperrors.ErrClientNotFound,
		apperrors.ErrLoanNotFound,
		apperrors.ErrRequestNotFound,
		apperrors.ErrEntryNotFound,
		apperrors.ErrOperatorNotFound,
		apperrors.ErrFileNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errorIsAny(err,
		apperrors.ErrRequestAlreadyTaken,
		apperrors.ErrDuplicateRequest,
		apperrors.ErrInvalidStatusChange,
		apperrors.ErrLoanAlreadyPaid,
		apperrors.ErrClientHasActiveLoans,
		apperrors.ErrOperatorAlreadyExists):
		respondError(w, http.StatusConflict, err.Error())
	case errorIsAny(err,
		apperrors.ErrInvalidLoanInput,
		apperrors.ErrFileUploadFailed,
		apperrors.ErrFileTooLarge,
		apperrors.ErrFileTypeNotAllowed):
		respondError(w, http.StatusBadRequest, err.Error())
	case errorIsAny(err, apperrors.ErrTOTPRequired):
		respondError(w, http.StatusUnauthorized, err.Error())
	case errorIsAny(err, apperrors.ErrInvalidCredentials, apperrors.ErrInvalidTOTPCode):
		respondError(w, http.StatusUnauthorized, "Invalid credentials")
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func errorIsAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}
