package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"microlend/internal/domain"
	"microlend/internal/lending"
	"microlend/pkg/logger"
	"microlend/pkg/validator"
)

// maxIntakeFormSize bounds the public multipart intake form: three
// document images plus the text fields.
const maxIntakeFormSize = 16 << 20

type RequestHandler struct {
	service   *lending.Service
	validator *validator.Validator
	logger    logger.Logger
}

func NewRequestHandler(service *lending.Service, val *validator.Validator, log logger.Logger) *RequestHandler {
	return &RequestHandler{service: service, validator: val, logger: log}
}

// Submit files a loan request from the public intake form. The form
// carries the applicant fields plus three files: id_front, id_back and
// signature.
func (h *RequestHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxIntakeFormSize); err != nil {
		h.logger.Warn("Failed to parse intake form", map[string]interface{}{"error": err.Error(), "ip": r.RemoteAddr})
		respondError(w, http.StatusBadRequest, "Invalid multipart form")
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	term := 0
	if v := strings.TrimSpace(r.FormValue("term_months")); v != "" {
		term, err = atoiField(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid term_months")
			return
		}
	}

	input := &lending.SubmitRequestInput{
		Name:       r.FormValue("name"),
		IDNumber:   r.FormValue("id_number"),
		Phone:      r.FormValue("phone"),
		Email:      r.FormValue("email"),
		Address:    r.FormValue("address"),
		Amount:     amount,
		TermMonths: term,
	}

	if errs := h.validator.ValidateStructured(input); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	for _, doc := range []struct {
		field  string
		target *lending.Upload
	}{
		{"id_front", &input.IDFront},
		{"id_back", &input.IDBack},
		{"signature", &input.Signature},
	} {
		upload, err := readFormFile(r, doc.field)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Missing or unreadable file: "+doc.field)
			return
		}
		*doc.target = upload
	}

	req, err := h.service.SubmitRequest(r.Context(), input)
	if err != nil {
		h.logger.Error("Loan request submission failed", map[string]interface{}{"error": err.Error(), "ip": r.RemoteAddr})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"id":     req.ID,
		"status": req.Status,
	})
}

// Status lets an applicant check their latest request by ID number.
func (h *RequestHandler) Status(w http.ResponseWriter, r *http.Request) {
	idNumber := strings.TrimSpace(r.URL.Query().Get("id_number"))
	if idNumber == "" {
		respondError(w, http.StatusBadRequest, "id_number query parameter required")
		return
	}

	view, err := h.service.LookupRequestStatus(r.Context(), idNumber)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// List returns loan requests for the back office, optionally filtered
// by status.
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := paginationParams(r, 50)
	status := domain.RequestStatus(r.URL.Query().Get("status"))

	requests, err := h.service.ListRequests(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list loan requests", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch loan requests")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"requests": requests,
		"limit":    limit,
		"offset":   offset,
	})
}

// Review claims a pending request for review.
func (h *RequestHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	req, err := h.service.ReviewRequest(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, req)
}

// Approve converts a request under review into a client and loan.
func (h *RequestHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	client, loan, err := h.service.ApproveRequest(r.Context(), id)
	if err != nil {
		h.logger.Error("Failed to approve loan request", map[string]interface{}{"request_id": id.String(), "error": err.Error()})
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"client": client,
		"loan":   loan,
	})
}

// Deny rejects a request under review and removes its documents.
func (h *RequestHandler) Deny(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	if err := h.service.DenyRequest(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Loan request denied"})
}

// readFormFile pulls one uploaded file out of the multipart form.
func readFormFile(r *http.Request, field string) (lending.Upload, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return lending.Upload{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return lending.Upload{}, err
	}

	return lending.Upload{Name: header.Filename, Data: data}, nil
}

// pathID parses the {id} route variable.
func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(mux.Vars(r)["id"])
}
