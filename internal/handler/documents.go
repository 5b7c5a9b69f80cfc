package handler

import (
	"fmt"
	"net/http"
	"time"

	"microlend/internal/docgen"
	"microlend/internal/lending"
	"microlend/internal/realtime"
	"microlend/pkg/logger"
)

type DocumentHandler struct {
	service   *lending.Service
	dashboard *lending.Dashboard
	store     *realtime.Store
	files     lending.FileStore
	docs      *docgen.Generator
	logger    logger.Logger
}

func NewDocumentHandler(
	service *lending.Service,
	dashboard *lending.Dashboard,
	store *realtime.Store,
	files lending.FileStore,
	docs *docgen.Generator,
	log logger.Logger,
) *DocumentHandler {
	return &DocumentHandler{
		service:   service,
		dashboard: dashboard,
		store:     store,
		files:     files,
		docs:      docs,
		logger:    log,
	}
}

// Contract serves the stored contract PDF for a loan.
func (h *DocumentHandler) Contract(w http.ResponseWriter, r *http.Request) {
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

	if loan.ContractPDFURL == nil {
		respondError(w, http.StatusNotFound, "No contract on file for this loan")
		return
	}

	data, err := h.files.Get(r.Context(), h.files.KeyFromURL(*loan.ContractPDFURL))
	if err != nil {
		h.logger.Error("Failed to read stored contract", map[string]interface{}{"loan_id": id.String(), "error": err.Error()})
		respondServiceError(w, err)
		return
	}

	servePDF(w, fmt.Sprintf("contract-%s.pdf", id), data)
}

// Receipt generates a payment receipt PDF for a loan's latest payment.
func (h *DocumentHandler) Receipt(w http.ResponseWriter, r *http.Request) {
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

	if loan.PaymentsMade == 0 {
		respondError(w, http.StatusConflict, "No payments registered for this loan")
		return
	}

	view, err := h.service.GetClient(r.Context(), loan.ClientID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	data, err := h.docs.Receipt(view.Client, loan, loan.PaymentsMade, time.Now().UTC())
	if err != nil {
		h.logger.Error("Failed to render receipt", map[string]interface{}{"loan_id": id.String(), "error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to render receipt")
		return
	}

	servePDF(w, fmt.Sprintf("receipt-%s-%d.pdf", id, loan.PaymentsMade), data)
}

// PortfolioReport generates a point-in-time report over the whole book.
func (h *DocumentHandler) PortfolioReport(w http.ResponseWriter, r *http.Request) {
	view := h.dashboard.Overview()

	names := make(map[string]string)
	for _, c := range h.store.Clients() {
		names[c.ID.String()] = c.Name
	}

	now := time.Now().UTC()
	data, err := h.docs.PortfolioReport(&view.Snapshot, h.store.Loans(), names, now)
	if err != nil {
		h.logger.Error("Failed to render portfolio report", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to render report")
		return
	}

	servePDF(w, "portfolio-"+now.Format("2006-01-02")+".pdf", data)
}

func servePDF(w http.ResponseWriter, filename string, data []byte) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
