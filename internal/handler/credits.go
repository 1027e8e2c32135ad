package handler

import (
	"net/http"

	"github.com/Dan9191/credit-service/internal/service"
	"github.com/gorilla/mux"
)

// TakeCredit handles credit origination
func (h *Handler) TakeCredit(w http.ResponseWriter, r *http.Request) {
	var req service.TakeCreditRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "take_credit", err)
		return
	}
	credit, err := h.svc.TakeCredit(r.Context(), caller(r), req)
	if err != nil {
		h.fail(w, r, "take_credit", err)
		return
	}
	writeJSON(w, http.StatusCreated, credit)
}

// RepayCredit handles a manual repayment
func (h *Handler) RepayCredit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, creditIDVar)
	if err != nil {
		h.fail(w, r, "repay_credit", err)
		return
	}
	var req service.RepayCreditRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "repay_credit", err)
		return
	}
	receipt, err := h.svc.RepayCredit(r.Context(), caller(r), id, req)
	if err != nil {
		h.fail(w, r, "repay_credit", err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// MyCredits lists the caller's credits
func (h *Handler) MyCredits(w http.ResponseWriter, r *http.Request) {
	credits, err := h.svc.ListMyCredits(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, "my_credits", err)
		return
	}
	writeJSON(w, http.StatusOK, credits)
}

// GetCredit returns one credit
func (h *Handler) GetCredit(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, creditIDVar)
	if err != nil {
		h.fail(w, r, "get_credit", err)
		return
	}
	credit, err := h.svc.GetCredit(r.Context(), caller(r), id)
	if err != nil {
		h.fail(w, r, "get_credit", err)
		return
	}
	writeJSON(w, http.StatusOK, credit)
}

// Payments returns the payment history of a credit
func (h *Handler) Payments(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, creditIDVar)
	if err != nil {
		h.fail(w, r, "credit_payments", err)
		return
	}
	payments, err := h.svc.GetPayments(r.Context(), caller(r), id)
	if err != nil {
		h.fail(w, r, "credit_payments", err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// Schedule returns the payment schedule of a credit
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, creditIDVar)
	if err != nil {
		h.fail(w, r, "credit_schedule", err)
		return
	}
	rows, err := h.svc.GetSchedule(r.Context(), caller(r), id)
	if err != nil {
		h.fail(w, r, "credit_schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// Statistics returns the projected cost of a credit
func (h *Handler) Statistics(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, creditIDVar)
	if err != nil {
		h.fail(w, r, "credit_statistics", err)
		return
	}
	stats, err := h.svc.GetStatistics(r.Context(), caller(r), id)
	if err != nil {
		h.fail(w, r, "credit_statistics", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AllCredits lists every credit for employees
func (h *Handler) AllCredits(w http.ResponseWriter, r *http.Request) {
	credits, err := h.svc.ListCredits(r.Context(), caller(r))
	if err != nil {
		h.fail(w, r, "all_credits", err)
		return
	}
	writeJSON(w, http.StatusOK, credits)
}

// ClientCredits lists the credits of one client for employees
func (h *Handler) ClientCredits(w http.ResponseWriter, r *http.Request) {
	credits, err := h.svc.ListCreditsByOwner(r.Context(), caller(r), mux.Vars(r)[ownerIDVar])
	if err != nil {
		h.fail(w, r, "client_credits", err)
		return
	}
	writeJSON(w, http.StatusOK, credits)
}
