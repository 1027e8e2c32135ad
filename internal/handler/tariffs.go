package handler

import (
	"net/http"

	"github.com/Dan9191/credit-service/internal/service"
)

// ListTariffs returns the tariff catalog
func (h *Handler) ListTariffs(w http.ResponseWriter, r *http.Request) {
	tariffs, err := h.svc.ListTariffs(r.Context())
	if err != nil {
		h.fail(w, r, "list_tariffs", err)
		return
	}
	writeJSON(w, http.StatusOK, tariffs)
}

// GetTariff returns one tariff
func (h *Handler) GetTariff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, tariffIDVar)
	if err != nil {
		h.fail(w, r, "get_tariff", err)
		return
	}
	tariff, err := h.svc.GetTariff(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get_tariff", err)
		return
	}
	writeJSON(w, http.StatusOK, tariff)
}

// CreateTariff adds a tariff
func (h *Handler) CreateTariff(w http.ResponseWriter, r *http.Request) {
	var req service.TariffRequest
	if err := decode(r, &req); err != nil {
		h.fail(w, r, "create_tariff", err)
		return
	}
	tariff, err := h.svc.CreateTariff(r.Context(), req)
	if err != nil {
		h.fail(w, r, "create_tariff", err)
		return
	}
	writeJSON(w, http.StatusCreated, tariff)
}

// DeleteTariff removes a tariff
func (h *Handler) DeleteTariff(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, tariffIDVar)
	if err != nil {
		h.fail(w, r, "delete_tariff", err)
		return
	}
	if err := h.svc.DeleteTariff(r.Context(), id); err != nil {
		h.fail(w, r, "delete_tariff", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
