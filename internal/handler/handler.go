package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Dan9191/credit-service/internal/integrations/cbr"
	"github.com/Dan9191/credit-service/internal/middleware"
	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/service"
	"github.com/Dan9191/credit-service/internal/sweep"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// KeyRateSource returns the central bank key rate
type KeyRateSource interface {
	GetKeyRate(ctx context.Context) (*cbr.KeyRate, error)
}

// SweepRunner runs a sweep tick on demand
type SweepRunner interface {
	RunSweep(ctx context.Context) (sweep.Report, error)
}

// Handler serves the HTTP API
type Handler struct {
	svc    *service.Service
	rates  KeyRateSource
	sweeps SweepRunner
	log    *logrus.Logger
}

// NewHandler initializes a new handler
func NewHandler(svc *service.Service, rates KeyRateSource, sweeps SweepRunner, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, rates: rates, sweeps: sweeps, log: log}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps an error kind to its HTTP status and a message safe to show
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, models.ErrInvalidState), errors.Is(err, models.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, models.ErrInvalidAmount), errors.Is(err, models.ErrInvalidTerm),
		errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, models.ErrAccessDenied):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, models.ErrUpstream):
		return http.StatusBadGateway, "upstream service unavailable"
	}
	return http.StatusInternalServerError, "internal server error"
}

// pathFields maps route variables to log fields
var pathFields = map[string]string{
	creditIDVar: "credit_id",
	tariffIDVar: "tariff_id",
	ownerIDVar:  "owner_id",
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	entry := h.log.WithFields(logrus.Fields{
		"operation":  op,
		"request_id": middleware.RequestIDFrom(r.Context()),
		"status":     status,
	})
	vars := mux.Vars(r)
	for key, field := range pathFields {
		if v, ok := vars[key]; ok {
			entry = entry.WithField(field, v)
		}
	}
	if status >= http.StatusInternalServerError {
		entry.Errorf("Request failed: %v", err)
	} else {
		entry.Infof("Request rejected: %v", err)
	}
	middleware.WriteError(w, status, msg)
}

func caller(r *http.Request) service.Caller {
	id, _ := middleware.IdentityFrom(r.Context())
	return service.Caller{
		ID:         id.Subject,
		Email:      id.Email,
		AuthHeader: id.AuthHeader,
		Employee:   id.HasRole(middleware.RoleEmployee),
	}
}

func pathID(r *http.Request, key string) (int64, error) {
	raw := mux.Vars(r)[key]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: invalid id %q", models.ErrInvalidInput, raw)
	}
	return id, nil
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", models.ErrInvalidInput, err)
	}
	return nil
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// KeyRate returns the central bank key rate with the bank margin
func (h *Handler) KeyRate(w http.ResponseWriter, r *http.Request) {
	rate, err := h.rates.GetKeyRate(r.Context())
	if err != nil {
		h.fail(w, r, "key_rate", fmt.Errorf("%w: %v", models.ErrUpstream, err))
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

// RunSweep triggers one sweep tick
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeps.RunSweep(r.Context())
	if err != nil {
		h.fail(w, r, "run_sweep", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
