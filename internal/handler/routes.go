package handler

import (
	"net/http"

	"github.com/Dan9191/credit-service/internal/config"
	"github.com/Dan9191/credit-service/internal/middleware"
	"github.com/gorilla/mux"
)

// Route variables
const (
	creditIDVar = "creditId"
	tariffIDVar = "tariffId"
	ownerIDVar  = "ownerId"
)

// NewRouter wires every route with its middleware
func NewRouter(h *Handler, cfg *config.Config) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(h.log))

	// Public routes
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/key-rate", h.KeyRate).Methods(http.MethodGet)
	r.HandleFunc("/api/tariffs", h.ListTariffs).Methods(http.MethodGet)
	r.HandleFunc("/api/tariffs/{tariffId:[0-9]+}", h.GetTariff).Methods(http.MethodGet)

	// Protected routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(cfg, h.log))
	api.HandleFunc("/credits", h.TakeCredit).Methods(http.MethodPost)
	api.HandleFunc("/credits/my", h.MyCredits).Methods(http.MethodGet)
	api.HandleFunc("/credits/{creditId:[0-9]+}", h.GetCredit).Methods(http.MethodGet)
	api.HandleFunc("/credits/{creditId:[0-9]+}/repay", h.RepayCredit).Methods(http.MethodPost)
	api.HandleFunc("/credits/{creditId:[0-9]+}/payments", h.Payments).Methods(http.MethodGet)
	api.HandleFunc("/credits/{creditId:[0-9]+}/schedule", h.Schedule).Methods(http.MethodGet)
	api.HandleFunc("/credits/{creditId:[0-9]+}/statistics", h.Statistics).Methods(http.MethodGet)

	// Employee routes
	employee := api.PathPrefix("/employee").Subrouter()
	employee.Use(middleware.RequireRole(middleware.RoleEmployee))
	employee.HandleFunc("/tariffs", h.CreateTariff).Methods(http.MethodPost)
	employee.HandleFunc("/tariffs/{tariffId:[0-9]+}", h.DeleteTariff).Methods(http.MethodDelete)
	employee.HandleFunc("/credits", h.AllCredits).Methods(http.MethodGet)
	employee.HandleFunc("/credits/client/{ownerId}", h.ClientCredits).Methods(http.MethodGet)

	// Internal routes
	internal := r.PathPrefix("/internal").Subrouter()
	internal.Use(middleware.InternalKey(cfg.InternalKeyHash))
	internal.HandleFunc("/sweeps/run", h.RunSweep).Methods(http.MethodPost)

	return r
}
