package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/credit-service/internal/amortization"
	"github.com/Dan9191/credit-service/internal/clock"
	"github.com/Dan9191/credit-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store is the persistence the service needs
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateTariff(ctx context.Context, t *models.Tariff) error
	GetTariff(ctx context.Context, id int64) (*models.Tariff, error)
	ListTariffs(ctx context.Context) ([]models.Tariff, error)
	ListExpiredActiveTariffs(ctx context.Context, before time.Time) ([]models.Tariff, error)
	DeactivateTariff(ctx context.Context, id int64) error
	DeleteTariff(ctx context.Context, id int64) error

	CreateCredit(ctx context.Context, c *models.Credit) error
	GetCredit(ctx context.Context, id int64) (*models.Credit, error)
	LockCredit(ctx context.Context, id int64) (*models.Credit, error)
	UpdateCredit(ctx context.Context, c *models.Credit) error
	ListCredits(ctx context.Context) ([]models.Credit, error)
	ListCreditsByOwner(ctx context.Context, ownerID string) ([]models.Credit, error)

	CreateSchedule(ctx context.Context, rows []models.PaymentSchedule) error
	ListSchedule(ctx context.Context, creditID int64) ([]models.PaymentSchedule, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	ListPayments(ctx context.Context, creditID int64) ([]models.Payment, error)
}

// Ledger moves money on bank accounts
type Ledger interface {
	ApplyCredit(ctx context.Context, accountID string, amount decimal.Decimal) error
	PayCredit(ctx context.Context, accountID string, amount decimal.Decimal) error
}

// Accounts answers whether a bank account belongs to the caller
type Accounts interface {
	VerifyOwnership(ctx context.Context, authHeader, accountID string) error
}

// Caller is the authenticated principal a request runs for
type Caller struct {
	ID         string
	Email      string
	AuthHeader string
	Employee   bool
}

// Options holds credit policy
type Options struct {
	MinCreditAmount decimal.Decimal
	Step            amortization.PeriodStep
	SignatureKey    string
}

// Service handles business logic
type Service struct {
	store    Store
	ledger   Ledger
	accounts Accounts
	clock    clock.Clock
	opts     Options
	log      *logrus.Logger
}

// NewService initializes a new service
func NewService(store Store, ledger Ledger, accounts Accounts, clk clock.Clock, opts Options, log *logrus.Logger) *Service {
	return &Service{store: store, ledger: ledger, accounts: accounts, clock: clk, opts: opts, log: log}
}

// authorize lets owners and employees read a credit
func authorize(caller Caller, c *models.Credit) error {
	if caller.Employee || c.OwnerID == caller.ID {
		return nil
	}
	return fmt.Errorf("%w: credit %d does not belong to the caller", models.ErrAccessDenied, c.ID)
}
