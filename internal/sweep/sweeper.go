// Package sweep holds the periodic overdue and penalty procedures.
package sweep

import (
	"context"
	"fmt"

	"github.com/Dan9191/credit-service/internal/amortization"
	"github.com/Dan9191/credit-service/internal/clock"
	"github.com/Dan9191/credit-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Store is the persistence the sweeper needs
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListCreditIDsByStatus(ctx context.Context, statuses ...models.CreditStatus) ([]int64, error)
	LockCredit(ctx context.Context, id int64) (*models.Credit, error)
	UpdateCredit(ctx context.Context, c *models.Credit) error
}

// Notifier is told about credits that just became overdue
type Notifier interface {
	NotifyOverdue(ctx context.Context, c models.Credit) error
}

// Config holds sweep policy
type Config struct {
	PenaltyRate decimal.Decimal
	Step        amortization.PeriodStep
}

// Report counts what one tick did
type Report struct {
	MarkedOverdue    int `json:"marked_overdue"`
	PenaltiesApplied int `json:"penalties_applied"`
	DueDatesAdvanced int `json:"due_dates_advanced"`
	Failed           int `json:"failed"`
}

// Sweeper runs the three procedures over every matching credit
type Sweeper struct {
	store    Store
	notifier Notifier
	clock    clock.Clock
	cfg      Config
	log      *logrus.Logger
}

// NewSweeper initializes a new sweeper. notifier may be nil.
func NewSweeper(store Store, notifier Notifier, clk clock.Clock, cfg Config, log *logrus.Logger) *Sweeper {
	return &Sweeper{store: store, notifier: notifier, clock: clk, cfg: cfg, log: log}
}

// RunOnce executes detect, accrue and advance once, in that order. A failure
// on one credit is logged and skipped; the whole tick can be retried safely
// for detect and advance, while accrue charges once per call.
func (s *Sweeper) RunOnce(ctx context.Context) (Report, error) {
	var r Report
	now := s.clock.Now()

	overdue, failed, err := s.each(ctx, "detect_overdue", []models.CreditStatus{models.CreditStatusActive},
		func(c *models.Credit) bool { return DetectOverdue(c, now) })
	if err != nil {
		return r, err
	}
	r.MarkedOverdue, r.Failed = len(overdue), r.Failed+failed
	for _, c := range overdue {
		s.notify(ctx, c)
	}

	penalized, failed, err := s.each(ctx, "accrue_penalty", []models.CreditStatus{models.CreditStatusOverdue},
		func(c *models.Credit) bool {
			_, changed := AccruePenalty(c, s.cfg.PenaltyRate, now)
			return changed
		})
	if err != nil {
		return r, err
	}
	r.PenaltiesApplied, r.Failed = len(penalized), r.Failed+failed

	advanced, failed, err := s.each(ctx, "advance_due_date",
		[]models.CreditStatus{models.CreditStatusActive, models.CreditStatusOverdue},
		func(c *models.Credit) bool { return AdvanceDueDate(c, now, s.cfg.Step) })
	if err != nil {
		return r, err
	}
	r.DueDatesAdvanced, r.Failed = len(advanced), r.Failed+failed

	s.log.WithFields(logrus.Fields{
		"marked_overdue":     r.MarkedOverdue,
		"penalties_applied":  r.PenaltiesApplied,
		"due_dates_advanced": r.DueDatesAdvanced,
		"failed":             r.Failed,
	}).Info("Credit sweep completed")
	return r, nil
}

// each applies fn to every credit in the given statuses, one transaction per
// credit, and returns the credits fn changed.
func (s *Sweeper) each(ctx context.Context, op string, statuses []models.CreditStatus, fn func(c *models.Credit) bool) ([]models.Credit, int, error) {
	ids, err := s.store.ListCreditIDsByStatus(ctx, statuses...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list credits for %s: %w", op, err)
	}

	var changed []models.Credit
	failed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return changed, failed, err
		}
		var updated *models.Credit
		err := s.store.WithTx(ctx, func(txCtx context.Context) error {
			c, err := s.store.LockCredit(txCtx, id)
			if err != nil {
				return err
			}
			if !fn(c) {
				return nil
			}
			if err := s.store.UpdateCredit(txCtx, c); err != nil {
				return err
			}
			updated = c
			return nil
		})
		if err != nil {
			failed++
			s.log.WithFields(logrus.Fields{"credit_id": id, "operation": op}).Errorf("Sweep step failed: %v", err)
			continue
		}
		if updated != nil {
			changed = append(changed, *updated)
			s.log.WithFields(logrus.Fields{
				"credit_id":         id,
				"operation":         op,
				"status":            updated.Status,
				"penalty":           updated.AccumulatedPenalty.StringFixed(2),
				"overdue_days":      updated.OverdueDays,
				"next_payment_date": updated.NextPaymentDate,
			}).Debug("Credit updated by sweep")
		}
	}
	return changed, failed, nil
}

func (s *Sweeper) notify(ctx context.Context, c models.Credit) {
	s.log.WithField("credit_id", c.ID).Warnf("Credit is overdue. Payment was due: %s", c.NextPaymentDate)
	if s.notifier == nil || c.OwnerEmail == "" {
		return
	}
	if err := s.notifier.NotifyOverdue(ctx, c); err != nil {
		s.log.WithField("credit_id", c.ID).Errorf("Failed to send overdue notice: %v", err)
	}
}
