package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Dan9191/credit-service/internal/models"
	"github.com/shopspring/decimal"
)

var (
	minRatePercent = decimal.RequireFromString("0.01")
	maxRatePercent = decimal.NewFromInt(100)
)

// ratePercentScale keeps the stored fraction within NUMERIC(12, 6)
const ratePercentScale = 4

// TariffRequest describes a tariff to create. InterestRate is in percent.
type TariffRequest struct {
	Name         string          `json:"name"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	ActiveUntil  time.Time       `json:"active_until"`
	IsActive     *bool           `json:"is_active"`
}

func tariffView(t *models.Tariff) models.TariffView {
	return models.TariffView{Tariff: *t, InterestRate: t.RatePercent()}
}

// CreateTariff adds a tariff to the catalog
func (s *Service) CreateTariff(ctx context.Context, req TariffRequest) (*models.TariffView, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: tariff name is required", models.ErrInvalidInput)
	}
	if req.InterestRate.LessThan(minRatePercent) || req.InterestRate.GreaterThan(maxRatePercent) {
		return nil, fmt.Errorf("%w: interest rate must be between %s and %s percent",
			models.ErrInvalidAmount, minRatePercent, maxRatePercent)
	}
	if !req.InterestRate.Equal(req.InterestRate.Round(ratePercentScale)) {
		return nil, fmt.Errorf("%w: interest rate %s has more than %d fractional digits",
			models.ErrInvalidAmount, req.InterestRate, ratePercentScale)
	}
	if req.ActiveUntil.IsZero() {
		return nil, fmt.Errorf("%w: active_until is required", models.ErrInvalidInput)
	}

	t := &models.Tariff{
		Name:               name,
		AnnualInterestRate: req.InterestRate.Shift(-2),
		ActiveUntil:        req.ActiveUntil,
		IsActive:           req.IsActive == nil || *req.IsActive,
	}
	if err := s.store.CreateTariff(ctx, t); err != nil {
		return nil, err
	}

	s.log.WithField("tariff_id", t.ID).Infof("Credit tariff created: %s at %s%%", t.Name, req.InterestRate)
	view := tariffView(t)
	return &view, nil
}

// GetTariff returns one tariff
func (s *Service) GetTariff(ctx context.Context, id int64) (*models.TariffView, error) {
	t, err := s.store.GetTariff(ctx, id)
	if err != nil {
		return nil, err
	}
	view := tariffView(t)
	return &view, nil
}

// ListTariffs returns the whole catalog
func (s *Service) ListTariffs(ctx context.Context) ([]models.TariffView, error) {
	tariffs, err := s.store.ListTariffs(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.TariffView, 0, len(tariffs))
	for i := range tariffs {
		out = append(out, tariffView(&tariffs[i]))
	}
	return out, nil
}

// DeleteTariff removes a tariff no credit was issued under
func (s *Service) DeleteTariff(ctx context.Context, id int64) error {
	if err := s.store.DeleteTariff(ctx, id); err != nil {
		return err
	}
	s.log.WithField("tariff_id", id).Info("Tariff deleted")
	return nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// tariffExpired reports whether the tariff's last valid day is before today
func tariffExpired(t *models.Tariff, now time.Time) bool {
	return t.ActiveUntil.Before(startOfDay(now))
}

// DeactivateExpiredTariffs switches off active tariffs whose validity ended
// before today and returns how many were switched off
func (s *Service) DeactivateExpiredTariffs(ctx context.Context) (int, error) {
	expired, err := s.store.ListExpiredActiveTariffs(ctx, startOfDay(s.clock.Now()))
	if err != nil {
		return 0, fmt.Errorf("failed to list expired tariffs: %w", err)
	}
	n := 0
	for _, t := range expired {
		if err := s.store.DeactivateTariff(ctx, t.ID); err != nil {
			s.log.WithField("tariff_id", t.ID).Errorf("Failed to deactivate tariff: %v", err)
			continue
		}
		n++
		s.log.WithField("tariff_id", t.ID).Infof("Tariff %s deactivated, it was valid until %s",
			t.Name, t.ActiveUntil.Format("2006-01-02"))
	}
	return n, nil
}
