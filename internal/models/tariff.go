package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tariff is a credit product with a fixed annual rate
type Tariff struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	AnnualInterestRate decimal.Decimal `json:"-"` // fraction, 0.18 for 18%
	ActiveUntil        time.Time       `json:"active_until"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
}

// RatePercent returns the annual rate expressed in percent
func (t *Tariff) RatePercent() decimal.Decimal {
	return t.AnnualInterestRate.Mul(decimal.NewFromInt(100))
}

// TariffView is the API representation of a tariff
type TariffView struct {
	Tariff
	InterestRate decimal.Decimal `json:"interest_rate"` // percent
}
