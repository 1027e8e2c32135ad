package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSchedule represents a scheduled payment for a credit
type PaymentSchedule struct {
	ID               int64           `json:"id"`
	CreditID         int64           `json:"credit_id"`
	PeriodNumber     int             `json:"period_number"`
	DueDate          time.Time       `json:"due_date"`
	TotalPayment     decimal.Decimal `json:"total_payment"`
	InterestPortion  decimal.Decimal `json:"interest_portion"`
	PrincipalPortion decimal.Decimal `json:"principal_portion"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Paid             bool            `json:"paid"`
	CreatedAt        time.Time       `json:"created_at"`
}
