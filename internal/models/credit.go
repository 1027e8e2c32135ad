package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditStatus is the lifecycle state of a credit
type CreditStatus string

const (
	CreditStatusActive  CreditStatus = "ACTIVE"
	CreditStatusOverdue CreditStatus = "OVERDUE"
	CreditStatusPaidOff CreditStatus = "PAID_OFF"
)

// Credit represents a credit in the system
type Credit struct {
	ID                 int64           `json:"id"`
	OwnerID            string          `json:"owner_id"`
	OwnerEmail         string          `json:"-"`
	TariffID           int64           `json:"tariff_id"`
	BankAccountID      string          `json:"bank_account_id"`
	Principal          decimal.Decimal `json:"principal"`
	RemainingPrincipal decimal.Decimal `json:"remaining_principal"`
	InstallmentAmount  decimal.Decimal `json:"installment_amount"`
	DurationMonths     int             `json:"duration_months"`
	RemainingMonths    int             `json:"remaining_months"`
	AccumulatedPenalty decimal.Decimal `json:"accumulated_penalty"`
	OverdueDays        int             `json:"overdue_days"`
	Status             CreditStatus    `json:"status"`
	IssueDate          time.Time       `json:"issue_date"`
	NextPaymentDate    time.Time       `json:"next_payment_date"`
	Signature          string          `json:"signature"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// IsOpen reports whether the credit still accepts payments
func (c *Credit) IsOpen() bool {
	return c.Status == CreditStatusActive || c.Status == CreditStatusOverdue
}

// CreditView is a credit enriched with its tariff for API responses
type CreditView struct {
	Credit
	TariffName   string          `json:"tariff_name"`
	InterestRate decimal.Decimal `json:"interest_rate"` // percent
	TotalAmount  decimal.Decimal `json:"total_amount"`
}
