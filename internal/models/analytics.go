package models

import "github.com/shopspring/decimal"

// CreditStatistics summarises the projected cost of a credit
type CreditStatistics struct {
	CreditID          int64           `json:"credit_id"`
	OriginalAmount    decimal.Decimal `json:"original_amount"`
	InstallmentAmount decimal.Decimal `json:"installment_amount"`
	DurationMonths    int             `json:"duration_months"`
	TotalToRepay      decimal.Decimal `json:"total_to_repay"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	InterestRate      decimal.Decimal `json:"interest_rate"` // percent
}
