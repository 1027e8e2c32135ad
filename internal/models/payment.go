package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType classifies a recorded payment
type PaymentType string

const (
	PaymentTypeManualRepayment PaymentType = "MANUAL_REPAYMENT"
)

// Payment is an append-only record of money applied to a credit
type Payment struct {
	ID          int64           `json:"id"`
	CreditID    int64           `json:"credit_id"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentType PaymentType     `json:"payment_type"`
	PaymentDate time.Time       `json:"payment_date"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RepaymentReceipt tells the payer how a repayment was split
type RepaymentReceipt struct {
	Payment
	PenaltyPaid        decimal.Decimal `json:"penalty_paid"`
	InterestPaid       decimal.Decimal `json:"interest_paid"`
	PrincipalPaid      decimal.Decimal `json:"principal_paid"`
	CreditStatus       CreditStatus    `json:"credit_status"`
	RemainingPrincipal decimal.Decimal `json:"remaining_principal"`
	RemainingMonths    int             `json:"remaining_months"`
	NextPaymentDate    time.Time       `json:"next_payment_date"`
}
