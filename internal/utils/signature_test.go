package utils

import (
	"testing"
	"time"

	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/money"
	"github.com/stretchr/testify/assert"
)

func TestCreditSignature(t *testing.T) {
	c := &models.Credit{
		ID:                7,
		OwnerID:           "u1",
		TariffID:          2,
		BankAccountID:     "acc-1",
		Principal:         money.MustParse("100000"),
		InstallmentAmount: money.MustParse("8884.88"),
		DurationMonths:    12,
		IssueDate:         time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC),
	}
	c.Signature = SignCredit(c, "k1")
	assert.Len(t, c.Signature, 64)
	assert.True(t, VerifyCreditSignature(c, "k1"))
	assert.False(t, VerifyCreditSignature(c, "k2"))

	// servicing fields are not part of the signature
	c.RemainingPrincipal = money.MustParse("5")
	c.Status = models.CreditStatusOverdue
	assert.True(t, VerifyCreditSignature(c, "k1"))

	c.Principal = money.MustParse("100001")
	assert.False(t, VerifyCreditSignature(c, "k1"))

	c.Signature = "zz"
	assert.False(t, VerifyCreditSignature(c, "k1"))
}
