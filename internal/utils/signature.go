package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/money"
)

// creditTerms joins the fields fixed at origination
func creditTerms(c *models.Credit) string {
	return strings.Join([]string{
		c.OwnerID,
		strconv.FormatInt(c.TariffID, 10),
		c.BankAccountID,
		money.Format(c.Principal),
		money.Format(c.InstallmentAmount),
		strconv.Itoa(c.DurationMonths),
		c.IssueDate.UTC().Format(time.RFC3339),
	}, "|")
}

// SignCredit generates an HMAC over the origination terms of a credit
func SignCredit(c *models.Credit, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(creditTerms(c)))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyCreditSignature reports whether the stored signature matches the terms
func VerifyCreditSignature(c *models.Credit, secret string) bool {
	want, err := hex.DecodeString(c.Signature)
	if err != nil {
		return false
	}
	got, _ := hex.DecodeString(SignCredit(c, secret))
	return hmac.Equal(got, want)
}
