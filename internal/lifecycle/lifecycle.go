package lifecycle

import (
	"fmt"

	"github.com/Dan9191/credit-service/internal/models"
)

// Trigger names what caused a status change
type Trigger string

const (
	TriggerOverdueSweep Trigger = "overdue_sweep"
	TriggerRepayment    Trigger = "repayment"
)

type edge struct {
	from, to models.CreditStatus
}

var transitions = map[edge]Trigger{
	{models.CreditStatusActive, models.CreditStatusOverdue}:  TriggerOverdueSweep,
	{models.CreditStatusOverdue, models.CreditStatusActive}:  TriggerRepayment,
	{models.CreditStatusActive, models.CreditStatusPaidOff}:  TriggerRepayment,
	{models.CreditStatusOverdue, models.CreditStatusPaidOff}: TriggerRepayment,
}

// CanTransition reports whether from -> to is legal for the given trigger
func CanTransition(from, to models.CreditStatus, by Trigger) bool {
	t, ok := transitions[edge{from, to}]
	return ok && t == by
}

// Transition moves the credit to the target status or fails with
// models.ErrInvalidState without touching it.
func Transition(c *models.Credit, to models.CreditStatus, by Trigger) error {
	if !CanTransition(c.Status, to, by) {
		return fmt.Errorf("%w: credit %d cannot move from %s to %s on %s",
			models.ErrInvalidState, c.ID, c.Status, to, by)
	}
	c.Status = to
	return nil
}

// CanRepay reports whether a credit in status s accepts payments
func CanRepay(s models.CreditStatus) bool {
	return s == models.CreditStatusActive || s == models.CreditStatusOverdue
}
