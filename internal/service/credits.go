package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/credit-service/internal/amortization"
	"github.com/Dan9191/credit-service/internal/lifecycle"
	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/money"
	"github.com/Dan9191/credit-service/internal/repayment"
	"github.com/Dan9191/credit-service/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// TakeCreditRequest describes a credit to originate
type TakeCreditRequest struct {
	TariffID       int64           `json:"tariff_id"`
	BankAccountID  string          `json:"bank_account_id"`
	Amount         decimal.Decimal `json:"amount"`
	DurationMonths int             `json:"duration_months"`
}

// RepayCreditRequest describes a manual repayment
type RepayCreditRequest struct {
	BankAccountID string          `json:"bank_account_id"`
	Amount        decimal.Decimal `json:"amount"`
}

func upstream(err error, what string) error {
	return fmt.Errorf("failed to %s: %w: %w", what, models.ErrUpstream, err)
}

// TakeCredit originates a credit: it stores the credit with its schedule and
// pays the principal out to the caller's bank account in one transaction
func (s *Service) TakeCredit(ctx context.Context, caller Caller, req TakeCreditRequest) (*models.CreditView, error) {
	log := s.log.WithFields(logrus.Fields{"operation": "take_credit", "owner_id": caller.ID})

	if req.BankAccountID == "" {
		return nil, fmt.Errorf("%w: bank account is required", models.ErrInvalidInput)
	}
	if req.Amount.LessThan(s.opts.MinCreditAmount) {
		return nil, fmt.Errorf("%w: credit amount must be at least %s", models.ErrInvalidAmount, s.opts.MinCreditAmount)
	}
	if !req.Amount.Equal(money.Round2(req.Amount)) {
		return nil, fmt.Errorf("%w: credit amount %s has more than two fractional digits", models.ErrInvalidAmount, req.Amount)
	}
	if req.DurationMonths < 1 {
		return nil, fmt.Errorf("%w: duration must be at least 1 month, got %d", models.ErrInvalidTerm, req.DurationMonths)
	}

	tariff, err := s.store.GetTariff(ctx, req.TariffID)
	if err != nil {
		return nil, err
	}
	if !tariff.IsActive {
		return nil, fmt.Errorf("%w: tariff %d is not active", models.ErrInvalidState, tariff.ID)
	}
	if tariffExpired(tariff, s.clock.Now()) {
		return nil, fmt.Errorf("%w: tariff %d expired on %s", models.ErrInvalidState, tariff.ID,
			tariff.ActiveUntil.Format("2006-01-02"))
	}
	if err := s.accounts.VerifyOwnership(ctx, caller.AuthHeader, req.BankAccountID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	plan, err := amortization.NewPlan(req.Amount, tariff.AnnualInterestRate, req.DurationMonths, now, s.opts.Step)
	if err != nil {
		return nil, err
	}

	credit := &models.Credit{
		OwnerID:            caller.ID,
		OwnerEmail:         caller.Email,
		TariffID:           tariff.ID,
		BankAccountID:      req.BankAccountID,
		Principal:          req.Amount,
		RemainingPrincipal: req.Amount,
		InstallmentAmount:  plan.Installment,
		DurationMonths:     req.DurationMonths,
		RemainingMonths:    req.DurationMonths,
		AccumulatedPenalty: decimal.Zero,
		Status:             models.CreditStatusActive,
		IssueDate:          now,
		NextPaymentDate:    plan.Rows[0].DueDate,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	credit.Signature = utils.SignCredit(credit, s.opts.SignatureKey)

	paidOut := false
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		if err := s.store.CreateCredit(ctx, credit); err != nil {
			return err
		}
		for i := range plan.Rows {
			plan.Rows[i].CreditID = credit.ID
		}
		if err := s.store.CreateSchedule(ctx, plan.Rows); err != nil {
			return err
		}
		// money moves last, once every row is written
		if err := s.ledger.ApplyCredit(ctx, credit.BankAccountID, credit.Principal); err != nil {
			return upstream(err, "apply credit to bank account")
		}
		paidOut = true
		return nil
	})
	if err != nil {
		if paidOut {
			log.WithField("bank_account_id", req.BankAccountID).
				Errorf("Principal %s was paid out but the credit was not stored: %v", money.Format(req.Amount), err)
		}
		return nil, err
	}

	log.WithField("credit_id", credit.ID).Infof("Credit issued: %s for %d periods of %s, installment %s",
		money.Format(credit.Principal), credit.DurationMonths, s.opts.Step, money.Format(credit.InstallmentAmount))
	view := s.view(credit, tariff)
	return &view, nil
}

// RepayCredit applies a manual repayment from the caller's bank account
func (s *Service) RepayCredit(ctx context.Context, caller Caller, creditID int64, req RepayCreditRequest) (*models.RepaymentReceipt, error) {
	log := s.log.WithFields(logrus.Fields{"operation": "repay_credit", "credit_id": creditID})

	if req.BankAccountID == "" {
		return nil, fmt.Errorf("%w: bank account is required", models.ErrInvalidInput)
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: payment must be positive, got %s", models.ErrInvalidAmount, req.Amount)
	}

	current, err := s.store.GetCredit(ctx, creditID)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != caller.ID {
		return nil, fmt.Errorf("%w: credit %d does not belong to the caller", models.ErrAccessDenied, creditID)
	}
	if !lifecycle.CanRepay(current.Status) {
		return nil, fmt.Errorf("%w: credit %d cannot be repaid in status %s", models.ErrInvalidState, creditID, current.Status)
	}
	if !utils.VerifyCreditSignature(current, s.opts.SignatureKey) {
		log.Error("Stored credit terms do not match their signature")
		return nil, fmt.Errorf("credit %d failed signature verification", creditID)
	}
	tariff, err := s.store.GetTariff(ctx, current.TariffID)
	if err != nil {
		return nil, err
	}
	if err := s.accounts.VerifyOwnership(ctx, caller.AuthHeader, req.BankAccountID); err != nil {
		return nil, err
	}

	var alloc *repayment.Allocation
	charged := false
	err = s.store.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.store.LockCredit(ctx, creditID)
		if err != nil {
			return err
		}
		alloc, err = repayment.Allocate(*c, tariff.AnnualInterestRate, req.Amount, s.clock.Now(), s.opts.Step)
		if err != nil {
			return err
		}
		if err := s.store.UpdateCredit(ctx, &alloc.Credit); err != nil {
			return err
		}
		if err := s.store.CreatePayment(ctx, &alloc.Payment); err != nil {
			return err
		}
		if err := s.ledger.PayCredit(ctx, req.BankAccountID, req.Amount); err != nil {
			return upstream(err, "debit bank account")
		}
		charged = true
		return nil
	})
	if err != nil {
		if charged {
			log.WithField("bank_account_id", req.BankAccountID).
				Errorf("Repayment %s was debited but not recorded: %v", money.Format(req.Amount), err)
		}
		return nil, err
	}

	fields := logrus.Fields{
		"penalty_paid":   money.Format(alloc.PenaltyPaid),
		"interest_paid":  money.Format(alloc.InterestPaid),
		"principal_paid": money.Format(alloc.PrincipalPaid),
		"status":         alloc.Credit.Status,
	}
	if alloc.Excess.IsPositive() {
		log.WithFields(fields).Warnf("Repayment exceeded the outstanding principal by %s", money.Format(alloc.Excess))
	}
	if alloc.PaidOff {
		log.WithFields(fields).Info("Credit is fully paid off")
	} else {
		log.WithFields(fields).Info("Credit payment processed")
	}

	return &models.RepaymentReceipt{
		Payment:            alloc.Payment,
		PenaltyPaid:        alloc.PenaltyPaid,
		InterestPaid:       alloc.InterestPaid,
		PrincipalPaid:      alloc.PrincipalPaid,
		CreditStatus:       alloc.Credit.Status,
		RemainingPrincipal: alloc.Credit.RemainingPrincipal,
		RemainingMonths:    alloc.Credit.RemainingMonths,
		NextPaymentDate:    alloc.Credit.NextPaymentDate,
	}, nil
}

// GetCredit returns one credit to its owner or an employee
func (s *Service) GetCredit(ctx context.Context, caller Caller, id int64) (*models.CreditView, error) {
	c, err := s.readableCredit(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	tariff, err := s.store.GetTariff(ctx, c.TariffID)
	if err != nil {
		return nil, err
	}
	view := s.view(c, tariff)
	return &view, nil
}

// ListMyCredits returns the caller's credits
func (s *Service) ListMyCredits(ctx context.Context, caller Caller) ([]models.CreditView, error) {
	credits, err := s.store.ListCreditsByOwner(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, credits)
}

// ListCredits returns every credit; employees only
func (s *Service) ListCredits(ctx context.Context, caller Caller) ([]models.CreditView, error) {
	if !caller.Employee {
		return nil, fmt.Errorf("%w: employee role required", models.ErrAccessDenied)
	}
	credits, err := s.store.ListCredits(ctx)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, credits)
}

// ListCreditsByOwner returns the credits of one client; employees only
func (s *Service) ListCreditsByOwner(ctx context.Context, caller Caller, ownerID string) ([]models.CreditView, error) {
	if !caller.Employee {
		return nil, fmt.Errorf("%w: employee role required", models.ErrAccessDenied)
	}
	credits, err := s.store.ListCreditsByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, credits)
}

// GetPayments returns the payment history of a credit, newest first
func (s *Service) GetPayments(ctx context.Context, caller Caller, creditID int64) ([]models.Payment, error) {
	if _, err := s.readableCredit(ctx, caller, creditID); err != nil {
		return nil, err
	}
	return s.store.ListPayments(ctx, creditID)
}

// GetSchedule returns the projected payment schedule of a credit
func (s *Service) GetSchedule(ctx context.Context, caller Caller, creditID int64) ([]models.PaymentSchedule, error) {
	if _, err := s.readableCredit(ctx, caller, creditID); err != nil {
		return nil, err
	}
	return s.store.ListSchedule(ctx, creditID)
}

// GetStatistics sums the projected cost of a credit from its schedule
func (s *Service) GetStatistics(ctx context.Context, caller Caller, creditID int64) (*models.CreditStatistics, error) {
	c, err := s.readableCredit(ctx, caller, creditID)
	if err != nil {
		return nil, err
	}
	tariff, err := s.store.GetTariff(ctx, c.TariffID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListSchedule(ctx, creditID)
	if err != nil {
		return nil, err
	}

	totalInterest := decimal.Zero
	for _, row := range rows {
		totalInterest = totalInterest.Add(row.InterestPortion)
	}
	return &models.CreditStatistics{
		CreditID:          c.ID,
		OriginalAmount:    c.Principal,
		InstallmentAmount: c.InstallmentAmount,
		DurationMonths:    c.DurationMonths,
		TotalToRepay:      c.Principal.Add(totalInterest),
		TotalInterest:     totalInterest,
		InterestRate:      tariff.RatePercent(),
	}, nil
}

func (s *Service) readableCredit(ctx context.Context, caller Caller, id int64) (*models.Credit, error) {
	c, err := s.store.GetCredit(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(caller, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) view(c *models.Credit, tariff *models.Tariff) models.CreditView {
	return models.CreditView{
		Credit:       *c,
		TariffName:   tariff.Name,
		InterestRate: tariff.RatePercent(),
		TotalAmount:  money.Round2(c.InstallmentAmount.Mul(decimal.NewFromInt(int64(c.DurationMonths)))),
	}
}

func (s *Service) views(ctx context.Context, credits []models.Credit) ([]models.CreditView, error) {
	tariffs := map[int64]*models.Tariff{}
	out := make([]models.CreditView, 0, len(credits))
	for i := range credits {
		t, ok := tariffs[credits[i].TariffID]
		if !ok {
			var err error
			if t, err = s.store.GetTariff(ctx, credits[i].TariffID); err != nil {
				return nil, err
			}
			tariffs[t.ID] = t
		}
		out = append(out, s.view(&credits[i], t))
	}
	return out, nil
}
