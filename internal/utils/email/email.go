package email

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/Dan9191/credit-service/internal/config"
	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/money"
	"github.com/jordan-wright/email"
	"github.com/sirupsen/logrus"
)

// Sender handles sending emails via SMTP
type Sender struct {
	cfg    *config.Config
	logger *logrus.Logger
	send   func(e *email.Email, addr string, a smtp.Auth) error
}

// NewSender creates a new email sender
func NewSender(cfg *config.Config, logger *logrus.Logger) *Sender {
	return &Sender{
		cfg:    cfg,
		logger: logger,
		send:   func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}
}

// OverdueMessage builds the notice for a credit that just became overdue
func OverdueMessage(from string, c models.Credit) *email.Email {
	e := email.NewEmail()
	e.From = from
	e.To = []string{c.OwnerEmail}
	e.Subject = "Overdue Credit Payment Notification"

	body := "Dear client,\n\n"
	body += fmt.Sprintf(
		"Your payment of %s RUB on credit #%d was due on %s and is now overdue.\n"+
			"A penalty is charged while the payment stays overdue.\n"+
			"Please make the payment as soon as possible to avoid further penalties.\n",
		money.Format(c.InstallmentAmount), c.ID, c.NextPaymentDate.Format("2006-01-02"),
	)
	body += "\nBest regards,\nCredit Service"
	e.Text = []byte(body)
	return e
}

// NotifyOverdue e-mails the owner of an overdue credit
func (s *Sender) NotifyOverdue(ctx context.Context, c models.Credit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.OwnerEmail == "" {
		return fmt.Errorf("credit %d has no owner email", c.ID)
	}
	e := OverdueMessage(s.cfg.SenderEmail, c)

	addr := fmt.Sprintf("%s:%s", s.cfg.SMTPHost, s.cfg.SMTPPort)
	auth := smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	if err := s.send(e, addr, auth); err != nil {
		s.logger.Errorf("Failed to send email to %s: %v", c.OwnerEmail, err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Infof("Email sent to %s: %s", c.OwnerEmail, e.Subject)
	return nil
}
