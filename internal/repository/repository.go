package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/credit-service/internal/models"
	"github.com/lib/pq"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// txKey carries the open *sql.Tx in a context
type txKey struct{}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository provides database operations
type Repository struct {
	db *sql.DB
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return r.db
}

// WithTx runs fn inside a transaction that is committed when fn returns nil
// and rolled back otherwise. Nested calls join the outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func classify(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%w: %s already exists", models.ErrConflict, what)
		case foreignKeyViolation:
			return fmt.Errorf("%w: %s is still referenced", models.ErrConflict, what)
		}
	}
	return err
}

// CreateTariff creates a new tariff in the database
func (r *Repository) CreateTariff(ctx context.Context, t *models.Tariff) error {
	query := `
		INSERT INTO credit.tariffs (name, annual_interest_rate, active_until, is_active, created_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	err := r.q(ctx).QueryRowContext(ctx, query, t.Name, t.AnnualInterestRate, t.ActiveUntil, t.IsActive).
		Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tariff: %w", classify(err, "tariff "+t.Name))
	}
	return nil
}

const tariffColumns = `id, name, annual_interest_rate, active_until, is_active, created_at`

func scanTariff(row interface{ Scan(...any) error }) (*models.Tariff, error) {
	t := &models.Tariff{}
	err := row.Scan(&t.ID, &t.Name, &t.AnnualInterestRate, &t.ActiveUntil, &t.IsActive, &t.CreatedAt)
	return t, err
}

// GetTariff retrieves a tariff by ID
func (r *Repository) GetTariff(ctx context.Context, id int64) (*models.Tariff, error) {
	query := `SELECT ` + tariffColumns + ` FROM credit.tariffs WHERE id = $1`
	t, err := scanTariff(r.q(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: tariff %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find tariff: %w", err)
	}
	return t, nil
}

// ListTariffs returns all tariffs ordered by ID
func (r *Repository) ListTariffs(ctx context.Context) ([]models.Tariff, error) {
	query := `SELECT ` + tariffColumns + ` FROM credit.tariffs ORDER BY id`
	return r.queryTariffs(ctx, query)
}

// ListExpiredActiveTariffs returns active tariffs whose validity ended before the given day
func (r *Repository) ListExpiredActiveTariffs(ctx context.Context, before time.Time) ([]models.Tariff, error) {
	query := `SELECT ` + tariffColumns + ` FROM credit.tariffs WHERE is_active AND active_until < $1 ORDER BY id`
	return r.queryTariffs(ctx, query, before)
}

func (r *Repository) queryTariffs(ctx context.Context, query string, args ...any) ([]models.Tariff, error) {
	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tariffs: %w", err)
	}
	defer rows.Close()

	var tariffs []models.Tariff
	for rows.Next() {
		t, err := scanTariff(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tariff: %w", err)
		}
		tariffs = append(tariffs, *t)
	}
	return tariffs, rows.Err()
}

// DeactivateTariff switches a tariff off
func (r *Repository) DeactivateTariff(ctx context.Context, id int64) error {
	res, err := r.q(ctx).ExecContext(ctx, `UPDATE credit.tariffs SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate tariff: %w", err)
	}
	return expectOne(res, "tariff", id)
}

// DeleteTariff removes a tariff that no credit references
func (r *Repository) DeleteTariff(ctx context.Context, id int64) error {
	res, err := r.q(ctx).ExecContext(ctx, `DELETE FROM credit.tariffs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tariff: %w", classify(err, fmt.Sprintf("tariff %d", id)))
	}
	return expectOne(res, "tariff", id)
}

func expectOne(res sql.Result, what string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %d", models.ErrNotFound, what, id)
	}
	return nil
}

// CreateCredit creates a new credit in the database
func (r *Repository) CreateCredit(ctx context.Context, c *models.Credit) error {
	query := `
		INSERT INTO credit.credits (owner_id, owner_email, tariff_id, bank_account_id, principal,
			remaining_principal, installment_amount, duration_months, remaining_months,
			accumulated_penalty, overdue_days, status, issue_date, next_payment_date, signature,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id`
	err := r.q(ctx).QueryRowContext(ctx, query,
		c.OwnerID, c.OwnerEmail, c.TariffID, c.BankAccountID, c.Principal,
		c.RemainingPrincipal, c.InstallmentAmount, c.DurationMonths, c.RemainingMonths,
		c.AccumulatedPenalty, c.OverdueDays, c.Status, c.IssueDate, c.NextPaymentDate, c.Signature,
		c.CreatedAt, c.UpdatedAt).
		Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create credit: %w", classify(err, "credit"))
	}
	return nil
}

const creditColumns = `id, owner_id, owner_email, tariff_id, bank_account_id, principal, remaining_principal,
	installment_amount, duration_months, remaining_months, accumulated_penalty, overdue_days, status,
	issue_date, next_payment_date, signature, created_at, updated_at`

func scanCredit(row interface{ Scan(...any) error }) (*models.Credit, error) {
	c := &models.Credit{}
	err := row.Scan(&c.ID, &c.OwnerID, &c.OwnerEmail, &c.TariffID, &c.BankAccountID, &c.Principal,
		&c.RemainingPrincipal, &c.InstallmentAmount, &c.DurationMonths, &c.RemainingMonths,
		&c.AccumulatedPenalty, &c.OverdueDays, &c.Status, &c.IssueDate, &c.NextPaymentDate,
		&c.Signature, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// GetCredit retrieves a credit by ID
func (r *Repository) GetCredit(ctx context.Context, id int64) (*models.Credit, error) {
	return r.getCredit(ctx, `SELECT `+creditColumns+` FROM credit.credits WHERE id = $1`, id)
}

// LockCredit retrieves a credit and locks its row until the surrounding
// transaction ends. Must be called inside WithTx.
func (r *Repository) LockCredit(ctx context.Context, id int64) (*models.Credit, error) {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); !ok {
		return nil, fmt.Errorf("lock credit %d: no transaction in context", id)
	}
	return r.getCredit(ctx, `SELECT `+creditColumns+` FROM credit.credits WHERE id = $1 FOR UPDATE`, id)
}

func (r *Repository) getCredit(ctx context.Context, query string, id int64) (*models.Credit, error) {
	c, err := scanCredit(r.q(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: credit %d", models.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find credit: %w", err)
	}
	return c, nil
}

// UpdateCredit writes the mutable state of a credit
func (r *Repository) UpdateCredit(ctx context.Context, c *models.Credit) error {
	query := `
		UPDATE credit.credits
		SET remaining_principal = $2, remaining_months = $3, accumulated_penalty = $4,
			overdue_days = $5, status = $6, next_payment_date = $7, updated_at = $8
		WHERE id = $1`
	res, err := r.q(ctx).ExecContext(ctx, query, c.ID, c.RemainingPrincipal, c.RemainingMonths,
		c.AccumulatedPenalty, c.OverdueDays, c.Status, c.NextPaymentDate, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update credit: %w", err)
	}
	return expectOne(res, "credit", c.ID)
}

// ListCredits returns every credit
func (r *Repository) ListCredits(ctx context.Context) ([]models.Credit, error) {
	return r.queryCredits(ctx, `SELECT `+creditColumns+` FROM credit.credits ORDER BY id`)
}

// ListCreditsByOwner returns the credits of one owner
func (r *Repository) ListCreditsByOwner(ctx context.Context, ownerID string) ([]models.Credit, error) {
	return r.queryCredits(ctx, `SELECT `+creditColumns+` FROM credit.credits WHERE owner_id = $1 ORDER BY id`, ownerID)
}

func (r *Repository) queryCredits(ctx context.Context, query string, args ...any) ([]models.Credit, error) {
	rows, err := r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list credits: %w", err)
	}
	defer rows.Close()

	var credits []models.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan credit: %w", err)
		}
		credits = append(credits, *c)
	}
	return credits, rows.Err()
}

// ListCreditIDsByStatus returns the IDs of credits in any of the statuses
func (r *Repository) ListCreditIDsByStatus(ctx context.Context, statuses ...models.CreditStatus) ([]int64, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	rows, err := r.q(ctx).QueryContext(ctx,
		`SELECT id FROM credit.credits WHERE status = ANY($1) ORDER BY id`, pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("failed to list credit ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan credit id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateSchedule stores the generated schedule rows of a credit
func (r *Repository) CreateSchedule(ctx context.Context, rows []models.PaymentSchedule) error {
	query := `
		INSERT INTO credit.payment_schedule (credit_id, period_number, due_date, total_payment,
			interest_portion, principal_portion, remaining_balance, paid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CURRENT_TIMESTAMP)
		RETURNING id, created_at`
	for i := range rows {
		row := &rows[i]
		err := r.q(ctx).QueryRowContext(ctx, query, row.CreditID, row.PeriodNumber, row.DueDate,
			row.TotalPayment, row.InterestPortion, row.PrincipalPortion, row.RemainingBalance, row.Paid).
			Scan(&row.ID, &row.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create schedule row %d: %w", row.PeriodNumber, err)
		}
	}
	return nil
}

// ListSchedule returns the schedule of a credit ordered by period
func (r *Repository) ListSchedule(ctx context.Context, creditID int64) ([]models.PaymentSchedule, error) {
	query := `
		SELECT id, credit_id, period_number, due_date, total_payment, interest_portion,
			principal_portion, remaining_balance, paid, created_at
		FROM credit.payment_schedule
		WHERE credit_id = $1
		ORDER BY period_number`
	rows, err := r.q(ctx).QueryContext(ctx, query, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedule: %w", err)
	}
	defer rows.Close()

	var schedule []models.PaymentSchedule
	for rows.Next() {
		var s models.PaymentSchedule
		if err := rows.Scan(&s.ID, &s.CreditID, &s.PeriodNumber, &s.DueDate, &s.TotalPayment,
			&s.InterestPortion, &s.PrincipalPortion, &s.RemainingBalance, &s.Paid, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schedule row: %w", err)
		}
		schedule = append(schedule, s)
	}
	return schedule, rows.Err()
}

// CreatePayment appends a payment record
func (r *Repository) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO credit.payments (credit_id, amount, payment_type, payment_date, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`
	err := r.q(ctx).QueryRowContext(ctx, query, p.CreditID, p.Amount, p.PaymentType, p.PaymentDate, p.CreatedAt).
		Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// ListPayments returns the payments of a credit, newest first
func (r *Repository) ListPayments(ctx context.Context, creditID int64) ([]models.Payment, error) {
	query := `
		SELECT id, credit_id, amount, payment_type, payment_date, created_at
		FROM credit.payments
		WHERE credit_id = $1
		ORDER BY payment_date DESC, id DESC`
	rows, err := r.q(ctx).QueryContext(ctx, query, creditID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.CreditID, &p.Amount, &p.PaymentType, &p.PaymentDate, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
