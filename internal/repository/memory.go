package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Dan9191/credit-service/internal/models"
)

// MemoryStore keeps everything in process memory. Transactions and every call
// made outside one share a single lock, so a rollback that restores the
// snapshot only drops the transaction's own writes and no caller sees
// uncommitted state. It is meant for local runs and tests, not for multiple
// replicas.
type MemoryStore struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data memData
	now  func() time.Time
}

type memData struct {
	tariffs  map[int64]models.Tariff
	credits  map[int64]models.Credit
	schedule map[int64][]models.PaymentSchedule
	payments map[int64][]models.Payment

	tariffSeq, creditSeq, scheduleSeq, paymentSeq int64
}

type memTxKey struct{}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: memData{
			tariffs:  map[int64]models.Tariff{},
			credits:  map[int64]models.Credit{},
			schedule: map[int64][]models.PaymentSchedule{},
			payments: map[int64][]models.Payment{},
		},
		now: time.Now,
	}
}

func (d memData) clone() memData {
	c := d
	c.tariffs = make(map[int64]models.Tariff, len(d.tariffs))
	for k, v := range d.tariffs {
		c.tariffs[k] = v
	}
	c.credits = make(map[int64]models.Credit, len(d.credits))
	for k, v := range d.credits {
		c.credits[k] = v
	}
	c.schedule = make(map[int64][]models.PaymentSchedule, len(d.schedule))
	for k, v := range d.schedule {
		c.schedule[k] = append([]models.PaymentSchedule(nil), v...)
	}
	c.payments = make(map[int64][]models.Payment, len(d.payments))
	for k, v := range d.payments {
		c.payments[k] = append([]models.Payment(nil), v...)
	}
	return c
}

// WithTx runs fn atomically: if fn fails every write it made is undone
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.RLock()
	snapshot := m.data.clone()
	m.mu.RUnlock()

	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// guard takes the transaction lock for calls made outside a transaction
func (m *MemoryStore) guard(ctx context.Context) func() {
	if ctx.Value(memTxKey{}) != nil {
		return func() {}
	}
	m.txMu.Lock()
	return m.txMu.Unlock
}

// CreateTariff stores a tariff with a unique name
func (m *MemoryStore) CreateTariff(ctx context.Context, t *models.Tariff) error {
	defer m.guard(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.data.tariffs {
		if existing.Name == t.Name {
			return fmt.Errorf("failed to create tariff: %w: tariff %s already exists", models.ErrConflict, t.Name)
		}
	}
	m.data.tariffSeq++
	t.ID = m.data.tariffSeq
	t.CreatedAt = m.now()
	m.data.tariffs[t.ID] = *t
	return nil
}

// GetTariff retrieves a tariff by ID
func (m *MemoryStore) GetTariff(ctx context.Context, id int64) (*models.Tariff, error) {
	defer m.guard(ctx)()
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.data.tariffs[id]
	if !ok {
		return nil, fmt.Errorf("%w: tariff %d", models.ErrNotFound, id)
	}
	return &t, nil
}

// ListTariffs returns all tariffs ordered by ID
func (m *MemoryStore) ListTariffs(ctx context.Context) ([]models.Tariff, error) {
	defer m.guard(ctx)()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tariffsWhere(func(models.Tariff) bool { return true }), nil
}

// ListExpiredActiveTariffs returns active tariffs whose validity ended before the given day
func (m *MemoryStore) ListExpiredActiveTariffs(ctx context.Context, before time.Time) ([]models.Tariff, error) {
	defer m.guard(ctx)()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tariffsWhere(func(t models.Tariff) bool {
		return t.IsActive && t.ActiveUntil.Before(before)
	}), nil
}

func (m *MemoryStore) tariffsWhere(keep func(models.Tariff) bool) []models.Tariff {
	var out []models.Tariff
	for _, t := range m.data.tariffs {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DeactivateTariff switches a tariff off
func (m *MemoryStore) DeactivateTariff(ctx context.Context, id int64) error {
	defer m.guard(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.data.tariffs[id]
	if !ok {
		return fmt.Errorf("%w: tariff %d", models.ErrNotFound, id)
	}
	t.IsActive = false
	m.data.tariffs[id] = t
	return nil
}

// DeleteTariff removes a tariff that no credit references
func (m *MemoryStore) DeleteTariff(ctx context.Context, id int64) error {
	defer m.guard(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.tariffs[id]; !ok {
		return fmt.Errorf("%w: tariff %d", models.ErrNotFound, id)
	}
	for _, c := range m.data.credits {
		if c.TariffID == id {
			return fmt.Errorf("failed to delete tariff: %w: tariff %d is still referenced", models.ErrConflict, id)
		}
	}
	delete(m.data.tariffs, id)
	return nil
}

// CreateCredit stores a new credit and assigns its ID
func (m *MemoryStore) CreateCredit(ctx context.Context, c *models.Credit) error {
	defer m.guard(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.tariffs[c.TariffID]; !ok {
		return fmt.Errorf("failed to create credit: %w: tariff %d", models.ErrNotFound, c.TariffID)
	}
	m.data.creditSeq++
	c.ID = m.data.creditSeq
	m.data.credits[c.ID] = *c
	return nil
}

// GetCredit retrieves a credit by ID
func (m *MemoryStore) GetCredit(ctx context.Context, id int64) (*models.Credit, error) {
	defer m.guard(ctx)()
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.data.credits[id]
	if !ok {
		return nil, fmt.Errorf("%w: credit %d", models.ErrNotFound, id)
	}
	return &c, nil
}

// LockCredit retrieves a credit inside a transaction. Transactions are
// already serialized, so no per-row lock is taken.
func (m *MemoryStore) LockCredit(ctx context.Context, id int64) (*models.Credit, error) {
	if ctx.Value(memTxKey{}) == nil {
		return nil, fmt.Errorf("lock credit %d: no transaction in context", id)
	}
	return m.GetCredit(ctx, id)
}

// UpdateCredit replaces the stored credit
func (m *MemoryStore) UpdateCredit(ctx context.Context, c *models.Credit) error {
	defer m.guard(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.credits[c.ID]; !ok {
		return fmt.Errorf("%w: credit %d", models.ErrNotFound, c.ID)
	}
	m.data.credits[c.ID] = *c
	return nil
}

// ListCredits returns every credit ordered by ID
func (m *MemoryStore) ListCredits(ctx context.Context) ([]models.Credit, error) {
	defer m.guard(ctx)()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creditsWhere(func(models.Credit) bool { return true }), nil
}

// ListCreditsByOwner returns the credits of one owner
func (m *MemoryStore) ListCreditsByOwner(ctx context.Context, ownerID string) ([]models.Credit, error) {
	defer m.guard(ctx)()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.creditsWhere(func(c models.Credit) bool { return c.OwnerID == ownerID }), nil
}

// ListCreditIDsByStatus returns the IDs of credits in any of the statuses
func (m *MemoryStore) ListCreditIDsByStatus(ctx context.Context, statuses ...models.CreditStatus) ([]int64, error) {
	defer m.guard(ctx)()
	m.mu.RLock()
	defer m.mu.RUnlock()
	credits := m.creditsWhere(func(c models.Credit) bool {
		for _, s := range statuses {
			if c.Status == s {
				return true
			}
		}
		return false
	})
	ids := make([]int64, len(credits))
	for i, c := range credits {
		ids[i] = c.ID
	}
	return ids, nil
}

func (m *MemoryStore) creditsWhere(keep func(models.Credit) bool) []models.Credit {
	var out []models.Credit
	for _, c := range m.data.credits {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// CreateSchedule stores the generated schedule rows of a credit
func (m *MemoryStore) CreateSchedule(ctx context.Context, rows []models.PaymentSchedule) error {
	defer m.guard(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for i := range rows {
		if _, ok := m.data.credits[rows[i].CreditID]; !ok {
			return fmt.Errorf("failed to create schedule row %d: %w: credit %d",
				rows[i].PeriodNumber, models.ErrNotFound, rows[i].CreditID)
		}
		m.data.scheduleSeq++
		rows[i].ID = m.data.scheduleSeq
		rows[i].CreatedAt = now
		m.data.schedule[rows[i].CreditID] = append(m.data.schedule[rows[i].CreditID], rows[i])
	}
	return nil
}

// ListSchedule returns the schedule of a credit ordered by period
func (m *MemoryStore) ListSchedule(ctx context.Context, creditID int64) ([]models.PaymentSchedule, error) {
	defer m.guard(ctx)()
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.PaymentSchedule(nil), m.data.schedule[creditID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].PeriodNumber < out[j].PeriodNumber })
	return out, nil
}

// CreatePayment appends a payment record
func (m *MemoryStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	defer m.guard(ctx)()
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.credits[p.CreditID]; !ok {
		return fmt.Errorf("failed to create payment: %w: credit %d", models.ErrNotFound, p.CreditID)
	}
	m.data.paymentSeq++
	p.ID = m.data.paymentSeq
	m.data.payments[p.CreditID] = append(m.data.payments[p.CreditID], *p)
	return nil
}

// ListPayments returns the payments of a credit, newest first
func (m *MemoryStore) ListPayments(ctx context.Context, creditID int64) ([]models.Payment, error) {
	defer m.guard(ctx)()
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.Payment(nil), m.data.payments[creditID]...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].PaymentDate.Equal(out[j].PaymentDate) {
			return out[i].ID > out[j].ID
		}
		return out[i].PaymentDate.After(out[j].PaymentDate)
	})
	return out, nil
}
