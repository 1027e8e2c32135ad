package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Dan9191/credit-service/internal/amortization"
	"github.com/Dan9191/credit-service/internal/clock"
	"github.com/Dan9191/credit-service/internal/config"
	"github.com/Dan9191/credit-service/internal/integrations/cbr"
	"github.com/Dan9191/credit-service/internal/middleware"
	"github.com/Dan9191/credit-service/internal/models"
	"github.com/Dan9191/credit-service/internal/money"
	"github.com/Dan9191/credit-service/internal/repository"
	"github.com/Dan9191/credit-service/internal/service"
	"github.com/Dan9191/credit-service/internal/sweep"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const jwtSecret = "handler-secret"

type fakeLedger struct {
	mock.Mock
}

func (m *fakeLedger) ApplyCredit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return m.Called(accountID, money.Format(amount)).Error(0)
}

func (m *fakeLedger) PayCredit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return m.Called(accountID, money.Format(amount)).Error(0)
}

type fakeAccounts struct{}

func (fakeAccounts) VerifyOwnership(ctx context.Context, authHeader, accountID string) error {
	if accountID == "acc-1" {
		return nil
	}
	return fmt.Errorf("%w: bank account %s", models.ErrAccessDenied, accountID)
}

type fakeRates struct {
	rate *cbr.KeyRate
	err  error
}

func (f fakeRates) GetKeyRate(ctx context.Context) (*cbr.KeyRate, error) {
	return f.rate, f.err
}

type fakeSweeps struct {
	calls int
}

func (f *fakeSweeps) RunSweep(ctx context.Context) (sweep.Report, error) {
	f.calls++
	return sweep.Report{MarkedOverdue: 1}, nil
}

type env struct {
	router http.Handler
	ledger *fakeLedger
	sweeps *fakeSweeps
	logs   *logtest.Hook
	client string
	staff  string
}

func token(t *testing.T, sub string, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": sub, "email": sub + "@example.com", "exp": time.Now().Add(time.Hour).Unix()}
	if len(roles) > 0 {
		claims["role"] = roles
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(jwtSecret))
	require.NoError(t, err)
	return "Bearer " + s
}

func newEnv(t *testing.T, rates KeyRateSource) *env {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	hash, err := bcrypt.GenerateFromPassword([]byte("internal-key"), bcrypt.MinCost)
	require.NoError(t, err)
	cfg := &config.Config{JWTSecret: jwtSecret, InternalKeyHash: string(hash)}

	e := &env{ledger: &fakeLedger{}, sweeps: &fakeSweeps{}, logs: logtest.NewLocal(log)}
	svc := service.NewService(repository.NewMemoryStore(), e.ledger, fakeAccounts{},
		clock.NewManual(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)),
		service.Options{MinCreditAmount: money.MustParse("1000"), Step: amortization.Monthly(), SignatureKey: "k"}, log)
	e.router = NewRouter(NewHandler(svc, rates, e.sweeps, log), cfg)
	e.client = token(t, "alice", "Client")
	e.staff = token(t, "emp", middleware.RoleEmployee)
	return e
}

func (e *env) do(t *testing.T, method, path, auth string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v), rec.Body.String())
}

func (e *env) createTariff(t *testing.T) int64 {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/employee/tariffs", e.staff, map[string]interface{}{
		"name": "Standard", "interest_rate": 12, "active_until": "2030-01-01T00:00:00Z",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tariff models.TariffView
	decodeBody(t, rec, &tariff)
	return tariff.ID
}

func TestPublicRoutes(t *testing.T) {
	e := newEnv(t, fakeRates{rate: &cbr.KeyRate{KeyRate: money.MustParse("21"), TotalRate: money.MustParse("26")}})

	rec := e.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/key-rate", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var kr cbr.KeyRate
	decodeBody(t, rec, &kr)
	assert.Equal(t, "26", kr.TotalRate.String())

	id := e.createTariff(t)
	rec = e.do(t, http.MethodGet, fmt.Sprintf("/api/tariffs/%d", id), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tariff models.TariffView
	decodeBody(t, rec, &tariff)
	assert.Equal(t, "12", tariff.InterestRate.String())

	rec = e.do(t, http.MethodGet, "/api/tariffs/77", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKeyRateUnavailable(t *testing.T) {
	e := newEnv(t, fakeRates{err: errors.New("timeout")})
	rec := e.do(t, http.MethodGet, "/key-rate", "", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestEmployeeRoutesNeedRole(t *testing.T) {
	e := newEnv(t, fakeRates{})
	body := map[string]interface{}{"name": "X", "interest_rate": 5, "active_until": "2030-01-01T00:00:00Z"}

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, "/api/employee/tariffs", "", body).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPost, "/api/employee/tariffs", e.client, body).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/api/employee/credits", e.client, nil).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, "/api/employee/credits", e.staff, nil).Code)
}

func TestCreditFlow(t *testing.T) {
	e := newEnv(t, fakeRates{})
	tariffID := e.createTariff(t)
	e.ledger.On("ApplyCredit", "acc-1", "100000.00").Return(nil).Once()
	e.ledger.On("PayCredit", "acc-1", "8884.88").Return(nil).Once()

	rec := e.do(t, http.MethodPost, "/api/credits", e.client, map[string]interface{}{
		"tariff_id": tariffID, "bank_account_id": "acc-1", "amount": "100000", "duration_months": 12,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var credit models.CreditView
	decodeBody(t, rec, &credit)
	assert.Equal(t, "8884.88", money.Format(credit.InstallmentAmount))
	assert.Equal(t, models.CreditStatusActive, credit.Status)

	rec = e.do(t, http.MethodGet, "/api/credits/my", e.client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []models.CreditView
	decodeBody(t, rec, &mine)
	assert.Len(t, mine, 1)

	path := fmt.Sprintf("/api/credits/%d", credit.ID)
	rec = e.do(t, http.MethodPost, path+"/repay", e.client, map[string]interface{}{"bank_account_id": "acc-1", "amount": 8884.88})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var receipt models.RepaymentReceipt
	decodeBody(t, rec, &receipt)
	assert.Equal(t, "1000.00", money.Format(receipt.InterestPaid))
	assert.Equal(t, "7884.88", money.Format(receipt.PrincipalPaid))

	for _, suffix := range []string{"", "/payments", "/schedule", "/statistics"} {
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, path+suffix, e.client, nil).Code, suffix)
		assert.Equal(t, http.StatusOK, e.do(t, http.MethodGet, path+suffix, e.staff, nil).Code, suffix)
		assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, path+suffix, token(t, "mallory"), nil).Code, suffix)
	}

	rec = e.do(t, http.MethodGet, "/api/employee/credits/client/alice", e.staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var byOwner []models.CreditView
	decodeBody(t, rec, &byOwner)
	assert.Len(t, byOwner, 1)

	rec = e.do(t, http.MethodDelete, fmt.Sprintf("/api/employee/tariffs/%d", tariffID), e.staff, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	e.ledger.AssertExpectations(t)
}

func TestCreditErrors(t *testing.T) {
	e := newEnv(t, fakeRates{})
	tariffID := e.createTariff(t)
	e.ledger.On("ApplyCredit", "acc-1", "2000.00").Return(errors.New("core down"))

	cases := []struct {
		name string
		body interface{}
		want int
	}{
		{"malformed", "not an object", http.StatusBadRequest},
		{"too small", map[string]interface{}{"tariff_id": tariffID, "bank_account_id": "acc-1", "amount": 10, "duration_months": 12}, http.StatusBadRequest},
		{"bad term", map[string]interface{}{"tariff_id": tariffID, "bank_account_id": "acc-1", "amount": 5000, "duration_months": 0}, http.StatusBadRequest},
		{"unknown tariff", map[string]interface{}{"tariff_id": 99, "bank_account_id": "acc-1", "amount": 5000, "duration_months": 6}, http.StatusNotFound},
		{"foreign account", map[string]interface{}{"tariff_id": tariffID, "bank_account_id": "acc-2", "amount": 5000, "duration_months": 6}, http.StatusForbidden},
		{"ledger down", map[string]interface{}{"tariff_id": tariffID, "bank_account_id": "acc-1", "amount": 2000, "duration_months": 6}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := e.do(t, http.MethodPost, "/api/credits", e.client, tc.body)
			assert.Equal(t, tc.want, rec.Code)
			var body models.ErrorResponse
			decodeBody(t, rec, &body)
			assert.Equal(t, tc.want, body.Status)
			assert.NotEmpty(t, body.Error)
		})
	}

	rec := e.do(t, http.MethodGet, "/api/credits/404", e.client, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodPost, "/api/credits/404/repay", e.client, map[string]interface{}{"bank_account_id": "acc-1", "amount": 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInternalSweep(t *testing.T) {
	e := newEnv(t, fakeRates{})

	req := httptest.NewRequest(http.MethodPost, "/internal/sweeps/run", nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/internal/sweeps/run", nil)
	req.Header.Set(middleware.InternalKeyHeader, "internal-key")
	rec = httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var report sweep.Report
	decodeBody(t, rec, &report)
	assert.Equal(t, 1, report.MarkedOverdue)
	assert.Equal(t, 1, e.sweeps.calls)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", models.ErrNotFound), http.StatusNotFound},
		{models.ErrInvalidState, http.StatusConflict},
		{models.ErrConflict, http.StatusConflict},
		{models.ErrInvalidAmount, http.StatusBadRequest},
		{models.ErrInvalidTerm, http.StatusBadRequest},
		{models.ErrInvalidInput, http.StatusBadRequest},
		{models.ErrAccessDenied, http.StatusForbidden},
		{models.ErrUnauthorized, http.StatusUnauthorized},
		{models.ErrUpstream, http.StatusBadGateway},
		{errors.New("pq: connection refused"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, msg := statusFor(tc.err)
		assert.Equal(t, tc.want, status, tc.err.Error())
		if status == http.StatusInternalServerError {
			assert.Equal(t, "internal server error", msg)
		}
	}
}

func TestRejectionLogNamesPathVariable(t *testing.T) {
	e := newEnv(t, fakeRates{})

	rec := e.do(t, http.MethodDelete, "/api/employee/tariffs/99", e.staff, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/credits/77", e.client, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var rejected []*logrus.Entry
	for _, entry := range e.logs.AllEntries() {
		if strings.HasPrefix(entry.Message, "Request rejected") {
			rejected = append(rejected, entry)
		}
	}
	require.Len(t, rejected, 2)

	assert.Equal(t, "delete_tariff", rejected[0].Data["operation"])
	assert.Equal(t, "99", rejected[0].Data["tariff_id"])
	assert.NotContains(t, rejected[0].Data, "credit_id")

	assert.Equal(t, "get_credit", rejected[1].Data["operation"])
	assert.Equal(t, "77", rejected[1].Data["credit_id"])
	assert.NotContains(t, rejected[1].Data, "tariff_id")
}
