// Package core talks to the core banking service that owns bank accounts.
package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Dan9191/credit-service/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BankAccount is an account as the core service returns it
type BankAccount struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
}

type moneyOperation struct {
	Amount decimal.Decimal `json:"amount"`
}

// Client handles calls to the core service
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *logrus.Logger
}

// NewClient initializes a new core service client
func NewClient(baseURL, apiKey string, timeout time.Duration, log *logrus.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// MyAccounts lists the caller's bank accounts, forwarding their Authorization header
func (c *Client) MyAccounts(ctx context.Context, authHeader string) ([]BankAccount, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/bank-accounts/my", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", authHeader)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var accounts []BankAccount
	if err := json.Unmarshal(body, &accounts); err != nil {
		return nil, fmt.Errorf("%w: failed to decode bank accounts: %v", models.ErrUpstream, err)
	}
	return accounts, nil
}

// VerifyOwnership checks that accountID is one of the caller's accounts
func (c *Client) VerifyOwnership(ctx context.Context, authHeader, accountID string) error {
	accounts, err := c.MyAccounts(ctx, authHeader)
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if strings.EqualFold(a.ID, accountID) {
			return nil
		}
	}
	return fmt.Errorf("%w: bank account %s does not belong to the caller", models.ErrAccessDenied, accountID)
}

// ApplyCredit credits the issued principal to the account
func (c *Client) ApplyCredit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return c.moveMoney(ctx, accountID, "apply-credit", amount)
}

// PayCredit debits a repayment from the account
func (c *Client) PayCredit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	return c.moveMoney(ctx, accountID, "pay-credit", amount)
}

func (c *Client) moveMoney(ctx context.Context, accountID, op string, amount decimal.Decimal) error {
	payload, err := json.Marshal(moneyOperation{Amount: amount})
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", op, err)
	}
	endpoint := fmt.Sprintf("%s/internal/bank-accounts/%s/%s", c.baseURL, url.PathEscape(accountID), op)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	if _, err := c.do(req); err != nil {
		return err
	}
	c.log.WithFields(logrus.Fields{"account_id": accountID, "operation": op}).
		Infof("Core service accepted %s RUB", amount.StringFixed(2))
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request to core service failed: %v", models.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read core service response: %v", models.ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Debugf("Core service %s %s answered %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(body))
		return nil, fmt.Errorf("%w: core service returned status %d", models.ErrUpstream, resp.StatusCode)
	}
	return body, nil
}
