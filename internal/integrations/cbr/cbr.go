package cbr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BankMargin is added on top of the central bank key rate, in percent
var BankMargin = decimal.NewFromInt(5)

// CBRClient handles integration with Central Bank of Russia
type CBRClient struct {
	url    string
	client *http.Client
	log    *logrus.Logger
	now    func() time.Time
}

// KeyRate is the latest key rate with the bank margin applied
type KeyRate struct {
	Date      time.Time       `json:"date"`
	KeyRate   decimal.Decimal `json:"key_rate"`
	Margin    decimal.Decimal `json:"margin"`
	TotalRate decimal.Decimal `json:"total_rate"`
}

// NewCBRClient initializes a new CBR client
func NewCBRClient(url string, log *logrus.Logger) *CBRClient {
	return &CBRClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
		now: time.Now,
	}
}

// buildSOAPRequest creates a SOAP request for the key rate over the last 30 days
func (c *CBRClient) buildSOAPRequest() string {
	now := c.now()
	fromDate := now.AddDate(0, 0, -30).Format("2006-01-02")
	toDate := now.Format("2006-01-02")
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
		<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
			<soap12:Body>
				<KeyRate xmlns="http://web.cbr.ru/">
					<fromDate>%s</fromDate>
					<ToDate>%s</ToDate>
				</KeyRate>
			</soap12:Body>
		</soap12:Envelope>`, fromDate, toDate)
}

// sendRequest sends SOAP request to CBR
func (c *CBRClient) sendRequest(ctx context.Context, soapRequest string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(soapRequest))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/soap+xml; charset=utf-8")
	req.Header.Set("SOAPAction", "http://web.cbr.ru/KeyRate")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.log.Debugf("CBR XML response: %s", string(body))
	return body, nil
}

// parseXMLResponse extracts the most recent key rate from the response
func (c *CBRClient) parseXMLResponse(rawBody []byte) (time.Time, decimal.Decimal, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(rawBody); err != nil {
		return time.Time{}, decimal.Zero, fmt.Errorf("failed to parse XML: %w", err)
	}

	krElements := doc.FindElements("//diffgram/KeyRate/KR")
	if len(krElements) == 0 {
		return time.Time{}, decimal.Zero, fmt.Errorf("no key rate data found in XML")
	}

	// CBR lists the newest rate first
	latestKR := krElements[0]
	rateElement := latestKR.FindElement("./Rate")
	if rateElement == nil {
		return time.Time{}, decimal.Zero, fmt.Errorf("rate element not found in XML")
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(rateElement.Text()))
	if err != nil {
		return time.Time{}, decimal.Zero, fmt.Errorf("failed to parse rate: %w", err)
	}

	var date time.Time
	if dt := latestKR.FindElement("./DT"); dt != nil {
		if parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(dt.Text())); err == nil {
			date = parsed
		}
	}
	return date, rate, nil
}

// GetKeyRate retrieves the current key rate from CBR and adds bank margin
func (c *CBRClient) GetKeyRate(ctx context.Context) (*KeyRate, error) {
	body, err := c.sendRequest(ctx, c.buildSOAPRequest())
	if err != nil {
		return nil, err
	}

	date, rate, err := c.parseXMLResponse(body)
	if err != nil {
		return nil, err
	}

	kr := &KeyRate{Date: date, KeyRate: rate, Margin: BankMargin, TotalRate: rate.Add(BankMargin)}
	c.log.Infof("Retrieved key rate: %s%% (including %s%% bank margin)", kr.TotalRate.StringFixed(2), BankMargin.StringFixed(2))
	return kr, nil
}
