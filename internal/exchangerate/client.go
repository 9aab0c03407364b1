// Package exchangerate converts receipt amounts into the reference currency
// using a live open.er-api.com compatible rate table.
package exchangerate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReferenceCurrency is the currency every stored amount is normalized into.
const ReferenceCurrency = "USD"

var (
	ErrRateUnavailable = errors.New("exchange rate unavailable")
	ErrUpstream        = errors.New("exchange rate upstream error")
)

// Conversion is the outcome of a normalization. Degraded conversions carry the
// original amount unchanged.
type Conversion struct {
	Amount    decimal.Decimal
	Rate      decimal.Decimal
	Converted bool
	Degraded  bool
	Err       error
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

type latestRatesResponse struct {
	Result   string                     `json:"result"`
	BaseCode string                     `json:"base_code"`
	Rates    map[string]decimal.Decimal `json:"rates"`
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}
}

// LatestRates fetches reference→target multipliers. One attempt, no retry.
func (c *Client) LatestRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v6/latest/%s", c.baseURL, ReferenceCurrency)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrUpstream, resp.StatusCode)
	}

	var body latestRatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if body.Result != "" && body.Result != "success" {
		return nil, fmt.Errorf("%w: result %q", ErrUpstream, body.Result)
	}

	return body.Rates, nil
}

// ToReference converts amount from currency into ReferenceCurrency. Any
// lookup failure falls back to the unconverted amount.
func (c *Client) ToReference(ctx context.Context, amount decimal.Decimal, currency string) Conversion {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == ReferenceCurrency {
		return Conversion{Amount: amount, Rate: decimal.NewFromInt(1)}
	}

	rates, err := c.LatestRates(ctx)
	if err != nil {
		c.logger.Warn("exchange rate lookup failed, keeping original amount",
			"currency", currency,
			"error", err)
		return Conversion{Amount: amount, Degraded: true, Err: err}
	}

	rate, ok := rates[currency]
	if !ok || !rate.IsPositive() {
		c.logger.Warn("exchange rate missing for currency, keeping original amount", "currency", currency)
		return Conversion{Amount: amount, Degraded: true, Err: fmt.Errorf("%w: %s", ErrRateUnavailable, currency)}
	}

	converted := amount.Div(rate).Round(2)
	c.logger.Debug("amount converted",
		"currency", currency,
		"rate", rate.String(),
		"amount", amount.String(),
		"amount_in_usd", converted.String())

	return Conversion{Amount: converted, Rate: rate, Converted: true}
}
