package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/infra/resilience"
)

// RatesClient fetches exchange rate tables from a rates API answering
// GET /latest?base=XXX with {"base": "...", "date": "YYYY-MM-DD", "rates": {...}}.
type RatesClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

type ratesResponse struct {
	Base  string                     `json:"base"`
	Date  string                     `json:"date"`
	Rates map[string]decimal.Decimal `json:"rates"`
}

// NewRatesClient creates a new RatesClient.
func NewRatesClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *RatesClient {
	return &RatesClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// GetRates fetches the latest rates quoted against base.
func (c *RatesClient) GetRates(ctx context.Context, base string) (*domain.RateTable, error) {
	ctx, span := tracer.Start(ctx, "RatesClient.GetRates")
	defer span.End()
	base = strings.ToUpper(base)
	span.SetAttributes(attribute.String("rates.base", base))

	endpoint := fmt.Sprintf("%s/latest?base=%s", c.baseURL, url.QueryEscape(base))

	table, err := resilience.Call(ctx, c.cb, c.cfg, "rates", func() (*domain.RateTable, error) {
		var body ratesResponse
		if err := getJSON(ctx, c.httpClient, endpoint, "rates", base, &body); err != nil {
			return nil, err
		}
		return body.table(base), nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, wrapExternal("rates", err)
	}
	span.SetAttributes(attribute.Int("rates.count", len(table.Rates)))
	return table, nil
}

func (r ratesResponse) table(requested string) *domain.RateTable {
	t := &domain.RateTable{
		Base:  strings.ToUpper(r.Base),
		Rates: make(map[string]decimal.Decimal, len(r.Rates)),
	}
	if t.Base == "" {
		t.Base = requested
	}
	for cur, rate := range r.Rates {
		t.Rates[strings.ToUpper(cur)] = rate
	}
	if d, err := time.Parse(time.DateOnly, r.Date); err == nil {
		t.AsOf = d
	}
	return t
}
