package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

// LedgerClient fetches ledger records from the ledger API.
type LedgerClient struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	cfg        resilience.Config
}

// NewLedgerClient creates a new LedgerClient.
func NewLedgerClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, cfg resilience.Config) *LedgerClient {
	return &LedgerClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		cfg:        cfg,
	}
}

// FetchLedger fetches every record of companyID dated up to until, with retry,
// circuit breaker, and tracing.
func (c *LedgerClient) FetchLedger(ctx context.Context, companyID string, until time.Time) (*domain.LedgerRecords, error) {
	ctx, span := tracer.Start(ctx, "LedgerClient.FetchLedger")
	defer span.End()
	span.SetAttributes(
		attribute.String("company.id", companyID),
		attribute.String("ledger.until", until.Format(time.RFC3339)),
	)

	endpoint := fmt.Sprintf("%s/v1/companies/%s/ledger?until=%s",
		c.baseURL, url.PathEscape(companyID), url.QueryEscape(until.UTC().Format(time.RFC3339Nano)))

	records, err := resilience.Call(ctx, c.cb, c.cfg, "ledger", func() (*domain.LedgerRecords, error) {
		var out domain.LedgerRecords
		if err := getJSON(ctx, c.httpClient, endpoint, "company", companyID, &out); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, wrapExternal("ledger", err)
	}
	if records.CompanyID == "" {
		records.CompanyID = companyID
	}
	span.SetAttributes(attribute.Int("ledger.records", len(records.Records())))
	return records, nil
}

// getJSON performs a GET and decodes a 200 body into out. 404 maps to
// ErrNotFound and other 4xx answers are not retried.
func getJSON(ctx context.Context, hc *http.Client, endpoint, resource, id string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return resilience.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &domain.ErrNotFound{Resource: resource, ID: id}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return resilience.Permanent(fmt.Errorf("%s API returned status %d", resource, resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s API returned status %d", resource, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resilience.Permanent(fmt.Errorf("decoding %s response: %w", resource, err))
	}
	return nil
}

// wrapExternal keeps domain errors as they are and wraps transport failures.
func wrapExternal(service string, err error) error {
	switch err.(type) {
	case *domain.ErrNotFound, *domain.ErrCircuitOpen, *domain.ErrTimeout, *domain.ErrValidation:
		return err
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}
