package supabase

import (
	"context"
	"fmt"
	"net/url"

	"go.opentelemetry.io/otel/attribute"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

type settingsRow struct {
	CompanyID            string              `json:"company_id"`
	Name                 string              `json:"name"`
	FunctionalCurrency   string              `json:"functional_currency"`
	Timezone             string              `json:"timezone"`
	FiscalYearStartMonth int                 `json:"fiscal_year_start_month"`
	IFRS                 domain.IFRSSettings `json:"ifrs"`
}

// GetSettings implements port.SettingsProvider from the company_settings table.
func (c *Client) GetSettings(ctx context.Context, companyID string) (*domain.CompanySettings, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetSettings")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	path := fmt.Sprintf("%s?company_id=eq.%s&limit=1", tableSettings, url.QueryEscape(companyID))
	var rows []settingsRow
	if err := c.fetchRows(ctx, path, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "company", ID: companyID}
	}

	r := rows[0]
	return &domain.CompanySettings{
		CompanyID:            r.CompanyID,
		Name:                 r.Name,
		FunctionalCurrency:   upper(r.FunctionalCurrency),
		Timezone:             r.Timezone,
		FiscalYearStartMonth: r.FiscalYearStartMonth,
		IFRS:                 r.IFRS,
	}, nil
}

// ListCompanies implements port.CompanyLister.
func (c *Client) ListCompanies(ctx context.Context) ([]string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListCompanies")
	defer span.End()

	var rows []struct {
		CompanyID string `json:"company_id"`
	}
	if err := c.fetchRows(ctx, tableSettings+"?select=company_id&order=company_id.asc", &rows); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.CompanyID)
	}
	return ids, nil
}

// SaveManualEntries implements port.EntryWriter by inserting the entries
// into bookkeeping_entries in one request.
func (c *Client) SaveManualEntries(ctx context.Context, entries []domain.ManualEntry) error {
	ctx, span := tracer.Start(ctx, "Supabase.SaveManualEntries")
	defer span.End()
	span.SetAttributes(attribute.Int("entries.count", len(entries)))

	if len(entries) == 0 {
		return nil
	}
	rows := make([]bookkeepingRow, len(entries))
	for i, e := range entries {
		rows[i] = bookkeepingRow{
			ID:          e.ID,
			CompanyID:   e.CompanyID,
			EntryDate:   flexTime{e.Date},
			Amount:      nullDecimal(e.Amount),
			Currency:    e.Currency,
			EntryType:   string(e.Type),
			Category:    e.Category,
			Subcategory: e.Subcategory,
			Activity:    string(e.Activity),
			Section:     string(e.Section),
			NonCash:     e.NonCash,
			Account:     e.Account,
			IsCurrent:   e.Current,
		}
	}

	if _, err := c.doPost(ctx, tableBookkeeping, rows); err != nil {
		span.RecordError(err)
		return &domain.ErrExternalService{Service: "supabase", Err: err}
	}
	return nil
}

