package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

// Table names.
const (
	tableBookkeeping  = "bookkeeping_entries"
	tableInvoices     = "invoice_revenue_entries"
	tableBank         = "bank_transactions"
	tableWallet       = "wallet_transactions"
	tableAdjustments  = "cashflow_adjustments"
	tableCashBalances = "cash_balances"
	tableSettings     = "company_settings"
)

type bookkeepingRow struct {
	ID          string              `json:"id"`
	CompanyID   string              `json:"company_id"`
	EntryDate   flexTime            `json:"entry_date"`
	Amount      decimal.NullDecimal `json:"amount"`
	Currency    string              `json:"currency"`
	EntryType   string              `json:"entry_type"`
	Category    string              `json:"category"`
	Subcategory string              `json:"subcategory"`
	Activity    string              `json:"activity"`
	Section     string              `json:"section"`
	NonCash     bool                `json:"non_cash"`
	Account     string              `json:"account"`
	IsCurrent   bool                `json:"is_current"`
}

type invoiceRow struct {
	ID             string                 `json:"id"`
	CompanyID      string                 `json:"company_id"`
	InvoiceID      string                 `json:"invoice_id"`
	EntryDate      flexTime               `json:"entry_date"`
	GrossAmount    decimal.NullDecimal    `json:"gross_amount"`
	Currency       string                 `json:"currency"`
	COGS           decimal.NullDecimal    `json:"cogs"`
	LinkedExpenses []domain.LinkedExpense `json:"linked_expenses"`
	AmountReceived decimal.NullDecimal    `json:"amount_received"`
	Category       string                 `json:"category"`
}

type bankRow struct {
	ID              string              `json:"id"`
	CompanyID       string              `json:"company_id"`
	AccountID       string              `json:"account_id"`
	TransactionDate flexTime            `json:"transaction_date"`
	IncomingAmount  decimal.NullDecimal `json:"incoming_amount"`
	OutgoingAmount  decimal.NullDecimal `json:"outgoing_amount"`
	Currency        string              `json:"currency"`
	Activity        string              `json:"activity"`
	Category        string              `json:"category"`
}

type walletRow struct {
	ID              string             `json:"id"`
	CompanyID       string             `json:"company_id"`
	WalletID        string             `json:"wallet_id"`
	TransactionDate flexTime           `json:"transaction_date"`
	Legs            []domain.WalletLeg `json:"legs"`
	Activity        string             `json:"activity"`
	Category        string             `json:"category"`
}

type adjustmentRow struct {
	ID             string              `json:"id"`
	CompanyID      string              `json:"company_id"`
	AdjustmentDate flexTime            `json:"adjustment_date"`
	Amount         decimal.NullDecimal `json:"amount"`
	Currency       string              `json:"currency"`
	Activity       string              `json:"activity"`
	Description    string              `json:"description"`
}

type cashBalanceRow struct {
	AccountID string              `json:"account_id"`
	Currency  string              `json:"currency"`
	AsOf      flexTime            `json:"as_of"`
	Balance   decimal.NullDecimal `json:"balance"`
}

// FetchLedger implements port.LedgerSource: it reads the six ledger tables of
// companyID concurrently, keeping rows dated up to until.
func (c *Client) FetchLedger(ctx context.Context, companyID string, until time.Time) (*domain.LedgerRecords, error) {
	ctx, span := tracer.Start(ctx, "Supabase.FetchLedger")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	out := &domain.LedgerRecords{CompanyID: companyID}
	bound := url.QueryEscape(until.Format(time.RFC3339Nano))
	company := url.QueryEscape(companyID)
	query := func(table, dateCol string) string {
		return fmt.Sprintf("%s?company_id=eq.%s&%s=lte.%s&order=%s.asc,id.asc", table, company, dateCol, bound, dateCol)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var rows []bookkeepingRow
		if err := c.fetchRows(gctx, query(tableBookkeeping, "entry_date"), &rows); err != nil {
			return err
		}
		out.ManualEntries = make([]domain.ManualEntry, 0, len(rows))
		for _, r := range rows {
			out.ManualEntries = append(out.ManualEntries, r.toDomain())
		}
		return nil
	})
	g.Go(func() error {
		var rows []invoiceRow
		if err := c.fetchRows(gctx, query(tableInvoices, "entry_date"), &rows); err != nil {
			return err
		}
		out.InvoiceEntries = make([]domain.InvoiceRevenueEntry, 0, len(rows))
		for _, r := range rows {
			out.InvoiceEntries = append(out.InvoiceEntries, r.toDomain())
		}
		return nil
	})
	g.Go(func() error {
		var rows []bankRow
		if err := c.fetchRows(gctx, query(tableBank, "transaction_date"), &rows); err != nil {
			return err
		}
		out.BankTransactions = make([]domain.BankTransaction, 0, len(rows))
		for _, r := range rows {
			out.BankTransactions = append(out.BankTransactions, r.toDomain())
		}
		return nil
	})
	g.Go(func() error {
		var rows []walletRow
		if err := c.fetchRows(gctx, query(tableWallet, "transaction_date"), &rows); err != nil {
			return err
		}
		out.WalletTransactions = make([]domain.WalletTransaction, 0, len(rows))
		for _, r := range rows {
			out.WalletTransactions = append(out.WalletTransactions, r.toDomain())
		}
		return nil
	})
	g.Go(func() error {
		var rows []adjustmentRow
		if err := c.fetchRows(gctx, query(tableAdjustments, "adjustment_date"), &rows); err != nil {
			return err
		}
		out.Adjustments = make([]domain.ManualAdjustment, 0, len(rows))
		for _, r := range rows {
			out.Adjustments = append(out.Adjustments, r.toDomain(companyID))
		}
		return nil
	})
	g.Go(func() error {
		var rows []cashBalanceRow
		path := fmt.Sprintf("%s?company_id=eq.%s&order=as_of.asc", tableCashBalances, company)
		if err := c.fetchRows(gctx, path, &rows); err != nil {
			return err
		}
		out.CashBalances = make([]domain.CashBalance, 0, len(rows))
		for _, r := range rows {
			out.CashBalances = append(out.CashBalances, domain.CashBalance{
				AccountID: r.AccountID,
				Currency:  upper(r.Currency),
				AsOf:      r.AsOf.Time,
				Balance:   orZero(r.Balance),
			})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("ledger.records", len(out.Records())))
	return out, nil
}

func (c *Client) fetchRows(ctx context.Context, path string, dst any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if body == nil {
		return nil
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return &domain.ErrExternalService{Service: "supabase", Err: fmt.Errorf("decoding %s: %w", path, err)}
	}
	return nil
}

func (r bookkeepingRow) toDomain() domain.ManualEntry {
	return domain.ManualEntry{
		ID:          r.ID,
		CompanyID:   r.CompanyID,
		Date:        r.EntryDate.Time,
		Amount:      orZero(r.Amount),
		Currency:    upper(r.Currency),
		Type:        domain.EntryType(r.EntryType),
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Activity:    activity(r.Activity),
		Section:     domain.EntrySection(r.Section),
		NonCash:     r.NonCash,
		Account:     r.Account,
		Current:     r.IsCurrent,
	}
}

func (r invoiceRow) toDomain() domain.InvoiceRevenueEntry {
	e := domain.InvoiceRevenueEntry{
		ID:             r.ID,
		CompanyID:      r.CompanyID,
		InvoiceID:      r.InvoiceID,
		Date:           r.EntryDate.Time,
		GrossAmount:    orZero(r.GrossAmount),
		Currency:       upper(r.Currency),
		COGS:           orZero(r.COGS),
		LinkedExpenses: r.LinkedExpenses,
		Category:       r.Category,
	}
	if r.AmountReceived.Valid {
		received := r.AmountReceived.Decimal
		e.AmountReceived = &received
	}
	return e
}

func (r bankRow) toDomain() domain.BankTransaction {
	return domain.BankTransaction{
		ID:             r.ID,
		CompanyID:      r.CompanyID,
		AccountID:      r.AccountID,
		Date:           r.TransactionDate.Time,
		IncomingAmount: orZero(r.IncomingAmount),
		OutgoingAmount: orZero(r.OutgoingAmount),
		Currency:       upper(r.Currency),
		Activity:       activity(r.Activity),
		Category:       r.Category,
	}
}

func (r walletRow) toDomain() domain.WalletTransaction {
	legs := make([]domain.WalletLeg, len(r.Legs))
	for i, l := range r.Legs {
		legs[i] = domain.WalletLeg{Currency: upper(l.Currency), Amount: l.Amount}
	}
	return domain.WalletTransaction{
		ID:        r.ID,
		CompanyID: r.CompanyID,
		WalletID:  r.WalletID,
		Date:      r.TransactionDate.Time,
		Legs:      legs,
		Activity:  activity(r.Activity),
		Category:  r.Category,
	}
}

func (r adjustmentRow) toDomain(companyID string) domain.ManualAdjustment {
	return domain.ManualAdjustment{
		ID:          r.ID,
		CompanyID:   companyID,
		Date:        r.AdjustmentDate.Time,
		Amount:      orZero(r.Amount),
		Currency:    upper(r.Currency),
		Activity:    activity(r.Activity),
		Description: r.Description,
	}
}
