// Package postgres reads ledger records and company settings straight from
// Postgres through a pgx pool. Tables match the Supabase layout.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

var tracer = otel.Tracer("postgres")

// Store implements port.LedgerSource, port.SettingsProvider,
// port.CompanyLister and port.EntryWriter.
type Store struct {
	pool *pgxpool.Pool
}

// Open parses dsn, connects a pool and pings it.
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return &Store{pool: pool}, nil
}

//go:embed schema.sql
var schema string

// Migrate creates the ledger tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() { s.pool.Close() }

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Amounts are selected as text so they reach decimal.Decimal without float rounding.
const (
	qManual = `SELECT id, entry_date, coalesce(amount, 0)::text, coalesce(currency, ''), coalesce(entry_type, ''),
		coalesce(category, ''), coalesce(subcategory, ''), coalesce(activity, ''), coalesce(section, ''),
		coalesce(non_cash, false), coalesce(account, ''), coalesce(is_current, false)
		FROM bookkeeping_entries WHERE company_id = $1 AND entry_date <= $2 ORDER BY entry_date, id`
	qInvoice = `SELECT id, coalesce(invoice_id, ''), entry_date, coalesce(gross_amount, 0)::text, coalesce(currency, ''),
		coalesce(cogs, 0)::text, coalesce(linked_expenses, '[]'::jsonb)::text, amount_received::text, coalesce(category, '')
		FROM invoice_revenue_entries WHERE company_id = $1 AND entry_date <= $2 ORDER BY entry_date, id`
	qBank = `SELECT id, account_id, transaction_date, coalesce(incoming_amount, 0)::text, coalesce(outgoing_amount, 0)::text,
		coalesce(currency, ''), coalesce(activity, ''), coalesce(category, '')
		FROM bank_transactions WHERE company_id = $1 AND transaction_date <= $2 ORDER BY transaction_date, id`
	qWallet = `SELECT id, wallet_id, transaction_date, coalesce(legs, '[]'::jsonb)::text, coalesce(activity, ''), coalesce(category, '')
		FROM wallet_transactions WHERE company_id = $1 AND transaction_date <= $2 ORDER BY transaction_date, id`
	qAdjust = `SELECT id, adjustment_date, coalesce(amount, 0)::text, coalesce(currency, ''), coalesce(activity, ''), coalesce(description, '')
		FROM cashflow_adjustments WHERE company_id = $1 AND adjustment_date <= $2 ORDER BY adjustment_date, id`
	qBalances = `SELECT account_id, coalesce(currency, ''), as_of, coalesce(balance, 0)::text
		FROM cash_balances WHERE company_id = $1 ORDER BY as_of`
	qSettings = `SELECT company_id, coalesce(name, ''), coalesce(functional_currency, ''), coalesce(timezone, ''),
		coalesce(fiscal_year_start_month, 0), coalesce(ifrs, '{}'::jsonb)::text
		FROM company_settings WHERE company_id = $1`
	qCompanies = `SELECT company_id FROM company_settings ORDER BY company_id`
	qInsertEntry = `INSERT INTO bookkeeping_entries
		(id, company_id, entry_date, amount, currency, entry_type, category, subcategory, activity, section, non_cash, account, is_current)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
)

// FetchLedger loads every record of companyID dated up to until in one batch round trip.
func (s *Store) FetchLedger(ctx context.Context, companyID string, until time.Time) (*domain.LedgerRecords, error) {
	ctx, span := tracer.Start(ctx, "Postgres.FetchLedger")
	defer span.End()
	span.SetAttributes(attribute.String("company.id", companyID))

	batch := &pgx.Batch{}
	batch.Queue(qManual, companyID, until)
	batch.Queue(qInvoice, companyID, until)
	batch.Queue(qBank, companyID, until)
	batch.Queue(qWallet, companyID, until)
	batch.Queue(qAdjust, companyID, until)
	batch.Queue(qBalances, companyID)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	out := &domain.LedgerRecords{CompanyID: companyID}
	var err error
	if out.ManualEntries, err = collect(br, func(row pgx.CollectableRow) (domain.ManualEntry, error) {
		return scanManual(row, companyID)
	}); err != nil {
		return nil, s.fail(span, "bookkeeping_entries", err)
	}
	if out.InvoiceEntries, err = collect(br, func(row pgx.CollectableRow) (domain.InvoiceRevenueEntry, error) {
		return scanInvoice(row, companyID)
	}); err != nil {
		return nil, s.fail(span, "invoice_revenue_entries", err)
	}
	if out.BankTransactions, err = collect(br, func(row pgx.CollectableRow) (domain.BankTransaction, error) {
		return scanBank(row, companyID)
	}); err != nil {
		return nil, s.fail(span, "bank_transactions", err)
	}
	if out.WalletTransactions, err = collect(br, func(row pgx.CollectableRow) (domain.WalletTransaction, error) {
		return scanWallet(row, companyID)
	}); err != nil {
		return nil, s.fail(span, "wallet_transactions", err)
	}
	if out.Adjustments, err = collect(br, func(row pgx.CollectableRow) (domain.ManualAdjustment, error) {
		return scanAdjustment(row, companyID)
	}); err != nil {
		return nil, s.fail(span, "cashflow_adjustments", err)
	}
	if out.CashBalances, err = collect(br, scanBalance); err != nil {
		return nil, s.fail(span, "cash_balances", err)
	}

	span.SetAttributes(attribute.Int("ledger.records", len(out.Records())))
	return out, nil
}

// GetSettings loads one company_settings row.
func (s *Store) GetSettings(ctx context.Context, companyID string) (*domain.CompanySettings, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetSettings")
	defer span.End()

	var (
		cs   domain.CompanySettings
		ifrs string
	)
	err := s.pool.QueryRow(ctx, qSettings, companyID).Scan(
		&cs.CompanyID, &cs.Name, &cs.FunctionalCurrency, &cs.Timezone, &cs.FiscalYearStartMonth, &ifrs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.ErrNotFound{Resource: "company", ID: companyID}
	}
	if err != nil {
		return nil, s.fail(span, "company_settings", err)
	}
	if err := json.Unmarshal([]byte(ifrs), &cs.IFRS); err != nil {
		return nil, s.fail(span, "company_settings", fmt.Errorf("decoding ifrs: %w", err))
	}
	cs.FunctionalCurrency = strings.ToUpper(cs.FunctionalCurrency)
	return &cs, nil
}

// ListCompanies lists every company with settings.
func (s *Store) ListCompanies(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, qCompanies)
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres", Err: err}
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, &domain.ErrExternalService{Service: "postgres", Err: err}
	}
	return ids, nil
}

// SaveManualEntries inserts entries in a single transaction.
func (s *Store) SaveManualEntries(ctx context.Context, entries []domain.ManualEntry) error {
	ctx, span := tracer.Start(ctx, "Postgres.SaveManualEntries")
	defer span.End()
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return s.fail(span, "bookkeeping_entries", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(qInsertEntry, e.ID, e.CompanyID, e.Date, e.Amount.String(), e.Currency, string(e.Type),
			e.Category, e.Subcategory, string(e.Activity), string(e.Section), e.NonCash, e.Account, e.Current)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return s.fail(span, "bookkeeping_entries", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return s.fail(span, "bookkeeping_entries", err)
	}
	return nil
}

func (s *Store) fail(span trace.Span, table string, err error) error {
	span.RecordError(err)
	return &domain.ErrExternalService{Service: "postgres", Err: fmt.Errorf("%s: %w", table, err)}
}

func collect[T any](br pgx.BatchResults, fn pgx.RowToFunc[T]) ([]T, error) {
	rows, err := br.Query()
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, fn)
}
