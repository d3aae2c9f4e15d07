package postgres

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

func scanManual(row pgx.CollectableRow, companyID string) (domain.ManualEntry, error) {
	var (
		e        domain.ManualEntry
		amount   string
		typ      string
		activity string
		section  string
	)
	if err := row.Scan(&e.ID, &e.Date, &amount, &e.Currency, &typ, &e.Category, &e.Subcategory,
		&activity, &section, &e.NonCash, &e.Account, &e.Current); err != nil {
		return e, err
	}
	var err error
	if e.Amount, err = parseAmount(amount); err != nil {
		return e, fmt.Errorf("entry %s: %w", e.ID, err)
	}
	e.CompanyID = companyID
	e.Currency = strings.ToUpper(e.Currency)
	e.Type = domain.EntryType(typ)
	e.Activity = domain.Activity(strings.ToLower(activity))
	e.Section = domain.EntrySection(section)
	return e, nil
}

func scanInvoice(row pgx.CollectableRow, companyID string) (domain.InvoiceRevenueEntry, error) {
	var (
		e        domain.InvoiceRevenueEntry
		gross    string
		cogs     string
		linked   string
		received *string
	)
	if err := row.Scan(&e.ID, &e.InvoiceID, &e.Date, &gross, &e.Currency, &cogs, &linked, &received, &e.Category); err != nil {
		return e, err
	}
	var err error
	if e.GrossAmount, err = parseAmount(gross); err != nil {
		return e, fmt.Errorf("invoice entry %s: %w", e.ID, err)
	}
	if e.COGS, err = parseAmount(cogs); err != nil {
		return e, fmt.Errorf("invoice entry %s: %w", e.ID, err)
	}
	if e.LinkedExpenses, err = parseLinked(linked); err != nil {
		return e, fmt.Errorf("invoice entry %s: %w", e.ID, err)
	}
	if received != nil {
		r, err := parseAmount(*received)
		if err != nil {
			return e, fmt.Errorf("invoice entry %s: %w", e.ID, err)
		}
		e.AmountReceived = &r
	}
	e.CompanyID = companyID
	e.Currency = strings.ToUpper(e.Currency)
	return e, nil
}

func scanBank(row pgx.CollectableRow, companyID string) (domain.BankTransaction, error) {
	var (
		t        domain.BankTransaction
		in, out  string
		activity string
	)
	if err := row.Scan(&t.ID, &t.AccountID, &t.Date, &in, &out, &t.Currency, &activity, &t.Category); err != nil {
		return t, err
	}
	var err error
	if t.IncomingAmount, err = parseAmount(in); err != nil {
		return t, fmt.Errorf("bank transaction %s: %w", t.ID, err)
	}
	if t.OutgoingAmount, err = parseAmount(out); err != nil {
		return t, fmt.Errorf("bank transaction %s: %w", t.ID, err)
	}
	t.CompanyID = companyID
	t.Currency = strings.ToUpper(t.Currency)
	t.Activity = domain.Activity(strings.ToLower(activity))
	return t, nil
}

func scanWallet(row pgx.CollectableRow, companyID string) (domain.WalletTransaction, error) {
	var (
		t        domain.WalletTransaction
		legs     string
		activity string
	)
	if err := row.Scan(&t.ID, &t.WalletID, &t.Date, &legs, &activity, &t.Category); err != nil {
		return t, err
	}
	var err error
	if t.Legs, err = parseLegs(legs); err != nil {
		return t, fmt.Errorf("wallet transaction %s: %w", t.ID, err)
	}
	t.CompanyID = companyID
	t.Activity = domain.Activity(strings.ToLower(activity))
	return t, nil
}

func scanAdjustment(row pgx.CollectableRow, companyID string) (domain.ManualAdjustment, error) {
	var (
		a        domain.ManualAdjustment
		amount   string
		activity string
	)
	if err := row.Scan(&a.ID, &a.Date, &amount, &a.Currency, &activity, &a.Description); err != nil {
		return a, err
	}
	var err error
	if a.Amount, err = parseAmount(amount); err != nil {
		return a, fmt.Errorf("adjustment %s: %w", a.ID, err)
	}
	a.CompanyID = companyID
	a.Currency = strings.ToUpper(a.Currency)
	a.Activity = domain.Activity(strings.ToLower(activity))
	return a, nil
}

func scanBalance(row pgx.CollectableRow) (domain.CashBalance, error) {
	var (
		b       domain.CashBalance
		asOf    time.Time
		balance string
	)
	if err := row.Scan(&b.AccountID, &b.Currency, &asOf, &balance); err != nil {
		return b, err
	}
	var err error
	if b.Balance, err = parseAmount(balance); err != nil {
		return b, fmt.Errorf("cash balance %s: %w", b.AccountID, err)
	}
	b.AsOf = asOf
	b.Currency = strings.ToUpper(b.Currency)
	return b, nil
}

// parseAmount reads a numeric column rendered as text. NULL renders as "".
func parseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func parseLinked(raw string) ([]domain.LinkedExpense, error) {
	var linked []domain.LinkedExpense
	if err := json.Unmarshal([]byte(raw), &linked); err != nil {
		return nil, fmt.Errorf("decoding linked_expenses: %w", err)
	}
	return linked, nil
}

func parseLegs(raw string) ([]domain.WalletLeg, error) {
	var legs []domain.WalletLeg
	if err := json.Unmarshal([]byte(raw), &legs); err != nil {
		return nil, fmt.Errorf("decoding legs: %w", err)
	}
	for i := range legs {
		legs[i].Currency = strings.ToUpper(legs[i].Currency)
	}
	return legs, nil
}
