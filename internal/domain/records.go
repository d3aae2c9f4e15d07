package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Raw ledger records (one variant per source kind)
// ============================================================

// ExternalRecord is a raw ledger record as supplied by a ledger source.
// The set of implementations is closed; the adapter switches over it exhaustively.
type ExternalRecord interface {
	Kind() SourceKind
	RecordID() string
	sealed()
}

// EntryType is the bookkeeping type of a manual entry.
type EntryType string

const (
	EntryRevenue   EntryType = "revenue"
	EntryExpense   EntryType = "expense"
	EntryAsset     EntryType = "asset"
	EntryLiability EntryType = "liability"
	EntryEquity    EntryType = "equity"
)

// EntrySection places a revenue or expense entry within the P&L.
type EntrySection string

const (
	SectionOperating EntrySection = "operating"
	SectionCOGS      EntrySection = "cogs"
	SectionOther     EntrySection = "other"
	SectionTax       EntrySection = "tax"
)

// ManualEntry is a bookkeeping entry keyed in by a user.
type ManualEntry struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Type        EntryType       `json:"type"`
	Category    string          `json:"category,omitempty"`
	Subcategory string          `json:"subcategory,omitempty"`
	Activity    Activity        `json:"activity,omitempty"`
	Section     EntrySection    `json:"section,omitempty"`
	NonCash     bool            `json:"non_cash,omitempty"`
	Account     string          `json:"account,omitempty"`
	Current     bool            `json:"current,omitempty"`
}

// LinkedExpense is a payment linked to an invoice's cost of goods sold.
type LinkedExpense struct {
	ID     string          `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

// InvoiceRevenueEntry is a revenue entry derived from an issued invoice.
type InvoiceRevenueEntry struct {
	ID             string           `json:"id"`
	CompanyID      string           `json:"company_id"`
	InvoiceID      string           `json:"invoice_id"`
	Date           time.Time        `json:"date"`
	GrossAmount    decimal.Decimal  `json:"gross_amount"`
	Currency       string           `json:"currency"`
	COGS           decimal.Decimal  `json:"cogs"`
	LinkedExpenses []LinkedExpense  `json:"linked_expenses,omitempty"`
	AmountReceived *decimal.Decimal `json:"amount_received,omitempty"`
	Category       string           `json:"category,omitempty"`
}

// LinkedTotal sums the linked expense amounts.
func (e InvoiceRevenueEntry) LinkedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.LinkedExpenses {
		total = total.Add(l.Amount.Abs())
	}
	return total
}

// BankTransaction is a bank statement line. Exactly one of the amounts is
// usually set; both are stored as non-negative values.
type BankTransaction struct {
	ID             string          `json:"id"`
	CompanyID      string          `json:"company_id"`
	AccountID      string          `json:"account_id"`
	Date           time.Time       `json:"date"`
	IncomingAmount decimal.Decimal `json:"incoming_amount"`
	OutgoingAmount decimal.Decimal `json:"outgoing_amount"`
	Currency       string          `json:"currency"`
	Activity       Activity        `json:"activity,omitempty"`
	Category       string          `json:"category,omitempty"`
}

// WalletLeg is the movement of one currency within a wallet transaction.
type WalletLeg struct {
	Currency string          `json:"currency"`
	Amount   decimal.Decimal `json:"amount"`
}

// WalletTransaction is a digital-wallet movement, possibly across several currencies.
type WalletTransaction struct {
	ID        string      `json:"id"`
	CompanyID string      `json:"company_id"`
	WalletID  string      `json:"wallet_id"`
	Date      time.Time   `json:"date"`
	Legs      []WalletLeg `json:"legs"`
	Activity  Activity    `json:"activity,omitempty"`
	Category  string      `json:"category,omitempty"`
}

// ManualAdjustment is a manual cash flow adjustment. Amount is signed.
type ManualAdjustment struct {
	ID          string          `json:"id"`
	CompanyID   string          `json:"company_id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Activity    Activity        `json:"activity"`
	Description string          `json:"description,omitempty"`
}

func (ManualEntry) Kind() SourceKind         { return SourceManualEntry }
func (InvoiceRevenueEntry) Kind() SourceKind { return SourceInvoiceRevenue }
func (BankTransaction) Kind() SourceKind     { return SourceBankTransaction }
func (WalletTransaction) Kind() SourceKind   { return SourceWalletTransaction }
func (ManualAdjustment) Kind() SourceKind    { return SourceManualAdjustment }

func (r ManualEntry) RecordID() string         { return r.ID }
func (r InvoiceRevenueEntry) RecordID() string { return r.ID }
func (r BankTransaction) RecordID() string     { return r.ID }
func (r WalletTransaction) RecordID() string   { return r.ID }
func (r ManualAdjustment) RecordID() string    { return r.ID }

func (ManualEntry) sealed()         {}
func (InvoiceRevenueEntry) sealed() {}
func (BankTransaction) sealed()     {}
func (WalletTransaction) sealed()   {}
func (ManualAdjustment) sealed()    {}

// ============================================================
// Ledger balances and record bundles
// ============================================================

// CashBalance is a ledger balance snapshot of a cash account at an instant.
type CashBalance struct {
	AccountID string          `json:"account_id"`
	Currency  string          `json:"currency"`
	AsOf      time.Time       `json:"as_of"`
	Balance   decimal.Decimal `json:"balance"`
}

// LedgerRecords is everything a ledger source returns for one company.
type LedgerRecords struct {
	CompanyID          string                `json:"company_id"`
	ManualEntries      []ManualEntry         `json:"manual_entries"`
	InvoiceEntries     []InvoiceRevenueEntry `json:"invoice_entries"`
	BankTransactions   []BankTransaction     `json:"bank_transactions"`
	WalletTransactions []WalletTransaction   `json:"wallet_transactions"`
	Adjustments        []ManualAdjustment    `json:"adjustments"`
	CashBalances       []CashBalance         `json:"cash_balances"`
}

// Records flattens the bundle into tagged records in a stable order.
func (l *LedgerRecords) Records() []ExternalRecord {
	if l == nil {
		return nil
	}
	out := make([]ExternalRecord, 0,
		len(l.ManualEntries)+len(l.InvoiceEntries)+len(l.BankTransactions)+
			len(l.WalletTransactions)+len(l.Adjustments))
	for _, r := range l.ManualEntries {
		out = append(out, r)
	}
	for _, r := range l.InvoiceEntries {
		out = append(out, r)
	}
	for _, r := range l.BankTransactions {
		out = append(out, r)
	}
	for _, r := range l.WalletTransactions {
		out = append(out, r)
	}
	for _, r := range l.Adjustments {
		out = append(out, r)
	}
	return out
}
