package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Classification places a normalized transaction in a statement bucket.
type Classification string

const (
	OperatingInflow   Classification = "operating_inflow"
	OperatingOutflow  Classification = "operating_outflow"
	InvestingInflow   Classification = "investing_inflow"
	InvestingOutflow  Classification = "investing_outflow"
	FinancingInflow   Classification = "financing_inflow"
	FinancingOutflow  Classification = "financing_outflow"
	ClassAsset        Classification = "asset"
	ClassLiability    Classification = "liability"
	ClassEquity       Classification = "equity"
	ClassUnclassified Classification = "unclassified"
)

// IsCashFlow reports whether c is one of the six activity classifications.
func (c Classification) IsCashFlow() bool {
	switch c {
	case OperatingInflow, OperatingOutflow,
		InvestingInflow, InvestingOutflow,
		FinancingInflow, FinancingOutflow:
		return true
	}
	return false
}

// IsInflow reports whether c is an inflow classification.
func (c Classification) IsInflow() bool {
	return c == OperatingInflow || c == InvestingInflow || c == FinancingInflow
}

// IsOutflow reports whether c is an outflow classification.
func (c Classification) IsOutflow() bool {
	return c == OperatingOutflow || c == InvestingOutflow || c == FinancingOutflow
}

// IsBalance reports whether c is asset, liability or equity.
func (c Classification) IsBalance() bool {
	return c == ClassAsset || c == ClassLiability || c == ClassEquity
}

// Activity returns the cash flow activity of c, or "" for non-activity classes.
func (c Classification) Activity() Activity {
	switch c {
	case OperatingInflow, OperatingOutflow:
		return ActivityOperating
	case InvestingInflow, InvestingOutflow:
		return ActivityInvesting
	case FinancingInflow, FinancingOutflow:
		return ActivityFinancing
	}
	return ""
}

// Activity is a cash flow activity as defined by IAS 7.
type Activity string

const (
	ActivityOperating Activity = "operating"
	ActivityInvesting Activity = "investing"
	ActivityFinancing Activity = "financing"
)

// Activities lists the activities in statement order.
var Activities = []Activity{ActivityOperating, ActivityInvesting, ActivityFinancing}

// Valid reports whether a is a known activity.
func (a Activity) Valid() bool {
	return a == ActivityOperating || a == ActivityInvesting || a == ActivityFinancing
}

// Classify returns the inflow or outflow classification of a for the sign of amount.
// Zero counts as an inflow.
func (a Activity) Classify(amount decimal.Decimal) Classification {
	out := amount.IsNegative()
	switch a {
	case ActivityOperating:
		if out {
			return OperatingOutflow
		}
		return OperatingInflow
	case ActivityInvesting:
		if out {
			return InvestingOutflow
		}
		return InvestingInflow
	case ActivityFinancing:
		if out {
			return FinancingOutflow
		}
		return FinancingInflow
	}
	return ClassUnclassified
}

// SourceKind identifies the origin record type of a normalized transaction.
type SourceKind string

const (
	SourceManualEntry       SourceKind = "manual-entry"
	SourceInvoiceRevenue    SourceKind = "invoice-revenue"
	SourceBankTransaction   SourceKind = "bank-transaction"
	SourceWalletTransaction SourceKind = "wallet-transaction"
	SourceManualAdjustment  SourceKind = "manual-adjustment"
)

// PLSection is the profit and loss section a transaction is recognized in.
type PLSection string

const (
	PLNone         PLSection = ""
	PLRevenue      PLSection = "revenue"
	PLCOGS         PLSection = "cogs"
	PLOperating    PLSection = "operating"
	PLOtherIncome  PLSection = "other_income"
	PLOtherExpense PLSection = "other_expense"
	PLTax          PLSection = "tax"
)

// AccountRef identifies a logical account. A multi-currency wallet yields one
// AccountRef per currency; the pair is the identity, never a joined string.
type AccountRef struct {
	ID       string `json:"id"`
	Currency string `json:"currency"`
}

// NormalizedTransaction is one money movement in the common engine shape.
// Amount is the signed cash effect for activity classifications and the
// signed balance movement for asset, liability and equity.
type NormalizedTransaction struct {
	ID             string          `json:"id"`
	CompanyID      string          `json:"companyId"`
	Date           time.Time       `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Classification Classification  `json:"classification"`
	SourceKind     SourceKind      `json:"sourceKind"`
	SourceID       string          `json:"sourceId"`

	Account     AccountRef `json:"account"`
	Category    string     `json:"category,omitempty"`
	Subcategory string     `json:"subcategory,omitempty"`
	Current     bool       `json:"current,omitempty"`
	NonCash     bool       `json:"nonCash,omitempty"`

	// Profit and loss recognition; all positive, zero when not recognized.
	PLSection      PLSection        `json:"plSection,omitempty"`
	Revenue        decimal.Decimal  `json:"revenue"`
	COGS           decimal.Decimal  `json:"cogs"`
	Expense        decimal.Decimal  `json:"expense"`
	LinkedExpenses decimal.Decimal  `json:"linkedExpenses"`
	Received       *decimal.Decimal `json:"received,omitempty"`
}

// Recognized returns the profit or loss effect of t: revenue minus cogs minus expense.
func (t NormalizedTransaction) Recognized() decimal.Decimal {
	return t.Revenue.Sub(t.COGS).Sub(t.Expense)
}

// InPeriod reports whether t falls within p, both bounds inclusive.
func (t NormalizedTransaction) InPeriod(p ReportingPeriod) bool {
	return p.Contains(t.Date)
}
