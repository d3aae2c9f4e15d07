package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================
// Line items
// ============================================================

// LineItem is a statement line, possibly with nested children. A parent's
// Current equals the sum of its children's Current.
type LineItem struct {
	Label            string           `json:"label"`
	Current          Money            `json:"current"`
	Prior            *Money           `json:"prior"`
	VarianceAbsolute *Money           `json:"varianceAbsolute"`
	VariancePercent  *decimal.Decimal `json:"variancePercent"`
	Children         []LineItem       `json:"children,omitempty"`
}

// Leaf builds a line item without children.
func Leaf(label string, amount decimal.Decimal, cur string) LineItem {
	return LineItem{Label: label, Current: NewMoney(amount, cur)}
}

// Group builds a parent line whose Current is the sum of its children.
func Group(label, cur string, children ...LineItem) LineItem {
	total := decimal.Zero
	for _, c := range children {
		total = total.Add(c.Current.Amount)
	}
	return LineItem{Label: label, Current: NewMoney(total, cur), Children: children}
}

// Find returns the first line, depth-first, with the given label.
func (l *LineItem) Find(label string) *LineItem {
	if l.Label == label {
		return l
	}
	for i := range l.Children {
		if found := l.Children[i].Find(label); found != nil {
			return found
		}
	}
	return nil
}

// ============================================================
// Statements
// ============================================================

// StatementKind identifies a statement type.
type StatementKind string

const (
	KindBalanceSheet StatementKind = "balance_sheet"
	KindCashFlow     StatementKind = "cash_flow"
	KindProfitLoss   StatementKind = "profit_loss"
)

// Statement is implemented by the three statement data types.
type Statement interface {
	StatementKind() StatementKind
	Lines() []LineItem
	Diagnostics() Diagnostics
}

// Ratio is a derived ratio. Value is nil when it cannot be computed; Display
// is then "N/A".
type Ratio struct {
	Value   *decimal.Decimal `json:"value"`
	Display string           `json:"display"`
}

// Overpayment records an invoice whose linked expenses exceed its COGS.
type Overpayment struct {
	SourceID string `json:"sourceId"`
	Excess   Money  `json:"excess"`
}

// Diagnostics carries data-quality facts discovered while building a
// statement. Validation turns them into findings.
type Diagnostics struct {
	UnclassifiedCount int           `json:"unclassifiedCount"`
	Overpayments      []Overpayment `json:"overpayments,omitempty"`
	MissingRates      []string      `json:"missingRates,omitempty"`
}

// BalanceSheetData is a balance sheet as of the period end.
type BalanceSheetData struct {
	Currency                  string          `json:"currency"`
	Period                    ReportingPeriod `json:"period"`
	Assets                    LineItem        `json:"assets"`
	Liabilities               LineItem        `json:"liabilities"`
	Equity                    LineItem        `json:"equity"`
	TotalAssets               Money           `json:"totalAssets"`
	TotalLiabilities          Money           `json:"totalLiabilities"`
	TotalEquity               Money           `json:"totalEquity"`
	TotalLiabilitiesAndEquity Money           `json:"totalLiabilitiesAndEquity"`
	Difference                Money           `json:"difference"`
	IsBalanced                bool            `json:"isBalanced"`
	CurrentRatio              Ratio           `json:"currentRatio"`
	DebtToEquity              Ratio           `json:"debtToEquity"`
	OutstandingPayables       Money           `json:"outstandingPayables"`
	OutstandingReceivables    Money           `json:"outstandingReceivables"`
	HasComparative            bool            `json:"hasComparative"`
	Diag                      Diagnostics     `json:"diagnostics"`
}

func (b *BalanceSheetData) StatementKind() StatementKind { return KindBalanceSheet }
func (b *BalanceSheetData) Lines() []LineItem {
	return []LineItem{b.Assets, b.Liabilities, b.Equity}
}
func (b *BalanceSheetData) Diagnostics() Diagnostics { return b.Diag }

// CashFlowMethod selects how operating cash flow is presented.
type CashFlowMethod string

const (
	MethodDirect   CashFlowMethod = "direct"
	MethodIndirect CashFlowMethod = "indirect"
)

// CashSource tells where opening and closing cash came from.
type CashSource string

const (
	CashFromLedger  CashSource = "ledger"
	CashFromHistory CashSource = "derived"
)

// CashReconciliation checks opening + net flow against closing cash.
type CashReconciliation struct {
	OpeningCash         Money      `json:"openingCash"`
	NetCashFlow         Money      `json:"netCashFlow"`
	ClosingCash         Money      `json:"closingCash"`
	Difference          Money      `json:"difference"`
	FormattedDifference string     `json:"formattedDifference"`
	IsReconciled        bool       `json:"isReconciled"`
	Source              CashSource `json:"source"`
}

// CashFlowData is a statement of cash flows for a period.
type CashFlowData struct {
	Currency       string             `json:"currency"`
	Period         ReportingPeriod    `json:"period"`
	Method         CashFlowMethod     `json:"method"`
	Operating      LineItem           `json:"operating"`
	Investing      LineItem           `json:"investing"`
	Financing      LineItem           `json:"financing"`
	NetCashFlow    Money              `json:"netCashFlow"`
	NetProfit      Money              `json:"netProfit"`
	Reconciliation CashReconciliation `json:"cashReconciliation"`
	Diag           Diagnostics        `json:"diagnostics"`
}

func (c *CashFlowData) StatementKind() StatementKind { return KindCashFlow }
func (c *CashFlowData) Lines() []LineItem {
	return []LineItem{c.Operating, c.Investing, c.Financing}
}
func (c *CashFlowData) Diagnostics() Diagnostics { return c.Diag }

// PLData is a profit and loss statement for a period.
type PLData struct {
	Currency               string           `json:"currency"`
	Period                 ReportingPeriod  `json:"period"`
	Revenue                LineItem         `json:"revenue"`
	COGS                   LineItem         `json:"cogs"`
	GrossProfit            Money            `json:"grossProfit"`
	OperatingExpenses      LineItem         `json:"operatingExpenses"`
	OperatingIncome        Money            `json:"operatingIncome"`
	OtherIncome            LineItem         `json:"otherIncome"`
	OtherExpenses          LineItem         `json:"otherExpenses"`
	Tax                    LineItem         `json:"tax"`
	NetProfit              Money            `json:"netProfit"`
	GrossMarginPercent     *decimal.Decimal `json:"grossMarginPercent"`
	OperatingMarginPercent *decimal.Decimal `json:"operatingMarginPercent"`
	NetMarginPercent       *decimal.Decimal `json:"netMarginPercent"`
	Diag                   Diagnostics      `json:"diagnostics"`
}

func (p *PLData) StatementKind() StatementKind { return KindProfitLoss }
func (p *PLData) Lines() []LineItem {
	return []LineItem{p.Revenue, p.COGS, p.OperatingExpenses, p.OtherIncome, p.OtherExpenses, p.Tax}
}
func (p *PLData) Diagnostics() Diagnostics { return p.Diag }

// ============================================================
// Findings and results
// ============================================================

// Severity of a validation finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// ValidationFinding is one result of a validation rule.
type ValidationFinding struct {
	Severity          Severity `json:"severity"`
	Rule              string   `json:"rule"`
	Message           string   `json:"message"`
	Suggestion        string   `json:"suggestion,omitempty"`
	StandardReference string   `json:"standardReference,omitempty"`
}

// StatementResult is a built statement with its validation findings.
type StatementResult[T any] struct {
	ID          string              `json:"id"`
	CompanyID   string              `json:"companyId"`
	Kind        StatementKind       `json:"kind"`
	Currency    string              `json:"currency"`
	Period      ReportingPeriod     `json:"period"`
	Prior       *ReportingPeriod    `json:"prior,omitempty"`
	Statement   T                   `json:"statement"`
	Validation  []ValidationFinding `json:"validation"`
	GeneratedAt time.Time           `json:"generatedAt"`
}

// HasErrors reports whether any finding has error severity.
func (r StatementResult[T]) HasErrors() bool {
	for _, f := range r.Validation {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}
