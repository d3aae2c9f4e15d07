// Package validation runs IFRS-motivated consistency rules over built statements.
package validation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

// Rule codes.
const (
	RuleBalance            = "BS_BALANCE"
	RuleNegativeEquity     = "BS_NEGATIVE_EQUITY"
	RuleNoComparative      = "BS_NO_COMPARATIVE"
	RuleCashReconciliation = "CF_RECONCILIATION"
	RuleQualityOfEarnings  = "CF_QUALITY_OF_EARNINGS"
	RuleDerivedCash        = "CF_DERIVED_CASH"
	RuleNegativeGross      = "PL_NEGATIVE_GROSS_MARGIN"
	RuleZeroRevenue        = "PL_ZERO_REVENUE"
	RuleLineSubtotal       = "LINE_SUBTOTAL"
	RuleUnclassified       = "UNCLASSIFIED_RECORDS"
	RuleOverpayment        = "AP_OVERPAYMENT"
	RuleMissingRate        = "MISSING_RATE"
)

// Options configure a validation run.
type Options struct {
	DisabledRules []string
}

// OptionsFrom reads validation options from company settings.
func OptionsFrom(s domain.IFRSSettings) Options {
	return Options{DisabledRules: s.DisabledRules}
}

type run struct {
	disabled map[string]bool
	findings []domain.ValidationFinding
}

func (r *run) add(f domain.ValidationFinding) {
	if r.disabled[f.Rule] {
		return
	}
	r.findings = append(r.findings, f)
}

// Validate checks a statement and returns its findings: the rules of the
// statement kind first, then the rules shared by every kind. The output is
// deterministic for a given statement.
func Validate(s domain.Statement, opts Options) []domain.ValidationFinding {
	r := &run{disabled: make(map[string]bool, len(opts.DisabledRules))}
	for _, rule := range opts.DisabledRules {
		r.disabled[rule] = true
	}

	switch st := s.(type) {
	case *domain.BalanceSheetData:
		r.balanceSheet(st)
	case *domain.CashFlowData:
		r.cashFlow(st)
	case *domain.PLData:
		r.profitAndLoss(st)
	}

	for _, line := range s.Lines() {
		r.subtotals(line)
	}
	r.diagnostics(s.Diagnostics())

	if r.findings == nil {
		return []domain.ValidationFinding{}
	}
	return r.findings
}

func (r *run) balanceSheet(bs *domain.BalanceSheetData) {
	if !bs.IsBalanced {
		r.add(domain.ValidationFinding{
			Severity:          domain.SeverityError,
			Rule:              RuleBalance,
			Message:           fmt.Sprintf("Total assets %s do not equal total liabilities and equity %s (difference %s)", bs.TotalAssets.Formatted, bs.TotalLiabilitiesAndEquity.Formatted, bs.Difference.Formatted),
			Suggestion:        "Check for missing or one-sided entries in asset, liability and equity accounts",
			StandardReference: "IAS 1.54",
		})
	}
	if bs.TotalEquity.Amount.IsNegative() {
		r.add(domain.ValidationFinding{
			Severity:          domain.SeverityWarning,
			Rule:              RuleNegativeEquity,
			Message:           fmt.Sprintf("Total equity is negative (%s)", bs.TotalEquity.Formatted),
			Suggestion:        "Assess whether the going concern assumption still holds",
			StandardReference: "IAS 1.25",
		})
	}
	if !bs.HasComparative {
		r.add(domain.ValidationFinding{
			Severity:          domain.SeverityInfo,
			Rule:              RuleNoComparative,
			Message:           "No comparative period is presented",
			Suggestion:        "Request a comparison against the previous period or year",
			StandardReference: "IAS 1.38",
		})
	}
}

func (r *run) cashFlow(cf *domain.CashFlowData) {
	rec := cf.Reconciliation
	if !rec.IsReconciled {
		r.add(domain.ValidationFinding{
			Severity:          domain.SeverityError,
			Rule:              RuleCashReconciliation,
			Message:           fmt.Sprintf("Opening cash plus net cash flow does not equal closing cash (difference %s)", rec.FormattedDifference),
			Suggestion:        "Look for transactions missing from the period or balances recorded on the wrong date",
			StandardReference: "IAS 7.45",
		})
	}
	if cf.Operating.Current.Amount.IsNegative() && cf.NetProfit.Amount.IsPositive() {
		r.add(domain.ValidationFinding{
			Severity:          domain.SeverityWarning,
			Rule:              RuleQualityOfEarnings,
			Message:           fmt.Sprintf("Operating cash flow %s is negative while net profit %s is positive", cf.Operating.Current.Formatted, cf.NetProfit.Formatted),
			Suggestion:        "Review receivables collection and working capital build-up",
			StandardReference: "IAS 7.18",
		})
	}
	if rec.Source == domain.CashFromHistory {
		r.add(domain.ValidationFinding{
			Severity:   domain.SeverityInfo,
			Rule:       RuleDerivedCash,
			Message:    "Opening and closing cash were derived from transaction history; no ledger balances were available",
			Suggestion: "Record account balances to reconcile against independent figures",
		})
	}
}

func (r *run) profitAndLoss(pl *domain.PLData) {
	if pl.GrossProfit.Amount.IsNegative() {
		r.add(domain.ValidationFinding{
			Severity:          domain.SeverityWarning,
			Rule:              RuleNegativeGross,
			Message:           fmt.Sprintf("Gross profit is negative (%s)", pl.GrossProfit.Formatted),
			Suggestion:        "Check cost of goods sold allocations and pricing",
			StandardReference: "IAS 1.103",
		})
	}
	expenses := pl.COGS.Current.Amount.Add(pl.OperatingExpenses.Current.Amount).
		Add(pl.OtherExpenses.Current.Amount).Add(pl.Tax.Current.Amount)
	if pl.Revenue.Current.Amount.IsZero() && !expenses.IsZero() {
		r.add(domain.ValidationFinding{
			Severity:          domain.SeverityInfo,
			Rule:              RuleZeroRevenue,
			Message:           fmt.Sprintf("No revenue was recognized but expenses of %s were", domain.FormatAmount(expenses, pl.Currency)),
			Suggestion:        "Confirm that revenue for the period has been recorded",
			StandardReference: "IFRS 15.31",
		})
	}
}

// subtotals checks that every parent line equals the sum of its children.
func (r *run) subtotals(line domain.LineItem) {
	if len(line.Children) == 0 {
		return
	}
	total := decimal.Zero
	for _, c := range line.Children {
		total = total.Add(c.Current.Amount)
		r.subtotals(c)
	}
	if !total.Equal(line.Current.Amount) {
		r.add(domain.ValidationFinding{
			Severity: domain.SeverityError,
			Rule:     RuleLineSubtotal,
			Message:  fmt.Sprintf("Line %q is %s but its lines sum to %s", line.Label, line.Current.Formatted, domain.FormatAmount(total, line.Current.Currency)),
		})
	}
}

func (r *run) diagnostics(d domain.Diagnostics) {
	if d.UnclassifiedCount > 0 {
		r.add(domain.ValidationFinding{
			Severity:   domain.SeverityWarning,
			Rule:       RuleUnclassified,
			Message:    fmt.Sprintf("%d transactions could not be classified", d.UnclassifiedCount),
			Suggestion: "Add a type or activity to the affected records so they can be included",
		})
	}
	for _, o := range d.Overpayments {
		r.add(domain.ValidationFinding{
			Severity:   domain.SeverityWarning,
			Rule:       RuleOverpayment,
			Message:    fmt.Sprintf("Linked expenses exceed cost of goods sold on %s by %s", o.SourceID, o.Excess.Formatted),
			Suggestion: "Check the expenses linked to this invoice",
		})
	}
	for _, cur := range d.MissingRates {
		r.add(domain.ValidationFinding{
			Severity:   domain.SeverityWarning,
			Rule:       RuleMissingRate,
			Message:    fmt.Sprintf("No exchange rate for %s; amounts in %s are excluded", cur, cur),
			Suggestion: "Provide a rate for this currency or view the statement unconverted",
		})
	}
}
