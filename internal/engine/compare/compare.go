// Package compare merges current and prior period statement lines and
// computes variances.
package compare

import (
	"github.com/shopspring/decimal"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Compare merges current and prior lines by label, recursively. Every line
// from either side appears once: current lines in their order, then lines
// only the prior period has. A missing side counts as zero.
func Compare(current, prior []domain.LineItem) []domain.LineItem {
	priorByLabel := make(map[string]int, len(prior))
	for i, p := range prior {
		if _, dup := priorByLabel[p.Label]; !dup {
			priorByLabel[p.Label] = i
		}
	}

	out := make([]domain.LineItem, 0, len(current)+len(prior))
	matched := make(map[int]bool, len(prior))
	for i := range current {
		c := &current[i]
		var p *domain.LineItem
		if j, ok := priorByLabel[c.Label]; ok && !matched[j] {
			p = &prior[j]
			matched[j] = true
		}
		out = append(out, merge(c, p))
	}
	for j := range prior {
		if !matched[j] {
			out = append(out, merge(nil, &prior[j]))
		}
	}
	return out
}

func merge(c, p *domain.LineItem) domain.LineItem {
	var (
		label         string
		cur, prv      domain.Money
		curKids, prev []domain.LineItem
	)
	switch {
	case c != nil && p != nil:
		label, cur, prv = c.Label, c.Current, p.Current
		curKids, prev = c.Children, p.Children
	case c != nil:
		label, cur, prv = c.Label, c.Current, domain.ZeroMoney(c.Current.Currency)
		curKids = c.Children
	default:
		label, cur, prv = p.Label, domain.ZeroMoney(p.Current.Currency), p.Current
		prev = p.Children
	}

	line := domain.LineItem{
		Label:            label,
		Current:          cur,
		Prior:            prv.Ptr(),
		VarianceAbsolute: domain.NewMoney(cur.Amount.Sub(prv.Amount), cur.Currency).Ptr(),
		VariancePercent:  Percent(cur.Amount, prv.Amount),
	}
	if len(curKids) > 0 || len(prev) > 0 {
		line.Children = Compare(curKids, prev)
	}
	return line
}

// Percent returns (current - prior) / |prior| * 100 rounded to two places,
// or nil when prior is zero.
func Percent(current, prior decimal.Decimal) *decimal.Decimal {
	if prior.IsZero() {
		return nil
	}
	p := current.Sub(prior).Div(prior.Abs()).Mul(hundred).Round(2)
	return &p
}

// BalanceSheets annotates cur with variances against prior.
func BalanceSheets(cur, prior *domain.BalanceSheetData) {
	merged := Compare(cur.Lines(), prior.Lines())
	cur.Assets, cur.Liabilities, cur.Equity = merged[0], merged[1], merged[2]
	cur.HasComparative = true
}

// CashFlows annotates cur with variances against prior.
func CashFlows(cur, prior *domain.CashFlowData) {
	merged := Compare(cur.Lines(), prior.Lines())
	cur.Operating, cur.Investing, cur.Financing = merged[0], merged[1], merged[2]
}

// ProfitAndLoss annotates cur with variances against prior.
func ProfitAndLoss(cur, prior *domain.PLData) {
	merged := Compare(cur.Lines(), prior.Lines())
	cur.Revenue, cur.COGS, cur.OperatingExpenses = merged[0], merged[1], merged[2]
	cur.OtherIncome, cur.OtherExpenses, cur.Tax = merged[3], merged[4], merged[5]
}
