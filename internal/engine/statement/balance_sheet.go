package statement

import (
	"github.com/shopspring/decimal"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/engine/aggregate"
)

// BalanceSheet builds the balance sheet in cur from cumulative buckets
// (see aggregate.AsOf). Cash comes from ledger snapshots when present and
// from cumulative cash movements otherwise. No balancing figure is ever
// inserted: a difference is reported as data.
func BalanceSheet(b *aggregate.Buckets, cur string, opts Options) *domain.BalanceSheetData {
	cb := b.For(cur)

	var currentAssets []domain.LineItem
	if cb.HasCash() {
		currentAssets = append(currentAssets, domain.Leaf(cashLabel, cb.Cash(), cur))
	}
	currentAssets = append(currentAssets, accountLines(cb, cur, byClass(domain.ClassAsset, true))...)
	nonCurrentAssets := accountLines(cb, cur, byClass(domain.ClassAsset, false))
	currentLiabilities := accountLines(cb, cur, byClass(domain.ClassLiability, true))
	nonCurrentLiabilities := accountLines(cb, cur, byClass(domain.ClassLiability, false))

	assets := domain.Group("Assets", cur,
		domain.Group("Current assets", cur, currentAssets...),
		domain.Group("Non-current assets", cur, nonCurrentAssets...),
	)
	liabilities := domain.Group("Liabilities", cur,
		domain.Group("Current liabilities", cur, currentLiabilities...),
		domain.Group("Non-current liabilities", cur, nonCurrentLiabilities...),
	)

	equityLines := accountLines(cb, cur, func(k aggregate.AccountKey) bool {
		return k.Classification == domain.ClassEquity
	})
	if opts.IncludeRetainedEarnings {
		equityLines = append(equityLines, domain.Leaf("Retained earnings", cb.NetProfit(), cur))
	}
	equity := domain.Group("Equity", cur, equityLines...)

	totalLE := liabilities.Current.Add(equity.Current)
	diff := assets.Current.Sub(totalLE)

	bs := &domain.BalanceSheetData{
		Currency:                  cur,
		Period:                    b.Period,
		Assets:                    assets,
		Liabilities:               liabilities,
		Equity:                    equity,
		TotalAssets:               assets.Current,
		TotalLiabilities:          liabilities.Current,
		TotalEquity:               equity.Current,
		TotalLiabilitiesAndEquity: totalLE,
		Difference:                diff,
		IsBalanced:                diff.WithinTolerance(opts.tolerance()),
		OutstandingPayables:       domain.NewMoney(cb.Payables, cur),
		OutstandingReceivables:    domain.NewMoney(cb.Receivables, cur),
		Diag:                      diagnostics(b),
	}

	bs.CurrentRatio = ratio(
		sum(currentAssets), sum(currentLiabilities),
		len(currentAssets) > 0 && len(currentLiabilities) > 0,
	)
	bs.DebtToEquity = ratio(
		liabilities.Current.Amount, equity.Current.Amount,
		len(currentLiabilities)+len(nonCurrentLiabilities) > 0 && len(equityLines) > 0,
	)
	return bs
}

// accountLines returns one line per matching account, sorted by label.
// Accounts held in another currency than cur (converted wallet legs) carry
// it in the label.
func accountLines(cb *aggregate.CurrencyBucket, cur string, keep func(aggregate.AccountKey) bool) []domain.LineItem {
	byLabel := make(map[string]decimal.Decimal)
	for k, v := range cb.Accounts {
		if !keep(k) {
			continue
		}
		label := accountLabel(k.Account, cur)
		byLabel[label] = byLabel[label].Add(v)
	}

	lines := make([]domain.LineItem, 0, len(byLabel))
	for _, label := range sortedKeys(byLabel) {
		lines = append(lines, domain.Leaf(label, byLabel[label], cur))
	}
	return lines
}

func byClass(class domain.Classification, current bool) func(aggregate.AccountKey) bool {
	return func(k aggregate.AccountKey) bool {
		return k.Classification == class && k.Current == current
	}
}

func accountLabel(a domain.AccountRef, cur string) string {
	label := a.ID
	if label == "" {
		label = otherLabel
	}
	if a.Currency != "" && a.Currency != cur {
		label += " (" + a.Currency + ")"
	}
	return label
}

func sum(lines []domain.LineItem) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Current.Amount)
	}
	return total
}
