package statement

import (
	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/engine/aggregate"
)

// ProfitAndLoss builds the profit and loss statement in cur. Lines are
// grouped by category, then subcategory. Margins are nil when revenue is zero.
func ProfitAndLoss(b *aggregate.Buckets, cur string) *domain.PLData {
	cb := b.For(cur)

	revenue := categoryTree("Revenue", cur, cb, domain.PLRevenue)
	cogs := categoryTree("Cost of goods sold", cur, cb, domain.PLCOGS)
	opex := categoryTree("Operating expenses", cur, cb, domain.PLOperating)
	otherIncome := categoryTree("Other income", cur, cb, domain.PLOtherIncome)
	otherExpenses := categoryTree("Other expenses", cur, cb, domain.PLOtherExpense)
	tax := categoryTree("Tax", cur, cb, domain.PLTax)

	gross := revenue.Current.Sub(cogs.Current)
	operatingIncome := gross.Sub(opex.Current)
	net := operatingIncome.Add(otherIncome.Current).Sub(otherExpenses.Current).Sub(tax.Current)

	rev := revenue.Current.Amount
	return &domain.PLData{
		Currency:               cur,
		Period:                 b.Period,
		Revenue:                revenue,
		COGS:                   cogs,
		GrossProfit:            gross,
		OperatingExpenses:      opex,
		OperatingIncome:        operatingIncome,
		OtherIncome:            otherIncome,
		OtherExpenses:          otherExpenses,
		Tax:                    tax,
		NetProfit:              net,
		GrossMarginPercent:     percentOf(gross.Amount, rev),
		OperatingMarginPercent: percentOf(operatingIncome.Amount, rev),
		NetMarginPercent:       percentOf(net.Amount, rev),
		Diag:                   diagnostics(b),
	}
}
