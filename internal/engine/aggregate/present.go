package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

// Present prepares buckets for statement building.
//
// Without a rate table each aggregated currency becomes its own view,
// unconverted. With a table everything is converted into target and rounded
// to its minor unit; currencies the table has no rate for are left out and
// listed in MissingRates.
func Present(b *Buckets, target string, rates *domain.RateTable) []*Buckets {
	if rates == nil {
		currencies := b.Currencies()
		if len(currencies) == 0 {
			currencies = []string{target}
		}
		out := make([]*Buckets, 0, len(currencies))
		for _, cur := range currencies {
			out = append(out, b.only(cur))
		}
		return out
	}
	return []*Buckets{b.convert(target, rates)}
}

// only returns a view containing a single currency.
func (b *Buckets) only(cur string) *Buckets {
	view := &Buckets{
		Period:       b.Period,
		ByCurrency:   map[string]*CurrencyBucket{cur: b.For(cur)},
		Unclassified: b.For(cur).Unclassified,
		MissingRates: b.MissingRates,
	}
	for _, o := range b.Overpayments {
		if o.Excess.Currency == cur {
			view.Overpayments = append(view.Overpayments, o)
		}
	}
	return view
}

func (b *Buckets) convert(target string, rates *domain.RateTable) *Buckets {
	out := newBuckets(b.Period)
	out.Unclassified = b.Unclassified
	dst := out.bucket(target)

	missing := make(map[string]struct{})
	for _, m := range b.MissingRates {
		missing[m] = struct{}{}
	}

	for _, cur := range b.Currencies() {
		conv := func(v decimal.Decimal) decimal.Decimal {
			c, _ := rates.Convert(v, cur, target)
			return domain.RoundMinor(c, target)
		}
		if _, ok := rates.Convert(decimal.Zero, cur, target); !ok {
			missing[cur] = struct{}{}
			continue
		}
		dst.merge(b.ByCurrency[cur], conv)
	}
	dst.settleOperating()

	for _, o := range b.Overpayments {
		if excess, ok := rates.Convert(o.Excess.Amount, o.Excess.Currency, target); ok {
			out.Overpayments = append(out.Overpayments, domain.Overpayment{
				SourceID: o.SourceID,
				Excess:   domain.NewMoney(excess, target),
			})
		}
	}

	for m := range missing {
		out.MissingRates = append(out.MissingRates, m)
	}
	sort.Strings(out.MissingRates)
	return out
}

// merge adds src, converted with conv, into c. Accounts keep their native
// currency in AccountRef so wallet legs stay distinct after conversion.
// A currency without snapshots contributes cash derived from its history.
func (c *CurrencyBucket) merge(src *CurrencyBucket, conv func(decimal.Decimal) decimal.Decimal) {
	for k, v := range src.Totals {
		c.Totals[k] = c.Totals[k].Add(conv(v))
	}
	for k, v := range src.PL {
		c.PL[k] = c.PL[k].Add(conv(v))
	}
	for k, v := range src.Accounts {
		c.Accounts[k] = c.Accounts[k].Add(conv(v))
	}
	c.NonCash = c.NonCash.Add(conv(src.NonCash))
	c.NonOperating = c.NonOperating.Add(conv(src.NonOperating))
	c.Linked = c.Linked.Add(conv(src.Linked))
	c.OtherOperating = c.OtherOperating.Add(conv(src.OtherOperating))
	c.Payables = c.Payables.Add(conv(src.Payables))
	c.Receivables = c.Receivables.Add(conv(src.Receivables))
	c.PriorCash = c.PriorCash.Add(conv(src.PriorCash))
	opening, closing := src.Opening, src.Closing
	if !src.HasSnapshot {
		opening = src.PriorCash
		closing = src.PriorCash.Add(src.NetCashFlow())
	}
	c.Opening = c.Opening.Add(conv(opening))
	c.Closing = c.Closing.Add(conv(closing))
	c.HasSnapshot = c.HasSnapshot || src.HasSnapshot
	c.Unclassified += src.Unclassified
}

// settleOperating recomputes OtherOperating as the residual of converted
// operating cash, so the indirect method lands on the direct total after
// every converted figure was rounded on its own.
func (c *CurrencyBucket) settleOperating() {
	c.OtherOperating = c.ActivityNet(domain.ActivityOperating).
		Sub(c.NetProfit()).
		Add(c.NonCash).
		Add(c.NonOperating).
		Add(c.Linked)
}

// OnlyCurrency returns a view of b restricted to cur, empty when nothing was
// aggregated in it.
func (b *Buckets) OnlyCurrency(cur string) *Buckets { return b.only(cur) }
