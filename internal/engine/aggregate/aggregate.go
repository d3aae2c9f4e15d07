// Package aggregate sums normalized transactions into statement buckets.
//
// Aggregation never converts between currencies. Every bucket is keyed by
// currency; Present applies an optional rate table afterwards.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

// PLKey identifies a profit and loss line within one currency.
type PLKey struct {
	Section     domain.PLSection
	Category    string
	Subcategory string
}

// AccountKey identifies a balance sheet account within one currency.
type AccountKey struct {
	Classification domain.Classification
	Account        domain.AccountRef
	Current        bool
}

// CurrencyBucket holds every sum for one currency.
type CurrencyBucket struct {
	// Totals sums Amount by classification.
	Totals map[domain.Classification]decimal.Decimal
	// PL sums recognized amounts per line; revenue and expense lines are both positive.
	PL map[PLKey]decimal.Decimal
	// Accounts sums balance movements per asset, liability and equity account.
	Accounts map[AccountKey]decimal.Decimal

	NonCash        decimal.Decimal // profit or loss recognized by non-cash items
	NonOperating   decimal.Decimal // profit or loss recognized by investing or financing cash items
	Linked         decimal.Decimal // invoice-linked payments netted into operating cash
	OtherOperating decimal.Decimal // operating cash not recognized in profit or loss
	Payables       decimal.Decimal // AP remainders
	Receivables    decimal.Decimal // AR remainders
	PriorCash      decimal.Decimal // cash flow dated before the period start

	Opening     decimal.Decimal
	Closing     decimal.Decimal
	HasSnapshot bool

	Unclassified int
}

func newCurrencyBucket() *CurrencyBucket {
	return &CurrencyBucket{
		Totals:   make(map[domain.Classification]decimal.Decimal),
		PL:       make(map[PLKey]decimal.Decimal),
		Accounts: make(map[AccountKey]decimal.Decimal),
	}
}

// Total returns the sum for one classification.
func (c *CurrencyBucket) Total(class domain.Classification) decimal.Decimal {
	return c.Totals[class]
}

// Section sums every PL line in a section.
func (c *CurrencyBucket) Section(s domain.PLSection) decimal.Decimal {
	total := decimal.Zero
	for k, v := range c.PL {
		if k.Section == s {
			total = total.Add(v)
		}
	}
	return total
}

// NetProfit is revenue and other income less every expense section.
func (c *CurrencyBucket) NetProfit() decimal.Decimal {
	return c.Section(domain.PLRevenue).
		Add(c.Section(domain.PLOtherIncome)).
		Sub(c.Section(domain.PLCOGS)).
		Sub(c.Section(domain.PLOperating)).
		Sub(c.Section(domain.PLOtherExpense)).
		Sub(c.Section(domain.PLTax))
}

// ActivityNet sums inflows and outflows of one activity.
func (c *CurrencyBucket) ActivityNet(a domain.Activity) decimal.Decimal {
	return c.Total(a.Classify(decimal.Zero)).Add(c.Total(a.Classify(decimal.NewFromInt(-1))))
}

// NetCashFlow sums every activity.
func (c *CurrencyBucket) NetCashFlow() decimal.Decimal {
	total := decimal.Zero
	for _, a := range domain.Activities {
		total = total.Add(c.ActivityNet(a))
	}
	return total
}

// HasCash reports whether cash moved in this currency or a ledger snapshot
// exists for it.
func (c *CurrencyBucket) HasCash() bool {
	if c.HasSnapshot || !c.PriorCash.IsZero() {
		return true
	}
	for class := range c.Totals {
		if class.IsCashFlow() {
			return true
		}
	}
	return false
}

// Cash returns closing cash: the ledger snapshot total when one exists,
// otherwise cash before the period plus every aggregated cash movement.
func (c *CurrencyBucket) Cash() decimal.Decimal {
	if c.HasSnapshot {
		return c.Closing
	}
	return c.PriorCash.Add(c.NetCashFlow())
}

// Buckets is the result of aggregating one period.
type Buckets struct {
	Period       domain.ReportingPeriod
	ByCurrency   map[string]*CurrencyBucket
	Unclassified int
	Overpayments []domain.Overpayment
	MissingRates []string
}

func newBuckets(p domain.ReportingPeriod) *Buckets {
	return &Buckets{Period: p, ByCurrency: make(map[string]*CurrencyBucket)}
}

func (b *Buckets) bucket(cur string) *CurrencyBucket {
	cb, ok := b.ByCurrency[cur]
	if !ok {
		cb = newCurrencyBucket()
		b.ByCurrency[cur] = cb
	}
	return cb
}

// For returns the bucket for cur, empty when nothing was aggregated in it.
func (b *Buckets) For(cur string) *CurrencyBucket {
	if cb, ok := b.ByCurrency[cur]; ok {
		return cb
	}
	return newCurrencyBucket()
}

// Total returns the sum for a classification in one currency.
func (b *Buckets) Total(class domain.Classification, cur string) decimal.Decimal {
	return b.For(cur).Total(class)
}

// Currencies lists the aggregated currencies in sorted order.
func (b *Buckets) Currencies() []string {
	out := make([]string, 0, len(b.ByCurrency))
	for c := range b.ByCurrency {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Aggregate sums the transactions dated within period in a single pass.
// Both bounds are inclusive; an open-start period has no lower bound.
// Cash dated before the period start is kept as PriorCash.
func Aggregate(txs []domain.NormalizedTransaction, period domain.ReportingPeriod) *Buckets {
	b := newBuckets(period)
	for i := range txs {
		t := &txs[i]
		if t.Date.After(period.End) {
			continue
		}
		if !period.OpenStart && t.Date.Before(period.Start) {
			if t.Classification.IsCashFlow() && !t.NonCash {
				cb := b.bucket(t.Currency)
				cb.PriorCash = cb.PriorCash.Add(t.Amount)
			}
			continue
		}
		if t.Classification == domain.ClassUnclassified {
			b.Unclassified++
			b.bucket(t.Currency).Unclassified++
			continue
		}
		b.add(t)
	}
	return b
}

// AsOf aggregates everything up to period.End, ignoring the period start.
// The balance sheet is built from it.
func AsOf(txs []domain.NormalizedTransaction, period domain.ReportingPeriod) *Buckets {
	cumulative := period
	cumulative.OpenStart = true
	b := Aggregate(txs, cumulative)
	b.Period = period
	return b
}

func (b *Buckets) add(t *domain.NormalizedTransaction) {
	cb := b.bucket(t.Currency)

	if t.Classification.IsBalance() {
		cb.Totals[t.Classification] = cb.Totals[t.Classification].Add(t.Amount)
		key := AccountKey{Classification: t.Classification, Account: t.Account, Current: t.Current}
		cb.Accounts[key] = cb.Accounts[key].Add(t.Amount)
		return
	}

	recognized := t.Recognized()
	b.addPL(cb, t)

	if t.NonCash {
		cb.NonCash = cb.NonCash.Add(recognized)
		return
	}

	cb.Totals[t.Classification] = cb.Totals[t.Classification].Add(t.Amount)
	if t.Classification.Activity() != domain.ActivityOperating {
		cb.NonOperating = cb.NonOperating.Add(recognized)
		return
	}
	cb.Linked = cb.Linked.Add(t.LinkedExpenses)
	cb.OtherOperating = cb.OtherOperating.Add(t.Amount.Sub(recognized).Add(t.LinkedExpenses))

	if t.SourceKind == domain.SourceInvoiceRevenue {
		b.addRemainders(cb, t)
	}
}

func (b *Buckets) addPL(cb *CurrencyBucket, t *domain.NormalizedTransaction) {
	if t.PLSection == domain.PLNone {
		return
	}
	line := func(s domain.PLSection, amount decimal.Decimal) {
		if amount.IsZero() {
			return
		}
		k := PLKey{Section: s, Category: t.Category, Subcategory: t.Subcategory}
		cb.PL[k] = cb.PL[k].Add(amount)
	}
	switch t.PLSection {
	case domain.PLRevenue, domain.PLOtherIncome:
		line(t.PLSection, t.Revenue)
		line(domain.PLCOGS, t.COGS)
	case domain.PLCOGS:
		line(domain.PLCOGS, t.COGS)
	default:
		line(t.PLSection, t.Expense)
	}
}

// addRemainders computes AP and AR remainders for one invoice. Linked
// payments beyond cogs clamp the payable at zero and record an overpayment.
func (b *Buckets) addRemainders(cb *CurrencyBucket, t *domain.NormalizedTransaction) {
	if t.COGS.IsPositive() {
		remaining := t.COGS.Sub(t.LinkedExpenses)
		if remaining.IsNegative() {
			b.Overpayments = append(b.Overpayments, domain.Overpayment{
				SourceID: t.SourceID,
				Excess:   domain.NewMoney(remaining.Neg(), t.Currency),
			})
			remaining = decimal.Zero
		}
		cb.Payables = cb.Payables.Add(remaining)
	}
	if t.Received != nil {
		open := t.Revenue.Sub(*t.Received)
		if open.IsPositive() {
			cb.Receivables = cb.Receivables.Add(open)
		}
	}
}

// WithCash records opening and closing cash from ledger balance snapshots:
// per account, the latest snapshot strictly before the period start and the
// latest at or before the period end.
func (b *Buckets) WithCash(balances []domain.CashBalance) *Buckets {
	type account struct{ id, cur string }
	opening := make(map[account]domain.CashBalance)
	closing := make(map[account]domain.CashBalance)

	for _, s := range balances {
		k := account{s.AccountID, s.Currency}
		if s.AsOf.After(b.Period.End) {
			continue
		}
		if prev, ok := closing[k]; !ok || s.AsOf.After(prev.AsOf) {
			closing[k] = s
		}
		if !b.Period.OpenStart && s.AsOf.Before(b.Period.Start) {
			if prev, ok := opening[k]; !ok || s.AsOf.After(prev.AsOf) {
				opening[k] = s
			}
		}
	}

	for k, s := range closing {
		cb := b.bucket(k.cur)
		cb.HasSnapshot = true
		cb.Closing = cb.Closing.Add(s.Balance)
	}
	for k, s := range opening {
		cb := b.bucket(k.cur)
		cb.Opening = cb.Opening.Add(s.Balance)
	}
	return b
}
