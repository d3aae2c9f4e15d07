// Package statement builds balance sheets, cash flow statements and profit
// and loss statements from aggregated buckets.
package statement

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/engine/aggregate"
)

const (
	uncategorized = "Uncategorized"
	otherLabel    = "Other"
	cashLabel     = "Cash and cash equivalents"
	percentScale  = 2
)

var hundred = decimal.NewFromInt(100)

// Options tune statement building.
type Options struct {
	Tolerance               decimal.Decimal
	IncludeRetainedEarnings bool
	Method                  domain.CashFlowMethod
}

func (o Options) tolerance() decimal.Decimal {
	if o.Tolerance.IsZero() || o.Tolerance.IsNegative() {
		return domain.DefaultTolerance
	}
	return o.Tolerance
}

// OptionsFrom derives builder options from company settings.
func OptionsFrom(s domain.CompanySettings, method domain.CashFlowMethod) Options {
	return Options{
		Tolerance:               s.IFRS.ToleranceValue(),
		IncludeRetainedEarnings: s.IFRS.IncludeRetainedEarnings,
		Method:                  method,
	}
}

func diagnostics(b *aggregate.Buckets) domain.Diagnostics {
	return domain.Diagnostics{
		UnclassifiedCount: b.Unclassified,
		Overpayments:      b.Overpayments,
		MissingRates:      b.MissingRates,
	}
}

// categoryTree groups PL lines of one section into category lines with
// subcategory children, both sorted by label.
func categoryTree(label, cur string, cb *aggregate.CurrencyBucket, section domain.PLSection) domain.LineItem {
	bySub := make(map[string]map[string]decimal.Decimal)
	for k, v := range cb.PL {
		if k.Section != section {
			continue
		}
		cat := k.Category
		if cat == "" {
			cat = uncategorized
		}
		if bySub[cat] == nil {
			bySub[cat] = make(map[string]decimal.Decimal)
		}
		bySub[cat][k.Subcategory] = bySub[cat][k.Subcategory].Add(v)
	}

	children := make([]domain.LineItem, 0, len(bySub))
	for _, cat := range sortedKeys(bySub) {
		subs := bySub[cat]
		if len(subs) == 1 {
			if v, ok := subs[""]; ok {
				children = append(children, domain.Leaf(cat, v, cur))
				continue
			}
		}
		leaves := make([]domain.LineItem, 0, len(subs))
		for _, sub := range sortedKeys(subs) {
			name := sub
			if name == "" {
				name = otherLabel
			}
			leaves = append(leaves, domain.Leaf(name, subs[sub], cur))
		}
		children = append(children, domain.Group(cat, cur, leaves...))
	}
	return domain.Group(label, cur, children...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// percentOf returns part/whole*100 rounded to two places, nil when whole is zero.
func percentOf(part, whole decimal.Decimal) *decimal.Decimal {
	if whole.IsZero() {
		return nil
	}
	p := part.Div(whole).Mul(hundred).Round(percentScale)
	return &p
}

// ratio divides num by den when both sides are present and den is non-zero.
func ratio(num, den decimal.Decimal, present bool) domain.Ratio {
	if !present || den.IsZero() {
		return domain.Ratio{Display: "N/A"}
	}
	v := num.DivRound(den, 4)
	return domain.Ratio{Value: &v, Display: v.StringFixed(2)}
}
