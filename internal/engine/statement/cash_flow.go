package statement

import (
	"github.com/shopspring/decimal"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/engine/aggregate"
)

var activityLabels = map[domain.Activity]string{
	domain.ActivityOperating: "Operating activities",
	domain.ActivityInvesting: "Investing activities",
	domain.ActivityFinancing: "Financing activities",
}

// CashFlow builds the statement of cash flows in cur for the period of b.
// Direct and indirect methods present operating cash differently but always
// arrive at the same net cash flow. Open-ended periods are rejected because
// they have no opening cash to reconcile against.
func CashFlow(b *aggregate.Buckets, cur string, opts Options) (*domain.CashFlowData, error) {
	if b.Period.OpenStart {
		return nil, &domain.ErrInvalidPeriod{Field: "period", Message: "allTime cannot be reconciled against closing cash"}
	}
	method := opts.Method
	if method == "" {
		method = domain.MethodDirect
	}
	if method != domain.MethodDirect && method != domain.MethodIndirect {
		return nil, &domain.ErrValidation{Field: "method", Message: "must be direct or indirect"}
	}

	cb := b.For(cur)
	netProfit := cb.NetProfit()

	var operating domain.LineItem
	if method == domain.MethodIndirect {
		operating = domain.Group(activityLabels[domain.ActivityOperating], cur,
			domain.Leaf("Net profit", netProfit, cur),
			domain.Leaf("Non-cash items", cb.NonCash.Neg(), cur),
			domain.Leaf("Investing and financing items", cb.NonOperating.Neg(), cur),
			domain.Leaf("Invoice-linked payments", cb.Linked.Neg(), cur),
			domain.Leaf("Working capital and other operating cash", cb.OtherOperating, cur),
		)
	} else {
		operating = directLines(cb, domain.ActivityOperating, cur)
	}
	investing := directLines(cb, domain.ActivityInvesting, cur)
	financing := directLines(cb, domain.ActivityFinancing, cur)

	net := operating.Current.Amount.Add(investing.Current.Amount).Add(financing.Current.Amount)

	return &domain.CashFlowData{
		Currency:       cur,
		Period:         b.Period,
		Method:         method,
		Operating:      operating,
		Investing:      investing,
		Financing:      financing,
		NetCashFlow:    domain.NewMoney(net, cur),
		NetProfit:      domain.NewMoney(netProfit, cur),
		Reconciliation: reconcile(cb, net, cur, opts.tolerance()),
		Diag:           diagnostics(b),
	}, nil
}

func directLines(cb *aggregate.CurrencyBucket, a domain.Activity, cur string) domain.LineItem {
	return domain.Group(activityLabels[a], cur,
		domain.Leaf("Receipts", cb.Total(a.Classify(decimal.Zero)), cur),
		domain.Leaf("Payments", cb.Total(a.Classify(decimal.NewFromInt(-1))), cur),
	)
}

// reconcile checks opening + net against closing. Without ledger snapshots
// both ends are derived from history, which reconciles by construction.
func reconcile(cb *aggregate.CurrencyBucket, net decimal.Decimal, cur string, tol decimal.Decimal) domain.CashReconciliation {
	opening, closing := cb.Opening, cb.Closing
	source := domain.CashFromLedger
	if !cb.HasSnapshot {
		opening = cb.PriorCash
		closing = cb.PriorCash.Add(net)
		source = domain.CashFromHistory
	}

	diff := closing.Sub(opening.Add(net))
	reconciled := diff.IsZero() || diff.Abs().LessThan(tol)

	return domain.CashReconciliation{
		OpeningCash:         domain.NewMoney(opening, cur),
		NetCashFlow:         domain.NewMoney(net, cur),
		ClosingCash:         domain.NewMoney(closing, cur),
		Difference:          domain.NewMoney(diff, cur),
		FormattedDifference: domain.FormatAmount(diff, cur),
		IsReconciled:        reconciled,
		Source:              source,
	}
}
