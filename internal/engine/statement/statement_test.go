package statement_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/engine/aggregate"
	"github.com/boddenberg/finstatements-go/internal/engine/ledger"
	"github.com/boddenberg/finstatements-go/internal/engine/statement"
)

var (
	settings = domain.CompanySettings{CompanyID: "c1", FunctionalCurrency: "USD"}
	march    = domain.ReportingPeriod{
		Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 31, 23, 59, 59, 999999999, time.UTC),
		Label: "thisMonth",
		ID:    "2025-03",
	}
	inMarch = time.Date(2025, 3, 12, 9, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}

func entry(typ domain.EntryType, account string, amount string, current bool) domain.ManualEntry {
	return domain.ManualEntry{
		ID: account + amount, Date: inMarch, Amount: d(amount), Currency: "USD",
		Type: typ, Account: account, Current: current,
	}
}

func normalize(records ...domain.ExternalRecord) []domain.NormalizedTransaction {
	return ledger.Normalize(records, settings)
}

// ============================================================
// Balance sheet
// ============================================================

func TestBalanceSheet_UnbalancedEquityIsReportedNotPlugged(t *testing.T) {
	txs := normalize(
		entry(domain.EntryAsset, "Cash", "1000", true),
		entry(domain.EntryAsset, "Receivables", "500", true),
		entry(domain.EntryLiability, "Payables", "300", true),
		entry(domain.EntryEquity, "Capital", "1100", false),
	)

	bs := statement.BalanceSheet(aggregate.AsOf(txs, march), "USD", statement.Options{})

	assertDecimal(t, "1500", bs.TotalAssets.Amount)
	assertDecimal(t, "300", bs.TotalLiabilities.Amount)
	assertDecimal(t, "1100", bs.TotalEquity.Amount)
	assertDecimal(t, "1400", bs.TotalLiabilitiesAndEquity.Amount)
	assertDecimal(t, "100", bs.Difference.Amount)
	assert.False(t, bs.IsBalanced)
	require.Len(t, bs.Equity.Children, 1, "no balancing line is inserted")
}

func TestBalanceSheet_BalancedScenario(t *testing.T) {
	txs := normalize(
		entry(domain.EntryAsset, "Cash", "1000", true),
		entry(domain.EntryAsset, "Receivables", "500", true),
		entry(domain.EntryLiability, "Payables", "300", true),
		entry(domain.EntryEquity, "Capital", "1200", false),
	)

	bs := statement.BalanceSheet(aggregate.AsOf(txs, march), "USD", statement.Options{})

	assert.True(t, bs.IsBalanced)
	assert.Equal(t, "$1,500.00", bs.TotalAssets.Formatted)
	require.NotNil(t, bs.CurrentRatio.Value)
	assertDecimal(t, "5", *bs.CurrentRatio.Value)
	assert.Equal(t, "5.00", bs.CurrentRatio.Display)
	assert.Equal(t, "0.25", bs.DebtToEquity.Display)

	current := bs.Assets.Find("Current assets")
	require.NotNil(t, current)
	require.Len(t, current.Children, 2)
	assert.Equal(t, "Cash", current.Children[0].Label)
	assert.Equal(t, "Receivables", current.Children[1].Label)
}

func TestBalanceSheet_RatiosNotAvailable(t *testing.T) {
	txs := normalize(entry(domain.EntryAsset, "Cash", "1000", true))

	bs := statement.BalanceSheet(aggregate.AsOf(txs, march), "USD", statement.Options{})

	assert.Nil(t, bs.CurrentRatio.Value)
	assert.Equal(t, "N/A", bs.CurrentRatio.Display)
	assert.Nil(t, bs.DebtToEquity.Value)
	assert.Equal(t, "N/A", bs.DebtToEquity.Display)
}

func TestBalanceSheet_ZeroEquityDenominator(t *testing.T) {
	txs := normalize(
		entry(domain.EntryAsset, "Cash", "100", true),
		entry(domain.EntryLiability, "Loan", "100", false),
		entry(domain.EntryEquity, "Capital", "50", false),
		entry(domain.EntryEquity, "Capital", "-50", false),
	)

	bs := statement.BalanceSheet(aggregate.AsOf(txs, march), "USD", statement.Options{})
	assert.Equal(t, "N/A", bs.DebtToEquity.Display)
	assert.True(t, bs.IsBalanced)
}

func TestBalanceSheet_EmptySetIsBalanced(t *testing.T) {
	bs := statement.BalanceSheet(aggregate.AsOf(nil, march), "USD", statement.Options{})
	assert.True(t, bs.IsBalanced)
	assertDecimal(t, "0", bs.Difference.Amount)
}

func TestBalanceSheet_RetainedEarnings(t *testing.T) {
	txs := normalize(
		domain.ManualEntry{ID: "r", Date: inMarch, Amount: d("400"), Type: domain.EntryRevenue},
		domain.ManualEntry{ID: "e", Date: inMarch, Amount: d("150"), Type: domain.EntryExpense},
	)

	bs := statement.BalanceSheet(aggregate.AsOf(txs, march), "USD", statement.Options{IncludeRetainedEarnings: true})

	re := bs.Equity.Find("Retained earnings")
	require.NotNil(t, re)
	assertDecimal(t, "250", re.Current.Amount)
	cash := bs.Assets.Find("Cash and cash equivalents")
	require.NotNil(t, cash, "cash movements are carried as cash")
	assertDecimal(t, "250", cash.Current.Amount)
	assert.True(t, bs.IsBalanced, "difference %s", bs.Difference.Amount)
}

func TestBalanceSheet_CashFromLedgerSnapshot(t *testing.T) {
	txs := normalize(
		domain.BankTransaction{ID: "b1", AccountID: "chk", Date: inMarch, IncomingAmount: d("400"), Currency: "USD"},
		domain.ManualEntry{ID: "sale", Date: inMarch, Amount: d("400"), Type: domain.EntryRevenue, Category: "Services"},
	)
	balances := []domain.CashBalance{{AccountID: "chk", Currency: "USD", AsOf: march.End, Balance: d("400")}}

	bs := statement.BalanceSheet(aggregate.AsOf(txs, march).WithCash(balances), "USD",
		statement.Options{IncludeRetainedEarnings: true})

	current := bs.Assets.Find("Current assets")
	require.NotNil(t, current)
	require.Len(t, current.Children, 1)
	assert.Equal(t, "Cash and cash equivalents", current.Children[0].Label)
	assertDecimal(t, "400", bs.TotalAssets.Amount)
	assertDecimal(t, "400", bs.TotalEquity.Amount)
	assert.True(t, bs.IsBalanced, "difference %s", bs.Difference.Amount)
}

func TestBalanceSheet_NoCashLineWithoutCash(t *testing.T) {
	txs := normalize(entry(domain.EntryAsset, "Inventory", "80", true))

	bs := statement.BalanceSheet(aggregate.AsOf(txs, march), "USD", statement.Options{})
	assert.Nil(t, bs.Assets.Find("Cash and cash equivalents"))
}

func TestBalanceSheet_BalanceInvariantForDoubleEntrySets(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	accounts := map[domain.EntryType][]string{
		domain.EntryAsset:     {"Cash", "Inventory", "Equipment"},
		domain.EntryLiability: {"Payables", "Loan"},
		domain.EntryEquity:    {"Capital"},
	}
	pick := func(typ domain.EntryType) string {
		names := accounts[typ]
		return names[rng.Intn(len(names))]
	}

	for run := 0; run < 50; run++ {
		var records []domain.ExternalRecord
		for i := 0; i < rng.Intn(30); i++ {
			amount := decimal.New(rng.Int63n(1_000_000), -2).String()
			neg := "-" + amount
			switch rng.Intn(4) {
			case 0: // asset financed by debt
				records = append(records, entry(domain.EntryAsset, pick(domain.EntryAsset), amount, rng.Intn(2) == 0),
					entry(domain.EntryLiability, pick(domain.EntryLiability), amount, rng.Intn(2) == 0))
			case 1: // asset financed by owners
				records = append(records, entry(domain.EntryAsset, pick(domain.EntryAsset), amount, true),
					entry(domain.EntryEquity, pick(domain.EntryEquity), amount, false))
			case 2: // asset swap
				records = append(records, entry(domain.EntryAsset, "Cash", neg, true),
					entry(domain.EntryAsset, "Equipment", amount, false))
			case 3: // debt repaid
				records = append(records, entry(domain.EntryAsset, "Cash", neg, true),
					entry(domain.EntryLiability, pick(domain.EntryLiability), neg, true))
			}
		}

		bs := statement.BalanceSheet(aggregate.AsOf(normalize(records...), march), "USD", statement.Options{})
		require.True(t, bs.IsBalanced, "run %d: difference %s", run, bs.Difference.Amount)
		require.True(t, bs.TotalAssets.Amount.Equal(bs.TotalLiabilitiesAndEquity.Amount), "run %d", run)
	}
}

// ============================================================
// Cash flow
// ============================================================

func mixedRecords() []domain.ExternalRecord {
	return []domain.ExternalRecord{
		domain.InvoiceRevenueEntry{ID: "i1", InvoiceID: "inv-1", Date: inMarch, Currency: "USD",
			GrossAmount: d("1000"), COGS: d("200"),
			LinkedExpenses: []domain.LinkedExpense{{ID: "x", Amount: d("150")}}},
		domain.BankTransaction{ID: "b1", AccountID: "chk", Date: inMarch, IncomingAmount: d("500"), Currency: "USD"},
		domain.BankTransaction{ID: "b2", AccountID: "chk", Date: inMarch, OutgoingAmount: d("300"), Currency: "USD"},
		domain.BankTransaction{ID: "b3", AccountID: "chk", Date: inMarch, OutgoingAmount: d("900"), Currency: "USD", Activity: domain.ActivityInvesting},
		domain.ManualEntry{ID: "m1", Date: inMarch, Amount: d("120"), Type: domain.EntryExpense, Category: "Rent"},
		domain.ManualEntry{ID: "m2", Date: inMarch, Amount: d("45"), Type: domain.EntryExpense, Category: "Depreciation", NonCash: true},
		domain.ManualEntry{ID: "m3", Date: inMarch, Amount: d("60"), Type: domain.EntryRevenue, Activity: domain.ActivityInvesting, Section: domain.SectionOther, Category: "Gain on disposal"},
		domain.ManualAdjustment{ID: "a1", Date: inMarch, Amount: d("2000"), Activity: domain.ActivityFinancing, Currency: "USD"},
		domain.WalletTransaction{ID: "w1", WalletID: "wal", Date: inMarch, Legs: []domain.WalletLeg{{Currency: "USD", Amount: d("-25.5")}}},
	}
}

func TestCashFlow_DirectAndIndirectAgree(t *testing.T) {
	b := aggregate.Aggregate(normalize(mixedRecords()...), march)

	direct, err := statement.CashFlow(b, "USD", statement.Options{Method: domain.MethodDirect})
	require.NoError(t, err)
	indirect, err := statement.CashFlow(b, "USD", statement.Options{Method: domain.MethodIndirect})
	require.NoError(t, err)

	assert.Truef(t, direct.NetCashFlow.Amount.Equal(indirect.NetCashFlow.Amount),
		"direct %s indirect %s", direct.NetCashFlow.Amount, indirect.NetCashFlow.Amount)
	assert.True(t, direct.Operating.Current.Amount.Equal(indirect.Operating.Current.Amount))

	// operating: 650 + 500 - 300 - 120 - 25.5; investing: -900 + 60; financing: 2000
	assertDecimal(t, "704.5", direct.Operating.Current.Amount)
	assertDecimal(t, "-840", direct.Investing.Current.Amount)
	assertDecimal(t, "2000", direct.Financing.Current.Amount)
	assertDecimal(t, "1864.5", direct.NetCashFlow.Amount)
	// 1000 - 200 - 120 - 45 + 60
	assertDecimal(t, "695", indirect.NetProfit.Amount)
}

func TestCashFlow_EquivalenceOverRandomMixes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	all := mixedRecords()
	for run := 0; run < 100; run++ {
		var subset []domain.ExternalRecord
		for _, r := range all {
			if rng.Intn(2) == 0 {
				subset = append(subset, r)
			}
		}
		b := aggregate.Aggregate(normalize(subset...), march)
		direct, err := statement.CashFlow(b, "USD", statement.Options{Method: domain.MethodDirect})
		require.NoError(t, err)
		indirect, err := statement.CashFlow(b, "USD", statement.Options{Method: domain.MethodIndirect})
		require.NoError(t, err)
		require.True(t, direct.NetCashFlow.Amount.Equal(indirect.NetCashFlow.Amount), "run %d", run)

		// the same mix spread over currencies, converted into USD
		var mixed []domain.ExternalRecord
		for _, r := range subset {
			mixed = append(mixed, inCurrency(r, currencies[rng.Intn(len(currencies))]))
		}
		views := aggregate.Present(aggregate.Aggregate(normalize(mixed...), march), "USD", thirds)
		require.Len(t, views, 1)
		direct, err = statement.CashFlow(views[0], "USD", statement.Options{Method: domain.MethodDirect})
		require.NoError(t, err)
		indirect, err = statement.CashFlow(views[0], "USD", statement.Options{Method: domain.MethodIndirect})
		require.NoError(t, err)
		require.Truef(t, direct.NetCashFlow.Amount.Equal(indirect.NetCashFlow.Amount),
			"run %d: direct %s indirect %s", run, direct.NetCashFlow.Amount, indirect.NetCashFlow.Amount)
		require.True(t, direct.Operating.Current.Amount.Equal(indirect.Operating.Current.Amount), "run %d", run)
		require.LessOrEqual(t, -direct.NetCashFlow.Amount.Exponent(), int32(2), "run %d: %s", run, direct.NetCashFlow.Amount)
	}
}

var (
	currencies = []string{"USD", "EUR", "GBP"}
	thirds     = &domain.RateTable{Base: "USD", Rates: map[string]decimal.Decimal{"EUR": d("0.3"), "GBP": d("0.7")}}
)

// inCurrency returns r booked in cur.
func inCurrency(r domain.ExternalRecord, cur string) domain.ExternalRecord {
	switch v := r.(type) {
	case domain.ManualEntry:
		v.Currency = cur
		return v
	case domain.InvoiceRevenueEntry:
		v.Currency = cur
		return v
	case domain.BankTransaction:
		v.Currency = cur
		return v
	case domain.ManualAdjustment:
		v.Currency = cur
		return v
	case domain.WalletTransaction:
		legs := make([]domain.WalletLeg, len(v.Legs))
		for i, l := range v.Legs {
			legs[i] = domain.WalletLeg{Currency: cur, Amount: l.Amount}
		}
		v.Legs = legs
		return v
	}
	return r
}

func TestCashFlow_ConvertedMethodsAgreeToTheCent(t *testing.T) {
	txs := normalize(
		domain.ManualEntry{ID: "s1", Date: inMarch, Amount: d("1"), Currency: "EUR", Type: domain.EntryRevenue, Category: "Services"},
		domain.ManualEntry{ID: "s2", Date: inMarch, Amount: d("1"), Currency: "EUR", Type: domain.EntryRevenue, Category: "Services"},
	)

	views := aggregate.Present(aggregate.Aggregate(txs, march), "USD", thirds)
	require.Len(t, views, 1)
	direct, err := statement.CashFlow(views[0], "USD", statement.Options{Method: domain.MethodDirect})
	require.NoError(t, err)
	indirect, err := statement.CashFlow(views[0], "USD", statement.Options{Method: domain.MethodIndirect})
	require.NoError(t, err)

	assertDecimal(t, "6.67", direct.NetCashFlow.Amount)
	assertDecimal(t, "6.67", indirect.NetCashFlow.Amount)
}

func TestCashFlow_ReconcilesAgainstLedgerBalances(t *testing.T) {
	records := []domain.ExternalRecord{
		domain.BankTransaction{ID: "b1", AccountID: "chk", Date: inMarch, IncomingAmount: d("500"), Currency: "USD"},
		domain.BankTransaction{ID: "b2", AccountID: "chk", Date: march.End, OutgoingAmount: d("300"), Currency: "USD"},
	}
	balances := []domain.CashBalance{
		{AccountID: "chk", Currency: "USD", AsOf: march.Start.Add(-time.Second), Balance: d("1000")},
		{AccountID: "chk", Currency: "USD", AsOf: march.End, Balance: d("1200")},
	}

	complete := aggregate.Aggregate(normalize(records...), march).WithCash(balances)
	cf, err := statement.CashFlow(complete, "USD", statement.Options{})
	require.NoError(t, err)
	assert.True(t, cf.Reconciliation.IsReconciled)
	assert.Equal(t, domain.CashFromLedger, cf.Reconciliation.Source)
	assertDecimal(t, "0", cf.Reconciliation.Difference.Amount)

	omitted := aggregate.Aggregate(normalize(records[0]), march).WithCash(balances)
	cf, err = statement.CashFlow(omitted, "USD", statement.Options{})
	require.NoError(t, err, "a mismatch is data, not an error")
	assert.False(t, cf.Reconciliation.IsReconciled)
	assertDecimal(t, "-300", cf.Reconciliation.Difference.Amount)
	assert.Equal(t, "-$300.00", cf.Reconciliation.FormattedDifference)
}

func TestCashFlow_DerivesCashWithoutSnapshots(t *testing.T) {
	txs := normalize(
		domain.BankTransaction{ID: "old", AccountID: "chk", Date: march.Start.AddDate(0, -1, 0), IncomingAmount: d("700"), Currency: "USD"},
		domain.BankTransaction{ID: "new", AccountID: "chk", Date: inMarch, IncomingAmount: d("50"), Currency: "USD"},
	)

	cf, err := statement.CashFlow(aggregate.Aggregate(txs, march), "USD", statement.Options{})
	require.NoError(t, err)
	assert.Equal(t, domain.CashFromHistory, cf.Reconciliation.Source)
	assertDecimal(t, "700", cf.Reconciliation.OpeningCash.Amount)
	assertDecimal(t, "750", cf.Reconciliation.ClosingCash.Amount)
	assert.True(t, cf.Reconciliation.IsReconciled)
}

func TestCashFlow_RejectsOpenEndedPeriod(t *testing.T) {
	allTime := domain.ReportingPeriod{End: march.End, OpenStart: true, ID: "all-time"}

	_, err := statement.CashFlow(aggregate.Aggregate(nil, allTime), "USD", statement.Options{})
	var invalid *domain.ErrInvalidPeriod
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "period", invalid.Field)
}

func TestCashFlow_RejectsUnknownMethod(t *testing.T) {
	_, err := statement.CashFlow(aggregate.Aggregate(nil, march), "USD", statement.Options{Method: "sideways"})
	var invalid *domain.ErrValidation
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "method", invalid.Field)
}

// ============================================================
// Profit and loss
// ============================================================

func TestProfitAndLoss_InvoiceScenario(t *testing.T) {
	txs := normalize(mixedRecords()[0])

	pl := statement.ProfitAndLoss(aggregate.Aggregate(txs, march), "USD")

	assertDecimal(t, "1000", pl.Revenue.Current.Amount)
	assertDecimal(t, "200", pl.COGS.Current.Amount)
	assertDecimal(t, "800", pl.GrossProfit.Amount)
	assertDecimal(t, "800", pl.NetProfit.Amount)
	require.NotNil(t, pl.GrossMarginPercent)
	assertDecimal(t, "80", *pl.GrossMarginPercent)
}

func TestProfitAndLoss_SectionsAndGrouping(t *testing.T) {
	txs := normalize(
		domain.ManualEntry{ID: "1", Date: inMarch, Amount: d("300"), Type: domain.EntryRevenue, Category: "Services", Subcategory: "Consulting"},
		domain.ManualEntry{ID: "2", Date: inMarch, Amount: d("200"), Type: domain.EntryRevenue, Category: "Services", Subcategory: "Training"},
		domain.ManualEntry{ID: "3", Date: inMarch, Amount: d("100"), Type: domain.EntryRevenue, Category: "Licenses"},
		domain.ManualEntry{ID: "4", Date: inMarch, Amount: d("50"), Type: domain.EntryExpense, Category: "Hosting", Section: domain.SectionCOGS},
		domain.ManualEntry{ID: "5", Date: inMarch, Amount: d("150"), Type: domain.EntryExpense, Category: "Salaries"},
		domain.ManualEntry{ID: "6", Date: inMarch, Amount: d("20"), Type: domain.EntryExpense, Category: "Interest", Section: domain.SectionOther},
		domain.ManualEntry{ID: "7", Date: inMarch, Amount: d("30"), Type: domain.EntryExpense, Category: "Income tax", Section: domain.SectionTax},
		domain.ManualEntry{ID: "8", Date: inMarch, Amount: d("10"), Type: domain.EntryRevenue, Category: "FX gain", Section: domain.SectionOther},
	)

	pl := statement.ProfitAndLoss(aggregate.Aggregate(txs, march), "USD")

	assertDecimal(t, "600", pl.Revenue.Current.Amount)
	assertDecimal(t, "550", pl.GrossProfit.Amount)
	assertDecimal(t, "400", pl.OperatingIncome.Amount)
	assertDecimal(t, "360", pl.NetProfit.Amount)
	assertDecimal(t, "60", *pl.NetMarginPercent)

	require.Len(t, pl.Revenue.Children, 2)
	assert.Equal(t, "Licenses", pl.Revenue.Children[0].Label)
	services := pl.Revenue.Children[1]
	assert.Equal(t, "Services", services.Label)
	assertDecimal(t, "500", services.Current.Amount)
	require.Len(t, services.Children, 2)
	assert.Equal(t, "Consulting", services.Children[0].Label)
}

func TestProfitAndLoss_ZeroRevenueHasNoMargins(t *testing.T) {
	txs := normalize(domain.ManualEntry{ID: "e", Date: inMarch, Amount: d("75"), Type: domain.EntryExpense})

	pl := statement.ProfitAndLoss(aggregate.Aggregate(txs, march), "USD")

	assertDecimal(t, "-75", pl.NetProfit.Amount)
	assert.Nil(t, pl.GrossMarginPercent)
	assert.Nil(t, pl.OperatingMarginPercent)
	assert.Nil(t, pl.NetMarginPercent)
}
