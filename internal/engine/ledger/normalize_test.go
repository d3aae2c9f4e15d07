package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/engine/ledger"
)

var (
	settings = domain.CompanySettings{CompanyID: "c1", FunctionalCurrency: "USD"}
	day      = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestNormalize_InvoiceNetsCOGSAndLinkedExpenses(t *testing.T) {
	records := []domain.ExternalRecord{
		domain.InvoiceRevenueEntry{
			ID: "ire-1", InvoiceID: "inv-1", Date: day, Currency: "USD",
			GrossAmount:    d("1000"),
			COGS:           d("200"),
			LinkedExpenses: []domain.LinkedExpense{{ID: "e1", Amount: d("150")}},
		},
	}

	txs := ledger.Normalize(records, settings)
	require.Len(t, txs, 1)

	tx := txs[0]
	assert.Equal(t, domain.OperatingInflow, tx.Classification)
	assert.Equal(t, domain.SourceInvoiceRevenue, tx.SourceKind)
	assert.Equal(t, "inv-1", tx.SourceID)
	assertDecimal(t, "650", tx.Amount)
	assertDecimal(t, "1000", tx.Revenue)
	assertDecimal(t, "200", tx.COGS)
	assertDecimal(t, "150", tx.LinkedExpenses)
	assertDecimal(t, "800", tx.Recognized())
}

func TestNormalize_InvoiceWithNegativeNetIsOutflow(t *testing.T) {
	txs := ledger.Normalize([]domain.ExternalRecord{
		domain.InvoiceRevenueEntry{ID: "i", InvoiceID: "inv", Date: day, GrossAmount: d("100"), COGS: d("80"),
			LinkedExpenses: []domain.LinkedExpense{{ID: "x", Amount: d("50")}}},
	}, settings)

	require.Len(t, txs, 1)
	assert.Equal(t, domain.OperatingOutflow, txs[0].Classification)
	assertDecimal(t, "-30", txs[0].Amount)
	assert.Equal(t, "USD", txs[0].Currency, "missing currency defaults to functional currency")
}

func TestNormalize_BankNetDecidesDirection(t *testing.T) {
	txs := ledger.Normalize([]domain.ExternalRecord{
		domain.BankTransaction{ID: "b1", AccountID: "acc", Date: day, IncomingAmount: d("500"), Currency: "USD"},
		domain.BankTransaction{ID: "b2", AccountID: "acc", Date: day, OutgoingAmount: d("300"), Currency: "USD"},
		domain.BankTransaction{ID: "b3", AccountID: "acc", Date: day, OutgoingAmount: d("40"), Currency: "USD", Activity: domain.ActivityInvesting},
	}, settings)

	require.Len(t, txs, 3)
	assert.Equal(t, domain.OperatingInflow, txs[0].Classification)
	assertDecimal(t, "500", txs[0].Amount)
	assert.Equal(t, domain.OperatingOutflow, txs[1].Classification)
	assertDecimal(t, "-300", txs[1].Amount)
	assert.Equal(t, domain.InvestingOutflow, txs[2].Classification)
	assertDecimal(t, "-40", txs[2].Amount)
}

func TestNormalize_ManualEntrySignsFollowType(t *testing.T) {
	txs := ledger.Normalize([]domain.ExternalRecord{
		domain.ManualEntry{ID: "m1", Date: day, Amount: d("-120"), Type: domain.EntryRevenue, Category: "Consulting"},
		domain.ManualEntry{ID: "m2", Date: day, Amount: d("80"), Type: domain.EntryExpense, Section: domain.SectionTax},
		domain.ManualEntry{ID: "m3", Date: day, Amount: d("25"), Type: domain.EntryExpense, NonCash: true, Activity: domain.ActivityFinancing},
		domain.ManualEntry{ID: "m4", Date: day, Amount: d("-10"), Type: domain.EntryLiability, Account: "Loan"},
	}, settings)

	require.Len(t, txs, 4)

	assert.Equal(t, domain.OperatingInflow, txs[0].Classification)
	assertDecimal(t, "120", txs[0].Amount)
	assert.Equal(t, domain.PLRevenue, txs[0].PLSection)

	assert.Equal(t, domain.OperatingOutflow, txs[1].Classification)
	assertDecimal(t, "-80", txs[1].Amount)
	assert.Equal(t, domain.PLTax, txs[1].PLSection)
	assertDecimal(t, "80", txs[1].Expense)

	assert.Equal(t, domain.OperatingOutflow, txs[2].Classification, "non-cash items are operating")
	assert.True(t, txs[2].NonCash)

	assert.Equal(t, domain.ClassLiability, txs[3].Classification)
	assertDecimal(t, "-10", txs[3].Amount)
	assert.Equal(t, domain.AccountRef{ID: "Loan", Currency: "USD"}, txs[3].Account)
}

func TestNormalize_WalletLegsAreDistinctAccounts(t *testing.T) {
	txs := ledger.Normalize([]domain.ExternalRecord{
		domain.WalletTransaction{ID: "w1", WalletID: "wallet", Date: day, Legs: []domain.WalletLeg{
			{Currency: "BTC", Amount: d("0.5")},
			{Currency: "USD", Amount: d("-100")},
		}},
	}, settings)

	require.Len(t, txs, 2)
	assert.Equal(t, domain.AccountRef{ID: "wallet", Currency: "BTC"}, txs[0].Account)
	assert.Equal(t, domain.AccountRef{ID: "wallet", Currency: "USD"}, txs[1].Account)
	assert.NotEqual(t, txs[0].Account, txs[1].Account)
	assert.Equal(t, domain.OperatingInflow, txs[0].Classification)
	assert.Equal(t, domain.OperatingOutflow, txs[1].Classification)
	assert.Equal(t, "w1", txs[0].SourceID)
}

func TestNormalize_MissingHintsAreUnclassified(t *testing.T) {
	txs := ledger.Normalize([]domain.ExternalRecord{
		domain.ManualEntry{ID: "m1", Date: day, Amount: d("10")},
		domain.ManualEntry{ID: "m2", Date: day, Amount: d("10"), Type: domain.EntryRevenue, Activity: "sideways"},
		domain.ManualAdjustment{ID: "a1", Date: day, Amount: d("5")},
		domain.BankTransaction{ID: "b1", Date: day, IncomingAmount: d("1"), Activity: "unknown"},
		domain.WalletTransaction{ID: "w1", Date: day, Legs: []domain.WalletLeg{{Amount: d("1")}}},
		domain.ManualAdjustment{ID: "a2", Date: day, Amount: d("-5"), Activity: domain.ActivityFinancing},
	}, settings)

	require.Len(t, txs, 6)
	unclassified := ledger.Unclassified(txs)
	assert.Len(t, unclassified, 5)
	assert.Equal(t, domain.FinancingOutflow, txs[5].Classification)
}

func TestNormalize_SignAgreesWithDirection(t *testing.T) {
	records := []domain.ExternalRecord{
		domain.ManualEntry{ID: "1", Date: day, Amount: d("-5"), Type: domain.EntryRevenue},
		domain.ManualEntry{ID: "2", Date: day, Amount: d("5"), Type: domain.EntryExpense},
		domain.BankTransaction{ID: "3", Date: day, IncomingAmount: d("3"), OutgoingAmount: d("7")},
		domain.ManualAdjustment{ID: "4", Date: day, Amount: d("9"), Activity: domain.ActivityInvesting},
		domain.InvoiceRevenueEntry{ID: "5", Date: day, GrossAmount: d("10"), COGS: d("1")},
	}
	for _, tx := range ledger.Normalize(records, settings) {
		switch {
		case tx.Classification.IsInflow():
			assert.False(t, tx.Amount.IsNegative(), tx.ID)
		case tx.Classification.IsOutflow():
			assert.False(t, tx.Amount.IsPositive(), tx.ID)
		}
	}
}
