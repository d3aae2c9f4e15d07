package compare_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/engine/compare"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func leaf(label, amount string) domain.LineItem { return domain.Leaf(label, d(amount), "USD") }

func TestCompare_PriorZeroHasNoPercent(t *testing.T) {
	out := compare.Compare([]domain.LineItem{leaf("Revenue", "100")}, []domain.LineItem{leaf("Revenue", "0")})

	require.Len(t, out, 1)
	require.NotNil(t, out[0].VarianceAbsolute)
	assert.True(t, d("100").Equal(out[0].VarianceAbsolute.Amount))
	assert.Nil(t, out[0].VariancePercent)
	require.NotNil(t, out[0].Prior)
	assert.True(t, out[0].Prior.Amount.IsZero())
}

func TestCompare_PercentUsesAbsolutePrior(t *testing.T) {
	out := compare.Compare(
		[]domain.LineItem{leaf("Profit", "50"), leaf("Loss", "-150")},
		[]domain.LineItem{leaf("Profit", "40"), leaf("Loss", "-100")},
	)

	require.Len(t, out, 2)
	assert.True(t, d("25").Equal(*out[0].VariancePercent))
	assert.True(t, d("-50").Equal(*out[1].VariancePercent))
}

func TestCompare_PercentIsRounded(t *testing.T) {
	p := compare.Percent(d("100"), d("30"))
	require.NotNil(t, p)
	assert.Equal(t, "233.33", p.StringFixed(2))
}

func TestCompare_MissingSidesAreZero(t *testing.T) {
	out := compare.Compare(
		[]domain.LineItem{leaf("New line", "80"), leaf("Shared", "10")},
		[]domain.LineItem{leaf("Shared", "20"), leaf("Dropped line", "35")},
	)

	require.Len(t, out, 3)
	assert.Equal(t, []string{"New line", "Shared", "Dropped line"}, []string{out[0].Label, out[1].Label, out[2].Label})

	assert.True(t, out[0].Prior.Amount.IsZero())
	assert.True(t, d("80").Equal(out[0].VarianceAbsolute.Amount))

	dropped := out[2]
	assert.True(t, dropped.Current.Amount.IsZero())
	assert.True(t, d("35").Equal(dropped.Prior.Amount))
	assert.True(t, d("-35").Equal(dropped.VarianceAbsolute.Amount))
	assert.True(t, d("-100").Equal(*dropped.VariancePercent))
}

func TestCompare_MergesChildrenByLabelPath(t *testing.T) {
	current := []domain.LineItem{domain.Group("Assets", "USD",
		domain.Group("Current assets", "USD", leaf("Cash", "100")),
	)}
	prior := []domain.LineItem{domain.Group("Assets", "USD",
		domain.Group("Current assets", "USD", leaf("Cash", "60"), leaf("Inventory", "15")),
	)}

	out := compare.Compare(current, prior)

	require.Len(t, out, 1)
	currentAssets := out[0].Children[0]
	require.Len(t, currentAssets.Children, 2)
	cash, inventory := currentAssets.Children[0], currentAssets.Children[1]
	assert.Equal(t, "Cash", cash.Label)
	assert.True(t, d("40").Equal(cash.VarianceAbsolute.Amount))
	assert.Equal(t, "Inventory", inventory.Label)
	assert.True(t, inventory.Current.Amount.IsZero())

	sum := decimal.Zero
	for _, c := range currentAssets.Children {
		sum = sum.Add(c.Current.Amount)
	}
	assert.True(t, sum.Equal(currentAssets.Current.Amount), "subtotals still hold after merging")
}

func TestBalanceSheets_MarksComparative(t *testing.T) {
	cur := &domain.BalanceSheetData{
		Assets:      domain.Group("Assets", "USD", leaf("Cash", "10")),
		Liabilities: domain.Group("Liabilities", "USD"),
		Equity:      domain.Group("Equity", "USD", leaf("Capital", "10")),
	}
	prior := &domain.BalanceSheetData{
		Assets:      domain.Group("Assets", "USD", leaf("Cash", "5")),
		Liabilities: domain.Group("Liabilities", "USD"),
		Equity:      domain.Group("Equity", "USD", leaf("Capital", "5")),
	}

	compare.BalanceSheets(cur, prior)

	assert.True(t, cur.HasComparative)
	require.NotNil(t, cur.Assets.Prior)
	assert.True(t, d("5").Equal(cur.Assets.Prior.Amount))
	assert.True(t, d("100").Equal(*cur.Equity.VariancePercent))
}
