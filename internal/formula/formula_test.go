package formula_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/formula"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestEval(t *testing.T) {
	vars := map[string]decimal.Decimal{
		"gross":    d("1000"),
		"rate":     d("0.2"),
		"tax_rate": d("0.07"),
		"fx.eur":   d("1.1"),
	}

	tests := []struct {
		expr string
		want string
	}{
		{"1 + 2 * 3", "7"},
		{"(1 + 2) * 3", "9"},
		{"gross * rate", "200"},
		{"gross - gross * tax_rate", "930"},
		{"-gross / 4", "-250"},
		{"2 - -3", "5"},
		{"+5", "5"},
		{"10 / 4", "2.5"},
		{"0.1 + 0.2", "0.3"},
		{"gross * fx.eur", "1100"},
		{"  ( ( 7 ) )  ", "7"},
		{"1 - 2 - 3", "-4"},
		{"12 / 3 / 2", "2"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			e, err := formula.Parse(tt.expr)
			require.NoError(t, err)
			got, err := e.Eval(vars)
			require.NoError(t, err)
			assert.Truef(t, d(tt.want).Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

func TestParse_RejectsAnythingButArithmetic(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"1 +",
		"(1 + 2",
		"1 + 2)",
		"os.Exit(1)",
		"gross; drop",
		"1 ** 2",
		"2 ^ 3",
		"1.2.3",
		"'text'",
		"a b",
		strings.Repeat("(", 100) + "1" + strings.Repeat(")", 100),
	}

	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			_, err := formula.Parse(src)
			assert.Error(t, err)
		})
	}
}

func TestEval_Errors(t *testing.T) {
	_, err := formula.MustParse("gross * missing").Eval(map[string]decimal.Decimal{"gross": d("1")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown variable "missing"`)

	_, err = formula.MustParse("1 / (2 - 2)").Eval(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestVariables(t *testing.T) {
	e := formula.MustParse("b * (a + b) - c / 2")
	assert.Equal(t, []string{"a", "b", "c"}, e.Variables())
	assert.Equal(t, "b * (a + b) - c / 2", e.String())
}

func TestJournalTemplate_Expand(t *testing.T) {
	tpl := formula.JournalTemplate{
		Name: "Monthly payroll",
		Lines: []formula.TemplateLine{
			{Type: domain.EntryExpense, Amount: "salary", Category: "Payroll", Subcategory: "Salaries"},
			{Type: domain.EntryExpense, Amount: "salary * charges", Category: "Payroll", Subcategory: "Social charges"},
			{Type: domain.EntryLiability, Amount: "salary * withholding", Account: "Withholding payable", Current: true},
		},
	}
	date := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	entries, err := tpl.Expand("c1", date, map[string]decimal.Decimal{
		"salary":      d("4000"),
		"charges":     d("0.225"),
		"withholding": d("0.1"),
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.True(t, d("4000").Equal(entries[0].Amount))
	assert.True(t, d("900").Equal(entries[1].Amount))
	assert.True(t, d("400").Equal(entries[2].Amount))
	assert.Equal(t, domain.EntryLiability, entries[2].Type)
	assert.True(t, entries[2].Current)
	for _, e := range entries {
		assert.Equal(t, "c1", e.CompanyID)
		assert.Equal(t, date, e.Date)
		assert.NotEmpty(t, e.ID)
	}
}

func TestJournalTemplate_InvalidFormulaNamesLine(t *testing.T) {
	tpl := formula.JournalTemplate{Lines: []formula.TemplateLine{
		{Type: domain.EntryExpense, Amount: "10"},
		{Type: domain.EntryExpense, Amount: "exec('rm')"},
	}}

	_, err := tpl.Expand("c1", time.Now(), nil)
	var invalid *domain.ErrValidation
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "template.lines[1].amount", invalid.Field)
}

func TestJournalTemplate_RequiresLines(t *testing.T) {
	_, err := formula.JournalTemplate{Name: "empty"}.Expand("c1", time.Now(), nil)
	var invalid *domain.ErrValidation
	require.True(t, errors.As(err, &invalid))
}
