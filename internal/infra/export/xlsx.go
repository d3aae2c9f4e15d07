// Package export renders generated statements as XLSX workbooks.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

// ContentType is the media type of the workbooks written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SummaryRow is a labelled figure shown below the line items.
type SummaryRow struct {
	Label string
	Value string
}

// Sheet is one statement laid out for a worksheet.
type Sheet struct {
	Name     string
	Title    string
	Currency string
	Period   domain.ReportingPeriod
	Prior    *domain.ReportingPeriod
	Lines    []domain.LineItem
	Summary  []SummaryRow
	Findings []domain.ValidationFinding
}

// SheetFrom lays out a statement result.
func SheetFrom[T domain.Statement](r domain.StatementResult[T]) Sheet {
	return Sheet{
		Name:     sheetName(r.Kind, r.Currency),
		Title:    fmt.Sprintf("%s %s", kindTitle(r.Kind), r.CompanyID),
		Currency: r.Currency,
		Period:   r.Period,
		Prior:    r.Prior,
		Lines:    r.Statement.Lines(),
		Summary:  summary(r.Statement),
		Findings: r.Validation,
	}
}

// WriteXLSX writes one worksheet per sheet to w.
func WriteXLSX(w io.Writer, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("export: nothing to write")
	}

	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return err
	}

	used := make(map[string]int, len(sheets))
	for i, s := range sheets {
		name := uniqueName(s.Name, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return err
		}
		if err := writeSheet(f, name, s, st); err != nil {
			return fmt.Errorf("export: sheet %q: %w", name, err)
		}
	}

	_, err = f.WriteTo(w)
	return err
}

type styles struct {
	title, header, group, amount, groupAmount, percent int
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	amountFmt := "#,##0.00;[Red]-#,##0.00"
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.title, &excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}},
		{&st.header, &excelize.Style{
			Font:   &excelize.Font{Bold: true},
			Fill:   excelize.Fill{Type: "pattern", Color: []string{"DDE4EE"}, Pattern: 1},
			Border: []excelize.Border{{Type: "bottom", Color: "7F7F7F", Style: 1}},
		}},
		{&st.group, &excelize.Style{Font: &excelize.Font{Bold: true}}},
		{&st.amount, &excelize.Style{CustomNumFmt: &amountFmt}},
		{&st.groupAmount, &excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &amountFmt}},
		{&st.percent, &excelize.Style{NumFmt: 2}},
	}
	for _, d := range defs {
		if *d.dst, err = f.NewStyle(d.style); err != nil {
			return st, err
		}
	}
	return st, nil
}

func writeSheet(f *excelize.File, name string, s Sheet, st styles) error {
	row := 1
	set := func(col int, v any, style int) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(name, cell, v); err != nil {
			return err
		}
		if style != 0 {
			return f.SetCellStyle(name, cell, cell, style)
		}
		return nil
	}

	if err := set(1, s.Title, st.title); err != nil {
		return err
	}
	row++
	period := fmt.Sprintf("%s (%s)", s.Period.Label, s.Currency)
	if s.Prior != nil {
		period += " compared with " + s.Prior.Label
	}
	if err := set(1, period, 0); err != nil {
		return err
	}
	row += 2

	for col, h := range []string{"Line", "Current", "Prior", "Variance", "Variance %"} {
		if err := set(col+1, h, st.header); err != nil {
			return err
		}
	}
	row++

	var walk func(items []domain.LineItem, depth int) error
	walk = func(items []domain.LineItem, depth int) error {
		for _, li := range items {
			isGroup := len(li.Children) > 0
			labelStyle, amountStyle := 0, st.amount
			if isGroup {
				labelStyle, amountStyle = st.group, st.groupAmount
			}
			if err := set(1, strings.Repeat("    ", depth)+li.Label, labelStyle); err != nil {
				return err
			}
			if err := set(2, li.Current.Amount.InexactFloat64(), amountStyle); err != nil {
				return err
			}
			if li.Prior != nil {
				if err := set(3, li.Prior.Amount.InexactFloat64(), amountStyle); err != nil {
					return err
				}
			}
			if li.VarianceAbsolute != nil {
				if err := set(4, li.VarianceAbsolute.Amount.InexactFloat64(), amountStyle); err != nil {
					return err
				}
			}
			if li.VariancePercent != nil {
				if err := set(5, li.VariancePercent.InexactFloat64(), st.percent); err != nil {
					return err
				}
			}
			row++
			if err := walk(li.Children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(s.Lines, 0); err != nil {
		return err
	}

	if len(s.Summary) > 0 {
		row++
		for _, sr := range s.Summary {
			if err := set(1, sr.Label, st.group); err != nil {
				return err
			}
			if err := set(2, sr.Value, 0); err != nil {
				return err
			}
			row++
		}
	}

	if len(s.Findings) > 0 {
		row++
		for col, h := range []string{"Severity", "Rule", "Message", "Reference"} {
			if err := set(col+1, h, st.header); err != nil {
				return err
			}
		}
		row++
		for _, fd := range s.Findings {
			for col, v := range []string{string(fd.Severity), fd.Rule, fd.Message, fd.StandardReference} {
				if err := set(col+1, v, 0); err != nil {
					return err
				}
			}
			row++
		}
	}

	if err := f.SetColWidth(name, "A", "A", 48); err != nil {
		return err
	}
	return f.SetColWidth(name, "B", "E", 16)
}

func summary(s domain.Statement) []SummaryRow {
	switch st := s.(type) {
	case *domain.BalanceSheetData:
		balanced := "yes"
		if !st.IsBalanced {
			balanced = "no, difference " + st.Difference.Formatted
		}
		return []SummaryRow{
			{"Total assets", st.TotalAssets.Formatted},
			{"Total liabilities and equity", st.TotalLiabilitiesAndEquity.Formatted},
			{"Balanced", balanced},
			{"Current ratio", st.CurrentRatio.Display},
			{"Debt to equity", st.DebtToEquity.Display},
			{"Outstanding payables", st.OutstandingPayables.Formatted},
			{"Outstanding receivables", st.OutstandingReceivables.Formatted},
		}
	case *domain.CashFlowData:
		rec := st.Reconciliation
		return []SummaryRow{
			{"Method", string(st.Method)},
			{"Net cash flow", st.NetCashFlow.Formatted},
			{"Opening cash", rec.OpeningCash.Formatted},
			{"Closing cash", rec.ClosingCash.Formatted},
			{"Reconciliation difference", rec.FormattedDifference},
			{"Cash source", string(rec.Source)},
		}
	case *domain.PLData:
		return []SummaryRow{
			{"Gross profit", st.GrossProfit.Formatted},
			{"Operating income", st.OperatingIncome.Formatted},
			{"Net profit", st.NetProfit.Formatted},
			{"Gross margin", percent(st.GrossMarginPercent)},
			{"Operating margin", percent(st.OperatingMarginPercent)},
			{"Net margin", percent(st.NetMarginPercent)},
		}
	}
	return nil
}

func percent(p *decimal.Decimal) string {
	if p == nil {
		return "N/A"
	}
	return p.StringFixed(2) + "%"
}

func kindTitle(k domain.StatementKind) string {
	switch k {
	case domain.KindBalanceSheet:
		return "Balance sheet"
	case domain.KindCashFlow:
		return "Cash flow"
	case domain.KindProfitLoss:
		return "Profit and loss"
	}
	return string(k)
}

func sheetName(k domain.StatementKind, cur string) string {
	return strings.TrimSpace(kindTitle(k) + " " + cur)
}

// uniqueName keeps worksheet names within Excel's 31 characters and distinct.
func uniqueName(name string, used map[string]int) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return '_'
		}
		return r
	}, name)
	if name == "" {
		name = "Statement"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	base := name
	for used[name] > 0 {
		suffix := fmt.Sprintf(" (%d)", used[base]+1)
		used[base]++
		if len(base)+len(suffix) > 31 {
			name = base[:31-len(suffix)] + suffix
		} else {
			name = base + suffix
		}
	}
	used[name]++
	return name
}
