package formula

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

// TemplateLine is one manual entry a journal template produces. Amount is a formula.
type TemplateLine struct {
	Type        domain.EntryType    `json:"type"`
	Amount      string              `json:"amount"`
	Currency    string              `json:"currency,omitempty"`
	Category    string              `json:"category,omitempty"`
	Subcategory string              `json:"subcategory,omitempty"`
	Activity    domain.Activity     `json:"activity,omitempty"`
	Section     domain.EntrySection `json:"section,omitempty"`
	Account     string              `json:"account,omitempty"`
	Current     bool                `json:"current,omitempty"`
	NonCash     bool                `json:"nonCash,omitempty"`
}

// JournalTemplate is a reusable set of entries, for example a monthly payroll
// split into salary, social charges and withholding.
type JournalTemplate struct {
	Name  string         `json:"name"`
	Lines []TemplateLine `json:"lines"`
}

// Compile parses every line formula so errors surface before expansion.
func (t JournalTemplate) Compile() ([]*Expr, error) {
	if len(t.Lines) == 0 {
		return nil, &domain.ErrValidation{Field: "template.lines", Message: "at least one line is required"}
	}
	exprs := make([]*Expr, len(t.Lines))
	for i, l := range t.Lines {
		e, err := Parse(l.Amount)
		if err != nil {
			return nil, &domain.ErrValidation{Field: fmt.Sprintf("template.lines[%d].amount", i), Message: err.Error()}
		}
		exprs[i] = e
	}
	return exprs, nil
}

// Expand evaluates the template against vars and returns the manual entries
// it produces, all dated date and owned by companyID.
func (t JournalTemplate) Expand(companyID string, date time.Time, vars map[string]decimal.Decimal) ([]domain.ManualEntry, error) {
	exprs, err := t.Compile()
	if err != nil {
		return nil, err
	}

	entries := make([]domain.ManualEntry, 0, len(t.Lines))
	for i, l := range t.Lines {
		amount, err := exprs[i].Eval(vars)
		if err != nil {
			return nil, &domain.ErrValidation{Field: fmt.Sprintf("template.lines[%d].amount", i), Message: err.Error()}
		}
		entries = append(entries, domain.ManualEntry{
			ID:          uuid.NewString(),
			CompanyID:   companyID,
			Date:        date,
			Amount:      amount.Round(2),
			Currency:    l.Currency,
			Type:        l.Type,
			Category:    l.Category,
			Subcategory: l.Subcategory,
			Activity:    l.Activity,
			Section:     l.Section,
			NonCash:     l.NonCash,
			Account:     l.Account,
			Current:     l.Current,
		})
	}
	return entries, nil
}
