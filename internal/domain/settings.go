package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompanySettings configures statement generation for one company.
type CompanySettings struct {
	CompanyID            string       `json:"company_id" yaml:"id"`
	Name                 string       `json:"name,omitempty" yaml:"name"`
	FunctionalCurrency   string       `json:"functional_currency" yaml:"functional_currency"`
	Timezone             string       `json:"timezone,omitempty" yaml:"timezone"`
	FiscalYearStartMonth int          `json:"fiscal_year_start_month,omitempty" yaml:"fiscal_year_start_month"`
	IFRS                 IFRSSettings `json:"ifrs" yaml:"ifrs"`
}

// IFRSSettings toggles validation rules and tunes tolerances.
type IFRSSettings struct {
	Tolerance               string   `json:"tolerance,omitempty" yaml:"tolerance"`
	DisabledRules           []string `json:"disabled_rules,omitempty" yaml:"disabled_rules"`
	IncludeRetainedEarnings bool     `json:"include_retained_earnings,omitempty" yaml:"include_retained_earnings"`
}

// ToleranceValue parses Tolerance, falling back to DefaultTolerance.
func (s IFRSSettings) ToleranceValue() decimal.Decimal {
	if s.Tolerance == "" {
		return DefaultTolerance
	}
	d, err := decimal.NewFromString(s.Tolerance)
	if err != nil || d.IsNegative() {
		return DefaultTolerance
	}
	return d
}

// Location loads the company timezone, UTC when unset.
func (s CompanySettings) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// Validate checks the settings the engine cannot run without.
func (s CompanySettings) Validate() error {
	if s.FunctionalCurrency == "" {
		return &ErrMissingSettings{CompanyID: s.CompanyID, Field: "functional_currency"}
	}
	if s.FiscalYearStartMonth < 0 || s.FiscalYearStartMonth > 12 {
		return &ErrMissingSettings{CompanyID: s.CompanyID, Field: "fiscal_year_start_month"}
	}
	if _, err := s.Location(); err != nil {
		return &ErrMissingSettings{CompanyID: s.CompanyID, Field: "timezone"}
	}
	return nil
}

// RateTable maps currencies to rates against Base: Rates[c] units of c buy one Base.
type RateTable struct {
	Base  string                     `json:"base"`
	Rates map[string]decimal.Decimal `json:"rates"`
	AsOf  time.Time                  `json:"as_of,omitempty"`
}

// Rate returns the rate for cur. The base currency always has rate 1.
func (t *RateTable) Rate(cur string) (decimal.Decimal, bool) {
	if t == nil {
		return decimal.Zero, false
	}
	if cur == t.Base {
		return decimal.NewFromInt(1), true
	}
	r, ok := t.Rates[cur]
	if !ok || r.Sign() <= 0 {
		return decimal.Zero, false
	}
	return r, true
}

// Convert converts amount in cur into target using the table. Both cur and
// target must be quoted against the table base.
func (t *RateTable) Convert(amount decimal.Decimal, cur, target string) (decimal.Decimal, bool) {
	if cur == target {
		return amount, true
	}
	from, ok := t.Rate(cur)
	if !ok {
		return decimal.Zero, false
	}
	to, ok := t.Rate(target)
	if !ok {
		return decimal.Zero, false
	}
	return amount.Mul(to).DivRound(from, 8), true
}
