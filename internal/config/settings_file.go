package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

// settingsDocument is the layout of the company settings file:
//
//	companies:
//	  - id: acme
//	    functional_currency: USD
//	    timezone: America/New_York
//	    fiscal_year_start_month: 7
//	    ifrs:
//	      tolerance: "0.01"
//	      disabled_rules: [BS_NO_COMPARATIVE]
type settingsDocument struct {
	Companies []domain.CompanySettings `yaml:"companies"`
}

// SettingsFile serves company settings loaded once from a YAML file.
// It implements port.SettingsProvider and port.CompanyLister.
type SettingsFile struct {
	companies map[string]domain.CompanySettings
	ids       []string
}

// LoadSettingsFile reads and parses path. Duplicate or empty ids are rejected.
func LoadSettingsFile(path string) (*SettingsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading company settings: %w", err)
	}
	return ParseSettings(raw)
}

// ParseSettings parses a company settings document.
func ParseSettings(raw []byte) (*SettingsFile, error) {
	var doc settingsDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing company settings: %w", err)
	}

	sf := &SettingsFile{companies: make(map[string]domain.CompanySettings, len(doc.Companies))}
	for i, c := range doc.Companies {
		c.CompanyID = strings.TrimSpace(c.CompanyID)
		if c.CompanyID == "" {
			return nil, fmt.Errorf("company settings: entry %d has no id", i)
		}
		if _, dup := sf.companies[c.CompanyID]; dup {
			return nil, fmt.Errorf("company settings: duplicate id %q", c.CompanyID)
		}
		c.FunctionalCurrency = strings.ToUpper(c.FunctionalCurrency)
		sf.companies[c.CompanyID] = c
		sf.ids = append(sf.ids, c.CompanyID)
	}
	sort.Strings(sf.ids)
	return sf, nil
}

// GetSettings returns the settings of companyID or *domain.ErrNotFound.
func (s *SettingsFile) GetSettings(_ context.Context, companyID string) (*domain.CompanySettings, error) {
	c, ok := s.companies[companyID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "company", ID: companyID}
	}
	return &c, nil
}

// ListCompanies returns every configured company id, sorted.
func (s *SettingsFile) ListCompanies(context.Context) ([]string, error) {
	return append([]string(nil), s.ids...), nil
}
