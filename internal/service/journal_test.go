package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/formula"
	"github.com/boddenberg/finstatements-go/internal/service"
)

type mockWriter struct {
	saved []domain.ManualEntry
	err   error
}

func (m *mockWriter) SaveManualEntries(_ context.Context, entries []domain.ManualEntry) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, entries...)
	return nil
}

func payrollTemplate() formula.JournalTemplate {
	return formula.JournalTemplate{
		Name: "payroll",
		Lines: []formula.TemplateLine{
			{Type: domain.EntryExpense, Amount: "gross", Category: "Salaries"},
			{Type: domain.EntryExpense, Amount: "gross * 0.2", Category: "Social charges", Currency: "eur"},
		},
	}
}

func TestJournal_ExpandDefaultsCurrency(t *testing.T) {
	svc := newService(&mockLedger{}, &mockSettings{companies: acmeSettings()}, nil)
	writer := &mockWriter{}
	journal := service.NewJournalService(svc, writer, zap.NewNop())

	entries, err := journal.Expand(context.Background(), service.ExpandRequest{
		CompanyID: "acme",
		Date:      march5,
		Template:  payrollTemplate(),
		Variables: map[string]decimal.Decimal{"gross": d("3000")},
		Persist:   true,
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Currency != "USD" || entries[1].Currency != "EUR" {
		t.Errorf("unexpected currencies %q, %q", entries[0].Currency, entries[1].Currency)
	}
	if !entries[1].Amount.Equal(d("600")) {
		t.Errorf("expected 600, got %s", entries[1].Amount)
	}
	if len(writer.saved) != 2 {
		t.Errorf("expected entries to be persisted, got %d", len(writer.saved))
	}
}

func TestJournal_PersistWithoutWriter(t *testing.T) {
	svc := newService(&mockLedger{}, &mockSettings{companies: acmeSettings()}, nil)
	journal := service.NewJournalService(svc, nil, zap.NewNop())

	_, err := journal.Expand(context.Background(), service.ExpandRequest{
		CompanyID: "acme",
		Date:      march5,
		Template:  payrollTemplate(),
		Variables: map[string]decimal.Decimal{"gross": d("3000")},
		Persist:   true,
	})

	var invalid *domain.ErrValidation
	if !errors.As(err, &invalid) || invalid.Field != "persist" {
		t.Fatalf("expected ErrValidation on persist, got %v", err)
	}
}

func TestJournal_PreviewDoesNotPersist(t *testing.T) {
	svc := newService(&mockLedger{}, &mockSettings{companies: acmeSettings()}, nil)
	writer := &mockWriter{}
	journal := service.NewJournalService(svc, writer, zap.NewNop())

	_, err := journal.Expand(context.Background(), service.ExpandRequest{
		CompanyID: "acme",
		Date:      march5,
		Template:  payrollTemplate(),
		Variables: map[string]decimal.Decimal{"gross": d("3000")},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(writer.saved) != 0 {
		t.Errorf("preview must not persist, got %d entries", len(writer.saved))
	}
}

func TestJournal_Errors(t *testing.T) {
	svc := newService(&mockLedger{}, &mockSettings{companies: acmeSettings()}, nil)
	journal := service.NewJournalService(svc, &mockWriter{err: errors.New("db down")}, zap.NewNop())

	tests := []struct {
		name  string
		req   service.ExpandRequest
		field string
	}{
		{"missing date", service.ExpandRequest{CompanyID: "acme", Template: payrollTemplate()}, "date"},
		{"unknown variable", service.ExpandRequest{CompanyID: "acme", Date: march5, Template: payrollTemplate()}, "template.lines[0].amount"},
		{"empty template", service.ExpandRequest{CompanyID: "acme", Date: march5}, "template.lines"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := journal.Expand(context.Background(), tt.req)
			var invalid *domain.ErrValidation
			if !errors.As(err, &invalid) || invalid.Field != tt.field {
				t.Fatalf("expected ErrValidation on %s, got %v", tt.field, err)
			}
		})
	}

	_, err := journal.Expand(context.Background(), service.ExpandRequest{
		CompanyID: "acme",
		Date:      time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Template:  payrollTemplate(),
		Variables: map[string]decimal.Decimal{"gross": d("1")},
		Persist:   true,
	})
	if err == nil || err.Error() != "db down" {
		t.Fatalf("expected writer error, got %v", err)
	}
}
