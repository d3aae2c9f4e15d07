package jobs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/infra/cache"
	"github.com/boddenberg/finstatements-go/internal/infra/observability"
	"github.com/boddenberg/finstatements-go/internal/infra/resilience"
	"github.com/boddenberg/finstatements-go/internal/jobs"
	"github.com/boddenberg/finstatements-go/internal/service"
)

type ledger struct{}

func (ledger) FetchLedger(_ context.Context, companyID string, _ time.Time) (*domain.LedgerRecords, error) {
	return &domain.LedgerRecords{
		CompanyID: companyID,
		ManualEntries: []domain.ManualEntry{{
			ID: "sale", Date: time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
			Amount: decimal.NewFromInt(100), Currency: "USD", Type: domain.EntryRevenue,
		}},
	}, nil
}

type companies struct{}

func (companies) GetSettings(_ context.Context, id string) (*domain.CompanySettings, error) {
	if id == "broken" {
		return &domain.CompanySettings{CompanyID: id}, nil
	}
	return &domain.CompanySettings{CompanyID: id, FunctionalCurrency: "USD"}, nil
}

func (companies) ListCompanies(context.Context) ([]string, error) {
	return []string{"acme", "broken", "globex"}, nil
}

func newMonthEnd(t *testing.T, dir string) *jobs.MonthEnd {
	t.Helper()
	metrics := observability.NewMetrics()
	statements := service.NewStatementService(ledger{}, companies{}, nil,
		cache.New[*domain.CompanySettings](time.Minute), cache.New[*domain.RateTable](time.Minute),
		metrics, zap.NewNop(),
		service.WithClock(func() time.Time { return time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC) }))
	batch := service.NewBatchService(statements, companies{}, resilience.NewBulkhead(2), metrics, zap.NewNop())

	return jobs.NewMonthEnd(batch, jobs.MonthEndConfig{
		ExportDir: dir,
		Kinds:     []domain.StatementKind{domain.KindProfitLoss, domain.KindBalanceSheet},
	}, zap.NewNop())
}

func TestMonthEnd_WritesWorkbooks(t *testing.T) {
	dir := t.TempDir()
	job := newMonthEnd(t, dir)

	report, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if report.Succeeded != 4 || report.Failed != 2 {
		t.Fatalf("expected 4 written and 2 failed, got %+v", report)
	}

	want := filepath.Join(dir, "2025-02", "acme-profit_loss.xlsx")
	info, err := os.Stat(want)
	if err != nil {
		t.Fatalf("expected %s: %v", want, err)
	}
	if info.Size() == 0 {
		t.Error("workbook is empty")
	}
	if _, err := os.Stat(filepath.Join(dir, "2025-02", "broken-profit_loss.xlsx")); !os.IsNotExist(err) {
		t.Error("failed companies must not produce a workbook")
	}
}

func TestSchedule(t *testing.T) {
	job := newMonthEnd(t, t.TempDir())

	c, err := jobs.Schedule(job, "0 2 1 * *", "Europe/Berlin", zap.NewNop())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n := len(c.Entries()); n != 1 {
		t.Errorf("expected 1 entry, got %d", n)
	}
	if c.Location().String() != "Europe/Berlin" {
		t.Errorf("unexpected location %s", c.Location())
	}

	if _, err := jobs.Schedule(job, "not a spec", "UTC", zap.NewNop()); err == nil {
		t.Error("expected an error for an invalid spec")
	}
	if _, err := jobs.Schedule(job, "0 2 1 * *", "Mars/Olympus", zap.NewNop()); err == nil {
		t.Error("expected an error for an unknown timezone")
	}
}
