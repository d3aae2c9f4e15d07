// Package jobs runs scheduled statement generation.
package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/infra/export"
	"github.com/boddenberg/finstatements-go/internal/service"
)

// MonthEndConfig configures the month-end close run.
type MonthEndConfig struct {
	// ExportDir receives one workbook per company and statement kind.
	ExportDir string
	// Currency, when set, converts every statement into it.
	Currency string
	Kinds    []domain.StatementKind
	Timeout  time.Duration
}

// MonthEnd generates last month's statements for every company and writes
// them as XLSX workbooks.
type MonthEnd struct {
	batch  *service.BatchService
	cfg    MonthEndConfig
	logger *zap.Logger
}

// NewMonthEnd creates the job. An empty Kinds list means all three statements.
func NewMonthEnd(batch *service.BatchService, cfg MonthEndConfig, logger *zap.Logger) *MonthEnd {
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = []domain.StatementKind{domain.KindBalanceSheet, domain.KindProfitLoss, domain.KindCashFlow}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	return &MonthEnd{batch: batch, cfg: cfg, logger: logger}
}

// Report summarizes one run.
type Report struct {
	Files     []string
	Succeeded int
	Failed    int
}

// Run generates and exports every configured kind. A failing company is
// logged and skipped; only a failing batch or export directory aborts.
func (m *MonthEnd) Run(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req := service.GenerateRequest{
		Period:   domain.PeriodRequest{Kind: domain.PeriodLastMonth},
		Currency: m.cfg.Currency,
		Convert:  m.cfg.Currency != "",
	}

	report := &Report{}
	for _, kind := range m.cfg.Kinds {
		res, err := m.batch.Generate(ctx, nil, kind, req)
		if err != nil {
			return report, fmt.Errorf("month-end %s: %w", kind, err)
		}

		for _, item := range res.Items {
			if item.Err() != nil {
				report.Failed++
				continue
			}
			path, err := m.write(item.CompanyID, kind, item.Statements)
			if err != nil {
				return report, err
			}
			report.Files = append(report.Files, path)
			report.Succeeded++
		}
	}

	m.logger.Info("month-end run completed",
		zap.Int("files", len(report.Files)),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

func (m *MonthEnd) write(companyID string, kind domain.StatementKind, statements any) (string, error) {
	var (
		sheets   []export.Sheet
		periodID string
	)
	switch rs := statements.(type) {
	case []domain.StatementResult[*domain.BalanceSheetData]:
		sheets, periodID = layout(rs)
	case []domain.StatementResult[*domain.CashFlowData]:
		sheets, periodID = layout(rs)
	case []domain.StatementResult[*domain.PLData]:
		sheets, periodID = layout(rs)
	default:
		return "", fmt.Errorf("month-end: unexpected statements %T", statements)
	}

	dir := filepath.Join(m.cfg.ExportDir, periodID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("month-end: create export dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.xlsx", companyID, kind))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("month-end: create %s: %w", path, err)
	}
	if err := export.WriteXLSX(f, sheets...); err != nil {
		f.Close()
		return "", fmt.Errorf("month-end: write %s: %w", path, err)
	}
	return path, f.Close()
}

func layout[T domain.Statement](rs []domain.StatementResult[T]) ([]export.Sheet, string) {
	sheets := make([]export.Sheet, 0, len(rs))
	for _, r := range rs {
		sheets = append(sheets, export.SheetFrom(r))
	}
	if len(rs) == 0 {
		return sheets, "empty"
	}
	return sheets, rs[0].Period.ID
}

// Schedule registers the job on a cron scheduler running in timezone tz.
// The caller starts and stops the returned scheduler.
func Schedule(m *MonthEnd, spec, tz string, logger *zap.Logger) (*cron.Cron, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("schedule timezone %q: %w", tz, err)
	}

	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	_, err = c.AddFunc(spec, func() {
		logger.Info("running month-end job", zap.Time("at", time.Now().In(loc)))
		if _, err := m.Run(context.Background()); err != nil {
			logger.Error("month-end job failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule month-end job: %w", err)
	}
	return c, nil
}
