package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/infra/observability"
	"github.com/boddenberg/finstatements-go/internal/infra/resilience"
	"github.com/boddenberg/finstatements-go/internal/port"
)

// BatchItem is the outcome for one company. Exactly one of Statements and
// Error is set.
type BatchItem struct {
	CompanyID  string `json:"companyId"`
	Statements any    `json:"statements,omitempty"`
	Error      string `json:"error,omitempty"`
	HasErrors  bool   `json:"hasValidationErrors"`

	err error
}

// Err returns the generation error of the item, if any.
func (i BatchItem) Err() error { return i.err }

// BatchResult is the outcome of one batch run, items in request order.
type BatchResult struct {
	ID          string               `json:"id"`
	Kind        domain.StatementKind `json:"kind"`
	Items       []BatchItem          `json:"items"`
	Succeeded   int                  `json:"succeeded"`
	Failed      int                  `json:"failed"`
	StartedAt   time.Time            `json:"startedAt"`
	CompletedAt time.Time            `json:"completedAt"`
}

// BatchService generates one statement kind for many companies concurrently.
type BatchService struct {
	statements *StatementService
	companies  port.CompanyLister
	bulkhead   *resilience.Bulkhead
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewBatchService creates a batch service. companies may be nil when
// callers always name the companies.
func NewBatchService(statements *StatementService, companies port.CompanyLister, bulkhead *resilience.Bulkhead, metrics *observability.Metrics, logger *zap.Logger) *BatchService {
	return &BatchService{
		statements: statements,
		companies:  companies,
		bulkhead:   bulkhead,
		metrics:    metrics,
		logger:     logger,
	}
}

// Generate runs kind for every company in companyIDs, or every known
// company when it is empty. Failures are reported per company; only
// cancellation of ctx and an unusable request fail the whole batch.
func (b *BatchService) Generate(ctx context.Context, companyIDs []string, kind domain.StatementKind, req GenerateRequest) (*BatchResult, error) {
	ctx, span := tracer.Start(ctx, "BatchService.Generate")
	defer span.End()

	switch kind {
	case domain.KindBalanceSheet, domain.KindCashFlow, domain.KindProfitLoss:
	default:
		return nil, &domain.ErrValidation{Field: "kind", Message: "must be balance_sheet, cash_flow or profit_loss"}
	}

	if len(companyIDs) == 0 {
		if b.companies == nil {
			return nil, &domain.ErrValidation{Field: "companyIds", Message: "is required"}
		}
		ids, err := b.companies.ListCompanies(ctx)
		if err != nil {
			return nil, err
		}
		companyIDs = ids
	}
	span.SetAttributes(
		attribute.String("statement.kind", string(kind)),
		attribute.Int("batch.companies", len(companyIDs)),
	)

	res := &BatchResult{
		ID:        uuid.NewString(),
		Kind:      kind,
		Items:     make([]BatchItem, len(companyIDs)),
		StartedAt: time.Now().UTC(),
	}

	g, gCtx := errgroup.WithContext(ctx)
	for i, id := range companyIDs {
		i, id := i, id
		g.Go(func() error {
			if err := b.bulkhead.Acquire(gCtx); err != nil {
				return err
			}
			defer b.bulkhead.Release()

			r := req
			r.CompanyID = id
			res.Items[i] = b.one(gCtx, kind, r)
			return nil
		})
	}
	// Only bulkhead acquisition can fail, and only through cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, item := range res.Items {
		if item.err != nil {
			res.Failed++
			b.metrics.IncrBatch("error")
		} else {
			res.Succeeded++
			b.metrics.IncrBatch("success")
		}
	}
	res.CompletedAt = time.Now().UTC()

	b.logger.Info("batch completed",
		zap.String("batch_id", res.ID),
		zap.String("kind", string(kind)),
		zap.Int("succeeded", res.Succeeded),
		zap.Int("failed", res.Failed),
		zap.Duration("latency", res.CompletedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

func (b *BatchService) one(ctx context.Context, kind domain.StatementKind, req GenerateRequest) BatchItem {
	item := BatchItem{CompanyID: req.CompanyID}
	var err error

	switch kind {
	case domain.KindBalanceSheet:
		var rs []domain.StatementResult[*domain.BalanceSheetData]
		rs, err = b.statements.BalanceSheet(ctx, req)
		item.Statements, item.HasErrors = rs, anyErrors(rs)
	case domain.KindCashFlow:
		var rs []domain.StatementResult[*domain.CashFlowData]
		rs, err = b.statements.CashFlow(ctx, req)
		item.Statements, item.HasErrors = rs, anyErrors(rs)
	case domain.KindProfitLoss:
		var rs []domain.StatementResult[*domain.PLData]
		rs, err = b.statements.ProfitAndLoss(ctx, req)
		item.Statements, item.HasErrors = rs, anyErrors(rs)
	}

	if err != nil {
		item.Statements, item.HasErrors = nil, false
		item.err = err
		item.Error = err.Error()
		if !errors.Is(err, context.Canceled) {
			b.logger.Warn("batch item failed",
				zap.String("company_id", req.CompanyID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
		}
	}
	return item
}

func anyErrors[T any](rs []domain.StatementResult[T]) bool {
	for _, r := range rs {
		if r.HasErrors() {
			return true
		}
	}
	return false
}
