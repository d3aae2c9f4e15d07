package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/formula"
	"github.com/boddenberg/finstatements-go/internal/port"
)

// ExpandRequest expands a journal template for one company.
type ExpandRequest struct {
	CompanyID string
	Date      time.Time
	Template  formula.JournalTemplate
	Variables map[string]decimal.Decimal
	Persist   bool
}

// JournalService expands journal templates into manual entries.
type JournalService struct {
	statements *StatementService
	writer     port.EntryWriter
	logger     *zap.Logger
}

// NewJournalService creates a journal service. writer may be nil, in which
// case Persist requests are rejected.
func NewJournalService(statements *StatementService, writer port.EntryWriter, logger *zap.Logger) *JournalService {
	return &JournalService{statements: statements, writer: writer, logger: logger}
}

// Expand evaluates the template. Lines without a currency take the
// company's functional currency. With Persist the entries are written to
// the ledger.
func (j *JournalService) Expand(ctx context.Context, req ExpandRequest) ([]domain.ManualEntry, error) {
	ctx, span := tracer.Start(ctx, "JournalService.Expand")
	defer span.End()
	span.SetAttributes(
		attribute.String("company.id", req.CompanyID),
		attribute.String("template.name", req.Template.Name),
		attribute.Bool("template.persist", req.Persist),
	)

	if req.Date.IsZero() {
		return nil, &domain.ErrValidation{Field: "date", Message: "is required"}
	}
	if req.Persist && j.writer == nil {
		return nil, &domain.ErrValidation{Field: "persist", Message: "the ledger backend does not accept entries"}
	}

	settings, err := j.statements.Settings(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}

	entries, err := req.Template.Expand(req.CompanyID, req.Date, req.Variables)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if strings.TrimSpace(entries[i].Currency) == "" {
			entries[i].Currency = settings.FunctionalCurrency
		}
		entries[i].Currency = strings.ToUpper(entries[i].Currency)
	}

	if req.Persist {
		if err := j.writer.SaveManualEntries(ctx, entries); err != nil {
			j.logger.Error("failed to persist journal entries",
				zap.String("company_id", req.CompanyID),
				zap.String("template", req.Template.Name),
				zap.Error(err),
			)
			return nil, err
		}
		j.logger.Info("journal entries persisted",
			zap.String("company_id", req.CompanyID),
			zap.String("template", req.Template.Name),
			zap.Int("entries", len(entries)),
		)
	}
	return entries, nil
}
