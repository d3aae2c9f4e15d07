package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/infra/export"
	"github.com/boddenberg/finstatements-go/internal/service"
)

// ============================================================
// GET /v1/companies/{companyId}/statements/{kind}
// ============================================================

func statementHandler(svc *service.StatementService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/companies/{companyId}/statements/{kind}")
		defer span.End()

		companyID := chi.URLParam(r, "companyId")
		kind, ok := statementKind(chi.URLParam(r, "kind"))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown statement kind")
			return
		}
		span.SetAttributes(
			attribute.String("company.id", companyID),
			attribute.String("statement.kind", string(kind)),
		)

		req, err := generateRequest(r, companyID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		xlsx := r.URL.Query().Get("format") == "xlsx"

		switch kind {
		case domain.KindBalanceSheet:
			results, err := svc.BalanceSheet(ctx, req)
			respond(w, results, err, xlsx, logger)
		case domain.KindCashFlow:
			results, err := svc.CashFlow(ctx, req)
			respond(w, results, err, xlsx, logger)
		case domain.KindProfitLoss:
			results, err := svc.ProfitAndLoss(ctx, req)
			respond(w, results, err, xlsx, logger)
		}
	}
}

func respond[T domain.Statement](w http.ResponseWriter, results []domain.StatementResult[T], err error, xlsx bool, logger *zap.Logger) {
	if err != nil {
		handleServiceError(w, err, logger)
		return
	}
	if !xlsx {
		writeJSON(w, http.StatusOK, map[string]any{"statements": results})
		return
	}

	sheets := make([]export.Sheet, 0, len(results))
	for _, res := range results {
		sheets = append(sheets, export.SheetFrom(res))
	}
	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, sheets...); err != nil {
		handleServiceError(w, err, logger)
		return
	}

	first := results[0]
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s-%s-%s.xlsx"`, first.CompanyID, first.Kind, first.Period.ID))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
