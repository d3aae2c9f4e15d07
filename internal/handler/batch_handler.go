package handler

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/service"
)

type batchRequest struct {
	periodParams
	CompanyIDs []string `json:"companyIds"`
	Kind       string   `json:"kind"`
	Method     string   `json:"method"`
	Currency   string   `json:"currency"`
	Convert    bool     `json:"convert"`
}

// ============================================================
// POST /v1/statements/batch
// ============================================================

func batchHandler(svc *service.BatchService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/statements/batch")
		defer span.End()

		var body batchRequest
		if err := decodeBody(w, r, &body); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		kind, ok := statementKind(body.Kind)
		if !ok {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "kind must be balance_sheet, cash_flow or profit_loss", Field: "kind"})
			return
		}
		period, err := body.request()
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("statement.kind", string(kind)),
			attribute.Int("batch.companies", len(body.CompanyIDs)),
		)

		res, err := svc.Generate(ctx, body.CompanyIDs, kind, service.GenerateRequest{
			Period:   period,
			Method:   domain.CashFlowMethod(body.Method),
			Currency: body.Currency,
			Convert:  body.Convert,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}
