package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/formula"
	"github.com/boddenberg/finstatements-go/internal/service"
)

type expandRequest struct {
	CompanyID string                     `json:"companyId"`
	Date      string                     `json:"date"`
	Template  formula.JournalTemplate    `json:"template"`
	Variables map[string]decimal.Decimal `json:"variables"`
	Persist   bool                       `json:"persist"`
}

// ============================================================
// POST /v1/journal-templates/expand
// ============================================================

func expandHandler(svc *service.JournalService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/journal-templates/expand")
		defer span.End()

		var body expandRequest
		if err := decodeBody(w, r, &body); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(attribute.String("company.id", body.CompanyID))

		var date time.Time
		if body.Date != "" {
			var err error
			if date, err = time.Parse(dateLayout, body.Date); err != nil {
				handleServiceError(w, &domain.ErrValidation{Field: "date", Message: "must be a YYYY-MM-DD date"}, logger)
				return
			}
		}

		entries, err := svc.Expand(ctx, service.ExpandRequest{
			CompanyID: body.CompanyID,
			Date:      date,
			Template:  body.Template,
			Variables: body.Variables,
			Persist:   body.Persist,
		})
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		status := http.StatusOK
		if body.Persist {
			status = http.StatusCreated
		}
		writeJSON(w, status, map[string]any{"entries": entries})
	}
}
