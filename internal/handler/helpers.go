package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/service"
)

// ============================================================
// Shared helper functions
// ============================================================

const (
	dateLayout   = "2006-01-02"
	maxBodyBytes = 1 << 20
)

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

// periodParams are the period fields shared by query strings and bodies.
type periodParams struct {
	Period  string `json:"period"`
	From    string `json:"from"`
	To      string `json:"to"`
	Compare string `json:"compare"`
}

// request turns the params into a period request. A from/to pair without a
// period means a custom range; no period at all means the current month.
func (p periodParams) request() (domain.PeriodRequest, error) {
	req := domain.PeriodRequest{
		Kind:    domain.PeriodKind(strings.TrimSpace(p.Period)),
		Compare: domain.ComparisonKind(strings.TrimSpace(p.Compare)),
	}

	var err error
	if p.From != "" {
		if req.Start, err = time.Parse(dateLayout, p.From); err != nil {
			return req, &domain.ErrInvalidPeriod{Field: "from", Message: "must be a YYYY-MM-DD date"}
		}
	}
	if p.To != "" {
		if req.End, err = time.Parse(dateLayout, p.To); err != nil {
			return req, &domain.ErrInvalidPeriod{Field: "to", Message: "must be a YYYY-MM-DD date"}
		}
	}

	if req.Kind == "" {
		if p.From != "" || p.To != "" {
			req.Kind = domain.PeriodCustom
		} else {
			req.Kind = domain.PeriodThisMonth
		}
	}
	return req, nil
}

// generateRequest reads a GenerateRequest from the query string.
func generateRequest(r *http.Request, companyID string) (service.GenerateRequest, error) {
	q := r.URL.Query()
	period, err := periodParams{
		Period:  q.Get("period"),
		From:    q.Get("from"),
		To:      q.Get("to"),
		Compare: q.Get("compare"),
	}.request()
	if err != nil {
		return service.GenerateRequest{}, err
	}

	req := service.GenerateRequest{
		CompanyID: companyID,
		Period:    period,
		Method:    domain.CashFlowMethod(q.Get("method")),
		Currency:  q.Get("currency"),
	}
	if v := q.Get("convert"); v != "" {
		if req.Convert, err = strconv.ParseBool(v); err != nil {
			return req, &domain.ErrValidation{Field: "convert", Message: "must be true or false"}
		}
	}
	return req, nil
}

// statementKind accepts both the URL slug and the enum spelling.
func statementKind(s string) (domain.StatementKind, bool) {
	switch domain.StatementKind(strings.ReplaceAll(s, "-", "_")) {
	case domain.KindBalanceSheet:
		return domain.KindBalanceSheet, true
	case domain.KindCashFlow:
		return domain.KindCashFlow, true
	case domain.KindProfitLoss:
		return domain.KindProfitLoss, true
	}
	return "", false
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var invalidPeriod *domain.ErrInvalidPeriod
	var validation *domain.ErrValidation
	var notFound *domain.ErrNotFound
	var missingSettings *domain.ErrMissingSettings
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &invalidPeriod):
		logger.Debug("invalid period", zap.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: invalidPeriod.Field})
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Field: validation.Field})
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &missingSettings):
		logger.Warn("company settings incomplete", zap.String("company_id", missingSettings.CompanyID), zap.String("field", missingSettings.Field))
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Field: missingSettings.Field})
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
