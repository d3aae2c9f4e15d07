package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/infra/observability"
	"github.com/boddenberg/finstatements-go/internal/service"
)

var tracer = otel.Tracer("handler")

// HealthCheck probes one backing dependency.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Services bundles what the router serves.
type Services struct {
	Statements *service.StatementService
	Batch      *service.BatchService
	Journal    *service.JournalService
	Checks     []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc Services, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc.Checks))
	r.Get("/readyz", readyzHandler(svc.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if svc.Statements != nil {
			r.Get("/companies/{companyId}/statements/{kind}", statementHandler(svc.Statements, logger))
		}
		if svc.Batch != nil {
			r.Post("/statements/batch", batchHandler(svc.Batch, logger))
		}
		if svc.Journal != nil {
			r.Post("/journal-templates/expand", expandHandler(svc.Journal, logger))
		}
		r.Get("/metrics/statements", statementMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func runChecks(ctx context.Context, checks []HealthCheck) domain.HealthStatus {
	now := time.Now().Format(time.RFC3339)
	services := []domain.ServiceHealth{
		{Name: "finstatements-api", Status: "healthy", LastChecked: now},
	}

	overall := "healthy"
	for _, c := range checks {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		start := time.Now()
		err := c.Ping(ctx)
		cancel()

		s := domain.ServiceHealth{
			Name:        c.Name,
			Status:      "healthy",
			LatencyMs:   time.Since(start).Milliseconds(),
			LastChecked: now,
		}
		if err != nil {
			s.Status = "degraded"
			s.Error = err.Error()
			overall = "degraded"
		}
		services = append(services, s)
	}
	return domain.HealthStatus{Status: overall, Services: services}
}

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, runChecks(r.Context(), checks))
	}
}

// readyzHandler fails while any dependency is unreachable.
func readyzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := runChecks(r.Context(), checks)
		if status.Status != "healthy" {
			logger.Warn("not ready", zap.Any("services", status.Services))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func statementMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetSnapshot(
			string(domain.KindBalanceSheet),
			string(domain.KindCashFlow),
			string(domain.KindProfitLoss),
		))
	}
}
