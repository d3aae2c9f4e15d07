// Package service orchestrates statement generation: it loads company
// settings, resolves periods, fetches ledger data and runs the engine.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/boddenberg/finstatements-go/internal/domain"
	"github.com/boddenberg/finstatements-go/internal/engine/aggregate"
	"github.com/boddenberg/finstatements-go/internal/engine/ledger"
	"github.com/boddenberg/finstatements-go/internal/engine/period"
	"github.com/boddenberg/finstatements-go/internal/infra/observability"
	"github.com/boddenberg/finstatements-go/internal/port"
)

var tracer = otel.Tracer("service/statements")

// GenerateRequest asks for one statement kind for one company.
type GenerateRequest struct {
	CompanyID string
	Period    domain.PeriodRequest
	// Method only applies to cash flow statements.
	Method domain.CashFlowMethod
	// Currency is the presentation currency. Without Convert it selects one
	// of the per-currency statements; with Convert everything is translated
	// into it. Empty means the functional currency when converting, and
	// every currency otherwise.
	Currency string
	Convert  bool
}

// StatementService generates financial statements.
type StatementService struct {
	ledger        port.LedgerSource
	settings      port.SettingsProvider
	rates         port.RateProvider
	settingsCache port.Cache[*domain.CompanySettings]
	ratesCache    port.Cache[*domain.RateTable]
	metrics       *observability.Metrics
	logger        *zap.Logger

	now          func() time.Time
	buildTimeout time.Duration
}

// Option customizes a StatementService.
type Option func(*StatementService)

// WithClock replaces the wall clock used to resolve relative periods.
func WithClock(now func() time.Time) Option {
	return func(s *StatementService) { s.now = now }
}

// WithBuildTimeout bounds one generation, fetches included.
func WithBuildTimeout(d time.Duration) Option {
	return func(s *StatementService) { s.buildTimeout = d }
}

// NewStatementService creates the statement service with all dependencies
// injected. rates may be nil, in which case conversion requests are rejected.
func NewStatementService(
	ledgerSource port.LedgerSource,
	settings port.SettingsProvider,
	rates port.RateProvider,
	settingsCache port.Cache[*domain.CompanySettings],
	ratesCache port.Cache[*domain.RateTable],
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...Option,
) *StatementService {
	s := &StatementService{
		ledger:        ledgerSource,
		settings:      settings,
		rates:         rates,
		settingsCache: settingsCache,
		ratesCache:    ratesCache,
		metrics:       metrics,
		logger:        logger,
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// buildInput is everything the engine needs for one request.
type buildInput struct {
	settings domain.CompanySettings
	period   domain.ReportingPeriod
	prior    *domain.ReportingPeriod
	txs      []domain.NormalizedTransaction
	balances []domain.CashBalance
	target   string
	rates    *domain.RateTable
	filter   string
}

// Settings returns the validated settings of a company, cached.
func (s *StatementService) Settings(ctx context.Context, companyID string) (*domain.CompanySettings, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, &domain.ErrValidation{Field: "companyId", Message: "is required"}
	}

	settings, hit, err := s.settingsCache.GetOrLoad(ctx, "settings:"+companyID, func(ctx context.Context) (*domain.CompanySettings, error) {
		return s.settings.GetSettings(ctx, companyID)
	})
	if hit {
		s.metrics.IncrCacheHit("settings")
	} else {
		s.metrics.IncrCacheMiss("settings")
	}
	if err != nil {
		s.metrics.IncrExternalError("settings")
		return nil, fmt.Errorf("settings fetch: %w", err)
	}
	if settings.CompanyID == "" {
		cp := *settings
		cp.CompanyID = companyID
		settings = &cp
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// prepare loads settings, resolves periods and fetches ledger records and
// rates concurrently.
func (s *StatementService) prepare(ctx context.Context, req GenerateRequest) (*buildInput, error) {
	settings, err := s.Settings(ctx, req.CompanyID)
	if err != nil {
		return nil, err
	}

	resolver, err := period.NewResolver(*settings, s.now)
	if err != nil {
		return nil, err
	}
	current, err := resolver.Resolve(req.Period)
	if err != nil {
		return nil, err
	}
	prior, err := resolver.ResolveComparison(req.Period, current)
	if err != nil {
		return nil, err
	}

	in := &buildInput{settings: *settings, period: current, prior: prior}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if req.Convert {
		if s.rates == nil {
			return nil, &domain.ErrValidation{Field: "convert", Message: "no exchange rate source is configured"}
		}
		in.target = currency
		if in.target == "" {
			in.target = settings.FunctionalCurrency
		}
	} else {
		in.target = settings.FunctionalCurrency
		in.filter = currency
	}

	var records *domain.LedgerRecords
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		r, err := s.ledger.FetchLedger(gCtx, req.CompanyID, current.End)
		if err != nil {
			s.logger.Error("failed to fetch ledger",
				zap.String("company_id", req.CompanyID),
				zap.Error(err),
			)
			s.metrics.IncrExternalError("ledger")
			return fmt.Errorf("ledger fetch: %w", err)
		}
		records = r
		return nil
	})

	if req.Convert {
		g.Go(func() error {
			t, err := s.rateTable(gCtx, in.target)
			if err != nil {
				return err
			}
			in.rates = t
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	in.txs = ledger.Normalize(records.Records(), *settings)
	in.balances = records.CashBalances

	if n := len(ledger.Unclassified(in.txs)); n > 0 {
		s.metrics.AddUnclassified(n)
		s.logger.Warn("ledger records could not be classified",
			zap.String("company_id", req.CompanyID),
			zap.Int("count", n),
		)
	}
	return in, nil
}

func (s *StatementService) rateTable(ctx context.Context, base string) (*domain.RateTable, error) {
	table, hit, err := s.ratesCache.GetOrLoad(ctx, "rates:"+base, func(ctx context.Context) (*domain.RateTable, error) {
		return s.rates.GetRates(ctx, base)
	})
	if hit {
		s.metrics.IncrCacheHit("rates")
	} else {
		s.metrics.IncrCacheMiss("rates")
	}
	if err != nil {
		s.logger.Error("failed to fetch exchange rates", zap.String("base", base), zap.Error(err))
		s.metrics.IncrExternalError("rates")
		return nil, fmt.Errorf("rates fetch: %w", err)
	}
	if table.Base != base {
		return nil, &domain.ErrExternalService{Service: "rates", Err: fmt.Errorf("asked for base %s, got %s", base, table.Base)}
	}
	return table, nil
}

// views splits or converts buckets for presentation and applies the
// currency filter. Each view holds exactly one currency.
func (in *buildInput) views(b *aggregate.Buckets) []*aggregate.Buckets {
	all := aggregate.Present(b, in.target, in.rates)
	if in.filter == "" {
		return all
	}
	for _, v := range all {
		if v.Currencies()[0] == in.filter {
			return []*aggregate.Buckets{v}
		}
	}
	return []*aggregate.Buckets{b.OnlyCurrency(in.filter)}
}

// priorView returns the buckets a prior statement in cur is built from.
func (in *buildInput) priorView(b *aggregate.Buckets, cur string) *aggregate.Buckets {
	if in.rates != nil {
		return aggregate.Present(b, in.target, in.rates)[0]
	}
	return b.OnlyCurrency(cur)
}

func newResult[T domain.Statement](s *StatementService, companyID string, in *buildInput, cur string, st T, findings []domain.ValidationFinding) domain.StatementResult[T] {
	return domain.StatementResult[T]{
		ID:          uuid.NewString(),
		CompanyID:   companyID,
		Kind:        st.StatementKind(),
		Currency:    cur,
		Period:      in.period,
		Prior:       in.prior,
		Statement:   st,
		Validation:  findings,
		GeneratedAt: s.now().UTC(),
	}
}

// generate wraps one statement generation with tracing, timeout, metrics and logs.
func generate[T domain.Statement](
	ctx context.Context,
	s *StatementService,
	kind domain.StatementKind,
	req GenerateRequest,
	build func(ctx context.Context, in *buildInput) ([]domain.StatementResult[T], error),
) ([]domain.StatementResult[T], error) {
	// Bail out early if the caller already cancelled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "StatementService."+string(kind))
	defer span.End()
	span.SetAttributes(
		attribute.String("company.id", req.CompanyID),
		attribute.String("period.kind", string(req.Period.Kind)),
		attribute.String("period.compare", string(req.Period.Compare)),
	)

	if s.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.buildTimeout)
		defer cancel()
	}

	start := time.Now()
	results, err := func() ([]domain.StatementResult[T], error) {
		in, err := s.prepare(ctx, req)
		if err != nil {
			return nil, err
		}
		span.SetAttributes(
			attribute.String("period.id", in.period.ID),
			attribute.Int("ledger.transactions", len(in.txs)),
		)
		return build(ctx, in)
	}()

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = &domain.ErrTimeout{Operation: "generate " + string(kind)}
		}
		s.metrics.RecordBuild(string(kind), "error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("statement generation failed",
			zap.String("company_id", req.CompanyID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordBuild(string(kind), "success", time.Since(start))
	for _, r := range results {
		counts := map[domain.Severity]int{}
		for _, f := range r.Validation {
			counts[f.Severity]++
		}
		for sev, n := range counts {
			s.metrics.AddFindings(string(kind), string(sev), n)
		}
		s.logger.Info("statement generated",
			append([]zap.Field{
				zap.String("company_id", r.CompanyID),
				zap.String("kind", string(kind)),
				zap.String("period", r.Period.ID),
				zap.String("currency", r.Currency),
				zap.Int("findings", len(r.Validation)),
				zap.Bool("has_errors", r.HasErrors()),
				zap.Duration("latency", time.Since(start)),
			}, observability.TraceFields(span.SpanContext())...)...,
		)
	}
	span.SetAttributes(attribute.Int("statements", len(results)))
	return results, nil
}
