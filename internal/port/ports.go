// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the engine and
// service layer from concrete record sources and providers.
package port

import (
	"context"
	"time"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

// LedgerSource supplies the raw ledger records of one company dated up to
// and including until, plus its cash balance snapshots.
type LedgerSource interface {
	FetchLedger(ctx context.Context, companyID string, until time.Time) (*domain.LedgerRecords, error)
}

// SettingsProvider supplies company settings. Unknown companies yield
// *domain.ErrNotFound.
type SettingsProvider interface {
	GetSettings(ctx context.Context, companyID string) (*domain.CompanySettings, error)
}

// RateProvider supplies exchange rates quoted against base.
type RateProvider interface {
	GetRates(ctx context.Context, base string) (*domain.RateTable, error)
}

// CompanyLister lists the companies batch jobs run for.
type CompanyLister interface {
	ListCompanies(ctx context.Context) ([]string, error)
}

// EntryWriter persists manual entries, e.g. those expanded from a journal template.
type EntryWriter interface {
	SaveManualEntries(ctx context.Context, entries []domain.ManualEntry) error
}

// Cache provides generic caching with TTL. GetOrLoad reports whether the
// value was served from the cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	GetOrLoad(ctx context.Context, key string, load func(context.Context) (T, error)) (T, bool, error)
}
