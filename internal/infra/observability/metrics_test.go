package observability

import (
	"testing"
	"time"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordBuild("balance_sheet", "success", 10*time.Millisecond)
	m.RecordBuild("balance_sheet", "success", 12*time.Millisecond)
	m.RecordBuild("cash_flow", "error", time.Millisecond)
	m.AddFindings("cash_flow", "warning", 2)
	m.AddFindings("balance_sheet", "error", 1)
	m.AddFindings("balance_sheet", "info", 0)
	m.AddUnclassified(3)
	m.IncrCacheHit("settings")
	m.IncrCacheMiss("rates")
	m.IncrBatch("success")

	s := m.GetSnapshot("balance_sheet", "cash_flow")

	if s.Builds["balance_sheet"] != 2 {
		t.Errorf("expected 2 balance sheet builds, got %v", s.Builds["balance_sheet"])
	}
	if s.Failures["cash_flow"] != 1 {
		t.Errorf("expected 1 cash flow failure, got %v", s.Failures["cash_flow"])
	}
	if s.Warnings != 2 || s.Errors != 1 {
		t.Errorf("unexpected findings: warnings=%v errors=%v", s.Warnings, s.Errors)
	}
	if s.Unclassified != 3 {
		t.Errorf("expected 3 unclassified, got %v", s.Unclassified)
	}
	if s.CacheHitRate != 0.5 {
		t.Errorf("expected hit rate 0.5, got %v", s.CacheHitRate)
	}
	if s.BatchSuccess != 1 {
		t.Errorf("expected 1 batch success, got %v", s.BatchSuccess)
	}
}

func TestNewMetrics_IndependentRegistries(t *testing.T) {
	a, b := NewMetrics(), NewMetrics()
	a.IncrExternalError("ledger")
	if got := getCounterValue(b.externalErrors, "ledger"); got != 0 {
		t.Errorf("registries should be independent, got %v", got)
	}
}

func TestNewLogger_UnknownLevelFallsBack(t *testing.T) {
	l := NewLogger("verbose", "test")
	if l == nil {
		t.Fatal("expected logger")
	}
	if l.Core().Enabled(-1) {
		t.Error("debug should be disabled at info level")
	}
}
