package domain

import "time"

// PeriodKind names a reporting period request.
type PeriodKind string

const (
	PeriodThisMonth      PeriodKind = "thisMonth"
	PeriodLastMonth      PeriodKind = "lastMonth"
	PeriodThisYear       PeriodKind = "thisYear"
	PeriodLastYear       PeriodKind = "lastYear"
	PeriodThisFiscalYear PeriodKind = "thisFiscalYear"
	PeriodLastFiscalYear PeriodKind = "lastFiscalYear"
	PeriodAllTime        PeriodKind = "allTime"
	PeriodCustom         PeriodKind = "custom"
)

// ComparisonKind selects the prior period a statement is compared against.
type ComparisonKind string

const (
	CompareNone           ComparisonKind = ""
	ComparePreviousPeriod ComparisonKind = "previousPeriod"
	ComparePreviousYear   ComparisonKind = "previousYear"
)

// PeriodRequest is what a caller asks for. Start and End are only read for
// custom periods, as calendar dates in the company timezone.
type PeriodRequest struct {
	Kind    PeriodKind     `json:"kind"`
	Start   time.Time      `json:"start,omitempty"`
	End     time.Time      `json:"end,omitempty"`
	Compare ComparisonKind `json:"compare,omitempty"`
}

// ReportingPeriod is a resolved period. Start and End are both inclusive.
// OpenStart is only set for allTime; such a period has no lower bound.
type ReportingPeriod struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Label     string    `json:"label"`
	ID        string    `json:"id"`
	OpenStart bool      `json:"openStart,omitempty"`
}

// Contains reports whether t lies within the period.
func (p ReportingPeriod) Contains(t time.Time) bool {
	if t.After(p.End) {
		return false
	}
	return p.OpenStart || !t.Before(p.Start)
}

// Comparable reports whether the period is fully resolved and can be compared.
func (p ReportingPeriod) Comparable() bool {
	return !p.OpenStart && !p.Start.IsZero() && !p.End.IsZero()
}
