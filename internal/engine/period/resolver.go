// Package period resolves reporting period requests into concrete instants.
package period

import (
	"fmt"
	"time"

	"github.com/boddenberg/finstatements-go/internal/domain"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Resolver resolves period requests in a company's timezone. The zero value
// resolves in UTC against the wall clock with a January fiscal year.
type Resolver struct {
	Now                  func() time.Time
	Location             *time.Location
	FiscalYearStartMonth time.Month
}

// NewResolver builds a Resolver from company settings.
func NewResolver(settings domain.CompanySettings, now func() time.Time) (*Resolver, error) {
	loc, err := settings.Location()
	if err != nil {
		return nil, &domain.ErrMissingSettings{CompanyID: settings.CompanyID, Field: "timezone"}
	}
	return &Resolver{
		Now:                  now,
		Location:             loc,
		FiscalYearStartMonth: time.Month(settings.FiscalYearStartMonth),
	}, nil
}

func (r *Resolver) loc() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

func (r *Resolver) now() time.Time {
	if r.Now == nil {
		return time.Now().In(r.loc())
	}
	return r.Now().In(r.loc())
}

func (r *Resolver) fiscalMonth() time.Month {
	if r.FiscalYearStartMonth < time.January || r.FiscalYearStartMonth > time.December {
		return time.January
	}
	return r.FiscalYearStartMonth
}

// Resolve turns a request into a ReportingPeriod. Invalid requests return
// *domain.ErrInvalidPeriod naming the offending field.
func (r *Resolver) Resolve(req domain.PeriodRequest) (domain.ReportingPeriod, error) {
	switch req.Compare {
	case domain.CompareNone, domain.ComparePreviousPeriod, domain.ComparePreviousYear:
	default:
		return domain.ReportingPeriod{}, &domain.ErrInvalidPeriod{Field: "compare", Message: fmt.Sprintf("unknown comparison %q", req.Compare)}
	}

	loc := r.loc()
	now := r.now()
	year, month := now.Year(), now.Month()

	var start, next time.Time
	switch req.Kind {
	case domain.PeriodThisMonth:
		start = time.Date(year, month, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(0, 1, 0)
	case domain.PeriodLastMonth:
		start = time.Date(year, month-1, 1, 0, 0, 0, 0, loc)
		next = time.Date(year, month, 1, 0, 0, 0, 0, loc)
	case domain.PeriodThisYear:
		start = time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(1, 0, 0)
	case domain.PeriodLastYear:
		start = time.Date(year-1, time.January, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(1, 0, 0)
	case domain.PeriodThisFiscalYear, domain.PeriodLastFiscalYear:
		fm := r.fiscalMonth()
		fy := year
		if month < fm {
			fy--
		}
		if req.Kind == domain.PeriodLastFiscalYear {
			fy--
		}
		start = time.Date(fy, fm, 1, 0, 0, 0, 0, loc)
		next = start.AddDate(1, 0, 0)
	case domain.PeriodAllTime:
		if req.Compare != domain.CompareNone {
			return domain.ReportingPeriod{}, &domain.ErrInvalidPeriod{Field: "compare", Message: "allTime has no prior period to compare against"}
		}
		end := time.Date(year, month, now.Day()+1, 0, 0, 0, 0, loc).Add(-time.Nanosecond)
		return domain.ReportingPeriod{End: end, Label: string(req.Kind), ID: "all-time", OpenStart: true}, nil
	case domain.PeriodCustom:
		if req.Start.IsZero() {
			return domain.ReportingPeriod{}, &domain.ErrInvalidPeriod{Field: "start", Message: "is required for custom periods"}
		}
		if req.End.IsZero() {
			return domain.ReportingPeriod{}, &domain.ErrInvalidPeriod{Field: "end", Message: "is required for custom periods"}
		}
		// Custom bounds are calendar dates, taken as written.
		s, e := req.Start, req.End
		start = time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)
		next = time.Date(e.Year(), e.Month(), e.Day()+1, 0, 0, 0, 0, loc)
		if !start.Before(next) {
			return domain.ReportingPeriod{}, &domain.ErrInvalidPeriod{Field: "end", Message: "must not be before start"}
		}
	case "":
		return domain.ReportingPeriod{}, &domain.ErrInvalidPeriod{Field: "kind", Message: "is required"}
	default:
		return domain.ReportingPeriod{}, &domain.ErrInvalidPeriod{Field: "kind", Message: fmt.Sprintf("unknown period %q", req.Kind)}
	}

	return r.build(start, next, string(req.Kind)), nil
}

// ResolveComparison returns the prior period for req, or nil when no
// comparison was requested.
func (r *Resolver) ResolveComparison(req domain.PeriodRequest, current domain.ReportingPeriod) (*domain.ReportingPeriod, error) {
	if req.Compare == domain.CompareNone {
		return nil, nil
	}
	if !current.Comparable() {
		return nil, &domain.ErrInvalidPeriod{Field: "compare", Message: "open-ended periods cannot be compared"}
	}

	loc := r.loc()
	start := current.Start.In(loc)
	next := current.End.In(loc).Add(time.Nanosecond)

	var ps, pn time.Time
	switch req.Compare {
	case domain.ComparePreviousYear:
		ps = shiftYears(start, -1)
		pn = shiftYears(next, -1)
	case domain.ComparePreviousPeriod:
		if months, ok := wholeMonths(start, next); ok {
			ps = start.AddDate(0, -months, 0)
		} else {
			days := calendarDays(start, next)
			ps = start.AddDate(0, 0, -days)
		}
		pn = start
	default:
		return nil, &domain.ErrInvalidPeriod{Field: "compare", Message: fmt.Sprintf("unknown comparison %q", req.Compare)}
	}

	prior := r.build(ps, pn, string(req.Compare))
	return &prior, nil
}

// build makes a period from an inclusive start and an exclusive boundary.
func (r *Resolver) build(start, next time.Time, label string) domain.ReportingPeriod {
	return domain.ReportingPeriod{
		Start: start,
		End:   next.Add(-time.Nanosecond),
		Label: label,
		ID:    r.periodID(start, next),
	}
}

// periodID names a period: 2025-01 for a month, 2025 for a calendar year,
// FY2026 for a fiscal year (named after the year it ends in), a day range otherwise.
func (r *Resolver) periodID(start, next time.Time) string {
	if months, ok := wholeMonths(start, next); ok {
		switch {
		case months == 1:
			return start.Format(monthLayout)
		case months == 12 && start.Month() == time.January:
			return fmt.Sprintf("%d", start.Year())
		case months == 12 && start.Month() == r.fiscalMonth():
			return fmt.Sprintf("FY%d", next.Add(-time.Nanosecond).Year())
		}
	}
	return start.Format(dayLayout) + ".." + next.Add(-time.Nanosecond).Format(dayLayout)
}

// wholeMonths reports whether [start, next) spans whole calendar months and how many.
func wholeMonths(start, next time.Time) (int, bool) {
	if !isMonthStart(start) || !isMonthStart(next) {
		return 0, false
	}
	n := (next.Year()-start.Year())*12 + int(next.Month()-start.Month())
	return n, n > 0
}

func isMonthStart(t time.Time) bool {
	return t.Day() == 1 && t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// calendarDays counts the calendar days in [start, next), ignoring DST length changes.
func calendarDays(start, next time.Time) int {
	a := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(next.Year(), next.Month(), next.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// shiftYears moves t by n years, clamping Feb 29 to Feb 28.
func shiftYears(t time.Time, n int) time.Time {
	y := t.Year() + n
	d := t.Day()
	if t.Month() == time.February && d == 29 {
		if time.Date(y, time.March, 0, 0, 0, 0, 0, t.Location()).Day() == 28 {
			d = 28
		}
	}
	return time.Date(y, t.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
