// Package period maps a reporting cutoff date to the reporting window
// every report section aggregates over.
package period

import (
	"fmt"
	"time"
)

// Window is the reporting window derived from a cutoff date.
// All dates are UTC midnight. PeriodEnd is the last day of the window (inclusive).
type Window struct {
	EpochYear      int          // calendar year the report covers
	PeriodStart    time.Time    // Jan 1 of EpochYear
	PeriodEnd      time.Time    // quarter end of the last completed month
	MonthsInScope  []time.Month // Jan through the last completed month
	IsYearRollover bool         // true for January cutoffs
}

// Compute returns the reporting window for cutoff.
//
// A January cutoff covers the whole previous year. Any other cutoff covers
// Jan 1 of its own year through the end of the calendar quarter containing
// the last completed month (cutoff month - 1). Only the date components of
// cutoff are used, in cutoff's own location.
func Compute(cutoff time.Time) Window {
	year, month, _ := cutoff.Date()

	if month == time.January {
		epoch := year - 1
		return Window{
			EpochYear:      epoch,
			PeriodStart:    date(epoch, time.January, 1),
			PeriodEnd:      date(epoch, time.December, 31),
			MonthsInScope:  monthsThrough(time.December),
			IsYearRollover: true,
		}
	}

	last := month - 1
	return Window{
		EpochYear:     year,
		PeriodStart:   date(year, time.January, 1),
		PeriodEnd:     quarterEnd(year, last),
		MonthsInScope: monthsThrough(last),
	}
}

// LastMonth returns the last completed month in scope.
func (w Window) LastMonth() time.Month {
	if len(w.MonthsInScope) == 0 {
		return 0
	}
	return w.MonthsInScope[len(w.MonthsInScope)-1]
}

// Quarter returns the calendar quarter (1-4) PeriodEnd falls in.
func (w Window) Quarter() int {
	return quarterOf(w.PeriodEnd.Month())
}

// Contains reports whether t falls on a day inside [PeriodStart, PeriodEnd].
func (w Window) Contains(t time.Time) bool {
	y, m, d := t.Date()
	day := date(y, m, d)
	return !day.Before(w.PeriodStart) && !day.After(w.PeriodEnd)
}

// InScope reports whether t falls inside the window and in one of MonthsInScope.
// Unlike Contains it excludes the not-yet-completed months of the final quarter.
func (w Window) InScope(t time.Time) bool {
	if !w.Contains(t) {
		return false
	}
	return t.Month() <= w.LastMonth()
}

// MonthNames returns the English month names in scope.
func (w Window) MonthNames() []string {
	names := make([]string, len(w.MonthsInScope))
	for i, m := range w.MonthsInScope {
		names[i] = m.String()
	}
	return names
}

// Label returns a short label such as "Q2 2024" or "FY 2023" for rollover windows.
func (w Window) Label() string {
	if w.IsYearRollover {
		return fmt.Sprintf("FY %d", w.EpochYear)
	}
	return fmt.Sprintf("Q%d %d", w.Quarter(), w.EpochYear)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func quarterOf(m time.Month) int {
	return (int(m)-1)/3 + 1
}

// quarterEnd returns the last day of the quarter containing m.
func quarterEnd(year int, m time.Month) time.Time {
	endMonth := time.Month(quarterOf(m) * 3)
	// Day 0 of the following month is the last day of endMonth.
	return date(year, endMonth+1, 0)
}

func monthsThrough(last time.Month) []time.Month {
	months := make([]time.Month, 0, int(last))
	for m := time.January; m <= last; m++ {
		months = append(months, m)
	}
	return months
}
