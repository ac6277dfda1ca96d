package period

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestComputeRollover verifies every January cutoff maps to the full previous year.
func TestComputeRollover(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("January cutoff covers the whole previous year", prop.ForAll(
		func(year, day int) bool {
			w := Compute(d(year, time.January, day))
			return w.IsYearRollover &&
				w.EpochYear == year-1 &&
				w.PeriodStart.Equal(d(year-1, time.January, 1)) &&
				w.PeriodEnd.Equal(d(year-1, time.December, 31)) &&
				len(w.MonthsInScope) == 12
		},
		gen.IntRange(1990, 2100),
		gen.IntRange(1, 31),
	))

	properties.TestingRun(t)
}

// TestComputeInvariants verifies structural invariants for any cutoff.
func TestComputeInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("months run from January through the last completed month", prop.ForAll(
		func(year, month, day int) bool {
			cutoff := d(year, time.Month(month), day)
			w := Compute(cutoff)

			if len(w.MonthsInScope) == 0 || w.MonthsInScope[0] != time.January {
				return false
			}
			for i, m := range w.MonthsInScope {
				if int(m) != i+1 {
					return false
				}
			}
			if !w.IsYearRollover && int(w.LastMonth()) != month-1 {
				return false
			}
			return true
		},
		gen.IntRange(1990, 2100),
		gen.IntRange(1, 12),
		gen.IntRange(1, 28),
	))

	properties.Property("window never reaches the cutoff month", prop.ForAll(
		func(year, month, day int) bool {
			cutoff := d(year, time.Month(month), day)
			w := Compute(cutoff)
			return !w.InScope(cutoff) && w.PeriodStart.Before(cutoff)
		},
		gen.IntRange(1990, 2100),
		gen.IntRange(1, 12),
		gen.IntRange(1, 28),
	))

	properties.Property("period end is a calendar quarter end", prop.ForAll(
		func(year, month, day int) bool {
			w := Compute(d(year, time.Month(month), day))
			next := w.PeriodEnd.AddDate(0, 0, 1)
			return next.Day() == 1 && int(next.Month())%3 == 1 && w.PeriodEnd.Year() == w.EpochYear
		},
		gen.IntRange(1990, 2100),
		gen.IntRange(1, 12),
		gen.IntRange(1, 28),
	))

	properties.TestingRun(t)
}
