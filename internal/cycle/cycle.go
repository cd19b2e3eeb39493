// Package cycle defines the calendar semantics used to generate billing
// cycle date ranges. A strategy value is constructed once at startup and
// injected into the billing cycle service.
package cycle

import (
	"time"

	"go.uber.org/fx"
)

// DateRange is a half-open interval [Start, End).
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Strategy describes one flavour of billing calendar (monthly, weekly, ...).
type Strategy interface {
	// NextStartDate returns the first cycle start date following asOf. When
	// inclusive is true and asOf is itself a cycle boundary, asOf is returned
	// unchanged.
	NextStartDate(asOf time.Time, inclusive bool) time.Time
	// PrevStartDate returns the start date of the cycle containing asOf, or
	// asOf itself when inclusive and on a boundary.
	PrevStartDate(asOf time.Time, inclusive bool) time.Time
	// EndDate returns the exclusive end date of a cycle starting at start.
	EndDate(start time.Time) time.Time
}

// RangeOptions controls DateRanges generation.
type RangeOptions struct {
	// Inclusive allows the first range to start exactly on asOf.
	Inclusive bool
	// OmitCurrent skips the range containing asOf and begins with the next
	// one. Populate-with-delete uses this so the in-use cycle survives.
	OmitCurrent bool
	// StopDate terminates generation: a range whose start falls strictly
	// after StopDate is never yielded. Zero means generate forever.
	StopDate time.Time
}

// DateRanges returns a lazy generator of consecutive cycle ranges. Each call
// to the returned function yields the next range; ok is false once StopDate
// has been passed. The generator is restartable only by calling DateRanges
// again.
func DateRanges(s Strategy, asOf time.Time, opts RangeOptions) func() (DateRange, bool) {
	inclusive := opts.Inclusive
	omitCurrent := opts.OmitCurrent
	cursor := asOf

	return func() (DateRange, bool) {
		var start time.Time
		if omitCurrent {
			start = s.NextStartDate(cursor, inclusive)
		} else {
			start = s.PrevStartDate(cursor, inclusive)
		}
		end := s.EndDate(start)
		cursor = end
		inclusive = true
		omitCurrent = false

		if !opts.StopDate.IsZero() && start.After(opts.StopDate) {
			return DateRange{}, false
		}
		return DateRange{Start: start, End: end}, true
	}
}

var Module = fx.Module("cycle",
	fx.Provide(func() Strategy { return Monthly{} }),
)
