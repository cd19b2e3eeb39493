package cycle

import "time"

// Monthly bills on calendar months: cycles run from the 1st of a month to
// the 1st of the next.
type Monthly struct{}

func (Monthly) NextStartDate(asOf time.Time, inclusive bool) time.Time {
	if inclusive && asOf.Day() == 1 {
		return dateOnly(asOf)
	}
	return time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

func (Monthly) PrevStartDate(asOf time.Time, inclusive bool) time.Time {
	if inclusive && asOf.Day() == 1 {
		return dateOnly(asOf)
	}
	return time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func (Monthly) EndDate(start time.Time) time.Time {
	next := start.AddDate(0, 1, 0)
	return time.Date(next.Year(), next.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
