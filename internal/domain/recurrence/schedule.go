package recurrence

import (
	"time"

	"cloud.google.com/go/civil"

	"fintrack/internal/shared/calendar"
)

// NextDue returns the next occurrence after the schedule pointer, and
// whether it is due on today. Without a pointer the candidate is the
// current period anchored at the due day.
func (r *Rule) NextDue(today civil.Date) (civil.Date, bool) {
	var next civil.Date
	if r.LastProcessedAt == nil {
		next = r.anchor(today)
	} else {
		next = r.step(*r.LastProcessedAt)
	}
	return next, !next.After(today)
}

func (r *Rule) anchor(today civil.Date) civil.Date {
	month := today.Month
	if r.Periodicity == Yearly && r.DueMonth != nil {
		month = time.Month(*r.DueMonth)
	}
	return calendar.Clamped(today.Year, month, r.DueDay)
}

// step advances one period. Monthly and yearly steps re-force the due day,
// clamped to the month's length; weekly and daily steps are exact.
func (r *Rule) step(from civil.Date) civil.Date {
	switch r.Periodicity {
	case Weekly:
		return from.AddDays(7)
	case Daily:
		return from.AddDays(1)
	case Yearly:
		month := from.Month
		if r.DueMonth != nil {
			month = time.Month(*r.DueMonth)
		}
		return calendar.Clamped(from.Year+1, month, r.DueDay)
	}
	return calendar.Clamped(from.Year, from.Month+1, r.DueDay)
}
