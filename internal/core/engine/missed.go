package engine

import (
	"time"

	"github.com/medtrack/adherence-service/internal/core/domain"
)

// CheckMissedDoses scans the current date's doses for critical
// medications that are still pending past their grace delay and returns
// one entry per overdue occurrence. "Today" and the scheduled times are
// interpreted in now's location (local wall-clock). Read-only: it never
// mutates dose records or inventory, so calling it twice with the same
// now and state yields the same result; alert de-duplication belongs to
// the dispatcher.
//
// Only the current date is scanned. A dose left pending yesterday is
// never re-evaluated here; that is a deliberate scope limit of the scan
// window, not an oversight.
func (e *Engine) CheckMissedDoses(now time.Time) []domain.MissedDose {
	today := domain.DateOf(now)
	var missed []domain.MissedDose
	for _, d := range e.DosesForDate(today) {
		if !d.IsCritical || d.Status != domain.DoseStatusPending {
			continue
		}
		m, ok := e.meds[d.MedicationID]
		if !ok {
			continue
		}
		scheduled, err := scheduledAt(today, d.ScheduledTime, now.Location())
		if err != nil {
			continue
		}
		minutesLate := int(now.Sub(scheduled).Minutes()) // floor for positive spans
		if now.Before(scheduled) {
			continue
		}
		if minutesLate >= m.GraceDelayMinutes() {
			missed = append(missed, domain.MissedDose{
				MedicationID:   d.MedicationID,
				MedicationName: d.MedicationName,
				ScheduledTime:  d.ScheduledTime,
				MinutesLate:    minutesLate,
			})
		}
	}
	return missed
}

// scheduledAt combines a date and an HH:MM time of day into a wall-clock instant
func scheduledAt(date, timeOfDay string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(domain.DateLayout+" "+domain.TimeLayout, date+" "+timeOfDay, loc)
}
