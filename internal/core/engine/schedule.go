package engine

import (
	"sort"

	"github.com/medtrack/adherence-service/internal/core/domain"
)

// ProjectDay projects a medication's recurrence onto one calendar date,
// returning the ordered list of scheduled HH:MM times for that date.
// Returns nil if the medication is not active on the date or has no
// schedule times configured (a half-configured medication yields no
// doses rather than an error, so it cannot break the rest of the day
// view). FrequencyType/FrequencyValue are descriptive only; Schedules
// is the single source of truth.
func ProjectDay(m *domain.Medication, date string) []string {
	if m == nil || !m.ActiveOn(date) {
		return nil
	}
	if len(m.Schedules) == 0 {
		return nil
	}
	return m.SortedSchedules()
}

// DosesForDate builds the full day view for a date: one DoseForDay per
// (active medication, projected time), joined with the stored dose
// record when one exists and an implicit pending placeholder otherwise.
// Output is sorted by scheduled time, then medication name, then id,
// so repeated calls with unchanged state return identical lists.
func (e *Engine) DosesForDate(date string) []domain.DoseForDay {
	var doses []domain.DoseForDay
	for _, m := range e.Medications() {
		for _, t := range ProjectDay(m, date) {
			doses = append(doses, e.doseForOccurrence(m, date, t))
		}
	}
	sort.Slice(doses, func(i, j int) bool {
		if doses[i].ScheduledTime != doses[j].ScheduledTime {
			return doses[i].ScheduledTime < doses[j].ScheduledTime
		}
		if doses[i].MedicationName != doses[j].MedicationName {
			return doses[i].MedicationName < doses[j].MedicationName
		}
		return doses[i].MedicationID.String() < doses[j].MedicationID.String()
	})
	return doses
}

// doseForOccurrence joins one occurrence with its record, defaulting to
// an implicit pending entry when no record exists.
func (e *Engine) doseForOccurrence(m *domain.Medication, date, scheduledTime string) domain.DoseForDay {
	d := domain.DoseForDay{
		MedicationID:   m.ID,
		MedicationName: m.Name,
		Dose:           m.Dose,
		DoseUnit:       m.DoseUnit,
		IsCritical:     m.IsCritical,
		Date:           date,
		ScheduledTime:  scheduledTime,
		Status:         domain.DoseStatusPending,
	}
	if r, ok := e.Record(m.ID, date, scheduledTime); ok {
		id := r.ID
		d.RecordID = &id
		d.Status = r.Status
		d.ActualTime = r.ActualTime
		d.Notes = r.Notes
	}
	return d
}
