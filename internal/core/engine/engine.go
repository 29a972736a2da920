// Package engine implements the adherence engine: pure computations
// over one user's in-memory medication and dose record collections.
// An Engine is an explicit state object so multiple independent
// sessions can coexist in one process. It performs no I/O and never
// spawns timers; periodic re-evaluation is driven by the caller. The
// engine assumes a single logical writer and does no internal locking;
// callers that share an Engine across goroutines must serialize access.
package engine

import (
	"sort"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-service/internal/core/domain"
)

// doseKey identifies one dose occurrence: medication x date x scheduled time
type doseKey struct {
	medicationID uuid.UUID
	date         string
	time         string
}

// Engine holds one user's medications and dose records and exposes the
// adherence operations over them.
type Engine struct {
	meds    map[uuid.UUID]*domain.Medication
	records map[doseKey]*domain.DoseRecord
}

// New creates an empty engine
func New() *Engine {
	return &Engine{
		meds:    make(map[uuid.UUID]*domain.Medication),
		records: make(map[doseKey]*domain.DoseRecord),
	}
}

// Load replaces the engine's entire state with the supplied collections.
// This is the session-start path: the persistence layer hands the engine
// its medications and dose records and the engine owns them from then on.
func (e *Engine) Load(meds []*domain.Medication, records []*domain.DoseRecord) {
	e.meds = make(map[uuid.UUID]*domain.Medication, len(meds))
	for _, m := range meds {
		e.meds[m.ID] = m
	}
	e.records = make(map[doseKey]*domain.DoseRecord, len(records))
	for _, r := range records {
		e.records[recordKey(r)] = r
	}
}

// UpsertMedication adds or replaces a medication definition
func (e *Engine) UpsertMedication(m *domain.Medication) {
	e.meds[m.ID] = m
}

// RemoveMedication drops a medication from the engine. Its dose records
// are kept; history stays queryable even after a definition is removed.
func (e *Engine) RemoveMedication(id uuid.UUID) {
	delete(e.meds, id)
}

// Medication returns a medication by id
func (e *Engine) Medication(id uuid.UUID) (*domain.Medication, bool) {
	m, ok := e.meds[id]
	return m, ok
}

// Medications returns all medications sorted by name, then id, so
// repeated calls yield identical ordering.
func (e *Engine) Medications() []*domain.Medication {
	out := make([]*domain.Medication, 0, len(e.meds))
	for _, m := range e.meds {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Record returns the stored dose record for one occurrence, if any
func (e *Engine) Record(medicationID uuid.UUID, date, scheduledTime string) (*domain.DoseRecord, bool) {
	r, ok := e.records[doseKey{medicationID: medicationID, date: date, time: scheduledTime}]
	return r, ok
}

func recordKey(r *domain.DoseRecord) doseKey {
	return doseKey{medicationID: r.MedicationID, date: r.Date, time: r.ScheduledTime}
}
