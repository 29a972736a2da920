package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-service/internal/core/domain"
)

// StockDirection selects relative stock adjustment direction
type StockDirection string

const (
	StockAdd      StockDirection = "add"
	StockSubtract StockDirection = "subtract"
)

// DoseTransition reports the outcome of a RecordOrUpdateDose call so
// the caller can persist exactly what changed and decide on low-stock
// alerting.
type DoseTransition struct {
	Record         *domain.DoseRecord
	Medication     *domain.Medication
	PreviousStatus domain.DoseStatus
	Created        bool
	StockChanged   bool
}

// RecordOrUpdateDose records the outcome of one dose occurrence,
// creating the record on first action and mutating it in place on
// subsequent changes. Any status may overwrite any other, including
// back to pending (re-open); there is no automatic transition out of
// pending by time alone.
//
// Inventory side effect: entering taken from a non-taken state deducts
// the medication's dose quantity exactly once, so redundant taken→taken
// updates (UI double-submits) never double-deduct. Leaving taken
// re-credits the same quantity symmetrically.
func (e *Engine) RecordOrUpdateDose(medicationID uuid.UUID, date, scheduledTime string, status domain.DoseStatus, notes string) (*DoseTransition, error) {
	m, ok := e.meds[medicationID]
	if !ok {
		return nil, domain.ErrMedicationNotFound
	}
	if !domain.IsValidDoseStatus(status) {
		return nil, fmt.Errorf("invalid dose status: %s", status)
	}
	if !domain.IsValidDate(date) {
		return nil, fmt.Errorf("invalid date: %s (expected YYYY-MM-DD)", date)
	}
	if !domain.IsValidTimeOfDay(scheduledTime) {
		return nil, fmt.Errorf("invalid scheduled time: %s (expected HH:MM)", scheduledTime)
	}

	now := time.Now()
	key := doseKey{medicationID: medicationID, date: date, time: scheduledTime}

	prev := domain.DoseStatusPending
	record, exists := e.records[key]
	if exists {
		prev = record.Status
		record.Status = status
		record.Notes = notes
		record.UpdatedAt = now
	} else {
		record = &domain.DoseRecord{
			ID:            uuid.New(),
			MedicationID:  medicationID,
			UserID:        m.UserID,
			Date:          date,
			ScheduledTime: scheduledTime,
			Status:        status,
			Notes:         notes,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		e.records[key] = record
	}

	if status == domain.DoseStatusPending {
		record.ActualTime = nil
	} else {
		t := now
		record.ActualTime = &t
	}

	tr := &DoseTransition{
		Record:         record,
		Medication:     m,
		PreviousStatus: prev,
		Created:        !exists,
	}

	// Only the pending/skipped/postponed <-> taken edges touch inventory.
	units := m.StockUnitsPerDose()
	switch {
	case status == domain.DoseStatusTaken && prev != domain.DoseStatusTaken:
		e.applyStock(m, -units, now)
		tr.StockChanged = true
	case status != domain.DoseStatusTaken && prev == domain.DoseStatusTaken:
		e.applyStock(m, units, now)
		tr.StockChanged = true
	}

	return tr, nil
}

// SetStock sets a medication's stock to an absolute quantity, clamped
// to a non-negative value.
func (e *Engine) SetStock(medicationID uuid.UUID, quantity int) (*domain.Medication, error) {
	m, ok := e.meds[medicationID]
	if !ok {
		return nil, domain.ErrMedicationNotFound
	}
	if quantity < 0 {
		quantity = 0
	}
	m.Stock = quantity
	m.LastStockUpdate = time.Now()
	return m, nil
}

// AdjustStock applies a relative stock change. Subtracting below zero
// clamps to zero; it never errors and stock never goes negative.
func (e *Engine) AdjustStock(medicationID uuid.UUID, quantity int, direction StockDirection) (*domain.Medication, error) {
	m, ok := e.meds[medicationID]
	if !ok {
		return nil, domain.ErrMedicationNotFound
	}
	if quantity < 0 {
		quantity = -quantity
	}
	switch direction {
	case StockAdd:
		e.applyStock(m, quantity, time.Now())
	case StockSubtract:
		e.applyStock(m, -quantity, time.Now())
	default:
		return nil, fmt.Errorf("invalid stock direction: %s", direction)
	}
	return m, nil
}

// LowStockMedications returns active medications with some stock left
// but at or below their low-stock threshold. Empty medications are a
// distinct condition and are not included here.
func (e *Engine) LowStockMedications() []*domain.Medication {
	var out []*domain.Medication
	for _, m := range e.Medications() {
		if m.Status == domain.MedicationStatusActive && m.IsLowStock() {
			out = append(out, m)
		}
	}
	return out
}

// applyStock mutates stock by delta, clamped at zero, and stamps the update time
func (e *Engine) applyStock(m *domain.Medication, delta int, now time.Time) {
	m.Stock += delta
	if m.Stock < 0 {
		m.Stock = 0
	}
	m.LastStockUpdate = now
}
