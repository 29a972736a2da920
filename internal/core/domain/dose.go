package domain

import (
	"time"

	"github.com/google/uuid"
)

// DoseStatus represents the outcome recorded for one scheduled dose occurrence
type DoseStatus string

const (
	DoseStatusPending   DoseStatus = "pending"
	DoseStatusTaken     DoseStatus = "taken"
	DoseStatusSkipped   DoseStatus = "skipped"
	DoseStatusPostponed DoseStatus = "postponed"
)

// ValidDoseStatuses returns all valid dose statuses
func ValidDoseStatuses() []DoseStatus {
	return []DoseStatus{
		DoseStatusPending,
		DoseStatusTaken,
		DoseStatusSkipped,
		DoseStatusPostponed,
	}
}

// IsValidDoseStatus checks if a dose status is valid
func IsValidDoseStatus(status DoseStatus) bool {
	for _, s := range ValidDoseStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// DoseRecord is the recorded outcome of one scheduled dose occurrence.
// The logical key is (MedicationID, Date, ScheduledTime): at most one
// record per key. A record does not exist until the user acts on a
// dose; an unrecorded occurrence is implicitly pending and never stored.
type DoseRecord struct {
	ID            uuid.UUID  `json:"id"`
	MedicationID  uuid.UUID  `json:"medication_id"`
	UserID        uuid.UUID  `json:"user_id"`
	Date          string     `json:"date"`           // YYYY-MM-DD
	ScheduledTime string     `json:"scheduled_time"` // HH:MM
	Status        DoseStatus `json:"status"`
	ActualTime    *time.Time `json:"actual_time,omitempty"` // set when status leaves pending
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// DoseForDay is the derived join of a medication, one of its schedule
// times, and the matching dose record for a date. It is never persisted.
// RecordID is nil for an implicitly pending occurrence that has no
// stored record.
type DoseForDay struct {
	MedicationID   uuid.UUID  `json:"medication_id"`
	MedicationName string     `json:"medication_name"`
	Dose           float64    `json:"dose"`
	DoseUnit       string     `json:"dose_unit"`
	IsCritical     bool       `json:"is_critical"`
	Date           string     `json:"date"`
	ScheduledTime  string     `json:"scheduled_time"`
	Status         DoseStatus `json:"status"`
	ActualTime     *time.Time `json:"actual_time,omitempty"`
	Notes          string     `json:"notes,omitempty"`
	RecordID       *uuid.UUID `json:"record_id,omitempty"`
}

// Recorded reports whether this entry is backed by a stored dose record
// (as opposed to an implicit pending placeholder).
func (d *DoseForDay) Recorded() bool {
	return d.RecordID != nil
}

// MissedDose describes one critical dose that is overdue past its grace delay
type MissedDose struct {
	MedicationID   uuid.UUID `json:"medication_id"`
	MedicationName string    `json:"medication_name"`
	ScheduledTime  string    `json:"scheduled_time"`
	MinutesLate    int       `json:"minutes_late"`
}

// DaySummary aggregates dose outcomes for one calendar date.
// Rate is round(100 * Taken / Total), or 0 when Total is 0.
type DaySummary struct {
	Date      string `json:"date"`
	Total     int    `json:"total"`
	Taken     int    `json:"taken"`
	Pending   int    `json:"pending"`
	Skipped   int    `json:"skipped"`
	Postponed int    `json:"postponed"`
	Rate      int    `json:"rate"`
}

// WeeklyPoint is one day's adherence rate in a weekly series
type WeeklyPoint struct {
	Date string `json:"date"`
	Rate int    `json:"rate"`
}
