package domain

import (
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
)

// ErrMedicationNotFound is returned when an operation references a
// medication id that is not present in the engine's collection.
var ErrMedicationNotFound = errors.New("medication not found")

// Layouts for the wall-clock strings the engine computes over.
// Dates and times of day are kept as zero-padded strings so that
// lexicographic order equals chronological order.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// MedicationStatus represents the lifecycle status of a medication
type MedicationStatus string

const (
	MedicationStatusActive    MedicationStatus = "active"
	MedicationStatusInactive  MedicationStatus = "inactive"
	MedicationStatusSuspended MedicationStatus = "suspended"
)

// FrequencyType describes how a medication's schedule was entered.
// It is descriptive metadata only: Schedules is the single source of
// truth for occurrence times regardless of frequency type.
type FrequencyType string

const (
	FrequencyTimesPerDay   FrequencyType = "times_per_day"
	FrequencyEveryNHours   FrequencyType = "every_n_hours"
	FrequencyExplicitTimes FrequencyType = "explicit_times"
)

// Defaults applied when a medication is created without explicit values
const (
	DefaultLowStockThreshold  = 5
	DefaultCriticalAlertDelay = 60 // minutes of grace before a missed critical dose alerts
)

// Medication represents a recurring treatment definition for a user.
// Ownership is enforced via UserID from JWT claims.
type Medication struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"user_id"`
	Name           string           `json:"name"`
	Dose           float64          `json:"dose"`
	DoseUnit       string           `json:"dose_unit"`
	FrequencyType  FrequencyType    `json:"frequency_type"`
	FrequencyValue int              `json:"frequency_value"`
	Schedules      []string         `json:"schedules"`          // HH:MM, unique, sorted ascending
	StartDate      string           `json:"start_date"`         // YYYY-MM-DD, inclusive
	EndDate        string           `json:"end_date,omitempty"` // YYYY-MM-DD, inclusive; empty means open-ended
	Status         MedicationStatus `json:"status"`

	// Inventory fields
	Stock             int       `json:"stock"`
	StockUnit         string    `json:"stock_unit"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LastStockUpdate   time.Time `json:"last_stock_update"`

	// Criticality
	IsCritical         bool `json:"is_critical"`
	CriticalAlertDelay int  `json:"critical_alert_delay"` // minutes

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ActiveOn reports whether the medication is active on the given date
// (YYYY-MM-DD). A medication is active iff its status is active,
// StartDate <= date, and EndDate is empty or date <= EndDate.
// Zero-padded date strings compare correctly with string comparison.
func (m *Medication) ActiveOn(date string) bool {
	if m.Status != MedicationStatusActive {
		return false
	}
	if m.StartDate == "" || date < m.StartDate {
		return false
	}
	if m.EndDate != "" && date > m.EndDate {
		return false
	}
	return true
}

// SortedSchedules returns a copy of the schedule times sorted ascending.
// HH:MM strings are zero-padded so lexicographic order is chronological.
func (m *Medication) SortedSchedules() []string {
	times := make([]string, len(m.Schedules))
	copy(times, m.Schedules)
	sort.Strings(times)
	return times
}

// StockUnitsPerDose returns how many inventory units one confirmed dose
// consumes. Dose is a numeric quantity (e.g. 1.5 tablets); stock is kept
// as whole units, so fractional doses round half up and never consume
// less than one unit.
func (m *Medication) StockUnitsPerDose() int {
	units := int(m.Dose + 0.5)
	if units < 1 {
		units = 1
	}
	return units
}

// IsLowStock reports the "low" inventory condition: some stock left but
// at or below the threshold. Empty (stock == 0) is a distinct condition,
// see IsOutOfStock.
func (m *Medication) IsLowStock() bool {
	return m.Stock > 0 && m.Stock <= m.LowStockThreshold
}

// IsOutOfStock reports the "empty" inventory condition.
func (m *Medication) IsOutOfStock() bool {
	return m.Stock == 0
}

// StockAlertWorthy reports whether the current stock level should raise
// a low-stock event. Both low and empty are alert-worthy; consumers can
// distinguish the two via IsOutOfStock.
func (m *Medication) StockAlertWorthy() bool {
	return m.Stock <= m.LowStockThreshold
}

// GraceDelayMinutes returns the configured critical alert delay,
// falling back to the default when unset.
func (m *Medication) GraceDelayMinutes() int {
	if m.CriticalAlertDelay <= 0 {
		return DefaultCriticalAlertDelay
	}
	return m.CriticalAlertDelay
}

// ValidMedicationStatuses returns all valid medication statuses
func ValidMedicationStatuses() []MedicationStatus {
	return []MedicationStatus{
		MedicationStatusActive,
		MedicationStatusInactive,
		MedicationStatusSuspended,
	}
}

// IsValidMedicationStatus checks if a medication status is valid
func IsValidMedicationStatus(status MedicationStatus) bool {
	for _, s := range ValidMedicationStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// ValidFrequencyTypes returns all valid frequency types
func ValidFrequencyTypes() []FrequencyType {
	return []FrequencyType{
		FrequencyTimesPerDay,
		FrequencyEveryNHours,
		FrequencyExplicitTimes,
	}
}

// IsValidFrequencyType checks if a frequency type is valid
func IsValidFrequencyType(ft FrequencyType) bool {
	for _, t := range ValidFrequencyTypes() {
		if t == ft {
			return true
		}
	}
	return false
}

// IsValidDate checks that a string is a well-formed YYYY-MM-DD date
func IsValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// IsValidTimeOfDay checks that a string is a well-formed zero-padded HH:MM time
func IsValidTimeOfDay(t string) bool {
	if len(t) != len(TimeLayout) {
		return false
	}
	_, err := time.Parse(TimeLayout, t)
	return err == nil
}

// DateOf formats a timestamp as the engine's YYYY-MM-DD date string,
// in the timestamp's own location (local wall-clock semantics).
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}

// NormalizeSchedules de-duplicates and sorts a list of HH:MM times.
// Returns an error if any entry is malformed.
func NormalizeSchedules(times []string) ([]string, error) {
	seen := make(map[string]bool, len(times))
	out := make([]string, 0, len(times))
	for _, t := range times {
		if !IsValidTimeOfDay(t) {
			return nil, errors.New("invalid schedule time: " + t + " (expected HH:MM)")
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}
