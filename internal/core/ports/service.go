package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-service/internal/core/domain"
)

// MedicationService defines the business logic interface for medication
// definition and inventory operations
type MedicationService interface {
	// CreateMedication creates a medication for the authenticated user.
	// Validates input and applies defaults (threshold, alert delay).
	CreateMedication(ctx context.Context, userID uuid.UUID, req MedicationRequest) (*domain.Medication, error)

	// GetMedication retrieves one medication.
	// Enforces ownership: users only see their own medications.
	GetMedication(ctx context.Context, medicationID uuid.UUID, userID uuid.UUID) (*domain.Medication, error)

	// ListMedications retrieves all medications owned by the user
	ListMedications(ctx context.Context, userID uuid.UUID) ([]*domain.Medication, error)

	// UpdateMedication replaces a medication definition.
	// Enforces ownership.
	UpdateMedication(ctx context.Context, medicationID uuid.UUID, userID uuid.UUID, req MedicationRequest) (*domain.Medication, error)

	// DeactivateMedication marks a medication inactive. Dose history is kept.
	DeactivateMedication(ctx context.Context, medicationID uuid.UUID, userID uuid.UUID) error

	// SetStock sets absolute stock, clamped non-negative
	SetStock(ctx context.Context, medicationID uuid.UUID, userID uuid.UUID, quantity int) (*domain.Medication, error)

	// AdjustStock applies a relative stock change ("add" or "subtract"),
	// clamped non-negative
	AdjustStock(ctx context.Context, medicationID uuid.UUID, userID uuid.UUID, quantity int, direction string) (*domain.Medication, error)

	// LowStockMedications returns the user's active medications with
	// 0 < stock <= low stock threshold
	LowStockMedications(ctx context.Context, userID uuid.UUID) ([]*domain.Medication, error)

	// SyncUpsertMedication creates or replaces a medication pushed by
	// the companion sync service (RabbitMQ consumer path)
	SyncUpsertMedication(ctx context.Context, userID uuid.UUID, req MedicationRequest, medicationID uuid.UUID) (*domain.Medication, error)
}

// DoseService defines the business logic interface for dose recording,
// day views, adherence reporting, and the missed-dose sweep
type DoseService interface {
	// RecordDose records or updates the outcome of one dose occurrence.
	// Confirming a dose as taken deducts inventory once and may publish
	// a low-stock alert.
	RecordDose(ctx context.Context, userID uuid.UUID, req RecordDoseRequest) (*domain.DoseRecord, error)

	// DosesForDate returns the full day view for a date (YYYY-MM-DD)
	DosesForDate(ctx context.Context, userID uuid.UUID, date string) ([]domain.DoseForDay, error)

	// DaySummary returns per-day adherence counts and rate
	DaySummary(ctx context.Context, userID uuid.UUID, date string) (domain.DaySummary, error)

	// WeeklySeries returns seven per-day rate points ending today
	WeeklySeries(ctx context.Context, userID uuid.UUID) ([]domain.WeeklyPoint, error)

	// RollingRate returns the adherence rate over the last N days
	RollingRate(ctx context.Context, userID uuid.UUID, days int) (int, error)

	// RunMissedDoseSweep evaluates every user with critical medications
	// and publishes a missed_dose event per overdue occurrence.
	// Returns the number of events published.
	RunMissedDoseSweep(ctx context.Context, now time.Time) (int, error)

	// PublishPanic raises a panic event for the user through the alert pipe
	PublishPanic(ctx context.Context, userID uuid.UUID, note string) error
}

// MedicationRequest represents the input for creating or updating a medication
type MedicationRequest struct {
	Name               string   `json:"name"`
	Dose               float64  `json:"dose"`
	DoseUnit           string   `json:"dose_unit"`
	FrequencyType      string   `json:"frequency_type"`
	FrequencyValue     int      `json:"frequency_value"`
	Schedules          []string `json:"schedules"`
	StartDate          string   `json:"start_date"`
	EndDate            string   `json:"end_date,omitempty"`
	Status             string   `json:"status,omitempty"`
	Stock              *int     `json:"stock,omitempty"`
	StockUnit          string   `json:"stock_unit,omitempty"`
	LowStockThreshold  *int     `json:"low_stock_threshold,omitempty"`
	IsCritical         bool     `json:"is_critical"`
	CriticalAlertDelay *int     `json:"critical_alert_delay,omitempty"`
}

// RecordDoseRequest represents the input for recording a dose outcome
type RecordDoseRequest struct {
	MedicationID  uuid.UUID `json:"medication_id"`
	Date          string    `json:"date"`           // YYYY-MM-DD, defaults to today at the handler
	ScheduledTime string    `json:"scheduled_time"` // HH:MM
	Status        string    `json:"status"`         // pending, taken, skipped, postponed
	Notes         string    `json:"notes,omitempty"`
}
