package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-service/internal/core/domain"
)

// MedicationRepository defines the interface for medication persistence
type MedicationRepository interface {
	// CreateMedication stores a new medication definition
	CreateMedication(ctx context.Context, med *domain.Medication) error

	// GetMedicationByID retrieves a medication by id
	GetMedicationByID(ctx context.Context, medicationID uuid.UUID) (*domain.Medication, error)

	// ListMedicationsByUser retrieves all medications owned by a user
	ListMedicationsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Medication, error)

	// UpdateMedication replaces a medication definition in place
	UpdateMedication(ctx context.Context, med *domain.Medication) error

	// UpdateMedicationStock persists just the inventory fields after a
	// stock mutation (dose confirmation, manual adjust, absolute set)
	UpdateMedicationStock(ctx context.Context, medicationID uuid.UUID, stock int, lastStockUpdate time.Time) error

	// ListUserIDsWithCriticalMedications returns the users whose active
	// medications include at least one marked critical. Used by the
	// periodic missed-dose sweep to know which sessions to evaluate.
	ListUserIDsWithCriticalMedications(ctx context.Context) ([]uuid.UUID, error)
}

// DoseRecordRepository defines the interface for dose record persistence
type DoseRecordRepository interface {
	// UpsertDoseRecord stores or replaces the record for one dose
	// occurrence, keyed by (medication_id, date, scheduled_time)
	UpsertDoseRecord(ctx context.Context, record *domain.DoseRecord) error

	// ListDoseRecordsByUser retrieves all dose records owned by a user
	ListDoseRecordsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.DoseRecord, error)
}

// AlertPublisher defines the interface for handing alert events to the
// caregiver alert dispatcher
type AlertPublisher interface {
	// PublishAlert publishes a missed-dose, low-stock, or panic event
	PublishAlert(ctx context.Context, event *domain.AlertEvent) error
}
