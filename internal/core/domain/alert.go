package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertType represents the kind of event handed to the alert dispatcher
type AlertType string

const (
	AlertTypeMissedDose AlertType = "missed_dose"
	AlertTypeLowStock   AlertType = "low_stock"
	AlertTypePanic      AlertType = "panic"
)

// AlertEvent carries the triggering facts for the caregiver alert
// dispatcher. Caregiver targeting, message templating, and delivery
// transport are the dispatcher's responsibility; the engine only
// decides when an event fires.
type AlertEvent struct {
	Type         AlertType              `json:"type"`
	UserID       uuid.UUID              `json:"user_id"`
	MedicationID uuid.UUID              `json:"medication_id,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	Timestamp    time.Time              `json:"timestamp"`
	Severity     string                 `json:"severity"`
}
