package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/medtrack/adherence-service/internal/core/domain"
)

// logMedicationEvent logs structured JSON for medication lifecycle events
func logMedicationEvent(m *domain.Medication, event string) {
	entry := map[string]interface{}{
		"event":         event,
		"medication_id": m.ID.String(),
		"user_id":       m.UserID.String(),
		"name":          m.Name,
		"status":        string(m.Status),
		"stock":         m.Stock,
		"is_critical":   m.IsCritical,
		"updated_at":    m.UpdatedAt.Format(time.RFC3339),
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Failed to marshal medication log entry: %v", err)
		return
	}
	log.Printf("%s", string(jsonBytes))
}

// logDoseEvent logs structured JSON for dose record events
func logDoseEvent(r *domain.DoseRecord, event string) {
	entry := map[string]interface{}{
		"event":          event,
		"record_id":      r.ID.String(),
		"medication_id":  r.MedicationID.String(),
		"user_id":        r.UserID.String(),
		"date":           r.Date,
		"scheduled_time": r.ScheduledTime,
		"status":         string(r.Status),
	}
	if r.ActualTime != nil {
		entry["actual_time"] = r.ActualTime.Format(time.RFC3339)
	}
	if r.Notes != "" {
		entry["notes"] = r.Notes
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		log.Printf("Failed to marshal dose log entry: %v", err)
		return
	}
	log.Printf("%s", string(jsonBytes))
}
