package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-service/internal/core/domain"
	"github.com/medtrack/adherence-service/internal/core/engine"
	"github.com/medtrack/adherence-service/internal/core/ports"
)

// DoseService implements business logic for dose recording, day views,
// adherence reporting, and the missed-dose sweep. It decides when alert
// events fire; delivery is the dispatcher's problem.
type DoseService struct {
	medRepo        ports.MedicationRepository
	doseRepo       ports.DoseRecordRepository
	sessions       *SessionManager
	alertPublisher ports.AlertPublisher
}

// NewDoseService creates a new dose service
func NewDoseService(
	medRepo ports.MedicationRepository,
	doseRepo ports.DoseRecordRepository,
	sessions *SessionManager,
	alertPublisher ports.AlertPublisher,
) *DoseService {
	return &DoseService{
		medRepo:        medRepo,
		doseRepo:       doseRepo,
		sessions:       sessions,
		alertPublisher: alertPublisher,
	}
}

// RecordDose records or updates the outcome of one dose occurrence and
// writes the record (and any stock change) through to the repositories.
// When confirming a dose leaves the medication at or below its low
// stock threshold, a low_stock event is published asynchronously so the
// response never waits on the broker.
func (s *DoseService) RecordDose(ctx context.Context, userID uuid.UUID, req ports.RecordDoseRequest) (*domain.DoseRecord, error) {
	status := domain.DoseStatus(req.Status)
	if !domain.IsValidDoseStatus(status) {
		return nil, fmt.Errorf("invalid dose status: %s", req.Status)
	}

	var tr *engine.DoseTransition
	err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		m, ok := eng.Medication(req.MedicationID)
		if !ok || m.UserID != userID {
			return domain.ErrMedicationNotFound
		}

		t, err := eng.RecordOrUpdateDose(req.MedicationID, req.Date, req.ScheduledTime, status, req.Notes)
		if err != nil {
			return err
		}
		tr = t

		if err := s.doseRepo.UpsertDoseRecord(ctx, t.Record); err != nil {
			return fmt.Errorf("failed to save dose record: %w", err)
		}
		if t.StockChanged {
			if err := s.medRepo.UpdateMedicationStock(ctx, t.Medication.ID, t.Medication.Stock, t.Medication.LastStockUpdate); err != nil {
				return fmt.Errorf("failed to save stock: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		// A write-through failure after the engine already applied the
		// transition would leave the session ahead of the repository; a
		// retry against that session would then skip the stock write
		// entirely. Drop the session so the next access reloads from
		// the repository instead.
		if tr != nil {
			s.sessions.Invalidate(userID)
		}
		return nil, err
	}

	logDoseEvent(tr.Record, "dose_recorded")

	// A confirmation that depleted inventory to the threshold (or to
	// empty) raises a low-stock event for the caregiver dispatcher.
	if tr.StockChanged && tr.Record.Status == domain.DoseStatusTaken && tr.Medication.StockAlertWorthy() {
		med := tr.Medication
		go func() {
			bgCtx := context.Background()
			event := &domain.AlertEvent{
				Type:         domain.AlertTypeLowStock,
				UserID:       userID,
				MedicationID: med.ID,
				Payload: map[string]interface{}{
					"medication_name": med.Name,
					"remaining":       med.Stock,
					"threshold":       med.LowStockThreshold,
					"empty":           med.IsOutOfStock(),
				},
				Timestamp: time.Now(),
				Severity:  "warning",
			}
			if err := s.alertPublisher.PublishAlert(bgCtx, event); err != nil {
				log.Printf("Failed to publish low stock alert: %v", err)
				return
			}
			alertsPublishedTotal.WithLabelValues(string(domain.AlertTypeLowStock)).Inc()
		}()
	}

	return tr.Record, nil
}

// DosesForDate returns the full day view for a date
func (s *DoseService) DosesForDate(ctx context.Context, userID uuid.UUID, date string) ([]domain.DoseForDay, error) {
	if !domain.IsValidDate(date) {
		return nil, fmt.Errorf("invalid date: %s (expected YYYY-MM-DD)", date)
	}
	var doses []domain.DoseForDay
	err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		doses = eng.DosesForDate(date)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doses, nil
}

// DaySummary returns per-day adherence counts and rate
func (s *DoseService) DaySummary(ctx context.Context, userID uuid.UUID, date string) (domain.DaySummary, error) {
	if !domain.IsValidDate(date) {
		return domain.DaySummary{}, fmt.Errorf("invalid date: %s (expected YYYY-MM-DD)", date)
	}
	var summary domain.DaySummary
	err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		summary = eng.DaySummary(date)
		return nil
	})
	if err != nil {
		return domain.DaySummary{}, err
	}
	return summary, nil
}

// WeeklySeries returns seven per-day rate points ending today
func (s *DoseService) WeeklySeries(ctx context.Context, userID uuid.UUID) ([]domain.WeeklyPoint, error) {
	var points []domain.WeeklyPoint
	err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		points = eng.WeeklySeries(domain.DateOf(time.Now()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return points, nil
}

// RollingRate returns the adherence rate over the last N days ending today
func (s *DoseService) RollingRate(ctx context.Context, userID uuid.UUID, days int) (int, error) {
	if days <= 0 {
		return 0, fmt.Errorf("days must be greater than 0")
	}
	var rate int
	err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		rate = eng.RollingRate(days, domain.DateOf(time.Now()))
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rate, nil
}

// RunMissedDoseSweep evaluates every user with critical medications and
// publishes one missed_dose event per overdue occurrence. The sweep is
// read-only against engine state; repeated sweeps over the same state
// re-emit the same events and de-duplication is the dispatcher's job.
func (s *DoseService) RunMissedDoseSweep(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()
	defer func() {
		sweepDuration.Observe(time.Since(start).Seconds())
	}()

	userIDs, err := s.medRepo.ListUserIDsWithCriticalMedications(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users for sweep: %w", err)
	}

	published := 0
	for _, userID := range userIDs {
		var missed []domain.MissedDose
		err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
			missed = eng.CheckMissedDoses(now)
			return nil
		})
		if err != nil {
			// One user's bad session must not stop the sweep for the rest
			log.Printf("Missed dose sweep skipped user %s: %v", userID, err)
			continue
		}

		for _, md := range missed {
			event := &domain.AlertEvent{
				Type:         domain.AlertTypeMissedDose,
				UserID:       userID,
				MedicationID: md.MedicationID,
				Payload: map[string]interface{}{
					"medication_name": md.MedicationName,
					"scheduled_time":  md.ScheduledTime,
					"minutes_late":    md.MinutesLate,
				},
				Timestamp: now,
				Severity:  "critical",
			}
			if err := s.alertPublisher.PublishAlert(ctx, event); err != nil {
				log.Printf("Failed to publish missed dose alert for %s: %v", md.MedicationID, err)
				continue
			}
			alertsPublishedTotal.WithLabelValues(string(domain.AlertTypeMissedDose)).Inc()
			missedDosesDetectedTotal.Inc()
			published++
		}
	}

	sweepsTotal.Inc()
	return published, nil
}

// PublishPanic raises a panic event for the user through the alert pipe
func (s *DoseService) PublishPanic(ctx context.Context, userID uuid.UUID, note string) error {
	event := &domain.AlertEvent{
		Type:      domain.AlertTypePanic,
		UserID:    userID,
		Payload:   map[string]interface{}{"note": note},
		Timestamp: time.Now(),
		Severity:  "critical",
	}
	if err := s.alertPublisher.PublishAlert(ctx, event); err != nil {
		return fmt.Errorf("failed to publish panic alert: %w", err)
	}
	alertsPublishedTotal.WithLabelValues(string(domain.AlertTypePanic)).Inc()
	return nil
}
