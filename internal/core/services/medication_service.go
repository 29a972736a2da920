package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtrack/adherence-service/internal/core/domain"
	"github.com/medtrack/adherence-service/internal/core/engine"
	"github.com/medtrack/adherence-service/internal/core/ports"
)

// MedicationService implements business logic for medication definition
// and inventory operations. Enforces per-user ownership and keeps the
// in-memory engine session in sync with the persistence layer.
type MedicationService struct {
	medRepo  ports.MedicationRepository
	sessions *SessionManager
}

// NewMedicationService creates a new medication service
func NewMedicationService(medRepo ports.MedicationRepository, sessions *SessionManager) *MedicationService {
	return &MedicationService{
		medRepo:  medRepo,
		sessions: sessions,
	}
}

// CreateMedication creates a medication for the authenticated user
func (s *MedicationService) CreateMedication(ctx context.Context, userID uuid.UUID, req ports.MedicationRequest) (*domain.Medication, error) {
	med, err := buildMedication(uuid.New(), userID, req, time.Now())
	if err != nil {
		return nil, err
	}

	if err := s.medRepo.CreateMedication(ctx, med); err != nil {
		return nil, fmt.Errorf("failed to create medication: %w", err)
	}

	if err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		eng.UpsertMedication(med)
		return nil
	}); err != nil {
		return nil, err
	}

	logMedicationEvent(med, "medication_created")
	return med, nil
}

// GetMedication retrieves one medication, enforcing ownership.
// A medication owned by someone else is reported as not found rather
// than forbidden, so ownership is never leaked.
func (s *MedicationService) GetMedication(ctx context.Context, medicationID uuid.UUID, userID uuid.UUID) (*domain.Medication, error) {
	med, err := s.medRepo.GetMedicationByID(ctx, medicationID)
	if err != nil {
		if errors.Is(err, domain.ErrMedicationNotFound) {
			return nil, domain.ErrMedicationNotFound
		}
		return nil, fmt.Errorf("failed to get medication: %w", err)
	}
	if med.UserID != userID {
		return nil, domain.ErrMedicationNotFound
	}
	return med, nil
}

// ListMedications retrieves all medications owned by the user
func (s *MedicationService) ListMedications(ctx context.Context, userID uuid.UUID) ([]*domain.Medication, error) {
	meds, err := s.medRepo.ListMedicationsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return meds, nil
}

// UpdateMedication replaces a medication definition, enforcing ownership
func (s *MedicationService) UpdateMedication(ctx context.Context, medicationID uuid.UUID, userID uuid.UUID, req ports.MedicationRequest) (*domain.Medication, error) {
	existing, err := s.GetMedication(ctx, medicationID, userID)
	if err != nil {
		return nil, err
	}

	med, err := buildMedication(medicationID, userID, req, time.Now())
	if err != nil {
		return nil, err
	}
	med.CreatedAt = existing.CreatedAt
	// Inventory fields are owned by the stock operations; an update of
	// the definition leaves them untouched unless explicitly supplied.
	if req.Stock == nil {
		med.Stock = existing.Stock
		med.LastStockUpdate = existing.LastStockUpdate
	}
	if req.StockUnit == "" {
		med.StockUnit = existing.StockUnit
	}

	if err := s.medRepo.UpdateMedication(ctx, med); err != nil {
		return nil, fmt.Errorf("failed to update medication: %w", err)
	}

	if err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		eng.UpsertMedication(med)
		return nil
	}); err != nil {
		return nil, err
	}

	logMedicationEvent(med, "medication_updated")
	return med, nil
}

// DeactivateMedication marks a medication inactive. The definition and
// its dose history are kept; it simply stops projecting doses.
func (s *MedicationService) DeactivateMedication(ctx context.Context, medicationID uuid.UUID, userID uuid.UUID) error {
	med, err := s.GetMedication(ctx, medicationID, userID)
	if err != nil {
		return err
	}

	med.Status = domain.MedicationStatusInactive
	med.UpdatedAt = time.Now()

	if err := s.medRepo.UpdateMedication(ctx, med); err != nil {
		return fmt.Errorf("failed to deactivate medication: %w", err)
	}

	if err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		eng.UpsertMedication(med)
		return nil
	}); err != nil {
		return err
	}

	logMedicationEvent(med, "medication_deactivated")
	return nil
}

// SetStock sets absolute stock through the engine (clamped non-negative)
// and writes the result through to the repository
func (s *MedicationService) SetStock(ctx context.Context, medicationID uuid.UUID, userID uuid.UUID, quantity int) (*domain.Medication, error) {
	if _, err := s.GetMedication(ctx, medicationID, userID); err != nil {
		return nil, err
	}

	var med *domain.Medication
	err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		m, err := eng.SetStock(medicationID, quantity)
		if err != nil {
			return err
		}
		med = m
		return s.medRepo.UpdateMedicationStock(ctx, m.ID, m.Stock, m.LastStockUpdate)
	})
	if err != nil {
		// The engine already holds the new quantity; keep the session and
		// the repository from diverging by forcing a reload.
		if med != nil {
			s.sessions.Invalidate(userID)
		}
		return nil, err
	}

	logMedicationEvent(med, "stock_set")
	return med, nil
}

// AdjustStock applies a relative stock change ("add" or "subtract")
// through the engine and writes the result through to the repository
func (s *MedicationService) AdjustStock(ctx context.Context, medicationID uuid.UUID, userID uuid.UUID, quantity int, direction string) (*domain.Medication, error) {
	dir := engine.StockDirection(direction)
	if dir != engine.StockAdd && dir != engine.StockSubtract {
		return nil, fmt.Errorf("invalid stock direction: %s (expected add or subtract)", direction)
	}

	if _, err := s.GetMedication(ctx, medicationID, userID); err != nil {
		return nil, err
	}

	var med *domain.Medication
	err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		m, err := eng.AdjustStock(medicationID, quantity, dir)
		if err != nil {
			return err
		}
		med = m
		return s.medRepo.UpdateMedicationStock(ctx, m.ID, m.Stock, m.LastStockUpdate)
	})
	if err != nil {
		// A retry after a failed write must not re-apply the delta on
		// top of the session's already-adjusted quantity.
		if med != nil {
			s.sessions.Invalidate(userID)
		}
		return nil, err
	}

	logMedicationEvent(med, "stock_adjusted")
	return med, nil
}

// LowStockMedications returns the user's active medications with some
// stock left but at or below their threshold
func (s *MedicationService) LowStockMedications(ctx context.Context, userID uuid.UUID) ([]*domain.Medication, error) {
	var low []*domain.Medication
	err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		low = eng.LowStockMedications()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return low, nil
}

// SyncUpsertMedication creates or replaces a medication pushed by the
// companion sync service. The id comes from the sync message so the
// definition stays stable across devices.
func (s *MedicationService) SyncUpsertMedication(ctx context.Context, userID uuid.UUID, req ports.MedicationRequest, medicationID uuid.UUID) (*domain.Medication, error) {
	med, err := buildMedication(medicationID, userID, req, time.Now())
	if err != nil {
		return nil, err
	}

	existing, err := s.medRepo.GetMedicationByID(ctx, medicationID)
	switch {
	case err == nil:
		if existing.UserID != userID {
			return nil, domain.ErrMedicationNotFound
		}
		med.CreatedAt = existing.CreatedAt
		if err := s.medRepo.UpdateMedication(ctx, med); err != nil {
			return nil, fmt.Errorf("failed to update synced medication: %w", err)
		}
	case errors.Is(err, domain.ErrMedicationNotFound):
		if err := s.medRepo.CreateMedication(ctx, med); err != nil {
			return nil, fmt.Errorf("failed to create synced medication: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to look up synced medication: %w", err)
	}

	if err := s.sessions.WithSession(ctx, userID, func(eng *engine.Engine) error {
		eng.UpsertMedication(med)
		return nil
	}); err != nil {
		return nil, err
	}

	logMedicationEvent(med, "medication_synced")
	return med, nil
}

// buildMedication validates a request and assembles a medication with
// defaults applied
func buildMedication(id uuid.UUID, userID uuid.UUID, req ports.MedicationRequest, now time.Time) (*domain.Medication, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("medication name cannot be empty")
	}
	if req.Dose <= 0 {
		return nil, fmt.Errorf("dose must be greater than 0")
	}

	status := domain.MedicationStatus(req.Status)
	if req.Status == "" {
		status = domain.MedicationStatusActive
	}
	if !domain.IsValidMedicationStatus(status) {
		return nil, fmt.Errorf("invalid medication status: %s", req.Status)
	}

	freqType := domain.FrequencyType(req.FrequencyType)
	if req.FrequencyType == "" {
		freqType = domain.FrequencyExplicitTimes
	}
	if !domain.IsValidFrequencyType(freqType) {
		return nil, fmt.Errorf("invalid frequency type: %s", req.FrequencyType)
	}

	schedules, err := domain.NormalizeSchedules(req.Schedules)
	if err != nil {
		return nil, err
	}
	if status == domain.MedicationStatusActive && len(schedules) == 0 {
		return nil, fmt.Errorf("an active medication needs at least one schedule time")
	}

	if !domain.IsValidDate(req.StartDate) {
		return nil, fmt.Errorf("invalid start date: %s (expected YYYY-MM-DD)", req.StartDate)
	}
	if req.EndDate != "" {
		if !domain.IsValidDate(req.EndDate) {
			return nil, fmt.Errorf("invalid end date: %s (expected YYYY-MM-DD)", req.EndDate)
		}
		if req.EndDate < req.StartDate {
			return nil, fmt.Errorf("end date cannot precede start date")
		}
	}

	stock := 0
	if req.Stock != nil {
		stock = *req.Stock
		if stock < 0 {
			stock = 0
		}
	}

	threshold := domain.DefaultLowStockThreshold
	if req.LowStockThreshold != nil && *req.LowStockThreshold >= 0 {
		threshold = *req.LowStockThreshold
	}

	alertDelay := domain.DefaultCriticalAlertDelay
	if req.CriticalAlertDelay != nil && *req.CriticalAlertDelay > 0 {
		alertDelay = *req.CriticalAlertDelay
	}

	return &domain.Medication{
		ID:                 id,
		UserID:             userID,
		Name:               req.Name,
		Dose:               req.Dose,
		DoseUnit:           req.DoseUnit,
		FrequencyType:      freqType,
		FrequencyValue:     req.FrequencyValue,
		Schedules:          schedules,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
		Status:             status,
		Stock:              stock,
		StockUnit:          req.StockUnit,
		LowStockThreshold:  threshold,
		LastStockUpdate:    now,
		IsCritical:         req.IsCritical,
		CriticalAlertDelay: alertDelay,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}
