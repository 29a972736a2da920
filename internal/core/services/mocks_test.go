package services_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/medtrack/adherence-service/internal/core/domain"
)

// MockMedicationRepository is a mock implementation of ports.MedicationRepository
type MockMedicationRepository struct {
	mock.Mock
}

func (m *MockMedicationRepository) CreateMedication(ctx context.Context, med *domain.Medication) error {
	args := m.Called(ctx, med)
	return args.Error(0)
}

func (m *MockMedicationRepository) GetMedicationByID(ctx context.Context, medicationID uuid.UUID) (*domain.Medication, error) {
	args := m.Called(ctx, medicationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Medication), args.Error(1)
}

func (m *MockMedicationRepository) ListMedicationsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Medication, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Medication), args.Error(1)
}

func (m *MockMedicationRepository) UpdateMedication(ctx context.Context, med *domain.Medication) error {
	args := m.Called(ctx, med)
	return args.Error(0)
}

func (m *MockMedicationRepository) UpdateMedicationStock(ctx context.Context, medicationID uuid.UUID, stock int, lastStockUpdate time.Time) error {
	args := m.Called(ctx, medicationID, stock, lastStockUpdate)
	return args.Error(0)
}

func (m *MockMedicationRepository) ListUserIDsWithCriticalMedications(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockDoseRecordRepository is a mock implementation of ports.DoseRecordRepository
type MockDoseRecordRepository struct {
	mock.Mock
}

func (m *MockDoseRecordRepository) UpsertDoseRecord(ctx context.Context, record *domain.DoseRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockDoseRecordRepository) ListDoseRecordsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.DoseRecord, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DoseRecord), args.Error(1)
}

// MockAlertPublisher is a mock implementation of ports.AlertPublisher
type MockAlertPublisher struct {
	mock.Mock
}

func (m *MockAlertPublisher) PublishAlert(ctx context.Context, event *domain.AlertEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
