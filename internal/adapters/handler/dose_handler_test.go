package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/adherence-service/internal/adapters/handler"
	"github.com/medtrack/adherence-service/internal/adapters/middleware"
	"github.com/medtrack/adherence-service/internal/core/domain"
	"github.com/medtrack/adherence-service/internal/core/ports"
)

// MockDoseService is a mock implementation of ports.DoseService
type MockDoseService struct {
	mock.Mock
}

func (m *MockDoseService) RecordDose(ctx context.Context, userID uuid.UUID, req ports.RecordDoseRequest) (*domain.DoseRecord, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DoseRecord), args.Error(1)
}

func (m *MockDoseService) DosesForDate(ctx context.Context, userID uuid.UUID, date string) ([]domain.DoseForDay, error) {
	args := m.Called(ctx, userID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DoseForDay), args.Error(1)
}

func (m *MockDoseService) DaySummary(ctx context.Context, userID uuid.UUID, date string) (domain.DaySummary, error) {
	args := m.Called(ctx, userID, date)
	return args.Get(0).(domain.DaySummary), args.Error(1)
}

func (m *MockDoseService) WeeklySeries(ctx context.Context, userID uuid.UUID) ([]domain.WeeklyPoint, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.WeeklyPoint), args.Error(1)
}

func (m *MockDoseService) RollingRate(ctx context.Context, userID uuid.UUID, days int) (int, error) {
	args := m.Called(ctx, userID, days)
	return args.Int(0), args.Error(1)
}

func (m *MockDoseService) RunMissedDoseSweep(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

func (m *MockDoseService) PublishPanic(ctx context.Context, userID uuid.UUID, note string) error {
	args := m.Called(ctx, userID, note)
	return args.Error(0)
}

func TestDoseHandler_DosesForDate_ExplicitDate(t *testing.T) {
	mockService := new(MockDoseService)
	h := handler.NewDoseHandler(mockService)

	userID := uuid.New()
	doses := []domain.DoseForDay{
		{MedicationName: "Aspirin", Date: "2026-03-15", ScheduledTime: "08:00", Status: domain.DoseStatusPending},
	}
	mockService.On("DosesForDate", mock.Anything, userID, "2026-03-15").Return(doses, nil)

	req := authenticatedRequest("GET", "/doses?date=2026-03-15", nil, userID, middleware.RolePatient)
	w := httptest.NewRecorder()

	h.DosesForDate(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response []domain.DoseForDay
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)
	require.Len(t, response, 1)
	assert.Equal(t, "Aspirin", response[0].MedicationName)
}

func TestDoseHandler_DosesForDate_DefaultsToToday(t *testing.T) {
	mockService := new(MockDoseService)
	h := handler.NewDoseHandler(mockService)

	userID := uuid.New()
	today := domain.DateOf(time.Now())
	mockService.On("DosesForDate", mock.Anything, userID, today).Return([]domain.DoseForDay{}, nil)

	req := authenticatedRequest("GET", "/doses", nil, userID, middleware.RolePatient)
	w := httptest.NewRecorder()

	h.DosesForDate(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestDoseHandler_DosesForDate_InvalidDate(t *testing.T) {
	mockService := new(MockDoseService)
	h := handler.NewDoseHandler(mockService)

	userID := uuid.New()
	mockService.On("DosesForDate", mock.Anything, userID, "15/03/2026").Return(nil, assert.AnError)

	req := authenticatedRequest("GET", "/doses?date=15/03/2026", nil, userID, middleware.RolePatient)
	w := httptest.NewRecorder()

	h.DosesForDate(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDoseHandler_RecordDose_Success(t *testing.T) {
	mockService := new(MockDoseService)
	h := handler.NewDoseHandler(mockService)

	userID := uuid.New()
	medicationID := uuid.New()
	record := &domain.DoseRecord{
		ID:            uuid.New(),
		MedicationID:  medicationID,
		UserID:        userID,
		Date:          "2026-03-15",
		ScheduledTime: "08:00",
		Status:        domain.DoseStatusTaken,
	}
	mockService.On("RecordDose", mock.Anything, userID, mock.MatchedBy(func(r ports.RecordDoseRequest) bool {
		return r.MedicationID == medicationID && r.Status == "taken" && r.Date == "2026-03-15"
	})).Return(record, nil)

	body, _ := json.Marshal(ports.RecordDoseRequest{
		MedicationID:  medicationID,
		Date:          "2026-03-15",
		ScheduledTime: "08:00",
		Status:        "taken",
	})
	req := authenticatedRequest("POST", "/doses", body, userID, middleware.RolePatient)
	w := httptest.NewRecorder()

	h.RecordDose(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response domain.DoseRecord
	err := json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)
	assert.Equal(t, record.ID, response.ID)
	assert.Equal(t, domain.DoseStatusTaken, response.Status)
}

func TestDoseHandler_RecordDose_DateDefaultsToToday(t *testing.T) {
	mockService := new(MockDoseService)
	h := handler.NewDoseHandler(mockService)

	userID := uuid.New()
	medicationID := uuid.New()
	today := domain.DateOf(time.Now())

	mockService.On("RecordDose", mock.Anything, userID, mock.MatchedBy(func(r ports.RecordDoseRequest) bool {
		return r.Date == today
	})).Return(&domain.DoseRecord{ID: uuid.New()}, nil)

	body, _ := json.Marshal(ports.RecordDoseRequest{
		MedicationID:  medicationID,
		ScheduledTime: "08:00",
		Status:        "taken",
	})
	req := authenticatedRequest("POST", "/doses", body, userID, middleware.RolePatient)
	w := httptest.NewRecorder()

	h.RecordDose(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockService.AssertExpectations(t)
}

func TestDoseHandler_RecordDose_NotFound(t *testing.T) {
	mockService := new(MockDoseService)
	h := handler.NewDoseHandler(mockService)

	userID := uuid.New()
	mockService.On("RecordDose", mock.Anything, userID, mock.Anything).Return(nil, domain.ErrMedicationNotFound)

	body, _ := json.Marshal(ports.RecordDoseRequest{
		MedicationID:  uuid.New(),
		Date:          "2026-03-15",
		ScheduledTime: "08:00",
		Status:        "taken",
	})
	req := authenticatedRequest("POST", "/doses", body, userID, middleware.RolePatient)
	w := httptest.NewRecorder()

	h.RecordDose(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDoseHandler_RecordDose_InvalidBody(t *testing.T) {
	mockService := new(MockDoseService)
	h := handler.NewDoseHandler(mockService)

	req := authenticatedRequest("POST", "/doses", []byte("{oops"), uuid.New(), middleware.RolePatient)
	w := httptest.NewRecorder()

	h.RecordDose(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockService.AssertNotCalled(t, "RecordDose", mock.Anything, mock.Anything, mock.Anything)
}
