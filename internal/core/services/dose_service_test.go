package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/adherence-service/internal/core/domain"
	"github.com/medtrack/adherence-service/internal/core/ports"
	"github.com/medtrack/adherence-service/internal/core/services"
)

func newDoseServiceUnderTest() (*services.DoseService, *MockMedicationRepository, *MockDoseRecordRepository, *MockAlertPublisher) {
	medRepo := new(MockMedicationRepository)
	doseRepo := new(MockDoseRecordRepository)
	publisher := new(MockAlertPublisher)
	sessions := services.NewSessionManager(medRepo, doseRepo)
	svc := services.NewDoseService(medRepo, doseRepo, sessions, publisher)
	return svc, medRepo, doseRepo, publisher
}

func activeMedication(userID uuid.UUID) *domain.Medication {
	return &domain.Medication{
		ID:                 uuid.New(),
		UserID:             userID,
		Name:               "Aspirin",
		Dose:               1,
		FrequencyType:      domain.FrequencyExplicitTimes,
		Schedules:          []string{"08:00", "20:00"},
		StartDate:          "2026-01-01",
		Status:             domain.MedicationStatusActive,
		Stock:              30,
		LowStockThreshold:  5,
		CriticalAlertDelay: 60,
	}
}

func TestDoseService_RecordDose_PersistsRecordAndStock(t *testing.T) {
	svc, medRepo, doseRepo, _ := newDoseServiceUnderTest()

	userID := uuid.New()
	med := activeMedication(userID)
	expectSessionLoad(medRepo, doseRepo, userID, []*domain.Medication{med}, nil)

	doseRepo.On("UpsertDoseRecord", mock.Anything, mock.MatchedBy(func(r *domain.DoseRecord) bool {
		return r.MedicationID == med.ID && r.Status == domain.DoseStatusTaken
	})).Return(nil)
	medRepo.On("UpdateMedicationStock", mock.Anything, med.ID, 29, mock.AnythingOfType("time.Time")).Return(nil)

	record, err := svc.RecordDose(context.Background(), userID, ports.RecordDoseRequest{
		MedicationID:  med.ID,
		Date:          "2026-03-15",
		ScheduledTime: "08:00",
		Status:        "taken",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DoseStatusTaken, record.Status)
	assert.Equal(t, "2026-03-15", record.Date)
	assert.Equal(t, "08:00", record.ScheduledTime)
	doseRepo.AssertExpectations(t)
	medRepo.AssertExpectations(t)
}

func TestDoseService_RecordDose_InvalidStatus(t *testing.T) {
	svc, _, _, _ := newDoseServiceUnderTest()

	_, err := svc.RecordDose(context.Background(), uuid.New(), ports.RecordDoseRequest{
		MedicationID:  uuid.New(),
		Date:          "2026-03-15",
		ScheduledTime: "08:00",
		Status:        "eaten",
	})
	assert.Error(t, err)
}

func TestDoseService_RecordDose_ForeignMedication(t *testing.T) {
	svc, medRepo, doseRepo, _ := newDoseServiceUnderTest()

	owner := uuid.New()
	other := uuid.New()
	med := activeMedication(owner)

	// The other user's session simply doesn't contain the medication
	expectSessionLoad(medRepo, doseRepo, other, nil, nil)

	_, err := svc.RecordDose(context.Background(), other, ports.RecordDoseRequest{
		MedicationID:  med.ID,
		Date:          "2026-03-15",
		ScheduledTime: "08:00",
		Status:        "taken",
	})
	assert.ErrorIs(t, err, domain.ErrMedicationNotFound)
	doseRepo.AssertNotCalled(t, "UpsertDoseRecord", mock.Anything, mock.Anything)
}

func TestDoseService_RecordDose_PublishesLowStockAlert(t *testing.T) {
	svc, medRepo, doseRepo, publisher := newDoseServiceUnderTest()

	userID := uuid.New()
	med := activeMedication(userID)
	med.Stock = 6 // this confirmation lands exactly on the threshold
	expectSessionLoad(medRepo, doseRepo, userID, []*domain.Medication{med}, nil)

	doseRepo.On("UpsertDoseRecord", mock.Anything, mock.Anything).Return(nil)
	medRepo.On("UpdateMedicationStock", mock.Anything, med.ID, 5, mock.AnythingOfType("time.Time")).Return(nil)

	published := make(chan struct{})
	publisher.On("PublishAlert", mock.Anything, mock.MatchedBy(func(e *domain.AlertEvent) bool {
		return e.Type == domain.AlertTypeLowStock && e.MedicationID == med.ID && e.UserID == userID
	})).Run(func(mock.Arguments) { close(published) }).Return(nil)

	_, err := svc.RecordDose(context.Background(), userID, ports.RecordDoseRequest{
		MedicationID:  med.ID,
		Date:          "2026-03-15",
		ScheduledTime: "08:00",
		Status:        "taken",
	})
	require.NoError(t, err)

	select {
	case <-published:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a low stock alert to be published")
	}
}

func TestDoseService_RecordDose_NoAlertAboveThreshold(t *testing.T) {
	svc, medRepo, doseRepo, publisher := newDoseServiceUnderTest()

	userID := uuid.New()
	med := activeMedication(userID)
	med.Stock = 30
	expectSessionLoad(medRepo, doseRepo, userID, []*domain.Medication{med}, nil)

	doseRepo.On("UpsertDoseRecord", mock.Anything, mock.Anything).Return(nil)
	medRepo.On("UpdateMedicationStock", mock.Anything, med.ID, 29, mock.AnythingOfType("time.Time")).Return(nil)

	_, err := svc.RecordDose(context.Background(), userID, ports.RecordDoseRequest{
		MedicationID:  med.ID,
		Date:          "2026-03-15",
		ScheduledTime: "08:00",
		Status:        "taken",
	})
	require.NoError(t, err)

	publisher.AssertNotCalled(t, "PublishAlert", mock.Anything, mock.Anything)
}

func TestDoseService_RecordDose_RetryAfterWriteFailureStillDeductsStock(t *testing.T) {
	svc, medRepo, doseRepo, _ := newDoseServiceUnderTest()

	userID := uuid.New()
	med := activeMedication(userID)

	req := ports.RecordDoseRequest{
		MedicationID:  med.ID,
		Date:          "2026-03-15",
		ScheduledTime: "08:00",
		Status:        "taken",
	}

	// First attempt: the record write fails after the session already
	// applied the transition.
	expectSessionLoad(medRepo, doseRepo, userID, []*domain.Medication{med}, nil)
	doseRepo.On("UpsertDoseRecord", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	_, err := svc.RecordDose(context.Background(), userID, req)
	require.Error(t, err)
	medRepo.AssertNotCalled(t, "UpdateMedicationStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything)

	// The failure dropped the session, so the retry reloads from the
	// repository, which never saw the record or the deduction.
	reloaded := activeMedication(userID)
	reloaded.ID = med.ID
	expectSessionLoad(medRepo, doseRepo, userID, []*domain.Medication{reloaded}, nil)
	doseRepo.On("UpsertDoseRecord", mock.Anything, mock.MatchedBy(func(r *domain.DoseRecord) bool {
		return r.MedicationID == med.ID && r.Status == domain.DoseStatusTaken
	})).Return(nil).Once()
	medRepo.On("UpdateMedicationStock", mock.Anything, med.ID, 29, mock.AnythingOfType("time.Time")).Return(nil).Once()

	record, err := svc.RecordDose(context.Background(), userID, req)
	require.NoError(t, err)

	assert.Equal(t, domain.DoseStatusTaken, record.Status)
	doseRepo.AssertExpectations(t)
	medRepo.AssertExpectations(t)
}

func TestDoseService_DosesForDate_InvalidDate(t *testing.T) {
	svc, _, _, _ := newDoseServiceUnderTest()

	_, err := svc.DosesForDate(context.Background(), uuid.New(), "15/03/2026")
	assert.Error(t, err)
}

func TestDoseService_DaySummary(t *testing.T) {
	svc, medRepo, doseRepo, _ := newDoseServiceUnderTest()

	userID := uuid.New()
	med := activeMedication(userID)
	records := []*domain.DoseRecord{
		{
			ID:            uuid.New(),
			MedicationID:  med.ID,
			UserID:        userID,
			Date:          "2026-03-15",
			ScheduledTime: "08:00",
			Status:        domain.DoseStatusTaken,
		},
	}
	expectSessionLoad(medRepo, doseRepo, userID, []*domain.Medication{med}, records)

	summary, err := svc.DaySummary(context.Background(), userID, "2026-03-15")
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Taken)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 50, summary.Rate)
}

func TestDoseService_RollingRate_InvalidDays(t *testing.T) {
	svc, _, _, _ := newDoseServiceUnderTest()

	_, err := svc.RollingRate(context.Background(), uuid.New(), 0)
	assert.Error(t, err)
}

func TestDoseService_RunMissedDoseSweep_PublishesAlerts(t *testing.T) {
	svc, medRepo, doseRepo, publisher := newDoseServiceUnderTest()

	userID := uuid.New()
	med := activeMedication(userID)
	med.IsCritical = true
	med.Schedules = []string{"08:00"}

	medRepo.On("ListUserIDsWithCriticalMedications", mock.Anything).Return([]uuid.UUID{userID}, nil)
	expectSessionLoad(medRepo, doseRepo, userID, []*domain.Medication{med}, nil)
	publisher.On("PublishAlert", mock.Anything, mock.MatchedBy(func(e *domain.AlertEvent) bool {
		return e.Type == domain.AlertTypeMissedDose && e.MedicationID == med.ID
	})).Return(nil)

	now, err := time.ParseInLocation("2006-01-02 15:04", "2026-03-15 10:00", time.Local)
	require.NoError(t, err)

	published, err := svc.RunMissedDoseSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	publisher.AssertExpectations(t)
}

func TestDoseService_RunMissedDoseSweep_SkipsBadUser(t *testing.T) {
	svc, medRepo, doseRepo, publisher := newDoseServiceUnderTest()

	badUser := uuid.New()
	goodUser := uuid.New()

	med := activeMedication(goodUser)
	med.IsCritical = true
	med.Schedules = []string{"08:00"}

	medRepo.On("ListUserIDsWithCriticalMedications", mock.Anything).Return([]uuid.UUID{badUser, goodUser}, nil)
	medRepo.On("ListMedicationsByUser", mock.Anything, badUser).Return(nil, assert.AnError)
	expectSessionLoad(medRepo, doseRepo, goodUser, []*domain.Medication{med}, nil)
	publisher.On("PublishAlert", mock.Anything, mock.Anything).Return(nil)

	now, err := time.ParseInLocation("2006-01-02 15:04", "2026-03-15 10:00", time.Local)
	require.NoError(t, err)

	// One user failing to load must not abort the sweep for the rest
	published, err := svc.RunMissedDoseSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
}

func TestDoseService_PublishPanic(t *testing.T) {
	svc, _, _, publisher := newDoseServiceUnderTest()

	userID := uuid.New()
	publisher.On("PublishAlert", mock.Anything, mock.MatchedBy(func(e *domain.AlertEvent) bool {
		return e.Type == domain.AlertTypePanic && e.UserID == userID && e.Payload["note"] == "help"
	})).Return(nil)

	err := svc.PublishPanic(context.Background(), userID, "help")
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestDoseService_PublishPanic_PublisherError(t *testing.T) {
	svc, _, _, publisher := newDoseServiceUnderTest()

	publisher.On("PublishAlert", mock.Anything, mock.Anything).Return(assert.AnError)

	err := svc.PublishPanic(context.Background(), uuid.New(), "")
	assert.Error(t, err)
}
