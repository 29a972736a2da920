package engine_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medtrack/adherence-service/internal/core/domain"
	"github.com/medtrack/adherence-service/internal/core/engine"
)

func newTestMedication(name string, schedules []string) *domain.Medication {
	return &domain.Medication{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		Name:               name,
		Dose:               1,
		DoseUnit:           "tablet",
		FrequencyType:      domain.FrequencyExplicitTimes,
		Schedules:          schedules,
		StartDate:          "2026-01-01",
		Status:             domain.MedicationStatusActive,
		Stock:              30,
		LowStockThreshold:  domain.DefaultLowStockThreshold,
		CriticalAlertDelay: domain.DefaultCriticalAlertDelay,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
}

func newTestEngine(meds ...*domain.Medication) *engine.Engine {
	e := engine.New()
	for _, m := range meds {
		e.UpsertMedication(m)
	}
	return e
}

func TestProjectDay_ActiveMedication(t *testing.T) {
	m := newTestMedication("Aspirin", []string{"20:00", "08:00"})

	times := engine.ProjectDay(m, "2026-03-15")
	assert.Equal(t, []string{"08:00", "20:00"}, times)
}

func TestProjectDay_InactiveStatus(t *testing.T) {
	m := newTestMedication("Aspirin", []string{"08:00"})
	m.Status = domain.MedicationStatusInactive

	assert.Nil(t, engine.ProjectDay(m, "2026-03-15"))
}

func TestProjectDay_BeforeStartDate(t *testing.T) {
	m := newTestMedication("Aspirin", []string{"08:00"})
	m.StartDate = "2026-03-16"

	assert.Nil(t, engine.ProjectDay(m, "2026-03-15"))
}

func TestProjectDay_AfterEndDate(t *testing.T) {
	m := newTestMedication("Aspirin", []string{"08:00"})
	m.EndDate = "2026-03-14"

	assert.Nil(t, engine.ProjectDay(m, "2026-03-15"))
}

func TestProjectDay_EndDateInclusive(t *testing.T) {
	m := newTestMedication("Aspirin", []string{"08:00"})
	m.EndDate = "2026-03-15"

	assert.Equal(t, []string{"08:00"}, engine.ProjectDay(m, "2026-03-15"))
}

func TestProjectDay_NoSchedules(t *testing.T) {
	m := newTestMedication("Aspirin", nil)

	assert.Nil(t, engine.ProjectDay(m, "2026-03-15"))
}

func TestDosesForDate_ImplicitPending(t *testing.T) {
	m := newTestMedication("Aspirin", []string{"08:00", "20:00"})
	e := newTestEngine(m)

	doses := e.DosesForDate("2026-03-15")
	require.Len(t, doses, 2)

	for _, d := range doses {
		assert.Equal(t, domain.DoseStatusPending, d.Status)
		assert.Nil(t, d.RecordID)
		assert.False(t, d.Recorded())
	}
	assert.Equal(t, "08:00", doses[0].ScheduledTime)
	assert.Equal(t, "20:00", doses[1].ScheduledTime)
}

func TestDosesForDate_JoinsStoredRecord(t *testing.T) {
	m := newTestMedication("Aspirin", []string{"08:00", "20:00"})
	e := newTestEngine(m)

	_, err := e.RecordOrUpdateDose(m.ID, "2026-03-15", "08:00", domain.DoseStatusTaken, "with breakfast")
	require.NoError(t, err)

	doses := e.DosesForDate("2026-03-15")
	require.Len(t, doses, 2)

	assert.Equal(t, domain.DoseStatusTaken, doses[0].Status)
	assert.NotNil(t, doses[0].RecordID)
	assert.True(t, doses[0].Recorded())
	assert.Equal(t, "with breakfast", doses[0].Notes)

	assert.Equal(t, domain.DoseStatusPending, doses[1].Status)
	assert.Nil(t, doses[1].RecordID)
}

func TestDosesForDate_SortedByTimeThenName(t *testing.T) {
	a := newTestMedication("Zinc", []string{"08:00"})
	b := newTestMedication("Aspirin", []string{"08:00", "12:00"})
	e := newTestEngine(a, b)

	doses := e.DosesForDate("2026-03-15")
	require.Len(t, doses, 3)

	assert.Equal(t, "Aspirin", doses[0].MedicationName)
	assert.Equal(t, "08:00", doses[0].ScheduledTime)
	assert.Equal(t, "Zinc", doses[1].MedicationName)
	assert.Equal(t, "08:00", doses[1].ScheduledTime)
	assert.Equal(t, "Aspirin", doses[2].MedicationName)
	assert.Equal(t, "12:00", doses[2].ScheduledTime)
}

func TestDosesForDate_Deterministic(t *testing.T) {
	a := newTestMedication("Zinc", []string{"08:00", "20:00"})
	b := newTestMedication("Aspirin", []string{"08:00"})
	e := newTestEngine(a, b)

	first := e.DosesForDate("2026-03-15")
	second := e.DosesForDate("2026-03-15")
	assert.Equal(t, first, second)
}

func TestDosesForDate_ExcludesInactiveMedications(t *testing.T) {
	active := newTestMedication("Aspirin", []string{"08:00"})
	inactive := newTestMedication("Old Med", []string{"09:00"})
	inactive.Status = domain.MedicationStatusInactive
	e := newTestEngine(active, inactive)

	doses := e.DosesForDate("2026-03-15")
	require.Len(t, doses, 1)
	assert.Equal(t, "Aspirin", doses[0].MedicationName)
}

func TestEngine_Load_ReplacesState(t *testing.T) {
	old := newTestMedication("Old", []string{"08:00"})
	e := newTestEngine(old)

	replacement := newTestMedication("New", []string{"09:00"})
	e.Load([]*domain.Medication{replacement}, nil)

	_, ok := e.Medication(old.ID)
	assert.False(t, ok)
	_, ok = e.Medication(replacement.ID)
	assert.True(t, ok)
}

func TestEngine_RemoveMedication_KeepsRecords(t *testing.T) {
	m := newTestMedication("Aspirin", []string{"08:00"})
	e := newTestEngine(m)

	_, err := e.RecordOrUpdateDose(m.ID, "2026-03-15", "08:00", domain.DoseStatusTaken, "")
	require.NoError(t, err)

	e.RemoveMedication(m.ID)

	_, ok := e.Medication(m.ID)
	assert.False(t, ok)
	_, ok = e.Record(m.ID, "2026-03-15", "08:00")
	assert.True(t, ok)
}
