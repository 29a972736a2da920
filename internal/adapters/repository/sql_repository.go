package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sony/gobreaker"

	"github.com/medtrack/adherence-service/internal/core/domain"
	"github.com/medtrack/adherence-service/internal/core/ports"
)

// SQLRepository implements MedicationRepository and DoseRecordRepository
// using PostgreSQL. Includes retry logic and circuit breakers for resilience.
type SQLRepository struct {
	db           *sql.DB
	medicationCB *gobreaker.CircuitBreaker
	doseCB       *gobreaker.CircuitBreaker
	maxRetries   int
	retryDelay   time.Duration
}

// NewSQLRepository creates a new PostgreSQL repository with circuit breakers
func NewSQLRepository(db *sql.DB) *SQLRepository {
	settings := gobreaker.Settings{
		Name:        "database",
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}

	return &SQLRepository{
		db:           db,
		medicationCB: gobreaker.NewCircuitBreaker(settings),
		doseCB:       gobreaker.NewCircuitBreaker(settings),
		maxRetries:   3,
		retryDelay:   1 * time.Second,
	}
}

// executeWithRetry executes a database operation with retry logic
func (r *SQLRepository) executeWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error
	for i := 0; i < r.maxRetries; i++ {
		err := operation()
		if err == nil {
			return nil
		}
		lastErr = err
		// sql.ErrNoRows is not transient, don't retry it
		if errors.Is(err, sql.ErrNoRows) ||
			strings.Contains(strings.ToLower(err.Error()), "no rows") {
			return err
		}
		if i < r.maxRetries-1 {
			time.Sleep(r.retryDelay)
		}
	}
	return fmt.Errorf("operation failed after %d retries: %w", r.maxRetries, lastErr)
}

// MedicationRepository implementation

func (r *SQLRepository) CreateMedication(ctx context.Context, med *domain.Medication) error {
	_, err := r.medicationCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			query := `INSERT INTO medications (
				id, user_id, name, dose, dose_unit, frequency_type, frequency_value,
				schedules, start_date, end_date, status,
				stock, stock_unit, low_stock_threshold, last_stock_update,
				is_critical, critical_alert_delay, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

			_, err := r.db.ExecContext(ctx, query,
				med.ID, med.UserID, med.Name, med.Dose, med.DoseUnit,
				string(med.FrequencyType), med.FrequencyValue,
				pq.Array(med.Schedules), med.StartDate, nullString(med.EndDate),
				string(med.Status),
				med.Stock, med.StockUnit, med.LowStockThreshold, med.LastStockUpdate,
				med.IsCritical, med.CriticalAlertDelay, med.CreatedAt, med.UpdatedAt,
			)
			return err
		})
	})
	return err
}

func (r *SQLRepository) GetMedicationByID(ctx context.Context, medicationID uuid.UUID) (*domain.Medication, error) {
	result, err := r.medicationCB.Execute(func() (interface{}, error) {
		var med *domain.Medication
		err := r.executeWithRetry(ctx, func() error {
			query := selectMedicationColumns + ` FROM medications WHERE id = $1`
			rows, err := r.db.QueryContext(ctx, query, medicationID)
			if err != nil {
				return err
			}
			defer rows.Close()

			if !rows.Next() {
				return sql.ErrNoRows
			}
			med, err = scanMedication(rows)
			return err
		})
		if err != nil {
			return nil, err
		}
		return med, nil
	})

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) ||
			strings.Contains(strings.ToLower(err.Error()), "no rows") {
			return nil, domain.ErrMedicationNotFound
		}
		return nil, err
	}

	return result.(*domain.Medication), nil
}

func (r *SQLRepository) ListMedicationsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Medication, error) {
	result, err := r.medicationCB.Execute(func() (interface{}, error) {
		var meds []*domain.Medication
		err := r.executeWithRetry(ctx, func() error {
			query := selectMedicationColumns + ` FROM medications WHERE user_id = $1 ORDER BY name, id`
			rows, err := r.db.QueryContext(ctx, query, userID)
			if err != nil {
				return err
			}
			defer rows.Close()

			meds = nil
			for rows.Next() {
				m, err := scanMedication(rows)
				if err != nil {
					return err
				}
				meds = append(meds, m)
			}
			return rows.Err()
		})
		if err != nil {
			return nil, err
		}
		return meds, nil
	})

	if err != nil {
		return nil, err
	}

	return result.([]*domain.Medication), nil
}

func (r *SQLRepository) UpdateMedication(ctx context.Context, med *domain.Medication) error {
	_, err := r.medicationCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			query := `UPDATE medications SET
				name = $2, dose = $3, dose_unit = $4, frequency_type = $5, frequency_value = $6,
				schedules = $7, start_date = $8, end_date = $9, status = $10,
				stock = $11, stock_unit = $12, low_stock_threshold = $13, last_stock_update = $14,
				is_critical = $15, critical_alert_delay = $16, updated_at = $17
				WHERE id = $1`

			result, err := r.db.ExecContext(ctx, query,
				med.ID, med.Name, med.Dose, med.DoseUnit,
				string(med.FrequencyType), med.FrequencyValue,
				pq.Array(med.Schedules), med.StartDate, nullString(med.EndDate),
				string(med.Status),
				med.Stock, med.StockUnit, med.LowStockThreshold, med.LastStockUpdate,
				med.IsCritical, med.CriticalAlertDelay, med.UpdatedAt,
			)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return domain.ErrMedicationNotFound
			}
			return nil
		})
	})
	return err
}

func (r *SQLRepository) UpdateMedicationStock(ctx context.Context, medicationID uuid.UUID, stock int, lastStockUpdate time.Time) error {
	_, err := r.medicationCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			query := `UPDATE medications SET stock = $2, last_stock_update = $3, updated_at = $3 WHERE id = $1`
			result, err := r.db.ExecContext(ctx, query, medicationID, stock, lastStockUpdate)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if affected == 0 {
				return domain.ErrMedicationNotFound
			}
			return nil
		})
	})
	return err
}

func (r *SQLRepository) ListUserIDsWithCriticalMedications(ctx context.Context) ([]uuid.UUID, error) {
	result, err := r.medicationCB.Execute(func() (interface{}, error) {
		var userIDs []uuid.UUID
		err := r.executeWithRetry(ctx, func() error {
			query := `SELECT DISTINCT user_id FROM medications WHERE is_critical = true AND status = 'active'`
			rows, err := r.db.QueryContext(ctx, query)
			if err != nil {
				return err
			}
			defer rows.Close()

			userIDs = nil
			for rows.Next() {
				var id uuid.UUID
				if err := rows.Scan(&id); err != nil {
					return err
				}
				userIDs = append(userIDs, id)
			}
			return rows.Err()
		})
		if err != nil {
			return nil, err
		}
		return userIDs, nil
	})

	if err != nil {
		return nil, err
	}

	return result.([]uuid.UUID), nil
}

// DoseRecordRepository implementation

func (r *SQLRepository) UpsertDoseRecord(ctx context.Context, record *domain.DoseRecord) error {
	_, err := r.doseCB.Execute(func() (interface{}, error) {
		return nil, r.executeWithRetry(ctx, func() error {
			// One row per (medication, date, scheduled time); later
			// status changes for the same occurrence update in place.
			query := `INSERT INTO dose_records (
				id, medication_id, user_id, date, scheduled_time, status, actual_time, notes, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (medication_id, date, scheduled_time) DO UPDATE SET
				status = EXCLUDED.status,
				actual_time = EXCLUDED.actual_time,
				notes = EXCLUDED.notes,
				updated_at = EXCLUDED.updated_at`

			_, err := r.db.ExecContext(ctx, query,
				record.ID, record.MedicationID, record.UserID,
				record.Date, record.ScheduledTime, string(record.Status),
				record.ActualTime, nullString(record.Notes),
				record.CreatedAt, record.UpdatedAt,
			)
			return err
		})
	})
	return err
}

func (r *SQLRepository) ListDoseRecordsByUser(ctx context.Context, userID uuid.UUID) ([]*domain.DoseRecord, error) {
	result, err := r.doseCB.Execute(func() (interface{}, error) {
		var records []*domain.DoseRecord
		err := r.executeWithRetry(ctx, func() error {
			query := `SELECT id, medication_id, user_id, date, scheduled_time, status, actual_time, notes, created_at, updated_at
				FROM dose_records WHERE user_id = $1 ORDER BY date, scheduled_time`
			rows, err := r.db.QueryContext(ctx, query, userID)
			if err != nil {
				return err
			}
			defer rows.Close()

			records = nil
			for rows.Next() {
				rec, err := scanDoseRecord(rows)
				if err != nil {
					return err
				}
				records = append(records, rec)
			}
			return rows.Err()
		})
		if err != nil {
			return nil, err
		}
		return records, nil
	})

	if err != nil {
		return nil, err
	}

	return result.([]*domain.DoseRecord), nil
}

const selectMedicationColumns = `SELECT id, user_id, name, dose, dose_unit, frequency_type, frequency_value,
	schedules, start_date, end_date, status,
	stock, stock_unit, low_stock_threshold, last_stock_update,
	is_critical, critical_alert_delay, created_at, updated_at`

// scanMedication scans a medication row from the database
func scanMedication(rows *sql.Rows) (*domain.Medication, error) {
	var m domain.Medication
	var freqType, status string
	var schedules pq.StringArray
	var endDate sql.NullString
	var lastStockUpdate sql.NullTime

	err := rows.Scan(
		&m.ID, &m.UserID, &m.Name, &m.Dose, &m.DoseUnit, &freqType, &m.FrequencyValue,
		&schedules, &m.StartDate, &endDate, &status,
		&m.Stock, &m.StockUnit, &m.LowStockThreshold, &lastStockUpdate,
		&m.IsCritical, &m.CriticalAlertDelay, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.FrequencyType = domain.FrequencyType(freqType)
	m.Status = domain.MedicationStatus(status)
	m.Schedules = []string(schedules)
	if endDate.Valid {
		m.EndDate = endDate.String
	}
	if lastStockUpdate.Valid {
		m.LastStockUpdate = lastStockUpdate.Time
	}

	return &m, nil
}

// scanDoseRecord scans a dose record row from the database
func scanDoseRecord(rows *sql.Rows) (*domain.DoseRecord, error) {
	var rec domain.DoseRecord
	var status string
	var actualTime sql.NullTime
	var notes sql.NullString

	err := rows.Scan(
		&rec.ID, &rec.MedicationID, &rec.UserID, &rec.Date, &rec.ScheduledTime,
		&status, &actualTime, &notes, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.Status = domain.DoseStatus(status)
	if actualTime.Valid {
		t := actualTime.Time
		rec.ActualTime = &t
	}
	if notes.Valid {
		rec.Notes = notes.String
	}

	return &rec, nil
}

// nullString maps an empty string to SQL NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// Ensure SQLRepository implements the interfaces
var _ ports.MedicationRepository = (*SQLRepository)(nil)
var _ ports.DoseRecordRepository = (*SQLRepository)(nil)
