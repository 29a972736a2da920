package config

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"
)

// InitDatabase creates the database schema from scratch
// This is POC-friendly: auto-creates tables on startup
// Set DROP_TABLES_ON_STARTUP=true environment variable to drop existing tables
func InitDatabase(db *sql.DB) error {
	// Only drop tables if explicitly requested (via env var)
	// This prevents accidental data loss on restart
	if os.Getenv("DROP_TABLES_ON_STARTUP") == "true" {
		log.Println("Dropping existing tables (DROP_TABLES_ON_STARTUP=true)...")
		if _, err := db.Exec("DROP TABLE IF EXISTS dose_records CASCADE"); err != nil {
			log.Printf("Warning: Failed to drop dose_records table: %v", err)
		}
		if _, err := db.Exec("DROP TABLE IF EXISTS medications CASCADE"); err != nil {
			log.Printf("Warning: Failed to drop medications table: %v", err)
		}
	} else {
		log.Println("Skipping table drop (set DROP_TABLES_ON_STARTUP=true to drop tables on startup)")
	}

	// Create medications table
	log.Println("Creating medications table...")
	medicationsSchema := `
	CREATE TABLE IF NOT EXISTS medications (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL,
		name TEXT NOT NULL,
		dose NUMERIC NOT NULL,
		dose_unit TEXT,
		frequency_type TEXT NOT NULL,
		frequency_value INTEGER,
		schedules TEXT[] NOT NULL DEFAULT '{}',
		start_date TEXT NOT NULL,
		end_date TEXT,
		status TEXT NOT NULL DEFAULT 'active',
		stock INTEGER NOT NULL DEFAULT 0,
		stock_unit TEXT,
		low_stock_threshold INTEGER NOT NULL DEFAULT 5,
		last_stock_update TIMESTAMP,
		is_critical BOOLEAN NOT NULL DEFAULT false,
		critical_alert_delay INTEGER NOT NULL DEFAULT 60,
		created_at TIMESTAMP DEFAULT now(),
		updated_at TIMESTAMP DEFAULT now(),
		CONSTRAINT chk_medication_status CHECK (status IN ('active', 'inactive', 'suspended')),
		CONSTRAINT chk_stock_non_negative CHECK (stock >= 0)
	);`

	if _, err := db.Exec(medicationsSchema); err != nil {
		return fmt.Errorf("failed to create medications table: %w", err)
	}

	// Create dose_records table
	// One row per recorded occurrence; unrecorded occurrences have no row
	log.Println("Creating dose_records table...")
	doseRecordsSchema := `
	CREATE TABLE IF NOT EXISTS dose_records (
		id UUID PRIMARY KEY,
		medication_id UUID NOT NULL REFERENCES medications(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		date TEXT NOT NULL,
		scheduled_time TEXT NOT NULL,
		status TEXT NOT NULL,
		actual_time TIMESTAMP,
		notes TEXT,
		created_at TIMESTAMP DEFAULT now(),
		updated_at TIMESTAMP DEFAULT now(),
		CONSTRAINT chk_dose_status CHECK (status IN ('pending', 'taken', 'skipped', 'postponed')),
		CONSTRAINT uq_dose_occurrence UNIQUE (medication_id, date, scheduled_time)
	);`

	if _, err := db.Exec(doseRecordsSchema); err != nil {
		return fmt.Errorf("failed to create dose_records table: %w", err)
	}

	// Create indexes
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_medications_user_id ON medications(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_medications_status ON medications(status)",
		"CREATE INDEX IF NOT EXISTS idx_medications_is_critical ON medications(is_critical)",
		"CREATE INDEX IF NOT EXISTS idx_dose_records_user_id ON dose_records(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_dose_records_medication_id ON dose_records(medication_id)",
		"CREATE INDEX IF NOT EXISTS idx_dose_records_date ON dose_records(date)",
	}

	for _, indexSQL := range indexes {
		if _, err := db.Exec(indexSQL); err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
		}
	}

	log.Println("Database schema initialized successfully")
	return nil
}

// ConnectDatabase establishes a connection to PostgreSQL with retry logic
func ConnectDatabase(databaseURL string, maxRetries int, retryDelay time.Duration) (*sql.DB, error) {
	var db *sql.DB
	var err error

	for i := 0; i < maxRetries; i++ {
		db, err = sql.Open("postgres", databaseURL)
		if err != nil {
			log.Printf("Failed to open database connection (attempt %d/%d): %v", i+1, maxRetries, err)
			if i < maxRetries-1 {
				time.Sleep(retryDelay)
				continue
			}
			return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
		}

		// Test the connection
		if err = db.Ping(); err != nil {
			log.Printf("Failed to ping database (attempt %d/%d): %v", i+1, maxRetries, err)
			db.Close()
			if i < maxRetries-1 {
				time.Sleep(retryDelay)
				continue
			}
			return nil, fmt.Errorf("failed to ping database after %d attempts: %w", maxRetries, err)
		}

		// Configure connection pool
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		log.Println("Database connection established successfully")
		return db, nil
	}

	return nil, fmt.Errorf("failed to connect to database: %w", err)
}
