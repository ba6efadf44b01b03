package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates the tables the scheduler owns.  The doctors table is
// normally provisioned by the profile service; it is created here only
// when missing so a fresh database is usable.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS doctors (
        id            BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        user_id       BIGINT UNSIGNED NOT NULL,
        name          VARCHAR(255) NOT NULL DEFAULT '',
        avg_rating    DOUBLE NOT NULL DEFAULT 0,
        total_reviews INT UNSIGNED NOT NULL DEFAULT 0,
        updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        UNIQUE KEY uq_doctors_user (user_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS weekly_availability (
        id           BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        doctor_id    BIGINT UNSIGNED NOT NULL,
        weekday      TINYINT UNSIGNED NOT NULL,
        start_minute SMALLINT UNSIGNED NOT NULL,
        end_minute   SMALLINT UNSIGNED NOT NULL,
        slot_minutes SMALLINT UNSIGNED NOT NULL,
        timezone     VARCHAR(64) NOT NULL DEFAULT 'UTC',
        KEY idx_availability_doctor_weekday (doctor_id, weekday),
        CONSTRAINT chk_availability_weekday CHECK (weekday <= 6),
        CONSTRAINT chk_availability_interval CHECK (start_minute < end_minute AND end_minute <= 1440),
        CONSTRAINT chk_availability_slot CHECK (slot_minutes > 0)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS appointments (
        id              BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        doctor_id       BIGINT UNSIGNED NOT NULL,
        patient_user_id BIGINT UNSIGNED NOT NULL,
        appt_date       DATE NOT NULL,
        start_minute    SMALLINT UNSIGNED NOT NULL,
        status          ENUM('BOOKED','CANCELLED','COMPLETED') NOT NULL DEFAULT 'BOOKED',
        serial_number   INT UNSIGNED NOT NULL,
        rating          TINYINT UNSIGNED NULL,
        review          TEXT NULL,
        reviewed_at     DATETIME NULL,
        created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
        active_slot     TINYINT AS (IF(status = 'CANCELLED', NULL, 1)) STORED,
        UNIQUE KEY uq_appointments_active_slot (doctor_id, appt_date, start_minute, active_slot),
        UNIQUE KEY uq_appointments_serial (doctor_id, appt_date, serial_number),
        KEY idx_appointments_patient (patient_user_id, appt_date),
        KEY idx_appointments_rated (doctor_id, rating),
        CONSTRAINT chk_appointments_rating CHECK (rating IS NULL OR rating BETWEEN 1 AND 5)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS day_counters (
        doctor_id    BIGINT UNSIGNED NOT NULL,
        counter_date DATE NOT NULL,
        next_serial  INT UNSIGNED NOT NULL,
        PRIMARY KEY (doctor_id, counter_date)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  Every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
