package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS members (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					card_number TEXT UNIQUE NOT NULL,
					full_name TEXT NOT NULL,
					address TEXT,
					phone TEXT,
					job TEXT,
					gender TEXT NOT NULL DEFAULT 'M',
					member_type TEXT NOT NULL DEFAULT 'Communicant',
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_members_type ON members(member_type)`,

				`CREATE TABLE IF NOT EXISTS contributions (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					member_id INTEGER NOT NULL REFERENCES members(id) ON DELETE CASCADE,
					payment_date TEXT NOT NULL,
					period TEXT NOT NULL,
					amount TEXT NOT NULL DEFAULT '0',
					recorded_year INTEGER NOT NULL
				)`,
				`CREATE INDEX idx_contributions_member ON contributions(member_id)`,
				`CREATE INDEX idx_contributions_year ON contributions(recorded_year)`,

				`CREATE TABLE IF NOT EXISTS year_summaries (
					year INTEGER PRIMARY KEY,
					total TEXT NOT NULL DEFAULT '0',
					closed_at DATETIME
				)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add note column to year_summaries",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`ALTER TABLE year_summaries ADD COLUMN note TEXT`)
			if err != nil {
				return fmt.Errorf("failed to add note column: %w", err)
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Repair recorded_year values that drifted from payment_date",
		Up: func(tx *sql.Tx) error {
			// Early builds let the frontend supply recorded_year directly.
			// Re-derive it from payment_date so the aggregation key is trustworthy.
			result, err := tx.Exec(`
				UPDATE contributions
				SET recorded_year = CAST(strftime('%Y', payment_date) AS INTEGER)
				WHERE recorded_year != CAST(strftime('%Y', payment_date) AS INTEGER)
			`)
			if err != nil {
				return fmt.Errorf("failed to repair recorded_year: %w", err)
			}

			repaired, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if repaired > 0 {
				slog.Info("repaired stale recorded_year values", "count", repaired)
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// Update version
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	// Verify we're at the expected schema version
	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
