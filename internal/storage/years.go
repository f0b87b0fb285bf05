package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hrakoto/vola/internal/common"
	"github.com/hrakoto/vola/internal/model"
)

// GetYearSummary returns the summary for a year. A closed year returns its
// frozen snapshot; an open year is synthesized live from the ledger and is
// never persisted by a read.
func (s *SQLiteStorage) GetYearSummary(ctx context.Context, year int) (*model.YearSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getYearSummaryTx(ctx, s.db, year)
}

func (s *SQLiteStorage) getYearSummaryTx(ctx context.Context, q dbtx, year int) (*model.YearSummary, error) {
	stored, err := s.storedYearSummaryTx(ctx, q, year)
	if err != nil {
		return nil, err
	}
	if stored != nil && stored.Closed() {
		return stored, nil
	}

	// Open year: the effective total is always recomputed from the ledger.
	total, err := s.sumForYearTx(ctx, q, year)
	if err != nil {
		return nil, err
	}
	return &model.YearSummary{Year: year, Total: total}, nil
}

// ListYearSummaries returns one summary per year that has either contributions
// or a stored summary row, newest year first. Closed years carry their frozen
// totals; open years are recomputed live.
func (s *SQLiteStorage) ListYearSummaries(ctx context.Context) ([]model.YearSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listYearSummariesTx(ctx, s.db)
}

func (s *SQLiteStorage) listYearSummariesTx(ctx context.Context, q dbtx) ([]model.YearSummary, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT year FROM year_summaries
		UNION
		SELECT DISTINCT recorded_year FROM contributions
		ORDER BY year DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query years: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var years []int
	for rows.Next() {
		var year int
		if err := rows.Scan(&year); err != nil {
			return nil, fmt.Errorf("failed to scan year: %w", err)
		}
		years = append(years, year)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating years: %w", err)
	}

	summaries := make([]model.YearSummary, 0, len(years))
	for _, year := range years {
		summary, err := s.getYearSummaryTx(ctx, q, year)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, *summary)
	}
	return summaries, nil
}

// CloseYear freezes a year: it computes the ledger total at this instant,
// persists it with a closing timestamp, and stores the note. Computing the
// sum and persisting the snapshot happen in one transaction, so a concurrent
// record can never be half-counted.
func (s *SQLiteStorage) CloseYear(ctx context.Context, year int, note string) (*model.YearSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	summary, err := s.closeYearTx(ctx, tx, year, note)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("closed year", "year", year, "total", summary.Total.String())
	return summary, nil
}

func (s *SQLiteStorage) closeYearTx(ctx context.Context, tx *sql.Tx, year int, note string) (*model.YearSummary, error) {
	stored, err := s.storedYearSummaryTx(ctx, tx, year)
	if err != nil {
		return nil, err
	}
	if stored != nil && stored.Closed() {
		return nil, fmt.Errorf("%w: %d", common.ErrAlreadyClosed, year)
	}

	total, err := s.sumForYearTx(ctx, tx, year)
	if err != nil {
		return nil, err
	}

	if note == "" {
		note = defaultClosingNote(year, total)
	}
	closedAt := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO year_summaries (year, total, closed_at, note)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(year) DO UPDATE SET
			total = excluded.total,
			closed_at = excluded.closed_at,
			note = excluded.note`,
		year, total.String(), closedAt, note,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to persist year summary: %w", err)
	}

	return &model.YearSummary{
		Year:     year,
		Total:    total,
		ClosedAt: &closedAt,
		Note:     note,
	}, nil
}

// ReopenYear reverts a closed year to live computation. The frozen total and
// note are discarded; subsequent reads recompute from the ledger until the
// year is closed again.
func (s *SQLiteStorage) ReopenYear(ctx context.Context, year int) (*model.YearSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	summary, err := s.reopenYearTx(ctx, tx, year)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("reopened year", "year", year)
	return summary, nil
}

func (s *SQLiteStorage) reopenYearTx(ctx context.Context, tx *sql.Tx, year int) (*model.YearSummary, error) {
	stored, err := s.storedYearSummaryTx(ctx, tx, year)
	if err != nil {
		return nil, err
	}
	if stored == nil || !stored.Closed() {
		return nil, fmt.Errorf("%w: %d", common.ErrNotClosed, year)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE year_summaries SET closed_at = NULL, note = NULL WHERE year = ?`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to reopen year: %w", err)
	}

	total, err := s.sumForYearTx(ctx, tx, year)
	if err != nil {
		return nil, err
	}
	return &model.YearSummary{Year: year, Total: total}, nil
}

// CloseRolledOverYear closes the previous calendar year with a generated note
// if it is still open. It returns (nil, nil) when the year is already closed.
// Called at startup so a year never silently stays open after rollover.
func (s *SQLiteStorage) CloseRolledOverYear(ctx context.Context) (*model.YearSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	summary, err := s.closeRolledOverYearTx(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	if summary != nil {
		slog.Info("auto-closed rolled-over year", "year", summary.Year, "total", summary.Total.String())
	}
	return summary, nil
}

func (s *SQLiteStorage) closeRolledOverYearTx(ctx context.Context, tx *sql.Tx) (*model.YearSummary, error) {
	prevYear := time.Now().Year() - 1

	closed, err := s.yearClosedTx(ctx, tx, prevYear)
	if err != nil {
		return nil, err
	}
	if closed {
		return nil, nil
	}

	return s.closeYearTx(ctx, tx, prevYear, "")
}

// storedYearSummaryTx returns the persisted summary row for a year, or nil
// when no row exists.
func (s *SQLiteStorage) storedYearSummaryTx(ctx context.Context, q dbtx, year int) (*model.YearSummary, error) {
	var (
		summary  model.YearSummary
		total    string
		closedAt sql.NullTime
		note     sql.NullString
	)
	err := q.QueryRowContext(ctx,
		`SELECT year, total, closed_at, note FROM year_summaries WHERE year = ?`, year,
	).Scan(&summary.Year, &total, &closedAt, &note)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query year summary: %w", err)
	}

	summary.Total, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("corrupt total for year %d: %w", year, err)
	}
	if closedAt.Valid {
		t := closedAt.Time
		summary.ClosedAt = &t
	}
	summary.Note = note.String
	return &summary, nil
}

// yearClosedTx reports whether a year has a closed summary row.
func (s *SQLiteStorage) yearClosedTx(ctx context.Context, q dbtx, year int) (bool, error) {
	stored, err := s.storedYearSummaryTx(ctx, q, year)
	if err != nil {
		return false, err
	}
	return stored != nil && stored.Closed(), nil
}

// defaultClosingNote builds the standard closing annotation, with the total's
// integer part grouped in thousands: "CONTRIBUTIONS for year 2024 / TOTAL: 1 234 567 Ariary".
func defaultClosingNote(year int, total decimal.Decimal) string {
	return fmt.Sprintf("CONTRIBUTIONS for year %d / TOTAL: %s", year, formatAriary(total))
}

// formatAriary renders a decimal as a space-grouped Ariary amount, integer
// part only.
func formatAriary(total decimal.Decimal) string {
	n := total.String()
	integerPart := n
	for i := 0; i < len(n); i++ {
		if n[i] == '.' {
			integerPart = n[:i]
			break
		}
	}

	grouped := make([]byte, 0, len(integerPart)+len(integerPart)/3)
	for i := 0; i < len(integerPart); i++ {
		if i > 0 && (len(integerPart)-i)%3 == 0 {
			grouped = append(grouped, ' ')
		}
		grouped = append(grouped, integerPart[i])
	}
	return string(grouped) + " Ariary"
}
