package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/hrakoto/vola/internal/common"
	"github.com/hrakoto/vola/internal/model"
)

const contributionColumns = `id, member_id, payment_date, period, amount, recorded_year`

// RecordContribution stores a payment for a member. The recorded year is
// derived from the payment date inside the same transaction, never supplied
// by the caller.
//
// Recording against a closed year is accepted: the row is stored and a
// warning is logged, but the frozen total of the closed year is untouched.
func (s *SQLiteStorage) RecordContribution(ctx context.Context, input model.ContributionInput) (*model.Contribution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	contribution, err := s.recordContributionTx(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("recorded contribution",
		"id", contribution.ID,
		"member_id", contribution.MemberID,
		"year", contribution.RecordedYear,
		"amount", contribution.Amount.String())
	return contribution, nil
}

func (s *SQLiteStorage) recordContributionTx(ctx context.Context, tx *sql.Tx, input model.ContributionInput) (*model.Contribution, error) {
	if err := validateID(input.MemberID, "memberID"); err != nil {
		return nil, err
	}
	if err := validateString(input.Period, "period"); err != nil {
		return nil, fmt.Errorf("%w: period is required", common.ErrValidation)
	}

	amount, err := parseAmount(input.Amount)
	if err != nil {
		return nil, err
	}

	recordedYear, err := model.YearOfPaymentDate(input.PaymentDate)
	if err != nil {
		return nil, fmt.Errorf("%w: payment date %q must be YYYY-MM-DD", common.ErrValidation, input.PaymentDate)
	}

	var memberExists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM members WHERE id = ?`, input.MemberID).Scan(&memberExists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: member %d", common.ErrUnknownMember, input.MemberID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check member: %w", err)
	}

	if closed, err := s.yearClosedTx(ctx, tx, recordedYear); err != nil {
		return nil, err
	} else if closed {
		slog.Warn("recording contribution against a closed year; frozen total is unchanged",
			"year", recordedYear, "member_id", input.MemberID, "amount", amount.String())
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO contributions (member_id, payment_date, period, amount, recorded_year)
		VALUES (?, ?, ?, ?, ?)`,
		input.MemberID, input.PaymentDate, input.Period, amount.String(), recordedYear,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert contribution: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get contribution ID: %w", err)
	}

	return &model.Contribution{
		ID:           id,
		MemberID:     input.MemberID,
		PaymentDate:  input.PaymentDate,
		Period:       input.Period,
		Amount:       amount,
		RecordedYear: recordedYear,
	}, nil
}

// CorrectContribution applies corrections to an existing contribution.
// A changed payment date re-derives the recorded year in the same operation,
// so the denormalized year never goes stale.
func (s *SQLiteStorage) CorrectContribution(ctx context.Context, id int64, update model.ContributionUpdate) (*model.Contribution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	contribution, err := s.correctContributionTx(ctx, tx, id, update)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("corrected contribution", "id", id, "year", contribution.RecordedYear)
	return contribution, nil
}

func (s *SQLiteStorage) correctContributionTx(ctx context.Context, tx *sql.Tx, id int64, update model.ContributionUpdate) (*model.Contribution, error) {
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	current, err := s.getContributionTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if update.PaymentDate != nil {
		year, err := model.YearOfPaymentDate(*update.PaymentDate)
		if err != nil {
			return nil, fmt.Errorf("%w: payment date %q must be YYYY-MM-DD", common.ErrValidation, *update.PaymentDate)
		}
		current.PaymentDate = *update.PaymentDate
		current.RecordedYear = year
	}
	if update.Period != nil {
		if err := validateString(*update.Period, "period"); err != nil {
			return nil, fmt.Errorf("%w: period is required", common.ErrValidation)
		}
		current.Period = *update.Period
	}
	if update.Amount != nil {
		amount, err := parseAmount(*update.Amount)
		if err != nil {
			return nil, err
		}
		current.Amount = amount
	}

	if closed, err := s.yearClosedTx(ctx, tx, current.RecordedYear); err != nil {
		return nil, err
	} else if closed {
		slog.Warn("correcting contribution in a closed year; frozen total is unchanged",
			"id", id, "year", current.RecordedYear)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE contributions
		SET payment_date = ?, period = ?, amount = ?, recorded_year = ?
		WHERE id = ?`,
		current.PaymentDate, current.Period, current.Amount.String(), current.RecordedYear, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update contribution: %w", err)
	}

	return current, nil
}

// RemoveContribution deletes a single contribution.
func (s *SQLiteStorage) RemoveContribution(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.removeContributionTx(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("removed contribution", "id", id)
	return nil
}

func (s *SQLiteStorage) removeContributionTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM contributions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contribution: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: contribution %d", common.ErrNotFound, id)
	}
	return nil
}

// SumForYear returns the exact decimal sum of all contributions recorded for
// the given year. The fold happens over stored decimal strings; binary
// floating point is never involved.
func (s *SQLiteStorage) SumForYear(ctx context.Context, year int) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}
	return s.sumForYearTx(ctx, s.db, year)
}

func (s *SQLiteStorage) sumForYearTx(ctx context.Context, q dbtx, year int) (decimal.Decimal, error) {
	rows, err := q.QueryContext(ctx, `SELECT amount FROM contributions WHERE recorded_year = ?`, year)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to query amounts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, fmt.Errorf("corrupt amount %q for year %d: %w", amount, year, err)
		}
		total = total.Add(d)
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("error iterating amounts: %w", err)
	}
	return total, nil
}

// ListContributionsForMember returns a member's contributions, newest first.
func (s *SQLiteStorage) ListContributionsForMember(ctx context.Context, memberID int64) ([]model.Contribution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listContributionsForMemberTx(ctx, s.db, memberID)
}

func (s *SQLiteStorage) listContributionsForMemberTx(ctx context.Context, q dbtx, memberID int64) ([]model.Contribution, error) {
	if err := validateID(memberID, "memberID"); err != nil {
		return nil, err
	}
	return s.queryContributions(ctx, q,
		`SELECT `+contributionColumns+` FROM contributions WHERE member_id = ? ORDER BY payment_date DESC`,
		memberID)
}

// ListContributionsForYear returns all contributions recorded for a year,
// newest first.
func (s *SQLiteStorage) ListContributionsForYear(ctx context.Context, year int) ([]model.Contribution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listContributionsForYearTx(ctx, s.db, year)
}

func (s *SQLiteStorage) listContributionsForYearTx(ctx context.Context, q dbtx, year int) ([]model.Contribution, error) {
	return s.queryContributions(ctx, q,
		`SELECT `+contributionColumns+` FROM contributions WHERE recorded_year = ? ORDER BY payment_date DESC`,
		year)
}

// ListContributionsForYearWithMember returns a year's contributions joined
// with member names, oldest first. This is the archive display order.
func (s *SQLiteStorage) ListContributionsForYearWithMember(ctx context.Context, year int) ([]model.ContributionWithMember, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listContributionsForYearWithMemberTx(ctx, s.db, year)
}

func (s *SQLiteStorage) listContributionsForYearWithMemberTx(ctx context.Context, q dbtx, year int) ([]model.ContributionWithMember, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT c.id, c.member_id, m.full_name, c.payment_date, c.period, c.amount, c.recorded_year
		FROM contributions c
		JOIN members m ON m.id = c.member_id
		WHERE c.recorded_year = ?
		ORDER BY c.payment_date ASC`,
		year,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contributions []model.ContributionWithMember
	for rows.Next() {
		var (
			c      model.ContributionWithMember
			amount string
		)
		if err := rows.Scan(&c.ID, &c.MemberID, &c.MemberName, &c.PaymentDate, &c.Period, &amount, &c.RecordedYear); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		c.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for contribution %d: %w", c.ID, err)
		}
		contributions = append(contributions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contributions: %w", err)
	}
	return contributions, nil
}

func (s *SQLiteStorage) getContributionTx(ctx context.Context, q dbtx, id int64) (*model.Contribution, error) {
	var (
		c      model.Contribution
		amount string
	)
	err := q.QueryRowContext(ctx,
		`SELECT `+contributionColumns+` FROM contributions WHERE id = ?`, id,
	).Scan(&c.ID, &c.MemberID, &c.PaymentDate, &c.Period, &amount, &c.RecordedYear)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: contribution %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query contribution: %w", err)
	}

	c.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount for contribution %d: %w", id, err)
	}
	return &c, nil
}

func (s *SQLiteStorage) queryContributions(ctx context.Context, q dbtx, query string, args ...any) ([]model.Contribution, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contributions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var contributions []model.Contribution
	for rows.Next() {
		var (
			c      model.Contribution
			amount string
		)
		if err := rows.Scan(&c.ID, &c.MemberID, &c.PaymentDate, &c.Period, &amount, &c.RecordedYear); err != nil {
			return nil, fmt.Errorf("failed to scan contribution: %w", err)
		}
		c.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount for contribution %d: %w", c.ID, err)
		}
		contributions = append(contributions, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contributions: %w", err)
	}
	return contributions, nil
}
