package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/hrakoto/vola/internal/common"
	"github.com/hrakoto/vola/internal/model"
	"github.com/hrakoto/vola/internal/service"
)

const memberColumns = `id, card_number, full_name, address, phone, job, gender, member_type, created_at`

// CreateMember registers a new member. The card number must be unique across
// all members; gender and member type fall back to their schema defaults.
func (s *SQLiteStorage) CreateMember(ctx context.Context, input model.MemberInput) (*model.Member, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	member, err := s.createMemberTx(ctx, tx, input)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("registered member", "id", member.ID, "card_number", member.CardNumber)
	return member, nil
}

func (s *SQLiteStorage) createMemberTx(ctx context.Context, tx *sql.Tx, input model.MemberInput) (*model.Member, error) {
	if err := normalizeMemberInput(&input); err != nil {
		return nil, err
	}

	var existingID int64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM members WHERE card_number = ?`, input.CardNumber).Scan(&existingID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %q", common.ErrDuplicateCardNumber, input.CardNumber)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check card number: %w", err)
	}

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO members (card_number, full_name, address, phone, job, gender, member_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		input.CardNumber, input.FullName, input.Address, input.Phone, input.Job,
		string(input.Gender), string(input.MemberType), now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %q", common.ErrDuplicateCardNumber, input.CardNumber)
		}
		return nil, fmt.Errorf("failed to insert member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get member ID: %w", err)
	}

	return &model.Member{
		ID:         id,
		CardNumber: input.CardNumber,
		FullName:   input.FullName,
		Address:    input.Address,
		Phone:      input.Phone,
		Job:        input.Job,
		Gender:     input.Gender,
		MemberType: input.MemberType,
		CreatedAt:  now,
	}, nil
}

// UpdateMember replaces a member's editable fields. The id and created_at are
// immutable; the card number may change as long as it stays unique.
func (s *SQLiteStorage) UpdateMember(ctx context.Context, id int64, input model.MemberInput) (*model.Member, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	member, err := s.updateMemberTx(ctx, tx, id, input)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return member, nil
}

func (s *SQLiteStorage) updateMemberTx(ctx context.Context, tx *sql.Tx, id int64, input model.MemberInput) (*model.Member, error) {
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}
	if err := normalizeMemberInput(&input); err != nil {
		return nil, err
	}

	existing, err := s.getMemberTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	// A card number collision with any other member is a duplicate.
	var otherID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM members WHERE card_number = ? AND id != ?`, input.CardNumber, id).Scan(&otherID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %q", common.ErrDuplicateCardNumber, input.CardNumber)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check card number: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE members
		SET card_number = ?, full_name = ?, address = ?, phone = ?,
			job = ?, gender = ?, member_type = ?
		WHERE id = ?`,
		input.CardNumber, input.FullName, input.Address, input.Phone, input.Job,
		string(input.Gender), string(input.MemberType), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update member: %w", err)
	}

	return &model.Member{
		ID:         id,
		CardNumber: input.CardNumber,
		FullName:   input.FullName,
		Address:    input.Address,
		Phone:      input.Phone,
		Job:        input.Job,
		Gender:     input.Gender,
		MemberType: input.MemberType,
		CreatedAt:  existing.CreatedAt,
	}, nil
}

// DeleteMember removes a member and all of their contributions in a single
// transaction. A partial cascade is never left behind.
func (s *SQLiteStorage) DeleteMember(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.deleteMemberTx(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("deleted member", "id", id)
	return nil
}

func (s *SQLiteStorage) deleteMemberTx(ctx context.Context, tx *sql.Tx, id int64) error {
	if err := validateID(id, "id"); err != nil {
		return err
	}

	// The schema declares ON DELETE CASCADE, but the cascade is also issued
	// explicitly so the invariant doesn't depend on the connection's
	// foreign_keys pragma.
	result, err := tx.ExecContext(ctx, `DELETE FROM contributions WHERE member_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contributions: %w", err)
	}
	cascaded, _ := result.RowsAffected()

	result, err = tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: member %d", common.ErrNotFound, id)
	}

	if cascaded > 0 {
		slog.Debug("cascaded contribution deletion", "member_id", id, "contributions", cascaded)
	}
	return nil
}

// GetMember returns a member by id.
func (s *SQLiteStorage) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getMemberTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getMemberTx(ctx context.Context, q dbtx, id int64) (*model.Member, error) {
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	row := q.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	member, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: member %d", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query member: %w", err)
	}
	return member, nil
}

// ListMembers returns members in insertion order, optionally filtered by type.
func (s *SQLiteStorage) ListMembers(ctx context.Context, filter service.MemberFilter) ([]model.Member, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listMembersTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) listMembersTx(ctx context.Context, q dbtx, filter service.MemberFilter) ([]model.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members`
	args := []any{}
	if filter.MemberType != "" {
		query += ` WHERE member_type = ?`
		args = append(args, string(filter.MemberType))
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var members []model.Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *member)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	slog.Debug("listed members", "count", len(members), "type", filter.MemberType)
	return members, nil
}

// ListMembersWithTotals returns members of the given type along with the
// exact decimal sum of all their contributions. The totals are folded in Go
// so no binary floating point is involved.
func (s *SQLiteStorage) ListMembersWithTotals(ctx context.Context, memberType model.MemberType) ([]model.MemberWithTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.listMembersWithTotalsTx(ctx, s.db, memberType)
}

func (s *SQLiteStorage) listMembersWithTotalsTx(ctx context.Context, q dbtx, memberType model.MemberType) ([]model.MemberWithTotal, error) {
	if !memberType.Valid() {
		return nil, fmt.Errorf("%w: invalid member type %q", common.ErrValidation, memberType)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT m.id, m.card_number, m.full_name, m.address, m.phone, m.job,
			m.gender, m.member_type, m.created_at, c.amount
		FROM members m
		LEFT JOIN contributions c ON c.member_id = m.id
		WHERE m.member_type = ?
		ORDER BY m.id`,
		string(memberType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query member totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []model.MemberWithTotal
	totals := make(map[int64]decimal.Decimal)
	index := make(map[int64]int)

	for rows.Next() {
		var (
			member  model.Member
			address sql.NullString
			phone   sql.NullString
			job     sql.NullString
			amount  sql.NullString
		)
		if err := rows.Scan(
			&member.ID, &member.CardNumber, &member.FullName, &address,
			&phone, &job, &member.Gender, &member.MemberType,
			&member.CreatedAt, &amount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan member total: %w", err)
		}
		member.Address = address.String
		member.Phone = phone.String
		member.Job = job.String

		if _, seen := index[member.ID]; !seen {
			index[member.ID] = len(result)
			totals[member.ID] = decimal.Zero
			result = append(result, model.MemberWithTotal{Member: member})
		}

		if amount.Valid {
			d, err := decimal.NewFromString(amount.String)
			if err != nil {
				return nil, fmt.Errorf("corrupt amount for member %d: %w", member.ID, err)
			}
			totals[member.ID] = totals[member.ID].Add(d)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating member totals: %w", err)
	}

	for id, i := range index {
		result[i].TotalContributions = totals[id].String()
	}
	return result, nil
}

// TransferMembers moves the given members to a new member type, typically a
// Catechumen to Communicant promotion. Contributions keep their member ids.
func (s *SQLiteStorage) TransferMembers(ctx context.Context, ids []int64, newType model.MemberType) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	count, err := s.transferMembersTx(ctx, tx, ids, newType)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	slog.Info("transferred members", "count", count, "new_type", newType)
	return count, nil
}

func (s *SQLiteStorage) transferMembersTx(ctx context.Context, tx *sql.Tx, ids []int64, newType model.MemberType) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if !newType.Valid() {
		return 0, fmt.Errorf("%w: invalid member type %q", common.ErrValidation, newType)
	}

	query := `UPDATE members SET member_type = ? WHERE id IN (?` + repeatPlaceholder(len(ids)-1) + `)`
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(newType))
	for _, id := range ids {
		args = append(args, id)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to transfer members: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(affected), nil
}

// repeatPlaceholder returns n copies of ", ?" for IN clauses.
func repeatPlaceholder(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += ", ?"
	}
	return out
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (*model.Member, error) {
	var (
		member  model.Member
		address sql.NullString
		phone   sql.NullString
		job     sql.NullString
	)
	if err := row.Scan(
		&member.ID, &member.CardNumber, &member.FullName, &address, &phone, &job,
		&member.Gender, &member.MemberType, &member.CreatedAt,
	); err != nil {
		return nil, err
	}
	member.Address = address.String
	member.Phone = phone.String
	member.Job = job.String
	return &member, nil
}

// isUniqueViolation reports whether err is a sqlite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
