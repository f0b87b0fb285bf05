package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/hrakoto/vola/internal/model"
	"github.com/hrakoto/vola/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// dbtx is the subset of database/sql methods shared by *sql.DB and *sql.Tx,
// letting read helpers run either standalone or inside a transaction.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Foreign keys must be on for the member deletion cascade.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection serializes all transactions; SQLite doesn't benefit
	// from more, and it guarantees close-year never interleaves with a write.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Transaction methods delegate to the main storage with the transaction.
func (t *sqliteTransaction) CreateMember(ctx context.Context, input model.MemberInput) (*model.Member, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.createMemberTx(ctx, t.tx, input)
}

func (t *sqliteTransaction) UpdateMember(ctx context.Context, id int64, input model.MemberInput) (*model.Member, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.updateMemberTx(ctx, t.tx, id, input)
}

func (t *sqliteTransaction) DeleteMember(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.deleteMemberTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getMemberTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) ListMembers(ctx context.Context, filter service.MemberFilter) ([]model.Member, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listMembersTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) ListMembersWithTotals(ctx context.Context, memberType model.MemberType) ([]model.MemberWithTotal, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listMembersWithTotalsTx(ctx, t.tx, memberType)
}

func (t *sqliteTransaction) TransferMembers(ctx context.Context, ids []int64, newType model.MemberType) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	return t.storage.transferMembersTx(ctx, t.tx, ids, newType)
}

func (t *sqliteTransaction) RecordContribution(ctx context.Context, input model.ContributionInput) (*model.Contribution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.recordContributionTx(ctx, t.tx, input)
}

func (t *sqliteTransaction) CorrectContribution(ctx context.Context, id int64, update model.ContributionUpdate) (*model.Contribution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.correctContributionTx(ctx, t.tx, id, update)
}

func (t *sqliteTransaction) RemoveContribution(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	return t.storage.removeContributionTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) SumForYear(ctx context.Context, year int) (decimal.Decimal, error) {
	if err := validateContext(ctx); err != nil {
		return decimal.Zero, err
	}
	return t.storage.sumForYearTx(ctx, t.tx, year)
}

func (t *sqliteTransaction) ListContributionsForMember(ctx context.Context, memberID int64) ([]model.Contribution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listContributionsForMemberTx(ctx, t.tx, memberID)
}

func (t *sqliteTransaction) ListContributionsForYear(ctx context.Context, year int) ([]model.Contribution, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listContributionsForYearTx(ctx, t.tx, year)
}

func (t *sqliteTransaction) ListContributionsForYearWithMember(ctx context.Context, year int) ([]model.ContributionWithMember, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listContributionsForYearWithMemberTx(ctx, t.tx, year)
}

func (t *sqliteTransaction) GetYearSummary(ctx context.Context, year int) (*model.YearSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.getYearSummaryTx(ctx, t.tx, year)
}

func (t *sqliteTransaction) ListYearSummaries(ctx context.Context) ([]model.YearSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.listYearSummariesTx(ctx, t.tx)
}

func (t *sqliteTransaction) CloseYear(ctx context.Context, year int, note string) (*model.YearSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.closeYearTx(ctx, t.tx, year, note)
}

func (t *sqliteTransaction) ReopenYear(ctx context.Context, year int) (*model.YearSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.reopenYearTx(ctx, t.tx, year)
}

func (t *sqliteTransaction) CloseRolledOverYear(ctx context.Context) (*model.YearSummary, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return t.storage.closeRolledOverYearTx(ctx, t.tx)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	// Migrations should not be run within a transaction
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	// Nested transactions not supported
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	// Transactions should be committed or rolled back, not closed
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
