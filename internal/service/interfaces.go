// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/hrakoto/vola/internal/model"
)

// MemberFilter defines filtering options for member queries.
type MemberFilter struct {
	// MemberType restricts results to one member type when non-empty.
	MemberType model.MemberType
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Member registry operations
	CreateMember(ctx context.Context, input model.MemberInput) (*model.Member, error)
	UpdateMember(ctx context.Context, id int64, input model.MemberInput) (*model.Member, error)
	DeleteMember(ctx context.Context, id int64) error
	GetMember(ctx context.Context, id int64) (*model.Member, error)
	ListMembers(ctx context.Context, filter MemberFilter) ([]model.Member, error)
	ListMembersWithTotals(ctx context.Context, memberType model.MemberType) ([]model.MemberWithTotal, error)
	TransferMembers(ctx context.Context, ids []int64, newType model.MemberType) (int, error)

	// Contribution ledger operations
	RecordContribution(ctx context.Context, input model.ContributionInput) (*model.Contribution, error)
	CorrectContribution(ctx context.Context, id int64, update model.ContributionUpdate) (*model.Contribution, error)
	RemoveContribution(ctx context.Context, id int64) error
	SumForYear(ctx context.Context, year int) (decimal.Decimal, error)
	ListContributionsForMember(ctx context.Context, memberID int64) ([]model.Contribution, error)
	ListContributionsForYear(ctx context.Context, year int) ([]model.Contribution, error)
	ListContributionsForYearWithMember(ctx context.Context, year int) ([]model.ContributionWithMember, error)

	// Year summary operations
	GetYearSummary(ctx context.Context, year int) (*model.YearSummary, error)
	ListYearSummaries(ctx context.Context) ([]model.YearSummary, error)
	CloseYear(ctx context.Context, year int, note string) (*model.YearSummary, error)
	ReopenYear(ctx context.Context, year int) (*model.YearSummary, error)
	CloseRolledOverYear(ctx context.Context) (*model.YearSummary, error)

	// Database management
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within transaction
	Storage
}
