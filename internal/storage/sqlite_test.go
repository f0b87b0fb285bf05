package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrakoto/vola/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper to register a member with sensible defaults.
func createTestMember(t *testing.T, store *SQLiteStorage, card, name string) *model.Member {
	t.Helper()
	member, err := store.CreateMember(context.Background(), model.MemberInput{
		CardNumber: card,
		FullName:   name,
	})
	require.NoError(t, err)
	return member
}

// Helper to record a contribution.
func recordTestContribution(t *testing.T, store *SQLiteStorage, memberID int64, date, period, amount string) *model.Contribution {
	t.Helper()
	contribution, err := store.RecordContribution(context.Background(), model.ContributionInput{
		MemberID:    memberID,
		PaymentDate: date,
		Period:      period,
		Amount:      amount,
	})
	require.NoError(t, err)
	return contribution
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	return decimal.RequireFromString(s)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	// Second run must be a no-op at the expected version.
	require.NoError(t, store.Migrate(context.Background()))
}

// Full ledger walkthrough: register, record, sum, close, verify the snapshot.
func TestLedgerScenario(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	member := createTestMember(t, store, "C-001", "Jean Dupont")

	recordTestContribution(t, store, member.ID, "2024-03-01", "2024-Q1", "20.00")
	recordTestContribution(t, store, member.ID, "2024-06-01", "2024-Q2", "30.00")

	sum, err := store.SumForYear(ctx, 2024)
	require.NoError(t, err)
	assert.True(t, sum.Equal(mustDecimal(t, "50.00")), "got %s", sum)

	closed, err := store.CloseYear(ctx, 2024, "")
	require.NoError(t, err)
	require.NotNil(t, closed.ClosedAt)
	assert.True(t, closed.Total.Equal(mustDecimal(t, "50.00")))

	summary, err := store.GetYearSummary(ctx, 2024)
	require.NoError(t, err)
	assert.True(t, summary.Closed())
	assert.True(t, summary.Total.Equal(mustDecimal(t, "50.00")))
}
