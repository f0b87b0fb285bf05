package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrakoto/vola/internal/common"
)

func TestGetYearSummary(t *testing.T) {
	ctx := context.Background()

	t.Run("open year is computed live and not persisted", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member := createTestMember(t, store, "C-001", "Alice")
		recordTestContribution(t, store, member.ID, "2024-03-01", "2024-Q1", "1000")

		summary, err := store.GetYearSummary(ctx, 2024)
		require.NoError(t, err)
		assert.False(t, summary.Closed())
		assert.True(t, summary.Total.Equal(mustDecimal(t, "1000")))

		// Reading must not create a summary row.
		stored, err := store.storedYearSummaryTx(ctx, store.db, 2024)
		require.NoError(t, err)
		assert.Nil(t, stored)

		// A new contribution is reflected on the next read.
		recordTestContribution(t, store, member.ID, "2024-06-01", "2024-Q2", "500")
		summary, err = store.GetYearSummary(ctx, 2024)
		require.NoError(t, err)
		assert.True(t, summary.Total.Equal(mustDecimal(t, "1500")))
	})

	t.Run("year without contributions", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		summary, err := store.GetYearSummary(ctx, 2019)
		require.NoError(t, err)
		assert.False(t, summary.Closed())
		assert.True(t, summary.Total.IsZero())
	})
}

func TestCloseYear(t *testing.T) {
	ctx := context.Background()

	t.Run("freezes the total at closing time", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member := createTestMember(t, store, "C-001", "Alice")
		recordTestContribution(t, store, member.ID, "2024-03-01", "2024", "1000")

		closed, err := store.CloseYear(ctx, 2024, "audited")
		require.NoError(t, err)
		require.NotNil(t, closed.ClosedAt)
		assert.Equal(t, "audited", closed.Note)
		assert.True(t, closed.Total.Equal(mustDecimal(t, "1000")))

		// A late entry for the closed year is stored but leaves the frozen
		// total untouched.
		recordTestContribution(t, store, member.ID, "2024-12-20", "2024-Q4", "999")

		summary, err := store.GetYearSummary(ctx, 2024)
		require.NoError(t, err)
		assert.True(t, summary.Closed())
		assert.True(t, summary.Total.Equal(mustDecimal(t, "1000")))

		contributions, err := store.ListContributionsForYear(ctx, 2024)
		require.NoError(t, err)
		assert.Len(t, contributions, 2)
	})

	t.Run("generated note when none given", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member := createTestMember(t, store, "C-001", "Alice")
		recordTestContribution(t, store, member.ID, "2024-03-01", "2024", "1234567")

		closed, err := store.CloseYear(ctx, 2024, "")
		require.NoError(t, err)
		assert.Equal(t, "CONTRIBUTIONS for year 2024 / TOTAL: 1 234 567 Ariary", closed.Note)
	})

	t.Run("closing twice fails and keeps the first snapshot", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member := createTestMember(t, store, "C-001", "Alice")
		recordTestContribution(t, store, member.ID, "2024-03-01", "2024", "100")

		_, err := store.CloseYear(ctx, 2024, "first")
		require.NoError(t, err)

		recordTestContribution(t, store, member.ID, "2024-05-01", "2024", "50")

		_, err = store.CloseYear(ctx, 2024, "second")
		require.ErrorIs(t, err, common.ErrAlreadyClosed)

		summary, err := store.GetYearSummary(ctx, 2024)
		require.NoError(t, err)
		assert.Equal(t, "first", summary.Note)
		assert.True(t, summary.Total.Equal(mustDecimal(t, "100")))
	})

	t.Run("closing an empty year freezes zero", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		closed, err := store.CloseYear(ctx, 2020, "")
		require.NoError(t, err)
		assert.True(t, closed.Total.IsZero())
		assert.True(t, closed.Closed())
	})
}

func TestReopenYear(t *testing.T) {
	ctx := context.Background()

	t.Run("reverts to live computation", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member := createTestMember(t, store, "C-001", "Alice")
		recordTestContribution(t, store, member.ID, "2024-03-01", "2024", "100")

		_, err := store.CloseYear(ctx, 2024, "note")
		require.NoError(t, err)
		recordTestContribution(t, store, member.ID, "2024-07-01", "2024", "25")

		reopened, err := store.ReopenYear(ctx, 2024)
		require.NoError(t, err)
		assert.False(t, reopened.Closed())
		assert.Empty(t, reopened.Note)
		assert.True(t, reopened.Total.Equal(mustDecimal(t, "125")))

		// Closing again snapshots the current ledger state.
		closed, err := store.CloseYear(ctx, 2024, "")
		require.NoError(t, err)
		assert.True(t, closed.Total.Equal(mustDecimal(t, "125")))
	})

	t.Run("reopening an open year fails", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		_, err := store.ReopenYear(ctx, 2024)
		require.ErrorIs(t, err, common.ErrNotClosed)
	})

	t.Run("reopening twice fails", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		_, err := store.CloseYear(ctx, 2024, "")
		require.NoError(t, err)
		_, err = store.ReopenYear(ctx, 2024)
		require.NoError(t, err)

		_, err = store.ReopenYear(ctx, 2024)
		require.ErrorIs(t, err, common.ErrNotClosed)
	})
}

func TestListYearSummaries(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	member := createTestMember(t, store, "C-001", "Alice")
	recordTestContribution(t, store, member.ID, "2022-03-01", "2022", "10")
	recordTestContribution(t, store, member.ID, "2024-03-01", "2024", "30")
	_, err := store.CloseYear(ctx, 2023, "empty year")
	require.NoError(t, err)

	summaries, err := store.ListYearSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	// Newest first, mixing closed and open years.
	assert.Equal(t, 2024, summaries[0].Year)
	assert.False(t, summaries[0].Closed())
	assert.True(t, summaries[0].Total.Equal(mustDecimal(t, "30")))

	assert.Equal(t, 2023, summaries[1].Year)
	assert.True(t, summaries[1].Closed())

	assert.Equal(t, 2022, summaries[2].Year)
	assert.False(t, summaries[2].Closed())
}

func TestCloseRolledOverYear(t *testing.T) {
	ctx := context.Background()

	t.Run("closes the previous year when open", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		summary, err := store.CloseRolledOverYear(ctx)
		require.NoError(t, err)
		require.NotNil(t, summary)
		assert.True(t, summary.Closed())

		closed, err := store.yearClosedTx(ctx, store.db, summary.Year)
		require.NoError(t, err)
		assert.True(t, closed)
	})

	t.Run("no-op when the previous year is already closed", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		first, err := store.CloseRolledOverYear(ctx)
		require.NoError(t, err)
		require.NotNil(t, first)

		second, err := store.CloseRolledOverYear(ctx)
		require.NoError(t, err)
		assert.Nil(t, second)
	})
}

func TestFormatAriary(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0", "0 Ariary"},
		{"100", "100 Ariary"},
		{"1000", "1 000 Ariary"},
		{"1234567", "1 234 567 Ariary"},
		{"1234567.89", "1 234 567 Ariary"},
		{"12", "12 Ariary"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, formatAriary(mustDecimal(t, tt.input)))
		})
	}
}
