package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrakoto/vola/internal/common"
	"github.com/hrakoto/vola/internal/model"
	"github.com/hrakoto/vola/internal/service"
)

func TestCreateMember(t *testing.T) {
	ctx := context.Background()

	t.Run("register and get round-trip", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member, err := store.CreateMember(ctx, model.MemberInput{
			CardNumber: "C-001",
			FullName:   "Alice Rakoto",
			Address:    "Antananarivo",
			Phone:      "+261 34 00 000 00",
			Job:        "Teacher",
			Gender:     model.GenderFemale,
			MemberType: model.TypeCatechumen,
		})
		require.NoError(t, err)
		assert.Positive(t, member.ID)
		assert.False(t, member.CreatedAt.IsZero())

		got, err := store.GetMember(ctx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, "C-001", got.CardNumber)
		assert.Equal(t, "Alice Rakoto", got.FullName)
		assert.Equal(t, "Antananarivo", got.Address)
		assert.Equal(t, "+261 34 00 000 00", got.Phone)
		assert.Equal(t, "Teacher", got.Job)
		assert.Equal(t, model.GenderFemale, got.Gender)
		assert.Equal(t, model.TypeCatechumen, got.MemberType)
	})

	t.Run("defaults applied", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member := createTestMember(t, store, "C-002", "Bob")
		assert.Equal(t, model.GenderMale, member.Gender)
		assert.Equal(t, model.TypeCommunicant, member.MemberType)
	})

	t.Run("duplicate card number rejected", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		createTestMember(t, store, "C-001", "Alice")
		_, err := store.CreateMember(ctx, model.MemberInput{CardNumber: "C-001", FullName: "Pierre"})
		require.ErrorIs(t, err, common.ErrDuplicateCardNumber)

		// No row was created for the failed registration.
		members, err := store.ListMembers(ctx, service.MemberFilter{})
		require.NoError(t, err)
		assert.Len(t, members, 1)
	})

	t.Run("blank required fields rejected", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		_, err := store.CreateMember(ctx, model.MemberInput{CardNumber: "", FullName: "Alice"})
		require.ErrorIs(t, err, common.ErrValidation)

		_, err = store.CreateMember(ctx, model.MemberInput{CardNumber: "C-001", FullName: "   "})
		require.ErrorIs(t, err, common.ErrValidation)
	})

	t.Run("invalid enum values rejected", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		_, err := store.CreateMember(ctx, model.MemberInput{
			CardNumber: "C-001", FullName: "Alice", Gender: "X",
		})
		require.ErrorIs(t, err, common.ErrValidation)

		_, err = store.CreateMember(ctx, model.MemberInput{
			CardNumber: "C-001", FullName: "Alice", MemberType: "Visitor",
		})
		require.ErrorIs(t, err, common.ErrValidation)
	})
}

func TestUpdateMember(t *testing.T) {
	ctx := context.Background()

	t.Run("updates fields and keeps created_at", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member := createTestMember(t, store, "C-001", "Alice")
		updated, err := store.UpdateMember(ctx, member.ID, model.MemberInput{
			CardNumber: "C-001-U",
			FullName:   "Alice Martin",
			MemberType: model.TypeCatechumen,
		})
		require.NoError(t, err)
		assert.Equal(t, "C-001-U", updated.CardNumber)
		assert.Equal(t, "Alice Martin", updated.FullName)
		assert.Equal(t, member.CreatedAt.Unix(), updated.CreatedAt.Unix())
	})

	t.Run("unknown id", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		_, err := store.UpdateMember(ctx, 999, model.MemberInput{CardNumber: "C-9", FullName: "Nobody"})
		require.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("card number collision with another member", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		createTestMember(t, store, "C-001", "Alice")
		bob := createTestMember(t, store, "C-002", "Bob")

		_, err := store.UpdateMember(ctx, bob.ID, model.MemberInput{CardNumber: "C-001", FullName: "Bob"})
		require.ErrorIs(t, err, common.ErrDuplicateCardNumber)
	})

	t.Run("keeping own card number is not a collision", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member := createTestMember(t, store, "C-001", "Alice")
		_, err := store.UpdateMember(ctx, member.ID, model.MemberInput{CardNumber: "C-001", FullName: "Alice R."})
		require.NoError(t, err)
	})
}

func TestDeleteMemberCascade(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes member and contributions atomically", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member := createTestMember(t, store, "C-001", "Alice")
		recordTestContribution(t, store, member.ID, "2024-01-15", "2024-Q1", "100")
		recordTestContribution(t, store, member.ID, "2024-04-15", "2024-Q2", "200")
		recordTestContribution(t, store, member.ID, "2023-11-01", "2023-Q4", "50")

		require.NoError(t, store.DeleteMember(ctx, member.ID))

		_, err := store.GetMember(ctx, member.ID)
		require.ErrorIs(t, err, common.ErrNotFound)

		// The rows are gone, not merely filtered.
		contributions, err := store.ListContributionsForMember(ctx, member.ID)
		require.NoError(t, err)
		assert.Empty(t, contributions)

		sum, err := store.SumForYear(ctx, 2024)
		require.NoError(t, err)
		assert.True(t, sum.IsZero())
	})

	t.Run("unknown id", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		require.ErrorIs(t, store.DeleteMember(ctx, 42), common.ErrNotFound)
	})

	t.Run("other members' contributions survive", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		alice := createTestMember(t, store, "C-001", "Alice")
		bob := createTestMember(t, store, "C-002", "Bob")
		recordTestContribution(t, store, alice.ID, "2024-01-15", "2024", "100")
		recordTestContribution(t, store, bob.ID, "2024-02-15", "2024", "70")

		require.NoError(t, store.DeleteMember(ctx, alice.ID))

		sum, err := store.SumForYear(ctx, 2024)
		require.NoError(t, err)
		assert.True(t, sum.Equal(mustDecimal(t, "70")))
	})
}

func TestListMembers(t *testing.T) {
	ctx := context.Background()

	t.Run("insertion order and type filter", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		createTestMember(t, store, "C-003", "Zoe")
		createTestMember(t, store, "C-001", "Alice")
		_, err := store.CreateMember(ctx, model.MemberInput{
			CardNumber: "C-002", FullName: "Bob", MemberType: model.TypeCatechumen,
		})
		require.NoError(t, err)

		all, err := store.ListMembers(ctx, service.MemberFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, "Zoe", all[0].FullName)
		assert.Equal(t, "Alice", all[1].FullName)
		assert.Equal(t, "Bob", all[2].FullName)

		catechumens, err := store.ListMembers(ctx, service.MemberFilter{MemberType: model.TypeCatechumen})
		require.NoError(t, err)
		require.Len(t, catechumens, 1)
		assert.Equal(t, "Bob", catechumens[0].FullName)
	})

	t.Run("empty registry", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		members, err := store.ListMembers(ctx, service.MemberFilter{})
		require.NoError(t, err)
		assert.Empty(t, members)
	})
}

func TestListMembersWithTotals(t *testing.T) {
	ctx := context.Background()
	store, cleanup := createTestStorage(t)
	defer cleanup()

	alice := createTestMember(t, store, "C-001", "Alice")
	createTestMember(t, store, "C-002", "Bob")
	recordTestContribution(t, store, alice.ID, "2024-01-15", "2024", "10000")
	recordTestContribution(t, store, alice.ID, "2024-06-01", "2024", "5000.50")

	members, err := store.ListMembersWithTotals(ctx, model.TypeCommunicant)
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, "Alice", members[0].FullName)
	assert.Equal(t, "15000.50", members[0].TotalContributions)
	assert.Equal(t, "0", members[1].TotalContributions)
}

func TestTransferMembers(t *testing.T) {
	ctx := context.Background()

	t.Run("promotes catechumens and keeps contributions", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		a, err := store.CreateMember(ctx, model.MemberInput{
			CardNumber: "C-001", FullName: "Alice", MemberType: model.TypeCatechumen,
		})
		require.NoError(t, err)
		b, err := store.CreateMember(ctx, model.MemberInput{
			CardNumber: "C-002", FullName: "Bob", MemberType: model.TypeCatechumen,
		})
		require.NoError(t, err)
		recordTestContribution(t, store, a.ID, "2024-03-01", "2024", "500")

		count, err := store.TransferMembers(ctx, []int64{a.ID, b.ID}, model.TypeCommunicant)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		communicants, err := store.ListMembers(ctx, service.MemberFilter{MemberType: model.TypeCommunicant})
		require.NoError(t, err)
		assert.Len(t, communicants, 2)

		contributions, err := store.ListContributionsForMember(ctx, a.ID)
		require.NoError(t, err)
		assert.Len(t, contributions, 1)
	})

	t.Run("empty id list is a no-op", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		count, err := store.TransferMembers(ctx, nil, model.TypeCommunicant)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("invalid target type", func(t *testing.T) {
		store, cleanup := createTestStorage(t)
		defer cleanup()

		member := createTestMember(t, store, "C-001", "Alice")
		_, err := store.TransferMembers(ctx, []int64{member.ID}, "Visitor")
		require.ErrorIs(t, err, common.ErrValidation)
	})
}
