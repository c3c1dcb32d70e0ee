// Package storetest holds the behaviour every store.Store implementation must
// share, run against each backend from its own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casa/internal/core"
	"casa/internal/store"
)

// Run exercises a fresh store returned by newStore for every subtest.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("transactions", func(t *testing.T) { testTransactions(t, newStore(t)) })
	t.Run("soft delete", func(t *testing.T) { testDelete(t, newStore(t)) })
	t.Run("export tracking", func(t *testing.T) { testExports(t, newStore(t)) })
	t.Run("households", func(t *testing.T) { testHouseholds(t, newStore(t)) })
	t.Run("invitations", func(t *testing.T) { testInvitations(t, newStore(t)) })
}

var created = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func sampleTx(id, user, household string, cents int64, day int) core.Transaction {
	return core.Transaction{
		ID:           id,
		UserID:       user,
		HouseholdID:  household,
		Name:         "tx " + id,
		Amount:       core.Money{Cents: cents},
		Category:     "Food",
		Date:         core.NewDate(2024, 3, day),
		Notes:        "note " + id,
		UserFullName: "Jane Doe",
		CreatedAt:    created,
	}
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateTransaction(ctx, sampleTx("t1", "u1", "", 1250, 1)))
	require.NoError(t, s.CreateTransaction(ctx, sampleTx("t2", "u1", "h1", -300, 2)))
	require.NoError(t, s.CreateTransaction(ctx, sampleTx("t3", "u1", "", 99, 3)))
	require.NoError(t, s.CreateTransaction(ctx, sampleTx("t4", "u2", "", 10, 4)))

	personal, err := s.ListTransactions(ctx, core.PersonalLedger("u1"))
	require.NoError(t, err)
	require.Len(t, personal, 2)
	assert.Equal(t, "t1", personal[0].ID)
	assert.Equal(t, "t3", personal[1].ID)

	household, err := s.ListTransactions(ctx, core.HouseholdLedger("h1"))
	require.NoError(t, err)
	require.Len(t, household, 1)

	got := household[0]
	assert.Equal(t, "t2", got.ID)
	assert.Equal(t, int64(-300), got.Amount.Cents)
	assert.Equal(t, "2024-03-02", got.Date.String())
	assert.Equal(t, "Jane Doe", got.UserFullName)
	assert.Equal(t, "note t2", got.Notes)
	assert.True(t, got.CreatedAt.Equal(created))

	fetched, err := s.GetTransaction(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "tx t1", fetched.Name)

	_, err = s.GetTransaction(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	empty, err := s.ListTransactions(ctx, core.PersonalLedger("nobody"))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func testDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	require.NoError(t, s.CreateTransaction(ctx, sampleTx("t1", "u1", "", 100, 1)))

	require.NoError(t, s.DeleteTransaction(ctx, "t1"))
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "t1"), store.ErrNotFound)
	assert.ErrorIs(t, s.DeleteTransaction(ctx, "nope"), store.ErrNotFound)

	_, err := s.GetTransaction(ctx, "t1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err := s.ListTransactions(ctx, core.PersonalLedger("u1"))
	require.NoError(t, err)
	assert.Empty(t, list)

	// retraction can still be recorded on a deleted transaction
	assert.NoError(t, s.MarkExported(ctx, "t1", store.ExportRetracted))
}

func testExports(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateTransaction(ctx, sampleTx(id, "u1", "", 100, i+1)))
	}

	pending, err := s.PendingExports(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	limited, err := s.PendingExports(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, s.MarkExported(ctx, "a", store.ExportDone))
	require.NoError(t, s.MarkExported(ctx, "b", store.ExportFailed))
	require.NoError(t, s.DeleteTransaction(ctx, "c"))

	pending, err = s.PendingExports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1, "failed exports are retried, done and deleted ones are not")
	assert.Equal(t, "b", pending[0].ID)

	assert.ErrorIs(t, s.MarkExported(ctx, "zzz", store.ExportDone), store.ErrNotFound)

	status, err := s.ExportStatus(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, store.ExportDone, status)

	status, err = s.ExportStatus(ctx, "c")
	require.NoError(t, err, "deleted rows keep their export status")
	assert.Equal(t, store.ExportPending, status)

	_, err = s.ExportStatus(ctx, "zzz")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testHouseholds(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := core.Member{UserID: "u1", FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: core.RoleOwner, Joined: true, JoinedAt: created}
	h := core.Household{ID: "h1", Name: "Home", OwnerID: "u1", CreatedAt: created}

	require.NoError(t, s.CreateHousehold(ctx, h, owner))
	assert.ErrorIs(t, s.CreateHousehold(ctx, core.Household{ID: "h2", Name: "Other", OwnerID: "u1", CreatedAt: created}, owner), store.ErrAlreadyMember)

	got, err := s.GetUserHousehold(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "h1", got.ID)
	assert.Equal(t, "Home", got.Name)
	assert.Equal(t, "u1", got.OwnerID)
	require.Len(t, got.Members, 1)
	assert.Equal(t, core.RoleOwner, got.Members[0].Role)
	assert.True(t, got.Members[0].Joined)

	member := core.Member{UserID: "u2", FirstName: "Bob", Email: "bob@example.com", Role: core.RoleMember, Joined: true, JoinedAt: created}
	require.NoError(t, s.AddMember(ctx, "h1", member))
	assert.ErrorIs(t, s.AddMember(ctx, "h1", member), store.ErrAlreadyMember)
	assert.ErrorIs(t, s.AddMember(ctx, "missing", core.Member{UserID: "u3"}), store.ErrNotFound)

	got, err = s.GetUserHousehold(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, got.Members, 2)
	assert.True(t, got.IsJoinedMember("u2"))

	_, err = s.GetUserHousehold(ctx, "stranger")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetHousehold(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testInvitations(t *testing.T, s store.Store) {
	ctx := context.Background()
	owner := core.Member{UserID: "u1", Role: core.RoleOwner, Joined: true, JoinedAt: created}
	require.NoError(t, s.CreateHousehold(ctx, core.Household{ID: "h1", Name: "Home", OwnerID: "u1", CreatedAt: created}, owner))

	inv := core.Invitation{ID: "i1", HouseholdID: "h1", HouseholdName: "Home", Email: "bob@example.com", InvitedBy: "u1", Status: core.InvitationPending, InvitedAt: created}
	require.NoError(t, s.CreateInvitation(ctx, inv))

	dup := inv
	dup.ID = "i2"
	assert.ErrorIs(t, s.CreateInvitation(ctx, dup), store.ErrInvitationExists)

	orphan := inv
	orphan.ID = "i3"
	orphan.HouseholdID = "nope"
	assert.ErrorIs(t, s.CreateInvitation(ctx, orphan), store.ErrNotFound)

	pending, err := s.PendingInvitationsByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Home", pending[0].HouseholdName)
	assert.Equal(t, "u1", pending[0].InvitedBy)

	require.NoError(t, s.MarkInvitationAccepted(ctx, "i1"))
	assert.ErrorIs(t, s.MarkInvitationAccepted(ctx, "i1"), store.ErrInvitationClosed)
	assert.ErrorIs(t, s.MarkInvitationAccepted(ctx, "zzz"), store.ErrNotFound)

	got, err := s.GetInvitation(ctx, "i1")
	require.NoError(t, err)
	assert.Equal(t, core.InvitationAccepted, got.Status)

	pending, err = s.PendingInvitationsByEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Empty(t, pending)

	// once accepted, a new invitation for the same email is allowed
	require.NoError(t, s.CreateInvitation(ctx, dup))
}
