package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dash/internal/app/user"
)

// testStore opens a migrated SQLite database in a temp dir.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "dash-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func register(t *testing.T, store user.Directory, id, username, email string) user.Identity {
	t.Helper()

	identity, err := store.Insert(context.Background(), user.Registration{
		PublicID:     id,
		Username:     username,
		Email:        email,
		PasswordHash: "hash-" + username,
	})
	require.NoError(t, err)
	return identity
}

func TestSQLiteStore_InsertAndFind(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	inserted := register(t, store, "11111111-1111-4111-8111-111111111111", "alice", "alice@example.com")
	assert.NotZero(t, inserted.ID)
	assert.False(t, inserted.Elevated)
	assert.Equal(t, "hash-alice", inserted.PasswordHash)

	byName, err := store.FindByUsernameOrEmail(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, inserted, byName)

	byEmail, err := store.FindByUsernameOrEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, inserted, byEmail)

	byID, err := store.FindByID(ctx, inserted.PublicID)
	require.NoError(t, err)
	assert.Equal(t, inserted, byID)
}

func TestSQLiteStore_NotFound(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	_, err := store.FindByUsernameOrEmail(ctx, "nobody")
	assert.ErrorIs(t, err, user.ErrNotFound)

	_, err = store.FindByID(ctx, "22222222-2222-4222-8222-222222222222")
	assert.ErrorIs(t, err, user.ErrNotFound)

	err = store.DeleteByID(ctx, "22222222-2222-4222-8222-222222222222")
	assert.ErrorIs(t, err, user.ErrNotFound)

	err = store.SetElevated(ctx, "nobody", true)
	assert.ErrorIs(t, err, user.ErrNotFound)
}

func TestSQLiteStore_Conflict(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	register(t, store, "11111111-1111-4111-8111-111111111111", "alice", "alice@example.com")

	tests := []struct {
		name string
		reg  user.Registration
	}{
		{"same username", user.Registration{PublicID: "33333333-3333-4333-8333-333333333333", Username: "alice", Email: "other@example.com", PasswordHash: "x"}},
		{"same email", user.Registration{PublicID: "44444444-4444-4444-8444-444444444444", Username: "bob", Email: "alice@example.com", PasswordHash: "x"}},
		{"same public id", user.Registration{PublicID: "11111111-1111-4111-8111-111111111111", Username: "carol", Email: "carol@example.com", PasswordHash: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Insert(ctx, tt.reg)
			assert.ErrorIs(t, err, user.ErrConflict)
		})
	}
}

func TestSQLiteStore_ListDeleteAndElevate(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	alice := register(t, store, "11111111-1111-4111-8111-111111111111", "alice", "alice@example.com")
	bob := register(t, store, "55555555-5555-4555-8555-555555555555", "bob", "bob@example.com")

	all, err := store.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].Username)
	assert.Equal(t, "bob", all[1].Username)

	require.NoError(t, store.SetElevated(ctx, "bob@example.com", true))
	elevated, err := user.Privileges{Directory: store}.Elevated(ctx, bob.PublicID)
	require.NoError(t, err)
	assert.True(t, elevated)

	require.NoError(t, store.DeleteByID(ctx, alice.PublicID))
	_, err = store.FindByID(ctx, alice.PublicID)
	assert.ErrorIs(t, err, user.ErrNotFound)

	all, err = store.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStore_EmptyList(t *testing.T) {
	store := testStore(t)

	all, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestOpen_SelectsBackend(t *testing.T) {
	store, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "open.db"))
	require.NoError(t, err)
	defer store.Close()
	assert.Equal(t, "sqlite", store.Backend())

	_, err = Open(context.Background(), "mysql://localhost/dash")
	assert.ErrorIs(t, err, ErrUnsupportedDSN)
}

func TestOpen_ReappliesMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")

	first, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	register(t, first, "11111111-1111-4111-8111-111111111111", "alice", "alice@example.com")
	require.NoError(t, first.Close())

	second, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer second.Close()

	_, err = second.FindByUsernameOrEmail(context.Background(), "alice")
	assert.NoError(t, err)
}

func TestIsUniqueViolation_IgnoresOtherErrors(t *testing.T) {
	assert.False(t, IsUniqueViolation(user.ErrNotFound))
	assert.False(t, IsSQLiteUniqueViolation(user.ErrNotFound))
	assert.False(t, IsUniqueViolation(nil))
}
