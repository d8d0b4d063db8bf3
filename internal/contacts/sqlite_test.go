package contacts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kithbot/kith/internal/config"
	"github.com/kithbot/kith/internal/db"
)

var fixedNow = time.Date(2024, time.March, 10, 14, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	cfg := config.Defaults()
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "kith.db")
	require.NoError(t, db.MigrateUp(nil, cfg))

	conn, err := db.OpenSQLite(context.Background(), cfg.Storage.SQLitePath)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return NewSQLiteStore(nil, conn,
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
	)
}

func seedUser(t *testing.T, store Store, id int64) {
	t.Helper()
	require.NoError(t, store.UpsertUser(context.Background(), User{ID: id, Username: "owner", FirstName: "Owner"}))
}

func TestSQLiteUpsertUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, User{ID: 42, Username: "alice", FirstName: "Alice"}))
	// Profile fields are only written on first contact.
	require.NoError(t, store.UpsertUser(ctx, User{ID: 42, Username: "renamed", FirstName: "Renamed"}))

	user, err := store.GetUser(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "Alice", user.FirstName)
	assert.True(t, user.LastActive.Equal(fixedNow))

	_, err = store.GetUser(ctx, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteCreateAndFindContact(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)

	created, err := store.CreateContact(ctx, 1, " Олег ", "met at the conference", "1990-03-15")
	require.NoError(t, err)
	assert.Equal(t, "Олег", created.Name)
	assert.Equal(t, "[10.03.2024 14:30] met at the conference", created.Context)
	assert.Equal(t, "1990-03-15", created.Birthday)

	found, err := store.FindContact(ctx, 1, "ОЛЕГ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = store.FindContact(ctx, 2, "Олег")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteCreateContactValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)

	_, err := store.CreateContact(ctx, 1, " ", "note", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = store.CreateContact(ctx, 1, "Anna", "", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = store.CreateContact(ctx, 1, "Anna", "note", "yesterday")
	assert.ErrorIs(t, err, ErrInvalidBirthday)
}

func TestSQLiteCreateContactRequiresUser(t *testing.T) {
	store := newTestStore(t)
	_, err := store.CreateContact(context.Background(), 99, "Anna", "note", "")
	assert.Error(t, err)
}

func TestSQLiteAppendContact(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)

	created, err := store.CreateContact(ctx, 1, "Anna", "first", "")
	require.NoError(t, err)
	assert.False(t, created.HasBirthday())

	updated, err := store.AppendContact(ctx, created.ID, "second", "03-15")
	require.NoError(t, err)
	assert.Equal(t, "[10.03.2024 14:30] first\n\n[10.03.2024 14:30] second", updated.Context)
	assert.Equal(t, "2000-03-15", updated.Birthday)

	// An empty birthday keeps the stored one.
	updated, err = store.AppendContact(ctx, created.ID, "third", "")
	require.NoError(t, err)
	assert.Equal(t, "2000-03-15", updated.Birthday)
	assert.True(t, strings.HasSuffix(updated.Context, "] third"))

	_, err = store.AppendContact(ctx, 12345, "ghost", "")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.AppendContact(ctx, created.ID, "  ", "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSQLiteConcurrentAppendsKeepEveryEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)

	created, err := store.CreateContact(ctx, 1, "Anna", "seed", "")
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.AppendContact(ctx, created.ID, fmt.Sprintf("note-%d", i), ""); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final, err := store.FindContact(ctx, 1, "anna")
	require.NoError(t, err)
	entries := strings.Split(final.Context, entrySeparator)
	assert.Len(t, entries, writers+1)
	for i := 0; i < writers; i++ {
		assert.Contains(t, final.Context, fmt.Sprintf("] note-%d", i))
	}
}

func TestSQLiteFindContactPrefersCompleteRecord(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)

	_, err := store.CreateContact(ctx, 1, "anna", "short", "")
	require.NoError(t, err)
	withBirthday, err := store.CreateContact(ctx, 1, "Anna", "x", "1991-07-01")
	require.NoError(t, err)

	found, err := store.FindContact(ctx, 1, "ANNA")
	require.NoError(t, err)
	assert.Equal(t, withBirthday.ID, found.ID)
}

func TestSQLiteListContactsAndStats(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)
	seedUser(t, store, 2)

	_, err := store.CreateContact(ctx, 1, "zoe", "a", "")
	require.NoError(t, err)
	_, err = store.CreateContact(ctx, 1, "Bob", "b", "1980-01-01")
	require.NoError(t, err)
	_, err = store.CreateContact(ctx, 1, "alice", "c", "")
	require.NoError(t, err)
	_, err = store.CreateContact(ctx, 2, "Other", "d", "1980-01-01")
	require.NoError(t, err)

	list, err := store.ListContacts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"alice", "Bob", "zoe"}, []string{list[0].Name, list[1].Name, list[2].Name})

	empty, err := store.ListContacts(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, empty)

	stats, err := store.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, WithBirthdays: 1}, stats)
}

func TestSQLiteUpcomingBirthdays(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, 1)
	seedUser(t, store, 2)

	_, err := store.CreateContact(ctx, 1, "Oleh", "friend", "2020-03-15")
	require.NoError(t, err)
	_, err = store.CreateContact(ctx, 2, "Maria", "colleague", "1988-04-01")
	require.NoError(t, err)
	_, err = store.CreateContact(ctx, 2, "Nobody", "no date", "")
	require.NoError(t, err)

	upcoming, err := store.UpcomingBirthdays(ctx, 40)
	require.NoError(t, err)
	require.Len(t, upcoming, 2)
	assert.Equal(t, "Oleh", upcoming[0].Contact.Name)
	assert.Equal(t, 5, upcoming[0].DaysUntil)
	assert.Equal(t, int64(1), upcoming[0].Contact.UserID)
	assert.Equal(t, "Maria", upcoming[1].Contact.Name)
	assert.Equal(t, 22, upcoming[1].DaysUntil)

	narrow, err := store.UpcomingBirthdays(ctx, 5)
	require.NoError(t, err)
	require.Len(t, narrow, 1)
	assert.Equal(t, "Oleh", narrow[0].Contact.Name)
}
