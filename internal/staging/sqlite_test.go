package staging

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/niveshya/leadops/internal/shared"
)

var stagedAt = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func openTestStore(t *testing.T, path string) *SQLiteStore {
	t.Helper()
	store, err := Open(context.Background(), Config{Path: path, Clock: func() time.Time { return stagedAt }})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreRoundTripSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "staging.db")

	store, err := Open(ctx, Config{Path: path, Clock: func() time.Time { return stagedAt }})
	require.NoError(t, err)
	meta, err := store.Save(ctx, Recording{
		Key:       "rec-1",
		MeetingID: "m-42",
		Filename:  "meeting-m-42.webm",
		MIMEType:  "audio/webm",
		Data:      []byte("opus-frames"),
		Duration:  90 * time.Second,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 11, meta.Size)
	assert.Len(t, meta.Checksum, 64)
	assert.Equal(t, stagedAt, meta.CreatedAt)
	require.NoError(t, store.Close())

	reopened := openTestStore(t, path)
	rec, err := reopened.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "m-42", rec.MeetingID)
	assert.Equal(t, "meeting-m-42.webm", rec.Filename)
	assert.Equal(t, "audio/webm", rec.MIMEType)
	assert.Equal(t, "opus-frames", string(rec.Data))
	assert.Equal(t, 90*time.Second, rec.Duration)
	assert.Equal(t, stagedAt, rec.CreatedAt)
}

func TestSQLiteStoreSaveReplacesKey(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "staging.db"))

	_, err := store.Save(ctx, Recording{Key: "rec-1", MeetingID: "m-1", MIMEType: "audio/webm", Data: []byte("first")})
	require.NoError(t, err)
	_, err = store.Save(ctx, Recording{Key: "rec-1", MeetingID: "m-1", MIMEType: "audio/webm", Data: []byte("second")})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "second", string(rec.Data))

	list, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSQLiteStoreValidation(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "staging.db"))

	_, err := store.Save(ctx, Recording{Key: " ", Data: []byte("x")})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = store.Save(ctx, Recording{Key: "rec-1"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = Open(ctx, Config{})
	assert.Error(t, err)
}

func TestSQLiteStoreGetMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "staging.db"))

	_, err := store.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "nope"))

	_, err = store.Save(ctx, Recording{Key: "rec-1", Data: []byte("x")})
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "rec-1"))
	_, err = store.Get(ctx, "rec-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "staging.db"))
	_, err := store.Save(ctx, Recording{Key: "rec-1", Data: []byte("pristine")})
	require.NoError(t, err)

	conn, err := store.pool.Take(ctx)
	require.NoError(t, err)
	err = sqlitex.Execute(conn, `UPDATE staged_recordings SET data = ? WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{[]byte("tampered"), "rec-1"},
	})
	store.pool.Put(conn)
	require.NoError(t, err)

	_, err = store.Get(ctx, "rec-1")
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestSQLiteStoreListOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, filepath.Join(t.TempDir(), "staging.db"))

	for i, key := range []string{"late", "early", "middle"} {
		offset := map[string]time.Duration{"early": 0, "middle": time.Minute, "late": 2 * time.Minute}[key]
		_, err := store.Save(ctx, Recording{
			Key:       key,
			MeetingID: "m-1",
			Data:      []byte{byte(i + 1)},
			CreatedAt: stagedAt.Add(offset),
		})
		require.NoError(t, err)
	}

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "early", list[0].Key)
	assert.Equal(t, "middle", list[1].Key)
	assert.Equal(t, "late", list[2].Key)
	assert.EqualValues(t, 1, list[0].Size)
}
