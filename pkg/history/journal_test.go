package history

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/borgmon/wakeup/pkg/history/migration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

var base = time.Date(2024, 1, 3, 7, 30, 0, 0, time.UTC)

func TestRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	require.NoError(t, j.Record(ctx, Entry{AlarmID: 1, Kind: KindFired, Label: "wake", At: base}))
	require.NoError(t, j.Record(ctx, Entry{AlarmID: 1, Kind: KindSnoozed, Label: "wake", At: base.Add(time.Minute)}))
	require.NoError(t, j.Record(ctx, Entry{AlarmID: 1, Kind: KindSnoozeFired, Label: "wake", At: base.Add(11 * time.Minute)}))
	require.NoError(t, j.Record(ctx, Entry{AlarmID: 2, Kind: KindFired, At: base.Add(20 * time.Minute)}))

	recent, err := j.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, 2, recent[0].AlarmID)
	assert.Equal(t, KindSnoozeFired, recent[1].Kind)
	assert.Equal(t, "wake", recent[1].Label)
	assert.True(t, base.Add(11*time.Minute).Equal(recent[1].At))
}

func TestLastFired(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)

	_, found, err := j.LastFired(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, j.Record(ctx, Entry{AlarmID: 1, Kind: KindFired, At: base}))
	require.NoError(t, j.Record(ctx, Entry{AlarmID: 1, Kind: KindDismissed, At: base.Add(time.Hour)}))

	at, found, err := j.LastFired(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, base.Equal(at))
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	j := openJournal(t)
	require.NoError(t, j.Record(ctx, Entry{AlarmID: 1, Kind: KindFired, At: base.AddDate(0, 0, -100)}))
	require.NoError(t, j.Record(ctx, Entry{AlarmID: 1, Kind: KindFired, At: base}))

	n, err := j.Prune(ctx, base.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	recent, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestReopenKeepsEntries(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, j.Record(ctx, Entry{AlarmID: 5, Kind: KindFired, At: base}))
	require.NoError(t, j.Close())

	j, err = Open(path, nil)
	require.NoError(t, err)
	defer j.Close()
	recent, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 5, recent[0].AlarmID)
}

func TestMigrate(t *testing.T) {
	conn, err := sqlite.OpenConn(":memory:", 0)
	require.NoError(t, err)
	defer conn.Close()

	// Empty filesystems don't trigger migration.
	fsys := make(fstest.MapFS, 3)
	require.NoError(t, Migrate(conn, fsys))
	assert.Equal(t, 0, userVersion(t, conn))

	fsys["0000.sql"] = &fstest.MapFile{Data: []byte("create table t1 (a text);")}
	require.NoError(t, Migrate(conn, fsys))
	assert.Equal(t, 1, userVersion(t, conn))

	fsys["0001.sql"] = &fstest.MapFile{Data: []byte("create table t2 (a text); create table t3 (a text);")}
	require.NoError(t, Migrate(conn, fsys))
	assert.Equal(t, 2, userVersion(t, conn))
	assert.True(t, tableExists(t, conn, "t3"))

	// Non-SQL scripts don't trigger migration.
	fsys["0002.txt"] = &fstest.MapFile{Data: []byte("create table t4 (a text);")}
	require.NoError(t, Migrate(conn, fsys))
	assert.Equal(t, 2, userVersion(t, conn))
	assert.False(t, tableExists(t, conn, "t4"))
}

func TestMigrateScripts(t *testing.T) {
	conn, err := sqlite.OpenConn(":memory:", 0)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, Migrate(conn, migration.Scripts))
	assert.True(t, tableExists(t, conn, "ring_event"))
}

func userVersion(t *testing.T, conn *sqlite.Conn) int {
	t.Helper()
	var got int
	require.NoError(t, sqlitex.Exec(conn, "pragma user_version", func(stmt *sqlite.Stmt) error {
		got = stmt.ColumnInt(0)
		return nil
	}))
	return got
}

func tableExists(t *testing.T, conn *sqlite.Conn, table string) bool {
	t.Helper()
	var exists int
	require.NoError(t, sqlitex.Exec(conn,
		"select count(*) from sqlite_master where type='table' and name=?",
		func(stmt *sqlite.Stmt) error {
			exists = stmt.ColumnInt(0)
			return nil
		}, table))
	return exists > 0
}
