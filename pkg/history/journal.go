// Package history keeps a journal of rings: when an alarm fired, was snoozed
// or was dismissed.
package history

import (
	"context"
	"fmt"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/borgmon/wakeup/pkg/history/migration"
	"go.uber.org/zap"
)

type Kind string

const (
	KindFired       Kind = "fired"
	KindSnoozeFired Kind = "snooze_fired"
	KindSnoozed     Kind = "snoozed"
	KindDismissed   Kind = "dismissed"
)

type Entry struct {
	AlarmID int
	Kind    Kind
	Label   string
	At      time.Time
}

type Journal struct {
	pool   *sqlitex.Pool
	logger *zap.Logger
}

// Open opens (creating if needed) the journal database at path
func Open(path string, logger *zap.Logger) (*Journal, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := sqlitex.Open(path, 0, 4)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	conn := pool.Get(context.Background())
	err = Migrate(conn, migration.Scripts)
	pool.Put(conn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	logger.Info("Ring journal opened", zap.String("path", path))
	return &Journal{pool: pool, logger: logger}, nil
}

func (j *Journal) Close() error {
	return j.pool.Close()
}

func (j *Journal) conn(ctx context.Context) (*sqlite.Conn, error) {
	conn := j.pool.Get(ctx)
	if conn == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("journal closed")
	}
	return conn, nil
}

func (j *Journal) Record(ctx context.Context, e Entry) error {
	conn, err := j.conn(ctx)
	if err != nil {
		return err
	}
	defer j.pool.Put(conn)

	err = sqlitex.Exec(conn,
		"insert into ring_event (alarm_id, kind, label, at) values (?, ?, ?, ?)",
		nil, e.AlarmID, string(e.Kind), e.Label, e.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("record %s for alarm %d: %w", e.Kind, e.AlarmID, err)
	}
	return nil
}

// Recent returns up to n entries, newest first
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	conn, err := j.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer j.pool.Put(conn)

	var entries []Entry
	err = sqlitex.Exec(conn,
		"select alarm_id, kind, label, at from ring_event order by at desc, id desc limit ?",
		func(stmt *sqlite.Stmt) error {
			entries = append(entries, scanEntry(stmt))
			return nil
		}, n)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	return entries, nil
}

// LastFired reports when the alarm last rang, by schedule or by snooze
func (j *Journal) LastFired(ctx context.Context, alarmID int) (time.Time, bool, error) {
	conn, err := j.conn(ctx)
	if err != nil {
		return time.Time{}, false, err
	}
	defer j.pool.Put(conn)

	var (
		at    time.Time
		found bool
	)
	err = sqlitex.Exec(conn,
		"select max(at) from ring_event where alarm_id = ? and kind in (?, ?)",
		func(stmt *sqlite.Stmt) error {
			if stmt.ColumnType(0) == sqlite.SQLITE_NULL {
				return nil
			}
			at = time.UnixMilli(stmt.ColumnInt64(0))
			found = true
			return nil
		}, alarmID, string(KindFired), string(KindSnoozeFired))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last fired for alarm %d: %w", alarmID, err)
	}
	return at, found, nil
}

// Prune deletes entries older than before and returns how many were removed
func (j *Journal) Prune(ctx context.Context, before time.Time) (int, error) {
	conn, err := j.conn(ctx)
	if err != nil {
		return 0, err
	}
	defer j.pool.Put(conn)

	if err := sqlitex.Exec(conn, "delete from ring_event where at < ?", nil, before.UnixMilli()); err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	n := conn.Changes()
	if n > 0 {
		j.logger.Info("Pruned ring journal", zap.Int("removed", n))
	}
	return n, nil
}

func scanEntry(stmt *sqlite.Stmt) Entry {
	return Entry{
		AlarmID: stmt.ColumnInt(0),
		Kind:    Kind(stmt.ColumnText(1)),
		Label:   stmt.ColumnText(2),
		At:      time.UnixMilli(stmt.ColumnInt64(3)),
	}
}
