package history

import (
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

// Migrate runs the scripts in fsys that are newer than the database
func Migrate(conn *sqlite.Conn, fsys fs.FS) (err error) {
	release := sqlitex.Save(conn)
	defer release(&err)

	var oldVer int
	if err = sqlitex.ExecTransient(conn, "pragma user_version", func(stmt *sqlite.Stmt) error {
		oldVer = stmt.ColumnInt(0)
		return nil
	}); err != nil {
		return fmt.Errorf("get version: %w", err)
	}

	scripts, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		return fmt.Errorf("list scripts: %w", err)
	}
	currVer := len(scripts)
	if oldVer >= currVer {
		return nil
	}

	sort.Strings(scripts)
	for _, script := range scripts[oldVer:] {
		buf, err := fs.ReadFile(fsys, script)
		if err != nil {
			return fmt.Errorf("read %s: %w", script, err)
		}
		queries := strings.TrimSpace(string(buf))
		for i := 0; queries != ""; i++ {
			stmt, trailingBytes, err := conn.PrepareTransient(queries)
			if err != nil {
				return fmt.Errorf("prepare %s, stmt %d: %w", script, i, err)
			}
			queries = queries[len(queries)-trailingBytes:]
			_, err = stmt.Step()
			stmt.Finalize()
			if err != nil {
				return fmt.Errorf("execute %s, stmt %d: %w", script, i, err)
			}
			queries = strings.TrimSpace(queries)
		}
	}

	if err := sqlitex.Exec(conn, "pragma user_version="+strconv.Itoa(currVer), nil); err != nil {
		return fmt.Errorf("set version: %w", err)
	}
	return nil
}
