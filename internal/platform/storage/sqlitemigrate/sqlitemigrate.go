// Package sqlitemigrate applies the embedded journal schema migrations.
//
// Migrations are plain .sql files ordered by filename. Each file runs at
// most once per database; the ledger of applied files lives in the
// journal_migrations table alongside the journal itself.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const ledgerTable = "journal_migrations"

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// Apply runs every unapplied .sql file under dir in filename order.
// Each migration executes in its own transaction and is recorded in the
// ledger only after its statements succeed, so a failed migration can be
// fixed and re-run without manual ledger surgery.
func Apply(ctx context.Context, db *sql.DB, fsys fs.FS, dir string) error {
	if db == nil {
		return fmt.Errorf("sqlite handle is nil")
	}

	dir = path.Clean(strings.TrimSpace(dir))

	files, err := listMigrations(fsys, dir)
	if err != nil {
		return err
	}

	if err := ensureLedger(ctx, db); err != nil {
		return err
	}

	for _, name := range files {
		key := name
		if dir != "." {
			key = path.Join(dir, name)
		}

		done, err := alreadyApplied(ctx, db, key)
		if err != nil {
			return fmt.Errorf("check ledger for %s: %w", name, err)
		}
		if done {
			continue
		}

		raw, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		stmts := upSection(string(raw))
		if strings.TrimSpace(stmts) == "" {
			continue
		}

		if err := applyOne(ctx, db, key, stmts); err != nil {
			return err
		}
	}

	return nil
}

func listMigrations(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list migration files in %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	return files, nil
}

func ensureLedger(ctx context.Context, db *sql.DB) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    file       TEXT PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`, ledgerTable)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure migration ledger: %w", err)
	}
	return nil
}

func applyOne(ctx context.Context, db *sql.DB, key, stmts string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx for %s: %w", key, err)
	}

	if _, err := tx.ExecContext(ctx, stmts); err != nil {
		// Databases migrated before the ledger table existed trip
		// "already exists" on re-run; that counts as applied.
		if !benignDDLError(err) {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", key, err)
		}
	}

	appliedAt := time.Now().UTC().Format(time.RFC3339)
	record := fmt.Sprintf("INSERT OR IGNORE INTO %s (file, applied_at) VALUES (?, ?)", ledgerTable)
	if _, err := tx.ExecContext(ctx, record, key, appliedAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("record %s in ledger: %w", key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

func alreadyApplied(ctx context.Context, db *sql.DB, key string) (bool, error) {
	var one int
	row := db.QueryRowContext(ctx, "SELECT 1 FROM "+ledgerTable+" WHERE file = ?", key)
	switch err := row.Scan(&one); err {
	case nil:
		return true, nil
	case sql.ErrNoRows:
		return false, nil
	default:
		return false, err
	}
}

// upSection returns the statements between the Up and Down markers. Files
// without markers are treated as up-only migrations.
func upSection(content string) string {
	up := strings.Index(content, upMarker)
	if up == -1 {
		return content
	}
	rest := content[up+len(upMarker):]
	if down := strings.Index(rest, downMarker); down != -1 {
		rest = rest[:down]
	}
	return rest
}

func benignDDLError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}
