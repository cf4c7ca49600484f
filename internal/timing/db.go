package timing

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/tartilapp/tartil-server/internal/domain"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// openTimingDB opens an existing per-reciter timing database for reads.
func openTimingDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	return db, nil
}

// queryChapter reads the ordered timing table for one chapter.
func queryChapter(ctx context.Context, db *sql.DB, chapter int) (*domain.ChapterTiming, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT chapter, verse, start_ms, end_ms FROM timings WHERE chapter = ? ORDER BY verse`,
		chapter)
	if err != nil {
		return nil, fmt.Errorf("query timings: %w", err)
	}
	defer rows.Close()

	table := &domain.ChapterTiming{Chapter: chapter}
	for rows.Next() {
		var v domain.VerseTiming
		if err := rows.Scan(&v.Chapter, &v.Verse, &v.StartMs, &v.EndMs); err != nil {
			return nil, fmt.Errorf("scan timing row: %w", err)
		}
		table.Verses = append(table.Verses, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate timing rows: %w", err)
	}

	return table, nil
}

// CreateDatabase writes a timing database at path containing the given
// chapter tables. Used by the import tooling; existing rows for the same
// chapter and verse are replaced.
func CreateDatabase(path string, tables ...*domain.ChapterTiming) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("exec schema: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO timings (chapter, verse, start_ms, end_ms) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, table := range tables {
		for _, v := range table.Verses {
			if _, err := stmt.Exec(table.Chapter, v.Verse, v.StartMs, v.EndMs); err != nil {
				return fmt.Errorf("insert timing %d:%d: %w", table.Chapter, v.Verse, err)
			}
		}
	}

	return tx.Commit()
}
