/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "gofountain/internal/log"
	"gofountain/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// FileName is the database file inside the library directory.
	FileName = "library.sqlite"

	// sqliteSchemaVersion is bumped together with a new step in migrateSQLite.
	sqliteSchemaVersion = 2
)

var sqliteDialect = dialect{
	name:    "sqlite",
	rebind:  func(q string) string { return q },
	timeArg: func(t time.Time) any { return t.UTC().Format(time.RFC3339Nano) },
	textMatch: func(text string) (string, any) {
		return "e.id IN (SELECT rowid FROM fts_elements WHERE fts_elements MATCH ?)", ftsQuery(text)
	},
}

// Path returns the database file for a library directory.
func Path(dir string) string { return filepath.Join(dir, FileName) }

// OpenSQLite opens (creating if needed) the library database in dir, enables WAL
// and brings the schema up to date.
func OpenSQLite(ctx context.Context, dir string, opts Options) (*SQLStore, error) {
	l := applog.WithOperation(applog.WithComponent("library"), "open_sqlite").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("library: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("library: create dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", filepath.ToSlash(Path(dir)))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("library: open sqlite: %w", err)
	}
	// one writer; keeps transactions from contending on the file lock
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("library: enable WAL: %w", err)
	}
	if err := ensureSQLiteMeta(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := migrateSQLite(ctx, db); err != nil {
		_ = db.Close()
		l.Error("migrate failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("library ready", slog.String("path", Path(dir)))
	return newSQLStore(db, sqliteDialect, opts), nil
}

func ensureSQLiteMeta(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("library: create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// a fresh file starts at 0 so every migration step runs
		_, err = db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 0, ?, ?, ?)`, version.String(), now, now)
	case err == nil:
		_, err = db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, version.String(), now)
	}
	if err != nil {
		return fmt.Errorf("library: version row: %w", err)
	}
	return nil
}

// sqliteSteps[i] upgrades the schema from version i to i+1.
var sqliteSteps = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS scripts (
			id         INTEGER PRIMARY KEY,
			name       TEXT NOT NULL UNIQUE,
			title      TEXT NOT NULL,
			text       TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS elements (
			id        INTEGER PRIMARY KEY,
			script_id INTEGER NOT NULL REFERENCES scripts(id) ON DELETE CASCADE,
			position  INTEGER NOT NULL,
			kind      TEXT    NOT NULL,
			text      TEXT    NOT NULL,
			scene     INTEGER NOT NULL DEFAULT 0,
			speaker   TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_elements_script ON elements(script_id, position);`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_elements USING fts5(
			text,
			content='',
			tokenize = 'unicode61'
		);`,
		`CREATE TRIGGER IF NOT EXISTS elements_ai AFTER INSERT ON elements BEGIN
			INSERT INTO fts_elements(rowid, text) VALUES (new.id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS elements_ad AFTER DELETE ON elements BEGIN
			INSERT INTO fts_elements(fts_elements, rowid, text) VALUES ('delete', old.id, old.text);
		END;`,
		`CREATE TABLE IF NOT EXISTS script_snapshots (
			id         INTEGER PRIMARY KEY,
			script_id  INTEGER NOT NULL REFERENCES scripts(id) ON DELETE CASCADE,
			created_at TEXT    NOT NULL,
			text       TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_script_snapshots_script ON script_snapshots(script_id, id);`,
	},
	{
		`CREATE INDEX IF NOT EXISTS idx_elements_speaker ON elements(lower(speaker));`,
		`CREATE INDEX IF NOT EXISTS idx_elements_kind ON elements(kind);`,
	},
}

// migrateSQLite applies the pending steps, each in its own transaction.
func migrateSQLite(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("library: read schema version: %w", err)
	}
	if cur > sqliteSchemaVersion {
		return fmt.Errorf("library: database schema %d is newer than this build (%d)", cur, sqliteSchemaVersion)
	}
	for ; cur < sqliteSchemaVersion; cur++ {
		next := cur + 1
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("library: begin migration %d: %w", next, err)
		}
		for _, q := range sqliteSteps[cur] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("library: migration %d: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("library: migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("library: migration %d commit: %w", next, err)
		}
	}
	return nil
}

// SchemaVersion reports the schema version recorded in the SQLite database.
func (s *SQLStore) SchemaVersion(ctx context.Context) (int, error) {
	if s.d.name != sqliteDialect.name {
		return 0, errors.New("library: schema version is tracked for sqlite only")
	}
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

// Optimize merges the FTS index segments.
func (s *SQLStore) Optimize(ctx context.Context) error {
	if s.d.name != sqliteDialect.name {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO fts_elements(fts_elements) VALUES('optimize')`)
	return err
}

// ftsQuery turns free text into an FTS5 query where every word must match.
// Words are quoted so punctuation such as ':' or '-' is never read as syntax.
func ftsQuery(text string) string {
	words := strings.Fields(text)
	for i, w := range words {
		words[i] = `"` + strings.ReplaceAll(w, `"`, `""`) + `"`
	}
	return strings.Join(words, " ")
}
