/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package tracestore persists dispatch frames: an embedded SQLite store next
// to the config, an optional shared Postgres sink, and a fan-out writing to
// several sinks at once.
package tracestore

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

	applog "framepass/internal/log"
	"framepass/internal/trace"
	"framepass/internal/version"

	"github.com/google/uuid"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	FileName = "traces.sqlite"

	// schemaVersion tracks the local SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2

	// tsLayout is fixed width so that text order is time order.
	tsLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Sink receives finished frames.
type Sink interface {
	SaveFrames(ctx context.Context, frames []trace.Frame) error
	Close() error
}

// Store is the embedded SQLite trace store.
type Store struct {
	db   *sql.DB
	path string
	log  *slog.Logger
}

// Path returns the database file inside dir.
func Path(dir string) string { return filepath.Join(dir, FileName) }

// Open ensures dir/traces.sqlite exists, enables WAL mode and brings the
// schema up to date.
func Open(dir string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("tracestore"), "open").With(slog.String("dir", dir))
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("tracestore: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.Error("create trace dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create trace dir: %w", err)
	}

	path := Path(dir)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("trace store ready", slog.String("path", path))
	return &Store{db: db, path: path, log: applog.WithComponent("tracestore")}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// DB exposes the handle for diagnostics and tests.
func (s *Store) DB() *sql.DB { return s.db }

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
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
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// keep the stored schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS frames (
			id          TEXT    PRIMARY KEY,
			root        TEXT    NOT NULL,
			number      INTEGER NOT NULL,
			ts          TEXT    NOT NULL,
			duration_ns INTEGER NOT NULL,
			cancelled   INTEGER NOT NULL DEFAULT 0,
			repeats     INTEGER NOT NULL DEFAULT 0,
			pushed      INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_frames_root_ts ON frames(root, ts);`,
		`CREATE TABLE IF NOT EXISTS steps (
			frame_id TEXT    NOT NULL,
			seq      INTEGER NOT NULL,
			element  TEXT    NOT NULL,
			type     TEXT    NOT NULL,
			pass     INTEGER NOT NULL,
			subpass  INTEGER NOT NULL,
			handler  TEXT    NOT NULL,
			PRIMARY KEY(frame_id, seq),
			FOREIGN KEY(frame_id) REFERENCES frames(id) ON DELETE CASCADE
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// never downgrade
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			// v1 stores had no push bookkeeping
			stmts = []string{
				`ALTER TABLE frames ADD COLUMN pushed INTEGER NOT NULL DEFAULT 0;`,
				`CREATE INDEX IF NOT EXISTS idx_frames_pushed ON frames(pushed);`,
			}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

// SchemaVersion returns the schema recorded in the store.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v)
	return v, err
}

// SaveFrames inserts frames with their steps. Frames already stored are skipped.
func (s *Store) SaveFrames(ctx context.Context, frames []trace.Frame) error {
	if len(frames) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("tracestore: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, f := range frames {
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO frames (id, root, number, ts, duration_ns, cancelled, repeats) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			f.ID.String(), f.Root, int64(f.Number), f.TS.UTC().Format(tsLayout), int64(f.Duration), boolInt(f.Cancelled), f.Repeats)
		if err != nil {
			return fmt.Errorf("tracestore: insert frame %s: %w", f.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		for i, st := range f.Steps {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO steps (frame_id, seq, element, type, pass, subpass, handler) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				f.ID.String(), i, st.Element, st.Type, int32(st.Pass), int32(st.Subpass), st.Handler); err != nil {
				return fmt.Errorf("tracestore: insert step %d of %s: %w", i, f.ID, err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("tracestore: commit: %w", err)
	}
	s.log.Debug("frames stored", slog.Int("count", len(frames)))
	return nil
}

// Recent returns up to limit frames, newest first, with their steps.
func (s *Store) Recent(ctx context.Context, limit int) ([]trace.Frame, error) {
	return s.query(ctx, `SELECT id, root, number, ts, duration_ns, cancelled, repeats FROM frames ORDER BY ts DESC, number DESC LIMIT ?`, limit)
}

// Unpushed returns up to limit frames not yet copied to a shared sink, oldest first.
func (s *Store) Unpushed(ctx context.Context, limit int) ([]trace.Frame, error) {
	return s.query(ctx, `SELECT id, root, number, ts, duration_ns, cancelled, repeats FROM frames WHERE pushed=0 ORDER BY ts ASC, number ASC LIMIT ?`, limit)
}

// MarkPushed flags frames as copied.
func (s *Store) MarkPushed(ctx context.Context, ids []uuid.UUID) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `UPDATE frames SET pushed=1 WHERE id=?`, id.String()); err != nil {
			return fmt.Errorf("tracestore: mark %s: %w", id, err)
		}
	}
	return tx.Commit()
}

// Count returns the number of stored frames.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM frames`).Scan(&n)
	return n, err
}

func (s *Store) query(ctx context.Context, q string, limit int) ([]trace.Frame, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("tracestore: query frames: %w", err)
	}
	var out []trace.Frame
	for rows.Next() {
		var (
			f         trace.Frame
			id, ts    string
			number    int64
			dur       int64
			cancelled int
		)
		if err := rows.Scan(&id, &f.Root, &number, &ts, &dur, &cancelled, &f.Repeats); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if f.ID, err = uuid.Parse(id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("tracestore: frame id %q: %w", id, err)
		}
		if f.TS, err = time.Parse(tsLayout, ts); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("tracestore: frame ts %q: %w", ts, err)
		}
		f.Number = uint64(number)
		f.Duration = time.Duration(dur)
		f.Cancelled = cancelled != 0
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()
	// single connection: load steps after the frame cursor is closed
	for i := range out {
		steps, err := s.steps(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Steps = steps
	}
	return out, nil
}

func (s *Store) steps(ctx context.Context, id uuid.UUID) ([]trace.Step, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT element, type, pass, subpass, handler FROM steps WHERE frame_id=? ORDER BY seq`, id.String())
	if err != nil {
		return nil, fmt.Errorf("tracestore: query steps: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []trace.Step
	for rows.Next() {
		var st trace.Step
		if err := rows.Scan(&st.Element, &st.Type, &st.Pass, &st.Subpass, &st.Handler); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
