/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"gofountain/internal/fountain"
	applog "gofountain/internal/log"
)

const activeKey = "active_script"

// dialect holds what differs between the SQLite and Postgres backends.
type dialect struct {
	name string
	// rebind rewrites '?' placeholders for the driver.
	rebind func(q string) string
	// timeArg converts a timestamp for binding.
	timeArg func(t time.Time) any
	// textMatch returns the WHERE fragment (with one '?') restricting elements e to a text query.
	textMatch func(text string) (string, any)
}

// SQLStore implements Store on database/sql.
type SQLStore struct {
	db   *sql.DB
	d    dialect
	opts Options
	log  *slog.Logger
}

var _ Store = (*SQLStore)(nil)

func newSQLStore(db *sql.DB, d dialect, opts Options) *SQLStore {
	return &SQLStore{
		db:   db,
		d:    d,
		opts: opts,
		log:  applog.WithComponent("library").With(slog.String("driver", d.name)),
	}
}

// Driver names the backend ("sqlite" or "postgres").
func (s *SQLStore) Driver() string { return s.d.name }

// DB exposes the underlying handle for maintenance commands and tests.
func (s *SQLStore) DB() *sql.DB { return s.db }

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) q(query string) string { return s.d.rebind(query) }

// Save stores text under name, re-indexes its elements and records a snapshot.
// Saving unchanged text writes nothing and returns the stored script.
func (s *SQLStore) Save(ctx context.Context, name, text string) (Script, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return Script{}, err
	}
	ctx = applog.WithScript(ctx, n)
	l := applog.WithOperation(s.log, "save")
	start := time.Now()

	if cur, err := s.Load(ctx, n); err == nil && cur.Text == text {
		l.DebugContext(ctx, "unchanged")
		return cur, nil
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return Script{}, err
	}

	res := fountain.Parse(text)
	elems := Elements(res)
	now := s.opts.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Script{}, fmt.Errorf("library: begin save: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id      int64
		created dbTime
	)
	err = tx.QueryRowContext(ctx, s.q(`INSERT INTO scripts(name, title, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET title=excluded.title, text=excluded.text, updated_at=excluded.updated_at
		RETURNING id, created_at`),
		n, res.Title, text, s.d.timeArg(now), s.d.timeArg(now)).Scan(&id, &created)
	if err != nil {
		return Script{}, fmt.Errorf("library: upsert script: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM elements WHERE script_id = ?`), id); err != nil {
		return Script{}, fmt.Errorf("library: clear elements: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, s.q(`INSERT INTO elements(script_id, position, kind, text, scene, speaker) VALUES (?, ?, ?, ?, ?, ?)`))
	if err != nil {
		return Script{}, fmt.Errorf("library: prepare elements: %w", err)
	}
	defer func() { _ = ins.Close() }()
	for _, e := range elems {
		if _, err := ins.ExecContext(ctx, id, e.Position, e.Kind.String(), e.Text, e.Scene, nullString(e.Character)); err != nil {
			return Script{}, fmt.Errorf("library: insert element %d: %w", e.Position, err)
		}
	}
	if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO script_snapshots(script_id, created_at, text) VALUES (?, ?, ?)`), id, s.d.timeArg(now), text); err != nil {
		return Script{}, fmt.Errorf("library: insert snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Script{}, fmt.Errorf("library: commit save: %w", err)
	}

	if s.opts.SnapshotKeep > 0 {
		if _, err := s.prune(ctx, id, s.opts.SnapshotKeep); err != nil {
			l.WarnContext(ctx, "prune after save failed", slog.Any("err", err))
		}
	}
	l.InfoContext(ctx, "saved", slog.Int("elements", len(elems)), applog.Since(start))
	return Script{Name: n, Title: res.Title, Text: text, CreatedAt: created.t, UpdatedAt: now}, nil
}

func (s *SQLStore) Load(ctx context.Context, name string) (Script, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return Script{}, err
	}
	var (
		sc               Script
		created, updated dbTime
	)
	err = s.db.QueryRowContext(ctx, s.q(`SELECT name, title, text, created_at, updated_at FROM scripts WHERE name = ?`), n).
		Scan(&sc.Name, &sc.Title, &sc.Text, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Script{}, fmt.Errorf("%w: %s", ErrNotFound, n)
	}
	if err != nil {
		return Script{}, fmt.Errorf("library: load %s: %w", n, err)
	}
	sc.CreatedAt, sc.UpdatedAt = created.t, updated.t
	return sc, nil
}

func (s *SQLStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT s.name, s.title, s.updated_at,
		(SELECT COUNT(*) FROM elements e WHERE e.script_id = s.id AND e.kind = ?)
		FROM scripts s ORDER BY s.name`), fountain.KindSceneHeading.String())
	if err != nil {
		return nil, fmt.Errorf("library: list: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Summary{}
	for rows.Next() {
		var (
			sm      Summary
			updated dbTime
		)
		if err := rows.Scan(&sm.Name, &sm.Title, &updated, &sm.Scenes); err != nil {
			return nil, fmt.Errorf("library: scan summary: %w", err)
		}
		sm.UpdatedAt = updated.t
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Delete removes a script with its elements and history. Deleting the active
// script clears the active pointer.
func (s *SQLStore) Delete(ctx context.Context, name string) error {
	n, err := NormalizeName(name)
	if err != nil {
		return err
	}
	id, err := s.scriptID(ctx, n)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("library: begin delete: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, q := range []string{
		`DELETE FROM elements WHERE script_id = ?`,
		`DELETE FROM script_snapshots WHERE script_id = ?`,
		`DELETE FROM scripts WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, s.q(q), id); err != nil {
			return fmt.Errorf("library: delete %s: %w", n, err)
		}
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM meta WHERE key = ? AND value = ?`), activeKey, n); err != nil {
		return fmt.Errorf("library: clear active: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("library: commit delete: %w", err)
	}
	applog.WithOperation(s.log, "delete").InfoContext(applog.WithScript(ctx, n), "deleted")
	return nil
}

func (s *SQLStore) SetActive(ctx context.Context, name string) error {
	n, err := NormalizeName(name)
	if err != nil {
		return err
	}
	if _, err := s.scriptID(ctx, n); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(`INSERT INTO meta(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value=excluded.value`), activeKey, n)
	if err != nil {
		return fmt.Errorf("library: set active: %w", err)
	}
	return nil
}

// Active returns the name of the last-used script, or ErrNotFound when none is set.
func (s *SQLStore) Active(ctx context.Context) (string, error) {
	var n string
	err := s.db.QueryRowContext(ctx, s.q(`SELECT value FROM meta WHERE key = ?`), activeKey).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: no active script", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("library: read active: %w", err)
	}
	return n, nil
}

// History returns up to limit snapshots of a script, newest first. limit <= 0 means 50.
func (s *SQLStore) History(ctx context.Context, name string, limit int) ([]Snapshot, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return nil, err
	}
	id, err := s.scriptID(ctx, n)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, created_at, text FROM script_snapshots
		WHERE script_id = ? ORDER BY id DESC LIMIT ?`), id, limit)
	if err != nil {
		return nil, fmt.Errorf("library: history: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Snapshot{}
	for rows.Next() {
		var (
			sn Snapshot
			at dbTime
		)
		if err := rows.Scan(&sn.ID, &at, &sn.Text); err != nil {
			return nil, fmt.Errorf("library: scan snapshot: %w", err)
		}
		sn.At = at.t
		out = append(out, sn)
	}
	return out, rows.Err()
}

// Revision returns one snapshot of a script by id.
func (s *SQLStore) Revision(ctx context.Context, name string, snapID int64) (Snapshot, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return Snapshot{}, err
	}
	id, err := s.scriptID(ctx, n)
	if err != nil {
		return Snapshot{}, err
	}
	var (
		sn Snapshot
		at dbTime
	)
	err = s.db.QueryRowContext(ctx, s.q(`SELECT id, created_at, text FROM script_snapshots
		WHERE script_id = ? AND id = ?`), id, snapID).Scan(&sn.ID, &at, &sn.Text)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("%w: %s revision %d", ErrNotFound, n, snapID)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("library: revision: %w", err)
	}
	sn.At = at.t
	return sn, nil
}

// Prune keeps the newest keep snapshots of a script and returns how many were removed.
// keep <= 0 removes nothing.
func (s *SQLStore) Prune(ctx context.Context, name string, keep int) (int64, error) {
	n, err := NormalizeName(name)
	if err != nil {
		return 0, err
	}
	id, err := s.scriptID(ctx, n)
	if err != nil {
		return 0, err
	}
	if keep <= 0 {
		return 0, nil
	}
	return s.prune(ctx, id, keep)
}

func (s *SQLStore) prune(ctx context.Context, id int64, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM script_snapshots WHERE script_id = ? AND id NOT IN (
		SELECT id FROM script_snapshots WHERE script_id = ? ORDER BY id DESC LIMIT ?)`), id, id, keep)
	if err != nil {
		return 0, fmt.Errorf("library: prune: %w", err)
	}
	return res.RowsAffected()
}

// Search finds indexed elements. Results are ordered by script name and position.
func (s *SQLStore) Search(ctx context.Context, q Query) ([]Hit, error) {
	var (
		args []any
		sb   strings.Builder
	)
	sb.WriteString("SELECT s.name, e.position, e.kind, e.text, e.scene, COALESCE(e.speaker, '')\n")
	sb.WriteString("FROM elements e JOIN scripts s ON s.id = e.script_id\nWHERE 1=1\n")
	if strings.TrimSpace(q.Text) != "" {
		clause, arg := s.d.textMatch(q.Text)
		sb.WriteString(" AND " + clause + "\n")
		args = append(args, arg)
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND e.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k.String())
		}
	}
	if c := strings.TrimSpace(q.Character); c != "" {
		sb.WriteString(" AND lower(e.speaker) = ?\n")
		args = append(args, strings.ToLower(SpeakerName(c)))
	}
	if sc := strings.TrimSpace(q.Script); sc != "" {
		sb.WriteString(" AND s.name = ?\n")
		args = append(args, sc)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	sb.WriteString("ORDER BY s.name, e.position\nLIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, s.q(sb.String()), args...)
	if err != nil {
		return nil, fmt.Errorf("library: search: %w", err)
	}
	defer func() { _ = rows.Close() }()
	out := []Hit{}
	for rows.Next() {
		var (
			h    Hit
			kind string
		)
		if err := rows.Scan(&h.Script, &h.Position, &kind, &h.Text, &h.Scene, &h.Character); err != nil {
			return nil, fmt.Errorf("library: scan hit: %w", err)
		}
		if h.Kind, err = fountain.ParseKind(kind); err != nil {
			return nil, fmt.Errorf("library: stored element: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLStore) scriptID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.q(`SELECT id FROM scripts WHERE name = ?`), name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("library: lookup %s: %w", name, err)
	}
	return id, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

// questionToDollar rewrites '?' placeholders as $1, $2, ... outside quoted literals.
func questionToDollar(q string) string {
	var (
		b     strings.Builder
		n     int
		quote bool
	)
	b.Grow(len(q) + 8)
	for i := 0; i < len(q); i++ {
		c := q[i]
		switch {
		case c == '\'':
			quote = !quote
			b.WriteByte(c)
		case c == '?' && !quote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// dbTime scans timestamps stored either natively or as text.
type dbTime struct{ t time.Time }

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (d *dbTime) Scan(v any) error {
	switch x := v.(type) {
	case nil:
		d.t = time.Time{}
		return nil
	case time.Time:
		d.t = x.UTC()
		return nil
	case string:
		return d.parse(x)
	case []byte:
		return d.parse(string(x))
	default:
		return fmt.Errorf("unsupported time value %T", v)
	}
}

func (d *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("unparseable time %q", s)
}
