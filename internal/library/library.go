/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package library stores named screenplays together with their save history and a
// searchable index of parsed elements. Two backends share one implementation:
// an embedded SQLite file (default) and a Postgres database.
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"gofountain/internal/config"
	"gofountain/internal/fountain"
)

var (
	ErrNotFound    = errors.New("library: script not found")
	ErrInvalidName = errors.New("library: invalid script name")
)

// MaxNameLen is the longest accepted script name, in runes.
const MaxNameLen = 200

// Script is one stored document.
type Script struct {
	Name      string
	Title     string
	Text      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary is a List row.
type Summary struct {
	Name      string
	Title     string
	Scenes    int
	UpdatedAt time.Time
}

// Snapshot is one saved revision of a script, newest first in History.
type Snapshot struct {
	ID   int64
	At   time.Time
	Text string
}

// Query filters Search. Text is matched word by word against element text;
// every word must occur. All filters are optional and combined with AND.
type Query struct {
	Text      string
	Kinds     []fountain.Kind
	Character string // speaker name, case-insensitive, extension ignored
	Script    string
	Limit     int
	Offset    int
}

// Hit is one matching element.
type Hit struct {
	Script    string
	Position  int
	Kind      fountain.Kind
	Text      string
	Scene     int
	Character string
}

// Store is the script library.
type Store interface {
	Save(ctx context.Context, name, text string) (Script, error)
	Load(ctx context.Context, name string) (Script, error)
	List(ctx context.Context) ([]Summary, error)
	Delete(ctx context.Context, name string) error
	SetActive(ctx context.Context, name string) error
	Active(ctx context.Context) (string, error)
	History(ctx context.Context, name string, limit int) ([]Snapshot, error)
	Revision(ctx context.Context, name string, id int64) (Snapshot, error)
	Prune(ctx context.Context, name string, keep int) (int64, error)
	Search(ctx context.Context, q Query) ([]Hit, error)
	Close() error
}

// NormalizeName trims name and checks it: non-empty, no path separators,
// at most MaxNameLen runes.
func NormalizeName(name string) (string, error) {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		return "", fmt.Errorf("%w: empty", ErrInvalidName)
	case strings.ContainsAny(n, `/\`):
		return "", fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, n)
	case !utf8.ValidString(n):
		return "", fmt.Errorf("%w: not valid UTF-8", ErrInvalidName)
	case utf8.RuneCountInString(n) > MaxNameLen:
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidName, MaxNameLen)
	}
	return n, nil
}

// Element is one indexed token.
type Element struct {
	Position  int
	Kind      fountain.Kind
	Text      string
	Scene     int
	Character string
}

// Elements derives the index rows for a parse result. Scene is the 1-based ordinal
// of the enclosing scene heading (0 before the first). Character is set on cues and
// on the dialogue and parentheticals that follow them. Tokens without text are skipped.
func Elements(res fountain.Result) []Element {
	out := make([]Element, 0, len(res.Tokens))
	scene := 0
	speaker := ""
	for i, t := range res.Tokens {
		switch t.Kind {
		case fountain.KindSceneHeading:
			scene++
			speaker = ""
		case fountain.KindCharacter:
			speaker = SpeakerName(t.Text)
		case fountain.KindDialogue, fountain.KindParenthetical:
		default:
			speaker = ""
		}
		text := t.Text
		if t.Kind == fountain.KindSceneHeading {
			text = t.Heading()
		}
		if text == "" {
			continue
		}
		out = append(out, Element{Position: i, Kind: t.Kind, Text: text, Scene: scene, Character: speaker})
	}
	return out
}

// SpeakerName strips a trailing extension such as "(V.O.)" from a character cue.
func SpeakerName(cue string) string {
	if i := strings.Index(cue, "("); i > 0 {
		cue = cue[:i]
	}
	return strings.TrimSpace(cue)
}

// Options configures a store.
type Options struct {
	// SnapshotKeep bounds the history per script after each save; 0 keeps everything.
	SnapshotKeep int
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now().UTC()
	}
	return time.Now().UTC()
}

// Open opens the store selected by cfg.Driver. secret is the Postgres password
// from the keyring and is ignored for SQLite.
func Open(ctx context.Context, cfg config.LibraryConfig, secret string) (*SQLStore, error) {
	opts := Options{SnapshotKeep: cfg.SnapshotKeep}
	switch cfg.Driver {
	case "", config.DriverSQLite:
		dir := cfg.Path
		if strings.TrimSpace(dir) == "" {
			d, err := config.DefaultLibraryDir()
			if err != nil {
				return nil, err
			}
			dir = d
		}
		return OpenSQLite(ctx, dir, opts)
	case config.DriverPostgres:
		dsn, err := cfg.PostgresDSN(secret)
		if err != nil {
			return nil, err
		}
		return OpenPostgres(ctx, dsn, opts)
	default:
		return nil, fmt.Errorf("library: unknown driver %q", cfg.Driver)
	}
}
