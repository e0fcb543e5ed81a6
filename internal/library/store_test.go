/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package library

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofountain/internal/fountain"
)

const pilot = `Title: Pilot
Author: Jane Roe

INT. KITCHEN - DAY #1#

The kettle whistles.

EDWARD (V.O.)
(softly)
Come in.

CUT TO:

EXT. GARDEN - NIGHT

WILL
Thanks for the kettle.
`

const finale = `Title: Finale

EXT. RIVER - DAWN

Mist over the water.

WILL
It ends here.
`

// fakeClock hands out strictly increasing timestamps.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func openSQLiteForTest(t *testing.T, opts Options) *SQLStore {
	t.Helper()
	st, err := OpenSQLite(context.Background(), t.TempDir(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// backends returns one opener per available backend.
func backends(t *testing.T) map[string]func(t *testing.T, opts Options) *SQLStore {
	t.Helper()
	return map[string]func(t *testing.T, opts Options) *SQLStore{
		"sqlite":   openSQLiteForTest,
		"postgres": openPGForTest,
	}
}

func TestStore_SaveLoad(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, Options{Now: newClock().Now})

			saved, err := st.Save(ctx, "  pilot ", pilot)
			require.NoError(t, err)
			assert.Equal(t, "pilot", saved.Name)
			assert.Equal(t, "Pilot", saved.Title)

			got, err := st.Load(ctx, "pilot")
			require.NoError(t, err)
			assert.Equal(t, pilot, got.Text)
			assert.Equal(t, "Pilot", got.Title)
			assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC), got.CreatedAt)

			_, err = st.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = st.Save(ctx, "a/b", pilot)
			assert.ErrorIs(t, err, ErrInvalidName)
		})
	}
}

func TestStore_ResaveKeepsCreatedAndReindexes(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, Options{Now: newClock().Now})

			first, err := st.Save(ctx, "pilot", pilot)
			require.NoError(t, err)
			second, err := st.Save(ctx, "pilot", finale)
			require.NoError(t, err)
			assert.Equal(t, "Finale", second.Title)

			got, err := st.Load(ctx, "pilot")
			require.NoError(t, err)
			assert.Equal(t, first.CreatedAt, got.CreatedAt)
			assert.True(t, got.UpdatedAt.After(got.CreatedAt))

			hits, err := st.Search(ctx, Query{Text: "kettle"})
			require.NoError(t, err)
			assert.Empty(t, hits)
			hits, err = st.Search(ctx, Query{Text: "mist"})
			require.NoError(t, err)
			assert.Len(t, hits, 1)
		})
	}
}

func TestStore_HistoryAndPrune(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, Options{Now: newClock().Now})

			for i := 0; i < 4; i++ {
				_, err := st.Save(ctx, "pilot", fmt.Sprintf("Draft %d.\n", i))
				require.NoError(t, err)
			}
			// unchanged text adds no snapshot
			_, err := st.Save(ctx, "pilot", "Draft 3.\n")
			require.NoError(t, err)

			hist, err := st.History(ctx, "pilot", 0)
			require.NoError(t, err)
			require.Len(t, hist, 4)
			assert.Equal(t, "Draft 3.\n", hist[0].Text)
			assert.Equal(t, "Draft 0.\n", hist[3].Text)
			assert.True(t, hist[0].At.After(hist[3].At))

			limited, err := st.History(ctx, "pilot", 2)
			require.NoError(t, err)
			assert.Len(t, limited, 2)

			rev, err := st.Revision(ctx, "pilot", hist[3].ID)
			require.NoError(t, err)
			assert.Equal(t, hist[3], rev)
			_, err = st.Revision(ctx, "pilot", hist[0].ID+100)
			assert.ErrorIs(t, err, ErrNotFound)

			removed, err := st.Prune(ctx, "pilot", 1)
			require.NoError(t, err)
			assert.EqualValues(t, 3, removed)
			hist, err = st.History(ctx, "pilot", 0)
			require.NoError(t, err)
			require.Len(t, hist, 1)
			assert.Equal(t, "Draft 3.\n", hist[0].Text)

			removed, err = st.Prune(ctx, "pilot", 0)
			require.NoError(t, err)
			assert.Zero(t, removed)

			_, err = st.History(ctx, "nope", 5)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = st.Prune(ctx, "nope", 5)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_SnapshotKeepPrunesOnSave(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, Options{Now: newClock().Now, SnapshotKeep: 2})
			for i := 0; i < 5; i++ {
				_, err := st.Save(ctx, "pilot", fmt.Sprintf("Line %d.\n", i))
				require.NoError(t, err)
			}
			hist, err := st.History(ctx, "pilot", 0)
			require.NoError(t, err)
			require.Len(t, hist, 2)
			assert.Equal(t, "Line 4.\n", hist[0].Text)
		})
	}
}

func TestStore_ListAndActive(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, Options{Now: newClock().Now})

			list, err := st.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			_, err = st.Active(ctx)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, st.SetActive(ctx, "pilot"), ErrNotFound)

			_, err = st.Save(ctx, "pilot", pilot)
			require.NoError(t, err)
			_, err = st.Save(ctx, "finale", finale)
			require.NoError(t, err)

			list, err = st.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "finale", list[0].Name)
			assert.Equal(t, 1, list[0].Scenes)
			assert.Equal(t, "pilot", list[1].Name)
			assert.Equal(t, "Pilot", list[1].Title)
			assert.Equal(t, 2, list[1].Scenes)

			require.NoError(t, st.SetActive(ctx, "pilot"))
			require.NoError(t, st.SetActive(ctx, "finale"))
			active, err := st.Active(ctx)
			require.NoError(t, err)
			assert.Equal(t, "finale", active)

			require.NoError(t, st.Delete(ctx, "finale"))
			_, err = st.Active(ctx)
			assert.ErrorIs(t, err, ErrNotFound)
			_, err = st.Load(ctx, "finale")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, st.Delete(ctx, "finale"), ErrNotFound)

			hits, err := st.Search(ctx, Query{Text: "ends"})
			require.NoError(t, err)
			assert.Empty(t, hits)
		})
	}
}

func TestStore_Search(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			st := open(t, Options{Now: newClock().Now})
			_, err := st.Save(ctx, "pilot", pilot)
			require.NoError(t, err)
			_, err = st.Save(ctx, "finale", finale)
			require.NoError(t, err)

			hits, err := st.Search(ctx, Query{Text: "kettle"})
			require.NoError(t, err)
			require.Len(t, hits, 2)
			assert.Equal(t, Hit{Script: "pilot", Position: 1, Kind: fountain.KindAction, Text: "The kettle whistles.", Scene: 1}, hits[0])
			assert.Equal(t, Hit{Script: "pilot", Position: 8, Kind: fountain.KindDialogue, Text: "Thanks for the kettle.", Scene: 2, Character: "WILL"}, hits[1])

			hits, err = st.Search(ctx, Query{Text: "kettle", Kinds: []fountain.Kind{fountain.KindDialogue}})
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, "WILL", hits[0].Character)

			hits, err = st.Search(ctx, Query{Character: "will"})
			require.NoError(t, err)
			require.Len(t, hits, 4)
			assert.Equal(t, "finale", hits[0].Script)

			hits, err = st.Search(ctx, Query{Character: "Edward (cont'd)", Kinds: []fountain.Kind{fountain.KindParenthetical}})
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, "(softly)", hits[0].Text)

			hits, err = st.Search(ctx, Query{Text: "CUT TO:"})
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, fountain.KindTransition, hits[0].Kind)

			hits, err = st.Search(ctx, Query{Kinds: []fountain.Kind{fountain.KindSceneHeading}, Script: "pilot"})
			require.NoError(t, err)
			require.Len(t, hits, 2)
			assert.Equal(t, "INT. KITCHEN - DAY", hits[0].Text)

			hits, err = st.Search(ctx, Query{Kinds: []fountain.Kind{fountain.KindSceneHeading}, Limit: 1, Offset: 1})
			require.NoError(t, err)
			require.Len(t, hits, 1)
			assert.Equal(t, "pilot", hits[0].Script)
		})
	}
}

func TestSQLite_ReopenKeepsDataAndSchema(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := OpenSQLite(ctx, dir, Options{})
	require.NoError(t, err)
	_, err = st.Save(ctx, "pilot", pilot)
	require.NoError(t, err)
	require.NoError(t, st.SetActive(ctx, "pilot"))
	require.NoError(t, st.Close())

	st, err = OpenSQLite(ctx, dir, Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	v, err := st.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, sqliteSchemaVersion, v)

	active, err := st.Active(ctx)
	require.NoError(t, err)
	assert.Equal(t, "pilot", active)
	require.NoError(t, st.Optimize(ctx))

	hits, err := st.Search(ctx, Query{Text: "whistles"})
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestSQLite_RejectsNewerSchema(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st, err := OpenSQLite(ctx, dir, Options{})
	require.NoError(t, err)
	_, err = st.DB().ExecContext(ctx, `UPDATE version SET schema = 99 WHERE id = 1`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = OpenSQLite(ctx, dir, Options{})
	assert.ErrorContains(t, err, "newer")
}

func TestSQLite_ConcurrentSaves(t *testing.T) {
	ctx := context.Background()
	st := openSQLiteForTest(t, Options{})
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := st.Save(ctx, fmt.Sprintf("script-%d", i), fmt.Sprintf("INT. ROOM %d\n\nAction %d.\n", i, i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	list, err := st.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 8)
}
