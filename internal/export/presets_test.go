/*
 * Copyright (c) 2025
 */
package export

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScripts(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	files := make([]string, n)
	for i := range files {
		files[i] = filepath.Join(dir, "script"+string(rune('a'+i))+".fountain")
		require.NoError(t, os.WriteFile(files[i], []byte(sample), 0o644))
	}
	return files
}

func TestBatch_WebPreset(t *testing.T) {
	files := writeScripts(t, 3)
	out := t.TempDir()
	res, err := Batch(context.Background(), files, out, BatchOptions{Preset: PresetWeb, Jobs: 2})
	require.NoError(t, err)
	require.Len(t, res, 3)
	for i, r := range res {
		assert.Equal(t, files[i], r.Input)
		assert.Equal(t, "Brick & Steel", r.Title)
		require.Len(t, r.Outputs, 2)
		for _, p := range r.Outputs {
			st, err := os.Stat(p)
			require.NoError(t, err)
			assert.Positive(t, st.Size())
		}
	}
	data, err := os.ReadFile(filepath.Join(out, "scripta.json"))
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
	_, err = os.Stat(filepath.Join(out, "scripta.pdf"))
	assert.True(t, os.IsNotExist(err))
}

func TestBatch_PrintPreset(t *testing.T) {
	files := writeScripts(t, 2)
	out := t.TempDir()
	_, err := Batch(context.Background(), files, out, BatchOptions{Preset: PresetPrint})
	require.NoError(t, err)
	for _, name := range []string{"scripta.pdf", "scriptb.pdf"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err)
	}
}

func TestBatch_ExplicitFormatsDeduplicated(t *testing.T) {
	files := writeScripts(t, 1)
	res, err := Batch(context.Background(), files, t.TempDir(), BatchOptions{Formats: []string{"JSON", " json ", "html"}})
	require.NoError(t, err)
	assert.Len(t, res[0].Outputs, 2)
}

func TestBatch_Errors(t *testing.T) {
	ctx := context.Background()
	files := writeScripts(t, 1)

	_, err := Batch(ctx, files, t.TempDir(), BatchOptions{Formats: []string{"docx"}})
	assert.ErrorContains(t, err, "unknown format")

	_, err = Batch(ctx, nil, t.TempDir(), BatchOptions{})
	assert.Error(t, err)

	dup := filepath.Join(t.TempDir(), filepath.Base(files[0]))
	require.NoError(t, os.WriteFile(dup, []byte(sample), 0o644))
	_, err = Batch(ctx, []string{files[0], dup}, t.TempDir(), BatchOptions{})
	assert.ErrorContains(t, err, "both export as")

	missing := filepath.Join(t.TempDir(), "missing.fountain")
	_, err = Batch(ctx, []string{files[0], missing}, t.TempDir(), BatchOptions{Formats: []string{"json"}})
	assert.ErrorContains(t, err, "missing.fountain")
}

func TestBatch_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Batch(ctx, writeScripts(t, 4), t.TempDir(), BatchOptions{Formats: []string{"json"}, Jobs: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
