package crash

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(t *testing.T) {
	t.Helper()
	old := now
	now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	t.Cleanup(func() { now = old })
}

func TestReport_Contents(t *testing.T) {
	fixedNow(t)
	s := string(Report("boom", []byte("stacktrace"), []string{"gofountain", "parse", "x.fountain"}))
	assert.True(t, strings.HasPrefix(s, "gofountain crash report\n"))
	assert.Contains(t, s, "Timestamp: 2026-03-04T05:06:07Z")
	assert.Contains(t, s, "Command: gofountain parse x.fountain")
	assert.Contains(t, s, "Panic: boom")
	assert.Contains(t, s, "Stack:\nstacktrace")
}

func TestWriteReport_InDir(t *testing.T) {
	fixedNow(t)
	dir := filepath.Join(t.TempDir(), "lib")
	path, err := writeReport(dir, []byte("r"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "crash-20260304-050607.log"), path)
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "r", string(b))
}

func TestWriteReport_FallsBackToTemp(t *testing.T) {
	fixedNow(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	path, err := writeReport(filepath.Join(blocker, "sub"), []byte("r"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(path) })
	assert.Equal(t, os.TempDir(), filepath.Dir(path))
}
