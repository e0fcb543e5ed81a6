package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionStringNonEmpty(t *testing.T) {
	assert.Contains(t, String(), Version)
}

func TestVersionStringWithCommit(t *testing.T) {
	oldC, oldD := Commit, Date
	t.Cleanup(func() { Commit, Date = oldC, oldD })
	Commit, Date = "abc123", "2026-01-01"
	assert.Equal(t, "gofountain "+Version+" (abc123, 2026-01-01)", String())
}
