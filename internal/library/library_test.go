/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package library

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofountain/internal/config"
	"gofountain/internal/fountain"
)

func TestNormalizeName(t *testing.T) {
	n, err := NormalizeName("  Pilot draft  ")
	require.NoError(t, err)
	assert.Equal(t, "Pilot draft", n)

	for _, bad := range []string{"", "   ", "a/b", `a\b`, strings.Repeat("x", MaxNameLen+1)} {
		_, err := NormalizeName(bad)
		assert.ErrorIs(t, err, ErrInvalidName, "name %q", bad)
	}
	_, err = NormalizeName(strings.Repeat("é", MaxNameLen))
	assert.NoError(t, err)
}

func TestElements(t *testing.T) {
	res := fountain.Parse(`INT. KITCHEN - DAY

The kettle whistles.

EDWARD (V.O.)
(softly)
Come in.

===

EXT. GARDEN - NIGHT

WILL
Thanks.
`)
	elems := Elements(res)
	require.Len(t, elems, 8)

	assert.Equal(t, Element{Position: 0, Kind: fountain.KindSceneHeading, Text: "INT. KITCHEN - DAY", Scene: 1}, elems[0])
	assert.Equal(t, Element{Position: 1, Kind: fountain.KindAction, Text: "The kettle whistles.", Scene: 1}, elems[1])
	assert.Equal(t, "EDWARD", elems[2].Character)
	assert.Equal(t, "EDWARD (V.O.)", elems[2].Text)
	assert.Equal(t, fountain.KindParenthetical, elems[3].Kind)
	assert.Equal(t, "EDWARD", elems[3].Character)
	assert.Equal(t, "EDWARD", elems[4].Character)
	// page break at position 5 has no text and is skipped
	assert.Equal(t, 6, elems[5].Position)
	assert.Equal(t, 2, elems[5].Scene)
	assert.Empty(t, elems[5].Character)
	assert.Equal(t, Element{Position: 8, Kind: fountain.KindDialogue, Text: "Thanks.", Scene: 2, Character: "WILL"}, elems[7])
	assert.Equal(t, fountain.KindCharacter, elems[6].Kind)
}

func TestSpeakerName(t *testing.T) {
	assert.Equal(t, "JOHN", SpeakerName("JOHN (V.O.)"))
	assert.Equal(t, "JOHN", SpeakerName(" JOHN "))
	assert.Equal(t, "(CONT'D)", SpeakerName("(CONT'D)"))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.LibraryConfig{Driver: "mongo"}, "")
	assert.Error(t, err)
}

func TestOpen_PostgresWithoutDSN(t *testing.T) {
	_, err := Open(context.Background(), config.LibraryConfig{Driver: config.DriverPostgres}, "pw")
	assert.ErrorIs(t, err, config.ErrNoDSN)
}

func TestOpen_SQLiteInDir(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(context.Background(), config.LibraryConfig{Driver: config.DriverSQLite, Path: dir}, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	assert.Equal(t, "sqlite", st.Driver())
	assert.FileExists(t, Path(dir))
}

func TestQuestionToDollar(t *testing.T) {
	got := questionToDollar(`SELECT '?' , x FROM t WHERE a = ? AND b IN (?,?) AND c = COALESCE(d, '')`)
	assert.Equal(t, `SELECT '?' , x FROM t WHERE a = $1 AND b IN ($2,$3) AND c = COALESCE(d, '')`, got)
}

func TestFTSQuery(t *testing.T) {
	assert.Equal(t, `"CUT" "TO:"`, ftsQuery("  CUT   TO: "))
	assert.Equal(t, `"say" """hi"""`, ftsQuery(`say "hi"`))
}
