/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package fountain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func lines(s string) []string { return strings.Split(s, "\n") }

func TestExtractMetadata_StopsAtSceneHeading(t *testing.T) {
	entries, start := ExtractMetadata(lines("Title: A\nINT. HOUSE\nAction"))
	assert.Equal(t, []MetadataEntry{{Key: "title", Text: "A"}}, entries)
	assert.Equal(t, 1, start)
}

func TestExtractMetadata_StopsAtTransition(t *testing.T) {
	entries, start := ExtractMetadata(lines("Title: A\nFADE TO:\n"))
	assert.Len(t, entries, 1)
	assert.Equal(t, 1, start)
}

func TestExtractMetadata_BlankLineBoundary(t *testing.T) {
	entries, start := ExtractMetadata(lines("\n\nTitle: A\n\nBody"))
	assert.Len(t, entries, 1)
	assert.Equal(t, 3, start)
}

func TestExtractMetadata_KeyNormalization(t *testing.T) {
	entries, _ := ExtractMetadata(lines("  Draft Date : 2026\nWritten By Ann: x\nSource: http://a.b:8080/c\n"))
	assert.Equal(t, []MetadataEntry{
		{Key: "draft_date", Text: "2026"},
		{Key: "written_by ann", Text: "x"},
		{Key: "source", Text: "http://a.b:8080/c"},
	}, entries)
}

func TestExtractMetadata_ContactVariants(t *testing.T) {
	t.Run("value on key line only", func(t *testing.T) {
		entries, _ := ExtractMetadata(lines("Contact: me@example.com\nTitle: T\n"))
		assert.Equal(t, []MetadataEntry{
			{Key: "contact", Text: "me@example.com"},
			{Key: "title", Text: "T"},
		}, entries)
	})
	t.Run("empty block yields nothing", func(t *testing.T) {
		entries, _ := ExtractMetadata(lines("Contact:\n\nTitle: T\n"))
		assert.Equal(t, []MetadataEntry{{Key: "title", Text: "T"}}, entries)
	})
	t.Run("open at end of header", func(t *testing.T) {
		entries, start := ExtractMetadata(lines("Contact:\n  Jane\n  Street 1\nINT. HOUSE"))
		assert.Equal(t, []MetadataEntry{{Key: "contact", Text: "Jane\nStreet 1"}}, entries)
		assert.Equal(t, 3, start)
	})
	t.Run("open at end of input", func(t *testing.T) {
		entries, start := ExtractMetadata(lines("Contact: a\nb"))
		assert.Equal(t, []MetadataEntry{{Key: "contact", Text: "a\nb"}}, entries)
		assert.Equal(t, 0, start)
	})
}

func TestExtractMetadata_RepeatedKeysKept(t *testing.T) {
	entries, _ := ExtractMetadata(lines("Author: A\nAuthor: B\n\n"))
	assert.Equal(t, []MetadataEntry{{Key: "author", Text: "A"}, {Key: "author", Text: "B"}}, entries)
}

func TestExtractMetadata_NoBoundaryMeansNoHeader(t *testing.T) {
	entries, start := ExtractMetadata(lines("Just action.\nMore action."))
	assert.Empty(t, entries)
	assert.Equal(t, 0, start)
}
