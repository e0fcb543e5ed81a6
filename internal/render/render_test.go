/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gofountain/internal/fountain"
)

const script = `Title: Big Fish
Author: Jane Roe
Contact: Draft 2
12 Main St
Draft date: 1/1/2026

INT. HOUSE - DAY #1#

The kettle <b>whistles</b>.

EDWARD
(smiling)
Come in.

WILL^
Thanks.

CUT TO:

===

## Act Two
= Will finds the truth.

EXT. GARDEN - NIGHT

{{ check the lighting }}

> THE END <
`

func TestHTML_Elements(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, fountain.Parse(script), HTMLOptions{}))
	out := buf.String()

	for _, want := range []string{
		`<div class="script">`,
		`<div class="title-page">`,
		`<p class="tp-title">Big Fish</p>`,
		`<p class="tp-author">Jane Roe</p>`,
		`<p class="tp-draft_date">1/1/2026</p>`,
		`<div class="tp-contact-block">Draft 2<br>12 Main St</div>`,
		`<h3>INT. HOUSE - DAY<span class="scene-number">1</span></h3>`,
		`<p>The kettle &lt;b&gt;whistles&lt;/b&gt;.</p>`,
		`<h4>EDWARD</h4>`,
		`<p class="parenthetical">(smiling)</p>`,
		`<p class="dialogue">Come in.</p>`,
		`<h4 class="dual">WILL</h4>`,
		`<h2>CUT TO:</h2>`,
		`<div class="section-heading" data-depth="2">Act Two</div>`,
		`<div class="synopsis">Will finds the truth.</div>`,
		`<h3>EXT. GARDEN - NIGHT</h3>`,
		`<div class="note">check the lighting</div>`,
		`<p class="centered">THE END</p>`,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "<!DOCTYPE")
	assert.NotContains(t, out, "<b>")
}

func TestHTML_Order(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, fountain.Parse(script), HTMLOptions{}))
	out := buf.String()
	title := strings.Index(out, `class="title-page"`)
	first := strings.Index(out, "<h3>INT. HOUSE")
	second := strings.Index(out, "<h3>EXT. GARDEN")
	require.True(t, title >= 0 && first >= 0 && second >= 0)
	assert.Less(t, title, first)
	assert.Less(t, first, second)
}

func TestHTML_NoTitlePageWithoutMetadata(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, fountain.Parse("INT. ROOM\n\nShe sits.\n"), HTMLOptions{}))
	assert.NotContains(t, buf.String(), "title-page")
	assert.Contains(t, buf.String(), "<p>She sits.</p>")
}

func TestHTML_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, fountain.Parse("  \n"), HTMLOptions{}))
	assert.Contains(t, buf.String(), `<div class="empty"><p>Script is empty.</p></div>`)
}

func TestHTML_HideNotesAndStandalone(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, HTML(&buf, fountain.Parse(script), HTMLOptions{HideNotes: true, Standalone: true}))
	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "<!DOCTYPE html>"))
	assert.Contains(t, out, "<title>Big Fish</title>")
	assert.Contains(t, out, `<div class="script hide-notes">`)
	assert.Contains(t, out, ".script.hide-notes .note{display:none}")
}

func TestText_Layout(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, fountain.Parse(script), TextOptions{Width: 60}))
	out := buf.String()

	assert.NotContains(t, out, "\x1b[")
	assert.Contains(t, out, "BIG FISH")
	assert.Contains(t, out, "draft date: 1/1/2026")
	assert.Contains(t, out, "INT. HOUSE - DAY  #1")
	assert.Contains(t, out, "WILL ^")
	assert.Contains(t, out, "{{ check the lighting }}")
	for _, l := range strings.Split(out, "\n") {
		assert.Equal(t, strings.TrimRight(l, " "), l)
	}

	var cue, line string
	for _, l := range strings.Split(out, "\n") {
		switch strings.TrimSpace(l) {
		case "EDWARD":
			cue = l
		case "Come in.":
			line = l
		}
	}
	require.NotEmpty(t, cue)
	require.NotEmpty(t, line)
	indent := func(s string) int { return len(s) - len(strings.TrimLeft(s, " ")) }
	assert.Greater(t, indent(cue), indent(line))
	assert.Greater(t, indent(line), 0)
}

func TestText_HideNotes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, fountain.Parse(script), TextOptions{HideNotes: true}))
	assert.NotContains(t, buf.String(), "check the lighting")
}

func TestText_Color(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, fountain.Parse("INT. ROOM\n"), TextOptions{Color: true}))
	assert.Contains(t, buf.String(), "\x1b[")
}

func TestText_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Text(&buf, fountain.Parse(""), TextOptions{}))
	assert.Equal(t, EmptyMessage+"\n", buf.String())
}

func TestJSON_MatchesSchema(t *testing.T) {
	for _, in := range []string{script, "", "Title: Only\n", "JOHN\nHi.\n"} {
		var buf bytes.Buffer
		require.NoError(t, JSON(&buf, fountain.Parse(in)))
		assert.NoError(t, ValidateJSON(buf.Bytes()), "input %q", in)
	}
}

func TestJSON_RoundTrip(t *testing.T) {
	want := fountain.Parse(script)
	var buf bytes.Buffer
	require.NoError(t, JSON(&buf, want))
	assert.Contains(t, buf.String(), `"type": "scene_heading"`)
	assert.Contains(t, buf.String(), `"setting": "INT."`)
	got, err := DecodeJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestValidateJSON_Rejects(t *testing.T) {
	cases := map[string]string{
		"missing tokens":  `{"title":"x","metadata":[]}`,
		"unknown kind":    `{"title":"x","metadata":[],"tokens":[{"type":"song","text":"la"}]}`,
		"bad metadata":    `{"title":"x","metadata":[{"key":1,"text":"a"}],"tokens":[]}`,
		"not json object": `[]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, ValidateJSON([]byte(doc)))
		})
	}
}

func TestSchema_IsCopy(t *testing.T) {
	s := Schema()
	require.NotEmpty(t, s)
	s[0] = 'x'
	assert.NotEqual(t, byte('x'), Schema()[0])
}
