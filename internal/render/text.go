/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"gofountain/internal/fountain"
)

// DefaultWidth is the page width, in columns, of the text layout.
const DefaultWidth = 72

// TextOptions controls terminal output.
type TextOptions struct {
	HideNotes bool
	// Color forces ANSI styling even when w is not a terminal.
	Color bool
	// Width of the page in columns. Zero means DefaultWidth.
	Width int
}

type textStyles struct {
	byKind map[fountain.Kind]lipgloss.Style
	title  lipgloss.Style
	meta   lipgloss.Style
	rule   lipgloss.Style
	width  int
}

// column layout relative to the page, loosely following screenplay margins.
func newTextStyles(w io.Writer, opts TextOptions) textStyles {
	width := opts.Width
	if width <= 0 {
		width = DefaultWidth
	}
	r := lipgloss.NewRenderer(w)
	if opts.Color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	block := func(indent, size int) lipgloss.Style {
		if indent+size > width {
			size = max(width-indent, 10)
		}
		return r.NewStyle().MarginLeft(indent).Width(size)
	}
	dialogueIndent := width / 7
	return textStyles{
		width: width,
		title: r.NewStyle().Bold(true).Width(width).Align(lipgloss.Center),
		meta:  r.NewStyle().Width(width).Align(lipgloss.Center),
		rule:  r.NewStyle().Faint(true),
		byKind: map[fountain.Kind]lipgloss.Style{
			fountain.KindSceneHeading:  block(0, width).Bold(true),
			fountain.KindAction:        block(0, width),
			fountain.KindSection:       block(0, width).Foreground(lipgloss.Color("5")),
			fountain.KindSynopsis:      block(0, width).Faint(true).Italic(true),
			fountain.KindCentered:      r.NewStyle().Width(width).Align(lipgloss.Center),
			fountain.KindTransition:    r.NewStyle().Width(width).Align(lipgloss.Right).Bold(true),
			fountain.KindCharacter:     block(dialogueIndent*2, width/2).Bold(true),
			fountain.KindDialogue:      block(dialogueIndent, width/2),
			fountain.KindParenthetical: block(dialogueIndent+dialogueIndent/2, width/3).Italic(true),
			fountain.KindNote:          block(0, width).Foreground(lipgloss.Color("3")),
		},
	}
}

// Text writes res as a plain screenplay layout for a terminal.
func Text(w io.Writer, res fountain.Result, opts TextOptions) error {
	st := newTextStyles(w, opts)
	var b strings.Builder

	if res.Empty() {
		b.WriteString(EmptyMessage)
		b.WriteByte('\n')
		_, err := io.WriteString(w, b.String())
		return err
	}

	if len(res.Metadata) > 0 {
		b.WriteString(trimLines(st.title.Render(strings.ToUpper(res.Title))))
		b.WriteString("\n\n")
		for _, e := range res.Metadata {
			if e.Key == "title" {
				continue
			}
			b.WriteString(trimLines(st.meta.Render(metaLabel(e))))
			b.WriteByte('\n')
		}
		b.WriteString(st.rule.Render(strings.Repeat("=", st.width)))
		b.WriteString("\n\n")
	}

	prev := fountain.Kind(-1)
	for _, t := range res.Tokens {
		if t.Kind == fountain.KindNote && opts.HideNotes {
			continue
		}
		if prev >= 0 && !tight(prev, t.Kind) {
			b.WriteByte('\n')
		}
		prev = t.Kind
		switch t.Kind {
		case fountain.KindPageBreak:
			b.WriteString(st.rule.Render(strings.Repeat("-", st.width)))
		case fountain.KindSceneHeading:
			line := t.Heading()
			if t.SceneNumber != "" {
				line = fmt.Sprintf("%s  #%s", line, t.SceneNumber)
			}
			b.WriteString(trimLines(st.byKind[t.Kind].Render(line)))
		case fountain.KindSection:
			b.WriteString(trimLines(st.byKind[t.Kind].Render(strings.Repeat("#", t.Depth) + " " + t.Text)))
		case fountain.KindCharacter:
			name := t.Text
			if t.Dual {
				name += " ^"
			}
			b.WriteString(trimLines(st.byKind[t.Kind].Render(name)))
		case fountain.KindNote:
			b.WriteString(trimLines(st.byKind[t.Kind].Render("{{ " + t.Text + " }}")))
		default:
			b.WriteString(trimLines(st.byKind[t.Kind].Render(t.Text)))
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// tight reports whether next continues the block started by prev without a blank line.
func tight(prev, next fountain.Kind) bool {
	switch prev {
	case fountain.KindCharacter, fountain.KindDialogue, fountain.KindParenthetical:
		return next == fountain.KindDialogue || next == fountain.KindParenthetical
	}
	return false
}

func metaLabel(e fountain.MetadataEntry) string {
	switch e.Key {
	case "credit", "author", "authors", "source":
		return e.Text
	}
	return strings.ReplaceAll(e.Key, "_", " ") + ": " + e.Text
}

// trimLines drops the padding lipgloss adds on the right of each line.
func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " ")
	}
	return strings.Join(lines, "\n")
}
