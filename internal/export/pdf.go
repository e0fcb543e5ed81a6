/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes parsed scripts to files: a draft PDF per script and
// batch conversion of many scripts at once.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"gofountain/internal/fountain"
	"gofountain/internal/version"
)

// PDFOptions controls PDF export. Sizes are in inches unless noted.
//
// The layout is a draft: elements are placed with fixed indents and gofpdf's
// automatic page break. No screenplay pagination rules (keeping a cue with its
// dialogue, MORE/CONT'D) are applied.
type PDFOptions struct {
	PageSize     string  // "Letter" (default) or "A4"
	FontFamily   string  // a core PDF font; default Courier
	FontSize     float64 // points; default 12
	SceneNumbers bool    // print scene numbers in both margins
	HideNotes    bool
}

func (o PDFOptions) withDefaults() PDFOptions {
	if o.PageSize == "" {
		o.PageSize = "Letter"
	}
	if o.FontFamily == "" {
		o.FontFamily = "Courier"
	}
	if o.FontSize <= 0 {
		o.FontSize = 12
	}
	return o
}

const (
	marginLeft   = 1.5
	marginRight  = 1.0
	marginTop    = 1.0
	marginBottom = 1.0
)

// block is the horizontal placement of one element kind relative to the left margin.
type block struct {
	indent float64
	width  float64 // zero means up to the right margin
	align  string
	style  string
	upper  bool
}

var blocks = map[fountain.Kind]block{
	fountain.KindSceneHeading:  {style: "B", upper: true},
	fountain.KindAction:        {},
	fountain.KindCharacter:     {indent: 2.2, upper: true},
	fountain.KindDialogue:      {indent: 1.0, width: 3.5},
	fountain.KindParenthetical: {indent: 1.6, width: 2.0},
	fountain.KindTransition:    {align: "R", upper: true},
	fountain.KindCentered:      {align: "C"},
	fountain.KindNote:          {style: "I"},
}

// PDF renders res to a PDF file at outPath, creating parent directories.
func PDF(res fountain.Result, outPath string, opts PDFOptions) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create pdf: %w", err)
	}
	if err := WritePDF(f, res, opts); err != nil {
		_ = f.Close()
		_ = os.Remove(outPath)
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close pdf: %w", err)
	}
	return nil
}

// WritePDF renders res as PDF into w.
func WritePDF(w io.Writer, res fountain.Result, opts PDFOptions) error {
	opts = opts.withDefaults()
	pdf := gofpdf.New("P", "in", opts.PageSize, "")
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("pdf: page size %q: %w", opts.PageSize, err)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(res.Title, true)
	if authors := res.Meta("author"); len(authors) > 0 {
		pdf.SetAuthor(strings.Join(authors, ", "), true)
	}
	pdf.SetCreator(version.String(), true)
	pdf.SetMargins(marginLeft, marginTop, marginRight)
	pdf.SetAutoPageBreak(true, marginBottom)
	pdf.SetFont(opts.FontFamily, "", opts.FontSize)

	line := opts.FontSize / 72
	pageW, _ := pdf.GetPageSize()
	textW := pageW - marginLeft - marginRight

	hasTitlePage := len(res.Metadata) > 0
	pdf.SetHeaderFunc(func() {
		n := pdf.PageNo()
		if hasTitlePage {
			n--
		}
		if n < 2 {
			return
		}
		pdf.SetFont(opts.FontFamily, "", opts.FontSize)
		pdf.SetXY(marginLeft, 0.5)
		pdf.CellFormat(textW, line, fmt.Sprintf("%d.", n), "", 0, "R", false, 0, "")
		pdf.SetXY(marginLeft, marginTop)
	})

	if hasTitlePage {
		writeTitlePage(pdf, tr, res, opts, textW, line)
	}
	pdf.AddPage()

	first := true
	for _, t := range res.Tokens {
		switch t.Kind {
		case fountain.KindPageBreak:
			pdf.AddPage()
			first = true
			continue
		case fountain.KindSection, fountain.KindSynopsis:
			continue
		case fountain.KindNote:
			if opts.HideNotes {
				continue
			}
		}
		b := blocks[t.Kind]
		if !first && !continuesDialogue(t.Kind) {
			pdf.Ln(line)
		}
		first = false

		text := t.Text
		switch t.Kind {
		case fountain.KindSceneHeading:
			text = t.Heading()
		case fountain.KindNote:
			text = "[[" + text + "]]"
		}
		if b.upper {
			text = strings.ToUpper(text)
		}
		w := b.width
		if w == 0 {
			w = textW - b.indent
		}

		if t.Kind == fountain.KindSceneHeading && opts.SceneNumbers && t.SceneNumber != "" {
			y := pdf.GetY()
			pdf.SetFont(opts.FontFamily, "", opts.FontSize)
			pdf.SetXY(marginLeft-0.75, y)
			pdf.CellFormat(0.6, line, tr(t.SceneNumber), "", 0, "L", false, 0, "")
			pdf.SetXY(marginLeft+textW+0.15, y)
			pdf.CellFormat(0.6, line, tr(t.SceneNumber), "", 0, "L", false, 0, "")
			pdf.SetY(y)
		}

		pdf.SetFont(opts.FontFamily, b.style, opts.FontSize)
		pdf.SetX(marginLeft + b.indent)
		pdf.MultiCell(w, line, tr(text), "", alignOf(b), false)
		pdf.SetFont(opts.FontFamily, "", opts.FontSize)
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func alignOf(b block) string {
	if b.align == "" {
		return "L"
	}
	return b.align
}

// continuesDialogue reports whether k is printed directly under the previous line.
func continuesDialogue(k fountain.Kind) bool {
	return k == fountain.KindDialogue || k == fountain.KindParenthetical
}

func writeTitlePage(pdf *gofpdf.Fpdf, tr func(string) string, res fountain.Result, opts PDFOptions, textW, line float64) {
	pdf.AddPage()
	_, pageH := pdf.GetPageSize()

	pdf.SetY(pageH / 3)
	pdf.SetFont(opts.FontFamily, "B", opts.FontSize)
	pdf.MultiCell(textW, line, tr(strings.ToUpper(res.Title)), "", "C", false)
	pdf.SetFont(opts.FontFamily, "", opts.FontSize)

	var bottom []string
	for _, e := range res.Metadata {
		switch e.Key {
		case "title":
			continue
		case "draft_date", "contact":
			bottom = append(bottom, e.Text)
			continue
		}
		pdf.Ln(line)
		pdf.MultiCell(textW, line, tr(e.Text), "", "C", false)
	}

	if len(bottom) == 0 {
		return
	}
	text := strings.Join(bottom, "\n")
	lines := strings.Count(text, "\n") + 1
	pdf.SetXY(marginLeft, pageH-marginBottom-float64(lines+1)*line)
	pdf.MultiCell(textW/2, line, tr(text), "", "L", false)
}
