/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns parse results into HTML, terminal text and JSON.
package render

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"gofountain/internal/fountain"
)

// EmptyMessage is shown instead of a script that has neither metadata nor elements.
const EmptyMessage = "Script is empty."

// HTMLOptions controls HTML output.
type HTMLOptions struct {
	// HideNotes adds the hide-notes class; the bundled stylesheet then hides notes.
	HideNotes bool
	// Standalone wraps the fragment in a complete document with a stylesheet.
	Standalone bool
}

const stylesheet = `body{background:#eee;margin:0}
.script{font-family:"Courier Prime",Courier,monospace;font-size:12pt;line-height:1.1;max-width:6in;margin:1in auto;padding:1in 1in 1in 1.5in;background:#fff}
.script h3{font-size:1em;font-weight:bold;text-transform:uppercase;margin:1.5em 0 1em}
.script .scene-number{float:right}
.script h4{font-size:1em;font-weight:normal;margin:1em 0 0 2.2in}
.script h4.dual{margin-left:3.2in}
.script .dialogue{margin:0 1.5in 0 1in}
.script .parenthetical{margin:0 2in 0 1.6in}
.script h2{font-size:1em;font-weight:normal;text-align:right;margin:1em 0}
.script .centered{text-align:center}
.script .section-heading,.script .synopsis{color:#888}
.script .note{color:#7a5d00;background:#fff6cc;padding:.2em .4em}
.script.hide-notes .note{display:none}
.script .page-break{border-top:1px dashed #ccc;margin:2em 0}
.script .title-page{min-height:8in;position:relative;text-align:center}
.script .tp-bottom-left-group{position:absolute;bottom:0;left:0;text-align:left}
.script .empty{text-align:center;color:#888;margin-top:100px}
`

var htmlTmpl = template.Must(template.New("render").Funcs(template.FuncMap{
	"lines": func(s string) []string { return strings.Split(s, "\n") },
}).Parse(`
{{- define "doc" -}}
<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>{{.CSS}}</style>
</head>
<body>
{{template "script" .}}
</body>
</html>
{{end}}

{{- define "script" -}}
<div class="script{{if .HideNotes}} hide-notes{{end}}">
{{- if .Empty}}
<div class="empty"><p>` + EmptyMessage + `</p></div>
{{- else}}
{{- with .Page}}
<div class="title-page">
{{- range .Centered}}
<p class="tp-{{.Key}}">{{.Text}}</p>
{{- end}}
{{- if or .DraftDate .Contact}}
<div class="tp-bottom-left-group">
{{- with .DraftDate}}
<p class="tp-draft_date">{{.}}</p>
{{- end}}
{{- if .Contact}}
<div class="tp-contact-block">{{range $i, $c := .Contact}}{{if $i}}<br>{{end}}{{range $j, $l := lines $c}}{{if $j}}<br>{{end}}{{$l}}{{end}}{{end}}</div>
{{- end}}
</div>
{{- end}}
</div>
<div class="page-break"></div>
{{- end}}
{{- range .Tokens}}
{{template "token" .}}
{{- end}}
{{- end}}
</div>
{{end}}

{{- define "token" -}}
{{- $k := .Kind.String -}}
{{- if eq $k "scene_heading"}}<h3>{{.Heading}}{{with .SceneNumber}}<span class="scene-number">{{.}}</span>{{end}}</h3>
{{- else if eq $k "section"}}<div class="section-heading" data-depth="{{.Depth}}">{{.Text}}</div>
{{- else if eq $k "synopsis"}}<div class="synopsis">{{.Text}}</div>
{{- else if eq $k "character"}}<h4{{if .Dual}} class="dual"{{end}}>{{.Text}}</h4>
{{- else if eq $k "dialogue"}}<p class="dialogue">{{.Text}}</p>
{{- else if eq $k "parenthetical"}}<p class="parenthetical">{{.Text}}</p>
{{- else if eq $k "transition"}}<h2>{{.Text}}</h2>
{{- else if eq $k "centered"}}<p class="centered">{{.Text}}</p>
{{- else if eq $k "note"}}<div class="note">{{.Text}}</div>
{{- else if eq $k "page_break"}}<div class="page-break"></div>
{{- else}}<p>{{.Text}}</p>
{{- end -}}
{{end}}
`))

// titlePage splits metadata into the centered block and the bottom-left group.
type titlePage struct {
	Centered  []fountain.MetadataEntry
	DraftDate string
	Contact   []string
}

type htmlView struct {
	Title     string
	CSS       template.CSS
	HideNotes bool
	Empty     bool
	Page      *titlePage
	Tokens    []fountain.Token
}

func newHTMLView(res fountain.Result, opts HTMLOptions) htmlView {
	v := htmlView{
		Title:     res.Title,
		CSS:       template.CSS(stylesheet),
		HideNotes: opts.HideNotes,
		Empty:     res.Empty(),
		Tokens:    res.Tokens,
	}
	if len(res.Metadata) > 0 {
		p := &titlePage{}
		for _, e := range res.Metadata {
			switch e.Key {
			case "contact":
				p.Contact = append(p.Contact, e.Text)
			case "draft_date":
				p.DraftDate = e.Text
			default:
				p.Centered = append(p.Centered, e)
			}
		}
		v.Page = p
	}
	return v
}

// HTML writes res as HTML. All text is escaped.
func HTML(w io.Writer, res fountain.Result, opts HTMLOptions) error {
	name := "script"
	if opts.Standalone {
		name = "doc"
	}
	if err := htmlTmpl.ExecuteTemplate(w, name, newHTMLView(res, opts)); err != nil {
		return fmt.Errorf("render: html: %w", err)
	}
	return nil
}
