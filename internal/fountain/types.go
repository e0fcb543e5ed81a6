/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package fountain

import (
	"fmt"
	"strings"
)

// UntitledTitle is returned as Result.Title when the title page has no usable title.
const UntitledTitle = "Untitled"

// Kind identifies the type of a screenplay element.
type Kind int

const (
	KindAction Kind = iota
	KindSceneHeading
	KindSection
	KindSynopsis
	KindCentered
	KindTransition
	KindCharacter
	KindDialogue
	KindParenthetical
	KindNote
	KindPageBreak
)

var kindNames = [...]string{
	KindAction:        "action",
	KindSceneHeading:  "scene_heading",
	KindSection:       "section",
	KindSynopsis:      "synopsis",
	KindCentered:      "centered",
	KindTransition:    "transition",
	KindCharacter:     "character",
	KindDialogue:      "dialogue",
	KindParenthetical: "parenthetical",
	KindNote:          "note",
	KindPageBreak:     "page_break",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Kinds returns every element kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, len(kindNames))
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// ParseKind maps a kind name such as "scene_heading" back to its Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range kindNames {
		if n == s {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown element kind %q", s)
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Token is one classified body line.
//
// Only the fields relevant to Kind are set:
//   - SceneHeading: Setting holds the stripped INT./EXT. prefix (empty for forced headings),
//     SceneNumber the content of a trailing #...# marker (empty when absent).
//   - Section: Depth is the number of leading '#'.
//   - Character: Dual marks a trailing '^' cue.
//   - PageBreak carries no text.
type Token struct {
	Kind        Kind   `json:"type"`
	Text        string `json:"text,omitempty"`
	Setting     string `json:"setting,omitempty"`
	SceneNumber string `json:"scene_number,omitempty"`
	Depth       int    `json:"depth,omitempty"`
	Dual        bool   `json:"dual,omitempty"`
}

// MetadataEntry is one title-page field. Key is lower-cased with its first
// interior space replaced by '_' (e.g. "draft_date").
type MetadataEntry struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Result is everything a renderer needs from a parse.
type Result struct {
	Title    string          `json:"title"`
	Metadata []MetadataEntry `json:"metadata"`
	Tokens   []Token         `json:"tokens"`
}

// Meta returns the texts of all entries with the given key, in order.
func (r Result) Meta(key string) []string {
	var out []string
	for _, e := range r.Metadata {
		if e.Key == key {
			out = append(out, e.Text)
		}
	}
	return out
}

// Empty reports whether the parse produced neither metadata nor tokens.
func (r Result) Empty() bool { return len(r.Metadata) == 0 && len(r.Tokens) == 0 }

// Scenes returns the scene heading tokens in order.
func (r Result) Scenes() []Token {
	var out []Token
	for _, t := range r.Tokens {
		if t.Kind == KindSceneHeading {
			out = append(out, t)
		}
	}
	return out
}

// Heading returns the display form of a scene heading, e.g. "INT. HOUSE - DAY".
func (t Token) Heading() string {
	if t.Setting == "" {
		return t.Text
	}
	if t.Text == "" {
		return t.Setting
	}
	return t.Setting + " " + t.Text
}
