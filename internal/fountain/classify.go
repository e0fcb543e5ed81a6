/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package fountain

import "strings"

// State is the dialogue-tracking state carried from one body line to the next.
type State int

const (
	Idle State = iota
	InDialogue
)

func (s State) String() string {
	if s == InDialogue {
		return "in_dialogue"
	}
	return "idle"
}

// rule is one entry of the classification table. match inspects a raw body line;
// next is the state after a match.
type rule struct {
	name  string
	match func(line string) (Token, bool)
	next  func(State) State
}

func keep(s State) State    { return s }
func toIdle(State) State     { return Idle }
func toDialogue(State) State { return InDialogue }

// leadingRules run before the dialogue block rules, in priority order.
var leadingRules = []rule{
	{name: "scene_heading", match: matchSceneHeading, next: toIdle},
	{name: "section", match: matchSection, next: keep},
	{name: "synopsis", match: matchSynopsis, next: keep},
	{name: "centered", match: matchCentered, next: keep},
	{name: "transition", match: matchTransition, next: keep},
	{name: "character", match: matchCharacter, next: toDialogue},
}

// trailingRules run after the dialogue block rules. action is the catch-all.
var trailingRules = []rule{
	{name: "page_break", match: matchPageBreak, next: keep},
	{name: "note", match: matchNote, next: keep},
	{name: "action", match: matchAction, next: keep},
}

// Step classifies one body line in state st. It returns the next state and,
// when ok is true, the token produced for the line.
func Step(st State, line string) (next State, tok Token, ok bool) {
	for _, r := range leadingRules {
		if t, matched := r.match(line); matched {
			return r.next(st), t, true
		}
	}
	if st == InDialogue {
		if isBlank(line) {
			st = Idle
		} else {
			trimmed := strings.TrimSpace(line)
			if reParenthetic.MatchString(trimmed) {
				return st, Token{Kind: KindParenthetical, Text: trimmed}, true
			}
			return st, Token{Kind: KindDialogue, Text: trimmed}, true
		}
	}
	for _, r := range trailingRules {
		if t, matched := r.match(line); matched {
			return r.next(st), t, true
		}
	}
	return st, Token{}, false
}

// Classify folds Step over the body lines starting in Idle.
func Classify(lines []string) []Token {
	tokens := make([]Token, 0, len(lines)/2)
	st := Idle
	for _, line := range lines {
		var (
			tok Token
			ok  bool
		)
		st, tok, ok = Step(st, line)
		if ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func matchSceneHeading(line string) (Token, bool) {
	if !isSceneHeading(line) {
		return Token{}, false
	}
	tok := Token{Kind: KindSceneHeading}
	var text string
	if strings.HasPrefix(line, ".") {
		text = line[1:]
	} else if m := reSceneSetting.FindStringSubmatch(line); m != nil {
		tok.Setting = strings.ToUpper(m[1])
		text = m[2]
	} else {
		text = line
	}
	text = strings.TrimSpace(text)
	if m := reSceneNumber.FindStringSubmatchIndex(text); m != nil {
		tok.SceneNumber = strings.TrimSpace(text[m[2]:m[3]])
		text = strings.TrimSpace(text[:m[0]])
	}
	tok.Text = text
	return tok, true
}

func matchSection(line string) (Token, bool) {
	if !strings.HasPrefix(line, "#") {
		return Token{}, false
	}
	depth := len(line) - len(strings.TrimLeft(line, "#"))
	return Token{Kind: KindSection, Depth: depth, Text: strings.TrimSpace(strings.ReplaceAll(line, "#", ""))}, true
}

func matchSynopsis(line string) (Token, bool) {
	if !strings.HasPrefix(line, "=") || strings.HasPrefix(line, "==") {
		return Token{}, false
	}
	return Token{Kind: KindSynopsis, Text: strings.TrimSpace(strings.Replace(line, "=", "", 1))}, true
}

func matchCentered(line string) (Token, bool) {
	if !reCentered.MatchString(line) {
		return Token{}, false
	}
	text := strings.NewReplacer(">", "", "<", "").Replace(line)
	return Token{Kind: KindCentered, Text: strings.TrimSpace(text)}, true
}

func matchTransition(line string) (Token, bool) {
	if !isTransition(line) {
		return Token{}, false
	}
	return Token{Kind: KindTransition, Text: strings.TrimSpace(strings.Replace(line, ">", "", 1))}, true
}

func matchCharacter(line string) (Token, bool) {
	m := reCharacter.FindStringSubmatch(line)
	if m == nil {
		return Token{}, false
	}
	name := strings.TrimSpace(m[1])
	if name == "" {
		return Token{}, false
	}
	return Token{Kind: KindCharacter, Text: name, Dual: m[2] == "^"}, true
}

func matchPageBreak(line string) (Token, bool) {
	if !rePageBreak.MatchString(line) {
		return Token{}, false
	}
	return Token{Kind: KindPageBreak}, true
}

func matchNote(line string) (Token, bool) {
	m := reNote.FindStringSubmatch(line)
	if m == nil {
		return Token{}, false
	}
	return Token{Kind: KindNote, Text: strings.TrimSpace(m[1])}, true
}

func matchAction(line string) (Token, bool) {
	text := strings.TrimSpace(line)
	if text == "" {
		return Token{}, false
	}
	return Token{Kind: KindAction, Text: text}, true
}
