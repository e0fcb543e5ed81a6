/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package fountain parses Fountain screenplay markup into title-page metadata
// and an ordered list of typed elements.
//
// Parsing is total: malformed input degrades to action lines and no error is
// ever returned. The package holds no mutable state, so Parse may be called
// from any number of goroutines.
package fountain

import "strings"

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Parse converts a Fountain document into its metadata and tokens.
func Parse(input string) Result {
	lines := strings.Split(preprocess(input), "\n")
	meta, start := ExtractMetadata(lines)
	if meta == nil {
		meta = []MetadataEntry{}
	}
	return Result{
		Title:    titleOf(meta),
		Metadata: meta,
		Tokens:   Classify(lines[start:]),
	}
}

// ParseBytes is Parse for byte input.
func ParseBytes(b []byte) Result { return Parse(string(b)) }

// preprocess normalizes line endings, appends the closing blank lines and drops boneyard ranges.
func preprocess(input string) string {
	s := lineEndings.Replace(input) + "\n\n"
	return reBoneyard.ReplaceAllString(s, "")
}

func titleOf(meta []MetadataEntry) string {
	for _, e := range meta {
		if e.Key == "title" {
			if e.Text == "" {
				return UntitledTitle
			}
			return e.Text
		}
	}
	return UntitledTitle
}
