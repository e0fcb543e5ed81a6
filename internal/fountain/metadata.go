/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package fountain

import "strings"

const contactKey = "contact"

// contactBlock buffers the lines of a multi-line Contact: field.
type contactBlock struct {
	open  bool
	lines []string
}

// flush appends the buffered lines as one entry and closes the block.
// An empty buffer produces no entry.
func (c *contactBlock) flush(entries []MetadataEntry) []MetadataEntry {
	if len(c.lines) > 0 {
		entries = append(entries, MetadataEntry{Key: contactKey, Text: strings.Join(c.lines, "\n")})
	}
	c.open = false
	c.lines = nil
	return entries
}

// ExtractMetadata scans the title page at the top of lines and returns its entries
// together with the index of the first body line.
//
// The header stops at the first scene heading or transition (that line starts the body)
// or at the first blank line once an entry exists and no contact block is open.
// When neither happens the body starts at 0 and no header lines are consumed.
func ExtractMetadata(lines []string) ([]MetadataEntry, int) {
	var (
		entries []MetadataEntry
		contact contactBlock
	)
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case isSceneHeading(line) || isTransition(line):
			return contact.flush(entries), i
		case strings.Contains(line, ":"):
			key, value := splitField(line)
			if key == contactKey {
				contact.open = true
				if value != "" {
					contact.lines = append(contact.lines, value)
				}
				continue
			}
			if contact.open {
				entries = contact.flush(entries)
			}
			entries = append(entries, MetadataEntry{Key: key, Text: value})
		case contact.open && line != "":
			contact.lines = append(contact.lines, line)
		case contact.open:
			entries = contact.flush(entries)
		case line == "" && len(entries) > 0:
			return entries, i
		}
	}
	if contact.open {
		entries = contact.flush(entries)
	}
	return entries, 0
}

// splitField splits "Key: a: b" into ("key", "a: b").
func splitField(line string) (string, string) {
	parts := strings.Split(line, ":")
	key := strings.Replace(strings.ToLower(strings.TrimSpace(parts[0])), " ", "_", 1)
	value := strings.TrimSpace(strings.Join(parts[1:], ":"))
	return key, value
}
