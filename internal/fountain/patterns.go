/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package fountain

import (
	"regexp"
	"strings"
)

// Patterns are compiled once and only read afterwards, so concurrent parses share them.
var (
	reSceneHeading = regexp.MustCompile(`(?i)^(?:INT|EXT|EST|I/E)(?:[. ]+|/)`)
	reSceneSetting = regexp.MustCompile(`(?i)^((?:INT|EXT|EST|I/E)(?:\.?/(?:INT|EXT))?\.?)(?:[ ./]+|$)(.*)$`)
	reSceneNumber  = regexp.MustCompile(`\s*#([^#]*)#$`)
	reCentered     = regexp.MustCompile(`^ *> *.+ *< *$`)
	reTransition   = regexp.MustCompile(`^(?:[A-Z ]+ TO:|>.*)$`)
	reCharacter    = regexp.MustCompile(`^([A-Z0-9\s().\-]+)(\^?) *$`)
	reParenthetic  = regexp.MustCompile(`^\(.*\)$`)
	rePageBreak    = regexp.MustCompile(`^={3,}\s*$`)
	reNote         = regexp.MustCompile(`\{\{(.*?)\}\}`)
	reBoneyard     = regexp.MustCompile(`(?s)/\*.*?\*/`)
)

// isSceneHeading reports a forced heading (single leading '.') or an INT/EXT/EST/I/E prefix.
func isSceneHeading(line string) bool {
	if strings.HasPrefix(line, ".") {
		return !strings.HasPrefix(line, "..")
	}
	return reSceneHeading.MatchString(line)
}

func isTransition(line string) bool { return reTransition.MatchString(line) }

func isBlank(line string) bool { return strings.TrimSpace(line) == "" }
