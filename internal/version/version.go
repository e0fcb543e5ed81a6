/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package version holds build information set via -ldflags.
package version

import "fmt"

// Set at build time, e.g. -ldflags "-X gofountain/internal/version.Version=v1.2.0".
var (
	Version = "0.1.0-dev"
	Commit  = ""
	Date    = ""
)

// String returns a one-line version description.
func String() string {
	s := "gofountain " + Version
	if Commit != "" {
		s += fmt.Sprintf(" (%s", Commit)
		if Date != "" {
			s += ", " + Date
		}
		s += ")"
	}
	return s
}
