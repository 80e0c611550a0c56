// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import "strings"

// contradictionMarkers are phrases that signal evidence pushing back
// against a claim rather than supporting it.
var contradictionMarkers = []string{
	"false", "debunked", "no evidence", "misleading", "denied", "denies",
	"hoax", "incorrect", "untrue", "refuted", "disputed", "fabricated",
	"not true", "contrary to", "fact check",
}

// contradictionScore is the fraction of evidence items carrying at least
// one contradiction marker. It is a cheap lexical signal, not a judgment;
// the verdict itself comes from the model.
func contradictionScore(items []Evidence) float64 {
	if len(items) == 0 {
		return 0
	}
	hits := 0
	for _, e := range items {
		text := strings.ToLower(e.Content)
		for _, marker := range contradictionMarkers {
			if strings.Contains(text, marker) {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(items))
}
