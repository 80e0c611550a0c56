// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingestion

import (
	"strings"

	"github.com/rama-labs/rama/services/verifier/datatypes"
)

// ratingAliases maps publisher textual ratings onto the canonical verdicts.
// Matching is case-insensitive on the trimmed rating.
var ratingAliases = map[string]string{
	"true":       datatypes.VerdictTrue,
	"accurate":   datatypes.VerdictTrue,
	"correct":    datatypes.VerdictTrue,
	"verified":   datatypes.VerdictTrue,
	"mostly true": datatypes.VerdictTrue,

	"false":         datatypes.VerdictFalse,
	"inaccurate":    datatypes.VerdictFalse,
	"incorrect":     datatypes.VerdictFalse,
	"fabricated":    datatypes.VerdictFalse,
	"hoax":          datatypes.VerdictFalse,
	"pants on fire": datatypes.VerdictFalse,
	"mostly false":  datatypes.VerdictFalse,

	"misleading":      datatypes.VerdictMisleading,
	"mixed":           datatypes.VerdictMisleading,
	"mixture":         datatypes.VerdictMisleading,
	"partial":         datatypes.VerdictMisleading,
	"partially true":  datatypes.VerdictMisleading,
	"half true":       datatypes.VerdictMisleading,
	"out of context":  datatypes.VerdictMisleading,
	"lacks context":   datatypes.VerdictMisleading,
	"missing context": datatypes.VerdictMisleading,

	"unverified":   datatypes.VerdictUnverified,
	"unproven":     datatypes.VerdictUnverified,
	"undetermined": datatypes.VerdictUnverified,
	"research in progress": datatypes.VerdictUnverified,
}

// NormalizeRating maps a publisher's textual rating, optionally backed by a
// numeric 0..1 truth score, onto a canonical verdict. Unknown ratings
// default to misleading rather than unverified: a publisher flagged the
// claim for a reason.
func NormalizeRating(rating string, value *float64) string {
	key := strings.ToLower(strings.TrimSpace(rating))
	if v, ok := ratingAliases[key]; ok {
		return v
	}
	if value != nil {
		switch {
		case *value >= 0.75:
			return datatypes.VerdictTrue
		case *value <= 0.25:
			return datatypes.VerdictFalse
		default:
			return datatypes.VerdictMisleading
		}
	}
	return datatypes.VerdictMisleading
}
