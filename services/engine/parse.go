// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/rama-labs/rama/services/verifier/datatypes"
)

// ErrParseFailure means the model reply could not be coerced into the
// structured verdict shape, even after cleanup.
var ErrParseFailure = errors.New("model reply is not parseable")

// modelReply is the JSON contract the model is instructed to follow.
type modelReply struct {
	Verdict     string  `json:"verdict"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
	Citations   []int   `json:"citations"`
}

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

// parseModelReply extracts the verdict object from a model reply. It
// tolerates markdown fences, prose around the object, and trailing commas.
// The verdict is coerced into the closed taxonomy and confidence is
// clamped to [0,1].
func parseModelReply(raw string) (*modelReply, error) {
	payload := extractJSON(raw)
	if payload == "" {
		return nil, ErrParseFailure
	}
	payload = trailingComma.ReplaceAllString(payload, "$1")

	var reply modelReply
	if err := json.Unmarshal([]byte(payload), &reply); err != nil {
		return nil, ErrParseFailure
	}
	reply.Verdict = datatypes.NormalizeVerdict(reply.Verdict)
	reply.Confidence = clamp01(reply.Confidence)
	reply.Explanation = strings.TrimSpace(reply.Explanation)
	return &reply, nil
}

// extractJSON returns the JSON object embedded in raw: a fenced block if
// present, otherwise the span from the first '{' to its matching '}'.
func extractJSON(raw string) string {
	if start := strings.Index(raw, "```"); start != -1 {
		rest := raw[start+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end != -1 {
			if block := strings.TrimSpace(rest[:end]); strings.HasPrefix(block, "{") {
				return block
			}
		}
	}

	start := strings.Index(raw, "{")
	if start == -1 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
