// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"fmt"
	"strings"
	"time"
)

const systemDirective = `You are a careful fact-checking assistant. You are given a claim and numbered evidence items from news outlets, government sources, social media, and published fact checks.

Judge the claim ONLY on the evidence provided. Do not use outside knowledge. If the evidence does not settle the claim, say so.

Reply with a single JSON object and nothing else:
{
  "verdict": "true" | "false" | "misleading" | "unverified",
  "confidence": <number between 0 and 1>,
  "explanation": "<two to four sentences citing evidence by number, e.g. [3]>",
  "citations": [<numbers of the evidence items you relied on>]
}

Write the explanation in the same language as the claim. Cite only evidence that actually informed your verdict. An empty citations list means you could not verify the claim.`

// buildPrompt renders the claim and numbered evidence. Indices are 1-based
// and must match the citations the model returns.
func buildPrompt(claim string, items []Evidence) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Claim: %s\n\nEvidence:\n", claim)
	for i, e := range items {
		published := "undated"
		if e.PublishedAt > 0 {
			published = time.Unix(e.PublishedAt, 0).UTC().Format("2006-01-02")
		}
		source := e.SourceName
		if source == "" {
			source = "unknown source"
		}
		fmt.Fprintf(&b, "[%d] (%s, %s, %s): %s\n",
			i+1, e.Kind, source, published, snippet(e.Content, snippetChars))
	}
	b.WriteString("\nReturn the JSON object now.")
	return b.String()
}

// repairPrompt asks the model to restate a malformed reply as valid JSON.
func repairPrompt(raw string) string {
	return fmt.Sprintf(`Your previous reply was not valid JSON:

%s

Restate it as a single valid JSON object with the keys "verdict", "confidence", "explanation" and "citations". Output only the JSON object.`, snippet(raw, 2000))
}
