// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during URL normalization.
var trackingParams = map[string]bool{
	"fbclid": true,
	"gclid":  true,
	"ref":    true,
}

// NormalizeURL canonicalizes a URL for dedupe: lowercases the host, strips
// tracking parameters (utm_*, fbclid, gclid, ref), drops the fragment, and
// trims a trailing slash from the path. Returns "" for unparseable or
// relative URLs.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() {
		return ""
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		if trackingParams[strings.ToLower(key)] || strings.HasPrefix(strings.ToLower(key), "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()

	if len(u.Path) > 1 {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}

// ContentKey fingerprints document text for dedupe of re-published items.
// Whitespace runs collapse to one space and case is folded before hashing.
func ContentKey(text string) string {
	folded := strings.ToLower(strings.Join(strings.Fields(text), " "))
	sum := sha256.Sum256([]byte(folded))
	return hex.EncodeToString(sum[:])
}

// Deduper tracks URLs and content keys seen within a single ingestion run.
// Historical dedupe against the docstore happens separately.
type Deduper struct {
	urls map[string]bool
	keys map[string]bool
}

func NewDeduper() *Deduper {
	return &Deduper{
		urls: make(map[string]bool),
		keys: make(map[string]bool),
	}
}

// Seen records the pair and reports whether either component was already
// seen in this run. Empty components never match.
func (d *Deduper) Seen(normalizedURL, contentKey string) bool {
	dup := false
	if normalizedURL != "" {
		if d.urls[normalizedURL] {
			dup = true
		}
		d.urls[normalizedURL] = true
	}
	if contentKey != "" {
		if d.keys[contentKey] {
			dup = true
		}
		d.keys[contentKey] = true
	}
	return dup
}
