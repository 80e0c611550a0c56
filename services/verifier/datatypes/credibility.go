// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Evidence kinds as stored on vector records and raw documents.
const (
	KindNews      = "news"
	KindGov       = "gov"
	KindSocial    = "social"
	KindFactCheck = "factcheck"
)

// Credibility bands.
const (
	BandHigh       = "high"
	BandMediumHigh = "medium-high"
	BandMedium     = "medium"
	BandLow        = "low"
)

// Bucket scores. Classification is pure: same inputs always yield the same
// score, and scores never change after a record is written.
const (
	scoreGov       = 0.95
	scoreFactCheck = 0.90
	scoreTier1News = 0.80
	scoreOtherNews = 0.60
	scoreSocial    = 0.35

	// VerifiedSourceThreshold marks a source whose statements can seed the
	// verified-claims canon.
	VerifiedSourceThreshold = 0.85
)

// CredibilityTable maps source names and URL patterns to trust buckets.
// The zero value is unusable; use DefaultCredibilityTable or LoadCredibilityTable.
type CredibilityTable struct {
	// FactCheckers are publisher names of recognized fact-checking outlets.
	FactCheckers []string `yaml:"fact_checkers"`
	// Tier1News are wire services and newspapers of record.
	Tier1News []string `yaml:"tier1_news"`
	// GovSuffixes are hostname suffixes treated as government sources.
	GovSuffixes []string `yaml:"gov_suffixes"`

	factCheckers map[string]struct{}
	tier1        map[string]struct{}
}

// DefaultCredibilityTable returns the built-in trust lists.
func DefaultCredibilityTable() *CredibilityTable {
	t := &CredibilityTable{
		FactCheckers: []string{
			"snopes", "politifact", "factcheck.org", "full fact",
			"afp fact check", "reuters fact check", "ap fact check",
			"lead stories", "boom", "alt news",
		},
		Tier1News: []string{
			"reuters", "associated press", "ap news", "bbc", "bbc news",
			"the new york times", "the washington post", "the guardian",
			"npr", "afp", "the hindu", "al jazeera",
		},
		GovSuffixes: []string{
			".gov", ".gov.uk", ".gov.in", ".gc.ca", ".gov.au",
			".europa.eu", ".who.int", ".un.org", ".nic.in",
		},
	}
	t.buildSets()
	return t
}

// LoadCredibilityTable reads trust-list overrides from a YAML file. Missing
// sections fall back to the built-in lists.
func LoadCredibilityTable(path string) (*CredibilityTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credibility config: %w", err)
	}
	t := &CredibilityTable{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse credibility config: %w", err)
	}
	def := DefaultCredibilityTable()
	if len(t.FactCheckers) == 0 {
		t.FactCheckers = def.FactCheckers
	}
	if len(t.Tier1News) == 0 {
		t.Tier1News = def.Tier1News
	}
	if len(t.GovSuffixes) == 0 {
		t.GovSuffixes = def.GovSuffixes
	}
	t.buildSets()
	return t, nil
}

func (t *CredibilityTable) buildSets() {
	t.factCheckers = make(map[string]struct{}, len(t.FactCheckers))
	for _, n := range t.FactCheckers {
		t.factCheckers[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	t.tier1 = make(map[string]struct{}, len(t.Tier1News))
	for _, n := range t.Tier1News {
		t.tier1[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
}

// Classify returns the credibility score and band for a source. kind is one
// of the Kind* constants; sourceName is the publisher name; rawURL may be
// empty. Government detection works off the URL host so self-declared names
// cannot claim the bucket.
func (t *CredibilityTable) Classify(kind, sourceName, rawURL string) (float64, string) {
	name := strings.ToLower(strings.TrimSpace(sourceName))

	if t.isGovHost(rawURL) || kind == KindGov {
		return scoreGov, BandHigh
	}
	if _, ok := t.factCheckers[name]; ok || kind == KindFactCheck {
		return scoreFactCheck, BandHigh
	}
	if kind == KindSocial {
		return scoreSocial, BandLow
	}
	if _, ok := t.tier1[name]; ok {
		return scoreTier1News, BandMediumHigh
	}
	return scoreOtherNews, BandMedium
}

// IsVerifiedSource reports whether a score clears the canon threshold.
func IsVerifiedSource(score float64) bool {
	return score >= VerifiedSourceThreshold
}

func (t *CredibilityTable) isGovHost(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, suffix := range t.GovSuffixes {
		if strings.HasSuffix(host, suffix) {
			return true
		}
	}
	return false
}
