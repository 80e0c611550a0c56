// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases host", "https://Example.COM/News/story", "https://example.com/News/story"},
		{"strips utm params", "https://example.com/a?utm_source=tw&utm_campaign=x&id=5", "https://example.com/a?id=5"},
		{"strips fbclid and gclid", "https://example.com/a?fbclid=abc&gclid=def", "https://example.com/a"},
		{"strips ref", "https://example.com/a?ref=homepage", "https://example.com/a"},
		{"drops fragment", "https://example.com/a#section-2", "https://example.com/a"},
		{"trims trailing slash", "https://example.com/news/", "https://example.com/news"},
		{"root slash kept", "https://example.com/", "https://example.com/"},
		{"relative is empty", "/news/story", ""},
		{"garbage is empty", "://nope", ""},
		{"empty is empty", "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NormalizeURL(tc.in))
		})
	}
}

func TestContentKey_FoldsCaseAndWhitespace(t *testing.T) {
	a := ContentKey("The  Central Bank\ncut rates today.")
	b := ContentKey("the central bank cut rates today.")
	c := ContentKey("the central bank raised rates today.")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestDeduper(t *testing.T) {
	d := NewDeduper()

	assert.False(t, d.Seen("https://example.com/a", "key1"))
	assert.True(t, d.Seen("https://example.com/a", "key2"), "repeated URL is a duplicate")
	assert.True(t, d.Seen("https://example.com/b", "key1"), "repeated content key is a duplicate")
	assert.False(t, d.Seen("https://example.com/c", "key3"))
}

func TestDeduper_EmptyComponentsNeverMatch(t *testing.T) {
	d := NewDeduper()

	assert.False(t, d.Seen("", ""))
	assert.False(t, d.Seen("", ""), "empty URL and key are not tracked")
	assert.False(t, d.Seen("", "key1"))
	assert.True(t, d.Seen("", "key1"))
}
