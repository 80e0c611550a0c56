// Copyright (C) 2026 Rama Labs (oss@rama-labs.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package docstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestStaleRunFilter_MatchesOnlyAbandonedRuns(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	filter := staleRunFilter(now)

	assert.Equal(t, RunStatusRunning, filter["status"],
		"only RUNNING runs hold the singleton slot")

	bound, ok := filter["started_at"].(bson.M)
	require.True(t, ok)
	cutoff, ok := bound["$lt"].(time.Time)
	require.True(t, ok)

	assert.Equal(t, now.Add(-staleRunAfter), cutoff)

	fresh := now.Add(-time.Minute)
	crashed := now.Add(-3 * time.Hour)
	assert.False(t, fresh.Before(cutoff), "a run started a minute ago is not stale")
	assert.True(t, crashed.Before(cutoff), "a run running for hours is presumed dead")
}

func TestRawItemCollection(t *testing.T) {
	for kind, want := range map[string]string{
		"news":   collNewsItems,
		"gov":    collGovItems,
		"social": collSocialItems,
	} {
		coll, err := rawItemCollection(kind)
		require.NoError(t, err)
		assert.Equal(t, want, coll)
	}

	_, err := rawItemCollection("forum")
	assert.Error(t, err)
}
