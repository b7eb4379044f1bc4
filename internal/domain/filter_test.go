package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntry() *Entry {
	e := NewEntry("id-1", "fact", "U1", SourceBulkImport, time.Date(2025, 2, 22, 9, 30, 0, 0, time.UTC))
	e.SourceURL = "https://example.com/doc"
	e.Tags = []string{"imported", "infra"}
	return e
}

func TestFilterIsEmpty(t *testing.T) {
	assert.True(t, Filter{}.IsEmpty())
	assert.False(t, Filter{Source: SourceInteractive}.IsEmpty())
	assert.False(t, Filter{Tags: []string{"a"}}.IsEmpty())
	assert.False(t, Filter{DateFrom: time.Now()}.IsEmpty())
}

func TestFilterMatches(t *testing.T) {
	e := testEntry()
	from, to := DayRange(e.CreatedAt)

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{name: "empty matches everything", filter: Filter{}, want: true},
		{name: "source match", filter: Filter{Source: SourceBulkImport}, want: true},
		{name: "source mismatch", filter: Filter{Source: SourceInteractive}, want: false},
		{name: "url match", filter: Filter{SourceURL: "https://example.com/doc"}, want: true},
		{name: "author mismatch", filter: Filter{Author: "U2"}, want: false},
		{name: "tag subset", filter: Filter{Tags: []string{"infra"}}, want: true},
		{name: "tag superset", filter: Filter{Tags: []string{"infra", "missing"}}, want: false},
		{name: "date window", filter: Filter{DateFrom: from, DateTo: to}, want: true},
		{name: "date window excludes next day", filter: Filter{DateFrom: to, DateTo: to.Add(24 * time.Hour)}, want: false},
		{name: "conjunction", filter: Filter{Source: SourceBulkImport, DateFrom: from, DateTo: to}, want: true},
		{name: "conjunction with one miss", filter: Filter{Source: SourceInteractive, DateFrom: from, DateTo: to}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(e))
		})
	}
}

func TestFilterValidate(t *testing.T) {
	assert.NoError(t, Filter{Source: SourceInteractive}.Validate())

	err := Filter{Source: Source("slack")}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFilter)

	now := time.Now()
	err = Filter{DateFrom: now, DateTo: now.Add(-time.Hour)}.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestParseResolutionAction(t *testing.T) {
	for _, a := range ResolutionActions {
		got, err := ParseResolutionAction(string(a))
		require.NoError(t, err)
		assert.Equal(t, a, got)
	}

	_, err := ParseResolutionAction("overwrite")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidResolution)
}
