package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterFlags_IsEmpty(t *testing.T) {
	var f filterFlags
	assert.True(t, f.isEmpty())

	f.author = "alice"
	assert.False(t, f.isEmpty())
}

func TestFilterFlags_ToRequestOmitsZeroFields(t *testing.T) {
	f := filterFlags{
		author: "alice",
		tags:   []string{"deploy", "infra"},
		date:   "2026-08-01",
	}

	req := f.toRequest()
	assert.Equal(t, "alice", req["author"])
	assert.Equal(t, []string{"deploy", "infra"}, req["tags"])
	assert.Equal(t, "2026-08-01", req["date"])
	assert.NotContains(t, req, "source")
	assert.NotContains(t, req, "date_from")
}

func TestFilterFlags_ToQueryRepeatsTags(t *testing.T) {
	f := filterFlags{
		source: "bulk-import",
		tags:   []string{"a", "b"},
	}

	q := f.toQuery()
	assert.Equal(t, "bulk-import", q.Get("source"))
	assert.Equal(t, []string{"a", "b"}, q["tag"])
}

func TestFilterFlags_Describe(t *testing.T) {
	f := filterFlags{author: "alice", tags: []string{"deploy"}}
	desc := f.describe()
	assert.Contains(t, desc, "author=alice")
	assert.Contains(t, desc, "tags=deploy")
}
