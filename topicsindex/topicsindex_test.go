package topicsindex_test

import (
	"testing"

	"gotest.tools/v3/assert"

	"github.com/riverrun/brokerlog/topicsindex"
)

func TestTopicsIndex_InsertIfNewIsIdempotent(t *testing.T) {
	idx := topicsindex.New()

	assert.Assert(t, idx.InsertIfNew("a/b"))
	assert.Assert(t, !idx.InsertIfNew("a/b"))
	assert.Assert(t, idx.InsertIfNew("a/c"))
	assert.Equal(t, idx.Len(), 2)
}

func TestTopicsIndex_SnapshotFrom(t *testing.T) {
	idx := topicsindex.New()
	idx.InsertIfNew("a")
	idx.InsertIfNew("b")

	offset, topics := idx.SnapshotFrom(0)
	assert.Equal(t, offset, 2)
	assert.DeepEqual(t, topics, []string{"a", "b"})

	idx.InsertIfNew("c")
	offset, topics = idx.SnapshotFrom(offset)
	assert.Equal(t, offset, 3)
	assert.DeepEqual(t, topics, []string{"c"})

	offset, topics = idx.SnapshotFrom(offset)
	assert.Equal(t, offset, 3)
	assert.Assert(t, len(topics) == 0)
}
