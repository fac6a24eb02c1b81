package topiclog_test

import (
	"testing"

	"github.com/benbjohnson/clock"
	"gotest.tools/v3/assert"

	"github.com/riverrun/brokerlog/segmentlog"
	"github.com/riverrun/brokerlog/topiclog"
)

func newLog() *topiclog.TopicCommitLog {
	return topiclog.New(segmentlog.WithClock(clock.NewMock()), segmentlog.WithMaxSegmentSize(1<<20))
}

func TestTopicCommitLog_AppendCreatesTopicOnce(t *testing.T) {
	tl := newLog()

	isNew, off, err := tl.Append("a/b", []byte("p1"))
	assert.NilError(t, err)
	assert.Assert(t, isNew)
	assert.Equal(t, off, int64(0))

	isNew, off, err = tl.Append("a/b", []byte("p2"))
	assert.NilError(t, err)
	assert.Assert(t, !isNew)
	assert.Equal(t, off, int64(1))
}

func TestTopicCommitLog_UnknownTopicCaughtUp(t *testing.T) {
	tl := newLog()
	res := tl.Readv("nope", segmentlog.Zero, 10)
	assert.Equal(t, res.Kind, segmentlog.CaughtUp)
}

func TestTopicCommitLog_SeekOffsetsToEnd(t *testing.T) {
	tl := newLog()
	_, _, err := tl.Append("a/b", []byte("p1"))
	assert.NilError(t, err)
	_, _, err = tl.Append("a/b", []byte("p2"))
	assert.NilError(t, err)

	entries := []*topiclog.TrackedTopic{
		{Topic: "a/b"},
		{Topic: "unwritten"},
	}
	tl.SeekOffsetsToEnd(1, entries)

	assert.Equal(t, entries[0].Cursors[1], segmentlog.Cursor{Base: 0, Offset: 2})
	assert.Equal(t, entries[1].Cursors[1], segmentlog.Cursor{})
}
