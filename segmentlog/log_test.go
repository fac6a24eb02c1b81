package segmentlog_test

import (
	"testing"

	"github.com/benbjohnson/clock"
	"gotest.tools/v3/assert"

	"github.com/riverrun/brokerlog/segmentlog"
)

func TestSegmentLog_AppendReadv_NoLossNoDuplicationNoReorder(t *testing.T) {
	l, err := segmentlog.New(segmentlog.WithClock(clock.NewMock()), segmentlog.WithMaxSegmentSize(1<<20))
	assert.NilError(t, err)

	var want [][]byte
	for i := 0; i < 500; i++ {
		payload := []byte{byte(i), byte(i >> 8)}
		want = append(want, payload)
		_, err := l.Append(payload)
		assert.NilError(t, err)
	}

	var got [][]byte
	cur := segmentlog.Zero
	for {
		res := l.Readv(cur, 64)
		if res.Kind != segmentlog.DataAvailable {
			break
		}
		got = append(got, res.Payloads...)
		if res.Jump != nil {
			cur = segmentlog.Cursor{Base: *res.Jump, Offset: *res.Jump}
		} else {
			cur = segmentlog.Cursor{Base: res.BaseOffset, Offset: res.LastRecordOffset + 1}
		}
	}

	assert.Equal(t, len(got), len(want))
	for i := range want {
		assert.DeepEqual(t, got[i], want[i])
	}
}

func TestSegmentLog_CaughtUpOnEmptyLog(t *testing.T) {
	l, err := segmentlog.New(segmentlog.WithClock(clock.NewMock()))
	assert.NilError(t, err)
	res := l.Readv(segmentlog.Zero, 10)
	assert.Equal(t, res.Kind, segmentlog.CaughtUp)
}

func TestSegmentLog_EmptyPayloadRejected(t *testing.T) {
	l, err := segmentlog.New(segmentlog.WithClock(clock.NewMock()))
	assert.NilError(t, err)
	_, err = l.Append(nil)
	assert.ErrorIs(t, err, segmentlog.ErrEmptyPayload)
}

// TestSegmentLog_SegmentJump reproduces spec.md §8 scenario S5: with a
// segment size that rolls every 100 records, publish 250 records and read
// with a cap of 1000 starting at (0,0).
func TestSegmentLog_SegmentJump(t *testing.T) {
	payload := make([]byte, 10) // 100 records * 10 bytes = 1000 bytes/segment
	l, err := segmentlog.New(segmentlog.WithClock(clock.NewMock()), segmentlog.WithMaxSegmentSize(1000))
	assert.NilError(t, err)

	for i := 0; i < 250; i++ {
		_, err := l.Append(payload)
		assert.NilError(t, err)
	}

	res := l.Readv(segmentlog.Zero, 1000)
	assert.Equal(t, res.Kind, segmentlog.DataAvailable)
	assert.Equal(t, len(res.Payloads), 100)
	assert.Assert(t, res.Jump != nil)
	assert.Equal(t, *res.Jump, int64(100))

	cur := segmentlog.Cursor{Base: *res.Jump, Offset: *res.Jump}
	res = l.Readv(cur, 1000)
	assert.Equal(t, len(res.Payloads), 100)
	assert.Assert(t, res.Jump != nil)
	assert.Equal(t, *res.Jump, int64(200))

	cur = segmentlog.Cursor{Base: *res.Jump, Offset: *res.Jump}
	res = l.Readv(cur, 1000)
	assert.Equal(t, len(res.Payloads), 50)
	assert.Assert(t, res.Jump == nil)
	assert.Equal(t, res.BaseOffset, int64(200))
	assert.Equal(t, res.LastRecordOffset, int64(249))
}

// TestSegmentLog_CursorRoundTrip covers spec.md §8 property 3: replaying
// from any previously returned cursor yields exactly the records appended
// after that reply.
func TestSegmentLog_CursorRoundTrip(t *testing.T) {
	l, err := segmentlog.New(segmentlog.WithClock(clock.NewMock()), segmentlog.WithMaxSegmentSize(1<<20))
	assert.NilError(t, err)

	for i := 0; i < 10; i++ {
		_, err := l.Append([]byte{byte(i)})
		assert.NilError(t, err)
	}

	res := l.Readv(segmentlog.Zero, 5)
	assert.Equal(t, len(res.Payloads), 5)
	cur := segmentlog.Cursor{Base: res.BaseOffset, Offset: res.LastRecordOffset + 1}

	for i := 10; i < 15; i++ {
		_, err := l.Append([]byte{byte(i)})
		assert.NilError(t, err)
	}

	res = l.Readv(cur, 100)
	assert.Equal(t, len(res.Payloads), 10)
	assert.Equal(t, res.Payloads[0][0], byte(5))
	assert.Equal(t, res.Payloads[len(res.Payloads)-1][0], byte(14))
}
