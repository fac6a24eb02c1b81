// Package segmentlog implements the append-only, segmented commit log that
// backs a single topic within a single replication slot. A SegmentLog is an
// ordered sequence of segments keyed by base offset; the tail segment is
// writable, every earlier segment is sealed and read-only.
package segmentlog

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
)

var (
	// ErrEmptyPayload is returned when Append is called with a zero-length
	// payload.
	ErrEmptyPayload = errors.New("segmentlog: empty payload")
)

// Cursor identifies the next record to read: a segment base offset plus a
// record offset within (at or after) that segment.
type Cursor struct {
	Base   int64
	Offset int64
}

// Zero is the cursor meaning "from the beginning".
var Zero = Cursor{}

// ReadKind classifies the outcome of a Readv call.
type ReadKind int

const (
	// CaughtUp means no records exist at or after the cursor; the caller
	// should park the request.
	CaughtUp ReadKind = iota
	// DataAvailable means Payloads is non-empty.
	DataAvailable
	// EmptyAfterJump means a segment rolled but the next segment has no
	// records yet; treated identically to CaughtUp by callers.
	EmptyAfterJump
)

// ReadResult is the outcome of a Readv call.
type ReadResult struct {
	Kind ReadKind

	// Jump is set when the read reached the end of a sealed segment. The
	// caller's next cursor must become Cursor{Base: *Jump, Offset: *Jump}.
	Jump *int64

	BaseOffset       int64
	LastRecordOffset int64
	Payloads         [][]byte
}

// SegmentLog is an append-only sequence of records grouped into size-bounded
// segments. Safe for concurrent use.
type SegmentLog struct {
	mu sync.Mutex

	clock           clock.Clock
	maxSegmentSize  int64
	maxSegmentCount int

	segments   []*segment // ordered by baseOffset ascending; last is active
	nextOffset int64
}

// New creates an empty SegmentLog, applying defaultOptions first and then
// the supplied options, matching the teacher's functional-option shape.
func New(opts ...Option) (*SegmentLog, error) {
	var l SegmentLog
	for _, opt := range defaultOptions {
		if err := opt(&l); err != nil {
			return nil, fmt.Errorf("configure segment log default option: %w", err)
		}
	}
	for _, opt := range opts {
		if err := opt(&l); err != nil {
			return nil, fmt.Errorf("configure segment log option: %w", err)
		}
	}

	l.segments = []*segment{newSegment(0)}
	return &l, nil
}

func (l *SegmentLog) active() *segment {
	return l.segments[len(l.segments)-1]
}

// Append writes payload to the active segment, rolling to a new segment
// first if payload would push the active segment over its byte budget (and
// the active segment already holds at least one record). Returns the
// assigned record offset.
func (l *SegmentLog) Append(payload []byte) (int64, error) {
	if len(payload) == 0 {
		return 0, ErrEmptyPayload
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	active := l.active()
	if len(active.records) > 0 && active.size+int64(len(payload)) > l.maxSegmentSize {
		l.roll()
		active = l.active()
	}

	offset := l.nextOffset
	active.append(offset, payload, l.clock.Now().UTC())
	l.nextOffset++
	return offset, nil
}

// roll seals the active segment and starts a fresh one at the current tail
// offset. Must be called with mu held.
func (l *SegmentLog) roll() {
	l.active().sealed = true
	l.segments = append(l.segments, newSegment(l.nextOffset))
}

// TailCursor returns the cursor naming "the next record to be written",
// i.e. a reader started here sees no history.
func (l *SegmentLog) TailCursor() Cursor {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := l.active()
	return Cursor{Base: active.baseOffset, Offset: active.nextOffset()}
}

// segmentIndex returns the index of the segment with the given base offset,
// or -1 if none matches.
func (l *SegmentLog) segmentIndex(base int64) int {
	i := sort.Search(len(l.segments), func(i int) bool {
		return l.segments[i].baseOffset >= base
	})
	if i < len(l.segments) && l.segments[i].baseOffset == base {
		return i
	}
	return -1
}

// Readv performs a bulk read starting at the given cursor, returning up to
// maxPayloads records (0 means unbounded). A single call reads from one
// segment only: when it takes everything left in a sealed segment, it
// reports Jump to the next segment's base and leaves the next segment's data
// for the caller's next Readv call. A cursor that already sits at the end of
// a sealed segment is read from the start of the following segment instead.
// Jump is only ever reported together with a non-empty Payloads.
func (l *SegmentLog) Readv(from Cursor, maxPayloads int) ReadResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.segmentIndex(from.Base)
	if idx < 0 {
		// Unknown base offset: treat defensively as caught up, matching the
		// "corrupt segment -> treated as caught-up" error policy.
		return ReadResult{Kind: CaughtUp}
	}

	seg := l.segments[idx]
	startIdx := from.Offset - seg.baseOffset
	if startIdx < 0 {
		startIdx = 0
	}
	avail := int64(len(seg.records)) - startIdx

	if avail <= 0 {
		if seg.sealed && idx+1 < len(l.segments) {
			next := l.segments[idx+1]
			if len(next.records) == 0 {
				return ReadResult{Kind: EmptyAfterJump}
			}
			// Cursor already sits exactly at the prior segment's end; the
			// caller is expected to have advanced to the next base already.
			// Recurse one level into the next segment.
			return l.readvLocked(next, Cursor{Base: next.baseOffset, Offset: next.baseOffset}, maxPayloads)
		}
		return ReadResult{Kind: CaughtUp}
	}

	return l.readvLocked(seg, from, maxPayloads)
}

// readvLocked reads from a single, already-resolved segment. Must be called
// with mu held.
func (l *SegmentLog) readvLocked(seg *segment, from Cursor, maxPayloads int) ReadResult {
	startIdx := from.Offset - seg.baseOffset
	avail := int64(len(seg.records)) - startIdx
	if avail <= 0 {
		return ReadResult{Kind: CaughtUp}
	}

	take := avail
	if maxPayloads > 0 && take > int64(maxPayloads) {
		take = int64(maxPayloads)
	}

	payloads := make([][]byte, take)
	for i := int64(0); i < take; i++ {
		payloads[i] = seg.records[startIdx+i].Payload
	}
	lastOffset := from.Offset + take - 1

	idx := l.segmentIndex(seg.baseOffset)
	var jump *int64
	if take == avail && seg.sealed && idx+1 < len(l.segments) {
		next := l.segments[idx+1].baseOffset
		jump = &next
	}

	return ReadResult{
		Kind:             DataAvailable,
		Jump:             jump,
		BaseOffset:       seg.baseOffset,
		LastRecordOffset: lastOffset,
		Payloads:         payloads,
	}
}

// String is provided for debugging/log messages.
func (l *SegmentLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fmt.Sprintf("segmentlog{segments=%d, nextOffset=%d}", len(l.segments), l.nextOffset)
}
