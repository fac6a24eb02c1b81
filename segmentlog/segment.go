package segmentlog

import (
	"time"
)

// Record is an immutable entry in a segment. Offset is assigned at append
// time and never changes.
type Record struct {
	Offset  int64
	Created time.Time
	Payload []byte
}

func (r Record) deepCopy() Record {
	p := append([]byte(nil), r.Payload...)
	return Record{Offset: r.Offset, Created: r.Created, Payload: p}
}

// segment is an append-only, ordered sequence of records sharing a base
// offset. Not safe for concurrent use; callers (SegmentLog) hold the lock.
type segment struct {
	baseOffset int64
	sealed     bool // true once rolled; only the tail segment is writable
	size       int64 // cumulative payload bytes written so far
	records    []Record
}

func newSegment(base int64) *segment {
	return &segment{baseOffset: base}
}

func (s *segment) append(offset int64, payload []byte, now time.Time) {
	dup := append([]byte(nil), payload...)
	s.records = append(s.records, Record{Offset: offset, Created: now, Payload: dup})
	s.size += int64(len(payload))
}

// nextOffset is the offset one past the last record in this segment.
func (s *segment) nextOffset() int64 {
	return s.baseOffset + int64(len(s.records))
}
