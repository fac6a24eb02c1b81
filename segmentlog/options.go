package segmentlog

import (
	"errors"

	"github.com/benbjohnson/clock"
)

// DefaultMaxSegmentSize is the segment roll threshold, in cumulative payload
// bytes, applied unless overridden with WithMaxSegmentSize.
const DefaultMaxSegmentSize = 1 << 20 // 1MiB

// Option customizes a SegmentLog.
type Option func(*SegmentLog) error

var defaultOptions = []Option{
	WithClock(clock.New()),
	WithMaxSegmentSize(DefaultMaxSegmentSize),
}

// WithClock injects the clock used to stamp record timestamps; overridden
// with a mock in tests.
func WithClock(c clock.Clock) Option {
	return func(l *SegmentLog) error {
		if c == nil {
			return errors.New("segmentlog: clock must not be nil")
		}
		l.clock = c
		return nil
	}
}

// WithMaxSegmentSize sets the segment roll threshold in cumulative payload
// bytes. A segment always holds at least one record, even if that record
// alone exceeds the threshold.
func WithMaxSegmentSize(size int64) Option {
	return func(l *SegmentLog) error {
		if size <= 0 {
			return errors.New("segmentlog: max segment size must be greater than 0")
		}
		l.maxSegmentSize = size
		return nil
	}
}

// WithMaxSegmentCount sets an optional retention bound. The core commit log
// never evicts segments on it (segment retention is a policy layer not
// covered here, per spec.md §3/§9); it is only tracked for a future layer
// to act on.
func WithMaxSegmentCount(count int) Option {
	return func(l *SegmentLog) error {
		if count <= 0 {
			return errors.New("segmentlog: max segment count must be greater than 0")
		}
		l.maxSegmentCount = count
		return nil
	}
}
