// Package topiclog maps topic names onto per-topic segment logs. One
// TopicCommitLog exists per replication slot; topics are created lazily on
// first append.
package topiclog

import (
	"sync"

	"github.com/riverrun/brokerlog/segmentlog"
)

// TopicCommitLog is the topic -> *segmentlog.SegmentLog mapping described in
// spec.md §4.2.
type TopicCommitLog struct {
	mu     sync.Mutex
	opts   []segmentlog.Option
	topics map[string]*segmentlog.SegmentLog
}

// New creates an empty TopicCommitLog. Every per-topic segment log is
// created with the same opts, applied fresh on first write.
func New(opts ...segmentlog.Option) *TopicCommitLog {
	return &TopicCommitLog{
		opts:   opts,
		topics: make(map[string]*segmentlog.SegmentLog),
	}
}

// Append appends bytes to topic, creating its segment log on first write.
// isNewTopic reports whether this call created the topic.
func (t *TopicCommitLog) Append(topic string, payload []byte) (isNewTopic bool, offset int64, err error) {
	t.mu.Lock()
	log, ok := t.topics[topic]
	if !ok {
		log, err = segmentlog.New(t.opts...)
		if err != nil {
			t.mu.Unlock()
			return false, 0, err
		}
		// The topic is registered only once its first record is stored, so a
		// rejected first write leaves no empty topic behind.
		offset, err = log.Append(payload)
		if err == nil {
			t.topics[topic] = log
		}
		t.mu.Unlock()
		return err == nil, offset, err
	}
	t.mu.Unlock()

	offset, err = log.Append(payload)
	return false, offset, err
}

// Readv delegates to the named topic's segment log. An unknown topic yields
// segmentlog.CaughtUp, matching spec.md §4.2.
func (t *TopicCommitLog) Readv(topic string, from segmentlog.Cursor, maxPayloads int) segmentlog.ReadResult {
	t.mu.Lock()
	log, ok := t.topics[topic]
	t.mu.Unlock()

	if !ok {
		return segmentlog.ReadResult{Kind: segmentlog.CaughtUp}
	}
	return log.Readv(from, maxPayloads)
}

// TrackedTopic is a (topic, qos, per-slot cursors) tuple as tracked by a
// subscription. Cursors has one entry per replication slot.
type TrackedTopic struct {
	Topic   string
	QoS     byte
	Cursors [3]segmentlog.Cursor
}

// SeekOffsetsToEnd sets each entry's cursor for this commit log's slot to
// the slot's current tail, so a subsequent read skips this slot's history.
// Entries for topics never written to this commit log are left untouched.
// Exposed as a primitive (ported from the original source); the default
// Subscribe flow in spec.md §4.5/§4.7 does not call it.
func (t *TopicCommitLog) SeekOffsetsToEnd(slot int, entries []*TrackedTopic) {
	for _, e := range entries {
		t.mu.Lock()
		log, ok := t.topics[e.Topic]
		t.mu.Unlock()
		if !ok {
			continue
		}
		e.Cursors[slot] = log.TailCursor()
	}
}
