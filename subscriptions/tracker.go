// Package subscriptions holds per-connection subscription state: filter
// sets, matched-topic bookkeeping, and pending data/topics requests. Ported
// from original_source/rumqttlog/src/router/subscriptions.rs; see
// DESIGN.md for the mapping.
package subscriptions

import "github.com/riverrun/brokerlog/segmentlog"

// Filter is one requested subscription: a topic filter (possibly containing
// '+'/'#') plus its requested QoS.
type Filter struct {
	Topic string
	QoS   byte
}

// DataRequest asks the router to pull data for Topic, starting from
// Cursors (one per replication slot).
type DataRequest struct {
	Topic   string
	Cursors [3]segmentlog.Cursor
}

// TopicsRequest asks the router for any new topic names registered since
// Offset.
type TopicsRequest struct {
	Offset int
}

// TrackedTopic is a topic newly matched by a subscription, tracked from the
// beginning of history across all three slots.
type TrackedTopic struct {
	Topic   string
	QoS     byte
	Cursors [3]segmentlog.Cursor
}

type wildFilter struct {
	filter string
	qos    byte
}

// Tracker holds one connection's subscription state. The router owns every
// Tracker exclusively and is single-threaded (spec.md §5/§9), so unlike
// most types in this repo Tracker carries no mutex.
type Tracker struct {
	concreteSubscriptions map[string]byte
	wildSubscriptions     []wildFilter
	topicsIndex           map[string]struct{}
	dataRequests          []DataRequest
	topicsRequest         *TopicsRequest
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		concreteSubscriptions: make(map[string]byte),
		topicsIndex:           make(map[string]struct{}),
	}
}

// Count returns the number of filters (concrete + wildcard) currently held.
func (t *Tracker) Count() int {
	return len(t.concreteSubscriptions) + len(t.wildSubscriptions)
}

// PushDataRequest enqueues r at the back of the FIFO data request queue.
func (t *Tracker) PushDataRequest(r DataRequest) {
	t.dataRequests = append(t.dataRequests, r)
}

// PushDataRequestFront re-enqueues r at the front of the queue — used when
// a push to the connection's outbox failed and r must be retried first.
func (t *Tracker) PushDataRequestFront(r DataRequest) {
	t.dataRequests = append([]DataRequest{r}, t.dataRequests...)
}

// PopDataRequest dequeues the oldest pending data request, if any.
func (t *Tracker) PopDataRequest() (DataRequest, bool) {
	if len(t.dataRequests) == 0 {
		return DataRequest{}, false
	}
	r := t.dataRequests[0]
	t.dataRequests = t.dataRequests[1:]
	return r, true
}

// HasDataRequests reports whether any data request is pending.
func (t *Tracker) HasDataRequests() bool {
	return len(t.dataRequests) > 0
}

// DataRequestCount returns the number of data requests currently queued.
func (t *Tracker) DataRequestCount() int {
	return len(t.dataRequests)
}

// RegisterTopicsRequest sets the single pending topics request, overwriting
// any existing one.
func (t *Tracker) RegisterTopicsRequest(offset int) {
	t.topicsRequest = &TopicsRequest{Offset: offset}
}

// PopTopicsRequest returns and clears the pending topics request, if any.
func (t *Tracker) PopTopicsRequest() (TopicsRequest, bool) {
	if t.topicsRequest == nil {
		return TopicsRequest{}, false
	}
	r := *t.topicsRequest
	t.topicsRequest = nil
	return r, true
}

// HasTopicsRequest reports whether a topics request is pending.
func (t *Tracker) HasTopicsRequest() bool {
	return t.topicsRequest != nil
}

// AddSubscription registers filters and matches them against knownTopics.
// Any topic not already tracked by this connection that matches a new
// filter is returned as a TrackedTopic (tracked from the beginning of
// history, across all slots) and marked tracked so it is never returned
// again. firstSubscription is true iff this Tracker had zero filters
// before this call — the router uses that to register an initial
// TopicsRequest.
func (t *Tracker) AddSubscription(filters []Filter, knownTopics []string) (firstSubscription bool, tracked []TrackedTopic) {
	firstSubscription = t.Count() == 0

	for _, f := range filters {
		if HasWildcards(f.Topic) {
			t.wildSubscriptions = append(t.wildSubscriptions, wildFilter{filter: f.Topic, qos: f.QoS})
		} else {
			t.concreteSubscriptions[f.Topic] = f.QoS
		}

		for _, topic := range knownTopics {
			if _, ok := t.topicsIndex[topic]; ok {
				continue
			}
			if Matches(topic, f.Topic) {
				t.topicsIndex[topic] = struct{}{}
				tracked = append(tracked, TrackedTopic{Topic: topic, QoS: f.QoS})
			}
		}
	}

	return firstSubscription, tracked
}

// TrackMatchedTopics consults each topic in a fresh topics-index batch
// against this tracker's subscriptions. On first match it tracks the topic
// and enqueues a fresh DataRequest (from the beginning of history, across
// all slots). Wildcard matching stops at the first matching filter.
// Returns the number of topics newly matched.
func (t *Tracker) TrackMatchedTopics(topics []string) int {
	matched := 0
	for _, topic := range topics {
		if t.trackIfMatched(topic) {
			matched++
		}
	}
	return matched
}

func (t *Tracker) trackIfMatched(topic string) bool {
	if _, ok := t.topicsIndex[topic]; ok {
		return false
	}

	if _, ok := t.concreteSubscriptions[topic]; ok {
		t.topicsIndex[topic] = struct{}{}
		t.dataRequests = append(t.dataRequests, DataRequest{Topic: topic})
		return true
	}

	for _, w := range t.wildSubscriptions {
		if Matches(topic, w.filter) {
			t.topicsIndex[topic] = struct{}{}
			t.dataRequests = append(t.dataRequests, DataRequest{Topic: topic})
			return true
		}
	}

	return false
}
