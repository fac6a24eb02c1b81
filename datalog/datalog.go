// Package datalog implements the replication slot model: a router holds
// three parallel Topic Commit Logs — one native slot for its own writes,
// and two replica slots fed by peer routers — and routes appends/reads to
// the correct slot based on caller identity.
package datalog

import (
	"go.uber.org/zap"

	"github.com/riverrun/brokerlog/segmentlog"
	"github.com/riverrun/brokerlog/topiclog"
)

// Slots is the fixed number of replication slots per router: one native,
// two replicas. Kept as a contiguous array, not a map, so slot dispatch on
// the hot publish path is O(1) with no lookup (spec.md §9).
const Slots = 3

// replicationPeerBoundary: caller ids below this are replication peers,
// each mapped one-to-one onto a slot index. All other ids are local
// connections, whose writes always land in the native slot.
const replicationPeerBoundary = 10

// DataRequest asks for data on topic, starting from cursors (one per slot).
type DataRequest struct {
	Topic   string
	Cursors [Slots]segmentlog.Cursor
}

// DataReply answers a DataRequest. Cursors always reflects the furthest
// each slot's read reached, even when Payload ends up empty — see
// HandleDataRequest's doc comment for why.
type DataReply struct {
	Topic   string
	Cursors [Slots]segmentlog.Cursor
	Payload [][]byte
}

// DataLog bundles the three slot-indexed Topic Commit Logs and routes
// appends/reads to the correct slot based on caller identity.
type DataLog struct {
	nativeSlot        int
	maxPayloadPerRead int
	logs              [Slots]*topiclog.TopicCommitLog
	logger            *zap.Logger
}

// New creates a DataLog whose native slot is nativeSlot (this router's own
// writes land there). segOpts configures every slot's segment logs
// identically. maxPayloadPerRead caps the number of payloads returned by a
// single Readv call within HandleDataRequest (spec.md §4.1/§6's
// max_payload_per_read); 0 means unbounded.
func New(nativeSlot int, maxPayloadPerRead int, logger *zap.Logger, segOpts ...segmentlog.Option) *DataLog {
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &DataLog{nativeSlot: nativeSlot, maxPayloadPerRead: maxPayloadPerRead, logger: logger}
	for i := range d.logs {
		d.logs[i] = topiclog.New(segOpts...)
	}
	return d
}

// slotFor returns the slot a caller's writes land in: replication peers
// (callerID < 10) write into their own numbered slot; everyone else
// (a local connection) writes into this router's native slot.
func (d *DataLog) slotFor(callerID int) int {
	if callerID < replicationPeerBoundary {
		return callerID
	}
	return d.nativeSlot
}

// AppendToCommitlog appends bytes to topic in the slot selected by
// callerID. Append failures are logged and swallowed — a single bad append
// must not stall the router's event loop — in which case ok is false and
// the publisher receives no ack for this message.
func (d *DataLog) AppendToCommitlog(callerID int, topic string, payload []byte) (isNewTopic bool, offset int64, ok bool) {
	slot := d.slotFor(callerID)
	isNewTopic, offset, err := d.logs[slot].Append(topic, payload)
	if err != nil {
		d.logger.Error("commitlog append failed",
			zap.Int("slot", slot), zap.String("topic", topic), zap.Error(err))
		return false, 0, false
	}
	return isNewTopic, offset, true
}

// HandleDataRequest answers request on behalf of callerID: a replication
// peer (callerID < 10) pulling data is fed only from the native slot, since
// a peer must never receive data that was itself replicated in; any other
// caller (a local subscriber) is fed from all three slots, concatenated in
// slot order 0, 1, 2.
//
// The returned DataReply's Cursors are always the furthest position each
// relevant slot's read reached, whether or not any payload was produced —
// spec.md §4.3's open question recommends surfacing cursors even on empty
// reads rather than leaving the caller to re-scan the same empty range, and
// this is the behavior implemented here. hasData is false when Payload
// ended up empty; the caller should re-park the request with the returned
// cursors.
func (d *DataLog) HandleDataRequest(callerID int, request DataRequest) (reply DataReply, hasData bool) {
	if callerID < replicationPeerBoundary {
		return d.extractConnectionData(request)
	}
	return d.extractAllData(request)
}

// extractConnectionData reads only the native slot. Only the native slot's
// cursor is advanced in the reply; the others pass through unchanged.
func (d *DataLog) extractConnectionData(request DataRequest) (DataReply, bool) {
	reply := DataReply{Topic: request.Topic, Cursors: request.Cursors}

	slot := d.nativeSlot
	res := d.logs[slot].Readv(request.Topic, request.Cursors[slot], d.maxPayloadPerRead)
	switch res.Kind {
	case segmentlog.DataAvailable:
		reply.Cursors[slot] = nextCursor(res)
		reply.Payload = res.Payloads
		return reply, true
	case segmentlog.EmptyAfterJump:
		// Segment rolled with nothing past it yet; no cursor advance to
		// report beyond what was already known.
		return reply, false
	default: // CaughtUp
		return reply, false
	}
}

// extractAllData reads all three slots independently, concatenating
// payloads in slot order. Each slot's cursor advances per its own readv
// outcome; a caught-up slot keeps its input cursor.
func (d *DataLog) extractAllData(request DataRequest) (DataReply, bool) {
	reply := DataReply{Topic: request.Topic, Cursors: request.Cursors}

	var payload [][]byte
	for slot := 0; slot < Slots; slot++ {
		res := d.logs[slot].Readv(request.Topic, request.Cursors[slot], d.maxPayloadPerRead)
		switch res.Kind {
		case segmentlog.DataAvailable:
			reply.Cursors[slot] = nextCursor(res)
			payload = append(payload, res.Payloads...)
		default: // CaughtUp, EmptyAfterJump: leave this slot's cursor as-is
		}
	}

	if len(payload) == 0 {
		return reply, false
	}
	reply.Payload = payload
	return reply, true
}

// nextCursor computes the next cursor to read from, given a DataAvailable
// result: a jump moves straight to the new segment's base; otherwise it's
// one past the last record read in the current segment.
func nextCursor(res segmentlog.ReadResult) segmentlog.Cursor {
	if res.Jump != nil {
		return segmentlog.Cursor{Base: *res.Jump, Offset: *res.Jump}
	}
	return segmentlog.Cursor{Base: res.BaseOffset, Offset: res.LastRecordOffset + 1}
}
