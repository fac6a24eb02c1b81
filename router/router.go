// Package router implements the single-threaded event loop and scheduler
// described in spec.md §4.7/§5: it owns the Data Log, the Topics Index, and
// every connection's Subscription Tracker, consuming inbound Events and
// scheduling outbound Notifications under per-connection backpressure.
package router

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/riverrun/brokerlog/datalog"
	"github.com/riverrun/brokerlog/segmentlog"
	"github.com/riverrun/brokerlog/subscriptions"
	"github.com/riverrun/brokerlog/topicsindex"
)

// firstLocalConnectionID is the smallest id handed to a local connection;
// ids below it are reserved for replication peers (spec.md §6).
const firstLocalConnectionID = ConnectionID(10)

// Router is the single-threaded router/scheduler. All mutable state is
// confined to the goroutine running Run; nothing here is safe to touch
// concurrently from the outside except through the ingress channel.
type Router struct {
	cfg Config

	ingress chan Envelope

	data   *datalog.DataLog
	topics *topicsindex.TopicsIndex

	conns      map[ConnectionID]*connState
	trackers   map[ConnectionID]*subscriptions.Tracker
	order      []ConnectionID // round-robin scheduling order, insertion order
	clientIDs  map[string]ConnectionID
	ackBacklog map[ConnectionID][]Ack

	admission  *semaphore.Weighted
	nextConnID ConnectionID

	logger *zap.Logger
}

// New creates a Router from cfg. Callers send into Ingress() and run the
// event loop with Run.
func New(cfg Config) *Router {
	segOpts := []segmentlog.Option{
		segmentlog.WithClock(cfg.Clock),
		segmentlog.WithMaxSegmentSize(int64(cfg.MaxSegmentSize)),
	}
	if cfg.MaxSegmentCount > 0 {
		segOpts = append(segOpts, segmentlog.WithMaxSegmentCount(int(cfg.MaxSegmentCount)))
	}

	return &Router{
		cfg:        cfg,
		ingress:    make(chan Envelope, 4096),
		data:       datalog.New(cfg.ID, int(cfg.MaxPayloadPerRead), cfg.Logger, segOpts...),
		topics:     topicsindex.New(),
		conns:      make(map[ConnectionID]*connState),
		trackers:   make(map[ConnectionID]*subscriptions.Tracker),
		clientIDs:  make(map[string]ConnectionID),
		ackBacklog: make(map[ConnectionID][]Ack),
		admission:  semaphore.NewWeighted(int64(cfg.MaxConnections)),
		nextConnID: firstLocalConnectionID,
		logger:     cfg.Logger,
	}
}

// Ingress is the send side of the router's single ingress channel —
// producers (connection decoders, replication peers) push (connID, Event)
// envelopes here.
func (r *Router) Ingress() chan<- Envelope {
	return r.ingress
}

// Run is the blocking event loop: receive, handle, schedule, repeat — until
// ctx is cancelled or the ingress channel is closed.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-r.ingress:
			if !ok {
				return nil
			}
			r.HandleEvent(env)
			r.schedule()
		}
	}
}

// HandleEvent processes exactly one inbound envelope, updating router
// state. Apart from the connection ack a Connect pushes straight into the
// new outbox, it does not itself attempt notification delivery — that
// happens in the subsequent scheduling pass (see Run, or call Schedule
// directly in tests for deterministic control over batching).
func (r *Router) HandleEvent(env Envelope) {
	switch e := env.Event.(type) {
	case Connect:
		r.handleConnect(e)
	case Disconnect:
		r.handleDisconnect(env.ConnID)
	case Ready:
		r.handleReady(env.ConnID)
	case DataEvent:
		r.handleData(env.ConnID, e)
	case TopicsRequestEvent:
		r.handleTopicsRequest(env.ConnID, e)
	case DataRequestEvent:
		r.handleDataRequest(env.ConnID, e)
	}
}

// Schedule runs one or more scheduling passes over ready connections until
// a full pass delivers nothing further, draining topics/data requests and
// flushing backlogged acks under backpressure (spec.md §4.7).
func (r *Router) Schedule() {
	r.schedule()
}

func (r *Router) handleConnect(e Connect) {
	clientID := e.Handle.ClientID

	if _, exists := r.clientIDs[clientID]; exists {
		pushNotification(e.Handle.outbox, ConnectionAckFailure{Reason: "duplicate client id"})
		return
	}

	if !r.admission.TryAcquire(1) {
		pushNotification(e.Handle.outbox, ConnectionAckFailure{Reason: "max connections reached"})
		return
	}

	id := r.nextConnID
	r.nextConnID++

	cs := &connState{
		id:       id,
		clientID: clientID,
		capacity: cap(e.Handle.outbox),
		outbox:   e.Handle.outbox,
		ready:    true,
	}
	r.conns[id] = cs
	r.trackers[id] = subscriptions.NewTracker()
	r.order = append(r.order, id)
	r.clientIDs[clientID] = id

	cs.push(ConnectionAckSuccess{ID: id})
}

func (r *Router) handleDisconnect(id ConnectionID) {
	cs, ok := r.conns[id]
	if !ok {
		return
	}

	delete(r.conns, id)
	delete(r.trackers, id)
	delete(r.ackBacklog, id)
	delete(r.clientIDs, cs.clientID)
	r.admission.Release(1)

	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Router) handleReady(id ConnectionID) {
	if cs, ok := r.conns[id]; ok {
		cs.ready = true
	}
}

// handleData splits a batch of packets into publishes and subscribes.
// Replication peers (id.IsReplicationPeer()) may publish without ever
// having connected — their writes are serialized through this same ingress
// channel per spec.md §5, but they carry no Connection/outbox and so never
// receive Acks (the "(if local)" qualifier in spec.md §4.7). See
// DESIGN.md for why peer fetch-back is exercised at the datalog layer
// directly rather than through this event loop.
func (r *Router) handleData(id ConnectionID, e DataEvent) {
	for _, pkt := range e.Packets {
		switch {
		case pkt.Publish != nil:
			r.handlePublish(id, pkt.Publish)
		case pkt.Subscribe != nil:
			r.handleSubscribe(id, pkt.Subscribe)
		}
	}
}

func (r *Router) handlePublish(id ConnectionID, p *Publish) {
	isNew, offset, ok := r.data.AppendToCommitlog(int(id), p.Topic, p.Payload)
	if !ok {
		// Append failed and was already logged by datalog; the publisher
		// gets no ack for this message and may retry (spec.md §7).
		return
	}

	if isNew {
		r.topics.InsertIfNew(p.Topic)
	}

	if _, local := r.conns[id]; local {
		r.ackBacklog[id] = append(r.ackBacklog[id], Ack{PacketID: p.PacketID, Offset: offset})
	}
}

func (r *Router) handleSubscribe(id ConnectionID, sub *Subscribe) {
	if _, ok := r.conns[id]; !ok {
		return // stale or peer connection reference; drop silently (spec.md §7)
	}
	tr := r.trackers[id]

	filters := make([]subscriptions.Filter, len(sub.Filters))
	for i, f := range sub.Filters {
		filters[i] = subscriptions.Filter{Topic: f.Topic, QoS: f.QoS}
	}

	_, knownTopics := r.topics.SnapshotFrom(0)
	firstSubscription, tracked := tr.AddSubscription(filters, knownTopics)
	for _, tt := range tracked {
		tr.PushDataRequest(subscriptions.DataRequest{Topic: tt.Topic, Cursors: tt.Cursors})
	}

	if firstSubscription {
		tr.RegisterTopicsRequest(r.topics.Len())
	}

	r.ackBacklog[id] = append(r.ackBacklog[id], Ack{PacketID: sub.PacketID})
}

func (r *Router) handleTopicsRequest(id ConnectionID, e TopicsRequestEvent) {
	tr, ok := r.trackers[id]
	if !ok {
		return
	}
	tr.RegisterTopicsRequest(e.Offset)
}

func (r *Router) handleDataRequest(id ConnectionID, e DataRequestEvent) {
	tr, ok := r.trackers[id]
	if !ok {
		return
	}
	tr.PushDataRequest(subscriptions.DataRequest{Topic: e.Topic, Cursors: e.Cursors})
}

// schedule drains ready connections' outstanding work — backlogged acks
// first, then a pending topics request, then queued data requests — repeating full
// passes until one makes no further delivery progress (spec.md §4.7).
func (r *Router) schedule() {
	for {
		progressed := false

		for _, id := range r.order {
			cs, ok := r.conns[id]
			if !ok || !cs.ready {
				continue
			}
			tr := r.trackers[id]

			if r.flushAcks(cs) {
				progressed = true
			}
			if !cs.ready {
				continue
			}

			if r.serveTopicsRequest(cs, tr) {
				progressed = true
			}
			if !cs.ready {
				continue
			}

			if r.serveDataRequests(cs, tr) {
				progressed = true
			}
		}

		if !progressed {
			return
		}
	}
}

func (r *Router) flushAcks(cs *connState) bool {
	backlog := r.ackBacklog[cs.id]
	if len(backlog) == 0 {
		return false
	}

	switch cs.push(AcksNotification{Acks: backlog}) {
	case pushAccepted:
		delete(r.ackBacklog, cs.id)
		return true
	default: // pushFull
		cs.ready = false
		r.logger.Debug("outbox full, deferring acks", zap.Uint64("conn", uint64(cs.id)))
		return false
	}
}

func (r *Router) serveTopicsRequest(cs *connState, tr *subscriptions.Tracker) bool {
	req, ok := tr.PopTopicsRequest()
	if !ok {
		return false
	}

	_, newTopics := r.topics.SnapshotFrom(req.Offset)
	if len(newTopics) == 0 {
		tr.RegisterTopicsRequest(req.Offset)
		return false
	}

	switch cs.push(TopicsNotification{Topics: newTopics}) {
	case pushAccepted:
		tr.TrackMatchedTopics(newTopics)
		return true
	default: // pushFull
		tr.RegisterTopicsRequest(req.Offset)
		cs.ready = false
		r.logger.Debug("outbox full, deferring topics", zap.Uint64("conn", uint64(cs.id)))
		return false
	}
}

func (r *Router) serveDataRequests(cs *connState, tr *subscriptions.Tracker) bool {
	progressed := false

	// Snapshot the queue length so caught-up requests re-parked to the
	// back of the queue are tried at most once per scheduling pass,
	// instead of spinning forever on perpetually-empty topics.
	pending := tr.DataRequestCount()
	for i := 0; i < pending; i++ {
		req, ok := tr.PopDataRequest()
		if !ok {
			break
		}

		reply, hasData := r.data.HandleDataRequest(int(cs.id), datalog.DataRequest{Topic: req.Topic, Cursors: req.Cursors})
		if !hasData {
			req.Cursors = reply.Cursors
			tr.PushDataRequest(req)
			continue
		}

		switch cs.push(DataNotification{Topic: reply.Topic, Cursors: reply.Cursors, Payload: reply.Payload}) {
		case pushAccepted:
			progressed = true
		default: // pushFull
			tr.PushDataRequestFront(req)
			cs.ready = false
			r.logger.Debug("outbox full, deferring data", zap.Uint64("conn", uint64(cs.id)), zap.String("topic", req.Topic))
			return progressed
		}
	}

	return progressed
}

func pushNotification(outbox chan<- Notification, n Notification) {
	select {
	case outbox <- n:
	default:
	}
}
