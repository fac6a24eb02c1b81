package router

import "github.com/riverrun/brokerlog/segmentlog"

// ConnectionID identifies a connection (or replication peer) inside the
// router. IDs below 10 are reserved for replication peers; local
// connections receive IDs >= 10 (spec.md §6).
type ConnectionID uint64

const replicationPeerBoundary = ConnectionID(10)

// IsReplicationPeer reports whether id names a replication peer rather than
// a local client connection.
func (id ConnectionID) IsReplicationPeer() bool {
	return id < replicationPeerBoundary
}

// SubscribeFilter is one requested (topic filter, qos) pair within a
// Subscribe packet.
type SubscribeFilter struct {
	Topic string
	QoS   byte
}

// Packet is the minimal decoded-packet contract this router needs from an
// external MQTT codec (spec.md §1/§6 treat wire framing as an external
// collaborator; this is not a wire codec).
type Packet struct {
	Publish     *Publish
	Subscribe   *Subscribe
	Unsubscribe *Unsubscribe
	PingReq     bool
}

// Publish is a decoded PUBLISH packet.
type Publish struct {
	Topic    string
	QoS      byte
	Payload  []byte
	PacketID uint16
}

// Subscribe is a decoded SUBSCRIBE packet.
type Subscribe struct {
	Filters  []SubscribeFilter
	PacketID uint16
}

// Unsubscribe is a decoded UNSUBSCRIBE packet. The core scheduler does not
// act on it (no-goal per spec.md §1); it is carried through so an external
// codec's full packet union type-checks against Packet.
type Unsubscribe struct {
	Filters  []string
	PacketID uint16
}

// Event is an inbound message from a connection's decoder, consumed by the
// Router's ingress channel, per spec.md §6.
type Event interface {
	isEvent()
}

// Connect registers a new connection. Handle is the value returned by
// NewRemoteConnection.
type Connect struct {
	Handle *ConnectionHandle
}

// Disconnect drops a connection and all of its pending state.
type Disconnect struct{}

// Ready flips a connection's ready flag back to true, re-arming scheduling.
type Ready struct{}

// DataEvent carries decoded packets (publishes and/or subscribes) from a
// client or replication peer.
type DataEvent struct {
	Packets []Packet
}

// TopicsRequestEvent is re-issued by a connection's consumer after draining
// a Topics notification.
type TopicsRequestEvent struct {
	Offset int
}

// DataRequestEvent is re-issued by a connection's consumer after draining a
// Data notification.
type DataRequestEvent struct {
	Topic   string
	Cursors [3]segmentlog.Cursor
}

func (Connect) isEvent()            {}
func (Disconnect) isEvent()         {}
func (Ready) isEvent()              {}
func (DataEvent) isEvent()          {}
func (TopicsRequestEvent) isEvent() {}
func (DataRequestEvent) isEvent()   {}

// Envelope pairs an inbound Event with the connection id it came from, the
// unit of work sent over the ingress channel.
type Envelope struct {
	ConnID ConnectionID
	Event  Event
}

// Ack reports the outcome of one publish.
type Ack struct {
	PacketID uint16
	Offset   int64
}

// Notification is an outbound message pushed into a connection's outbox,
// per spec.md §6.
type Notification interface {
	isNotification()
}

// ConnectionAckSuccess confirms a Connect, carrying the assigned
// ConnectionID.
type ConnectionAckSuccess struct {
	ID ConnectionID
}

// ConnectionAckFailure rejects a Connect (duplicate client id, admission
// bound reached).
type ConnectionAckFailure struct {
	Reason string
}

// AcksNotification batches the outcome of one or more publishes.
type AcksNotification struct {
	Acks []Ack
}

// DataNotification delivers a bulk read's payloads for one topic, along
// with the cursors reached.
type DataNotification struct {
	Topic   string
	Cursors [3]segmentlog.Cursor
	Payload [][]byte
}

// TopicsNotification delivers newly discovered topic names.
type TopicsNotification struct {
	Topics []string
}

// PauseNotification is informational: the connection's outbox is at
// capacity.
type PauseNotification struct{}

func (ConnectionAckSuccess) isNotification() {}
func (ConnectionAckFailure) isNotification() {}
func (AcksNotification) isNotification()     {}
func (DataNotification) isNotification()     {}
func (TopicsNotification) isNotification()   {}
func (PauseNotification) isNotification()    {}
