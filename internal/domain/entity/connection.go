package entity

import "time"

// ConnectionStatus is the lifecycle state of a live websocket connection.
type ConnectionStatus string

const (
	ConnectionOpen   ConnectionStatus = "open"
	ConnectionClosed ConnectionStatus = "closed"
)

// Connection is a durable row for one websocket session.
type Connection struct {
	ID            string
	UserID        string
	ClientIP      string
	ClientPort    int
	UserAgent     string
	Origin        string
	Path          string
	Status        ConnectionStatus
	ConnectedAt   time.Time
	DisconnectedAt *time.Time
}

// Conversation is the append-only log owner for exactly one connection.
type Conversation struct {
	ID           string
	UserID       string
	ConnectionID string
	StartedAt    time.Time
	EndedAt      *time.Time
}

// MessageDirection distinguishes inbound frames from outbound ones in the
// conversation message log.
type MessageDirection string

const (
	DirectionIncoming MessageDirection = "incoming"
	DirectionOutgoing MessageDirection = "outgoing"
)

// ConversationMessage is one append-only row in the per-connection frame
// log (spec §3, invariant 8: per-direction message_id increases without
// gaps, enforced by the dispatcher, not by this type).
type ConversationMessage struct {
	ConversationID string
	Direction      MessageDirection
	MessageID      int
	RequestID      int
	TypeCode       int
	StatusCode     int
	Payload        map[string]any
	Error          string
	RecordedAt     time.Time
}
