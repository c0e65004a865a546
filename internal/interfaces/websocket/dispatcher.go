package websocket

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ngoclaw/alger/internal/infrastructure/protocol"
)

// Dispatcher is the per-connection serialising sender from spec §4.6 and
// §5. It owns the single `last_message_id` counter the connection's wire
// protocol is built on: inbound frames are matched against it and outbound
// frames are assigned the next value from it, so a login at id:1 advances
// the same counter its id:2 response is drawn from (server.py lines
// 154/202/236/245/262). Every outbound frame — including asynchronously
// emitted status updates from a background execution — takes
// message_id = lastMessageID+1 under mu, then sends, then advances
// lastMessageID. This is what keeps the on-wire id sequence gapless and
// monotonic regardless of which goroutine calls Send or MatchInbound.
type Dispatcher struct {
	mu            sync.Mutex
	conn          *websocket.Conn
	lastMessageID int
	logger        *zap.Logger
	onLog         func(frame *protocol.Frame)
}

// NewDispatcher wraps a live connection. onLog, if non-nil, is invoked
// with every frame sent, under the lock, in send order — used to persist
// the conversation message log in the order frames actually go out.
func NewDispatcher(conn *websocket.Conn, logger *zap.Logger, onLog func(frame *protocol.Frame)) *Dispatcher {
	return &Dispatcher{conn: conn, logger: logger, onLog: onLog}
}

// Send assigns the next message id to content and writes it to the wire.
func (d *Dispatcher) Send(requestID, typeCode int, content map[string]any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lastMessageID++
	frame := &protocol.Frame{
		ID:        d.lastMessageID,
		RequestID: requestID,
		Type:      typeCode,
		Content:   content,
	}

	raw, err := protocol.Serialize(frame)
	if err != nil {
		return err
	}
	if err := d.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		return err
	}
	if d.onLog != nil {
		d.onLog(frame)
	}
	return nil
}

// LastMessageID returns the current counter value under the lock. The
// value can change as soon as the lock is released.
func (d *Dispatcher) LastMessageID() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastMessageID
}

// MatchInbound compares a received frame id against the next expected id
// (lastMessageID+1). On a match it advances lastMessageID to frameID — the
// same counter Send draws from — so the very next Send call assigns
// frameID+1. It always returns the expected id, matched or not, so the
// caller can report it in a 395 error frame.
func (d *Dispatcher) MatchInbound(frameID int) (expected int, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	expected = d.lastMessageID + 1
	if frameID != expected {
		return expected, false
	}
	d.lastMessageID = frameID
	return expected, true
}

// AdvanceTo forcibly sets lastMessageID, used by the inbound id-mismatch
// path (spec §4.6: "then sets last_message_id = expected_id").
func (d *Dispatcher) AdvanceTo(id int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastMessageID = id
}

// Skip advances lastMessageID by one with no frame attached to it — used
// when an inbound frame fails to parse, so it still consumes an id slot
// even though it never carried one (spec §4.6: "then advances the
// sequence by one").
func (d *Dispatcher) Skip() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastMessageID++
}
