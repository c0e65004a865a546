package websocket

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ngoclaw/alger/internal/domain/entity"
	"github.com/ngoclaw/alger/internal/infrastructure/protocol"
	"github.com/ngoclaw/alger/pkg/safego"
)

// connState is the per-frame lifecycle from spec §4.6: a connection's read
// loop walks idle -> parsed -> routed -> responded once per inbound frame.
// Error paths (parse failure, id mismatch, failed send) stop at the state
// they had reached.
type connState int

const (
	stateIdle connState = iota
	stateParsed
	stateRouted
	stateResponded
)

// Connection owns one live websocket. The monotonic id sequence spec §4.6
// requires lives entirely in its Dispatcher — a single counter shared by
// inbound matching and outbound assignment, not a counter of its own. It
// is not safe for concurrent Run calls — each connection gets exactly one
// read loop goroutine.
type Connection struct {
	conn       *websocket.Conn
	dispatcher *Dispatcher
	deps       *Deps
	router     *Router
	rc         *RequestContext
	logger     *zap.Logger

	state connState
}

// NewConnection wraps an upgraded websocket for one authenticated session.
func NewConnection(conn *websocket.Conn, deps *Deps, router *Router, rc *RequestContext) *Connection {
	c := &Connection{
		conn:   conn,
		deps:   deps,
		router: router,
		rc:     rc,
		logger: deps.Logger,
		state:  stateIdle,
	}
	c.dispatcher = NewDispatcher(conn, deps.Logger, c.logOutbound)
	return c
}

// Run opens the connection/conversation rows and blocks reading frames
// until the socket closes or a fatal read error occurs.
func (c *Connection) Run(ctx context.Context) {
	now := time.Now().UTC()

	connRow, err := c.deps.Gateway.OpenConnection(ctx, entity.Connection{
		ID:          uuid.NewString(),
		UserID:      c.rc.UserID,
		ClientIP:    c.rc.ClientIP,
		Status:      entity.ConnectionOpen,
		ConnectedAt: now,
	})
	if err != nil {
		c.logger.Error("failed to open connection row", zap.Error(err))
		return
	}
	c.rc.ConnectionID = connRow.ID

	conv, err := c.deps.Gateway.OpenConversation(ctx, entity.Conversation{
		ID:           uuid.NewString(),
		UserID:       c.rc.UserID,
		ConnectionID: connRow.ID,
		StartedAt:    now,
	})
	if err != nil {
		c.logger.Error("failed to open conversation row", zap.Error(err))
		return
	}
	c.rc.ConversationID = conv.ID

	defer func() {
		_ = c.deps.Gateway.CloseConversation(ctx, conv.ID)
		_ = c.deps.Gateway.CloseConnection(ctx, connRow.ID)
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		c.handleRaw(ctx, raw)
	}
}

// handleRaw drives one frame through idle -> parsed -> routed -> responded.
func (c *Connection) handleRaw(ctx context.Context, raw []byte) {
	c.state = stateIdle

	frame, err := protocol.Parse(raw)
	if err != nil {
		// A malformed frame still consumes one id slot so the sequence
		// the client observes in the error response stays predictable
		// (spec §4.6: "then advances the sequence by one").
		c.dispatcher.Skip()
		protoErr, _ := err.(*protocol.Error)
		code := protocol.StatusUnknownType
		if protoErr != nil {
			code = protoErr.Code
		}
		_ = c.dispatcher.Send(0, code, map[string]any{"error": err.Error()})
		c.logErrorRow(ctx, 0, code, err.Error())
		return
	}
	c.state = stateParsed

	expected, ok := c.dispatcher.MatchInbound(frame.ID)
	if !ok {
		_ = c.dispatcher.Send(frame.RequestID, protocol.StatusMessageIDError, map[string]any{
			"expectedId": expected,
			"receivedId": frame.ID,
			"error":      "out-of-order message id",
		})
		c.dispatcher.AdvanceTo(expected)
		c.logErrorRow(ctx, frame.Type, protocol.StatusMessageIDError, "out-of-order message id")
		return
	}

	c.logInbound(frame)

	c.state = stateRouted
	statusCode, content, task := c.router.Route(ctx, c.deps, c.rc, c.dispatcher, frame)

	if err := c.dispatcher.Send(frame.ID, statusCode, content); err != nil {
		c.logger.Error("failed to send response frame", zap.Error(err))
		return
	}
	c.state = stateResponded

	if task != nil {
		safego.Go(c.logger, "execution-"+c.rc.ConversationID, task)
	}
}

func (c *Connection) logInbound(frame *protocol.Frame) {
	_ = c.deps.Gateway.LogMessage(context.Background(), entity.ConversationMessage{
		ConversationID: c.rc.ConversationID,
		Direction:      entity.DirectionIncoming,
		MessageID:      frame.ID,
		RequestID:      frame.RequestID,
		TypeCode:       frame.Type,
		RecordedAt:     time.Now().UTC(),
	})
}

// logOutbound is the Dispatcher's onLog hook: every frame it sends, in send
// order, is appended to the conversation log regardless of which goroutine
// produced it (spec §9).
func (c *Connection) logOutbound(frame *protocol.Frame) {
	errMsg := ""
	if e, ok := frame.Content["error"].(string); ok {
		errMsg = e
	}
	_ = c.deps.Gateway.LogMessage(context.Background(), entity.ConversationMessage{
		ConversationID: c.rc.ConversationID,
		Direction:      entity.DirectionOutgoing,
		MessageID:      frame.ID,
		RequestID:      frame.RequestID,
		TypeCode:       frame.Type,
		StatusCode:     frame.Type,
		Payload:        frame.Content,
		Error:          errMsg,
		RecordedAt:     time.Now().UTC(),
	})
}

func (c *Connection) logErrorRow(ctx context.Context, typeCode, statusCode int, message string) {
	_ = c.deps.Gateway.LogError(ctx, entity.ErrorLog{
		ConversationID: c.rc.ConversationID,
		TypeCode:       typeCode,
		Severity:       "error",
		Message:        message,
		CreatedAt:      time.Now().UTC(),
	})
}
