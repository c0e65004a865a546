package websocket

import (
	"context"

	"github.com/ngoclaw/alger/internal/infrastructure/protocol"
)

// HandlerFunc processes one parsed frame's content and returns the
// response (type_code, content) plus an optional background task to run
// after the response is sent (spec §7: "Each handler returns a
// (type_code, content, optional_background_task) triple").
type HandlerFunc func(ctx context.Context, deps *Deps, rc *RequestContext, dispatcher *Dispatcher, frame *protocol.Frame) (int, map[string]any, func())

// Router dispatches request type codes to handlers (spec §4.6).
type Router struct {
	handlers map[int]HandlerFunc
}

// NewRouter builds the router with every required-type handler wired in.
func NewRouter() *Router {
	r := &Router{handlers: map[int]HandlerFunc{}}
	r.handlers[protocol.TypeLogin] = handleLogin
	r.handlers[protocol.TypeGetUserData] = handleGetUserData
	r.handlers[protocol.TypeListPipelines] = handleListPipelines
	r.handlers[protocol.TypeExecuteFromDB] = handleExecuteFromDB
	r.handlers[protocol.TypeExecuteFromPayload] = handleExecuteFromPayload
	r.handlers[protocol.TypeStopExecution] = handleStopExecution
	r.handlers[protocol.TypeRequestOutput] = handleRequestOutput
	return r
}

// Route dispatches frame to its handler. Unknown type codes yield
// 396/UnknownType with no background task (spec §4.6).
func (r *Router) Route(ctx context.Context, deps *Deps, rc *RequestContext, dispatcher *Dispatcher, frame *protocol.Frame) (int, map[string]any, func()) {
	handler, ok := r.handlers[frame.Type]
	if !ok {
		return protocol.StatusUnknownType, map[string]any{
			"requestId": frame.ID,
			"error":     "unknown type",
		}, nil
	}
	return handler(ctx, deps, rc, dispatcher, frame)
}
