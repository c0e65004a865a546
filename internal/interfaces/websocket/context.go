package websocket

// RequestContext carries everything a handler needs about the connection
// that issued the request (spec §4.6). One RequestContext is built per
// connection. The dispatcher is passed to handlers as a separate
// parameter, not through this struct; a background execution task keeps
// the same dispatcher handle regardless of which goroutine ends up
// posting a frame (spec §9).
type RequestContext struct {
	UserID         string
	Username       string
	ConnectionID   string
	ConversationID string
	ClientIP       string
}
