package websocket

import (
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ngoclaw/alger/internal/domain/entity"
)

const (
	readLimitBytes  = 1 << 20
	pongWait        = 60 * time.Second
	writeWait       = 10 * time.Second

	// closeAuthFailed and closeSubprotocolFailed are non-standard close
	// codes (private-use range 4000-4999) for the two handshake failures
	// spec §4.6 distinguishes: bad credentials vs. an unrecognised
	// sub-protocol offer.
	closeAuthFailed        = 4401
	closeSubprotocolFailed = 4406
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server is the http.Handler entry point for the gateway's single websocket
// endpoint. One Server instance is shared by every connection; Deps is
// immutable after construction.
type Server struct {
	deps         *Deps
	router       *Router
	subProtocol  string
}

// NewServer builds a Server bound to deps and the given negotiated
// sub-protocol name (spec §4.6's handshake requirement).
func NewServer(deps *Deps, subProtocol string) *Server {
	return &Server{
		deps:        deps,
		router:      NewRouter(),
		subProtocol: subProtocol,
	}
}

// ServeHTTP upgrades the request, validates the handshake, and blocks for
// the lifetime of the connection.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	password := r.URL.Query().Get("password")
	if username != s.deps.Username || password != s.deps.Password {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.closeWith(conn, closeAuthFailed, "invalid credentials")
		return
	}

	responseHeader := http.Header{}
	offered := r.Header.Get("Sec-WebSocket-Protocol")
	if offered != s.subProtocol {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.closeWith(conn, closeSubprotocolFailed, "unsupported sub-protocol")
		return
	}
	responseHeader.Set("Sec-WebSocket-Protocol", s.subProtocol)

	conn, err := upgrader.Upgrade(w, r, responseHeader)
	if err != nil {
		s.deps.Logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	conn.SetReadLimit(readLimitBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	clientIP := clientIPFrom(r)
	rc := &RequestContext{
		UserID:   username,
		Username: username,
		ClientIP: clientIP,
	}

	// The account is normally already seeded by persistence.SeedDefaults on
	// startup (spec §4.4); these defaults only matter if EnsureUser is
	// hitting a gateway that was never seeded.
	user, err := s.deps.Gateway.EnsureUser(r.Context(), username, entity.User{Roles: []string{"admin", "operator"}})
	if err == nil {
		rc.UserID = user.ID
	}

	// Ping at 9/10 of pongWait so each pong pushes the read deadline out
	// before it expires; stops when the connection loop returns.
	stopPing := make(chan struct{})
	defer close(stopPing)
	go func() {
		ticker := time.NewTicker(pongWait * 9 / 10)
		defer ticker.Stop()
		for {
			select {
			case <-stopPing:
				return
			case <-ticker.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			}
		}
	}()

	connection := NewConnection(conn, s.deps, s.router, rc)
	connection.Run(r.Context())
}

func (s *Server) closeWith(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

func clientIPFrom(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
