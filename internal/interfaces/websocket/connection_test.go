package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ngoclaw/alger/internal/domain/dag"
	"github.com/ngoclaw/alger/internal/infrastructure/persistence"
	"github.com/ngoclaw/alger/internal/infrastructure/protocol"
)

const testSubProtocol = "alger"

// newTestServer builds a Server over a fresh MemoryGateway and wraps it in
// an httptest.Server, for driving the real handshake + connection loop
// end to end (spec §8's scenarios are exercised against this harness
// rather than mocked pieces).
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	registry := dag.NewBuiltinRegistry()
	deps := &Deps{
		Gateway:  persistence.NewMemoryGateway(),
		Engine:   dag.NewEngine(registry),
		Registry: registry,
		State:    &ServerState{MaxConcurrentExecutions: 1},
		Logger:   zap.NewNop(),
		Username: "admin",
		Password: "admin",
	}
	srv := NewServer(deps, testSubProtocol)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func dialTestServer(t *testing.T, ts *httptest.Server) *gorillaws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?username=admin&password=admin"
	dialer := gorillaws.Dialer{Subprotocols: []string{testSubProtocol}}
	conn, _, err := dialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendFrame(t *testing.T, conn *gorillaws.Conn, id, requestID, typeCode int, content map[string]any) {
	t.Helper()
	raw, err := protocol.Serialize(&protocol.Frame{ID: id, RequestID: requestID, Type: typeCode, Content: content})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, raw))
}

func readFrame(t *testing.T, conn *gorillaws.Conn) *protocol.Frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	frame, err := protocol.Parse(raw)
	require.NoError(t, err)
	return frame
}

// TestLoginAssignsResponseIDTwo drives spec §8 scenario 1: a login frame
// at id:1 must come back as id:2, since the dispatcher's single counter
// advances once to match the inbound frame and once more to assign the
// response — not twice independently from two separate counters.
func TestLoginAssignsResponseIDTwo(t *testing.T) {
	ts := newTestServer(t)
	conn := dialTestServer(t, ts)

	sendFrame(t, conn, 1, 1, protocol.TypeLogin, map[string]any{
		"username": "admin",
		"password": "admin",
	})

	resp := readFrame(t, conn)
	require.Equal(t, protocol.StatusLoginOK, resp.Type)
	require.Equal(t, 2, resp.ID)
	require.Equal(t, 1, resp.RequestID)
}

// TestOutOfOrderAfterLoginExpectsThree drives spec §8 scenario 3: after
// the login exchange leaves the shared counter at 2, the next inbound
// frame is expected at id:3; sending any other id reports expectedId:3.
func TestOutOfOrderAfterLoginExpectsThree(t *testing.T) {
	ts := newTestServer(t)
	conn := dialTestServer(t, ts)

	sendFrame(t, conn, 1, 1, protocol.TypeLogin, map[string]any{
		"username": "admin",
		"password": "admin",
	})
	loginResp := readFrame(t, conn)
	require.Equal(t, 2, loginResp.ID)

	sendFrame(t, conn, 5, 2, protocol.TypeListPipelines, map[string]any{})

	errResp := readFrame(t, conn)
	require.Equal(t, protocol.StatusMessageIDError, errResp.Type)

	raw, err := json.Marshal(errResp.Content)
	require.NoError(t, err)
	var content struct {
		ExpectedID int `json:"expectedId"`
		ReceivedID int `json:"receivedId"`
	}
	require.NoError(t, json.Unmarshal(raw, &content))
	require.Equal(t, 3, content.ExpectedID)
	require.Equal(t, 5, content.ReceivedID)
}
