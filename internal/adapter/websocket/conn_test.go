package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConnPair(t *testing.T) (*Conn, *websocket.Conn) {
	t.Helper()

	serverConns := make(chan *Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- NewConn(ws)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case c := <-serverConns:
		return c, client
	case <-time.After(2 * time.Second):
		t.Fatal("server side of connection never arrived")
		return nil, nil
	}
}

func TestConn_WriteMessageIsText(t *testing.T) {
	conn, client := newConnPair(t)

	require.NoError(t, conn.WriteMessage([]byte(`{"lat":1}`)))

	msgType, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)
	assert.JSONEq(t, `{"lat":1}`, string(data))
}

func TestConn_CloseSendsCode(t *testing.T) {
	conn, client := newConnPair(t)

	require.NoError(t, conn.Close(websocket.ClosePolicyViolation, "authentication required"))

	_, _, err := client.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, "authentication required", closeErr.Text)
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	conn, _ := newConnPair(t)

	first := conn.Close(websocket.CloseNormalClosure, "")
	second := conn.Close(websocket.CloseGoingAway, "again")

	assert.Equal(t, first, second)
	assert.Error(t, conn.WriteMessage([]byte("x")))
}

func TestConn_ReadMessage(t *testing.T) {
	conn, client := newConnPair(t)
	conn.EnableKeepalive(time.Second)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"cmd":"abort"}`)))

	data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"cmd":"abort"}`, string(data))
}

func TestConn_IDsAreUnique(t *testing.T) {
	a, _ := newConnPair(t)
	b, _ := newConnPair(t)

	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}
