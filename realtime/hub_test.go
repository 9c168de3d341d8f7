package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newHubServer(t *testing.T, hub *Hub, code string) (*httptest.Server, chan *Client) {
	t.Helper()
	clients := make(chan *Client, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		clients <- hub.Subscribe(code, conn)
	}))
	t.Cleanup(srv.Close)
	return srv, clients
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func TestPublishReachesAllSubscribersInOrder(t *testing.T) {
	hub := NewHub(logrus.New())
	srv, _ := newHubServer(t, hub, "AB12C3")

	first := dial(t, srv)
	second := dial(t, srv)

	// wait for both registrations
	require.Eventually(t, func() bool { return hub.GroupSize("AB12C3") == 2 },
		2*time.Second, 10*time.Millisecond)

	hub.Publish("AB12C3", map[string]interface{}{"seq": 1})
	hub.Publish("AB12C3", map[string]interface{}{"seq": 2})

	for _, conn := range []*websocket.Conn{first, second} {
		one := readEvent(t, conn)
		two := readEvent(t, conn)
		assert.Equal(t, EventTabUpdated, one.Type)
		assert.EqualValues(t, 1, one.Data.(map[string]interface{})["seq"])
		assert.EqualValues(t, 2, two.Data.(map[string]interface{})["seq"])
	}
}

func TestUnsubscribedConnectionReceivesNothing(t *testing.T) {
	hub := NewHub(logrus.New())
	srv, clients := newHubServer(t, hub, "AB12C3")

	gone := dial(t, srv)
	goneClient := <-clients
	stay := dial(t, srv)
	<-clients

	hub.Unsubscribe(goneClient)
	require.Eventually(t, func() bool { return hub.GroupSize("AB12C3") == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Publish("AB12C3", map[string]interface{}{"seq": 1})

	msg := readEvent(t, stay)
	assert.Equal(t, EventTabUpdated, msg.Type)

	// the unsubscribed connection was closed by the hub; a read fails instead
	// of delivering the event
	gone.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	_, _, err := gone.ReadMessage()
	assert.Error(t, err)
}

func TestEmptyGroupIsDiscarded(t *testing.T) {
	hub := NewHub(logrus.New())
	srv, clients := newHubServer(t, hub, "ZZ99ZZ")

	dial(t, srv)
	client := <-clients
	require.Equal(t, 1, hub.GroupSize("ZZ99ZZ"))

	hub.Unsubscribe(client)
	assert.Zero(t, hub.GroupSize("ZZ99ZZ"))

	// publishing to a code nobody watches is a no-op
	hub.Publish("ZZ99ZZ", map[string]interface{}{"seq": 1})
}

func TestPerClientSendIsolated(t *testing.T) {
	hub := NewHub(logrus.New())
	srv, clients := newHubServer(t, hub, "AB12C3")

	conn := dial(t, srv)
	client := <-clients

	client.Send(Message{Type: EventError, Data: map[string]interface{}{"message": "bad payload"}})
	msg := readEvent(t, conn)
	assert.Equal(t, EventError, msg.Type)
}
