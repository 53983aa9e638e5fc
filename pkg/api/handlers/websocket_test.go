package handlers_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mercator-hq/warden/pkg/api/handlers"
	"mercator-hq/warden/pkg/audit"
	"mercator-hq/warden/pkg/broadcast"
	"mercator-hq/warden/pkg/config"
	"mercator-hq/warden/pkg/moderation"
)

type streamMessage struct {
	Type       string         `json:"type"`
	Sequence   uint64         `json:"sequence"`
	DecisionID string         `json:"decision_id"`
	Dropped    int            `json:"dropped"`
	Channels   []string       `json:"channels"`
	Data       map[string]any `json:"data"`
}

func dialStream(t *testing.T, bc handlers.Subscriber, cfg config.BroadcastConfig) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(handlers.NewStreamHandler(bc, cfg))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) streamMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg streamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func waitForSubscribers(t *testing.T, bc *broadcast.Broadcaster, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return bc.SubscriberCount() == n }, 2*time.Second, 5*time.Millisecond)
}

func TestStream_ForwardsEvents(t *testing.T) {
	bc := broadcast.New(16)
	defer bc.Close()
	conn := dialStream(t, bc, config.BroadcastConfig{})

	hello := readMessage(t, conn)
	assert.Equal(t, handlers.MessageConnectionEstablished, hello.Type)
	assert.NotEmpty(t, hello.Data["subscriber_id"])
	waitForSubscribers(t, bc, 1)

	bc.PublishDecision(&moderation.Decision{ID: "dec-1", Action: moderation.ActionWarn})
	bc.PublishAudit(&audit.Entry{ID: "audit-1", DecisionID: "dec-1", ActionType: audit.ActionDecisionCreated})

	first := readMessage(t, conn)
	assert.Equal(t, "decision", first.Type)
	assert.Equal(t, "dec-1", first.DecisionID)

	second := readMessage(t, conn)
	assert.Equal(t, "audit", second.Type)
	assert.Greater(t, second.Sequence, first.Sequence)
}

func TestStream_PingAndSubscribe(t *testing.T) {
	bc := broadcast.New(16)
	defer bc.Close()
	conn := dialStream(t, bc, config.BroadcastConfig{})
	readMessage(t, conn)
	waitForSubscribers(t, bc, 1)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, handlers.MessagePong, readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "subscribe", "channels": []string{"audit", "bogus"}}))
	ack := readMessage(t, conn)
	assert.Equal(t, handlers.MessageSubscribed, ack.Type)
	assert.Equal(t, []string{"audit"}, ack.Channels)

	// Decision events are filtered out after subscribing to audit only.
	bc.PublishDecision(&moderation.Decision{ID: "dec-1"})
	bc.PublishAudit(&audit.Entry{ID: "audit-1", DecisionID: "dec-1"})
	assert.Equal(t, "audit", readMessage(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "dance"}))
	assert.Equal(t, handlers.MessageError, readMessage(t, conn).Type)
}

func TestStream_ResyncAfterOverflow(t *testing.T) {
	bc := broadcast.New(2)
	defer bc.Close()

	// Hold the subscription directly so the overflow is deterministic.
	sub := bc.Subscribe()
	defer sub.Close()
	for i := range 5 {
		bc.PublishDecision(&moderation.Decision{ID: "dec-" + string(rune('a'+i))})
	}
	assert.Equal(t, 2, sub.Pending())

	conn := dialStream(t, &fixedSubscriber{sub: sub, bc: bc}, config.BroadcastConfig{})
	readMessage(t, conn)

	resync := readMessage(t, conn)
	assert.Equal(t, handlers.MessageResync, resync.Type)
	assert.Equal(t, 3, resync.Dropped)

	assert.Equal(t, "dec-d", readMessage(t, conn).DecisionID)
	assert.Equal(t, "dec-e", readMessage(t, conn).DecisionID)
}

func TestStream_RejectsDisallowedOrigin(t *testing.T) {
	bc := broadcast.New(4)
	defer bc.Close()
	srv := httptest.NewServer(handlers.NewStreamHandler(bc, config.BroadcastConfig{
		AllowedOrigins: []string{"https://console.example.com"},
	}))
	defer srv.Close()

	header := map[string][]string{"Origin": {"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}

// fixedSubscriber hands out a pre-filled subscription.
type fixedSubscriber struct {
	sub *broadcast.Subscription
	bc  *broadcast.Broadcaster
}

func (f *fixedSubscriber) Subscribe() *broadcast.Subscription { return f.sub }
func (f *fixedSubscriber) Sequence() uint64                   { return f.bc.Sequence() }
