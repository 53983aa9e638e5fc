package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"mercator-hq/warden/pkg/broadcast"
	"mercator-hq/warden/pkg/config"
)

// Stream message types.
const (
	MessageConnectionEstablished = "connection:established"
	MessagePing                  = "ping"
	MessagePong                  = "pong"
	MessageSubscribe             = "subscribe"
	MessageSubscribed            = "subscribed"
	MessageResync                = "resync"
	MessageError                 = "error"
)

// Subscribable channels. An empty subscription receives everything.
var streamChannels = []string{string(broadcast.EventDecision), string(broadcast.EventAudit)}

// Subscriber hands out broadcaster subscriptions.
type Subscriber interface {
	Subscribe() *broadcast.Subscription
	Sequence() uint64
}

// clientMessage is a message received from a stream client.
type clientMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"`
}

// StreamHandler upgrades GET /ws to a WebSocket and forwards broadcaster
// events to the client as JSON text messages.
type StreamHandler struct {
	broadcaster Subscriber
	config      config.BroadcastConfig
	upgrader    websocket.Upgrader
	logger      *slog.Logger
}

// NewStreamHandler creates a stream handler. Zero timings fall back to the
// configuration defaults.
func NewStreamHandler(broadcaster Subscriber, cfg config.BroadcastConfig) *StreamHandler {
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = config.DefaultWriteWait
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = config.DefaultPongWait
	}
	if cfg.PingPeriod <= 0 || cfg.PingPeriod >= cfg.PongWait {
		cfg.PingPeriod = cfg.PongWait * 9 / 10
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = config.DefaultMaxMessageSize
	}

	h := &StreamHandler{
		broadcaster: broadcaster,
		config:      cfg,
		logger:      slog.Default().With("component", "api.stream"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *StreamHandler) checkOrigin(r *http.Request) bool {
	if len(h.config.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.config.AllowedOrigins, "*") || slices.Contains(h.config.AllowedOrigins, origin)
}

// ServeHTTP handles the upgrade and runs the connection until the client
// disconnects, the request context ends or the broadcaster closes.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error.
		h.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.broadcaster.Subscribe()
	defer sub.Close()

	logger := h.logger.With("subscriber_id", sub.ID(), "remote_addr", r.RemoteAddr)
	logger.Info("stream client connected")
	defer logger.Info("stream client disconnected")

	inbound := make(chan clientMessage, 8)
	go h.readLoop(ctx, cancel, conn, inbound, logger)

	events := make(chan broadcast.Event)
	go func() {
		defer cancel()
		for {
			event, err := sub.Next(ctx)
			if err != nil {
				return
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := h.write(conn, map[string]any{
		"type": MessageConnectionEstablished,
		"data": map[string]any{
			"subscriber_id": sub.ID(),
			"sequence":      h.broadcaster.Sequence(),
			"channels":      streamChannels,
			"server_time":   time.Now().UTC(),
		},
	}); err != nil {
		return
	}

	ticker := time.NewTicker(h.config.PingPeriod)
	defer ticker.Stop()

	var channels []string
	for {
		var err error
		select {
		case event := <-events:
			err = h.writeEvent(conn, event, channels)
		case msg := <-inbound:
			var reply any
			channels, reply = handleClientMessage(msg, channels)
			err = h.write(conn, reply)
		case <-ticker.C:
			err = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.config.WriteWait))
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(h.config.WriteWait))
			return
		}
		if err != nil {
			logger.Debug("stream write failed", "error", err)
			return
		}
	}
}

// readLoop reads client messages until the connection fails. Pongs extend
// the read deadline.
func (h *StreamHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, inbound chan<- clientMessage, logger *slog.Logger) {
	defer cancel()

	conn.SetReadLimit(h.config.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.config.PongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Debug("stream read failed", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			msg = clientMessage{Type: MessageError}
		}
		select {
		case inbound <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// handleClientMessage applies msg to the subscription filter and returns the
// reply to send.
func handleClientMessage(msg clientMessage, channels []string) ([]string, any) {
	switch msg.Type {
	case MessagePing:
		return channels, map[string]any{"type": MessagePong, "timestamp": time.Now().UTC()}
	case MessageSubscribe:
		var accepted []string
		for _, c := range msg.Channels {
			if slices.Contains(streamChannels, c) && !slices.Contains(accepted, c) {
				accepted = append(accepted, c)
			}
		}
		reply := map[string]any{"type": MessageSubscribed, "channels": accepted}
		if len(accepted) == 0 {
			reply["channels"] = streamChannels
		}
		return accepted, reply
	case MessageError:
		return channels, map[string]any{"type": MessageError, "message": "message is not valid JSON"}
	default:
		return channels, map[string]any{"type": MessageError, "message": "unknown message type: " + msg.Type}
	}
}

func (h *StreamHandler) writeEvent(conn *websocket.Conn, event broadcast.Event, channels []string) error {
	if event.Type == broadcast.EventResync {
		return h.write(conn, map[string]any{"type": MessageResync, "dropped": event.Dropped})
	}
	if len(channels) > 0 && !slices.Contains(channels, string(event.Type)) {
		return nil
	}
	return h.write(conn, event)
}

func (h *StreamHandler) write(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.config.WriteWait)); err != nil {
		return err
	}
	if err := conn.WriteJSON(v); err != nil {
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	}
	return nil
}
