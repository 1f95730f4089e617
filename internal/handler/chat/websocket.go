package chat

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/mindful-chat/backend/internal/middleware"
	chatservice "github.com/zhouzirui/mindful-chat/backend/internal/service/chat"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

type inboundMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// wsConn serialises writes; gorilla allows a single concurrent writer.
type wsConn struct {
	*websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// handleWebSocket runs one turn per inbound {"type":"message"} frame.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	raw, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	conn := &wsConn{Conn: raw}
	defer conn.Close()

	log := h.log.With("owner", principal.Owner)
	log.Info("websocket connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	go h.pingLoop(ctx, conn)

	h.send(conn, "connected", map[string]any{"owner": principal.Owner})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Warn("websocket read error", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch strings.ToLower(msg.Type) {
		case "message":
			h.handleTurn(ctx, conn, principal.Owner, msg.Message)
		case "ping":
			h.send(conn, "pong", nil)
		default:
			h.sendError(conn, "unsupported message type")
		}
	}
}

func (h *Handler) handleTurn(ctx context.Context, conn *wsConn, owner, message string) {
	res, err := h.svc.SendMessage(ctx, owner, message)
	if err != nil {
		if errors.Is(err, chatservice.ErrEmptyMessage) {
			h.sendError(conn, "Message cannot be empty")
			return
		}
		h.log.Error("failed to process websocket message", "owner", owner, "error", err)
		h.sendError(conn, "Failed to process message")
		return
	}
	h.send(conn, "turn", newTurnResponse(res))
}

func (h *Handler) send(conn *wsConn, msgType string, data interface{}) {
	msg := outgoingMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.writeJSON(msg); err != nil {
		h.log.Warn("websocket write failed", "type", msgType, "error", err)
	}
}

func (h *Handler) sendError(conn *wsConn, message string) {
	h.send(conn, "error", map[string]string{"message": message})
}

func (h *Handler) pingLoop(ctx context.Context, conn *wsConn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}
