package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The server renders local files for a local UI; origin checking
		// is left to a fronting proxy in other deployments.
		return true
	},
}

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// ProgressEvent is streamed to the client while a render runs.
type ProgressEvent struct {
	Status string          `json:"status"` // loading, rendering, done, error
	Path   string          `json:"path,omitempty"`
	Error  string          `json:"error,omitempty"`
	Result *RenderResponse `json:"result,omitempty"`
}

// renderWebSocketHandler streams render progress over a websocket. Each
// text message is one RenderRequest; responses for it are delivered in
// order, ending with a done or error event.
func (s *Server) renderWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	websocketConnections.Inc()
	defer websocketConnections.Dec()
	s.logger.Info("websocket connected", "remote_addr", r.RemoteAddr)

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		if messageType != websocket.TextMessage {
			continue
		}
		websocketMessagesTotal.WithLabelValues("received").Inc()
		s.handleRenderMessage(r.Context(), conn, data)
	}
}

func (s *Server) handleRenderMessage(ctx context.Context, conn *websocket.Conn, data []byte) {
	var req RenderRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendEvent(conn, ProgressEvent{Status: "error", Error: "invalid request: " + err.Error()})
		return
	}
	if req.Path == "" {
		s.sendEvent(conn, ProgressEvent{Status: "error", Error: "path is required"})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeoutSec)*time.Second)
	defer cancel()

	s.sendEvent(conn, ProgressEvent{Status: "loading", Path: req.Path})
	s.sendEvent(conn, ProgressEvent{Status: "rendering", Path: req.Path})

	start := time.Now()
	resp, _, err := s.renderScan(ctx, &req)
	if err != nil {
		renderRequestsTotal.WithLabelValues("websocket", "error").Inc()
		s.sendEvent(conn, ProgressEvent{Status: "error", Path: req.Path, Error: err.Error()})
		return
	}
	resp.DurationMS = time.Since(start).Milliseconds()

	renderRequestsTotal.WithLabelValues("websocket", "ok").Inc()
	renderDurationSeconds.WithLabelValues("websocket").Observe(time.Since(start).Seconds())
	s.sendEvent(conn, ProgressEvent{Status: "done", Path: req.Path, Result: resp})
}

func (s *Server) sendEvent(conn *websocket.Conn, ev ProgressEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}
