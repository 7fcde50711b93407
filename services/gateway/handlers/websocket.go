package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/healthbridge-sa/nphies-gateway/services/gateway/datatypes"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/middleware"
	"github.com/healthbridge-sa/nphies-gateway/services/gateway/stream"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// monitoringInterval is how often /ws/monitoring pushes a stats frame.
const monitoringInterval = 3 * time.Second

// closeWithCode sends a close frame with the given application code and
// tears the connection down without reading further frames.
func closeWithCode(ws *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
	_ = ws.Close()
}

// admitWebSocket upgrades the connection and runs the admission check.
// On failure the socket is closed with 4401 (unauthenticated) or 4429
// (rate limited) and nil is returned.
func (h *Handlers) admitWebSocket(c *gin.Context) (*websocket.Conn, string) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Log.Error("websocket upgrade failed", "error", err)
		return nil, ""
	}

	id, err := h.Guard.Authorize(c)
	if err != nil {
		if errors.Is(err, middleware.ErrRateLimited) {
			closeWithCode(ws, middleware.CloseRateLimited, "rate limit exceeded")
		} else {
			closeWithCode(ws, middleware.CloseUnauthenticated, "unauthorized")
		}
		return nil, ""
	}
	return ws, id.Subject
}

// HandleChatWebSocket implements GET /ws/chat. Each inbound JSON frame
// with a message field runs one stream session and answers with a single
// ai_response text frame; incremental delivery is the SSE endpoint's
// job. A failed generation answers with a single error frame instead and
// keeps the connection open.
func (h *Handlers) HandleChatWebSocket(c *gin.Context) {
	ws, subject := h.admitWebSocket(c)
	if ws == nil {
		return
	}

	h.Hub.Register(ws, subject)
	if h.Metrics != nil {
		h.Metrics.ActiveConnections.Inc()
	}
	defer func() {
		h.Hub.Unregister(ws)
		if h.Metrics != nil {
			h.Metrics.ActiveConnections.Dec()
		}
		_ = ws.Close()
	}()

	for {
		var req datatypes.ChatRequest
		if err := ws.ReadJSON(&req); err != nil {
			h.Log.Debug("websocket chat closed", "subject", subject, "error", err)
			return
		}
		if err := req.Validate(); err != nil {
			if h.Hub.Send(ws, gin.H{"type": "error", "error": err.Error()}) != nil {
				return
			}
			continue
		}
		req.EnsureDefaults()

		start := time.Now()
		session := h.newSession(req.SessionID, req.Language, req.Message, req.Context)

		// The session state machine still drives generation; the socket
		// only sees its outcome, collapsed into one frame.
		var final *stream.Event
		var failure string
		for ev := range session.Run(c.Request.Context()) {
			h.countEvent(ev)
			switch ev.Type {
			case stream.EventFinalResponse:
				final = &ev
			case stream.EventError:
				failure = ev.Error
			}
		}

		var frame any
		outcome := "success"
		switch {
		case failure != "":
			frame = gin.H{"type": "error", "error": failure}
			outcome = "error"
		case final != nil:
			frame = gin.H{
				"type":       "ai_response",
				"message":    final.Text,
				"confidence": final.Confidence,
				"timestamp":  time.Now().UTC().Format(time.RFC3339),
				"context":    final.Context,
				"user":       subject,
			}
		default:
			// Cancelled mid-session; the peer is gone.
			h.observeSession("websocket", "cancelled", start)
			return
		}

		if h.Hub.Send(ws, frame) != nil {
			h.observeSession("websocket", "cancelled", start)
			return
		}
		h.observeSession("websocket", outcome, start)
	}
}

// HandleMonitoringWebSocket implements GET /ws/monitoring: a periodic
// push of process stats until the client goes away.
func (h *Handlers) HandleMonitoringWebSocket(c *gin.Context) {
	ws, subject := h.admitWebSocket(c)
	if ws == nil {
		return
	}

	h.Hub.Register(ws, subject)
	if h.Metrics != nil {
		h.Metrics.ActiveConnections.Inc()
	}
	defer func() {
		h.Hub.Unregister(ws)
		if h.Metrics != nil {
			h.Metrics.ActiveConnections.Dec()
		}
		_ = ws.Close()
	}()

	// Reader goroutine: monitoring clients never send data frames, but
	// reading is the only way gorilla surfaces the peer's close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(monitoringInterval)
	defer ticker.Stop()

	for {
		if h.Hub.Send(ws, h.monitoringFrame(subject)) != nil {
			return
		}
		select {
		case <-ticker.C:
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		}
	}
}

// monitoringFrame snapshots process stats for one monitoring push.
func (h *Handlers) monitoringFrame(subject string) gin.H {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return gin.H{
		"type": "monitoring",
		"data": gin.H{
			"goroutines":       runtime.NumGoroutine(),
			"heap_alloc_bytes": mem.HeapAlloc,
			"connections":      h.Hub.Len(),
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
		},
		"user": subject,
	}
}
