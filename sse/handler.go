package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/streamkit/logger"
)

// Event names written by this package.
const (
	EventConnected = "connected"
	EventPipeline  = "pipeline"
	EventStream    = "stream"
)

// KeepAliveInterval is how often an idle connection gets a comment line.
var KeepAliveInterval = 30 * time.Second

// ConnectedEvent is the first event a client receives.
type ConnectedEvent struct {
	ClientID string `json:"client_id"`
	Filter   string `json:"filter,omitempty"`
}

// ServeSSE streams hub messages to one client until the request ends or
// the hub stops.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID, filter string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// The connection outlives the server's write timeout.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		logger.Debug("sse write deadline not cleared", logger.Fields("client_id", clientID, logger.FieldError, err.Error()))
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := NewClient(clientID, filter)
	if !hub.Register(client) {
		http.Error(w, "event stream closed", http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	data, _ := json.Marshal(ConnectedEvent{ClientID: clientID, Filter: filter})
	writeEvent(w, EventConnected, data)
	flusher.Flush()

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-client.Events():
			if !ok {
				return
			}
			writeEvent(w, msg.Event, msg.Data)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, data []byte) {
	if event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", event)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}
