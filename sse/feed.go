package sse

import (
	"encoding/json"
	"time"

	"github.com/kbukum/streamkit/eventbus"
)

// EventRecord is the JSON body of a pipeline event.
type EventRecord struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Module   string    `json:"module,omitempty"`
	StreamID string    `json:"stream_id,omitempty"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// EventWatcher returns a bus watcher publishing every event to hub. It
// never intercepts, so watchers added before it still run.
func EventWatcher(hub *Hub) eventbus.Watcher {
	return func(e eventbus.Event) eventbus.HandleFlag {
		data, err := json.Marshal(EventRecord{
			ID:       e.ID.String(),
			Type:     e.Type.String(),
			Module:   e.Module,
			StreamID: e.StreamID,
			Message:  e.Message,
			Time:     e.Time,
		})
		if err == nil {
			hub.Publish(Message{Event: EventPipeline, StreamID: e.StreamID, Data: data})
		}
		return eventbus.HandleNull
	}
}

// PublishJSON encodes v and publishes it under event for streamID.
func PublishJSON(hub *Hub, event, streamID string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return hub.Publish(Message{Event: event, StreamID: streamID, Data: data})
}
