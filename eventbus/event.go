package eventbus

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType classifies an Event.
type EventType int

const (
	// Invalid is the zero value and never posted.
	Invalid EventType = iota
	// Info is a notification with no action expected.
	Info
	// Warning reports a recoverable anomaly.
	Warning
	// Error reports a failure confined to one frame or stream.
	Error
	// Stop asks the owner of the pipeline to stop it.
	Stop
	// EOS reports that a stage forwarded an end-of-stream frame.
	EOS
	// StreamError reports a failure that invalidates a whole stream.
	StreamError
)

var eventTypeNames = map[EventType]string{
	Invalid:     "invalid",
	Info:        "info",
	Warning:     "warning",
	Error:       "error",
	Stop:        "stop",
	EOS:         "eos",
	StreamError: "stream_error",
}

func (t EventType) String() string {
	if name, ok := eventTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("event_type(%d)", int(t))
}

// Event is an out-of-band notification posted by stages and the pipeline.
type Event struct {
	ID       uuid.UUID
	Type     EventType
	Message  string
	Module   string
	StreamID string
	Time     time.Time
}

// NewEvent builds an event stamped with a fresh id and the current time.
func NewEvent(t EventType, module, message string) Event {
	return Event{
		ID:      uuid.New(),
		Type:    t,
		Message: message,
		Module:  module,
		Time:    time.Now(),
	}
}

// ForStream returns a copy of e attributed to streamID.
func (e Event) ForStream(streamID string) Event {
	e.StreamID = streamID
	return e
}

// HandleFlag is a watcher's verdict on an event.
type HandleFlag int

const (
	// HandleNull means the watcher ignored the event.
	HandleNull HandleFlag = iota
	// HandleIntercept consumes the event; older watchers do not see it.
	HandleIntercept
	// HandleSynced means the event was handled and may be seen by others.
	HandleSynced
	// HandleStop handles the event and requests a pipeline stop.
	HandleStop
)

// Watcher observes events on the consumer goroutine. Watchers must not
// block for long and must not stop the bus they are attached to.
type Watcher func(Event) HandleFlag
