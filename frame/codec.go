package frame

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is the JSON form of a frame exchanged with brokers. The payload
// must be JSON-encodable; the collection is not carried.
type Record struct {
	ID        string          `json:"id"`
	StreamID  string          `json:"stream_id"`
	Seq       uint64          `json:"seq"`
	Timestamp int64           `json:"timestamp"`
	EOS       bool            `json:"eos,omitempty"`
	Invalid   bool            `json:"invalid,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Marshal encodes f as a Record.
func Marshal(f *Frame) ([]byte, error) {
	rec := Record{
		ID:        f.ID.String(),
		StreamID:  f.StreamID,
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
		EOS:       f.IsEOS(),
		Invalid:   f.IsInvalid(),
	}
	if f.Payload != nil && !f.IsEOS() {
		raw, err := json.Marshal(f.Payload)
		if err != nil {
			return nil, fmt.Errorf("frame %s: encode payload: %w", f.ID, err)
		}
		rec.Payload = raw
	}
	return json.Marshal(rec)
}

// Unmarshal decodes a Record into a new frame. A missing or malformed id
// gets a fresh one; the stream id is mandatory.
func Unmarshal(data []byte) (*Frame, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode frame record: %w", err)
	}
	if rec.StreamID == "" {
		return nil, fmt.Errorf("decode frame record: missing stream_id")
	}

	var f *Frame
	if rec.EOS {
		f = NewEOS(rec.StreamID)
	} else {
		f = New(rec.StreamID)
	}
	if id, err := uuid.Parse(rec.ID); err == nil {
		f.ID = id
	}
	f.Seq = rec.Seq
	f.Timestamp = rec.Timestamp
	f.Created = time.Now()
	if rec.Invalid {
		f.MarkInvalid()
	}
	if len(rec.Payload) > 0 {
		var payload any
		if err := json.Unmarshal(rec.Payload, &payload); err != nil {
			return nil, fmt.Errorf("decode frame payload: %w", err)
		}
		f.Payload = payload
	}
	return f, nil
}
