package frame

import (
	"strings"
	"testing"
)

func TestMarshalKeepsIdentity(t *testing.T) {
	f := New("cam-1")
	f.Seq = 7
	f.Timestamp = 1234
	f.Payload = map[string]any{"label": "car", "score": 0.5}

	data, err := Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID != f.ID || got.StreamID != "cam-1" || got.Seq != 7 || got.Timestamp != 1234 {
		t.Errorf("identity lost: %v", got)
	}
	payload, ok := got.Payload.(map[string]any)
	if !ok || payload["label"] != "car" || payload["score"] != 0.5 {
		t.Errorf("payload = %#v", got.Payload)
	}
	if got.StreamIndex() != InvalidStreamIndex {
		t.Errorf("decoded frame must not carry a stream index, got %d", got.StreamIndex())
	}
}

func TestMarshalEOSDropsPayload(t *testing.T) {
	f := NewEOS("s0")
	f.Payload = "ignored"
	data, err := Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "ignored") {
		t.Errorf("EOS record carries payload: %s", data)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.IsEOS() || got.Payload != nil {
		t.Errorf("unexpected EOS frame %v payload=%v", got, got.Payload)
	}
}

func TestMarshalInvalidFlag(t *testing.T) {
	f := New("s0")
	f.MarkInvalid()
	data, err := Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.IsInvalid() {
		t.Error("invalid flag lost")
	}
}

func TestMarshalUnencodablePayload(t *testing.T) {
	f := New("s0")
	f.Payload = make(chan int)
	if _, err := Marshal(f); err == nil {
		t.Fatal("expected an error for a channel payload")
	}
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{"},
		{"missing stream", `{"id":"x","seq":1}`},
		{"bad payload", `{"stream_id":"s","payload":tru}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Unmarshal([]byte(tc.data)); err == nil {
				t.Fatalf("expected an error for %s", tc.data)
			}
		})
	}
}

func TestUnmarshalFreshID(t *testing.T) {
	got, err := Unmarshal([]byte(`{"id":"not-a-uuid","stream_id":"s"}`))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID.String() == "not-a-uuid" || got.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Errorf("expected a generated id, got %s", got.ID)
	}
}
