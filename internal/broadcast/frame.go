package broadcast

import (
	"encoding/json"
	"fmt"
)

const (
	EventConnected = "connected"
	EventPing      = "ping"
	EventResults   = "poll_results"
	EventDeleted   = "poll_deleted"
)

// Frame is one message delivered to a subscriber. Data is pre-encoded JSON, shared by
// every subscriber that receives the frame.
type Frame struct {
	Event  string
	PollID string
	Data   []byte
}

var (
	connectedFrame = Frame{Event: EventConnected}
	pingFrame      = Frame{Event: EventPing}
)

// KeepAlive reports whether the frame carries no poll data.
func (f Frame) KeepAlive() bool {
	return f.Event == EventConnected || f.Event == EventPing
}

// SSE encodes the frame as a server-sent event.
func (f Frame) SSE() []byte {
	if f.KeepAlive() {
		return []byte("data: " + f.Event + "\n\n")
	}
	return fmt.Appendf(nil, "event: %s\ndata: %s\n\n", f.Event, f.Data)
}

// JSON encodes the frame as {"event": ..., "data": ...} for message-oriented transports.
func (f Frame) JSON() ([]byte, error) {
	msg := struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data,omitempty"`
	}{Event: f.Event, Data: f.Data}
	return json.Marshal(msg)
}
