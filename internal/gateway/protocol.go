package gateway

import "encoding/json"

// Frame types for the websocket event feed.
const (
	FrameTypeEvent = "event"
)

// EventHello is the first frame every feed subscriber receives.
const EventHello = "hello"

// Frame is the envelope for every websocket message.
type Frame struct {
	Type    string          `json:"type"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     int64           `json:"seq"`
}

// Hello describes the server to a new feed subscriber.
type Hello struct {
	Server ServerInfo `json:"server"`
	Events []string   `json:"events"`
}

// ServerInfo identifies the gateway server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Commit  string `json:"commit,omitempty"`
	ConnID  string `json:"connId"`
}

// NewEvent creates an event frame.
func NewEvent(event string, payload any, seq int64) (Frame, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{
		Type:    FrameTypeEvent,
		Event:   event,
		Payload: raw,
		Seq:     seq,
	}, nil
}
