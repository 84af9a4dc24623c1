package gateway

import "encoding/json"

// Frame is the universal WebSocket message format.
// Three types: "req" (client→server), "res" (server→client), "event" (server→client push).
type Frame struct {
	Type    string          `json:"type"`              // "req" | "res" | "event"
	ID      string          `json:"id,omitempty"`      // request/response correlation ID
	Method  string          `json:"method,omitempty"`  // for req: method name
	Params  json.RawMessage `json:"params,omitempty"`  // for req: method parameters
	OK      *bool           `json:"ok,omitempty"`      // for res: success flag
	Payload json.RawMessage `json:"payload,omitempty"` // for res: response data
	Error   *ErrorPayload   `json:"error,omitempty"`   // for res: error details
	Event   string          `json:"event,omitempty"`   // for event: event name
	Seq     int64           `json:"seq,omitempty"`     // for event: sequence number
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Connection roles
const (
	RoleTap = "tap" // operator watching outbound traffic
)

// Event names pushed over the tap.
const (
	EventHello    = "hello"
	EventDispatch = "dispatch"
)

// Helper to create response frames

func ResErr(id string, code, message string) Frame {
	ok := false
	return Frame{Type: "res", ID: id, OK: &ok, Error: &ErrorPayload{Code: code, Message: message}}
}

func EventFrame(event string, seq int64, payload any) Frame {
	data, _ := json.Marshal(payload)
	return Frame{Type: "event", Event: event, Seq: seq, Payload: data}
}
