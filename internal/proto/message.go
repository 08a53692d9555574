package proto

const (
	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventReload = "reload"
	EventHello  = "hello"
)

// Outbound is the envelope for messages sent to live-reload clients.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// HelloData is sent once after the connection is accepted.
type HelloData struct {
	ClientID string `json:"client_id"`
}

// ReloadData tells the browser what changed.
type ReloadData struct {
	Path string `json:"path"`
	TS   int64  `json:"ts"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
