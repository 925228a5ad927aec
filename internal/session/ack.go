// internal/session/ack.go
package session

// Ack is the synchronous acknowledgment returned to the originating
// connection for every inbound operation. It is independent of the room
// broadcast describing the same state change: a broadcast failure after a
// committed mutation surfaces as Warning on a successful ack, never as an
// error.
type Ack struct {
	Success bool                   `json:"success"`
	Data    map[string]interface{} `json:"data,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Warning string                 `json:"warning,omitempty"`
}

// OK builds a successful ack with an optional data payload.
func OK(data map[string]interface{}) Ack {
	return Ack{Success: true, Data: data}
}

// Fail builds a failed ack from an error.
func Fail(err error) Ack {
	return Ack{Success: false, Error: err.Error()}
}
