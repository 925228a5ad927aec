// internal/fabric/conn.go
package fabric

import (
	"context"
	"log"

	"github.com/google/uuid"
)

// Conn is a single participant's live presence in the fabric. Outbound
// messages are queued on OutChan and drained by the transport's write pump.
type Conn struct {
	UserID  uuid.UUID
	Cancel  context.CancelFunc
	OutChan chan map[string]interface{}
}

// NewConn builds a connection with a buffered outbound queue.
func NewConn(userID uuid.UUID, cancel context.CancelFunc) *Conn {
	return &Conn{
		UserID:  userID,
		Cancel:  cancel,
		OutChan: make(chan map[string]interface{}, 16),
	}
}

// Write pushes a message onto the connection's OutChan non-blockingly.
// A slow or closed consumer drops the message; real-time delivery to a
// disconnected member carries no guarantee.
func (c *Conn) Write(msg map[string]interface{}) {
	select {
	case c.OutChan <- msg:
	default:
		msgType, _ := msg["type"].(string)
		log.Printf("fabric: OutChan for user %s closed or full, dropped message type %q", c.UserID, msgType)
	}
}

// WriteError is a convenience to send an error frame to this connection only.
func (c *Conn) WriteError(msg string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}
