// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mindwars/realtime/internal/auth"
	"github.com/mindwars/realtime/internal/coordinator"
	"github.com/mindwars/realtime/internal/fabric"
)

// SessionWSHandler upgrades the single realtime endpoint. Every inbound
// operation arrives as a JSON packet {type, req_id?, data} and is answered
// with an ack frame carrying the same req_id; room events arrive on the same
// socket interleaved with acks.
func SessionWSHandler(logger *logrus.Logger, signer *auth.Signer, co *coordinator.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"mindwars"},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != "mindwars" {
			c.Close(BadSubprotocolError, "client must speak the mindwars subprotocol")
			return
		}

		userID, err := authenticate(r, signer)
		if err != nil {
			logger.Warnf("websocket auth failed: %v", err)
			c.Close(InvalidAuthTokenError, "authentication failed")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		conn := fabric.NewConn(userID, cancel)
		co.Connected(conn)

		logger.Infof("User %v (%s) connected", userID, r.RemoteAddr)

		go writePump(ctx, c, conn, logger)
		readPump(ctx, c, conn, co, logger)

		co.Disconnected(context.Background(), conn)
		cancel()
	}
}

// authenticate extracts the session token from the Authorization header or
// the token query parameter.
func authenticate(r *http.Request, signer *auth.Signer) (uuid.UUID, error) {
	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); token == "" && strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	return signer.Verify(token)
}

// packet is the inbound frame shape. req_id is echoed on the ack so clients
// can correlate; it is optional.
type packet struct {
	Type  string          `json:"type"`
	ReqID string          `json:"req_id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func readPump(ctx context.Context, c *websocket.Conn, conn *fabric.Conn, co *coordinator.Coordinator, logger *logrus.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for user %v", conn.UserID)
			} else if !strings.Contains(err.Error(), "context canceled") {
				logger.Warnf("Read error for user %v: %v (CloseStatus: %d)", conn.UserID, err, closeStatus)
			}
			return
		}
		if typ != websocket.MessageText {
			logger.Warnf("Received non-text message type %d from user %v. Ignoring.", typ, conn.UserID)
			continue
		}

		var p packet
		if err := json.Unmarshal(msg, &p); err != nil {
			logger.Warnf("Invalid json from user %v: %v", conn.UserID, err)
			conn.WriteError("Invalid JSON format")
			continue
		}

		dispatch(ctx, conn, co, p, logger)
	}
}

func writePump(ctx context.Context, c *websocket.Conn, conn *fabric.Conn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	defer func() {
		_ = c.Close(websocket.StatusGoingAway, "write pump stopping")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-conn.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Failed to marshal outgoing msg for user %v: %v", conn.UserID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("Failed to write to websocket for user %v: %v", conn.UserID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Failed to send ping to user %v: %v. Assuming disconnect.", conn.UserID, err)
				return
			}
		}
	}
}
