package relay

import (
	"net/http"
	"time"

	"scriptrelay/pkg/logger"
	"scriptrelay/pkg/protocol"

	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Gateway bridges physical WebSocket connections to the registry. Each
// connection gets a read loop and a write pump; a failure in either only
// terminates that one connection's lifecycle.
type Gateway struct {
	registry *Registry
	log      *logger.Logger
}

// NewGateway creates a gateway over the given registry
func NewGateway(registry *Registry, log *logger.Logger) *Gateway {
	return &Gateway{
		registry: registry,
		log:      log,
	}
}

// HandleConnection upgrades the request and runs the connection lifecycle.
// The client is registered after the handshake and unregistered only after
// both loops have stopped, so nothing enqueues past removal without being
// silently dropped.
func (g *Gateway) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.ErrorWithErr("websocket upgrade failed", err)
		return
	}

	sender := NewSender()
	id := g.registry.Register(sender)

	quit := make(chan struct{})
	writerDone := make(chan struct{})
	go g.writePump(conn, id, sender, quit, writerDone)

	g.readLoop(conn, id)

	close(quit)
	<-writerDone
	g.registry.Unregister(id)
	conn.Close()
}

// writePump drains the sender onto the wire as text frames. It exits when
// the sender is closed (eviction), a write fails, or quit is closed; the
// first two also close the transport so the read loop unwinds.
func (g *Gateway) writePump(conn *websocket.Conn, id uint64, sender *Sender, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	for {
		select {
		case payload, ok := <-sender.Recv():
			if !ok {
				conn.Close()
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				g.log.DebugWith("write failed, closing connection", "clientID", id, "error", err)
				conn.Close()
				return
			}
		case <-quit:
			return
		}
	}
}

// readLoop consumes inbound frames until the transport reports a terminal
// error or clean close. A pong frame refreshes the client's heartbeat
// timestamp silently; every other frame is accepted and merely observed.
func (g *Gateway) readLoop(conn *websocket.Conn, id uint64) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				g.log.DebugWith("websocket read ended", "clientID", id, "error", err)
			}
			return
		}

		if msgType != websocket.TextMessage {
			g.log.DebugWith("binary frame from client", "clientID", id)
			continue
		}

		env := protocol.ParseEnvelope(data)
		if env.Type == protocol.MsgTypePong {
			g.registry.Touch(id)
			continue
		}

		g.log.DebugWith("message from client", "clientID", id, "type", string(env.Type))
	}
}
