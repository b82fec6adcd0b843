package dump

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// DebugServer is the live-streaming variant of dump(stream): every
// snapshot handed to Broadcast is fanned out over every attached debugger
// UI's websocket connection, the same broadcast-to-clients-under-one-lock
// shape as the teacher's internal/network.WebSocketBroadcast, adapted from
// a server-registry keyed by server ID to a single long-lived server
// (there is only ever one analyzer run worth watching at a time).
type DebugServer struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
}

// NewDebugServer builds a server with no clients yet.
func NewDebugServer() *DebugServer {
	return &DebugServer{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]bool),
	}
}

// Handler upgrades an HTTP request to a websocket connection and registers
// it as a broadcast target; wire it under e.g. "/debug/stream".
func (d *DebugServer) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	d.mu.Lock()
	d.clients[conn] = true
	d.mu.Unlock()

	go d.drainClient(conn)
}

// drainClient reads (and discards) client frames only so the underlying
// TCP connection's read deadline keeps advancing; this server is
// broadcast-only, it never expects client messages.
func (d *DebugServer) drainClient(conn *websocket.Conn) {
	defer d.remove(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (d *DebugServer) remove(conn *websocket.Conn) {
	d.mu.Lock()
	delete(d.clients, conn)
	d.mu.Unlock()
	conn.Close()
}

// Broadcast sends one labeled snapshot to every attached client, dropping
// (and unregistering) any connection that errors, mirroring
// WebSocketBroadcast's "best effort, drop dead clients" policy.
func (d *DebugServer) Broadcast(label string, v Dumpable) {
	msg := []byte(fmt.Sprintf("%s\n%s", label, v.Dump()))

	d.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(d.clients))
	for c := range d.clients {
		conns = append(conns, c)
	}
	d.mu.RUnlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
			d.remove(c)
		}
	}
}

// ClientCount reports how many debugger UIs are currently attached.
func (d *DebugServer) ClientCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}
