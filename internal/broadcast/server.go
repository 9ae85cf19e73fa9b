// Package broadcast serves a read-only operator dashboard: a websocket hub
// that fans out MsgPack-encoded FeatureRecords to any number of connected
// clients. It consumes the fanout Hub's best-effort subscription, so a
// slow or disconnected dashboard client never affects the feature
// pipeline's latency.
package broadcast

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"featureengine/internal/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server receives FeatureRecords and fans them out to websocket clients.
type Server struct {
	input <-chan types.FeatureRecord
	hub   *hub
}

// NewServer builds a dashboard server reading from input (expected to be a
// fanout.Hub best-effort subscription).
func NewServer(input <-chan types.FeatureRecord) *Server {
	return &Server{input: input, hub: newHub()}
}

// Start launches the fan-out loop and HTTP server. It blocks; callers
// should run it in its own goroutine.
func (s *Server) Start(addr string) error {
	go s.hub.run(s.input)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(s.hub, w, r)
	})

	log.Printf("dashboard listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

type hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
}

func newHub() *hub {
	return &hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
	}
}

func (h *hub) run(input <-chan types.FeatureRecord) {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			log.Printf("dashboard client connected (%d total)", len(h.clients))
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				log.Printf("dashboard client disconnected (%d total)", len(h.clients))
			}
		case rec, ok := <-input:
			if !ok {
				return
			}
			msg := rec.AppendMsgPack(make([]byte, 0, 256))
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// slow client: drop this tick rather than block the hub.
				}
			}
		}
	}
}

type client struct {
	hub  *hub
	conn *websocket.Conn
	send chan []byte
}

func serveWs(h *hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	c := &client{hub: h, conn: conn, send: make(chan []byte, 256)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for {
		message, ok := <-c.send
		if !ok {
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
		w, err := c.conn.NextWriter(websocket.BinaryMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
}
