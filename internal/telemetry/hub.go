package telemetry

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/relabs-tech/attitude_controller/internal/control"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// clientQueue is the per-connection backlog before frames are skipped.
const clientQueue = 16

// WSMessage is what browsers send over the socket.
type WSMessage struct {
	Action   string `json:"action"` // command, latest
	Fragment string `json:"fragment,omitempty"`
}

// WSResponse is an acknowledgement or error for a WSMessage.
type WSResponse struct {
	Type    string `json:"type"` // ack, error
	Message string `json:"message,omitempty"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans the latest cycle out to websocket clients and serves it over
// a JSON endpoint. Command fragments received from clients are handed to
// the OnCommand callback.
type Hub struct {
	OnCommand func(fragment string) error

	mu      sync.RWMutex
	latest  []byte
	clients map[*wsClient]struct{}
}

func NewHub(onCommand func(string) error) *Hub {
	return &Hub{OnCommand: onCommand, clients: make(map[*wsClient]struct{})}
}

// Observe implements control.Observer for in-process loops.
func (h *Hub) Observe(c control.Cycle) {
	payload, err := json.Marshal(c)
	if err != nil {
		log.Printf("hub: json marshal error: %v", err)
		return
	}
	h.Update(payload)
}

// Update stores payload as the latest snapshot and queues it for every
// connected client. Slow clients miss frames.
func (h *Hub) Update(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = payload
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// Latest returns the last snapshot, or nil.
func (h *Hub) Latest() []byte {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

// Clients returns the number of connected websocket clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandleLatest serves the last snapshot as JSON.
func (h *Hub) HandleLatest(w http.ResponseWriter, r *http.Request) {
	latest := h.Latest()
	if latest == nil {
		http.Error(w, "no data yet", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write(latest); err != nil {
		log.Printf("hub: write error: %v", err)
	}
}

// HandleWS upgrades the request and streams snapshots until the client
// goes away.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("hub: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &wsClient{conn: conn, send: make(chan []byte, clientQueue)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		close(c.send)
		h.mu.Unlock()
		<-writerDone
	}()

	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("hub: websocket error: %v", err)
			}
			return
		}

		switch msg.Action {
		case "command":
			h.reply(c, h.command(msg.Fragment))
		case "latest":
			if latest := h.Latest(); latest != nil {
				h.queue(c, latest)
			}
		default:
			h.reply(c, WSResponse{Type: "error", Message: "unknown action: " + msg.Action})
		}
	}
}

func (h *Hub) command(fragment string) WSResponse {
	if h.OnCommand == nil {
		return WSResponse{Type: "error", Message: "commands disabled"}
	}
	if err := h.OnCommand(fragment); err != nil {
		return WSResponse{Type: "error", Message: err.Error()}
	}
	return WSResponse{Type: "ack", Message: fragment}
}

func (h *Hub) reply(c *wsClient, resp WSResponse) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return
	}
	h.queue(c, payload)
}

// queue sends on c without racing the close in HandleWS.
func (h *Hub) queue(c *wsClient, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
