package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"quarterload/util"
)

// socketWriteTimeout is the time allowed to write a message to the peer
const socketWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// SocketClient is a middleman between the websocket connection and the hub
type SocketClient struct {
	hub  *SocketHub
	conn *websocket.Conn
	send chan []byte
}

// writePump pumps messages from the hub to the websocket connection
func (c *SocketClient) writePump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	for msg := range c.send {
		if err := c.conn.SetWriteDeadline(time.Now().Add(socketWriteTimeout)); err != nil {
			return
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// socketHandler attaches websocket handler to uri
func socketHandler(hub *SocketHub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.ERROR.Printf("websocket upgrade failed: %v", err)
			return
		}

		client := &SocketClient{hub: hub, conn: conn, send: make(chan []byte, 256)}
		hub.register <- client

		go client.writePump()
	}
}

// SocketHub maintains the set of active clients and broadcasts parameter
// updates to them
type SocketHub struct {
	clients    map[*SocketClient]bool
	register   chan *SocketClient
	unregister chan *SocketClient
}

// NewSocketHub creates a socket hub
func NewSocketHub() *SocketHub {
	return &SocketHub{
		clients:    make(map[*SocketClient]bool),
		register:   make(chan *SocketClient),
		unregister: make(chan *SocketClient),
	}
}

// welcome replays the cached parameters to a newly connected client
func (h *SocketHub) welcome(client *SocketClient, params []util.Param) {
	for _, p := range params {
		msg, err := json.Marshal(p)
		if err != nil {
			log.ERROR.Printf("encoding %s failed: %v", p.Key, err)
			continue
		}

		select {
		case client.send <- msg:
		default:
			return
		}
	}
}

func (h *SocketHub) broadcast(p util.Param) {
	if len(h.clients) == 0 {
		return
	}

	msg, err := json.Marshal(p)
	if err != nil {
		log.ERROR.Printf("encoding %s failed: %v", p.Key, err)
		return
	}

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			// drop slow clients
			close(client.send)
			delete(h.clients, client)
		}
	}
}

// Run starts the hub, distributing parameters to connected clients
func (h *SocketHub) Run(in <-chan util.Param, cache *util.Cache) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.welcome(client, cache.All())
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				close(client.send)
				delete(h.clients, client)
			}
		case p, ok := <-in:
			if !ok {
				return
			}
			h.broadcast(p)
		}
	}
}
