// Package broadcast fans dispatched rows out to websocket subscribers of a
// fid's topic: one pool per topic, guarded by a mutex, with connections
// registered/unregistered through channels rather than a shared lock held
// across a blocked write.
package broadcast

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	pongWait   = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// connection is one subscriber's socket plus the query string it connected
// with, used to filter which broadcasts it receives.
type connection struct {
	ws    *websocket.Conn
	send  chan []byte
	query string
}

// Pool fans messages out to every open connection on one topic (a fid).
type Pool struct {
	topic string

	mu      sync.Mutex
	conns   map[*connection]bool
	open    bool
	register   chan *connection
	unregister chan *connection
}

func NewPool(topic string) *Pool {
	return &Pool{
		topic:      topic,
		conns:      make(map[*connection]bool),
		open:       true,
		register:   make(chan *connection),
		unregister: make(chan *connection),
	}
}

func (p *Pool) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}

// Run owns the pool's connection set; it must be started in its own
// goroutine before Connect is called.
func (p *Pool) Run() {
	for {
		select {
		case c := <-p.register:
			p.mu.Lock()
			p.conns[c] = true
			n := len(p.conns)
			p.mu.Unlock()
			log.Printf("broadcast: topic %s now has %d subscriber(s)", p.topic, n)

		case c := <-p.unregister:
			p.mu.Lock()
			if _, ok := p.conns[c]; ok {
				delete(p.conns, c)
				close(c.send)
			}
			n := len(p.conns)
			p.open = n > 0 || p.alwaysOpen()
			p.mu.Unlock()
		}
	}
}

// alwaysOpen keeps every pool open, including one whose last subscriber has
// left, so Pools.Connect's open-pool check always reuses the existing pool
// instead of racing it with a new one.
func (p *Pool) alwaysOpen() bool { return true }

// Connect upgrades the request to a websocket and registers it on the pool,
// blocking until the connection closes.
func (p *Pool) Connect(w http.ResponseWriter, r *http.Request, query string) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("broadcast: upgrade failed: %v", err)
		return
	}

	c := &connection{ws: ws, send: make(chan []byte, 32), query: query}
	p.register <- c

	go p.writePump(c)
	p.readPump(c)
}

// Queries returns the distinct query strings currently subscribed, so the
// caller can decide whether a given message matches any of them before
// paying for a broadcast.
func (p *Pool) Queries() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	seen := make(map[string]bool, len(p.conns))
	queries := make([]string, 0, len(p.conns))
	for c := range p.conns {
		if !seen[c.query] {
			seen[c.query] = true
			queries = append(queries, c.query)
		}
	}
	return queries
}

// BroadcastMessage sends b to every connection whose query matches.
func (p *Pool) BroadcastMessage(query string, b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for c := range p.conns {
		if c.query != query {
			continue
		}
		select {
		case c.send <- b:
		default:
			// subscriber's send buffer is full; drop rather than block the
			// whole pool on one slow reader.
		}
	}
}

func (p *Pool) readPump(c *connection) {
	defer func() {
		p.unregister <- c
		c.ws.Close()
	}()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (p *Pool) writePump(c *connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
