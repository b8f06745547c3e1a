package broadcast

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/comunifi/shuttle/pkg/shuttle"
)

// Message is what a subscriber receives for one applied row: enough to
// decide whether to refetch, without shipping the full row body over the
// socket.
type Message struct {
	Fid       uint64           `json:"fid"`
	Type      shuttle.MessageType `json:"type"`
	Operation shuttle.Operation   `json:"operation"`
	Hash      string           `json:"hash"`
	WasMissed bool             `json:"was_missed"`
}

// Pools owns one Pool per fid topic, created lazily on first subscriber.
type Pools struct {
	mu    sync.Mutex
	pools map[string]*Pool
}

func NewPools() *Pools {
	return &Pools{pools: make(map[string]*Pool)}
}

// Connect attaches a client to the topic for fid, starting the pool's run
// loop the first time anyone subscribes to it.
func (p *Pools) Connect(w http.ResponseWriter, r *http.Request, fid uint64, query string) {
	topic := topicFor(fid)

	p.mu.Lock()
	pool, ok := p.pools[topic]
	if !ok || !pool.IsOpen() {
		pool = NewPool(topic)
		p.pools[topic] = pool
		go pool.Run()
	}
	p.mu.Unlock()

	pool.Connect(w, r, query)
}

// Broadcast fans a dispatched row out to every subscriber of its fid. It is
// called from the dispatcher's OnCommitted callback after a transaction
// commits, not from a Handler inside it — a slow or disconnected websocket
// write must never hold up the store transaction.
func (p *Pools) Broadcast(row *shuttle.Row, op shuttle.Operation, wasMissed bool) {
	msg := Message{
		Fid:       row.Fid,
		Type:      row.Type,
		Operation: op,
		Hash:      fmt.Sprintf("%x", row.Hash),
		WasMissed: wasMissed,
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return
	}

	topic := topicFor(row.Fid)

	p.mu.Lock()
	pool, ok := p.pools[topic]
	p.mu.Unlock()
	if !ok || !pool.IsOpen() {
		return
	}

	for _, query := range pool.Queries() {
		pool.BroadcastMessage(query, b)
	}
}

func topicFor(fid uint64) string {
	return fmt.Sprintf("fid:%d", fid)
}
