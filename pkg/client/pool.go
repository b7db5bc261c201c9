package client

import (
	"sync"
	"time"

	"github.com/WhileEndless/webcc/pkg/socket"
)

// poolKey identifies a host pool by (scheme, host, port), per §3.
type poolKey struct {
	scheme string
	host   string
	port   int
}

type idleConn struct {
	sock     *socket.Socket
	lastUsed time.Time
}

// pool is a keep-alive connection pool mirroring the teacher's hostPool:
// idle connections stored per key, LIFO reuse, mutex-guarded (§4.5,
// §5: "connection pool... hold a single mutex").
type pool struct {
	mu   sync.Mutex
	idle map[poolKey][]*idleConn
}

func newPool() *pool {
	return &pool{idle: make(map[poolKey][]*idleConn)}
}

// get pops the most recently released idle connection for key, if any
// (LIFO reuse, §3).
func (p *pool) get(key poolKey) *socket.Socket {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.idle[key]
	if len(list) == 0 {
		return nil
	}
	last := list[len(list)-1]
	p.idle[key] = list[:len(list)-1]
	return last.sock
}

// put returns a connection to the pool for future reuse.
func (p *pool) put(key poolKey, s *socket.Socket) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle[key] = append(p.idle[key], &idleConn{sock: s, lastUsed: time.Now()})
}

// closeAll closes every pooled connection, used when the Session is
// dropped (§5: "drop triggers shutdown+close").
func (p *pool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, list := range p.idle {
		for _, c := range list {
			c.sock.Close()
		}
		delete(p.idle, key)
	}
}
