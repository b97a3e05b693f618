package mesh

import (
	"fmt"
	"sort"
	"sync"
)

// registry maps peer ids to connection records. It is the only shared
// mutable state of a Manager; every access goes through its mutex.
type registry struct {
	mu    sync.RWMutex
	peers map[string]*Connection
}

func newRegistry() *registry {
	return &registry{peers: make(map[string]*Connection)}
}

// put stores c, replacing any record with the same id. The replaced record,
// if any, is returned; it stays orphaned and can no longer remove c.
func (r *registry) put(c *Connection) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	prior := r.peers[c.id]
	r.peers[c.id] = c
	return prior
}

func (r *registry) get(id string) (*Connection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.peers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// remove deletes the mapping for c.ID() only while it still points at c.
func (r *registry) remove(c *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.peers[c.id] != c {
		return false
	}
	delete(r.peers, c.id)
	return true
}

// listOpen returns a snapshot of the records in StateOpen, sorted by id.
func (r *registry) listOpen() []*Connection {
	var open []*Connection
	for _, c := range r.all() {
		if c.State() == StateOpen {
			open = append(open, c)
		}
	}
	return open
}

// all returns a snapshot of every record, sorted by id.
func (r *registry) all() []*Connection {
	r.mu.RLock()
	conns := make([]*Connection, 0, len(r.peers))
	for _, c := range r.peers {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	sort.Slice(conns, func(i, j int) bool { return conns[i].id < conns[j].id })
	return conns
}

func (r *registry) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
