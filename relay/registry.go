package relay

import (
	"sort"
	"sync"
	"time"

	"scriptrelay/pkg/logger"

	"github.com/jonboulle/clockwork"
)

// SenderRef is one entry of a registry snapshot
type SenderRef struct {
	ID     uint64
	Sender *Sender
}

// Registry is the concurrency-safe store of connected clients. Membership,
// the outbound sender, and the last-pong timestamp are always added and
// removed together under one mutex.
type Registry struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	log      *logger.Logger
	nextID   uint64
	senders  map[uint64]*Sender
	lastPong map[uint64]time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(clock clockwork.Clock, log *logger.Logger) *Registry {
	return &Registry{
		clock:    clock,
		log:      log,
		senders:  make(map[uint64]*Sender),
		lastPong: make(map[uint64]time.Time),
	}
}

// Register allocates the next client identifier and inserts membership,
// sender, and a fresh heartbeat timestamp as one unit. Never fails.
// Identifiers are never reused within a process lifetime.
func (r *Registry) Register(sender *Sender) uint64 {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.senders[id] = sender
	r.lastPong[id] = r.clock.Now()
	count := len(r.senders)
	r.mu.Unlock()

	metricConnectedClients.Set(float64(count))
	r.log.InfoWith("client connected", "clientID", id, "total", count)
	return id
}

// Unregister removes a client if present and closes its sender. Idempotent:
// unregistering an absent identifier is a silent no-op.
func (r *Registry) Unregister(id uint64) {
	r.mu.Lock()
	sender, ok := r.senders[id]
	if ok {
		delete(r.senders, id)
		delete(r.lastPong, id)
	}
	count := len(r.senders)
	r.mu.Unlock()

	if !ok {
		return
	}

	sender.Close()
	metricConnectedClients.Set(float64(count))
	r.log.InfoWith("client disconnected", "clientID", id, "total", count)
}

// Count returns the current connected-set size
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.senders)
}

// Touch refreshes the heartbeat timestamp for a client. No-op when the
// identifier is absent, e.g. when a pong races with an eviction.
func (r *Registry) Touch(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lastPong[id]; ok {
		r.lastPong[id] = r.clock.Now()
	}
}

// SnapshotSenders returns a point-in-time enumeration of (id, sender)
// pairs in ascending identifier order. Registrations and removals after the
// snapshot are not visible to the caller.
func (r *Registry) SnapshotSenders() []SenderRef {
	r.mu.Lock()
	refs := make([]SenderRef, 0, len(r.senders))
	for id, sender := range r.senders {
		refs = append(refs, SenderRef{ID: id, Sender: sender})
	}
	r.mu.Unlock()

	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

// Expired returns the identifiers whose last heartbeat response is strictly
// older than the timeout. A client exactly at the threshold is not expired.
func (r *Registry) Expired(timeout time.Duration) []uint64 {
	r.mu.Lock()
	now := r.clock.Now()
	var ids []uint64
	for id, ts := range r.lastPong {
		if now.Sub(ts) > timeout {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Evict removes a batch of clients in one pass and returns the identifiers
// that were actually present. Senders of removed clients are closed, which
// makes their write pumps shut the transport down.
func (r *Registry) Evict(ids []uint64) []uint64 {
	r.mu.Lock()
	removed := make([]uint64, 0, len(ids))
	closers := make([]*Sender, 0, len(ids))
	for _, id := range ids {
		sender, ok := r.senders[id]
		if !ok {
			continue
		}
		delete(r.senders, id)
		delete(r.lastPong, id)
		removed = append(removed, id)
		closers = append(closers, sender)
	}
	count := len(r.senders)
	r.mu.Unlock()

	for _, sender := range closers {
		sender.Close()
	}
	if len(removed) > 0 {
		metricConnectedClients.Set(float64(count))
	}
	return removed
}
