package chat

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// connBufferSize is the per-connection event buffer. A connection whose
// buffer is full has its events dropped (see Publisher) — the client's
// polling fallback reconciles.
const connBufferSize = 64

// Event is a named, already-serialized server-sent event. The publisher
// serializes the payload once and every connection receives the same bytes.
type Event struct {
	Name string
	Data string
}

// Registry maps a user id to the set of that user's live stream
// connections. It is the only shared mutable state in the chat core and is
// owned by the composition root — constructed once in main and handed to
// the stream handler and the publisher, never a package-level variable.
//
// Gin serves each request on its own goroutine, so registration and
// fan-out are genuinely concurrent; the RWMutex guards the map, and
// Publish reads a snapshot so no lock is held while events are delivered.
type Registry struct {
	mu     sync.RWMutex
	conns  map[int64]map[uuid.UUID]chan Event
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		conns:  make(map[int64]map[uuid.UUID]chan Event),
		logger: logger,
	}
}

// Register adds a connection for the user and returns its handle id and
// the channel the stream handler drains. Multiple simultaneous
// connections per user are expected (several tabs, a phone and a laptop)
// and all of them receive every publish.
func (r *Registry) Register(userID int64) (uuid.UUID, <-chan Event) {
	id := uuid.New()
	ch := make(chan Event, connBufferSize)

	r.mu.Lock()
	if r.conns[userID] == nil {
		r.conns[userID] = make(map[uuid.UUID]chan Event)
	}
	r.conns[userID][id] = ch
	r.mu.Unlock()

	r.logger.Debug("stream connection registered",
		zap.Int64("user_id", userID),
		zap.String("conn_id", id.String()),
	)
	return id, ch
}

// Unregister removes a connection. When the user's last connection goes,
// the user's entry goes with it, so users who connected once and never
// returned don't accumulate empty sets.
//
// The event channel is not closed here: a concurrent Publish may still
// hold a reference to it, and sending on a closed channel panics. The
// abandoned channel is simply garbage collected once the stream handler
// returns.
func (r *Registry) Unregister(userID int64, connID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.conns[userID]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, userID)
	}

	r.logger.Debug("stream connection unregistered",
		zap.Int64("user_id", userID),
		zap.String("conn_id", connID.String()),
	)
}

// channels returns a snapshot of the user's connection channels. The
// caller sends without the lock held, so a slow consumer never stalls an
// unrelated register/unregister.
func (r *Registry) channels(userID int64) []chan Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.conns[userID]
	if !ok || len(set) == 0 {
		return nil
	}
	out := make([]chan Event, 0, len(set))
	for _, ch := range set {
		out = append(out, ch)
	}
	return out
}

// Connections reports the number of open connections for a user.
func (r *Registry) Connections(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns[userID])
}

// Users reports how many users currently have at least one connection.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
