package relay

import (
	"sync"
)

// sendBufferSize bounds each client's outbound queue. A client that stalls
// long enough to fill it is treated as unreachable on the next broadcast.
const sendBufferSize = 256

// Sender is the outbound side of one connection. The connection's write
// pump is the sole consumer; the broadcast engine and heartbeat monitor
// are the producers.
type Sender struct {
	send   chan []byte
	mu     sync.RWMutex
	closed bool
}

// NewSender creates a sender with the standard buffer size
func NewSender() *Sender {
	return &Sender{
		send: make(chan []byte, sendBufferSize),
	}
}

// TrySend enqueues a payload without blocking. A closed sender or a full
// buffer counts as failure. The read lock keeps Close from closing the
// channel mid-send.
func (s *Sender) TrySend(payload []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// Close stops the sender. Idempotent.
func (s *Sender) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

// IsClosed checks if the sender is closed
func (s *Sender) IsClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Recv returns the channel the write pump drains. It is closed when the
// client is evicted or unregistered.
func (s *Sender) Recv() <-chan []byte {
	return s.send
}
