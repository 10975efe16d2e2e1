package relay

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"scriptrelay/pkg/logger"
	"scriptrelay/pkg/protocol"
)

func newTestBroadcaster() (*Broadcaster, *Registry) {
	r, _ := newTestRegistry()
	return NewBroadcaster(r, logger.Get()), r
}

// receiveNow drains one payload from a sender without blocking
func receiveNow(t *testing.T, s *Sender) []byte {
	t.Helper()
	select {
	case payload := <-s.Recv():
		return payload
	default:
		t.Fatal("Expected a payload in the sender buffer")
		return nil
	}
}

func TestBroadcastAllHealthy(t *testing.T) {
	b, r := newTestBroadcaster()

	senders := make([]*Sender, 5)
	for i := range senders {
		senders[i] = NewSender()
		r.Register(senders[i])
	}

	payload := []byte(`{"type":"execute","script":"print(1)","filename":"x.lua","timestamp":"T"}`)
	delivered, total := b.Broadcast(payload)

	if delivered != 5 || total != 5 {
		t.Errorf("Expected (5, 5), got (%d, %d)", delivered, total)
	}
	for i, s := range senders {
		if got := receiveNow(t, s); !bytes.Equal(got, payload) {
			t.Errorf("Client %d received wrong payload: %s", i, got)
		}
	}
	if r.Count() != 5 {
		t.Errorf("Healthy broadcast must not mutate registry, count = %d", r.Count())
	}
}

func TestBroadcastNoClients(t *testing.T) {
	b, r := newTestBroadcaster()

	delivered, total := b.Broadcast([]byte("payload"))
	if delivered != 0 || total != 0 {
		t.Errorf("Expected (0, 0), got (%d, %d)", delivered, total)
	}
	if r.Count() != 0 {
		t.Errorf("Empty broadcast must leave registry unchanged, count = %d", r.Count())
	}
}

func TestBroadcastOneClosedClientEvicted(t *testing.T) {
	b, r := newTestBroadcaster()

	healthy1 := NewSender()
	broken := NewSender()
	healthy2 := NewSender()
	r.Register(healthy1)
	brokenID := r.Register(broken)
	r.Register(healthy2)

	broken.Close()

	delivered, total := b.Broadcast([]byte("payload"))
	if delivered != 2 || total != 3 {
		t.Errorf("Expected (2, 3), got (%d, %d)", delivered, total)
	}

	// The failed client must be gone immediately after the call returns
	if r.Count() != 2 {
		t.Errorf("Expected 2 clients after eviction, got %d", r.Count())
	}
	if _, ok := findSender(r, brokenID); ok {
		t.Error("Failed client should be absent from the registry")
	}

	receiveNow(t, healthy1)
	receiveNow(t, healthy2)
}

func TestBroadcastFullBufferCountsAsFailure(t *testing.T) {
	b, r := newTestBroadcaster()

	stalled := NewSender()
	id := r.Register(stalled)

	// Nobody drains this sender; fill its buffer to capacity
	for stalled.TrySend([]byte("fill")) {
	}

	delivered, total := b.Broadcast([]byte("payload"))
	if delivered != 0 || total != 1 {
		t.Errorf("Expected (0, 1) against a stalled client, got (%d, %d)", delivered, total)
	}
	if _, ok := findSender(r, id); ok {
		t.Error("Stalled client should have been evicted")
	}
}

func TestBroadcastFailureDoesNotStopIteration(t *testing.T) {
	b, r := newTestBroadcaster()

	// Failing client first in snapshot order, healthy ones after it
	first := NewSender()
	r.Register(first)
	first.Close()

	rest := make([]*Sender, 3)
	for i := range rest {
		rest[i] = NewSender()
		r.Register(rest[i])
	}

	delivered, total := b.Broadcast([]byte("payload"))
	if delivered != 3 || total != 4 {
		t.Errorf("Expected (3, 4), got (%d, %d)", delivered, total)
	}
	for _, s := range rest {
		receiveNow(t, s)
	}
}

func TestBroadcastScenarioABC(t *testing.T) {
	b, r := newTestBroadcaster()

	a := NewSender()
	bb := NewSender()
	c := NewSender()
	idA := r.Register(a)
	idB := r.Register(bb)
	idC := r.Register(c)
	if idA != 0 || idB != 1 || idC != 2 {
		t.Fatalf("Expected ids 0,1,2, got %d,%d,%d", idA, idB, idC)
	}

	payload, err := protocol.NewExecuteDirective("print(1)", "x.lua", time.Now())
	if err != nil {
		t.Fatal(err)
	}

	delivered, total := b.Broadcast(payload)
	if delivered != 3 || total != 3 {
		t.Errorf("Expected (3, 3), got (%d, %d)", delivered, total)
	}

	var directive protocol.ExecuteDirective
	if err := json.Unmarshal(receiveNow(t, a), &directive); err != nil {
		t.Fatalf("Client A received invalid JSON: %v", err)
	}
	if directive.Type != protocol.MsgTypeExecute || directive.Script != "print(1)" || directive.Filename != "x.lua" {
		t.Errorf("Unexpected directive: %+v", directive)
	}

	// B's channel closes, second broadcast reaches only A and C
	bb.Close()
	delivered, total = b.Broadcast(payload)
	if delivered != 2 || total != 3 {
		t.Errorf("Expected (2, 3), got (%d, %d)", delivered, total)
	}
	if r.Count() != 2 {
		t.Errorf("Expected count 2 after B's eviction, got %d", r.Count())
	}
}
