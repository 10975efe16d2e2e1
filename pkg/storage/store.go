package storage

import (
	"time"
)

// Outcome classifies the result of one broadcast attempt
type Outcome string

const (
	// OutcomeDelivered means every snapshotted client received the enqueue
	OutcomeDelivered Outcome = "delivered"

	// OutcomePartial means some but not all clients received the enqueue
	OutcomePartial Outcome = "partial"

	// OutcomeFailed means clients existed at snapshot time but none were reachable
	OutcomeFailed Outcome = "failed"

	// OutcomeNoClients means the registry was empty at snapshot time
	OutcomeNoClients Outcome = "no_clients"
)

// Dispatch records the outcome of one script broadcast. The script body is
// deliberately not stored; the relay does not persist or replay messages.
type Dispatch struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Delivered int       `json:"delivered"`
	Total     int       `json:"total"`
	Outcome   Outcome   `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// ClassifyOutcome maps a (delivered, total) tally to its outcome class
func ClassifyOutcome(delivered, total int) Outcome {
	switch {
	case total == 0:
		return OutcomeNoClients
	case delivered == total:
		return OutcomeDelivered
	case delivered == 0:
		return OutcomeFailed
	default:
		return OutcomePartial
	}
}

// Store defines the interface for dispatch log storage
type Store interface {
	// RecordDispatch persists the outcome of one broadcast
	RecordDispatch(d *Dispatch) error

	// RecentDispatches returns up to limit records, most recent first
	RecentDispatches(limit int) ([]*Dispatch, error)

	// Lifecycle
	Close() error
}
