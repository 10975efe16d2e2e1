package server

import (
	"scriptrelay/pkg/storage"
)

// ExecuteResponse is the /execute response body. The tally fields are
// pointers so validation failures (which never reach the core) can omit
// them while a zero tally is still serialized.
type ExecuteResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message,omitempty"`
	Error          string `json:"error,omitempty"`
	ClientsReached *int   `json:"clients_reached,omitempty"`
	TotalClients   *int   `json:"total_clients,omitempty"`
}

// StatusResponse is the /status response body
type StatusResponse struct {
	Status           string       `json:"status"`
	ConnectedClients int          `json:"connected_clients"`
	Timestamp        string       `json:"timestamp"`
	System           *SystemStats `json:"system,omitempty"`
}

// SystemStats reports the relay host's own resource usage
type SystemStats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// HistoryResponse is the /history response body
type HistoryResponse struct {
	Dispatches []*storage.Dispatch `json:"dispatches"`
}

func intPtr(v int) *int {
	return &v
}
