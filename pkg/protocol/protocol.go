// Package protocol defines the wire messages exchanged between the relay
// and executor clients. Every message is a single JSON text frame carrying
// a "type" discriminator field.
package protocol

import (
	"encoding/json"
	"time"
)

// MessageType is the "type" discriminator of a wire message
type MessageType string

const (
	// MsgTypePing is the liveness probe sent by the relay
	MsgTypePing MessageType = "ping"

	// MsgTypePong is the liveness acknowledgement sent by clients
	MsgTypePong MessageType = "pong"

	// MsgTypeExecute is the script-execution directive sent by the relay
	MsgTypeExecute MessageType = "execute"
)

// Envelope is the minimal shape of any wire message. Inbound frames are
// decoded into it to read the type discriminator; unknown types are ignored.
type Envelope struct {
	Type MessageType `json:"type"`
}

// ExecuteDirective instructs executor clients to run a script
type ExecuteDirective struct {
	Type      MessageType `json:"type"`
	Script    string      `json:"script"`
	Filename  string      `json:"filename"`
	Timestamp string      `json:"timestamp"`
}

// NewExecuteDirective builds the serialized execute frame for a script
func NewExecuteDirective(script, filename string, now time.Time) ([]byte, error) {
	return json.Marshal(&ExecuteDirective{
		Type:      MsgTypeExecute,
		Script:    script,
		Filename:  filename,
		Timestamp: now.Format(time.RFC3339),
	})
}

// PingFrame returns the serialized liveness probe
func PingFrame() []byte {
	// Marshaling a literal with one string field cannot fail
	data, _ := json.Marshal(&Envelope{Type: MsgTypePing})
	return data
}

// ParseEnvelope decodes an inbound frame far enough to read its type.
// Malformed frames yield an empty type, which callers treat as "observed,
// no behavioral effect".
func ParseEnvelope(data []byte) Envelope {
	var env Envelope
	_ = json.Unmarshal(data, &env)
	return env
}
