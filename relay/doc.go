// Package relay implements the connection registry and broadcast/liveness
// core of the script-distribution relay.
//
// The package is organized around four pieces:
//
// Registry holds the connected-client bookkeeping: membership, each
// client's outbound sender, and its last heartbeat response. The three are
// mutated as one unit under a single mutex, so "member exists" and "sender
// exists" never diverge. Identifiers are monotonically increasing and
// never reused.
//
// Broadcaster delivers one payload to every client in a registry snapshot
// with non-blocking per-client enqueues, returns the (delivered, total)
// tally, and evicts clients whose enqueue failed in a follow-up pass.
//
// Monitor runs the heartbeat: a probe loop that enqueues ping frames and a
// separate timeout-scan loop that evicts clients whose last pong exceeds
// the configured threshold. Liveness is proven only by an application-level
// pong frame, not by transport keepalive, because the transport may stay
// open while the remote application has hung.
//
// Gateway ties one WebSocket connection to the registry: register on
// connect, route inbound pongs to Touch, drain the sender onto the wire,
// unregister after both loops have stopped.
package relay
