// Package transport is the persistent channel between the console and the
// gate network.
//
// Two implementations share one contract: NATS (gate events on a subject,
// register published on another) and WebSocket (socket-style JSON frames
// {"event": ..., "data": ...}). Both reconnect forever and report each
// connection edge to the Handler exactly once. Handler callbacks never run
// concurrently with each other.
//
// Wire payloads:
//
//	gate-status-update  {"gateId":"G1","gate":"North Entry","location":{"name":"Lot A"},"photoIn":"...","photoOut":"...","capture":"..."}
//	register            {"agentId":2}
package transport
