// Package protocol implements the Insteon PLM protocol engine.
//
// The engine owns the outbound write queue, the inbound byte buffer and
// the active handler set. It frames the modem's byte stream into decoded
// messages, correlates them with in-flight commands, and enforces the
// modem's single-outstanding-command discipline: only one host command is
// on the wire at a time, and the next one is not written until the
// current one's handler resolves by reply, NAK, timeout or cancellation.
//
// The engine is not safe for concurrent use. All of its methods must be
// called from a single goroutine, normally the network reactor that owns
// the links. ReadData feeds it raw bytes, Wrote reports a completed
// transmit, and Poll drives timed sends and handler timeouts.
package protocol
