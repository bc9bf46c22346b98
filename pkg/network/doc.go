// Package network provides the I/O reactor that drives the bridge.
//
// A Manager owns a set of Links (the serial PLM port, the MQTT broker
// connection) and a heap of timed callbacks. Each link delivers its
// inbound traffic through a reader goroutine into the manager's event
// channel; the Pump loop is the only place events are dispatched,
// timers fire, and writes are flushed, so everything downstream of the
// manager runs single-threaded.
//
// Connection loss is handled by the manager: the link is closed, its
// owner is notified, and reconnect attempts are scheduled with
// exponential backoff until the link comes back.
package network
