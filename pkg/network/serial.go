package network

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.bug.st/serial"

	"github.com/insteon-mqtt/insteon-go/pkg/log"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// PLM serial parameters: 19200 baud, 8 data bits, no parity, 1 stop bit.
const DefaultBaudRate = 19200

// readBufSize is the per-read buffer for the reader goroutine.
const readBufSize = 4096

// maxWriteQueue bounds the pending write queue. When the link is down
// for a long time the oldest packets are dropped rather than queuing
// without limit.
const maxWriteQueue = 500

// pendingWrite is one queued outbound packet. after is the earliest
// time it may go on the wire; the engine uses it to pace modem writes.
type pendingWrite struct {
	data  []byte
	after time.Time
}

// SerialLink connects the reactor to the PLM serial port. It satisfies
// the protocol engine's link contract: Write queues data for the pump
// loop's flush, and the wrote callback fires after each packet hits the
// wire so the engine can advance its queue.
type SerialLink struct {
	id     string
	device string
	baud   int
	logger log.Logger

	port   serial.Port
	writeQ []pendingWrite

	onRead  func(data []byte)
	onWrote func(data []byte)
}

// NewSerialLink creates an unconnected link for the given serial
// device. A nil logger disables logging.
func NewSerialLink(device string, baud int, logger log.Logger) *SerialLink {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	if logger == nil {
		logger = log.NoopLogger{}
	}
	return &SerialLink{
		id:     uuid.NewString(),
		device: device,
		baud:   baud,
		logger: logger,
	}
}

// ID returns the link instance identifier.
func (l *SerialLink) ID() string { return l.id }

// Name returns the serial device path.
func (l *SerialLink) Name() string { return l.device }

// SetOnRead sets the inbound byte callback, invoked from the pump loop.
func (l *SerialLink) SetOnRead(fn func(data []byte)) { l.onRead = fn }

// SetOnWrote sets the transmit-complete callback, invoked from the
// pump loop after each packet is written.
func (l *SerialLink) SetOnWrote(fn func(data []byte)) { l.onWrote = fn }

// Connect opens the serial port and starts the reader goroutine.
func (l *SerialLink) Connect(events chan<- Event) error {
	mode := &serial.Mode{
		BaudRate: l.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(l.device, mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", l.device, err)
	}
	l.port = port

	go l.readLoop(port, events)
	return nil
}

// readLoop delivers inbound bytes to the manager until the port fails
// or is closed. It holds its own port reference so a reconnect cannot
// cross wires with a stale reader.
func (l *SerialLink) readLoop(port serial.Port, events chan<- Event) {
	buf := make([]byte, readBufSize)
	for {
		n, err := port.Read(buf)
		if err != nil {
			events <- Event{Link: l, Err: err}
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		events <- Event{Link: l, Data: data}
	}
}

// Close closes the serial port. Queued writes are kept for the next
// connect.
func (l *SerialLink) Close() error {
	if l.port == nil {
		return nil
	}
	err := l.port.Close()
	l.port = nil
	return err
}

// Write queues data for transmission no earlier than after. Called by
// the protocol engine from the pump loop.
func (l *SerialLink) Write(data []byte, after time.Time) {
	l.writeQ = append(l.writeQ, pendingWrite{data: data, after: after})
	if len(l.writeQ) > maxWriteQueue {
		l.writeQ = l.writeQ[1:]
	}
}

// NextWrite returns the scheduled time of the head packet.
func (l *SerialLink) NextWrite() (time.Time, bool) {
	if len(l.writeQ) == 0 {
		return time.Time{}, false
	}
	return l.writeQ[0].after, true
}

// Flush writes every queued packet whose time has come.
func (l *SerialLink) Flush(now time.Time) error {
	for len(l.writeQ) > 0 {
		head := l.writeQ[0]
		if now.Before(head.after) {
			return nil
		}
		if _, err := l.port.Write(head.data); err != nil {
			return fmt.Errorf("serial write: %w", err)
		}
		l.writeQ = l.writeQ[1:]
		if l.onWrote != nil {
			l.onWrote(head.data)
		}
	}
	return nil
}

// Deliver passes inbound bytes to the read callback and captures them
// at the transport layer.
func (l *SerialLink) Deliver(ev Event) {
	l.logger.Log(log.Event{
		Timestamp: time.Now(),
		Link:      l.device,
		Direction: log.DirectionIn,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size: len(ev.Data),
			Data: ev.Data,
		},
	})
	if l.onRead != nil {
		l.onRead(ev.Data)
	}
}

// Compile-time interface satisfaction checks.
var (
	_ Link          = (*SerialLink)(nil)
	_ protocol.Link = (*SerialLink)(nil)
)
