package network

import (
	"errors"
	"io"
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakePort stubs the serial port. Only the methods the link touches
// are implemented; anything else panics through the nil embed.
type fakePort struct {
	serial.Port
	reads    [][]byte
	readErr  error
	writes   [][]byte
	writeErr error
	closed   bool
}

func (p *fakePort) Read(buf []byte) (int, error) {
	if len(p.reads) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, io.EOF
	}
	n := copy(buf, p.reads[0])
	p.reads = p.reads[1:]
	return n, nil
}

func (p *fakePort) Write(data []byte) (int, error) {
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.writes = append(p.writes, append([]byte(nil), data...))
	return len(data), nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestSerialLinkFlush(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("writes due packets in order", func(t *testing.T) {
		l := NewSerialLink("/dev/ttyUSB0", 0, nil)
		port := &fakePort{}
		l.port = port
		var wrote [][]byte
		l.SetOnWrote(func(data []byte) { wrote = append(wrote, data) })

		l.Write([]byte{0x02, 0x60}, time.Time{})
		l.Write([]byte{0x02, 0x69}, time.Time{})
		if err := l.Flush(now); err != nil {
			t.Fatalf("Flush: %v", err)
		}

		if len(port.writes) != 2 {
			t.Fatalf("wrote %d packets, want 2", len(port.writes))
		}
		if port.writes[0][1] != 0x60 || port.writes[1][1] != 0x69 {
			t.Fatalf("write order = % x, % x", port.writes[0], port.writes[1])
		}
		if len(wrote) != 2 {
			t.Fatalf("onWrote calls = %d, want 2", len(wrote))
		}
	})

	t.Run("holds packets scheduled for later", func(t *testing.T) {
		l := NewSerialLink("/dev/ttyUSB0", 0, nil)
		port := &fakePort{}
		l.port = port

		after := now.Add(500 * time.Millisecond)
		l.Write([]byte{0x02, 0x60}, after)
		if err := l.Flush(now); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		if len(port.writes) != 0 {
			t.Fatalf("wrote %d packets before the scheduled time", len(port.writes))
		}

		at, ok := l.NextWrite()
		if !ok || !at.Equal(after) {
			t.Fatalf("NextWrite = %v, %v; want %v, true", at, ok, after)
		}

		if err := l.Flush(after); err != nil {
			t.Fatalf("Flush: %v", err)
		}
		if len(port.writes) != 1 {
			t.Fatalf("wrote %d packets, want 1", len(port.writes))
		}
	})

	t.Run("write failure surfaces and keeps the packet", func(t *testing.T) {
		l := NewSerialLink("/dev/ttyUSB0", 0, nil)
		port := &fakePort{writeErr: errors.New("input/output error")}
		l.port = port

		l.Write([]byte{0x02, 0x60}, time.Time{})
		if err := l.Flush(now); err == nil {
			t.Fatal("Flush should fail")
		}
		if _, ok := l.NextWrite(); !ok {
			t.Fatal("failed packet should stay queued for the next connect")
		}
	})

	t.Run("queue drops the oldest packet past the cap", func(t *testing.T) {
		l := NewSerialLink("/dev/ttyUSB0", 0, nil)
		for i := 0; i <= maxWriteQueue; i++ {
			l.Write([]byte{byte(i)}, time.Time{})
		}
		if len(l.writeQ) != maxWriteQueue {
			t.Fatalf("queue length = %d, want %d", len(l.writeQ), maxWriteQueue)
		}
		if l.writeQ[0].data[0] != 1 {
			t.Fatalf("head packet = %d, want the oldest dropped", l.writeQ[0].data[0])
		}
	})
}

func TestSerialLinkReadLoop(t *testing.T) {
	l := NewSerialLink("/dev/ttyUSB0", 0, nil)
	port := &fakePort{
		reads:   [][]byte{{0x02, 0x50}, {0x3a, 0x29, 0x84}},
		readErr: errors.New("device unplugged"),
	}
	events := make(chan Event, 4)

	l.readLoop(port, events)

	ev := <-events
	if string(ev.Data) != string([]byte{0x02, 0x50}) {
		t.Fatalf("first read = % x", ev.Data)
	}
	ev = <-events
	if string(ev.Data) != string([]byte{0x3a, 0x29, 0x84}) {
		t.Fatalf("second read = % x", ev.Data)
	}
	ev = <-events
	if ev.Err == nil {
		t.Fatal("read loop should end with an error event")
	}
}

func TestSerialLinkDeliver(t *testing.T) {
	l := NewSerialLink("/dev/ttyUSB0", 0, nil)
	var got []byte
	l.SetOnRead(func(data []byte) { got = data })

	l.Deliver(Event{Link: l, Data: []byte{0x02, 0x60, 0x06}})
	if string(got) != string([]byte{0x02, 0x60, 0x06}) {
		t.Fatalf("onRead data = % x", got)
	}
}

func TestSerialLinkClose(t *testing.T) {
	l := NewSerialLink("/dev/ttyUSB0", 0, nil)
	port := &fakePort{}
	l.port = port

	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !port.closed {
		t.Fatal("port should be closed")
	}
	// Closing an unconnected link is a no-op.
	if err := l.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
