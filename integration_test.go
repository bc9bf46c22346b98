package insteon_test

import (
	"testing"
	"time"

	"github.com/insteon-mqtt/insteon-go/pkg/device"
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/network"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

// simPLM stands in for the serial port: frames the engine writes land in
// wire, and replies are injected through the manager's event channel so
// they travel the same dispatch path as real reads.
type simPLM struct {
	events chan<- network.Event
	queue  []simWrite
	wire   [][]byte

	onRead  func(data []byte)
	onWrote func(data []byte)
}

type simWrite struct {
	data  []byte
	after time.Time
}

func (l *simPLM) ID() string   { return "plm-sim" }
func (l *simPLM) Name() string { return "plm-sim" }

func (l *simPLM) Connect(events chan<- network.Event) error {
	l.events = events
	return nil
}

func (l *simPLM) Close() error { return nil }

func (l *simPLM) Deliver(ev network.Event) {
	if l.onRead != nil {
		l.onRead(ev.Data)
	}
}

func (l *simPLM) Write(data []byte, after time.Time) {
	l.queue = append(l.queue, simWrite{data: data, after: after})
}

func (l *simPLM) Flush(now time.Time) error {
	for len(l.queue) > 0 {
		head := l.queue[0]
		if head.after.After(now) {
			return nil
		}
		l.queue = l.queue[1:]
		l.wire = append(l.wire, head.data)
		if l.onWrote != nil {
			l.onWrote(head.data)
		}
	}
	return nil
}

func (l *simPLM) NextWrite() (time.Time, bool) {
	if len(l.queue) == 0 {
		return time.Time{}, false
	}
	return l.queue[0].after, true
}

func (l *simPLM) reply(frame []byte) {
	l.events <- network.Event{Link: l, Data: frame}
}

var (
	_ network.Link  = (*simPLM)(nil)
	_ protocol.Link = (*simPLM)(nil)
)

// pumpUntil runs reactor iterations until cond holds or the deadline
// passes.
func pumpUntil(t *testing.T, m *network.Manager, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached before deadline")
		}
		m.Pump()
	}
}

// TestE2E_ModemAndSwitch drives a modem info exchange and a switch-on
// command through the full reactor stack.
func TestE2E_ModemAndSwitch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	link := &simPLM{}
	eng := protocol.NewEngine(link, nil)
	link.onRead = eng.ReadData
	link.onWrote = func([]byte) { eng.Wrote() }

	mgr := network.NewManager(nil)
	mgr.AddPoller(eng)
	mgr.AddLink(link, true, nil, func(error) { eng.LinkDown() })

	modem := device.NewModem(eng, t.TempDir(), nil)
	for _, h := range modem.ReadHandlers() {
		eng.AddReadHandler(h)
	}

	// Modem info: the single 0x60 echo carries address, category and
	// firmware.
	var infoErr error
	infoDone := false
	modem.RefreshInfo(func(err error) {
		infoErr = err
		infoDone = true
	})

	pumpUntil(t, mgr, func() bool { return len(link.wire) == 1 })
	wantInfo := []byte{0x02, 0x60}
	if got := link.wire[0]; len(got) != 2 || got[0] != wantInfo[0] || got[1] != wantInfo[1] {
		t.Fatalf("modem info frame = % x, want % x", got, wantInfo)
	}

	link.reply([]byte{0x02, 0x60, 0xaa, 0x12, 0x34, 0x03, 0x15, 0x9b, message.AckByte})
	pumpUntil(t, mgr, func() bool { return infoDone })

	if infoErr != nil {
		t.Fatalf("modem info failed: %v", infoErr)
	}
	wantAddr, _ := insteon.ParseAddress("aa.12.34")
	if modem.Addr != wantAddr {
		t.Errorf("modem addr = %s, want %s", modem.Addr, wantAddr)
	}
	if modem.DevCat != 0x03 || modem.Firmware != 0x9b {
		t.Errorf("modem cat/firmware = %02x/%02x, want 03/9b", modem.DevCat, modem.Firmware)
	}

	// Switch on: outbound 0x62, modem echo, then the device's direct
	// ACK flips the tracked state.
	addr, _ := insteon.ParseAddress("3a.29.84")
	sw := device.NewSwitch(modem, addr, "porch")

	var onErr error
	onDone := false
	sw.On(device.ModeNormal, func(err error) {
		onErr = err
		onDone = true
	})

	pumpUntil(t, mgr, func() bool { return len(link.wire) == 2 })
	out := link.wire[1]
	want := []byte{0x02, 0x62, 0x3a, 0x29, 0x84, 0x0f, 0x11, 0xff}
	if len(out) != len(want) {
		t.Fatalf("switch-on frame = % x, want % x", out, want)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("switch-on frame = % x, want % x", out, want)
		}
	}

	echo := append(append([]byte{}, out...), message.AckByte)
	link.reply(echo)
	ackFlags := insteon.NewFlags(insteon.MsgTypeDirectAck, false).Byte()
	link.reply([]byte{0x02, 0x50, 0x3a, 0x29, 0x84, 0xaa, 0x12, 0x34, ackFlags, 0x11, 0xff})
	pumpUntil(t, mgr, func() bool { return onDone })

	if onErr != nil {
		t.Fatalf("switch on failed: %v", onErr)
	}
	if st := sw.State(); !st.On || st.Level != 0xff {
		t.Errorf("switch state = %+v, want on at full level", st)
	}
}
