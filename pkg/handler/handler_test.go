package handler_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insteon-mqtt/insteon-go/pkg/handler"
	"github.com/insteon-mqtt/insteon-go/pkg/insteon"
	"github.com/insteon-mqtt/insteon-go/pkg/message"
	"github.com/insteon-mqtt/insteon-go/pkg/protocol"
)

var testAddr = insteon.MustAddress("3a.29.84")

// fakeSender records queued sends without any engine behind them.
type fakeSender struct {
	sent     []message.Message
	priority []message.Message
	timed    []message.Message
}

func (s *fakeSender) Send(msg message.Message, h protocol.Handler) {
	s.sent = append(s.sent, msg)
}

func (s *fakeSender) SendHighPriority(msg message.Message, h protocol.Handler) {
	s.priority = append(s.priority, msg)
}

func (s *fakeSender) SendAfter(msg message.Message, h protocol.Handler, at time.Time) {
	s.timed = append(s.timed, msg)
}

// doneRecorder captures the resolution callback.
type doneRecorder struct {
	called bool
	err    error
}

func (d *doneRecorder) fn(err error) {
	d.called = true
	d.err = err
}

func directAck(cmd1, cmd2 byte) *message.StdReceived {
	return &message.StdReceived{
		From:  testAddr,
		Flags: insteon.Flags{Type: insteon.MsgTypeDirectAck, HopsLeft: 1, MaxHops: 1},
		Cmd1:  cmd1,
		Cmd2:  cmd2,
	}
}

func directNak(cmd1, cmd2 byte) *message.StdReceived {
	m := directAck(cmd1, cmd2)
	m.Flags.Type = insteon.MsgTypeDirectNak
	return m
}

func TestStandardCmd_AckResolves(t *testing.T) {
	done := &doneRecorder{}
	var got *message.StdReceived
	h := handler.NewStandardCmd(message.NewStdSend(testAddr, 0x19, 0x00),
		func(m *message.StdReceived, d handler.DoneFunc) {
			got = m
			d(nil)
		}, done.fn)

	s := &fakeSender{}

	// Echo of our own send keeps the handler waiting.
	assert.Equal(t, protocol.Continue, h.Receive(s, message.NewStdSend(testAddr, 0x19, 0x00)))
	assert.False(t, done.called)

	assert.Equal(t, protocol.Finished, h.Receive(s, directAck(0x19, 0xff)))
	require.NotNil(t, got)
	assert.Equal(t, byte(0xff), got.Cmd2)
	require.True(t, done.called)
	assert.NoError(t, done.err)
}

func TestStandardCmd_NakFails(t *testing.T) {
	done := &doneRecorder{}
	h := handler.NewStandardCmd(message.NewStdSend(testAddr, 0x19, 0x00), nil, done.fn)

	out := h.Receive(&fakeSender{}, directNak(0x19, message.NakNotInDB))
	assert.Equal(t, protocol.Finished, out)
	require.True(t, done.called)
	assert.ErrorIs(t, done.err, handler.ErrDeviceNak)
}

func TestStandardCmd_PreNakKeepsWaiting(t *testing.T) {
	done := &doneRecorder{}
	h := handler.NewStandardCmd(message.NewStdSend(testAddr, 0x19, 0x00), nil, done.fn)

	// A Pre-NAK means the device is still searching its database.
	out := h.Receive(&fakeSender{}, directNak(0x19, message.NakPre))
	assert.Equal(t, protocol.Continue, out)
	assert.False(t, done.called)
}

func TestStandardCmd_OtherDeviceUnclaimed(t *testing.T) {
	h := handler.NewStandardCmd(message.NewStdSend(testAddr, 0x19, 0x00), nil, nil)

	other := directAck(0x19, 0x00)
	other.From = insteon.MustAddress("01.02.03")
	assert.Equal(t, protocol.Unknown, h.Receive(&fakeSender{}, other))

	wrongCmd := directAck(0x11, 0x00)
	assert.Equal(t, protocol.Unknown, h.Receive(&fakeSender{}, wrongCmd))
}

func TestExtendedCmdResponse_PayloadResolves(t *testing.T) {
	done := &doneRecorder{}
	var got *message.ExtReceived
	h := handler.NewExtendedCmdResponse(testAddr, 0x2e,
		func(m *message.ExtReceived, d handler.DoneFunc) {
			got = m
			d(nil)
		}, done.fn)

	s := &fakeSender{}
	assert.Equal(t, protocol.Continue,
		h.Receive(s, message.NewExtSend(testAddr, 0x2e, 0x00, nil)))

	// The DIRECT_ACK only announces the payload.
	assert.Equal(t, protocol.Continue, h.Receive(s, directAck(0x2e, 0x00)))
	assert.False(t, done.called)

	reply := &message.ExtReceived{
		From:  testAddr,
		Flags: insteon.Flags{Type: insteon.MsgTypeDirect, Extended: true},
		Cmd1:  0x2e,
	}
	reply.Data[3] = 0x20
	assert.Equal(t, protocol.Finished, h.Receive(s, reply))
	require.NotNil(t, got)
	assert.Equal(t, byte(0x20), got.Data[3])
	assert.True(t, done.called)
}

func TestExtendedCmdResponse_NakFails(t *testing.T) {
	done := &doneRecorder{}
	h := handler.NewExtendedCmdResponse(testAddr, 0x2e, nil, done.fn)

	out := h.Receive(&fakeSender{}, directNak(0x2e, message.NakNoLoad))
	assert.Equal(t, protocol.Finished, out)
	assert.ErrorIs(t, done.err, handler.ErrDeviceNak)
}

func TestCallbackForCode(t *testing.T) {
	done := &doneRecorder{}
	var got message.Message
	h := handler.NewCallbackForCode(0x57, func(m message.Message) { got = m }, done.fn)

	s := &fakeSender{}
	assert.Equal(t, protocol.Unknown, h.Receive(s, &message.ModemInfo{Ack: message.AckOK}))

	rec := &message.AllLinkRecord{Group: 1, Addr: testAddr}
	assert.Equal(t, protocol.Finished, h.Receive(s, rec))
	assert.Same(t, message.Message(rec), got)
	assert.True(t, done.called)
}

// fakeDevice implements handler.Broadcastee.
type fakeDevice struct {
	broadcasts []*message.StdReceived
}

func (d *fakeDevice) HandleBroadcast(m *message.StdReceived) {
	d.broadcasts = append(d.broadcasts, m)
}

func sceneBroadcast(group uint8, cmd1 byte) *message.StdReceived {
	return &message.StdReceived{
		From:  testAddr,
		To:    insteon.Address{0x00, 0x00, group},
		Flags: insteon.Flags{Type: insteon.MsgTypeAllLinkBroadcast, HopsLeft: 2, MaxHops: 3},
		Cmd1:  cmd1,
	}
}

func sceneCleanup(group uint8, cmd1 byte) *message.StdReceived {
	return &message.StdReceived{
		From:  testAddr,
		Flags: insteon.Flags{Type: insteon.MsgTypeAllLinkCleanup, HopsLeft: 2, MaxHops: 3},
		Cmd1:  cmd1,
		Cmd2:  group,
	}
}

func TestBroadcast_SceneFiresOnce(t *testing.T) {
	dev := &fakeDevice{}
	h := handler.NewBroadcast(func(a insteon.Address) handler.Broadcastee {
		if a == testAddr {
			return dev
		}
		return nil
	})

	s := &fakeSender{}
	assert.Equal(t, protocol.Continue, h.Receive(s, sceneBroadcast(1, 0x11)))
	require.Len(t, dev.broadcasts, 1)

	// The cleanup for the same scene is swallowed, not re-fired.
	assert.Equal(t, protocol.Continue, h.Receive(s, sceneCleanup(1, 0x11)))
	assert.Len(t, dev.broadcasts, 1)
}

func TestBroadcast_LostBroadcastCleanupFires(t *testing.T) {
	dev := &fakeDevice{}
	h := handler.NewBroadcast(func(insteon.Address) handler.Broadcastee { return dev })

	out := h.Receive(&fakeSender{}, sceneCleanup(1, 0x11))
	assert.Equal(t, protocol.Continue, out)
	assert.Len(t, dev.broadcasts, 1)
}

func TestBroadcast_DifferentSceneCleanupFires(t *testing.T) {
	dev := &fakeDevice{}
	h := handler.NewBroadcast(func(insteon.Address) handler.Broadcastee { return dev })

	s := &fakeSender{}
	h.Receive(s, sceneBroadcast(1, 0x11))
	h.Receive(s, sceneCleanup(2, 0x13))
	assert.Len(t, dev.broadcasts, 2)
}

func TestBroadcast_UnknownDeviceUnclaimed(t *testing.T) {
	h := handler.NewBroadcast(func(insteon.Address) handler.Broadcastee { return nil })
	out := h.Receive(&fakeSender{}, sceneBroadcast(1, 0x11))
	assert.Equal(t, protocol.Unknown, out)
}

func TestModemInfo_Ack(t *testing.T) {
	done := &doneRecorder{}
	var got *message.ModemInfo
	h := handler.NewModemInfo(func(m *message.ModemInfo) { got = m }, done.fn)

	info := &message.ModemInfo{Addr: testAddr, DevCat: 0x03, Ack: message.AckOK}
	assert.Equal(t, protocol.Finished, h.Receive(&fakeSender{}, info))
	require.NotNil(t, got)
	assert.Equal(t, testAddr, got.Addr)
	assert.NoError(t, done.err)
	assert.True(t, done.called)
}

func TestModemInfo_Nak(t *testing.T) {
	done := &doneRecorder{}
	h := handler.NewModemInfo(nil, done.fn)

	out := h.Receive(&fakeSender{}, &message.ModemInfo{Ack: message.AckNak})
	assert.Equal(t, protocol.Finished, out)
	assert.ErrorIs(t, done.err, handler.ErrModemNak)
}

func TestModemReset_AckClearsDB(t *testing.T) {
	done := &doneRecorder{}
	cleared := false
	h := handler.NewModemReset(func() { cleared = true }, done.fn)

	out := h.Receive(&fakeSender{}, &message.ResetModem{Ack: message.AckOK})
	assert.Equal(t, protocol.Finished, out)
	assert.True(t, cleared)
	assert.NoError(t, done.err)
}

func TestModemReset_UserReset(t *testing.T) {
	cleared := false
	h := handler.NewModemReset(func() { cleared = true }, nil)

	out := h.Receive(&fakeSender{}, &message.UserReset{})
	assert.Equal(t, protocol.Finished, out)
	assert.True(t, cleared)
}

func TestModemReset_Nak(t *testing.T) {
	done := &doneRecorder{}
	cleared := false
	h := handler.NewModemReset(func() { cleared = true }, done.fn)

	h.Receive(&fakeSender{}, &message.ResetModem{Ack: message.AckNak})
	assert.False(t, cleared)
	assert.ErrorIs(t, done.err, handler.ErrModemNak)
}

func TestLinkStart_Ack(t *testing.T) {
	done := &doneRecorder{}
	h := handler.NewLinkStart(done.fn)

	start := &message.StartLinking{Cmd: message.LinkEither, Group: 1, Ack: message.AckOK}
	assert.Equal(t, protocol.Finished, h.Receive(&fakeSender{}, start))
	assert.NoError(t, done.err)
	assert.True(t, done.called)
}

func TestLinkStart_CancelAck(t *testing.T) {
	done := &doneRecorder{}
	h := handler.NewLinkStart(done.fn)

	out := h.Receive(&fakeSender{}, &message.CancelLinking{Ack: message.AckOK})
	assert.Equal(t, protocol.Finished, out)
	assert.NoError(t, done.err)
}

func TestLinkComplete_Forwards(t *testing.T) {
	var got *message.AllLinkComplete
	h := handler.NewLinkComplete(func(m *message.AllLinkComplete) { got = m })

	rep := &message.AllLinkComplete{Cmd: message.LinkController, Group: 1, Addr: testAddr}
	out := h.Receive(&fakeSender{}, rep)

	// Stays installed for the next pairing report.
	assert.Equal(t, protocol.Continue, out)
	assert.Same(t, rep, got)
}

func TestLinking_Completes(t *testing.T) {
	done := &doneRecorder{}
	var got *message.AllLinkComplete
	s := &fakeSender{}
	h := handler.NewLinking(s, func(m *message.AllLinkComplete) { got = m }, done.fn)

	start := &message.StartLinking{Cmd: message.LinkEither, Group: 1, Ack: message.AckOK}
	assert.Equal(t, protocol.Continue, h.Receive(s, start))

	rep := &message.AllLinkComplete{Cmd: message.LinkResponder, Group: 1, Addr: testAddr}
	assert.Equal(t, protocol.Finished, h.Receive(s, rep))
	assert.Same(t, rep, got)
	assert.NoError(t, done.err)
	assert.True(t, done.called)
}

func TestLinking_StartNak(t *testing.T) {
	done := &doneRecorder{}
	h := handler.NewLinking(&fakeSender{}, nil, done.fn)

	start := &message.StartLinking{Cmd: message.LinkEither, Group: 1, Ack: message.AckNak}
	assert.Equal(t, protocol.Finished, h.Receive(&fakeSender{}, start))
	assert.ErrorIs(t, done.err, handler.ErrModemNak)
}

func TestLinking_TimeoutCancelsLinkingMode(t *testing.T) {
	done := &doneRecorder{}
	s := &fakeSender{}
	h := handler.NewLinking(s, nil, done.fn)

	h.Failed(protocol.ErrTimeout)

	require.Len(t, s.priority, 1)
	_, ok := s.priority[0].(*message.CancelLinking)
	assert.True(t, ok)
	assert.ErrorIs(t, done.err, protocol.ErrTimeout)
}

func TestLinking_CancelledResolves(t *testing.T) {
	done := &doneRecorder{}
	h := handler.NewLinking(&fakeSender{}, nil, done.fn)

	out := h.Receive(&fakeSender{}, &message.CancelLinking{Ack: message.AckOK})
	assert.Equal(t, protocol.Finished, out)
	assert.ErrorIs(t, done.err, handler.ErrLinkingCancelled)
}

func TestScene_Flow(t *testing.T) {
	done := &doneRecorder{}
	var acked []*message.StdReceived
	scene := &message.ModemScene{Group: 1, Cmd1: 0x11, Cmd2: 0xff}
	h := handler.NewScene(scene, func(m *message.StdReceived) {
		acked = append(acked, m)
	}, done.fn)

	s := &fakeSender{}
	echo := &message.ModemScene{Group: 1, Cmd1: 0x11, Cmd2: 0xff, Ack: message.AckOK}
	assert.Equal(t, protocol.Continue, h.Receive(s, echo))

	cleanup := &message.StdReceived{
		From:  testAddr,
		Flags: insteon.Flags{Type: insteon.MsgTypeCleanupAck},
		Cmd1:  0x11,
		Cmd2:  1,
	}
	assert.Equal(t, protocol.Continue, h.Receive(s, cleanup))
	assert.Len(t, acked, 1)

	assert.Equal(t, protocol.Finished,
		h.Receive(s, &message.AllLinkStatus{Ack: message.AckOK}))
	assert.NoError(t, done.err)
	assert.True(t, done.called)
}

func TestScene_OtherGroupCleanupUnclaimed(t *testing.T) {
	scene := &message.ModemScene{Group: 1, Cmd1: 0x11}
	h := handler.NewScene(scene, nil, nil)

	cleanup := &message.StdReceived{
		From:  testAddr,
		Flags: insteon.Flags{Type: insteon.MsgTypeCleanupAck},
		Cmd1:  0x11,
		Cmd2:  2,
	}
	assert.Equal(t, protocol.Unknown, h.Receive(&fakeSender{}, cleanup))
}

func TestScene_StatusNakKeepsWaiting(t *testing.T) {
	done := &doneRecorder{}
	scene := &message.ModemScene{Group: 1, Cmd1: 0x11}
	h := handler.NewScene(scene, nil, done.fn)

	// The modem retries the broadcast itself after a premature NAK.
	out := h.Receive(&fakeSender{}, &message.AllLinkStatus{Ack: message.AckNak})
	assert.Equal(t, protocol.Continue, out)
	assert.False(t, done.called)
}

func TestScene_EchoNak(t *testing.T) {
	done := &doneRecorder{}
	scene := &message.ModemScene{Group: 1, Cmd1: 0x11}
	h := handler.NewScene(scene, nil, done.fn)

	echo := &message.ModemScene{Group: 1, Cmd1: 0x11, Ack: message.AckNak}
	assert.Equal(t, protocol.Finished, h.Receive(&fakeSender{}, echo))
	assert.ErrorIs(t, done.err, handler.ErrModemNak)
}

func TestBase_RetryBudget(t *testing.T) {
	b := &handler.Base{Retries: 2}
	now := time.Now()

	b.Sending(now, nil)
	assert.True(t, b.CanRetry(), "first retry allowed")
	b.Sending(now, nil)
	assert.True(t, b.CanRetry(), "second retry allowed")
	b.Sending(now, nil)
	assert.False(t, b.CanRetry(), "budget exhausted")
}

func TestBase_StopRetry(t *testing.T) {
	b := &handler.Base{Retries: 5}
	b.Sending(time.Now(), nil)
	b.StopRetry()
	assert.False(t, b.CanRetry())
}

func TestBase_DoneRunsOnce(t *testing.T) {
	calls := 0
	b := &handler.Base{OnDone: func(error) { calls++ }}
	b.Failed(errors.New("first"))
	b.Failed(errors.New("second"))
	assert.Equal(t, 1, calls)
}
