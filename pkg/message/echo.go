package message

// Echoed is implemented by host-to-modem messages, which the modem echoes
// back terminated with an ACK or NAK byte. The engine uses the echo
// status to detect modem rejections.
type Echoed interface {
	Message
	EchoAck() Ack
}

// EchoAck returns the echo status.
func (m *StdSend) EchoAck() Ack { return m.Ack }

// EchoAck returns the echo status.
func (m *ExtSend) EchoAck() Ack { return m.Ack }

// EchoAck returns the echo status.
func (m *ModemInfo) EchoAck() Ack { return m.Ack }

// EchoAck returns the echo status.
func (m *ModemScene) EchoAck() Ack { return m.Ack }

// EchoAck returns the echo status.
func (m *StartLinking) EchoAck() Ack { return m.Ack }

// EchoAck returns the echo status.
func (m *CancelLinking) EchoAck() Ack { return m.Ack }

// EchoAck returns the echo status.
func (m *ResetModem) EchoAck() Ack { return m.Ack }

// EchoAck returns the echo status.
func (m *GetFirstAllLink) EchoAck() Ack { return m.Ack }

// EchoAck returns the echo status.
func (m *GetNextAllLink) EchoAck() Ack { return m.Ack }

// EchoAck returns the echo status.
func (m *ManageAllLinkRecord) EchoAck() Ack { return m.Ack }
