package log

import "time"

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// Link names the transport the event belongs to, such as the serial
	// port path or the MQTT broker URL.
	Link string `cbor:"2,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Device is the Insteon address the event concerns, when known.
	Device string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"7,keyasint,omitempty"`  // Transport layer
	Message     *MessageEvent     `cbor:"8,keyasint,omitempty"`  // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"9,keyasint,omitempty"`  // Engine/link state
	Error       *ErrorEventData   `cbor:"10,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the raw byte layer (serial reads/writes, MQTT
	// payloads).
	LayerTransport Layer = 0
	// LayerWire is the frame codec layer (decoded Insteon messages).
	LayerWire Layer = 1
	// LayerEngine is the protocol engine layer (write queue, handlers,
	// retries).
	LayerEngine Layer = 2
	// LayerDevice is the device/database layer.
	LayerDevice Layer = 3
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerEngine:
		return "ENGINE"
	case LayerDevice:
		return "DEVICE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the transport layer.
type FrameEvent struct {
	// Size is the frame size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded Insteon message at the wire layer.
type MessageEvent struct {
	// Code is the frame command code (0x50, 0x62, ...).
	Code uint8 `cbor:"1,keyasint"`

	// Summary is the message's human-readable form.
	Summary string `cbor:"2,keyasint,omitempty"`

	// Ack is the echo status of a host-to-modem command, when present.
	Ack *bool `cbor:"3,keyasint,omitempty"`

	// Duplicate is true when the message was dropped as a retransmitted
	// hop of an earlier message.
	Duplicate bool `cbor:"4,keyasint,omitempty"`
}

// StateChangeEvent captures engine and link lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityLink indicates a transport link state change.
	StateEntityLink StateEntity = 0
	// StateEntityWriteQueue indicates a write queue state change.
	StateEntityWriteQueue StateEntity = 1
	// StateEntityHandler indicates a handler resolving or retrying.
	StateEntityHandler StateEntity = 2
	// StateEntitySequence indicates a command sequence step change.
	StateEntitySequence StateEntity = 3
	// StateEntityLinking indicates an all-linking mode change.
	StateEntityLinking StateEntity = 4
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityLink:
		return "LINK"
	case StateEntityWriteQueue:
		return "WRITE_QUEUE"
	case StateEntityHandler:
		return "HANDLER"
	case StateEntitySequence:
		return "SEQUENCE"
	case StateEntityLinking:
		return "LINKING"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
