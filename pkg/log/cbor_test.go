package log

import (
	"bytes"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ack := true
	tests := []struct {
		name  string
		event Event
	}{
		{
			name: "frame event",
			event: Event{
				Timestamp: time.Now().UTC(),
				Link:      "/dev/ttyUSB0",
				Direction: DirectionIn,
				Layer:     LayerTransport,
				Category:  CategoryMessage,
				Frame: &FrameEvent{
					Size: 11,
					Data: []byte{0x02, 0x50, 0x48, 0x3d, 0x46},
				},
			},
		},
		{
			name: "message event",
			event: Event{
				Timestamp: time.Now().UTC(),
				Link:      "/dev/ttyUSB0",
				Direction: DirectionOut,
				Layer:     LayerWire,
				Category:  CategoryMessage,
				Device:    "48.3d.46",
				Message: &MessageEvent{
					Code:    0x62,
					Summary: "Std: 48.3d.46, direct, 11 ff",
					Ack:     &ack,
				},
			},
		},
		{
			name: "state change event",
			event: Event{
				Timestamp: time.Now().UTC(),
				Direction: DirectionIn,
				Layer:     LayerEngine,
				Category:  CategoryState,
				StateChange: &StateChangeEvent{
					Entity:   StateEntityWriteQueue,
					OldState: "wait-for-reply",
					NewState: "ready",
					Reason:   "handler finished",
				},
			},
		},
		{
			name: "error event",
			event: Event{
				Timestamp: time.Now().UTC(),
				Link:      "tcp://broker:1883",
				Direction: DirectionIn,
				Layer:     LayerTransport,
				Category:  CategoryError,
				Error: &ErrorEventData{
					Layer:   LayerTransport,
					Message: "connection lost",
					Context: "mqtt read",
				},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			data, err := EncodeEvent(tc.event)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}

			got, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if !got.Timestamp.Equal(tc.event.Timestamp) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, tc.event.Timestamp)
			}
			if got.Link != tc.event.Link {
				t.Errorf("Link = %q, want %q", got.Link, tc.event.Link)
			}
			if got.Direction != tc.event.Direction {
				t.Errorf("Direction = %v, want %v", got.Direction, tc.event.Direction)
			}
			if got.Layer != tc.event.Layer {
				t.Errorf("Layer = %v, want %v", got.Layer, tc.event.Layer)
			}
			if got.Category != tc.event.Category {
				t.Errorf("Category = %v, want %v", got.Category, tc.event.Category)
			}
			if got.Device != tc.event.Device {
				t.Errorf("Device = %q, want %q", got.Device, tc.event.Device)
			}

			switch {
			case tc.event.Frame != nil:
				if got.Frame == nil {
					t.Fatal("Frame payload lost")
				}
				if got.Frame.Size != tc.event.Frame.Size {
					t.Errorf("Frame.Size = %d, want %d", got.Frame.Size, tc.event.Frame.Size)
				}
				if !bytes.Equal(got.Frame.Data, tc.event.Frame.Data) {
					t.Errorf("Frame.Data = % 02x", got.Frame.Data)
				}
			case tc.event.Message != nil:
				if got.Message == nil {
					t.Fatal("Message payload lost")
				}
				if got.Message.Code != tc.event.Message.Code {
					t.Errorf("Message.Code = %#02x", got.Message.Code)
				}
				if got.Message.Summary != tc.event.Message.Summary {
					t.Errorf("Message.Summary = %q", got.Message.Summary)
				}
				if got.Message.Ack == nil || *got.Message.Ack != *tc.event.Message.Ack {
					t.Errorf("Message.Ack = %v", got.Message.Ack)
				}
			case tc.event.StateChange != nil:
				if got.StateChange == nil {
					t.Fatal("StateChange payload lost")
				}
				if *got.StateChange != *tc.event.StateChange {
					t.Errorf("StateChange = %+v", got.StateChange)
				}
			case tc.event.Error != nil:
				if got.Error == nil {
					t.Fatal("Error payload lost")
				}
				if *got.Error != *tc.event.Error {
					t.Errorf("Error = %+v", got.Error)
				}
			}
		})
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	for i := 0; i < 3; i++ {
		event := Event{
			Timestamp: time.Now().UTC(),
			Link:      "/dev/ttyUSB0",
			Direction: DirectionIn,
			Layer:     LayerWire,
			Category:  CategoryMessage,
			Message:   &MessageEvent{Code: 0x50},
		}
		if err := enc.Encode(event); err != nil {
			t.Fatalf("Encode %d failed: %v", i, err)
		}
	}

	dec := NewDecoder(&buf)
	for i := 0; i < 3; i++ {
		var event Event
		if err := dec.Decode(&event); err != nil {
			t.Fatalf("Decode %d failed: %v", i, err)
		}
		if event.Message == nil || event.Message.Code != 0x50 {
			t.Errorf("event %d Message = %+v", i, event.Message)
		}
	}
}
