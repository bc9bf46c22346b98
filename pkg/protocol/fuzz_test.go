package protocol

import "testing"

// FuzzReadData feeds arbitrary byte streams through the framer in
// small chunks. Any input must resync without panicking and without
// retaining more buffered bytes than were fed in.
func FuzzReadData(f *testing.F) {
	// A complete inbound standard message.
	f.Add([]byte{0x02, 0x50, 0x3a, 0x29, 0x84, 0x48, 0x3d, 0x46, 0x0b, 0x11, 0xff})
	// Garbage, then a start byte with a truncated frame.
	f.Add([]byte{0x15, 0xff, 0x00, 0x02, 0x50, 0x3a})
	// Repeated start bytes.
	f.Add([]byte{0x02, 0x02, 0x02, 0x02})
	// Unknown command code after the start byte.
	f.Add([]byte{0x02, 0xee, 0x01, 0x02, 0x03})

	f.Fuzz(func(t *testing.T, data []byte) {
		eng, _, _ := testEngine()
		for i := 0; i < len(data); i += 3 {
			end := i + 3
			if end > len(data) {
				end = len(data)
			}
			eng.ReadData(data[i:end])
		}
		if len(eng.buf) > len(data) {
			t.Fatalf("framer retained %d bytes from a %d byte stream", len(eng.buf), len(data))
		}
	})
}
