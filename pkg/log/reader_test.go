package log

import (
	"io"
	"path/filepath"
	"testing"
	"time"
)

func writeTestLog(t *testing.T, path string, events []Event) {
	t.Helper()
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
}

func TestReaderReadsAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ilog")
	now := time.Now().UTC()

	writeTestLog(t, path, []Event{
		{Timestamp: now, Link: "/dev/ttyUSB0", Direction: DirectionIn,
			Layer: LayerWire, Category: CategoryMessage,
			Message: &MessageEvent{Code: 0x50}},
		{Timestamp: now.Add(time.Second), Link: "tcp://broker:1883",
			Direction: DirectionOut, Layer: LayerTransport,
			Category: CategoryMessage, Frame: &FrameEvent{Size: 42}},
	})

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	var got []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		got = append(got, event)
	}

	if len(got) != 2 {
		t.Fatalf("got %d events, want 2", len(got))
	}
	if got[0].Link != "/dev/ttyUSB0" || got[1].Link != "tcp://broker:1883" {
		t.Errorf("links = %q, %q", got[0].Link, got[1].Link)
	}
}

func TestReaderFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ilog")
	now := time.Now().UTC()

	in := DirectionIn
	wire := LayerWire

	writeTestLog(t, path, []Event{
		{Timestamp: now, Link: "/dev/ttyUSB0", Direction: DirectionIn,
			Layer: LayerWire, Category: CategoryMessage, Device: "48.3d.46"},
		{Timestamp: now, Link: "/dev/ttyUSB0", Direction: DirectionOut,
			Layer: LayerWire, Category: CategoryMessage, Device: "48.3d.46"},
		{Timestamp: now, Link: "tcp://broker:1883", Direction: DirectionIn,
			Layer: LayerTransport, Category: CategoryMessage},
		{Timestamp: now, Link: "/dev/ttyUSB0", Direction: DirectionIn,
			Layer: LayerWire, Category: CategoryMessage, Device: "3a.29.84"},
	})

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"all", Filter{}, 4},
		{"by link", Filter{Link: "/dev/ttyUSB0"}, 3},
		{"by direction", Filter{Direction: &in}, 3},
		{"by layer", Filter{Layer: &wire}, 3},
		{"by device", Filter{Device: "48.3d.46"}, 2},
		{"combined", Filter{Direction: &in, Device: "48.3d.46"}, 1},
		{"no match", Filter{Link: "/dev/ttyS9"}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			reader, err := NewFilteredReader(path, tc.filter)
			if err != nil {
				t.Fatalf("NewFilteredReader failed: %v", err)
			}
			defer reader.Close()

			count := 0
			for {
				if _, err := reader.Next(); err != nil {
					break
				}
				count++
			}
			if count != tc.want {
				t.Errorf("got %d events, want %d", count, tc.want)
			}
		})
	}
}

func TestReaderTimeFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.ilog")
	base := time.Now().UTC()

	writeTestLog(t, path, []Event{
		{Timestamp: base},
		{Timestamp: base.Add(10 * time.Second)},
		{Timestamp: base.Add(20 * time.Second)},
	})

	start := base.Add(5 * time.Second)
	end := base.Add(15 * time.Second)

	reader, err := NewFilteredReader(path, Filter{TimeStart: &start, TimeEnd: &end})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		if _, err := reader.Next(); err != nil {
			break
		}
		count++
	}
	if count != 1 {
		t.Errorf("got %d events in window, want 1", count)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.ilog")); err == nil {
		t.Error("expected error for missing file")
	}
}
