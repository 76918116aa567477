package replay

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensignals/biostream/pkg/biostream/types"
)

func Test_captureRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.bsrc")

	channels := []types.Channel{
		{Port: 1, Class: types.SensorECG},
		{Port: 3, Class: types.SensorEDA},
	}

	w, err := NewWriter(path, 1000, channels)
	if err != nil {
		t.Fatalf("NewWriter() error = %v", err)
	}
	for i := 0; i < 50; i++ {
		frame := &types.SampleFrame{
			Counter: uint32(i),
			Values:  []int32{int32(1000 + i), int32(2000 + i)},
		}
		if err := w.WriteFrame(frame); err != nil {
			t.Fatalf("WriteFrame() error = %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer d.Stop()

	if d.Rate() != 1000 {
		t.Errorf("rate = %d, want 1000", d.Rate())
	}
	got := d.Channels()
	if len(got) != 2 {
		t.Fatalf("channels = %d, want 2", len(got))
	}
	if got[0].Port != 1 || got[0].Class != types.SensorECG || got[0].Unit != "mV" {
		t.Errorf("channel 0 = %+v", got[0])
	}
	if got[1].Port != 3 || got[1].Class != types.SensorEDA || got[1].Unit != "uS" {
		t.Errorf("channel 1 = %+v", got[1])
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	frames := make(chan *types.SampleFrame, 64)
	err = d.Start(ctx, 0, frames)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Start() error = %v, want io.EOF", err)
	}
	close(frames)

	var n uint32
	for frame := range frames {
		if frame.Counter != n {
			t.Fatalf("frame %d counter = %d", n, frame.Counter)
		}
		if frame.Values[0] != int32(1000+n) || frame.Values[1] != int32(2000+n) {
			t.Fatalf("frame %d values = %v", n, frame.Values)
		}
		n++
	}
	if n != 50 {
		t.Errorf("replayed %d frames, want 50", n)
	}
}

func Test_openRejectsForeignFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("definitely not a capture file"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Open() accepted a non-capture file")
	}
}
