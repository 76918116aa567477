// Package replay plays back capture files written during a live session,
// so the full pipeline can run without hardware attached.
package replay

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/opensignals/biostream/pkg/biostream/device"
	"github.com/opensignals/biostream/pkg/biostream/transfer"
	"github.com/opensignals/biostream/pkg/biostream/types"
)

// Capture file layout: magic, version, recorded rate, channel table, then a
// flat run of frames (counter u32 LE + one u16 LE count per channel).
var magic = [4]byte{'B', 'S', 'R', 'C'}

const (
	formatVersion = 1
	tickInterval  = 10 * time.Millisecond
)

// Writer records frames during acquisition.
type Writer struct {
	w *bufio.Writer
	f *os.File
	n int
}

func NewWriter(path string, rate int, channels []types.Channel) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	w := bufio.NewWriterSize(f, 1<<16)
	header := make([]byte, 0, 10+2*len(channels))
	header = append(header, magic[:]...)
	header = append(header, formatVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(rate))
	header = append(header, byte(len(channels)))
	for _, ch := range channels {
		header = append(header, byte(ch.Port), byte(ch.Class))
	}
	if _, err := w.Write(header); err != nil {
		f.Close()
		return nil, err
	}

	return &Writer{w: w, f: f}, nil
}

func (w *Writer) WriteFrame(frame *types.SampleFrame) error {
	buf := make([]byte, 0, 4+2*len(frame.Values))
	buf = binary.LittleEndian.AppendUint32(buf, frame.Counter)
	for _, v := range frame.Values {
		buf = binary.LittleEndian.AppendUint16(buf, uint16(v))
	}
	if _, err := w.w.Write(buf); err != nil {
		return err
	}
	w.n++
	return nil
}

func (w *Writer) Close() error {
	if err := w.w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// ReplayDevice implements device.Device over a capture file.
type ReplayDevice struct {
	r        io.ReadCloser
	br       *bufio.Reader
	rate     int
	channels []types.Channel
}

func Open(path string) (*ReplayDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	d, err := NewFromReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return d, nil
}

// NewFromReader parses the capture header from an arbitrary stream.
func NewFromReader(r io.ReadCloser) (*ReplayDevice, error) {
	br := bufio.NewReaderSize(r, 1<<16)

	header := make([]byte, 10)
	if _, err := io.ReadFull(br, header); err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}
	if string(header[:4]) != string(magic[:]) {
		return nil, fmt.Errorf("not a capture file")
	}
	if header[4] != formatVersion {
		return nil, fmt.Errorf("capture format version %d not supported", header[4])
	}

	rate := int(binary.LittleEndian.Uint32(header[5:]))
	numChannels := int(header[9])
	if numChannels == 0 {
		return nil, fmt.Errorf("capture has no channels")
	}

	table := make([]byte, 2*numChannels)
	if _, err := io.ReadFull(br, table); err != nil {
		return nil, fmt.Errorf("read channel table: %w", err)
	}

	channels := make([]types.Channel, numChannels)
	for i := 0; i < numChannels; i++ {
		class := types.ClassFromID(int(table[2*i+1]))
		channels[i] = types.Channel{
			Port:  int(table[2*i]),
			Class: class,
			Label: class.String(),
			Unit:  transfer.UnitFor(class),
		}
	}

	return &ReplayDevice{r: r, br: br, rate: rate, channels: channels}, nil
}

// Rate returns the sampling rate the capture was recorded at.
func (d *ReplayDevice) Rate() int {
	return d.rate
}

func (d *ReplayDevice) Start(ctx context.Context, rate int, frames chan<- *types.SampleFrame) error {
	if rate == 0 {
		rate = d.rate
	}

	perTick := rate * int(tickInterval) / int(time.Second)
	if perTick < 1 {
		perTick = 1
	}

	tick := time.NewTicker(tickInterval)
	defer tick.Stop()

	frameLen := 4 + 2*len(d.channels)
	buf := make([]byte, frameLen)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			for i := 0; i < perTick; i++ {
				if _, err := io.ReadFull(d.br, buf); err != nil {
					if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
						return io.EOF
					}
					return err
				}

				values := make([]int32, len(d.channels))
				for c := range values {
					values[c] = int32(binary.LittleEndian.Uint16(buf[4+2*c:]))
				}

				frame := &types.SampleFrame{
					Counter:  binary.LittleEndian.Uint32(buf),
					Values:   values,
					Received: time.Now(),
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				case frames <- frame:
				}
			}
		}
	}
}

func (d *ReplayDevice) Stop() error {
	return d.r.Close()
}

func (d *ReplayDevice) MaxRate(numChannels int) int {
	return d.rate
}

func (d *ReplayDevice) Channels() []types.Channel {
	return d.channels
}

func (d *ReplayDevice) Info() device.Info {
	return device.Info{Name: "replay", FirmwareVersion: "-", HardwareVersion: "-"}
}
