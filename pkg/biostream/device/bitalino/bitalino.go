// Package bitalino drives BITalino (r)evolution boards over a serial
// transport using the vendor's single-byte command protocol.
package bitalino

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opensignals/biostream/pkg/biostream/device"
	"github.com/opensignals/biostream/pkg/biostream/transfer"
	"github.com/opensignals/biostream/pkg/biostream/transport"
	"github.com/opensignals/biostream/pkg/biostream/types"
)

const (
	cmdStop    = 0x00
	cmdLive    = 0x01
	cmdSimACK  = 0x02
	cmdVersion = 0x07
	cmdState   = 0x0B

	// Battery ADC counts corresponding to the 3.4V (empty) and 3.8V (full)
	// pack voltages.
	batteryEmpty = 511
	batteryFull  = 639

	maxRate = 1000
)

var supportedRates = map[int]byte{
	1:    0,
	10:   1,
	100:  2,
	1000: 3,
}

// Default sensor layout of the BITalino Board, ports A1-A6.
var boardLayout = []types.SensorClass{
	types.SensorEMG,
	types.SensorECG,
	types.SensorEDA,
	types.SensorEEG,
	types.SensorACT,
	types.SensorLUX,
}

type BITalinoDevice struct {
	transport transport.Transport
	r         *bufio.Reader
	logger    zerolog.Logger

	channels  []types.Channel
	ports     []int
	info      device.Info
	simulated bool
	crcErrors uint64

	stopped bool
}

// Dial connects to a board and reads its version string. ports selects the
// analog channels (1-based, A1-A6); empty enables all six.
func Dial(address string, ports []int, logger zerolog.Logger) (*BITalinoDevice, error) {
	t, err := transport.OpenSerial(address)
	if err != nil {
		return nil, err
	}
	d, err := NewWithTransport(t, ports, logger)
	if err != nil {
		t.Close()
		return nil, err
	}
	return d, nil
}

// NewWithTransport runs the handshake over an already-open transport.
func NewWithTransport(t transport.Transport, ports []int, logger zerolog.Logger) (*BITalinoDevice, error) {
	if len(ports) == 0 {
		ports = []int{1, 2, 3, 4, 5, 6}
	}
	if len(ports) > 6 {
		return nil, fmt.Errorf("at most 6 analog channels, got %d", len(ports))
	}

	d := &BITalinoDevice{
		transport: t,
		r:         bufio.NewReaderSize(t, 1024),
		logger:    logger,
		ports:     ports,
	}

	for i, port := range ports {
		if port < 1 || port > 6 {
			return nil, fmt.Errorf("analog channel %d out of range 1-6", port)
		}
		// The first four channels in a frame are 10-bit, the rest 6-bit;
		// readLoop scales both to the 16-bit range.
		fullScale := int32(1023 << 6)
		if i >= 4 {
			fullScale = 63 << 10
		}
		class := boardLayout[port-1]
		d.channels = append(d.channels, types.Channel{
			Port:      port,
			Class:     class,
			Label:     class.String(),
			Unit:      transfer.UnitFor(class),
			FullScale: fullScale,
		})
	}

	if err := t.Flush(); err != nil {
		return nil, fmt.Errorf("flush transport: %w", err)
	}

	if err := d.handshake(); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	return d, nil
}

// Simulated switches the board to synthesized-waveform mode on the next
// Start, which the firmware provides for testing without electrodes.
func (d *BITalinoDevice) Simulated(simulated bool) {
	d.simulated = simulated
}

func (d *BITalinoDevice) handshake() error {
	if _, err := d.transport.Write([]byte{cmdVersion}); err != nil {
		return err
	}
	version, err := d.r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	version = strings.TrimSpace(version)

	battery, err := d.queryBattery()
	if err != nil {
		// Older firmware has no state frame; the version string is enough.
		d.logger.Debug().Err(err).Msg("state query unsupported")
		battery = 0
	}

	d.info = device.Info{
		Name:            version,
		FirmwareVersion: versionNumber(version),
		HardwareVersion: "BITalino",
		BatteryPercent:  battery,
	}
	return nil
}

// versionNumber pulls the numeric part out of strings like "BITalino_v5.2".
func versionNumber(version string) string {
	if i := strings.LastIndex(version, "_v"); i >= 0 {
		return version[i+2:]
	}
	return version
}

func (d *BITalinoDevice) queryBattery() (int, error) {
	if _, err := d.transport.Write([]byte{cmdState}); err != nil {
		return 0, err
	}
	state := make([]byte, 16)
	if _, err := io.ReadFull(d.r, state); err != nil {
		return 0, err
	}
	if crc4(state) != state[len(state)-1]&0x0F {
		return 0, errCRC
	}

	raw := int(state[0]) | int(state[1])<<8
	percent := (raw - batteryEmpty) * 100 / (batteryFull - batteryEmpty)
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return percent, nil
}

func (d *BITalinoDevice) Start(ctx context.Context, rate int, frames chan<- *types.SampleFrame) error {
	rateCode, ok := supportedRates[rate]
	if !ok {
		return fmt.Errorf("rate %d not supported, must be one of 1, 10, 100, 1000", rate)
	}

	if _, err := d.transport.Write([]byte{rateCode<<6 | 0x03}); err != nil {
		return fmt.Errorf("set sampling rate: %w", err)
	}

	var chBits byte
	for _, port := range d.ports {
		chBits |= 1 << uint(port-1)
	}
	mode := byte(cmdLive)
	if d.simulated {
		mode = cmdSimACK
	}
	if _, err := d.transport.Write([]byte{mode | chBits<<2}); err != nil {
		return fmt.Errorf("start acquisition: %w", err)
	}

	return d.readLoop(ctx, frames)
}

func (d *BITalinoDevice) readLoop(ctx context.Context, frames chan<- *types.SampleFrame) error {
	numChannels := len(d.channels)
	frameLen := FrameLen(numChannels)
	buf := make([]byte, frameLen)

	var (
		counter  uint32
		lastSeq  byte
		haveSeq  bool
		occupied int
	)

	for {
		if _, err := io.ReadFull(d.r, buf[occupied:]); err != nil {
			if ctx.Err() != nil || d.stopped {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		occupied = 0

		decoded, err := decodeFrame(buf, numChannels)
		if errors.Is(err, errCRC) {
			// Byte slip: discard the oldest byte and refill one.
			d.crcErrors++
			copy(buf, buf[1:])
			occupied = frameLen - 1
			continue
		}
		if err != nil {
			return err
		}

		if haveSeq {
			counter += uint32(decoded.seq-lastSeq) & 0x0F
		} else {
			haveSeq = true
		}
		lastSeq = decoded.seq

		// The first four channels in a frame are 10-bit, the rest 6-bit.
		// Scale everything to the 16-bit range the transfer functions use.
		for i := range decoded.analog {
			if i < 4 {
				decoded.analog[i] <<= 6
			} else {
				decoded.analog[i] <<= 10
			}
		}

		frame := &types.SampleFrame{
			Counter:  counter,
			Values:   decoded.analog,
			Received: time.Now(),
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case frames <- frame:
		}
	}
}

func (d *BITalinoDevice) Stop() error {
	d.stopped = true
	if _, err := d.transport.Write([]byte{cmdStop}); err != nil {
		d.transport.Close()
		return err
	}
	return d.transport.Close()
}

// MaxRate is 1000 Hz for any channel count; the board's allowed rates are
// 1, 10, 100 and 1000 Hz.
func (d *BITalinoDevice) MaxRate(numChannels int) int {
	return maxRate
}

func (d *BITalinoDevice) Channels() []types.Channel {
	return d.channels
}

func (d *BITalinoDevice) Info() device.Info {
	return d.info
}

// CRCErrors reports the number of corrupt frames seen since connect.
func (d *BITalinoDevice) CRCErrors() uint64 {
	return d.crcErrors
}
