// Package plux drives biosignalsplux hubs over a serial transport.
package plux

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/opensignals/biostream/pkg/biostream/device"
	"github.com/opensignals/biostream/pkg/biostream/transfer"
	"github.com/opensignals/biostream/pkg/biostream/transport"
	"github.com/opensignals/biostream/pkg/biostream/types"
)

const defaultResolution = 16

type PluxDevice struct {
	transport transport.Transport
	dec       *decoder
	logger    zerolog.Logger

	channels []types.Channel
	mask     uint16
	info     device.Info

	stopped bool
}

// Dial connects to the hub at the given address and runs the handshake:
// device properties followed by the attached-sensor table.
func Dial(address string, logger zerolog.Logger) (*PluxDevice, error) {
	t, err := transport.OpenSerial(address)
	if err != nil {
		return nil, err
	}
	d, err := NewWithTransport(t, logger)
	if err != nil {
		t.Close()
		return nil, err
	}
	return d, nil
}

// NewWithTransport runs the handshake over an already-open transport.
func NewWithTransport(t transport.Transport, logger zerolog.Logger) (*PluxDevice, error) {
	d := &PluxDevice{
		transport: t,
		dec:       newDecoder(t),
		logger:    logger,
	}

	if err := t.Flush(); err != nil {
		return nil, fmt.Errorf("flush transport: %w", err)
	}

	if err := d.handshake(); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}
	return d, nil
}

func (d *PluxDevice) handshake() error {
	props, err := d.queryProperties()
	if err != nil {
		return err
	}
	d.info = device.Info{
		Name:            props.uid,
		FirmwareVersion: fmt.Sprintf("%d.%d", props.fwVersion>>8, props.fwVersion&0xFF),
		HardwareVersion: fmt.Sprintf("%d.%d", props.hwVersion>>8, props.hwVersion&0xFF),
		BatteryPercent:  props.battery,
	}

	table, err := d.querySensors()
	if err != nil {
		return err
	}
	if len(table) == 0 {
		return fmt.Errorf("no sensors attached")
	}

	ports := make([]int, 0, len(table))
	for port := range table {
		ports = append(ports, port)
	}
	sort.Ints(ports)

	d.mask = 0
	d.channels = d.channels[:0]
	for _, port := range ports {
		class := types.ClassFromID(table[port])
		d.mask |= uint16(1) << uint(port-1)
		d.channels = append(d.channels, types.Channel{
			Port:      port,
			Class:     class,
			Label:     class.String(),
			Unit:      transfer.UnitFor(class),
			FullScale: 1<<defaultResolution - 1,
		})
	}
	return nil
}

func (d *PluxDevice) queryProperties() (*properties, error) {
	if _, err := d.transport.Write(encodeMessage(msgProperties, nil)); err != nil {
		return nil, err
	}
	msg, err := d.awaitResponse(msgProperties)
	if err != nil {
		return nil, err
	}
	return decodeProperties(msg.payload)
}

func (d *PluxDevice) querySensors() (map[int]int, error) {
	if _, err := d.transport.Write(encodeMessage(msgSensors, nil)); err != nil {
		return nil, err
	}
	msg, err := d.awaitResponse(msgSensors)
	if err != nil {
		return nil, err
	}
	return decodeSensorTable(msg.payload)
}

// awaitResponse reads messages until one of the wanted kind arrives,
// skipping stale data frames left over from a previous session.
func (d *PluxDevice) awaitResponse(kind byte) (*message, error) {
	for attempts := 0; attempts < 64; attempts++ {
		msg, err := d.dec.next()
		if errors.Is(err, errBadCRC) || errors.Is(err, errShortFrame) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if msg.kind == kind {
			return msg, nil
		}
	}
	return nil, fmt.Errorf("no response for message type 0x%02x", kind)
}

func (d *PluxDevice) Start(ctx context.Context, rate int, frames chan<- *types.SampleFrame) error {
	if rate <= 0 || rate > d.MaxRate(len(d.channels)) {
		return fmt.Errorf("rate %d out of range for %d channel(s)", rate, len(d.channels))
	}

	if _, err := d.transport.Write(encodeStart(uint32(rate), d.mask, defaultResolution)); err != nil {
		return fmt.Errorf("start acquisition: %w", err)
	}

	numChannels := len(d.channels)
	for {
		msg, err := d.dec.next()
		if errors.Is(err, errBadCRC) || errors.Is(err, errShortFrame) {
			d.logger.Warn().Err(err).Uint64("crc_errors", d.dec.crcErrors).Msg("dropping corrupt frame")
			continue
		}
		if err != nil {
			if ctx.Err() != nil || d.stopped {
				return ctx.Err()
			}
			return fmt.Errorf("read frame: %w", err)
		}
		if msg.kind != msgData {
			continue
		}

		counter, values, err := decodeDataFrame(msg.payload, numChannels)
		if err != nil {
			d.logger.Warn().Err(err).Msg("dropping malformed data frame")
			continue
		}

		frame := &types.SampleFrame{
			Counter:  counter,
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

func (d *PluxDevice) Stop() error {
	d.stopped = true
	if _, err := d.transport.Write(encodeMessage(msgStop, nil)); err != nil {
		d.transport.Close()
		return err
	}
	return d.transport.Close()
}

func (d *PluxDevice) MaxRate(numChannels int) int {
	return device.MaxRateForChannelCount(numChannels)
}

func (d *PluxDevice) Channels() []types.Channel {
	return d.channels
}

func (d *PluxDevice) Info() device.Info {
	return d.info
}

// CRCErrors reports the number of corrupt frames seen since connect.
func (d *PluxDevice) CRCErrors() uint64 {
	return d.dec.crcErrors
}
