package plux

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Wire framing for the hub: every message is
//
//	0x55 0xAA | type u8 | length u16 LE | payload | crc8
//
// with the CRC computed over type, length and payload. The hub streams data
// frames continuously once acquisition starts; control responses use the
// same envelope.
const (
	sync1 = 0x55
	sync2 = 0xAA

	msgProperties = 0x01
	msgSensors    = 0x02
	msgStart      = 0x03
	msgStop       = 0x04
	msgBattery    = 0x05
	msgData       = 0x10

	maxPayloadLen = 512
)

var (
	errBadCRC     = errors.New("crc mismatch")
	errShortFrame = errors.New("short frame")
)

// crc8 implements the CRC-8/ATM polynomial 0x07, MSB first.
func crc8(data []byte) byte {
	var crc byte
	for _, b := range data {
		crc ^= b
		for i := 0; i < 8; i++ {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x07
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

type message struct {
	kind    byte
	payload []byte
}

func encodeMessage(kind byte, payload []byte) []byte {
	buf := make([]byte, 0, 6+len(payload))
	buf = append(buf, sync1, sync2, kind)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(payload)))
	buf = append(buf, payload...)
	buf = append(buf, crc8(buf[2:]))
	return buf
}

// decoder reads messages off the transport, resynchronizing on the next
// sync pair after garbage or a failed CRC.
type decoder struct {
	r         *bufio.Reader
	crcErrors uint64
}

func newDecoder(r io.Reader) *decoder {
	return &decoder{r: bufio.NewReaderSize(r, 4096)}
}

func (d *decoder) next() (*message, error) {
	if err := d.sync(); err != nil {
		return nil, err
	}

	header := make([]byte, 3)
	if _, err := io.ReadFull(d.r, header); err != nil {
		return nil, err
	}

	length := binary.LittleEndian.Uint16(header[1:])
	if int(length) > maxPayloadLen {
		// Almost certainly a false sync inside the data stream.
		d.crcErrors++
		return nil, errShortFrame
	}

	body := make([]byte, int(length)+1)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return nil, err
	}

	payload := body[:length]
	check := make([]byte, 0, 3+len(payload))
	check = append(check, header...)
	check = append(check, payload...)
	if crc8(check) != body[length] {
		d.crcErrors++
		return nil, errBadCRC
	}

	return &message{kind: header[0], payload: payload}, nil
}

// sync slides the reader forward until it has consumed a 0x55 0xAA pair.
func (d *decoder) sync() error {
	var prev byte
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		if prev == sync1 && b == sync2 {
			return nil
		}
		prev = b
	}
}

func encodeStart(rate uint32, mask uint16, resolution uint8) []byte {
	payload := make([]byte, 0, 7)
	payload = binary.LittleEndian.AppendUint32(payload, rate)
	payload = binary.LittleEndian.AppendUint16(payload, mask)
	payload = append(payload, resolution)
	return encodeMessage(msgStart, payload)
}

func decodeDataFrame(payload []byte, numChannels int) (uint32, []int32, error) {
	want := 4 + 2*numChannels
	if len(payload) != want {
		return 0, nil, fmt.Errorf("%w: data payload %d bytes, want %d", errShortFrame, len(payload), want)
	}
	counter := binary.LittleEndian.Uint32(payload)
	values := make([]int32, numChannels)
	for i := 0; i < numChannels; i++ {
		values[i] = int32(binary.LittleEndian.Uint16(payload[4+2*i:]))
	}
	return counter, values, nil
}

type properties struct {
	uid       string
	fwVersion uint16
	hwVersion uint16
	battery   int
}

func decodeProperties(payload []byte) (*properties, error) {
	if len(payload) < 1 {
		return nil, errShortFrame
	}
	uidLen := int(payload[0])
	if len(payload) < 1+uidLen+5 {
		return nil, errShortFrame
	}
	p := &properties{uid: string(payload[1 : 1+uidLen])}
	rest := payload[1+uidLen:]
	p.fwVersion = binary.BigEndian.Uint16(rest)
	p.hwVersion = binary.BigEndian.Uint16(rest[2:])
	p.battery = int(rest[4])
	return p, nil
}

// decodeSensorTable parses (port, class) pairs, one per attached sensor.
func decodeSensorTable(payload []byte) (map[int]int, error) {
	if len(payload)%2 != 0 {
		return nil, errShortFrame
	}
	table := make(map[int]int, len(payload)/2)
	for i := 0; i < len(payload); i += 2 {
		table[int(payload[i])] = int(payload[i+1])
	}
	return table, nil
}
