package bitalino

import (
	"errors"
	"fmt"
)

// BITalino frames are packed back to front. The final byte carries the 4-bit
// sequence number in its high nibble and a CRC4 (poly x^4+x+1) in the low
// nibble; the CRC covers the whole frame with the CRC nibble zeroed. The
// next byte holds the four digital inputs in its high nibble. Channels A1-A4
// are 10-bit samples, A5 and A6 are 6-bit.
var errCRC = errors.New("crc mismatch")

// FrameLen returns the frame size in bytes for n enabled analog channels.
func FrameLen(n int) int {
	if n <= 4 {
		return (12 + 10*n + 7) / 8
	}
	return (52 + 6*(n-4) + 7) / 8
}

// crc4 runs the whole frame, with the CRC nibble masked off, through the
// x^4+x+1 polynomial.
func crc4(frame []byte) byte {
	var x byte
	process := func(b byte) {
		for bit := 7; bit >= 0; bit-- {
			x <<= 1
			if x&0x10 != 0 {
				x ^= 0x03
			}
			x ^= (b >> uint(bit)) & 0x01
		}
	}
	for _, b := range frame[:len(frame)-1] {
		process(b)
	}
	process(frame[len(frame)-1] & 0xF0)
	return x & 0x0F
}

// decodedFrame is one acquisition frame after unpacking.
type decodedFrame struct {
	seq     byte
	digital [4]byte
	analog  []int32
}

func decodeFrame(frame []byte, numChannels int) (*decodedFrame, error) {
	if len(frame) != FrameLen(numChannels) {
		return nil, fmt.Errorf("frame length %d, want %d for %d channel(s)", len(frame), FrameLen(numChannels), numChannels)
	}

	last := frame[len(frame)-1]
	if crc4(frame) != last&0x0F {
		return nil, errCRC
	}

	d := &decodedFrame{
		seq:    last >> 4,
		analog: make([]int32, numChannels),
	}

	at := func(back int) int32 {
		return int32(frame[len(frame)-back])
	}

	d.digital[0] = byte(at(2)>>7) & 0x01
	d.digital[1] = byte(at(2)>>6) & 0x01
	d.digital[2] = byte(at(2)>>5) & 0x01
	d.digital[3] = byte(at(2)>>4) & 0x01

	if numChannels > 0 {
		d.analog[0] = (at(2)&0x0F)<<6 | at(3)>>2
	}
	if numChannels > 1 {
		d.analog[1] = (at(3)&0x03)<<8 | at(4)
	}
	if numChannels > 2 {
		d.analog[2] = at(5)<<2 | at(6)>>6
	}
	if numChannels > 3 {
		d.analog[3] = (at(6)&0x3F)<<4 | at(7)>>4
	}
	if numChannels > 4 {
		d.analog[4] = (at(7)&0x0F)<<2 | at(8)>>6
	}
	if numChannels > 5 {
		d.analog[5] = at(8) & 0x3F
	}

	return d, nil
}
