package bitalino

import (
	"errors"
	"reflect"
	"testing"
)

func Test_FrameLen(t *testing.T) {
	tests := []struct {
		channels int
		want     int
	}{
		{1, 3},
		{2, 4},
		{3, 6},
		{4, 7},
		{5, 8},
		{6, 8},
	}
	for _, tt := range tests {
		if got := FrameLen(tt.channels); got != tt.want {
			t.Errorf("FrameLen(%d) = %d, want %d", tt.channels, got, tt.want)
		}
	}
}

// encodeFrame6 packs a full six-channel frame, the inverse of decodeFrame.
func encodeFrame6(seq byte, digital byte, analog [6]int32) []byte {
	frame := make([]byte, 8)
	frame[7] = seq << 4
	frame[6] = digital<<4 | byte(analog[0]>>6)&0x0F
	frame[5] = byte(analog[0]&0x3F)<<2 | byte(analog[1]>>8)&0x03
	frame[4] = byte(analog[1])
	frame[3] = byte(analog[2] >> 2)
	frame[2] = byte(analog[2]&0x03)<<6 | byte(analog[3]>>4)&0x3F
	frame[1] = byte(analog[3]&0x0F)<<4 | byte(analog[4]>>2)&0x0F
	frame[0] = byte(analog[4]&0x03)<<6 | byte(analog[5])&0x3F
	frame[7] |= crc4(frame)
	return frame
}

func encodeFrame1(seq byte, digital byte, a1 int32) []byte {
	frame := make([]byte, 3)
	frame[2] = seq << 4
	frame[1] = digital<<4 | byte(a1>>6)&0x0F
	frame[0] = byte(a1&0x3F) << 2
	frame[2] |= crc4(frame)
	return frame
}

func Test_decodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		seq     byte
		digital byte
		analog  [6]int32
	}{
		{"zeros", 0, 0, [6]int32{}},
		{"midscale", 5, 0x0A, [6]int32{512, 512, 512, 512, 32, 32}},
		{"rails", 15, 0x0F, [6]int32{1023, 0, 1023, 0, 63, 0}},
		{"mixed", 9, 0x05, [6]int32{117, 900, 33, 1000, 17, 42}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := encodeFrame6(tt.seq, tt.digital, tt.analog)

			got, err := decodeFrame(frame, 6)
			if err != nil {
				t.Fatalf("decodeFrame() error = %v", err)
			}
			if got.seq != tt.seq {
				t.Errorf("seq = %d, want %d", got.seq, tt.seq)
			}
			wantDigital := [4]byte{tt.digital >> 3 & 1, tt.digital >> 2 & 1, tt.digital >> 1 & 1, tt.digital & 1}
			if got.digital != wantDigital {
				t.Errorf("digital = %v, want %v", got.digital, wantDigital)
			}
			if !reflect.DeepEqual(got.analog, tt.analog[:]) {
				t.Errorf("analog = %v, want %v", got.analog, tt.analog[:])
			}
		})
	}
}

func Test_decodeFrameSingleChannel(t *testing.T) {
	frame := encodeFrame1(3, 0x02, 777)

	got, err := decodeFrame(frame, 1)
	if err != nil {
		t.Fatalf("decodeFrame() error = %v", err)
	}
	if got.seq != 3 {
		t.Errorf("seq = %d, want 3", got.seq)
	}
	if got.analog[0] != 777 {
		t.Errorf("analog[0] = %d, want 777", got.analog[0])
	}
}

func Test_decodeFrameBadCRC(t *testing.T) {
	frame := encodeFrame6(7, 0, [6]int32{100, 200, 300, 400, 50, 60})
	frame[3] ^= 0x40

	if _, err := decodeFrame(frame, 6); !errors.Is(err, errCRC) {
		t.Errorf("decodeFrame() error = %v, want errCRC", err)
	}
}

func Test_decodeFrameWrongLength(t *testing.T) {
	if _, err := decodeFrame(make([]byte, 4), 6); err == nil {
		t.Error("decodeFrame() expected length error")
	}
}
