package plux

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"
)

func Test_messageRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		kind    byte
		payload []byte
	}{
		{"empty", msgStop, nil},
		{"start", msgStart, []byte{0xE8, 0x03, 0x00, 0x00, 0x0F, 0x00, 0x10}},
		{"data", msgData, []byte{1, 0, 0, 0, 0x34, 0x12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := newDecoder(bytes.NewReader(encodeMessage(tt.kind, tt.payload)))

			msg, err := dec.next()
			if err != nil {
				t.Fatalf("next() error = %v", err)
			}
			if msg.kind != tt.kind {
				t.Errorf("kind = 0x%02x, want 0x%02x", msg.kind, tt.kind)
			}
			want := tt.payload
			if want == nil {
				want = []byte{}
			}
			if !reflect.DeepEqual(msg.payload, want) {
				t.Errorf("payload = %v, want %v", msg.payload, want)
			}
		})
	}
}

func Test_decoderResync(t *testing.T) {
	var stream bytes.Buffer
	stream.Write([]byte{0x00, 0xFF, 0x55, 0x12, 0xAA})
	stream.Write(encodeMessage(msgData, []byte{9, 0, 0, 0, 1, 2}))

	dec := newDecoder(&stream)
	msg, err := dec.next()
	if err != nil {
		t.Fatalf("next() error = %v", err)
	}
	if msg.kind != msgData {
		t.Errorf("kind = 0x%02x, want msgData", msg.kind)
	}
}

func Test_decoderBadCRC(t *testing.T) {
	corrupt := encodeMessage(msgData, []byte{9, 0, 0, 0, 1, 2})
	corrupt[len(corrupt)-1] ^= 0xFF

	var stream bytes.Buffer
	stream.Write(corrupt)
	stream.Write(encodeMessage(msgStop, nil))

	dec := newDecoder(&stream)
	if _, err := dec.next(); !errors.Is(err, errBadCRC) {
		t.Fatalf("next() error = %v, want errBadCRC", err)
	}
	if dec.crcErrors != 1 {
		t.Errorf("crcErrors = %d, want 1", dec.crcErrors)
	}

	msg, err := dec.next()
	if err != nil {
		t.Fatalf("next() after corrupt frame error = %v", err)
	}
	if msg.kind != msgStop {
		t.Errorf("kind = 0x%02x, want msgStop", msg.kind)
	}
}

func Test_decodeDataFrame(t *testing.T) {
	payload := make([]byte, 0, 10)
	payload = binary.LittleEndian.AppendUint32(payload, 42)
	for _, v := range []uint16{100, 65535, 0} {
		payload = binary.LittleEndian.AppendUint16(payload, v)
	}

	counter, values, err := decodeDataFrame(payload, 3)
	if err != nil {
		t.Fatalf("decodeDataFrame() error = %v", err)
	}
	if counter != 42 {
		t.Errorf("counter = %d, want 42", counter)
	}
	if !reflect.DeepEqual(values, []int32{100, 65535, 0}) {
		t.Errorf("values = %v, want [100 65535 0]", values)
	}

	if _, _, err := decodeDataFrame(payload, 4); err == nil {
		t.Error("decodeDataFrame() expected length error for channel mismatch")
	}
}

func Test_decodeProperties(t *testing.T) {
	payload := []byte{4, 'h', 'u', 'b', '1', 0x01, 0x02, 0x03, 0x04, 87}

	props, err := decodeProperties(payload)
	if err != nil {
		t.Fatalf("decodeProperties() error = %v", err)
	}
	want := &properties{uid: "hub1", fwVersion: 0x0102, hwVersion: 0x0304, battery: 87}
	if !reflect.DeepEqual(props, want) {
		t.Errorf("properties = %+v, want %+v", props, want)
	}
}

func Test_decodeSensorTable(t *testing.T) {
	table, err := decodeSensorTable([]byte{1, 2, 3, 4})
	if err != nil {
		t.Fatalf("decodeSensorTable() error = %v", err)
	}
	if !reflect.DeepEqual(table, map[int]int{1: 2, 3: 4}) {
		t.Errorf("table = %v", table)
	}

	if _, err := decodeSensorTable([]byte{1, 2, 3}); err == nil {
		t.Error("decodeSensorTable() expected error for odd payload")
	}
}
