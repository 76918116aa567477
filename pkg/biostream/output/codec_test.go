package output

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/opensignals/biostream/pkg/biostream/types"
)

func testBlock() *types.SampleBlock {
	start := time.Unix(1700000000, 123456789)
	return &types.SampleBlock{
		BlockNumber: 7,
		Start:       start,
		Rate:        1000,
		Channels: []types.Channel{
			{Port: 1, Class: types.SensorECG, Label: "ECG", Unit: "mV"},
			{Port: 2, Class: types.SensorEDA, Label: "EDA", Unit: "uS"},
		},
		Timestamps: []time.Time{start, start.Add(time.Millisecond)},
		Raw:        [][]int32{{100, 200}, {300, 400}},
		Signal:     [][]float64{{0.5, 1.25}, {-0.5, 2.5}},
	}
}

func Test_EncodeBlockHeader(t *testing.T) {
	block := testBlock()
	encoded := EncodeBlock(block)

	header, offset, err := DecodeBlockHeader(encoded)
	if err != nil {
		t.Fatalf("DecodeBlockHeader() error = %v", err)
	}

	if header.BlockNumber != 7 {
		t.Errorf("block number = %d, want 7", header.BlockNumber)
	}
	if header.StartNanos != block.Start.UnixNano() {
		t.Errorf("start = %d, want %d", header.StartNanos, block.Start.UnixNano())
	}
	if header.Rate != 1000 {
		t.Errorf("rate = %d, want 1000", header.Rate)
	}
	if header.NumChannels != 2 || header.NumSamples != 2 {
		t.Errorf("dims = %dx%d, want 2x2", header.NumSamples, header.NumChannels)
	}

	if want := offset + 4*2*2; len(encoded) != want {
		t.Fatalf("encoded length = %d, want %d", len(encoded), want)
	}

	want := []float32{0.5, 1.25, -0.5, 2.5}
	for i, w := range want {
		bits := binary.LittleEndian.Uint32(encoded[offset+4*i:])
		if got := math.Float32frombits(bits); got != w {
			t.Errorf("sample %d = %v, want %v", i, got, w)
		}
	}
}

func Test_DecodeBlockHeaderRejectsGarbage(t *testing.T) {
	if _, _, err := DecodeBlockHeader([]byte("short")); err == nil {
		t.Error("expected error for truncated block")
	}

	encoded := EncodeBlock(testBlock())
	encoded[0] = 'X'
	if _, _, err := DecodeBlockHeader(encoded); err == nil {
		t.Error("expected error for bad magic")
	}
}
