package output

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/opensignals/biostream/pkg/biostream/types"
)

// Wire layout of a streamed block, all little endian after the magic:
//
//	"BSTM" | version u8 | block u32 | t0 unix-nanos i64 | rate u32 |
//	channels u8 | samples u32 | signal float32 x (samples*channels)
//
// Samples are row-major, one row per sample instant.
const blockMagic = "BSTM"
const blockVersion = 1

// BlockHeader is the decoded fixed part of a streamed block.
type BlockHeader struct {
	BlockNumber uint32
	StartNanos  int64
	Rate        uint32
	NumChannels uint8
	NumSamples  uint32
}

const headerLen = 4 + 1 + 4 + 8 + 4 + 1 + 4

// EncodeBlock serializes a block for the wire.
func EncodeBlock(block *types.SampleBlock) []byte {
	numSamples := block.NumSamples()
	numChannels := len(block.Channels)

	buf := bytes.NewBuffer(make([]byte, 0, headerLen+4*numSamples*numChannels))
	buf.WriteString(blockMagic)
	buf.WriteByte(blockVersion)
	binary.Write(buf, binary.LittleEndian, uint32(block.BlockNumber))
	binary.Write(buf, binary.LittleEndian, block.Start.UnixNano())
	binary.Write(buf, binary.LittleEndian, uint32(block.Rate))
	buf.WriteByte(byte(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(numSamples))

	for _, row := range block.Signal {
		for _, v := range row {
			binary.Write(buf, binary.LittleEndian, float32(v))
		}
	}

	return buf.Bytes()
}

// DecodeBlockHeader parses the fixed header, returning it and the payload
// offset.
func DecodeBlockHeader(data []byte) (*BlockHeader, int, error) {
	if len(data) < headerLen {
		return nil, 0, fmt.Errorf("block too short: %d bytes", len(data))
	}
	if string(data[:4]) != blockMagic {
		return nil, 0, fmt.Errorf("bad block magic")
	}
	if data[4] != blockVersion {
		return nil, 0, fmt.Errorf("block version %d not supported", data[4])
	}

	h := &BlockHeader{
		BlockNumber: binary.LittleEndian.Uint32(data[5:]),
		StartNanos:  int64(binary.LittleEndian.Uint64(data[9:])),
		Rate:        binary.LittleEndian.Uint32(data[17:]),
		NumChannels: data[21],
		NumSamples:  binary.LittleEndian.Uint32(data[22:]),
	}
	return h, headerLen, nil
}
