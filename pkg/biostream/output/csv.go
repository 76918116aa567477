package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/opensignals/biostream/pkg/biostream/types"
)

const flushInterval = time.Second

// CSVRecorder writes converted samples to a CSV file, one row per sample
// with an RFC 3339 timestamp column first.
type CSVRecorder struct {
	w          *csv.Writer
	closer     io.Closer
	recvChan   chan *types.SampleBlock
	wroteHeads bool
}

func NewCSVRecorder(path string) (*CSVRecorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &CSVRecorder{
		w:        csv.NewWriter(f),
		closer:   f,
		recvChan: make(chan *types.SampleBlock, receiveBuffer),
	}, nil
}

// NewCSVRecorderTo writes to an arbitrary writer; used by tests.
func NewCSVRecorderTo(w io.Writer) *CSVRecorder {
	return &CSVRecorder{
		w:        csv.NewWriter(w),
		recvChan: make(chan *types.SampleBlock, receiveBuffer),
	}
}

func (c *CSVRecorder) Receive() chan<- *types.SampleBlock {
	return c.recvChan
}

func (c *CSVRecorder) Start(ctx context.Context) error {
	tick := time.NewTicker(flushInterval)
	defer tick.Stop()

	defer func() {
		c.w.Flush()
		if c.closer != nil {
			c.closer.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			c.w.Flush()
			if err := c.w.Error(); err != nil {
				return err
			}
		case block := <-c.recvChan:
			if err := c.writeBlock(block); err != nil {
				return err
			}
		}
	}
}

func (c *CSVRecorder) writeBlock(block *types.SampleBlock) error {
	if !c.wroteHeads {
		heads := make([]string, 0, len(block.Channels)+1)
		heads = append(heads, "timestamp")
		for _, ch := range block.Channels {
			heads = append(heads, fmt.Sprintf("%s_%d (%s)", ch.Label, ch.Port, ch.Unit))
		}
		if err := c.w.Write(heads); err != nil {
			return err
		}
		c.wroteHeads = true
	}

	row := make([]string, len(block.Channels)+1)
	for i, signal := range block.Signal {
		row[0] = block.Timestamps[i].Format(time.RFC3339Nano)
		for j, v := range signal {
			row[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := c.w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
