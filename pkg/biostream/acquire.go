package biostream

import (
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"

	"github.com/opensignals/biostream/pkg/biostream/quality"
	"github.com/opensignals/biostream/pkg/biostream/types"
	"github.com/opensignals/biostream/pkg/util"
)

// processFrames drains the raw frame channel and cuts a SampleBlock every
// block interval. Frame counters drive both missed-sample detection and
// timestamp reconstruction: sample c is stamped t0 + (c-base)/rate, with t0
// fixed at the first frame's arrival.
func (b *Biostream) processFrames() error {
	tick := time.NewTicker(b.opts.BlockInterval)
	defer tick.Stop()

	var (
		pending     []*types.SampleFrame
		t0          time.Time
		baseCounter uint32
		haveBase    bool
		lastCounter uint32
		missed      int
		blockNum    int
	)

	for {
		select {
		case <-b.ctx.Done():
			return b.ctx.Err()

		case frame := <-b.rawFrameChan:
			if !haveBase {
				t0 = frame.Received
				baseCounter = frame.Counter
				haveBase = true
			} else if gap := int(frame.Counter-lastCounter) - 1; gap > 0 {
				missed += gap
			}
			lastCounter = frame.Counter

			if b.recorder != nil {
				if err := b.recorder.WriteFrame(frame); err != nil {
					return err
				}
			}
			pending = append(pending, frame)

		case <-tick.C:
			if len(pending) == 0 {
				continue
			}
			if missed > 0 {
				b.logger.Warn().Int("missed", missed).Msg("missed sample(s)")
			}

			blockNum++
			var block *types.SampleBlock
			elapsed := util.TimeOperationMicroseconds(func() {
				block = b.assembleBlock(blockNum, pending, t0, baseCounter, missed)
			})

			b.mu.Lock()
			b.frameCount += uint64(len(pending))
			b.missedCount += uint64(missed)
			b.blockCount++
			for i, ch := range block.Channels {
				b.lastQuality[i] = quality.Assess(column(block.Raw, i), ch.FullScale, b.rate)
			}
			b.mu.Unlock()

			go b.writeAPI.WritePoint(influxdb2.NewPoint("acquire.block",
				map[string]string{
					"device": b.device.Info().Name,
				},
				map[string]interface{}{
					"num_samples":     block.NumSamples(),
					"missed":          missed,
					"assemble_micros": elapsed,
				}, time.Now()))

			pending = nil
			missed = 0

			select {
			case <-b.ctx.Done():
				return b.ctx.Err()
			case b.blockChan <- block:
			}
		}
	}
}

func (b *Biostream) assembleBlock(blockNum int, frames []*types.SampleFrame, t0 time.Time, base uint32, missed int) *types.SampleBlock {
	numCh := len(b.channels)

	block := &types.SampleBlock{
		BlockNumber: blockNum,
		Start:       t0.Add(time.Duration(frames[0].Counter-base) * b.delta),
		Rate:        b.rate,
		Channels:    b.channels,
		Timestamps:  make([]time.Time, len(frames)),
		Raw:         make([][]int32, len(frames)),
		Missed:      missed,
	}

	columns := make([][]float64, numCh)
	for c := range columns {
		columns[c] = make([]float64, len(frames))
	}

	for i, frame := range frames {
		block.Timestamps[i] = t0.Add(time.Duration(frame.Counter-base) * b.delta)
		block.Raw[i] = frame.Values
		for c := 0; c < numCh; c++ {
			columns[c][i] = b.transferFuncs[c](float64(frame.Values[c]))
		}
	}

	for c := range columns {
		for _, filter := range b.filters[c] {
			columns[c] = filter.Apply(columns[c])
		}
	}

	for c := range columns {
		if c < len(b.timePlots) {
			b.timePlots[c].Append(columns[c])
			b.spectrumPlots[c].Append(columns[c])
		}
	}

	block.Signal = make([][]float64, len(frames))
	for i := range frames {
		row := make([]float64, numCh)
		for c := 0; c < numCh; c++ {
			row[c] = columns[c][i]
		}
		block.Signal[i] = row
	}

	return block
}

// dispatchBlocks fans finished blocks out to outputs without waiting on any
// of them.
func (b *Biostream) dispatchBlocks() error {
	for {
		select {
		case <-b.ctx.Done():
			return b.ctx.Err()
		case block := <-b.blockChan:

			skippedOutputs := 0
			for _, output := range b.opts.Outputs {
				select {
				case output.Receive() <- block:
					// We will not wait on blocked channels.
				default:
					skippedOutputs++
				}
			}

			if skippedOutputs > 0 {
				b.mu.Lock()
				b.skippedOutput += uint64(skippedOutputs)
				b.mu.Unlock()
			}

			go b.writeAPI.WritePoint(influxdb2.NewPoint("dispatch.block",
				map[string]string{
					"device": b.device.Info().Name,
				},
				map[string]interface{}{
					"num_samples":     block.NumSamples(),
					"skipped_outputs": skippedOutputs,
				}, time.Now()))
		}
	}
}

func column(rows [][]int32, c int) []int32 {
	col := make([]int32, len(rows))
	for i, row := range rows {
		col[i] = row[c]
	}
	return col
}
