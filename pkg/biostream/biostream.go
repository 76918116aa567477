package biostream

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/influxdata/influxdb-client-go/api"
	"golang.org/x/sync/errgroup"

	"github.com/opensignals/biostream/pkg/biostream/config"
	"github.com/opensignals/biostream/pkg/biostream/device"
	"github.com/opensignals/biostream/pkg/biostream/device/replay"
	"github.com/opensignals/biostream/pkg/biostream/quality"
	"github.com/opensignals/biostream/pkg/biostream/transfer"
	"github.com/opensignals/biostream/pkg/biostream/types"
	"github.com/opensignals/biostream/pkg/dsp/filters/fir"
	"github.com/opensignals/biostream/pkg/monitor"
	"github.com/opensignals/biostream/pkg/util"
)

const (
	defaultBlockInterval = 100 * time.Millisecond
	rawFrameBuffer       = 1024
	plotWindowSeconds    = 4
)

type Options struct {
	// Rate in Hz; 0 selects the device maximum for the enabled channels.
	Rate          int
	BlockInterval time.Duration
	Filters       []config.FilterSpec
	Outputs       []Output

	// RecordLocation, when set, captures decoded frames for later replay.
	RecordLocation string
}

type Biostream struct {
	device       device.Device
	opts         Options
	writeAPI     api.WriteAPI
	rawFrameChan chan *types.SampleFrame
	blockChan    chan *types.SampleBlock
	monitorSrv   *monitor.Server
	logger       zerolog.Logger
	recorder     *replay.Writer

	rate          int
	delta         time.Duration
	channels      []types.Channel
	transferFuncs []transfer.Func
	filters       [][]*fir.Filter

	timePlots     []*monitor.TimeDomainPlotter
	spectrumPlots []*monitor.SpectrumPlotter

	mu            sync.RWMutex
	started       time.Time
	frameCount    uint64
	missedCount   uint64
	blockCount    uint64
	skippedOutput uint64
	lastQuality   []quality.Report

	cancel context.CancelFunc
	ctx    context.Context
}

type BiostreamOption func(b *Biostream) error

func WithInfluxDB(influxClient api.WriteAPI) BiostreamOption {
	return func(b *Biostream) error {
		b.writeAPI = influxClient
		return nil
	}
}

func WithMonitor(srv *monitor.Server) BiostreamOption {
	return func(b *Biostream) error {
		b.monitorSrv = srv
		return nil
	}
}

func WithLogger(logger zerolog.Logger) BiostreamOption {
	return func(b *Biostream) error {
		b.logger = logger
		return nil
	}
}

func New(dev device.Device, options Options, opts ...BiostreamOption) (*Biostream, error) {
	b := &Biostream{
		device:       dev,
		opts:         options,
		writeAPI:     &util.MockWriteAPI{}, // overwritten with option
		rawFrameChan: make(chan *types.SampleFrame, rawFrameBuffer),
		blockChan:    make(chan *types.SampleBlock),
		logger:       log.Logger,
		cancel:       func() {}, // replaced in Start; Stop may race it
	}

	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}

	b.channels = dev.Channels()
	if len(b.channels) == 0 {
		return nil, fmt.Errorf("device reports no channels")
	}

	maxRate := dev.MaxRate(len(b.channels))
	b.rate = options.Rate
	if b.rate == 0 {
		b.rate = maxRate
		b.logger.Info().Int("rate", b.rate).Msg("setting rate to device maximum")
	}
	if b.rate > maxRate {
		return nil, fmt.Errorf("rate %d > device max rate %d for %d channel(s)", b.rate, maxRate, len(b.channels))
	}
	b.delta = time.Second / time.Duration(b.rate)

	if b.opts.BlockInterval == 0 {
		b.opts.BlockInterval = defaultBlockInterval
	}

	for _, ch := range b.channels {
		b.transferFuncs = append(b.transferFuncs, transfer.ForClass(ch.Class))
	}

	if err := b.buildFilters(); err != nil {
		return nil, err
	}

	b.lastQuality = make([]quality.Report, len(b.channels))

	if b.monitorSrv != nil {
		b.registerPlots()
	}

	return b, nil
}

func (b *Biostream) buildFilters() error {
	b.filters = make([][]*fir.Filter, len(b.channels))
	for _, spec := range b.opts.Filters {
		taps, err := tapsForSpec(spec, float64(b.rate))
		if err != nil {
			return err
		}
		for i, ch := range b.channels {
			if spec.Port != 0 && spec.Port != ch.Port {
				continue
			}
			b.filters[i] = append(b.filters[i], fir.NewFilter(taps))
		}
	}
	return nil
}

func tapsForSpec(spec config.FilterSpec, rate float64) ([]float64, error) {
	transition := spec.Transition
	if transition == 0 {
		transition = 2.0
	}
	switch strings.ToLower(spec.Type) {
	case "lowpass":
		return fir.MakeLowPass(1.0, rate, spec.High, transition, fir.Hamming), nil
	case "highpass":
		return fir.MakeHighPass(1.0, rate, spec.Low, transition, fir.Hamming), nil
	case "bandpass":
		return fir.MakeBandPass(1.0, rate, spec.Low, spec.High, transition, fir.Hamming), nil
	case "notch":
		return fir.MakeBandReject(1.0, rate, spec.Low, spec.High, transition, fir.Hamming), nil
	default:
		return nil, fmt.Errorf("unrecognized filter type: %s", spec.Type)
	}
}

func (b *Biostream) registerPlots() {
	window := plotWindowSeconds * b.rate
	spectrumLen := 512
	if b.rate < spectrumLen {
		spectrumLen = b.rate
	}

	for _, ch := range b.channels {
		name := fmt.Sprintf("%02d. %s", ch.Port, ch.Label)
		tp := monitor.NewTimeDomainPlotter(name, ch.Unit, b.rate, window)
		sp := monitor.NewSpectrumPlotter(name+" spectrum", spectrumLen, b.rate)
		b.monitorSrv.Register("signals", tp)
		b.monitorSrv.Register("spectra", sp)
		b.timePlots = append(b.timePlots, tp)
		b.spectrumPlots = append(b.spectrumPlots, sp)
	}
}

// Rate returns the effective sampling rate in Hz.
func (b *Biostream) Rate() int {
	return b.rate
}

// Channels returns the enabled channel descriptors.
func (b *Biostream) Channels() []types.Channel {
	return b.channels
}

func (b *Biostream) Stop() error {
	b.cancel()
	if b.monitorSrv != nil {
		b.monitorSrv.Stop(context.TODO())
	}
	return b.device.Stop()
}

func (b *Biostream) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.mu.Lock()
	b.started = time.Now()
	b.mu.Unlock()

	if b.opts.RecordLocation != "" {
		rec, err := replay.NewWriter(b.opts.RecordLocation, b.rate, b.channels)
		if err != nil {
			return fmt.Errorf("open capture file: %w", err)
		}
		b.recorder = rec
	}

	eg.Go(func() error {
		return b.device.Start(b.ctx, b.rate, b.rawFrameChan)
	})

	if b.monitorSrv != nil {
		b.monitorSrv.SetStatusFunc(b.statusSnapshot)
		eg.Go(func() error {
			return b.monitorSrv.Run(b.ctx)
		})
	}

	eg.Go(b.processFrames)
	eg.Go(b.dispatchBlocks)

	for _, output := range b.opts.Outputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(b.ctx)
		})
	}

	info := b.device.Info()
	log.Info().
		Str("device", info.Name).
		Str("firmware", info.FirmwareVersion).
		Int("battery", info.BatteryPercent).
		Int("rate", b.rate).
		Int("channels", len(b.channels)).
		Msg("Starting")

	err := eg.Wait()
	if b.recorder != nil {
		if closeErr := b.recorder.Close(); err == nil {
			err = closeErr
		}
	}
	return err
}

// Status is the snapshot served by the monitor's /status endpoint.
type Status struct {
	Device   string          `json:"device"`
	Firmware string          `json:"firmware"`
	Hardware string          `json:"hardware"`
	Battery  int             `json:"battery_percent"`
	Rate     int             `json:"rate"`
	Uptime   string          `json:"uptime"`
	Channels []ChannelStatus `json:"channels"`
	Frames   uint64          `json:"frames"`
	Missed   uint64          `json:"missed"`
	Blocks   uint64          `json:"blocks"`
	Skipped  uint64          `json:"skipped_outputs"`
}

type ChannelStatus struct {
	Port    int            `json:"port"`
	Label   string         `json:"label"`
	Unit    string         `json:"unit"`
	Quality quality.Report `json:"quality"`
}

func (b *Biostream) statusSnapshot() interface{} {
	info := b.device.Info()

	b.mu.RLock()
	defer b.mu.RUnlock()

	st := Status{
		Device:   info.Name,
		Firmware: info.FirmwareVersion,
		Hardware: info.HardwareVersion,
		Battery:  info.BatteryPercent,
		Rate:     b.rate,
		Uptime:   time.Since(b.started).Truncate(time.Second).String(),
		Frames:   b.frameCount,
		Missed:   b.missedCount,
		Blocks:   b.blockCount,
		Skipped:  b.skippedOutput,
	}
	for i, ch := range b.channels {
		st.Channels = append(st.Channels, ChannelStatus{
			Port:    ch.Port,
			Label:   ch.Label,
			Unit:    ch.Unit,
			Quality: b.lastQuality[i],
		})
	}
	return st
}
