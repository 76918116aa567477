package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"golang.org/x/sync/errgroup"

	"github.com/opensignals/biostream/pkg/biostream"
	"github.com/opensignals/biostream/pkg/biostream/config"
	"github.com/opensignals/biostream/pkg/biostream/device"
	"github.com/opensignals/biostream/pkg/biostream/device/bitalino"
	"github.com/opensignals/biostream/pkg/biostream/device/plux"
	"github.com/opensignals/biostream/pkg/biostream/device/replay"
	"github.com/opensignals/biostream/pkg/biostream/discovery"
	"github.com/opensignals/biostream/pkg/biostream/output"
	"github.com/opensignals/biostream/pkg/monitor"
)

const defaultScanTimeout = 10 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "biostream.yaml", "YAML config file")

	flag.Parse()
	if configFile == nil {
		flag.Usage()
		os.Exit(1)
	}

	configContents, err := os.ReadFile(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error reading config file")
	}
	var opts config.Config
	if err := yaml.Unmarshal(configContents, &opts); err != nil {
		log.Fatal().Err(err).Msg("error unmarshaling yaml file")
	}

	var dev device.Device

	if opts.PlaybackLocation != "" {
		opts.Device = "replay"
	}

	address := opts.Address
	if address == "" && opts.Device != "replay" {
		timeout := opts.ScanTimeout
		if timeout == 0 {
			timeout = defaultScanTimeout
		}
		log.Info().Dur("timeout", timeout).Msg("no address configured, scanning...")
		scanner := discovery.NewScanner(timeout, log.Logger)
		address, err = scanner.Autodetect(context.Background())
		if err != nil {
			log.Fatal().Err(err).Msg("no device found")
		}
		log.Info().Str("address", address).Msg("found device")
	}

	switch opts.Device {
	case "replay":
		log.Info().Str("device", "replay").Str("file", opts.PlaybackLocation).Msg("initializing device...")
		replayDev, err := replay.Open(opts.PlaybackLocation)
		if err != nil {
			log.Fatal().Str("device", "replay").Err(err).Msg("failed to open capture file")
		}
		dev = replayDev
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	case "bitalino":
		log.Info().Str("device", "bitalino").Msg("initializing device...")
		board, err := bitalino.Dial(address, opts.Channels, log.Logger)
		if err != nil {
			log.Fatal().Str("device", "bitalino").Err(err).Msg("failed to connect to BITalino")
		}
		board.Simulated(opts.Simulated)
		dev = board
	default:
		log.Info().Str("device", "plux").Msg("initializing device...")
		dev, err = plux.Dial(address, log.Logger)
		if err != nil {
			log.Fatal().Str("device", "plux").Err(err).Msg("failed to connect to hub")
		}
	}

	log.Info().Stringer("info", dev.Info()).Msg("connected")

	monitorSrv := monitor.NewServer(opts.Monitor.Port, opts.Monitor.UpdateInterval)

	influxWriteAPI := influxdb2.NewClient(opts.InfluxDB.Host, "").WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)

	var outputs []biostream.Output
	if len(opts.OutputDestinations) > 0 {
		outputs = append(outputs, output.NewSignalBlockUDPOutput(opts.OutputDestinations, influxWriteAPI))
	}
	if opts.CSVLocation != "" {
		recorder, err := output.NewCSVRecorder(opts.CSVLocation)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create CSV recorder")
		}
		outputs = append(outputs, recorder)
	}

	bs, err := biostream.New(dev,
		biostream.Options{
			Rate:           opts.Rate,
			BlockInterval:  opts.BlockInterval,
			Filters:        opts.Filters,
			Outputs:        outputs,
			RecordLocation: opts.RecordLocation,
		}, biostream.WithInfluxDB(
			influxWriteAPI,
		),
		biostream.WithMonitor(monitorSrv),
		biostream.WithLogger(log.Logger))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create acquisition engine")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {

		select {
		case <-sigChan:
		case <-ctx.Done():
		}

		return bs.Stop()
	})

	eg.Go(func() error {
		return bs.Start(ctx)
	})

	if err := eg.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("exited program")
	}
}
