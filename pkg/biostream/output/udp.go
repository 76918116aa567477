package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/opensignals/biostream/pkg/biostream/config"
	"github.com/opensignals/biostream/pkg/biostream/types"
)

const receiveBuffer = 8

// SignalBlockUDPOutput streams encoded sample blocks to one or more UDP
// destinations, each datagram prefixed with a uint16 payload length.
type SignalBlockUDPOutput struct {
	dests    []config.OutputDestination
	recvChan chan *types.SampleBlock
	metrics  api.WriteAPI
}

func NewSignalBlockUDPOutput(dests []config.OutputDestination, metrics api.WriteAPI) *SignalBlockUDPOutput {
	return &SignalBlockUDPOutput{
		dests:    dests,
		recvChan: make(chan *types.SampleBlock, receiveBuffer),
		metrics:  metrics,
	}
}

func (s *SignalBlockUDPOutput) Receive() chan<- *types.SampleBlock {
	return s.recvChan
}

func (s *SignalBlockUDPOutput) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		log.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("stream output starting")
	}

	eg.Go(func() error {
		conn, err := net.ListenUDP("udp", nil)
		if err != nil {
			return err
		}
		defer conn.Close()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case block := <-s.recvChan:

				encoded := EncodeBlock(block)
				if len(encoded) > 0xFFFF {
					log.Warn().Int("bytes", len(encoded)).Msg("block too large for datagram, dropping")
					continue
				}

				var msgBuf bytes.Buffer
				if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
					log.Warn().Err(err).Msg("error encoding header size")
					continue
				}
				if _, err := msgBuf.Write(encoded); err != nil {
					log.Warn().Err(err).Msg("error writing encoded message")
					continue
				}

				success := true
				var bytesWritten int
				for _, destAddr := range destAddrs {
					bytesWritten, err = conn.WriteToUDP(msgBuf.Bytes(), destAddr)
					if err != nil {
						log.Error().Err(err).Msg("error writing")
						success = false
					}
				}

				go s.metrics.WritePoint(influxdb2.NewPoint("stream.sent_block",
					map[string]string{
						"channels": strconv.Itoa(len(block.Channels)),
					},
					map[string]interface{}{
						"bytes_written":  bytesWritten,
						"num_samples":    block.NumSamples(),
						"encoded_length": len(encoded),
						"sent": func() int {
							if success {
								return 1
							}
							return 0
						}(),
						"dropped": func() int {
							if success {
								return 0
							}
							return 1
						}(),
					}, time.Now()))
			}
		}
	})

	return eg.Wait()
}
