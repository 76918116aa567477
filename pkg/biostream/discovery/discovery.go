// Package discovery locates biosignal acquisition hardware when no address
// is configured, first over a BLE scan and then by serial port enumeration.
package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"tinygo.org/x/bluetooth"

	"github.com/opensignals/biostream/pkg/biostream/transport"
)

// Known advertised names, matched as prefixes of the BLE local name.
var vendorNames = []string{
	"biosignalsplux",
	"BITalino",
	"bitalino",
}

// Result is a discovered device.
type Result struct {
	Address string
	Name    string
	RSSI    int16
}

// Scanner discovers nearby devices.
type Scanner struct {
	adapter *bluetooth.Adapter
	timeout time.Duration
	logger  zerolog.Logger
}

func NewScanner(timeout time.Duration, logger zerolog.Logger) *Scanner {
	return &Scanner{
		adapter: bluetooth.DefaultAdapter,
		timeout: timeout,
		logger:  logger,
	}
}

// Scan runs a BLE scan until a vendor device is seen or the timeout expires.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	if err := s.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
	}

	found := make(chan *Result, 1)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	go func() {
		<-ctx.Done()
		s.adapter.StopScan()
	}()

	err := s.adapter.Scan(func(adapter *bluetooth.Adapter, device bluetooth.ScanResult) {
		name := device.LocalName()
		if !isVendorName(name) {
			return
		}
		s.logger.Debug().
			Str("name", name).
			Str("address", device.Address.String()).
			Int16("rssi", device.RSSI).
			Msg("found device")

		select {
		case found <- &Result{
			Address: device.Address.String(),
			Name:    name,
			RSSI:    device.RSSI,
		}:
		default:
		}
		adapter.StopScan()
	})
	if err != nil {
		return nil, fmt.Errorf("ble scan: %w", err)
	}

	select {
	case res := <-found:
		return res, nil
	default:
		return nil, fmt.Errorf("no device found after %s", s.timeout)
	}
}

// Autodetect returns the address of the first device found, preferring the
// BLE scan and falling back to serial port enumeration.
func (s *Scanner) Autodetect(ctx context.Context) (string, error) {
	res, err := s.Scan(ctx)
	if err == nil {
		return res.Address, nil
	}
	s.logger.Debug().Err(err).Msg("ble scan failed, trying serial ports")

	ports, portErr := transport.ListPorts()
	if portErr != nil || len(ports) == 0 {
		return "", fmt.Errorf("no device found")
	}
	return ports[0], nil
}

func isVendorName(name string) bool {
	for _, vendor := range vendorNames {
		if strings.HasPrefix(name, vendor) {
			return true
		}
	}
	return false
}
