package transport

import (
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"
)

const (
	defaultBaudRate    = 115200
	defaultReadTimeout = 2 * time.Second
)

var macAddressPattern = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)

// SerialTransport talks to the device over a serial port, which on most
// systems is an RFCOMM tty bound to the device's Bluetooth address.
type SerialTransport struct {
	port serial.Port
	path string
}

// OpenSerial opens the serial port behind the given address. Accepted forms:
// a Bluetooth MAC (xx:xx:xx:xx:xx:xx, resolved to the bound rfcomm tty on
// Linux), COMx on Windows, or a plain device path such as
// /dev/cu.biosignalsplux-Bluetoot on macOS.
func OpenSerial(address string) (*SerialTransport, error) {
	path, err := resolveAddress(address)
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: defaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w (if the device was never bonded, pair it first with PIN %s)", path, err, PairingCode)
	}

	if err := port.SetReadTimeout(defaultReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", path, err)
	}

	return &SerialTransport{port: port, path: path}, nil
}

func resolveAddress(address string) (string, error) {
	if address == "" {
		return "", fmt.Errorf("empty device address")
	}

	if macAddressPattern.MatchString(address) {
		if runtime.GOOS != "linux" {
			return "", fmt.Errorf("bluetooth address %s: direct MAC addressing requires a bound rfcomm tty, use the serial port path instead", address)
		}
		// rfcomm bindings are conventionally numbered; assume the first.
		return "/dev/rfcomm0", nil
	}

	if strings.HasPrefix(strings.ToUpper(address), "COM") {
		return address, nil
	}

	return address, nil
}

func (s *SerialTransport) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil {
		return n, err
	}
	if n == 0 {
		return 0, fmt.Errorf("read %s: timed out waiting for device data", s.path)
	}
	return n, nil
}

func (s *SerialTransport) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialTransport) Flush() error {
	return s.port.ResetInputBuffer()
}

func (s *SerialTransport) Close() error {
	return s.port.Close()
}

// Path returns the resolved device path.
func (s *SerialTransport) Path() string {
	return s.path
}

// ListPorts enumerates serial ports that look like biosignal hardware.
// Vendor ttys carry recognizable names on macOS and Linux; on other
// platforms every port is returned and the caller probes them.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, p := range ports {
		lower := strings.ToLower(p)
		if strings.Contains(lower, "biosignalsplux") ||
			strings.Contains(lower, "bitalino") ||
			strings.Contains(lower, "rfcomm") {
			matched = append(matched, p)
		}
	}
	if len(matched) == 0 {
		return ports, nil
	}
	return matched, nil
}
