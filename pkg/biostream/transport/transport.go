package transport

import (
	"io"
)

// PairingCode is the fixed Bluetooth PIN used by both Plux and BITalino
// hardware when bonding for the first time.
const PairingCode = "123"

// Transport is a byte stream to the device. Implementations must be safe to
// Close concurrently with a blocked Read.
type Transport interface {
	io.ReadWriteCloser

	// Flush discards any buffered input so the next Read starts at fresh
	// device output.
	Flush() error
}
