package device

import (
	"context"
	"fmt"

	"github.com/opensignals/biostream/pkg/biostream/types"
)

// Device is a source of sample frames. Start blocks, pushing decoded frames
// into the supplied channel until the context closes or the device fails.
type Device interface {
	Start(ctx context.Context, rate int, frames chan<- *types.SampleFrame) error
	Stop() error

	// MaxRate returns the highest supported sampling rate in Hz for the
	// given number of enabled channels.
	MaxRate(numChannels int) int

	// Channels describes the enabled channels, in wire order.
	Channels() []types.Channel

	Info() Info
}

// Info holds device identity as reported during the handshake.
type Info struct {
	Name            string
	FirmwareVersion string
	HardwareVersion string
	BatteryPercent  int
}

func (i Info) String() string {
	return fmt.Sprintf("%s fw=%s hw=%s battery=%d%%",
		i.Name, i.FirmwareVersion, i.HardwareVersion, i.BatteryPercent)
}

// maxRates indexes the highest sampling rate by enabled channel count; entry
// zero is a placeholder so the table is addressed directly by count.
var maxRates = []int{0, 8000, 5000, 4000, 3000, 3000, 2000, 2000, 2000}

// MaxRateForChannelCount returns the hub rate limit for a channel count, or
// 0 for counts outside the supported range.
func MaxRateForChannelCount(n int) int {
	if n <= 0 || n >= len(maxRates) {
		return 0
	}
	return maxRates[n]
}
