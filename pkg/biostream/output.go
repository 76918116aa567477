package biostream

import (
	"context"

	"github.com/opensignals/biostream/pkg/biostream/types"
)

// Output handles converted sample blocks.
type Output interface {
	// Start receives a context and should run in a loop, terminating upon ctx closing or on any errors.
	Start(ctx context.Context) error
	// Receive returns a channel that receives sample block input.
	Receive() chan<- *types.SampleBlock
}
