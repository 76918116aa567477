package fir

// Filter applies a tap set to a sample stream, carrying the last nTaps-1
// input samples across calls so block boundaries do not distort the output.
type Filter struct {
	taps    []float64
	history []float64
}

func NewFilter(taps []float64) *Filter {
	return &Filter{
		taps:    taps,
		history: make([]float64, len(taps)-1),
	}
}

// NumTaps returns the filter order plus one.
func (f *Filter) NumTaps() int {
	return len(f.taps)
}

// Apply filters the block in place and returns it.
func (f *Filter) Apply(samples []float64) []float64 {
	n := len(f.taps)
	if n == 0 || len(samples) == 0 {
		return samples
	}

	padded := make([]float64, len(f.history)+len(samples))
	copy(padded, f.history)
	copy(padded[len(f.history):], samples)

	copy(f.history, padded[len(padded)-len(f.history):])

	for i := range samples {
		var acc float64
		for j := 0; j < n; j++ {
			acc += f.taps[j] * padded[i+n-1-j]
		}
		samples[i] = acc
	}
	return samples
}

// Reset clears the carried history.
func (f *Filter) Reset() {
	for i := range f.history {
		f.history[i] = 0
	}
}
