package monitor

import (
	"bytes"
	"math"
	"math/cmplx"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/opensignals/biostream/pkg/dsp/filters/fir"
)

// SpectrumPlotter draws the power spectrum of one channel's recent samples.
type SpectrumPlotter struct {
	mu          sync.Mutex
	buf         []float64
	size        int
	rate        int
	name        string
	plotOptions []PlotOptions
}

func NewSpectrumPlotter(name string, size, rate int) *SpectrumPlotter {
	return &SpectrumPlotter{
		buf:  make([]float64, size),
		size: size,
		rate: rate,
		name: name,
	}
}

func (sp *SpectrumPlotter) Name() string {
	return sp.name
}

// Append shifts new samples into the analysis window.
func (sp *SpectrumPlotter) Append(samples []float64) {
	sp.mu.Lock()
	if len(samples) > sp.size {
		copy(sp.buf, samples[len(samples)-sp.size:])
	} else {
		sp.buf = append(sp.buf, samples...)
		sp.buf = sp.buf[len(samples):]
	}
	sp.mu.Unlock()
}

func (sp *SpectrumPlotter) AddPlotOption(opt PlotOptions) {
	sp.plotOptions = append(sp.plotOptions, opt)
}

func (sp *SpectrumPlotter) GetImage() *ImageContainer {
	sp.mu.Lock()
	data := make([]float64, sp.size)
	copy(data, sp.buf)
	sp.mu.Unlock()

	win := fir.BlackmanWindow(sp.size)
	for i := range data {
		data[i] *= win[i]
	}

	f := fourier.NewFFT(sp.size)
	coeffs := f.Coefficients(nil, data)

	p := plotWithDefaults()
	p.Title.Text = sp.name
	p.Y.Label.Text = "Power (dB)"
	p.X.Label.Text = "Frequency (Hz)"

	for _, opt := range sp.plotOptions {
		opt(p)
	}

	grid := plotter.NewGrid()
	p.Add(grid)

	xys := make(plotter.XYs, 0, len(coeffs))
	for i, c := range coeffs {
		power := 20 * math.Log10(cmplx.Abs(c)/float64(sp.size)+1e-12)
		xys = append(xys, plotter.XY{
			X: f.Freq(i) * float64(sp.rate),
			Y: power,
		})
	}
	if err := plotutil.AddLines(p, sp.name, xys); err != nil {
		return nil
	}

	var imageData bytes.Buffer
	w, err := p.WriterTo(8*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return nil
	}
	w.WriteTo(&imageData)
	return &ImageContainer{name: sp.name, data: imageData.Bytes()}
}
