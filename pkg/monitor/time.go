package monitor

import (
	"bytes"
	"sync"

	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// TimeDomainPlotter draws the most recent stretch of one channel's signal.
type TimeDomainPlotter struct {
	mu          sync.Mutex
	buf         []float64
	size        int
	name        string
	unit        string
	rate        int
	plotOptions []PlotOptions
}

func NewTimeDomainPlotter(name, unit string, rate, size int) *TimeDomainPlotter {
	return &TimeDomainPlotter{
		size: size,
		name: name,
		unit: unit,
		rate: rate,
	}
}

func (tp *TimeDomainPlotter) Name() string {
	return tp.name
}

// Append adds converted samples, keeping only the trailing window.
func (tp *TimeDomainPlotter) Append(samples []float64) {
	tp.mu.Lock()
	tp.buf = append(tp.buf, samples...)
	if len(tp.buf) > tp.size {
		tp.buf = tp.buf[len(tp.buf)-tp.size:]
	}
	tp.mu.Unlock()
}

func (tp *TimeDomainPlotter) AddPlotOption(opt PlotOptions) {
	tp.plotOptions = append(tp.plotOptions, opt)
}

func (tp *TimeDomainPlotter) GetImage() *ImageContainer {
	tp.mu.Lock()
	data := make([]float64, len(tp.buf))
	copy(data, tp.buf)
	tp.mu.Unlock()

	if len(data) < tp.size/2 {
		return nil
	}

	p := plotWithDefaults()

	p.Title.Text = tp.name
	p.Y.Label.Text = tp.unit
	p.X.Label.Text = "t (s)"

	for _, opt := range tp.plotOptions {
		opt(p)
	}

	grid := plotter.NewGrid()
	p.Add(grid)

	xys := make(plotter.XYs, len(data))
	for i, v := range data {
		xys[i] = plotter.XY{X: float64(i) / float64(tp.rate), Y: v}
	}
	if err := plotutil.AddLines(p, tp.name, xys); err != nil {
		return nil
	}

	var imageData bytes.Buffer
	w, err := p.WriterTo(8*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return nil
	}
	w.WriteTo(&imageData)
	return &ImageContainer{name: tp.name, data: imageData.Bytes()}
}
