// Package quality scores incoming signal blocks per channel: electrode
// saturation, flatlined inputs, and mains interference picked up at 50 or
// 60 Hz.
package quality

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

const (
	adcMax = 1<<16 - 1

	// Variance below this (in normalized full-scale units) counts as a
	// flat line.
	flatlineVariance = 1e-8

	// Mains power above this share of total spectral power flags the
	// channel as hum-contaminated.
	humThreshold = 0.25
)

// Report is the per-channel result for one block.
type Report struct {
	SaturationRatio float64 `json:"saturation_ratio"`
	Flatline        bool    `json:"flatline"`
	MainsRatio      float64 `json:"mains_ratio"`
	MainsHum        bool    `json:"mains_hum"`
}

// Assess scores one channel's raw samples from a block sampled at rate Hz.
// fullScale is the channel's largest representable count; devices with
// coarser ADCs report scaled counts that never reach the 16-bit rail, so
// the caller must pass the channel's own ceiling. Zero selects the full
// 16-bit range.
func Assess(raw []int32, fullScale int32, rate int) Report {
	var rep Report
	if len(raw) == 0 {
		return rep
	}

	ceiling := fullScale
	if ceiling <= 0 {
		ceiling = adcMax
	}

	normalized := make([]float64, len(raw))
	saturated := 0
	for i, v := range raw {
		if v <= 0 || v >= ceiling {
			saturated++
		}
		normalized[i] = float64(v) / float64(ceiling)
	}
	rep.SaturationRatio = float64(saturated) / float64(len(raw))

	mean := 0.0
	for _, v := range normalized {
		mean += v
	}
	mean /= float64(len(normalized))

	variance := 0.0
	for i, v := range normalized {
		d := v - mean
		variance += d * d
		normalized[i] = d
	}
	variance /= float64(len(normalized))
	rep.Flatline = variance < flatlineVariance

	if rep.Flatline || rate <= 0 {
		return rep
	}

	rep.MainsRatio = mainsRatio(normalized, rate)
	rep.MainsHum = rep.MainsRatio > humThreshold
	return rep
}

// mainsRatio returns the share of spectral power within one bin of 50 or
// 60 Hz (and their second harmonics). The input must be mean-free.
func mainsRatio(samples []float64, rate int) float64 {
	if len(samples) < 2 {
		return 0
	}

	spectrum := fft.FFTReal(samples)
	half := len(spectrum) / 2
	binWidth := float64(rate) / float64(len(samples))

	var total float64
	power := make([]float64, half)
	for i := 1; i < half; i++ {
		power[i] = math.Pow(cmplx.Abs(spectrum[i]), 2)
		total += power[i]
	}
	if total == 0 {
		return 0
	}

	var mains float64
	for _, freq := range []float64{50, 60, 100, 120} {
		center := int(math.Round(freq / binWidth))
		for bin := center - 1; bin <= center+1; bin++ {
			if bin >= 1 && bin < half {
				mains += power[bin]
				power[bin] = 0
			}
		}
	}

	return mains / total
}
