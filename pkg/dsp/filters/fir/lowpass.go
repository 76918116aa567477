package fir

import (
	"math"
)

func MakeLowPass(gain, sampleRate, cutFrequency, transitionWidth float64, winType WindowType) []float64 {
	nTaps := computeNTaps(sampleRate, transitionWidth, winType)
	var taps = make([]float64, nTaps)
	var w = windowFuncs[winType](nTaps)

	var M = (nTaps - 1) / 2
	var fwT0 = 2 * math.Pi * cutFrequency / sampleRate

	for i := -M; i <= M; i++ {
		if i == 0 {
			taps[i+M] = fwT0 / math.Pi * w[i+M]
		} else {
			fi := float64(i)
			taps[i+M] = math.Sin(fi*fwT0) / (fi * math.Pi) * w[i+M]
		}
	}

	var fmax = taps[0+M]
	for i := 1; i <= M; i++ {
		fmax += 2 * taps[i+M]
	}

	gain /= fmax

	for i := 0; i < nTaps; i++ {
		taps[i] *= gain
	}

	return taps
}
