package fir

import "math"

func MakeBandPass(gain, sampleRate, lowCut, highCut, transitionWidth float64, winType WindowType) []float64 {
	var nTaps = computeNTaps(sampleRate, transitionWidth, winType)
	winFunc := windowFuncs[winType]
	var taps = make([]float64, nTaps)
	var w = winFunc(nTaps)

	var M = (nTaps - 1) / 2

	var fwT0 = 2 * math.Pi * lowCut / sampleRate
	var fwT1 = 2 * math.Pi * highCut / sampleRate

	for i := -M; i <= M; i++ {
		fi := float64(i)
		if i == 0 {
			taps[i+M] = (fwT1 - fwT0) / math.Pi * w[i+M]
		} else {
			taps[i+M] = (math.Sin(fi*fwT1) - math.Sin(fi*fwT0)) /
				(fi * math.Pi) *
				w[i+M]
		}
	}

	var fmax = taps[0+M]
	for i := 1; i <= M; i++ {
		fi := float64(i)
		fmax += 2 * taps[i+M] * math.Cos(fi*(fwT0+fwT1)*0.5)
	}

	gain /= fmax

	for i := 0; i < nTaps; i++ {
		taps[i] *= gain
	}

	return taps
}

// MakeBandReject builds a notch by spectrally inverting a band pass with the
// same corners; the stop band straddles [lowCut, highCut].
func MakeBandReject(gain, sampleRate, lowCut, highCut, transitionWidth float64, winType WindowType) []float64 {
	taps := MakeBandPass(1.0, sampleRate, lowCut, highCut, transitionWidth, winType)

	for i := range taps {
		taps[i] = -taps[i] * gain
	}
	taps[(len(taps)-1)/2] += gain

	return taps
}
