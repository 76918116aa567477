package fir

import (
	"math"
	"testing"
)

func sliceEqualFloat64(f1, f2 []float64, epsilon float64) bool {
	if len(f1) != len(f2) {
		return false
	}
	for i := 0; i < len(f1); i++ {
		if math.Abs(f1[i]-f2[i]) > epsilon {
			return false
		}
	}
	return true
}

func TestHammingWindow(t *testing.T) {
	w := HammingWindow(11)

	if math.Abs(w[0]-0.08) > 1e-9 || math.Abs(w[10]-0.08) > 1e-9 {
		t.Errorf("endpoints = %v, %v, want 0.08", w[0], w[10])
	}
	if math.Abs(w[5]-1.0) > 1e-9 {
		t.Errorf("center = %v, want 1.0", w[5])
	}
}

func TestMakeLowPassUnityDCGain(t *testing.T) {
	windows := []struct {
		name string
		typ  WindowType
	}{
		{"hamming", Hamming},
		{"hann", Hann},
		{"blackman", Blackman},
		{"blackman harris", BlackmanHarris},
	}
	for _, tt := range windows {
		t.Run(tt.name, func(t *testing.T) {
			taps := MakeLowPass(1.0, 1000, 40, 10, tt.typ)

			if len(taps)%2 != 1 {
				t.Fatalf("tap count %d, want odd", len(taps))
			}

			var sum float64
			for _, tap := range taps {
				sum += tap
			}
			if math.Abs(sum-1.0) > 1e-9 {
				t.Errorf("DC gain = %v, want 1.0", sum)
			}
		})
	}
}

func TestMakeHighPassUnityNyquistGain(t *testing.T) {
	taps := MakeHighPass(1.0, 1000, 40, 10, Hamming)

	var sum float64
	for i, tap := range taps {
		if i%2 == 0 {
			sum += tap
		} else {
			sum -= tap
		}
	}
	if math.Abs(math.Abs(sum)-1.0) > 1e-9 {
		t.Errorf("Nyquist gain = %v, want 1.0", math.Abs(sum))
	}
}

// rmsAfterSettle measures the output RMS once the filter history is full.
func rmsAfterSettle(taps []float64, signal []float64) float64 {
	out := NewFilter(taps).Apply(append([]float64(nil), signal...))
	settled := out[len(taps):]
	var acc float64
	for _, v := range settled {
		acc += v * v
	}
	return math.Sqrt(acc / float64(len(settled)))
}

func TestMakeBandRejectNotchesMains(t *testing.T) {
	const rate = 1000.0
	taps := MakeBandReject(1.0, rate, 45, 55, 10, Hamming)

	signal := func(freq float64) []float64 {
		ret := make([]float64, 4096)
		for i := range ret {
			ret[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
		}
		return ret
	}

	inputRMS := 1.0 / math.Sqrt2

	if rms := rmsAfterSettle(taps, signal(50)); rms > 0.05*inputRMS {
		t.Errorf("50 Hz tone RMS after notch = %v, want < %v", rms, 0.05*inputRMS)
	}
	if rms := rmsAfterSettle(taps, signal(5)); rms < 0.9*inputRMS {
		t.Errorf("5 Hz tone RMS after notch = %v, want > %v", rms, 0.9*inputRMS)
	}
}

func TestFilterStreamingMatchesWhole(t *testing.T) {
	taps := MakeLowPass(1.0, 1000, 40, 20, Hamming)

	signal := make([]float64, 512)
	for i := range signal {
		signal[i] = math.Sin(0.05*float64(i)) + 0.3*math.Sin(0.7*float64(i))
	}

	whole := NewFilter(taps).Apply(append([]float64(nil), signal...))

	chunked := NewFilter(taps)
	var got []float64
	for start := 0; start < len(signal); start += 100 {
		end := start + 100
		if end > len(signal) {
			end = len(signal)
		}
		chunk := append([]float64(nil), signal[start:end]...)
		got = append(got, chunked.Apply(chunk)...)
	}

	if !sliceEqualFloat64(whole, got, 1e-12) {
		t.Error("chunked filtering diverged from whole-signal filtering")
	}
}
