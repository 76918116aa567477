package quality

import (
	"math"
	"testing"
)

func Test_AssessFlatline(t *testing.T) {
	samples := make([]int32, 500)
	for i := range samples {
		samples[i] = 32768
	}

	rep := Assess(samples, 0, 500)
	if !rep.Flatline {
		t.Error("constant signal not flagged as flatline")
	}
	if rep.SaturationRatio != 0 {
		t.Errorf("saturation ratio = %v, want 0", rep.SaturationRatio)
	}
}

func Test_AssessSaturation(t *testing.T) {
	samples := make([]int32, 400)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 1<<16 - 1
		} else {
			samples[i] = 30000
		}
	}

	rep := Assess(samples, 0, 400)
	if math.Abs(rep.SaturationRatio-0.5) > 1e-9 {
		t.Errorf("saturation ratio = %v, want 0.5", rep.SaturationRatio)
	}
	if rep.Flatline {
		t.Error("alternating signal flagged as flatline")
	}
}

func Test_AssessScaledRails(t *testing.T) {
	// A 10-bit channel scaled to the 16-bit range rails at 1023<<6, well
	// below the 16-bit ceiling.
	const fullScale = 1023 << 6

	pinned := make([]int32, 200)
	for i := range pinned {
		pinned[i] = fullScale
	}
	rep := Assess(pinned, fullScale, 1000)
	if rep.SaturationRatio != 1 {
		t.Errorf("pinned channel saturation ratio = %v, want 1", rep.SaturationRatio)
	}

	mixed := make([]int32, 200)
	for i := range mixed {
		if i%2 == 0 {
			mixed[i] = fullScale
		} else {
			mixed[i] = fullScale / 2
		}
	}
	rep = Assess(mixed, fullScale, 1000)
	if math.Abs(rep.SaturationRatio-0.5) > 1e-9 {
		t.Errorf("saturation ratio = %v, want 0.5", rep.SaturationRatio)
	}

	// Without the channel ceiling the rail would go unnoticed.
	if rep := Assess(pinned, 0, 1000); rep.SaturationRatio != 0 {
		t.Errorf("16-bit ceiling counted %v saturated below its rail", rep.SaturationRatio)
	}
}

func Test_AssessMainsHum(t *testing.T) {
	const rate = 500
	hum := make([]int32, 1000)
	clean := make([]int32, 1000)
	for i := range hum {
		hum[i] = 32768 + int32(5000*math.Sin(2*math.Pi*50*float64(i)/rate))
		clean[i] = 32768 + int32(5000*math.Sin(2*math.Pi*8*float64(i)/rate))
	}

	if rep := Assess(hum, 0, rate); !rep.MainsHum {
		t.Errorf("50 Hz tone not flagged, mains ratio = %v", rep.MainsRatio)
	}
	if rep := Assess(clean, 0, rate); rep.MainsHum {
		t.Errorf("8 Hz tone flagged as hum, mains ratio = %v", rep.MainsRatio)
	}
}

func Test_AssessEmpty(t *testing.T) {
	rep := Assess(nil, 0, 500)
	if rep.MainsHum || rep.Flatline || rep.SaturationRatio != 0 {
		t.Errorf("empty input produced %+v", rep)
	}
}
