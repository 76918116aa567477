package transfer

import (
	"math"
	"testing"

	"github.com/opensignals/biostream/pkg/biostream/types"
)

const epsilon = 1e-12

func Test_conversions(t *testing.T) {
	tests := []struct {
		name string
		f    Func
		raw  float64
		want float64
	}{
		{"ECG midscale", ECG, 32768, 0},
		{"ECG zero", ECG, 0, -1.5},
		{"ECG full", ECG, 65536, 1.5},
		{"EMG midscale", EMG, 32768, 0},
		{"EDA midscale", EDA, 32768, 12.5},
		{"EDA zero", EDA, 0, 0},
		{"BVP midscale", BVP, 32768, 0.5},
		{"PZT three quarter", PZT, 49152, 25},
		{"EEG full", EEG, 65536, 3.75e-11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f(tt.raw); math.Abs(got-tt.want) > epsilon {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_ForClassUnknownIsIdentity(t *testing.T) {
	f := ForClass(types.SensorLUX)
	if got := f(12345); got != 12345 {
		t.Errorf("identity conversion returned %v", got)
	}
}

func Test_UnitFor(t *testing.T) {
	tests := []struct {
		class types.SensorClass
		want  string
	}{
		{types.SensorECG, "mV"},
		{types.SensorEDA, "uS"},
		{types.SensorRESP, "%"},
		{types.SensorLUX, "raw"},
	}
	for _, tt := range tests {
		if got := UnitFor(tt.class); got != tt.want {
			t.Errorf("UnitFor(%s) = %q, want %q", tt.class, got, tt.want)
		}
	}
}
