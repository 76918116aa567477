// Package transfer converts raw ADC counts into physical units for the
// sensor types shipped with Plux and BITalino hardware.
package transfer

import (
	"github.com/opensignals/biostream/pkg/biostream/types"
)

// Resolution is the ADC resolution the conversion formulas assume.
const Resolution = 16

// VCC is the sensor working voltage in volts.
const VCC = 3

const fullScale = 1 << Resolution

// Func converts one raw ADC count to a physical unit.
type Func func(raw float64) float64

// ECG returns the value in millivolt.
func ECG(raw float64) float64 {
	return (raw/fullScale - 0.5) * VCC
}

// EMG returns the value in millivolt.
func EMG(raw float64) float64 {
	return (raw/fullScale - 0.5) * VCC
}

// EDA returns the value in microsiemens.
func EDA(raw float64) float64 {
	return (raw / fullScale * VCC) / 0.12
}

// BVP returns the value in relative intensity units.
func BVP(raw float64) float64 {
	return raw / fullScale
}

// PZT returns the displacement as a percentage of full scale.
func PZT(raw float64) float64 {
	return (raw/fullScale - 0.5) * 100
}

// EEG returns the value in microvolt.
func EEG(raw float64) float64 {
	return ((raw/fullScale - 0.5) * VCC / 40000) * 1e-6
}

var byClass = map[types.SensorClass]Func{
	types.SensorECG:  ECG,
	types.SensorEMG:  EMG,
	types.SensorEDA:  EDA,
	types.SensorBVP:  BVP,
	types.SensorRESP: PZT,
	types.SensorEEG:  EEG,
	types.SensorEOG:  EEG,
}

var unitByClass = map[types.SensorClass]string{
	types.SensorECG:  "mV",
	types.SensorEMG:  "mV",
	types.SensorEDA:  "uS",
	types.SensorBVP:  "r.i.u.",
	types.SensorRESP: "%",
	types.SensorEEG:  "uV",
	types.SensorEOG:  "uV",
}

// ForClass returns the conversion for a sensor class. Classes without a
// known transfer function get an identity conversion.
func ForClass(class types.SensorClass) Func {
	if f, ok := byClass[class]; ok {
		return f
	}
	return func(raw float64) float64 { return raw }
}

// UnitFor names the physical unit produced by ForClass, or "raw" when the
// class has no conversion.
func UnitFor(class types.SensorClass) string {
	if u, ok := unitByClass[class]; ok {
		return u
	}
	return "raw"
}
