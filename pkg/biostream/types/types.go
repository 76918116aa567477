package types

import (
	"time"
)

// SensorClass identifies the kind of sensor attached to a device port.
// Values match the class ids reported by the hardware sensor table.
type SensorClass int

const (
	SensorUnknown SensorClass = iota
	SensorEMG
	SensorECG
	SensorLUX
	SensorEDA
	SensorBVP
	SensorRESP
	SensorXYZ
	SensorSYNC
	SensorEEG
	SensorSYNCADAP
	SensorSYNCLED
	SensorSYNCSW
	SensorUSB
	SensorFORCE
	SensorTEMP
	SensorVPROBE
	SensorBREAKOUT
	SensorSpO2
	SensorGONI
	SensorACT
	SensorEOG
	SensorEGG
)

var sensorNames = []string{
	"UNKNOWN",
	"EMG",
	"ECG",
	"LUX",
	"EDA",
	"BVP",
	"RESP",
	"XYZ",
	"SYNC",
	"EEG",
	"SYNC_ADAP",
	"SYNC_LED",
	"SYNC_SW",
	"USB",
	"FORCE",
	"TEMP",
	"VPROBE",
	"BREAKOUT",
	"SpO2",
	"GONI",
	"ACT",
	"EOG",
	"EGG",
}

// ClassFromID maps a wire class id to a SensorClass, clamping ids this
// build does not know about.
func ClassFromID(id int) SensorClass {
	if id < 0 || id >= len(sensorNames) {
		return SensorUnknown
	}
	return SensorClass(id)
}

func (s SensorClass) String() string {
	if s < 0 || int(s) >= len(sensorNames) {
		return sensorNames[SensorUnknown]
	}
	return sensorNames[s]
}

// Channel describes one enabled analog channel. FullScale is the largest
// raw count the channel can report; zero means the full 16-bit range.
type Channel struct {
	Port      int
	Class     SensorClass
	Label     string
	Unit      string
	FullScale int32
}

// SampleFrame is a single frame as decoded off the wire: one raw ADC count
// per enabled channel, plus the device frame counter.
type SampleFrame struct {
	Counter  uint32
	Values   []int32
	Received time.Time
}

// SampleBlock is a batch of samples handed to outputs. Raw holds the ADC
// counts as read from the device, Signal the same samples converted to
// physical units. Both are indexed [sample][channel].
type SampleBlock struct {
	BlockNumber int
	Start       time.Time
	Rate        int
	Channels    []Channel
	Timestamps  []time.Time
	Raw         [][]int32
	Signal      [][]float64
	Missed      int
}

// NumSamples returns the number of samples in the block.
func (b *SampleBlock) NumSamples() int {
	return len(b.Raw)
}

// Duration returns the time span covered by the block at its sample rate.
func (b *SampleBlock) Duration() time.Duration {
	if b.Rate == 0 {
		return 0
	}
	return time.Duration(b.NumSamples()) * time.Second / time.Duration(b.Rate)
}
