package config

import (
	"time"
)

type Config struct {
	Device           string        `yaml:"device"`
	Address          string        `yaml:"address"`
	Rate             int           `yaml:"rate"`
	Channels         []int         `yaml:"channels,flow"`
	Simulated        bool          `yaml:"simulated"`
	BlockInterval    time.Duration `yaml:"block_interval_ms"`
	ScanTimeout      time.Duration `yaml:"scan_timeout"`
	RecordLocation   string        `yaml:"record_location"`
	PlaybackLocation string        `yaml:"playback_location"`
	CSVLocation      string        `yaml:"csv_location"`

	Filters []FilterSpec `yaml:"filters"`

	OutputDestinations []OutputDestination `yaml:"output_destinations"`

	Monitor struct {
		Port           int           `yaml:"port"`
		UpdateInterval time.Duration `yaml:"update_interval_ms"`
	} `yaml:"monitor"`

	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// FilterSpec configures an optional FIR stage on one channel. Port 0 means
// every channel. Type is one of lowpass, highpass, bandpass, notch.
type FilterSpec struct {
	Port       int     `yaml:"port"`
	Type       string  `yaml:"type"`
	Low        float64 `yaml:"low"`
	High       float64 `yaml:"high"`
	Transition float64 `yaml:"transition"`
}
