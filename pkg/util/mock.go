package util

import "github.com/influxdata/influxdb-client-go/api/write"

// MockWriteAPI is the metrics sink used when no InfluxDB host is configured.
type MockWriteAPI struct{}

func (m *MockWriteAPI) WriteRecord(line string) {}

func (m *MockWriteAPI) WritePoint(point *write.Point) {}

func (m *MockWriteAPI) Flush() {}

func (m *MockWriteAPI) Close() {}

// Errors returns a channel for reading errors which occurs during async writes.
// Must be called before performing any writes for errors to be collected.
func (m *MockWriteAPI) Errors() <-chan error { return nil }
