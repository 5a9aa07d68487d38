// Package sensor reads the room temperature from a DS18B20 on the 1-Wire bus.
// When no sensor is attached it falls back to a simulated random walk, so
// callers always get a usable value.
package sensor

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// DefaultDevicesDir is where the w1-gpio kernel driver exposes bus devices.
const DefaultDevicesDir = "/sys/bus/w1/devices"

// DevicePrefix is the 1-Wire family code of the DS18B20.
const DevicePrefix = "28-"

// Reading sources.
const (
	SourceW1        = "w1"
	SourceSimulated = "simulated"
)

// Reading is a single temperature sample.
type Reading struct {
	Celsius float64
	// OK is false when the hardware read failed and Celsius holds a
	// simulated substitute.
	OK     bool
	Source string
}

// Sensor produces temperature readings. Read never returns an error: a
// failed hardware read yields a substitute value with OK=false.
type Sensor interface {
	Read(ctx context.Context) Reading

	// Mode reports which backend was selected at startup.
	Mode() string
}

// Probe looks for a DS18B20 under dir once and returns the sensor to use for
// the lifetime of the process. If the directory or device is missing the
// simulated sensor is returned and hardware is never probed again.
func Probe(dir string, sim *Simulated) Sensor {
	if dir == "" {
		dir = DefaultDevicesDir
	}
	path, err := findDevice(dir)
	if err != nil {
		log.Printf("sensor: %v, using simulation", err)
		return sim
	}
	log.Printf("sensor: using %s", path)
	return NewW1(path, sim)
}

func findDevice(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read devices dir: %w", err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), DevicePrefix) {
			return filepath.Join(dir, e.Name(), "w1_slave"), nil
		}
	}
	return "", fmt.Errorf("no %s* device in %s", DevicePrefix, dir)
}
