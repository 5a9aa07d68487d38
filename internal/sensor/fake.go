package sensor

import (
	"context"
	"math"
	"sync"
)

// FakeSensor is a test double that returns scripted readings.
type FakeSensor struct {
	mu sync.Mutex

	// Readings are returned in order; the last one repeats once exhausted.
	Readings []Reading

	// Block, if set, makes Read wait until it is closed or ctx is done.
	Block chan struct{}

	index int
	calls int
}

// NewFakeSensor creates a FakeSensor with the given readings.
func NewFakeSensor(readings ...Reading) *FakeSensor {
	return &FakeSensor{Readings: readings}
}

// Good is a successful reading of c degrees.
func Good(c float64) Reading {
	return Reading{Celsius: c, OK: true, Source: "fake"}
}

// Bad is a failed reading.
func Bad() Reading {
	return Reading{Celsius: math.NaN(), OK: false, Source: "fake"}
}

// Read returns the next scripted reading.
func (f *FakeSensor) Read(ctx context.Context) Reading {
	f.mu.Lock()
	block := f.Block
	f.calls++
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return Bad()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Readings) == 0 {
		return Bad()
	}
	r := f.Readings[f.index]
	if f.index < len(f.Readings)-1 {
		f.index++
	}
	return r
}

// Mode returns "fake".
func (f *FakeSensor) Mode() string {
	return "fake"
}

// Set replaces the script and rewinds it.
func (f *FakeSensor) Set(readings ...Reading) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Readings = readings
	f.index = 0
}

// Calls returns how many times Read was called.
func (f *FakeSensor) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
