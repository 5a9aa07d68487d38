package relay

import (
	"log"
	"sync"
)

// Simulated stands in for the relay when no GPIO hardware is available.
type Simulated struct {
	mu    sync.Mutex
	level bool
}

// NewSimulated creates a simulated backend, initially off.
func NewSimulated() *Simulated {
	return &Simulated{}
}

// Write records the level.
func (s *Simulated) Write(on bool) error {
	s.mu.Lock()
	s.level = on
	s.mu.Unlock()
	log.Printf("relay: simulated write %s", onOff(on))
	return nil
}

// Close is a no-op.
func (s *Simulated) Close() error {
	return nil
}

// Name returns "simulated".
func (s *Simulated) Name() string {
	return "simulated"
}

// Level reports the last written level.
func (s *Simulated) Level() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}
