// Package relay drives the heating relay.
// The hardware backend uses the Linux GPIO character device. When it cannot
// be opened a simulated backend with the same contract is used instead.
package relay

import (
	"errors"
	"fmt"
	"log"
	"sync"
)

var (
	ErrWrite    = errors.New("relay: write failed")
	ErrReleased = errors.New("relay: released")
)

// Defaults for the Raspberry Pi relay HAT wiring (BCM numbering).
const (
	DefaultChip = "gpiochip0"
	DefaultLine = 17
)

// Backend sets the physical output. Signal polarity is private to each
// implementation: Write(true) always means "heating circuit closed".
type Backend interface {
	Write(on bool) error

	// Close releases the underlying resource.
	Close() error

	// Name identifies the backend for status output.
	Name() string
}

// Config selects the GPIO line driving the relay.
type Config struct {
	Chip      string
	Line      int
	ActiveLow bool
}

// Probe opens the hardware backend once. Any failure, including a permission
// error, selects the simulated backend for the lifetime of the process.
func Probe(cfg Config) Backend {
	if cfg.Chip == "" {
		cfg.Chip = DefaultChip
	}
	b, err := openHardware(cfg)
	if err != nil {
		log.Printf("relay: hardware unavailable (%v), using simulation", err)
		return NewSimulated()
	}
	log.Printf("relay: using %s line %d (active_low=%v)", cfg.Chip, cfg.Line, cfg.ActiveLow)
	return b
}

// Actuator tracks the relay state on top of a Backend. It is safe for
// concurrent use.
type Actuator struct {
	mu       sync.Mutex
	backend  Backend
	on       bool
	released bool

	releaseOnce sync.Once
	releaseErr  error
}

// New wraps b and forces the relay off.
func New(b Backend) *Actuator {
	if err := b.Write(false); err != nil {
		log.Printf("relay: initial off failed: %v", err)
	}
	return &Actuator{backend: b}
}

// TurnOn energizes the relay.
func (a *Actuator) TurnOn() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setLocked(true)
}

// TurnOff releases the relay.
func (a *Actuator) TurnOff() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setLocked(false)
}

// Toggle inverts the current state.
func (a *Actuator) Toggle() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setLocked(!a.on)
}

// State reports the last successfully written state.
func (a *Actuator) State() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.on
}

// Backend returns the name of the selected backend.
func (a *Actuator) Backend() string {
	return a.backend.Name()
}

// Release forces the relay off and closes the backend. Only the first call
// has any effect; later writes fail with ErrReleased.
func (a *Actuator) Release() error {
	a.releaseOnce.Do(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		var errs []error
		if err := a.backend.Write(false); err != nil {
			errs = append(errs, fmt.Errorf("force off: %w", err))
		} else {
			a.on = false
		}
		if err := a.backend.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close: %w", err))
		}
		a.released = true
		a.releaseErr = errors.Join(errs...)
		log.Printf("relay: released (%s)", a.backend.Name())
	})
	return a.releaseErr
}

func (a *Actuator) setLocked(on bool) error {
	if a.released {
		return fmt.Errorf("%w: %w", ErrWrite, ErrReleased)
	}
	if err := a.backend.Write(on); err != nil {
		log.Printf("relay: write %s failed: %v", onOff(on), err)
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	a.on = on
	log.Printf("relay: %s", onOff(on))
	return nil
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
