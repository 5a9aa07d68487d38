// Package thermostat runs the heating control loop. It polls the sensor,
// applies hysteresis control to the relay and shuts heating down after
// repeated sensor failures.
package thermostat

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/sweeney/thermostat/internal/logic"
	"github.com/sweeney/thermostat/internal/sensor"
)

// Relay is the actuator contract the controller depends on.
type Relay interface {
	TurnOn() error
	TurnOff() error
	State() bool
}

// Recorder observes controller activity, e.g. for metrics.
type Recorder interface {
	Tick(ok bool)
	Actuation(action logic.Action, err error)
	Trip()
}

type nopRecorder struct{}

func (nopRecorder) Tick(bool)                     {}
func (nopRecorder) Actuation(logic.Action, error) {}
func (nopRecorder) Trip()                         {}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithConfig replaces the default config used until the first Start. cfg
// is not validated here.
func WithConfig(cfg Config) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithRecorder installs r.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) { c.rec = r }
}

// Controller owns the thermostat config and state.
//
// mu guards cfg and state and is held for relay writes, so a setter never
// interleaves with a tick. Sensor reads happen outside mu; a result is
// discarded if the run it belongs to has been stopped meanwhile. lifecycle
// serializes Start, Stop, Reset and Close.
type Controller struct {
	sensor sensor.Sensor
	relay  Relay
	now    func() time.Time
	rec    Recorder

	lifecycle sync.Mutex
	// closed is guarded by lifecycle. Once set no poll loop is started, so
	// loops.Add never races loops.Wait in Close.
	closed bool

	mu         sync.Mutex
	cfg        Config
	state      State
	tripped    bool
	hasReading bool
	gen        uint64
	cancel     context.CancelFunc
	loops      sync.WaitGroup

	obsMu     sync.Mutex
	observers []func(msg string)
}

// New creates a stopped controller with the default config.
func New(s sensor.Sensor, r Relay, opts ...Option) *Controller {
	c := &Controller{
		sensor: s,
		relay:  r,
		now:    time.Now,
		rec:    nopRecorder{},
		cfg:    DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.LastUpdated = c.now()
	c.state.IsHeating = r.State()
	return c
}

// Start merges p over the last-known config and begins polling. It is a
// no-op returning nil while already running; use the setters to change a
// running controller.
func (c *Controller) Start(p PartialConfig) error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.start(p)
}

func (c *Controller) start(p PartialConfig) error {
	if c.closed {
		return ErrClosed
	}
	c.mu.Lock()
	if c.state.IsRunning {
		c.mu.Unlock()
		log.Printf("thermostat: already running")
		return nil
	}
	cfg := p.Apply(c.cfg)
	if err := cfg.Validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.mu.Unlock()

	r, ok := c.read(context.Background(), cfg.ReadTimeout)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Setters may have run during the read; p still wins for its own fields.
	c.cfg = p.Apply(c.cfg)
	c.state.ConsecutiveErrors = 0
	c.state.LastError = ""
	c.tripped = false

	if ok {
		c.applyReadingLocked(r)
	} else {
		log.Printf("thermostat: initial temperature read failed, starting with last known values")
	}

	c.gen++
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state.IsRunning = true

	c.loops.Add(1)
	go c.run(ctx, c.gen, c.cfg.PollInterval)

	log.Printf("thermostat: started target=%.1f°C hysteresis=%.1f°C poll=%v",
		c.cfg.TargetTemperature, c.cfg.Hysteresis, c.cfg.PollInterval)
	return nil
}

// Stop cancels polling and forces the relay off. It always leaves the
// controller stopped; a failed relay write is recorded and returned.
// Stopping a stopped controller with the relay already off does nothing.
func (c *Controller) Stop() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()
	return c.stop()
}

func (c *Controller) stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.IsRunning && !c.relay.State() {
		return nil
	}
	wasRunning := c.state.IsRunning
	err := c.haltLocked()
	if wasRunning {
		log.Printf("thermostat: stopped")
	}
	return err
}

// Close stops the controller for good and waits for the poll loop to exit.
// Later calls to Start fail with ErrClosed. It must not be called from a
// critical error handler.
func (c *Controller) Close() error {
	c.lifecycle.Lock()
	c.closed = true
	err := c.stop()
	c.lifecycle.Unlock()

	c.loops.Wait()
	return err
}

// Reset stops the controller, clears the error counters and the safety
// trip, and restarts with the same target and hysteresis if it was running.
func (c *Controller) Reset() error {
	c.lifecycle.Lock()
	defer c.lifecycle.Unlock()

	c.mu.Lock()
	wasRunning := c.state.IsRunning
	target := c.cfg.TargetTemperature
	hysteresis := c.cfg.Hysteresis
	c.mu.Unlock()

	if err := c.stop(); err != nil {
		return err
	}

	c.mu.Lock()
	c.state.ConsecutiveErrors = 0
	c.state.LastError = ""
	c.tripped = false
	c.mu.Unlock()
	log.Printf("thermostat: reset")

	if !wasRunning {
		return nil
	}
	return c.start(PartialConfig{TargetTemperature: &target, Hysteresis: &hysteresis})
}

// SetTargetTemperature changes the target. A running controller re-evaluates
// the relay immediately.
func (c *Controller) SetTargetTemperature(v float64) error {
	if err := validateTarget(v); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.TargetTemperature = v
	log.Printf("thermostat: target temperature set to %.1f°C", v)
	if c.state.IsRunning && c.hasReading {
		c.controlLocked()
	}
	return nil
}

// SetHysteresis changes the hysteresis. A running controller re-evaluates
// the relay immediately.
func (c *Controller) SetHysteresis(v float64) error {
	if err := validateHysteresis(v); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cfg.Hysteresis = v
	log.Printf("thermostat: hysteresis set to %.1f°C", v)
	if c.state.IsRunning && c.hasReading {
		c.controlLocked()
	}
	return nil
}

// TargetTemperature returns the configured target.
func (c *Controller) TargetTemperature() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.TargetTemperature
}

// Hysteresis returns the configured hysteresis.
func (c *Controller) Hysteresis() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Hysteresis
}

// Config returns a copy of the current config.
func (c *Controller) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.state
	switch {
	case s.IsRunning:
		s.Status = StatusRunning
	case c.tripped:
		s.Status = StatusTripped
	default:
		s.Status = StatusStopped
	}
	return s
}

// LastError returns the last recorded error, or "" if none.
func (c *Controller) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.LastError
}

// Temperature takes a fresh sensor reading. It does not touch the
// controller state.
func (c *Controller) Temperature(ctx context.Context) float64 {
	return c.sensor.Read(ctx).Celsius
}

// OnCriticalError registers h to be called with the message of each safety
// trip. Handlers run outside the controller lock; a panicking handler is
// logged and does not affect the others.
func (c *Controller) OnCriticalError(h func(msg string)) {
	c.obsMu.Lock()
	defer c.obsMu.Unlock()
	c.observers = append(c.observers, h)
}

func (c *Controller) run(ctx context.Context, gen uint64, interval time.Duration) {
	defer c.loops.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(ctx, gen)
			// Ticks that fell due while this one ran are dropped, not queued.
			select {
			case <-ticker.C:
			default:
			}
		}
	}
}

// tick performs one poll for run gen.
func (c *Controller) tick(ctx context.Context, gen uint64) {
	c.mu.Lock()
	timeout := c.cfg.ReadTimeout
	c.mu.Unlock()

	r, ok := c.read(ctx, timeout)

	c.mu.Lock()
	if gen != c.gen || !c.state.IsRunning {
		c.mu.Unlock()
		return
	}
	c.rec.Tick(ok)

	if ok {
		c.state.ConsecutiveErrors = 0
		c.applyReadingLocked(r)
		c.controlLocked()
		c.mu.Unlock()
		return
	}

	c.state.ConsecutiveErrors++
	c.state.LastError = fmt.Sprintf("sensor read failed (%d consecutive)", c.state.ConsecutiveErrors)
	log.Printf("thermostat: %s", c.state.LastError)

	if c.state.ConsecutiveErrors < c.cfg.MaxConsecutiveErrors {
		c.mu.Unlock()
		return
	}
	msg := c.tripLocked()
	c.mu.Unlock()

	c.notify(msg)
}

// read reports whether r is a usable hardware reading.
func (c *Controller) read(ctx context.Context, timeout time.Duration) (sensor.Reading, bool) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	r := c.sensor.Read(ctx)
	ok := r.OK && !math.IsNaN(r.Celsius) && !math.IsInf(r.Celsius, 0) && ctx.Err() == nil
	return r, ok
}

func (c *Controller) applyReadingLocked(r sensor.Reading) {
	c.state.CurrentTemperature = r.Celsius
	c.state.IsHeating = c.relay.State()
	c.state.LastUpdated = c.now()
	c.hasReading = true
}

func (c *Controller) controlLocked() {
	now := c.now()
	d := logic.Decide(logic.Input{
		Current:              c.state.CurrentTemperature,
		Target:               c.cfg.TargetTemperature,
		Hysteresis:           c.cfg.Hysteresis,
		Heating:              c.state.IsHeating,
		LastActuation:        c.state.LastActuation,
		MinActuationInterval: c.cfg.MinActuationInterval,
		Time:                 now,
	})
	if d.Action == logic.ActionNone {
		return
	}

	var err error
	if d.Action == logic.ActionOn {
		err = c.relay.TurnOn()
	} else {
		err = c.relay.TurnOff()
	}
	c.rec.Actuation(d.Action, err)

	if err != nil {
		c.state.LastError = fmt.Sprintf("%v: %s at %.1f°C: %v", ErrActuation, d.Action, c.state.CurrentTemperature, err)
		c.state.IsHeating = c.relay.State()
		log.Printf("thermostat: %s", c.state.LastError)
		return
	}
	c.state.IsHeating = d.Action == logic.ActionOn
	c.state.LastActuation = now
	log.Printf("thermostat: %s, %.1f°C %s (band %.1f..%.1f°C)",
		d.Action, c.state.CurrentTemperature, d.Reason, d.Lower, d.Upper)
}

// haltLocked cancels the poll loop and forces the relay off.
func (c *Controller) haltLocked() error {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	// Invalidate any tick still reading the sensor.
	c.gen++
	c.state.IsRunning = false

	var err error
	if c.relay.State() {
		werr := c.relay.TurnOff()
		c.rec.Actuation(logic.ActionOff, werr)
		if werr != nil {
			err = fmt.Errorf("%w: turn off: %v", ErrActuation, werr)
			c.state.LastError = err.Error()
			log.Printf("thermostat: %v", err)
		} else {
			c.state.LastActuation = c.now()
		}
	}
	c.state.IsHeating = c.relay.State()
	return err
}

func (c *Controller) tripLocked() string {
	msg := fmt.Sprintf("%v: %d consecutive sensor failures, heating disabled",
		ErrSafetyTrip, c.state.ConsecutiveErrors)
	if err := c.haltLocked(); err != nil {
		msg = fmt.Sprintf("%s (%v)", msg, err)
	}
	c.tripped = true
	c.state.LastError = msg
	c.rec.Trip()
	log.Printf("thermostat: %s", msg)
	return msg
}

func (c *Controller) notify(msg string) {
	c.obsMu.Lock()
	handlers := append([]func(string){}, c.observers...)
	c.obsMu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("thermostat: critical error handler panicked: %v", r)
				}
			}()
			h(msg)
		}()
	}
}
