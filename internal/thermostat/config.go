package thermostat

import (
	"fmt"
	"math"
	"time"
)

// Allowed ranges, in °C.
const (
	MinTargetTemperature = 5.0
	MaxTargetTemperature = 30.0
	MaxHysteresis        = 5.0
)

// Defaults used until the first Start.
const (
	DefaultTargetTemperature    = 22.0
	DefaultHysteresis           = 1.5
	DefaultPollInterval         = time.Second
	DefaultMaxConsecutiveErrors = 5
	DefaultMinActuationInterval = 30 * time.Second
)

// Config is the controller configuration.
type Config struct {
	TargetTemperature    float64
	Hysteresis           float64
	PollInterval         time.Duration
	MaxConsecutiveErrors int
	// MinActuationInterval is the dwell enforced between relay changes.
	MinActuationInterval time.Duration
	// ReadTimeout bounds a single sensor read; 0 disables it. A read that
	// times out counts as a sensor failure.
	ReadTimeout time.Duration
}

// DefaultConfig returns the factory configuration.
func DefaultConfig() Config {
	return Config{
		TargetTemperature:    DefaultTargetTemperature,
		Hysteresis:           DefaultHysteresis,
		PollInterval:         DefaultPollInterval,
		MaxConsecutiveErrors: DefaultMaxConsecutiveErrors,
		MinActuationInterval: DefaultMinActuationInterval,
	}
}

// Validate checks every field against its allowed range.
func (c Config) Validate() error {
	if err := validateTarget(c.TargetTemperature); err != nil {
		return err
	}
	if err := validateHysteresis(c.Hysteresis); err != nil {
		return err
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %v", ErrValidation, c.PollInterval)
	}
	if c.MaxConsecutiveErrors < 1 {
		return fmt.Errorf("%w: max consecutive errors must be at least 1, got %d", ErrValidation, c.MaxConsecutiveErrors)
	}
	if c.MinActuationInterval < 0 {
		return fmt.Errorf("%w: min actuation interval must not be negative, got %v", ErrValidation, c.MinActuationInterval)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("%w: read timeout must not be negative, got %v", ErrValidation, c.ReadTimeout)
	}
	return nil
}

func validateTarget(v float64) error {
	if math.IsNaN(v) || v < MinTargetTemperature || v > MaxTargetTemperature {
		return fmt.Errorf("%w: target temperature %v°C outside [%v, %v]",
			ErrValidation, v, MinTargetTemperature, MaxTargetTemperature)
	}
	return nil
}

func validateHysteresis(v float64) error {
	if math.IsNaN(v) || v <= 0 || v > MaxHysteresis {
		return fmt.Errorf("%w: hysteresis %v°C outside (0, %v]", ErrValidation, v, MaxHysteresis)
	}
	return nil
}

// PartialConfig carries the fields a caller wants to change on Start. Nil
// fields keep their last-known value.
type PartialConfig struct {
	TargetTemperature    *float64
	Hysteresis           *float64
	PollInterval         *time.Duration
	MaxConsecutiveErrors *int
	MinActuationInterval *time.Duration
	ReadTimeout          *time.Duration
}

// Apply merges p over base.
func (p PartialConfig) Apply(base Config) Config {
	if p.TargetTemperature != nil {
		base.TargetTemperature = *p.TargetTemperature
	}
	if p.Hysteresis != nil {
		base.Hysteresis = *p.Hysteresis
	}
	if p.PollInterval != nil {
		base.PollInterval = *p.PollInterval
	}
	if p.MaxConsecutiveErrors != nil {
		base.MaxConsecutiveErrors = *p.MaxConsecutiveErrors
	}
	if p.MinActuationInterval != nil {
		base.MinActuationInterval = *p.MinActuationInterval
	}
	if p.ReadTimeout != nil {
		base.ReadTimeout = *p.ReadTimeout
	}
	return base
}

// Full returns a PartialConfig that sets every field of c.
func Full(c Config) PartialConfig {
	return PartialConfig{
		TargetTemperature:    &c.TargetTemperature,
		Hysteresis:           &c.Hysteresis,
		PollInterval:         &c.PollInterval,
		MaxConsecutiveErrors: &c.MaxConsecutiveErrors,
		MinActuationInterval: &c.MinActuationInterval,
		ReadTimeout:          &c.ReadTimeout,
	}
}
