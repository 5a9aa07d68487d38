// Package logic contains the pure heating control decision.
// This package has NO external dependencies (no GPIO, sensor, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// Action is what the controller should do with the relay.
type Action string

const (
	ActionNone Action = "NONE"
	ActionOn   Action = "HEAT_ON"
	ActionOff  Action = "HEAT_OFF"
)

// Reason explains a Decision, for logging.
type Reason string

const (
	ReasonDwell        Reason = "dwell"
	ReasonBelowLower   Reason = "below lower bound"
	ReasonReachedUpper Reason = "reached target"
	ReasonInBand       Reason = "in band"
)

// Input is everything the control decision depends on.
type Input struct {
	Current    float64
	Target     float64
	Hysteresis float64
	Heating    bool

	// LastActuation is when the relay last changed state; zero if never.
	LastActuation        time.Time
	MinActuationInterval time.Duration
	Time                 time.Time
}

// Decision is the outcome of Decide.
type Decision struct {
	Action Action
	Reason Reason
	Lower  float64
	Upper  float64
}
