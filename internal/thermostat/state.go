package thermostat

import "time"

// Status is the controller lifecycle state.
type Status string

const (
	StatusStopped Status = "STOPPED"
	StatusRunning Status = "RUNNING"
	// StatusTripped is a safety shutdown. It behaves like StatusStopped but
	// carries the critical error until Start or Reset.
	StatusTripped Status = "TRIPPED"
)

// State is a point-in-time view of the controller.
// It is a value type, safe to use after the lock is released.
type State struct {
	Status             Status
	CurrentTemperature float64
	IsHeating          bool
	IsRunning          bool
	LastUpdated        time.Time
	LastError          string
	ConsecutiveErrors  int
	// LastActuation is when the relay last changed state; zero if never.
	LastActuation time.Time
}
