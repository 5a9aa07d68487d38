// Package mqtt publishes thermostat state and lifecycle events to a local broker.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/thermostat/internal/thermostat"
)

// DefaultTopicPrefix is the topic root used when none is configured.
const DefaultTopicPrefix = "home/thermostat"

// System event names.
const (
	EventStartup     = "STARTUP"
	EventShutdown    = "SHUTDOWN"
	EventHeartbeat   = "HEARTBEAT"
	EventTripped     = "TRIPPED"
	EventReconnected = "RECONNECTED"
)

// Topics names the two topics the daemon publishes on.
type Topics struct {
	State  string
	System string
}

// TopicsFor returns the topics under prefix.
func TopicsFor(prefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{
		State:  prefix + "/state",
		System: prefix + "/system",
	}
}

// Publisher publishes thermostat events.
type Publisher interface {
	// PublishState sends a controller snapshot. Errors are logged by the
	// caller and never stop the daemon.
	PublishState(event StateEvent) error

	// PublishSystem sends a lifecycle event.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// StateEvent is a point-in-time controller snapshot.
type StateEvent struct {
	Timestamp  time.Time
	State      thermostat.State
	Target     float64
	Hysteresis float64
}

// SystemEvent is a lifecycle event (startup, shutdown, heartbeat, trip).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string
	Reason     string // signal name on shutdown, trip message on TRIPPED
	RawPayload []byte // pre-formatted JSON; returned as is by FormatSystemPayload
	Retained   bool
}

// StatePayload is the JSON body published on the state topic.
type StatePayload struct {
	Thermostat StatePayloadInner `json:"thermostat"`
}

// StatePayloadInner carries the controller snapshot.
type StatePayloadInner struct {
	Timestamp         string  `json:"timestamp"`
	Status            string  `json:"status"`
	Temperature       float64 `json:"temperature"`
	TargetTemperature float64 `json:"target_temperature"`
	Hysteresis        float64 `json:"hysteresis"`
	Heating           bool    `json:"heating"`
	Running           bool    `json:"running"`
	ConsecutiveErrors int     `json:"consecutive_errors"`
	LastError         string  `json:"last_error,omitempty"`
	LastUpdated       string  `json:"last_updated"`
}

// FormatStatePayload creates the JSON payload for a state event.
func FormatStatePayload(event StateEvent) ([]byte, error) {
	s := event.State
	payload := StatePayload{
		Thermostat: StatePayloadInner{
			Timestamp:         event.Timestamp.UTC().Format(time.RFC3339),
			Status:            string(s.Status),
			Temperature:       s.CurrentTemperature,
			TargetTemperature: event.Target,
			Hysteresis:        event.Hysteresis,
			Heating:           s.IsHeating,
			Running:           s.IsRunning,
			ConsecutiveErrors: s.ConsecutiveErrors,
			LastError:         s.LastError,
			LastUpdated:       s.LastUpdated.UTC().Format(time.RFC3339),
		},
	}
	return json.Marshal(payload)
}

// SystemPayload is the JSON body for events without a status snapshot,
// such as the last will and RECONNECTED.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// Disabled is the Publisher used when no broker is configured.
type Disabled struct{}

func (Disabled) PublishState(StateEvent) error   { return nil }
func (Disabled) PublishSystem(SystemEvent) error { return nil }
func (Disabled) Close() error                    { return nil }
func (Disabled) IsConnected() bool               { return false }
