// Package status provides a thread-safe view of the thermostat daemon for
// the status page, /index.json and MQTT lifecycle events.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/thermostat/internal/thermostat"
)

// NetworkInfo contains network state as reported by pi-helper.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	BootID      string
	HeartbeatMs int64
	Broker      string
	HTTPPort    string
	WSBroker    string // websocket broker URL for the live page (empty = disabled)
	StateTopic  string
}

// Hardware names the backends chosen at startup.
type Hardware struct {
	Sensor string // "w1" or "simulated"
	Relay  string // "gpiocdev" or "simulated"
}

// Source is the read side of the controller.
type Source interface {
	State() thermostat.State
	Config() thermostat.Config
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Thermostat    thermostat.State
	Control       thermostat.Config
	Hardware      Hardware
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker combines live controller state with daemon facts held behind an
// RWMutex.
type Tracker struct {
	src Source
	now func() time.Time

	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker reading controller state from src.
func NewTracker(startTime time.Time, cfg Config, hw Hardware, src Source) *Tracker {
	return &Tracker{
		src: src,
		now: time.Now,
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
			Hardware:  hw,
		},
	}
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state with fresh
// controller state and Now set to the current time.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()

	if t.src != nil {
		s.Thermostat = t.src.State()
		s.Control = t.src.Config()
	}
	s.Now = t.now()
	return s
}
