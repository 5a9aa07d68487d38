package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event             string       `json:"event,omitempty"`
	Reason            string       `json:"reason,omitempty"`
	State             string       `json:"state"`
	Temperature       float64      `json:"temperature"`
	TargetTemperature float64      `json:"target_temperature"`
	Hysteresis        float64      `json:"hysteresis"`
	Heating           bool         `json:"heating"`
	Running           bool         `json:"running"`
	ConsecutiveErrors int          `json:"consecutive_errors"`
	LastError         string       `json:"last_error,omitempty"`
	LastUpdated       string       `json:"last_updated"`
	UptimeSeconds     int64        `json:"uptime_seconds"`
	StartTime         string       `json:"start_time"`
	Timestamp         string       `json:"timestamp"`
	MQTT              MQTTStatus   `json:"mqtt"`
	Hardware          HardwareJSON `json:"hardware"`
	Network           *NetworkJSON `json:"network,omitempty"`
	Config            ConfigJSON   `json:"config"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// HardwareJSON names the active sensor and relay backends.
type HardwareJSON struct {
	Sensor string `json:"sensor"`
	Relay  string `json:"relay"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon and controller config.
type ConfigJSON struct {
	PollMs               int64  `json:"poll_ms"`
	MinActuationMs       int64  `json:"min_actuation_interval_ms"`
	MaxConsecutiveErrors int    `json:"max_consecutive_errors"`
	HeartbeatMs          int64  `json:"heartbeat_ms"`
	Broker               string `json:"broker"`
	HTTPPort             string `json:"http_port"`
	WSBroker             string `json:"ws_broker,omitempty"`
	BootID               string `json:"boot_id,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	th := snap.Thermostat
	state := string(th.Status)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		State:             state,
		Temperature:       th.CurrentTemperature,
		TargetTemperature: snap.Control.TargetTemperature,
		Hysteresis:        snap.Control.Hysteresis,
		Heating:           th.IsHeating,
		Running:           th.IsRunning,
		ConsecutiveErrors: th.ConsecutiveErrors,
		LastError:         th.LastError,
		LastUpdated:       th.LastUpdated.UTC().Format(time.RFC3339),
		UptimeSeconds:     int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:         snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:         snap.Now.UTC().Format(time.RFC3339),
		MQTT:              MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Hardware:          HardwareJSON{Sensor: snap.Hardware.Sensor, Relay: snap.Hardware.Relay},
		Config: ConfigJSON{
			PollMs:               snap.Control.PollInterval.Milliseconds(),
			MinActuationMs:       snap.Control.MinActuationInterval.Milliseconds(),
			MaxConsecutiveErrors: snap.Control.MaxConsecutiveErrors,
			HeartbeatMs:          snap.Config.HeartbeatMs,
			Broker:               snap.Config.Broker,
			HTTPPort:             snap.Config.HTTPPort,
			WSBroker:             snap.Config.WSBroker,
			BootID:               snap.Config.BootID,
		},
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// FormatJSON returns the indented status for the web endpoint.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the compact status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
