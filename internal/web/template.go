package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/thermostat/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"celsius": func(v float64) string {
		return fmt.Sprintf("%.1f°C", v)
	},
	"stateClass": func(s string) string {
		switch s {
		case "RUNNING":
			return "on"
		case "TRIPPED":
			return "tripped"
		case "STOPPED":
			return "off"
		}
		return "unknown"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Thermostat</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.tripped { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
.live-dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; margin-left: 6px; vertical-align: middle; }
.live-dot.ok { background: green; }
.live-dot.err { background: red; }
.live-dot.pending { background: orange; }
</style>
</head>
<body>
<h1>Thermostat{{if .Config.WSBroker}}<span id="live-dot" class="live-dot pending" title="connecting"></span>{{end}}</h1>

<h2>Control</h2>
<table>
<tr><th>State</th><td id="state" class="{{stateClass (printf "%s" .Thermostat.Status)}}">{{with printf "%s" .Thermostat.Status}}{{.}}{{else}}UNKNOWN{{end}}</td></tr>
<tr><th>Temperature</th><td id="temperature">{{celsius .Thermostat.CurrentTemperature}}</td></tr>
<tr><th>Target</th><td id="target">{{celsius .Control.TargetTemperature}}</td></tr>
<tr><th>Hysteresis</th><td id="hysteresis">{{celsius .Control.Hysteresis}}</td></tr>
<tr><th>Heating</th><td id="heating" class="{{if .Thermostat.IsHeating}}on{{else}}off{{end}}">{{if .Thermostat.IsHeating}}ON{{else}}OFF{{end}}</td></tr>
<tr><th>Sensor errors</th><td id="errors">{{.Thermostat.ConsecutiveErrors}} / {{.Control.MaxConsecutiveErrors}}</td></tr>
{{if .Thermostat.LastError}}<tr><th>Last error</th><td class="error">{{.Thermostat.LastError}}</td></tr>{{end}}
<tr><th>Updated</th><td>{{.Thermostat.LastUpdated.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
</table>

<h2>Hardware</h2>
<table>
<tr><th>Sensor</th><td class="{{if eq .Hardware.Sensor "simulated"}}unknown{{end}}">{{.Hardware.Sensor}}</td></tr>
<tr><th>Relay</th><td class="{{if eq .Hardware.Relay "simulated"}}unknown{{end}}">{{.Hardware.Relay}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{with .Config.Broker}}{{.}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Control.PollInterval}}</td></tr>
<tr><th>Min actuation interval</th><td>{{.Control.MinActuationInterval}}</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/metrics">metrics</a></p>
{{if .Config.WSBroker}}
<script src="/mqtt.min.js"></script>
<script>
(function() {
  var broker = "{{.Config.WSBroker}}";
  var topic = "{{.Config.StateTopic}}";
  var dot = document.getElementById("live-dot");

  function set(id, text, cls) {
    var el = document.getElementById(id);
    el.textContent = text;
    if (cls !== undefined) el.className = cls;
  }

  function setDot(cls, title) {
    dot.className = "live-dot " + cls;
    dot.title = title;
  }

  var client = mqtt.connect(broker, { reconnectPeriod: 5000 });

  client.on("connect", function() {
    setDot("ok", "live");
    client.subscribe(topic);
  });
  client.on("reconnect", function() { setDot("pending", "reconnecting"); });
  client.on("offline", function() { setDot("err", "offline"); });
  client.on("error", function() { setDot("err", "error"); });

  client.on("message", function(t, payload) {
    try {
      var msg = JSON.parse(payload.toString()).thermostat;
      if (!msg) return;
      var cls = {RUNNING: "on", STOPPED: "off", TRIPPED: "tripped"}[msg.status] || "unknown";
      set("state", msg.status, cls);
      set("temperature", msg.temperature.toFixed(1) + "°C");
      set("target", msg.target_temperature.toFixed(1) + "°C");
      set("hysteresis", msg.hysteresis.toFixed(1) + "°C");
      set("heating", msg.heating ? "ON" : "OFF", msg.heating ? "on" : "off");
    } catch (e) {}
  });
})();
</script>
{{end}}
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// The template cannot call Snapshot.Uptime with arguments, so pass it as a field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
