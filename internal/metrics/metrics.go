// Package metrics exposes controller activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/thermostat/internal/logic"
	"github.com/sweeney/thermostat/internal/thermostat"
)

// Source is the read side of the controller used by the gauges.
type Source interface {
	State() thermostat.State
	TargetTemperature() float64
}

// Metrics implements thermostat.Recorder. A nil *Metrics records nothing.
type Metrics struct {
	reg        *prometheus.Registry
	ticks      *prometheus.CounterVec
	actuations *prometheus.CounterVec
	trips      prometheus.Counter
}

// New creates the counters on a private registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thermostat_ticks_total",
			Help: "Control loop ticks by sensor read result.",
		}, []string{"result"}),
		actuations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thermostat_actuations_total",
			Help: "Relay actuation attempts by action and result.",
		}, []string{"action", "result"}),
		trips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thermostat_trips_total",
			Help: "Safety shutdowns after repeated sensor failures.",
		}),
	}

	m.reg.MustRegister(
		m.ticks,
		m.actuations,
		m.trips,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe registers gauges that read src on every scrape.
func (m *Metrics) Observe(src Source) {
	if m == nil {
		return
	}
	m.reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "thermostat_current_temperature_celsius",
			Help: "Last accepted sensor reading.",
		}, func() float64 { return src.State().CurrentTemperature }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "thermostat_target_temperature_celsius",
			Help: "Configured target temperature.",
		}, src.TargetTemperature),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "thermostat_heating",
			Help: "1 while the heating relay is on.",
		}, func() float64 { return boolFloat(src.State().IsHeating) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "thermostat_running",
			Help: "1 while the control loop is running.",
		}, func() float64 { return boolFloat(src.State().IsRunning) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "thermostat_consecutive_errors",
			Help: "Current run of failed sensor reads.",
		}, func() float64 { return float64(src.State().ConsecutiveErrors) }),
	)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Tick counts a control loop tick.
func (m *Metrics) Tick(ok bool) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(result(ok)).Inc()
}

// Actuation counts a relay write.
func (m *Metrics) Actuation(action logic.Action, err error) {
	if m == nil {
		return
	}
	m.actuations.WithLabelValues(string(action), result(err == nil)).Inc()
}

// Trip counts a safety shutdown.
func (m *Metrics) Trip() {
	if m == nil {
		return
	}
	m.trips.Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
