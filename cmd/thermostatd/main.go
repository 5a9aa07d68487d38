// Command thermostatd drives a heating relay from a 1-Wire temperature
// sensor and serves a local HTTP API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/thermostat/internal/config"
	"github.com/sweeney/thermostat/internal/metrics"
	"github.com/sweeney/thermostat/internal/mqtt"
	"github.com/sweeney/thermostat/internal/relay"
	"github.com/sweeney/thermostat/internal/sensor"
	"github.com/sweeney/thermostat/internal/status"
	"github.com/sweeney/thermostat/internal/thermostat"
	"github.com/sweeney/thermostat/internal/web"
)

// stateInterval is how often runLoop checks the controller for changes to
// publish.
const stateInterval = time.Second

func main() {
	configPath := flag.String("config", config.DefaultPath, "Config file (.yaml, .yml or .json)")
	printState := flag.Bool("print-state", false, "Print the current temperature and exit")

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg config.Config, printState bool) error {
	sens := sensor.Probe(cfg.Sensor.DevicesDir, sensor.NewSimulated())

	if printState {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r := sens.Read(ctx)
		fmt.Printf("temperature: %.1f°C (source=%s ok=%v)\n", r.Celsius, r.Source, r.OK)
		return nil
	}

	rel := relay.New(relay.Probe(cfg.RelayBackend()))
	defer rel.Release()

	// Signals received during startup are handled once runLoop begins.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	m := metrics.New()
	ctrl := thermostat.New(sens, rel,
		thermostat.WithConfig(cfg.Thermostat()),
		thermostat.WithRecorder(m),
	)
	defer ctrl.Close()
	m.Observe(ctrl)

	trips := make(chan string, 4)
	ctrl.OnCriticalError(func(msg string) {
		select {
		case trips <- msg:
		default:
			log.Printf("trip event dropped: %s", msg)
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	topics := mqtt.TopicsFor(cfg.MQTT.TopicPrefix)
	var (
		publisher  mqtt.Publisher        = mqtt.Disabled{}
		mqttStatus mqtt.ConnectionStatus = mqtt.Disabled{}
		wsBroker   string
	)
	if cfg.MQTT.Broker != "" {
		p := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Username:   cfg.MQTT.Username,
			Password:   cfg.MQTT.Password,
			Topics:     topics,
			BufferSize: cfg.MQTT.BufferSize,
		})
		go func() {
			if err := p.Connect(ctx); err != nil {
				log.Printf("mqtt: giving up: %v", err)
			}
		}()
		publisher, mqttStatus = p, p
		wsBroker = resolveWSBroker(cfg.MQTT.WSBroker, cfg.MQTT.Broker)
	} else {
		log.Printf("mqtt: no broker configured, publishing disabled")
	}
	defer publisher.Close()

	tracker := status.NewTracker(time.Now(), status.Config{
		BootID:      uuid.NewString(),
		HeartbeatMs: cfg.MQTT.Heartbeat.Milliseconds(),
		Broker:      cfg.MQTT.Broker,
		HTTPPort:    cfg.HTTP.Addr,
		WSBroker:    wsBroker,
		StateTopic:  topics.State,
	}, status.Hardware{Sensor: sens.Mode(), Relay: rel.Backend()}, ctrl)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	if cfg.Control.AutoStart {
		if err := ctrl.Start(thermostat.PartialConfig{}); err != nil {
			return fmt.Errorf("start thermostat: %w", err)
		}
	}

	snap := tracker.Snapshot()
	if err := publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      mqtt.EventStartup,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, mqtt.EventStartup, ""),
	}); err != nil {
		log.Printf("failed to publish startup event: %v", err)
	}

	stopHTTP := func() {}
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, ctrl, tracker, m, web.WithAssets(cfg.HTTP.Assets))
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("http server error: %v", err)
			}
		}()
		var once sync.Once
		stopHTTP = func() {
			once.Do(func() {
				sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer scancel()
				if err := srv.Shutdown(sctx); err != nil {
					log.Printf("http shutdown: %v", err)
				}
			})
		}
		defer stopHTTP()
		log.Printf("http server listening on %s", cfg.HTTP.Addr)
	}

	log.Printf("started: sensor=%s relay=%s broker=%q heartbeat=%v autostart=%v",
		sens.Mode(), rel.Backend(), cfg.MQTT.Broker, cfg.MQTT.Heartbeat, cfg.Control.AutoStart)

	stateTicker := time.NewTicker(stateInterval)
	defer stateTicker.Stop()

	var heartbeat <-chan time.Time
	if cfg.MQTT.Heartbeat > 0 {
		hb := time.NewTicker(cfg.MQTT.Heartbeat)
		defer hb.Stop()
		heartbeat = hb.C
	}

	return runLoop(loopDeps{
		stopHTTP:   stopHTTP,
		ctrl:       ctrl,
		relay:      rel,
		publisher:  publisher,
		mqttStatus: mqttStatus,
		tracker:    tracker,
		now:        time.Now,
	}, stateTicker.C, heartbeat, trips, sigCh)
}

// controller is the part of thermostat.Controller runLoop needs.
type controller interface {
	State() thermostat.State
	Config() thermostat.Config
	Close() error
}

type releaser interface {
	Release() error
}

type loopDeps struct {
	// stopHTTP, if set, closes the API before the controller so no request
	// can start it during shutdown.
	stopHTTP   func()
	ctrl       controller
	relay      releaser
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	tracker    *status.Tracker
	now        func() time.Time
}

// stateKey is the part of the controller state whose change is worth a
// state message.
type stateKey struct {
	status      thermostat.Status
	heating     bool
	temperature float64
	target      float64
	hysteresis  float64
	lastError   string
}

func keyOf(s thermostat.State, c thermostat.Config) stateKey {
	return stateKey{
		status:      s.Status,
		heating:     s.IsHeating,
		temperature: math.Round(s.CurrentTemperature*10) / 10,
		target:      c.TargetTemperature,
		hysteresis:  c.Hysteresis,
		lastError:   s.LastError,
	}
}

// runLoop publishes state changes, heartbeats and trips until a signal
// arrives, then runs the shutdown sequence once: stop the HTTP API, stop the
// controller, release the relay, publish SHUTDOWN.
func runLoop(d loopDeps, stateTick, heartbeat <-chan time.Time, trips <-chan string, sig <-chan os.Signal) error {
	var last *stateKey

	publishState := func(force bool) {
		s, c := d.ctrl.State(), d.ctrl.Config()
		k := keyOf(s, c)
		if !force && last != nil && *last == k {
			return
		}
		last = &k
		if err := d.publisher.PublishState(mqtt.StateEvent{
			Timestamp:  d.now(),
			State:      s,
			Target:     c.TargetTemperature,
			Hysteresis: c.Hysteresis,
		}); err != nil {
			log.Printf("state publish error: %v", err)
		}
	}

	systemEvent := func(event, reason string, retained bool) mqtt.SystemEvent {
		ev := mqtt.SystemEvent{
			Timestamp: d.now(),
			Event:     event,
			Reason:    reason,
			Retained:  retained,
		}
		if d.tracker != nil {
			if d.mqttStatus != nil {
				d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
			}
			ev.RawPayload = status.FormatStatusEvent(d.tracker.Snapshot(), event, reason)
		}
		return ev
	}

	for {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			if d.stopHTTP != nil {
				d.stopHTTP()
			}
			if err := d.ctrl.Close(); err != nil {
				log.Printf("stop thermostat: %v", err)
			}
			if err := d.relay.Release(); err != nil {
				log.Printf("release relay: %v", err)
			}
			publishState(true)
			if err := d.publisher.PublishSystem(systemEvent(mqtt.EventShutdown, signalName(s), true)); err != nil {
				log.Printf("failed to publish shutdown event: %v", err)
			} else {
				log.Printf("published shutdown event")
			}
			return nil

		case msg := <-trips:
			log.Printf("critical: %s", msg)
			publishState(true)
			if err := d.publisher.PublishSystem(systemEvent(mqtt.EventTripped, msg, true)); err != nil {
				log.Printf("failed to publish trip event: %v", err)
			}

		case <-heartbeat:
			if d.tracker != nil {
				if net := readNetworkInfo(); net != nil {
					d.tracker.SetNetwork(net)
				}
			}
			publishState(true)
			if err := d.publisher.PublishSystem(systemEvent(mqtt.EventHeartbeat, "", false)); err != nil {
				log.Printf("heartbeat publish error: %v", err)
			}

		case <-stateTick:
			if d.tracker != nil && d.mqttStatus != nil {
				d.tracker.SetMQTTConnected(d.mqttStatus.IsConnected())
			}
			publishState(false)
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	case syscall.SIGHUP:
		return "SIGHUP"
	}
	return "UNKNOWN"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}

// resolveWSBroker converts the ws_broker setting into a concrete URL.
// "=broker" derives ws://host:9001 from the TCP broker address; "off" or
// empty disables the live page.
func resolveWSBroker(ws, broker string) string {
	if ws == "off" || ws == "" {
		return ""
	}
	if ws != "=broker" {
		return ws
	}
	u, err := url.Parse(broker)
	if err != nil {
		log.Printf("ws_broker: cannot parse broker %q: %v", broker, err)
		return ""
	}
	u.Scheme = "ws"
	u.Host = u.Hostname() + ":9001"
	return u.String()
}
