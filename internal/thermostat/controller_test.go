package thermostat

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/thermostat/internal/logic"
	"github.com/sweeney/thermostat/internal/relay"
	"github.com/sweeney/thermostat/internal/sensor"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeRecorder struct {
	mu         sync.Mutex
	ticksOK    int
	ticksFail  int
	actuations []logic.Action
	trips      int
}

func (r *fakeRecorder) Tick(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ok {
		r.ticksOK++
	} else {
		r.ticksFail++
	}
}

func (r *fakeRecorder) Actuation(a logic.Action, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		r.actuations = append(r.actuations, a)
	}
}

func (r *fakeRecorder) Trip() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trips++
}

type harness struct {
	c       *Controller
	sensor  *sensor.FakeSensor
	backend *relay.FakeBackend
	relay   *relay.Actuator
	clock   *fakeClock
	rec     *fakeRecorder
}

func newHarness(t *testing.T, initial float64) *harness {
	t.Helper()
	h := &harness{
		sensor:  sensor.NewFakeSensor(sensor.Good(initial)),
		backend: relay.NewFakeBackend(),
		clock:   newFakeClock(),
		rec:     &fakeRecorder{},
	}
	h.relay = relay.New(h.backend)
	h.c = New(h.sensor, h.relay, WithClock(h.clock.Now), WithRecorder(h.rec))
	t.Cleanup(func() { h.c.Close() })
	return h
}

// manual returns a config whose poll loop never fires on its own, so tests
// drive ticks with step.
func manual(target, hysteresis float64) PartialConfig {
	poll := time.Hour
	return PartialConfig{TargetTemperature: &target, Hysteresis: &hysteresis, PollInterval: &poll}
}

func (h *harness) step(readings ...sensor.Reading) {
	for _, r := range readings {
		h.sensor.Set(r)
		h.c.mu.Lock()
		gen := h.c.gen
		h.c.mu.Unlock()
		h.c.tick(context.Background(), gen)
	}
}

func ptr[T any](v T) *T { return &v }

func TestNewIsStopped(t *testing.T) {
	h := newHarness(t, 20)

	s := h.c.State()
	assert.Equal(t, StatusStopped, s.Status)
	assert.False(t, s.IsRunning)
	assert.False(t, s.IsHeating)
	assert.Equal(t, DefaultConfig(), h.c.Config())
}

func TestStartDefaults(t *testing.T) {
	h := newHarness(t, 20)

	require.NoError(t, h.c.Start(PartialConfig{}))

	s := h.c.State()
	assert.Equal(t, StatusRunning, s.Status)
	assert.True(t, s.IsRunning)
	assert.Equal(t, 20.0, s.CurrentTemperature)
	assert.Equal(t, h.clock.Now(), s.LastUpdated)
	assert.Equal(t, DefaultConfig(), h.c.Config())
}

func TestStartDoesNotActuate(t *testing.T) {
	h := newHarness(t, 15)

	require.NoError(t, h.c.Start(manual(22, 1.5)))

	assert.False(t, h.relay.State(), "the first actuation happens on a tick")
	assert.Equal(t, 15.0, h.c.State().CurrentTemperature)
}

func TestStartValidation(t *testing.T) {
	tests := []struct {
		name string
		p    PartialConfig
	}{
		{"target too low", PartialConfig{TargetTemperature: ptr(4.9)}},
		{"target too high", PartialConfig{TargetTemperature: ptr(30.1)}},
		{"target NaN", PartialConfig{TargetTemperature: ptr(math.NaN())}},
		{"hysteresis zero", PartialConfig{Hysteresis: ptr(0.0)}},
		{"hysteresis too high", PartialConfig{Hysteresis: ptr(5.01)}},
		{"poll zero", PartialConfig{PollInterval: ptr(time.Duration(0))}},
		{"max errors zero", PartialConfig{MaxConsecutiveErrors: ptr(0)}},
		{"negative dwell", PartialConfig{MinActuationInterval: ptr(-time.Second)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 20)

			err := h.c.Start(tt.p)
			require.ErrorIs(t, err, ErrValidation)
			assert.False(t, h.c.State().IsRunning)
			assert.Equal(t, DefaultConfig(), h.c.Config())
			assert.Equal(t, 0, h.sensor.Calls(), "no refresh on rejected start")
		})
	}
}

func TestStartBoundaryValues(t *testing.T) {
	h := newHarness(t, 20)
	require.NoError(t, h.c.Start(PartialConfig{TargetTemperature: ptr(5.0), Hysteresis: ptr(5.0)}))
	require.NoError(t, h.c.Stop())
	require.NoError(t, h.c.Start(PartialConfig{TargetTemperature: ptr(30.0), Hysteresis: ptr(0.1)}))
}

func TestStartWhileRunningIsNoop(t *testing.T) {
	h := newHarness(t, 20)
	require.NoError(t, h.c.Start(manual(22, 1.5)))

	h.c.mu.Lock()
	gen := h.c.gen
	h.c.mu.Unlock()

	require.NoError(t, h.c.Start(PartialConfig{TargetTemperature: ptr(25.0)}))

	assert.Equal(t, 22.0, h.c.TargetTemperature(), "config must not change")
	h.c.mu.Lock()
	assert.Equal(t, gen, h.c.gen, "no second schedule")
	h.c.mu.Unlock()
}

func TestStartMergesOverLastConfig(t *testing.T) {
	h := newHarness(t, 20)
	require.NoError(t, h.c.Start(manual(24, 2)))
	require.NoError(t, h.c.Stop())

	require.NoError(t, h.c.Start(PartialConfig{Hysteresis: ptr(0.5)}))

	cfg := h.c.Config()
	assert.Equal(t, 24.0, cfg.TargetTemperature)
	assert.Equal(t, 0.5, cfg.Hysteresis)
	assert.Equal(t, time.Hour, cfg.PollInterval)
}

func TestStartInitialReadFailure(t *testing.T) {
	h := newHarness(t, 20)
	h.sensor.Set(sensor.Bad())

	require.NoError(t, h.c.Start(manual(22, 1.5)))

	s := h.c.State()
	assert.True(t, s.IsRunning)
	assert.Equal(t, 0, s.ConsecutiveErrors, "initial refresh is best effort")
}

// Scenario: target 22, hysteresis 1.5, room at 19.
func TestHysteresisScenario(t *testing.T) {
	h := newHarness(t, 19)
	require.NoError(t, h.c.Start(manual(22, 1.5)))

	h.step(sensor.Good(19))
	require.True(t, h.c.State().IsHeating, "19 < 20.5 must start heating")
	assert.True(t, h.backend.Level())

	h.clock.Advance(40 * time.Second)
	h.step(sensor.Good(20.5), sensor.Good(21.2), sensor.Good(21.9))
	assert.True(t, h.c.State().IsHeating, "inside the band heating continues")

	h.step(sensor.Good(22.0))
	require.False(t, h.c.State().IsHeating, "reaching 22 must stop heating")
	assert.False(t, h.backend.Level())

	// Immediately after: a dip, even a deep one, must wait out the dwell.
	h.clock.Advance(time.Second)
	h.step(sensor.Good(21.9), sensor.Good(19.0))
	assert.False(t, h.c.State().IsHeating)

	h.clock.Advance(DefaultMinActuationInterval)
	h.step(sensor.Good(19.0))
	assert.True(t, h.c.State().IsHeating, "dwell elapsed")

	assert.Equal(t, []logic.Action{logic.ActionOn, logic.ActionOff, logic.ActionOn}, h.rec.actuations)
}

func TestDwellLimitsActuations(t *testing.T) {
	h := newHarness(t, 19)
	require.NoError(t, h.c.Start(manual(22, 1.5)))

	// Alternate across both thresholds within one dwell window.
	for i := 0; i < 10; i++ {
		h.step(sensor.Good(19), sensor.Good(23))
		h.clock.Advance(time.Second)
	}

	assert.Len(t, h.rec.actuations, 1)
}

func TestConsecutiveErrorsResetOnSuccess(t *testing.T) {
	h := newHarness(t, 21)
	require.NoError(t, h.c.Start(manual(22, 1.5)))

	h.step(sensor.Bad(), sensor.Bad(), sensor.Bad(), sensor.Bad())
	s := h.c.State()
	assert.Equal(t, 4, s.ConsecutiveErrors)
	assert.NotEmpty(t, s.LastError)
	assert.Equal(t, 21.0, s.CurrentTemperature, "failed reads keep the stale value")

	h.step(sensor.Good(21.5))
	s = h.c.State()
	assert.Equal(t, 0, s.ConsecutiveErrors)
	assert.Equal(t, 21.5, s.CurrentTemperature)
	assert.True(t, s.IsRunning)
}

func TestNonFiniteReadingIsFailure(t *testing.T) {
	h := newHarness(t, 21)
	require.NoError(t, h.c.Start(manual(22, 1.5)))

	h.step(
		sensor.Reading{Celsius: math.NaN(), OK: true},
		sensor.Reading{Celsius: math.Inf(1), OK: true},
	)
	assert.Equal(t, 2, h.c.State().ConsecutiveErrors)
}

func TestSafetyTrip(t *testing.T) {
	h := newHarness(t, 19)
	require.NoError(t, h.c.Start(PartialConfig{
		TargetTemperature:    ptr(22.0),
		PollInterval:         ptr(time.Hour),
		MaxConsecutiveErrors: ptr(3),
	}))
	h.step(sensor.Good(19))
	require.True(t, h.relay.State())

	var msgs []string
	h.c.OnCriticalError(func(msg string) { msgs = append(msgs, msg) })

	h.step(sensor.Bad(), sensor.Bad())
	assert.True(t, h.c.State().IsRunning)
	assert.Empty(t, msgs)

	h.step(sensor.Bad())

	s := h.c.State()
	assert.Equal(t, StatusTripped, s.Status)
	assert.False(t, s.IsRunning)
	assert.False(t, s.IsHeating)
	assert.False(t, h.backend.Level(), "relay must be off after a trip")
	assert.Contains(t, s.LastError, ErrSafetyTrip.Error())
	require.Len(t, msgs, 1)
	assert.Equal(t, s.LastError, msgs[0])
	assert.Equal(t, 1, h.rec.trips)

	// Ticks belonging to the tripped run are ignored.
	h.c.mu.Lock()
	staleGen := h.c.gen - 1
	h.c.mu.Unlock()
	h.c.tick(context.Background(), staleGen)
	assert.Len(t, msgs, 1)
	assert.Equal(t, StatusTripped, h.c.State().Status)
}

func TestSafetyTripStopsPollLoop(t *testing.T) {
	h := newHarness(t, 20)
	h.sensor.Set(sensor.Bad())

	require.NoError(t, h.c.Start(PartialConfig{
		PollInterval:         ptr(2 * time.Millisecond),
		MaxConsecutiveErrors: ptr(2),
	}))

	require.Eventually(t, func() bool {
		return h.c.State().Status == StatusTripped
	}, time.Second, time.Millisecond)

	h.c.loops.Wait()
	calls := h.sensor.Calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, h.sensor.Calls(), "no further ticks after a trip")
}

func TestObserverPanicIsContained(t *testing.T) {
	h := newHarness(t, 20)
	require.NoError(t, h.c.Start(PartialConfig{PollInterval: ptr(time.Hour), MaxConsecutiveErrors: ptr(1)}))

	called := false
	h.c.OnCriticalError(func(string) { panic("boom") })
	h.c.OnCriticalError(func(string) { called = true })

	assert.NotPanics(t, func() { h.step(sensor.Bad()) })
	assert.True(t, called)
}

func TestStartClearsTrip(t *testing.T) {
	h := newHarness(t, 20)
	require.NoError(t, h.c.Start(PartialConfig{PollInterval: ptr(time.Hour), MaxConsecutiveErrors: ptr(1)}))
	h.step(sensor.Bad())
	require.Equal(t, StatusTripped, h.c.State().Status)

	h.sensor.Set(sensor.Good(20))
	require.NoError(t, h.c.Start(PartialConfig{}))

	s := h.c.State()
	assert.Equal(t, StatusRunning, s.Status)
	assert.Empty(t, s.LastError)
	assert.Equal(t, 0, s.ConsecutiveErrors)
}

func TestStopTurnsRelayOff(t *testing.T) {
	h := newHarness(t, 19)
	require.NoError(t, h.c.Start(manual(22, 1.5)))
	h.step(sensor.Good(19))
	require.True(t, h.relay.State())

	require.NoError(t, h.c.Stop())

	s := h.c.State()
	assert.Equal(t, StatusStopped, s.Status)
	assert.False(t, s.IsRunning)
	assert.False(t, s.IsHeating)
	assert.False(t, h.backend.Level())

	writes := h.backend.WriteCount()
	require.NoError(t, h.c.Stop())
	assert.Equal(t, writes, h.backend.WriteCount(), "second Stop has no side effects")
}

func TestStopWhenNeverStarted(t *testing.T) {
	h := newHarness(t, 20)
	writes := h.backend.WriteCount()

	require.NoError(t, h.c.Stop())
	assert.Equal(t, writes, h.backend.WriteCount())
}

func TestStopRelayFailure(t *testing.T) {
	h := newHarness(t, 19)
	require.NoError(t, h.c.Start(manual(22, 1.5)))
	h.step(sensor.Good(19))
	h.backend.SetWriteError(errors.New("EIO"))

	err := h.c.Stop()
	require.ErrorIs(t, err, ErrActuation)

	s := h.c.State()
	assert.False(t, s.IsRunning, "stop must not get stuck")
	assert.True(t, s.IsHeating, "state reflects the relay, not the intent")
	assert.Contains(t, s.LastError, ErrActuation.Error())

	// A later Stop retries the relay.
	h.backend.SetWriteError(nil)
	require.NoError(t, h.c.Stop())
	assert.False(t, h.backend.Level())
	assert.False(t, h.c.State().IsHeating)
}

func TestActuationFailureKeepsState(t *testing.T) {
	h := newHarness(t, 19)
	require.NoError(t, h.c.Start(manual(22, 1.5)))
	h.backend.SetWriteError(errors.New("EIO"))

	h.step(sensor.Good(19))

	s := h.c.State()
	assert.False(t, s.IsHeating)
	assert.True(t, s.LastActuation.IsZero(), "failed writes do not start the dwell")
	assert.Contains(t, s.LastError, ErrActuation.Error())

	h.backend.SetWriteError(nil)
	h.step(sensor.Good(19))
	assert.True(t, h.c.State().IsHeating, "next tick retries")
}

func TestSetTargetTemperature(t *testing.T) {
	h := newHarness(t, 20)

	require.NoError(t, h.c.SetTargetTemperature(18.5))
	assert.Equal(t, 18.5, h.c.TargetTemperature())

	for _, v := range []float64{4.99, 30.01, math.NaN()} {
		err := h.c.SetTargetTemperature(v)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, 18.5, h.c.TargetTemperature())
	}
	assert.Empty(t, h.c.LastError())
}

func TestSetTargetReevaluatesImmediately(t *testing.T) {
	h := newHarness(t, 21)
	require.NoError(t, h.c.Start(PartialConfig{
		TargetTemperature:    ptr(22.0),
		PollInterval:         ptr(time.Hour),
		MinActuationInterval: ptr(time.Duration(0)),
	}))
	h.step(sensor.Good(20))
	require.True(t, h.relay.State())

	require.NoError(t, h.c.SetTargetTemperature(19.5))

	assert.False(t, h.relay.State(), "20 >= 19.5 turns heating off without waiting for a tick")
	assert.False(t, h.c.State().IsHeating)
}

func TestSetHysteresisReevaluatesImmediately(t *testing.T) {
	h := newHarness(t, 20.8)
	require.NoError(t, h.c.Start(manual(22, 1.5)))
	h.step(sensor.Good(20.8))
	require.False(t, h.relay.State(), "20.8 is inside the band")

	require.NoError(t, h.c.SetHysteresis(1.0))

	assert.True(t, h.relay.State(), "20.8 < 21 starts heating")
	assert.Equal(t, 1.0, h.c.Hysteresis())
}

func TestSetHysteresisValidation(t *testing.T) {
	h := newHarness(t, 20)
	for _, v := range []float64{0, -1, 5.5, math.NaN()} {
		assert.ErrorIs(t, h.c.SetHysteresis(v), ErrValidation)
	}
	assert.Equal(t, DefaultHysteresis, h.c.Hysteresis())
	require.NoError(t, h.c.SetHysteresis(5))
	assert.Equal(t, 5.0, h.c.Hysteresis())
}

func TestSettersWhileStoppedDoNotActuate(t *testing.T) {
	h := newHarness(t, 10)
	writes := h.backend.WriteCount()

	require.NoError(t, h.c.SetTargetTemperature(30))
	require.NoError(t, h.c.SetHysteresis(0.1))

	assert.Equal(t, writes, h.backend.WriteCount())
}

func TestResetAfterTrip(t *testing.T) {
	h := newHarness(t, 20)
	require.NoError(t, h.c.Start(PartialConfig{
		TargetTemperature:    ptr(23.0),
		PollInterval:         ptr(time.Hour),
		MaxConsecutiveErrors: ptr(1),
	}))
	h.step(sensor.Bad())
	require.Equal(t, StatusTripped, h.c.State().Status)

	require.NoError(t, h.c.Reset())

	s := h.c.State()
	assert.Equal(t, StatusStopped, s.Status, "a tripped controller was not running")
	assert.Empty(t, s.LastError)
	assert.Equal(t, 0, s.ConsecutiveErrors)
	assert.Equal(t, 23.0, h.c.TargetTemperature())
}

func TestResetWhileRunningRestarts(t *testing.T) {
	h := newHarness(t, 19)
	require.NoError(t, h.c.Start(manual(24, 2)))
	h.step(sensor.Good(19), sensor.Bad())
	require.True(t, h.relay.State())

	h.c.mu.Lock()
	gen := h.c.gen
	h.c.mu.Unlock()

	h.sensor.Set(sensor.Good(19))
	require.NoError(t, h.c.Reset())

	s := h.c.State()
	assert.True(t, s.IsRunning)
	assert.Equal(t, 0, s.ConsecutiveErrors)
	assert.Empty(t, s.LastError)
	assert.False(t, h.relay.State(), "reset stops heating")
	assert.Equal(t, 24.0, h.c.TargetTemperature())
	assert.Equal(t, 2.0, h.c.Hysteresis())
	h.c.mu.Lock()
	assert.Greater(t, h.c.gen, gen)
	h.c.mu.Unlock()
}

func TestPollLoopTicks(t *testing.T) {
	h := newHarness(t, 21)

	require.NoError(t, h.c.Start(PartialConfig{PollInterval: ptr(2 * time.Millisecond)}))
	require.Eventually(t, func() bool { return h.sensor.Calls() >= 4 }, time.Second, time.Millisecond)

	require.NoError(t, h.c.Close())
	calls := h.sensor.Calls()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, h.sensor.Calls(), "no ticks after Close")
}

func TestReadTimeoutCountsAsFailure(t *testing.T) {
	h := newHarness(t, 21)
	require.NoError(t, h.c.Start(PartialConfig{
		PollInterval:         ptr(time.Hour),
		MaxConsecutiveErrors: ptr(2),
		ReadTimeout:          ptr(5 * time.Millisecond),
	}))

	block := make(chan struct{})
	defer close(block)
	h.sensor.Block = block

	h.c.mu.Lock()
	gen := h.c.gen
	h.c.mu.Unlock()

	h.c.tick(context.Background(), gen)
	assert.Equal(t, 1, h.c.State().ConsecutiveErrors)
	h.c.tick(context.Background(), gen)
	assert.Equal(t, StatusTripped, h.c.State().Status)
}

func TestStopDiscardsInFlightRead(t *testing.T) {
	h := newHarness(t, 21)
	require.NoError(t, h.c.Start(manual(22, 1.5)))

	block := make(chan struct{})
	h.sensor.Block = block
	h.sensor.Set(sensor.Good(10))

	h.c.mu.Lock()
	gen := h.c.gen
	h.c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		h.c.tick(context.Background(), gen)
		close(done)
	}()

	require.Eventually(t, func() bool { return h.sensor.Calls() == 2 }, time.Second, time.Millisecond)
	require.NoError(t, h.c.Stop())
	close(block)
	<-done

	s := h.c.State()
	assert.Equal(t, 21.0, s.CurrentTemperature, "stale tick must not update state")
	assert.False(t, h.relay.State())
}

func TestTemperatureDoesNotMutateState(t *testing.T) {
	h := newHarness(t, 20)
	before := h.c.State()

	h.sensor.Set(sensor.Good(18.25))
	assert.Equal(t, 18.25, h.c.Temperature(context.Background()))
	assert.Equal(t, before, h.c.State())
}

func TestRecorderCountsTicks(t *testing.T) {
	h := newHarness(t, 21)
	require.NoError(t, h.c.Start(manual(22, 1.5)))

	h.step(sensor.Good(21), sensor.Bad(), sensor.Good(21))

	assert.Equal(t, 2, h.rec.ticksOK)
	assert.Equal(t, 1, h.rec.ticksFail)
}

func TestConcurrentAccess(t *testing.T) {
	h := newHarness(t, 21)
	require.NoError(t, h.c.Start(PartialConfig{PollInterval: ptr(time.Millisecond)}))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = h.c.SetTargetTemperature(18 + float64(j%10))
				_ = h.c.SetHysteresis(0.5 + float64(i)*0.5)
				_ = h.c.State()
				_ = h.c.Config()
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, h.c.Close())
	assert.False(t, h.c.State().IsRunning)
}

func TestStartAfterCloseFails(t *testing.T) {
	h := newHarness(t, 18)
	require.NoError(t, h.c.Start(manual(22, 1.5)))
	require.NoError(t, h.c.Close())

	err := h.c.Start(manual(22, 1.5))
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, h.c.State().IsRunning)

	require.NoError(t, h.c.Reset())
	assert.False(t, h.c.State().IsRunning)

	// Close stays idempotent.
	require.NoError(t, h.c.Close())
}

func TestCloseRacesStartStop(t *testing.T) {
	h := newHarness(t, 18)
	poll := PartialConfig{PollInterval: ptr(time.Millisecond), MinActuationInterval: ptr(time.Duration(0))}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if err := h.c.Start(poll); errors.Is(err, ErrClosed) {
				return
			}
			_ = h.c.Stop()
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(5 * time.Millisecond)
			_ = h.c.Close()
		}()
	}
	wg.Wait()
	<-done

	assert.False(t, h.c.State().IsRunning)
	assert.False(t, h.relay.State())

	calls := h.sensor.Calls()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, calls, h.sensor.Calls(), "no poll loop may run after Close")
}

func TestFirstTickIgnoresDwell(t *testing.T) {
	h := newHarness(t, 15)
	require.NoError(t, h.c.Start(manual(22, 1.5)))
	require.Equal(t, DefaultMinActuationInterval, h.c.Config().MinActuationInterval)

	h.step(sensor.Good(15))
	assert.True(t, h.relay.State(), "no prior actuation: first tick heats")

	h.clock.Advance(time.Second)
	h.step(sensor.Good(23))
	assert.True(t, h.relay.State(), "dwell runs from the first actuation")

	h.clock.Advance(DefaultMinActuationInterval)
	h.step(sensor.Good(23))
	assert.False(t, h.relay.State())
}
