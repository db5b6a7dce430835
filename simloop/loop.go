// Package simloop drives the reactor model in wall-clock real time. The
// loop owns the true physical state; everything it shares with the rest of
// the system goes through the register store or the history ring.
package simloop

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/tanklab/cstr/history"
	"github.com/tanklab/cstr/plant"
	"github.com/tanklab/cstr/registers"
	"github.com/tanklab/cstr/scenario"
)

// LifecycleState is the externally visible state of the loop.
type LifecycleState int32

const (
	Initializing LifecycleState = iota
	Running
	Stopped
)

func (s LifecycleState) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// A TickHook observes completed ticks. Hooks run on the loop goroutine and
// must not block.
type TickHook func(elapsed time.Duration, overrun bool)

// Config collects the tunable parameters of a loop. Zero values select the
// defaults of the original plant.
type Config struct {
	// DT is the simulated (and wall-clock) tick width in seconds.
	DT float64

	// CoolantRate limits how fast the actual coolant temperature can move
	// toward its setpoint, in K/s. Zero selects the default; a negative
	// value freezes the actuator.
	CoolantRate float64

	// NoiseStdTemp and NoiseStdConc are the standard deviations of the
	// sensed-value measurement noise. Zero selects the default; a
	// negative value disables the noise.
	NoiseStdTemp float64
	NoiseStdConc float64

	// InitialState, InitialCoolant, DefaultFlow and DefaultFeedConc seed
	// the registers during initialization.
	InitialState    plant.State
	InitialCoolant  float64
	DefaultFlow     float64
	DefaultFeedConc float64

	// LogInterval is the wall-clock period of the plant-state INFO line.
	LogInterval time.Duration

	// HistoryWindow is the ring capacity in ticks.
	HistoryWindow int
}

func (c Config) withDefaults() Config {
	if c.DT == 0 {
		c.DT = 0.1
	}
	switch {
	case c.CoolantRate == 0:
		c.CoolantRate = 0.1
	case c.CoolantRate < 0:
		c.CoolantRate = 0
	}
	switch {
	case c.NoiseStdTemp == 0:
		c.NoiseStdTemp = 0.15
	case c.NoiseStdTemp < 0:
		c.NoiseStdTemp = 0
	}
	switch {
	case c.NoiseStdConc == 0:
		c.NoiseStdConc = 0.005
	case c.NoiseStdConc < 0:
		c.NoiseStdConc = 0
	}
	if c.InitialState == (plant.State{}) {
		c.InitialState = plant.State{Ca: 0.9, T: 310.0}
	}
	if c.InitialCoolant == 0 {
		c.InitialCoolant = 300.0
	}
	if c.DefaultFlow == 0 {
		c.DefaultFlow = 100.0
	}
	if c.DefaultFeedConc == 0 {
		c.DefaultFeedConc = 1.0
	}
	if c.LogInterval == 0 {
		c.LogInterval = 10 * time.Second
	}
	if c.HistoryWindow == 0 {
		c.HistoryWindow = 1200
	}

	return c
}

// A Loop advances the plant every tick and mediates between the register
// store and the physical model.
type Loop struct {
	params plant.Params
	cfg    Config
	store  *registers.Store
	events *scenario.Engine
	ring   *history.Ring
	logger *log.Logger
	rng    *rand.Rand

	hooks []TickHook

	state       atomic.Int32
	simTimeBits atomic.Uint64

	ticks               atomic.Uint64
	overruns            atomic.Uint64
	integrationFailures atomic.Uint64

	truth   plant.State
	coolant float64
}

// NewLoop creates a loop over the given store. events may be nil when no
// scenario is loaded.
func NewLoop(
	store *registers.Store,
	params plant.Params,
	events *scenario.Engine,
	cfg Config,
	logger *log.Logger,
) *Loop {
	if logger == nil {
		logger = log.Default()
	}

	cfg = cfg.withDefaults()

	return &Loop{
		params: params,
		cfg:    cfg,
		store:  store,
		events: events,
		ring:   history.NewRing(cfg.HistoryWindow),
		logger: logger,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// AddTickHook registers a hook. Must be called before Run.
func (l *Loop) AddTickHook(h TickHook) {
	l.hooks = append(l.hooks, h)
}

// History returns the loop's record ring.
func (l *Loop) History() *history.Ring {
	return l.ring
}

// State returns the loop's lifecycle state.
func (l *Loop) State() LifecycleState {
	return LifecycleState(l.state.Load())
}

// SimTime returns the current simulated time in seconds.
func (l *Loop) SimTime() float64 {
	return math.Float64frombits(l.simTimeBits.Load())
}

// Ticks returns the number of completed ticks.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// Overruns returns how many ticks exceeded their wall-clock budget.
func (l *Loop) Overruns() uint64 {
	return l.overruns.Load()
}

// IntegrationFailures returns how many ticks held the previous state
// because the integrator did not converge.
func (l *Loop) IntegrationFailures() uint64 {
	return l.integrationFailures.Load()
}

// Run paces the loop in wall-clock time until ctx is canceled. The current
// tick always completes before the loop stops, so readers never observe a
// torn tick.
func (l *Loop) Run(ctx context.Context) {
	l.state.Store(int32(Initializing))
	l.initialize()
	l.state.Store(int32(Running))
	defer l.state.Store(int32(Stopped))

	tickBudget := time.Duration(l.cfg.DT * float64(time.Second))
	lastLog := time.Now()

	for tick := uint64(1); ; tick++ {
		start := time.Now()

		now := float64(tick) * l.cfg.DT
		l.step(now)
		l.simTimeBits.Store(math.Float64bits(now))
		l.ticks.Store(tick)

		if time.Since(lastLog) >= l.cfg.LogInterval {
			l.logPlantState()
			lastLog = time.Now()
		}

		elapsed := time.Since(start)
		overrun := elapsed >= tickBudget
		if overrun {
			l.overruns.Add(1)
		}

		for _, h := range l.hooks {
			h(elapsed, overrun)
		}

		// No sleep debt is carried: an overrun tick proceeds immediately
		// instead of bursting to catch up.
		sleep := tickBudget - elapsed
		if sleep < 0 {
			sleep = 0
		}

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			l.logger.Printf("simulation loop stopping after tick %d", tick)
			return
		case <-timer.C:
		}
	}
}

// initialize seeds the registers with default setpoints and the initial
// plant state.
func (l *Loop) initialize() {
	l.truth = l.cfg.InitialState
	l.coolant = l.cfg.InitialCoolant

	l.store.Write(registers.AddrFlowSet, l.cfg.DefaultFlow)
	l.store.Write(registers.AddrFeedConcSet, l.cfg.DefaultFeedConc)
	l.store.Write(registers.AddrCoolantSet, l.coolant)
	l.store.Write(registers.AddrCoolantActual, l.coolant)
	l.store.Write(registers.AddrTReal, l.truth.T)
	l.store.Write(registers.AddrCaReal, l.truth.Ca)
	l.store.Write(registers.AddrTSensed, l.truth.T)
	l.store.Write(registers.AddrCaSensed, l.truth.Ca)

	l.logger.Printf(
		"initial plant state: T=%6.1fK Ca=%5.3f Tc_act=%6.1fK",
		l.truth.T, l.truth.Ca, l.coolant)
}

// step executes one simulated tick at simulated time now.
func (l *Loop) step(now float64) {
	in := plant.Inputs{
		FlowRate: l.store.Read(registers.AddrFlowSet),
		FeedConc: l.store.Read(registers.AddrFeedConcSet),
	}
	coolantSet := l.store.Read(registers.AddrCoolantSet)

	if math.IsNaN(in.FlowRate) || math.IsNaN(in.FeedConc) ||
		math.IsNaN(coolantSet) {
		l.logger.Printf(
			"t=%.1fs: setpoint register unreadable, tick skipped", now)
		return
	}

	l.coolant = slewToward(l.coolant, coolantSet, l.cfg.CoolantRate*l.cfg.DT)
	in.CoolantTemp = l.coolant

	next, err := l.params.Step(l.truth, in, l.cfg.DT)
	if err != nil {
		// Fatal for the tick, not for the process: hold the clamped
		// pre-step state and keep ticking.
		l.integrationFailures.Add(1)
		l.logger.Printf(
			"t=%.1fs: integration failed (%v), holding previous state",
			now, err)
		next = l.truth.Clamp()
	}
	l.truth = next

	sensedT := l.truth.T + l.rng.NormFloat64()*l.cfg.NoiseStdTemp
	sensedCa := l.truth.Ca + l.rng.NormFloat64()*l.cfg.NoiseStdConc

	l.store.Write(registers.AddrCoolantActual, l.coolant)
	l.store.Write(registers.AddrTReal, l.truth.T)
	l.store.Write(registers.AddrCaReal, l.truth.Ca)
	l.store.Write(registers.AddrTSensed, sensedT)
	l.store.Write(registers.AddrCaSensed, sensedCa)

	if l.events != nil {
		l.events.Evaluate(now, l.truth.T, l.truth.Ca)
	}

	l.ring.Push(history.Record{
		Time:          now,
		FlowSet:       in.FlowRate,
		FeedConcSet:   in.FeedConc,
		CoolantSet:    coolantSet,
		CoolantActual: l.coolant,
		TReal:         l.truth.T,
		CaReal:        l.truth.Ca,
		TSensed:       sensedT,
		CaSensed:      sensedCa,
	})
}

func (l *Loop) logPlantState() {
	l.logger.Printf(
		"plant state: T_real=%6.1fK Ca_real=%5.3f Tc_act=%6.1fK",
		l.truth.T, l.truth.Ca, l.coolant)
}

// slewToward moves current toward target by at most maxDelta.
func slewToward(current, target, maxDelta float64) float64 {
	delta := target - current
	if delta > maxDelta {
		delta = maxDelta
	}
	if delta < -maxDelta {
		delta = -maxDelta
	}

	return current + delta
}
