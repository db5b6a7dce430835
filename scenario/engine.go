package scenario

import (
	"log"
	"sync"

	"github.com/tanklab/cstr/registers"
)

//go:generate mockgen -destination "mock_scenario_test.go" -package scenario -write_package_comment=false github.com/tanklab/cstr/scenario Store

// Store is the register access an engine needs to apply actions. The
// engine writes setpoints through the same path a network client would.
type Store interface {
	Read(addr int) float64
	Write(addr int, v float64)
}

// A FiredRecord describes one event firing, for logs and the monitor.
type FiredRecord struct {
	Kind    string  `json:"kind"`
	Index   int     `json:"index"`
	SimTime float64 `json:"sim_time"`
	Comment string  `json:"comment"`
}

// An Engine evaluates a scenario's rules against simulated state once per
// tick. Each rule fires at most once per run; the latch state lives here,
// not in the Scenario, so a fresh Engine restarts the scenario cleanly.
type Engine struct {
	scenario Scenario
	store    Store
	dt       float64
	logger   *log.Logger

	timeFired []bool
	condFired []bool

	mu    sync.Mutex
	fired []FiredRecord
}

// NewEngine creates an engine for one run. dt is the simulation tick width,
// used as the tolerance window for time-keyed events.
func NewEngine(sc Scenario, store Store, dt float64, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}

	return &Engine{
		scenario:  sc,
		store:     store,
		dt:        dt,
		logger:    logger,
		timeFired: make([]bool, len(sc.TimeEvents)),
		condFired: make([]bool, len(sc.ConditionEvents)),
	}
}

// Evaluate checks every rule, in declaration order, against the current
// simulated time and true state, and applies the actions of rules that
// fire. Later rules observe setpoint writes made by earlier rules in the
// same tick.
func (e *Engine) Evaluate(now, temperature, concentration float64) {
	for i, ev := range e.scenario.TimeEvents {
		if e.timeFired[i] {
			continue
		}

		// Discrete ticks can overshoot the timestamp; fire on the first
		// tick at or past At, with half a tick of tolerance.
		if now < ev.At-e.dt/2 {
			continue
		}

		e.timeFired[i] = true
		e.logger.Printf("time event %d fired at t=%.1fs: %s",
			i, now, ev.Comment)
		e.apply(ev.Action)
		e.record(FiredRecord{
			Kind: "time", Index: i, SimTime: now, Comment: ev.Comment,
		})
	}

	for i, ev := range e.scenario.ConditionEvents {
		if e.condFired[i] {
			continue
		}

		value := temperature
		if ev.Variable == ReactorConcentration {
			value = concentration
		}

		if !ev.Comparator.Eval(value, ev.Threshold) {
			continue
		}

		e.condFired[i] = true
		e.logger.Printf(
			"condition event %d fired at t=%.1fs: %s (%.2f %s %.2f) %s",
			i, now, ev.Variable, value, ev.Comparator, ev.Threshold,
			ev.Comment)
		e.apply(ev.Action)
		e.record(FiredRecord{
			Kind: "condition", Index: i, SimTime: now, Comment: ev.Comment,
		})
	}
}

func (e *Engine) apply(action Action) {
	for _, name := range action.sortedNames() {
		addr, _ := registers.SetpointAddr(name)
		old := e.store.Read(addr)
		e.store.Write(addr, action[name])
		e.logger.Printf("  %s: %.2f -> %.2f", name, old, action[name])
	}
}

func (e *Engine) record(r FiredRecord) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.fired = append(e.fired, r)
}

// Fired returns the events that have fired so far this run, in firing
// order. Safe to call from other goroutines.
func (e *Engine) Fired() []FiredRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]FiredRecord, len(e.fired))
	copy(out, e.fired)

	return out
}
