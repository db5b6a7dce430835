// Package scenario defines time-keyed and condition-keyed one-shot events
// that inject setpoint changes into a running simulation, and the engine
// that evaluates them against simulated state.
package scenario

import (
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tanklab/cstr/registers"
)

// An Action maps setpoint names (q_set, caf_set, tc_set) to the values to
// write when an event fires.
type Action map[string]float64

// A TimeEvent fires once, when simulated time first reaches its timestamp.
type TimeEvent struct {
	At      float64
	Action  Action
	Comment string
}

// A ConditionEvent fires once, when its comparison against the watched
// variable first holds.
type ConditionEvent struct {
	Variable   Variable
	Comparator Comparator
	Threshold  float64
	Action     Action
	Comment    string
}

// A Scenario is an immutable set of event rules, read once at startup.
// Run-time latch state lives in the Engine, so the same Scenario can drive
// any number of runs.
type Scenario struct {
	TimeEvents      []TimeEvent
	ConditionEvents []ConditionEvent
}

type rawTimeEvent struct {
	At      float64            `yaml:"at"`
	Action  map[string]float64 `yaml:"action"`
	Comment string             `yaml:"comment"`
}

type rawConditionEvent struct {
	Variable  string             `yaml:"variable"`
	Operator  string             `yaml:"operator"`
	Threshold float64            `yaml:"threshold"`
	Action    map[string]float64 `yaml:"action"`
	Comment   string             `yaml:"comment"`
}

type rawScenario struct {
	TimeEvents      []rawTimeEvent      `yaml:"time_events"`
	ConditionEvents []rawConditionEvent `yaml:"condition_events"`
}

// Load reads and validates a scenario file.
func Load(path string) (Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("reading scenario: %w", err)
	}

	return Parse(data)
}

// Parse validates scenario YAML. Malformed rules are rejected here with a
// descriptive error so they can never reach the simulation loop.
func Parse(data []byte) (Scenario, error) {
	var raw rawScenario
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Scenario{}, fmt.Errorf("parsing scenario: %w", err)
	}

	var sc Scenario

	for i, ev := range raw.TimeEvents {
		if ev.At < 0 {
			return Scenario{}, fmt.Errorf(
				"time event %d: negative timestamp %g", i, ev.At)
		}

		action, err := validateAction(ev.Action)
		if err != nil {
			return Scenario{}, fmt.Errorf("time event %d: %w", i, err)
		}

		sc.TimeEvents = append(sc.TimeEvents, TimeEvent{
			At:      ev.At,
			Action:  action,
			Comment: ev.Comment,
		})
	}

	for i, ev := range raw.ConditionEvents {
		variable, err := ParseVariable(ev.Variable)
		if err != nil {
			return Scenario{}, fmt.Errorf("condition event %d: %w", i, err)
		}

		cmp, err := ParseComparator(ev.Operator)
		if err != nil {
			return Scenario{}, fmt.Errorf("condition event %d: %w", i, err)
		}

		action, err := validateAction(ev.Action)
		if err != nil {
			return Scenario{}, fmt.Errorf("condition event %d: %w", i, err)
		}

		sc.ConditionEvents = append(sc.ConditionEvents, ConditionEvent{
			Variable:   variable,
			Comparator: cmp,
			Threshold:  ev.Threshold,
			Action:     action,
			Comment:    ev.Comment,
		})
	}

	return sc, nil
}

func validateAction(raw map[string]float64) (Action, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("event has no action")
	}

	action := make(Action, len(raw))
	for name, value := range raw {
		if _, ok := registers.SetpointAddr(name); !ok {
			return nil, fmt.Errorf(
				"action references unknown setpoint %q (valid: %v)",
				name, registers.SetpointNames())
		}
		// YAML .nan and .inf parse cleanly but cannot be written to a
		// fixed-point register.
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, fmt.Errorf(
				"action value for %q is not finite", name)
		}
		action[name] = value
	}

	return action, nil
}

// sortedNames returns the action's setpoint names in a stable order so
// that applying an action is deterministic.
func (a Action) sortedNames() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
