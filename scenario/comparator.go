package scenario

import "fmt"

// A Comparator is one of the closed set of comparison kinds a condition
// event can use. Unknown comparator strings are rejected when the scenario
// is loaded, never during evaluation.
type Comparator int

const (
	LT Comparator = iota
	LE
	GT
	GE
	EQ
)

// ParseComparator resolves an operator string from a scenario file.
func ParseComparator(s string) (Comparator, error) {
	switch s {
	case "<":
		return LT, nil
	case "<=":
		return LE, nil
	case ">":
		return GT, nil
	case ">=":
		return GE, nil
	case "=", "==":
		return EQ, nil
	default:
		return 0, fmt.Errorf("unknown comparator %q", s)
	}
}

// Eval applies the comparator to (a, b), as in "a <op> b".
func (c Comparator) Eval(a, b float64) bool {
	switch c {
	case LT:
		return a < b
	case LE:
		return a <= b
	case GT:
		return a > b
	case GE:
		return a >= b
	case EQ:
		return a == b
	default:
		panic(fmt.Sprintf("invalid comparator %d", c))
	}
}

func (c Comparator) String() string {
	switch c {
	case LT:
		return "<"
	case LE:
		return "<="
	case GT:
		return ">"
	case GE:
		return ">="
	case EQ:
		return "=="
	default:
		return fmt.Sprintf("Comparator(%d)", int(c))
	}
}

// A Variable identifies which simulated quantity a condition event watches.
type Variable int

const (
	ReactorTemperature Variable = iota
	ReactorConcentration
)

// ParseVariable resolves a trigger variable name from a scenario file.
func ParseVariable(s string) (Variable, error) {
	switch s {
	case "reactor_temperature":
		return ReactorTemperature, nil
	case "reactor_concentration":
		return ReactorConcentration, nil
	default:
		return 0, fmt.Errorf("unknown trigger variable %q", s)
	}
}

func (v Variable) String() string {
	switch v {
	case ReactorTemperature:
		return "reactor_temperature"
	case ReactorConcentration:
		return "reactor_concentration"
	default:
		return fmt.Sprintf("Variable(%d)", int(v))
	}
}
