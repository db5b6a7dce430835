// Package registers provides the fixed-point register store that connects
// the simulation loop with the register server. It is the only shared
// mutable state in the system.
package registers

import (
	"math"
	"sync"
)

// Scale is the fixed-point scale factor of the wire protocol. A register
// holds round(value * Scale) as a signed integer.
const Scale = 100.0

// Register address map. Addresses 0..2 are written by clients and read by
// the simulation loop; addresses 3..7 are written by the loop and read by
// clients.
const (
	AddrFlowSet = iota
	AddrFeedConcSet
	AddrCoolantSet
	AddrCoolantActual
	AddrTReal
	AddrCaReal
	AddrTSensed
	AddrCaSensed
)

// NumWords is the size of the allocated register map. All words are
// pre-zeroed; addresses at or beyond NumWords do not exist.
const NumWords = 120

// setpointAddrs maps scenario action names to writable setpoint registers.
var setpointAddrs = map[string]int{
	"q_set":   AddrFlowSet,
	"caf_set": AddrFeedConcSet,
	"tc_set":  AddrCoolantSet,
}

// SetpointAddr resolves a setpoint name used in scenario actions to its
// register address.
func SetpointAddr(name string) (int, bool) {
	addr, ok := setpointAddrs[name]
	return addr, ok
}

// SetpointNames lists the valid scenario action names.
func SetpointNames() []string {
	return []string{"q_set", "caf_set", "tc_set"}
}

// Encode converts a physical value to its fixed-point register encoding.
func Encode(v float64) int32 {
	return int32(math.Round(v * Scale))
}

// Decode converts a fixed-point register encoding back to a physical value.
func Decode(enc int32) float64 {
	return float64(enc) / Scale
}

// A Store is a mutex-serialized table of fixed-point registers. Individual
// reads and writes are atomic with respect to each other; there is no
// cross-address atomicity, so a reader may observe registers written at
// different ticks.
type Store struct {
	mu    sync.Mutex
	words []int32
}

// NewStore creates a store with NumWords pre-zeroed registers.
func NewStore() *Store {
	return &Store{words: make([]int32, NumWords)}
}

// Read decodes and returns the register at addr. Reads outside the
// allocated map return NaN; callers must check before using the value in
// control logic.
func (s *Store) Read(addr int) float64 {
	if addr < 0 || addr >= len(s.words) {
		return math.NaN()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return Decode(s.words[addr])
}

// Write encodes v and stores it at addr, overwriting the previous value.
// Writes outside the allocated map are ignored.
func (s *Store) Write(addr int, v float64) {
	s.WriteEncoded(addr, Encode(v))
}

// ReadEncoded returns the raw encoded register at addr. It reports false
// for addresses outside the allocated map.
func (s *Store) ReadEncoded(addr int) (int32, bool) {
	if addr < 0 || addr >= len(s.words) {
		return 0, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.words[addr], true
}

// WriteEncoded stores a raw encoded value at addr. It reports false for
// addresses outside the allocated map.
func (s *Store) WriteEncoded(addr int, enc int32) bool {
	if addr < 0 || addr >= len(s.words) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.words[addr] = enc

	return true
}

// Len returns the number of allocated registers.
func (s *Store) Len() int {
	return len(s.words)
}

// Snapshot returns a decoded copy of the named registers (addresses 0..7),
// keyed for the monitoring API.
func (s *Store) Snapshot() map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return map[string]float64{
		"q_set":     Decode(s.words[AddrFlowSet]),
		"caf_set":   Decode(s.words[AddrFeedConcSet]),
		"tc_set":    Decode(s.words[AddrCoolantSet]),
		"tc_actual": Decode(s.words[AddrCoolantActual]),
		"t_real":    Decode(s.words[AddrTReal]),
		"ca_real":   Decode(s.words[AddrCaReal]),
		"t_sensed":  Decode(s.words[AddrTSensed]),
		"ca_sensed": Decode(s.words[AddrCaSensed]),
	}
}
