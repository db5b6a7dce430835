// Package history keeps a bounded window of per-tick simulation records
// and fans them out to consumers such as the recorder and the monitor.
// Consumers never share mutable containers with the simulation loop; they
// receive copies over bounded channels.
package history

import (
	"log"
	"sync"
)

// A Record is one tick's worth of simulation output.
type Record struct {
	// Time is the simulated time in seconds.
	Time float64 `json:"time"`

	FlowSet       float64 `json:"q_set"`
	FeedConcSet   float64 `json:"caf_set"`
	CoolantSet    float64 `json:"tc_set"`
	CoolantActual float64 `json:"tc_actual"`

	TReal    float64 `json:"t_real"`
	CaReal   float64 `json:"ca_real"`
	TSensed  float64 `json:"t_sensed"`
	CaSensed float64 `json:"ca_sensed"`
}

// A Tap is one consumer's bounded subscription to the record stream. The
// producer never blocks on a tap: when a tap is full, its oldest pending
// record is dropped.
type Tap struct {
	ch chan Record
}

// Records returns the channel the tap's records arrive on. The channel is
// closed when the tap is unsubscribed.
func (t *Tap) Records() <-chan Record {
	return t.ch
}

// A Ring is a bounded, mutex-guarded window of the most recent records,
// with fan-out to subscribed taps.
type Ring struct {
	mu       sync.Mutex
	records  []Record
	capacity int
	taps     []*Tap
}

// NewRing creates a ring that keeps the most recent capacity records.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		log.Panic("ring capacity must be positive")
	}

	return &Ring{capacity: capacity}
}

// Push appends a record, evicting the oldest one if the window is full,
// and offers the record to every tap.
func (r *Ring) Push(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == r.capacity {
		copy(r.records, r.records[1:])
		r.records[len(r.records)-1] = rec
	} else {
		r.records = append(r.records, rec)
	}

	for _, t := range r.taps {
		offer(t, rec)
	}
}

// offer delivers without blocking, dropping the tap's oldest pending record
// to make room if needed.
func offer(t *Tap, rec Record) {
	select {
	case t.ch <- rec:
		return
	default:
	}

	select {
	case <-t.ch:
	default:
	}

	select {
	case t.ch <- rec:
	default:
	}
}

// Last returns the most recent record, if any.
func (r *Ring) Last() (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) == 0 {
		return Record{}, false
	}

	return r.records[len(r.records)-1], true
}

// Snapshot returns a copy of the window, oldest first.
func (r *Ring) Snapshot() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, len(r.records))
	copy(out, r.records)

	return out
}

// Size returns the number of records currently in the window.
func (r *Ring) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.records)
}

// Capacity returns the window size.
func (r *Ring) Capacity() int {
	return r.capacity
}

// Subscribe creates a tap that receives every record pushed from now on,
// buffering up to buffer records.
func (r *Ring) Subscribe(buffer int) *Tap {
	if buffer <= 0 {
		log.Panic("tap buffer must be positive")
	}

	t := &Tap{ch: make(chan Record, buffer)}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.taps = append(r.taps, t)

	return t
}

// Unsubscribe removes the tap and closes its channel.
func (r *Ring) Unsubscribe(t *Tap) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, tap := range r.taps {
		if tap == t {
			r.taps = append(r.taps[:i], r.taps[i+1:]...)
			close(t.ch)
			return
		}
	}
}
