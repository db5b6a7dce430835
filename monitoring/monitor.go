// Package monitoring turns a running simulation into a small HTTP server
// for observation: register snapshots, loop state, fired events, process
// stats and Prometheus metrics. It is strictly read-only; setpoint writes
// go through the register protocol, never through here.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	// Enable profiling endpoints.
	_ "net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/process"

	"github.com/tanklab/cstr/history"
	"github.com/tanklab/cstr/registers"
	"github.com/tanklab/cstr/scenario"
	"github.com/tanklab/cstr/simloop"
)

// A Monitor serves the observability API for one simulation.
type Monitor struct {
	listenAddr string
	logger     *log.Logger

	loop   *simloop.Loop
	store  *registers.Store
	events *scenario.Engine

	registry     *prometheus.Registry
	tickDuration prometheus.Histogram
	overruns     prometheus.Counter

	listener net.Listener
	server   *http.Server
}

// NewMonitor creates a monitor. Register the loop and store before
// starting the server.
func NewMonitor() *Monitor {
	m := &Monitor{
		listenAddr: "localhost:6060",
		logger:     log.Default(),
		registry:   prometheus.NewRegistry(),
	}

	m.tickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cstr_tick_duration_seconds",
		Help:    "Wall-clock processing time of each simulation tick.",
		Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
	})
	m.overruns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cstr_tick_overruns_total",
		Help: "Ticks whose processing exceeded the tick budget.",
	})

	m.registry.MustRegister(m.tickDuration, m.overruns)

	return m
}

// WithListenAddr sets the address the monitor listens on.
func (m *Monitor) WithListenAddr(addr string) *Monitor {
	m.listenAddr = addr
	return m
}

// WithLogger sets the monitor's logger.
func (m *Monitor) WithLogger(logger *log.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterLoop registers the simulation loop to observe. It hooks the
// loop's ticks, so it must be called before the loop starts running.
func (m *Monitor) RegisterLoop(l *simloop.Loop) {
	m.loop = l

	l.AddTickHook(func(elapsed time.Duration, overrun bool) {
		m.tickDuration.Observe(elapsed.Seconds())
		if overrun {
			m.overruns.Inc()
		}
	})

	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "cstr_ticks_total",
			Help: "Completed simulation ticks.",
		},
		func() float64 { return float64(l.Ticks()) },
	))
	m.registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Name: "cstr_integration_failures_total",
			Help: "Ticks that held the previous state after a solver failure.",
		},
		func() float64 { return float64(l.IntegrationFailures()) },
	))
}

// RegisterStore registers the register store to snapshot.
func (m *Monitor) RegisterStore(s *registers.Store) {
	m.store = s
}

// RegisterEvents registers the scenario engine whose firings are reported.
func (m *Monitor) RegisterEvents(e *scenario.Engine) {
	m.events = e

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "cstr_events_fired",
			Help: "Scenario rules that have fired this run.",
		},
		func() float64 { return float64(len(e.Fired())) },
	))
}

// StartServer begins serving the monitoring API in the background.
func (m *Monitor) StartServer() error {
	listener, err := net.Listen("tcp", m.listenAddr)
	if err != nil {
		return fmt.Errorf("monitor listen on %s: %w", m.listenAddr, err)
	}

	m.listener = listener
	m.server = &http.Server{Handler: m.router()}

	m.logger.Printf("monitoring simulation at http://%s",
		listener.Addr().String())

	go func() {
		err := m.server.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "monitor server: %v\n", err)
		}
	}()

	return nil
}

// Shutdown stops the monitoring server, waiting for in-flight requests.
func (m *Monitor) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}

	return m.server.Shutdown(ctx)
}

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/registers", m.listRegisters)
	r.HandleFunc("/api/state", m.loopState)
	r.HandleFunc("/api/events", m.listEvents)
	r.HandleFunc("/api/process", m.processStats)
	r.Handle("/metrics", promhttp.HandlerFor(
		m.registry, promhttp.HandlerOpts{}))

	// The pprof handlers registered themselves on the default mux.
	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

func (m *Monitor) listRegisters(w http.ResponseWriter, _ *http.Request) {
	if m.store == nil {
		http.Error(w, "no store registered", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, m.store.Snapshot())
}

type stateResponse struct {
	State               string          `json:"state"`
	SimTime             float64         `json:"sim_time"`
	Ticks               uint64          `json:"ticks"`
	Overruns            uint64          `json:"overruns"`
	IntegrationFailures uint64          `json:"integration_failures"`
	LastRecord          *history.Record `json:"last_record,omitempty"`
}

func (m *Monitor) loopState(w http.ResponseWriter, _ *http.Request) {
	if m.loop == nil {
		http.Error(w, "no loop registered", http.StatusServiceUnavailable)
		return
	}

	resp := stateResponse{
		State:               m.loop.State().String(),
		SimTime:             m.loop.SimTime(),
		Ticks:               m.loop.Ticks(),
		Overruns:            m.loop.Overruns(),
		IntegrationFailures: m.loop.IntegrationFailures(),
	}

	if rec, ok := m.loop.History().Last(); ok {
		resp.LastRecord = &rec
	}

	writeJSON(w, resp)
}

func (m *Monitor) listEvents(w http.ResponseWriter, _ *http.Request) {
	fired := []scenario.FiredRecord{}
	if m.events != nil {
		fired = m.events.Fired()
	}

	writeJSON(w, fired)
}

type processResponse struct {
	Pid        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	RSSBytes   uint64  `json:"rss_bytes"`
}

func (m *Monitor) processStats(w http.ResponseWriter, _ *http.Request) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := processResponse{Pid: p.Pid}
	if cpu, err := p.CPUPercent(); err == nil {
		resp.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		resp.RSSBytes = mem.RSS
	}

	writeJSON(w, resp)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
