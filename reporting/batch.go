// Package reporting runs scenarios offline, as fast as the solver allows,
// and writes the CSV data and markdown report for a run. It drives the
// same store, plant and event code paths as the real-time loop, minus
// wall-clock pacing and measurement noise.
package reporting

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/tanklab/cstr/datarecording"
	"github.com/tanklab/cstr/history"
	"github.com/tanklab/cstr/plant"
	"github.com/tanklab/cstr/registers"
	"github.com/tanklab/cstr/scenario"
)

// Config describes one batch run.
type Config struct {
	// Name labels the output files: <Name>_data.csv and <Name>.md.
	Name string

	// OutputDir is created if missing.
	OutputDir string

	// Duration and DT are in simulated seconds.
	Duration float64
	DT       float64

	// CoolantRate limits the coolant slew, in K/s. Zero selects the
	// default; a negative value freezes the actuator.
	CoolantRate float64

	// CatalystActivity scales the reaction pre-exponential factor.
	// Historical batch runs model an aged catalyst with 0.9.
	CatalystActivity float64

	// Scenario supplies the run's events.
	Scenario scenario.Scenario

	// Recorder, when set, also receives every tick row.
	Recorder datarecording.Recorder

	Logger *log.Logger
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "batch"
	}
	if c.OutputDir == "" {
		c.OutputDir = "simulation_result"
	}
	if c.Duration == 0 {
		c.Duration = 240.0
	}
	if c.DT == 0 {
		c.DT = 0.1
	}
	switch {
	case c.CoolantRate == 0:
		c.CoolantRate = 0.1
	case c.CoolantRate < 0:
		c.CoolantRate = 0
	}
	if c.CatalystActivity == 0 {
		c.CatalystActivity = 1.0
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}

	return c
}

// Result reports what a batch run produced.
type Result struct {
	Records []history.Record
	Fired   []scenario.FiredRecord

	CSVPath    string
	ReportPath string
}

// Run executes the batch simulation and writes its outputs.
func Run(cfg Config) (Result, error) {
	cfg = cfg.withDefaults()

	params := plant.DefaultParams()
	params.CatalystActivity = cfg.CatalystActivity

	store := registers.NewStore()
	store.Write(registers.AddrFlowSet, 100.0)
	store.Write(registers.AddrFeedConcSet, 1.0)
	store.Write(registers.AddrCoolantSet, 300.0)

	engine := scenario.NewEngine(cfg.Scenario, store, cfg.DT, cfg.Logger)

	truth := plant.State{Ca: 0.9, T: 310.0}
	coolant := 300.0

	if cfg.Recorder != nil {
		cfg.Recorder.CreateTable(datarecording.TickTable, history.Record{})
	}

	steps := int(cfg.Duration/cfg.DT + 0.5)
	records := make([]history.Record, 0, steps+1)

	appendRow := func(now float64, in plant.Inputs, coolantSet float64) {
		row := history.Record{
			Time:          now,
			FlowSet:       in.FlowRate,
			FeedConcSet:   in.FeedConc,
			CoolantSet:    coolantSet,
			CoolantActual: coolant,
			TReal:         truth.T,
			CaReal:        truth.Ca,
			TSensed:       truth.T,
			CaSensed:      truth.Ca,
		}
		records = append(records, row)

		if cfg.Recorder != nil {
			cfg.Recorder.InsertData(datarecording.TickTable, row)
		}
	}

	appendRow(0, plant.Inputs{
		FlowRate: 100.0,
		FeedConc: 1.0,
	}, 300.0)

	for i := 1; i <= steps; i++ {
		now := float64(i) * cfg.DT

		in := plant.Inputs{
			FlowRate: store.Read(registers.AddrFlowSet),
			FeedConc: store.Read(registers.AddrFeedConcSet),
		}
		coolantSet := store.Read(registers.AddrCoolantSet)

		coolant = slewToward(coolant, coolantSet, cfg.CoolantRate*cfg.DT)
		in.CoolantTemp = coolant

		next, err := params.Step(truth, in, cfg.DT)
		if err != nil {
			cfg.Logger.Printf(
				"t=%.1fs: integration failed (%v), holding previous state",
				now, err)
			next = truth.Clamp()
		}
		truth = next

		engine.Evaluate(now, truth.T, truth.Ca)
		appendRow(now, in, coolantSet)
	}

	if cfg.Recorder != nil {
		cfg.Recorder.Flush()
	}

	result := Result{
		Records: records,
		Fired:   engine.Fired(),
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return result, fmt.Errorf("creating output dir: %w", err)
	}

	result.CSVPath = filepath.Join(cfg.OutputDir, cfg.Name+"_data.csv")
	if err := writeCSV(result.CSVPath, records); err != nil {
		return result, err
	}
	cfg.Logger.Printf("simulation data saved to %s", result.CSVPath)

	result.ReportPath = filepath.Join(cfg.OutputDir, cfg.Name+".md")
	if err := writeReport(result.ReportPath, cfg, result); err != nil {
		return result, err
	}
	cfg.Logger.Printf("report saved to %s", result.ReportPath)

	return result, nil
}

func writeCSV(path string, records []history.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating csv: %w", err)
	}
	defer f.Close()

	if err := datarecording.ExportCSV(f, records); err != nil {
		return fmt.Errorf("writing csv: %w", err)
	}

	return nil
}

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
