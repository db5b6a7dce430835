package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/tanklab/cstr/datarecording"
	"github.com/tanklab/cstr/history"
	"github.com/tanklab/cstr/modbusserver"
	"github.com/tanklab/cstr/monitoring"
	"github.com/tanklab/cstr/plant"
	"github.com/tanklab/cstr/registers"
	"github.com/tanklab/cstr/scenario"
	"github.com/tanklab/cstr/simloop"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the plant in real time behind a Modbus TCP server.",
	Run: func(cmd *cobra.Command, args []string) {
		runServe(cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("listen", "tcp://0.0.0.0:1502",
		"Modbus server listen URL (env CSTR_LISTEN)")
	serveCmd.Flags().String("monitor-listen", ":8080",
		"monitoring HTTP listen address (env CSTR_MONITOR_LISTEN)")
	serveCmd.Flags().String("scenario", "",
		"scenario YAML file to load (env CSTR_SCENARIO)")
	serveCmd.Flags().String("record", "",
		"SQLite file to record every tick into")
	serveCmd.Flags().Float64("dt", 0.1, "tick width in seconds")
	serveCmd.Flags().Float64("coolant-rate", 0.1,
		"coolant actuator slew rate in K/s; 0 selects the default, "+
			"negative freezes the actuator")
	serveCmd.Flags().Float64("noise-t", 0.15,
		"temperature sensor noise standard deviation in K; "+
			"0 selects the default, negative disables noise")
	serveCmd.Flags().Float64("noise-ca", 0.005,
		"concentration sensor noise standard deviation in mol/m3; "+
			"0 selects the default, negative disables noise")
	serveCmd.Flags().Float64("catalyst-activity", 1.0,
		"catalyst activity multiplier on the reaction rate")
}

func runServe(cmd *cobra.Command) {
	logger := log.New(os.Stderr, "cstrd ", log.LstdFlags|log.Lmsgprefix)

	listen := stringSetting(cmd, "listen", "CSTR_LISTEN")
	monitorListen := stringSetting(cmd, "monitor-listen", "CSTR_MONITOR_LISTEN")
	scenarioPath := stringSetting(cmd, "scenario", "CSTR_SCENARIO")
	recordPath, _ := cmd.Flags().GetString("record")
	dt, _ := cmd.Flags().GetFloat64("dt")
	coolantRate, _ := cmd.Flags().GetFloat64("coolant-rate")
	noiseT, _ := cmd.Flags().GetFloat64("noise-t")
	noiseCa, _ := cmd.Flags().GetFloat64("noise-ca")
	activity, _ := cmd.Flags().GetFloat64("catalyst-activity")

	store := registers.NewStore()

	params := plant.DefaultParams()
	params.CatalystActivity = activity

	var events *scenario.Engine
	if scenarioPath != "" {
		sc, err := scenario.Load(scenarioPath)
		if err != nil {
			logger.Fatalf("loading scenario: %v", err)
		}

		events = scenario.NewEngine(sc, store, dt, logger)
		logger.Printf("scenario loaded: %d time events, %d condition events",
			len(sc.TimeEvents), len(sc.ConditionEvents))
	}

	loop := simloop.NewLoop(store, params, events, simloop.Config{
		DT:           dt,
		CoolantRate:  coolantRate,
		NoiseStdTemp: noiseT,
		NoiseStdConc: noiseCa,
	}, logger)

	mbServer := modbusserver.New(store, logger)
	if err := mbServer.Start(listen); err != nil {
		logger.Fatalf("starting modbus server: %v", err)
	}
	logger.Printf("modbus server listening on %s", listen)

	monitor := monitoring.NewMonitor().
		WithListenAddr(monitorListen).
		WithLogger(logger)
	monitor.RegisterLoop(loop)
	monitor.RegisterStore(store)
	if events != nil {
		monitor.RegisterEvents(events)
	}
	if err := monitor.StartServer(); err != nil {
		logger.Fatalf("starting monitoring server: %v", err)
	}

	tickTap, recorderDone := startRecorder(loop, recordPath, logger)

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("received %v, shutting down", sig)
		cancel()
	}()

	loop.Run(ctx)

	if tickTap != nil {
		// Unsubscribing closes the tap; wait for the recorder to drain
		// its buffer and flush before exiting.
		loop.History().Unsubscribe(tickTap)
		<-recorderDone
	}

	if err := mbServer.Stop(); err != nil {
		logger.Printf("stopping modbus server: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := monitor.Shutdown(shutdownCtx); err != nil {
		logger.Printf("stopping monitoring server: %v", err)
	}

	logger.Printf("simulated %.1f s over %d ticks (%d overruns)",
		loop.SimTime(), loop.Ticks(), loop.Overruns())

	atexit.Exit(0)
}

// startRecorder wires a SQLite tick recorder to the loop's history ring.
// It returns the tap to unsubscribe on shutdown and a channel that closes
// once the recorder has drained and flushed, or nils when recording is
// disabled.
func startRecorder(
	loop *simloop.Loop,
	path string,
	logger *log.Logger,
) (*history.Tap, <-chan struct{}) {
	if path == "" {
		return nil, nil
	}

	recorder, err := datarecording.NewSQLite(path)
	if err != nil {
		logger.Fatalf("opening recorder: %v", err)
	}

	tap := loop.History().Subscribe(1024)
	done := make(chan struct{})
	go func() {
		datarecording.StreamTicks(recorder, tap)
		close(done)
	}()
	logger.Printf("recording ticks to %s", path)

	return tap, done
}
