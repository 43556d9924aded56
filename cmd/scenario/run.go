package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/scenario-engine/core"
	"github.com/signalsfoundry/scenario-engine/graph"
	"github.com/signalsfoundry/scenario-engine/internal/logging"
	"github.com/signalsfoundry/scenario-engine/internal/observability"
	"github.com/signalsfoundry/scenario-engine/internal/queue"
	"github.com/signalsfoundry/scenario-engine/timectrl"
)

var (
	scenarioName string
	metricsAddr  string
	startTime    float64
)

var runCmd = &cobra.Command{
	Use:   "run <script.js>",
	Short: "Run a scenario script to completion",
	Long: `Run loads the script as the scenario's main function part, signals it,
and processes events until the queue drains or a part execution fails.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runScenario(cmd, args[0])
	},
}

func init() {
	runCmd.Flags().StringVar(&scenarioName, "name", "", "Scenario name (defaults to the script file name)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "HTTP address for Prometheus /metrics (empty disables)")
	runCmd.Flags().Float64Var(&startTime, "start-time", 0, "Simulation start time in days")
	rootCmd.AddCommand(runCmd)
}

func runScenario(cmd *cobra.Command, scriptPath string) error {
	log := logging.NewFromEnv()
	ctx := context.Background()

	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return fmt.Errorf("read scenario script: %w", err)
	}

	name := scenarioName
	if name == "" {
		base := filepath.Base(scriptPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	collector, err := observability.NewScriptCollector(nil)
	if err != nil {
		return fmt.Errorf("initialise metrics collector: %w", err)
	}
	metricsSrv := serveMetrics(metricsAddr, collector, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("initialise tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(ctx, shutdownTracing, log)

	clock := timectrl.NewClock(startTime)
	events := queue.New(queue.Config{Clock: clock, Log: log, Metrics: collector})

	scen := core.NewScenario(core.ScenarioConfig{
		Name:      name,
		FilePath:  scriptPath,
		Log:       log,
		Metrics:   collector,
		Scheduler: events,
	})

	registry := graph.NewRegistry()
	part, err := core.NewFunctionPart(scen.Root(), "main", scen)
	if err != nil {
		return fmt.Errorf("create main part: %w", err)
	}
	defer part.Close()
	if err := part.SetScript(string(script)); err != nil {
		return fmt.Errorf("load scenario script: %w", err)
	}
	if err := registry.AddPart(part); err != nil {
		return err
	}

	formatHeader(cmd.OutOrStdout(), name, scriptPath, startTime)

	if err := events.AddEvent(part, nil, nil, core.ASAPPriority); err != nil {
		return err
	}

	began := time.Now()
	processed, runErr := events.Run(ctx)
	formatSummary(cmd.OutOrStdout(), summary{
		processed: processed,
		simTime:   clock.Now(),
		elapsed:   time.Since(began),
		err:       runErr,
	})

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return runErr
}

func serveMetrics(addr string, collector *observability.ScriptCollector, log logging.Logger) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.String("error", err.Error()))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
