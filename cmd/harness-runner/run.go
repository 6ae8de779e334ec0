package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jihwankim/nomos-harness/pkg/config"
	"github.com/jihwankim/nomos-harness/pkg/core/cleanup"
	"github.com/jihwankim/nomos-harness/pkg/core/runner"
	"github.com/jihwankim/nomos-harness/pkg/deploy"
	"github.com/jihwankim/nomos-harness/pkg/emergency"
	"github.com/jihwankim/nomos-harness/pkg/harness"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
	"github.com/jihwankim/nomos-harness/pkg/scenario"
	"github.com/jihwankim/nomos-harness/pkg/scenario/parser"
	"github.com/jihwankim/nomos-harness/pkg/scenario/validator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Deploy a cluster and run a scenario against it",
	Long:  `Loads a scenario YAML file, deploys the topology it describes, and drives it to completion.`,
	RunE:  runScenarioCmd,
}

func init() {
	runCmd.Flags().String("scenario", "", "path to scenario YAML file")
	runCmd.Flags().StringArray("set", []string{}, "override scenario values (e.g., --set run_duration=10m)")
	runCmd.Flags().String("format", "text", "output format (text, json, tui)")
	runCmd.Flags().Bool("dry-run", false, "validate scenario without deploying or executing")
}

func runScenarioCmd(cmd *cobra.Command, args []string) error {
	scenarioPath, _ := cmd.Flags().GetString("scenario")
	if scenarioPath == "" {
		return fmt.Errorf("--scenario flag is required")
	}
	setFlags, _ := cmd.Flags().GetStringArray("set")
	outputFormat, _ := cmd.Flags().GetString("format")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := reporting.LogLevelInfo
	if verbose {
		logLevel = reporting.LogLevelDebug
	}
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  logLevel,
		Format: reporting.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})

	logger.Info("harness-runner starting", "version", version)

	logger.Info("parsing scenario", "file", scenarioPath)
	p := parser.New(nil)
	file, err := p.ParseFile(scenarioPath)
	if err != nil {
		return fmt.Errorf("failed to parse scenario: %w", err)
	}

	if len(setFlags) > 0 {
		overrides, err := parser.ParseOverrides(setFlags)
		if err != nil {
			return fmt.Errorf("failed to parse overrides: %w", err)
		}
		if err := parser.ApplyOverrides(file, overrides); err != nil {
			return fmt.Errorf("failed to apply overrides: %w", err)
		}
		logger.Debug("applied overrides", "count", len(overrides))
	}

	logger.Info("validating scenario")
	v := validator.New()
	if err := v.Validate(file); err != nil {
		fmt.Print(v.GetReport())
		return fmt.Errorf("scenario validation failed: %w", err)
	}
	if v.HasWarnings() {
		logger.Warn("scenario has warnings")
		for _, warning := range v.Warnings {
			logger.Warn("  " + warning)
		}
	}
	logger.Info("scenario validated successfully", "file", scenarioPath)

	built, err := parser.Build(file, logger)
	if err != nil {
		return fmt.Errorf("failed to build scenario: %w", err)
	}

	if dryRun {
		fmt.Println("scenario is valid (dry-run mode)")
		return nil
	}

	progressReporter := reporting.NewProgressReporter(reporting.OutputFormat(outputFormat), logger)
	storage, err := reporting.NewStorage(cfg.Reporting.OutputDir, cfg.Reporting.KeepLastN, logger)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := generateRunID()
	runLogger := logger.WithRun(runID, scenarioPath)

	emergencyCtrl := emergency.New(emergency.Config{
		StopFile:             cfg.Emergency.StopFile,
		EnableSignalHandlers: false, // signal.NotifyContext above already owns SIGINT/SIGTERM
		Log:                  runLogger,
	})

	var (
		result  *runner.Result
		execErr error
		rep     *reporting.RunReport
	)

	if built.RequiresNodeControl() {
		d, derr := deploy.New[scenario.NodeControlCapability](cfg, runLogger)
		if derr != nil {
			return fmt.Errorf("failed to select deployer: %w", derr)
		}
		result, execErr, rep = executeScenario(ctx, cfg, runLogger, emergencyCtrl, d, built.WithControl, runID, scenarioPath, storage)
	} else {
		d, derr := deploy.New[scenario.NoCapability](cfg, runLogger)
		if derr != nil {
			return fmt.Errorf("failed to select deployer: %w", derr)
		}
		result, execErr, rep = executeScenario(ctx, cfg, runLogger, emergencyCtrl, d, built.NoControl, runID, scenarioPath, storage)
	}

	if rep != nil {
		progressReporter.ReportRunCompleted(rep)
	}

	if execErr != nil {
		return fmt.Errorf("scenario run failed: %w", execErr)
	}
	if result == nil || !result.Success {
		return fmt.Errorf("scenario did not meet its expectations")
	}

	logger.Info("scenario run completed successfully")
	return nil
}

// executeScenario deploys sc via d and drives it to completion. Once Deploy
// succeeds it produces a RunReport whether or not the run passes; a Deploy
// failure returns a nil report. Caps is resolved at the two call sites in
// runScenarioCmd since Deployer/Scenario are compile-time generic over it.
func executeScenario[Caps scenario.Capability](
	ctx context.Context,
	cfg *config.Config,
	logger *reporting.Logger,
	emergencyCtrl *emergency.Controller,
	d deploy.Deployer[Caps],
	sc *harness.Scenario[Caps],
	runID, scenarioPath string,
	storage *reporting.Storage,
) (*runner.Result, error, *reporting.RunReport) {
	logger.Info("deploying topology", "backend", cfg.Harness.Backend)

	r, err := d.Deploy(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("deploy: %w", err), nil
	}
	r = r.WithEmergencyController(emergencyCtrl)

	logger.Info("executing scenario", "run_duration", sc.RunDuration())
	result, execErr := r.Execute(ctx, sc)

	logRunMetrics(ctx, logger, r.Telemetry())

	workloadNames := make([]string, 0, len(sc.Workloads()))
	for _, w := range sc.Workloads() {
		workloadNames = append(workloadNames, w.Name())
	}
	expectationNames := make([]string, 0, len(sc.Expectations()))
	for _, e := range sc.Expectations() {
		expectationNames = append(expectationNames, e.Name())
	}

	topology := sc.Topology()
	rep := &reporting.RunReport{
		RunID:          runID,
		ScenarioFile:   scenarioPath,
		Backend:        cfg.Harness.Backend,
		Validators:     len(topology.Validators),
		Executors:      len(topology.Executors),
		Workloads:      workloadNames,
		Expectations:   expectationNames,
		CleanupSummary: cleanup.Summary{},
	}
	if result != nil {
		rep.StartTime = result.StartTime
		rep.EndTime = result.EndTime
		rep.Duration = result.Duration.String()
		rep.Success = result.Success
		if result.Success {
			rep.Status = reporting.StatusCompleted
		} else {
			rep.Status = reporting.StatusFailed
		}
	}
	if execErr != nil {
		rep.Message = execErr.Error()
		rep.Errors = append(rep.Errors, execErr.Error())
	}
	rep.CleanupSummary = r.CleanupSummary()
	rep.CleanupLog = r.CleanupLog()

	if _, saveErr := storage.SaveReport(rep); saveErr != nil {
		logger.Warn("failed to save report", "error", saveErr)
	}

	return result, execErr, rep
}

// generateRunID creates a unique run ID.
func generateRunID() string {
	return fmt.Sprintf("run-%d", time.Now().Unix())
}
