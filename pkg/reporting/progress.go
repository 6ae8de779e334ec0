package reporting

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// OutputFormat represents the progress output format.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatTUI  OutputFormat = "tui"
)

// ProgressReporter reports scenario run progress.
type ProgressReporter struct {
	format OutputFormat
	logger *Logger
}

// NewProgressReporter creates a new progress reporter.
func NewProgressReporter(format OutputFormat, logger *Logger) *ProgressReporter {
	return &ProgressReporter{
		format: format,
		logger: logger,
	}
}

// ReportState reports the current run state.
func (pr *ProgressReporter) ReportState(state LiveRunState) {
	switch pr.format {
	case FormatJSON:
		pr.reportJSON(state)
	case FormatTUI:
		pr.reportTUI(state)
	default:
		pr.reportText(state)
	}
}

// ReportStageTransition reports a runner stage transition.
func (pr *ProgressReporter) ReportStageTransition(from, to string) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":      "stage_transition",
			"from_stage": from,
			"to_stage":   to,
			"timestamp":  time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("state: %s -> %s\n", from, to)
	default:
		fmt.Printf("[STAGE] %s -> %s\n", from, to)
	}
}

// ReportCleanupStarted reports cleanup started.
func (pr *ProgressReporter) ReportCleanupStarted() {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "cleanup_started",
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Println("cleaning up...")
	default:
		fmt.Println("[CLEANUP] starting cleanup")
	}
}

// ReportCleanupCompleted reports cleanup completed.
func (pr *ProgressReporter) ReportCleanupCompleted(succeeded, failed int) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "cleanup_completed",
			"succeeded": succeeded,
			"failed":    failed,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		fmt.Printf("cleanup complete: %d succeeded, %d failed\n", succeeded, failed)
	default:
		fmt.Printf("[CLEANUP] complete: %d succeeded, %d failed\n", succeeded, failed)
	}
}

// ReportRunCompleted reports run completion.
func (pr *ProgressReporter) ReportRunCompleted(report *RunReport) {
	switch pr.format {
	case FormatJSON:
		data, _ := json.Marshal(map[string]interface{}{
			"event":     "run_completed",
			"report":    report,
			"timestamp": time.Now(),
		})
		fmt.Println(string(data))
	case FormatTUI:
		pr.clearLine()
		pr.printRunSummary(report)
	default:
		pr.printTextSummary(report)
	}
}

func (pr *ProgressReporter) reportText(state LiveRunState) {
	elapsed := time.Since(state.StartTime).Round(time.Second)
	fmt.Printf("[%s] %s | elapsed: %s\n",
		time.Now().Format("15:04:05"),
		state.State,
		elapsed,
	)
}

func (pr *ProgressReporter) reportJSON(state LiveRunState) {
	data, err := json.Marshal(state)
	if err != nil {
		pr.logger.Error("failed to marshal state", "error", err)
		return
	}
	fmt.Println(string(data))
}

func (pr *ProgressReporter) reportTUI(state LiveRunState) {
	pr.clearScreen()

	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("   scenario: %s\n", state.ScenarioFile)
	fmt.Printf("   run: %s\n", state.RunID)
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Printf("stage: %s\n", state.State)
	fmt.Printf("elapsed: %s\n", state.Elapsed.Round(time.Second))
	fmt.Println()

	fmt.Println(strings.Repeat("-", 80))
}

func (pr *ProgressReporter) printRunSummary(report *RunReport) {
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("   RUN SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	statusText := "PASSED"
	if !report.Success {
		statusText = "FAILED"
	}
	if report.Status == StatusStopped {
		statusText = "STOPPED"
	}

	fmt.Printf("run %s\n", statusText)
	fmt.Printf("   scenario: %s\n", report.ScenarioFile)
	fmt.Printf("   backend: %s\n", report.Backend)
	fmt.Printf("   run id: %s\n", report.RunID)
	fmt.Printf("   duration: %s\n", report.Duration)
	fmt.Printf("   topology: %d validators, %d executors\n", report.Validators, report.Executors)
	fmt.Println()

	if len(report.Workloads) > 0 {
		fmt.Printf("workloads: %s\n", strings.Join(report.Workloads, ", "))
	}
	if len(report.Expectations) > 0 {
		fmt.Printf("expectations: %s\n", strings.Join(report.Expectations, ", "))
	}

	if len(report.Errors) > 0 {
		fmt.Printf("\nerrors (%d):\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Printf("   - %s\n", e)
		}
	}

	fmt.Printf("\ncleanup: %d succeeded, %d failed\n",
		report.CleanupSummary.Succeeded,
		report.CleanupSummary.Failed,
	)
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
}

func (pr *ProgressReporter) printTextSummary(report *RunReport) {
	status := "PASSED"
	if !report.Success {
		status = "FAILED"
	}
	if report.Status == StatusStopped {
		status = "STOPPED"
	}

	fmt.Printf("\n[RUN SUMMARY] %s\n", status)
	fmt.Printf("  scenario: %s\n", report.ScenarioFile)
	fmt.Printf("  run id: %s\n", report.RunID)
	fmt.Printf("  duration: %s\n", report.Duration)
	fmt.Printf("  topology: %d validators, %d executors\n", report.Validators, report.Executors)

	if len(report.Errors) > 0 {
		fmt.Printf("  errors: %d\n", len(report.Errors))
		for _, e := range report.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}

	fmt.Printf("  cleanup: %d succeeded, %d failed\n",
		report.CleanupSummary.Succeeded,
		report.CleanupSummary.Failed,
	)
	fmt.Println()
}

func (pr *ProgressReporter) clearScreen() {
	fmt.Print("\033[2J\033[H")
}

func (pr *ProgressReporter) clearLine() {
	fmt.Print("\033[K")
}
