package reporting_test

import (
	"fmt"
	"os"
	"time"

	"github.com/jihwankim/nomos-harness/pkg/core/cleanup"
	"github.com/jihwankim/nomos-harness/pkg/reporting"
)

// Example demonstrates the reporting package usage
func Example() {
	// Create logger
	logger := reporting.NewLogger(reporting.LoggerConfig{
		Level:  reporting.LogLevelInfo,
		Format: reporting.LogFormatText,
		Output: os.Stdout,
	})

	logger.Info("Run starting")
	logger.Info("Topology deployed", "validators", 4, "executors", 2)
	logger.Info("Workload started", "name", "transaction")

	// Create storage
	storage, err := reporting.NewStorage("./test-reports", 10, logger)
	if err != nil {
		fmt.Printf("Failed to create storage: %v\n", err)
		return
	}
	defer os.RemoveAll("./test-reports")

	// Create run report
	report := &reporting.RunReport{
		RunID:        "run-12345",
		ScenarioFile: "scenarios/four-validator-liveness.yaml",
		Backend:      "compose",
		StartTime:    time.Now().Add(-5 * time.Minute),
		EndTime:      time.Now(),
		Duration:     "5m0s",
		Status:       reporting.StatusCompleted,
		Success:      true,
		Validators:   4,
		Executors:    2,
		Workloads:    []string{"transaction", "data_availability"},
		Expectations: []string{"consensus_liveness"},
		CleanupSummary: cleanup.Summary{
			Total:     3,
			Succeeded: 3,
		},
	}

	// Save report
	path, err := storage.SaveReport(report)
	if err != nil {
		fmt.Printf("Failed to save report: %v\n", err)
		return
	}

	fmt.Printf("Report saved successfully\n")

	// List reports
	summaries, err := storage.ListReports()
	if err != nil {
		fmt.Printf("Failed to list reports: %v\n", err)
		return
	}

	fmt.Printf("Found %d report(s)\n", len(summaries))
	for _, summary := range summaries {
		fmt.Printf("  %s: %s (%s)\n", summary.RunID, summary.ScenarioFile, summary.Status)
	}

	// Load report
	loadedReport, err := storage.LoadReport(path)
	if err != nil {
		fmt.Printf("Failed to load report: %v\n", err)
		return
	}

	fmt.Printf("Loaded report for run: %s\n", loadedReport.RunID)

	// Create formatter
	formatter := reporting.NewFormatter(logger)

	// Generate text report
	textPath := "./test-reports/report.txt"
	if err := formatter.GenerateReport(report, reporting.ReportFormatText, textPath); err != nil {
		fmt.Printf("Failed to generate text report: %v\n", err)
		return
	}
	fmt.Printf("Text report generated\n")

	// Generate HTML report
	htmlPath := "./test-reports/report.html"
	if err := formatter.GenerateReport(report, reporting.ReportFormatHTML, htmlPath); err != nil {
		fmt.Printf("Failed to generate HTML report: %v\n", err)
		return
	}
	fmt.Printf("HTML report generated\n")

	// Output will vary due to timestamps, so we don't include it
}
