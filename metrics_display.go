package numerion

import (
	"fmt"
	"sort"

	"github.com/arrowlake/numerion/internal/telemetry"
)

// ANSI colors & styles
const (
	colorReset  = "\033[0m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	bold        = "\033[1m"
)

// DisplayMetrics prints a MetricsCollector's accumulated run and stage
// counters in a formatted, human-readable way. This is a helper
// function designed for CLI tooling and debugging, not production
// serving glue.
//
// Example usage:
//
//	collector := telemetry.NewMetricsCollector()
//	svc.AddObserver(collector)
//	// ... runs execute ...
//	numerion.DisplayMetrics(collector, runID)
func DisplayMetrics(collector *telemetry.MetricsCollector, runID string) {
	title := func(text string) {
		fmt.Printf("\n%s%s=== %s ===%s\n\n", bold, colorBlue, text, colorReset)
	}
	section := func(text string) {
		fmt.Printf("%s%s%s\n", bold, text, colorReset)
	}
	kv := func(label string, value any) {
		fmt.Printf("  %s%-22s%s: %v\n", colorCyan, label, colorReset, value)
	}

	title("Run Metrics")

	runs, stages := collector.Snapshot()

	if runID != "" {
		if m, ok := runs[runID]; ok {
			section("Run:")
			kv("Run ID", m.RunID)
			kv("Execution Count", m.ExecutionCount)
			kv("Success Count", fmt.Sprintf("%s%d%s", colorGreen, m.SuccessCount, colorReset))
			kv("Failure Count", fmt.Sprintf("%s%d%s", colorRed, m.FailureCount, colorReset))
			kv("Avg Duration", m.AverageDuration)
			kv("Min Duration", m.MinDuration)
			kv("Max Duration", m.MaxDuration)
			kv("Last Execution", m.LastExecutionAt)
		}
	}

	if len(stages) > 0 {
		section("\nStage Metrics:")
		names := make([]string, 0, len(stages))
		for name := range stages {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			m := stages[name]
			fmt.Printf("\n  %s%s%s\n", bold, m.Stage, colorReset)
			kv("Execution Count", m.ExecutionCount)
			kv("Success Count", fmt.Sprintf("%s%d%s", colorGreen, m.SuccessCount, colorReset))
			kv("Failure Count", fmt.Sprintf("%s%d%s", colorRed, m.FailureCount, colorReset))
			kv("Avg Duration", m.AverageDuration)
		}
	}

	fmt.Println()
}
