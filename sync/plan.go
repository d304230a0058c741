// Package sync implements the Sync Orchestrator (§4.8): queued, resumable
// per-seller jobs that tile the sync horizon into windows, pace calls to
// providers, checkpoint progress, and support cooperative cancellation.
package sync

import (
	"time"

	"github.com/clarioclaims/engine/domain"
)

// Task is one (window, report_type) unit of work within a job's plan.
type Task struct {
	WindowIndex int
	ReportIndex int
	Window      domain.Window
	ReportType  domain.ReportType
}

// Plan generates the 3-month windows tiling the last MonthsToSync months,
// newest first, and the Cartesian product with domain.AllReportTypes,
// exactly as §4.8 specifies.
func Plan(now time.Time, monthsToSync, windowMonths int) []Task {
	windows := Windows(now, monthsToSync, windowMonths)

	var tasks []Task
	for wi, w := range windows {
		for ri, rt := range domain.AllReportTypes {
			tasks = append(tasks, Task{WindowIndex: wi, ReportIndex: ri, Window: w, ReportType: rt})
		}
	}
	return tasks
}

// Windows tiles [now - monthsToSync months, now) into windowMonths-wide
// half-open windows, newest first.
func Windows(now time.Time, monthsToSync, windowMonths int) []domain.Window {
	if windowMonths <= 0 {
		windowMonths = 3
	}
	if monthsToSync <= 0 {
		monthsToSync = 18
	}

	horizonStart := now.AddDate(0, -monthsToSync, 0)

	var windows []domain.Window
	end := now
	for end.After(horizonStart) {
		start := end.AddDate(0, -windowMonths, 0)
		if start.Before(horizonStart) {
			start = horizonStart
		}
		windows = append(windows, domain.Window{Start: start, End: end})
		end = start
	}
	return windows
}

// ResumeIndex returns the index of the first task after checkpoint in
// tasks, i.e. where a restarted job should continue, per §4.8's durable
// checkpoint contract.
func ResumeIndex(tasks []Task, checkpoint domain.Checkpoint) int {
	for i, t := range tasks {
		if t.WindowIndex == checkpoint.WindowIndex && t.ReportIndex == checkpoint.ReportIndex {
			return i + 1
		}
	}
	return 0
}
