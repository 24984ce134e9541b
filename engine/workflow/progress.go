package workflow

import (
	"math"
	"time"
)

// RecomputeProgress derives Progress from the action-results list and the
// workflow's declared action count. It is idempotent: calling it twice on
// the same results/total yields the same Progress.
func RecomputeProgress(results []ActionResult, total int) Progress {
	var completed, failed, skipped int
	for _, r := range results {
		switch r.Status {
		case ActionCompleted:
			completed++
		case ActionFailed:
			failed++
		case ActionSkipped:
			skipped++
		}
	}
	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(completed+failed+skipped) / float64(total) * 100)
	}
	return Progress{Completed: completed, Failed: failed, Skipped: skipped, Total: total, Percentage: pct}
}

// ComputeMetrics summarizes action results for ExecutionResult.Metrics.
func ComputeMetrics(results []ActionResult, retriedActionCount, totalRetries int) Metrics {
	m := Metrics{TotalActions: len(results), Retried: retriedActionCount, TotalRetries: totalRetries}
	var totalDur int64
	var count int
	for _, r := range results {
		switch r.Status {
		case ActionCompleted:
			m.Successful++
		case ActionFailed:
			m.Failed++
		case ActionSkipped:
			m.Skipped++
		}
		if !r.EndTime.IsZero() && !r.StartTime.IsZero() {
			d := r.EndTime.Sub(r.StartTime)
			totalDur += int64(d)
			count++
			if count == 1 || d > m.LongestDuration {
				m.LongestDuration = d
			}
			if count == 1 || d < m.ShortestDuration {
				m.ShortestDuration = d
			}
		}
	}
	if count > 0 {
		m.AverageDuration = time.Duration(totalDur / int64(count))
	}
	return m
}
