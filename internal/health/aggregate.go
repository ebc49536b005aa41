// Package health turns scanner results into a weighted workspace score
// with a bounded rolling history.
package health

import (
	"math"
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

// DefaultRetention is how far back the snapshot history reaches.
const DefaultRetention = 90 * 24 * time.Hour

// statusScores maps scan outcomes to component scores when a scanner
// reports no compliance or usage metric.
var statusScores = map[types.ScanStatus]float64{
	types.StatusPass:  100,
	types.StatusWarn:  70,
	types.StatusFail:  30,
	types.StatusError: 0,
}

// ComponentScore computes one scanner's contribution to the overall score.
// A compliance metric wins over a usage metric, which wins over the status
// mapping. Skipped scanners return ok=false and are excluded entirely.
func ComponentScore(r *types.ScanResult) (score float64, ok bool) {
	if r.Status == types.StatusSkipped {
		return 0, false
	}
	if v, present := r.Metrics["compliance"]; present {
		return v, true
	}
	if v, present := r.Metrics["usage"]; present {
		return v, true
	}
	return statusScores[r.Status], true
}

// BuildSnapshot aggregates scanner results into a snapshot. Weights are
// per scanner id; a missing weight counts as 1. The overall score is the
// weighted mean over non-skipped scanners, rounded to one decimal place.
//
// The result depends only on the results' (id, status, metrics, counts,
// timestamp, summary) projection, so equal inputs produce equal snapshots up to Timestamp.
func BuildSnapshot(results []*types.ScanResult, weights map[string]int, workspace types.WorkspaceHealth) *types.HealthSnapshot {
	snapshot := &types.HealthSnapshot{
		Timestamp: time.Now(),
		Scanners:  make(map[string]types.ScannerHealth, len(results)),
		Workspace: workspace,
	}

	weightedSum := 0.0
	totalWeight := 0
	for _, r := range results {
		if r == nil {
			continue
		}
		score, counted := ComponentScore(r)
		snapshot.Scanners[r.Scanner] = types.ScannerHealth{
			Score:          round1(score),
			Status:         r.Status,
			LastRun:        r.Timestamp,
			ViolationCount: r.ErrorCount(),
			WarningCount:   r.WarningCount(),
			Metrics:        r.Metrics,
			Summary:        r.Summary,
		}
		if !counted {
			continue
		}
		w := weights[r.Scanner]
		if w <= 0 {
			w = 1
		}
		weightedSum += score * float64(w)
		totalWeight += w
	}

	overall := 100.0
	if totalWeight > 0 {
		overall = weightedSum / float64(totalWeight)
	}
	snapshot.Overall = types.OverallHealth{
		Score:  round1(overall),
		Status: types.ClassifyScore(round1(overall)),
	}
	return snapshot
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
