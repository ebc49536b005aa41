package health

import (
	"testing"
	"time"

	"github.com/dcyfr/dcyfr-ai-cli/internal/types"
)

func result(id string, status types.ScanStatus, metrics map[string]float64) *types.ScanResult {
	return &types.ScanResult{
		Scanner:   id,
		Status:    status,
		Metrics:   metrics,
		Timestamp: time.Now(),
	}
}

func TestComponentScorePrecedence(t *testing.T) {
	tests := []struct {
		name  string
		r     *types.ScanResult
		want  float64
		count bool
	}{
		{"compliance metric wins", result("x", types.StatusFail, map[string]float64{"compliance": 42, "usage": 10}), 42, true},
		{"usage metric second", result("x", types.StatusFail, map[string]float64{"usage": 55}), 55, true},
		{"pass maps to 100", result("x", types.StatusPass, nil), 100, true},
		{"warn maps to 70", result("x", types.StatusWarn, nil), 70, true},
		{"fail maps to 30", result("x", types.StatusFail, nil), 30, true},
		{"error maps to 0", result("x", types.StatusError, nil), 0, true},
		{"skipped excluded", result("x", types.StatusSkipped, nil), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, counted := ComponentScore(tt.r)
			if counted != tt.count {
				t.Fatalf("counted = %v, want %v", counted, tt.count)
			}
			if counted && got != tt.want {
				t.Errorf("score = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildSnapshotWeightedMean(t *testing.T) {
	results := []*types.ScanResult{
		result("x", types.StatusPass, nil),
		result("y", types.StatusWarn, nil),
		result("z", types.StatusFail, map[string]float64{"compliance": 42}),
	}

	s := BuildSnapshot(results, map[string]int{"x": 1, "y": 1, "z": 1}, types.WorkspaceHealth{Packages: 3})

	if s.Scanners["x"].Score != 100 || s.Scanners["y"].Score != 70 || s.Scanners["z"].Score != 42 {
		t.Errorf("component scores wrong: %+v", s.Scanners)
	}
	// round((100+70+42)/3, 1) = 70.7
	if s.Overall.Score != 70.7 {
		t.Errorf("overall = %v, want 70.7", s.Overall.Score)
	}
	if s.Overall.Status != types.HealthDegraded {
		t.Errorf("status = %s, want degraded", s.Overall.Status)
	}
	if s.Workspace.Packages != 3 {
		t.Errorf("workspace facts lost: %+v", s.Workspace)
	}
}

func TestBuildSnapshotRespectsWeights(t *testing.T) {
	results := []*types.ScanResult{
		result("heavy", types.StatusPass, nil), // 100, weight 3
		result("light", types.StatusError, nil), // 0, weight 1
	}

	s := BuildSnapshot(results, map[string]int{"heavy": 3, "light": 1}, types.WorkspaceHealth{})
	if s.Overall.Score != 75 {
		t.Errorf("weighted mean = %v, want 75", s.Overall.Score)
	}
}

func TestBuildSnapshotExcludesSkipped(t *testing.T) {
	results := []*types.ScanResult{
		result("a", types.StatusPass, nil),
		result("b", types.StatusSkipped, nil),
	}

	s := BuildSnapshot(results, nil, types.WorkspaceHealth{})
	if s.Overall.Score != 100 {
		t.Errorf("skipped scanner must not drag the mean, got %v", s.Overall.Score)
	}
	// Still present in the breakdown
	if _, ok := s.Scanners["b"]; !ok {
		t.Error("skipped scanner should still appear in the breakdown")
	}
}

func TestBuildSnapshotIdempotent(t *testing.T) {
	results := []*types.ScanResult{
		result("a", types.StatusWarn, map[string]float64{"usage": 61.5}),
		result("b", types.StatusPass, nil),
	}
	weights := map[string]int{"a": 2}

	s1 := BuildSnapshot(results, weights, types.WorkspaceHealth{Packages: 1})
	s2 := BuildSnapshot(results, weights, types.WorkspaceHealth{Packages: 1})

	if s1.Overall != s2.Overall {
		t.Errorf("same input must give the same overall: %+v vs %+v", s1.Overall, s2.Overall)
	}
	for id := range s1.Scanners {
		if s1.Scanners[id].Score != s2.Scanners[id].Score {
			t.Errorf("component %s diverged between builds", id)
		}
	}
}

func TestBuildSnapshotEmptyInput(t *testing.T) {
	s := BuildSnapshot(nil, nil, types.WorkspaceHealth{})
	if s.Overall.Score != 100 || s.Overall.Status != types.HealthHealthy {
		t.Errorf("empty input should default to healthy, got %+v", s.Overall)
	}
}
