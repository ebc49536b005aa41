package types

import "time"

// HealthStatus classifies an aggregated score.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
)

// ClassifyScore maps an overall score to a health status.
// Thresholds: >=90 healthy, >=70 degraded, else critical.
func ClassifyScore(score float64) HealthStatus {
	switch {
	case score >= 90:
		return HealthHealthy
	case score >= 70:
		return HealthDegraded
	default:
		return HealthCritical
	}
}

// ScannerHealth is the per-scanner breakdown inside a snapshot.
type ScannerHealth struct {
	Score          float64            `json:"score"`
	Status         ScanStatus         `json:"status"`
	LastRun        time.Time          `json:"lastRun"`
	ViolationCount int                `json:"violations_count"`
	WarningCount   int                `json:"warnings_count"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
	Summary        string             `json:"summary,omitempty"`
}

// OverallHealth is the weighted roll-up across all scanners.
type OverallHealth struct {
	Score  float64      `json:"score"`
	Status HealthStatus `json:"status"`
}

// WorkspaceHealth carries workspace-level facts captured alongside a snapshot.
type WorkspaceHealth struct {
	Packages         int   `json:"packages"`
	LastScanDuration int64 `json:"lastScanDuration"`
}

// HealthSnapshot is one aggregated evaluation of the workspace.
type HealthSnapshot struct {
	Timestamp time.Time                `json:"timestamp"`
	Overall   OverallHealth            `json:"overall"`
	Scanners  map[string]ScannerHealth `json:"scanners"`
	Workspace WorkspaceHealth          `json:"workspace"`
}

// DaemonState is the live heartbeat snapshot written to daemon-state.json.
type DaemonState struct {
	PID             int       `json:"pid"`
	StartedAt       time.Time `json:"startedAt"`
	UptimeMS        int64     `json:"uptime_ms"`
	LastHeartbeat   time.Time `json:"lastHeartbeat"`
	TasksCompleted  uint64    `json:"tasksCompleted"`
	TasksQueued     int       `json:"tasksQueued"`
	MemoryUsageMB   float64   `json:"memoryUsageMB"`
	SchedulerActive bool      `json:"schedulerActive"`
	WatcherActive   bool      `json:"watcherActive"`
}
