package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for a time window.
type WindowStats struct {
	WindowStartTick int32   `csv:"-"`
	WindowEndTick   int32   `csv:"window_end"`
	SimTimeSec      float64 `csv:"sim_time"`

	// State at window end
	Graspers     int `csv:"graspers"`
	ActiveGrants int `csv:"active_grants"`
	Paused       int `csv:"paused"`

	// Events during window
	ScansIssued    int `csv:"scans_issued"`
	ScansStale     int `csv:"scans_stale"`
	ScansFailed    int `csv:"scans_failed"`
	Waits          int `csv:"waits"`
	CandidatesDead int `csv:"candidates_dead"`
	Terminated     int `csv:"terminated"`
	Grants         int `csv:"grants"`
	Revokes        int `csv:"revokes"`

	// Fraction of issued scans that ended in a grant
	GrantRate float64 `csv:"grant_rate"`

	// Wait delays scheduled during the window
	WaitMeanMS float64 `csv:"wait_mean_ms"`
	WaitP90MS  float64 `csv:"wait_p90_ms"`

	// Grants revoked during the window, by how long they were held
	HoldMeanTicks float64 `csv:"hold_mean_ticks"`
	HoldP10Ticks  float64 `csv:"hold_p10_ticks"`
	HoldP50Ticks  float64 `csv:"hold_p50_ticks"`
	HoldP90Ticks  float64 `csv:"hold_p90_ticks"`
}

// Summarize returns the mean and the 10th, 50th and 90th percentiles of
// values. All are zero for an empty slice.
func Summarize(values []float64) (mean, p10, p50, p90 float64) {
	if len(values) == 0 {
		return 0, 0, 0, 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean = stat.Mean(sorted, nil)
	p10 = stat.Quantile(0.10, stat.LinInterp, sorted, nil)
	p50 = stat.Quantile(0.50, stat.LinInterp, sorted, nil)
	p90 = stat.Quantile(0.90, stat.LinInterp, sorted, nil)
	return mean, p10, p50, p90
}

// LogStats logs the window stats using logger.
func (s WindowStats) LogStats(logger *slog.Logger) {
	logger.Info("stats",
		"window_end", s.WindowEndTick,
		"sim_time", s.SimTimeSec,
		"graspers", s.Graspers,
		"active_grants", s.ActiveGrants,
		"paused", s.Paused,
		"scans_issued", s.ScansIssued,
		"scans_failed", s.ScansFailed,
		"grants", s.Grants,
		"revokes", s.Revokes,
		"grant_rate", s.GrantRate,
		"hold_p50_ticks", s.HoldP50Ticks,
	)
}
