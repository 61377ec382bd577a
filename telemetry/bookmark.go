package telemetry

import (
	"fmt"
	"log/slog"

	"github.com/pthm-cable/grasp/config"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkChurnSpike   BookmarkType = "churn_spike"
	BookmarkFailureBurst BookmarkType = "failure_burst"
	BookmarkCoverageDrop BookmarkType = "coverage_drop"
	BookmarkSettled      BookmarkType = "settled"
)

// Bookmark represents an automatically triggered bookmark.
type Bookmark struct {
	Type        BookmarkType `csv:"type" json:"type"`
	Tick        int32        `csv:"tick" json:"tick"`
	Description string       `csv:"description" json:"description"`
}

// LogBookmark logs the bookmark using logger.
func (b Bookmark) LogBookmark(logger *slog.Logger) {
	logger.Info("bookmark",
		"type", string(b.Type),
		"tick", b.Tick,
		"description", b.Description,
	)
}

// BookmarkDetector detects interesting moments in scan and grant activity.
type BookmarkDetector struct {
	cfg config.BookmarksConfig

	// Rolling history (circular buffer)
	history     []WindowStats
	historySize int
	historyIdx  int
	historyFull bool

	recentGrantPeak    int // peak active grants since the last drop
	settledWindowCount int // consecutive windows with grants held and no churn
}

// NewBookmarkDetector creates a detector with the given history size.
func NewBookmarkDetector(historySize int, cfg config.BookmarksConfig) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3 // minimum for rolling averages
	}
	return &BookmarkDetector{
		cfg:         cfg,
		history:     make([]WindowStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats WindowStats) []Bookmark {
	var bookmarks []Bookmark

	if bd.historyFull || bd.historyIdx > 0 {
		if b := bd.checkChurnSpike(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
		if b := bd.checkFailureBurst(stats); b != nil {
			bookmarks = append(bookmarks, *b)
		}
	}
	if b := bd.checkCoverageDrop(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkSettled(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	if stats.ActiveGrants > bd.recentGrantPeak {
		bd.recentGrantPeak = stats.ActiveGrants
	}

	return bookmarks
}

func (bd *BookmarkDetector) addToHistory(stats WindowStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []WindowStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// rollingMean averages field over the history.
func (bd *BookmarkDetector) rollingMean(field func(WindowStats) int) float64 {
	history := bd.getHistory()
	if len(history) == 0 {
		return 0
	}
	total := 0
	for _, h := range history {
		total += field(h)
	}
	return float64(total) / float64(len(history))
}

func (bd *BookmarkDetector) checkChurnSpike(stats WindowStats) *Bookmark {
	c := bd.cfg.ChurnSpike
	if len(bd.getHistory()) < 3 || stats.Revokes < c.MinRevokes {
		return nil
	}
	avg := bd.rollingMean(func(w WindowStats) int { return w.Revokes })
	if avg > 0 && float64(stats.Revokes) <= avg*c.Multiplier {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkChurnSpike,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d revokes against a rolling average of %.1f", stats.Revokes, avg),
	}
}

func (bd *BookmarkDetector) checkFailureBurst(stats WindowStats) *Bookmark {
	c := bd.cfg.FailureBurst
	if stats.ScansFailed < c.MinFailures {
		return nil
	}
	avg := bd.rollingMean(func(w WindowStats) int { return w.ScansFailed })
	if avg > 0 && float64(stats.ScansFailed) <= avg*c.Multiplier {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkFailureBurst,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d failed scans against a rolling average of %.1f", stats.ScansFailed, avg),
	}
}

func (bd *BookmarkDetector) checkCoverageDrop(stats WindowStats) *Bookmark {
	c := bd.cfg.CoverageDrop
	if bd.recentGrantPeak < c.MinPeak || bd.recentGrantPeak == 0 {
		return nil
	}
	drop := 1.0 - float64(stats.ActiveGrants)/float64(bd.recentGrantPeak)
	if drop < c.DropFraction {
		return nil
	}

	// Reset peak after a drop
	oldPeak := bd.recentGrantPeak
	bd.recentGrantPeak = stats.ActiveGrants

	return &Bookmark{
		Type:        BookmarkCoverageDrop,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("Active grants fell %.0f%% from peak %d to %d", drop*100, oldPeak, stats.ActiveGrants),
	}
}

func (bd *BookmarkDetector) checkSettled(stats WindowStats) *Bookmark {
	if stats.ActiveGrants == 0 || stats.Grants > 0 || stats.Revokes > 0 {
		bd.settledWindowCount = 0
		return nil
	}
	bd.settledWindowCount++

	// Trigger exactly once per settled stretch
	if bd.settledWindowCount != bd.cfg.Settled.Windows {
		return nil
	}
	return &Bookmark{
		Type:        BookmarkSettled,
		Tick:        stats.WindowEndTick,
		Description: fmt.Sprintf("%d grants held without churn for %d windows", stats.ActiveGrants, bd.settledWindowCount),
	}
}
