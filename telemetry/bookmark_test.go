package telemetry

import (
	"testing"

	"github.com/pthm-cable/grasp/config"
)

func init() {
	config.MustInit("")
}

func newDetector() *BookmarkDetector {
	cfg := config.Cfg()
	return NewBookmarkDetector(cfg.Telemetry.BookmarkHistorySize, cfg.Bookmarks)
}

func hasBookmark(bookmarks []Bookmark, typ BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == typ {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_ChurnSpike(t *testing.T) {
	bd := newDetector()

	for i := 0; i < 5; i++ {
		bd.Check(WindowStats{WindowEndTick: int32(i * 200), ActiveGrants: 3, Revokes: 2})
	}

	bookmarks := bd.Check(WindowStats{WindowEndTick: 1000, ActiveGrants: 3, Revokes: 9})
	if !hasBookmark(bookmarks, BookmarkChurnSpike) {
		t.Errorf("expected churn_spike bookmark, got %+v", bookmarks)
	}

	// Within the multiplier: no spike
	bookmarks = bd.Check(WindowStats{WindowEndTick: 1200, ActiveGrants: 3, Revokes: 4})
	if hasBookmark(bookmarks, BookmarkChurnSpike) {
		t.Error("unexpected churn_spike bookmark")
	}
}

func TestBookmarkDetector_FailureBurst(t *testing.T) {
	bd := newDetector()

	bd.Check(WindowStats{WindowEndTick: 200})
	bookmarks := bd.Check(WindowStats{WindowEndTick: 400, ScansFailed: 5})
	if !hasBookmark(bookmarks, BookmarkFailureBurst) {
		t.Errorf("expected failure_burst bookmark, got %+v", bookmarks)
	}

	// Below the minimum count
	bookmarks = bd.Check(WindowStats{WindowEndTick: 600, ScansFailed: 2})
	if hasBookmark(bookmarks, BookmarkFailureBurst) {
		t.Error("unexpected failure_burst bookmark")
	}
}

func TestBookmarkDetector_CoverageDrop(t *testing.T) {
	bd := newDetector()

	for i := 0; i < 3; i++ {
		bd.Check(WindowStats{WindowEndTick: int32(i * 200), ActiveGrants: 4, Grants: 1})
	}

	bookmarks := bd.Check(WindowStats{WindowEndTick: 600, ActiveGrants: 1, Revokes: 1})
	if !hasBookmark(bookmarks, BookmarkCoverageDrop) {
		t.Fatalf("expected coverage_drop bookmark, got %+v", bookmarks)
	}

	// Peak resets after a drop, so holding at the new level does not re-trigger
	bookmarks = bd.Check(WindowStats{WindowEndTick: 800, ActiveGrants: 1})
	if hasBookmark(bookmarks, BookmarkCoverageDrop) {
		t.Error("coverage_drop re-triggered without a new peak")
	}
}

func TestBookmarkDetector_Settled(t *testing.T) {
	bd := newDetector()
	want := config.Cfg().Bookmarks.Settled.Windows

	fired := 0
	for i := 0; i < want*2; i++ {
		bookmarks := bd.Check(WindowStats{WindowEndTick: int32(i * 200), ActiveGrants: 2})
		if hasBookmark(bookmarks, BookmarkSettled) {
			fired++
			if i != want-1 {
				t.Errorf("settled fired at window %d, want %d", i, want-1)
			}
		}
	}
	if fired != 1 {
		t.Errorf("settled fired %d times, want 1", fired)
	}

	// Churn resets the streak
	bd.Check(WindowStats{ActiveGrants: 2, Grants: 1})
	for i := 0; i < want; i++ {
		got := hasBookmark(bd.Check(WindowStats{ActiveGrants: 2}), BookmarkSettled)
		if got != (i == want-1) {
			t.Errorf("window %d after churn: settled = %v", i, got)
		}
	}
}
