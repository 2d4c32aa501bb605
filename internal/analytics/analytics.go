package analytics

import (
	"sync"
	"time"

	"github.com/August26/proxyscan/internal/iprange"
	"github.com/August26/proxyscan/internal/model"
)

// Tracker accumulates stats while a scan streams results. It holds counters
// only, so its size does not depend on how many addresses are scanned. Safe
// for concurrent use.
type Tracker struct {
	mu sync.Mutex

	unique       uint64
	probed       int
	active       int
	inactive     int
	failed       int
	latencySum   time.Duration
	latencyCount int64
}

// NewTracker returns a tracker for a batch covering ranges. Overlapping
// ranges are counted once in UniqueAddresses.
func NewTracker(ranges []iprange.Range) *Tracker {
	return &Tracker{unique: iprange.UniqueLen(ranges)}
}

func (t *Tracker) Add(r model.ProbeResult) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.probed++

	switch {
	case r.Failed():
		t.failed++
	case r.Active():
		t.active++
		if r.Latency > 0 {
			t.latencySum += r.Latency
			t.latencyCount++
		}
	default:
		t.inactive++
	}
}

func (t *Tracker) Stats(duration time.Duration) model.ScanStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := model.ScanStats{
		Probed:            t.probed,
		UniqueAddresses:   t.unique,
		Active:            t.active,
		Inactive:          t.inactive,
		Failed:            t.failed,
		TotalProcessingMs: duration.Milliseconds(),
	}
	if t.latencyCount > 0 {
		stats.AvgLatencyMs = float64(t.latencySum.Milliseconds()) / float64(t.latencyCount)
	}
	if t.probed > 0 {
		stats.ActiveRatePct = (float64(t.active) / float64(t.probed)) * 100.0
	}
	return stats
}
