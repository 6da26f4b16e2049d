// Package dashboard serves the home page summary of batches currently in the
// facility.
package dashboard

import (
	"time"

	"github.com/dyetrack/dyetrack/internal/batches"
)

// RecentLimit caps the active batches listed on the dashboard.
const RecentLimit = 8

// ActiveBatch is an open batch with its age.
type ActiveBatch struct {
	batches.Batch
	Days int
}

// Stats is derived in memory from the full batch list on every load.
type Stats struct {
	TotalCount   int
	ActiveCount  int
	CompanyCount int
	Oldest       *ActiveBatch
	Recent       []ActiveBatch
}

// OldestDays is the age of the oldest open batch, 0 with none open.
func (s Stats) OldestDays() int {
	if s.Oldest == nil {
		return 0
	}
	return s.Oldest.Days
}

// Compute reduces list to the dashboard figures.
func Compute(list []batches.Batch, now time.Time) Stats {
	active := batches.Open(list)
	stats := Stats{
		TotalCount:   len(list),
		ActiveCount:  len(active),
		CompanyCount: len(batches.CompanyNames(active)),
	}
	if oldest, ok := batches.Oldest(active); ok {
		stats.Oldest = &ActiveBatch{Batch: oldest, Days: batches.DaysInSystem(oldest.InTime.Time, now)}
	}
	limit := min(len(active), RecentLimit)
	stats.Recent = make([]ActiveBatch, 0, limit)
	for _, b := range active[:limit] {
		stats.Recent = append(stats.Recent, ActiveBatch{Batch: b, Days: batches.DaysInSystem(b.InTime.Time, now)})
	}
	return stats
}
