package worker

import "time"

type (
	// SyncResult is the outcome of one clean per-key pipeline run.
	SyncResult struct {
		Inserted   int
		Duplicates int
		Failures   int

		// Newest item observed during the run, duplicates included, so
		// the watermark only ever moves forward.
		NewestItemDate time.Time
		NewestItemID   string
	}

	// CycleReport aggregates every key synced during one cycle. Logged
	// at the end of the cycle; these counters are the engine's only
	// user-facing surface.
	CycleReport struct {
		Keys       int
		Inserted   int
		Duplicates int
		Failures   int
	}
)

func (r *SyncResult) observe(itemID string, itemDate time.Time) {
	if itemDate.After(r.NewestItemDate) {
		r.NewestItemDate = itemDate
		r.NewestItemID = itemID
	}
}

func (r *CycleReport) merge(other CycleReport) {
	r.Keys += other.Keys
	r.Inserted += other.Inserted
	r.Duplicates += other.Duplicates
	r.Failures += other.Failures
}

func (r *CycleReport) addResult(res SyncResult) {
	r.Keys++
	r.Inserted += res.Inserted
	r.Duplicates += res.Duplicates
	r.Failures += res.Failures
}
