// Package ingest holds the pure steps of the pipeline: grouping raw
// provider records by the item they reference and merging each group into a
// single candidate feed entry. No I/O happens here, which keeps the
// single-pass grouping and the merge rules testable on their own.
package ingest

import (
	"github.com/radarhq/mediasync/internal/mediasync"
)

type (
	// Group is all the records from one fetch that reference the same
	// underlying item, in provider order.
	Group struct {
		ItemID  string
		Records []mediasync.RawRecord
	}

	// GroupedBatch indexes groups by item id while keeping the order in
	// which items first appeared in the fetch.
	GroupedBatch struct {
		Groups []Group

		// Merged counts records folded into an already-seen group;
		// Dropped counts records that carried no item id and were
		// unusable for correlation.
		Merged  int
		Dropped int
	}
)

// GroupByItem partitions a fetched batch by the item each record references.
// A single broadcast segment commonly cites several monitored entities;
// without this step each citation would become its own feed entry.
func GroupByItem(records []mediasync.RawRecord) GroupedBatch {
	var batch GroupedBatch
	index := make(map[string]int)

	for _, rec := range records {
		if rec.ItemID == "" {
			batch.Dropped++
			continue
		}
		i, ok := index[rec.ItemID]
		if !ok {
			index[rec.ItemID] = len(batch.Groups)
			batch.Groups = append(batch.Groups, Group{ItemID: rec.ItemID, Records: []mediasync.RawRecord{rec}})
			continue
		}
		batch.Groups[i].Records = append(batch.Groups[i].Records, rec)
		batch.Merged++
	}

	return batch
}
