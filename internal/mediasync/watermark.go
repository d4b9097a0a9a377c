package mediasync

import (
	"context"
	"time"
)

type (
	// Watermark marks how far syncing has progressed for one
	// (activation, source type, source key) triple. An empty SourceKey is
	// its own distinct key, not a wildcard.
	Watermark struct {
		ActivationID string     `db:"activation_id"`
		SourceType   SourceType `db:"source_type"`
		SourceKey    string     `db:"source_key"`
		LastSyncAt   time.Time  `db:"last_sync_at"`
		LastItemID   *string    `db:"last_item_id"`
		LastItemDate *time.Time `db:"last_item_date"`
		Metadata     *string    `db:"metadata"`
	}

	// Holds the optional fields for upserting a watermark. Zero values
	// are "not provided" and leave the stored value alone; LastSyncAt is
	// always refreshed by Set regardless.
	SetWatermarkArgs struct {
		SourceKey    string
		LastItemID   string
		LastItemDate time.Time
		Metadata     string
	}

	WatermarkStore interface {
		Get(ctx context.Context, activationID string, sourceType SourceType, sourceKey string) (Watermark, error)
		Set(ctx context.Context, activationID string, sourceType SourceType, args SetWatermarkArgs) error
	}
)

// StartFrom derives the lower bound for the next provider fetch. A watermark
// may exist without ever having seen an item (a clean cycle with zero
// results still refreshes LastSyncAt), hence the three tiers:
// LastItemDate, then LastSyncAt, then now minus the lookback window.
func StartFrom(wm *Watermark, lookbackHours int) time.Time {
	if wm != nil {
		if wm.LastItemDate != nil && !wm.LastItemDate.IsZero() {
			return *wm.LastItemDate
		}
		if !wm.LastSyncAt.IsZero() {
			return wm.LastSyncAt
		}
	}
	return time.Now().Add(-time.Duration(lookbackHours) * time.Hour)
}

// StartDate is StartFrom formatted date-only, for providers that take a day
// boundary.
func StartDate(wm *Watermark, lookbackHours int) string {
	return StartFrom(wm, lookbackHours).Format("2006-01-02")
}

// StartTime is StartFrom formatted as a full timestamp.
func StartTime(wm *Watermark, lookbackHours int) string {
	return StartFrom(wm, lookbackHours).Format(time.RFC3339)
}
