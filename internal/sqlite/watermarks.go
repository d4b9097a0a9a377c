package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/radarhq/mediasync/internal/mediasync"
)

func (r Repo) Get(ctx context.Context, activationID string, sourceType mediasync.SourceType, sourceKey string) (mediasync.Watermark, error) {
	const q = `SELECT * FROM sync_watermarks WHERE activation_id = ? AND source_type = ? AND source_key = ?;`

	var wm mediasync.Watermark
	err := r.db.GetContext(ctx, &wm, q, activationID, sourceType, sourceKey)
	if errors.Is(err, sql.ErrNoRows) {
		return mediasync.Watermark{}, mediasync.ErrNotFound
	}
	if err != nil {
		return mediasync.Watermark{}, fmt.Errorf("error fetching watermark: %s", err)
	}

	return wm, nil
}

// Set upserts the watermark for the three-part key. LastSyncAt is refreshed
// on every call; the optional fields only overwrite when provided. If the
// atomic upsert fails it falls back to a manual read-modify-write, retried
// once.
func (r Repo) Set(ctx context.Context, activationID string, sourceType mediasync.SourceType, args mediasync.SetWatermarkArgs) error {
	now := time.Now()
	if err := r.upsertWatermark(ctx, activationID, sourceType, now, args); err == nil {
		return nil
	}

	backoff := retry.WithMaxRetries(1, retry.NewConstant(100*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := r.manualSetWatermark(ctx, activationID, sourceType, now, args); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("error setting watermark: %w", err)
	}

	return nil
}

func (r Repo) upsertWatermark(ctx context.Context, activationID string, sourceType mediasync.SourceType, now time.Time, args mediasync.SetWatermarkArgs) error {
	const q = `INSERT INTO sync_watermarks (activation_id, source_type, source_key, last_sync_at, last_item_id, last_item_date, metadata)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (activation_id, source_type, source_key) DO UPDATE SET
		last_sync_at = excluded.last_sync_at,
		last_item_id = COALESCE(excluded.last_item_id, sync_watermarks.last_item_id),
		last_item_date = COALESCE(excluded.last_item_date, sync_watermarks.last_item_date),
		metadata = COALESCE(excluded.metadata, sync_watermarks.metadata);`

	_, err := r.db.ExecContext(ctx, q, activationID, sourceType, args.SourceKey,
		now, nullString(args.LastItemID), nullTime(args.LastItemDate), nullString(args.Metadata))
	if err != nil {
		return fmt.Errorf("error upserting watermark: %s", err)
	}

	return nil
}

// manualSetWatermark is the read-modify-write fallback for stores that
// reject the atomic upsert.
func (r Repo) manualSetWatermark(ctx context.Context, activationID string, sourceType mediasync.SourceType, now time.Time, args mediasync.SetWatermarkArgs) error {
	existing, err := r.Get(ctx, activationID, sourceType, args.SourceKey)
	if errors.Is(err, mediasync.ErrNotFound) {
		const insertQ = `INSERT INTO sync_watermarks (activation_id, source_type, source_key, last_sync_at, last_item_id, last_item_date, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?);`
		_, err := r.db.ExecContext(ctx, insertQ, activationID, sourceType, args.SourceKey,
			now, nullString(args.LastItemID), nullTime(args.LastItemDate), nullString(args.Metadata))
		if err != nil {
			return fmt.Errorf("error inserting watermark: %s", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	itemID := existing.LastItemID
	if args.LastItemID != "" {
		itemID = &args.LastItemID
	}
	itemDate := existing.LastItemDate
	if !args.LastItemDate.IsZero() {
		itemDate = &args.LastItemDate
	}
	metadata := existing.Metadata
	if args.Metadata != "" {
		metadata = &args.Metadata
	}

	const updateQ = `UPDATE sync_watermarks
	SET last_sync_at = ?, last_item_id = ?, last_item_date = ?, metadata = ?
	WHERE activation_id = ? AND source_type = ? AND source_key = ?;`
	if _, err := r.db.ExecContext(ctx, updateQ, now, itemID, itemDate, metadata, activationID, sourceType, args.SourceKey); err != nil {
		return fmt.Errorf("error updating watermark: %s", err)
	}

	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
