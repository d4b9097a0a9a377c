package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/radarhq/mediasync/internal/dedup"
	"github.com/radarhq/mediasync/internal/ingest"
	"github.com/radarhq/mediasync/internal/logger"
	"github.com/radarhq/mediasync/internal/mediasync"
)

// keySpec identifies one watermark-bounded pipeline run: an activation, a
// provider, and the entity or channel being fetched.
type keySpec struct {
	client     mediasync.ProviderClient
	activation mediasync.Activation
	sourceType mediasync.SourceType
	sourceKey  string // watermark key, namespaced by provider
	listKey    string // provider-side entity or channel id
}

// syncActivation runs every (source, person) and (source, channel) pipeline
// for one activation. Failures stay at per-key granularity: a broken person
// or channel never aborts the activation's remaining work.
func (o *Orchestrator) syncActivation(ctx context.Context, activation mediasync.Activation) CycleReport {
	ctx = logger.Ctx(ctx, slog.String("activation_id", activation.ID))

	var report CycleReport
	gate := dedup.NewGate(o.feed, activation.ID)

	for _, src := range o.sources {
		for _, name := range activation.Persons {
			entityID, ok := o.resolveEntity(ctx, src.Client, name)
			if !ok {
				continue
			}
			spec := keySpec{
				client:     src.Client,
				activation: activation,
				sourceType: src.PersonSourceType,
				sourceKey:  fmt.Sprintf("%s:%s", src.Client.Name(), entityID),
				listKey:    entityID,
			}
			o.runKey(ctx, spec, gate, &report)
		}

		channels, err := o.directory.ListLinkedChannels(ctx, activation.ID)
		if err != nil {
			slog.ErrorContext(ctx, "error listing linked channels", "error", err)
			report.Failures++
			continue
		}
		for _, ch := range channels {
			spec := keySpec{
				client:     src.Client,
				activation: activation,
				sourceType: mediasync.SourceTypeForKind(ch.Kind),
				sourceKey:  fmt.Sprintf("%s:%s", src.Client.Name(), ch.ChannelID),
				listKey:    ch.ChannelID,
			}
			o.runKey(ctx, spec, gate, &report)
		}
	}

	return report
}

func (o *Orchestrator) runKey(ctx context.Context, spec keySpec, gate *dedup.Gate, report *CycleReport) {
	ctx = logger.Ctx(ctx,
		slog.String("source", spec.client.Name()),
		slog.String("source_key", spec.sourceKey),
	)

	res, syncErr := o.syncKey(ctx, spec, gate)
	if syncErr != nil {
		slog.ErrorContext(ctx, "key sync failed", "kind", syncErr.Kind, "error", syncErr)
		report.Keys++
		report.Failures++
		return
	}
	report.addResult(res)
}

// resolveEntity maps a monitored person's name to the provider's entity id,
// through the cache. Absence is a normal skip, not a failure.
func (o *Orchestrator) resolveEntity(ctx context.Context, client mediasync.ProviderClient, name string) (string, bool) {
	cacheKey := client.Name() + "/" + name
	if id, ok := o.entityIDs.Get(cacheKey); ok {
		return id, true
	}

	id, err := client.SearchEntity(ctx, name)
	if err != nil {
		if mediasync.Classify(err) == mediasync.ErrorKindNotFound {
			slog.InfoContext(ctx, "person not known to provider, skipping", "person", name)
		} else {
			slog.ErrorContext(ctx, "error resolving person", "person", name, "error", err)
		}
		return "", false
	}

	o.entityIDs.Add(cacheKey, id)
	return id, true
}

// syncKey is the watermark-bounded fetch → group → merge → dedup → insert
// pipeline for one key. On clean completion the watermark advances to the
// newest item date observed, even when nothing new was inserted.
func (o *Orchestrator) syncKey(ctx context.Context, spec keySpec, gate *dedup.Gate) (SyncResult, *mediasync.SyncError) {
	var res SyncResult

	var wmp *mediasync.Watermark
	wm, err := o.watermarks.Get(ctx, spec.activation.ID, spec.sourceType, spec.sourceKey)
	switch {
	case err == nil:
		wmp = &wm
	case errors.Is(err, mediasync.ErrNotFound):
		// First run for this key; the lookback window applies.
	default:
		return res, o.syncError(spec, err)
	}

	since := mediasync.StartFrom(wmp, o.lookbackHours)

	listCtx, cancel := context.WithTimeout(ctx, listTimeout)
	records, err := spec.client.ListItems(listCtx, spec.listKey, since, o.pageLimit)
	cancel()
	if err != nil {
		if mediasync.Classify(err) == mediasync.ErrorKindNotFound {
			// A dead or empty source is a no-data outcome, and its
			// watermark still advances so the lookback window doesn't
			// grow without bound.
			slog.InfoContext(ctx, "provider has no data for key, skipping", "error", err)
			return res, o.advance(ctx, spec, res)
		}
		return res, o.syncError(spec, err)
	}

	batch := ingest.GroupByItem(records)
	ids := make([]string, 0, len(batch.Groups))
	for _, g := range batch.Groups {
		ids = append(ids, g.ItemID)
	}

	if err := gate.Preload(ctx, ids); err != nil {
		return res, o.syncError(spec, err)
	}

	details := o.fetchDetails(ctx, spec.client, ids)

	for _, g := range batch.Groups {
		for _, rec := range g.Records {
			res.observe(g.ItemID, rec.CreatedAt)
		}

		entry := ingest.Merge(g, ingest.MergeInput{
			Source:       spec.client.Name(),
			SourceType:   spec.sourceType,
			ActivationID: spec.activation.ID,
			Keywords:     spec.activation.Keywords,
			Item:         details[g.ItemID],
		})

		verdict, err := gate.Check(ctx, entry)
		if err != nil {
			slog.ErrorContext(ctx, "error checking candidate", "item_id", g.ItemID, "error", err)
			res.Failures++
			continue
		}
		if verdict != dedup.VerdictNew {
			slog.DebugContext(ctx, "duplicate candidate discarded", "item_id", g.ItemID, "verdict", verdict)
			res.Duplicates++
			continue
		}

		if err := o.feed.Insert(ctx, entry); err != nil {
			// A concurrent writer beating us to the row is still a
			// duplicate, not a failure.
			if errors.Is(err, mediasync.ErrConflict) {
				res.Duplicates++
				continue
			}
			slog.ErrorContext(ctx, "error inserting feed entry", "item_id", g.ItemID, "error", err)
			res.Failures++
			continue
		}
		res.Inserted++
	}

	if batch.Merged > 0 || batch.Dropped > 0 {
		slog.InfoContext(ctx, "grouped provider records",
			"records", len(records), "groups", len(batch.Groups),
			"merged", batch.Merged, "dropped", batch.Dropped)
	}

	return res, o.advance(ctx, spec, res)
}

// fetchDetails fans out the full-detail fetches for a batch of unique item
// ids and waits for all of them. A failed fetch degrades that one item to
// the summary data its records carried.
func (o *Orchestrator) fetchDetails(ctx context.Context, client mediasync.ProviderClient, ids []string) map[string]*mediasync.Item {
	details := make(map[string]*mediasync.Item, len(ids))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()

			detailCtx, cancel := context.WithTimeout(ctx, detailTimeout)
			defer cancel()

			item, err := client.FetchItemDetail(detailCtx, id)
			if err != nil || item == nil {
				slog.WarnContext(ctx, "detail fetch failed, degrading to summary data", "item_id", id, "error", err)
				return
			}

			mu.Lock()
			details[id] = item
			mu.Unlock()
		}()
	}
	wg.Wait()

	return details
}

func (o *Orchestrator) advance(ctx context.Context, spec keySpec, res SyncResult) *mediasync.SyncError {
	err := o.watermarks.Set(ctx, spec.activation.ID, spec.sourceType, mediasync.SetWatermarkArgs{
		SourceKey:    spec.sourceKey,
		LastItemID:   res.NewestItemID,
		LastItemDate: res.NewestItemDate,
	})
	if err != nil {
		// Inserted entries stay; dedup is id/url/title based, so the next
		// cycle re-covering this window cannot create duplicates.
		return o.syncError(spec, fmt.Errorf("error advancing watermark: %w", err))
	}

	return nil
}

func (o *Orchestrator) syncError(spec keySpec, err error) *mediasync.SyncError {
	return &mediasync.SyncError{
		Kind:         mediasync.Classify(err),
		ActivationID: spec.activation.ID,
		SourceType:   spec.sourceType,
		SourceKey:    spec.sourceKey,
		Err:          err,
	}
}
