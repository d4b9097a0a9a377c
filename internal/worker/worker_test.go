package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radarhq/mediasync/internal/mediasync"
)

// ---- fakes ----

type fakeDirectory struct {
	activations []mediasync.Activation
	channels    map[string][]mediasync.Channel
}

func (f *fakeDirectory) ListActive(context.Context) ([]mediasync.Activation, error) {
	return f.activations, nil
}

func (f *fakeDirectory) ListLinkedChannels(_ context.Context, activationID string) ([]mediasync.Channel, error) {
	return f.channels[activationID], nil
}

type fakeWatermarks struct {
	mu    sync.Mutex
	store map[string]mediasync.Watermark
}

func newFakeWatermarks() *fakeWatermarks {
	return &fakeWatermarks{store: map[string]mediasync.Watermark{}}
}

func wmKey(activationID string, sourceType mediasync.SourceType, sourceKey string) string {
	return fmt.Sprintf("%s|%s|%s", activationID, sourceType, sourceKey)
}

func (f *fakeWatermarks) Get(_ context.Context, activationID string, sourceType mediasync.SourceType, sourceKey string) (mediasync.Watermark, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wm, ok := f.store[wmKey(activationID, sourceType, sourceKey)]
	if !ok {
		return mediasync.Watermark{}, mediasync.ErrNotFound
	}
	return wm, nil
}

func (f *fakeWatermarks) Set(_ context.Context, activationID string, sourceType mediasync.SourceType, args mediasync.SetWatermarkArgs) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := wmKey(activationID, sourceType, args.SourceKey)
	wm := f.store[key]
	wm.ActivationID = activationID
	wm.SourceType = sourceType
	wm.SourceKey = args.SourceKey
	wm.LastSyncAt = time.Now()
	if args.LastItemID != "" {
		id := args.LastItemID
		wm.LastItemID = &id
	}
	if !args.LastItemDate.IsZero() {
		d := args.LastItemDate
		wm.LastItemDate = &d
	}
	f.store[key] = wm
	return nil
}

type fakeFeed struct {
	mu      sync.Mutex
	entries []mediasync.FeedEntry
}

func (f *fakeFeed) BatchExistsByExternalID(_ context.Context, activationID string, ids []string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	found := map[string]struct{}{}
	for _, e := range f.entries {
		if e.ActivationID != activationID {
			continue
		}
		for _, id := range ids {
			if e.ExternalID == id {
				found[id] = struct{}{}
			}
		}
	}
	return found, nil
}

func (f *fakeFeed) ExistsByURL(_ context.Context, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.URL == url {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFeed) ExistsByTitle(_ context.Context, activationID, title string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ActivationID == activationID && e.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeFeed) Insert(_ context.Context, entry mediasync.FeedEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

type fakeProvider struct {
	name     string
	entities map[string]string
	records  map[string][]mediasync.RawRecord
	items    map[string]*mediasync.Item

	listErr   error
	detailErr error
	blockList chan struct{} // when set, ListItems waits until closed

	mu          sync.Mutex
	searchCalls int
	listSince   []time.Time
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) SearchEntity(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	f.searchCalls++
	f.mu.Unlock()

	id, ok := f.entities[name]
	if !ok {
		return "", fmt.Errorf("no entity for %q: %w", name, mediasync.ErrNotFound)
	}
	return id, nil
}

func (f *fakeProvider) ListItems(_ context.Context, key string, since time.Time, _ int) ([]mediasync.RawRecord, error) {
	if f.blockList != nil {
		<-f.blockList
	}
	if f.listErr != nil {
		return nil, f.listErr
	}

	f.mu.Lock()
	f.listSince = append(f.listSince, since)
	f.mu.Unlock()

	return f.records[key], nil
}

func (f *fakeProvider) FetchItemDetail(_ context.Context, itemID string) (*mediasync.Item, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	return f.items[itemID], nil
}

// ---- helpers ----

func janeActivation() mediasync.Activation {
	return mediasync.Activation{
		ID:      "act-1",
		Name:    "Campanha 2026",
		Status:  mediasync.ActivationStatusActive,
		Persons: []string{"Jane Roe"},
	}
}

func newTestOrchestrator(t *testing.T, provider *fakeProvider, dir *fakeDirectory) (*Orchestrator, *fakeWatermarks, *fakeFeed) {
	t.Helper()

	watermarks := newFakeWatermarks()
	feed := &fakeFeed{}
	o, err := New(Config{}, dir, watermarks, feed, []Source{
		{Client: provider, PersonSourceType: mediasync.SourceTypeSocialMedia},
	})
	require.NoError(t, err)

	return o, watermarks, feed
}

// ---- tests ----

func TestTick_JaneRoeScenario(t *testing.T) {
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		name:     "acme",
		entities: map[string]string{"Jane Roe": "ent-jane"},
		records: map[string][]mediasync.RawRecord{
			"ent-jane": {
				{MentionID: "m1", ItemID: "item-42", EntityName: "Jane Roe", Sentiment: "negative", Excerpt: "harsh", CreatedAt: created},
				{MentionID: "m2", ItemID: "item-42", EntityName: "Jane Roe", Sentiment: "positive", Excerpt: "kind", CreatedAt: created.Add(time.Minute)},
			},
		},
		items: map[string]*mediasync.Item{
			"item-42": {ID: "item-42", Title: "Morning show", URL: "https://example.com/42", PublishedAt: created},
		},
	}
	dir := &fakeDirectory{activations: []mediasync.Activation{janeActivation()}}
	o, watermarks, feed := newTestOrchestrator(t, provider, dir)

	report, ran := o.Tick(context.Background())
	require.True(t, ran)

	assert.Equal(t, 1, report.Keys)
	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 0, report.Failures)

	require.Len(t, feed.entries, 1)
	entry := feed.entries[0]
	assert.Equal(t, mediasync.SentimentNegative, entry.Sentiment)
	assert.Equal(t, 75, entry.RiskScore)
	assert.Equal(t, []string{"Jane Roe"}, entry.Metadata.DetectedEntities)
	assert.Len(t, entry.Metadata.EntityAnalyses, 2)

	wm, err := watermarks.Get(context.Background(), "act-1", mediasync.SourceTypeSocialMedia, "acme:ent-jane")
	require.NoError(t, err)
	require.NotNil(t, wm.LastItemDate)
	assert.Equal(t, created.Add(time.Minute), *wm.LastItemDate)
}

func TestTick_SecondCycleInsertsNothing(t *testing.T) {
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		name:     "acme",
		entities: map[string]string{"Jane Roe": "ent-jane"},
		records: map[string][]mediasync.RawRecord{
			"ent-jane": {
				{MentionID: "m1", ItemID: "item-42", EntityName: "Jane Roe", Sentiment: "negative", CreatedAt: created},
			},
		},
		items: map[string]*mediasync.Item{},
	}
	dir := &fakeDirectory{activations: []mediasync.Activation{janeActivation()}}
	o, _, feed := newTestOrchestrator(t, provider, dir)

	first, ran := o.Tick(context.Background())
	require.True(t, ran)
	assert.Equal(t, 1, first.Inserted)

	// Provider pagination overlap: the same item comes back next cycle.
	second, ran := o.Tick(context.Background())
	require.True(t, ran)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 1, second.Duplicates)
	assert.Len(t, feed.entries, 1)

	// The person resolution was cached across cycles.
	assert.Equal(t, 1, provider.searchCalls)
}

func TestTick_WatermarkAdvancesMonotonically(t *testing.T) {
	t1 := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)
	provider := &fakeProvider{
		name:     "acme",
		entities: map[string]string{"Jane Roe": "ent-jane"},
		records: map[string][]mediasync.RawRecord{
			"ent-jane": {{MentionID: "m1", ItemID: "item-1", Sentiment: "neutral", CreatedAt: t1}},
		},
		items: map[string]*mediasync.Item{},
	}
	dir := &fakeDirectory{activations: []mediasync.Activation{janeActivation()}}
	o, watermarks, _ := newTestOrchestrator(t, provider, dir)

	_, ran := o.Tick(context.Background())
	require.True(t, ran)

	wm, err := watermarks.Get(context.Background(), "act-1", mediasync.SourceTypeSocialMedia, "acme:ent-jane")
	require.NoError(t, err)
	require.NotNil(t, wm.LastItemDate)
	afterFirst := *wm.LastItemDate
	assert.Equal(t, t1, afterFirst)

	provider.records["ent-jane"] = []mediasync.RawRecord{
		{MentionID: "m2", ItemID: "item-2", Sentiment: "neutral", CreatedAt: t2},
	}
	_, ran = o.Tick(context.Background())
	require.True(t, ran)

	wm, err = watermarks.Get(context.Background(), "act-1", mediasync.SourceTypeSocialMedia, "acme:ent-jane")
	require.NoError(t, err)
	assert.False(t, wm.LastItemDate.Before(afterFirst))
	assert.Equal(t, t2, *wm.LastItemDate)

	// The second fetch's lower bound came from the first cycle's newest
	// item, not from the lookback window.
	require.Len(t, provider.listSince, 2)
	assert.Equal(t, t1, provider.listSince[1])
}

func TestTick_TransientErrorHoldsWatermark(t *testing.T) {
	provider := &fakeProvider{
		name:     "acme",
		entities: map[string]string{"Jane Roe": "ent-jane"},
		listErr:  &mediasync.ProviderError{Provider: "acme", StatusCode: 503, Message: "upstream sad"},
	}
	dir := &fakeDirectory{activations: []mediasync.Activation{janeActivation()}}
	o, watermarks, _ := newTestOrchestrator(t, provider, dir)

	report, ran := o.Tick(context.Background())
	require.True(t, ran)

	assert.Equal(t, 1, report.Failures)

	// The window is retried next cycle.
	_, err := watermarks.Get(context.Background(), "act-1", mediasync.SourceTypeSocialMedia, "acme:ent-jane")
	assert.ErrorIs(t, err, mediasync.ErrNotFound)
}

func TestTick_NotFoundAdvancesWatermark(t *testing.T) {
	provider := &fakeProvider{
		name:     "acme",
		entities: map[string]string{"Jane Roe": "ent-jane"},
		listErr:  &mediasync.ProviderError{Provider: "acme", StatusCode: 404, Message: "no such channel"},
	}
	dir := &fakeDirectory{activations: []mediasync.Activation{janeActivation()}}
	o, watermarks, _ := newTestOrchestrator(t, provider, dir)

	report, ran := o.Tick(context.Background())
	require.True(t, ran)

	// A permanently-empty source is a skip, not a failure, and its
	// watermark still moves so the lookback window doesn't grow forever.
	assert.Equal(t, 0, report.Failures)
	assert.Equal(t, 1, report.Keys)

	wm, err := watermarks.Get(context.Background(), "act-1", mediasync.SourceTypeSocialMedia, "acme:ent-jane")
	require.NoError(t, err)
	assert.False(t, wm.LastSyncAt.IsZero())
	assert.Nil(t, wm.LastItemDate)
}

func TestTick_UnknownPersonIsSkipped(t *testing.T) {
	provider := &fakeProvider{name: "acme", entities: map[string]string{}}
	dir := &fakeDirectory{activations: []mediasync.Activation{janeActivation()}}
	o, _, _ := newTestOrchestrator(t, provider, dir)

	report, ran := o.Tick(context.Background())
	require.True(t, ran)

	assert.Equal(t, 0, report.Keys)
	assert.Equal(t, 0, report.Failures)
}

func TestTick_ChannelsUseKindMapping(t *testing.T) {
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		name:     "acme",
		entities: map[string]string{},
		records: map[string][]mediasync.RawRecord{
			"chan-7": {{MentionID: "m1", ItemID: "seg-1", Sentiment: "neutral", CreatedAt: created}},
		},
		items: map[string]*mediasync.Item{},
	}
	activation := janeActivation()
	activation.Persons = nil
	dir := &fakeDirectory{
		activations: []mediasync.Activation{activation},
		channels: map[string][]mediasync.Channel{
			"act-1": {{ChannelID: "chan-7", Kind: "0", Title: "Canal 7"}},
		},
	}
	o, _, feed := newTestOrchestrator(t, provider, dir)

	report, ran := o.Tick(context.Background())
	require.True(t, ran)
	assert.Equal(t, 1, report.Inserted)

	require.Len(t, feed.entries, 1)
	assert.Equal(t, mediasync.SourceTypeTV, feed.entries[0].SourceType)
}

func TestTick_DetailFailureDegradesToSummary(t *testing.T) {
	created := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	provider := &fakeProvider{
		name:     "acme",
		entities: map[string]string{"Jane Roe": "ent-jane"},
		records: map[string][]mediasync.RawRecord{
			"ent-jane": {{MentionID: "m1", ItemID: "item-1", EntityName: "Jane Roe", Sentiment: "negative", Excerpt: "the only text we have", CreatedAt: created}},
		},
		detailErr: &mediasync.ProviderError{Provider: "acme", StatusCode: 500},
	}
	dir := &fakeDirectory{activations: []mediasync.Activation{janeActivation()}}
	o, _, feed := newTestOrchestrator(t, provider, dir)

	report, ran := o.Tick(context.Background())
	require.True(t, ran)

	assert.Equal(t, 1, report.Inserted)
	assert.Equal(t, 0, report.Failures)

	require.Len(t, feed.entries, 1)
	entry := feed.entries[0]
	assert.Equal(t, "the only text we have", entry.Summary)
	assert.Equal(t, "Sem título", entry.Title)
	assert.True(t, len(entry.URL) > 0)
}

func TestTick_DroppedWhileRunning(t *testing.T) {
	release := make(chan struct{})
	provider := &fakeProvider{
		name:      "acme",
		entities:  map[string]string{"Jane Roe": "ent-jane"},
		records:   map[string][]mediasync.RawRecord{},
		blockList: release,
	}
	dir := &fakeDirectory{activations: []mediasync.Activation{janeActivation()}}
	o, _, _ := newTestOrchestrator(t, provider, dir)

	done := make(chan struct{})
	go func() {
		defer close(done)
		o.Tick(context.Background())
	}()

	// Wait for the first cycle to be inside the provider call.
	require.Eventually(t, func() bool {
		return o.running.Load()
	}, time.Second, time.Millisecond)

	_, ran := o.Tick(context.Background())
	assert.False(t, ran, "tick during a running cycle must be dropped")

	close(release)
	<-done

	_, ran = o.Tick(context.Background())
	assert.True(t, ran, "tick after the cycle finishes runs again")
}
