package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radarhq/mediasync/internal/mediasync"
)

func TestGroupByItem(t *testing.T) {
	records := []mediasync.RawRecord{
		{MentionID: "m1", ItemID: "item-1", EntityName: "Jane Roe"},
		{MentionID: "m2", ItemID: "item-2", EntityName: "John Doe"},
		{MentionID: "m3", ItemID: "item-1", EntityName: "John Doe"},
		{MentionID: "m4", ItemID: "item-1", EntityName: "Acme Corp"},
	}

	batch := GroupByItem(records)

	require.Len(t, batch.Groups, 2)
	assert.Equal(t, 2, batch.Merged)
	assert.Equal(t, 0, batch.Dropped)

	// Provider order is preserved, both across groups and within one.
	assert.Equal(t, "item-1", batch.Groups[0].ItemID)
	require.Len(t, batch.Groups[0].Records, 3)
	assert.Equal(t, "m1", batch.Groups[0].Records[0].MentionID)
	assert.Equal(t, "m3", batch.Groups[0].Records[1].MentionID)
	assert.Equal(t, "m4", batch.Groups[0].Records[2].MentionID)

	assert.Equal(t, "item-2", batch.Groups[1].ItemID)
	require.Len(t, batch.Groups[1].Records, 1)
}

func TestGroupByItem_DropsRecordsWithoutItemID(t *testing.T) {
	records := []mediasync.RawRecord{
		{MentionID: "m1", ItemID: "item-1"},
		{MentionID: "m2"}, // unusable for correlation
		{MentionID: "m3", ItemID: "item-1"},
	}

	batch := GroupByItem(records)

	require.Len(t, batch.Groups, 1)
	assert.Len(t, batch.Groups[0].Records, 2)
	assert.Equal(t, 1, batch.Merged)
	assert.Equal(t, 1, batch.Dropped)
}

func TestGroupByItem_Empty(t *testing.T) {
	batch := GroupByItem(nil)

	assert.Empty(t, batch.Groups)
	assert.Zero(t, batch.Merged)
	assert.Zero(t, batch.Dropped)
}
