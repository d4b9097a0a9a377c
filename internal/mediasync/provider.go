package mediasync

import (
	"context"
	"fmt"
	"time"
)

type (
	// RawRecord is a single mention as returned by a provider. Ephemeral;
	// only kept long enough to be grouped and merged.
	RawRecord struct {
		MentionID  string
		ItemID     string
		ChannelID  string
		EntityID   string
		EntityName string
		Sentiment  string
		Excerpt    string
		URL        string
		CreatedAt  time.Time
	}

	// Item is the underlying content unit a RawRecord refers to (the
	// post or broadcast segment). Several records may reference one item.
	Item struct {
		ID          string
		Title       string
		URL         string
		Summary     string
		Content     string
		ChannelID   string
		PublishedAt time.Time
		Assets      []MediaAsset
	}

	AssetKind string

	MediaAsset struct {
		Kind            AssetKind `json:"kind"`
		Name            string    `json:"name"`
		DurationSeconds float64   `json:"duration_seconds,omitempty"`
		SizeBytes       int64     `json:"size_bytes,omitempty"`
		Frames          []string  `json:"frames,omitempty"`
	}

	// ProviderClient is the sync-loop contract a media-intelligence
	// adapter must satisfy. Adapters own query construction, response
	// shapes, and per-call timeouts (roughly 30s for listings, 15s for
	// detail fetches); they must surface HTTP status failures as
	// *ProviderError so the orchestrator can classify them.
	ProviderClient interface {
		Name() string
		SearchEntity(ctx context.Context, name string) (string, error)
		ListItems(ctx context.Context, key string, since time.Time, limit int) ([]RawRecord, error)
		FetchItemDetail(ctx context.Context, itemID string) (*Item, error)
	}
)

const (
	AssetKindVideo AssetKind = "video"
	AssetKindAudio AssetKind = "audio"
	AssetKindImage AssetKind = "image"
)

// ProviderError is an HTTP-level failure from a provider adapter, kept
// distinct from network timeouts so the two can be told apart.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.StatusCode, e.Message)
}
