package mediasync

import (
	"context"
	"strconv"
	"strings"
	"time"
)

type SourceType string

const (
	SourceTypeTV          SourceType = "tv"
	SourceTypeRadio       SourceType = "radio"
	SourceTypePortal      SourceType = "portal"
	SourceTypeSocialMedia SourceType = "social_media"
	SourceTypeWhatsApp    SourceType = "whatsapp"
)

// SourceTypeForKind maps a channel's kind to the feed source type. Kinds
// arrive either as names or as numeric codes; both are accepted.
func SourceTypeForKind(kind string) SourceType {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "tv", "0":
		return SourceTypeTV
	case "radio", "1":
		return SourceTypeRadio
	case "portal", "website", "site", "2":
		return SourceTypePortal
	case "youtube", "3", "instagram", "4", "tiktok", "5", "social_media":
		return SourceTypeSocialMedia
	case "whatsapp", "6":
		return SourceTypeWhatsApp
	}
	// Unrecognized numeric codes are most likely new social networks;
	// anything else is treated as a web portal.
	if _, err := strconv.Atoi(strings.TrimSpace(kind)); err == nil {
		return SourceTypeSocialMedia
	}
	return SourceTypePortal
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentMixed    Sentiment = "mixed"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment normalizes a provider's raw sentiment label. Anything
// unrecognized is neutral.
func ParseSentiment(raw string) Sentiment {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive", "positivo":
		return SentimentPositive
	case "negative", "negativo":
		return SentimentNegative
	case "mixed", "misto":
		return SentimentMixed
	default:
		return SentimentNeutral
	}
}

// RiskScore maps a sentiment to its alerting risk score. A single negative
// citation must dominate a group, so merging picks the maximum of these.
func (s Sentiment) RiskScore() int {
	switch s {
	case SentimentNegative:
		return 75
	case SentimentPositive:
		return 20
	case SentimentMixed:
		return 55
	default:
		return 50
	}
}

// Tone returns the analyst-facing tone label for a per-entity row.
func (s Sentiment) Tone() string {
	switch s {
	case SentimentNegative:
		return "crítico"
	case SentimentPositive:
		return "elogioso"
	default:
		return "neutro"
	}
}

type (
	// FeedEntry is the persisted, deduplicated unit surfaced to the rest
	// of the application. Never mutated by this engine after insertion.
	FeedEntry struct {
		ID           string
		ActivationID string
		Title        string
		Summary      string
		Content      string
		Source       string
		SourceType   SourceType
		Sentiment    Sentiment
		RiskScore    int
		URL          string
		Keywords     []string
		ExternalID   string
		Metadata     ClassificationMetadata
		PublishedAt  time.Time
		CreatedAt    time.Time
	}

	// ClassificationMetadata carries the raw signal behind a feed entry:
	// assets, frames, per-entity analysis, and the provider correlation
	// ids the dedup layers key on.
	ClassificationMetadata struct {
		Assets           []MediaAsset     `json:"assets,omitempty"`
		Frames           []string         `json:"frames,omitempty"`
		DetectedEntities []string         `json:"detected_entities,omitempty"`
		EntityAnalyses   []EntityAnalysis `json:"per_entity_analysis,omitempty"`
		TimelineMarks    []TimelineMark   `json:"timeline_marks,omitempty"`
		PostID           string           `json:"post_id,omitempty"`
		MentionID        string           `json:"mention_id,omitempty"`
		ChannelID        string           `json:"channel_id,omitempty"`
	}

	EntityAnalysis struct {
		EntityName string    `json:"entity_name"`
		Sentiment  Sentiment `json:"sentiment"`
		Context    string    `json:"context"`
		Tone       string    `json:"tone"`
	}

	// TimelineMark points an analyst at where inside an audiovisual
	// segment an entity appears.
	TimelineMark struct {
		Position   float64   `json:"position"`
		Sentiment  Sentiment `json:"sentiment"`
		Frame      string    `json:"frame,omitempty"`
		EntityName string    `json:"entity_name,omitempty"`
	}

	FeedStore interface {
		BatchExistsByExternalID(ctx context.Context, activationID string, ids []string) (map[string]struct{}, error)
		ExistsByURL(ctx context.Context, url string) (bool, error)
		ExistsByTitle(ctx context.Context, activationID, title string) (bool, error)
		Insert(ctx context.Context, entry FeedEntry) error
	}
)
