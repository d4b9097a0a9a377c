package ingest

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/radarhq/mediasync/internal/mediasync"
)

const (
	// SyntheticURLPrefix marks placeholder URLs synthesized for items the
	// provider returned without one. The dedup gate must never treat
	// these as real URLs.
	SyntheticURLPrefix = "https://feed.mediasync.internal/"

	PlaceholderTitle   = "Sem título"
	placeholderSummary = "Sem resumo"

	summaryMaxLen = 300
)

var stripPolicy = bluemonday.StrictPolicy()

// Removes html tags and surrounding whitespace from provider text.
func sanitize(s string) string {
	return strings.TrimSpace(stripPolicy.Sanitize(s))
}

// MergeInput is everything Merge needs beyond the group itself. Item is nil
// when the detail fetch failed or the provider has no detail endpoint; the
// merge then degrades to whatever the records carried.
type MergeInput struct {
	Source       string
	SourceType   mediasync.SourceType
	ActivationID string
	Keywords     []string
	Item         *mediasync.Item
}

// Merge collapses one group into a single candidate feed entry: resolves
// display fields through their fallback chains, accumulates per-entity
// analysis, aggregates sentiment worst-case, and reconstructs the
// entity-appearance timeline for audiovisual items.
func Merge(g Group, in MergeInput) mediasync.FeedEntry {
	item := in.Item
	if item == nil {
		item = &mediasync.Item{ID: g.ItemID}
	}
	first := g.Records[0]

	url := item.URL
	if url == "" {
		url = first.URL
	}
	if url == "" {
		url = fmt.Sprintf("%s%s/%s", SyntheticURLPrefix, in.Source, g.ItemID)
	}

	title := firstNonEmpty(sanitize(item.Title), PlaceholderTitle)
	summary := firstNonEmpty(
		sanitize(first.Excerpt),
		sanitize(item.Summary),
		truncate(sanitize(item.Content), summaryMaxLen),
		sanitize(item.Title),
		placeholderSummary,
	)
	content := firstNonEmpty(sanitize(item.Content), sanitize(first.Excerpt), sanitize(item.Title), "")

	var (
		entities []string
		seen     = make(map[string]struct{})
		analyses []mediasync.EntityAnalysis
	)
	sentiment := mediasync.ParseSentiment(first.Sentiment)
	risk := sentiment.RiskScore()
	for _, rec := range g.Records {
		s := mediasync.ParseSentiment(rec.Sentiment)
		// Worst case wins; ties keep the first encountered. Averaging
		// would dilute a single negative citation inside an otherwise
		// neutral segment.
		if s.RiskScore() > risk {
			risk = s.RiskScore()
			sentiment = s
		}

		if rec.EntityName == "" {
			continue
		}
		if _, ok := seen[rec.EntityName]; !ok {
			seen[rec.EntityName] = struct{}{}
			entities = append(entities, rec.EntityName)
		}
		analyses = append(analyses, mediasync.EntityAnalysis{
			EntityName: rec.EntityName,
			Sentiment:  s,
			Context:    sanitize(rec.Excerpt),
			Tone:       s.Tone(),
		})
	}

	duration, frames := estimateDuration(item.Assets)
	marks := distributeMarks(duration, frames, analyses, sentiment)

	channelID := item.ChannelID
	if channelID == "" {
		channelID = first.ChannelID
	}
	published := item.PublishedAt
	if published.IsZero() {
		published = first.CreatedAt
	}

	return mediasync.FeedEntry{
		ActivationID: in.ActivationID,
		Title:        title,
		Summary:      summary,
		Content:      content,
		Source:       in.Source,
		SourceType:   in.SourceType,
		Sentiment:    sentiment,
		RiskScore:    risk,
		URL:          url,
		Keywords:     matchKeywords(in.Keywords, title+" "+content),
		ExternalID:   g.ItemID,
		PublishedAt:  published,
		Metadata: mediasync.ClassificationMetadata{
			Assets:           item.Assets,
			Frames:           frames,
			DetectedEntities: entities,
			EntityAnalyses:   analyses,
			TimelineMarks:    marks,
			PostID:           g.ItemID,
			MentionID:        first.MentionID,
			ChannelID:        channelID,
		},
	}
}

// IsSyntheticURL reports whether a URL was synthesized by Merge rather than
// returned by a provider.
func IsSyntheticURL(url string) bool {
	return strings.HasPrefix(url, SyntheticURLPrefix)
}

func firstNonEmpty(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Cut on a rune boundary so multi-byte text isn't split mid-character.
	cut := max
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

// matchKeywords returns the monitored keywords that appear in the merged
// text, case-insensitively. Used downstream for feed filtering.
func matchKeywords(keywords []string, text string) []string {
	if len(keywords) == 0 {
		return nil
	}
	lower := strings.ToLower(text)
	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
