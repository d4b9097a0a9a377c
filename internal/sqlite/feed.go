package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"modernc.org/sqlite"

	"github.com/radarhq/mediasync/internal/mediasync"
)

const entryNamespace = "-fent"

// feedEntryRow is the storage shape of a feed entry; keywords and the
// classification metadata ride along as JSON text columns.
type feedEntryRow struct {
	ID           string     `db:"id"`
	ActivationID string     `db:"activation_id"`
	Title        string     `db:"title"`
	Summary      string     `db:"summary"`
	Content      string     `db:"content"`
	Source       string     `db:"source"`
	SourceType   string     `db:"source_type"`
	Sentiment    string     `db:"sentiment"`
	RiskScore    int        `db:"risk_score"`
	URL          string     `db:"url"`
	Keywords     string     `db:"keywords"`
	ExternalID   string     `db:"external_id"`
	Metadata     string     `db:"metadata"`
	PublishedAt  *time.Time `db:"published_at"`
	CreatedAt    time.Time  `db:"created_at"`
}

func (r Repo) Insert(ctx context.Context, entry mediasync.FeedEntry) error {
	keywords, err := json.Marshal(sliceOrEmpty(entry.Keywords))
	if err != nil {
		return fmt.Errorf("error marshaling keywords: %s", err)
	}
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("error marshaling metadata: %s", err)
	}

	row := feedEntryRow{
		ID:           fmt.Sprintf("%s%s", uuid.NewString(), entryNamespace),
		ActivationID: entry.ActivationID,
		Title:        entry.Title,
		Summary:      entry.Summary,
		Content:      entry.Content,
		Source:       entry.Source,
		SourceType:   string(entry.SourceType),
		Sentiment:    string(entry.Sentiment),
		RiskScore:    entry.RiskScore,
		URL:          entry.URL,
		Keywords:     string(keywords),
		ExternalID:   entry.ExternalID,
		Metadata:     string(metadata),
		PublishedAt:  nullTime(entry.PublishedAt),
	}

	const q = `INSERT INTO feed_entries (id, activation_id, title, summary, content, source, source_type, sentiment, risk_score, url, keywords, external_id, metadata, published_at)
	VALUES (:id, :activation_id, :title, :summary, :content, :source, :source_type, :sentiment, :risk_score, :url, :keywords, :external_id, :metadata, :published_at);`
	_, err = r.db.NamedExecContext(ctx, q, row)
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == 2067 {
		return fmt.Errorf("feed entry already exists: %w", mediasync.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("error inserting feed entry: %s", err)
	}

	return nil
}

func (r Repo) BatchExistsByExternalID(ctx context.Context, activationID string, ids []string) (map[string]struct{}, error) {
	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}

	query, args, err := sq.Select("external_id").From("feed_entries").
		Where(sq.Eq{"activation_id": activationID, "external_id": ids}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var found []string
	if err := r.db.SelectContext(ctx, &found, query, args...); err != nil {
		return nil, fmt.Errorf("error checking external ids: %s", err)
	}

	existing := make(map[string]struct{}, len(found))
	for _, id := range found {
		existing[id] = struct{}{}
	}

	return existing, nil
}

func (r Repo) ExistsByURL(ctx context.Context, url string) (bool, error) {
	const q = `SELECT COUNT(*) FROM feed_entries WHERE url = ?;`

	var count int
	if err := r.db.GetContext(ctx, &count, q, url); err != nil {
		return false, fmt.Errorf("error checking url: %s", err)
	}

	return count > 0, nil
}

func (r Repo) ExistsByTitle(ctx context.Context, activationID, title string) (bool, error) {
	const q = `SELECT COUNT(*) FROM feed_entries WHERE activation_id = ? AND title = ?;`

	var count int
	if err := r.db.GetContext(ctx, &count, q, activationID, title); err != nil {
		return false, fmt.Errorf("error checking title: %s", err)
	}

	return count > 0, nil
}

// EntriesByActivation retrieves an activation's feed, newest first.
func (r Repo) EntriesByActivation(ctx context.Context, activationID string, limit int) ([]mediasync.FeedEntry, error) {
	q := sq.Select("*").From("feed_entries").
		Where(sq.Eq{"activation_id": activationID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("error constructing sql: %s", err)
	}

	var rows []feedEntryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("error selecting feed entries: %s", err)
	}

	entries := make([]mediasync.FeedEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toEntry()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func (row feedEntryRow) toEntry() (mediasync.FeedEntry, error) {
	entry := mediasync.FeedEntry{
		ID:           row.ID,
		ActivationID: row.ActivationID,
		Title:        row.Title,
		Summary:      row.Summary,
		Content:      row.Content,
		Source:       row.Source,
		SourceType:   mediasync.SourceType(row.SourceType),
		Sentiment:    mediasync.Sentiment(row.Sentiment),
		RiskScore:    row.RiskScore,
		URL:          row.URL,
		ExternalID:   row.ExternalID,
		CreatedAt:    row.CreatedAt,
	}
	if row.PublishedAt != nil {
		entry.PublishedAt = *row.PublishedAt
	}
	if err := json.Unmarshal([]byte(row.Keywords), &entry.Keywords); err != nil {
		return mediasync.FeedEntry{}, fmt.Errorf("error unmarshaling keywords: %s", err)
	}
	if err := json.Unmarshal([]byte(row.Metadata), &entry.Metadata); err != nil {
		return mediasync.FeedEntry{}, fmt.Errorf("error unmarshaling metadata: %s", err)
	}

	return entry, nil
}

func sliceOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
