// Package dedup decides whether a candidate feed entry is new. Three
// ordered checks back an in-cycle safety net: provider post id against a
// preloaded batch, exact URL globally, exact title within the activation.
// The layering tolerates providers whose ids or URLs don't survive between
// fetches, and makes concurrent writers of the feed table safe without
// locks.
package dedup

import (
	"context"
	"fmt"
	"strings"

	"github.com/radarhq/mediasync/internal/ingest"
	"github.com/radarhq/mediasync/internal/mediasync"
)

// Number of external ids checked per round-trip when preloading. Bounds the
// IN clause size.
const idChunkSize = 50

// Minimum length for a URL to count as a real dedup signal.
const minRealURLLen = 11

type Verdict string

const (
	VerdictNew            Verdict = "new"
	VerdictSeenThisCycle  Verdict = "seen_this_cycle"
	VerdictDuplicateID    Verdict = "duplicate_id"
	VerdictDuplicateURL   Verdict = "duplicate_url"
	VerdictDuplicateTitle Verdict = "duplicate_title"
)

// Gate evaluates candidates for one activation over one orchestrator cycle.
// Not safe for concurrent use; the orchestrator runs keys sequentially.
type Gate struct {
	store        mediasync.FeedStore
	activationID string

	existing map[string]struct{} // external ids already in the feed
	seen     map[string]struct{} // item ids processed earlier this cycle
}

func NewGate(store mediasync.FeedStore, activationID string) *Gate {
	return &Gate{
		store:        store,
		activationID: activationID,
		existing:     make(map[string]struct{}),
		seen:         make(map[string]struct{}),
	}
}

// Preload fetches which of the given external ids already exist in the
// activation's feed, in chunks, so per-candidate id checks are O(1) lookups
// instead of round-trips.
func (g *Gate) Preload(ctx context.Context, ids []string) error {
	for start := 0; start < len(ids); start += idChunkSize {
		end := min(start+idChunkSize, len(ids))
		found, err := g.store.BatchExistsByExternalID(ctx, g.activationID, ids[start:end])
		if err != nil {
			return fmt.Errorf("error preloading external ids: %w", err)
		}
		for id := range found {
			g.existing[id] = struct{}{}
		}
	}
	return nil
}

// Check runs the candidate through the dedup layers, short-circuiting on the
// first hit. Whatever the verdict, the candidate's item id is remembered so
// a pagination overlap later in the same cycle can't re-insert it.
func (g *Gate) Check(ctx context.Context, entry mediasync.FeedEntry) (Verdict, error) {
	id := entry.ExternalID
	if _, ok := g.seen[id]; ok {
		return VerdictSeenThisCycle, nil
	}
	g.seen[id] = struct{}{}

	if _, ok := g.existing[id]; ok {
		return VerdictDuplicateID, nil
	}

	// A real URL identifies content globally, so this check is not scoped
	// to the activation. Synthetic placeholders carry no signal.
	if len(entry.URL) >= minRealURLLen && !ingest.IsSyntheticURL(entry.URL) {
		exists, err := g.store.ExistsByURL(ctx, entry.URL)
		if err != nil {
			return "", fmt.Errorf("error checking url: %w", err)
		}
		if exists {
			return VerdictDuplicateURL, nil
		}
	}

	if usableTitle(entry.Title) {
		exists, err := g.store.ExistsByTitle(ctx, g.activationID, entry.Title)
		if err != nil {
			return "", fmt.Errorf("error checking title: %w", err)
		}
		if exists {
			return VerdictDuplicateTitle, nil
		}
	}

	return VerdictNew, nil
}

func usableTitle(title string) bool {
	switch strings.TrimSpace(title) {
	case "", "Sem título", "Sem titulo":
		return false
	}
	return true
}
