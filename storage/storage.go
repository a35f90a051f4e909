// Package storage provides persistence for channels, media items, and
// channel statistics snapshots.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound indicates the requested entity was not found.
var ErrNotFound = errors.New("storage: not found")

// StoreError wraps storage errors with operation and entity context.
// Use errors.As() to extract it:
//
//	var storErr *storage.StoreError
//	if errors.As(err, &storErr) {
//		fmt.Printf("failed to %s %s %s: %v\n", storErr.Op, storErr.Entity, storErr.ID, storErr.Err)
//	}
type StoreError struct {
	// Op is the operation that failed ("upsert", "select", "insert", "update").
	Op string
	// Entity is the entity type ("channel", "media_item", "statistics").
	Entity string
	// ID is the entity key if applicable.
	ID string
	// Err is the underlying error.
	Err error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("storage: %s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}
	return fmt.Sprintf("storage: %s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// ItemSyncError records one media item whose counter update failed.
type ItemSyncError struct {
	ItemID string
	Err    error
}

// PartialSyncError aggregates per-item update failures from a media sync.
// The sync is not atomic: other updates and the bulk insert may have
// applied even when some updates failed.
type PartialSyncError struct {
	ChannelSlug string
	Failed      []ItemSyncError
}

func (e *PartialSyncError) Error() string {
	ids := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		ids[i] = f.ItemID
	}
	return fmt.Sprintf("storage: %d of channel %s item updates failed: %s",
		len(e.Failed), e.ChannelSlug, strings.Join(ids, ", "))
}

// Store is the persistence interface for all sync, export, and verify
// operations. Implementations must be safe for concurrent use. No retry
// happens at this layer; callers decide.
type Store interface {
	// UpsertChannel writes a channel keyed by slug, idempotently. The
	// stored CreatedAt is preserved on conflict.
	UpsertChannel(ctx context.Context, channel *Channel) error
	// Channels retrieves all channel rows.
	Channels(ctx context.Context) ([]*Channel, error)

	// SyncMediaItems partitions the batch against the stored item IDs for
	// the channel: unseen IDs are bulk-inserted as full rows, existing IDs
	// get only their engagement counters overwritten. Counter updates fan
	// out concurrently; their failures are aggregated into a
	// *PartialSyncError. A bulk insert failure aborts the sync for the
	// channel even though updates may already have applied.
	SyncMediaItems(ctx context.Context, channelSlug string, items []*MediaItem) (*SyncOutcome, error)
	// MediaItems retrieves all items for a channel.
	MediaItems(ctx context.Context, channelSlug string) ([]*MediaItem, error)
	// LatestMediaDate returns the most recent publish date stored for a
	// channel, or ErrNotFound when the channel has no items. Callers may
	// use it to bound future remote fetches.
	LatestMediaDate(ctx context.Context, channelSlug string) (time.Time, error)

	// UpsertChannelStatistics writes one snapshot keyed by (channelSlug,
	// day), deriving the calculated totals by summing every currently
	// stored media item for the channel. A zero day defaults to today.
	UpsertChannelStatistics(ctx context.Context, channelSlug string, stats RemoteChannelStats, day time.Time) (*StatisticsSnapshot, error)
	// StatisticsHistory returns snapshots for a channel ordered by date
	// descending, capped at limitDays rows.
	StatisticsHistory(ctx context.Context, channelSlug string, limitDays int) ([]*StatisticsSnapshot, error)

	// Close releases any resources held by the store.
	Close()
}

// partitionItems splits a batch into inserts (IDs not yet stored) and
// updates (IDs already stored). Every item lands in exactly one set.
func partitionItems(existing map[string]bool, batch []*MediaItem) (inserts, updates []*MediaItem) {
	for _, item := range batch {
		if existing[item.ID] {
			updates = append(updates, item)
		} else {
			inserts = append(inserts, item)
		}
	}
	return inserts, updates
}

// normalizeDay truncates t to its calendar day in UTC, defaulting a zero
// time to the current day.
func normalizeDay(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now().UTC()
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
