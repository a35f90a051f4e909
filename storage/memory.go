package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used by tests and dry runs. It mirrors
// the PostgresStore semantics, including the non-atomic media item sync.
type MemoryStore struct {
	mu        sync.Mutex
	channels  map[string]*Channel
	items     map[string]*MediaItem
	snapshots map[string]*StatisticsSnapshot // keyed by slug + "|" + day

	// FailInsertFor aborts the bulk insert for the named channel, for
	// exercising the abort path in tests.
	FailInsertFor string
	// FailUpdateIDs makes counter updates for these item IDs fail.
	FailUpdateIDs map[string]bool
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		channels:  make(map[string]*Channel),
		items:     make(map[string]*MediaItem),
		snapshots: make(map[string]*StatisticsSnapshot),
	}
}

func (s *MemoryStore) UpsertChannel(ctx context.Context, channel *Channel) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.channels[channel.Slug]; ok {
		existing.Name = channel.Name
		if channel.RemoteID != "" {
			existing.RemoteID = channel.RemoteID
		}
		existing.Visible = channel.Visible
		return nil
	}

	stored := *channel
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.channels[channel.Slug] = &stored
	return nil
}

func (s *MemoryStore) Channels(ctx context.Context) ([]*Channel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	channels := make([]*Channel, 0, len(s.channels))
	for _, c := range s.channels {
		copied := *c
		channels = append(channels, &copied)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i].Slug < channels[j].Slug })
	return channels, nil
}

func (s *MemoryStore) SyncMediaItems(ctx context.Context, channelSlug string, items []*MediaItem) (*SyncOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]bool)
	for id, item := range s.items {
		if item.ChannelSlug == channelSlug {
			existing[id] = true
		}
	}

	inserts, updates := partitionItems(existing, items)
	outcome := &SyncOutcome{}

	var failed []ItemSyncError
	for _, item := range updates {
		if s.FailUpdateIDs[item.ID] {
			failed = append(failed, ItemSyncError{ItemID: item.ID, Err: ErrNotFound})
			continue
		}
		stored := s.items[item.ID]
		stored.Views = item.Views
		stored.Likes = item.Likes
		stored.Comments = item.Comments
		outcome.Updated++
	}

	if len(inserts) > 0 {
		if s.FailInsertFor == channelSlug {
			return nil, &StoreError{Op: "insert", Entity: "media_item", ID: channelSlug, Err: ErrNotFound}
		}
		for _, item := range inserts {
			stored := *item
			stored.ChannelSlug = channelSlug
			if stored.CreatedAt.IsZero() {
				stored.CreatedAt = time.Now().UTC()
			}
			s.items[item.ID] = &stored
		}
		outcome.Inserted = len(inserts)
	}

	if len(failed) > 0 {
		return outcome, &PartialSyncError{ChannelSlug: channelSlug, Failed: failed}
	}
	return outcome, nil
}

func (s *MemoryStore) MediaItems(ctx context.Context, channelSlug string) ([]*MediaItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []*MediaItem
	for _, item := range s.items {
		if item.ChannelSlug == channelSlug {
			copied := *item
			items = append(items, &copied)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.After(items[j].Date)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (s *MemoryStore) LatestMediaDate(ctx context.Context, channelSlug string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest time.Time
	found := false
	for _, item := range s.items {
		if item.ChannelSlug == channelSlug && item.Date.After(latest) {
			latest = item.Date
			found = true
		}
	}
	if !found {
		return time.Time{}, ErrNotFound
	}
	return latest, nil
}

func (s *MemoryStore) UpsertChannelStatistics(ctx context.Context, channelSlug string, stats RemoteChannelStats, day time.Time) (*StatisticsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day = normalizeDay(day)

	var totalLikes, totalComments int64
	for _, item := range s.items {
		if item.ChannelSlug == channelSlug {
			totalLikes += item.Likes
			totalComments += item.Comments
		}
	}

	key := channelSlug + "|" + day.Format("2006-01-02")
	snap, ok := s.snapshots[key]
	if !ok {
		snap = &StatisticsSnapshot{
			ID:          uuid.NewString(),
			ChannelSlug: channelSlug,
			Date:        day,
			CreatedAt:   time.Now().UTC(),
		}
		s.snapshots[key] = snap
	}
	snap.SubscriberCount = stats.Subscribers
	snap.TotalChannelViews = stats.TotalViews
	snap.TotalVideos = stats.TotalVideos
	snap.CalculatedTotalLikes = totalLikes
	snap.CalculatedTotalComments = totalComments

	copied := *snap
	return &copied, nil
}

func (s *MemoryStore) StatisticsHistory(ctx context.Context, channelSlug string, limitDays int) ([]*StatisticsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limitDays <= 0 {
		limitDays = 30
	}

	var snaps []*StatisticsSnapshot
	for _, snap := range s.snapshots {
		if snap.ChannelSlug == channelSlug {
			copied := *snap
			snaps = append(snaps, &copied)
		}
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Date.After(snaps[j].Date) })
	if len(snaps) > limitDays {
		snaps = snaps[:limitDays]
	}
	return snaps, nil
}

func (s *MemoryStore) Close() {}

var _ Store = (*MemoryStore)(nil)
