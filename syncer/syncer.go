// Package syncer orchestrates the per-channel fetch, map, and persist
// sequence of a sync run.
package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"ytstats/catalog"
	"ytstats/config"
	"ytstats/storage"
)

// Syncer runs the write path: Remote Catalog Client -> Record Mapper ->
// Persistence Gateway. Channels are processed strictly sequentially; one
// channel's failure never aborts the run.
type Syncer struct {
	catalog   catalog.Catalog
	store     storage.Store
	log       zerolog.Logger
	maxVideos int
}

// New creates a syncer. maxVideos caps uploads fetched per channel
// (0 means no cap).
func New(cat catalog.Catalog, store storage.Store, maxVideos int, log zerolog.Logger) *Syncer {
	return &Syncer{
		catalog:   cat,
		store:     store,
		log:       log,
		maxVideos: maxVideos,
	}
}

// ChannelResult is the outcome of one channel's processing.
type ChannelResult struct {
	// Slug identifies the channel.
	Slug string
	// Inserted and Updated count persisted media items.
	Inserted int
	// Updated counts refreshed engagement counters.
	Updated int
	// StatsSaved reports whether a statistics snapshot was written.
	StatsSaved bool
	// Err is the failure that stopped this channel's processing, if any.
	Err error
}

// Run processes every configured channel in order and returns one result
// per channel. Partial failures are reflected in the results and logged;
// they do not abort the run.
func (s *Syncer) Run(ctx context.Context, channels []config.ChannelConfig) []ChannelResult {
	results := make([]ChannelResult, 0, len(channels))
	for _, ch := range channels {
		result := s.syncChannel(ctx, ch)
		if result.Err != nil {
			s.log.Error().Err(result.Err).Str("channel", ch.Slug).Msg("channel sync failed")
		} else {
			s.log.Info().Str("channel", ch.Slug).
				Int("inserted", result.Inserted).
				Int("updated", result.Updated).
				Bool("stats_saved", result.StatsSaved).
				Msg("channel synced")
		}
		results = append(results, result)
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.log.Info().Int("channels", len(results)).Int("failed", failed).Msg("sync run complete")
	return results
}

func (s *Syncer) syncChannel(ctx context.Context, ch config.ChannelConfig) ChannelResult {
	result := ChannelResult{Slug: ch.Slug}

	channel := &storage.Channel{
		Slug:     ch.Slug,
		Name:     ch.Name,
		RemoteID: ch.RemoteID,
		Visible:  ch.Visible,
	}
	if err := s.store.UpsertChannel(ctx, channel); err != nil {
		result.Err = err
		return result
	}

	remoteID, err := s.catalog.ResolveChannelID(ctx, catalog.ChannelRef{
		Slug:     ch.Slug,
		Name:     ch.Name,
		RemoteID: ch.RemoteID,
	})
	if err != nil {
		result.Err = err
		return result
	}
	if remoteID != ch.RemoteID {
		// Persist the resolved ID so later runs skip the lookup.
		channel.RemoteID = remoteID
		if err := s.store.UpsertChannel(ctx, channel); err != nil {
			result.Err = err
			return result
		}
	}

	videos, err := s.catalog.ListUploads(ctx, remoteID, s.maxVideos)
	if err != nil {
		result.Err = err
		return result
	}

	items := make([]*storage.MediaItem, 0, len(videos))
	for _, v := range videos {
		items = append(items, catalog.MapItem(v, ch.Slug))
	}

	outcome, err := s.store.SyncMediaItems(ctx, ch.Slug, items)
	if err != nil {
		var partial *storage.PartialSyncError
		if errors.As(err, &partial) {
			// Updates are independent writes; surface the partial failure
			// but keep the channel going.
			s.log.Warn().Str("channel", ch.Slug).Int("failed_updates", len(partial.Failed)).
				Msg("some counter updates failed")
		} else {
			result.Err = err
			return result
		}
	}
	if outcome != nil {
		result.Inserted = outcome.Inserted
		result.Updated = outcome.Updated
	}

	// Statistics are best-effort and independent of the media sync.
	s.snapshotStatistics(ctx, ch.Slug, remoteID, &result)
	return result
}

func (s *Syncer) snapshotStatistics(ctx context.Context, slug, remoteID string, result *ChannelResult) {
	stats, err := s.catalog.FetchChannelStatistics(ctx, remoteID)
	if err != nil || stats == nil {
		s.log.Warn().Err(err).Str("channel", slug).Msg("skipping statistics snapshot")
		return
	}

	_, err = s.store.UpsertChannelStatistics(ctx, slug, storage.RemoteChannelStats{
		Subscribers: stats.Subscribers,
		TotalViews:  stats.TotalViews,
		TotalVideos: stats.TotalVideos,
	}, time.Time{})
	if err != nil {
		s.log.Warn().Err(err).Str("channel", slug).Msg("statistics snapshot failed")
		return
	}
	result.StatsSaved = true
}
