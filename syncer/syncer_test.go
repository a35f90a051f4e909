package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ytstats/catalog"
	"ytstats/config"
	"ytstats/storage"
)

// fakeCatalog implements catalog.Catalog for tests.
type fakeCatalog struct {
	resolved map[string]string          // slug -> remote id
	uploads  map[string][]catalog.Video // remote id -> videos
	stats    map[string]*catalog.ChannelStatistics

	listErr  map[string]error // remote id -> forced listing error
	statsErr map[string]bool  // remote id -> force best-effort failure
}

func (f *fakeCatalog) ResolveChannelID(ctx context.Context, ref catalog.ChannelRef) (string, error) {
	if ref.RemoteID != "" {
		return ref.RemoteID, nil
	}
	if id, ok := f.resolved[ref.Slug]; ok {
		return id, nil
	}
	return "", catalog.ErrChannelNotFound
}

func (f *fakeCatalog) ListUploads(ctx context.Context, remoteID string, limit int) ([]catalog.Video, error) {
	if err := f.listErr[remoteID]; err != nil {
		return nil, err
	}
	videos := f.uploads[remoteID]
	if limit > 0 && len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

func (f *fakeCatalog) FetchChannelStatistics(ctx context.Context, remoteID string) (*catalog.ChannelStatistics, error) {
	if f.statsErr[remoteID] {
		return nil, nil // best-effort: failures surface as empty results
	}
	return f.stats[remoteID], nil
}

func video(id string, likes int64) catalog.Video {
	return catalog.Video{
		ID:        id,
		Title:     "Episode " + id,
		Published: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC),
		Seconds:   309,
		Duration:  "5:09",
		Likes:     likes,
	}
}

func TestRunSyncsChannel(t *testing.T) {
	cat := &fakeCatalog{
		resolved: map[string]string{"alpha": "UCalpha"},
		uploads: map[string][]catalog.Video{
			"UCalpha": {video("aaaaaaaaaaa", 3), video("bbbbbbbbbbb", 7)},
		},
		stats: map[string]*catalog.ChannelStatistics{
			"UCalpha": {Subscribers: 100, TotalViews: 5000, TotalVideos: 2},
		},
	}
	store := storage.NewMemoryStore()
	ctx := context.Background()

	results := New(cat, store, 0, zerolog.Nop()).Run(ctx, []config.ChannelConfig{
		{Slug: "alpha", Name: "Alpha"},
	})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.Err != nil {
		t.Fatalf("result error = %v", r.Err)
	}
	if r.Inserted != 2 || r.Updated != 0 {
		t.Errorf("inserted/updated = %d/%d, want 2/0", r.Inserted, r.Updated)
	}
	if !r.StatsSaved {
		t.Error("StatsSaved = false, want true")
	}

	// The resolved remote ID must be persisted on the channel row.
	channels, _ := store.Channels(ctx)
	if len(channels) != 1 || channels[0].RemoteID != "UCalpha" {
		t.Errorf("stored channel = %+v, want RemoteID UCalpha", channels[0])
	}

	history, _ := store.StatisticsHistory(ctx, "alpha", 30)
	if len(history) != 1 {
		t.Fatalf("got %d snapshots, want 1", len(history))
	}
	if history[0].CalculatedTotalLikes != 10 {
		t.Errorf("CalculatedTotalLikes = %d, want 10", history[0].CalculatedTotalLikes)
	}
}

func TestRunSecondSyncUpdatesCounters(t *testing.T) {
	cat := &fakeCatalog{
		uploads: map[string][]catalog.Video{
			"UCalpha": {video("aaaaaaaaaaa", 3)},
		},
	}
	store := storage.NewMemoryStore()
	ctx := context.Background()
	channels := []config.ChannelConfig{{Slug: "alpha", Name: "Alpha", RemoteID: "UCalpha"}}
	s := New(cat, store, 0, zerolog.Nop())

	s.Run(ctx, channels)
	cat.uploads["UCalpha"] = []catalog.Video{video("aaaaaaaaaaa", 9), video("bbbbbbbbbbb", 1)}
	results := s.Run(ctx, channels)

	if results[0].Inserted != 1 || results[0].Updated != 1 {
		t.Errorf("inserted/updated = %d/%d, want 1/1", results[0].Inserted, results[0].Updated)
	}
	items, _ := store.MediaItems(ctx, "alpha")
	for _, it := range items {
		if it.ID == "aaaaaaaaaaa" && it.Likes != 9 {
			t.Errorf("Likes = %d, want refreshed to 9", it.Likes)
		}
	}
}

func TestRunIsolatesChannelFailures(t *testing.T) {
	cat := &fakeCatalog{
		resolved: map[string]string{"good": "UCgood"}, // "bad" never resolves
		uploads: map[string][]catalog.Video{
			"UCgood": {video("aaaaaaaaaaa", 1)},
		},
	}
	store := storage.NewMemoryStore()

	results := New(cat, store, 0, zerolog.Nop()).Run(context.Background(), []config.ChannelConfig{
		{Slug: "bad", Name: "Bad"},
		{Slug: "good", Name: "Good"},
	})

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !errors.Is(results[0].Err, catalog.ErrChannelNotFound) {
		t.Errorf("bad channel error = %v, want ErrChannelNotFound", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("good channel error = %v, failure must not leak across channels", results[1].Err)
	}
	if results[1].Inserted != 1 {
		t.Errorf("good channel inserted = %d, want 1", results[1].Inserted)
	}
}

func TestRunListingFailureAbortsChannel(t *testing.T) {
	fetchErr := &catalog.FetchError{Op: "list", Channel: "UCalpha", Err: errors.New("boom")}
	cat := &fakeCatalog{
		listErr: map[string]error{"UCalpha": fetchErr},
	}
	store := storage.NewMemoryStore()

	results := New(cat, store, 0, zerolog.Nop()).Run(context.Background(), []config.ChannelConfig{
		{Slug: "alpha", Name: "Alpha", RemoteID: "UCalpha"},
	})

	var fe *catalog.FetchError
	if !errors.As(results[0].Err, &fe) {
		t.Fatalf("error = %v, want *FetchError", results[0].Err)
	}
	items, _ := store.MediaItems(context.Background(), "alpha")
	if len(items) != 0 {
		t.Errorf("got %d items, want none after aborted listing", len(items))
	}
}

func TestRunStatsFailureDoesNotFailChannel(t *testing.T) {
	cat := &fakeCatalog{
		uploads: map[string][]catalog.Video{
			"UCalpha": {video("aaaaaaaaaaa", 1)},
		},
		statsErr: map[string]bool{"UCalpha": true},
	}
	store := storage.NewMemoryStore()

	results := New(cat, store, 0, zerolog.Nop()).Run(context.Background(), []config.ChannelConfig{
		{Slug: "alpha", Name: "Alpha", RemoteID: "UCalpha"},
	})

	if results[0].Err != nil {
		t.Errorf("error = %v, stats failure must not fail the channel", results[0].Err)
	}
	if results[0].StatsSaved {
		t.Error("StatsSaved = true, want false")
	}
	if results[0].Inserted != 1 {
		t.Errorf("inserted = %d, want 1", results[0].Inserted)
	}
}

func TestRunRespectsMaxVideos(t *testing.T) {
	cat := &fakeCatalog{
		uploads: map[string][]catalog.Video{
			"UCalpha": {video("aaaaaaaaaaa", 1), video("bbbbbbbbbbb", 1), video("ccccccccccc", 1)},
		},
	}
	store := storage.NewMemoryStore()

	results := New(cat, store, 2, zerolog.Nop()).Run(context.Background(), []config.ChannelConfig{
		{Slug: "alpha", Name: "Alpha", RemoteID: "UCalpha"},
	})

	if results[0].Inserted != 2 {
		t.Errorf("inserted = %d, want capped at 2", results[0].Inserted)
	}
}

func TestRunSurfacesPartialUpdateFailure(t *testing.T) {
	cat := &fakeCatalog{
		uploads: map[string][]catalog.Video{
			"UCalpha": {video("aaaaaaaaaaa", 1), video("bbbbbbbbbbb", 1)},
		},
	}
	store := storage.NewMemoryStore()
	ctx := context.Background()
	channels := []config.ChannelConfig{{Slug: "alpha", Name: "Alpha", RemoteID: "UCalpha"}}
	s := New(cat, store, 0, zerolog.Nop())

	s.Run(ctx, channels)
	store.FailUpdateIDs = map[string]bool{"aaaaaaaaaaa": true}
	results := s.Run(ctx, channels)

	// Partial update failures are logged, not fatal for the channel.
	if results[0].Err != nil {
		t.Errorf("error = %v, partial update failure must not fail the channel", results[0].Err)
	}
	if results[0].Updated != 1 {
		t.Errorf("updated = %d, want the surviving update counted", results[0].Updated)
	}
}
