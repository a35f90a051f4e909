// Package catalog provides read-only access to the YouTube Data API for
// channel resolution, upload listing, and channel statistics.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for catalog operations.
var (
	// ErrChannelNotFound indicates no remote channel matched any lookup.
	ErrChannelNotFound = errors.New("catalog: channel not found")
	// ErrRateLimited indicates the remote API rejected the request for quota.
	ErrRateLimited = errors.New("catalog: rate limited")
)

// FetchError wraps a network or parse failure against the remote API.
// Use errors.As() to extract the failing operation and channel.
type FetchError struct {
	// Op is the remote operation that failed ("resolve", "list", "stats").
	Op string
	// Channel identifies the channel being fetched.
	Channel string
	// Err is the underlying error.
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("catalog: %s %s: %v", e.Op, e.Channel, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ChannelRef identifies a channel to the catalog. RemoteID may be empty,
// in which case the catalog falls back to username lookup and then to
// search by display name.
type ChannelRef struct {
	Slug     string
	Name     string
	RemoteID string
}

// Video is one long-form upload, normalized from the remote payload.
// Counters default to 0 when absent from the source.
type Video struct {
	ID          string
	Title       string
	Description string
	Published   time.Time
	// Seconds is the parsed duration; Duration is the display form.
	Seconds  int
	Duration string
	// Thumbnail prefers the high resolution image, falling back to default.
	Thumbnail string
	Views     int64
	Likes     int64
	Comments  int64
}

// WatchURL returns the canonical watch URL for the video.
func (v Video) WatchURL() string {
	return "https://www.youtube.com/watch?v=" + v.ID
}

// ChannelStatistics is the remote-reported aggregate for a channel.
type ChannelStatistics struct {
	Subscribers int64
	TotalViews  int64
	TotalVideos int64
}

// Catalog is the read-only surface the syncer consumes. Implementations
// never mutate stored state.
type Catalog interface {
	// ResolveChannelID finds the remote channel ID for ref, trying the
	// configured ID, then username lookup, then search by display name.
	// It returns ErrChannelNotFound when every attempt fails.
	ResolveChannelID(ctx context.Context, ref ChannelRef) (string, error)

	// ListUploads pages through a channel's uploads, batch-fetching full
	// detail for each page, and returns up to limit long-form videos
	// (0 means no limit). Short-form clips are filtered out. A failure on
	// any page aborts the whole listing.
	ListUploads(ctx context.Context, remoteID string, limit int) ([]Video, error)

	// FetchChannelStatistics is a best-effort single request; failures
	// yield (nil, nil) after logging rather than propagating.
	FetchChannelStatistics(ctx context.Context, remoteID string) (*ChannelStatistics, error)
}
