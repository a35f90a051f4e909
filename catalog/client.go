package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"ytstats/internal/retry"
)

const pageSize = 50

// APICatalog implements Catalog using YouTube Data API v3. Every call is
// throttled through a shared token bucket and retried with exponential
// backoff; not-found conditions are permanent and never retried.
type APICatalog struct {
	service *youtube.Service
	limiter *rate.Limiter
	retry   retry.Config
	// minSeconds is the shortest upload kept; anything under it is treated
	// as a short-form clip and dropped before mapping.
	minSeconds int
	log        zerolog.Logger
}

// Options tunes an APICatalog beyond its defaults.
type Options struct {
	// RequestsPerSecond throttles API calls. Defaults to 2.5.
	RequestsPerSecond float64
	// MinDurationSeconds filters uploads shorter than this. Defaults to 120.
	MinDurationSeconds int
	// Retry overrides the backoff configuration.
	Retry *retry.Config
}

// NewAPICatalog creates a catalog backed by YouTube Data API v3.
func NewAPICatalog(ctx context.Context, apiKey string, opts Options, log zerolog.Logger) (*APICatalog, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}

	service, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 2.5
	}
	minSeconds := opts.MinDurationSeconds
	if minSeconds == 0 {
		minSeconds = 120
	}
	cfg := retry.DefaultConfig()
	if opts.Retry != nil {
		cfg = *opts.Retry
	}

	return &APICatalog{
		service:    service,
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		retry:      cfg,
		minSeconds: minSeconds,
		log:        log,
	}, nil
}

// ResolveChannelID tries, in order, the configured remote ID, a lookup by
// legacy username, and a search by display name. It fails softly with
// ErrChannelNotFound; each attempt is logged.
func (c *APICatalog) ResolveChannelID(ctx context.Context, ref ChannelRef) (string, error) {
	if ref.RemoteID != "" {
		c.log.Debug().Str("channel", ref.Slug).Str("remote_id", ref.RemoteID).
			Msg("using configured remote id")
		return ref.RemoteID, nil
	}

	if id, err := c.lookupByUsername(ctx, ref.Slug); err == nil {
		c.log.Debug().Str("channel", ref.Slug).Str("remote_id", id).
			Msg("resolved by username")
		return id, nil
	} else {
		c.log.Debug().Err(err).Str("channel", ref.Slug).Msg("username lookup failed")
	}

	if id, err := c.searchByName(ctx, ref.Name); err == nil {
		c.log.Debug().Str("channel", ref.Slug).Str("remote_id", id).
			Msg("resolved by display name search")
		return id, nil
	} else {
		c.log.Debug().Err(err).Str("channel", ref.Slug).Msg("display name search failed")
	}

	return "", ErrChannelNotFound
}

func (c *APICatalog) lookupByUsername(ctx context.Context, username string) (string, error) {
	var id string
	err := c.call(ctx, func(ctx context.Context) error {
		resp, err := c.service.Channels.List([]string{"id"}).
			ForUsername(username).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 {
			return ErrChannelNotFound
		}
		id = resp.Items[0].Id
		return nil
	})
	return id, err
}

func (c *APICatalog) searchByName(ctx context.Context, name string) (string, error) {
	var id string
	err := c.call(ctx, func(ctx context.Context) error {
		resp, err := c.service.Search.List([]string{"id"}).
			Q(name).
			Type("channel").
			MaxResults(1).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 || resp.Items[0].Id == nil {
			return ErrChannelNotFound
		}
		id = resp.Items[0].Id.ChannelId
		return nil
	})
	return id, err
}

// ListUploads pages through the channel's uploads playlist, batch-fetching
// full detail (snippet, contentDetails, statistics) for each page in one
// request, and stops early once limit items have been collected. A failure
// on any page aborts the whole listing.
func (c *APICatalog) ListUploads(ctx context.Context, remoteID string, limit int) ([]Video, error) {
	playlistID, err := c.uploadsPlaylistID(ctx, remoteID)
	if err != nil {
		return nil, &FetchError{Op: "list", Channel: remoteID, Err: err}
	}

	var videos []Video
	pageToken := ""
	for {
		ids, nextToken, err := c.uploadsPage(ctx, playlistID, pageToken)
		if err != nil {
			return nil, &FetchError{Op: "list", Channel: remoteID, Err: err}
		}

		details, err := c.videoDetails(ctx, ids)
		if err != nil {
			return nil, &FetchError{Op: "list", Channel: remoteID, Err: err}
		}

		for _, v := range details {
			if isShort(v, c.minSeconds) {
				continue
			}
			videos = append(videos, v)
			if limit > 0 && len(videos) >= limit {
				// Cooperative early stop: remaining pages are never fetched.
				return videos, nil
			}
		}

		if nextToken == "" {
			return videos, nil
		}
		pageToken = nextToken
	}
}

func (c *APICatalog) uploadsPlaylistID(ctx context.Context, remoteID string) (string, error) {
	var playlistID string
	err := c.call(ctx, func(ctx context.Context) error {
		resp, err := c.service.Channels.List([]string{"contentDetails"}).
			Id(remoteID).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 || resp.Items[0].ContentDetails == nil {
			return ErrChannelNotFound
		}
		playlistID = resp.Items[0].ContentDetails.RelatedPlaylists.Uploads
		return nil
	})
	return playlistID, err
}

func (c *APICatalog) uploadsPage(ctx context.Context, playlistID, pageToken string) ([]string, string, error) {
	var (
		ids       []string
		nextToken string
	)
	err := c.call(ctx, func(ctx context.Context) error {
		resp, err := c.service.PlaylistItems.List([]string{"contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(pageSize).
			PageToken(pageToken).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, item := range resp.Items {
			if item.ContentDetails != nil {
				ids = append(ids, item.ContentDetails.VideoId)
			}
		}
		nextToken = resp.NextPageToken
		return nil
	})
	return ids, nextToken, err
}

func (c *APICatalog) videoDetails(ctx context.Context, ids []string) ([]Video, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var videos []Video
	err := c.call(ctx, func(ctx context.Context) error {
		resp, err := c.service.Videos.List([]string{"snippet", "contentDetails", "statistics"}).
			Id(ids...).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		videos = videos[:0]
		for _, item := range resp.Items {
			videos = append(videos, newVideo(item))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return videos, nil
}

// FetchChannelStatistics is best-effort: any failure is logged and yields
// an empty result instead of propagating.
func (c *APICatalog) FetchChannelStatistics(ctx context.Context, remoteID string) (*ChannelStatistics, error) {
	var stats *ChannelStatistics
	err := c.call(ctx, func(ctx context.Context) error {
		resp, err := c.service.Channels.List([]string{"statistics"}).
			Id(remoteID).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if len(resp.Items) == 0 || resp.Items[0].Statistics == nil {
			return ErrChannelNotFound
		}
		s := resp.Items[0].Statistics
		stats = &ChannelStatistics{
			Subscribers: int64(s.SubscriberCount),
			TotalViews:  int64(s.ViewCount),
			TotalVideos: int64(s.VideoCount),
		}
		return nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("remote_id", remoteID).
			Msg("channel statistics fetch failed")
		return nil, nil
	}
	return stats, nil
}

// call throttles and retries one API request.
func (c *APICatalog) call(ctx context.Context, fn func(context.Context) error) error {
	return retry.Do(ctx, c.retry, apiErrorClassifier, func(ctx context.Context) error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		return fn(ctx)
	})
}

// apiErrorClassifier determines if an API error is retryable.
func apiErrorClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrChannelNotFound) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	// Rate limit errors are retryable.
	if strings.Contains(err.Error(), "quotaExceeded") || strings.Contains(err.Error(), "rateLimitExceeded") {
		return true
	}
	// Default to retryable for unknown errors.
	return true
}

var _ Catalog = (*APICatalog)(nil)
