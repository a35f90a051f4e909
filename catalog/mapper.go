package catalog

import (
	"time"

	"google.golang.org/api/youtube/v3"

	"ytstats/storage"
)

// newVideo normalizes a raw API video into a Video. Every remote field is
// treated as optional: counters default to 0, the thumbnail prefers high
// resolution over default, and an unparseable duration becomes 0 seconds.
func newVideo(item *youtube.Video) Video {
	v := Video{ID: item.Id}

	if item.Snippet != nil {
		v.Title = item.Snippet.Title
		v.Description = item.Snippet.Description
		v.Thumbnail = pickThumbnail(item.Snippet.Thumbnails)
		if t, err := time.Parse(time.RFC3339, item.Snippet.PublishedAt); err == nil {
			v.Published = t
		}
	}

	if item.ContentDetails != nil {
		v.Seconds = ParseDuration(item.ContentDetails.Duration)
	}
	v.Duration = FormatDuration(v.Seconds)

	if item.Statistics != nil {
		v.Views = int64(item.Statistics.ViewCount)
		v.Likes = int64(item.Statistics.LikeCount)
		v.Comments = int64(item.Statistics.CommentCount)
	}

	return v
}

// isShort reports whether a video is a short-form clip: strictly under the
// minimum duration. A video of exactly minSeconds is long-form.
func isShort(v Video, minSeconds int) bool {
	return v.Seconds < minSeconds
}

func pickThumbnail(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	if t.High != nil && t.High.Url != "" {
		return t.High.Url
	}
	if t.Default != nil && t.Default.Url != "" {
		return t.Default.Url
	}
	return ""
}

// MapItem converts a normalized video into the media item row shape for a
// channel. The publish timestamp is truncated to its calendar day.
func MapItem(v Video, channelSlug string) *storage.MediaItem {
	return &storage.MediaItem{
		ID:          v.ID,
		Title:       v.Title,
		Date:        truncateToDay(v.Published),
		ContentType: "video",
		Duration:    v.Duration,
		Description: v.Description,
		Image:       v.Thumbnail,
		ChannelSlug: channelSlug,
		RemoteURL:   v.WatchURL(),
		Views:       v.Views,
		Likes:       v.Likes,
		Comments:    v.Comments,
	}
}

func truncateToDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
