package storage

import "time"

// Channel represents a tracked YouTube channel.
// Channels come from operator configuration and are upserted by slug on
// every sync run; they are never deleted by this system.
type Channel struct {
	// Slug is the internal unique key.
	Slug string `json:"slug"`
	// Name is the display name of the channel.
	Name string `json:"name"`
	// RemoteID is the YouTube channel ID. Empty until resolved.
	RemoteID string `json:"remote_id,omitempty"`
	// Visible is a tri-state visibility flag. Nil means unknown.
	Visible *bool `json:"visible,omitempty"`
	// CreatedAt is when this channel was first stored.
	CreatedAt time.Time `json:"created_at"`
}

// MediaItem represents one long-form video belonging to a channel.
// Descriptive fields are immutable after creation; only the engagement
// counters (Views, Likes, Comments) change on later syncs.
type MediaItem struct {
	// ID is the remote-assigned video ID, globally unique.
	ID string `json:"id"`
	// Title is the video title.
	Title string `json:"title"`
	// Date is the publish date truncated to its calendar day.
	Date time.Time `json:"date"`
	// ContentType classifies the item ("video").
	ContentType string `json:"content_type"`
	// Duration is the human display form, e.g. "1:02:03" or "5:09".
	Duration string `json:"duration"`
	// Description is the video description.
	Description string `json:"description,omitempty"`
	// Image is the thumbnail URL, preferring high resolution.
	Image string `json:"image,omitempty"`
	// ChannelSlug references Channel.Slug.
	ChannelSlug string `json:"channel_slug"`
	// RemoteURL is the canonical watch URL.
	RemoteURL string `json:"remote_url"`
	// Engagement counters, defaulted to 0 when absent from the source.
	Views    int64 `json:"views"`
	Likes    int64 `json:"likes"`
	Comments int64 `json:"comments"`
	// CreatedAt is when this item was first stored.
	CreatedAt time.Time `json:"created_at"`
}

// StatisticsSnapshot is one calendar-day statistics row for a channel,
// keyed by (ChannelSlug, Date). Prior days are immutable once written.
type StatisticsSnapshot struct {
	// ID is an internal unique identifier (UUID).
	ID string `json:"id"`
	// ChannelSlug references Channel.Slug.
	ChannelSlug string `json:"channel_slug"`
	// Date is the calendar day this snapshot covers.
	Date time.Time `json:"date"`
	// SubscriberCount and TotalChannelViews come from the remote source.
	SubscriberCount   int64 `json:"subscriber_count"`
	TotalChannelViews int64 `json:"total_channel_views"`
	// TotalVideos is the video count as reported by the remote source,
	// which may differ from how many items this system stores.
	TotalVideos int64 `json:"total_videos"`
	// CalculatedTotalLikes and CalculatedTotalComments are derived by
	// summing the currently stored media items for the channel.
	CalculatedTotalLikes    int64 `json:"calculated_total_likes"`
	CalculatedTotalComments int64 `json:"calculated_total_comments"`
	// CreatedAt is when this snapshot row was written.
	CreatedAt time.Time `json:"created_at"`
}

// RemoteChannelStats carries the remote-reported channel statistics that
// feed a snapshot upsert.
type RemoteChannelStats struct {
	Subscribers int64
	TotalViews  int64
	TotalVideos int64
}

// SyncOutcome reports what a media item sync did.
type SyncOutcome struct {
	// Inserted is the count of newly stored items.
	Inserted int
	// Updated is the count of existing items whose counters were refreshed.
	Updated int
}
