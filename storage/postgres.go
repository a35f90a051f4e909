package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const (
	connectRetries  = 5
	connectInterval = 2 * time.Second
)

// PostgresStore implements Store on top of a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgresStore connects to Postgres, ensures the schema exists, and
// returns a ready store.
func NewPostgresStore(ctx context.Context, databaseURL string, log zerolog.Logger) (*PostgresStore, error) {
	pool, err := newPool(ctx, databaseURL, log)
	if err != nil {
		return nil, err
	}

	s := &PostgresStore{pool: pool, log: log}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func newPool(ctx context.Context, databaseURL string, log zerolog.Logger) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= connectRetries; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, config)
		if err == nil {
			if pingErr := pool.Ping(ctx); pingErr == nil {
				log.Info().Msg("database connected")
				return pool, nil
			} else {
				pool.Close()
				err = pingErr
			}
		}

		log.Warn().Err(err).Int("attempt", attempt).Int("max", connectRetries).
			Msg("database connection failed")
		if attempt < connectRetries {
			select {
			case <-time.After(connectInterval):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	return nil, fmt.Errorf("database connection failed after %d attempts: %w", connectRetries, err)
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS channels (
			slug       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			remote_id  TEXT,
			visible    BOOLEAN,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS media_items (
			id           TEXT PRIMARY KEY,
			title        TEXT NOT NULL,
			date         DATE NOT NULL,
			content_type TEXT NOT NULL,
			duration     TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			image        TEXT NOT NULL DEFAULT '',
			channel_slug TEXT NOT NULL REFERENCES channels(slug),
			remote_url   TEXT NOT NULL,
			views        BIGINT NOT NULL DEFAULT 0,
			likes        BIGINT NOT NULL DEFAULT 0,
			comments     BIGINT NOT NULL DEFAULT 0,
			created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS channel_statistics (
			id                        TEXT PRIMARY KEY,
			channel_slug              TEXT NOT NULL REFERENCES channels(slug),
			date                      DATE NOT NULL,
			subscriber_count          BIGINT NOT NULL DEFAULT 0,
			total_channel_views       BIGINT NOT NULL DEFAULT 0,
			total_videos              BIGINT NOT NULL DEFAULT 0,
			calculated_total_likes    BIGINT NOT NULL DEFAULT 0,
			calculated_total_comments BIGINT NOT NULL DEFAULT 0,
			created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (channel_slug, date)
		)`,
	}

	for _, stmt := range ddl {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return &StoreError{Op: "migrate", Entity: "schema", Err: err}
		}
	}
	return nil
}

// UpsertChannel writes a channel keyed by slug. The stored created_at is
// preserved when the row already exists.
func (s *PostgresStore) UpsertChannel(ctx context.Context, channel *Channel) error {
	query := `
		INSERT INTO channels (slug, name, remote_id, visible, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, now())
		ON CONFLICT (slug) DO UPDATE SET
			name      = EXCLUDED.name,
			remote_id = COALESCE(EXCLUDED.remote_id, channels.remote_id),
			visible   = EXCLUDED.visible`

	if _, err := s.pool.Exec(ctx, query, channel.Slug, channel.Name, channel.RemoteID, channel.Visible); err != nil {
		return &StoreError{Op: "upsert", Entity: "channel", ID: channel.Slug, Err: err}
	}
	return nil
}

// Channels retrieves all channel rows.
func (s *PostgresStore) Channels(ctx context.Context) ([]*Channel, error) {
	query := `
		SELECT slug, name, COALESCE(remote_id, ''), visible, created_at
		FROM channels
		ORDER BY slug`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, &StoreError{Op: "select", Entity: "channel", Err: err}
	}
	defer rows.Close()

	var channels []*Channel
	for rows.Next() {
		var c Channel
		if err := rows.Scan(&c.Slug, &c.Name, &c.RemoteID, &c.Visible, &c.CreatedAt); err != nil {
			return nil, &StoreError{Op: "select", Entity: "channel", Err: err}
		}
		channels = append(channels, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "select", Entity: "channel", Err: err}
	}
	return channels, nil
}

// SyncMediaItems implements the insert-new vs update-existing partition.
// Counter updates run concurrently with per-item error collection; the
// bulk insert is a single batch. The operation is not atomic.
func (s *PostgresStore) SyncMediaItems(ctx context.Context, channelSlug string, items []*MediaItem) (*SyncOutcome, error) {
	existing, err := s.itemIDs(ctx, channelSlug)
	if err != nil {
		return nil, err
	}

	inserts, updates := partitionItems(existing, items)
	outcome := &SyncOutcome{}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []ItemSyncError
	)
	for _, item := range updates {
		wg.Add(1)
		go func(item *MediaItem) {
			defer wg.Done()
			_, err := s.pool.Exec(ctx,
				`UPDATE media_items SET views = $2, likes = $3, comments = $4 WHERE id = $1`,
				item.ID, item.Views, item.Likes, item.Comments)
			if err != nil {
				mu.Lock()
				failed = append(failed, ItemSyncError{ItemID: item.ID, Err: err})
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()
	outcome.Updated = len(updates) - len(failed)

	if len(inserts) > 0 {
		batch := &pgx.Batch{}
		for _, item := range inserts {
			batch.Queue(`
				INSERT INTO media_items
					(id, title, date, content_type, duration, description, image,
					 channel_slug, remote_url, views, likes, comments, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())`,
				item.ID, item.Title, item.Date, item.ContentType, item.Duration,
				item.Description, item.Image, channelSlug, item.RemoteURL,
				item.Views, item.Likes, item.Comments)
		}
		if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
			return nil, &StoreError{Op: "insert", Entity: "media_item", ID: channelSlug, Err: err}
		}
		outcome.Inserted = len(inserts)
	}

	if len(failed) > 0 {
		return outcome, &PartialSyncError{ChannelSlug: channelSlug, Failed: failed}
	}
	return outcome, nil
}

func (s *PostgresStore) itemIDs(ctx context.Context, channelSlug string) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM media_items WHERE channel_slug = $1`, channelSlug)
	if err != nil {
		return nil, &StoreError{Op: "select", Entity: "media_item", ID: channelSlug, Err: err}
	}
	defer rows.Close()

	ids := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, &StoreError{Op: "select", Entity: "media_item", ID: channelSlug, Err: err}
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "select", Entity: "media_item", ID: channelSlug, Err: err}
	}
	return ids, nil
}

// MediaItems retrieves all items for a channel, newest first.
func (s *PostgresStore) MediaItems(ctx context.Context, channelSlug string) ([]*MediaItem, error) {
	query := `
		SELECT id, title, date, content_type, duration, description, image,
		       channel_slug, remote_url, views, likes, comments, created_at
		FROM media_items
		WHERE channel_slug = $1
		ORDER BY date DESC, id`

	rows, err := s.pool.Query(ctx, query, channelSlug)
	if err != nil {
		return nil, &StoreError{Op: "select", Entity: "media_item", ID: channelSlug, Err: err}
	}
	defer rows.Close()

	var items []*MediaItem
	for rows.Next() {
		var m MediaItem
		if err := rows.Scan(&m.ID, &m.Title, &m.Date, &m.ContentType, &m.Duration,
			&m.Description, &m.Image, &m.ChannelSlug, &m.RemoteURL,
			&m.Views, &m.Likes, &m.Comments, &m.CreatedAt); err != nil {
			return nil, &StoreError{Op: "select", Entity: "media_item", ID: channelSlug, Err: err}
		}
		items = append(items, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "select", Entity: "media_item", ID: channelSlug, Err: err}
	}
	return items, nil
}

// LatestMediaDate returns the most recent publish date for a channel.
func (s *PostgresStore) LatestMediaDate(ctx context.Context, channelSlug string) (time.Time, error) {
	var latest *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT MAX(date) FROM media_items WHERE channel_slug = $1`, channelSlug).Scan(&latest)
	if err != nil {
		return time.Time{}, &StoreError{Op: "select", Entity: "media_item", ID: channelSlug, Err: err}
	}
	if latest == nil {
		return time.Time{}, ErrNotFound
	}
	return *latest, nil
}

// UpsertChannelStatistics writes one snapshot keyed by (channel_slug, date).
// The calculated totals are full-table sums over the channel's stored items,
// recomputed on every call rather than maintained incrementally, so a later
// correction of item counters flows into the next snapshot.
func (s *PostgresStore) UpsertChannelStatistics(ctx context.Context, channelSlug string, stats RemoteChannelStats, day time.Time) (*StatisticsSnapshot, error) {
	day = normalizeDay(day)

	var totalLikes, totalComments int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(likes), 0), COALESCE(SUM(comments), 0)
		 FROM media_items WHERE channel_slug = $1`, channelSlug).
		Scan(&totalLikes, &totalComments)
	if err != nil {
		return nil, &StoreError{Op: "select", Entity: "statistics", ID: channelSlug, Err: err}
	}

	snap := &StatisticsSnapshot{
		ID:                      uuid.NewString(),
		ChannelSlug:             channelSlug,
		Date:                    day,
		SubscriberCount:         stats.Subscribers,
		TotalChannelViews:       stats.TotalViews,
		TotalVideos:             stats.TotalVideos,
		CalculatedTotalLikes:    totalLikes,
		CalculatedTotalComments: totalComments,
	}

	query := `
		INSERT INTO channel_statistics
			(id, channel_slug, date, subscriber_count, total_channel_views,
			 total_videos, calculated_total_likes, calculated_total_comments, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (channel_slug, date) DO UPDATE SET
			subscriber_count          = EXCLUDED.subscriber_count,
			total_channel_views       = EXCLUDED.total_channel_views,
			total_videos              = EXCLUDED.total_videos,
			calculated_total_likes    = EXCLUDED.calculated_total_likes,
			calculated_total_comments = EXCLUDED.calculated_total_comments
		RETURNING id, created_at`

	err = s.pool.QueryRow(ctx, query,
		snap.ID, snap.ChannelSlug, snap.Date, snap.SubscriberCount, snap.TotalChannelViews,
		snap.TotalVideos, snap.CalculatedTotalLikes, snap.CalculatedTotalComments).
		Scan(&snap.ID, &snap.CreatedAt)
	if err != nil {
		return nil, &StoreError{Op: "upsert", Entity: "statistics", ID: channelSlug, Err: err}
	}
	return snap, nil
}

// StatisticsHistory returns snapshots ordered by date descending.
func (s *PostgresStore) StatisticsHistory(ctx context.Context, channelSlug string, limitDays int) ([]*StatisticsSnapshot, error) {
	if limitDays <= 0 {
		limitDays = 30
	}

	query := `
		SELECT id, channel_slug, date, subscriber_count, total_channel_views,
		       total_videos, calculated_total_likes, calculated_total_comments, created_at
		FROM channel_statistics
		WHERE channel_slug = $1
		ORDER BY date DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, channelSlug, limitDays)
	if err != nil {
		return nil, &StoreError{Op: "select", Entity: "statistics", ID: channelSlug, Err: err}
	}
	defer rows.Close()

	var snaps []*StatisticsSnapshot
	for rows.Next() {
		var sn StatisticsSnapshot
		if err := rows.Scan(&sn.ID, &sn.ChannelSlug, &sn.Date, &sn.SubscriberCount,
			&sn.TotalChannelViews, &sn.TotalVideos, &sn.CalculatedTotalLikes,
			&sn.CalculatedTotalComments, &sn.CreatedAt); err != nil {
			return nil, &StoreError{Op: "select", Entity: "statistics", ID: channelSlug, Err: err}
		}
		snaps = append(snaps, &sn)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "select", Entity: "statistics", ID: channelSlug, Err: err}
	}
	return snaps, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

var _ Store = (*PostgresStore)(nil)
