// Package export serializes persisted rows into CSV files and a JSON
// summary.
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"ytstats/storage"
)

// Artifact file names produced by an export.
const (
	ChannelsFile   = "export_channels.csv"
	VideosFile     = "export_videos.csv"
	StatisticsFile = "export_channel_statistics.csv"
	SummaryFile    = "export_summary.json"
)

// Summary is the aggregated JSON artifact written beside the CSV files.
type Summary struct {
	TotalChannels    int            `json:"total_channels"`
	TotalVideos      int            `json:"total_videos"`
	VisibleChannels  int            `json:"visible_channels"`
	HiddenChannels   int            `json:"hidden_channels"`
	UnknownChannels  int            `json:"unknown_channels"`
	VideosPerChannel map[string]int `json:"videos_per_channel"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

// Writer exports persisted rows to a directory. It only reads from the
// store; all artifacts are rewritten in full on every export.
type Writer struct {
	dir string
	log zerolog.Logger
}

// NewWriter creates an export writer targeting dir.
func NewWriter(dir string, log zerolog.Logger) *Writer {
	return &Writer{dir: dir, log: log}
}

// Export writes the three CSV datasets and the JSON summary, returning the
// summary it wrote.
func (w *Writer) Export(ctx context.Context, store storage.Store) (*Summary, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	channels, err := store.Channels(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{
		TotalChannels:    len(channels),
		VideosPerChannel: make(map[string]int, len(channels)),
		GeneratedAt:      time.Now().UTC(),
	}

	itemsByChannel := make(map[string][]*storage.MediaItem, len(channels))
	for _, ch := range channels {
		items, err := store.MediaItems(ctx, ch.Slug)
		if err != nil {
			return nil, err
		}
		itemsByChannel[ch.Slug] = items
		summary.VideosPerChannel[ch.Slug] = len(items)
		summary.TotalVideos += len(items)

		switch {
		case ch.Visible == nil:
			summary.UnknownChannels++
		case *ch.Visible:
			summary.VisibleChannels++
		default:
			summary.HiddenChannels++
		}
	}

	if err := w.writeChannels(channels); err != nil {
		return nil, err
	}
	if err := w.writeVideos(channels, itemsByChannel); err != nil {
		return nil, err
	}
	if err := w.writeStatistics(ctx, store, channels); err != nil {
		return nil, err
	}
	if err := w.writeSummary(summary); err != nil {
		return nil, err
	}

	w.log.Info().Int("channels", summary.TotalChannels).Int("videos", summary.TotalVideos).
		Str("dir", w.dir).Msg("export complete")
	return summary, nil
}

func (w *Writer) writeChannels(channels []*storage.Channel) error {
	header := []string{"slug", "name", "remote_id", "visible", "created_at"}
	rows := make([][]string, 0, len(channels))
	for _, ch := range channels {
		rows = append(rows, []string{
			ch.Slug,
			ch.Name,
			ch.RemoteID,
			formatVisible(ch.Visible),
			ch.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return w.writeCSV(ChannelsFile, header, rows)
}

func (w *Writer) writeVideos(channels []*storage.Channel, itemsByChannel map[string][]*storage.MediaItem) error {
	header := []string{
		"id", "title", "date", "content_type", "duration", "description",
		"remote_id", "image", "channel_slug", "remote_url",
		"views", "likes", "comments", "external_platform_url", "created_at",
	}
	var rows [][]string
	for _, ch := range channels {
		for _, item := range itemsByChannel[ch.Slug] {
			rows = append(rows, []string{
				item.ID,
				item.Title,
				item.Date.Format("2006-01-02"),
				item.ContentType,
				item.Duration,
				item.Description,
				item.ID,
				item.Image,
				item.ChannelSlug,
				item.RemoteURL,
				strconv.FormatInt(item.Views, 10),
				strconv.FormatInt(item.Likes, 10),
				strconv.FormatInt(item.Comments, 10),
				item.RemoteURL,
				item.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
	}
	return w.writeCSV(VideosFile, header, rows)
}

func (w *Writer) writeStatistics(ctx context.Context, store storage.Store, channels []*storage.Channel) error {
	header := []string{
		"id", "channel_slug", "date", "subscriber_count", "total_channel_views",
		"total_videos", "calculated_total_likes", "calculated_total_comments", "created_at",
	}
	var rows [][]string
	for _, ch := range channels {
		snaps, err := store.StatisticsHistory(ctx, ch.Slug, 30)
		if err != nil {
			return err
		}
		for _, sn := range snaps {
			rows = append(rows, []string{
				sn.ID,
				sn.ChannelSlug,
				sn.Date.Format("2006-01-02"),
				strconv.FormatInt(sn.SubscriberCount, 10),
				strconv.FormatInt(sn.TotalChannelViews, 10),
				strconv.FormatInt(sn.TotalVideos, 10),
				strconv.FormatInt(sn.CalculatedTotalLikes, 10),
				strconv.FormatInt(sn.CalculatedTotalComments, 10),
				sn.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
	}
	return w.writeCSV(StatisticsFile, header, rows)
}

// writeCSV writes one delimited dataset. encoding/csv quotes a field only
// when it contains a comma, quote, or newline, doubling internal quotes.
func (w *Writer) writeCSV(name string, header []string, rows [][]string) error {
	f, err := os.Create(filepath.Join(w.dir, name))
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return f.Close()
}

func (w *Writer) writeSummary(summary *Summary) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	path := filepath.Join(w.dir, SummaryFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func formatVisible(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

// ReadSummary loads a previously written summary from dir.
func ReadSummary(dir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	if err != nil {
		return nil, err
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return nil, fmt.Errorf("parse summary: %w", err)
	}
	return &summary, nil
}
