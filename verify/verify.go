// Package verify reconciles the persisted store against the exported
// artifacts.
package verify

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ytstats/export"
	"ytstats/storage"
)

// ReportFile is the verification artifact written next to the exports.
const ReportFile = "verification_report.json"

// CheckResult is the outcome of one reconciliation check.
type CheckResult struct {
	Name    string   `json:"name"`
	Passed  bool     `json:"passed"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// Report aggregates all check results.
type Report struct {
	GeneratedAt    time.Time     `json:"generated_at"`
	AllPassed      bool          `json:"all_passed"`
	StoredChannels int           `json:"stored_channels"`
	StoredVideos   int           `json:"stored_videos"`
	Checks         []CheckResult `json:"checks"`
}

// Checker runs the reconciliation checks. Every check always runs to
// completion; failures are recorded, never raised.
type Checker struct {
	store storage.Store
	dir   string
	log   zerolog.Logger
}

// NewChecker creates a checker over store and the export directory.
func NewChecker(store storage.Store, dir string, log zerolog.Logger) *Checker {
	return &Checker{store: store, dir: dir, log: log}
}

// Run executes the four checks and returns the aggregated report. Only a
// store read failure aborts; everything else becomes a failed check.
func (c *Checker) Run(ctx context.Context) (*Report, error) {
	channels, err := c.store.Channels(ctx)
	if err != nil {
		return nil, err
	}
	itemsByChannel := make(map[string][]*storage.MediaItem, len(channels))
	storedVideos := 0
	for _, ch := range channels {
		items, err := c.store.MediaItems(ctx, ch.Slug)
		if err != nil {
			return nil, err
		}
		itemsByChannel[ch.Slug] = items
		storedVideos += len(items)
	}

	summary, summaryErr := export.ReadSummary(c.dir)

	report := &Report{
		GeneratedAt:    time.Now().UTC(),
		StoredChannels: len(channels),
		StoredVideos:   storedVideos,
	}
	report.Checks = []CheckResult{
		c.checkChannelCount(channels, summary, summaryErr),
		c.checkVideoCounts(itemsByChannel, summary, summaryErr),
		c.checkIntegrity(channels, itemsByChannel),
		c.checkExportFiles(summary, summaryErr, storedVideos, len(channels)),
	}

	report.AllPassed = true
	for _, check := range report.Checks {
		if check.Passed {
			c.log.Info().Str("check", check.Name).Msg(check.Message)
			continue
		}
		report.AllPassed = false
		c.log.Warn().Str("check", check.Name).Strs("details", check.Details).Msg(check.Message)
	}
	return report, nil
}

func (c *Checker) checkChannelCount(channels []*storage.Channel, summary *export.Summary, summaryErr error) CheckResult {
	result := CheckResult{Name: "channel_count"}
	if summaryErr != nil {
		result.Message = fmt.Sprintf("summary unavailable: %v", summaryErr)
		return result
	}
	if len(channels) != summary.TotalChannels {
		result.Message = fmt.Sprintf("store has %d channels, summary reports %d",
			len(channels), summary.TotalChannels)
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf("%d channels match", len(channels))
	return result
}

func (c *Checker) checkVideoCounts(itemsByChannel map[string][]*storage.MediaItem, summary *export.Summary, summaryErr error) CheckResult {
	result := CheckResult{Name: "video_count"}
	if summaryErr != nil {
		result.Message = fmt.Sprintf("summary unavailable: %v", summaryErr)
		return result
	}

	storedTotal := 0
	for _, items := range itemsByChannel {
		storedTotal += len(items)
	}

	slugs := make([]string, 0, len(itemsByChannel))
	for slug := range itemsByChannel {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	for _, slug := range slugs {
		stored := len(itemsByChannel[slug])
		if reported := summary.VideosPerChannel[slug]; stored != reported {
			result.Details = append(result.Details,
				fmt.Sprintf("channel %s: stored %d, summary %d", slug, stored, reported))
		}
	}

	if storedTotal != summary.TotalVideos || len(result.Details) > 0 {
		result.Message = fmt.Sprintf("store has %d videos, summary reports %d",
			storedTotal, summary.TotalVideos)
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf("%d videos match", storedTotal)
	return result
}

func (c *Checker) checkIntegrity(channels []*storage.Channel, itemsByChannel map[string][]*storage.MediaItem) CheckResult {
	result := CheckResult{Name: "integrity"}

	for _, ch := range channels {
		if ch.RemoteID == "" {
			result.Details = append(result.Details,
				fmt.Sprintf("channel %s: missing remote id", ch.Slug))
		}
		for _, item := range itemsByChannel[ch.Slug] {
			if item.ID == "" {
				result.Details = append(result.Details,
					fmt.Sprintf("channel %s: item with empty id", ch.Slug))
				continue
			}
			if item.Title == "" {
				result.Details = append(result.Details,
					fmt.Sprintf("channel %s: item %s missing title", ch.Slug, item.ID))
			}
			if item.Date.IsZero() {
				result.Details = append(result.Details,
					fmt.Sprintf("channel %s: item %s missing date", ch.Slug, item.ID))
			}
			if !strings.Contains(item.RemoteURL, "watch?v=") {
				result.Details = append(result.Details,
					fmt.Sprintf("channel %s: item %s has malformed url %q", ch.Slug, item.ID, item.RemoteURL))
			}
			if item.Views < 0 || item.Likes < 0 || item.Comments < 0 {
				result.Details = append(result.Details,
					fmt.Sprintf("channel %s: item %s has negative counters", ch.Slug, item.ID))
			}
		}
	}

	if len(result.Details) > 0 {
		result.Message = fmt.Sprintf("%d integrity problems found", len(result.Details))
		return result
	}
	result.Passed = true
	result.Message = "all channels and items structurally sound"
	return result
}

func (c *Checker) checkExportFiles(summary *export.Summary, summaryErr error, storedVideos, storedChannels int) CheckResult {
	result := CheckResult{Name: "export_files"}

	required := []string{export.ChannelsFile, export.VideosFile, export.StatisticsFile, export.SummaryFile}
	for _, name := range required {
		if _, err := os.Stat(filepath.Join(c.dir, name)); err != nil {
			result.Details = append(result.Details, fmt.Sprintf("missing %s", name))
		}
	}
	if len(result.Details) > 0 {
		result.Message = "required export files missing"
		return result
	}
	if summaryErr != nil {
		result.Message = fmt.Sprintf("summary unavailable: %v", summaryErr)
		return result
	}

	videoRows, err := countVideoRows(filepath.Join(c.dir, export.VideosFile))
	if err != nil {
		result.Message = fmt.Sprintf("scan %s: %v", export.VideosFile, err)
		return result
	}
	channelRows, err := countCSVRecords(filepath.Join(c.dir, export.ChannelsFile))
	if err != nil {
		result.Message = fmt.Sprintf("read %s: %v", export.ChannelsFile, err)
		return result
	}

	summaryVideos := 0
	for _, n := range summary.VideosPerChannel {
		summaryVideos += n
	}
	if videoRows != summaryVideos {
		result.Details = append(result.Details,
			fmt.Sprintf("videos file has %d rows, summary map covers %d", videoRows, summaryVideos))
	}
	if videoRows != storedVideos {
		result.Details = append(result.Details,
			fmt.Sprintf("videos file has %d rows, store has %d", videoRows, storedVideos))
	}
	if channelRows != storedChannels {
		result.Details = append(result.Details,
			fmt.Sprintf("channels file has %d rows, store has %d", channelRows, storedChannels))
	}

	if len(result.Details) > 0 {
		result.Message = "export files inconsistent with summary or store"
		return result
	}
	result.Passed = true
	result.Message = fmt.Sprintf("export files consistent (%d videos, %d channels)", videoRows, channelRows)
	return result
}

// videoRowStart matches lines that open a new record: an 11-character
// identifier-like token followed by a comma. Continuation lines from
// embedded newlines inside quoted fields don't match, so multi-line
// records count once.
var videoRowStart = regexp.MustCompile(`^[A-Za-z0-9_-]{11},`)

func countVideoRows(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if videoRowStart.MatchString(scanner.Text()) {
			count++
		}
	}
	return count, scanner.Err()
}

func countCSVRecords(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return len(records) - 1, nil // minus header
}

// WriteReport persists the report artifact into dir.
func WriteReport(dir string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ReportFile), data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
