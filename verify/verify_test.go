package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ytstats/export"
	"ytstats/storage"
)

// seedTwoChannels stores 2 channels with 5 and 3 media items and exports
// them, returning the store and export dir.
func seedTwoChannels(t *testing.T) (*storage.MemoryStore, string) {
	t.Helper()
	s := storage.NewMemoryStore()
	ctx := context.Background()
	dir := t.TempDir()

	for slug, count := range map[string]int{"alpha": 5, "beta": 3} {
		if err := s.UpsertChannel(ctx, &storage.Channel{
			Slug: slug, Name: "Channel " + slug, RemoteID: "UC" + slug,
		}); err != nil {
			t.Fatalf("UpsertChannel() error = %v", err)
		}
		var items []*storage.MediaItem
		for i := 0; i < count; i++ {
			id := fmt.Sprintf("%s%06d", slug[:1], i)
			id = id + strings.Repeat("x", 11-len(id))
			items = append(items, &storage.MediaItem{
				ID:          id,
				Title:       "Episode " + id,
				Date:        time.Date(2024, 3, 1+i, 0, 0, 0, 0, time.UTC),
				ContentType: "video",
				Duration:    "5:09",
				ChannelSlug: slug,
				RemoteURL:   "https://www.youtube.com/watch?v=" + id,
			})
		}
		if _, err := s.SyncMediaItems(ctx, slug, items); err != nil {
			t.Fatalf("SyncMediaItems() error = %v", err)
		}
	}

	if _, err := export.NewWriter(dir, zerolog.Nop()).Export(ctx, s); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	return s, dir
}

func checkByName(t *testing.T, report *Report, name string) CheckResult {
	t.Helper()
	for _, c := range report.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not found in report", name)
	return CheckResult{}
}

func TestAllChecksPass(t *testing.T) {
	store, dir := seedTwoChannels(t)

	report, err := NewChecker(store, dir, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if !report.AllPassed {
		t.Errorf("AllPassed = false; checks: %+v", report.Checks)
	}
	if len(report.Checks) != 4 {
		t.Errorf("got %d checks, want 4", len(report.Checks))
	}
	if report.StoredChannels != 2 || report.StoredVideos != 8 {
		t.Errorf("stored counts = %d/%d, want 2/8", report.StoredChannels, report.StoredVideos)
	}
}

func TestTamperedVideoTotalFailsOnlyVideoCount(t *testing.T) {
	store, dir := seedTwoChannels(t)

	// Mutate the summary's total_videos from 8 to 7.
	summary, err := export.ReadSummary(dir)
	if err != nil {
		t.Fatalf("ReadSummary() error = %v", err)
	}
	summary.TotalVideos = 7
	data, _ := json.MarshalIndent(summary, "", "  ")
	if err := os.WriteFile(filepath.Join(dir, export.SummaryFile), data, 0o644); err != nil {
		t.Fatalf("rewrite summary: %v", err)
	}

	report, err := NewChecker(store, dir, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.AllPassed {
		t.Error("AllPassed = true, want false")
	}
	if c := checkByName(t, report, "video_count"); c.Passed {
		t.Error("video_count passed, want failure")
	}
	for _, name := range []string{"channel_count", "integrity", "export_files"} {
		if c := checkByName(t, report, name); !c.Passed {
			t.Errorf("%s failed, want pass: %s %v", name, c.Message, c.Details)
		}
	}
}

func TestNegativeCounterFailsIntegrity(t *testing.T) {
	store, dir := seedTwoChannels(t)
	ctx := context.Background()

	bad := &storage.MediaItem{
		ID:          "zzzzzzzzzzz",
		Title:       "Broken",
		Date:        time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		ContentType: "video",
		ChannelSlug: "alpha",
		RemoteURL:   "https://www.youtube.com/watch?v=zzzzzzzzzzz",
		Views:       -1,
	}
	if _, err := store.SyncMediaItems(ctx, "alpha", []*storage.MediaItem{bad}); err != nil {
		t.Fatalf("SyncMediaItems() error = %v", err)
	}
	// Re-export so the file checks stay aligned with the store.
	if _, err := export.NewWriter(dir, zerolog.Nop()).Export(ctx, store); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	report, err := NewChecker(store, dir, zerolog.Nop()).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	c := checkByName(t, report, "integrity")
	if c.Passed {
		t.Fatal("integrity passed, want failure")
	}
	found := false
	for _, d := range c.Details {
		if strings.Contains(d, "zzzzzzzzzzz") && strings.Contains(d, "alpha") {
			found = true
		}
	}
	if !found {
		t.Errorf("integrity details do not name the item and channel: %v", c.Details)
	}
}

func TestMissingRemoteIDFailsIntegrity(t *testing.T) {
	store, dir := seedTwoChannels(t)
	ctx := context.Background()

	if err := store.UpsertChannel(ctx, &storage.Channel{Slug: "ghost", Name: "Ghost"}); err != nil {
		t.Fatalf("UpsertChannel() error = %v", err)
	}
	if _, err := export.NewWriter(dir, zerolog.Nop()).Export(ctx, store); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	report, err := NewChecker(store, dir, zerolog.Nop()).Run(ctx)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	c := checkByName(t, report, "integrity")
	if c.Passed {
		t.Fatal("integrity passed, want failure for missing remote id")
	}
}

func TestMissingExportFilesFailCheck(t *testing.T) {
	store, dir := seedTwoChannels(t)
	if err := os.Remove(filepath.Join(dir, export.VideosFile)); err != nil {
		t.Fatalf("remove videos file: %v", err)
	}

	report, err := NewChecker(store, dir, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if c := checkByName(t, report, "export_files"); c.Passed {
		t.Error("export_files passed, want failure for missing file")
	}
}

func TestCountVideoRowsToleratesEmbeddedNewlines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rows.csv")
	content := "id,title,description\n" +
		"aaaaaaaaaaa,First,\"line one\nline two\"\n" +
		"bbbbbbbbbbb,Second,plain\n" +
		"not-a-row\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	count, err := countVideoRows(path)
	if err != nil {
		t.Fatalf("countVideoRows() error = %v", err)
	}
	if count != 2 {
		t.Errorf("countVideoRows() = %d, want 2", count)
	}
}

func TestWriteReport(t *testing.T) {
	store, dir := seedTwoChannels(t)

	report, err := NewChecker(store, dir, zerolog.Nop()).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := WriteReport(dir, report); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, ReportFile))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var loaded Report
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if loaded.AllPassed != report.AllPassed || len(loaded.Checks) != 4 {
		t.Errorf("round-tripped report mismatch: %+v", loaded)
	}
}
