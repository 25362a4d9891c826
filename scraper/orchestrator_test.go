package scraper

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"listing_detail/config"
	"listing_detail/models"
	"listing_detail/storage"
)

const (
	degradedURL  = "https://www.emlakjet.com/ilan/satilik-2-1-daire-14524001"
	emptyPageURL = "https://www.emlakjet.com/ilan/yayindan-kaldirildi-14520000"
	brokenURL    = "https://www.emlakjet.com/ilan/zaman-asimi-14520001"
	firmURL      = "https://www.emlakjet.com/emlak-ofisleri-detay/goktas-emlak-310758"
)

// fixtureHandler serves canned documents by URL.
type fixtureHandler struct {
	pages  map[string]string
	opened *int32
	closed *int32
}

func (h *fixtureHandler) ID() string { return "fixture" }

func (h *fixtureHandler) Open(ctx context.Context, url string) (Page, error) {
	atomic.AddInt32(h.opened, 1)
	doc, ok := h.pages[url]
	if !ok {
		return nil, errors.New("navigation timeout")
	}
	page, err := NewHTMLPage(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (h *fixtureHandler) Close() { atomic.AddInt32(h.closed, 1) }

type orchestratorFixture struct {
	orch   *Orchestrator
	store  *storage.SQLiteStore
	cfg    *config.Config
	opened int32
	closed int32
}

func newOrchestratorFixture(t *testing.T, workers int) *orchestratorFixture {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{
		Scraper: config.ScraperConfig{Workers: workers},
		Output: config.OutputConfig{
			RawPath:        filepath.Join(dir, "out", "raw.json"),
			NormalizedPath: filepath.Join(dir, "out", "normalized.json"),
			OutcomesPath:   filepath.Join(dir, "out", "outcomes.json"),
		},
		Sites: map[string]*config.SiteConfig{
			"emlakjet": {
				ID:       "emlakjet",
				Name:     "Emlakjet",
				BaseURL:  "https://www.emlakjet.com",
				FirmURLs: []string{firmURL},
			},
		},
	}

	pages := map[string]string{
		fixtureURL:   string(loadFixture(t, "listing_detail.html")),
		degradedURL:  string(loadFixture(t, "listing_degraded.html")),
		emptyPageURL: `<html><head><title>İlan yayında değil</title></head><body></body></html>`,
		firmURL:      string(loadFixture(t, "firm_page.html")),
		"https://www.emlakjet.com/ilan/kiralik-2-1-daire-14523999/": string(loadFixture(t, "listing_degraded.html")),
	}

	f := &orchestratorFixture{store: store, cfg: cfg}
	f.orch = NewOrchestrator(cfg, store, nil)
	f.orch.SetHandlerFactory(func(site *config.SiteConfig) Handler {
		return &fixtureHandler{pages: pages, opened: &f.opened, closed: &f.closed}
	})
	return f
}

func TestExtractURLs_OrderAndOutcomes(t *testing.T) {
	f := newOrchestratorFixture(t, 3)
	urls := []string{fixtureURL, emptyPageURL, degradedURL, brokenURL}

	result, err := f.orch.ExtractURLs(context.Background(), "emlakjet", urls)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	wantStatus := []models.OutcomeStatus{
		models.OutcomeSucceeded, models.OutcomeFailed, models.OutcomeSucceeded, models.OutcomeFailed,
	}
	if len(result.Outcomes) != len(urls) {
		t.Fatalf("expected %d outcomes, got %d", len(urls), len(result.Outcomes))
	}
	for i, o := range result.Outcomes {
		if o.URL != urls[i] || o.Status != wantStatus[i] {
			t.Errorf("outcome %d = %s %s, want %s %s", i, o.URL, o.Status, urls[i], wantStatus[i])
		}
	}
	if result.Outcomes[1].Error != ErrSectionUnavailable.Error() {
		t.Errorf("empty page error = %q", result.Outcomes[1].Error)
	}
	if result.Outcomes[3].Error != "navigation timeout" {
		t.Errorf("broken page error = %q", result.Outcomes[3].Error)
	}

	if len(result.Records) != 2 || result.Records[0].ListingID != "14523890" || result.Records[1].ListingID != "14524001" {
		t.Fatalf("records out of order: %+v", result.Records)
	}
	if len(result.Normalized) != 2 || result.Normalized[0].Price == nil || *result.Normalized[0].Price != 2450000 {
		t.Errorf("normalized = %+v", result.Normalized)
	}

	run, err := f.store.GetRun(result.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != models.RunStatusPartial || run.ListingsExtracted != 2 || run.ListingsFailed != 2 || run.ListingsFound != 4 {
		t.Errorf("run = %+v", run)
	}
	if n, _ := f.store.CountOutcomes(result.RunID, models.OutcomeFailed); n != 2 {
		t.Errorf("stored failed outcomes = %d", n)
	}

	raws, err := storage.ReadRawListings(f.cfg.Output.RawPath)
	if err != nil {
		t.Fatalf("read raw output: %v", err)
	}
	if len(raws) != 2 {
		t.Errorf("raw output has %d records", len(raws))
	}

	stored, err := f.store.GetNormalizedListing("emlakjet", "14523890")
	if err != nil || stored == nil {
		t.Fatalf("normalized listing not stored: %v", err)
	}

	if n := atomic.LoadInt32(&f.opened); n != 4 {
		t.Errorf("expected 4 page loads, got %d", n)
	}
	if n := atomic.LoadInt32(&f.closed); n != 3 {
		t.Errorf("expected each of 3 workers to close its handler, got %d", n)
	}
}

func TestExtractURLs_ListingsWithoutIDNotStored(t *testing.T) {
	f := newOrchestratorFixture(t, 1)
	previewA := "https://www.emlakjet.com/ilan/onizleme-a"
	previewB := "https://www.emlakjet.com/ilan/onizleme-b"
	doc := string(loadFixture(t, "listing_detail.html"))
	f.orch.SetHandlerFactory(func(site *config.SiteConfig) Handler {
		return &fixtureHandler{
			pages:  map[string]string{previewA: doc, previewB: doc, fixtureURL: doc},
			opened: &f.opened,
			closed: &f.closed,
		}
	})

	result, err := f.orch.ExtractURLs(context.Background(), "emlakjet", []string{previewA, previewB, fixtureURL})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(result.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(result.Records))
	}

	if got, err := f.store.GetNormalizedListing("emlakjet", ""); err != nil || got != nil {
		t.Errorf("listing without id was stored: %+v (%v)", got, err)
	}
	if got, err := f.store.GetNormalizedListing("emlakjet", "14523890"); err != nil || got == nil {
		t.Errorf("keyed listing not stored: %v", err)
	}

	raws, err := storage.ReadRawListings(f.cfg.Output.RawPath)
	if err != nil {
		t.Fatalf("read raw output: %v", err)
	}
	if len(raws) != 3 || raws[0].ListingURL != previewA || raws[1].ListingURL != previewB {
		t.Errorf("raw output should keep every record, got %d", len(raws))
	}

	logs, err := f.store.GetRunLogs(result.RunID)
	if err != nil {
		t.Fatalf("run logs: %v", err)
	}
	warned := 0
	for _, l := range logs {
		if l.Level == models.LogLevelWarn && strings.Contains(l.Message, "no listing id") {
			warned++
		}
	}
	if warned != 2 {
		t.Errorf("expected 2 warnings, got %d", warned)
	}
}

func TestExtractURLs_CancelledBeforeStart(t *testing.T) {
	f := newOrchestratorFixture(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.orch.ExtractURLs(ctx, "emlakjet", []string{fixtureURL, degradedURL, brokenURL})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	for i, o := range result.Outcomes {
		if o.Status != models.OutcomeSkipped {
			t.Errorf("outcome %d status = %s", i, o.Status)
		}
	}
	if len(result.Records) != 0 {
		t.Errorf("expected no records, got %d", len(result.Records))
	}
	if n := atomic.LoadInt32(&f.opened); n != 0 {
		t.Errorf("expected no page loads, got %d", n)
	}

	run, err := f.store.GetRun(result.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != models.RunStatusCancelled {
		t.Errorf("run status = %s", run.Status)
	}

	raws, err := storage.ReadRawListings(f.cfg.Output.RawPath)
	if err != nil {
		t.Fatalf("read raw output: %v", err)
	}
	if len(raws) != 0 {
		t.Errorf("expected empty raw output, got %d", len(raws))
	}
}

func TestExtractURLs_UnknownSite(t *testing.T) {
	f := newOrchestratorFixture(t, 1)
	if _, err := f.orch.ExtractURLs(context.Background(), "sahibinden", []string{fixtureURL}); err == nil {
		t.Error("expected error for unknown site")
	}
}

func TestRunSite_DiscoversAndExtracts(t *testing.T) {
	f := newOrchestratorFixture(t, 2)

	result, err := f.orch.RunSite(context.Background(), "emlakjet")
	if err != nil {
		t.Fatalf("run site: %v", err)
	}

	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 discovered listings, got %+v", result.Outcomes)
	}
	if result.Outcomes[0].ListingID != "14523890" || result.Outcomes[1].ListingID != "14523999" {
		t.Errorf("outcomes = %+v", result.Outcomes)
	}
	for _, o := range result.Outcomes {
		if o.Status != models.OutcomeSucceeded {
			t.Errorf("%s status = %s (%s)", o.URL, o.Status, o.Error)
		}
	}
}

func TestHandleCommand_PauseResume(t *testing.T) {
	f := newOrchestratorFixture(t, 1)
	ctx := context.Background()

	if err := f.orch.HandleCommand(ctx, &models.Command{Command: models.CmdPause}); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !f.orch.IsPaused() {
		t.Fatal("expected paused")
	}
	if err := f.orch.RunAll(ctx); err != nil {
		t.Fatalf("run all: %v", err)
	}
	if n := atomic.LoadInt32(&f.opened); n != 0 {
		t.Errorf("paused run loaded %d pages", n)
	}

	if err := f.orch.HandleCommand(ctx, &models.Command{Command: models.CmdResume}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if f.orch.IsPaused() {
		t.Fatal("expected resumed")
	}

	if err := f.orch.HandleCommand(ctx, &models.Command{Command: models.CmdExtractURLs}); err == nil {
		t.Error("expected error for extract_urls without params")
	}
	if err := f.orch.HandleCommand(ctx, &models.Command{Command: "reboot"}); err == nil {
		t.Error("expected error for unknown command")
	}
}

func TestNormalizeFile(t *testing.T) {
	f := newOrchestratorFixture(t, 1)
	if _, err := f.orch.ExtractURLs(context.Background(), "emlakjet", []string{fixtureURL}); err != nil {
		t.Fatalf("extract: %v", err)
	}

	out := filepath.Join(t.TempDir(), "normalized.json")
	n, err := f.orch.NormalizeFile(f.cfg.Output.RawPath, out)
	if err != nil {
		t.Fatalf("normalize file: %v", err)
	}
	if n != 1 {
		t.Errorf("normalized %d listings", n)
	}
}
