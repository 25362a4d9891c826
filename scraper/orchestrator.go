package scraper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"listing_detail/config"
	"listing_detail/httputil"
	"listing_detail/models"
	"listing_detail/services"
	"listing_detail/storage"
)

// HandlerFactory builds a fresh page-loading backend for one worker.
type HandlerFactory func(site *config.SiteConfig) Handler

// BatchResult holds one batch of extractions. Records keeps input order and
// only contains listings that produced a record; Outcomes has one entry per
// input URL, in input order.
type BatchResult struct {
	RunID      int64
	Records    []*models.RawListing
	Normalized []models.NormalizedListing
	Outcomes   []models.ListingOutcome
}

type Orchestrator struct {
	cfg        *config.Config
	store      *storage.SQLiteStore
	newHandler HandlerFactory

	pgStore  *storage.PostgresStore
	uploader *storage.S3Uploader

	mu     sync.Mutex
	paused bool
}

func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore, clients *httputil.Clients) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		store: store,
		newHandler: func(site *config.SiteConfig) Handler {
			return NewHandler(site, cfg, clients)
		},
	}
}

// SetHandlerFactory replaces how workers obtain their backend.
func (o *Orchestrator) SetHandlerFactory(f HandlerFactory) {
	o.newHandler = f
}

// SetPostgres enables upserting normalized listings into Postgres.
func (o *Orchestrator) SetPostgres(pg *storage.PostgresStore) {
	o.pgStore = pg
}

// SetUploader enables publishing output files to S3.
func (o *Orchestrator) SetUploader(u *storage.S3Uploader) {
	o.uploader = u
}

func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.IsPaused() {
		log.Println("Extractor is paused, skipping run")
		return nil
	}

	for _, siteID := range o.GetSiteIDs() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := o.RunSite(ctx, siteID); err != nil {
			log.Printf("Error running site %s: %v", siteID, err)
		}
	}
	return nil
}

// RunSite discovers the listings on a site's firm pages and extracts them.
func (o *Orchestrator) RunSite(ctx context.Context, siteID string) (*BatchResult, error) {
	site, ok := o.cfg.Sites[siteID]
	if !ok {
		return nil, fmt.Errorf("unknown site: %s", siteID)
	}

	urls := o.discover(ctx, site)
	if len(urls) == 0 {
		log.Printf("[%s] no listings discovered", siteID)
	}
	return o.ExtractURLs(ctx, siteID, urls)
}

func (o *Orchestrator) discover(ctx context.Context, site *config.SiteConfig) []string {
	handler := o.newHandler(site)
	defer handler.Close()

	seen := make(map[string]bool)
	var urls []string
	for _, firmURL := range site.FirmURLs {
		if ctx.Err() != nil {
			break
		}
		page, err := handler.Open(ctx, firmURL)
		if err != nil {
			log.Printf("[%s] discovery failed for %s: %v", site.ID, firmURL, err)
			continue
		}
		base := site.BaseURL
		if base == "" {
			base = firmURL
		}
		refs := DiscoverListings(page, base)
		page.Close()

		log.Printf("[%s] %s: %d listings", site.ID, firmURL, len(refs))
		for _, ref := range refs {
			if !seen[ref.URL] {
				seen[ref.URL] = true
				urls = append(urls, ref.URL)
			}
		}
	}
	return urls
}

// ExtractURLs extracts each URL, normalizes the records and persists them.
// Listings are processed by a pool of workers, each with its own backend.
// Cancelling ctx stops new listings from starting; a listing already being
// extracted runs to completion and the rest are reported as skipped.
func (o *Orchestrator) ExtractURLs(ctx context.Context, siteID string, urls []string) (*BatchResult, error) {
	site, ok := o.cfg.Sites[siteID]
	if !ok {
		return nil, fmt.Errorf("unknown site: %s", siteID)
	}

	run := &models.ExtractionRun{
		SiteID:        siteID,
		StartedAt:     time.Now(),
		Status:        models.RunStatusRunning,
		ListingsFound: len(urls),
	}
	runID, err := o.store.CreateRun(run)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	run.ID = runID

	var pgRunID int64
	if o.pgStore != nil {
		if pgRunID, err = o.pgStore.CreateExtractionRun(ctx, run); err != nil {
			log.Printf("Warning: failed to create Postgres run: %v", err)
		}
	}

	o.log(run.ID, models.LogLevelInfo, fmt.Sprintf("Starting extraction of %d listings for %s", len(urls), site.Name), siteID)

	records, outcomes := o.extractAll(ctx, site, urls)

	result := &BatchResult{RunID: run.ID, Outcomes: outcomes}
	for i, rec := range records {
		if rec != nil {
			result.Records = append(result.Records, rec)
		}
		switch outcomes[i].Status {
		case models.OutcomeSucceeded:
			run.ListingsExtracted++
		case models.OutcomeFailed:
			run.ListingsFailed++
		}
		run.ErrorsCount += len(outcomes[i].Issues)
		if err := o.store.SaveOutcome(run.ID, &outcomes[i]); err != nil {
			log.Printf("Warning: failed to save outcome for %s: %v", outcomes[i].URL, err)
		}
	}
	result.Normalized = services.NormalizeListings(result.Records)

	o.persist(ctx, run, result)

	run.Finish(time.Now(), ctx.Err() != nil)
	if err := o.store.UpdateRun(run); err != nil {
		log.Printf("Warning: failed to update run: %v", err)
	}
	if err := o.store.UpdateSiteStats(siteID); err != nil {
		log.Printf("Warning: failed to update site stats: %v", err)
	}
	if o.pgStore != nil && pgRunID != 0 {
		if err := o.pgStore.FinishExtractionRun(context.WithoutCancel(ctx), pgRunID, run); err != nil {
			log.Printf("Warning: failed to finish Postgres run: %v", err)
		}
	}

	o.log(run.ID, models.LogLevelInfo,
		fmt.Sprintf("Finished (%s): %d found, %d extracted, %d failed, %d issues",
			run.Status, run.ListingsFound, run.ListingsExtracted, run.ListingsFailed, run.ErrorsCount), siteID)

	return result, nil
}

type listingJob struct {
	index int
	url   string
}

type listingResult struct {
	index   int
	record  *models.RawListing
	outcome models.ListingOutcome
}

func (o *Orchestrator) extractAll(ctx context.Context, site *config.SiteConfig, urls []string) ([]*models.RawListing, []models.ListingOutcome) {
	records := make([]*models.RawListing, len(urls))
	outcomes := make([]models.ListingOutcome, len(urls))
	if len(urls) == 0 {
		return records, outcomes
	}

	workers := o.cfg.Scraper.Workers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(urls) {
		workers = len(urls)
	}

	delay := site.RateLimit()
	if delay <= 0 {
		delay = time.Duration(o.cfg.Scraper.DelayMS) * time.Millisecond
	}

	jobs := make(chan listingJob)
	results := make(chan listingResult, len(urls))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler := o.newHandler(site)
			defer handler.Close()
			extractor := NewExtractor(site)

			first := true
			for job := range jobs {
				if ctx.Err() != nil {
					results <- listingResult{index: job.index, outcome: skippedOutcome(job.url, ctx.Err())}
					continue
				}
				if !first && !sleepCtx(ctx, delay) {
					results <- listingResult{index: job.index, outcome: skippedOutcome(job.url, ctx.Err())}
					continue
				}
				first = false

				rec, outcome := o.extractOne(ctx, handler, extractor, job.url)
				results <- listingResult{index: job.index, record: rec, outcome: outcome}
			}
		}()
	}

	go func() {
		for i, u := range urls {
			jobs <- listingJob{index: i, url: u}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	for r := range results {
		records[r.index] = r.record
		outcomes[r.index] = r.outcome
	}
	return records, outcomes
}

// extractOne loads and extracts a single listing. Once started it is not
// interrupted by cancellation of ctx.
func (o *Orchestrator) extractOne(ctx context.Context, handler Handler, extractor *Extractor, url string) (*models.RawListing, models.ListingOutcome) {
	outcome := models.ListingOutcome{URL: url, StartedAt: time.Now()}

	page, err := handler.Open(context.WithoutCancel(ctx), url)
	if err != nil {
		outcome.Status = models.OutcomeFailed
		outcome.Error = err.Error()
		outcome.FinishedAt = time.Now()
		log.Printf("[%s] ✗ %v", url, err)
		return nil, outcome
	}
	defer page.Close()

	rec, issues, err := extractor.Extract(page, url)
	outcome.Issues = issues
	outcome.FinishedAt = time.Now()
	if err != nil {
		outcome.Status = models.OutcomeFailed
		outcome.Error = err.Error()
		log.Printf("[%s] ✗ %v", url, err)
		return nil, outcome
	}

	outcome.Status = models.OutcomeSucceeded
	outcome.ListingID = rec.ListingID
	log.Printf("[%s] ✓ %d fields, %d issues", url, len(rec.Info), len(issues))
	return rec, outcome
}

func skippedOutcome(url string, cause error) models.ListingOutcome {
	now := time.Now()
	outcome := models.ListingOutcome{URL: url, Status: models.OutcomeSkipped, StartedAt: now, FinishedAt: now}
	if cause != nil {
		outcome.Error = cause.Error()
	}
	return outcome
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// persist writes a finished batch to every configured sink. Sink failures are
// logged and never fail the batch.
func (o *Orchestrator) persist(ctx context.Context, run *models.ExtractionRun, result *BatchResult) {
	ctx = context.WithoutCancel(ctx)
	siteID := run.SiteID

	raws, normalized := o.keyed(run, result)
	for _, rec := range raws {
		if err := o.store.SaveRawListing(run.ID, siteID, rec); err != nil {
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("save raw %s: %v", rec.ListingID, err), siteID)
		}
	}
	for i := range normalized {
		if err := o.store.SaveNormalizedListing(siteID, &normalized[i]); err != nil {
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("save normalized %s: %v", normalized[i].ListingID, err), siteID)
		}
	}

	out := o.cfg.Output
	files := []struct {
		path string
		v    any
	}{
		{out.RawPath, nonNil(result.Records)},
		{out.NormalizedPath, nonNil(result.Normalized)},
		{out.OutcomesPath, nonNil(result.Outcomes)},
	}
	for _, f := range files {
		if f.path == "" {
			continue
		}
		if err := storage.WriteJSON(f.path, f.v); err != nil {
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("write %s: %v", f.path, err), siteID)
			continue
		}
		if o.uploader != nil {
			key, err := o.uploader.PublishJSON(ctx, siteID, f.path, run.StartedAt, f.v)
			if err != nil {
				o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("publish %s: %v", f.path, err), siteID)
			} else {
				log.Printf("[%s] published %s", siteID, key)
			}
		}
	}

	if o.pgStore != nil {
		o.logPriceChanges(ctx, run, normalized)
		if err := o.pgStore.UpsertListings(ctx, siteID, normalized, raws); err != nil {
			o.log(run.ID, models.LogLevelError, fmt.Sprintf("postgres upsert: %v", err), siteID)
		}
	}
}

// keyed returns the records that carry a listing id, paired with their
// normalized form. Records without one are only written to the JSON outputs.
func (o *Orchestrator) keyed(run *models.ExtractionRun, result *BatchResult) ([]*models.RawListing, []models.NormalizedListing) {
	var raws []*models.RawListing
	var normalized []models.NormalizedListing
	for i, rec := range result.Records {
		if rec.ListingID == "" {
			o.log(run.ID, models.LogLevelWarn, fmt.Sprintf("not stored, no listing id: %s", rec.ListingURL), run.SiteID)
			continue
		}
		raws = append(raws, rec)
		normalized = append(normalized, result.Normalized[i])
	}
	return raws, normalized
}

func (o *Orchestrator) logPriceChanges(ctx context.Context, run *models.ExtractionRun, normalized []models.NormalizedListing) {
	for _, n := range normalized {
		if n.Price == nil {
			continue
		}
		prev, err := o.pgStore.GetListingPrice(ctx, run.SiteID, n.ListingID)
		if err != nil || prev == nil || *prev == *n.Price {
			continue
		}
		o.log(run.ID, models.LogLevelInfo,
			fmt.Sprintf("price change %s: %d -> %d", n.ListingID, *prev, *n.Price), run.SiteID)
	}
}

// NormalizeFile reads a raw extraction file and writes its normalized form.
func (o *Orchestrator) NormalizeFile(in, out string) (int, error) {
	raws, err := storage.ReadRawListings(in)
	if err != nil {
		return 0, err
	}
	normalized := services.NormalizeListings(raws)
	if err := storage.WriteJSON(out, nonNil(normalized)); err != nil {
		return 0, err
	}
	return len(normalized), nil
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := o.store.ParseCommandParams(cmd)
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdExtractNow:
		return o.RunAll(ctx)
	case models.CmdExtractSite:
		if params.Site != "" {
			_, err := o.RunSite(ctx, params.Site)
			return err
		}
		return o.RunAll(ctx)
	case models.CmdExtractURLs:
		if params.Site == "" || len(params.URLs) == 0 {
			return errors.New("extract_urls needs site and urls")
		}
		_, err := o.ExtractURLs(ctx, params.Site, params.URLs)
		return err
	case models.CmdPause:
		o.setPaused(true)
		log.Println("Extractor paused")
	case models.CmdResume:
		o.setPaused(false)
		log.Println("Extractor resumed")
	default:
		return fmt.Errorf("unknown command: %s", cmd.Command)
	}

	return nil
}

func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

func (o *Orchestrator) setPaused(p bool) {
	o.mu.Lock()
	o.paused = p
	o.mu.Unlock()
}

func (o *Orchestrator) log(runID int64, level models.LogLevel, message, siteID string) {
	log.Printf("[%s] %s: %s", level, siteID, message)
	o.store.Log(&runID, level, message, siteID)
}

func (o *Orchestrator) GetSiteIDs() []string {
	var ids []string
	for id := range o.cfg.Sites {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// nonNil keeps empty batches serialized as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
