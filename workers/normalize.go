package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"listing_detail/models"
	"listing_detail/services"
	"listing_detail/storage"
)

// RawQueue hands out stored raw records that still need normalizing.
type RawQueue interface {
	GetPendingRawListings(limit int) ([]storage.PendingRawListing, error)
	SaveNormalizedListing(siteID string, n *models.NormalizedListing) error
}

// ListingSink receives every normalized record, e.g. Postgres.
type ListingSink interface {
	UpsertListing(ctx context.Context, source string, n *models.NormalizedListing, raw *models.RawListing) error
}

// NormalizationWorker re-normalizes raw records that were stored but not yet
// normalized, such as those requeued by a re-extraction or written while the
// normalizer was behind.
type NormalizationWorker struct {
	queue     RawQueue
	sink      ListingSink
	batchSize int
	triggerCh chan struct{}
	logFunc   LogFunc
}

func NewNormalizationWorker(queue RawQueue, sink ListingSink, batchSize int) *NormalizationWorker {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &NormalizationWorker{
		queue:     queue,
		sink:      sink,
		batchSize: batchSize,
		triggerCh: make(chan struct{}, 1),
		logFunc:   NoOpLogger,
	}
}

func (w *NormalizationWorker) SetLogger(fn LogFunc) {
	w.logFunc = fn
}

// Trigger causes the worker to run immediately
func (w *NormalizationWorker) Trigger() {
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *NormalizationWorker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Normalization worker stopping")
			return
		case <-ticker.C:
			w.ProcessBatch(ctx)
		case <-w.triggerCh:
			log.Println("Normalization worker triggered manually")
			w.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch normalizes one batch of pending records and returns how many
// were saved.
func (w *NormalizationWorker) ProcessBatch(ctx context.Context) int {
	pending, err := w.queue.GetPendingRawListings(w.batchSize)
	if err != nil {
		log.Printf("Normalization: query error: %v", err)
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	var saved, failed int
	for _, p := range pending {
		n := services.NormalizeListing(p.Listing)

		if w.sink != nil {
			if err := w.sink.UpsertListing(ctx, p.SiteID, &n, p.Listing); err != nil {
				log.Printf("Normalization: sink error for %s: %v", n.ListingID, err)
				failed++
				continue
			}
		}
		if err := w.queue.SaveNormalizedListing(p.SiteID, &n); err != nil {
			log.Printf("Normalization: save error for %s: %v", n.ListingID, err)
			failed++
			continue
		}
		saved++
	}

	msg := fmt.Sprintf("Normalized %d listings (%d failed)", saved, failed)
	log.Printf("Normalization: %s", msg)
	level := models.LogLevelInfo
	if failed > 0 {
		level = models.LogLevelWarn
	}
	w.logFunc(level, "normalizer", msg)
	return saved
}
