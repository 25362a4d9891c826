package scraper

import (
	"time"

	"listing_detail/config"
	"listing_detail/identity"
	"listing_detail/models"
)

// Extractor turns a loaded listing page into a RawListing.
type Extractor struct {
	priceSelectors []Locator
	settle         time.Duration
}

func NewExtractor(site *config.SiteConfig) *Extractor {
	selectors := DefaultPriceSelectors
	settle := 2 * time.Second
	if site != nil {
		if len(site.PriceSelectors) > 0 {
			selectors = site.PriceSelectors
		}
		settle = site.SettleDelay()
	}
	return &Extractor{
		priceSelectors: cssLocators(selectors),
		settle:         settle,
	}
}

// Extract runs every extraction step against page. Steps fail on their own
// and are reported as issues; only a page without the detail container is an
// error, in which case no record is produced.
func (e *Extractor) Extract(page Page, listingURL string) (*models.RawListing, []models.Issue, error) {
	tr := &Trace{}

	container, ok := Resolve(page.Root(), detailContainer...)
	if !ok {
		tr.Unavailable("container", "#ilan-hakkinda missing")
		return nil, tr.Issues(), ErrSectionUnavailable
	}

	listingID, ok := identity.ListingID(listingURL)
	if !ok {
		tr.ParseFailure("listing_id", "no trailing numeric id in %s", listingURL)
	}

	rec := &models.RawListing{
		ListingURL: listingURL,
		ListingID:  listingID,
		Info:       ExtractInfo(container, tr),
	}
	rec.Price = ExtractPrice(page, e.priceSelectors, tr)
	rec.DescriptionHTML = ExtractDescription(container, tr)
	rec.Features = NewFeatureTabs(page, e.settle, tr).Run()

	return rec, tr.Issues(), nil
}
