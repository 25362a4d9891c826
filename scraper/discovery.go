package scraper

import (
	"listing_detail/identity"
	"listing_detail/models"
)

// DiscoverListings collects the listing links of a firm or search page,
// resolved against baseURL and deduplicated in page order. Links without a
// numeric listing id are ignored.
func DiscoverListings(page Page, baseURL string) []models.ListingRef {
	seen := make(map[string]bool)
	var refs []models.ListingRef

	for _, a := range ResolveAll(page.Root(), listingLinks...) {
		href, err := a.Attr("href")
		if err != nil || href == "" {
			continue
		}
		abs := identity.ResolveURL(baseURL, href)
		if abs == "" {
			continue
		}
		id, ok := identity.ListingID(abs)
		if !ok || seen[abs] {
			continue
		}
		seen[abs] = true
		refs = append(refs, models.ListingRef{URL: abs, ListingID: id})
	}

	return refs
}
