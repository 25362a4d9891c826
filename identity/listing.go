package identity

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var listingIDRegex = regexp.MustCompile(`-(\d+)$`)

// listingNamespace scopes the name-based UUIDs handed to storage.
var listingNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("listing-detail/listings"))

// ListingID returns the trailing numeric segment of a listing URL
// ("/ilan/3-1-daire-12345678" -> "12345678").
func ListingID(listingURL string) (string, bool) {
	u := listingURL
	if parsed, err := url.Parse(listingURL); err == nil && parsed.Path != "" {
		u = parsed.Path
	}
	m := listingIDRegex.FindStringSubmatch(strings.TrimRight(u, "/"))
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// ListingUUID derives a stable row ID for a listing so repeated upserts of
// the same source record land on the same row.
func ListingUUID(source, listingID string) uuid.UUID {
	return uuid.NewSHA1(listingNamespace, []byte(source+"|"+listingID))
}

// ResolveURL joins href against base, returning "" if either is malformed.
func ResolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := b.ResolveReference(ref)
	resolved.Fragment = ""
	return resolved.String()
}
