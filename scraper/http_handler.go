package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"listing_detail/config"
)

const (
	maxPageBytes   = 10 * 1024 * 1024
	acceptLanguage = "tr-TR,tr;q=0.9,en;q=0.8"
)

// HTTPHandler fetches server-rendered markup without a browser. It is the
// cheapest backend and only sees what the server sends before hydration.
type HTTPHandler struct {
	site   *config.SiteConfig
	client *http.Client
}

func NewHTTPHandler(site *config.SiteConfig, client *http.Client) *HTTPHandler {
	return &HTTPHandler{site: site, client: client}
}

func (h *HTTPHandler) ID() string {
	return h.site.ID
}

func (h *HTTPHandler) Open(ctx context.Context, url string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	page, err := NewHTMLPage(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (h *HTTPHandler) Close() {}
