package scraper

import (
	"context"

	"listing_detail/config"
	"listing_detail/httputil"
)

// Handler opens listing pages through one page-loading backend.
type Handler interface {
	ID() string
	Open(ctx context.Context, url string) (Page, error)
	Close()
}

func NewHandler(siteCfg *config.SiteConfig, cfg *config.Config, clients *httputil.Clients) Handler {
	switch siteCfg.Handler {
	case "http":
		return NewHTTPHandler(siteCfg, clients.Scraping)
	case "render":
		return NewRenderHandler(siteCfg, cfg.Scraper, cfg.Proxy)
	default:
		return NewBrowserHandler(siteCfg, cfg.Scraper, cfg.Proxy)
	}
}
