package scraper

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"listing_detail/config"
)

// RenderHandler loads pages in headless Chrome over CDP, lets client-side
// rendering finish and then works on a snapshot of the resulting DOM. Tabs
// whose panels are not in the snapshot cannot be activated.
type RenderHandler struct {
	site     *config.SiteConfig
	opts     config.ScraperConfig
	proxyURL string

	mu       sync.Mutex
	allocCtx context.Context
	cancel   context.CancelFunc
}

func NewRenderHandler(site *config.SiteConfig, opts config.ScraperConfig, proxy config.ProxyConfig) *RenderHandler {
	return &RenderHandler{site: site, opts: opts, proxyURL: proxy.URL}
}

func (h *RenderHandler) ID() string {
	return h.site.ID
}

func (h *RenderHandler) start() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.allocCtx != nil {
		return
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", h.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(browserUserAgent),
	)
	if h.proxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(h.proxyURL))
	}

	h.allocCtx, h.cancel = chromedp.NewExecAllocator(context.Background(), opts...)
}

func (h *RenderHandler) Open(ctx context.Context, url string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.start()

	taskCtx, cancel := chromedp.NewContext(h.allocCtx)
	defer cancel()

	timeout := time.Duration(h.opts.NavTimeoutMS)*time.Millisecond + h.site.InitialWait()
	taskCtx, cancel = context.WithTimeout(taskCtx, timeout)
	defer cancel()

	var html string
	for _, step := range renderSteps(url, h.site.InitialWait(), &html) {
		if err := chromedp.Run(taskCtx, step.action); err != nil {
			return nil, fmt.Errorf("render %s: %s: %w", url, step.name, err)
		}
	}

	doc, err := NewHTMLPage(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

type renderStep struct {
	name   string
	action chromedp.Action
}

// renderSteps loads url into a fresh tab. The stealth script is registered
// before navigation so it runs ahead of the page's own scripts.
func renderSteps(url string, wait time.Duration, html *string) []renderStep {
	return []renderStep{
		{"network", network.Enable()},
		{"headers", network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": acceptLanguage})},
		{"init script", chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriverJS).Do(ctx)
			return err
		})},
		{"navigate", chromedp.Navigate(url)},
		{"wait ready", chromedp.WaitReady("body")},
		{"initial wait", chromedp.Sleep(wait)},
		{"snapshot", chromedp.OuterHTML("html", html)},
	}
}

func (h *RenderHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cancel != nil {
		h.cancel()
	}
	h.allocCtx = nil
	h.cancel = nil
}
