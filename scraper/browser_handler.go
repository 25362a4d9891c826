package scraper

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"listing_detail/config"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	hideWebdriverJS  = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined})`
)

// BrowserHandler drives a real Chromium through Playwright. One handler owns
// one browser context; pages opened from it share cookies.
type BrowserHandler struct {
	site     *config.SiteConfig
	opts     config.ScraperConfig
	proxyURL string

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	initialized bool
	consentDone bool
}

func NewBrowserHandler(site *config.SiteConfig, opts config.ScraperConfig, proxy config.ProxyConfig) *BrowserHandler {
	return &BrowserHandler{site: site, opts: opts, proxyURL: proxy.URL}
}

func (h *BrowserHandler) ID() string {
	return h.site.ID
}

func (h *BrowserHandler) ensureBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}

	var err error
	h.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(h.opts.Headless),
		Args: []string{
			"--disable-blink-features=AutomationControlled",
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	}
	if h.proxyURL != "" {
		launch.Proxy = &playwright.Proxy{Server: h.proxyURL}
	}

	h.browser, err = h.pw.Chromium.Launch(launch)
	if err != nil {
		h.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	h.context, err = h.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:  &playwright.Size{Width: 1920, Height: 1080},
		UserAgent: playwright.String(browserUserAgent),
		Locale:    playwright.String("tr-TR"),
	})
	if err != nil {
		h.browser.Close()
		h.pw.Stop()
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	if err := h.context.AddInitScript(playwright.Script{Content: playwright.String(hideWebdriverJS)}); err != nil {
		log.Printf("Init script not installed: %v", err)
	}

	h.initialized = true
	return nil
}

// Open navigates a fresh tab to url and waits for the page to settle.
func (h *BrowserHandler) Open(ctx context.Context, url string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := h.ensureBrowser(); err != nil {
		return nil, err
	}

	page, err := h.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	if h.opts.StepTimeout > 0 {
		page.SetDefaultTimeout(float64(h.opts.StepTimeout.Milliseconds()))
	}

	_, err = page.Goto(url, playwright.PageGotoOptions{
		Timeout:   playwright.Float(float64(h.opts.NavTimeoutMS)),
		WaitUntil: playwright.WaitUntilStateNetworkidle,
	})
	if err != nil {
		page.Close()
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}

	page.WaitForTimeout(float64(h.site.InitialWait().Milliseconds()))
	h.handleConsent(page)

	return &browserPage{page: page}, nil
}

func (h *BrowserHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.context != nil {
		h.context.Close()
		h.context = nil
	}
	if h.browser != nil {
		h.browser.Close()
		h.browser = nil
	}
	if h.pw != nil {
		h.pw.Stop()
		h.pw = nil
	}
	h.initialized = false
	h.consentDone = false
}

// handleConsent dismisses the cookie banner once per browser context.
func (h *BrowserHandler) handleConsent(page playwright.Page) {
	h.mu.Lock()
	done := h.consentDone
	h.mu.Unlock()
	if done {
		return
	}

	consentSelectors := []string{
		"#onetrust-accept-btn-handler",
		"button:has-text('Kabul Et')",
		"button:has-text('Tümünü Kabul Et')",
		"button:has-text('Kabul')",
		"button[id*='accept']",
		"button[class*='accept']",
		"button:has-text('Accept')",
	}

	for _, selector := range consentSelectors {
		btn := page.Locator(selector).First()
		if visible, _ := btn.IsVisible(); visible {
			log.Printf("Clicking consent button: %s", selector)
			if err := btn.Click(); err == nil {
				page.WaitForTimeout(1000)
			}
			break
		}
	}

	h.mu.Lock()
	h.consentDone = true
	h.mu.Unlock()
}

type browserPage struct {
	page playwright.Page
}

func (p *browserPage) Root() Node {
	el, err := p.page.QuerySelector("html")
	if err != nil || el == nil {
		return nil
	}
	return &browserNode{el: el}
}

func (p *browserPage) Title() (string, error) {
	return p.page.Title()
}

func (p *browserPage) Settle(d time.Duration) {
	p.page.WaitForTimeout(float64(d.Milliseconds()))
}

func (p *browserPage) Close() error {
	return p.page.Close()
}

type browserNode struct {
	el playwright.ElementHandle
}

// playwrightSelector renders loc in Playwright's selector syntax.
func playwrightSelector(loc Locator) string {
	switch loc.Kind {
	case ByText:
		return fmt.Sprintf("%s:has-text(%q)", loc.Selector, loc.Text)
	case BySibling:
		if loc.Class == "" {
			return fmt.Sprintf("xpath=./following-sibling::%s[1]", loc.Selector)
		}
		return fmt.Sprintf(`xpath=./following-sibling::%s[contains(@class, "%s")][1]`, loc.Selector, loc.Class)
	case ByParent:
		return "xpath=.."
	case ByFollowing:
		return fmt.Sprintf(`xpath=./following-sibling::%s//%s[contains(@class, "%s")]`, loc.Selector, loc.Inner, loc.Class)
	default:
		return loc.Selector
	}
}

func (n *browserNode) Query(loc Locator) (Node, error) {
	el, err := n.el.QuerySelector(playwrightSelector(loc))
	if err != nil {
		return nil, err
	}
	if el == nil {
		return nil, nil
	}
	return &browserNode{el: el}, nil
}

func (n *browserNode) QueryAll(loc Locator) ([]Node, error) {
	els, err := n.el.QuerySelectorAll(playwrightSelector(loc))
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(els))
	for _, el := range els {
		nodes = append(nodes, &browserNode{el: el})
	}
	return nodes, nil
}

func (n *browserNode) Text() (string, error) {
	return n.el.InnerText()
}

func (n *browserNode) HTML() (string, error) {
	return n.el.InnerHTML()
}

func (n *browserNode) Attr(name string) (string, error) {
	return n.el.GetAttribute(name)
}

func (n *browserNode) Click() error {
	return n.el.Click()
}
