package scraper

// Emlakjet ships hashed CSS module class names (styles_key__wX_g4). Each
// lookup lists the exact class first and a substring match as fallback so a
// rebuild of the site's stylesheet does not break extraction.
var (
	detailContainer = []Locator{CSS("#ilan-hakkinda")}

	infoRows  = []Locator{CSS("ul > li")}
	infoKey   = []Locator{CSS("span.styles_key__wX_g4"), CSS(`span[class*="styles_key"]`)}
	infoValue = []Locator{CSS("span.styles_value__xmNV3"), CSS(`span[class*="styles_value"]`)}

	descriptionHeading = []Locator{Text("h2", "İlan Açıklaması")}
	descriptionBlock   = []Locator{NextSibling("div", "")}
	descriptionInner   = []Locator{CSS(`div[class*="styles_inner"]`)}

	// Used when the block right after the heading is a wrapper.
	descriptionAnyInner = []Locator{InFollowing("div", "div", "styles_inner")}

	featureHeading = []Locator{
		Text("#ilan-hakkinda h2", "İlan Özellikleri"),
		Text("h2", "İlan Özellikleri"),
	}
	activePanel = []Locator{
		CSS(`div[role="tabpanel"][data-headlessui-state="selected"]`),
		CSS(`div[role="tabpanel"]`),
	}
	categoryHeaders = []Locator{
		CSS("div.styles_tabContentTitle__3Q2jN"),
		CSS(`div[class*="tabContentTitle"]`),
	}
	categoryList = []Locator{NextSibling("ul", "tabContentList"), NextSibling("ul", "")}
	featureItems = []Locator{CSS("li")}

	listingLinks = []Locator{CSS(`a[href*="/ilan/"]`)}
)

// DefaultPriceSelectors is used when a site config lists none.
var DefaultPriceSelectors = []string{
	"span.n-prop-detail-price",
	"div.price",
	"span.price",
	"div.fiyat",
	"span.fiyat",
	`div[class*="price"]`,
	`span[class*="price"]`,
	`div[class*="fiyat"]`,
	`span[class*="fiyat"]`,
}

func tabControl(label string) []Locator {
	return []Locator{Text("button", label), Text(`[role="tab"]`, label)}
}

func cssLocators(selectors []string) []Locator {
	locs := make([]Locator, 0, len(selectors))
	for _, sel := range selectors {
		locs = append(locs, CSS(sel))
	}
	return locs
}
