package scraper

import (
	"regexp"
	"strconv"
	"strings"

	"listing_detail/models"
)

var (
	digitRunRegex   = regexp.MustCompile(`\d+`)
	titlePriceRegex = regexp.MustCompile(`(\d[\d.]*)\s*(TL|₺|\$|€)`)
)

// priceStrategy is one way of locating the price. ok is false when the
// strategy found nothing usable and the next one should run.
type priceStrategy func(page Page) (models.PriceInfo, bool)

// ExtractPrice tries the price panel, then the page title, and finally
// reports the price as not found.
func ExtractPrice(page Page, selectors []Locator, tr *Trace) models.PriceInfo {
	strategies := []priceStrategy{
		func(p Page) (models.PriceInfo, bool) { return priceFromPanel(p, selectors, tr) },
		func(p Page) (models.PriceInfo, bool) { return priceFromTitle(p, tr) },
	}

	for _, strategy := range strategies {
		if info, ok := strategy(page); ok {
			return info
		}
	}

	note := models.PriceNoteNotFound
	return models.PriceInfo{Note: &note}
}

func priceFromPanel(page Page, selectors []Locator, tr *Trace) (models.PriceInfo, bool) {
	text, ok := ResolveText(page.Root(), selectors...)
	if !ok {
		tr.NotFound("price.panel", "no price element with text")
		return models.PriceInfo{}, false
	}

	amount, ok := ParseAmount(text)
	if !ok {
		tr.ParseFailure("price.panel", "no digits in %q", text)
		return models.PriceInfo{}, false
	}

	return models.PriceInfo{
		AmountText: &text,
		Amount:     &amount,
		Currency:   DetectCurrency(text),
	}, true
}

func priceFromTitle(page Page, tr *Trace) (models.PriceInfo, bool) {
	title, err := page.Title()
	if err != nil {
		tr.NotFound("price.title", "read title: %v", err)
		return models.PriceInfo{}, false
	}

	m := titlePriceRegex.FindStringSubmatch(title)
	if m == nil {
		tr.NotFound("price.title", "no price pattern in title")
		return models.PriceInfo{}, false
	}

	amount, ok := ParseAmount(m[1])
	if !ok {
		tr.ParseFailure("price.title", "unparseable amount %q", m[1])
		return models.PriceInfo{}, false
	}

	text := m[0]
	return models.PriceInfo{
		AmountText: &text,
		Amount:     &amount,
		Currency:   DetectCurrency(m[2]),
	}, true
}

// ParseAmount drops '.' thousands separators and reads the first run of
// digits: "2.450.000 TL" -> 2450000. Decimal commas are cut off.
func ParseAmount(text string) (int64, bool) {
	digits := digitRunRegex.FindString(strings.ReplaceAll(text, ".", ""))
	if digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// DetectCurrency returns nil when no known marker appears in text.
func DetectCurrency(text string) *models.Currency {
	var c models.Currency
	switch {
	case strings.Contains(text, "TL"), strings.Contains(text, "₺"):
		c = models.CurrencyTL
	case strings.Contains(text, "$"), strings.Contains(text, "USD"):
		c = models.CurrencyUSD
	case strings.Contains(text, "€"), strings.Contains(text, "EUR"):
		c = models.CurrencyEUR
	default:
		return nil
	}
	return &c
}
