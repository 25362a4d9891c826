package scraper

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const selectedState = "selected"

// HTMLPage is a Page over a static document. Clicking a tab control moves the
// selected state to the panel it controls, provided that panel is in the
// document. Clicking anything that controls no panel is an error.
type HTMLPage struct {
	doc *goquery.Document
}

func NewHTMLPage(r io.Reader) (*HTMLPage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTMLPage{doc: doc}, nil
}

func (p *HTMLPage) Root() Node {
	return &htmlNode{page: p, sel: p.doc.Selection}
}

func (p *HTMLPage) Title() (string, error) {
	return strings.TrimSpace(p.doc.Find("title").First().Text()), nil
}

func (p *HTMLPage) Settle(time.Duration) {}

func (p *HTMLPage) Close() error { return nil }

type htmlNode struct {
	page *HTMLPage
	sel  *goquery.Selection
}

func (n *htmlNode) match(loc Locator) *goquery.Selection {
	switch loc.Kind {
	case ByText:
		return n.sel.Find(loc.Selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(s.Text(), loc.Text)
		})
	case BySibling:
		filter := loc.Selector
		if loc.Class != "" {
			filter = fmt.Sprintf(`%s[class*="%s"]`, loc.Selector, loc.Class)
		}
		return n.sel.NextAllFiltered(filter).First()
	case ByParent:
		return n.sel.Parent()
	case ByFollowing:
		return n.sel.NextAllFiltered(loc.Selector).Find(fmt.Sprintf(`%s[class*="%s"]`, loc.Inner, loc.Class))
	default:
		return n.sel.Find(loc.Selector)
	}
}

func (n *htmlNode) Query(loc Locator) (Node, error) {
	found := n.match(loc)
	if found.Length() == 0 {
		return nil, nil
	}
	return &htmlNode{page: n.page, sel: found.First()}, nil
}

func (n *htmlNode) QueryAll(loc Locator) ([]Node, error) {
	found := n.match(loc)
	nodes := make([]Node, 0, found.Length())
	found.Each(func(_ int, s *goquery.Selection) {
		nodes = append(nodes, &htmlNode{page: n.page, sel: s})
	})
	return nodes, nil
}

func (n *htmlNode) Text() (string, error) {
	return n.sel.Text(), nil
}

func (n *htmlNode) HTML() (string, error) {
	return n.sel.Html()
}

func (n *htmlNode) Attr(name string) (string, error) {
	val, _ := n.sel.Attr(name)
	return val, nil
}

func (n *htmlNode) Click() error {
	panelID, ok := n.sel.Attr("aria-controls")
	if !ok || panelID == "" {
		return errors.New("control does not own a panel")
	}

	panel := n.page.doc.Find(`[role="tabpanel"]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		id, _ := s.Attr("id")
		return id == panelID
	})
	if panel.Length() == 0 {
		return fmt.Errorf("panel %s not rendered", panelID)
	}

	panel.Siblings().Filter(`[role="tabpanel"]`).RemoveAttr("data-headlessui-state")
	panel.SetAttr("data-headlessui-state", selectedState)

	n.sel.Siblings().Filter(`[role="tab"]`).
		RemoveAttr("data-headlessui-state").
		SetAttr("aria-selected", "false")
	n.sel.SetAttr("data-headlessui-state", selectedState).SetAttr("aria-selected", "true")
	return nil
}
