package scraper

import (
	"time"

	"listing_detail/models"
)

// TabState is a position in the feature panel walk.
type TabState int

const (
	TabInterior TabState = iota
	TabExterior
	TabLocation
	TabDone
)

func (s TabState) String() string {
	switch s {
	case TabInterior:
		return "interior"
	case TabExterior:
		return "exterior"
	case TabLocation:
		return "location"
	default:
		return "done"
	}
}

type tabStep struct {
	section models.Section
	// control is the label of the tab to activate; empty means the tab is
	// already showing when the page loads.
	control string
}

var tabSteps = map[TabState]tabStep{
	TabInterior: {section: models.SectionInterior},
	TabExterior: {section: models.SectionExterior, control: "Dış Özellikler"},
	TabLocation: {section: models.SectionLocation, control: "Konum Özellikleri"},
}

// FeatureTabs walks the tabbed feature panel in the fixed order
// interior, exterior, location. A failing tab is recorded and skipped; the
// walk always reaches TabDone.
type FeatureTabs struct {
	page    Page
	settle  time.Duration
	trace   *Trace
	state   TabState
	panel   Node
	found   bool
	located bool
	seen    []TabState
}

func NewFeatureTabs(page Page, settle time.Duration, tr *Trace) *FeatureTabs {
	return &FeatureTabs{page: page, settle: settle, trace: tr}
}

func (m *FeatureTabs) State() TabState { return m.state }

// Visited lists the states entered so far, in order.
func (m *FeatureTabs) Visited() []TabState { return m.seen }

// Run walks every tab and returns whatever each one yielded. All three
// sections are present in the result, possibly empty.
func (m *FeatureTabs) Run() map[models.Section]models.CategoryList {
	out := make(map[models.Section]models.CategoryList, len(models.Sections))
	for _, sec := range models.Sections {
		out[sec] = models.CategoryList{}
	}

	for m.state != TabDone {
		sec, cats := m.Step()
		for label, items := range cats {
			out[sec][label] = items
		}
	}
	return out
}

// Step handles the current tab and advances to the next state.
func (m *FeatureTabs) Step() (models.Section, models.CategoryList) {
	state := m.state
	if state == TabDone {
		return "", nil
	}
	m.seen = append(m.seen, state)
	m.state++

	step := tabSteps[state]
	stepName := "features." + state.String()

	if !m.located {
		m.panel, m.found = m.locatePanel()
		m.located = true
	}

	if !m.found {
		m.trace.Unavailable(stepName, "feature section not found")
		return step.section, nil
	}

	var (
		active Node
		ok     bool
	)
	if step.control == "" {
		if active, ok = Resolve(m.panel, activePanel...); !ok {
			m.trace.NotFound(stepName, "no active panel")
			return step.section, nil
		}
	} else if active, ok = m.activate(stepName, step.control); !ok {
		return step.section, nil
	}

	cats := readPanel(active)
	if len(cats) == 0 {
		m.trace.NotFound(stepName, "no categories in active panel")
	}
	return step.section, cats
}

// activate clicks the tab labelled label and returns the panel named by its
// aria-controls once that panel is the selected one. Anything else is
// recorded as not found.
func (m *FeatureTabs) activate(stepName, label string) (Node, bool) {
	control, ok := Resolve(m.panel, tabControl(label)...)
	if !ok {
		m.trace.NotFound(stepName, "tab control %q not found", label)
		return nil, false
	}
	owned, err := control.Attr("aria-controls")
	if err != nil || owned == "" {
		m.trace.NotFound(stepName, "tab control %q does not own a panel", label)
		return nil, false
	}
	if err := control.Click(); err != nil {
		m.trace.NotFound(stepName, "activate tab %q: %v", label, err)
		return nil, false
	}
	m.page.Settle(m.settle)

	active, ok := Resolve(m.panel, activePanel...)
	if !ok {
		m.trace.NotFound(stepName, "no active panel after activating %q", label)
		return nil, false
	}
	if id, _ := active.Attr("id"); id != owned {
		m.trace.NotFound(stepName, "tab %q did not switch to panel %s", label, owned)
		return nil, false
	}
	return active, true
}

func (m *FeatureTabs) locatePanel() (Node, bool) {
	heading, ok := Resolve(m.page.Root(), featureHeading...)
	if !ok {
		return nil, false
	}
	return Resolve(heading, Parent())
}

// readPanel reads the category headers of a tab panel and the feature list
// that follows each one.
func readPanel(panel Node) models.CategoryList {
	cats := models.CategoryList{}
	for _, header := range ResolveAll(panel, categoryHeaders...) {
		label := nodeText(header)
		if label == "" {
			continue
		}
		list, ok := Resolve(header, categoryList...)
		if !ok {
			continue
		}

		var features []string
		for _, item := range ResolveAll(list, featureItems...) {
			if text := nodeText(item); text != "" {
				features = append(features, text)
			}
		}
		if len(features) > 0 {
			cats[label] = features
		}
	}
	return cats
}
