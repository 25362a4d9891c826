package scraper

import (
	"fmt"
	"strings"
	"time"
)

// LocatorKind selects how a Locator is matched against a scope.
type LocatorKind int

const (
	ByCSS LocatorKind = iota
	ByText
	BySibling
	ByParent
	ByFollowing
)

// Locator is one candidate way of finding an element relative to a scope.
// Backends translate it into their own query language.
type Locator struct {
	Kind     LocatorKind
	Selector string // CSS selector, or element tag for BySibling
	Text     string // ByText: substring the element text must contain
	Class    string // BySibling, ByFollowing: class substring of the match
	Inner    string // ByFollowing: tag of the descendant to match
}

func CSS(selector string) Locator {
	return Locator{Kind: ByCSS, Selector: selector}
}

// Text matches elements of selector whose text contains text.
func Text(selector, text string) Locator {
	return Locator{Kind: ByText, Selector: selector, Text: text}
}

// NextSibling matches the first following sibling with the given tag,
// optionally filtered by a class substring.
func NextSibling(tag, classContains string) Locator {
	return Locator{Kind: BySibling, Selector: tag, Class: classContains}
}

func Parent() Locator {
	return Locator{Kind: ByParent}
}

// InFollowing matches the first inner element whose class contains
// classContains, searched inside every following sibling with the given tag.
func InFollowing(tag, inner, classContains string) Locator {
	return Locator{Kind: ByFollowing, Selector: tag, Inner: inner, Class: classContains}
}

func (l Locator) String() string {
	switch l.Kind {
	case ByText:
		return fmt.Sprintf("%s[text~%q]", l.Selector, l.Text)
	case BySibling:
		if l.Class == "" {
			return "+~" + l.Selector
		}
		return fmt.Sprintf("+~%s[class~%q]", l.Selector, l.Class)
	case ByParent:
		return ".."
	case ByFollowing:
		return fmt.Sprintf("+~%s %s[class~%q]", l.Selector, l.Inner, l.Class)
	default:
		return l.Selector
	}
}

// Node is an element handle scoped to one page.
type Node interface {
	// Query returns the first match, or nil without error when nothing matches.
	Query(loc Locator) (Node, error)
	QueryAll(loc Locator) ([]Node, error)
	Text() (string, error)
	HTML() (string, error)
	Attr(name string) (string, error)
	Click() error
}

// Page is a loaded listing page.
type Page interface {
	Root() Node
	Title() (string, error)
	// Settle waits for the page to react to an interaction.
	Settle(d time.Duration)
	Close() error
}

// Resolve tries candidates in order against scope and returns the first
// match. Backend errors count as a miss for that candidate.
func Resolve(scope Node, candidates ...Locator) (Node, bool) {
	if scope == nil {
		return nil, false
	}
	for _, loc := range candidates {
		node, err := scope.Query(loc)
		if err != nil || node == nil {
			continue
		}
		return node, true
	}
	return nil, false
}

// ResolveAll returns the matches of the first candidate that yields any.
func ResolveAll(scope Node, candidates ...Locator) []Node {
	if scope == nil {
		return nil
	}
	for _, loc := range candidates {
		nodes, err := scope.QueryAll(loc)
		if err != nil || len(nodes) == 0 {
			continue
		}
		return nodes
	}
	return nil
}

// ResolveText returns the trimmed text of the first candidate whose element
// has non-empty text.
func ResolveText(scope Node, candidates ...Locator) (string, bool) {
	for _, loc := range candidates {
		node, ok := Resolve(scope, loc)
		if !ok {
			continue
		}
		if text := nodeText(node); text != "" {
			return text, true
		}
	}
	return "", false
}

func nodeText(n Node) string {
	if n == nil {
		return ""
	}
	text, err := n.Text()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}
