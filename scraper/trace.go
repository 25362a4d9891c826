package scraper

import (
	"errors"
	"fmt"

	"listing_detail/models"
)

// ErrSectionUnavailable means the page has no listing detail container, so
// nothing on it can be extracted.
var ErrSectionUnavailable = errors.New("listing detail section unavailable")

// Trace collects the non-fatal issues of one listing extraction.
type Trace struct {
	issues []models.Issue
}

func (t *Trace) add(step string, kind models.IssueKind, format string, args ...any) {
	if t == nil {
		return
	}
	t.issues = append(t.issues, models.Issue{
		Step:   step,
		Kind:   kind,
		Detail: fmt.Sprintf(format, args...),
	})
}

func (t *Trace) NotFound(step, format string, args ...any) {
	t.add(step, models.IssueNotFound, format, args...)
}

func (t *Trace) ParseFailure(step, format string, args ...any) {
	t.add(step, models.IssueParseFailure, format, args...)
}

func (t *Trace) Unavailable(step, format string, args ...any) {
	t.add(step, models.IssueSectionUnavailable, format, args...)
}

func (t *Trace) Issues() []models.Issue {
	if t == nil {
		return nil
	}
	return t.issues
}
