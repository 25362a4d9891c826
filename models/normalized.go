package models

import (
	"encoding/json"
	"time"
)

// SectionState tells apart a section that never reached normalization from
// one that was present but held nothing usable. Both serialize as null.
type SectionState int

const (
	SectionMissing SectionState = iota
	SectionEmpty
	SectionPopulated
)

func (s SectionState) String() string {
	switch s {
	case SectionEmpty:
		return "empty"
	case SectionPopulated:
		return "populated"
	default:
		return "missing"
	}
}

// FeatureGroup is one normalized feature section keyed by category slug.
type FeatureGroup struct {
	State      SectionState
	Categories map[string][]string
}

func (g FeatureGroup) MarshalJSON() ([]byte, error) {
	if g.State != SectionPopulated || len(g.Categories) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(g.Categories)
}

func (g *FeatureGroup) UnmarshalJSON(data []byte) error {
	var categories map[string][]string
	if err := json.Unmarshal(data, &categories); err != nil {
		return err
	}
	g.Categories = categories
	switch {
	case categories == nil:
		g.State = SectionMissing
	case len(categories) == 0:
		g.State = SectionEmpty
	default:
		g.State = SectionPopulated
	}
	return nil
}

type NormalizedFeatures struct {
	Interior FeatureGroup `json:"interior"`
	Exterior FeatureGroup `json:"exterior"`
	Location FeatureGroup `json:"location"`
}

// NormalizedListing is the canonical, schema-stable form of a RawListing.
// Every key is always emitted; unknown values are null.
type NormalizedListing struct {
	ListingURL       string             `json:"listingUrl"`
	ListingID        string             `json:"listingId"`
	NetAreaM2        *int               `json:"netAreaM2"`
	GrossAreaM2      *int               `json:"grossAreaM2"`
	RoomLayout       *string            `json:"roomLayout"`
	FloorNumber      *int               `json:"floorNumber"`
	TotalFloors      *int               `json:"totalFloors"`
	BuildingAgeYears *int               `json:"buildingAgeYears"`
	ListingStatus    *string            `json:"listingStatus"`
	HeatingType      *string            `json:"heatingType"`
	InsideComplex    *bool              `json:"insideComplex"`
	Price            *int64             `json:"price"`
	DescriptionHTML  *string            `json:"descriptionHtml"`
	Features         NormalizedFeatures `json:"features"`
}

// IssueKind classifies why one extraction step produced nothing.
type IssueKind string

const (
	IssueNotFound           IssueKind = "not_found"
	IssueParseFailure       IssueKind = "parse_failure"
	IssueSectionUnavailable IssueKind = "section_unavailable"
)

// Issue is a non-fatal problem recorded by one extraction step.
type Issue struct {
	Step   string    `json:"step"`
	Kind   IssueKind `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

type OutcomeStatus string

const (
	OutcomeSucceeded OutcomeStatus = "succeeded"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

// ListingOutcome reports how extraction of a single listing went.
type ListingOutcome struct {
	URL        string        `json:"url"`
	ListingID  string        `json:"listing_id"`
	Status     OutcomeStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	Issues     []Issue       `json:"issues,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}
