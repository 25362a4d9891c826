package services

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"listing_detail/identity"
	"listing_detail/models"
)

var (
	nonDigitRegex    = regexp.MustCompile(`\D`)
	digitRunRegex    = regexp.MustCompile(`\d+`)
	parentheticRegex = regexp.MustCompile(`\s*\([^)]*\)`)
)

const (
	affirmativeToken = "evet"
	negativeToken    = "hayır"
)

// NormalizeListing maps a raw record onto the canonical schema. It never
// fails: each field degrades to nil on its own.
func NormalizeListing(raw *models.RawListing) models.NormalizedListing {
	if raw == nil {
		return models.NormalizedListing{}
	}

	info := func(name models.FieldName) *string {
		v, ok := raw.Info[name]
		if !ok {
			return nil
		}
		return &v
	}

	return models.NormalizedListing{
		ListingURL:       raw.ListingURL,
		ListingID:        raw.ListingID,
		NetAreaM2:        ExtractNumber(info(models.FieldNetArea)),
		GrossAreaM2:      ExtractNumber(info(models.FieldGrossArea)),
		RoomLayout:       NormalizeRoomLayout(info(models.FieldRoomCount)),
		FloorNumber:      FirstNumber(info(models.FieldFloor)),
		TotalFloors:      CastInt(info(models.FieldTotalFloors)),
		BuildingAgeYears: FirstNumber(info(models.FieldBuildingAge)),
		ListingStatus:    NormalizeStatus(info(models.FieldCategory)),
		HeatingType:      NormalizeHeating(info(models.FieldHeating)),
		InsideComplex:    NormalizeBool(info(models.FieldInsideComplex)),
		Price:            raw.Price.Amount,
		DescriptionHTML:  raw.DescriptionHTML,
		Features:         NormalizeFeatures(raw.Features),
	}
}

// NormalizeListings keeps input order; nil entries normalize to empty records.
func NormalizeListings(raws []*models.RawListing) []models.NormalizedListing {
	out := make([]models.NormalizedListing, 0, len(raws))
	for _, raw := range raws {
		out = append(out, NormalizeListing(raw))
	}
	return out
}

// ExtractNumber drops every non-digit ("120 m²" -> 120).
func ExtractNumber(text *string) *int {
	if text == nil {
		return nil
	}
	return atoiPtr(nonDigitRegex.ReplaceAllString(*text, ""))
}

// FirstNumber returns the first run of digits: "4.Kat" -> 4, "11-15" -> 11,
// "0 (Yeni)" -> 0.
func FirstNumber(text *string) *int {
	if text == nil {
		return nil
	}
	return atoiPtr(digitRunRegex.FindString(*text))
}

// CastInt accepts only a plain integer, surrounding whitespace aside.
func CastInt(text *string) *int {
	if text == nil {
		return nil
	}
	return atoiPtr(strings.TrimSpace(*text))
}

func NormalizeRoomLayout(text *string) *string {
	return trimmedPtr(text)
}

// NormalizeStatus lowercases without locale rules: "SATILIK" -> "satilik",
// "Satılık" -> "satılık".
func NormalizeStatus(text *string) *string {
	t := trimmedPtr(text)
	if t == nil {
		return nil
	}
	lowered := strings.ToLower(*t)
	return &lowered
}

// NormalizeHeating strips parenthetical notes: "Kombi (Doğalgaz)" -> "Kombi".
func NormalizeHeating(text *string) *string {
	if text == nil {
		return nil
	}
	cleaned := parentheticRegex.ReplaceAllString(*text, "")
	return trimmedPtr(&cleaned)
}

// NormalizeBool is tri-state: nil means unknown, not false. Matching is on
// the plain lowercase form, so "HAYIR" ("hayir") is unknown.
func NormalizeBool(text *string) *bool {
	t := NormalizeStatus(text)
	if t == nil {
		return nil
	}
	var v bool
	switch *t {
	case affirmativeToken:
		v = true
	case negativeToken:
		v = false
	default:
		return nil
	}
	return &v
}

func NormalizeFeatures(sections map[models.Section]models.CategoryList) models.NormalizedFeatures {
	return models.NormalizedFeatures{
		Interior: normalizeGroup(sections, models.SectionInterior),
		Exterior: normalizeGroup(sections, models.SectionExterior),
		Location: normalizeGroup(sections, models.SectionLocation),
	}
}

func normalizeGroup(sections map[models.Section]models.CategoryList, section models.Section) models.FeatureGroup {
	group, ok := sections[section]
	if !ok || group == nil {
		return models.FeatureGroup{State: models.SectionMissing}
	}

	labels := make([]string, 0, len(group))
	for label := range group {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	categories := make(map[string][]string)
	for _, label := range labels {
		features := group[label]
		if len(features) == 0 {
			continue
		}
		key := identity.Slug(label)
		if key == "" {
			continue
		}
		// Labels that slug to the same key are merged in label order.
		categories[key] = append(categories[key], features...)
	}

	if len(categories) == 0 {
		return models.FeatureGroup{State: models.SectionEmpty}
	}
	return models.FeatureGroup{State: models.SectionPopulated, Categories: categories}
}

func trimmedPtr(text *string) *string {
	if text == nil {
		return nil
	}
	t := strings.TrimSpace(*text)
	if t == "" {
		return nil
	}
	return &t
}

func atoiPtr(digits string) *int {
	if digits == "" {
		return nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil
	}
	return &n
}
