package scraper

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"listing_detail/config"
	"listing_detail/models"
)

const fixtureURL = "https://www.emlakjet.com/ilan/satilik-3-1-daire-14523890"

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", name, err)
	}
	return data
}

func loadPage(t *testing.T, name string) *HTMLPage {
	t.Helper()
	page, err := NewHTMLPage(strings.NewReader(string(loadFixture(t, name))))
	if err != nil {
		t.Fatalf("parse fixture %s: %v", name, err)
	}
	return page
}

func htmlPage(t *testing.T, doc string) *HTMLPage {
	t.Helper()
	page, err := NewHTMLPage(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return page
}

func TestExtract_FullListing(t *testing.T) {
	page := loadPage(t, "listing_detail.html")

	rec, issues, err := NewExtractor(&config.SiteConfig{}).Extract(page, fixtureURL)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(issues) != 0 {
		t.Errorf("expected no issues, got %+v", issues)
	}

	if rec.ListingID != "14523890" {
		t.Errorf("listing id = %q", rec.ListingID)
	}
	if rec.ListingURL != fixtureURL {
		t.Errorf("listing url = %q", rec.ListingURL)
	}

	if rec.Price.Amount == nil || *rec.Price.Amount != 2450000 {
		t.Errorf("price amount = %v", rec.Price.Amount)
	}
	if rec.Price.Currency == nil || *rec.Price.Currency != models.CurrencyTL {
		t.Errorf("price currency = %v", rec.Price.Currency)
	}
	if rec.Price.Note != nil {
		t.Errorf("unexpected price note %q", *rec.Price.Note)
	}

	if rec.DescriptionHTML == nil || *rec.DescriptionHTML != "<p>Deniz manzaralı, <b>yeni</b> daire.</p>" {
		t.Errorf("description = %v", rec.DescriptionHTML)
	}

	if got := rec.Features[models.SectionInterior]["Güvenlik"]; strings.Join(got, "|") != "Alarm|Kamera" {
		t.Errorf("interior Güvenlik = %v", got)
	}
	if got := rec.Features[models.SectionExterior]["Otopark"]; strings.Join(got, "|") != "Açık Otopark" {
		t.Errorf("exterior Otopark = %v", got)
	}
	if got := rec.Features[models.SectionLocation]["Ulaşım"]; strings.Join(got, "|") != "Metro|Otobüs" {
		t.Errorf("location Ulaşım = %v", got)
	}
}

func TestExtract_DegradedListing(t *testing.T) {
	page := loadPage(t, "listing_degraded.html")

	rec, issues, err := NewExtractor(nil).Extract(page, "https://www.emlakjet.com/ilan/satilik-2-1-daire-14524001")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}

	// Price falls back to the page title.
	if rec.Price.Amount == nil || *rec.Price.Amount != 1350000 {
		t.Errorf("price amount = %v", rec.Price.Amount)
	}
	if rec.Price.AmountText == nil || *rec.Price.AmountText != "1.350.000 TL" {
		t.Errorf("price text = %v", rec.Price.AmountText)
	}
	if rec.DescriptionHTML != nil {
		t.Errorf("expected no description, got %q", *rec.DescriptionHTML)
	}

	if len(rec.Features) != 3 {
		t.Fatalf("expected all three sections, got %d", len(rec.Features))
	}
	if len(rec.Features[models.SectionExterior]) != 0 || len(rec.Features[models.SectionLocation]) != 0 {
		t.Errorf("expected empty exterior and location, got %+v", rec.Features)
	}
	if got := rec.Features[models.SectionInterior]["Isıtma"]; len(got) != 1 || got[0] != "Yerden Isıtma" {
		t.Errorf("interior Isıtma = %v", got)
	}

	steps := map[string]models.IssueKind{}
	for _, is := range issues {
		steps[is.Step] = is.Kind
	}
	want := map[string]models.IssueKind{
		"price.panel":       models.IssueNotFound,
		"description":       models.IssueNotFound,
		"features.exterior": models.IssueNotFound,
		"features.location": models.IssueNotFound,
	}
	for step, kind := range want {
		if steps[step] != kind {
			t.Errorf("step %s: got kind %q, want %q (issues %+v)", step, steps[step], kind, issues)
		}
	}
}

func TestExtract_MissingContainer(t *testing.T) {
	page := htmlPage(t, `<html><head><title>Sayfa bulunamadı</title></head><body><h1>404</h1></body></html>`)

	rec, issues, err := NewExtractor(nil).Extract(page, fixtureURL)
	if !errors.Is(err, ErrSectionUnavailable) {
		t.Fatalf("expected ErrSectionUnavailable, got %v", err)
	}
	if rec != nil {
		t.Errorf("expected no record, got %+v", rec)
	}
	if len(issues) != 1 || issues[0].Kind != models.IssueSectionUnavailable {
		t.Errorf("issues = %+v", issues)
	}
}

func TestExtract_NoListingID(t *testing.T) {
	page := loadPage(t, "listing_detail.html")

	rec, issues, err := NewExtractor(nil).Extract(page, "https://www.emlakjet.com/ilan/onizleme")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if rec.ListingID != "" {
		t.Errorf("listing id = %q", rec.ListingID)
	}
	if len(issues) != 1 || issues[0].Step != "listing_id" || issues[0].Kind != models.IssueParseFailure {
		t.Errorf("issues = %+v", issues)
	}
}

func TestExtractInfo(t *testing.T) {
	page := loadPage(t, "listing_detail.html")
	container, ok := Resolve(page.Root(), detailContainer...)
	if !ok {
		t.Fatal("container not found")
	}

	info := ExtractInfo(container, nil)

	tests := []struct {
		field models.FieldName
		want  string
	}{
		{models.FieldListingNumber, "14523890"},
		{models.FieldCategory, "Satılık"},
		{models.FieldNetArea, "120 m²"},
		{models.FieldGrossArea, "135 m²"},
		{models.FieldBuildingAge, "0 (Yeni)"},
		{models.FieldRoomCount, "3+1"},
		{models.FieldFloor, "4.Kat"},
		{models.FieldTotalFloors, "5"},
		{models.FieldHeating, "Kombi (Doğalgaz)"},
		{models.FieldInsideComplex, "Hayır"},
	}
	for _, tt := range tests {
		if got := info[tt.field]; got != tt.want {
			t.Errorf("%s = %q, want %q", tt.field, got, tt.want)
		}
	}

	// "Aidat" is not a known label and "Tapu Durumu" has no value.
	if _, ok := info[models.FieldDeedStatus]; ok {
		t.Error("row without value should be skipped")
	}
	if len(info) != len(tests) {
		t.Errorf("expected %d fields, got %d: %v", len(tests), len(info), info)
	}
}

func TestExtractInfo_EmptyValueKept(t *testing.T) {
	page := htmlPage(t, `<div id="ilan-hakkinda"><ul>
		<li><span class="styles_key__wX_g4">Kullanım Durumu</span><span class="styles_value__xmNV3">  </span></li>
	</ul></div>`)
	container, _ := Resolve(page.Root(), detailContainer...)

	info := ExtractInfo(container, nil)
	got, ok := info[models.FieldUsageStatus]
	if !ok || got != "" {
		t.Errorf("expected empty value to be kept, got %q (present %v)", got, ok)
	}
}

func TestExtractInfo_NoRows(t *testing.T) {
	page := htmlPage(t, `<div id="ilan-hakkinda"><p>boş</p></div>`)
	container, _ := Resolve(page.Root(), detailContainer...)

	tr := &Trace{}
	info := ExtractInfo(container, tr)
	if len(info) != 0 {
		t.Errorf("expected empty info, got %v", info)
	}
	if issues := tr.Issues(); len(issues) != 1 || issues[0].Kind != models.IssueNotFound {
		t.Errorf("issues = %+v", issues)
	}
}

func TestExtractDescription_MissingInner(t *testing.T) {
	page := htmlPage(t, `<div id="ilan-hakkinda"><h2>İlan Açıklaması</h2><div><p>düz metin</p></div></div>`)
	container, _ := Resolve(page.Root(), detailContainer...)

	tr := &Trace{}
	if desc := ExtractDescription(container, tr); desc != nil {
		t.Errorf("expected nil description, got %q", *desc)
	}
	if issues := tr.Issues(); len(issues) != 1 || issues[0].Step != "description" {
		t.Errorf("issues = %+v", issues)
	}
}

func TestExtractDescription_AfterWrapper(t *testing.T) {
	page := htmlPage(t, `<div id="ilan-hakkinda">
		<h2>İlan Açıklaması</h2>
		<div class="styles_toolbar__q1"><button>Çevir</button></div>
		<div><div><div class="styles_inner__Xy1"><p>Metroya 5 dakika.</p></div></div></div>
	</div>`)
	container, _ := Resolve(page.Root(), detailContainer...)

	tr := &Trace{}
	desc := ExtractDescription(container, tr)
	if desc == nil || *desc != "<p>Metroya 5 dakika.</p>" {
		t.Fatalf("description = %v (issues %+v)", desc, tr.Issues())
	}
	if len(tr.Issues()) != 0 {
		t.Errorf("issues = %+v", tr.Issues())
	}
}
